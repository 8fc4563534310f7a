package payment

import (
	"errors"

	"github.com/radieske/tour-booking-client-poc/internal/client/store"
)

// Duração do countdown de pagamento no cliente. A autoridade sobre a
// expiração é do servidor; o deadline local só governa a exibição e a
// reconciliação única no zero.
const CountdownSeconds = 300

var (
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrNoPayoutAccount = errors.New("no payout account registered")
	ErrPaymentInFlight = errors.New("a pending payment already exists")
	ErrClosed          = errors.New("controller closed")
)

// Role separa o registro persistido de cliente e fornecedor
type Role string

const (
	RoleCustomer Role = "customer"
	RoleSupplier Role = "supplier"
)

// storeKey devolve a chave durável do pagamento pendente desta role
func (r Role) storeKey() string {
	if r == RoleSupplier {
		return store.KeySupplierQRPayment
	}
	return store.KeyQRPayment
}

// State é o estado da máquina de pagamento por top-up
type State string

const (
	StateNone            State = "NO_PAYMENT"
	StatePending         State = "PENDING"
	StateSucceeded       State = "SUCCESS"
	StateExpired         State = "EXPIRED"
	StateConnectionError State = "CONNECTION_ERROR"
)

// PendingPayment é o registro durável que permite retomar um top-up em
// andamento após reinício do processo. Existe somente enquanto PENDING;
// qualquer status terminal apaga o registro.
type PendingPayment struct {
	PaymentID string `json:"paymentId"`
	QRUrl     string `json:"qrUrl"`
	StartTime int64  `json:"startTime"` // unix millis
	Status    string `json:"status"`
}
