package reconcile

import (
	"errors"

	"go.uber.org/zap"

	"github.com/radieske/tour-booking-client-poc/pkg/contracts/events"
	"github.com/radieske/tour-booking-client-poc/pkg/contracts/status"
)

// ErrStreamClosed indica que o canal de push terminou sem evento terminal
var ErrStreamClosed = errors.New("status stream closed")

// Stream é o canal de push de status consumido pelo reconciliador
type Stream interface {
	Events() <-chan events.PaymentStatus
	Errors() <-chan error
	Close()
}

// Hooks são os efeitos de UI/leitura disparados pelo reconciliador.
// Todos opcionais; Refetch lista as leituras dependentes (histórico de
// transações) a refazer após um SUCCESS.
type Hooks struct {
	DisplayStatus   func(status string)
	Success         func(amount int64)
	Expired         func()
	ConnectionError func(err error)
	Refetch         []func()
}

// Reconciler transforma eventos assíncronos de status em estado de UI e
// efeitos colaterais: ajuste de saldo, refetch de leituras, limpeza do
// registro persistido.
type Reconciler struct {
	balance *BalanceCache
	log     *zap.Logger
}

func NewReconciler(balance *BalanceCache, log *zap.Logger) *Reconciler {
	return &Reconciler{balance: balance, log: log}
}

// Run consome o stream até um evento terminal, erro de conexão ou fim do
// canal. Após o primeiro evento terminal o stream é fechado, então um
// terminal duplicado nunca é processado (sem crédito em dobro).
// deleteRecord remove o registro de pagamento pendente persistido.
func (r *Reconciler) Run(stream Stream, deleteRecord func() error, hooks Hooks) {
	defer stream.Close()

	for {
		select {
		case ev, ok := <-stream.Events():
			if !ok {
				// fim do stream sem terminal: trata como queda de conexão
				r.connectionError(ErrStreamClosed, hooks)
				return
			}
			if r.apply(ev, deleteRecord, hooks) {
				return
			}
		case err := <-stream.Errors():
			if err != nil {
				r.connectionError(err, hooks)
				return
			}
		}
	}
}

// apply processa um evento; retorna true quando o status é terminal
func (r *Reconciler) apply(ev events.PaymentStatus, deleteRecord func() error, hooks Hooks) bool {
	switch ev.Status {
	case status.Success:
		r.balance.Add(ev.Amount)
		r.cleanup(deleteRecord)
		for _, refetch := range hooks.Refetch {
			refetch()
		}
		if hooks.Success != nil {
			hooks.Success(ev.Amount)
		}
		r.log.Info("payment confirmed", zap.String("paymentId", ev.PaymentID), zap.Int64("amount", ev.Amount))
		return true

	case status.Expired:
		r.cleanup(deleteRecord)
		if hooks.Expired != nil {
			hooks.Expired()
		}
		r.log.Info("payment expired", zap.String("paymentId", ev.PaymentID))
		return true

	default:
		// PENDING e afins só atualizam a exibição
		if hooks.DisplayStatus != nil {
			hooks.DisplayStatus(ev.Status)
		}
		return false
	}
}

func (r *Reconciler) connectionError(err error, hooks Hooks) {
	r.log.Warn("status stream error", zap.Error(err))
	if hooks.ConnectionError != nil {
		hooks.ConnectionError(err)
	}
}

func (r *Reconciler) cleanup(deleteRecord func() error) {
	if deleteRecord == nil {
		return
	}
	if err := deleteRecord(); err != nil {
		r.log.Warn("delete pending payment record", zap.Error(err))
	}
}
