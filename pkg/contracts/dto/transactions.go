package dto

// Tipos de movimentação aceitos por POST /transactions/InOutcoin
const (
	TxTypeDeposit  = "NAP_TIEN"
	TxTypeWithdraw = "RUT_TIEN"
)

type InOutCoinRequest struct {
	UserWalletAccountID string `json:"userWalletAccountId"`
	Amount              int64  `json:"amount"`
	Type                string `json:"type"` // "NAP_TIEN" | "RUT_TIEN"
}

type InOutCoinResponse struct {
	PaymentID string `json:"paymentId"`
	// Conteúdo usado para montar a URL do QR de pagamento
	TransactionContent string `json:"transaction_content"`
}

// TransactionStatus é a resposta de GET /transactions/status/{paymentId}
type TransactionStatus struct {
	PaymentID string `json:"paymentId"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
}

type Transaction struct {
	PaymentID string `json:"paymentId"`
	UserID    string `json:"userId"`
	Type      string `json:"type"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"createdAt"` // unix segundos UTC
}

type WalletAccount struct {
	ID            string `json:"id"`
	UserID        string `json:"userId"`
	BankCode      string `json:"bankCode"`
	AccountNumber string `json:"accountNumber"`
	Balance       int64  `json:"balance"`
}

// TransactionPage é o formato das rotas de listagem paginada
type TransactionPage struct {
	Items    []Transaction `json:"items"`
	Total    int           `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"pageSize"`
}
