package events

// Evento entregue via SSE (e Redis Pub/Sub) com o status de um pagamento
type PaymentStatus struct {
	PaymentID string `json:"paymentId"`
	Status    string `json:"status"` // "PENDING" | "SUCCESS" | "EXPIRED"
	Amount    int64  `json:"amount"`
}
