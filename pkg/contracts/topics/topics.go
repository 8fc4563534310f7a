package topics

const (
	// Cancelamentos de reserva
	BookingCancellations    = "booking_cancellations"
	BookingCancellationsDLQ = "booking_cancellations_dlq"
)

// PaymentChannel retorna o canal Redis Pub/Sub de status de um pagamento
func PaymentChannel(paymentID string) string {
	return "payment_status:" + paymentID
}
