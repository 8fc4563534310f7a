package dto

// RefundQuote é a resposta de GET /bookings/getPriceBookingCancel/{bookingId}.
// Os campos são mutuamente exclusivos: ou há um valor numérico de reembolso,
// ou há um texto de negação no message do envelope (data vem nulo).
type RefundQuote struct {
	PriceToRefund *int64 `json:"priceToRefund"`
}

type CancelBookingRequest struct {
	BookingID string `json:"bookingId"`
	UserID    string `json:"userId"`
	// Mantido com inicial maiúscula no wire por compatibilidade com o backend
	SupplierCancel bool `json:"SupplierCancel"`
}

type CancelBookingResponse struct {
	JobID string `json:"jobId"`
}

// JobStatus é a resposta de GET /bookings/cancel-status/{jobId}
type JobStatus struct {
	JobID          string `json:"jobId"`
	Status         string `json:"status"` // "PENDING" | "SUCCESS" | "FAILED"
	RefundedAmount int64  `json:"refundedAmount,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

type Booking struct {
	ID          string `json:"id"`
	UserID      string `json:"userId"`
	TourName    string `json:"tourName"`
	PricePaid   int64  `json:"pricePaid"`
	Status      string `json:"status"`      // "CONFIRMED" | "CANCELLED"
	DepartureAt int64  `json:"departureAt"` // unix segundos UTC
}
