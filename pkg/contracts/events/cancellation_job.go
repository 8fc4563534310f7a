package events

// Evento publicado no tópico "booking_cancellations" quando um cancelamento é enfileirado
type CancellationJobQueued struct {
	JobID          string `json:"job_id"`
	BookingID      string `json:"booking_id"`
	UserID         string `json:"user_id"`
	SupplierCancel bool   `json:"supplier_cancel"`
	TsUnixMs       int64  `json:"ts_unix_ms"`
}
