package status

// Estados assíncronos usados pelo backend para transações e jobs
const (
	Pending = "PENDING"
	Success = "SUCCESS"
	Expired = "EXPIRED"
	Failed  = "FAILED"
)

// PaymentTerminal indica se o status encerra o ciclo de vida de um pagamento.
// Qualquer outro valor (inclusive PENDING) é tratado como não terminal.
func PaymentTerminal(s string) bool {
	return s == Success || s == Expired
}

// JobTerminal indica se o status encerra um job de cancelamento.
func JobTerminal(s string) bool {
	return s == Success || s == Failed
}
