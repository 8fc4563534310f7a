package policy

import "time"

// Janela mínima de cancelamento antes da partida do tour
const CancelWindow = 24 * time.Hour

// Mensagem de negação devolvida pelo backend original quando a reserva
// está dentro da janela de cancelamento; mantida pelo contrato
const DenialTooLate = "Quá thời hạn hủy"

// RefundQuote calcula a elegibilidade de reembolso de uma reserva.
// Retorna o valor a reembolsar ou, em caso de negação, o texto legível.
// As faixas seguem a antecedência da partida:
//
//	>= 7 dias  -> 100%
//	>= 72h     -> 80%
//	>= 24h     -> 50%
//	< 24h      -> negado
func RefundQuote(pricePaid int64, departureAt, now time.Time) (amount int64, denial string) {
	lead := departureAt.Sub(now)

	switch {
	case lead < CancelWindow:
		return 0, DenialTooLate
	case lead >= 7*24*time.Hour:
		return pricePaid, ""
	case lead >= 72*time.Hour:
		return pricePaid * 80 / 100, ""
	default:
		return pricePaid * 50 / 100, ""
	}
}
