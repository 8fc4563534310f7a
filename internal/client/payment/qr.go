package payment

import (
	"fmt"
	"net/url"

	"github.com/radieske/tour-booking-client-poc/pkg/contracts/dto"
)

// qrImageURL monta a URL da imagem de QR bancário a partir da conta de
// destino, do valor e do conteúdo de transferência devolvido pelo backend
func qrImageURL(account dto.WalletAccount, amount int64, transactionContent string) string {
	return fmt.Sprintf(
		"https://img.vietqr.io/image/%s-%s-compact2.png?amount=%d&addInfo=%s",
		account.BankCode,
		account.AccountNumber,
		amount,
		url.QueryEscape(transactionContent),
	)
}
