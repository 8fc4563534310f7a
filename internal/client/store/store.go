package store

// Chaves do estado persistido do cliente (mesmos nomes usados no front web)
const (
	KeyAccessToken       = "access_token"
	KeyRefreshToken      = "refresh_token"
	KeyQRPayment         = "qrPayment"
	KeySupplierQRPayment = "supplierQrPayment"
)

// Store é o armazenamento durável do lado cliente: tokens de sessão e o
// registro de pagamento pendente que sobrevive a reinícios do processo.
type Store interface {
	Get(key string) (value []byte, ok bool, err error)
	Set(key string, value []byte) error
	Delete(key string) error
}
