package reconcile

import "sync"

// BalanceCache é a cópia local do saldo da carteira. Nunca é autoritativa:
// o backend manda; o cache só é ajustado otimisticamente num SUCCESS
// confirmado ou substituído por uma leitura explícita.
type BalanceCache struct {
	mu     sync.Mutex
	amount int64
	known  bool
}

func NewBalanceCache() *BalanceCache {
	return &BalanceCache{}
}

// Set substitui o saldo pelo valor lido do backend
func (b *BalanceCache) Set(amount int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.amount = amount
	b.known = true
}

// Add ajusta o saldo otimisticamente (evento SUCCESS confirmado)
func (b *BalanceCache) Add(delta int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.amount += delta
}

// Get devolve o saldo em cache e se algum valor já foi carregado
func (b *BalanceCache) Get() (int64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.amount, b.known
}
