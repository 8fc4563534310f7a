package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/tour-booking-client-poc/internal/client/api"
	"github.com/radieske/tour-booking-client-poc/internal/client/reconcile"
	"github.com/radieske/tour-booking-client-poc/internal/client/sse"
	"github.com/radieske/tour-booking-client-poc/internal/client/store"
	"github.com/radieske/tour-booking-client-poc/pkg/contracts/dto"
	"github.com/radieske/tour-booking-client-poc/pkg/contracts/events"
	"github.com/radieske/tour-booking-client-poc/pkg/contracts/status"
)

// StreamOpener abre o canal de push de status de um pagamento
type StreamOpener func(ctx context.Context, paymentID string) (reconcile.Stream, error)

// AccountsFunc lista as contas de saque/recebimento do usuário
type AccountsFunc func(ctx context.Context) ([]dto.WalletAccount, error)

// Callbacks de exibição do fluxo de top-up; todos opcionais
type Callbacks struct {
	OnTick            func(remainingSeconds int)
	OnDisplayStatus   func(status string)
	OnSuccess         func(amount int64)
	OnExpired         func()
	OnConnectionError func(err error)
}

// Controller orquestra um top-up de carteira: cria o pagamento pendente,
// persiste o registro por role, assina o push de status e mantém o
// countdown derivado do relógio. Sobrevive a reinício via Resume.
type Controller struct {
	api        *api.Client
	store      store.Store
	role       Role
	rec        *reconcile.Reconciler
	log        *zap.Logger
	nowFn      func() time.Time
	openStream StreamOpener
	accounts   AccountsFunc
	callbacks  Callbacks
	refetch    []func()

	mu       sync.Mutex
	state    State
	current  *PendingPayment
	feed     *statusFeed
	stopTick chan struct{}
	starting bool
	closed   bool
}

type Option func(*Controller)

// WithClock injeta o relógio (testes)
func WithClock(nowFn func() time.Time) Option {
	return func(c *Controller) { c.nowFn = nowFn }
}

// WithStreamOpener troca a abertura do push de status (testes)
func WithStreamOpener(open StreamOpener) Option {
	return func(c *Controller) { c.openStream = open }
}

// WithCallbacks registra os callbacks de exibição
func WithCallbacks(cb Callbacks) Option {
	return func(c *Controller) { c.callbacks = cb }
}

// WithRefetch registra leituras dependentes refeitas após SUCCESS
func WithRefetch(fns ...func()) Option {
	return func(c *Controller) { c.refetch = append(c.refetch, fns...) }
}

func NewController(
	apiClient *api.Client,
	st store.Store,
	role Role,
	balance *reconcile.BalanceCache,
	accounts AccountsFunc,
	log *zap.Logger,
	opts ...Option,
) *Controller {
	c := &Controller{
		api:      apiClient,
		store:    st,
		role:     role,
		rec:      reconcile.NewReconciler(balance, log),
		log:      log,
		nowFn:    time.Now,
		accounts: accounts,
		state:    StateNone,
	}
	c.openStream = func(ctx context.Context, paymentID string) (reconcile.Stream, error) {
		url := apiClient.BaseURL() + "/transactions/stream/" + paymentID
		return sse.Open(ctx, apiClient.HTTPClient(), url, apiClient.AccessToken(), log)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State devolve o estado atual da máquina de pagamento
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Current devolve uma cópia do pagamento pendente em memória, se houver
func (c *Controller) Current() (PendingPayment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return PendingPayment{}, false
	}
	return *c.current, true
}

// Remaining é o countdown derivado de startTime e do relógio; nunca negativo
func (c *Controller) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return 0
	}
	return c.remainingFor(*c.current)
}

func (c *Controller) remainingFor(rec PendingPayment) int {
	elapsed := int(c.nowFn().Sub(time.UnixMilli(rec.StartTime)) / time.Second)
	rem := CountdownSeconds - elapsed
	if rem < 0 {
		return 0
	}
	return rem
}

// Start valida, cria a transação pendente no backend, persiste o registro
// e abre a assinatura de status
func (c *Controller) Start(ctx context.Context, amount int64) (PendingPayment, error) {
	if amount <= 0 {
		return PendingPayment{}, ErrInvalidAmount
	}

	accounts, err := c.accounts(ctx)
	if err != nil {
		return PendingPayment{}, fmt.Errorf("list payout accounts: %w", err)
	}
	if len(accounts) == 0 {
		return PendingPayment{}, ErrNoPayoutAccount
	}
	account := accounts[0]

	// o flag starting cobre a janela da chamada de rede: dois Start
	// sobrepostos nunca criam duas transações
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return PendingPayment{}, ErrClosed
	}
	if c.state == StatePending || c.starting {
		c.mu.Unlock()
		return PendingPayment{}, ErrPaymentInFlight
	}
	c.starting = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.starting = false
		c.mu.Unlock()
	}()

	out, err := api.Call[dto.InOutCoinResponse](ctx, c.api, http.MethodPost, "/transactions/InOutcoin", dto.InOutCoinRequest{
		UserWalletAccountID: account.ID,
		Amount:              amount,
		Type:                dto.TxTypeDeposit,
	})
	if err != nil {
		return PendingPayment{}, err
	}

	rec := PendingPayment{
		PaymentID: out.PaymentID,
		QRUrl:     qrImageURL(account, amount, out.TransactionContent),
		StartTime: c.nowFn().UnixMilli(),
		Status:    status.Pending,
	}
	if err := c.persist(rec); err != nil {
		return PendingPayment{}, err
	}

	if err := c.adopt(ctx, rec); err != nil {
		return rec, err
	}
	return rec, nil
}

// Resume retoma um pagamento persistido após reinício: restaura quando
// ainda PENDING com tempo restante, descarta o registro caso contrário.
func (c *Controller) Resume(ctx context.Context) (PendingPayment, bool, error) {
	raw, ok, err := c.store.Get(c.role.storeKey())
	if err != nil {
		return PendingPayment{}, false, err
	}
	if !ok {
		return PendingPayment{}, false, nil
	}

	var rec PendingPayment
	if err := json.Unmarshal(raw, &rec); err != nil {
		c.log.Warn("discarding corrupt pending payment record", zap.Error(err))
		_ = c.store.Delete(c.role.storeKey())
		return PendingPayment{}, false, nil
	}

	if rec.Status != status.Pending || c.remainingFor(rec) <= 0 {
		_ = c.store.Delete(c.role.storeKey())
		return PendingPayment{}, false, nil
	}

	if err := c.adopt(ctx, rec); err != nil {
		return rec, true, err
	}
	return rec, true, nil
}

// adopt instala o pagamento como corrente, abre o push e liga o countdown
func (c *Controller) adopt(ctx context.Context, rec PendingPayment) error {
	stream, err := c.openStream(ctx, rec.PaymentID)
	if err != nil {
		c.mu.Lock()
		c.current = &rec
		c.state = StateConnectionError
		c.mu.Unlock()
		if c.callbacks.OnConnectionError != nil {
			c.callbacks.OnConnectionError(err)
		}
		return err
	}

	feed := newStatusFeed(stream)

	c.mu.Lock()
	c.current = &rec
	c.state = StatePending
	c.feed = feed
	c.startCountdownLocked()
	c.mu.Unlock()

	go c.rec.Run(feed, c.deleteRecord, reconcile.Hooks{
		DisplayStatus: c.displayStatus,
		Success: func(amount int64) {
			if !c.finish(StateSucceeded) {
				return
			}
			if c.callbacks.OnSuccess != nil {
				c.callbacks.OnSuccess(amount)
			}
		},
		Expired: func() {
			if !c.finish(StateExpired) {
				return
			}
			if c.callbacks.OnExpired != nil {
				c.callbacks.OnExpired()
			}
		},
		ConnectionError: func(err error) {
			// o Close local encerra o feed; isso não é queda de conexão
			if !c.finish(StateConnectionError) {
				return
			}
			if c.callbacks.OnConnectionError != nil {
				c.callbacks.OnConnectionError(err)
			}
		},
		Refetch: c.refetch,
	})

	return nil
}

// Close descarta o controller: para countdown e encerra a assinatura.
// Idempotente; não apaga o registro persistido (o pagamento pode ser
// retomado por um Resume futuro).
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopCountdownLocked()
	feed := c.feed
	c.feed = nil
	c.mu.Unlock()

	if feed != nil {
		feed.Close()
	}
}

func (c *Controller) persist(rec PendingPayment) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return c.store.Set(c.role.storeKey(), raw)
}

func (c *Controller) deleteRecord() error {
	return c.store.Delete(c.role.storeKey())
}

func (c *Controller) displayStatus(s string) {
	if c.callbacks.OnDisplayStatus != nil {
		c.callbacks.OnDisplayStatus(s)
	}
}

// finish aplica um estado terminal e para o countdown imediatamente,
// inclusive no meio de um tick. Depois de um Close nada mais muda de
// estado nem dispara callback; retorna se o estado foi aplicado.
func (c *Controller) finish(s State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.state = s
	c.stopCountdownLocked()
	return true
}

func (c *Controller) startCountdownLocked() {
	c.stopCountdownLocked()
	stop := make(chan struct{})
	c.stopTick = stop
	go c.countdownLoop(stop)
}

func (c *Controller) stopCountdownLocked() {
	if c.stopTick != nil {
		close(c.stopTick)
		c.stopTick = nil
	}
}

func (c *Controller) countdownLoop(stop chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if c.State() != StatePending {
				return
			}
			rem := c.Remaining()
			if c.callbacks.OnTick != nil {
				c.callbacks.OnTick(rem)
			}
			if rem <= 0 {
				// deadline local atingido: a exibição para e uma única
				// consulta de reconciliação decide o desfecho
				c.reconcileAtZero(context.Background())
				return
			}
		}
	}
}

// reconcileAtZero consulta o status final uma única vez quando o countdown
// zera sem evento de push; um resultado terminal entra no mesmo caminho do
// reconciliador, um PENDING deixa a palavra final com o servidor
func (c *Controller) reconcileAtZero(ctx context.Context) {
	c.mu.Lock()
	cur := c.current
	feed := c.feed
	c.mu.Unlock()
	if cur == nil || feed == nil {
		return
	}

	st, err := api.Call[dto.TransactionStatus](ctx, c.api, http.MethodGet, "/transactions/status/"+cur.PaymentID, nil)
	if err != nil {
		c.log.Warn("countdown reconciliation query failed", zap.String("paymentId", cur.PaymentID), zap.Error(err))
		return
	}

	if status.PaymentTerminal(st.Status) {
		feed.Inject(events.PaymentStatus{PaymentID: st.PaymentID, Status: st.Status, Amount: st.Amount})
		return
	}
	c.displayStatus(st.Status)
}
