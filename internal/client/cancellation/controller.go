package cancellation

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/tour-booking-client-poc/internal/client/api"
	"github.com/radieske/tour-booking-client-poc/pkg/contracts/dto"
	"github.com/radieske/tour-booking-client-poc/pkg/contracts/status"
)

// Estados do fluxo de cancelamento de reserva
type State string

const (
	StateIdle                 State = "IDLE"
	StateQuotingRefund        State = "QUOTING_REFUND"
	StateAwaitingConfirmation State = "AWAITING_CONFIRMATION"
	StateSubmitting           State = "SUBMITTING"
	StateSucceeded            State = "SUCCEEDED"
	StateDenied               State = "DENIED"
	StateFailed               State = "FAILED"
)

// Textos exibidos quando o backend não fornece uma mensagem utilizável
const (
	fallbackQuoteDenial   = "could not retrieve refund info"
	fallbackFailure       = "cancellation failed, please try again"
	enqueuedNoTerminalMsg = "cancellation accepted and still processing"
)

var ErrNotAwaitingConfirmation = errors.New("no refund quote awaiting confirmation")

// Controller orquestra o cancelamento em três passos: cotação do
// reembolso, enfileiramento do job no backend e polling do status do job
// até um estado terminal (ou o teto de espera).
type Controller struct {
	api            *api.Client
	log            *zap.Logger
	userID         string
	supplierCancel bool
	pollInterval   time.Duration
	pollTimeout    time.Duration
	refetch        []func()

	mu           sync.Mutex
	state        State
	bookingID    string
	refundAmount int64
	message      string
	jobID        string
}

type Option func(*Controller)

// WithPolling ajusta intervalo e teto do polling do job (testes)
func WithPolling(interval, timeout time.Duration) Option {
	return func(c *Controller) {
		c.pollInterval = interval
		c.pollTimeout = timeout
	}
}

// WithRefetch registra o refetch da lista de reservas disparado nos
// estados terminais
func WithRefetch(fns ...func()) Option {
	return func(c *Controller) { c.refetch = append(c.refetch, fns...) }
}

func NewController(apiClient *api.Client, userID string, supplierCancel bool, log *zap.Logger, opts ...Option) *Controller {
	c := &Controller{
		api:            apiClient,
		log:            log,
		userID:         userID,
		supplierCancel: supplierCancel,
		pollInterval:   2 * time.Second,
		pollTimeout:    30 * time.Second,
		state:          StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RefundAmount é o valor cotado, válido em AwaitingConfirmation
func (c *Controller) RefundAmount() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refundAmount
}

// Message é o texto de negação ou falha exibido ao usuário
func (c *Controller) Message() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.message
}

func (c *Controller) JobID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.jobID
}

// Open busca a cotação de reembolso da reserva. A cotação é sempre
// buscada fresca; nunca há cache. Uma negação do backend (mensagem
// legível, data nulo) vira Denied, não erro.
func (c *Controller) Open(ctx context.Context, bookingID string) State {
	c.transition(StateQuotingRefund, "")
	c.mu.Lock()
	c.bookingID = bookingID
	c.refundAmount = 0
	c.mu.Unlock()

	env, err := c.api.Do(ctx, http.MethodGet, "/bookings/getPriceBookingCancel/"+bookingID, nil)
	if err != nil {
		return c.fail(err)
	}

	// negação de negócio: mensagem própria com data nulo
	if env.Message != "" && env.Message != "SUCCESS" && !env.HasData() {
		return c.deny(env.Message)
	}

	var quote dto.RefundQuote
	if derr := env.Decode(&quote); derr != nil {
		c.log.Warn("refund quote decode", zap.String("bookingId", bookingID), zap.Error(derr))
		return c.deny(fallbackQuoteDenial)
	}

	if quote.PriceToRefund == nil {
		// nem negação nem valor utilizável
		return c.deny(fallbackQuoteDenial)
	}

	c.mu.Lock()
	c.refundAmount = *quote.PriceToRefund
	c.state = StateAwaitingConfirmation
	c.mu.Unlock()
	return StateAwaitingConfirmation
}

// Confirm enfileira o cancelamento e acompanha o job por polling até um
// status terminal. O teto de espera não é falha: o enqueue foi aceito e o
// backend vai liquidar; o estado reporta sucesso com a ressalva.
func (c *Controller) Confirm(ctx context.Context) (State, error) {
	c.mu.Lock()
	if c.state != StateAwaitingConfirmation {
		c.mu.Unlock()
		return c.State(), ErrNotAwaitingConfirmation
	}
	bookingID := c.bookingID
	c.state = StateSubmitting
	c.mu.Unlock()

	out, err := api.Call[dto.CancelBookingResponse](ctx, c.api, http.MethodPost, "/bookings/cancelBooking", dto.CancelBookingRequest{
		BookingID:      bookingID,
		UserID:         c.userID,
		SupplierCancel: c.supplierCancel,
	})
	if err != nil {
		return c.fail(err), err
	}

	c.mu.Lock()
	c.jobID = out.JobID
	c.mu.Unlock()

	if out.JobID == "" {
		// backend antigo sem jobId: o reconhecimento do enqueue já é sucesso
		return c.succeed(""), nil
	}

	return c.awaitJob(ctx, out.JobID)
}

// awaitJob consulta GET /bookings/cancel-status/{jobId} em intervalo fixo
// até SUCCESS/FAILED ou o teto de espera
func (c *Controller) awaitJob(ctx context.Context, jobID string) (State, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(c.pollTimeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return c.fail(ctx.Err()), ctx.Err()

		case <-deadline.C:
			return c.succeed(enqueuedNoTerminalMsg), nil

		case <-ticker.C:
			job, err := api.Call[dto.JobStatus](ctx, c.api, http.MethodGet, "/bookings/cancel-status/"+jobID, nil)
			if err != nil {
				// leitura não crítica: erro transiente não derruba o fluxo
				c.log.Warn("cancel job poll", zap.String("jobId", jobID), zap.Error(err))
				continue
			}
			if !status.JobTerminal(job.Status) {
				continue
			}
			if job.Status == status.Failed {
				msg := job.Reason
				if msg == "" {
					msg = fallbackFailure
				}
				c.transition(StateFailed, msg)
				c.fireRefetch()
				return StateFailed, nil
			}
			return c.succeed(""), nil
		}
	}
}

func (c *Controller) succeed(note string) State {
	c.transition(StateSucceeded, note)
	c.fireRefetch()
	return StateSucceeded
}

func (c *Controller) deny(msg string) State {
	c.transition(StateDenied, msg)
	return StateDenied
}

// fail converte um erro de transporte/validação em Failed, preferindo a
// mensagem do backend quando ela existe
func (c *Controller) fail(err error) State {
	msg := fallbackFailure
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		msg = apiErr.Message
	}
	c.transition(StateFailed, msg)
	return StateFailed
}

func (c *Controller) transition(s State, msg string) {
	c.mu.Lock()
	c.state = s
	c.message = msg
	c.mu.Unlock()
}

func (c *Controller) fireRefetch() {
	for _, fn := range c.refetch {
		fn()
	}
}
