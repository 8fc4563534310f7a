package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/tour-booking-client-poc/internal/simulator/jobs"
	"github.com/radieske/tour-booking-client-poc/internal/simulator/policy"
	"github.com/radieske/tour-booking-client-poc/internal/simulator/repo"
	"github.com/radieske/tour-booking-client-poc/internal/simulator/session"
	"github.com/radieske/tour-booking-client-poc/internal/simulator/stream"
	"github.com/radieske/tour-booking-client-poc/pkg/contracts/dto"
	"github.com/radieske/tour-booking-client-poc/pkg/contracts/events"
	"github.com/radieske/tour-booking-client-poc/pkg/contracts/status"
)

type ctxKey string

const ctxUserID ctxKey = "userID"

// Server expõe a API REST + SSE consumida pelo booking-client
type Server struct {
	log        *zap.Logger
	repo       *repo.Postgres
	sessions   *session.Manager
	jobs       *jobs.Producer
	publisher  *stream.Publisher
	sse        *stream.SSE
	paymentTTL time.Duration
}

func NewServer(
	log *zap.Logger,
	pg *repo.Postgres,
	sessions *session.Manager,
	producer *jobs.Producer,
	publisher *stream.Publisher,
	sse *stream.SSE,
	paymentTTL time.Duration,
) *Server {
	return &Server{
		log:        log,
		repo:       pg,
		sessions:   sessions,
		jobs:       producer,
		publisher:  publisher,
		sse:        sse,
		paymentTTL: paymentTTL,
	}
}

// Router monta as rotas públicas e as autenticadas
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/auth/login", s.login)
	r.Post("/auth/refresh-token", s.refreshToken)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/bookings/getPriceBookingCancel/{bookingId}", s.refundQuote)
		r.Post("/bookings/cancelBooking", s.cancelBooking)
		r.Get("/bookings/cancel-status/{jobId}", s.cancelStatus)

		r.Post("/transactions/InOutcoin", s.inOutCoin)
		r.Post("/transactions/confirm/{paymentId}", s.confirmPayment)
		r.Get("/transactions/status/{paymentId}", s.transactionStatus)
		r.Get("/transactions/stream/{paymentId}", s.transactionStream)
		r.Get("/transactions/FilterPagination", s.listTransactions)
		r.Get("/transactions-coins/FilterPaginationUser", s.listUserTransactions)

		r.Get("/wallet-accounts", s.walletAccounts)
	})

	return r
}

// authMiddleware resolve o bearer token para o usuário da sessão
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeEnvelope(w, http.StatusUnauthorized, "missing bearer token", nil)
			return
		}
		userID, valid := s.sessions.Validate(token)
		if !valid {
			writeEnvelope(w, http.StatusUnauthorized, "invalid or expired token", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxUserID, userID)))
	})
}

func authUser(r *http.Request) string {
	userID, _ := r.Context().Value(ctxUserID).(string)
	return userID
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeEnvelope(w, http.StatusBadRequest, "bad json", nil)
		return
	}
	access, refresh, _, err := s.sessions.Login(req.Email, req.Password)
	if err != nil {
		writeEnvelope(w, http.StatusUnauthorized, "invalid credentials", nil)
		return
	}
	writeEnvelope(w, http.StatusOK, "SUCCESS", dto.TokenPair{AccessToken: access, RefreshToken: refresh})
}

func (s *Server) refreshToken(w http.ResponseWriter, r *http.Request) {
	var req dto.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeEnvelope(w, http.StatusBadRequest, "bad json", nil)
		return
	}
	access, err := s.sessions.Refresh(req.RefreshToken)
	if err != nil {
		writeEnvelope(w, http.StatusUnauthorized, "invalid refresh token", nil)
		return
	}
	writeEnvelope(w, http.StatusOK, "SUCCESS", dto.RefreshResponse{AccessToken: access})
}

// refundQuote calcula a cotação de reembolso. Uma negação de política não
// é erro HTTP: volta 200 com data nulo e a mensagem legível.
func (s *Server) refundQuote(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingId")

	booking, err := s.repo.GetBooking(r.Context(), bookingID)
	if errors.Is(err, repo.ErrNotFound) {
		writeEnvelope(w, http.StatusNotFound, "booking not found", nil)
		return
	}
	if err != nil {
		writeEnvelope(w, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if booking.Status != "CONFIRMED" {
		writeEnvelope(w, http.StatusOK, "booking is not active", nil)
		return
	}

	amount, denial := policy.RefundQuote(booking.PricePaid, time.Unix(booking.DepartureAt, 0), time.Now())
	if denial != "" {
		writeEnvelope(w, http.StatusOK, denial, nil)
		return
	}
	writeEnvelope(w, http.StatusOK, "SUCCESS", dto.RefundQuote{PriceToRefund: &amount})
}

// cancelBooking enfileira o job de cancelamento e devolve o jobId; a
// liquidação é assíncrona no cancellation-worker
func (s *Server) cancelBooking(w http.ResponseWriter, r *http.Request) {
	var req dto.CancelBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeEnvelope(w, http.StatusBadRequest, "bad json", nil)
		return
	}
	if req.BookingID == "" || req.UserID == "" {
		writeEnvelope(w, http.StatusBadRequest, "invalid payload", nil)
		return
	}

	if _, err := s.repo.GetBooking(r.Context(), req.BookingID); errors.Is(err, repo.ErrNotFound) {
		writeEnvelope(w, http.StatusNotFound, "booking not found", nil)
		return
	} else if err != nil {
		writeEnvelope(w, http.StatusInternalServerError, err.Error(), nil)
		return
	}

	jobID := uuid.New().String()
	if err := s.repo.CreateJob(r.Context(), jobID, req.BookingID, req.UserID, req.SupplierCancel); err != nil {
		writeEnvelope(w, http.StatusInternalServerError, err.Error(), nil)
		return
	}

	if err := s.jobs.PublishCancellation(r.Context(), events.CancellationJobQueued{
		JobID:          jobID,
		BookingID:      req.BookingID,
		UserID:         req.UserID,
		SupplierCancel: req.SupplierCancel,
	}); err != nil {
		s.log.Error("publish cancellation job", zap.String("jobId", jobID), zap.Error(err))
		writeEnvelope(w, http.StatusInternalServerError, "could not enqueue cancellation", nil)
		return
	}

	writeEnvelope(w, http.StatusOK, "SUCCESS", dto.CancelBookingResponse{JobID: jobID})
}

func (s *Server) cancelStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	job, err := s.repo.GetJob(r.Context(), jobID)
	if errors.Is(err, repo.ErrNotFound) {
		writeEnvelope(w, http.StatusNotFound, "job not found", nil)
		return
	}
	if err != nil {
		writeEnvelope(w, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	writeEnvelope(w, http.StatusOK, "SUCCESS", job)
}

// inOutCoin cria a transação PENDING e agenda a expiração autoritativa do
// servidor para o fim da janela de pagamento
func (s *Server) inOutCoin(w http.ResponseWriter, r *http.Request) {
	var req dto.InOutCoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeEnvelope(w, http.StatusBadRequest, "bad json", nil)
		return
	}
	if req.Amount <= 0 || req.UserWalletAccountID == "" {
		writeEnvelope(w, http.StatusBadRequest, "invalid payload", nil)
		return
	}
	if req.Type != dto.TxTypeDeposit && req.Type != dto.TxTypeWithdraw {
		writeEnvelope(w, http.StatusBadRequest, "unknown transaction type", nil)
		return
	}

	userID := authUser(r)
	accounts, err := s.repo.WalletAccounts(r.Context(), userID)
	if err != nil {
		writeEnvelope(w, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	owned := false
	for _, a := range accounts {
		if a.ID == req.UserWalletAccountID {
			owned = true
			break
		}
	}
	if !owned {
		writeEnvelope(w, http.StatusForbidden, "wallet account does not belong to user", nil)
		return
	}

	paymentID, err := s.repo.CreateTransaction(r.Context(), userID, req.UserWalletAccountID, req.Type, req.Amount)
	if err != nil {
		writeEnvelope(w, http.StatusInternalServerError, err.Error(), nil)
		return
	}

	s.scheduleExpiry(paymentID, req.Amount)

	writeEnvelope(w, http.StatusOK, "SUCCESS", dto.InOutCoinResponse{
		PaymentID:          paymentID,
		TransactionContent: "NAPTIEN " + paymentID,
	})
}

// scheduleExpiry marca a transação como EXPIRED no fim da janela e avisa
// os assinantes, caso nenhuma confirmação tenha chegado antes
func (s *Server) scheduleExpiry(paymentID string, amount int64) {
	time.AfterFunc(s.paymentTTL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		expired, err := s.repo.ExpireTransaction(ctx, paymentID)
		if err != nil {
			s.log.Error("expire transaction", zap.String("paymentId", paymentID), zap.Error(err))
			return
		}
		if !expired {
			return
		}
		if err := s.publisher.PublishStatus(ctx, events.PaymentStatus{
			PaymentID: paymentID,
			Status:    status.Expired,
			Amount:    amount,
		}); err != nil {
			s.log.Error("publish expiry", zap.String("paymentId", paymentID), zap.Error(err))
		}
	})
}

// confirmPayment simula o callback do banco: credita e avisa o stream
func (s *Server) confirmPayment(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentId")

	tr, changed, err := s.repo.ConfirmTransaction(r.Context(), paymentID)
	if errors.Is(err, repo.ErrNotFound) {
		writeEnvelope(w, http.StatusNotFound, "payment not found", nil)
		return
	}
	if err != nil {
		writeEnvelope(w, http.StatusInternalServerError, err.Error(), nil)
		return
	}

	if changed {
		if err := s.publisher.PublishStatus(r.Context(), events.PaymentStatus{
			PaymentID: tr.PaymentID,
			Status:    tr.Status,
			Amount:    tr.Amount,
		}); err != nil {
			s.log.Error("publish confirmation", zap.String("paymentId", paymentID), zap.Error(err))
		}
	}

	writeEnvelope(w, http.StatusOK, "SUCCESS", dto.TransactionStatus{
		PaymentID: tr.PaymentID,
		Status:    tr.Status,
		Amount:    tr.Amount,
	})
}

func (s *Server) transactionStatus(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentId")
	tr, err := s.repo.GetTransaction(r.Context(), paymentID)
	if errors.Is(err, repo.ErrNotFound) {
		writeEnvelope(w, http.StatusNotFound, "payment not found", nil)
		return
	}
	if err != nil {
		writeEnvelope(w, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	writeEnvelope(w, http.StatusOK, "SUCCESS", dto.TransactionStatus{
		PaymentID: tr.PaymentID,
		Status:    tr.Status,
		Amount:    tr.Amount,
	})
}

// transactionStream abre o SSE de status do pagamento
func (s *Server) transactionStream(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentId")
	tr, err := s.repo.GetTransaction(r.Context(), paymentID)
	if errors.Is(err, repo.ErrNotFound) {
		writeEnvelope(w, http.StatusNotFound, "payment not found", nil)
		return
	}
	if err != nil {
		writeEnvelope(w, http.StatusInternalServerError, err.Error(), nil)
		return
	}

	s.sse.Serve(w, r, events.PaymentStatus{
		PaymentID: tr.PaymentID,
		Status:    tr.Status,
		Amount:    tr.Amount,
	})
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagination(r)
	out, err := s.repo.ListTransactions(r.Context(), "", page, pageSize)
	if err != nil {
		writeEnvelope(w, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	writeEnvelope(w, http.StatusOK, "SUCCESS", out)
}

func (s *Server) listUserTransactions(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagination(r)
	out, err := s.repo.ListTransactions(r.Context(), authUser(r), page, pageSize)
	if err != nil {
		writeEnvelope(w, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	writeEnvelope(w, http.StatusOK, "SUCCESS", out)
}

func (s *Server) walletAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.repo.WalletAccounts(r.Context(), authUser(r))
	if err != nil {
		writeEnvelope(w, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	writeEnvelope(w, http.StatusOK, "SUCCESS", accounts)
}

func pagination(r *http.Request) (page, pageSize int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("pageSize"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	return page, pageSize
}

// writeEnvelope serializa a resposta no envelope padrão {data, message, statusCode}
func writeEnvelope(w http.ResponseWriter, statusCode int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	raw := json.RawMessage("null")
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			raw = b
		}
	}
	_ = json.NewEncoder(w).Encode(dto.Envelope{
		Data:       raw,
		Message:    message,
		StatusCode: statusCode,
	})
}
