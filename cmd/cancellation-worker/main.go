package main

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/radieske/tour-booking-client-poc/internal/shared/config"
	"github.com/radieske/tour-booking-client-poc/internal/shared/db"
	"github.com/radieske/tour-booking-client-poc/internal/shared/kafka"
	"github.com/radieske/tour-booking-client-poc/internal/shared/logger"
	"github.com/radieske/tour-booking-client-poc/internal/shared/metrics"
	"github.com/radieske/tour-booking-client-poc/internal/simulator/policy"
	"github.com/radieske/tour-booking-client-poc/internal/simulator/repo"
	"github.com/radieske/tour-booking-client-poc/pkg/contracts/dto"
	ev "github.com/radieske/tour-booking-client-poc/pkg/contracts/events"
	"github.com/radieske/tour-booking-client-poc/pkg/contracts/status"
)

var (
	jobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "worker_cancellation_jobs_processed_total",
		Help: "Jobs de cancelamento finalizados, por resultado.",
	}, []string{"result"})
	jobsDeadLettered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "worker_cancellation_jobs_dead_lettered_total",
		Help: "Jobs enviados para a DLQ após esgotar as tentativas.",
	})
)

func main() {
	cfg := config.Load()

	log, err := logger.New("cancellation-worker", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg connect", zap.Error(err))
	}
	defer pg.Close()
	store := repo.NewPostgres(pg)

	// Consumer dos jobs enfileirados pelo backend-simulator
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicCancellations, "cancellation-worker")
	defer reader.Close()

	var dlqWriter *kafka.Writer
	if cfg.TopicCancellationsDLQ != "" {
		dlqWriter = kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicCancellationsDLQ)
		defer dlqWriter.Close()
	}

	metrics.StartServer(cfg.MetricsPort, func(ctx context.Context) error {
		return pg.PingContext(ctx)
	})

	log.Info("cancellation-worker started", zap.String("consume", cfg.TopicCancellations))

	ctx := context.Background()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			log.Warn("kafka read", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		var job ev.CancellationJobQueued
		if jerr := json.Unmarshal(msg.Value, &job); jerr != nil {
			log.Error("unmarshal cancellation job", zap.Error(jerr))
			continue
		}

		if err := processWithRetry(ctx, log, store, &job); err != nil {
			log.Error("process cancellation", zap.String("jobId", job.JobID), zap.Error(err))
			if dlqWriter != nil {
				jobsDeadLettered.Inc()
				_ = kafka.WriteJSON(ctx, dlqWriter, job.JobID, msg.Value)
			}
		}
	}
}

// settleStore é o recorte do repositório usado pela liquidação
type settleStore interface {
	GetBooking(ctx context.Context, bookingID string) (dto.Booking, error)
	SettleCancellation(ctx context.Context, bookingID string, refund int64) (bool, error)
	FinishJob(ctx context.Context, jobID, jobStatus string, refunded int64, reason string) error
}

// processWithRetry tenta liquidar o job algumas vezes antes de desistir,
// com backoff linear entre as tentativas
func processWithRetry(ctx context.Context, log *zap.Logger, store settleStore, job *ev.CancellationJobQueued) error {
	const retries = 3

	var err error
	for i := 0; i < retries; i++ {
		if err = processOne(ctx, log, store, job); err == nil {
			return nil
		}
		// Erros de negócio (job FAILED) não são retentados
		if errors.Is(err, errJobDenied) {
			return nil
		}
		time.Sleep(time.Duration(300*(i+1)) * time.Millisecond)
	}
	return err
}

var errJobDenied = errors.New("cancellation denied by policy")

// processOne liquida um job de cancelamento:
// 1. Recarrega a reserva e reavalia a política de reembolso
// 2. Credita a carteira e marca a reserva como CANCELLED, na mesma transação
// 3. Registra o desfecho do job para o polling do cliente
func processOne(ctx context.Context, log *zap.Logger, store settleStore, job *ev.CancellationJobQueued) error {
	booking, err := store.GetBooking(ctx, job.BookingID)
	if errors.Is(err, repo.ErrNotFound) {
		_ = store.FinishJob(ctx, job.JobID, status.Failed, 0, "booking not found")
		jobsProcessed.WithLabelValues("failed").Inc()
		return errJobDenied
	}
	if err != nil {
		return err
	}

	// A política é reavaliada aqui: a cotação mostrada ao usuário pode ter
	// expirado entre a confirmação e a liquidação
	refund := booking.PricePaid
	if !job.SupplierCancel {
		var denial string
		refund, denial = policy.RefundQuote(booking.PricePaid, time.Unix(booking.DepartureAt, 0), time.Now())
		if denial != "" {
			if err := store.FinishJob(ctx, job.JobID, status.Failed, 0, denial); err != nil {
				return err
			}
			jobsProcessed.WithLabelValues("failed").Inc()
			log.Info("cancellation denied",
				zap.String("jobId", job.JobID),
				zap.String("bookingId", job.BookingID),
				zap.String("reason", denial),
			)
			return errJobDenied
		}
	}

	settled, err := store.SettleCancellation(ctx, job.BookingID, refund)
	if err != nil {
		return err
	}
	if !settled {
		// outro job já cancelou a reserva: este não creditou nada
		if err := store.FinishJob(ctx, job.JobID, status.Failed, 0, "booking already cancelled"); err != nil {
			return err
		}
		jobsProcessed.WithLabelValues("failed").Inc()
		return errJobDenied
	}

	if err := store.FinishJob(ctx, job.JobID, status.Success, refund, ""); err != nil {
		return err
	}

	jobsProcessed.WithLabelValues("success").Inc()
	log.Info("cancellation settled",
		zap.String("jobId", job.JobID),
		zap.String("bookingId", job.BookingID),
		zap.Int64("refund", refund),
	)
	return nil
}
