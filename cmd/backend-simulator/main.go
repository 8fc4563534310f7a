package main

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/tour-booking-client-poc/internal/shared/cache"
	"github.com/radieske/tour-booking-client-poc/internal/shared/config"
	"github.com/radieske/tour-booking-client-poc/internal/shared/db"
	"github.com/radieske/tour-booking-client-poc/internal/shared/kafka"
	"github.com/radieske/tour-booking-client-poc/internal/shared/logger"
	"github.com/radieske/tour-booking-client-poc/internal/shared/metrics"
	httpapi "github.com/radieske/tour-booking-client-poc/internal/simulator/http"
	"github.com/radieske/tour-booking-client-poc/internal/simulator/jobs"
	"github.com/radieske/tour-booking-client-poc/internal/simulator/repo"
	"github.com/radieske/tour-booking-client-poc/internal/simulator/session"
	"github.com/radieske/tour-booking-client-poc/internal/simulator/stream"
)

// Janela de pagamento do servidor, igual ao countdown exibido pelo cliente
const paymentWindow = 5 * time.Minute

func main() {
	cfg := config.Load()

	log, err := logger.New("backend-simulator", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("starting service", zap.String("service", "backend-simulator"), zap.String("env", cfg.Env))

	// Postgres guarda reservas, carteiras, transações e jobs
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	store := repo.NewPostgres(pg)
	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}
	if err := store.SeedDemo(ctx); err != nil {
		log.Fatal("seed", zap.Error(err))
	}

	// Redis faz o fan-out de status de pagamento para as conexões SSE
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	// Kafka producer dos jobs de cancelamento consumidos pelo worker
	writer := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicCancellations)
	defer writer.Close()

	// Sessões em memória com os usuários de demonstração
	sessions := session.NewManager(15*time.Minute, 24*time.Hour)
	sessions.RegisterUser("customer@demo.local", "demo123", "user-demo-1")
	sessions.RegisterUser("supplier@demo.local", "demo123", "supplier-demo-1")

	api := httpapi.NewServer(
		log,
		store,
		sessions,
		jobs.NewProducer(writer),
		stream.NewPublisher(rdb),
		stream.NewSSE(rdb, log),
		paymentWindow,
	)

	// Servidor de métricas e health check em goroutine própria
	metrics.StartServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return err
		}
		return rdb.Ping(ctx).Err()
	})
	log.Info("metrics/health listening", zap.String("port", cfg.MetricsPort))

	apiSrv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: api.Router(),
	}

	log.Info("api listening", zap.String("addr", apiSrv.Addr))
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api srv", zap.Error(err))
	}
}
