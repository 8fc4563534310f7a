package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/tour-booking-client-poc/internal/client/api"
	"github.com/radieske/tour-booking-client-poc/internal/client/cancellation"
	"github.com/radieske/tour-booking-client-poc/internal/client/payment"
	"github.com/radieske/tour-booking-client-poc/internal/client/reconcile"
	"github.com/radieske/tour-booking-client-poc/internal/client/store"
	"github.com/radieske/tour-booking-client-poc/internal/shared/config"
	"github.com/radieske/tour-booking-client-poc/internal/shared/logger"
	"github.com/radieske/tour-booking-client-poc/internal/shared/metrics"
	"github.com/radieske/tour-booking-client-poc/pkg/contracts/dto"
)

// CLI de demonstração dos fluxos do cliente contra o backend-simulator.
// CLIENT_FLOW seleciona o fluxo: "topup" (padrão) ou "cancel".
func main() {
	cfg := config.Load()

	log, err := logger.New("booking-client", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	st := store.NewFileStore(cfg.StateFilePath)
	client := api.NewClient(cfg.APIBaseURL, st, log,
		api.WithLogoutCallback(func() {
			fmt.Println(">> session expired, please log in again")
		}),
	)

	metrics.StartServer(cfg.MetricsPort, func(ctx context.Context) error { return nil })

	ctx := context.Background()
	if err := client.Login(ctx, cfg.ClientEmail, cfg.ClientPass); err != nil {
		log.Fatal("login", zap.Error(err))
	}
	log.Info("logged in", zap.String("email", cfg.ClientEmail))

	switch cfg.ClientFlow {
	case "cancel":
		runCancel(ctx, cfg, client, log)
	default:
		runTopUp(ctx, cfg, client, st, log)
	}
}

// runTopUp retoma um pagamento pendente persistido ou inicia um novo, e
// acompanha o countdown até o desfecho
func runTopUp(ctx context.Context, cfg config.Config, client *api.Client, st store.Store, log *zap.Logger) {
	balance := &reconcile.BalanceCache{}

	accounts := func(ctx context.Context) ([]dto.WalletAccount, error) {
		return api.Call[[]dto.WalletAccount](ctx, client, http.MethodGet, "/wallet-accounts", nil)
	}

	done := make(chan struct{})
	ctrl := payment.NewController(
		client,
		st,
		payment.Role(cfg.ClientRole),
		balance,
		accounts,
		log,
		payment.WithCallbacks(payment.Callbacks{
			OnTick: func(remaining int) {
				fmt.Printf("\rwaiting for payment... %02d:%02d", remaining/60, remaining%60)
			},
			OnDisplayStatus: func(s string) {
				fmt.Printf("\npayment status: %s\n", s)
			},
			OnSuccess: func(amount int64) {
				total, _ := balance.Get()
				fmt.Printf("\ntop-up confirmed: +%d (balance %d)\n", amount, total)
				close(done)
			},
			OnExpired: func() {
				fmt.Println("\npayment window expired, no charge was made")
				close(done)
			},
			OnConnectionError: func(err error) {
				fmt.Printf("\nconnection lost: %v\n", err)
				close(done)
			},
		}),
	)
	defer ctrl.Close()

	rec, resumed, err := ctrl.Resume(ctx)
	if err != nil {
		log.Fatal("resume payment", zap.Error(err))
	}
	if resumed {
		fmt.Printf("resuming pending payment %s (%ds left)\n", rec.PaymentID, ctrl.Remaining())
	} else {
		amount := int64(100000)
		rec, err = ctrl.Start(ctx, amount)
		if err != nil {
			log.Fatal("start payment", zap.Error(err))
		}
		fmt.Printf("scan the QR to pay: %s\n", rec.QRUrl)
	}

	select {
	case <-done:
	case <-time.After(time.Duration(payment.CountdownSeconds+30) * time.Second):
		fmt.Println("\ngiving up waiting for payment outcome")
	}
}

// runCancel cota o reembolso da reserva, pede confirmação no terminal e
// acompanha o job até o desfecho
func runCancel(ctx context.Context, cfg config.Config, client *api.Client, log *zap.Logger) {
	bookingID := os.Getenv("BOOKING_ID")
	if bookingID == "" {
		bookingID = "booking-refundable"
	}
	supplierCancel := cfg.ClientRole == "supplier"

	ctrl := cancellation.NewController(client, "user-demo-1", supplierCancel, log)

	switch ctrl.Open(ctx, bookingID) {
	case cancellation.StateAwaitingConfirmation:
		fmt.Printf("refund for %s: %d — confirm? [y/N] ", bookingID, ctrl.RefundAmount())
		var answer string
		_, _ = fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("cancellation aborted")
			return
		}
	case cancellation.StateDenied:
		fmt.Printf("cancellation denied: %s\n", ctrl.Message())
		return
	default:
		fmt.Printf("could not quote refund: %s\n", ctrl.Message())
		return
	}

	state, err := ctrl.Confirm(ctx)
	if err != nil {
		log.Fatal("confirm cancellation", zap.Error(err))
	}

	switch state {
	case cancellation.StateSucceeded:
		fmt.Printf("booking cancelled, refund %d credited\n", ctrl.RefundAmount())
	case cancellation.StateFailed:
		fmt.Printf("cancellation failed: %s\n", ctrl.Message())
	default:
		fmt.Printf("cancellation state %s: %s\n", state, ctrl.Message())
	}
}
