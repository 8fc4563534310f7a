package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/tour-booking-client-poc/internal/simulator/policy"
	"github.com/radieske/tour-booking-client-poc/internal/simulator/repo"
	"github.com/radieske/tour-booking-client-poc/pkg/contracts/dto"
	ev "github.com/radieske/tour-booking-client-poc/pkg/contracts/events"
)

type finishedJob struct {
	status   string
	refunded int64
	reason   string
}

type stubStore struct {
	booking    dto.Booking
	bookingErr error
	settled    bool
	settleErr  error

	settleCalls int
	finished    []finishedJob
}

func (s *stubStore) GetBooking(ctx context.Context, bookingID string) (dto.Booking, error) {
	return s.booking, s.bookingErr
}

func (s *stubStore) SettleCancellation(ctx context.Context, bookingID string, refund int64) (bool, error) {
	s.settleCalls++
	return s.settled, s.settleErr
}

func (s *stubStore) FinishJob(ctx context.Context, jobID, jobStatus string, refunded int64, reason string) error {
	s.finished = append(s.finished, finishedJob{status: jobStatus, refunded: refunded, reason: reason})
	return nil
}

func refundableBooking(price int64) dto.Booking {
	return dto.Booking{
		ID:          "b1",
		UserID:      "user-1",
		PricePaid:   price,
		Status:      "CONFIRMED",
		DepartureAt: time.Now().Add(10 * 24 * time.Hour).Unix(),
	}
}

func TestProcessOneSettlesAndRecordsRefund(t *testing.T) {
	store := &stubStore{booking: refundableBooking(300000), settled: true}
	job := &ev.CancellationJobQueued{JobID: "j1", BookingID: "b1", UserID: "user-1"}

	if err := processOne(context.Background(), zap.NewNop(), store, job); err != nil {
		t.Fatalf("processOne: %v", err)
	}

	if len(store.finished) != 1 {
		t.Fatalf("finished jobs = %d, want 1", len(store.finished))
	}
	got := store.finished[0]
	if got.status != "SUCCESS" || got.refunded != 300000 {
		t.Fatalf("job finished as %+v, want SUCCESS with full refund", got)
	}
}

func TestProcessOneAlreadyCancelledRecordsNoRefund(t *testing.T) {
	// liquidação no-op: outro job já cancelou a reserva
	store := &stubStore{booking: refundableBooking(300000), settled: false}
	job := &ev.CancellationJobQueued{JobID: "j1", BookingID: "b1", UserID: "user-1"}

	if err := processOne(context.Background(), zap.NewNop(), store, job); !errors.Is(err, errJobDenied) {
		t.Fatalf("err = %v, want errJobDenied", err)
	}

	if len(store.finished) != 1 {
		t.Fatalf("finished jobs = %d, want 1", len(store.finished))
	}
	got := store.finished[0]
	if got.status != "FAILED" || got.refunded != 0 {
		t.Fatalf("job finished as %+v, want FAILED with zero refund", got)
	}
	if got.reason != "booking already cancelled" {
		t.Fatalf("reason = %q", got.reason)
	}
}

func TestProcessOneDeniesInsideCancelWindow(t *testing.T) {
	booking := refundableBooking(150000)
	booking.DepartureAt = time.Now().Add(2 * time.Hour).Unix()
	store := &stubStore{booking: booking, settled: true}
	job := &ev.CancellationJobQueued{JobID: "j1", BookingID: "b1", UserID: "user-1"}

	if err := processOne(context.Background(), zap.NewNop(), store, job); !errors.Is(err, errJobDenied) {
		t.Fatalf("err = %v, want errJobDenied", err)
	}

	if store.settleCalls != 0 {
		t.Fatalf("settle calls = %d, want 0 for a denied job", store.settleCalls)
	}
	got := store.finished[0]
	if got.status != "FAILED" || got.reason != policy.DenialTooLate {
		t.Fatalf("job finished as %+v", got)
	}
}

func TestProcessOneSupplierCancelRefundsInFull(t *testing.T) {
	// cancelamento pelo fornecedor ignora as faixas da política
	booking := refundableBooking(150000)
	booking.DepartureAt = time.Now().Add(2 * time.Hour).Unix()
	store := &stubStore{booking: booking, settled: true}
	job := &ev.CancellationJobQueued{JobID: "j1", BookingID: "b1", UserID: "supplier-1", SupplierCancel: true}

	if err := processOne(context.Background(), zap.NewNop(), store, job); err != nil {
		t.Fatalf("processOne: %v", err)
	}

	got := store.finished[0]
	if got.status != "SUCCESS" || got.refunded != 150000 {
		t.Fatalf("job finished as %+v, want SUCCESS with full refund", got)
	}
}

func TestProcessOneBookingNotFound(t *testing.T) {
	store := &stubStore{bookingErr: repo.ErrNotFound}
	job := &ev.CancellationJobQueued{JobID: "j1", BookingID: "gone", UserID: "user-1"}

	if err := processOne(context.Background(), zap.NewNop(), store, job); !errors.Is(err, errJobDenied) {
		t.Fatalf("err = %v, want errJobDenied", err)
	}
	got := store.finished[0]
	if got.status != "FAILED" || got.reason != "booking not found" {
		t.Fatalf("job finished as %+v", got)
	}
}
