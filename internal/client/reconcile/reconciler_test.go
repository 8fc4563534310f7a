package reconcile

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/tour-booking-client-poc/pkg/contracts/events"
)

type scriptedStream struct {
	events chan events.PaymentStatus
	errs   chan error
	closed bool
}

func newScriptedStream(evs ...events.PaymentStatus) *scriptedStream {
	s := &scriptedStream{
		events: make(chan events.PaymentStatus, len(evs)+1),
		errs:   make(chan error, 1),
	}
	for _, ev := range evs {
		s.events <- ev
	}
	return s
}

func (s *scriptedStream) Events() <-chan events.PaymentStatus { return s.events }
func (s *scriptedStream) Errors() <-chan error                { return s.errs }
func (s *scriptedStream) Close()                              { s.closed = true }

func TestRunCreditsOnceAndStops(t *testing.T) {
	// dois SUCCESS no canal: só o primeiro pode ser aplicado
	stream := newScriptedStream(
		events.PaymentStatus{PaymentID: "p1", Status: "PENDING"},
		events.PaymentStatus{PaymentID: "p1", Status: "SUCCESS", Amount: 100000},
		events.PaymentStatus{PaymentID: "p1", Status: "SUCCESS", Amount: 100000},
	)

	balance := NewBalanceCache()
	var displayed []string
	var refetched, deleted int

	r := NewReconciler(balance, zap.NewNop())
	r.Run(stream,
		func() error { deleted++; return nil },
		Hooks{
			DisplayStatus: func(s string) { displayed = append(displayed, s) },
			Refetch:       []func(){func() { refetched++ }},
		},
	)

	if got, _ := balance.Get(); got != 100000 {
		t.Fatalf("balance = %d, want a single credit of 100000", got)
	}
	if deleted != 1 {
		t.Fatalf("record deletions = %d, want 1", deleted)
	}
	if refetched != 1 {
		t.Fatalf("refetch fired %d times, want 1", refetched)
	}
	if len(displayed) != 1 || displayed[0] != "PENDING" {
		t.Fatalf("displayed = %v", displayed)
	}
	if !stream.closed {
		t.Fatal("Run must close the stream on exit")
	}
}

func TestRunExpiredCleansUpWithoutCredit(t *testing.T) {
	stream := newScriptedStream(events.PaymentStatus{PaymentID: "p1", Status: "EXPIRED"})

	balance := NewBalanceCache()
	var expired, deleted int

	r := NewReconciler(balance, zap.NewNop())
	r.Run(stream,
		func() error { deleted++; return nil },
		Hooks{Expired: func() { expired++ }},
	)

	if got, _ := balance.Get(); got != 0 {
		t.Fatalf("balance = %d, want 0", got)
	}
	if expired != 1 || deleted != 1 {
		t.Fatalf("expired = %d, deleted = %d", expired, deleted)
	}
}

func TestRunClosedChannelIsConnectionError(t *testing.T) {
	stream := newScriptedStream()
	close(stream.events)

	connErr := make(chan error, 1)
	r := NewReconciler(NewBalanceCache(), zap.NewNop())
	r.Run(stream, nil, Hooks{ConnectionError: func(err error) { connErr <- err }})

	select {
	case err := <-connErr:
		if !errors.Is(err, ErrStreamClosed) {
			t.Fatalf("err = %v, want ErrStreamClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("connection error hook not fired")
	}
}

func TestRunStreamErrorStops(t *testing.T) {
	stream := newScriptedStream()
	boom := errors.New("read: connection reset")
	stream.errs <- boom

	connErr := make(chan error, 1)
	r := NewReconciler(NewBalanceCache(), zap.NewNop())
	r.Run(stream, nil, Hooks{ConnectionError: func(err error) { connErr <- err }})

	select {
	case err := <-connErr:
		if !errors.Is(err, boom) {
			t.Fatalf("err = %v, want the stream error", err)
		}
	case <-time.After(time.Second):
		t.Fatal("connection error hook not fired")
	}
}
