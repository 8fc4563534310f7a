package payment

import (
	"sync"

	"github.com/radieske/tour-booking-client-poc/internal/client/reconcile"
	"github.com/radieske/tour-booking-client-poc/pkg/contracts/events"
)

// statusFeed mescla o SSE com eventos injetados localmente (a consulta
// única de reconciliação quando o countdown zera), entregando tudo ao
// reconciliador por um único canal.
type statusFeed struct {
	inner  reconcile.Stream
	out    chan events.PaymentStatus
	inject chan events.PaymentStatus
	errs   chan error

	once sync.Once
	done chan struct{}
}

func newStatusFeed(inner reconcile.Stream) *statusFeed {
	f := &statusFeed{
		inner:  inner,
		out:    make(chan events.PaymentStatus, 8),
		inject: make(chan events.PaymentStatus, 1),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}
	go f.pump()
	return f
}

func (f *statusFeed) pump() {
	defer close(f.out)
	for {
		select {
		case <-f.done:
			return
		case ev, ok := <-f.inner.Events():
			if !ok {
				return
			}
			f.forward(ev)
		case ev := <-f.inject:
			f.forward(ev)
		case err := <-f.inner.Errors():
			if err == nil {
				continue
			}
			select {
			case f.errs <- err:
			default:
			}
		}
	}
}

func (f *statusFeed) forward(ev events.PaymentStatus) {
	select {
	case f.out <- ev:
	case <-f.done:
	}
}

// Inject entrega um evento sintetizado localmente; nunca bloqueia
func (f *statusFeed) Inject(ev events.PaymentStatus) {
	select {
	case f.inject <- ev:
	default:
	}
}

func (f *statusFeed) Events() <-chan events.PaymentStatus { return f.out }
func (f *statusFeed) Errors() <-chan error                { return f.errs }

// Close encerra feed e assinatura; chamadas repetidas são no-op
func (f *statusFeed) Close() {
	f.once.Do(func() {
		close(f.done)
		f.inner.Close()
	})
}
