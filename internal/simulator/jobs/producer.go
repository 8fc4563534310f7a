package jobs

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/radieske/tour-booking-client-poc/pkg/contracts/events"
)

// Producer publica jobs de cancelamento no tópico consumido pelo
// cancellation-worker
type Producer struct {
	Writer *kafkago.Writer
}

func NewProducer(w *kafkago.Writer) *Producer {
	return &Producer{Writer: w}
}

func (p *Producer) PublishCancellation(ctx context.Context, ev events.CancellationJobQueued) error {
	ev.TsUnixMs = time.Now().UnixMilli()
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.Writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(ev.JobID),
		Value: b,
	})
}
