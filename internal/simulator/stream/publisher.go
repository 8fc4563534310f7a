package stream

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/tour-booking-client-poc/pkg/contracts/events"
	"github.com/radieske/tour-booking-client-poc/pkg/contracts/topics"
)

// Publisher empurra eventos de status de pagamento no canal Redis Pub/Sub
// do pagamento; o handler SSE repassa aos clientes assinados
type Publisher struct {
	rdb *redis.Client
}

func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

func (p *Publisher) PublishStatus(ctx context.Context, ev events.PaymentStatus) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, topics.PaymentChannel(ev.PaymentID), b).Err()
}
