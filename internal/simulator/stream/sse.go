package stream

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/tour-booking-client-poc/pkg/contracts/events"
	"github.com/radieske/tour-booking-client-poc/pkg/contracts/status"
	"github.com/radieske/tour-booking-client-poc/pkg/contracts/topics"
)

// Métricas de conexões SSE de status de pagamento
var (
	sseConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "simulator_sse_connections",
		Help: "Clientes SSE conectados",
	})
	sseMessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "simulator_sse_messages_sent_total",
		Help: "Total de frames SSE enviados",
	})
)

// SSE entrega o stream de status de um pagamento: um frame inicial com o
// snapshot corrente e, depois, cada evento publicado no canal Redis do
// pagamento, até um status terminal ou a desconexão do cliente
type SSE struct {
	rdb *redis.Client
	log *zap.Logger
}

func NewSSE(rdb *redis.Client, log *zap.Logger) *SSE {
	return &SSE{rdb: rdb, log: log}
}

// Serve mantém a conexão aberta relayando eventos do pagamento.
// snapshot é o status corrente lido do banco antes da assinatura.
func (s *SSE) Serve(w http.ResponseWriter, r *http.Request, snapshot events.PaymentStatus) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sseConnections.Inc()
	defer sseConnections.Dec()

	ctx := r.Context()

	// assina antes do snapshot para não perder eventos na janela
	sub := s.rdb.Subscribe(ctx, topics.PaymentChannel(snapshot.PaymentID))
	defer sub.Close()
	ch := sub.Channel()

	writeFrame(w, snapshot)
	flusher.Flush()
	sseMessagesSent.Inc()

	if status.PaymentTerminal(snapshot.Status) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev events.PaymentStatus
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				s.log.Warn("sse relay unmarshal", zap.Error(err))
				continue
			}
			writeFrame(w, ev)
			flusher.Flush()
			sseMessagesSent.Inc()

			if status.PaymentTerminal(ev.Status) {
				return
			}
		}
	}
}

func writeFrame(w http.ResponseWriter, ev events.PaymentStatus) {
	b, _ := json.Marshal(ev)
	fmt.Fprintf(w, "data: %s\n\n", b)
}
