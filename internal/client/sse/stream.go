package sse

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/radieske/tour-booking-client-poc/pkg/contracts/events"
)

// Stream consome um endpoint Server-Sent-Events de status de pagamento.
// Canal unidirecional servidor→cliente; sem reconexão automática: um erro
// de leitura encerra o stream e é reportado uma única vez em Errors.
type Stream struct {
	events chan events.PaymentStatus
	errs   chan error

	cancel    context.CancelFunc
	closeOnce sync.Once
	closed    chan struct{}
}

// Open abre a assinatura SSE autenticada e inicia o loop de leitura.
func Open(ctx context.Context, httpClient *http.Client, url, bearerToken string, log *zap.Logger) (*Stream, error) {
	ctx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+bearerToken)
	}

	res, err := httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open sse stream: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		res.Body.Close()
		cancel()
		return nil, fmt.Errorf("sse stream http %d", res.StatusCode)
	}

	s := &Stream{
		events: make(chan events.PaymentStatus, 8),
		errs:   make(chan error, 1),
		cancel: cancel,
		closed: make(chan struct{}),
	}

	go s.readLoop(res, log)

	return s, nil
}

// Events entrega cada mensagem de status recebida do servidor
func (s *Stream) Events() <-chan events.PaymentStatus { return s.events }

// Errors reporta no máximo um erro de conexão; fechado junto com o stream
func (s *Stream) Errors() <-chan error { return s.errs }

// Close encerra a assinatura; chamadas repetidas são no-op
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.cancel()
	})
}

func (s *Stream) readLoop(res *http.Response, log *zap.Logger) {
	defer res.Body.Close()
	defer close(s.events)

	scanner := bufio.NewScanner(res.Body)
	var data []byte

	for scanner.Scan() {
		line := scanner.Bytes()

		// frame termina numa linha em branco
		if len(bytes.TrimSpace(line)) == 0 {
			if len(data) > 0 {
				s.deliver(data, log)
				data = nil
			}
			continue
		}
		if rest, ok := bytes.CutPrefix(line, []byte("data:")); ok {
			data = append(data, bytes.TrimSpace(rest)...)
		}
		// campos "event:", "id:" e comentários são ignorados
	}

	if err := scanner.Err(); err != nil {
		select {
		case <-s.closed:
			// fechamento local; não é erro de conexão
		default:
			s.errs <- err
		}
	}
}

func (s *Stream) deliver(data []byte, log *zap.Logger) {
	var ev events.PaymentStatus
	if err := json.Unmarshal(data, &ev); err != nil {
		log.Warn("invalid sse message", zap.Error(err))
		return
	}
	select {
	case s.events <- ev:
	case <-s.closed:
	}
}
