package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/tour-booking-client-poc/internal/client/store"
	"github.com/radieske/tour-booking-client-poc/pkg/contracts/dto"
)

const successMessage = "SUCCESS"

// Client fala com o backend anexando o bearer token da sessão persistida.
// Num 401 com refresh token disponível faz exatamente uma tentativa de
// refresh e reexecuta a requisição original uma única vez; refreshes
// concorrentes são coalescidos numa só chamada em voo.
type Client struct {
	baseURL  string
	http     *http.Client
	store    store.Store
	log      *zap.Logger
	onLogout func()

	refreshMu sync.Mutex
	inflight  *refreshCall
}

// refreshCall representa um refresh em voo compartilhado entre requisições
type refreshCall struct {
	done chan struct{}
	err  error
}

type Option func(*Client)

// WithHTTPClient troca o *http.Client (timeout, transporte de teste)
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogoutCallback registra o efeito colateral disparado quando o refresh falha
func WithLogoutCallback(fn func()) Option {
	return func(c *Client) { c.onLogout = fn }
}

func NewClient(baseURL string, st store.Store, log *zap.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:  baseURL,
		http:     &http.Client{Timeout: 10 * time.Second},
		store:    st,
		log:      log,
		onLogout: func() {},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL expõe a URL base para montar recursos derivados (QR, stream SSE)
func (c *Client) BaseURL() string { return c.baseURL }

// HTTPClient expõe o transporte para consumidores de stream
func (c *Client) HTTPClient() *http.Client { return c.http }

// AccessToken lê o access token da sessão persistida ("" quando ausente)
func (c *Client) AccessToken() string {
	return c.tokenFrom(store.KeyAccessToken)
}

func (c *Client) refreshToken() string {
	return c.tokenFrom(store.KeyRefreshToken)
}

func (c *Client) tokenFrom(key string) string {
	raw, ok, err := c.store.Get(key)
	if err != nil || !ok {
		return ""
	}
	var tok string
	if json.Unmarshal(raw, &tok) != nil {
		return ""
	}
	return tok
}

// Login autentica e persiste o par de tokens da sessão
func (c *Client) Login(ctx context.Context, email, password string) error {
	env, err := c.Do(ctx, http.MethodPost, "/auth/login", dto.LoginRequest{Email: email, Password: password})
	if err != nil {
		return err
	}
	var pair dto.TokenPair
	if err := env.Decode(&pair); err != nil {
		return fmt.Errorf("decode login response: %w", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return &Error{StatusCode: env.StatusCode, Message: "login response without tokens"}
	}
	if err := c.saveToken(store.KeyAccessToken, pair.AccessToken); err != nil {
		return err
	}
	return c.saveToken(store.KeyRefreshToken, pair.RefreshToken)
}

// Logout descarta a sessão persistida
func (c *Client) Logout() {
	_ = c.store.Delete(store.KeyAccessToken)
	_ = c.store.Delete(store.KeyRefreshToken)
}

func (c *Client) saveToken(key, value string) error {
	raw, _ := json.Marshal(value)
	return c.store.Set(key, raw)
}

// Do executa uma chamada autenticada e devolve o envelope do backend.
// Respostas 2xx retornam o envelope mesmo quando message é uma negação de
// negócio; cabe ao chamador interpretar. Erros HTTP viram *Error.
func (c *Client) Do(ctx context.Context, method, path string, body any) (dto.Envelope, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return dto.Envelope{}, fmt.Errorf("marshal request body: %w", err)
		}
	}

	env, err := c.attempt(ctx, method, path, payload)

	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized && c.refreshToken() != "" {
		// no máximo um refresh por requisição; a falha propaga o 401 original
		if rerr := c.refreshSession(ctx); rerr != nil {
			return dto.Envelope{}, err
		}
		return c.attempt(ctx, method, path, payload)
	}

	return env, err
}

func (c *Client) attempt(ctx context.Context, method, path string, payload []byte) (dto.Envelope, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return dto.Envelope{}, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.AccessToken(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return dto.Envelope{}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return dto.Envelope{}, fmt.Errorf("read response body: %w", err)
	}

	var env dto.Envelope
	_ = json.Unmarshal(raw, &env)

	if res.StatusCode >= 300 {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(res.StatusCode)
		}
		return dto.Envelope{}, &Error{StatusCode: res.StatusCode, Message: msg}
	}

	if env.StatusCode == 0 {
		env.StatusCode = res.StatusCode
	}
	return env, nil
}

// refreshSession coalesce refreshes concorrentes: o primeiro chamador executa,
// os demais aguardam o resultado da mesma chamada em voo
func (c *Client) refreshSession(ctx context.Context) error {
	c.refreshMu.Lock()
	if call := c.inflight; call != nil {
		c.refreshMu.Unlock()
		select {
		case <-call.done:
			return call.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	call := &refreshCall{done: make(chan struct{})}
	c.inflight = call
	c.refreshMu.Unlock()

	call.err = c.doRefresh(ctx)

	c.refreshMu.Lock()
	c.inflight = nil
	c.refreshMu.Unlock()
	close(call.done)
	return call.err
}

func (c *Client) doRefresh(ctx context.Context) error {
	refreshAttempts.Inc()

	token := c.refreshToken()
	if token == "" {
		return ErrNoSession
	}

	// chamada direta, fora do Do: o refresh nunca tenta se auto-refrescar
	env, err := c.attempt(ctx, http.MethodPost, "/auth/refresh-token", mustJSON(dto.RefreshRequest{RefreshToken: token}))
	if err != nil {
		refreshFailures.Inc()
		c.log.Warn("token refresh failed", zap.Error(err))
		c.Logout()
		c.onLogout()
		return err
	}

	var out dto.RefreshResponse
	if derr := env.Decode(&out); derr != nil || out.AccessToken == "" {
		refreshFailures.Inc()
		c.Logout()
		c.onLogout()
		return &Error{StatusCode: env.StatusCode, Message: "refresh response without access token"}
	}

	return c.saveToken(store.KeyAccessToken, out.AccessToken)
}

func mustJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}

// Call executa a chamada e exige envelope de sucesso, decodificando data.
// Qualquer message diferente de SUCCESS vira *Error com o texto do backend.
func Call[T any](ctx context.Context, c *Client, method, path string, body any) (T, error) {
	var out T
	env, err := c.Do(ctx, method, path, body)
	if err != nil {
		return out, err
	}
	if env.Message != "" && env.Message != successMessage {
		return out, &Error{StatusCode: env.StatusCode, Message: env.Message}
	}
	if err := env.Decode(&out); err != nil {
		return out, fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return out, nil
}
