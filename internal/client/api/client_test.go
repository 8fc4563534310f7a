package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/tour-booking-client-poc/internal/client/store"
	"github.com/radieske/tour-booking-client-poc/pkg/contracts/dto"
)

func envelopeJSON(t *testing.T, data any, message string, code int) []byte {
	t.Helper()
	raw := json.RawMessage("null")
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			t.Fatalf("marshal data: %v", err)
		}
		raw = b
	}
	b, err := json.Marshal(dto.Envelope{Data: raw, Message: message, StatusCode: code})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return b
}

func seedSession(t *testing.T, st store.Store, access, refresh string) {
	t.Helper()
	for key, val := range map[string]string{
		store.KeyAccessToken:  access,
		store.KeyRefreshToken: refresh,
	} {
		raw, _ := json.Marshal(val)
		if err := st.Set(key, raw); err != nil {
			t.Fatalf("seed %s: %v", key, err)
		}
	}
}

func TestDoAttachesBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write(envelopeJSON(t, map[string]string{"ok": "1"}, "SUCCESS", 200))
	}))
	defer srv.Close()

	st := store.NewMemStore()
	seedSession(t, st, "tok-abc", "ref-abc")
	c := NewClient(srv.URL, st, zap.NewNop())

	env, err := c.Do(context.Background(), http.MethodGet, "/bookings/x", nil)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if gotAuth != "Bearer tok-abc" {
		t.Fatalf("Authorization = %q, want %q", gotAuth, "Bearer tok-abc")
	}
	if env.Message != "SUCCESS" {
		t.Fatalf("message = %q", env.Message)
	}
}

func TestDoRefreshesOnceAndReplays(t *testing.T) {
	var refreshCalls, protectedCalls int32

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh-token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshCalls, 1)
		var req dto.RefreshRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.RefreshToken != "ref-ok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write(envelopeJSON(t, dto.RefreshResponse{AccessToken: "tok-fresh"}, "SUCCESS", 200))
	})
	mux.HandleFunc("/bookings/x", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&protectedCalls, 1)
		if r.Header.Get("Authorization") != "Bearer tok-fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write(envelopeJSON(t, nil, "token expired", 401))
			return
		}
		_, _ = w.Write(envelopeJSON(t, map[string]string{"id": "x"}, "SUCCESS", 200))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	st := store.NewMemStore()
	seedSession(t, st, "tok-stale", "ref-ok")
	c := NewClient(srv.URL, st, zap.NewNop())

	env, err := c.Do(context.Background(), http.MethodGet, "/bookings/x", nil)
	if err != nil {
		t.Fatalf("Do after refresh: %v", err)
	}
	if env.Message != "SUCCESS" {
		t.Fatalf("message = %q", env.Message)
	}
	if n := atomic.LoadInt32(&refreshCalls); n != 1 {
		t.Fatalf("refresh calls = %d, want 1", n)
	}
	if n := atomic.LoadInt32(&protectedCalls); n != 2 {
		t.Fatalf("protected calls = %d, want 2 (original + replay)", n)
	}
	if got := c.AccessToken(); got != "tok-fresh" {
		t.Fatalf("access token after refresh = %q", got)
	}
}

func TestDoPropagatesOriginal401WhenRefreshFails(t *testing.T) {
	var logoutCalls int32

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh-token", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write(envelopeJSON(t, nil, "invalid refresh token", 401))
	})
	mux.HandleFunc("/bookings/x", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write(envelopeJSON(t, nil, "token expired", 401))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	st := store.NewMemStore()
	seedSession(t, st, "tok-stale", "ref-bad")
	c := NewClient(srv.URL, st, zap.NewNop(),
		WithLogoutCallback(func() { atomic.AddInt32(&logoutCalls, 1) }),
	)

	_, err := c.Do(context.Background(), http.MethodGet, "/bookings/x", nil)

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized || apiErr.Message != "token expired" {
		t.Fatalf("got %d %q, want original 401", apiErr.StatusCode, apiErr.Message)
	}
	if n := atomic.LoadInt32(&logoutCalls); n != 1 {
		t.Fatalf("logout callbacks = %d, want 1", n)
	}
	if c.AccessToken() != "" {
		t.Fatal("access token should be cleared after failed refresh")
	}
}

func TestConcurrentRequestsShareOneRefresh(t *testing.T) {
	var refreshCalls int32

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh-token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshCalls, 1)
		// segura o refresh em voo para os concorrentes encostarem nele
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write(envelopeJSON(t, dto.RefreshResponse{AccessToken: "tok-fresh"}, "SUCCESS", 200))
	})
	mux.HandleFunc("/bookings/x", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write(envelopeJSON(t, nil, "token expired", 401))
			return
		}
		_, _ = w.Write(envelopeJSON(t, nil, "SUCCESS", 200))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	st := store.NewMemStore()
	seedSession(t, st, "tok-stale", "ref-ok")
	c := NewClient(srv.URL, st, zap.NewNop())

	const workers = 5
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Do(context.Background(), http.MethodGet, "/bookings/x", nil)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("worker %d: %v", i, err)
		}
	}
	if n := atomic.LoadInt32(&refreshCalls); n != 1 {
		t.Fatalf("refresh calls = %d, want 1 (coalesced)", n)
	}
}

func TestCallRejectsDenialMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(envelopeJSON(t, nil, "Quá thời hạn hủy", 200))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, store.NewMemStore(), zap.NewNop())

	_, err := Call[dto.RefundQuote](context.Background(), c, http.MethodGet, "/bookings/getPriceBookingCancel/b1", nil)

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if apiErr.Message != "Quá thời hạn hủy" {
		t.Fatalf("message = %q", apiErr.Message)
	}
}

func TestCallDecodesData(t *testing.T) {
	amount := int64(240000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(envelopeJSON(t, dto.RefundQuote{PriceToRefund: &amount}, "SUCCESS", 200))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, store.NewMemStore(), zap.NewNop())

	quote, err := Call[dto.RefundQuote](context.Background(), c, http.MethodGet, "/bookings/getPriceBookingCancel/b1", nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if quote.PriceToRefund == nil || *quote.PriceToRefund != amount {
		t.Fatalf("quote = %+v", quote)
	}
}

func TestLoginPersistsTokenPair(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req dto.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Email != "user@example.com" || req.Password != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write(envelopeJSON(t, nil, "invalid credentials", 401))
			return
		}
		_, _ = w.Write(envelopeJSON(t, dto.TokenPair{AccessToken: "a1", RefreshToken: "r1"}, "SUCCESS", 200))
	}))
	defer srv.Close()

	st := store.NewMemStore()
	c := NewClient(srv.URL, st, zap.NewNop())

	if err := c.Login(context.Background(), "user@example.com", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got := c.AccessToken(); got != "a1" {
		t.Fatalf("access token = %q", got)
	}

	c.Logout()
	if c.AccessToken() != "" {
		t.Fatal("Logout should clear the session")
	}
}
