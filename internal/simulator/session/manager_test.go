package session

import (
	"testing"
	"time"
)

func TestLoginAndValidate(t *testing.T) {
	m := NewManager(15*time.Minute, 24*time.Hour)
	m.RegisterUser("a@b.c", "pw", "user-1")

	access, refresh, userID, err := m.Login("a@b.c", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if userID != "user-1" {
		t.Fatalf("userID = %q", userID)
	}
	if access == "" || refresh == "" || access == refresh {
		t.Fatalf("token pair = (%q, %q)", access, refresh)
	}

	if got, ok := m.Validate(access); !ok || got != "user-1" {
		t.Fatalf("Validate = (%q, %v)", got, ok)
	}
	if _, ok := m.Validate("nope"); ok {
		t.Fatal("unknown token validated")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	m := NewManager(time.Minute, time.Hour)
	m.RegisterUser("a@b.c", "pw", "user-1")

	if _, _, _, err := m.Login("a@b.c", "wrong"); err != ErrInvalidCredentials {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
	if _, _, _, err := m.Login("nobody@b.c", "pw"); err != ErrInvalidCredentials {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestRefreshIssuesNewAccessToken(t *testing.T) {
	m := NewManager(time.Minute, time.Hour)
	m.RegisterUser("a@b.c", "pw", "user-1")

	access, refresh, _, err := m.Login("a@b.c", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	fresh, err := m.Refresh(refresh)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if fresh == access {
		t.Fatal("Refresh reused the old access token")
	}
	if got, ok := m.Validate(fresh); !ok || got != "user-1" {
		t.Fatalf("Validate(fresh) = (%q, %v)", got, ok)
	}

	if _, err := m.Refresh("bogus"); err != ErrSessionNotFound {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestTokensExpire(t *testing.T) {
	m := NewManager(time.Minute, time.Hour)
	m.RegisterUser("a@b.c", "pw", "user-1")

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.nowFn = func() time.Time { return now }

	access, refresh, _, err := m.Login("a@b.c", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	// access expira, refresh ainda serve
	now = now.Add(2 * time.Minute)
	if _, ok := m.Validate(access); ok {
		t.Fatal("expired access token validated")
	}
	if _, err := m.Refresh(refresh); err != nil {
		t.Fatalf("Refresh within TTL: %v", err)
	}

	// depois do TTL do refresh a sessão morre de vez
	now = now.Add(2 * time.Hour)
	if _, err := m.Refresh(refresh); err != ErrSessionNotFound {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}
