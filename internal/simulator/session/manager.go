package session

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"sync"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionNotFound    = errors.New("session not found")
)

type user struct {
	id       string
	password string
}

type tokenEntry struct {
	userID    string
	expiresAt time.Time
}

// Manager emite e valida os tokens do simulador. Tudo em memória; o
// simulador não persiste sessões.
type Manager struct {
	accessTTL  time.Duration
	refreshTTL time.Duration
	nowFn      func() time.Time

	mu       sync.Mutex
	users    map[string]user       // email -> credencial
	access   map[string]tokenEntry // access token -> sessão
	sessions map[string]tokenEntry // refresh token -> sessão
}

func NewManager(accessTTL, refreshTTL time.Duration) *Manager {
	return &Manager{
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		nowFn:      time.Now,
		users:      make(map[string]user),
		access:     make(map[string]tokenEntry),
		sessions:   make(map[string]tokenEntry),
	}
}

// RegisterUser cadastra uma credencial de demonstração
func (m *Manager) RegisterUser(email, password, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[email] = user{id: userID, password: password}
}

// Login valida a credencial e emite um par access/refresh
func (m *Manager) Login(email, password string) (accessToken, refreshToken, userID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[email]
	if !ok || u.password != password {
		return "", "", "", ErrInvalidCredentials
	}

	now := m.nowFn()
	accessToken = newToken()
	refreshToken = newToken()
	m.access[accessToken] = tokenEntry{userID: u.id, expiresAt: now.Add(m.accessTTL)}
	m.sessions[refreshToken] = tokenEntry{userID: u.id, expiresAt: now.Add(m.refreshTTL)}
	return accessToken, refreshToken, u.id, nil
}

// Refresh troca um refresh token válido por um access token novo
func (m *Manager) Refresh(refreshToken string) (accessToken string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[refreshToken]
	if !ok || m.nowFn().After(sess.expiresAt) {
		delete(m.sessions, refreshToken)
		return "", ErrSessionNotFound
	}

	accessToken = newToken()
	m.access[accessToken] = tokenEntry{userID: sess.userID, expiresAt: m.nowFn().Add(m.accessTTL)}
	return accessToken, nil
}

// Validate resolve um access token para o usuário dono da sessão
func (m *Manager) Validate(accessToken string) (userID string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, found := m.access[accessToken]
	if !found || m.nowFn().After(entry.expiresAt) {
		delete(m.access, accessToken)
		return "", false
	}
	return entry.userID, true
}

func newToken() string {
	buf := make([]byte, 32)
	_, _ = rand.Read(buf)
	return base64.RawURLEncoding.EncodeToString(buf)
}
