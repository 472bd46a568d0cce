package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cardhall/internal/models"
)

// Session binds a bearer token to a user identity and role. Records are
// immutable once created; they disappear from the store by TTL expiry only.
type Session struct {
	UserID uuid.UUID       `json:"userId"`
	Kind   models.UserKind `json:"kind"`
}

// SessionStore persists sessions under opaque tokens with a fixed TTL.
// A missing or expired token is not an error: Get reports ok=false.
type SessionStore interface {
	Save(ctx context.Context, token string, session Session, ttl time.Duration) error
	Get(ctx context.Context, token string) (Session, bool, error)
}

// DefaultSessionTTL is the absolute session lifetime: 24 hours.
const DefaultSessionTTL = 24 * time.Hour

// DefaultTokenLength matches the entropy budget of the issued tokens:
// 30 alphanumeric characters.
const DefaultTokenLength = 30

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// SessionOption configures a SessionManager instance.
type SessionOption func(*SessionManager)

// WithStore injects a custom SessionStore implementation.
func WithStore(store SessionStore) SessionOption {
	return func(m *SessionManager) {
		m.store = store
	}
}

// WithTokenLength sets the token length used for newly created sessions.
func WithTokenLength(length int) SessionOption {
	return func(m *SessionManager) {
		if length > 0 {
			m.tokenLength = length
		}
	}
}

// SessionManager coordinates session creation and resolution against a
// backing store.
type SessionManager struct {
	store        SessionStore
	ttl          time.Duration
	tokenLength  int
	tokenFactory func(int) (string, error)
}

// NewSessionManager constructs a SessionManager with the provided TTL and
// options. The manager defaults to a 24-hour TTL and an in-memory store for
// local development when no store is supplied.
func NewSessionManager(ttl time.Duration, opts ...SessionOption) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	manager := &SessionManager{
		ttl:          ttl,
		tokenLength:  DefaultTokenLength,
		tokenFactory: generateToken,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(manager)
		}
	}
	if manager.store == nil {
		manager.store = NewMemorySessionStore()
	}
	return manager
}

// Create issues a fresh session token for the provided user and returns the
// token together with its absolute expiry for cookie rendering. Cookie
// framing itself belongs to the caller.
func (m *SessionManager) Create(ctx context.Context, user models.User) (string, time.Time, error) {
	if user.ID == uuid.Nil {
		return "", time.Time{}, ErrInvalidUserID
	}
	token, err := m.tokenFactory(m.tokenLength)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate session token: %w", err)
	}
	session := Session{UserID: user.ID, Kind: user.Kind}
	expiresAt := time.Now().Add(m.ttl).UTC()
	if err := m.store.Save(ctx, token, session, m.ttl); err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Resolve looks up the session for a client-presented token. An empty,
// unknown, or expired token resolves to no session without error; anonymous
// requests are valid. Store failures and undecodable records surface as
// errors.
func (m *SessionManager) Resolve(ctx context.Context, token string) (Session, bool, error) {
	if token == "" {
		return Session{}, false, nil
	}
	return m.store.Get(ctx, token)
}

// Ping verifies the underlying session store is reachable when it exposes a
// ping method.
func (m *SessionManager) Ping(ctx context.Context) error {
	if m == nil || m.store == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if pinger, ok := m.store.(interface{ Ping(context.Context) error }); ok {
		return pinger.Ping(ctx)
	}
	return nil
}

func generateToken(length int) (string, error) {
	// Rejection sampling keeps the draw uniform: bytes at or above the
	// largest multiple of the alphabet size are discarded instead of
	// wrapping around onto the low characters.
	const rejectAbove = byte(256 - 256%len(tokenAlphabet))
	out := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= rejectAbove {
				continue
			}
			out = append(out, tokenAlphabet[int(b)%len(tokenAlphabet)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}

// ErrInvalidUserID is returned when attempting to create a session without a
// user identifier.
var ErrInvalidUserID = errors.New("user id is required")
