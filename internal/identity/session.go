// Package identity derives and persists the session and pseudo-user
// identifiers stamped on every event envelope. A session is stable for the
// provider's lifetime and resumes across restarts while its age is within
// the session timeout; the pseudo-user identity is durable until the store
// is cleared. Identity is never a reason to fail an emit — when the store
// is unavailable the provider synthesizes in-memory identifiers instead.
package identity

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pagepulse/pagepulse/internal/store"
)

// DefaultSessionTimeout is how long an idle persisted session remains
// resumable.
const DefaultSessionTimeout = 30 * time.Minute

// persistedSession is the durable session record.
type persistedSession struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	LastSeen  time.Time `json:"last_seen"`
}

// persistedUser is the durable pseudo-user record.
type persistedUser struct {
	ID        string    `json:"id"`
	Anonymous bool      `json:"anonymous"`
	CreatedAt time.Time `json:"created_at"`
}

// Provider resolves session and user identifiers against a durable store.
type Provider struct {
	store   store.Store
	timeout time.Duration
	log     *zap.Logger

	mu      sync.Mutex
	session persistedSession
	user    persistedUser
}

// NewProvider creates a provider. A zero timeout uses DefaultSessionTimeout;
// a nil logger is replaced with a nop logger.
func NewProvider(s store.Store, timeout time.Duration, log *zap.Logger) *Provider {
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Provider{store: s, timeout: timeout, log: log}
}

// SessionID returns the session identifier, resuming a persisted session
// when it is still within the timeout and synthesizing a fresh one
// otherwise. The returned value is stable for the provider's lifetime.
func (p *Provider) SessionID() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now().UTC()
	if p.session.ID != "" {
		p.session.LastSeen = now
		p.persistSession()
		return p.session.ID
	}

	if data, err := p.store.Load(store.KeySession); err == nil && data != nil {
		var s persistedSession
		if json.Unmarshal(data, &s) == nil && s.ID != "" && now.Sub(s.LastSeen) < p.timeout {
			s.LastSeen = now
			p.session = s
			p.persistSession()
			return p.session.ID
		}
	}

	p.session = persistedSession{
		ID:        generateID("sess"),
		StartedAt: now,
		LastSeen:  now,
	}
	p.persistSession()
	return p.session.ID
}

// SessionStart returns when the current session began. Establishes a
// session if none exists yet.
func (p *Provider) SessionStart() time.Time {
	p.SessionID()
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session.StartedAt
}

// UserID returns the pseudo-user identifier, preferring the persisted
// identity and synthesizing an anonymous one on first use.
func (p *Provider) UserID() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.user.ID != "" {
		return p.user.ID
	}

	if data, err := p.store.Load(store.KeyUser); err == nil && data != nil {
		var u persistedUser
		if json.Unmarshal(data, &u) == nil && u.ID != "" {
			p.user = u
			return p.user.ID
		}
	}

	p.user = persistedUser{
		ID:        generateID("anon"),
		Anonymous: true,
		CreatedAt: time.Now().UTC(),
	}
	if data, err := json.Marshal(p.user); err == nil {
		if err := p.store.Save(store.KeyUser, data); err != nil {
			p.log.Warn("persist user identity", zap.Error(err))
		}
	}
	return p.user.ID
}

// persistSession writes the session record, logging and swallowing store
// failures. Caller holds the lock.
func (p *Provider) persistSession() {
	data, err := json.Marshal(p.session)
	if err != nil {
		return
	}
	if err := p.store.Save(store.KeySession, data); err != nil {
		p.log.Warn("persist session", zap.Error(err))
	}
}

// generateID builds "<prefix>-<hex>" from crypto/rand, falling back to a
// nanosecond timestamp when the random source is unavailable.
func generateID(prefix string) string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%s-%x", prefix, time.Now().UnixNano())
	}
	return prefix + "-" + hex.EncodeToString(b)
}
