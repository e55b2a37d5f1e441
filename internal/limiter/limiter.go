// Package limiter implements the failed-login lockout: a sliding-window
// failure counter per identifier (email), with a fixed-duration lockout
// once the attempt budget is exhausted.  State lives behind the Store
// interface so a multi-process deployment can point it at Redis while
// tests and degraded startups use the in-memory store.
package limiter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bravethingsbooks/platform-api/internal/config"
)

// Store is the minimal key/value contract the limiter needs.  Get reports
// found=false for missing keys; Set applies a TTL after which the entry
// may vanish.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Result is the outcome of a lockout check.
type Result struct {
	Allowed    bool
	Message    string
	LockoutEnd *time.Time
}

// state is the serialized per-identifier record.
type state struct {
	Count       int        `json:"count"`
	WindowStart time.Time  `json:"window_start"`
	LockoutEnd  *time.Time `json:"lockout_end,omitempty"`
}

// Limiter counts authentication failures per identifier.
type Limiter struct {
	store Store
	cfg   config.LockoutConfig
	now   func() time.Time // overridable in tests
}

func New(store Store, cfg config.LockoutConfig) *Limiter {
	return &Limiter{store: store, cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
}

func (l *Limiter) key(identifier string) string {
	return "lockout:" + identifier
}

func (l *Limiter) load(ctx context.Context, identifier string) (state, error) {
	var st state
	b, found, err := l.store.Get(ctx, l.key(identifier))
	if err != nil || !found {
		return st, err
	}
	if err := json.Unmarshal(b, &st); err != nil {
		// Corrupt state: treat as empty rather than locking the user out.
		return state{}, nil
	}
	return st, nil
}

func (l *Limiter) save(ctx context.Context, identifier string, st state) error {
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	ttl := l.cfg.Window
	if l.cfg.Lockout > ttl {
		ttl = l.cfg.Lockout
	}
	return l.store.Set(ctx, l.key(identifier), b, ttl+time.Minute)
}

// Check reports whether the identifier may attempt authentication.  A store
// error degrades open (the request proceeds); the lockout is defense in
// depth, not the only control on the login path.
func (l *Limiter) Check(ctx context.Context, identifier string) Result {
	st, err := l.load(ctx, identifier)
	if err != nil {
		return Result{Allowed: true}
	}
	now := l.now()
	if st.LockoutEnd != nil && now.Before(*st.LockoutEnd) {
		end := *st.LockoutEnd
		return Result{
			Allowed:    false,
			Message:    fmt.Sprintf("too many failed attempts, locked until %s", end.Format(time.RFC3339)),
			LockoutEnd: &end,
		}
	}
	return Result{Allowed: true}
}

// RecordFailure increments the failure count for the identifier, resetting
// the window if it has elapsed, and sets the lockout once the count reaches
// MaxAttempts.  Concurrent callers can under- or over-count by the degree
// of true parallelism; that imprecision is accepted.
func (l *Limiter) RecordFailure(ctx context.Context, identifier string) {
	st, err := l.load(ctx, identifier)
	if err != nil {
		return
	}
	now := l.now()
	if st.WindowStart.IsZero() || now.Sub(st.WindowStart) > l.cfg.Window {
		st = state{WindowStart: now, LockoutEnd: st.LockoutEnd}
	}
	st.Count++
	if st.Count >= l.cfg.MaxAttempts {
		end := now.Add(l.cfg.Lockout)
		st.LockoutEnd = &end
	}
	_ = l.save(ctx, identifier, st)
}

// Reset clears all state for the identifier.  Called after a successful
// authentication.
func (l *Limiter) Reset(ctx context.Context, identifier string) {
	_ = l.store.Delete(ctx, l.key(identifier))
}
