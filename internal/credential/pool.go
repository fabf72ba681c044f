// internal/credential/pool.go
package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Kai-0601/TelegramBot/internal/store"
	"go.uber.org/zap"
)

// ErrExhausted means every credential in the pool is currently marked failed.
// Callers treat it as "capability temporarily unavailable" and skip the cycle;
// the daily reset or the next tick gets another chance.
var ErrExhausted = errors.New("credential: pool exhausted")

// DefaultResetInterval is how long a failed credential stays benched before the
// lazy reset forgives it.
const DefaultResetInterval = 24 * time.Hour

// Credential is one interchangeable value (API token, RPC endpoint) inside a pool.
type Credential struct {
	Value    string     `json:"value"`
	Failed   bool       `json:"failed"`
	FailedAt *time.Time `json:"failed_at,omitempty"`
}

// Pool rotates across redundant credentials for a single upstream capability.
// Pools are never shared across capabilities. All state transitions are persisted
// so a restart does not forgive rate-limited credentials before the reset window
// elapses.
type Pool struct {
	mu         sync.Mutex
	name       string
	creds      []*Credential
	current    int
	lastReset  time.Time
	resetEvery time.Duration
	kv         store.Store
	logger     *zap.Logger
}

type poolState struct {
	Current   int                   `json:"current"`
	LastReset time.Time             `json:"last_reset"`
	Failed    map[string]*time.Time `json:"failed"`
}

// NewPool builds a pool from the configured values and restores any persisted
// failure state. An empty value list is a configuration error: the capability
// cannot function at all without at least one credential.
func NewPool(name string, values []string, kv store.Store, logger *zap.Logger) (*Pool, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("credential: pool %q has no credentials configured", name)
	}

	p := &Pool{
		name:       name,
		creds:      make([]*Credential, 0, len(values)),
		lastReset:  time.Now().UTC(),
		resetEvery: DefaultResetInterval,
		kv:         kv,
		logger:     logger.Named("credentials").With(zap.String("pool", name)),
	}
	for _, v := range values {
		p.creds = append(p.creds, &Credential{Value: v})
	}

	if err := p.restore(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pool) Name() string { return p.name }

func (p *Pool) Size() int { return len(p.creds) }

// GetUsable returns the first non-failed credential scanning forward from the
// current index, wrapping once. The lazy daily reset runs first, so a pool that
// exhausted yesterday heals on access without a separate timer.
func (p *Pool) GetUsable(now time.Time) (*Credential, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.maybeResetLocked(now)

	for i := 0; i < len(p.creds); i++ {
		idx := (p.current + i) % len(p.creds)
		if !p.creds[idx].Failed {
			if idx != p.current {
				p.current = idx
				p.persistLocked()
			}
			return p.creds[idx], true
		}
	}
	return nil, false
}

// MarkFailed benches a credential after an upstream rate-limit rejection.
func (p *Pool) MarkFailed(cred *Credential, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ts := now.UTC()
	cred.Failed = true
	cred.FailedAt = &ts
	p.logger.Warn("Credential marked failed", zap.Time("failed_at", ts))
	p.persistLocked()
}

// Advance moves the rotation to the next slot regardless of its state.
func (p *Pool) Advance() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = (p.current + 1) % len(p.creds)
	p.persistLocked()
}

// MaybeReset clears all failure flags once the reset window has elapsed. Returns
// whether a reset happened. Also invoked by the daily maintenance tick.
func (p *Pool) MaybeReset(now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maybeResetLocked(now)
}

func (p *Pool) maybeResetLocked(now time.Time) bool {
	if now.Sub(p.lastReset) < p.resetEvery {
		return false
	}
	for _, c := range p.creds {
		c.Failed = false
		c.FailedAt = nil
	}
	p.lastReset = now.UTC()
	p.logger.Info("Credential pool reset", zap.Int("size", len(p.creds)))
	p.persistLocked()
	return true
}

// Do runs op with a usable credential, rotating on rate-limit-class failures.
// The retry loop is bounded by the pool size, so an upstream that rejects every
// credential terminates with ErrExhausted instead of recursing forever.
func (p *Pool) Do(ctx context.Context, op func(cred *Credential) error) error {
	for attempt := 0; attempt < len(p.creds); attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		cred, ok := p.GetUsable(time.Now())
		if !ok {
			return ErrExhausted
		}

		err := op(cred)
		if err == nil {
			return nil
		}
		if !IsRateLimited(err) {
			return err
		}

		p.logger.Warn("Rate limited, rotating credential", zap.Error(err), zap.Int("attempt", attempt+1))
		p.MarkFailed(cred, time.Now())
		p.Advance()
	}
	return ErrExhausted
}

func (p *Pool) restore() error {
	if p.kv == nil {
		return nil
	}
	data, ok, err := p.kv.Load(p.stateKey())
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	var st poolState
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("credential: decode pool %q state: %w", p.name, err)
	}

	if st.Current >= 0 && st.Current < len(p.creds) {
		p.current = st.Current
	}
	if !st.LastReset.IsZero() {
		p.lastReset = st.LastReset
	}
	for _, c := range p.creds {
		if at, failed := st.Failed[c.Value]; failed {
			c.Failed = true
			c.FailedAt = at
		}
	}
	return nil
}

func (p *Pool) persistLocked() {
	if p.kv == nil {
		return
	}

	st := poolState{Current: p.current, LastReset: p.lastReset, Failed: make(map[string]*time.Time)}
	for _, c := range p.creds {
		if c.Failed {
			st.Failed[c.Value] = c.FailedAt
		}
	}

	data, err := json.Marshal(st)
	if err == nil {
		err = p.kv.Save(p.stateKey(), data)
	}
	if err != nil {
		// Losing pool state degrades to forgiving credentials early on restart,
		// which the reset would have done within a day anyway.
		p.logger.Error("Failed to persist pool state", zap.Error(err))
	}
}

func (p *Pool) stateKey() string {
	return "credentials/" + p.name
}

// RateLimitError marks an upstream rejection as rate-limit-class, which makes the
// pool rotate instead of giving up.
type RateLimitError struct {
	Status int
	Msg    string
}

func (e *RateLimitError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("rate limited (%d): %s", e.Status, e.Msg)
	}
	return fmt.Sprintf("rate limited (%d)", e.Status)
}

// IsRateLimited reports whether an error should rotate the pool. Upstreams that
// don't use 429 tend to say so in the message, hence the pattern match.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests")
}
