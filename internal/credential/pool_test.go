package credential

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Kai-0601/TelegramBot/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newPool(t *testing.T, values ...string) *Pool {
	t.Helper()
	p, err := NewPool("test", values, nil, zap.NewNop())
	require.NoError(t, err)
	return p
}

func TestEmptyPoolIsConfigurationError(t *testing.T) {
	_, err := NewPool("feeds", nil, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestRotation(t *testing.T) {
	p := newPool(t, "a", "b", "c")
	now := time.Now()

	cred, ok := p.GetUsable(now)
	require.True(t, ok)
	assert.Equal(t, "a", cred.Value)

	p.MarkFailed(cred, now)
	p.Advance()

	cred, ok = p.GetUsable(now)
	require.True(t, ok)
	assert.Equal(t, "b", cred.Value)
}

func TestGetUsableSkipsFailed(t *testing.T) {
	p := newPool(t, "a", "b")
	now := time.Now()

	first, _ := p.GetUsable(now)
	p.MarkFailed(first, now)

	cred, ok := p.GetUsable(now)
	require.True(t, ok)
	assert.Equal(t, "b", cred.Value)
}

func TestExhaustionAndRecovery(t *testing.T) {
	p := newPool(t, "a", "b")
	now := time.Now()

	for _, c := range []int{0, 1} {
		_ = c
		cred, ok := p.GetUsable(now)
		require.True(t, ok)
		p.MarkFailed(cred, now)
		p.Advance()
	}

	_, ok := p.GetUsable(now)
	assert.False(t, ok, "both credentials failed")

	// 24h later the lazy reset forgives everything.
	later := now.Add(24*time.Hour + time.Minute)
	assert.True(t, p.MaybeReset(later))

	cred, ok := p.GetUsable(later)
	require.True(t, ok)
	assert.False(t, cred.Failed)
}

func TestLazyResetOnAccess(t *testing.T) {
	p := newPool(t, "only")
	now := time.Now()

	cred, _ := p.GetUsable(now)
	p.MarkFailed(cred, now)

	_, ok := p.GetUsable(now.Add(time.Hour))
	assert.False(t, ok)

	// No explicit MaybeReset: GetUsable heals the pool itself.
	_, ok = p.GetUsable(now.Add(25 * time.Hour))
	assert.True(t, ok)
}

func TestDoRotatesOnRateLimit(t *testing.T) {
	p := newPool(t, "a", "b", "c")

	var tried []string
	err := p.Do(context.Background(), func(cred *Credential) error {
		tried = append(tried, cred.Value)
		if cred.Value != "c" {
			return &RateLimitError{Status: 429}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, tried)
}

func TestDoBoundedByPoolSize(t *testing.T) {
	p := newPool(t, "a", "b")

	calls := 0
	err := p.Do(context.Background(), func(cred *Credential) error {
		calls++
		return &RateLimitError{Status: 429}
	})

	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 2, calls)
}

func TestDoStopsOnNonRateLimitError(t *testing.T) {
	p := newPool(t, "a", "b")

	boom := errors.New("connection refused")
	calls := 0
	err := p.Do(context.Background(), func(cred *Credential) error {
		calls++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)

	// Non-rate-limit failures must not bench the credential.
	_, ok := p.GetUsable(time.Now())
	assert.True(t, ok)
}

func TestStatePersistsAcrossRestart(t *testing.T) {
	kv, err := store.NewFileStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	now := time.Now()

	p1, err := NewPool("feeds", []string{"a", "b"}, kv, zap.NewNop())
	require.NoError(t, err)
	cred, _ := p1.GetUsable(now)
	p1.MarkFailed(cred, now)
	p1.Advance()

	// Restart: a new pool over the same store must not forgive "a".
	p2, err := NewPool("feeds", []string{"a", "b"}, kv, zap.NewNop())
	require.NoError(t, err)
	got, ok := p2.GetUsable(now)
	require.True(t, ok)
	assert.Equal(t, "b", got.Value)
}

func TestIsRateLimited(t *testing.T) {
	assert.True(t, IsRateLimited(&RateLimitError{Status: 429}))
	assert.True(t, IsRateLimited(errors.New("HTTP 429 from upstream")))
	assert.True(t, IsRateLimited(errors.New("Too Many Requests")))
	assert.False(t, IsRateLimited(errors.New("connection reset")))
	assert.False(t, IsRateLimited(nil))
}
