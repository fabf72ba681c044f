package snapshot

import (
	"testing"
	"time"

	"github.com/Kai-0601/TelegramBot/internal/store"
	"github.com/Kai-0601/TelegramBot/internal/watch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	fs, err := store.NewFileStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	return NewStore(fs, zap.NewNop())
}

func TestGetBeforeFirstCommit(t *testing.T) {
	s := newTestStore(t)

	snap, err := s.Get(watch.DomainPositions, "whale-A")
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestCommitAndGet(t *testing.T) {
	s := newTestStore(t)

	fresh := watch.NewSnapshot(watch.DomainPositions, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	fresh.Records["BTC"] = watch.Record{Size: 1.5, Margin: 1000, EntryPrice: 64000}

	require.NoError(t, s.Commit("whale-A", fresh))

	// Mutating the caller's map after commit must not leak into stored state.
	fresh.Records["ETH"] = watch.Record{Margin: 50}

	got, err := s.Get(watch.DomainPositions, "whale-A")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Len(t, got.Records, 1)
	assert.Equal(t, 1000.0, got.Records["BTC"].Margin)
	assert.True(t, got.TakenAt.Equal(fresh.TakenAt))
}

func TestCommitReplacesWholesale(t *testing.T) {
	s := newTestStore(t)

	first := watch.NewSnapshot(watch.DomainPositions, time.Now().UTC())
	first.Records["BTC"] = watch.Record{Margin: 1000}
	require.NoError(t, s.Commit("whale-A", first))

	second := watch.NewSnapshot(watch.DomainPositions, time.Now().UTC())
	second.Records["ETH"] = watch.Record{Margin: 50}
	require.NoError(t, s.Commit("whale-A", second))

	got, err := s.Get(watch.DomainPositions, "whale-A")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Len(t, got.Records, 1)
	_, hasBTC := got.Records["BTC"]
	assert.False(t, hasBTC)
}

func TestForget(t *testing.T) {
	s := newTestStore(t)

	snap := watch.NewSnapshot(watch.DomainPostFeed, time.Now().UTC())
	snap.Records["elon"] = watch.Record{LastPostID: "1900001"}
	require.NoError(t, s.Commit("feed", snap))

	require.NoError(t, s.Forget(watch.DomainPostFeed, "feed"))

	got, err := s.Get(watch.DomainPostFeed, "feed")
	require.NoError(t, err)
	assert.Nil(t, got)
}
