package telegram

import (
	"path/filepath"
	"testing"

	"github.com/Kai-0601/TelegramBot/internal/dispatch"
	"github.com/Kai-0601/TelegramBot/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newKV(t *testing.T, dir string) store.Store {
	t.Helper()
	kv, err := store.NewFileStore(dir, zap.NewNop())
	require.NoError(t, err)
	return kv
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	subs, err := NewSubscribers(newKV(t, t.TempDir()), zap.NewNop())
	require.NoError(t, err)

	added, err := subs.Subscribe(100)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = subs.Subscribe(100)
	require.NoError(t, err)
	assert.False(t, added, "second subscribe must be a no-op")

	_, err = subs.Subscribe(7)
	require.NoError(t, err)
	assert.Equal(t, []dispatch.Subscriber{7, 100}, subs.Current())

	removed, err := subs.Unsubscribe(100)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = subs.Unsubscribe(100)
	require.NoError(t, err)
	assert.False(t, removed)

	assert.Equal(t, []dispatch.Subscriber{7}, subs.Current())
}

func TestSubscribersSurviveRestart(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	subs, err := NewSubscribers(newKV(t, dir), zap.NewNop())
	require.NoError(t, err)
	_, err = subs.Subscribe(42)
	require.NoError(t, err)
	_, err = subs.Subscribe(99)
	require.NoError(t, err)

	reborn, err := NewSubscribers(newKV(t, dir), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []dispatch.Subscriber{42, 99}, reborn.Current())
}
