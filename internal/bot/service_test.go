package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Kai-0601/TelegramBot/internal/dispatch"
	"github.com/Kai-0601/TelegramBot/internal/render"
	"github.com/Kai-0601/TelegramBot/internal/scheduler"
	"github.com/Kai-0601/TelegramBot/internal/snapshot"
	"github.com/Kai-0601/TelegramBot/internal/store"
	"github.com/Kai-0601/TelegramBot/internal/telegram"
	"github.com/Kai-0601/TelegramBot/internal/watch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSender struct {
	mu       sync.Mutex
	messages []string
}

func (s *recordingSender) Send(_ context.Context, _ dispatch.Subscriber, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, message)
	return nil
}

func (s *recordingSender) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...)
}

func newTestRunner(t *testing.T) (*Runner, *recordingSender) {
	t.Helper()
	logger := zap.NewNop()

	kv, err := store.NewFileStore(t.TempDir(), logger)
	require.NoError(t, err)

	registry, err := watch.NewRegistry(kv, logger)
	require.NoError(t, err)

	subscribers, err := telegram.NewSubscribers(kv, logger)
	require.NoError(t, err)

	sender := &recordingSender{}
	return &Runner{
		logger:      logger,
		kv:          kv,
		registry:    registry,
		snapshots:   snapshot.NewStore(kv, logger),
		renderer:    render.NewRenderer(time.UTC),
		dispatcher:  dispatch.NewDispatcher(sender, 1000, logger),
		subscribers: subscribers,
	}, sender
}

func TestServiceWhaleLifecycle(t *testing.T) {
	r, _ := newTestRunner(t)
	svc := r.Service()

	added, err := svc.AddWhale("0xabc", "whale-A")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = svc.AddWhale("0xabc", "whale-A")
	require.NoError(t, err)
	assert.False(t, added)

	whales := svc.ListWhales()
	require.Len(t, whales, 1)
	assert.Equal(t, "whale-A", whales[0].Name())

	removed, err := svc.RemoveWhale("0xabc")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Empty(t, svc.ListWhales())
}

func TestServiceRejectsEmptyInput(t *testing.T) {
	r, _ := newTestRunner(t)
	svc := r.Service()

	_, err := svc.AddWhale("  ", "x")
	assert.Error(t, err)

	_, err = svc.AddFeedAccount("@")
	assert.Error(t, err)
}

func TestServiceFeedAccountStripsHandlePrefix(t *testing.T) {
	r, _ := newTestRunner(t)
	svc := r.Service()

	added, err := svc.AddFeedAccount("@trader_joe")
	require.NoError(t, err)
	assert.True(t, added)

	accounts := r.registry.List(watch.DomainPostFeed)
	require.Len(t, accounts, 1)
	assert.Equal(t, "trader_joe", accounts[0].ID)

	removed, err := svc.RemoveFeedAccount("trader_joe")
	require.NoError(t, err)
	assert.True(t, removed)
}

func TestRemoveWhaleForgetsSnapshot(t *testing.T) {
	r, _ := newTestRunner(t)
	svc := r.Service()

	_, err := svc.AddWhale("0xabc", "whale-A")
	require.NoError(t, err)

	snap := watch.NewSnapshot(watch.DomainPositions, time.Now())
	snap.Records["BTC"] = watch.Record{Margin: 1000}
	require.NoError(t, r.snapshots.Commit("0xabc", snap))

	_, err = svc.RemoveWhale("0xabc")
	require.NoError(t, err)

	prior, err := r.snapshots.Get(watch.DomainPositions, "0xabc")
	require.NoError(t, err)
	assert.Nil(t, prior, "re-adding the whale must start from a clean baseline")
}

type fakeFetcher struct {
	snaps map[string]watch.Snapshot
	err   error
}

func (f *fakeFetcher) FetchSnapshot(_ context.Context, id string) (watch.Snapshot, error) {
	if f.err != nil {
		return watch.Snapshot{}, f.err
	}
	return f.snaps[id], nil
}

func TestSlotSummaryWaitsForHealthyFetch(t *testing.T) {
	r, sender := newTestRunner(t)
	ctx := context.Background()

	// Every minute is inside a window, so both poll calls below see a due slot.
	r.slotGate = scheduler.NewSlotGate(scheduler.SlotPolicy{
		Every:    time.Minute,
		Window:   time.Minute,
		Location: time.UTC,
	}, zap.NewNop())

	_, err := r.subscribers.Subscribe(100)
	require.NoError(t, err)
	_, err = r.Service().AddWhale("0xabc", "whale-A")
	require.NoError(t, err)

	// Every fetch fails: no summary, and the slot must stay unserved.
	r.positions = &fakeFetcher{err: errors.New("upstream down")}
	require.NoError(t, r.pollPositions(ctx))
	assert.Empty(t, sender.all())

	// The next tick recovers and still serves the window.
	snap := watch.NewSnapshot(watch.DomainPositions, time.Now())
	snap.Records["BTC"] = watch.Record{Size: 1, Margin: 1000, EntryPrice: 60000, Leverage: 10}
	r.positions = &fakeFetcher{snaps: map[string]watch.Snapshot{"0xabc": snap}}
	require.NoError(t, r.pollPositions(ctx))

	messages := sender.all()
	require.NotEmpty(t, messages)
	assert.Contains(t, messages[len(messages)-1], "固定通知")
}

func TestDiffAndNotifyPipeline(t *testing.T) {
	r, sender := newTestRunner(t)
	ctx := context.Background()

	_, err := r.subscribers.Subscribe(100)
	require.NoError(t, err)
	subs := r.subscribers.Current()

	entity := watch.MonitoredEntity{Domain: watch.DomainPositions, ID: "0xabc", DisplayName: "whale-A"}

	first := watch.NewSnapshot(watch.DomainPositions, time.Now())
	first.Records["BTC"] = watch.Record{Size: 1, Margin: 1000, EntryPrice: 60000}
	require.NoError(t, r.diffAndNotify(ctx, entity, first, subs))
	assert.Empty(t, sender.all(), "baseline observation must be silent")

	second := watch.NewSnapshot(watch.DomainPositions, time.Now())
	second.Records["BTC"] = watch.Record{Size: 1.2, Margin: 1200, EntryPrice: 61000}
	require.NoError(t, r.diffAndNotify(ctx, entity, second, subs))

	messages := sender.all()
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "whale-A")
	assert.Contains(t, messages[0], "加倉")
}
