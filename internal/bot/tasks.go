// internal/bot/tasks.go
package bot

import (
	"context"
	"time"

	"github.com/Kai-0601/TelegramBot/internal/detector"
	"github.com/Kai-0601/TelegramBot/internal/dispatch"
	"github.com/Kai-0601/TelegramBot/internal/watch"
	"go.uber.org/zap"
)

// pollPositions is the positions cadence: fetch every tracked whale, diff against
// the last committed snapshot, notify on changes, and send the slot-aligned full
// summary when the wall clock enters a new half-hour window. The slot is only
// confirmed once a summary actually went out, so a tick where every fetch failed
// leaves the window open for the next tick.
func (r *Runner) pollPositions(ctx context.Context) error {
	now := time.Now()
	slotLabel, slotDue := r.slotGate.Peek(now)
	subs := r.subscribers.Current()

	summarized := false
	for _, entity := range r.registry.List(watch.DomainPositions) {
		if err := ctx.Err(); err != nil {
			return err
		}

		fresh, err := r.positions.FetchSnapshot(ctx, entity.ID)
		if err != nil {
			// One unreachable whale must not starve the rest; its committed
			// snapshot stays untouched so no phantom events fire next tick.
			r.logger.Warn("Position fetch failed, skipping entity",
				zap.String("entity", entity.ID), zap.Error(err))
			continue
		}

		if err := r.diffAndNotify(ctx, entity, fresh, subs); err != nil {
			return err
		}

		if slotDue {
			summary := r.renderer.RenderSummary(entity, fresh, now)
			r.dispatcher.Broadcast(ctx, summary, subs)
			summarized = true
		}
	}

	if slotDue && summarized {
		r.slotGate.Confirm(slotLabel)
		r.logger.Info("Slot summary dispatched", zap.String("slot", slotLabel))
	}
	return nil
}

// pollMintLedger watches the configured mint for new transactions.
func (r *Runner) pollMintLedger(ctx context.Context) error {
	fresh, err := r.mint.FetchSnapshot(ctx, r.mintEntity.ID)
	if err != nil {
		return err
	}
	return r.diffAndNotify(ctx, r.mintEntity, fresh, r.subscribers.Current())
}

// pollPostFeed watches tracked accounts for new posts.
func (r *Runner) pollPostFeed(ctx context.Context) error {
	subs := r.subscribers.Current()

	for _, entity := range r.registry.List(watch.DomainPostFeed) {
		if err := ctx.Err(); err != nil {
			return err
		}

		fresh, err := r.feed.FetchSnapshot(ctx, entity.ID)
		if err != nil {
			r.logger.Warn("Feed fetch failed, skipping entity",
				zap.String("entity", entity.ID), zap.Error(err))
			continue
		}

		if err := r.diffAndNotify(ctx, entity, fresh, subs); err != nil {
			return err
		}
	}
	return nil
}

// diffAndNotify runs one entity through the detector pipeline: load prior, diff,
// commit the fresh snapshot, fan out one message per change. The commit happens
// even when nothing changed, so every comparison runs against the latest
// observation and sub-threshold drift re-baselines instead of accumulating
// toward an alert.
func (r *Runner) diffAndNotify(ctx context.Context, entity watch.MonitoredEntity, fresh watch.Snapshot, subs []dispatch.Subscriber) error {
	prior, err := r.snapshots.Get(entity.Domain, entity.ID)
	if err != nil {
		return err
	}

	events, next := detector.Diff(entity, prior, fresh)
	if err := r.snapshots.Commit(entity.ID, next); err != nil {
		return err
	}

	for _, ev := range events {
		message, err := r.renderer.Render(ev)
		if err != nil {
			r.logger.Error("Render failed", zap.String("entity", ev.EntityID), zap.Error(err))
			continue
		}
		r.dispatcher.Dispatch(ctx, ev, message, subs)
	}
	return nil
}

// maintain gives benched credentials their periodic second chance.
func (r *Runner) maintain(ctx context.Context) error {
	now := time.Now()
	if r.rpcPool != nil && r.rpcPool.MaybeReset(now) {
		r.logger.Info("RPC credential pool reset")
	}
	if r.feedPool != nil && r.feedPool.MaybeReset(now) {
		r.logger.Info("Feed credential pool reset")
	}
	return nil
}
