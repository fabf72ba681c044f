// internal/dispatch/dispatcher.go
package dispatch

import (
	"context"
	"time"

	"github.com/Kai-0601/TelegramBot/internal/watch"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Subscriber is an opaque recipient handle (a chat id). Membership lifecycle is
// owned by the command front-end; the dispatcher only reads a snapshot of the set.
type Subscriber int64

// Sender delivers one rendered message to one subscriber. Implemented outside the
// engine (Telegram adapter in production, fakes in tests).
type Sender interface {
	Send(ctx context.Context, sub Subscriber, message string) error
}

// Renderer turns a change event into a human-readable message. Owned externally;
// the engine never formats upstream data itself.
type Renderer interface {
	Render(ev watch.ChangeEvent) (string, error)
}

// DeliveryFailure records one subscriber the message could not reach.
type DeliveryFailure struct {
	Subscriber Subscriber
	Err        error
}

// DeliveryReport summarizes one fan-out.
type DeliveryReport struct {
	ID        string
	Delivered []Subscriber
	Failed    []DeliveryFailure
	Elapsed   time.Duration
}

// Dispatcher fans a message out to all current subscribers. Deliveries are
// attempted independently: one unreachable recipient never blocks the rest. Sends
// are paced sequentially through a rate limiter to respect the downstream
// per-second message limit.
type Dispatcher struct {
	sender  Sender
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewDispatcher builds a dispatcher pacing at most perSecond sends per second.
func NewDispatcher(sender Sender, perSecond float64, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		sender:  sender,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		logger:  logger.Named("dispatcher"),
	}
}

// Dispatch sends a change notification to every subscriber in subs. The
// subscriber slice is the caller's snapshot taken at call time; registrations
// that land mid-dispatch are picked up next cycle.
func (d *Dispatcher) Dispatch(ctx context.Context, ev watch.ChangeEvent, message string, subs []Subscriber) DeliveryReport {
	return d.fanOut(ctx, message, subs,
		zap.String("domain", string(ev.Domain)),
		zap.String("kind", string(ev.Kind)),
		zap.String("entity", ev.EntityID))
}

// Broadcast sends a message not tied to any change event, such as the slot-aligned
// position summaries.
func (d *Dispatcher) Broadcast(ctx context.Context, message string, subs []Subscriber) DeliveryReport {
	return d.fanOut(ctx, message, subs, zap.String("kind", "broadcast"))
}

func (d *Dispatcher) fanOut(ctx context.Context, message string, subs []Subscriber, fields ...zap.Field) DeliveryReport {
	report := DeliveryReport{ID: uuid.New().String()}
	start := time.Now()

	for _, sub := range subs {
		if err := d.limiter.Wait(ctx); err != nil {
			// Context cancelled mid-dispatch: the remaining recipients are
			// recorded as failed rather than silently dropped.
			report.Failed = append(report.Failed, DeliveryFailure{Subscriber: sub, Err: err})
			continue
		}

		if err := d.sender.Send(ctx, sub, message); err != nil {
			d.logger.Warn("Delivery failed",
				zap.String("dispatch_id", report.ID),
				zap.Int64("subscriber", int64(sub)),
				zap.Error(err))
			report.Failed = append(report.Failed, DeliveryFailure{Subscriber: sub, Err: err})
			continue
		}
		report.Delivered = append(report.Delivered, sub)
	}

	report.Elapsed = time.Since(start)
	fields = append(fields,
		zap.String("dispatch_id", report.ID),
		zap.Int("delivered", len(report.Delivered)),
		zap.Int("failed", len(report.Failed)),
		zap.Duration("elapsed", report.Elapsed))
	d.logger.Info("Dispatch complete", fields...)
	return report
}
