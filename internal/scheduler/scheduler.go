// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Task is one monitoring cycle. Errors are logged at the scheduler boundary and
// never stop the cadence; the next tick retries from scratch.
type Task func(ctx context.Context) error

// Cadence is an independently scheduled polling loop.
type Cadence struct {
	Name       string
	Interval   time.Duration
	FirstDelay time.Duration
	Run        Task
}

// Scheduler drives N cadences concurrently. Invocations of the same cadence never
// overlap: while one is still running, further ticks are skipped (and logged), not
// queued, so a hung upstream can't build an unbounded backlog.
type Scheduler struct {
	logger   *zap.Logger
	cadences []Cadence
	inflight sync.WaitGroup
}

func New(logger *zap.Logger) *Scheduler {
	return &Scheduler{logger: logger.Named("scheduler")}
}

// Add registers a cadence. Must be called before Run.
func (s *Scheduler) Add(c Cadence) error {
	if c.Name == "" {
		return errors.New("scheduler: cadence name is required")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("scheduler: cadence %q has non-positive interval", c.Name)
	}
	if c.Run == nil {
		return fmt.Errorf("scheduler: cadence %q has no task", c.Name)
	}
	s.cadences = append(s.cadences, c)
	return nil
}

// Run blocks until ctx is cancelled, then waits for in-flight invocations to
// finish before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.cadences) == 0 {
		return errors.New("scheduler: no cadences registered")
	}

	g, gCtx := errgroup.WithContext(ctx)
	for _, c := range s.cadences {
		cadence := c
		g.Go(func() error {
			s.runCadence(gCtx, cadence)
			return nil
		})
	}

	err := g.Wait()
	s.inflight.Wait()
	s.logger.Info("Scheduler stopped")
	return err
}

func (s *Scheduler) runCadence(ctx context.Context, c Cadence) {
	logger := s.logger.With(zap.String("cadence", c.Name))
	logger.Info("Cadence started",
		zap.Duration("interval", c.Interval),
		zap.Duration("first_delay", c.FirstDelay))

	if c.FirstDelay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.FirstDelay):
		}
	}

	var busy atomic.Bool
	fire := func() {
		if !busy.CompareAndSwap(false, true) {
			logger.Warn("Previous invocation still running, skipping tick")
			return
		}
		s.inflight.Add(1)
		go func() {
			defer s.inflight.Done()
			defer busy.Store(false)
			s.invoke(ctx, c, logger)
		}()
	}

	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()

	fire()
	for {
		select {
		case <-ctx.Done():
			logger.Info("Cadence stopped")
			return
		case <-ticker.C:
			fire()
		}
	}
}

// invoke is the error boundary around a single tick. A panic or error in one
// domain's task must not take down the scheduler loop for the others; a silent
// full-scheduler halt would look exactly like the system going quiet.
func (s *Scheduler) invoke(ctx context.Context, c Cadence, logger *zap.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Task panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	start := time.Now()
	if err := c.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		logger.Error("Task failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return
	}
	logger.Debug("Task completed", zap.Duration("elapsed", time.Since(start)))
}
