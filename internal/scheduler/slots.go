// internal/scheduler/slots.go
package scheduler

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// SlotPolicy defines wall-clock-aligned firing: slots every Every (e.g. each half
// hour) with a tolerance Window after the boundary. Whether "now" is inside a slot
// window is a pure function of the clock, so correctness doesn't depend on how many
// times the surrounding poll loop has ticked.
type SlotPolicy struct {
	Every    time.Duration
	Window   time.Duration
	Location *time.Location
}

// Current returns the label of the slot whose window contains now, if any.
// The label carries the date and the slot start, so slots never repeat across days.
func (p SlotPolicy) Current(now time.Time) (string, bool) {
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}

	t := now.In(loc)
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	since := t.Sub(midnight)

	offset := since % p.Every
	if offset >= p.Window {
		return "", false
	}

	start := midnight.Add(since - offset)
	return start.Format("2006-01-02T15:04"), true
}

// SlotGate serves each distinct slot label at most once. The poll loop may
// observe the same window on several ticks; Peek keeps answering yes until the
// loop Confirms it actually delivered something, so a tick where every upstream
// failed doesn't burn the slot while later ticks in the window could still serve
// it. Served state is memory-only, a restart inside a window may re-serve once.
type SlotGate struct {
	mu     sync.Mutex
	policy SlotPolicy
	last   string
	logger *zap.Logger
}

func NewSlotGate(policy SlotPolicy, logger *zap.Logger) *SlotGate {
	return &SlotGate{policy: policy, logger: logger.Named("slot_gate")}
}

// Peek reports whether an unserved slot window contains now. It never advances
// the gate.
func (g *SlotGate) Peek(now time.Time) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	label, ok := g.policy.Current(now)
	if !ok || label == g.last {
		return "", false
	}
	return label, true
}

// Confirm marks a slot label as served; later ticks inside the same window stop
// firing.
func (g *SlotGate) Confirm(label string) {
	if label == "" {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	g.last = label
	g.logger.Debug("Slot served", zap.String("slot", label))
}
