// internal/fetch/fetch.go
package fetch

import (
	"context"
	"fmt"

	"github.com/Kai-0601/TelegramBot/internal/watch"
)

// Fetcher obtains the current snapshot of one entity from an upstream. One
// implementation exists per domain; the engine never sees wire formats.
type Fetcher interface {
	FetchSnapshot(ctx context.Context, entityID string) (watch.Snapshot, error)
}

// Error is a transient fetch failure. The cycle for the affected entity is
// skipped without touching stored state; the next tick retries.
type Error struct {
	Domain   watch.Domain
	EntityID string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s/%s: %v", e.Domain, e.EntityID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
