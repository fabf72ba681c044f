// internal/bot/service.go
package bot

import (
	"errors"
	"strings"

	"github.com/Kai-0601/TelegramBot/internal/watch"
)

// Service is the command-facing surface of the engine: tracking list and
// subscriber membership. The poll loops only ever read what it mutates.
type Service struct {
	runner *Runner
}

// AddWhale starts tracking a position address. The first poll after this
// establishes the baseline silently.
func (s *Service) AddWhale(address, displayName string) (bool, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return false, errors.New("address is required")
	}
	return s.runner.registry.Add(watch.MonitoredEntity{
		Domain:      watch.DomainPositions,
		ID:          address,
		DisplayName: strings.TrimSpace(displayName),
	})
}

// RemoveWhale stops tracking an address and drops its stored snapshot, so
// re-adding it later starts from a clean baseline.
func (s *Service) RemoveWhale(address string) (bool, error) {
	removed, err := s.runner.registry.Remove(watch.DomainPositions, address)
	if err != nil || !removed {
		return removed, err
	}
	return true, s.runner.snapshots.Forget(watch.DomainPositions, address)
}

// ListWhales returns the tracked position addresses.
func (s *Service) ListWhales() []watch.MonitoredEntity {
	return s.runner.registry.List(watch.DomainPositions)
}

// AddFeedAccount starts tracking an account's posts.
func (s *Service) AddFeedAccount(account string) (bool, error) {
	account = strings.TrimSpace(strings.TrimPrefix(account, "@"))
	if account == "" {
		return false, errors.New("account is required")
	}
	return s.runner.registry.Add(watch.MonitoredEntity{
		Domain: watch.DomainPostFeed,
		ID:     account,
	})
}

// RemoveFeedAccount stops tracking an account's posts.
func (s *Service) RemoveFeedAccount(account string) (bool, error) {
	account = strings.TrimSpace(strings.TrimPrefix(account, "@"))
	removed, err := s.runner.registry.Remove(watch.DomainPostFeed, account)
	if err != nil || !removed {
		return removed, err
	}
	return true, s.runner.snapshots.Forget(watch.DomainPostFeed, account)
}

// Subscribe adds a chat to the notification fan-out.
func (s *Service) Subscribe(chatID int64) (bool, error) {
	return s.runner.subscribers.Subscribe(chatID)
}

// Unsubscribe removes a chat from the notification fan-out.
func (s *Service) Unsubscribe(chatID int64) (bool, error) {
	return s.runner.subscribers.Unsubscribe(chatID)
}
