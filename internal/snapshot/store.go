// internal/snapshot/store.go
package snapshot

import (
	"encoding/json"
	"fmt"

	"github.com/Kai-0601/TelegramBot/internal/store"
	"github.com/Kai-0601/TelegramBot/internal/watch"
	"go.uber.org/zap"
)

// Store persists the last-known snapshot per monitored entity, keyed by domain and
// entity id. It is a thin layer over the persistence store: Get before a diff,
// Commit only after a successful fetch. A failed fetch must never reach Commit.
type Store struct {
	kv     store.Store
	logger *zap.Logger
}

func NewStore(kv store.Store, logger *zap.Logger) *Store {
	return &Store{kv: kv, logger: logger.Named("snapshots")}
}

// Get loads the stored snapshot for an entity. The second return is false on the
// first-ever observation, which the detector treats as baseline establishment.
func (s *Store) Get(domain watch.Domain, entityID string) (*watch.Snapshot, error) {
	data, ok, err := s.kv.Load(key(domain, entityID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var snap watch.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("snapshot: decode %s/%s: %w", domain, entityID, err)
	}
	if snap.Records == nil {
		snap.Records = make(map[string]watch.Record)
	}
	return &snap, nil
}

// Commit replaces the stored snapshot for an entity. The stored copy is detached
// from the caller's maps.
func (s *Store) Commit(entityID string, snap watch.Snapshot) error {
	data, err := json.Marshal(snap.Clone())
	if err != nil {
		return fmt.Errorf("snapshot: encode %s/%s: %w", snap.Domain, entityID, err)
	}
	if err := s.kv.Save(key(snap.Domain, entityID), data); err != nil {
		return err
	}
	s.logger.Debug("Snapshot committed",
		zap.String("domain", string(snap.Domain)),
		zap.String("entity", entityID),
		zap.Int("records", len(snap.Records)))
	return nil
}

// Forget drops the stored snapshot, used when an entity is removed from the registry.
func (s *Store) Forget(domain watch.Domain, entityID string) error {
	return s.kv.Delete(key(domain, entityID))
}

func key(domain watch.Domain, entityID string) string {
	return fmt.Sprintf("snapshot/%s/%s", domain, entityID)
}
