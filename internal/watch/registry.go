// internal/watch/registry.go
package watch

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/Kai-0601/TelegramBot/internal/store"
	"go.uber.org/zap"
)

const registryKey = "registry/entities"

// Registry holds the monitored entities. The engine only reads it; adds and
// removes come from the command front-end. The whole set is persisted on every
// mutation, matching the whales-file behavior of the bot.
type Registry struct {
	mu       sync.RWMutex
	kv       store.Store
	logger   *zap.Logger
	entities map[Domain]map[string]MonitoredEntity
}

func NewRegistry(kv store.Store, logger *zap.Logger) (*Registry, error) {
	r := &Registry{
		kv:       kv,
		logger:   logger.Named("registry"),
		entities: make(map[Domain]map[string]MonitoredEntity),
	}

	data, ok, err := kv.Load(registryKey)
	if err != nil {
		return nil, err
	}
	if ok {
		var list []MonitoredEntity
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("registry: decode: %w", err)
		}
		for _, e := range list {
			r.put(e)
		}
	}
	return r, nil
}

// Add registers an entity. Returns false when it is already tracked.
func (r *Registry) Add(e MonitoredEntity) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entities[e.Domain][e.ID]; exists {
		return false, nil
	}
	r.put(e)
	if err := r.persistLocked(); err != nil {
		return false, err
	}
	r.logger.Info("Entity added",
		zap.String("domain", string(e.Domain)),
		zap.String("id", e.ID),
		zap.String("name", e.Name()))
	return true, nil
}

// Remove drops an entity. Returns false when it was not tracked.
func (r *Registry) Remove(domain Domain, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byID, ok := r.entities[domain]
	if !ok {
		return false, nil
	}
	if _, exists := byID[id]; !exists {
		return false, nil
	}
	delete(byID, id)
	if err := r.persistLocked(); err != nil {
		return false, err
	}
	r.logger.Info("Entity removed", zap.String("domain", string(domain)), zap.String("id", id))
	return true, nil
}

// List returns the current entities of a domain, ordered by id for stable
// iteration in the poll loops.
func (r *Registry) List(domain Domain) []MonitoredEntity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byID := r.entities[domain]
	out := make([]MonitoredEntity, 0, len(byID))
	for _, e := range byID {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get looks an entity up by id.
func (r *Registry) Get(domain Domain, id string) (MonitoredEntity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entities[domain][id]
	return e, ok
}

func (r *Registry) put(e MonitoredEntity) {
	if r.entities[e.Domain] == nil {
		r.entities[e.Domain] = make(map[string]MonitoredEntity)
	}
	r.entities[e.Domain][e.ID] = e
}

func (r *Registry) persistLocked() error {
	var list []MonitoredEntity
	for _, byID := range r.entities {
		for _, e := range byID {
			list = append(list, e)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Domain != list[j].Domain {
			return list[i].Domain < list[j].Domain
		}
		return list[i].ID < list[j].ID
	})

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("registry: encode: %w", err)
	}
	return r.kv.Save(registryKey, data)
}
