// internal/telegram/subscribers.go
package telegram

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/Kai-0601/TelegramBot/internal/dispatch"
	"github.com/Kai-0601/TelegramBot/internal/store"
	"go.uber.org/zap"
)

const subscribersKey = "registry/subscribers"

// Subscribers is the persisted set of chats receiving notifications. Membership
// changes come from the /start command path; the engine only takes read-only
// snapshots at dispatch time.
type Subscribers struct {
	mu     sync.RWMutex
	kv     store.Store
	logger *zap.Logger
	chats  map[int64]struct{}
}

func NewSubscribers(kv store.Store, logger *zap.Logger) (*Subscribers, error) {
	s := &Subscribers{
		kv:     kv,
		logger: logger.Named("subscribers"),
		chats:  make(map[int64]struct{}),
	}

	data, ok, err := kv.Load(subscribersKey)
	if err != nil {
		return nil, err
	}
	if ok {
		var ids []int64
		if err := json.Unmarshal(data, &ids); err != nil {
			return nil, fmt.Errorf("subscribers: decode: %w", err)
		}
		for _, id := range ids {
			s.chats[id] = struct{}{}
		}
	}
	return s, nil
}

// Subscribe adds a chat. Returns false when it was already subscribed.
func (s *Subscribers) Subscribe(chatID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chats[chatID]; ok {
		return false, nil
	}
	s.chats[chatID] = struct{}{}
	if err := s.persistLocked(); err != nil {
		return false, err
	}
	s.logger.Info("Chat subscribed", zap.Int64("chat_id", chatID))
	return true, nil
}

// Unsubscribe removes a chat.
func (s *Subscribers) Unsubscribe(chatID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chats[chatID]; !ok {
		return false, nil
	}
	delete(s.chats, chatID)
	if err := s.persistLocked(); err != nil {
		return false, err
	}
	s.logger.Info("Chat unsubscribed", zap.Int64("chat_id", chatID))
	return true, nil
}

// Current returns a snapshot of the subscriber set for one dispatch. Changes that
// land mid-dispatch are picked up by the next cycle.
func (s *Subscribers) Current() []dispatch.Subscriber {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]dispatch.Subscriber, 0, len(s.chats))
	for id := range s.chats {
		out = append(out, dispatch.Subscriber(id))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *Subscribers) persistLocked() error {
	ids := make([]int64, 0, len(s.chats))
	for id := range s.chats {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("subscribers: encode: %w", err)
	}
	return s.kv.Save(subscribersKey, data)
}
