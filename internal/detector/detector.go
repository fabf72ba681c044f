// internal/detector/detector.go
package detector

import (
	"math"
	"sort"

	"github.com/Kai-0601/TelegramBot/internal/watch"
)

// ChangeThreshold is the relative per-asset margin change that counts as a
// meaningful increase or decrease. The comparison is inclusive: a move of exactly
// 10% fires.
const ChangeThreshold = 0.10

// Diff compares an entity's prior snapshot against a freshly fetched one and
// returns the change events plus the snapshot the caller should commit. It is pure:
// no clock, no store, no logging. Committing is the caller's step, taken only after
// a successful fetch.
//
// With no prior snapshot the fresh state becomes the baseline and no events are
// emitted, so newly added whales don't spam every open position as "opened".
func Diff(entity watch.MonitoredEntity, prior *watch.Snapshot, fresh watch.Snapshot) ([]watch.ChangeEvent, watch.Snapshot) {
	if prior == nil {
		return nil, fresh
	}

	switch fresh.Domain {
	case watch.DomainMintLedger:
		return diffLedger(entity, *prior, fresh)
	default:
		return diffKeyed(entity, *prior, fresh), fresh
	}
}

// diffKeyed handles the position-set and post-feed domains: a symmetric difference
// over sub-keys, then a magnitude comparison for keys present on both sides.
func diffKeyed(entity watch.MonitoredEntity, prior, fresh watch.Snapshot) []watch.ChangeEvent {
	var events []watch.ChangeEvent

	for _, key := range sortedKeys(fresh.Records) {
		curr := fresh.Records[key]
		prev, existed := prior.Records[key]
		if !existed {
			events = append(events, newEvent(entity, fresh, openKind(fresh.Domain), key, watch.Record{}, curr))
			continue
		}
		if fresh.Domain == watch.DomainPostFeed {
			if curr.LastPostID != prev.LastPostID {
				events = append(events, newEvent(entity, fresh, watch.ChangeNewItem, key, prev, curr))
			}
			continue
		}
		if kind, ok := magnitudeChange(prev.Margin, curr.Margin); ok {
			events = append(events, newEvent(entity, fresh, kind, key, prev, curr))
		}
	}

	for _, key := range sortedKeys(prior.Records) {
		if _, still := fresh.Records[key]; !still {
			events = append(events, newEvent(entity, fresh, watch.ChangeClosed, key, prior.Records[key], watch.Record{}))
		}
	}

	return events
}

// diffLedger compares the single most-recent transaction id. Whatever happened in
// between is collapsed into one NewItem carrying the new tip. An upstream that
// momentarily reports no signatures must not erase the known tip: the committed
// snapshot carries it forward, otherwise the next healthy fetch would re-announce
// a transaction subscribers already saw.
func diffLedger(entity watch.MonitoredEntity, prior, fresh watch.Snapshot) ([]watch.ChangeEvent, watch.Snapshot) {
	prev := prior.Records[watch.LedgerKey]
	curr := fresh.Records[watch.LedgerKey]

	if curr.TxID == "" {
		if prev.TxID != "" {
			fresh = fresh.Clone()
			fresh.Records[watch.LedgerKey] = prev
		}
		return nil, fresh
	}
	if curr.TxID == prev.TxID {
		return nil, fresh
	}
	return []watch.ChangeEvent{newEvent(entity, fresh, watch.ChangeNewItem, watch.LedgerKey, prev, curr)}, fresh
}

// magnitudeChange applies the relative threshold to the margin field. A zero prior
// margin admits no relative comparison and is treated as no change.
func magnitudeChange(prev, curr float64) (watch.ChangeKind, bool) {
	if prev == 0 {
		return "", false
	}
	rel := math.Abs(curr-prev) / math.Abs(prev)
	if rel < ChangeThreshold {
		return "", false
	}
	if curr > prev {
		return watch.ChangeIncreased, true
	}
	return watch.ChangeDecreased, true
}

func openKind(domain watch.Domain) watch.ChangeKind {
	if domain == watch.DomainPostFeed {
		return watch.ChangeNewItem
	}
	return watch.ChangeOpened
}

func newEvent(entity watch.MonitoredEntity, fresh watch.Snapshot, kind watch.ChangeKind, key string, prev, curr watch.Record) watch.ChangeEvent {
	return watch.ChangeEvent{
		EntityID:   entity.ID,
		EntityName: entity.Name(),
		Domain:     fresh.Domain,
		Kind:       kind,
		SubKey:     key,
		Prev:       prev,
		Curr:       curr,
		At:         fresh.TakenAt,
	}
}

// sortedKeys keeps event order deterministic; map iteration order is not.
func sortedKeys(m map[string]watch.Record) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
