// internal/watch/types.go
package watch

import (
	"time"
)

// Domain identifies one independently monitored upstream.
type Domain string

const (
	// DomainPositions tracks perp positions of a wallet on the derivatives exchange.
	DomainPositions Domain = "positions"
	// DomainMintLedger tracks the newest on-chain mint transaction.
	DomainMintLedger Domain = "mintledger"
	// DomainPostFeed tracks the newest post of a social account.
	DomainPostFeed Domain = "postfeed"
)

// LedgerKey is the single sub-key used by the mint-ledger domain. The ledger is a
// global entity with one record: the most recent transaction seen.
const LedgerKey = "head"

// MonitoredEntity is one tracked object: a whale address, a social account or the
// mint ledger. Entities are added and removed by the command front-end; the engine
// only reads the current registry.
type MonitoredEntity struct {
	Domain      Domain `json:"domain"`
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Name returns the display name, falling back to a shortened id the way the bot
// labels unnamed whales.
func (e MonitoredEntity) Name() string {
	if e.DisplayName != "" {
		return e.DisplayName
	}
	if len(e.ID) > 8 {
		return e.ID[:8]
	}
	return e.ID
}

// Record is the per-sub-key state kept in a snapshot. Only the fields of the owning
// domain are populated; the rest stay zero and are omitted from the stored JSON.
type Record struct {
	// positions: sub-key is the asset symbol. Size is signed, sign encodes long/short.
	Size       float64 `json:"size,omitempty"`
	Margin     float64 `json:"margin,omitempty"`
	EntryPrice float64 `json:"entry_price,omitempty"`
	Leverage   float64 `json:"leverage,omitempty"`
	PnL        float64 `json:"pnl,omitempty"`
	LiqPrice   float64 `json:"liq_price,omitempty"`

	// mintledger: single record under LedgerKey.
	TxID   string  `json:"tx_id,omitempty"`
	Amount float64 `json:"amount,omitempty"`

	// postfeed: sub-key is the account handle.
	LastPostID string `json:"last_post_id,omitempty"`
}

// Snapshot is the last-known state of one entity: a mapping from a domain-specific
// sub-key to a Record. A snapshot is immutable once committed; every poll cycle
// builds a fresh one that either replaces it wholesale or is discarded.
type Snapshot struct {
	Domain  Domain            `json:"domain"`
	TakenAt time.Time         `json:"taken_at"`
	Records map[string]Record `json:"records"`
}

// NewSnapshot builds an empty snapshot for a domain.
func NewSnapshot(domain Domain, takenAt time.Time) Snapshot {
	return Snapshot{Domain: domain, TakenAt: takenAt, Records: make(map[string]Record)}
}

// Clone returns a deep copy. Commits store a copy so later map writes by the caller
// cannot reach the committed state.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{Domain: s.Domain, TakenAt: s.TakenAt, Records: make(map[string]Record, len(s.Records))}
	for k, v := range s.Records {
		out.Records[k] = v
	}
	return out
}

// ChangeKind classifies a detected change.
type ChangeKind string

const (
	ChangeOpened    ChangeKind = "opened"
	ChangeClosed    ChangeKind = "closed"
	ChangeIncreased ChangeKind = "increased"
	ChangeDecreased ChangeKind = "decreased"
	ChangeNewItem   ChangeKind = "new_item"
)

// ChangeEvent is one semantically meaningful difference between two snapshots.
// Events are derived, never persisted: they exist only on the way to the dispatcher.
type ChangeEvent struct {
	EntityID   string
	EntityName string
	Domain     Domain
	Kind       ChangeKind
	SubKey     string
	Prev       Record
	Curr       Record
	At         time.Time
}
