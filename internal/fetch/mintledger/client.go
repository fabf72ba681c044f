// internal/fetch/mintledger/client.go
package mintledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Kai-0601/TelegramBot/internal/credential"
	"github.com/Kai-0601/TelegramBot/internal/fetch"
	"github.com/Kai-0601/TelegramBot/internal/watch"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// Client reads the newest transaction signature touching the watched mint. The
// RPC endpoint comes from a credential pool: public endpoints rate-limit
// aggressively, so a 429 rotates to the next one instead of blinding the ledger
// domain for the rest of the day.
type Client struct {
	mu      sync.Mutex
	mint    solana.PublicKey
	pool    *credential.Pool
	clients map[string]*rpc.Client
	logger  *zap.Logger
}

func NewClient(mintAddress string, pool *credential.Pool, logger *zap.Logger) (*Client, error) {
	mint, err := solana.PublicKeyFromBase58(mintAddress)
	if err != nil {
		return nil, fmt.Errorf("mintledger: bad mint address %q: %w", mintAddress, err)
	}
	return &Client{
		mint:    mint,
		pool:    pool,
		clients: make(map[string]*rpc.Client),
		logger:  logger.Named("mintledger"),
	}, nil
}

// FetchSnapshot returns a single-record snapshot holding the ledger tip.
func (c *Client) FetchSnapshot(ctx context.Context, entityID string) (watch.Snapshot, error) {
	snap := watch.NewSnapshot(watch.DomainMintLedger, time.Now().UTC())

	err := c.pool.Do(ctx, func(cred *credential.Credential) error {
		client := c.clientFor(cred.Value)

		limit := 1
		sigs, err := client.GetSignaturesForAddressWithOpts(ctx, c.mint, &rpc.GetSignaturesForAddressOpts{
			Limit:      &limit,
			Commitment: rpc.CommitmentFinalized,
		})
		if err != nil {
			return err
		}
		if len(sigs) == 0 {
			return nil
		}

		tip := sigs[0]
		rec := watch.Record{TxID: tip.Signature.String()}
		snap.Records[watch.LedgerKey] = rec
		if tip.BlockTime != nil {
			snap.TakenAt = tip.BlockTime.Time().UTC()
		}
		return nil
	})
	if err != nil {
		return watch.Snapshot{}, &fetch.Error{Domain: watch.DomainMintLedger, EntityID: entityID, Err: err}
	}
	return snap, nil
}

// clientFor caches one RPC client per endpoint so rotation doesn't re-dial.
func (c *Client) clientFor(endpoint string) *rpc.Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[endpoint]; ok {
		return client
	}
	client := rpc.New(endpoint)
	c.clients[endpoint] = client
	return client
}
