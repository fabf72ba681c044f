// internal/fetch/hyperliquid/client.go
package hyperliquid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Kai-0601/TelegramBot/internal/credential"
	"github.com/Kai-0601/TelegramBot/internal/fetch"
	"github.com/Kai-0601/TelegramBot/internal/watch"
	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

const (
	requestTimeout = 10 * time.Second
	retryDelay     = 500 * time.Millisecond
	maxTries       = 3
)

// Client fetches the perp positions of a wallet from the exchange info endpoint.
type Client struct {
	apiURL string
	http   *http.Client
	logger *zap.Logger
}

func NewClient(apiURL string, logger *zap.Logger) *Client {
	return &Client{
		apiURL: apiURL,
		http:   &http.Client{Timeout: requestTimeout},
		logger: logger.Named("hyperliquid"),
	}
}

type infoRequest struct {
	Type string `json:"type"`
	User string `json:"user"`
}

type clearinghouseState struct {
	AssetPositions []struct {
		Position struct {
			Coin          string `json:"coin"`
			Szi           string `json:"szi"`
			EntryPx       string `json:"entryPx"`
			MarginUsed    string `json:"marginUsed"`
			UnrealizedPnl string `json:"unrealizedPnl"`
			LiquidationPx string `json:"liquidationPx"`
			Leverage      struct {
				Value float64 `json:"value"`
			} `json:"leverage"`
		} `json:"position"`
	} `json:"assetPositions"`
}

// FetchSnapshot returns the position set of address keyed by asset symbol.
// Transient upstream trouble is retried with exponential backoff before the cycle
// gives up on this entity.
func (c *Client) FetchSnapshot(ctx context.Context, address string) (watch.Snapshot, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = retryDelay
	policy.MaxInterval = retryDelay * 10

	notify := func(err error, wait time.Duration) {
		c.logger.Debug("Retrying position fetch",
			zap.String("address", address),
			zap.Error(err),
			zap.Duration("backoff", wait))
	}

	operation := func() (watch.Snapshot, error) {
		return c.fetchOnce(ctx, address)
	}

	snap, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(maxTries),
		backoff.WithNotify(notify))
	if err != nil {
		return watch.Snapshot{}, &fetch.Error{Domain: watch.DomainPositions, EntityID: address, Err: err}
	}
	return snap, nil
}

func (c *Client) fetchOnce(ctx context.Context, address string) (watch.Snapshot, error) {
	body, err := json.Marshal(infoRequest{Type: "clearinghouseState", User: address})
	if err != nil {
		return watch.Snapshot{}, backoff.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/info", bytes.NewReader(body))
	if err != nil {
		return watch.Snapshot{}, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return watch.Snapshot{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		return watch.Snapshot{}, &credential.RateLimitError{Status: resp.StatusCode}
	case resp.StatusCode >= 500:
		return watch.Snapshot{}, fmt.Errorf("upstream status %d", resp.StatusCode)
	default:
		// Client-side errors won't heal on retry.
		return watch.Snapshot{}, backoff.Permanent(fmt.Errorf("upstream status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return watch.Snapshot{}, err
	}

	var state clearinghouseState
	if err := json.Unmarshal(data, &state); err != nil {
		return watch.Snapshot{}, backoff.Permanent(fmt.Errorf("decode clearinghouse state: %w", err))
	}

	snap := watch.NewSnapshot(watch.DomainPositions, time.Now().UTC())
	for _, ap := range state.AssetPositions {
		pos := ap.Position
		if pos.Coin == "" {
			continue
		}
		snap.Records[pos.Coin] = watch.Record{
			Size:       parseFloat(pos.Szi),
			Margin:     parseFloat(pos.MarginUsed),
			EntryPrice: parseFloat(pos.EntryPx),
			Leverage:   pos.Leverage.Value,
			PnL:        parseFloat(pos.UnrealizedPnl),
			LiqPrice:   parseFloat(pos.LiquidationPx),
		}
	}
	return snap, nil
}

// parseFloat tolerates the exchange habit of sending numbers as strings; a bad
// value reads as zero rather than failing the whole snapshot.
func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
