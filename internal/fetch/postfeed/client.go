// internal/fetch/postfeed/client.go
package postfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Kai-0601/TelegramBot/internal/credential"
	"github.com/Kai-0601/TelegramBot/internal/fetch"
	"github.com/Kai-0601/TelegramBot/internal/watch"
	"go.uber.org/zap"
)

const requestTimeout = 10 * time.Second

// Client reads the newest post id of a social account. API tokens come from a
// credential pool; the feed API rate-limits per token, which is exactly the
// failure the pool rotation exists for.
type Client struct {
	baseURL string
	pool    *credential.Pool
	http    *http.Client
	logger  *zap.Logger
}

func NewClient(baseURL string, pool *credential.Pool, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		pool:    pool,
		http:    &http.Client{Timeout: requestTimeout},
		logger:  logger.Named("postfeed"),
	}
}

type feedResponse struct {
	Data []struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

// FetchSnapshot returns a snapshot with one record keyed by the account handle.
func (c *Client) FetchSnapshot(ctx context.Context, account string) (watch.Snapshot, error) {
	snap := watch.NewSnapshot(watch.DomainPostFeed, time.Now().UTC())

	err := c.pool.Do(ctx, func(cred *credential.Credential) error {
		endpoint := fmt.Sprintf("%s/users/by/username/%s/posts?max_results=5", c.baseURL, url.PathEscape(account))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+cred.Value)

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			return &credential.RateLimitError{Status: resp.StatusCode}
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("feed status %d", resp.StatusCode)
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		var feed feedResponse
		if err := json.Unmarshal(data, &feed); err != nil {
			return fmt.Errorf("decode feed: %w", err)
		}
		if len(feed.Data) > 0 {
			snap.Records[account] = watch.Record{LastPostID: feed.Data[0].ID}
		}
		return nil
	})
	if err != nil {
		return watch.Snapshot{}, &fetch.Error{Domain: watch.DomainPostFeed, EntityID: account, Err: err}
	}
	return snap, nil
}
