package hyperliquid

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Kai-0601/TelegramBot/internal/credential"
	"github.com/Kai-0601/TelegramBot/internal/watch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const stateJSON = `{
  "assetPositions": [
    {"position": {"coin": "BTC", "szi": "1.5", "entryPx": "64000.5", "marginUsed": "1000", "unrealizedPnl": "120.5", "liquidationPx": "52000", "leverage": {"value": 10}}},
    {"position": {"coin": "ETH", "szi": "-20", "entryPx": "3100", "marginUsed": "50", "leverage": {"value": 5}}}
  ]
}`

func TestFetchSnapshotParsesPositions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/info", r.URL.Path)

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "clearinghouseState", req["type"])
		assert.Equal(t, "0xwhaleA", req["user"])

		w.Write([]byte(stateJSON))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zap.NewNop())
	snap, err := c.FetchSnapshot(context.Background(), "0xwhaleA")
	require.NoError(t, err)

	assert.Equal(t, watch.DomainPositions, snap.Domain)
	require.Len(t, snap.Records, 2)
	btc := snap.Records["BTC"]
	assert.Equal(t, 1.5, btc.Size)
	assert.Equal(t, 1000.0, btc.Margin)
	assert.Equal(t, 64000.5, btc.EntryPrice)
	assert.Equal(t, 10.0, btc.Leverage)
	assert.Equal(t, 120.5, btc.PnL)
	assert.Equal(t, 52000.0, btc.LiqPrice)
	assert.Equal(t, -20.0, snap.Records["ETH"].Size, "sign encodes direction")
}

func TestFetchSnapshotEmptyPositions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"assetPositions": []}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zap.NewNop())
	snap, err := c.FetchSnapshot(context.Background(), "0xidle")
	require.NoError(t, err)
	assert.Empty(t, snap.Records)
}

func TestFetchSnapshotRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zap.NewNop())
	_, err := c.FetchSnapshot(context.Background(), "0xwhaleA")
	require.Error(t, err)
	assert.True(t, credential.IsRateLimited(err))
}

func TestFetchSnapshotBadRequestNotRetried(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zap.NewNop())
	_, err := c.FetchSnapshot(context.Background(), "not-an-address")
	require.Error(t, err)
	assert.Equal(t, 1, calls, "4xx responses must not be retried")
}
