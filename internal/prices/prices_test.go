package prices

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lethex-backend/internal/domain"
	"lethex-backend/internal/pkg/testdb"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return &Cache{RDB: rdb, TTL: 30 * time.Second}, mr
}

func geckoServer(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "usd,kgs", r.URL.Query().Get("vs_currencies"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCoinGecko_Fetch(t *testing.T) {
	srv := geckoServer(t, `{"bitcoin":{"usd":64000.5,"kgs":5568043.5},"tether":{"usd":1.0}}`, 200)
	c := NewCoinGecko(srv.URL)

	got, err := c.Fetch(context.Background(), []string{"bitcoin", "tether"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "64000.5", got["bitcoin"].USD.String())
	assert.Equal(t, "5568043.5", got["bitcoin"].KGS.String())
	assert.True(t, got["tether"].KGS.IsZero())
}

func TestCoinGecko_FetchError(t *testing.T) {
	srv := geckoServer(t, `{"error":"rate limited"}`, 429)
	_, err := NewCoinGecko(srv.URL).Fetch(context.Background(), []string{"bitcoin"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestCache_SetGet(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "BTC")
	require.NoError(t, err)
	assert.False(t, ok)

	q := Quote{USD: decimal.RequireFromString("64000.5"), KGS: decimal.RequireFromString("5568043.5"), UpdatedAt: time.Now()}
	require.NoError(t, c.Set(ctx, "BTC", q))
	got, ok, err := c.Get(ctx, "BTC")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.USD.Equal(q.USD))
	assert.True(t, got.KGS.Equal(q.KGS))

	many, err := c.GetMany(ctx, []string{"BTC", "ETH"})
	require.NoError(t, err)
	assert.Len(t, many, 1)

	mr.FastForward(31 * time.Second)
	_, ok, err = c.Get(ctx, "BTC")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPoller_Poll(t *testing.T) {
	db := testdb.New(t)
	require.NoError(t, db.Create(&domain.Token{Symbol: "BTC", Name: "Bitcoin", PriceFeedID: "bitcoin"}).Error)
	require.NoError(t, db.Create(&domain.Token{Symbol: "WBTC", Name: "Wrapped Bitcoin", PriceFeedID: "bitcoin"}).Error)
	require.NoError(t, db.Create(&domain.Token{Symbol: "USDT", Name: "Tether", PriceFeedID: "tether"}).Error)

	srv := geckoServer(t, `{"bitcoin":{"usd":64000,"kgs":5568000},"tether":{"usd":1,"kgs":87}}`, 200)
	cache, _ := newCache(t)
	p := &Poller{DB: db, Source: NewCoinGecko(srv.URL), Cache: cache}

	n, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := cache.GetMany(context.Background(), []string{"BTC", "WBTC", "USDT"})
	require.NoError(t, err)
	assert.Equal(t, "87", got["USDT"].KGS.String())
	assert.Equal(t, "64000", got["WBTC"].USD.String())
}

func TestPoller_RunStopsOnCancel(t *testing.T) {
	db := testdb.New(t)
	srv := geckoServer(t, `{}`, 200)
	cache, _ := newCache(t)
	p := &Poller{DB: db, Source: NewCoinGecko(srv.URL), Cache: cache, Interval: 10 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}
