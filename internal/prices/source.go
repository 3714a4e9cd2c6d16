// Package prices keeps display prices for whitelisted tokens. Nothing here
// takes part in settlement; swaps settle at the administrator's execution
// price.
package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultBaseURL is the public CoinGecko API root.
const DefaultBaseURL = "https://api.coingecko.com/api/v3"

// Quote is one token's price in the display currencies.
type Quote struct {
	USD       decimal.Decimal `json:"usd"`
	KGS       decimal.Decimal `json:"kgs"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Source fetches quotes keyed by price-feed id.
type Source interface {
	Fetch(ctx context.Context, feedIDs []string) (map[string]Quote, error)
}

// CoinGecko reads /simple/price.
type CoinGecko struct {
	BaseURL string
	Client  *http.Client
}

func NewCoinGecko(baseURL string) *CoinGecko {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &CoinGecko{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type simplePrice map[string]struct {
	USD *decimal.Decimal `json:"usd"`
	KGS *decimal.Decimal `json:"kgs"`
}

func (c *CoinGecko) Fetch(ctx context.Context, feedIDs []string) (map[string]Quote, error) {
	if len(feedIDs) == 0 {
		return map[string]Quote{}, nil
	}
	q := url.Values{}
	q.Set("ids", strings.Join(feedIDs, ","))
	q.Set("vs_currencies", "usd,kgs")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/simple/price?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("price feed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var body simplePrice
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("price feed: decode: %w", err)
	}
	now := time.Now()
	out := make(map[string]Quote, len(body))
	for id, p := range body {
		if p.USD == nil {
			continue
		}
		quote := Quote{USD: *p.USD, UpdatedAt: now}
		if p.KGS != nil {
			quote.KGS = *p.KGS
		}
		out[id] = quote
	}
	return out, nil
}
