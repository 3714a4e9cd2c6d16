package prices

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const keyPrefix = "prices:"

// Cache stores the latest quote per token symbol in a Redis hash
// (prices:<SYMBOL> with usd, kgs and updated_at fields).
type Cache struct {
	RDB *redis.Client
	TTL time.Duration
}

func key(symbol string) string {
	return keyPrefix + symbol
}

func (c *Cache) Set(ctx context.Context, symbol string, q Quote) error {
	_, err := c.RDB.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key(symbol),
			"usd", q.USD.String(),
			"kgs", q.KGS.String(),
			"updated_at", q.UpdatedAt.UTC().Format(time.RFC3339Nano),
		)
		if c.TTL > 0 {
			p.Expire(ctx, key(symbol), c.TTL)
		}
		return nil
	})
	return err
}

// Get returns the cached quote. ok is false when nothing is cached or the
// entry expired.
func (c *Cache) Get(ctx context.Context, symbol string) (q Quote, ok bool, err error) {
	m, err := c.RDB.HGetAll(ctx, key(symbol)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Quote{}, false, nil
		}
		return Quote{}, false, err
	}
	if len(m) == 0 {
		return Quote{}, false, nil
	}
	q, err = parse(m)
	return q, err == nil, err
}

// GetMany returns the cached quotes for symbols, skipping misses.
func (c *Cache) GetMany(ctx context.Context, symbols []string) (map[string]Quote, error) {
	out := make(map[string]Quote, len(symbols))
	if len(symbols) == 0 {
		return out, nil
	}
	cmds := make([]*redis.MapStringStringCmd, len(symbols))
	_, err := c.RDB.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, s := range symbols {
			cmds[i] = p.HGetAll(ctx, key(s))
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	for i, cmd := range cmds {
		m, err := cmd.Result()
		if err != nil || len(m) == 0 {
			continue
		}
		q, err := parse(m)
		if err != nil {
			continue
		}
		out[symbols[i]] = q
	}
	return out, nil
}

func parse(m map[string]string) (Quote, error) {
	var q Quote
	var err error
	if q.USD, err = decimal.NewFromString(m["usd"]); err != nil {
		return Quote{}, err
	}
	if v := m["kgs"]; v != "" {
		if q.KGS, err = decimal.NewFromString(v); err != nil {
			return Quote{}, err
		}
	}
	if v := m["updated_at"]; v != "" {
		q.UpdatedAt, _ = time.Parse(time.RFC3339Nano, v)
	}
	return q, nil
}
