package prices

import (
	"context"
	"time"

	"lethex-backend/internal/domain"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Poller copies quotes for every whitelisted token from Source into Cache.
type Poller struct {
	DB       *gorm.DB
	Source   Source
	Cache    *Cache
	Interval time.Duration
}

// Poll runs one refresh and returns how many symbols were updated.
func (p *Poller) Poll(ctx context.Context) (int, error) {
	var toks []domain.Token
	if err := p.DB.WithContext(ctx).Select("symbol, price_feed_id").Find(&toks).Error; err != nil {
		return 0, err
	}
	bySource := map[string][]string{}
	var ids []string
	for _, t := range toks {
		if t.PriceFeedID == "" {
			continue
		}
		if _, seen := bySource[t.PriceFeedID]; !seen {
			ids = append(ids, t.PriceFeedID)
		}
		bySource[t.PriceFeedID] = append(bySource[t.PriceFeedID], t.Symbol)
	}
	quotes, err := p.Source.Fetch(ctx, ids)
	if err != nil {
		return 0, err
	}
	n := 0
	for id, q := range quotes {
		for _, sym := range bySource[id] {
			if err := p.Cache.Set(ctx, sym, q); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

// Run polls every Interval until ctx is done. Failures are logged and the
// previous cached values are left to expire.
func (p *Poller) Run(ctx context.Context) {
	interval := p.Interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	log.Info().Dur("interval", interval).Msg("price poller started")
	for {
		if _, err := p.Poll(ctx); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Msg("price poll failed")
		}
		select {
		case <-ctx.Done():
			log.Info().Msg("price poller stopped")
			return
		case <-ticker.C:
		}
	}
}
