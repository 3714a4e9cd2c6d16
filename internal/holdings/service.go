package holdings

import (
	"context"
	"errors"
	"sort"
	"time"

	"lethex-backend/internal/domain"
	"lethex-backend/internal/holders"
	"lethex-backend/internal/ledger"
	"lethex-backend/internal/prices"
	"lethex-backend/internal/tokens"
	"lethex-backend/internal/transactions"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrTokenNotWhitelisted = errors.New("Token not whitelisted")
	ErrInvalidAmount       = errors.New("Amount must be zero or greater with at most 8 decimal places")
)

const (
	activeKey = "active_assets"
	cacheSize = 256
	fiatScale = 2
)

// PriceReader is the read side of the price cache.
type PriceReader interface {
	GetMany(ctx context.Context, symbols []string) (map[string]prices.Quote, error)
}

// Service values balances for display and handles admin balance assignment.
// Portfolios and the active-assets report are memoised for TTL and dropped
// whenever balances change through Invalidate.
type Service struct {
	DB     *gorm.DB
	Ledger *ledger.Ledger
	Prices PriceReader
	TTL    time.Duration

	views *lru.Cache
}

type cached struct {
	at   time.Time
	data interface{}
}

func NewService(db *gorm.DB, led *ledger.Ledger, pr PriceReader, ttl time.Duration) (*Service, error) {
	c, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &Service{DB: db, Ledger: led, Prices: pr, TTL: ttl, views: c}, nil
}

// Invalidate drops every memoised view.
func (s *Service) Invalidate() {
	if s.views != nil {
		s.views.Purge()
	}
}

func (s *Service) lookup(key string) (interface{}, bool) {
	if s.views == nil || s.TTL <= 0 {
		return nil, false
	}
	v, ok := s.views.Get(key)
	if !ok {
		return nil, false
	}
	e := v.(cached)
	if time.Since(e.at) > s.TTL {
		s.views.Remove(key)
		return nil, false
	}
	return e.data, true
}

func (s *Service) store(key string, data interface{}) {
	if s.views != nil && s.TTL > 0 {
		s.views.Add(key, cached{at: time.Now(), data: data})
	}
}

func (s *Service) quotes(ctx context.Context, symbols []string) map[string]prices.Quote {
	if s.Prices == nil {
		return map[string]prices.Quote{}
	}
	q, err := s.Prices.GetMany(ctx, symbols)
	if err != nil {
		log.Warn().Err(err).Msg("price cache read failed; valuing at zero")
		return map[string]prices.Quote{}
	}
	return q
}

// PortfolioItem is one balance with its display valuation.
type PortfolioItem struct {
	Token    domain.Token    `json:"token"`
	Amount   decimal.Decimal `json:"amount"`
	PriceUSD decimal.Decimal `json:"price_usd"`
	PriceKGS decimal.Decimal `json:"price_kgs"`
	ValueUSD decimal.Decimal `json:"value_usd"`
	ValueKGS decimal.Decimal `json:"value_kgs"`
	Priced   bool            `json:"priced"`
}

type Portfolio struct {
	HolderID      uuid.UUID       `json:"holder_id"`
	Items         []PortfolioItem `json:"items"`
	TotalValueUSD decimal.Decimal `json:"total_value_usd"`
	TotalValueKGS decimal.Decimal `json:"total_value_kgs"`
}

// Portfolio returns every balance of the holder with current display prices.
func (s *Service) Portfolio(ctx context.Context, holderID uuid.UUID) (*Portfolio, error) {
	key := "portfolio:" + holderID.String()
	if v, ok := s.lookup(key); ok {
		return v.(*Portfolio), nil
	}
	if _, err := holders.FindByID(ctx, s.DB, holderID); err != nil {
		return nil, err
	}
	assets, err := s.Ledger.ListByHolder(ctx, holderID)
	if err != nil {
		return nil, err
	}
	symbols := make([]string, 0, len(assets))
	for _, a := range assets {
		symbols = append(symbols, a.TokenSymbol)
	}
	meta, err := tokenMeta(ctx, s.DB, symbols)
	if err != nil {
		return nil, err
	}
	quotes := s.quotes(ctx, symbols)

	out := &Portfolio{HolderID: holderID, Items: make([]PortfolioItem, 0, len(assets))}
	for _, a := range assets {
		item := PortfolioItem{Token: meta[a.TokenSymbol], Amount: a.Amount}
		if item.Token.Symbol == "" {
			item.Token = domain.Token{Symbol: a.TokenSymbol, Name: a.TokenSymbol}
		}
		if q, ok := quotes[a.TokenSymbol]; ok {
			item.Priced = true
			item.PriceUSD = q.USD
			item.PriceKGS = q.KGS
			item.ValueUSD = a.Amount.Mul(q.USD).Round(fiatScale)
			item.ValueKGS = a.Amount.Mul(q.KGS).Round(fiatScale)
		}
		out.TotalValueUSD = out.TotalValueUSD.Add(item.ValueUSD)
		out.TotalValueKGS = out.TotalValueKGS.Add(item.ValueKGS)
		out.Items = append(out.Items, item)
	}
	s.store(key, out)
	return out, nil
}

type HolderAmount struct {
	HolderID   uuid.UUID       `json:"holder_id"`
	HolderName string          `json:"holder_name"`
	Amount     decimal.Decimal `json:"amount"`
}

// ActiveAsset is one token's total across all holders with a positive balance.
type ActiveAsset struct {
	Symbol      string          `json:"symbol"`
	Name        string          `json:"name"`
	LogoURL     *string         `json:"logo_url"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	PriceUSD    decimal.Decimal `json:"price_usd"`
	ValueUSD    decimal.Decimal `json:"value_usd"`
	ValueKGS    decimal.Decimal `json:"value_kgs"`
	Holders     []HolderAmount  `json:"holders"`
}

type ActiveAssets struct {
	Assets        []ActiveAsset   `json:"assets"`
	TotalValueUSD decimal.Decimal `json:"total_value_usd"`
	TotalValueKGS decimal.Decimal `json:"total_value_kgs"`
}

// ActiveAssets aggregates positive balances per token, largest USD value first.
func (s *Service) ActiveAssets(ctx context.Context) (*ActiveAssets, error) {
	if v, ok := s.lookup(activeKey); ok {
		return v.(*ActiveAssets), nil
	}
	var rows []domain.Asset
	if err := s.DB.WithContext(ctx).Where("amount > 0").Order("token_symbol ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	bySymbol := map[string]*ActiveAsset{}
	var symbols []string
	holderIDs := map[uuid.UUID]bool{}
	for _, r := range rows {
		a, ok := bySymbol[r.TokenSymbol]
		if !ok {
			a = &ActiveAsset{Symbol: r.TokenSymbol}
			bySymbol[r.TokenSymbol] = a
			symbols = append(symbols, r.TokenSymbol)
		}
		a.TotalAmount = a.TotalAmount.Add(r.Amount)
		a.Holders = append(a.Holders, HolderAmount{HolderID: r.HolderID, Amount: r.Amount})
		holderIDs[r.HolderID] = true
	}

	names, err := holderNames(ctx, s.DB, holderIDs)
	if err != nil {
		return nil, err
	}
	meta, err := tokenMeta(ctx, s.DB, symbols)
	if err != nil {
		return nil, err
	}
	quotes := s.quotes(ctx, symbols)

	out := &ActiveAssets{Assets: make([]ActiveAsset, 0, len(symbols))}
	for _, sym := range symbols {
		a := bySymbol[sym]
		a.Name = sym
		if t, ok := meta[sym]; ok {
			a.Name = t.Name
			a.LogoURL = t.LogoURL
		}
		for i := range a.Holders {
			a.Holders[i].HolderName = names[a.Holders[i].HolderID]
		}
		sort.Slice(a.Holders, func(i, j int) bool { return a.Holders[i].Amount.GreaterThan(a.Holders[j].Amount) })
		if q, ok := quotes[sym]; ok {
			a.PriceUSD = q.USD
			a.ValueUSD = a.TotalAmount.Mul(q.USD).Round(fiatScale)
			a.ValueKGS = a.TotalAmount.Mul(q.KGS).Round(fiatScale)
		}
		out.TotalValueUSD = out.TotalValueUSD.Add(a.ValueUSD)
		out.TotalValueKGS = out.TotalValueKGS.Add(a.ValueKGS)
		out.Assets = append(out.Assets, *a)
	}
	sort.SliceStable(out.Assets, func(i, j int) bool { return out.Assets[i].ValueUSD.GreaterThan(out.Assets[j].ValueUSD) })
	s.store(activeKey, out)
	return out, nil
}

// AssignBalance sets a holder's balance of symbol to amount. This is the
// administrator's direct funding path; it is serialized with approvals on
// the same (holder, token) lock and leaves a BALANCE_ASSIGNED event.
func (s *Service) AssignBalance(ctx context.Context, holderID uuid.UUID, symbol string, amount decimal.Decimal, actorID uuid.UUID) (*domain.Asset, error) {
	symbol = tokens.NormalizeSymbol(symbol)
	if amount.IsNegative() || !amount.Round(ledger.Scale).Equal(amount) {
		return nil, ErrInvalidAmount
	}
	unlock := s.Ledger.Lock(ledger.PairKey(holderID, symbol))
	defer unlock()

	var out *domain.Asset
	err := s.DB.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		if _, err := holders.FindByID(ctx, db, holderID); err != nil {
			return err
		}
		missing, err := tokens.Missing(ctx, db, symbol)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			return ErrTokenNotWhitelisted
		}
		led := s.Ledger.WithTx(db)
		previous := decimal.Zero
		if cur, err := led.GetBalance(ctx, holderID, symbol); err == nil {
			previous = cur.Amount
		} else if !errors.Is(err, ledger.ErrNoBalance) {
			return err
		}
		a, err := led.SetBalance(ctx, holderID, symbol, amount)
		if err != nil {
			return err
		}
		out = a
		return transactions.RecordEvent(ctx, db, nil, holderID, domain.EventBalanceAssigned, &actorID, map[string]interface{}{
			"token_symbol": symbol,
			"previous":     previous.StringFixed(ledger.Scale),
			"amount":       a.Amount.StringFixed(ledger.Scale),
		})
	})
	if err != nil {
		return nil, err
	}
	s.Invalidate()
	log.Info().Str("holder_id", holderID.String()).Str("token", symbol).
		Str("amount", out.Amount.StringFixed(ledger.Scale)).Str("actor_id", actorID.String()).Msg("balance assigned")
	return out, nil
}

func tokenMeta(ctx context.Context, db *gorm.DB, symbols []string) (map[string]domain.Token, error) {
	out := map[string]domain.Token{}
	if len(symbols) == 0 {
		return out, nil
	}
	var toks []domain.Token
	if err := db.WithContext(ctx).Where("symbol IN ?", symbols).Find(&toks).Error; err != nil {
		return nil, err
	}
	for _, t := range toks {
		out[t.Symbol] = t
	}
	return out, nil
}

func holderNames(ctx context.Context, db *gorm.DB, ids map[uuid.UUID]bool) (map[uuid.UUID]string, error) {
	out := map[uuid.UUID]string{}
	if len(ids) == 0 {
		return out, nil
	}
	list := make([]uuid.UUID, 0, len(ids))
	for id := range ids {
		list = append(list, id)
	}
	var hs []domain.Holder
	if err := db.WithContext(ctx).Select("id, name").Where("id IN ?", list).Find(&hs).Error; err != nil {
		return nil, err
	}
	for _, h := range hs {
		out[h.ID] = h.Name
	}
	return out, nil
}
