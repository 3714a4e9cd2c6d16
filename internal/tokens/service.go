package tokens

import (
	"context"
	"errors"
	"strings"

	"lethex-backend/internal/domain"
	"lethex-backend/internal/pkg/validation"

	"gorm.io/gorm"
)

// Service is the token whitelist.
type Service struct {
	DB *gorm.DB
}

type CreateInput struct {
	Symbol      string  `json:"symbol"`
	Name        string  `json:"name"`
	PriceFeedID string  `json:"price_feed_id"`
	LogoURL     *string `json:"logo_url"`
}

type UpdateInput struct {
	Name        *string `json:"name"`
	PriceFeedID *string `json:"price_feed_id"`
	LogoURL     *string `json:"logo_url"`
}

// NormalizeSymbol upper-cases and trims a symbol.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func (s *Service) List(ctx context.Context) ([]domain.Token, error) {
	var out []domain.Token
	err := s.DB.WithContext(ctx).Order("symbol ASC").Find(&out).Error
	return out, err
}

func (s *Service) Get(ctx context.Context, symbol string) (*domain.Token, error) {
	var t domain.Token
	if err := s.DB.WithContext(ctx).Where("symbol = ?", NormalizeSymbol(symbol)).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	return &t, nil
}

// Missing returns the symbols absent from the whitelist.
// Callers inside a transaction pass their tx as db.
func Missing(ctx context.Context, db *gorm.DB, symbols ...string) ([]string, error) {
	if len(symbols) == 0 {
		return nil, nil
	}
	var found []string
	if err := db.WithContext(ctx).Model(&domain.Token{}).
		Where("symbol IN ?", symbols).
		Pluck("symbol", &found).Error; err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(found))
	for _, f := range found {
		have[f] = true
	}
	var missing []string
	for _, s := range symbols {
		if !have[s] {
			missing = append(missing, s)
		}
	}
	return missing, nil
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Token, error) {
	symbol := NormalizeSymbol(in.Symbol)
	if !validation.IsValidSymbol(symbol) {
		return nil, ErrInvalidSymbol
	}
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.PriceFeedID) == "" {
		return nil, ErrNameRequired
	}
	t := domain.Token{
		Symbol:      symbol,
		Name:        strings.TrimSpace(in.Name),
		PriceFeedID: strings.TrimSpace(in.PriceFeedID),
		LogoURL:     in.LogoURL,
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&domain.Token{}).Where("symbol = ?", symbol).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrTokenExists
		}
		return tx.Create(&t).Error
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Update changes metadata only; the symbol is the immutable key.
func (s *Service) Update(ctx context.Context, symbol string, in UpdateInput) (*domain.Token, error) {
	t, err := s.Get(ctx, symbol)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return nil, ErrNameRequired
		}
		updates["name"] = strings.TrimSpace(*in.Name)
	}
	if in.PriceFeedID != nil {
		if strings.TrimSpace(*in.PriceFeedID) == "" {
			return nil, ErrNameRequired
		}
		updates["price_feed_id"] = strings.TrimSpace(*in.PriceFeedID)
	}
	if in.LogoURL != nil {
		updates["logo_url"] = *in.LogoURL
	}
	if len(updates) == 0 {
		return t, nil
	}
	if err := s.DB.WithContext(ctx).Model(t).Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.Get(ctx, t.Symbol)
}

// Delete removes a token nobody holds and no pending request references.
func (s *Service) Delete(ctx context.Context, symbol string) error {
	symbol = NormalizeSymbol(symbol)
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t domain.Token
		if err := tx.Where("symbol = ?", symbol).First(&t).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTokenNotFound
			}
			return err
		}
		var held int64
		if err := tx.Model(&domain.Asset{}).
			Where("token_symbol = ? AND amount > 0", symbol).
			Count(&held).Error; err != nil {
			return err
		}
		var pending int64
		if err := tx.Model(&domain.Transaction{}).
			Where("status = ? AND (from_token = ? OR to_token = ?)", domain.StatusPending, symbol, symbol).
			Count(&pending).Error; err != nil {
			return err
		}
		if held > 0 || pending > 0 {
			return ErrTokenInUse
		}
		if err := tx.Where("token_symbol = ?", symbol).Delete(&domain.Asset{}).Error; err != nil {
			return err
		}
		return tx.Delete(&t).Error
	})
}
