package holders

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"

	"lethex-backend/internal/domain"
	"lethex-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const maxCodeAttempts = 10

// SessionInvalidator drops every live session of a user. Rotating an access
// code must log the holder out everywhere.
type SessionInvalidator interface {
	DestroyUserSessions(ctx context.Context, userID string)
}

// Service is the holder directory.
type Service struct {
	DB       *gorm.DB
	Sessions SessionInvalidator
}

type CreateInput struct {
	Name  string  `json:"name"`
	Email *string `json:"email"`
	Phone *string `json:"phone"`
}

type UpdateInput struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Phone *string `json:"phone"`
}

// GenerateAccessCode returns a random code from validation.AccessCodeAlphabet.
func GenerateAccessCode() (string, error) {
	var b strings.Builder
	max := big.NewInt(int64(len(validation.AccessCodeAlphabet)))
	for i := 0; i < validation.AccessCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(validation.AccessCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

func (s *Service) List(ctx context.Context) ([]domain.Holder, error) {
	var out []domain.Holder
	err := s.DB.WithContext(ctx).Order("created_at DESC").Find(&out).Error
	return out, err
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Holder, error) {
	return FindByID(ctx, s.DB, id)
}

// FindByID loads a holder through db, which may be a transaction.
func FindByID(ctx context.Context, db *gorm.DB, id uuid.UUID) (*domain.Holder, error) {
	var h domain.Holder
	if err := db.WithContext(ctx).Where("id = ?", id).First(&h).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHolderNotFound
		}
		return nil, err
	}
	return &h, nil
}

// GetByAccessCode resolves the holder presenting code.
func (s *Service) GetByAccessCode(ctx context.Context, code string) (*domain.Holder, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !validation.IsValidAccessCode(code) {
		return nil, ErrInvalidAccessCode
	}
	var h domain.Holder
	if err := s.DB.WithContext(ctx).Where("access_code = ?", code).First(&h).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHolderNotFound
		}
		return nil, err
	}
	return &h, nil
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Holder, error) {
	name := strings.TrimSpace(in.Name)
	if !validation.IsValidName(name) {
		return nil, ErrInvalidName
	}
	email, phone, err := contactFields(in.Email, in.Phone)
	if err != nil {
		return nil, err
	}
	h := domain.Holder{Name: name, Email: email, Phone: phone}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		code, err := uniqueCode(ctx, tx)
		if err != nil {
			return err
		}
		h.AccessCode = code
		return tx.Create(&h).Error
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("holder_id", h.ID.String()).Msg("holder created")
	return &h, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*domain.Holder, error) {
	h, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if !validation.IsValidName(name) {
			return nil, ErrInvalidName
		}
		updates["name"] = name
	}
	email, phone, err := contactFields(in.Email, in.Phone)
	if err != nil {
		return nil, err
	}
	if in.Email != nil {
		updates["email"] = email
	}
	if in.Phone != nil {
		updates["phone"] = phone
	}
	if len(updates) == 0 {
		return h, nil
	}
	if err := s.DB.WithContext(ctx).Model(h).Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// RotateAccessCode replaces the holder's code with newCode, or a generated
// one when newCode is empty. The old code stops working immediately and all
// of the holder's sessions are destroyed.
func (s *Service) RotateAccessCode(ctx context.Context, id uuid.UUID, newCode string) (*domain.Holder, error) {
	newCode = strings.ToUpper(strings.TrimSpace(newCode))
	if newCode != "" && !validation.IsValidAccessCode(newCode) {
		return nil, ErrInvalidAccessCode
	}
	var h *domain.Holder
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		h, err = FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		code := newCode
		if code == "" {
			if code, err = uniqueCode(ctx, tx); err != nil {
				return err
			}
		} else {
			var n int64
			if err := tx.Model(&domain.Holder{}).Where("access_code = ? AND id <> ?", code, id).Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return ErrAccessCodeTaken
			}
		}
		if err := tx.Model(h).Update("access_code", code).Error; err != nil {
			return err
		}
		h.AccessCode = code
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.Sessions != nil {
		s.Sessions.DestroyUserSessions(ctx, id.String())
	}
	log.Info().Str("holder_id", id.String()).Msg("holder access code rotated")
	return h, nil
}

// Delete removes a holder with no positive balance and no pending request.
// Zero-balance asset rows go with it; history rows are kept.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		h, err := FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		var held, pending int64
		if err := tx.Model(&domain.Asset{}).Where("holder_id = ? AND amount > 0", id).Count(&held).Error; err != nil {
			return err
		}
		if err := tx.Model(&domain.Transaction{}).Where("holder_id = ? AND status = ?", id, domain.StatusPending).Count(&pending).Error; err != nil {
			return err
		}
		if held > 0 || pending > 0 {
			return ErrHolderHasBalances
		}
		if err := tx.Where("holder_id = ?", id).Delete(&domain.Asset{}).Error; err != nil {
			return err
		}
		return tx.Delete(h).Error
	})
	if err != nil {
		return err
	}
	if s.Sessions != nil {
		s.Sessions.DestroyUserSessions(ctx, id.String())
	}
	return nil
}

func uniqueCode(ctx context.Context, tx *gorm.DB) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := GenerateAccessCode()
		if err != nil {
			return "", err
		}
		var n int64
		if err := tx.WithContext(ctx).Model(&domain.Holder{}).Where("access_code = ?", code).Count(&n).Error; err != nil {
			return "", err
		}
		if n == 0 {
			return code, nil
		}
	}
	return "", ErrAccessCodeExhausted
}

// contactFields validates optional email/phone; empty strings clear them.
func contactFields(email, phone *string) (*string, *string, error) {
	var e, p *string
	if email != nil {
		if v := strings.TrimSpace(*email); v != "" {
			if !validation.IsValidEmail(v) {
				return nil, nil, ErrInvalidEmail
			}
			e = &v
		}
	}
	if phone != nil {
		if v := strings.TrimSpace(*phone); v != "" {
			if !validation.IsValidPhone(v) {
				return nil, nil, ErrInvalidPhone
			}
			p = &v
		}
	}
	return e, p, nil
}
