package auth

import (
	"context"
	"errors"
	"strings"

	"lethex-backend/internal/constants"
	"lethex-backend/internal/domain"
	"lethex-backend/internal/holders"
	"lethex-backend/internal/pkg/validation"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AdminLoginInput for the admin login body.
type AdminLoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HolderLoginInput for the holder login body.
type HolderLoginInput struct {
	AccessCode string `json:"access_code"`
}

// SessionUserShape is returned by /me.
type SessionUserShape struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

// Authenticator resolves credentials to a session identity.
type Authenticator interface {
	LoginAdmin(ctx context.Context, in AdminLoginInput) (*domain.Admin, error)
	LoginHolder(ctx context.Context, code string) (*domain.Holder, error)
}

// GormAuthenticator checks admins with bcrypt and holders by access code.
type GormAuthenticator struct {
	DB      *gorm.DB
	Holders *holders.Service
}

func (g *GormAuthenticator) LoginAdmin(ctx context.Context, in AdminLoginInput) (*domain.Admin, error) {
	return LoginAdmin(ctx, g.DB, in)
}

func (g *GormAuthenticator) LoginHolder(ctx context.Context, code string) (*domain.Holder, error) {
	if strings.TrimSpace(code) == "" {
		return nil, ErrAccessCodeRequired
	}
	h, err := g.Holders.GetByAccessCode(ctx, code)
	if errors.Is(err, holders.ErrHolderNotFound) || errors.Is(err, holders.ErrInvalidAccessCode) {
		return nil, ErrInvalidAccessCode
	}
	return h, err
}

// LoginAdmin finds the admin by email and verifies the password.
func LoginAdmin(ctx context.Context, db *gorm.DB, in AdminLoginInput) (*domain.Admin, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return nil, ErrEmailPasswordRequired
	}
	var a domain.Admin
	if err := db.WithContext(ctx).Where("email = ?", email).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidEmail
		}
		return nil, err
	}
	if a.PasswordHash == "" {
		return nil, ErrInvalidEmail
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(in.Password)); err != nil {
		return nil, ErrIncorrectPassword
	}
	return &a, nil
}

// CreateAdmin stores a new administrator with a bcrypt password hash.
func CreateAdmin(ctx context.Context, db *gorm.DB, name, email, password string) (*domain.Admin, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)
	if !validation.IsValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	if !validation.IsValidPassword(password) {
		return nil, ErrWeakPassword
	}
	if name == "" {
		name = email
	}
	var n int64
	if err := db.WithContext(ctx).Model(&domain.Admin{}).Where("email = ?", email).Count(&n).Error; err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, ErrAdminExists
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	a := domain.Admin{Name: name, Email: email, PasswordHash: string(hash)}
	if err := db.WithContext(ctx).Create(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// VerifyUser validates the session user and returns the shape for /me.
func VerifyUser(sessionUser interface{}) (*SessionUserShape, error) {
	m, ok := sessionUser.(map[string]interface{})
	if !ok {
		return nil, ErrNotAuthenticated
	}
	userID, _ := m["user_id"].(string)
	role, _ := m["role"].(string)
	if userID == "" || !constants.IsValidRole(role) {
		return nil, ErrNotAuthenticated
	}
	name, _ := m["name"].(string)
	return &SessionUserShape{UserID: userID, Name: name, Role: role}, nil
}
