package auth

import (
	"context"
	"errors"

	"lethex-backend/internal/constants"
	"lethex-backend/internal/middleware"
	"lethex-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Handlers holds dependencies for auth endpoints.
type Handlers struct {
	Auth     Authenticator
	Sessions *SessionStore
	Config   middleware.SessionConfig
}

func loginError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrEmailPasswordRequired), errors.Is(err, ErrAccessCodeRequired):
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	case errors.Is(err, ErrInvalidEmail), errors.Is(err, ErrIncorrectPassword), errors.Is(err, ErrInvalidAccessCode):
		return response.Error(c, err.Error(), fiber.StatusUnauthorized, nil)
	}
	log.Error().Err(err).Msg("login failed")
	return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
}

// startSession regenerates the session id, creates the session under the
// user and sets the cookie.
func (h *Handlers) startSession(c *fiber.Ctx, user middleware.SessionUser) error {
	sessionID := middleware.RegenerateSessionID(c)
	middleware.SetSessionUser(c, user)
	payload, err := middleware.EncodeSession(c)
	if err != nil {
		return err
	}
	if err := h.Sessions.Create(context.Background(), user.UserID, sessionID, payload); err != nil {
		return err
	}
	cookie := middleware.SessionCookieConfig(h.Config)
	cookie.Value = "s:" + sessionID
	c.Cookie(&cookie)
	return nil
}

// AdminLogin POST /api/v1/auth/admin/login
func (h *Handlers) AdminLogin(c *fiber.Ctx) error {
	var req AdminLoginInput
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, ErrEmailPasswordRequired.Error(), fiber.StatusBadRequest, nil)
	}
	admin, err := h.Auth.LoginAdmin(c.Context(), req)
	if err != nil {
		return loginError(c, err)
	}
	user := middleware.SessionUser{UserID: admin.ID.String(), Name: admin.Name, Role: constants.Admin}
	if err := h.startSession(c, user); err != nil {
		log.Error().Err(err).Msg("session tracking failed")
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	log.Info().Str("admin_id", user.UserID).Msg("admin logged in")
	return response.Success(c, "Login successful", fiber.Map{"user": user}, nil)
}

// HolderLogin POST /api/v1/auth/holder/login
func (h *Handlers) HolderLogin(c *fiber.Ctx) error {
	var req HolderLoginInput
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, ErrAccessCodeRequired.Error(), fiber.StatusBadRequest, nil)
	}
	holder, err := h.Auth.LoginHolder(c.Context(), req.AccessCode)
	if err != nil {
		return loginError(c, err)
	}
	user := middleware.SessionUser{UserID: holder.ID.String(), Name: holder.Name, Role: constants.Holder}
	if err := h.startSession(c, user); err != nil {
		log.Error().Err(err).Msg("session tracking failed")
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	log.Info().Str("holder_id", user.UserID).Msg("holder logged in")
	return response.Success(c, "Login successful", fiber.Map{"user": user}, nil)
}

// Me GET /api/v1/auth/me
func (h *Handlers) Me(c *fiber.Ctx) error {
	user, err := VerifyUser(middleware.GetUser(c))
	if err != nil {
		return response.Error(c, "Not authenticated", fiber.StatusUnauthorized, nil)
	}
	return response.Success(c, "Authenticated", fiber.Map{"user": user}, nil)
}

// Logout DELETE /api/v1/auth/logout
func (h *Handlers) Logout(c *fiber.Ctx) error {
	sessionID := middleware.GetSessionID(c)
	userID := ""
	if actor := middleware.GetActor(c); actor != nil {
		userID = actor.ID.String()
	}
	h.Sessions.Forget(context.Background(), userID, sessionID)
	middleware.DestroySession(c)

	cookie := middleware.SessionCookieConfig(h.Config)
	cookie.Value = ""
	cookie.MaxAge = -1
	c.Cookie(&cookie)
	return response.Success(c, "Logged out successfully", nil, nil)
}
