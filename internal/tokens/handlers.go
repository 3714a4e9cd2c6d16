package tokens

import (
	"errors"

	"lethex-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// Handlers bundles token whitelist handlers.
type Handlers struct {
	Service *Service
}

// List GET /api/v1/tokens
func (h *Handlers) List(c *fiber.Ctx) error {
	data, err := h.Service.List(c.Context())
	if err != nil {
		return response.Error(c, "Internal Server Error", 500, nil)
	}
	return response.Success(c, "Tokens fetched successfully", data, nil)
}

// Create POST /api/v1/admin/tokens
func (h *Handlers) Create(c *fiber.Ctx) error {
	var body CreateInput
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Missing required fields", 400, nil)
	}
	t, err := h.Service.Create(c.Context(), body)
	if err != nil {
		return tokenError(c, err)
	}
	return response.SuccessCreated(c, "Token added to whitelist", t, nil)
}

// Update PATCH /api/v1/admin/tokens/:symbol
func (h *Handlers) Update(c *fiber.Ctx) error {
	var body UpdateInput
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	t, err := h.Service.Update(c.Context(), c.Params("symbol"), body)
	if err != nil {
		return tokenError(c, err)
	}
	return response.Success(c, "Token updated successfully", t, nil)
}

// Delete DELETE /api/v1/admin/tokens/:symbol
func (h *Handlers) Delete(c *fiber.Ctx) error {
	if err := h.Service.Delete(c.Context(), c.Params("symbol")); err != nil {
		return tokenError(c, err)
	}
	return response.Success(c, "Token removed from whitelist", nil, nil)
}

func tokenError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrInvalidSymbol), errors.Is(err, ErrNameRequired):
		return response.Error(c, err.Error(), 400, nil)
	case errors.Is(err, ErrTokenNotFound):
		return response.Error(c, err.Error(), 404, nil)
	case errors.Is(err, ErrTokenExists), errors.Is(err, ErrTokenInUse):
		return response.Error(c, err.Error(), 409, nil)
	default:
		return response.Error(c, "Internal Server Error", 500, nil)
	}
}
