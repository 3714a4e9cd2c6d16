package holdings

import (
	"errors"

	"lethex-backend/internal/holders"
	"lethex-backend/internal/middleware"
	"lethex-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type Handlers struct {
	Service *Service
}

func holdingsError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, holders.ErrHolderNotFound):
		return response.Error(c, err.Error(), 404, nil)
	case errors.Is(err, ErrTokenNotWhitelisted), errors.Is(err, ErrInvalidAmount):
		return response.Error(c, err.Error(), 400, nil)
	}
	log.Error().Err(err).Str("path", c.Path()).Msg("holdings handler error")
	return response.Error(c, "Internal Server Error", 500, nil)
}

// MyPortfolio GET /api/v1/holder/portfolio
func (h *Handlers) MyPortfolio(c *fiber.Ctx) error {
	actor := middleware.GetActor(c)
	if actor == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	data, err := h.Service.Portfolio(c.Context(), actor.ID)
	if err != nil {
		return holdingsError(c, err)
	}
	return response.Success(c, "Portfolio fetched successfully", data, nil)
}

// HolderPortfolio GET /api/v1/admin/holders/:id/portfolio
func (h *Handlers) HolderPortfolio(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid holder id", 400, nil)
	}
	data, err := h.Service.Portfolio(c.Context(), id)
	if err != nil {
		return holdingsError(c, err)
	}
	return response.Success(c, "Portfolio fetched successfully", data, nil)
}

// ActiveAssets GET /api/v1/admin/assets/active
func (h *Handlers) ActiveAssets(c *fiber.Ctx) error {
	data, err := h.Service.ActiveAssets(c.Context())
	if err != nil {
		return holdingsError(c, err)
	}
	return response.Success(c, "Active assets fetched successfully", data, nil)
}

type assignBody struct {
	TokenSymbol string          `json:"token_symbol"`
	Amount      decimal.Decimal `json:"amount"`
}

// AssignBalance PUT /api/v1/admin/holders/:id/balances
func (h *Handlers) AssignBalance(c *fiber.Ctx) error {
	actor := middleware.GetActor(c)
	if actor == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid holder id", 400, nil)
	}
	var body assignBody
	if err := c.BodyParser(&body); err != nil || body.TokenSymbol == "" {
		return response.Error(c, "token_symbol and amount are required", 400, nil)
	}
	a, err := h.Service.AssignBalance(c.Context(), id, body.TokenSymbol, body.Amount, actor.ID)
	if err != nil {
		return holdingsError(c, err)
	}
	return response.Success(c, "Balance assigned", a, nil)
}
