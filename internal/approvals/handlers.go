package approvals

import (
	"errors"

	"lethex-backend/internal/middleware"
	"lethex-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type Handlers struct {
	Engine *Engine
}

type approveBody struct {
	ExecutionPrice *decimal.Decimal `json:"execution_price"`
}

type rejectBody struct {
	Reason string `json:"reason"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrHolderNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrAlreadyProcessed), errors.Is(err, ErrConcurrentModification):
		return fiber.StatusConflict
	case errors.Is(err, ErrActorNotFound):
		return fiber.StatusForbidden
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrInvalidExecutionPrice),
		errors.Is(err, ErrInsufficientBalance), errors.Is(err, ErrTokenNotWhitelisted):
		return fiber.StatusUnprocessableEntity
	}
	return fiber.StatusInternalServerError
}

func approvalError(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	if code == fiber.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("approval engine error")
		return response.Error(c, "Internal Server Error", code, nil)
	}
	return response.Error(c, err.Error(), code, nil)
}

// Approve POST /api/v1/admin/transactions/:id/approve
func (h *Handlers) Approve(c *fiber.Ctx) error {
	actor := middleware.GetActor(c)
	if actor == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid transaction id", 400, nil)
	}
	var body approveBody
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return response.Error(c, "Invalid request body", 400, nil)
		}
	}
	tx, err := h.Engine.Approve(c.Context(), id, actor.ID, body.ExecutionPrice)
	if err != nil {
		return approvalError(c, err)
	}
	return response.Success(c, "Transaction approved", tx, nil)
}

// Reject POST /api/v1/admin/transactions/:id/reject
func (h *Handlers) Reject(c *fiber.Ctx) error {
	actor := middleware.GetActor(c)
	if actor == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid transaction id", 400, nil)
	}
	var body rejectBody
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return response.Error(c, "Invalid request body", 400, nil)
		}
	}
	tx, err := h.Engine.Reject(c.Context(), id, actor.ID, body.Reason)
	if err != nil {
		return approvalError(c, err)
	}
	return response.Success(c, "Transaction rejected", tx, nil)
}
