package transactions

import (
	"errors"

	"lethex-backend/internal/domain"
	"lethex-backend/internal/holders"
	"lethex-backend/internal/middleware"
	"lethex-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Handlers struct {
	Service *Service
}

type createBody struct {
	Type domain.TransactionType `json:"transaction_type"`
	CreateInput
}

func txError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return response.Error(c, err.Error(), 400, nil)
	case errors.Is(err, ErrTransactionNotFound):
		return response.Error(c, err.Error(), 404, nil)
	case errors.Is(err, holders.ErrHolderNotFound):
		return response.Unauthorized(c, "Unauthorized")
	}
	log.Error().Err(err).Str("path", c.Path()).Msg("transactions handler error")
	return response.Error(c, "Internal Server Error", 500, nil)
}

// Create POST /api/v1/holder/transactions
func (h *Handlers) Create(c *fiber.Ctx) error {
	actor := middleware.GetActor(c)
	if actor == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	var body createBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	tx, err := h.Service.Create(c.Context(), actor.ID, body.Type, body.CreateInput)
	if err != nil {
		return txError(c, err)
	}
	return response.SuccessCreated(c, "Transaction submitted for approval", tx, nil)
}

// ListMine GET /api/v1/holder/transactions
func (h *Handlers) ListMine(c *fiber.Ctx) error {
	actor := middleware.GetActor(c)
	if actor == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	data, err := h.Service.ListByHolder(c.Context(), actor.ID)
	if err != nil {
		return txError(c, err)
	}
	return response.Success(c, "Transactions fetched successfully", data, nil)
}

// ListPending GET /api/v1/admin/transactions/pending
func (h *Handlers) ListPending(c *fiber.Ctx) error {
	data, err := h.Service.ListPending(c.Context())
	if err != nil {
		return txError(c, err)
	}
	return response.Success(c, "Pending transactions fetched successfully", data, fiber.Map{"count": len(data)})
}

// ListHistory GET /api/v1/admin/transactions/history?holder_id=
func (h *Handlers) ListHistory(c *fiber.Ctx) error {
	var holderID *uuid.UUID
	if s := c.Query("holder_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			return response.Error(c, "Invalid holder_id", 400, nil)
		}
		holderID = &id
	}
	data, err := h.Service.ListHistory(c.Context(), holderID)
	if err != nil {
		return txError(c, err)
	}
	return response.Success(c, "Transaction history fetched successfully", data, nil)
}

// Get GET /api/v1/admin/transactions/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid transaction id", 400, nil)
	}
	tx, err := h.Service.Get(c.Context(), id)
	if err != nil {
		return txError(c, err)
	}
	events, err := h.Service.Events(c.Context(), id)
	if err != nil {
		return txError(c, err)
	}
	return response.Success(c, "Transaction fetched successfully", fiber.Map{
		"transaction": tx,
		"events":      events,
	}, nil)
}
