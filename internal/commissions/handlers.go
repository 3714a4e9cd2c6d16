package commissions

import (
	"lethex-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Handlers struct {
	Service *Service
}

// GetSummary GET /api/v1/admin/commissions/summary
func (h *Handlers) GetSummary(c *fiber.Ctx) error {
	data, err := h.Service.Summary(c.Context())
	if err != nil {
		return response.Error(c, "Internal Server Error", 500, nil)
	}
	return response.Success(c, "Commission summary fetched successfully", data, nil)
}

// List GET /api/v1/admin/commissions?holder_id=
func (h *Handlers) List(c *fiber.Ctx) error {
	var holderID *uuid.UUID
	if s := c.Query("holder_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			return response.Error(c, "Invalid holder_id", 400, nil)
		}
		holderID = &id
	}
	data, err := h.Service.List(c.Context(), holderID)
	if err != nil {
		return response.Error(c, "Internal Server Error", 500, nil)
	}
	return response.Success(c, "Commissions fetched successfully", data, nil)
}

// Reconcile POST /api/v1/admin/commissions/reconcile
func (h *Handlers) Reconcile(c *fiber.Ctx) error {
	n, err := h.Service.Reconcile(c.Context())
	if err != nil {
		log.Error().Err(err).Int("created", n).Msg("commission reconcile failed")
		return response.Error(c, "Internal Server Error", 500, nil)
	}
	return response.Success(c, "Commissions reconciled", fiber.Map{"created": n}, nil)
}
