package holders

import (
	"errors"

	"lethex-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Handlers bundles the admin holder-directory handlers.
type Handlers struct {
	Service *Service
}

// List GET /api/v1/admin/holders
func (h *Handlers) List(c *fiber.Ctx) error {
	data, err := h.Service.List(c.Context())
	if err != nil {
		return response.Error(c, "Internal Server Error", 500, nil)
	}
	return response.Success(c, "Holders fetched successfully", data, nil)
}

// Get GET /api/v1/admin/holders/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid holder ID format (must be a valid UUID)", 400, nil)
	}
	data, err := h.Service.Get(c.Context(), id)
	if err != nil {
		return holderError(c, err)
	}
	return response.Success(c, "Holder fetched successfully", data, nil)
}

// Create POST /api/v1/admin/holders
func (h *Handlers) Create(c *fiber.Ctx) error {
	var body CreateInput
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Missing required fields", 400, nil)
	}
	data, err := h.Service.Create(c.Context(), body)
	if err != nil {
		return holderError(c, err)
	}
	return response.SuccessCreated(c, "Holder created successfully", data, nil)
}

// Update PATCH /api/v1/admin/holders/:id
func (h *Handlers) Update(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid holder ID format (must be a valid UUID)", 400, nil)
	}
	var body UpdateInput
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	data, err := h.Service.Update(c.Context(), id, body)
	if err != nil {
		return holderError(c, err)
	}
	return response.Success(c, "Holder updated successfully", data, nil)
}

type rotateRequest struct {
	AccessCode string `json:"access_code"`
}

// RotateAccessCode POST /api/v1/admin/holders/:id/rotate-code
func (h *Handlers) RotateAccessCode(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid holder ID format (must be a valid UUID)", 400, nil)
	}
	var body rotateRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return response.Error(c, "Invalid request body", 400, nil)
		}
	}
	data, err := h.Service.RotateAccessCode(c.Context(), id, body.AccessCode)
	if err != nil {
		return holderError(c, err)
	}
	return response.Success(c, "Access code rotated", data, nil)
}

// Delete DELETE /api/v1/admin/holders/:id
func (h *Handlers) Delete(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid holder ID format (must be a valid UUID)", 400, nil)
	}
	if err := h.Service.Delete(c.Context(), id); err != nil {
		return holderError(c, err)
	}
	return response.Success(c, "Holder deleted successfully", nil, nil)
}

func holderError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrInvalidName), errors.Is(err, ErrInvalidEmail),
		errors.Is(err, ErrInvalidPhone), errors.Is(err, ErrInvalidAccessCode):
		return response.Error(c, err.Error(), 400, nil)
	case errors.Is(err, ErrHolderNotFound):
		return response.Error(c, err.Error(), 404, nil)
	case errors.Is(err, ErrAccessCodeTaken), errors.Is(err, ErrHolderHasBalances):
		return response.Error(c, err.Error(), 409, nil)
	default:
		return response.Error(c, "Internal Server Error", 500, nil)
	}
}
