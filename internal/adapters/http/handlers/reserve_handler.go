package handlers

import (
	"errors"

	"circlefund/internal/core/services"
	"circlefund/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// ReserveHandler handles reserve pool endpoints
type ReserveHandler struct {
	reserveService *services.ReserveService
	factoryService *services.FactoryService
}

// NewReserveHandler creates a new reserve handler
func NewReserveHandler(reserveService *services.ReserveService, factoryService *services.FactoryService) *ReserveHandler {
	return &ReserveHandler{
		reserveService: reserveService,
		factoryService: factoryService,
	}
}

// Stats returns the reserve pool snapshot
// @Summary Reserve pool stats
// @Description Get the shared reserve pool balances and utilization
// @Tags Reserve
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /reserve [get]
func (h *ReserveHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.reserveService.Stats(c.Context())
	if err != nil {
		return response.InternalServerError(c, "Failed to load reserve stats")
	}

	return response.Success(c, "Reserve stats retrieved", stats)
}

// Revoke removes a circle from the reserve allow-list (admin only)
// @Summary Revoke circle verification
// @Description Remove a circle from the reserve allow-list; deposited funds stay in the pool
// @Tags Reserve
// @Produce json
// @Security BearerAuth
// @Param code path string true "Circle code"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /reserve/circles/{code}/revoke [post]
func (h *ReserveHandler) Revoke(c *fiber.Ctx) error {
	circle, err := h.factoryService.GetCircle(c.Context(), c.Params("code"))
	if err != nil {
		if errors.Is(err, services.ErrCircleNotFound) || errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Circle not found")
		}
		return response.InternalServerError(c, "Failed to load circle")
	}

	if err := h.reserveService.RevokeCircle(c.Context(), circle.ID); err != nil {
		return response.InternalServerError(c, "Failed to revoke circle")
	}

	return response.Success(c, "Circle revoked from reserve pool", nil)
}

// Status reports whether a circle is verified for reserve operations
// @Summary Circle verification status
// @Description Check whether a circle is on the reserve allow-list
// @Tags Reserve
// @Produce json
// @Security BearerAuth
// @Param code path string true "Circle code"
// @Success 200 {object} response.Response
// @Router /reserve/circles/{code} [get]
func (h *ReserveHandler) Status(c *fiber.Ctx) error {
	circle, err := h.factoryService.GetCircle(c.Context(), c.Params("code"))
	if err != nil {
		if errors.Is(err, services.ErrCircleNotFound) {
			return response.NotFound(c, "Circle not found")
		}
		return response.InternalServerError(c, "Failed to load circle")
	}

	verified, err := h.reserveService.IsVerified(c.Context(), circle.ID)
	if err != nil {
		return response.InternalServerError(c, "Failed to check verification")
	}

	return response.Success(c, "Verification status retrieved", fiber.Map{
		"code":     circle.Code,
		"verified": verified,
	})
}
