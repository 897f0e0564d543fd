package handlers

import (
	"circlefund/internal/adapters/http/middleware"
	"circlefund/internal/core/services"
	"circlefund/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// CreditHandler handles credit ledger endpoints
type CreditHandler struct {
	creditService *services.CreditService
}

// NewCreditHandler creates a new credit handler
func NewCreditHandler(creditService *services.CreditService) *CreditHandler {
	return &CreditHandler{creditService: creditService}
}

// GetMyProfile returns the caller's credit profile
// @Summary Get own credit profile
// @Description Get the authenticated member's credit ledger entry
// @Tags Credit
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /credit/me [get]
func (h *CreditHandler) GetMyProfile(c *fiber.Ctx) error {
	membNo, ok := middleware.MembNo(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	profile, err := h.creditService.GetProfile(c.Context(), membNo)
	if err != nil {
		return response.InternalServerError(c, "Failed to load credit profile")
	}

	return response.Success(c, "Credit profile retrieved", profile)
}

// GetScore returns a member's current credit score
// @Summary Get member credit score
// @Description Get the current credit score of any member
// @Tags Credit
// @Produce json
// @Security BearerAuth
// @Param memb_no path string true "Member number"
// @Success 200 {object} response.Response
// @Router /credit/{memb_no}/score [get]
func (h *CreditHandler) GetScore(c *fiber.Ctx) error {
	membNo := c.Params("memb_no")
	if membNo == "" {
		return response.BadRequest(c, "Member number is required")
	}

	score, err := h.creditService.GetScore(c.Context(), membNo)
	if err != nil {
		return response.InternalServerError(c, "Failed to load credit score")
	}

	return response.Success(c, "Credit score retrieved", fiber.Map{
		"memb_no": membNo,
		"score":   score,
	})
}
