package handlers

import (
	"errors"
	"strconv"

	"circlefund/internal/adapters/http/middleware"
	"circlefund/internal/adapters/persistence/models"
	"circlefund/internal/core/domain"
	"circlefund/internal/core/services"
	"circlefund/internal/pkg/pagination"
	"circlefund/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// CircleHandler handles circle lifecycle endpoints
type CircleHandler struct {
	factoryService *services.FactoryService
	circleService  *services.CircleService
}

// NewCircleHandler creates a new circle handler
func NewCircleHandler(factoryService *services.FactoryService, circleService *services.CircleService) *CircleHandler {
	return &CircleHandler{
		factoryService: factoryService,
		circleService:  circleService,
	}
}

// Create handles circle creation
// @Summary Create circle
// @Description Create a new lending circle gated on the creator's credit score
// @Tags Circles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.CreateCircleInput true "Circle parameters"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /circles [post]
func (h *CircleHandler) Create(c *fiber.Ctx) error {
	membNo, ok := middleware.MembNo(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	var input services.CreateCircleInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	circle, err := h.factoryService.CreateCircle(c.Context(), membNo, &input)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidAmount),
			errors.Is(err, domain.ErrInvalidDuration),
			errors.Is(err, domain.ErrTooFewParticipants),
			errors.Is(err, domain.ErrInvalidParticipantRange),
			errors.Is(err, domain.ErrInvalidReservePercentage),
			errors.Is(err, domain.ErrInvalidDistributionMethod):
			return response.BadRequest(c, err.Error())
		case errors.Is(err, domain.ErrInsufficientCredit),
			errors.Is(err, domain.ErrContributionExceedsCredit),
			errors.Is(err, domain.ErrParticipantsExceedCredit),
			errors.Is(err, domain.ErrVolumeExceedsCredit):
			return response.UnprocessableEntity(c, err.Error())
		default:
			return response.InternalServerError(c, "Failed to create circle")
		}
	}

	return response.Created(c, "Circle created successfully", circle.ToResponse())
}

// List lists all circles
// @Summary List circles
// @Description List all circles with pagination
// @Tags Circles
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page"
// @Param limit query int false "Limit"
// @Success 200 {object} response.Response
// @Router /circles [get]
func (h *CircleHandler) List(c *fiber.Ctx) error {
	params := pagination.GetParams(c)

	circles, total, err := h.factoryService.ListCircles(c.Context(), params)
	if err != nil {
		return response.InternalServerError(c, "Failed to list circles")
	}

	return response.Success(c, "Circles retrieved", pagination.NewResponse(circleResponses(circles), params, total))
}

// ListMine lists circles the caller participates in
// @Summary List my circles
// @Description List circles the authenticated member participates in
// @Tags Circles
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /circles/mine [get]
func (h *CircleHandler) ListMine(c *fiber.Ctx) error {
	membNo, ok := middleware.MembNo(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	params := pagination.GetParams(c)

	circles, total, err := h.factoryService.ListByMember(c.Context(), membNo, params)
	if err != nil {
		return response.InternalServerError(c, "Failed to list circles")
	}

	return response.Success(c, "Circles retrieved", pagination.NewResponse(circleResponses(circles), params, total))
}

// ListCreated lists circles the caller created
// @Summary List created circles
// @Description List circles the authenticated member created
// @Tags Circles
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /circles/created [get]
func (h *CircleHandler) ListCreated(c *fiber.Ctx) error {
	membNo, ok := middleware.MembNo(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	params := pagination.GetParams(c)

	circles, total, err := h.factoryService.ListByCreator(c.Context(), membNo, params)
	if err != nil {
		return response.InternalServerError(c, "Failed to list circles")
	}

	return response.Success(c, "Circles retrieved", pagination.NewResponse(circleResponses(circles), params, total))
}

// Get returns a circle snapshot
// @Summary Get circle
// @Description Get a circle with its participants
// @Tags Circles
// @Produce json
// @Security BearerAuth
// @Param code path string true "Circle code"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /circles/{code} [get]
func (h *CircleHandler) Get(c *fiber.Ctx) error {
	circle, err := h.factoryService.GetCircle(c.Context(), c.Params("code"))
	if err != nil {
		if errors.Is(err, services.ErrCircleNotFound) {
			return response.NotFound(c, "Circle not found")
		}
		return response.InternalServerError(c, "Failed to load circle")
	}

	return response.Success(c, "Circle retrieved", circle.ToResponse())
}

// Join files a join request
// @Summary Request to join
// @Description File a join request for a pending circle
// @Tags Circles
// @Produce json
// @Security BearerAuth
// @Param code path string true "Circle code"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /circles/{code}/join [post]
func (h *CircleHandler) Join(c *fiber.Ctx) error {
	membNo, ok := middleware.MembNo(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	err := h.circleService.RequestToJoin(c.Context(), c.Params("code"), membNo)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCircleNotFound):
			return response.NotFound(c, "Circle not found")
		case errors.Is(err, services.ErrCircleNotPending):
			return response.Conflict(c, "Circle is not accepting participants")
		case errors.Is(err, services.ErrCircleFull):
			return response.Conflict(c, "Circle is full")
		case errors.Is(err, services.ErrAlreadyParticipant):
			return response.Conflict(c, "Already requested or participating")
		default:
			return response.InternalServerError(c, "Failed to join circle")
		}
	}

	return response.Success(c, "Join request filed", nil)
}

// Approve approves a pending participant
// @Summary Approve participant
// @Description Coordinator approves a pending join request
// @Tags Circles
// @Produce json
// @Security BearerAuth
// @Param code path string true "Circle code"
// @Param memb_no path string true "Member number"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /circles/{code}/participants/{memb_no}/approve [post]
func (h *CircleHandler) Approve(c *fiber.Ctx) error {
	membNo, ok := middleware.MembNo(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	err := h.circleService.ApproveParticipant(c.Context(), c.Params("code"), membNo, c.Params("memb_no"))
	if err != nil {
		return h.admissionError(c, err, "Failed to approve participant")
	}

	return response.Success(c, "Participant approved", nil)
}

// Reject rejects a pending participant
// @Summary Reject participant
// @Description Coordinator rejects a pending join request, freeing its slot
// @Tags Circles
// @Produce json
// @Security BearerAuth
// @Param code path string true "Circle code"
// @Param memb_no path string true "Member number"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /circles/{code}/participants/{memb_no}/reject [post]
func (h *CircleHandler) Reject(c *fiber.Ctx) error {
	membNo, ok := middleware.MembNo(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	err := h.circleService.RejectParticipant(c.Context(), c.Params("code"), membNo, c.Params("memb_no"))
	if err != nil {
		return h.admissionError(c, err, "Failed to reject participant")
	}

	return response.Success(c, "Participant rejected", nil)
}

func (h *CircleHandler) admissionError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, services.ErrCircleNotFound):
		return response.NotFound(c, "Circle not found")
	case errors.Is(err, services.ErrNotCoordinator):
		return response.Forbidden(c, "Only the coordinator may manage participants")
	case errors.Is(err, services.ErrCircleNotPending):
		return response.Conflict(c, "Circle is no longer pending")
	case errors.Is(err, services.ErrParticipantNotFound):
		return response.NotFound(c, "Participant not found")
	case errors.Is(err, services.ErrParticipantAlreadyActive):
		return response.Conflict(c, "Participant is already approved")
	default:
		return response.InternalServerError(c, fallback)
	}
}

// Contribute records the caller's monthly contribution
// @Summary Make contribution
// @Description Record the member's contribution for the current month
// @Tags Circles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param code path string true "Circle code"
// @Param body body services.ContributionInput true "Contribution"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /circles/{code}/contributions [post]
func (h *CircleHandler) Contribute(c *fiber.Ctx) error {
	membNo, ok := middleware.MembNo(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	var input services.ContributionInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	err := h.circleService.MakeContribution(c.Context(), c.Params("code"), membNo, &input)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCircleNotFound):
			return response.NotFound(c, "Circle not found")
		case errors.Is(err, services.ErrCircleNotActive):
			return response.Conflict(c, "Circle is not active")
		case errors.Is(err, services.ErrWrongMonth):
			return response.UnprocessableEntity(c, "Contribution does not target the current month")
		case errors.Is(err, services.ErrNotActiveParticipant):
			return response.Forbidden(c, "Not an active participant of this circle")
		case errors.Is(err, services.ErrAlreadyPaid):
			return response.Conflict(c, "Contribution already recorded for this month")
		case errors.Is(err, services.ErrAmountMismatch):
			return response.BadRequest(c, "Amount does not match the required contribution")
		default:
			return response.InternalServerError(c, "Failed to record contribution")
		}
	}

	return response.Success(c, "Contribution recorded", nil)
}

// PenaltyRequest represents a coordinator penalty request body
type PenaltyRequest struct {
	Month int `json:"month"`
}

// RecordLate flags a member's month as paid late
// @Summary Record late payment
// @Description Coordinator flags a member's month as paid late
// @Tags Circles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param code path string true "Circle code"
// @Param memb_no path string true "Member number"
// @Param body body PenaltyRequest true "Month"
// @Success 200 {object} response.Response
// @Router /circles/{code}/participants/{memb_no}/late [post]
func (h *CircleHandler) RecordLate(c *fiber.Ctx) error {
	membNo, ok := middleware.MembNo(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	var req PenaltyRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	err := h.circleService.RecordLatePayment(c.Context(), c.Params("code"), membNo, c.Params("memb_no"), req.Month)
	if err != nil {
		return h.penaltyError(c, err, "Failed to record late payment")
	}

	return response.Success(c, "Late payment recorded", nil)
}

// RecordDefault marks a member as defaulted
// @Summary Record default
// @Description Coordinator marks a member as defaulted for a month
// @Tags Circles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param code path string true "Circle code"
// @Param memb_no path string true "Member number"
// @Param body body PenaltyRequest true "Month"
// @Success 200 {object} response.Response
// @Router /circles/{code}/participants/{memb_no}/default [post]
func (h *CircleHandler) RecordDefault(c *fiber.Ctx) error {
	membNo, ok := middleware.MembNo(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	var req PenaltyRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	err := h.circleService.RecordDefault(c.Context(), c.Params("code"), membNo, c.Params("memb_no"), req.Month)
	if err != nil {
		return h.penaltyError(c, err, "Failed to record default")
	}

	return response.Success(c, "Default recorded", nil)
}

func (h *CircleHandler) penaltyError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, services.ErrCircleNotFound):
		return response.NotFound(c, "Circle not found")
	case errors.Is(err, services.ErrNotCoordinator):
		return response.Forbidden(c, "Only the coordinator may record penalties")
	case errors.Is(err, services.ErrCircleNotActive):
		return response.Conflict(c, "Circle is not active")
	case errors.Is(err, services.ErrParticipantNotFound):
		return response.NotFound(c, "Participant not found")
	case errors.Is(err, services.ErrNotActiveParticipant):
		return response.Conflict(c, "Participant is not active")
	case errors.Is(err, services.ErrAlreadyPaid):
		return response.Conflict(c, "Month already marked as paid")
	default:
		return response.InternalServerError(c, fallback)
	}
}

// Withdraw pays out the caller's withdrawable balance
// @Summary Withdraw excess
// @Description Withdraw the member's accumulated excess balance
// @Tags Circles
// @Produce json
// @Security BearerAuth
// @Param code path string true "Circle code"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /circles/{code}/withdraw [post]
func (h *CircleHandler) Withdraw(c *fiber.Ctx) error {
	membNo, ok := middleware.MembNo(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	amount, err := h.circleService.WithdrawExcess(c.Context(), c.Params("code"), membNo)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCircleNotFound):
			return response.NotFound(c, "Circle not found")
		case errors.Is(err, services.ErrNotWithdrawable):
			return response.Conflict(c, "Circle does not use withdrawable distribution")
		case errors.Is(err, services.ErrParticipantNotFound):
			return response.NotFound(c, "Participant not found")
		case errors.Is(err, services.ErrNothingToWithdraw):
			return response.BadRequest(c, "No withdrawable balance")
		default:
			return response.InternalServerError(c, "Failed to withdraw")
		}
	}

	return response.Success(c, "Excess withdrawn", fiber.Map{"amount": amount})
}

// FundRequest represents a direct pool funding body
type FundRequest struct {
	Amount int64 `json:"amount"`
}

// Fund accepts a direct inflow into the circle pool
// @Summary Fund circle
// @Description Add funds directly to the circle pool
// @Tags Circles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param code path string true "Circle code"
// @Param body body FundRequest true "Amount"
// @Success 200 {object} response.Response
// @Router /circles/{code}/fund [post]
func (h *CircleHandler) Fund(c *fiber.Ctx) error {
	membNo, ok := middleware.MembNo(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	var req FundRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	err := h.circleService.FundCircle(c.Context(), c.Params("code"), membNo, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCircleNotFound):
			return response.NotFound(c, "Circle not found")
		case errors.Is(err, domain.ErrInvalidAmount):
			return response.BadRequest(c, "Amount must be positive")
		default:
			return response.InternalServerError(c, "Failed to fund circle")
		}
	}

	return response.Success(c, "Circle funded", nil)
}

// Transactions lists a circle's transaction history
// @Summary List circle transactions
// @Description List a circle's transaction history, newest first
// @Tags Circles
// @Produce json
// @Security BearerAuth
// @Param code path string true "Circle code"
// @Success 200 {object} response.Response
// @Router /circles/{code}/transactions [get]
func (h *CircleHandler) Transactions(c *fiber.Ctx) error {
	params := pagination.GetParams(c)

	transactions, total, err := h.circleService.ListTransactions(c.Context(), c.Params("code"), params)
	if err != nil {
		if errors.Is(err, services.ErrCircleNotFound) {
			return response.NotFound(c, "Circle not found")
		}
		return response.InternalServerError(c, "Failed to list transactions")
	}

	return response.Success(c, "Transactions retrieved", pagination.NewResponse(transactions, params, total))
}

// PaymentStatus reports whether the caller paid for a month
// @Summary Check payment status
// @Description Check whether the member has paid for a month
// @Tags Circles
// @Produce json
// @Security BearerAuth
// @Param code path string true "Circle code"
// @Param month path int true "Month"
// @Success 200 {object} response.Response
// @Router /circles/{code}/payments/{month} [get]
func (h *CircleHandler) PaymentStatus(c *fiber.Ctx) error {
	membNo, ok := middleware.MembNo(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	month, err := strconv.Atoi(c.Params("month"))
	if err != nil || month < 0 {
		return response.BadRequest(c, "Invalid month")
	}

	paid, err := h.circleService.HasPaid(c.Context(), c.Params("code"), membNo, month)
	if err != nil {
		if errors.Is(err, services.ErrCircleNotFound) {
			return response.NotFound(c, "Circle not found")
		}
		return response.InternalServerError(c, "Failed to check payment status")
	}

	return response.Success(c, "Payment status retrieved", fiber.Map{
		"month": month,
		"paid":  paid,
	})
}

func circleResponses(circles []*models.Circle) []*models.CircleResponse {
	responses := make([]*models.CircleResponse, 0, len(circles))
	for _, circle := range circles {
		responses = append(responses, circle.ToResponse())
	}
	return responses
}
