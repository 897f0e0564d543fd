package handlers

import (
	"errors"
	"strconv"

	"circlefund/internal/adapters/http/middleware"
	"circlefund/internal/core/services"
	"circlefund/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// PayoutHandler handles payout proposal, voting and execution endpoints
type PayoutHandler struct {
	payoutService *services.PayoutService
}

// NewPayoutHandler creates a new payout handler
func NewPayoutHandler(payoutService *services.PayoutService) *PayoutHandler {
	return &PayoutHandler{payoutService: payoutService}
}

// ProposeRequest represents a nomination body
type ProposeRequest struct {
	CandidateMembNo string `json:"candidate_memb_no"`
	Month           int    `json:"month"`
}

// VoteRequest represents a vote body
type VoteRequest struct {
	CandidateMembNo string `json:"candidate_memb_no"`
	Month           int    `json:"month"`
}

// ExecuteRequest represents a payout execution body
type ExecuteRequest struct {
	Month int `json:"month"`
}

// Propose nominates a payout candidate
// @Summary Propose payout candidate
// @Description Nominate a candidate for the current month's payout; the first nomination opens the voting window
// @Tags Payouts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param code path string true "Circle code"
// @Param body body ProposeRequest true "Candidate"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /circles/{code}/payouts/propose [post]
func (h *PayoutHandler) Propose(c *fiber.Ctx) error {
	membNo, ok := middleware.MembNo(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	var req ProposeRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.CandidateMembNo == "" {
		return response.BadRequest(c, "Candidate member number is required")
	}

	err := h.payoutService.ProposePayout(c.Context(), c.Params("code"), membNo, req.CandidateMembNo, req.Month)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCircleNotFound):
			return response.NotFound(c, "Circle not found")
		case errors.Is(err, services.ErrCircleNotActive):
			return response.Conflict(c, "Circle is not active")
		case errors.Is(err, services.ErrWrongMonth):
			return response.UnprocessableEntity(c, "Nomination does not target the current month")
		case errors.Is(err, services.ErrNotActiveParticipant):
			return response.Forbidden(c, "Not an active participant of this circle")
		case errors.Is(err, services.ErrParticipantNotFound):
			return response.NotFound(c, "Candidate is not a participant")
		case errors.Is(err, services.ErrIneligibleCandidate):
			return response.UnprocessableEntity(c, "Candidate is not eligible for a payout")
		case errors.Is(err, services.ErrVotingClosed):
			return response.UnprocessableEntity(c, "The voting window has closed")
		case errors.Is(err, services.ErrAlreadyProposed):
			return response.Conflict(c, "Candidate already nominated this month")
		default:
			return response.InternalServerError(c, "Failed to nominate candidate")
		}
	}

	return response.Success(c, "Candidate nominated", nil)
}

// Vote casts a vote for a nominated candidate
// @Summary Vote for candidate
// @Description Cast a credit-score-weighted vote for a nominated candidate
// @Tags Payouts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param code path string true "Circle code"
// @Param body body VoteRequest true "Vote"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /circles/{code}/payouts/vote [post]
func (h *PayoutHandler) Vote(c *fiber.Ctx) error {
	membNo, ok := middleware.MembNo(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	var req VoteRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.CandidateMembNo == "" {
		return response.BadRequest(c, "Candidate member number is required")
	}

	err := h.payoutService.Vote(c.Context(), c.Params("code"), membNo, req.CandidateMembNo, req.Month)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCircleNotFound):
			return response.NotFound(c, "Circle not found")
		case errors.Is(err, services.ErrCircleNotActive):
			return response.Conflict(c, "Circle is not active")
		case errors.Is(err, services.ErrWrongMonth):
			return response.UnprocessableEntity(c, "Vote does not target the current month")
		case errors.Is(err, services.ErrNotActiveParticipant):
			return response.Forbidden(c, "Not an eligible voter in this circle")
		case errors.Is(err, services.ErrNoProposal):
			return response.NotFound(c, "No payout proposal for this month")
		case errors.Is(err, services.ErrVotingClosed):
			return response.UnprocessableEntity(c, "The voting window has closed")
		case errors.Is(err, services.ErrAlreadyVoted):
			return response.Conflict(c, "Already voted this month")
		case errors.Is(err, services.ErrCandidateNotFound):
			return response.NotFound(c, "Candidate not found on this proposal")
		case errors.Is(err, services.ErrZeroVoteWeight):
			return response.UnprocessableEntity(c, "Member has no voting weight")
		default:
			return response.InternalServerError(c, "Failed to cast vote")
		}
	}

	return response.Success(c, "Vote recorded", nil)
}

// Execute settles the month's payout
// @Summary Execute payout
// @Description Execute the month's payout after the voting window closes; any member may trigger it
// @Tags Payouts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param code path string true "Circle code"
// @Param body body ExecuteRequest true "Month"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /circles/{code}/payouts/execute [post]
func (h *PayoutHandler) Execute(c *fiber.Ctx) error {
	if _, ok := middleware.MembNo(c); !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	var req ExecuteRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	result, err := h.payoutService.ExecutePayout(c.Context(), c.Params("code"), req.Month)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCircleNotFound):
			return response.NotFound(c, "Circle not found")
		case errors.Is(err, services.ErrCircleNotActive):
			return response.Conflict(c, "Circle is not active")
		case errors.Is(err, services.ErrWrongMonth):
			return response.UnprocessableEntity(c, "Execution does not target the current month")
		case errors.Is(err, services.ErrNoProposal):
			return response.NotFound(c, "No payout proposal for this month")
		case errors.Is(err, services.ErrAlreadyExecuted):
			return response.Conflict(c, "Payout already executed for this month")
		case errors.Is(err, services.ErrVotingStillOpen):
			return response.UnprocessableEntity(c, "The voting window is still open")
		case errors.Is(err, services.ErrNoValidWinner):
			return response.UnprocessableEntity(c, "No eligible candidate to pay out")
		case errors.Is(err, services.ErrPayoutInProgress):
			return response.Conflict(c, "Payout execution already in progress")
		case errors.Is(err, services.ErrInsufficientReserve):
			return response.UnprocessableEntity(c, "Reserve cannot cover the pool shortfall")
		default:
			return response.InternalServerError(c, "Failed to execute payout")
		}
	}

	return response.Success(c, "Payout executed", result)
}

// GetProposal returns a month's proposal state
// @Summary Get payout proposal
// @Description Get the proposal, candidates and tallies for a circle month
// @Tags Payouts
// @Produce json
// @Security BearerAuth
// @Param code path string true "Circle code"
// @Param month path int true "Month"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /circles/{code}/payouts/{month} [get]
func (h *PayoutHandler) GetProposal(c *fiber.Ctx) error {
	month, err := strconv.Atoi(c.Params("month"))
	if err != nil || month < 0 {
		return response.BadRequest(c, "Invalid month")
	}

	view, err := h.payoutService.GetProposal(c.Context(), c.Params("code"), month)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCircleNotFound):
			return response.NotFound(c, "Circle not found")
		case errors.Is(err, services.ErrNoProposal):
			return response.NotFound(c, "No payout proposal for this month")
		default:
			return response.InternalServerError(c, "Failed to load proposal")
		}
	}

	return response.Success(c, "Proposal retrieved", view)
}
