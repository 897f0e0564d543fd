package domain

import "errors"

// Common domain errors
var (
	ErrNotFound       = errors.New("resource not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidState   = errors.New("invalid lifecycle state")
	ErrDuplicateEntry = errors.New("duplicate entry")
)

// Circle parameter errors
var (
	ErrInvalidAmount             = errors.New("amount must be greater than zero")
	ErrInvalidDuration           = errors.New("duration must be at least one month")
	ErrTooFewParticipants        = errors.New("minimum participants must be at least 2")
	ErrInvalidParticipantRange   = errors.New("max participants must be >= min participants")
	ErrInvalidReservePercentage  = errors.New("reserve percentage must be between 0 and 100")
	ErrInvalidDistributionMethod = errors.New("unknown excess distribution method")
)

// Credit-gate errors (creation-time limits)
var (
	ErrInsufficientCredit        = errors.New("credit score too low to create a circle")
	ErrContributionExceedsCredit = errors.New("monthly contribution exceeds credit limit")
	ErrParticipantsExceedCredit  = errors.New("max participants exceeds credit limit")
	ErrVolumeExceedsCredit       = errors.New("total circle volume exceeds credit limit")
)
