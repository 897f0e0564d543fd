package services

import (
	"context"
	"errors"
	"log"

	"circlefund/internal/adapters/persistence/models"
	"circlefund/internal/adapters/persistence/repositories"

	"gorm.io/gorm"
)

// Reserve errors
var (
	ErrCircleNotVerified   = errors.New("circle is not verified for reserve operations")
	ErrInsufficientReserve = errors.New("insufficient reserve balance")
	ErrInvalidRecipient    = errors.New("invalid reserve recipient")
	ErrInvalidDeposit      = errors.New("deposit amount must be positive")
)

// ReserveService manages the shared safety-net pool. Only circles on the
// allow-list may move funds in or out; the pool itself is a single row
// shared by every circle.
type ReserveService struct {
	reserveRepo *repositories.ReserveRepository
}

// NewReserveService creates a new reserve service
func NewReserveService(reserveRepo *repositories.ReserveRepository) *ReserveService {
	return &ReserveService{reserveRepo: reserveRepo}
}

// WithTx returns a copy of the service scoped to the given transaction
func (s *ReserveService) WithTx(tx *gorm.DB) *ReserveService {
	return &ReserveService{reserveRepo: s.reserveRepo.WithTx(tx)}
}

// VerifyCircle puts a circle on the allow-list
func (s *ReserveService) VerifyCircle(ctx context.Context, circleID uint) error {
	return s.reserveRepo.Verify(ctx, circleID)
}

// RevokeCircle removes a circle from the allow-list. Funds already
// deposited stay in the pool.
func (s *ReserveService) RevokeCircle(ctx context.Context, circleID uint) error {
	if err := s.reserveRepo.Revoke(ctx, circleID); err != nil {
		return err
	}
	log.Printf("🚫 Circle %d revoked from reserve pool", circleID)
	return nil
}

// IsVerified reports whether a circle is on the allow-list
func (s *ReserveService) IsVerified(ctx context.Context, circleID uint) (bool, error) {
	return s.reserveRepo.IsVerified(ctx, circleID)
}

// Deposit accepts reserve funds from a verified circle
func (s *ReserveService) Deposit(ctx context.Context, circleID uint, amount int64) error {
	if amount <= 0 {
		return ErrInvalidDeposit
	}

	verified, err := s.reserveRepo.IsVerified(ctx, circleID)
	if err != nil {
		return err
	}
	if !verified {
		return ErrCircleNotVerified
	}

	pool, err := s.reserveRepo.Get(ctx)
	if err != nil {
		return err
	}

	pool.TotalDeposited += amount
	pool.CurrentBalance += amount
	return s.reserveRepo.Save(ctx, pool)
}

// Withdraw releases reserve funds to a recipient on behalf of a verified
// circle. Fails without touching the pool when the balance cannot cover
// the amount.
func (s *ReserveService) Withdraw(ctx context.Context, circleID uint, amount int64, recipientMembNo string) error {
	if amount <= 0 {
		return ErrInvalidDeposit
	}
	if recipientMembNo == "" {
		return ErrInvalidRecipient
	}

	verified, err := s.reserveRepo.IsVerified(ctx, circleID)
	if err != nil {
		return err
	}
	if !verified {
		return ErrCircleNotVerified
	}

	pool, err := s.reserveRepo.Get(ctx)
	if err != nil {
		return err
	}

	if pool.CurrentBalance < amount {
		return ErrInsufficientReserve
	}

	pool.TotalWithdrawn += amount
	pool.CurrentBalance -= amount
	if err := s.reserveRepo.Save(ctx, pool); err != nil {
		return err
	}

	log.Printf("💸 Reserve released %d to member %s for circle %d", amount, recipientMembNo, circleID)
	return nil
}

// ReserveStats is a snapshot of the reserve pool state
type ReserveStats struct {
	TotalDeposited  int64 `json:"total_deposited"`
	TotalWithdrawn  int64 `json:"total_withdrawn"`
	CurrentBalance  int64 `json:"current_balance"`
	VerifiedCircles int64 `json:"verified_circles"`
	// UtilizationBps is withdrawn-over-deposited in basis points
	UtilizationBps int64 `json:"utilization_bps"`
}

// Stats returns a snapshot of the reserve pool
func (s *ReserveService) Stats(ctx context.Context) (*ReserveStats, error) {
	pool, err := s.reserveRepo.Get(ctx)
	if err != nil {
		return nil, err
	}

	verified, err := s.reserveRepo.CountVerified(ctx)
	if err != nil {
		return nil, err
	}

	stats := &ReserveStats{
		TotalDeposited:  pool.TotalDeposited,
		TotalWithdrawn:  pool.TotalWithdrawn,
		CurrentBalance:  pool.CurrentBalance,
		VerifiedCircles: verified,
	}
	if pool.TotalDeposited > 0 {
		stats.UtilizationBps = pool.TotalWithdrawn * 10000 / pool.TotalDeposited
	}
	return stats, nil
}

// Pool returns the raw reserve pool row
func (s *ReserveService) Pool(ctx context.Context) (*models.ReservePool, error) {
	return s.reserveRepo.Get(ctx)
}
