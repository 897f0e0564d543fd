package services

import (
	"context"
	"errors"
	"log"

	"circlefund/internal/adapters/persistence/models"
	"circlefund/internal/adapters/persistence/repositories"
	"circlefund/internal/core/domain"

	"gorm.io/gorm"
)

// CreditService maintains the per-member credit ledger. Scores saturate
// at the [0, 1000] bounds; a profile is created lazily with the base
// score on the first event that touches it.
type CreditService struct {
	creditRepo *repositories.CreditRepository
}

// NewCreditService creates a new credit service
func NewCreditService(creditRepo *repositories.CreditRepository) *CreditService {
	return &CreditService{creditRepo: creditRepo}
}

// WithTx returns a copy of the service scoped to the given transaction
func (s *CreditService) WithTx(tx *gorm.DB) *CreditService {
	return &CreditService{creditRepo: s.creditRepo.WithTx(tx)}
}

// GetScore returns the member's current score, or the base score when no
// profile exists yet. Reading never creates a profile.
func (s *CreditService) GetScore(ctx context.Context, membNo string) (int, error) {
	profile, err := s.creditRepo.GetByMembNo(ctx, membNo)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.BaseScore, nil
		}
		return 0, err
	}
	return profile.Score, nil
}

// GetProfile returns the member's full ledger entry. Members without a
// persisted profile get a synthesized default, not a stored row.
func (s *CreditService) GetProfile(ctx context.Context, membNo string) (*models.CreditProfile, error) {
	profile, err := s.creditRepo.GetByMembNo(ctx, membNo)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &models.CreditProfile{
				MembNo: membNo,
				Score:  domain.BaseScore,
			}, nil
		}
		return nil, err
	}
	return profile, nil
}

// RecordOnTimePayment applies the on-time payment bonus
func (s *CreditService) RecordOnTimePayment(ctx context.Context, membNo string) error {
	profile, err := s.creditRepo.GetOrCreate(ctx, membNo)
	if err != nil {
		return err
	}
	profile.Score = domain.ClampScore(profile.Score + domain.OnTimeBonus)
	profile.OnTimePayments++
	return s.creditRepo.Save(ctx, profile)
}

// RecordLatePayment applies the late payment penalty
func (s *CreditService) RecordLatePayment(ctx context.Context, membNo string) error {
	profile, err := s.creditRepo.GetOrCreate(ctx, membNo)
	if err != nil {
		return err
	}
	profile.Score = domain.ClampScore(profile.Score - domain.LatePenalty)
	profile.LatePayments++
	return s.creditRepo.Save(ctx, profile)
}

// RecordDefault applies the default penalty and permanently marks the
// member as having defaulted
func (s *CreditService) RecordDefault(ctx context.Context, membNo string) error {
	profile, err := s.creditRepo.GetOrCreate(ctx, membNo)
	if err != nil {
		return err
	}
	profile.Score = domain.ClampScore(profile.Score - domain.DefaultPenalty)
	profile.Defaults++
	profile.HasDefaulted = true
	if err := s.creditRepo.Save(ctx, profile); err != nil {
		return err
	}
	log.Printf("⚠️ Default recorded for member %s (score now %d)", membNo, profile.Score)
	return nil
}

// RecordCircleJoin counts a circle membership on the ledger
func (s *CreditService) RecordCircleJoin(ctx context.Context, membNo string) error {
	profile, err := s.creditRepo.GetOrCreate(ctx, membNo)
	if err != nil {
		return err
	}
	profile.CirclesJoined++
	return s.creditRepo.Save(ctx, profile)
}

// RecordCircleCompletion applies the completion bonus
func (s *CreditService) RecordCircleCompletion(ctx context.Context, membNo string) error {
	profile, err := s.creditRepo.GetOrCreate(ctx, membNo)
	if err != nil {
		return err
	}
	profile.Score = domain.ClampScore(profile.Score + domain.CompletionBonus)
	profile.CirclesCompleted++
	return s.creditRepo.Save(ctx, profile)
}

// TopScores lists the highest-scored members
func (s *CreditService) TopScores(ctx context.Context, limit int) ([]models.CreditProfile, error) {
	return s.creditRepo.TopScores(ctx, limit)
}
