package repositories

import (
	"context"
	"errors"

	"circlefund/internal/adapters/persistence/models"
	"circlefund/internal/core/domain"

	"gorm.io/gorm"
)

// CreditRepository handles credit profile data access
type CreditRepository struct {
	db *gorm.DB
}

// NewCreditRepository creates a new credit repository
func NewCreditRepository(db *gorm.DB) *CreditRepository {
	return &CreditRepository{db: db}
}

// WithTx returns a copy of the repository scoped to the given transaction
func (r *CreditRepository) WithTx(tx *gorm.DB) *CreditRepository {
	return &CreditRepository{db: tx}
}

// GetByMembNo gets a credit profile by member number
func (r *CreditRepository) GetByMembNo(ctx context.Context, membNo string) (*models.CreditProfile, error) {
	var profile models.CreditProfile
	err := r.db.WithContext(ctx).Where("memb_no = ?", membNo).First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetOrCreate gets a profile, lazily creating it with the base score on
// the first ledger-mutating event
func (r *CreditRepository) GetOrCreate(ctx context.Context, membNo string) (*models.CreditProfile, error) {
	profile, err := r.GetByMembNo(ctx, membNo)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	profile = &models.CreditProfile{
		MembNo: membNo,
		Score:  domain.BaseScore,
	}
	if err := r.db.WithContext(ctx).Create(profile).Error; err != nil {
		return nil, err
	}
	return profile, nil
}

// Save persists a modified credit profile
func (r *CreditRepository) Save(ctx context.Context, profile *models.CreditProfile) error {
	return r.db.WithContext(ctx).Save(profile).Error
}

// TopScores lists the highest-scored profiles
func (r *CreditRepository) TopScores(ctx context.Context, limit int) ([]models.CreditProfile, error) {
	var profiles []models.CreditProfile
	err := r.db.WithContext(ctx).
		Order("score DESC").
		Limit(limit).
		Find(&profiles).Error
	return profiles, err
}

// Count counts all credit profiles
func (r *CreditRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.CreditProfile{}).Count(&count).Error
	return count, err
}
