package repositories

import (
	"context"
	"errors"
	"time"

	"circlefund/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// ReserveRepository handles reserve pool data access. The pool is a
// single row shared by all circles.
type ReserveRepository struct {
	db *gorm.DB
}

// NewReserveRepository creates a new reserve repository
func NewReserveRepository(db *gorm.DB) *ReserveRepository {
	return &ReserveRepository{db: db}
}

// WithTx returns a copy of the repository scoped to the given transaction
func (r *ReserveRepository) WithTx(tx *gorm.DB) *ReserveRepository {
	return &ReserveRepository{db: tx}
}

// Get gets the reserve pool row, creating the zeroed row on first use
func (r *ReserveRepository) Get(ctx context.Context) (*models.ReservePool, error) {
	var pool models.ReservePool
	err := r.db.WithContext(ctx).First(&pool).Error
	if err == nil {
		return &pool, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	pool = models.ReservePool{}
	if err := r.db.WithContext(ctx).Create(&pool).Error; err != nil {
		return nil, err
	}
	return &pool, nil
}

// Save persists the reserve pool row
func (r *ReserveRepository) Save(ctx context.Context, pool *models.ReservePool) error {
	return r.db.WithContext(ctx).Save(pool).Error
}

// Verify adds a circle to the allow-list (or re-activates it)
func (r *ReserveRepository) Verify(ctx context.Context, circleID uint) error {
	var vc models.VerifiedCircle
	err := r.db.WithContext(ctx).Where("circle_id = ?", circleID).First(&vc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.WithContext(ctx).Create(&models.VerifiedCircle{CircleID: circleID, Active: true}).Error
	}
	if err != nil {
		return err
	}

	vc.Active = true
	vc.RevokedAt = nil
	return r.db.WithContext(ctx).Save(&vc).Error
}

// Revoke removes a circle from the allow-list
func (r *ReserveRepository) Revoke(ctx context.Context, circleID uint) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&models.VerifiedCircle{}).
		Where("circle_id = ?", circleID).
		Updates(map[string]interface{}{"active": false, "revoked_at": &now}).Error
}

// IsVerified reports whether a circle is on the allow-list
func (r *ReserveRepository) IsVerified(ctx context.Context, circleID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.VerifiedCircle{}).
		Where("circle_id = ? AND active = ?", circleID, true).
		Count(&count).Error
	return count > 0, err
}

// CountVerified counts circles currently on the allow-list
func (r *ReserveRepository) CountVerified(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.VerifiedCircle{}).
		Where("active = ?", true).
		Count(&count).Error
	return count, err
}
