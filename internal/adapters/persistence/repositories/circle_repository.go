package repositories

import (
	"context"
	"errors"

	"circlefund/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// CircleRepository handles circle, participant and payment data access
type CircleRepository struct {
	db *gorm.DB
}

// NewCircleRepository creates a new circle repository
func NewCircleRepository(db *gorm.DB) *CircleRepository {
	return &CircleRepository{db: db}
}

// WithTx returns a copy of the repository scoped to the given transaction
func (r *CircleRepository) WithTx(tx *gorm.DB) *CircleRepository {
	return &CircleRepository{db: tx}
}

// Create creates a new circle
func (r *CircleRepository) Create(ctx context.Context, circle *models.Circle) error {
	return r.db.WithContext(ctx).Create(circle).Error
}

// GetByCode gets a circle by its public code
func (r *CircleRepository) GetByCode(ctx context.Context, code string) (*models.Circle, error) {
	var circle models.Circle
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&circle).Error
	if err != nil {
		return nil, err
	}
	return &circle, nil
}

// GetByCodeWithParticipants gets a circle with its participants preloaded
func (r *CircleRepository) GetByCodeWithParticipants(ctx context.Context, code string) (*models.Circle, error) {
	var circle models.Circle
	err := r.db.WithContext(ctx).
		Preload("Participants", func(db *gorm.DB) *gorm.DB {
			return db.Order("circle_participants.id ASC")
		}).
		Where("code = ?", code).
		First(&circle).Error
	if err != nil {
		return nil, err
	}
	return &circle, nil
}

// Save persists a modified circle
func (r *CircleRepository) Save(ctx context.Context, circle *models.Circle) error {
	return r.db.WithContext(ctx).Save(circle).Error
}

// List lists circles with pagination
func (r *CircleRepository) List(ctx context.Context, offset, limit int) ([]*models.Circle, int64, error) {
	var circles []*models.Circle
	var total int64

	r.db.WithContext(ctx).Model(&models.Circle{}).Count(&total)

	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&circles).Error

	return circles, total, err
}

// ListByCreator lists circles created by a member
func (r *CircleRepository) ListByCreator(ctx context.Context, membNo string, offset, limit int) ([]*models.Circle, int64, error) {
	var circles []*models.Circle
	var total int64

	r.db.WithContext(ctx).Model(&models.Circle{}).Where("creator_memb_no = ?", membNo).Count(&total)

	err := r.db.WithContext(ctx).
		Where("creator_memb_no = ?", membNo).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&circles).Error

	return circles, total, err
}

// ListByMember lists circles where the member is a participant
func (r *CircleRepository) ListByMember(ctx context.Context, membNo string, offset, limit int) ([]*models.Circle, int64, error) {
	var circles []*models.Circle
	var total int64

	base := r.db.WithContext(ctx).
		Model(&models.Circle{}).
		Joins("JOIN circle_participants ON circle_participants.circle_id = circles.id").
		Where("circle_participants.memb_no = ?", membNo)

	base.Count(&total)

	err := base.
		Order("circles.created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&circles).Error

	return circles, total, err
}

// CountByStatus counts circles per lifecycle status
func (r *CircleRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&models.Circle{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

// SumPoolBalances sums pool balances across all circles
func (r *CircleRepository) SumPoolBalances(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.Circle{}).
		Select("COALESCE(SUM(pool_balance), 0)").
		Scan(&total).Error
	return total, err
}

// ListActiveCircles lists all circles in ACTIVE status
func (r *CircleRepository) ListActiveCircles(ctx context.Context) ([]*models.Circle, error) {
	var circles []*models.Circle
	err := r.db.WithContext(ctx).Where("status = ?", "ACTIVE").Find(&circles).Error
	return circles, err
}

// ============================================================
// Participants
// ============================================================

// GetParticipant gets a participant record for a circle
func (r *CircleRepository) GetParticipant(ctx context.Context, circleID uint, membNo string) (*models.Participant, error) {
	var p models.Participant
	err := r.db.WithContext(ctx).
		Where("circle_id = ? AND memb_no = ?", circleID, membNo).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// HasParticipant reports whether the member has a record in the circle
func (r *CircleRepository) HasParticipant(ctx context.Context, circleID uint, membNo string) (bool, error) {
	_, err := r.GetParticipant(ctx, circleID, membNo)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, err
}

// CreateParticipant creates a participant record
func (r *CircleRepository) CreateParticipant(ctx context.Context, p *models.Participant) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// SaveParticipant persists a modified participant record
func (r *CircleRepository) SaveParticipant(ctx context.Context, p *models.Participant) error {
	return r.db.WithContext(ctx).Save(p).Error
}

// DeleteParticipant removes a participant record (rejection while pending)
func (r *CircleRepository) DeleteParticipant(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Participant{}, id).Error
}

// CountActiveParticipants counts approved participants in a circle
func (r *CircleRepository) CountActiveParticipants(ctx context.Context, circleID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Participant{}).
		Where("circle_id = ? AND is_active = ?", circleID, true).
		Count(&count).Error
	return count, err
}

// ListActiveParticipants lists approved participants in join order
func (r *CircleRepository) ListActiveParticipants(ctx context.Context, circleID uint) ([]*models.Participant, error) {
	var participants []*models.Participant
	err := r.db.WithContext(ctx).
		Where("circle_id = ? AND is_active = ?", circleID, true).
		Order("id ASC").
		Find(&participants).Error
	return participants, err
}

// ListParticipants lists every participant record of a circle
func (r *CircleRepository) ListParticipants(ctx context.Context, circleID uint) ([]*models.Participant, error) {
	var participants []*models.Participant
	err := r.db.WithContext(ctx).
		Where("circle_id = ?", circleID).
		Order("id ASC").
		Find(&participants).Error
	return participants, err
}

// ============================================================
// Payments
// ============================================================

// GetPayment gets the payment flag for a member and month
func (r *CircleRepository) GetPayment(ctx context.Context, circleID uint, membNo string, month int) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("circle_id = ? AND memb_no = ? AND month = ?", circleID, membNo, month).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// HasPaid reports whether the member already paid for the month
func (r *CircleRepository) HasPaid(ctx context.Context, circleID uint, membNo string, month int) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("circle_id = ? AND memb_no = ? AND month = ?", circleID, membNo, month).
		Count(&count).Error
	return count > 0, err
}

// CreatePayment records a payment flag for a member and month
func (r *CircleRepository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

// UnpaidActiveMembers lists active non-defaulted participants who have
// not paid for the given month (reminder sweep)
func (r *CircleRepository) UnpaidActiveMembers(ctx context.Context, circleID uint, month int) ([]string, error) {
	var membNos []string
	err := r.db.WithContext(ctx).
		Model(&models.Participant{}).
		Where("circle_id = ? AND is_active = ? AND is_in_default = ?", circleID, true, false).
		Where("memb_no NOT IN (?)",
			r.db.Model(&models.Payment{}).
				Select("memb_no").
				Where("circle_id = ? AND month = ?", circleID, month),
		).
		Pluck("memb_no", &membNos).Error
	return membNos, err
}
