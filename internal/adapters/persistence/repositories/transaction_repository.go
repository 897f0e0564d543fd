package repositories

import (
	"context"

	"circlefund/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// TransactionRepository handles circle transaction history
type TransactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// WithTx returns a copy of the repository scoped to the given transaction
func (r *TransactionRepository) WithTx(tx *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: tx}
}

// Create appends a transaction record
func (r *TransactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	return r.db.WithContext(ctx).Create(tx).Error
}

// ListByCircle lists a circle's history, newest first
func (r *TransactionRepository) ListByCircle(ctx context.Context, circleID uint, offset, limit int) ([]*models.Transaction, int64, error) {
	var transactions []*models.Transaction
	var total int64

	r.db.WithContext(ctx).Model(&models.Transaction{}).Where("circle_id = ?", circleID).Count(&total)

	err := r.db.WithContext(ctx).
		Where("circle_id = ?", circleID).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&transactions).Error

	return transactions, total, err
}
