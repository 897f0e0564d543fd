package repositories

import (
	"context"
	"time"

	"circlefund/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// ProposalRepository handles payout proposal, candidate and vote data access
type ProposalRepository struct {
	db *gorm.DB
}

// NewProposalRepository creates a new proposal repository
func NewProposalRepository(db *gorm.DB) *ProposalRepository {
	return &ProposalRepository{db: db}
}

// WithTx returns a copy of the repository scoped to the given transaction
func (r *ProposalRepository) WithTx(tx *gorm.DB) *ProposalRepository {
	return &ProposalRepository{db: tx}
}

// GetByCircleMonth gets the proposal for a circle month, candidates in
// nomination order
func (r *ProposalRepository) GetByCircleMonth(ctx context.Context, circleID uint, month int) (*models.PayoutProposal, error) {
	var proposal models.PayoutProposal
	err := r.db.WithContext(ctx).
		Preload("Candidates", func(db *gorm.DB) *gorm.DB {
			return db.Order("proposal_candidates.position ASC")
		}).
		Where("circle_id = ? AND month = ?", circleID, month).
		First(&proposal).Error
	if err != nil {
		return nil, err
	}
	return &proposal, nil
}

// Create creates a new proposal
func (r *ProposalRepository) Create(ctx context.Context, proposal *models.PayoutProposal) error {
	return r.db.WithContext(ctx).Create(proposal).Error
}

// Save persists a modified proposal
func (r *ProposalRepository) Save(ctx context.Context, proposal *models.PayoutProposal) error {
	return r.db.WithContext(ctx).Save(proposal).Error
}

// CreateCandidate adds a candidate to a proposal
func (r *ProposalRepository) CreateCandidate(ctx context.Context, candidate *models.ProposalCandidate) error {
	return r.db.WithContext(ctx).Create(candidate).Error
}

// GetCandidate gets a candidate of a proposal
func (r *ProposalRepository) GetCandidate(ctx context.Context, proposalID uint, membNo string) (*models.ProposalCandidate, error) {
	var candidate models.ProposalCandidate
	err := r.db.WithContext(ctx).
		Where("proposal_id = ? AND memb_no = ?", proposalID, membNo).
		First(&candidate).Error
	if err != nil {
		return nil, err
	}
	return &candidate, nil
}

// SaveCandidate persists a modified candidate
func (r *ProposalRepository) SaveCandidate(ctx context.Context, candidate *models.ProposalCandidate) error {
	return r.db.WithContext(ctx).Save(candidate).Error
}

// CountCandidates counts candidates on a proposal
func (r *ProposalRepository) CountCandidates(ctx context.Context, proposalID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ProposalCandidate{}).
		Where("proposal_id = ?", proposalID).
		Count(&count).Error
	return count, err
}

// GetVote gets a voter's vote on a proposal
func (r *ProposalRepository) GetVote(ctx context.Context, proposalID uint, voterMembNo string) (*models.ProposalVote, error) {
	var vote models.ProposalVote
	err := r.db.WithContext(ctx).
		Where("proposal_id = ? AND voter_memb_no = ?", proposalID, voterMembNo).
		First(&vote).Error
	if err != nil {
		return nil, err
	}
	return &vote, nil
}

// CreateVote records a vote
func (r *ProposalRepository) CreateVote(ctx context.Context, vote *models.ProposalVote) error {
	return r.db.WithContext(ctx).Create(vote).Error
}

// ListExpiredOpen lists proposals whose voting window has closed but that
// were never executed (reminder sweep)
func (r *ProposalRepository) ListExpiredOpen(ctx context.Context, now time.Time) ([]*models.PayoutProposal, error) {
	var proposals []*models.PayoutProposal
	err := r.db.WithContext(ctx).
		Where("executed = ? AND end_time < ?", false, now).
		Find(&proposals).Error
	return proposals, err
}
