package services

import (
	"context"
	"errors"
	"log"
	"time"

	"circlefund/internal/adapters/persistence/models"
	"circlefund/internal/adapters/persistence/repositories"
	"circlefund/internal/core/domain"
	"circlefund/internal/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Factory errors
var (
	ErrCircleNotFound = errors.New("circle not found")
)

// FactoryService creates circles and maintains the deployment indices.
// Creation is gated on the creator's credit score: the score must meet
// the floor, and the circle's parameters must fit inside the limits the
// score allows. The gates apply once, at creation.
type FactoryService struct {
	db             *gorm.DB
	circleRepo     *repositories.CircleRepository
	txRepo         *repositories.TransactionRepository
	creditService  *CreditService
	reserveService *ReserveService
}

// NewFactoryService creates a new factory service
func NewFactoryService(
	db *gorm.DB,
	circleRepo *repositories.CircleRepository,
	txRepo *repositories.TransactionRepository,
	creditService *CreditService,
	reserveService *ReserveService,
) *FactoryService {
	return &FactoryService{
		db:             db,
		circleRepo:     circleRepo,
		txRepo:         txRepo,
		creditService:  creditService,
		reserveService: reserveService,
	}
}

// CreateCircleInput represents circle creation input
type CreateCircleInput struct {
	MonthlyContribution int64  `json:"monthly_contribution" validate:"required,gt=0"`
	DurationMonths      int    `json:"duration_months" validate:"required,gt=0"`
	MinParticipants     int    `json:"min_participants" validate:"required,gte=2"`
	MaxParticipants     int    `json:"max_participants" validate:"required"`
	ReservePercentage   int    `json:"reserve_percentage" validate:"gte=0,lte=100"`
	DistributionMethod  string `json:"distribution_method" validate:"required,oneof=WITHDRAWABLE AUTO_DEDUCT"`
}

// CreateCircle creates a new circle with the caller as creator,
// coordinator and first active participant, and verifies it against
// the reserve pool
func (s *FactoryService) CreateCircle(ctx context.Context, creatorMembNo string, input *CreateCircleInput) (*models.Circle, error) {
	params := domain.CircleParams{
		MonthlyContribution: input.MonthlyContribution,
		DurationMonths:      input.DurationMonths,
		MinParticipants:     input.MinParticipants,
		MaxParticipants:     input.MaxParticipants,
		ReservePercentage:   input.ReservePercentage,
		DistributionMethod:  domain.DistributionMethod(input.DistributionMethod),
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	score, err := s.creditService.GetScore(ctx, creatorMembNo)
	if err != nil {
		return nil, err
	}
	if score < domain.MinCreatorScore {
		return nil, domain.ErrInsufficientCredit
	}
	if err := params.CheckCreditLimits(score); err != nil {
		return nil, err
	}

	circle := &models.Circle{
		Code:                uuid.New().String(),
		CreatorMembNo:       creatorMembNo,
		CoordinatorMembNo:   creatorMembNo,
		MonthlyContribution: params.MonthlyContribution,
		DurationMonths:      params.DurationMonths,
		MinParticipants:     params.MinParticipants,
		MaxParticipants:     params.MaxParticipants,
		ReservePercentage:   params.ReservePercentage,
		DistributionMethod:  string(params.DistributionMethod),
		Status:              string(domain.CirclePending),
		CurrentMonth:        0,
		TotalParticipants:   1,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		circleRepo := s.circleRepo.WithTx(tx)
		txRepo := s.txRepo.WithTx(tx)
		credit := s.creditService.WithTx(tx)
		reserve := s.reserveService.WithTx(tx)

		if err := circleRepo.Create(ctx, circle); err != nil {
			return err
		}

		now := time.Now()
		creator := &models.Participant{
			CircleID:   circle.ID,
			MembNo:     creatorMembNo,
			IsActive:   true,
			ApprovedAt: &now,
		}
		if err := circleRepo.CreateParticipant(ctx, creator); err != nil {
			return err
		}

		if err := reserve.VerifyCircle(ctx, circle.ID); err != nil {
			return err
		}

		if err := credit.RecordCircleJoin(ctx, creatorMembNo); err != nil {
			return err
		}

		return txRepo.Create(ctx, &models.Transaction{
			CircleID:    circle.ID,
			TxType:      models.TxTypeCreate,
			MembNo:      creatorMembNo,
			Description: "circle created",
		})
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Circle created: %s by member %s (contribution: %d, duration: %d months)",
		circle.Code, creatorMembNo, circle.MonthlyContribution, circle.DurationMonths)

	return circle, nil
}

// GetCircle returns a circle snapshot with its participants
func (s *FactoryService) GetCircle(ctx context.Context, code string) (*models.Circle, error) {
	circle, err := s.circleRepo.GetByCodeWithParticipants(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCircleNotFound
		}
		return nil, err
	}
	return circle, nil
}

// ListCircles lists all circles
func (s *FactoryService) ListCircles(ctx context.Context, params *pagination.Params) ([]*models.Circle, int64, error) {
	return s.circleRepo.List(ctx, params.Offset, params.Limit)
}

// ListByCreator lists circles created by a member
func (s *FactoryService) ListByCreator(ctx context.Context, membNo string, params *pagination.Params) ([]*models.Circle, int64, error) {
	return s.circleRepo.ListByCreator(ctx, membNo, params.Offset, params.Limit)
}

// ListByMember lists circles the member participates in
func (s *FactoryService) ListByMember(ctx context.Context, membNo string, params *pagination.Params) ([]*models.Circle, int64, error) {
	return s.circleRepo.ListByMember(ctx, membNo, params.Offset, params.Limit)
}
