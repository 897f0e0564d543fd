package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"circlefund/internal/adapters/persistence/models"
	"circlefund/internal/adapters/persistence/repositories"
	"circlefund/internal/core/domain"
	"circlefund/internal/pkg/pagination"

	"gorm.io/gorm"
)

// Circle lifecycle errors
var (
	ErrCircleNotPending         = errors.New("circle is not accepting participants")
	ErrCircleNotActive          = errors.New("circle is not active")
	ErrCircleFull               = errors.New("circle is full")
	ErrAlreadyParticipant       = errors.New("member already has a participant record")
	ErrNotCoordinator           = errors.New("only the coordinator may perform this action")
	ErrParticipantNotFound      = errors.New("participant not found")
	ErrParticipantAlreadyActive = errors.New("participant is already approved")
	ErrNotActiveParticipant     = errors.New("member is not an active participant")
	ErrWrongMonth               = errors.New("operation does not target the current month")
	ErrAlreadyPaid              = errors.New("contribution already recorded for this month")
	ErrAmountMismatch           = errors.New("attached amount does not match the required contribution")
	ErrNotWithdrawable          = errors.New("circle does not use withdrawable distribution")
	ErrNothingToWithdraw        = errors.New("no withdrawable balance")
)

// CircleService runs the lifecycle of a single circle: admission while
// PENDING, monthly contributions and coordinator penalties while ACTIVE,
// and excess withdrawals. Every mutating operation is all-or-nothing.
type CircleService struct {
	db             *gorm.DB
	circleRepo     *repositories.CircleRepository
	txRepo         *repositories.TransactionRepository
	creditService  *CreditService
	reserveService *ReserveService
}

// NewCircleService creates a new circle service
func NewCircleService(
	db *gorm.DB,
	circleRepo *repositories.CircleRepository,
	txRepo *repositories.TransactionRepository,
	creditService *CreditService,
	reserveService *ReserveService,
) *CircleService {
	return &CircleService{
		db:             db,
		circleRepo:     circleRepo,
		txRepo:         txRepo,
		creditService:  creditService,
		reserveService: reserveService,
	}
}

func (s *CircleService) getCircle(ctx context.Context, repo *repositories.CircleRepository, code string) (*models.Circle, error) {
	circle, err := repo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCircleNotFound
		}
		return nil, err
	}
	return circle, nil
}

// RequestToJoin files a join request. The requester becomes an inactive
// participant awaiting coordinator approval; the slot counts against the
// circle's capacity immediately.
func (s *CircleService) RequestToJoin(ctx context.Context, code, membNo string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		circleRepo := s.circleRepo.WithTx(tx)
		credit := s.creditService.WithTx(tx)

		circle, err := s.getCircle(ctx, circleRepo, code)
		if err != nil {
			return err
		}
		if circle.Status != string(domain.CirclePending) {
			return ErrCircleNotPending
		}
		if circle.TotalParticipants >= circle.MaxParticipants {
			return ErrCircleFull
		}

		exists, err := circleRepo.HasParticipant(ctx, circle.ID, membNo)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadyParticipant
		}

		if err := circleRepo.CreateParticipant(ctx, &models.Participant{
			CircleID: circle.ID,
			MembNo:   membNo,
			IsActive: false,
		}); err != nil {
			return err
		}

		circle.TotalParticipants++
		if err := circleRepo.Save(ctx, circle); err != nil {
			return err
		}

		if err := credit.RecordCircleJoin(ctx, membNo); err != nil {
			return err
		}

		log.Printf("📥 Join request: member %s -> circle %s (%d/%d slots)",
			membNo, code, circle.TotalParticipants, circle.MaxParticipants)
		return nil
	})
}

// ApproveParticipant approves a pending join request. When the approval
// brings the active participant count to the circle's minimum, the
// circle activates and month 0 begins.
func (s *CircleService) ApproveParticipant(ctx context.Context, code, coordinatorMembNo, membNo string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		circleRepo := s.circleRepo.WithTx(tx)

		circle, err := s.getCircle(ctx, circleRepo, code)
		if err != nil {
			return err
		}
		if circle.CoordinatorMembNo != coordinatorMembNo {
			return ErrNotCoordinator
		}
		if circle.Status != string(domain.CirclePending) {
			return ErrCircleNotPending
		}

		participant, err := circleRepo.GetParticipant(ctx, circle.ID, membNo)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrParticipantNotFound
			}
			return err
		}
		if participant.IsActive {
			return ErrParticipantAlreadyActive
		}

		now := time.Now()
		participant.IsActive = true
		participant.ApprovedAt = &now
		if err := circleRepo.SaveParticipant(ctx, participant); err != nil {
			return err
		}

		activeCount, err := circleRepo.CountActiveParticipants(ctx, circle.ID)
		if err != nil {
			return err
		}

		if activeCount >= int64(circle.MinParticipants) {
			circle.Status = string(domain.CircleActive)
			if err := circleRepo.Save(ctx, circle); err != nil {
				return err
			}
			log.Printf("🚀 Circle %s activated with %d participants", code, activeCount)
		}

		log.Printf("✅ Participant approved: member %s in circle %s", membNo, code)
		return nil
	})
}

// RejectParticipant removes a pending join request, freeing its slot
func (s *CircleService) RejectParticipant(ctx context.Context, code, coordinatorMembNo, membNo string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		circleRepo := s.circleRepo.WithTx(tx)

		circle, err := s.getCircle(ctx, circleRepo, code)
		if err != nil {
			return err
		}
		if circle.CoordinatorMembNo != coordinatorMembNo {
			return ErrNotCoordinator
		}
		if circle.Status != string(domain.CirclePending) {
			return ErrCircleNotPending
		}

		participant, err := circleRepo.GetParticipant(ctx, circle.ID, membNo)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrParticipantNotFound
			}
			return err
		}
		if participant.IsActive {
			return ErrParticipantAlreadyActive
		}

		if err := circleRepo.DeleteParticipant(ctx, participant.ID); err != nil {
			return err
		}

		circle.TotalParticipants--
		if err := circleRepo.Save(ctx, circle); err != nil {
			return err
		}

		log.Printf("❌ Participant rejected: member %s in circle %s", membNo, code)
		return nil
	})
}

// ContributionInput represents a monthly contribution
type ContributionInput struct {
	Month  int   `json:"month" validate:"gte=0"`
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

// MakeContribution records the member's contribution for the current
// month. Under AUTO_DEDUCT the member's withdrawable balance covers part
// of the obligation and the attached amount must equal only the
// remainder. The reserve share of the full contribution goes to the
// shared reserve pool; the rest accrues to the circle pool.
func (s *CircleService) MakeContribution(ctx context.Context, code, membNo string, input *ContributionInput) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		circleRepo := s.circleRepo.WithTx(tx)
		txRepo := s.txRepo.WithTx(tx)
		credit := s.creditService.WithTx(tx)
		reserve := s.reserveService.WithTx(tx)

		circle, err := s.getCircle(ctx, circleRepo, code)
		if err != nil {
			return err
		}
		if circle.Status != string(domain.CircleActive) {
			return ErrCircleNotActive
		}
		if input.Month != circle.CurrentMonth {
			return ErrWrongMonth
		}

		participant, err := circleRepo.GetParticipant(ctx, circle.ID, membNo)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotActiveParticipant
			}
			return err
		}
		if !participant.IsActive {
			return ErrNotActiveParticipant
		}

		paid, err := circleRepo.HasPaid(ctx, circle.ID, membNo, input.Month)
		if err != nil {
			return err
		}
		if paid {
			return ErrAlreadyPaid
		}

		owed := circle.MonthlyContribution
		var deducted int64
		if circle.DistributionMethod == string(domain.DistributionAutoDeduct) && participant.WithdrawableBalance > 0 {
			deducted = participant.WithdrawableBalance
			if deducted > owed {
				deducted = owed
			}
			owed -= deducted
		}
		if input.Amount != owed {
			return ErrAmountMismatch
		}

		if deducted > 0 {
			participant.WithdrawableBalance -= deducted
		}
		if err := circleRepo.SaveParticipant(ctx, participant); err != nil {
			return err
		}

		// The split always covers the full monthly obligation, whatever
		// part of it the balance deduction paid.
		reserveShare, poolShare := domain.ReserveSplit(circle.MonthlyContribution, circle.ReservePercentage)

		circle.PoolBalance += poolShare
		circle.TotalReserveDeposited += reserveShare
		if err := circleRepo.Save(ctx, circle); err != nil {
			return err
		}

		if reserveShare > 0 {
			if err := reserve.Deposit(ctx, circle.ID, reserveShare); err != nil {
				return err
			}
		}

		month := input.Month
		if err := circleRepo.CreatePayment(ctx, &models.Payment{
			CircleID: circle.ID,
			MembNo:   membNo,
			Month:    month,
			Late:     false,
			PaidAt:   time.Now(),
		}); err != nil {
			return err
		}

		if err := credit.RecordOnTimePayment(ctx, membNo); err != nil {
			return err
		}

		if err := txRepo.Create(ctx, &models.Transaction{
			CircleID:    circle.ID,
			TxType:      models.TxTypeContribution,
			MembNo:      membNo,
			Amount:      circle.MonthlyContribution,
			Month:       &month,
			Description: fmt.Sprintf("month %d contribution (deducted %d from balance)", month, deducted),
		}); err != nil {
			return err
		}

		if reserveShare > 0 {
			if err := txRepo.Create(ctx, &models.Transaction{
				CircleID: circle.ID,
				TxType:   models.TxTypeReserveDeposit,
				MembNo:   membNo,
				Amount:   reserveShare,
				Month:    &month,
			}); err != nil {
				return err
			}
		}

		log.Printf("💰 Contribution: member %s paid %d for month %d in circle %s",
			membNo, circle.MonthlyContribution, month, code)
		return nil
	})
}

// RecordLatePayment lets the coordinator flag a member's month as paid
// late. The member takes the late penalty but the month counts as paid.
func (s *CircleService) RecordLatePayment(ctx context.Context, code, coordinatorMembNo, membNo string, month int) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		circleRepo := s.circleRepo.WithTx(tx)
		txRepo := s.txRepo.WithTx(tx)
		credit := s.creditService.WithTx(tx)

		circle, err := s.getCircle(ctx, circleRepo, code)
		if err != nil {
			return err
		}
		if circle.CoordinatorMembNo != coordinatorMembNo {
			return ErrNotCoordinator
		}
		if circle.Status != string(domain.CircleActive) {
			return ErrCircleNotActive
		}

		participant, err := circleRepo.GetParticipant(ctx, circle.ID, membNo)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrParticipantNotFound
			}
			return err
		}
		if !participant.IsActive {
			return ErrNotActiveParticipant
		}

		paid, err := circleRepo.HasPaid(ctx, circle.ID, membNo, month)
		if err != nil {
			return err
		}
		if paid {
			return ErrAlreadyPaid
		}

		if err := circleRepo.CreatePayment(ctx, &models.Payment{
			CircleID: circle.ID,
			MembNo:   membNo,
			Month:    month,
			Late:     true,
			PaidAt:   time.Now(),
		}); err != nil {
			return err
		}

		if err := credit.RecordLatePayment(ctx, membNo); err != nil {
			return err
		}

		return txRepo.Create(ctx, &models.Transaction{
			CircleID: circle.ID,
			TxType:   models.TxTypeLate,
			MembNo:   membNo,
			Month:    &month,
		})
	})
}

// RecordDefault lets the coordinator mark a member as defaulted for a
// month. The member stays a participant and keeps their contribution
// history, but loses payout and voting eligibility.
func (s *CircleService) RecordDefault(ctx context.Context, code, coordinatorMembNo, membNo string, month int) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		circleRepo := s.circleRepo.WithTx(tx)
		txRepo := s.txRepo.WithTx(tx)
		credit := s.creditService.WithTx(tx)

		circle, err := s.getCircle(ctx, circleRepo, code)
		if err != nil {
			return err
		}
		if circle.CoordinatorMembNo != coordinatorMembNo {
			return ErrNotCoordinator
		}
		if circle.Status != string(domain.CircleActive) {
			return ErrCircleNotActive
		}

		participant, err := circleRepo.GetParticipant(ctx, circle.ID, membNo)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrParticipantNotFound
			}
			return err
		}

		participant.IsInDefault = true
		if err := circleRepo.SaveParticipant(ctx, participant); err != nil {
			return err
		}

		if err := credit.RecordDefault(ctx, membNo); err != nil {
			return err
		}

		return txRepo.Create(ctx, &models.Transaction{
			CircleID: circle.ID,
			TxType:   models.TxTypeDefault,
			MembNo:   membNo,
			Month:    &month,
		})
	})
}

// WithdrawExcess pays out the member's accumulated withdrawable balance.
// Only circles using WITHDRAWABLE distribution support this; under
// AUTO_DEDUCT the balance is consumed by future contributions instead.
func (s *CircleService) WithdrawExcess(ctx context.Context, code, membNo string) (int64, error) {
	var amount int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		circleRepo := s.circleRepo.WithTx(tx)
		txRepo := s.txRepo.WithTx(tx)

		circle, err := s.getCircle(ctx, circleRepo, code)
		if err != nil {
			return err
		}
		if circle.DistributionMethod != string(domain.DistributionWithdrawable) {
			return ErrNotWithdrawable
		}

		participant, err := circleRepo.GetParticipant(ctx, circle.ID, membNo)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrParticipantNotFound
			}
			return err
		}
		if participant.WithdrawableBalance <= 0 {
			return ErrNothingToWithdraw
		}

		amount = participant.WithdrawableBalance
		participant.WithdrawableBalance = 0
		if err := circleRepo.SaveParticipant(ctx, participant); err != nil {
			return err
		}

		if err := txRepo.Create(ctx, &models.Transaction{
			CircleID: circle.ID,
			TxType:   models.TxTypeWithdraw,
			MembNo:   membNo,
			Amount:   amount,
		}); err != nil {
			return err
		}

		log.Printf("💸 Excess withdrawn: member %s took %d from circle %s", membNo, amount, code)
		return nil
	})
	return amount, err
}

// FundCircle accepts an unsolicited inflow into the circle pool
func (s *CircleService) FundCircle(ctx context.Context, code, membNo string, amount int64) error {
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		circleRepo := s.circleRepo.WithTx(tx)
		txRepo := s.txRepo.WithTx(tx)

		circle, err := s.getCircle(ctx, circleRepo, code)
		if err != nil {
			return err
		}

		circle.PoolBalance += amount
		if err := circleRepo.Save(ctx, circle); err != nil {
			return err
		}

		return txRepo.Create(ctx, &models.Transaction{
			CircleID:    circle.ID,
			TxType:      models.TxTypeFund,
			MembNo:      membNo,
			Amount:      amount,
			Description: "direct pool funding",
		})
	})
}

// GetParticipant returns a member's participant record in a circle
func (s *CircleService) GetParticipant(ctx context.Context, code, membNo string) (*models.Participant, error) {
	circle, err := s.getCircle(ctx, s.circleRepo, code)
	if err != nil {
		return nil, err
	}
	participant, err := s.circleRepo.GetParticipant(ctx, circle.ID, membNo)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrParticipantNotFound
		}
		return nil, err
	}
	return participant, nil
}

// HasPaid reports whether a member has paid for a month
func (s *CircleService) HasPaid(ctx context.Context, code, membNo string, month int) (bool, error) {
	circle, err := s.getCircle(ctx, s.circleRepo, code)
	if err != nil {
		return false, err
	}
	return s.circleRepo.HasPaid(ctx, circle.ID, membNo, month)
}

// ListTransactions lists a circle's transaction history
func (s *CircleService) ListTransactions(ctx context.Context, code string, params *pagination.Params) ([]*models.Transaction, int64, error) {
	circle, err := s.getCircle(ctx, s.circleRepo, code)
	if err != nil {
		return nil, 0, err
	}
	return s.txRepo.ListByCircle(ctx, circle.ID, params.Offset, params.Limit)
}
