package services

import (
	"context"
	"errors"
	"testing"

	"circlefund/internal/adapters/persistence/models"
	"circlefund/internal/core/domain"
)

func TestCreateCircleGates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Contribution above the creator's credit allowance
	input := defaultCircleInput()
	input.MonthlyContribution = 301
	if _, err := env.factory.CreateCircle(ctx, "M001", input); !errors.Is(err, domain.ErrContributionExceedsCredit) {
		t.Errorf("contribution gate: got %v", err)
	}

	// Volume above ten times the creator's score
	input = defaultCircleInput()
	input.DurationMonths = 7 // 100 * 5 * 7 = 3500 > 3000
	if _, err := env.factory.CreateCircle(ctx, "M001", input); !errors.Is(err, domain.ErrVolumeExceedsCredit) {
		t.Errorf("volume gate: got %v", err)
	}

	// A creator below the score floor cannot create at all
	for i := 0; i < 1; i++ {
		if err := env.credit.RecordDefault(ctx, "M099"); err != nil {
			t.Fatalf("default: %v", err)
		}
	}
	if _, err := env.factory.CreateCircle(ctx, "M099", defaultCircleInput()); !errors.Is(err, domain.ErrInsufficientCredit) {
		t.Errorf("score floor: got %v", err)
	}
}

func TestCreateCircleSetsUpCreator(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	circle, err := env.factory.CreateCircle(ctx, "M001", defaultCircleInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if circle.Status != "PENDING" {
		t.Errorf("status = %s, want PENDING", circle.Status)
	}
	if circle.CoordinatorMembNo != "M001" || circle.CreatorMembNo != "M001" {
		t.Error("creator is not coordinator")
	}
	if circle.TotalParticipants != 1 {
		t.Errorf("total participants = %d, want 1", circle.TotalParticipants)
	}

	creator, err := env.circle.GetParticipant(ctx, circle.Code, "M001")
	if err != nil {
		t.Fatalf("get creator participant: %v", err)
	}
	if !creator.IsActive {
		t.Error("creator not active at creation")
	}

	// Creation verifies the circle against the reserve pool
	verified, err := env.reserve.IsVerified(ctx, circle.ID)
	if err != nil {
		t.Fatalf("is verified: %v", err)
	}
	if !verified {
		t.Error("circle not verified after creation")
	}
}

func TestActivationAtMinimumParticipants(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	circle, err := env.factory.CreateCircle(ctx, "M001", defaultCircleInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	for _, membNo := range []string{"M002", "M003", "M004"} {
		if err := env.circle.RequestToJoin(ctx, circle.Code, membNo); err != nil {
			t.Fatalf("join %s: %v", membNo, err)
		}
	}

	// First approval: 2 active of min 3, still pending
	if err := env.circle.ApproveParticipant(ctx, circle.Code, "M001", "M002"); err != nil {
		t.Fatalf("approve M002: %v", err)
	}
	reloaded, _ := env.factory.GetCircle(ctx, circle.Code)
	if reloaded.Status != "PENDING" {
		t.Errorf("status after 2 active = %s, want PENDING", reloaded.Status)
	}

	// Second approval reaches the minimum and activates the circle
	if err := env.circle.ApproveParticipant(ctx, circle.Code, "M001", "M003"); err != nil {
		t.Fatalf("approve M003: %v", err)
	}
	reloaded, _ = env.factory.GetCircle(ctx, circle.Code)
	if reloaded.Status != "ACTIVE" {
		t.Errorf("status after 3 active = %s, want ACTIVE", reloaded.Status)
	}

	// Admission is closed once active
	if err := env.circle.ApproveParticipant(ctx, circle.Code, "M001", "M004"); !errors.Is(err, ErrCircleNotPending) {
		t.Errorf("approve after activation: got %v", err)
	}
	if err := env.circle.RequestToJoin(ctx, circle.Code, "M005"); !errors.Is(err, ErrCircleNotPending) {
		t.Errorf("join after activation: got %v", err)
	}
}

func TestAdmissionAuthorization(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	circle, err := env.factory.CreateCircle(ctx, "M001", defaultCircleInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := env.circle.RequestToJoin(ctx, circle.Code, "M002"); err != nil {
		t.Fatalf("join: %v", err)
	}

	// Only the coordinator approves or rejects
	if err := env.circle.ApproveParticipant(ctx, circle.Code, "M002", "M002"); !errors.Is(err, ErrNotCoordinator) {
		t.Errorf("self approve: got %v", err)
	}
	if err := env.circle.RejectParticipant(ctx, circle.Code, "M003", "M002"); !errors.Is(err, ErrNotCoordinator) {
		t.Errorf("stranger reject: got %v", err)
	}

	// Duplicate join requests are refused
	if err := env.circle.RequestToJoin(ctx, circle.Code, "M002"); !errors.Is(err, ErrAlreadyParticipant) {
		t.Errorf("duplicate join: got %v", err)
	}

	// Rejection frees the slot for a new request
	if err := env.circle.RejectParticipant(ctx, circle.Code, "M001", "M002"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	reloaded, _ := env.factory.GetCircle(ctx, circle.Code)
	if reloaded.TotalParticipants != 1 {
		t.Errorf("total after reject = %d, want 1", reloaded.TotalParticipants)
	}
	if err := env.circle.RequestToJoin(ctx, circle.Code, "M002"); err != nil {
		t.Errorf("rejoin after reject: %v", err)
	}
}

func TestCircleCapacity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	input := defaultCircleInput()
	input.MaxParticipants = 3 // volume 100*3*3 = 900
	circle, err := env.factory.CreateCircle(ctx, "M001", input)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Creator holds one slot; two more requests fill the circle
	if err := env.circle.RequestToJoin(ctx, circle.Code, "M002"); err != nil {
		t.Fatalf("join M002: %v", err)
	}
	if err := env.circle.RequestToJoin(ctx, circle.Code, "M003"); err != nil {
		t.Fatalf("join M003: %v", err)
	}
	if err := env.circle.RequestToJoin(ctx, circle.Code, "M004"); !errors.Is(err, ErrCircleFull) {
		t.Errorf("join past capacity: got %v", err)
	}
}

func TestContributionSplitsPoolAndReserve(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	circle := createActiveCircle(t, env, defaultCircleInput())
	contributeAll(t, env, circle.Code, 0, 100)

	reloaded, _ := env.factory.GetCircle(ctx, circle.Code)
	if reloaded.PoolBalance != 270 {
		t.Errorf("pool = %d, want 270", reloaded.PoolBalance)
	}
	if reloaded.TotalReserveDeposited != 30 {
		t.Errorf("reserve deposited = %d, want 30", reloaded.TotalReserveDeposited)
	}

	stats, _ := env.reserve.Stats(ctx)
	if stats.CurrentBalance != 30 {
		t.Errorf("reserve pool = %d, want 30", stats.CurrentBalance)
	}

	// Credit bonus applied per on-time contribution
	score, _ := env.credit.GetScore(ctx, "M002")
	if score != domain.BaseScore+domain.OnTimeBonus {
		t.Errorf("score = %d, want %d", score, domain.BaseScore+domain.OnTimeBonus)
	}
}

func TestContributionValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	circle := createActiveCircle(t, env, defaultCircleInput())

	// Wrong amount
	err := env.circle.MakeContribution(ctx, circle.Code, "M001", &ContributionInput{Month: 0, Amount: 99})
	if !errors.Is(err, ErrAmountMismatch) {
		t.Errorf("wrong amount: got %v", err)
	}

	// Wrong month
	err = env.circle.MakeContribution(ctx, circle.Code, "M001", &ContributionInput{Month: 1, Amount: 100})
	if !errors.Is(err, ErrWrongMonth) {
		t.Errorf("wrong month: got %v", err)
	}

	// Outsider
	err = env.circle.MakeContribution(ctx, circle.Code, "M099", &ContributionInput{Month: 0, Amount: 100})
	if !errors.Is(err, ErrNotActiveParticipant) {
		t.Errorf("outsider: got %v", err)
	}

	// Double pay
	if err := env.circle.MakeContribution(ctx, circle.Code, "M001", &ContributionInput{Month: 0, Amount: 100}); err != nil {
		t.Fatalf("first pay: %v", err)
	}
	err = env.circle.MakeContribution(ctx, circle.Code, "M001", &ContributionInput{Month: 0, Amount: 100})
	if !errors.Is(err, ErrAlreadyPaid) {
		t.Errorf("double pay: got %v", err)
	}
}

func TestAutoDeductOffsetsContribution(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	input := defaultCircleInput()
	input.DistributionMethod = "AUTO_DEDUCT"
	circle := createActiveCircle(t, env, input)

	// Seed an excess balance as a prior surplus distribution would
	err := env.db.Model(&models.Participant{}).
		Where("circle_id = ? AND memb_no = ?", circle.ID, "M002").
		Update("withdrawable_balance", 40).Error
	if err != nil {
		t.Fatalf("seed balance: %v", err)
	}

	// The full amount is now wrong; only the remainder is owed
	err = env.circle.MakeContribution(ctx, circle.Code, "M002", &ContributionInput{Month: 0, Amount: 100})
	if !errors.Is(err, ErrAmountMismatch) {
		t.Errorf("full amount with balance: got %v", err)
	}
	if err := env.circle.MakeContribution(ctx, circle.Code, "M002", &ContributionInput{Month: 0, Amount: 60}); err != nil {
		t.Fatalf("offset contribution: %v", err)
	}

	participant, err := env.circle.GetParticipant(ctx, circle.Code, "M002")
	if err != nil {
		t.Fatalf("get participant: %v", err)
	}
	if participant.WithdrawableBalance != 0 {
		t.Errorf("balance after deduction = %d, want 0", participant.WithdrawableBalance)
	}

	// The pool still accrues the full monthly split
	reloaded, _ := env.factory.GetCircle(ctx, circle.Code)
	if reloaded.PoolBalance != 90 || reloaded.TotalReserveDeposited != 10 {
		t.Errorf("pool/reserve = %d/%d, want 90/10", reloaded.PoolBalance, reloaded.TotalReserveDeposited)
	}

	// AUTO_DEDUCT circles refuse manual withdrawal
	if _, err := env.circle.WithdrawExcess(ctx, circle.Code, "M002"); !errors.Is(err, ErrNotWithdrawable) {
		t.Errorf("withdraw on auto-deduct: got %v", err)
	}
}

func TestWithdrawExcess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	circle := createActiveCircle(t, env, defaultCircleInput())

	err := env.db.Model(&models.Participant{}).
		Where("circle_id = ? AND memb_no = ?", circle.ID, "M003").
		Update("withdrawable_balance", 25).Error
	if err != nil {
		t.Fatalf("seed balance: %v", err)
	}

	amount, err := env.circle.WithdrawExcess(ctx, circle.Code, "M003")
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if amount != 25 {
		t.Errorf("withdrawn = %d, want 25", amount)
	}

	if _, err := env.circle.WithdrawExcess(ctx, circle.Code, "M003"); !errors.Is(err, ErrNothingToWithdraw) {
		t.Errorf("second withdraw: got %v", err)
	}
}

func TestCoordinatorPenalties(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	circle := createActiveCircle(t, env, defaultCircleInput())

	if err := env.circle.RecordLatePayment(ctx, circle.Code, "M001", "M002", 0); err != nil {
		t.Fatalf("late: %v", err)
	}
	score, _ := env.credit.GetScore(ctx, "M002")
	if score != domain.BaseScore-domain.LatePenalty {
		t.Errorf("score after late = %d, want %d", score, domain.BaseScore-domain.LatePenalty)
	}

	// A late-marked month counts as paid
	err := env.circle.MakeContribution(ctx, circle.Code, "M002", &ContributionInput{Month: 0, Amount: 100})
	if !errors.Is(err, ErrAlreadyPaid) {
		t.Errorf("pay after late mark: got %v", err)
	}

	if err := env.circle.RecordDefault(ctx, circle.Code, "M001", "M003", 0); err != nil {
		t.Fatalf("default: %v", err)
	}
	participant, _ := env.circle.GetParticipant(ctx, circle.Code, "M003")
	if !participant.IsInDefault {
		t.Error("participant not marked defaulted")
	}
	if !participant.IsActive {
		t.Error("defaulted participant deactivated; history should be retained")
	}

	// Non-coordinators cannot record penalties
	if err := env.circle.RecordDefault(ctx, circle.Code, "M002", "M003", 0); !errors.Is(err, ErrNotCoordinator) {
		t.Errorf("stranger default: got %v", err)
	}
}

func TestFundCircle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	circle := createActiveCircle(t, env, defaultCircleInput())

	if err := env.circle.FundCircle(ctx, circle.Code, "M001", 500); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if err := env.circle.FundCircle(ctx, circle.Code, "M001", 0); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("zero fund: got %v", err)
	}

	reloaded, _ := env.factory.GetCircle(ctx, circle.Code)
	if reloaded.PoolBalance != 500 {
		t.Errorf("pool = %d, want 500", reloaded.PoolBalance)
	}
}
