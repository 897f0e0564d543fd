package services

import (
	"context"
	"errors"
	"testing"

	"circlefund/internal/core/domain"
)

func TestPayoutFullCycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	circle := createActiveCircle(t, env, defaultCircleInput())
	contributeAll(t, env, circle.Code, 0, 100)

	if err := env.payout.ProposePayout(ctx, circle.Code, "M001", "M002", 0); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if err := env.payout.Vote(ctx, circle.Code, "M001", "M002", 0); err != nil {
		t.Fatalf("vote: %v", err)
	}

	// Execution is refused while the window is open
	if _, err := env.payout.ExecutePayout(ctx, circle.Code, 0); !errors.Is(err, ErrVotingStillOpen) {
		t.Fatalf("execute with open window: got %v", err)
	}

	closeVoting(t, env, circle.ID, 0)

	result, err := env.payout.ExecutePayout(ctx, circle.Code, 0)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.WinnerMembNo != "M002" {
		t.Errorf("winner = %s, want M002", result.WinnerMembNo)
	}
	// 3 active members x 90 net-of-reserve share
	if result.Amount != 270 {
		t.Errorf("amount = %d, want 270", result.Amount)
	}
	if result.ReserveBorrowed != 0 {
		t.Errorf("borrowed = %d, want 0", result.ReserveBorrowed)
	}

	reloaded, _ := env.factory.GetCircle(ctx, circle.Code)
	if reloaded.CurrentMonth != 1 {
		t.Errorf("month = %d, want 1", reloaded.CurrentMonth)
	}
	if reloaded.PoolBalance != 0 {
		t.Errorf("pool = %d, want 0", reloaded.PoolBalance)
	}

	winner, _ := env.circle.GetParticipant(ctx, circle.Code, "M002")
	if !winner.HasReceivedPayout {
		t.Error("winner not flagged as paid")
	}

	// Contribution bonus plus the winner's payout bonus
	score, _ := env.credit.GetScore(ctx, "M002")
	if want := domain.BaseScore + 2*domain.OnTimeBonus; score != want {
		t.Errorf("winner score = %d, want %d", score, want)
	}

	// The settled month cannot be executed again
	if _, err := env.payout.ExecutePayout(ctx, circle.Code, 0); !errors.Is(err, ErrWrongMonth) {
		t.Errorf("re-execute settled month: got %v", err)
	}

	// The proposal records the outcome
	view, err := env.payout.GetProposal(ctx, circle.Code, 0)
	if err != nil {
		t.Fatalf("get proposal: %v", err)
	}
	if !view.Executed || view.WinnerMembNo == nil || *view.WinnerMembNo != "M002" {
		t.Error("proposal missing execution outcome")
	}
}

func TestVotingRules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	circle := createActiveCircle(t, env, defaultCircleInput())

	// No vote before a nomination opens the window
	if err := env.payout.Vote(ctx, circle.Code, "M001", "M002", 0); !errors.Is(err, ErrNoProposal) {
		t.Errorf("vote without proposal: got %v", err)
	}

	if err := env.payout.ProposePayout(ctx, circle.Code, "M001", "M002", 0); err != nil {
		t.Fatalf("propose: %v", err)
	}

	// Votes land only on nominated candidates
	if err := env.payout.Vote(ctx, circle.Code, "M001", "M003", 0); !errors.Is(err, ErrCandidateNotFound) {
		t.Errorf("vote for non-candidate: got %v", err)
	}

	if err := env.payout.Vote(ctx, circle.Code, "M001", "M002", 0); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if err := env.payout.Vote(ctx, circle.Code, "M001", "M002", 0); !errors.Is(err, ErrAlreadyVoted) {
		t.Errorf("double vote: got %v", err)
	}

	// Vote weight equals the voter's current score
	view, _ := env.payout.GetProposal(ctx, circle.Code, 0)
	if len(view.Candidates) != 1 || view.Candidates[0].TotalVotes != int64(domain.BaseScore) {
		t.Errorf("tally = %+v, want single candidate at %d", view.Candidates, domain.BaseScore)
	}

	// Defaulted members cannot vote
	if err := env.circle.RecordDefault(ctx, circle.Code, "M001", "M003", 0); err != nil {
		t.Fatalf("default: %v", err)
	}
	if err := env.payout.Vote(ctx, circle.Code, "M003", "M002", 0); !errors.Is(err, ErrNotActiveParticipant) {
		t.Errorf("defaulted voter: got %v", err)
	}
}

func TestNominationRules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	circle := createActiveCircle(t, env, defaultCircleInput())

	if err := env.payout.ProposePayout(ctx, circle.Code, "M001", "M002", 0); err != nil {
		t.Fatalf("propose: %v", err)
	}

	// A candidate may be nominated at most once per month
	if err := env.payout.ProposePayout(ctx, circle.Code, "M003", "M002", 0); !errors.Is(err, ErrAlreadyProposed) {
		t.Errorf("duplicate nomination: got %v", err)
	}

	// Only current-month nominations are accepted
	if err := env.payout.ProposePayout(ctx, circle.Code, "M001", "M003", 1); !errors.Is(err, ErrWrongMonth) {
		t.Errorf("future month nomination: got %v", err)
	}

	// Defaulted members are not nominable
	if err := env.circle.RecordDefault(ctx, circle.Code, "M001", "M003", 0); err != nil {
		t.Fatalf("default: %v", err)
	}
	if err := env.payout.ProposePayout(ctx, circle.Code, "M001", "M003", 0); !errors.Is(err, ErrIneligibleCandidate) {
		t.Errorf("defaulted candidate: got %v", err)
	}
}

func TestDefaultedCandidateNeverWins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	circle := createActiveCircle(t, env, defaultCircleInput())
	contributeAll(t, env, circle.Code, 0, 100)

	if err := env.payout.ProposePayout(ctx, circle.Code, "M001", "M002", 0); err != nil {
		t.Fatalf("propose M002: %v", err)
	}
	if err := env.payout.ProposePayout(ctx, circle.Code, "M001", "M003", 0); err != nil {
		t.Fatalf("propose M003: %v", err)
	}

	// M002 leads the tally, then defaults before execution
	if err := env.payout.Vote(ctx, circle.Code, "M001", "M002", 0); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if err := env.payout.Vote(ctx, circle.Code, "M002", "M002", 0); err != nil {
		t.Fatalf("self vote: %v", err)
	}
	if err := env.circle.RecordDefault(ctx, circle.Code, "M001", "M002", 0); err != nil {
		t.Fatalf("default: %v", err)
	}

	closeVoting(t, env, circle.ID, 0)

	result, err := env.payout.ExecutePayout(ctx, circle.Code, 0)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.WinnerMembNo != "M003" {
		t.Errorf("winner = %s, want M003 (M002 defaulted)", result.WinnerMembNo)
	}
}

func TestPayoutBorrowsFromReserveOnShortfall(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	circle := createActiveCircle(t, env, defaultCircleInput())

	// Only two of three contribute: pool 180, expected 270
	for _, membNo := range []string{"M001", "M002"} {
		if err := env.circle.MakeContribution(ctx, circle.Code, membNo, &ContributionInput{Month: 0, Amount: 100}); err != nil {
			t.Fatalf("contribution %s: %v", membNo, err)
		}
	}

	if err := env.payout.ProposePayout(ctx, circle.Code, "M001", "M002", 0); err != nil {
		t.Fatalf("propose: %v", err)
	}
	closeVoting(t, env, circle.ID, 0)

	// Reserve holds only the two 10-unit shares; the 90 shortfall fails
	// and nothing moves
	if _, err := env.payout.ExecutePayout(ctx, circle.Code, 0); !errors.Is(err, ErrInsufficientReserve) {
		t.Fatalf("underfunded execute: got %v", err)
	}
	reloaded, _ := env.factory.GetCircle(ctx, circle.Code)
	if reloaded.PoolBalance != 180 || reloaded.CurrentMonth != 0 {
		t.Errorf("failed execute moved state: pool %d month %d", reloaded.PoolBalance, reloaded.CurrentMonth)
	}

	// Top up the reserve and retry
	if err := env.reserve.Deposit(ctx, circle.ID, 100); err != nil {
		t.Fatalf("reserve top-up: %v", err)
	}

	result, err := env.payout.ExecutePayout(ctx, circle.Code, 0)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.ReserveBorrowed != 90 {
		t.Errorf("borrowed = %d, want 90", result.ReserveBorrowed)
	}
	if result.Amount != 270 {
		t.Errorf("amount = %d, want 270", result.Amount)
	}

	stats, _ := env.reserve.Stats(ctx)
	if stats.CurrentBalance != 30 {
		t.Errorf("reserve after borrow = %d, want 30", stats.CurrentBalance)
	}
	if stats.CurrentBalance != stats.TotalDeposited-stats.TotalWithdrawn {
		t.Error("reserve identity broken")
	}
}

func TestSurplusSplitsAcrossEligibleMembers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	circle := createActiveCircle(t, env, defaultCircleInput())
	contributeAll(t, env, circle.Code, 0, 100)

	// Direct funding leaves 100 above the expected payout
	if err := env.circle.FundCircle(ctx, circle.Code, "M001", 100); err != nil {
		t.Fatalf("fund: %v", err)
	}

	if err := env.payout.ProposePayout(ctx, circle.Code, "M001", "M002", 0); err != nil {
		t.Fatalf("propose: %v", err)
	}
	closeVoting(t, env, circle.ID, 0)

	result, err := env.payout.ExecutePayout(ctx, circle.Code, 0)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	// 100 surplus across 3 eligible members: 33 each, 1 stays pooled
	if result.ExcessPerMember != 33 {
		t.Errorf("excess per member = %d, want 33", result.ExcessPerMember)
	}

	reloaded, _ := env.factory.GetCircle(ctx, circle.Code)
	if reloaded.PoolBalance != 1 {
		t.Errorf("pool remainder = %d, want 1", reloaded.PoolBalance)
	}

	for _, membNo := range []string{"M001", "M002", "M003"} {
		participant, _ := env.circle.GetParticipant(ctx, circle.Code, membNo)
		if participant.WithdrawableBalance != 33 {
			t.Errorf("%s balance = %d, want 33", membNo, participant.WithdrawableBalance)
		}
	}
}

func TestFinalMonthCompletesCircle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	input := defaultCircleInput()
	input.DurationMonths = 1
	circle := createActiveCircle(t, env, input)
	contributeAll(t, env, circle.Code, 0, 100)

	if err := env.payout.ProposePayout(ctx, circle.Code, "M001", "M002", 0); err != nil {
		t.Fatalf("propose: %v", err)
	}
	closeVoting(t, env, circle.ID, 0)

	result, err := env.payout.ExecutePayout(ctx, circle.Code, 0)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.CircleCompleted {
		t.Error("final month did not complete the circle")
	}

	reloaded, _ := env.factory.GetCircle(ctx, circle.Code)
	if reloaded.Status != "COMPLETED" {
		t.Errorf("status = %s, want COMPLETED", reloaded.Status)
	}

	// Completion bonus on top of the contribution bonus
	score, _ := env.credit.GetScore(ctx, "M003")
	want := domain.BaseScore + domain.OnTimeBonus + domain.CompletionBonus
	if score != want {
		t.Errorf("score = %d, want %d", score, want)
	}

	// A completed circle accepts no further lifecycle operations
	err = env.circle.MakeContribution(ctx, circle.Code, "M001", &ContributionInput{Month: 1, Amount: 100})
	if !errors.Is(err, ErrCircleNotActive) {
		t.Errorf("contribute after completion: got %v", err)
	}
	if err := env.payout.ProposePayout(ctx, circle.Code, "M001", "M003", 1); !errors.Is(err, ErrCircleNotActive) {
		t.Errorf("propose after completion: got %v", err)
	}
}

func TestVotingWindowClosure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	circle := createActiveCircle(t, env, defaultCircleInput())
	contributeAll(t, env, circle.Code, 0, 100)

	if err := env.payout.ProposePayout(ctx, circle.Code, "M001", "M002", 0); err != nil {
		t.Fatalf("propose: %v", err)
	}
	closeVoting(t, env, circle.ID, 0)

	// Once the deadline passes, neither nominations nor votes land
	if err := env.payout.ProposePayout(ctx, circle.Code, "M001", "M003", 0); !errors.Is(err, ErrVotingClosed) {
		t.Errorf("nomination after deadline: got %v", err)
	}
	if err := env.payout.Vote(ctx, circle.Code, "M001", "M002", 0); !errors.Is(err, ErrVotingClosed) {
		t.Errorf("vote after deadline: got %v", err)
	}

	// Execution is the only operation left for the month
	if _, err := env.payout.ExecutePayout(ctx, circle.Code, 0); err != nil {
		t.Fatalf("execute: %v", err)
	}
}

func TestZeroScoreVoterRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	circle := createActiveCircle(t, env, defaultCircleInput())

	// Defaults reported by other circles zero the ledger score while the
	// member stays active and non-defaulted here
	for i := 0; i < 3; i++ {
		if err := env.credit.RecordDefault(ctx, "M003"); err != nil {
			t.Fatalf("ledger default: %v", err)
		}
	}
	if score, _ := env.credit.GetScore(ctx, "M003"); score != 0 {
		t.Fatalf("score = %d, want 0", score)
	}

	if err := env.payout.ProposePayout(ctx, circle.Code, "M001", "M002", 0); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if err := env.payout.Vote(ctx, circle.Code, "M003", "M002", 0); !errors.Is(err, ErrZeroVoteWeight) {
		t.Errorf("zero-score voter: got %v", err)
	}

	// The tally stays untouched by the rejected ballot
	view, _ := env.payout.GetProposal(ctx, circle.Code, 0)
	if len(view.Candidates) != 1 || view.Candidates[0].TotalVotes != 0 {
		t.Errorf("tally = %+v, want single candidate at 0", view.Candidates)
	}
}

func TestPayoutGuardHeldAcrossExecution(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	circle := createActiveCircle(t, env, defaultCircleInput())
	contributeAll(t, env, circle.Code, 0, 100)
	if err := env.payout.ProposePayout(ctx, circle.Code, "M001", "M002", 0); err != nil {
		t.Fatalf("propose: %v", err)
	}
	closeVoting(t, env, circle.ID, 0)

	// A call arriving while the circle is held is refused before it can
	// read any settlement state
	if !env.payout.guard.acquire(circle.ID) {
		t.Fatal("guard unexpectedly held")
	}
	if _, err := env.payout.ExecutePayout(ctx, circle.Code, 0); !errors.Is(err, ErrPayoutInProgress) {
		t.Fatalf("execute with held guard: got %v", err)
	}
	env.payout.guard.release(circle.ID)

	// The guard frees only once the settlement has committed
	if _, err := env.payout.ExecutePayout(ctx, circle.Code, 0); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !env.payout.guard.acquire(circle.ID) {
		t.Error("guard still held after execution")
	}
	env.payout.guard.release(circle.ID)
}

func TestPreviousWinnerIneligibleNextMonth(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	circle := createActiveCircle(t, env, defaultCircleInput())
	contributeAll(t, env, circle.Code, 0, 100)

	if err := env.payout.ProposePayout(ctx, circle.Code, "M001", "M002", 0); err != nil {
		t.Fatalf("propose: %v", err)
	}
	closeVoting(t, env, circle.ID, 0)
	if _, err := env.payout.ExecutePayout(ctx, circle.Code, 0); err != nil {
		t.Fatalf("execute: %v", err)
	}

	contributeAll(t, env, circle.Code, 1, 100)

	// The month-0 winner cannot be nominated again
	if err := env.payout.ProposePayout(ctx, circle.Code, "M001", "M002", 1); !errors.Is(err, ErrIneligibleCandidate) {
		t.Errorf("re-nominate past winner: got %v", err)
	}
	if err := env.payout.ProposePayout(ctx, circle.Code, "M001", "M003", 1); err != nil {
		t.Fatalf("propose M003: %v", err)
	}

	closeVoting(t, env, circle.ID, 1)
	result, err := env.payout.ExecutePayout(ctx, circle.Code, 1)
	if err != nil {
		t.Fatalf("execute month 1: %v", err)
	}
	if result.WinnerMembNo != "M003" {
		t.Errorf("winner = %s, want M003", result.WinnerMembNo)
	}
}
