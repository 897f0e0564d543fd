package services

import (
	"context"
	"errors"
	"testing"
)

func TestReserveRejectsUnverifiedCircle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.reserve.Deposit(ctx, 99, 100); !errors.Is(err, ErrCircleNotVerified) {
		t.Errorf("deposit from unverified circle: got %v", err)
	}
	if err := env.reserve.Withdraw(ctx, 99, 100, "M001"); !errors.Is(err, ErrCircleNotVerified) {
		t.Errorf("withdraw from unverified circle: got %v", err)
	}
}

func TestReserveDepositWithdrawAccounting(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.reserve.VerifyCircle(ctx, 1); err != nil {
		t.Fatalf("verify: %v", err)
	}

	if err := env.reserve.Deposit(ctx, 1, 500); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := env.reserve.Withdraw(ctx, 1, 200, "M002"); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	stats, err := env.reserve.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalDeposited != 500 || stats.TotalWithdrawn != 200 || stats.CurrentBalance != 300 {
		t.Errorf("stats = %d/%d/%d, want 500/200/300",
			stats.TotalDeposited, stats.TotalWithdrawn, stats.CurrentBalance)
	}
	if stats.CurrentBalance != stats.TotalDeposited-stats.TotalWithdrawn {
		t.Error("balance identity broken")
	}
	if stats.UtilizationBps != 4000 {
		t.Errorf("utilization = %d bps, want 4000", stats.UtilizationBps)
	}
}

func TestReserveWithdrawValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.reserve.VerifyCircle(ctx, 1); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := env.reserve.Deposit(ctx, 1, 100); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	if err := env.reserve.Withdraw(ctx, 1, 101, "M001"); !errors.Is(err, ErrInsufficientReserve) {
		t.Errorf("overdraw: got %v", err)
	}
	if err := env.reserve.Withdraw(ctx, 1, 50, ""); !errors.Is(err, ErrInvalidRecipient) {
		t.Errorf("empty recipient: got %v", err)
	}
	if err := env.reserve.Deposit(ctx, 1, 0); !errors.Is(err, ErrInvalidDeposit) {
		t.Errorf("zero deposit: got %v", err)
	}

	// A failed withdraw must not move funds
	stats, _ := env.reserve.Stats(ctx)
	if stats.CurrentBalance != 100 {
		t.Errorf("balance after failed withdraws = %d, want 100", stats.CurrentBalance)
	}
}

func TestReserveRevocationBlocksNewDeposits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.reserve.VerifyCircle(ctx, 1); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := env.reserve.Deposit(ctx, 1, 300); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	if err := env.reserve.RevokeCircle(ctx, 1); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	if err := env.reserve.Deposit(ctx, 1, 100); !errors.Is(err, ErrCircleNotVerified) {
		t.Errorf("deposit after revoke: got %v", err)
	}

	// Already-deposited funds stay in the pool
	stats, _ := env.reserve.Stats(ctx)
	if stats.CurrentBalance != 300 {
		t.Errorf("balance after revoke = %d, want 300", stats.CurrentBalance)
	}

	// Re-verification reactivates the circle
	if err := env.reserve.VerifyCircle(ctx, 1); err != nil {
		t.Fatalf("re-verify: %v", err)
	}
	if err := env.reserve.Deposit(ctx, 1, 100); err != nil {
		t.Errorf("deposit after re-verify: %v", err)
	}
}
