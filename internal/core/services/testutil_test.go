package services

import (
	"context"
	"testing"
	"time"

	"circlefund/internal/adapters/persistence/models"
	"circlefund/internal/adapters/persistence/repositories"
	"circlefund/internal/config"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an isolated in-memory database with the full schema
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	// A single connection keeps every query on the same memory database
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap test db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// testEnv bundles the full service graph over one test database
type testEnv struct {
	db      *gorm.DB
	credit  *CreditService
	reserve *ReserveService
	factory *FactoryService
	circle  *CircleService
	payout  *PayoutService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newTestDB(t)
	circleRepo := repositories.NewCircleRepository(db)
	proposalRepo := repositories.NewProposalRepository(db)
	reserveRepo := repositories.NewReserveRepository(db)
	creditRepo := repositories.NewCreditRepository(db)
	txRepo := repositories.NewTransactionRepository(db)

	credit := NewCreditService(creditRepo)
	reserve := NewReserveService(reserveRepo)

	return &testEnv{
		db:      db,
		credit:  credit,
		reserve: reserve,
		factory: NewFactoryService(db, circleRepo, txRepo, credit, reserve),
		circle:  NewCircleService(db, circleRepo, txRepo, credit, reserve),
		payout:  NewPayoutService(db, circleRepo, proposalRepo, txRepo, credit, reserve),
	}
}

func testJWTConfig() *config.Config {
	return &config.Config{
		AppMode: "dev",
		JWT: config.JWTConfig{
			Secret:           "test-secret",
			RefreshSecret:    "test-refresh-secret",
			AccessTokenMins:  15,
			RefreshTokenDays: 7,
		},
	}
}

// defaultCircleInput fits inside the base-score credit limits
// (volume 100 * 5 * 3 = 1500 <= 300 * 10)
func defaultCircleInput() *CreateCircleInput {
	return &CreateCircleInput{
		MonthlyContribution: 100,
		DurationMonths:      3,
		MinParticipants:     3,
		MaxParticipants:     5,
		ReservePercentage:   10,
		DistributionMethod:  "WITHDRAWABLE",
	}
}

// createActiveCircle creates a circle for M001 and activates it with
// participants M002 and M003
func createActiveCircle(t *testing.T, env *testEnv, input *CreateCircleInput) *models.Circle {
	t.Helper()
	ctx := context.Background()

	circle, err := env.factory.CreateCircle(ctx, "M001", input)
	if err != nil {
		t.Fatalf("create circle: %v", err)
	}

	for _, membNo := range []string{"M002", "M003"} {
		if err := env.circle.RequestToJoin(ctx, circle.Code, membNo); err != nil {
			t.Fatalf("join %s: %v", membNo, err)
		}
		if err := env.circle.ApproveParticipant(ctx, circle.Code, "M001", membNo); err != nil {
			t.Fatalf("approve %s: %v", membNo, err)
		}
	}

	circle, err = env.factory.GetCircle(ctx, circle.Code)
	if err != nil {
		t.Fatalf("reload circle: %v", err)
	}
	if circle.Status != "ACTIVE" {
		t.Fatalf("circle not active after approvals: %s", circle.Status)
	}
	return circle
}

// contributeAll records the month's contribution for every member
func contributeAll(t *testing.T, env *testEnv, code string, month int, amount int64) {
	t.Helper()
	ctx := context.Background()
	for _, membNo := range []string{"M001", "M002", "M003"} {
		err := env.circle.MakeContribution(ctx, code, membNo, &ContributionInput{Month: month, Amount: amount})
		if err != nil {
			t.Fatalf("contribution %s month %d: %v", membNo, month, err)
		}
	}
}

// closeVoting forces the proposal's voting window into the past
func closeVoting(t *testing.T, env *testEnv, circleID uint, month int) {
	t.Helper()
	err := env.db.Model(&models.PayoutProposal{}).
		Where("circle_id = ? AND month = ?", circleID, month).
		Update("end_time", time.Now().Add(-48*time.Hour)).Error
	if err != nil {
		t.Fatalf("close voting window: %v", err)
	}
}
