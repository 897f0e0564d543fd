package services

import (
	"context"
	"log"
	"time"

	"circlefund/internal/adapters/persistence/repositories"

	"github.com/robfig/cron/v3"
)

// ReminderService runs the scheduled background jobs: a daily sweep that
// reminds active participants who have not contributed for the current
// month, and an hourly sweep that flags circles whose voting window has
// closed without an executed payout.
type ReminderService struct {
	circleRepo   *repositories.CircleRepository
	proposalRepo *repositories.ProposalRepository
	cron         *cron.Cron
}

// NewReminderService creates a new reminder service
func NewReminderService(
	circleRepo *repositories.CircleRepository,
	proposalRepo *repositories.ProposalRepository,
) *ReminderService {
	return &ReminderService{
		circleRepo:   circleRepo,
		proposalRepo: proposalRepo,
		cron:         cron.New(),
	}
}

// Start registers and starts the scheduled jobs
func (s *ReminderService) Start() error {
	// Daily contribution reminder at 18:00
	if _, err := s.cron.AddFunc("0 18 * * *", s.runContributionReminders); err != nil {
		return err
	}

	// Hourly sweep for closed-but-unexecuted voting windows
	if _, err := s.cron.AddFunc("@hourly", s.runExpiredProposalSweep); err != nil {
		return err
	}

	s.cron.Start()
	log.Println("⏰ Reminder scheduler started")
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *ReminderService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("⏰ Reminder scheduler stopped")
}

func (s *ReminderService) runContributionReminders() {
	ctx := context.Background()

	circles, err := s.circleRepo.ListActiveCircles(ctx)
	if err != nil {
		log.Printf("❌ Contribution reminder sweep failed: %v", err)
		return
	}

	for _, circle := range circles {
		unpaid, err := s.circleRepo.UnpaidActiveMembers(ctx, circle.ID, circle.CurrentMonth)
		if err != nil {
			log.Printf("❌ Unpaid lookup failed for circle %s: %v", circle.Code, err)
			continue
		}
		for _, membNo := range unpaid {
			log.Printf("📅 Reminder: member %s owes %d for month %d in circle %s",
				membNo, circle.MonthlyContribution, circle.CurrentMonth, circle.Code)
		}
	}
}

func (s *ReminderService) runExpiredProposalSweep() {
	ctx := context.Background()

	proposals, err := s.proposalRepo.ListExpiredOpen(ctx, time.Now())
	if err != nil {
		log.Printf("❌ Expired proposal sweep failed: %v", err)
		return
	}

	for _, proposal := range proposals {
		log.Printf("⏳ Voting closed without execution: circle %d month %d (ended %s)",
			proposal.CircleID, proposal.Month, proposal.EndTime.Format(time.RFC3339))
	}
}
