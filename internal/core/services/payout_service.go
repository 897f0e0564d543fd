package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"circlefund/internal/adapters/persistence/models"
	"circlefund/internal/adapters/persistence/repositories"
	"circlefund/internal/core/domain"

	"gorm.io/gorm"
)

// Payout errors
var (
	ErrNoProposal          = errors.New("no payout proposal for this month")
	ErrVotingClosed        = errors.New("the voting window has closed")
	ErrVotingStillOpen     = errors.New("the voting window is still open")
	ErrIneligibleCandidate = errors.New("candidate is not eligible for a payout")
	ErrAlreadyProposed     = errors.New("candidate already nominated this month")
	ErrCandidateNotFound   = errors.New("candidate not found on this proposal")
	ErrAlreadyVoted        = errors.New("member already voted this month")
	ErrZeroVoteWeight      = errors.New("member has no voting weight")
	ErrAlreadyExecuted     = errors.New("payout already executed for this month")
	ErrNoValidWinner       = errors.New("no eligible candidate to pay out")
	ErrPayoutInProgress    = errors.New("payout execution already in progress")
)

// payoutGuard serializes payout execution per circle so a re-entrant
// call cannot double-pay while the first execution is mid-flight
type payoutGuard struct {
	mu       sync.Mutex
	inflight map[uint]struct{}
}

func newPayoutGuard() *payoutGuard {
	return &payoutGuard{inflight: make(map[uint]struct{})}
}

func (g *payoutGuard) acquire(circleID uint) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inflight[circleID]; busy {
		return false
	}
	g.inflight[circleID] = struct{}{}
	return true
}

func (g *payoutGuard) release(circleID uint) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inflight, circleID)
}

// PayoutService runs the monthly payout cycle: candidate nomination
// opens a voting window, score-weighted votes accumulate, and after the
// window closes anyone may trigger execution. Execution pays the winner,
// borrows from the reserve on shortfall, redistributes surplus, and
// advances the circle month.
type PayoutService struct {
	db             *gorm.DB
	circleRepo     *repositories.CircleRepository
	proposalRepo   *repositories.ProposalRepository
	txRepo         *repositories.TransactionRepository
	creditService  *CreditService
	reserveService *ReserveService
	guard          *payoutGuard
}

// NewPayoutService creates a new payout service
func NewPayoutService(
	db *gorm.DB,
	circleRepo *repositories.CircleRepository,
	proposalRepo *repositories.ProposalRepository,
	txRepo *repositories.TransactionRepository,
	creditService *CreditService,
	reserveService *ReserveService,
) *PayoutService {
	return &PayoutService{
		db:             db,
		circleRepo:     circleRepo,
		proposalRepo:   proposalRepo,
		txRepo:         txRepo,
		creditService:  creditService,
		reserveService: reserveService,
		guard:          newPayoutGuard(),
	}
}

func (p *PayoutService) getActiveCircle(ctx context.Context, repo *repositories.CircleRepository, code string) (*models.Circle, error) {
	circle, err := repo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCircleNotFound
		}
		return nil, err
	}
	if circle.Status != string(domain.CircleActive) {
		return nil, ErrCircleNotActive
	}
	return circle, nil
}

// ProposePayout nominates a candidate for the current month's payout.
// The first nomination of the month opens the voting window. Candidates
// must be active, non-defaulted participants who have not yet received
// a payout, and each may be nominated at most once per month.
func (p *PayoutService) ProposePayout(ctx context.Context, code, proposerMembNo, candidateMembNo string, month int) error {
	return p.db.Transaction(func(tx *gorm.DB) error {
		circleRepo := p.circleRepo.WithTx(tx)
		proposalRepo := p.proposalRepo.WithTx(tx)

		circle, err := p.getActiveCircle(ctx, circleRepo, code)
		if err != nil {
			return err
		}
		if month != circle.CurrentMonth {
			return ErrWrongMonth
		}

		proposer, err := circleRepo.GetParticipant(ctx, circle.ID, proposerMembNo)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotActiveParticipant
			}
			return err
		}
		if !proposer.IsActive {
			return ErrNotActiveParticipant
		}

		candidate, err := circleRepo.GetParticipant(ctx, circle.ID, candidateMembNo)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrParticipantNotFound
			}
			return err
		}
		if !candidate.IsActive || candidate.IsInDefault || candidate.HasReceivedPayout {
			return ErrIneligibleCandidate
		}

		proposal, err := proposalRepo.GetByCircleMonth(ctx, circle.ID, month)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			proposal = &models.PayoutProposal{
				CircleID: circle.ID,
				Month:    month,
				EndTime:  time.Now().Add(domain.VotingPeriod),
			}
			if err := proposalRepo.Create(ctx, proposal); err != nil {
				return err
			}
			log.Printf("🗳️ Voting opened for circle %s month %d (closes %s)",
				code, month, proposal.EndTime.Format(time.RFC3339))
		} else if time.Now().After(proposal.EndTime) {
			return ErrVotingClosed
		}

		if _, err := proposalRepo.GetCandidate(ctx, proposal.ID, candidateMembNo); err == nil {
			return ErrAlreadyProposed
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		position, err := proposalRepo.CountCandidates(ctx, proposal.ID)
		if err != nil {
			return err
		}

		if err := proposalRepo.CreateCandidate(ctx, &models.ProposalCandidate{
			ProposalID: proposal.ID,
			MembNo:     candidateMembNo,
			ProposedBy: proposerMembNo,
			IsActive:   true,
			Position:   int(position),
		}); err != nil {
			return err
		}

		log.Printf("📋 Candidate nominated: member %s by %s (circle %s, month %d)",
			candidateMembNo, proposerMembNo, code, month)
		return nil
	})
}

// Vote casts the caller's vote for an already-nominated candidate. Vote
// weight is the voter's credit score at the moment of voting; a vote
// cast at zero weight is rejected. One vote per member per month.
func (p *PayoutService) Vote(ctx context.Context, code, voterMembNo, candidateMembNo string, month int) error {
	return p.db.Transaction(func(tx *gorm.DB) error {
		circleRepo := p.circleRepo.WithTx(tx)
		proposalRepo := p.proposalRepo.WithTx(tx)
		credit := p.creditService.WithTx(tx)

		circle, err := p.getActiveCircle(ctx, circleRepo, code)
		if err != nil {
			return err
		}
		if month != circle.CurrentMonth {
			return ErrWrongMonth
		}

		voter, err := circleRepo.GetParticipant(ctx, circle.ID, voterMembNo)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotActiveParticipant
			}
			return err
		}
		if !voter.IsActive || voter.IsInDefault {
			return ErrNotActiveParticipant
		}

		proposal, err := proposalRepo.GetByCircleMonth(ctx, circle.ID, month)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoProposal
			}
			return err
		}
		if time.Now().After(proposal.EndTime) {
			return ErrVotingClosed
		}

		if _, err := proposalRepo.GetVote(ctx, proposal.ID, voterMembNo); err == nil {
			return ErrAlreadyVoted
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		candidate, err := proposalRepo.GetCandidate(ctx, proposal.ID, candidateMembNo)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCandidateNotFound
			}
			return err
		}
		if !candidate.IsActive {
			return ErrCandidateNotFound
		}

		weight, err := credit.GetScore(ctx, voterMembNo)
		if err != nil {
			return err
		}
		if weight <= 0 {
			return ErrZeroVoteWeight
		}

		if err := proposalRepo.CreateVote(ctx, &models.ProposalVote{
			ProposalID:      proposal.ID,
			VoterMembNo:     voterMembNo,
			CandidateMembNo: candidateMembNo,
			Weight:          weight,
		}); err != nil {
			return err
		}

		candidate.TotalVotes += int64(weight)
		if err := proposalRepo.SaveCandidate(ctx, candidate); err != nil {
			return err
		}

		log.Printf("🗳️ Vote: member %s -> %s with weight %d (circle %s, month %d)",
			voterMembNo, candidateMembNo, weight, code, month)
		return nil
	})
}

// PayoutResult summarizes an executed payout
type PayoutResult struct {
	WinnerMembNo    string `json:"winner_memb_no"`
	Amount          int64  `json:"amount"`
	ReserveBorrowed int64  `json:"reserve_borrowed"`
	ExcessPerMember int64  `json:"excess_per_member"`
	Month           int    `json:"month"`
	CircleCompleted bool   `json:"circle_completed"`
}

// ExecutePayout settles the current month after the voting window has
// closed. Any caller may trigger it. The winner takes the full expected
// payout (per-member pool share times the active count); a pool
// shortfall is covered by a reserve borrow, and any surplus left after
// the payout is split evenly into eligible participants' withdrawable
// balances. The month then advances, completing the circle when the
// final month settles.
func (p *PayoutService) ExecutePayout(ctx context.Context, code string, month int) (*PayoutResult, error) {
	result := &PayoutResult{Month: month}

	// The guard must span the whole call, commit included; a guard
	// scoped to the transaction closure would open a window between
	// closure return and COMMIT where a second call still sees the
	// unexecuted proposal.
	guarded, err := p.circleRepo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCircleNotFound
		}
		return nil, err
	}
	if !p.guard.acquire(guarded.ID) {
		return nil, ErrPayoutInProgress
	}
	defer p.guard.release(guarded.ID)

	err = p.db.Transaction(func(tx *gorm.DB) error {
		circleRepo := p.circleRepo.WithTx(tx)
		proposalRepo := p.proposalRepo.WithTx(tx)
		txRepo := p.txRepo.WithTx(tx)
		credit := p.creditService.WithTx(tx)
		reserve := p.reserveService.WithTx(tx)

		circle, err := p.getActiveCircle(ctx, circleRepo, code)
		if err != nil {
			return err
		}
		if month != circle.CurrentMonth {
			return ErrWrongMonth
		}

		proposal, err := proposalRepo.GetByCircleMonth(ctx, circle.ID, month)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoProposal
			}
			return err
		}
		if proposal.Executed {
			return ErrAlreadyExecuted
		}
		if time.Now().Before(proposal.EndTime) {
			return ErrVotingStillOpen
		}

		// Eligibility is judged at execution time, not nomination time:
		// a candidate who defaulted or was paid since nomination is out.
		candidates := make([]domain.Candidate, 0, len(proposal.Candidates))
		for _, c := range proposal.Candidates {
			participant, err := circleRepo.GetParticipant(ctx, circle.ID, c.MembNo)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					continue
				}
				return err
			}
			score, err := credit.GetScore(ctx, c.MembNo)
			if err != nil {
				return err
			}
			candidates = append(candidates, domain.Candidate{
				MembNo:      c.MembNo,
				TotalVotes:  c.TotalVotes,
				CreditScore: score,
				Eligible: c.IsActive &&
					participant.IsActive &&
					!participant.IsInDefault &&
					!participant.HasReceivedPayout,
			})
		}

		winnerMembNo, found := domain.SelectWinner(candidates)
		if !found {
			return ErrNoValidWinner
		}

		activeCount, err := circleRepo.CountActiveParticipants(ctx, circle.ID)
		if err != nil {
			return err
		}

		expected := domain.PayoutShare(circle.MonthlyContribution, circle.ReservePercentage) * activeCount

		// Shortfall is covered from the shared reserve before paying
		if circle.PoolBalance < expected {
			shortfall := expected - circle.PoolBalance
			if err := reserve.Withdraw(ctx, circle.ID, shortfall, winnerMembNo); err != nil {
				return err
			}
			circle.PoolBalance += shortfall
			result.ReserveBorrowed = shortfall

			if err := txRepo.Create(ctx, &models.Transaction{
				CircleID:    circle.ID,
				TxType:      models.TxTypeReserveBorrow,
				Amount:      shortfall,
				Month:       &month,
				Description: "reserve covered pool shortfall",
			}); err != nil {
				return err
			}
		}

		circle.PoolBalance -= expected

		winner, err := circleRepo.GetParticipant(ctx, circle.ID, winnerMembNo)
		if err != nil {
			return err
		}
		winner.HasReceivedPayout = true
		if err := circleRepo.SaveParticipant(ctx, winner); err != nil {
			return err
		}

		// Winning the month counts as an on-time payment on the ledger
		if err := credit.RecordOnTimePayment(ctx, winnerMembNo); err != nil {
			return err
		}

		if err := txRepo.Create(ctx, &models.Transaction{
			CircleID:    circle.ID,
			TxType:      models.TxTypePayout,
			MembNo:      winnerMembNo,
			Amount:      expected,
			Month:       &month,
			Description: fmt.Sprintf("month %d payout", month),
		}); err != nil {
			return err
		}

		// Surplus beyond the payout splits evenly across eligible
		// participants; the integer remainder stays in the pool
		if circle.PoolBalance > 0 {
			eligible := make([]*models.Participant, 0)
			participants, err := circleRepo.ListActiveParticipants(ctx, circle.ID)
			if err != nil {
				return err
			}
			for _, pt := range participants {
				if !pt.IsInDefault {
					eligible = append(eligible, pt)
				}
			}

			each, _ := domain.ExcessShare(circle.PoolBalance, len(eligible))
			if each > 0 {
				for _, pt := range eligible {
					pt.WithdrawableBalance += each
					if err := circleRepo.SaveParticipant(ctx, pt); err != nil {
						return err
					}
				}
				distributed := each * int64(len(eligible))
				circle.PoolBalance -= distributed
				result.ExcessPerMember = each

				if err := txRepo.Create(ctx, &models.Transaction{
					CircleID:    circle.ID,
					TxType:      models.TxTypeExcessCredit,
					Amount:      distributed,
					Month:       &month,
					Description: fmt.Sprintf("surplus split %d each across %d members", each, len(eligible)),
				}); err != nil {
					return err
				}
			}
		}

		proposal.Executed = true
		proposal.WinnerMembNo = &winnerMembNo
		if err := proposalRepo.Save(ctx, proposal); err != nil {
			return err
		}

		circle.CurrentMonth++
		if circle.CurrentMonth >= circle.DurationMonths {
			circle.Status = string(domain.CircleCompleted)
			result.CircleCompleted = true

			participants, err := circleRepo.ListActiveParticipants(ctx, circle.ID)
			if err != nil {
				return err
			}
			for _, pt := range participants {
				if pt.IsInDefault {
					continue
				}
				if err := credit.RecordCircleCompletion(ctx, pt.MembNo); err != nil {
					return err
				}
			}
			log.Printf("🏁 Circle %s completed after %d months", code, circle.DurationMonths)
		}
		if err := circleRepo.Save(ctx, circle); err != nil {
			return err
		}

		result.WinnerMembNo = winnerMembNo
		result.Amount = expected

		log.Printf("🏆 Payout executed: member %s received %d (circle %s, month %d)",
			winnerMembNo, expected, code, month)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ProposalView is the read model of a month's proposal
type ProposalView struct {
	Month        int             `json:"month"`
	EndTime      time.Time       `json:"end_time"`
	VotingClosed bool            `json:"voting_closed"`
	Executed     bool            `json:"executed"`
	WinnerMembNo *string         `json:"winner_memb_no"`
	Candidates   []CandidateView `json:"candidates"`
}

// CandidateView is one nominated candidate with its running tally
type CandidateView struct {
	MembNo     string `json:"memb_no"`
	ProposedBy string `json:"proposed_by"`
	TotalVotes int64  `json:"total_votes"`
	IsActive   bool   `json:"is_active"`
}

// GetProposal returns the proposal state for a circle month
func (p *PayoutService) GetProposal(ctx context.Context, code string, month int) (*ProposalView, error) {
	circle, err := p.circleRepo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCircleNotFound
		}
		return nil, err
	}

	proposal, err := p.proposalRepo.GetByCircleMonth(ctx, circle.ID, month)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoProposal
		}
		return nil, err
	}

	view := &ProposalView{
		Month:        proposal.Month,
		EndTime:      proposal.EndTime,
		VotingClosed: time.Now().After(proposal.EndTime),
		Executed:     proposal.Executed,
		WinnerMembNo: proposal.WinnerMembNo,
	}
	for _, c := range proposal.Candidates {
		view.Candidates = append(view.Candidates, CandidateView{
			MembNo:     c.MembNo,
			ProposedBy: c.ProposedBy,
			TotalVotes: c.TotalVotes,
			IsActive:   c.IsActive,
		})
	}
	return view, nil
}
