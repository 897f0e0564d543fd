package domain

import "time"

// CircleStatus represents the lifecycle phase of a savings circle
type CircleStatus string

const (
	CirclePending   CircleStatus = "PENDING"
	CircleActive    CircleStatus = "ACTIVE"
	CircleCompleted CircleStatus = "COMPLETED"
	CircleCancelled CircleStatus = "CANCELLED"
)

// DistributionMethod controls how excess pool funds reach participants
type DistributionMethod string

const (
	DistributionWithdrawable DistributionMethod = "WITHDRAWABLE"
	DistributionAutoDeduct   DistributionMethod = "AUTO_DEDUCT"
)

// Role represents user role in the system
type Role string

const (
	RoleMember Role = "MEMBER"
	RoleAdmin  Role = "ADMIN"
)

// Credit score constants
const (
	BaseScore = 300
	MinScore  = 0
	MaxScore  = 1000

	OnTimeBonus     = 10
	LatePenalty     = 20
	DefaultPenalty  = 100
	CompletionBonus = 15

	// MinCreatorScore is the minimum score required to create a circle
	MinCreatorScore = 300
)

// Credit-based creation limits (checked once, at creation time)
const (
	// UnitValue scales the creator's score into contribution units
	UnitValue = 1
	// VolumeFactor bounds the total circle volume relative to the creator's score
	VolumeFactor = 10
)

// VotingPeriod is the length of the payout voting window per month
const VotingPeriod = 7 * 24 * time.Hour

// ClampScore saturates a raw score into [MinScore, MaxScore]
func ClampScore(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

// CircleParams holds the immutable parameters fixed at circle creation
type CircleParams struct {
	MonthlyContribution int64
	DurationMonths      int
	MinParticipants     int
	MaxParticipants     int
	ReservePercentage   int
	DistributionMethod  DistributionMethod
}

// Validate checks basic parameter sanity
func (p *CircleParams) Validate() error {
	if p.MonthlyContribution <= 0 {
		return ErrInvalidAmount
	}
	if p.DurationMonths <= 0 {
		return ErrInvalidDuration
	}
	if p.MinParticipants < 2 {
		return ErrTooFewParticipants
	}
	if p.MaxParticipants < p.MinParticipants {
		return ErrInvalidParticipantRange
	}
	if p.ReservePercentage < 0 || p.ReservePercentage > 100 {
		return ErrInvalidReservePercentage
	}
	if p.DistributionMethod != DistributionWithdrawable && p.DistributionMethod != DistributionAutoDeduct {
		return ErrInvalidDistributionMethod
	}
	return nil
}

// CheckCreditLimits enforces the creation-time gates derived from the
// creator's score. These are one-time gates: they are never re-checked
// even if the creator's score later drops.
func (p *CircleParams) CheckCreditLimits(creatorScore int) error {
	cr := int64(creatorScore)
	if p.MonthlyContribution > cr*UnitValue {
		return ErrContributionExceedsCredit
	}
	if int64(p.MaxParticipants) > cr {
		return ErrParticipantsExceedCredit
	}
	volume := p.MonthlyContribution * int64(p.MaxParticipants) * int64(p.DurationMonths)
	if volume > cr*VolumeFactor*UnitValue {
		return ErrVolumeExceedsCredit
	}
	return nil
}

// ReserveSplit splits a contribution into the reserve share (floored)
// and the pool share. reserveShare + poolShare == amount always holds.
func ReserveSplit(amount int64, reservePercentage int) (reserveShare, poolShare int64) {
	reserveShare = amount * int64(reservePercentage) / 100
	poolShare = amount - reserveShare
	return reserveShare, poolShare
}

// PayoutShare is the per-participant pool contribution for one month,
// net of the reserve share. Defined via ReserveSplit so the payout math
// matches pool accrual exactly.
func PayoutShare(monthlyContribution int64, reservePercentage int) int64 {
	_, poolShare := ReserveSplit(monthlyContribution, reservePercentage)
	return poolShare
}

// ExcessShare splits surplus pool funds evenly across n participants.
// The integer remainder stays in the pool.
func ExcessShare(excess int64, n int) (each, remainder int64) {
	if n <= 0 || excess <= 0 {
		return 0, excess
	}
	each = excess / int64(n)
	remainder = excess - each*int64(n)
	return each, remainder
}

// Candidate is one nominated payout candidate as seen at execution time
type Candidate struct {
	MembNo      string
	TotalVotes  int64
	CreditScore int
	Eligible    bool
}

// SelectWinner picks the payout winner from candidates in proposal order.
// Highest vote total wins; ties break to the higher current credit score;
// a remaining tie keeps the earliest-nominated candidate. Ineligible
// candidates (defaulted, already paid, deactivated) are skipped entirely.
func SelectWinner(candidates []Candidate) (string, bool) {
	var (
		winner string
		found  bool
		best   Candidate
	)
	for _, c := range candidates {
		if !c.Eligible {
			continue
		}
		if !found {
			winner, best, found = c.MembNo, c, true
			continue
		}
		if c.TotalVotes > best.TotalVotes ||
			(c.TotalVotes == best.TotalVotes && c.CreditScore > best.CreditScore) {
			winner, best = c.MembNo, c
		}
	}
	return winner, found
}
