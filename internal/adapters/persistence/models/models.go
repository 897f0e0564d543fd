package models

import (
	"time"

	"gorm.io/gorm"
)

// ============================================================
// Auth & User Tables
// ============================================================

// User represents users table
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	MembNo    string         `gorm:"uniqueIndex;size:20;not null" json:"memb_no"`
	Username  string         `gorm:"uniqueIndex;size:50;not null" json:"username"`
	Email     string         `gorm:"uniqueIndex;size:100;not null" json:"email"`
	Password  string         `gorm:"size:255;not null" json:"-"`
	Role      string         `gorm:"size:20;default:'MEMBER'" json:"role"`
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// UserResponse DTO
type UserResponse struct {
	ID        uint      `json:"id"`
	MembNo    string    `json:"memb_no"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		ID:        u.ID,
		MembNo:    u.MembNo,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

// RefreshToken represents refresh_tokens table
type RefreshToken struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"index;not null" json:"user_id"`
	TokenHash string     `gorm:"size:255;not null;index" json:"-"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	RevokedAt *time.Time `gorm:"index" json:"revoked_at"`
	User      User       `gorm:"foreignKey:UserID" json:"-"`
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

func (rt *RefreshToken) IsRevoked() bool {
	return rt.RevokedAt != nil
}

func (rt *RefreshToken) IsExpired() bool {
	return time.Now().After(rt.ExpiresAt)
}

// ============================================================
// Credit Ledger
// ============================================================

// CreditProfile represents credit_profiles table. One row per member,
// shared across every circle the member touches. Created lazily on the
// first ledger-mutating event and never deleted.
type CreditProfile struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	MembNo            string    `gorm:"uniqueIndex;size:20;not null" json:"memb_no"`
	Score             int       `gorm:"not null;default:300" json:"score"`
	CirclesJoined     int       `gorm:"not null;default:0" json:"circles_joined"`
	CirclesCompleted  int       `gorm:"not null;default:0" json:"circles_completed"`
	OnTimePayments    int       `gorm:"not null;default:0" json:"on_time_payments"`
	LatePayments      int       `gorm:"not null;default:0" json:"late_payments"`
	Defaults          int       `gorm:"not null;default:0" json:"defaults"`
	HasDefaulted      bool      `gorm:"default:false" json:"has_defaulted"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CreditProfile) TableName() string {
	return "credit_profiles"
}

// ============================================================
// Circles
// ============================================================

// Circle represents circles table (one row per lending circle)
type Circle struct {
	ID                    uint      `gorm:"primaryKey" json:"id"`
	Code                  string    `gorm:"uniqueIndex;size:36;not null" json:"code"`
	CreatorMembNo         string    `gorm:"size:20;not null;index" json:"creator_memb_no"`
	CoordinatorMembNo     string    `gorm:"size:20;not null" json:"coordinator_memb_no"`
	MonthlyContribution   int64     `gorm:"not null" json:"monthly_contribution"`
	DurationMonths        int       `gorm:"not null" json:"duration_months"`
	MinParticipants       int       `gorm:"not null" json:"min_participants"`
	MaxParticipants       int       `gorm:"not null" json:"max_participants"`
	ReservePercentage     int       `gorm:"not null" json:"reserve_percentage"`
	DistributionMethod    string    `gorm:"size:20;not null" json:"distribution_method"`
	Status                string    `gorm:"size:20;not null;default:'PENDING';index" json:"status"`
	CurrentMonth          int       `gorm:"not null;default:0" json:"current_month"`
	PoolBalance           int64     `gorm:"not null;default:0" json:"pool_balance"`
	TotalReserveDeposited int64     `gorm:"not null;default:0" json:"total_reserve_deposited"`
	TotalParticipants     int       `gorm:"not null;default:0" json:"total_participants"`
	CreatedAt             time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	Participants []Participant `gorm:"foreignKey:CircleID" json:"participants,omitempty"`
}

func (Circle) TableName() string {
	return "circles"
}

// CircleResponse DTO
type CircleResponse struct {
	Code                  string                 `json:"code"`
	CreatorMembNo         string                 `json:"creator_memb_no"`
	CoordinatorMembNo     string                 `json:"coordinator_memb_no"`
	MonthlyContribution   int64                  `json:"monthly_contribution"`
	DurationMonths        int                    `json:"duration_months"`
	MinParticipants       int                    `json:"min_participants"`
	MaxParticipants       int                    `json:"max_participants"`
	ReservePercentage     int                    `json:"reserve_percentage"`
	DistributionMethod    string                 `json:"distribution_method"`
	Status                string                 `json:"status"`
	CurrentMonth          int                    `json:"current_month"`
	PoolBalance           int64                  `json:"pool_balance"`
	TotalReserveDeposited int64                  `json:"total_reserve_deposited"`
	TotalParticipants     int                    `json:"total_participants"`
	CreatedAt             time.Time              `json:"created_at"`
	Participants          []*ParticipantResponse `json:"participants,omitempty"`
}

func (c *Circle) ToResponse() *CircleResponse {
	resp := &CircleResponse{
		Code:                  c.Code,
		CreatorMembNo:         c.CreatorMembNo,
		CoordinatorMembNo:     c.CoordinatorMembNo,
		MonthlyContribution:   c.MonthlyContribution,
		DurationMonths:        c.DurationMonths,
		MinParticipants:       c.MinParticipants,
		MaxParticipants:       c.MaxParticipants,
		ReservePercentage:     c.ReservePercentage,
		DistributionMethod:    c.DistributionMethod,
		Status:                c.Status,
		CurrentMonth:          c.CurrentMonth,
		PoolBalance:           c.PoolBalance,
		TotalReserveDeposited: c.TotalReserveDeposited,
		TotalParticipants:     c.TotalParticipants,
		CreatedAt:             c.CreatedAt,
	}
	for i := range c.Participants {
		resp.Participants = append(resp.Participants, c.Participants[i].ToResponse())
	}
	return resp
}

// Participant represents circle_participants table
type Participant struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	CircleID            uint       `gorm:"not null;uniqueIndex:idx_circle_member" json:"circle_id"`
	MembNo              string     `gorm:"size:20;not null;uniqueIndex:idx_circle_member" json:"memb_no"`
	IsActive            bool       `gorm:"default:false" json:"is_active"`
	HasReceivedPayout   bool       `gorm:"default:false" json:"has_received_payout"`
	IsInDefault         bool       `gorm:"default:false" json:"is_in_default"`
	WithdrawableBalance int64      `gorm:"not null;default:0" json:"withdrawable_balance"`
	ApprovedAt          *time.Time `json:"approved_at"`
	CreatedAt           time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Participant) TableName() string {
	return "circle_participants"
}

// ParticipantResponse DTO
type ParticipantResponse struct {
	MembNo              string     `json:"memb_no"`
	IsActive            bool       `json:"is_active"`
	HasReceivedPayout   bool       `json:"has_received_payout"`
	IsInDefault         bool       `json:"is_in_default"`
	WithdrawableBalance int64      `json:"withdrawable_balance"`
	ApprovedAt          *time.Time `json:"approved_at"`
	JoinedAt            time.Time  `json:"joined_at"`
}

func (p *Participant) ToResponse() *ParticipantResponse {
	return &ParticipantResponse{
		MembNo:              p.MembNo,
		IsActive:            p.IsActive,
		HasReceivedPayout:   p.HasReceivedPayout,
		IsInDefault:         p.IsInDefault,
		WithdrawableBalance: p.WithdrawableBalance,
		ApprovedAt:          p.ApprovedAt,
		JoinedAt:            p.CreatedAt,
	}
}

// Payment represents circle_payments table (per-member per-month flag)
type Payment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CircleID  uint      `gorm:"not null;uniqueIndex:idx_circle_member_month" json:"circle_id"`
	MembNo    string    `gorm:"size:20;not null;uniqueIndex:idx_circle_member_month" json:"memb_no"`
	Month     int       `gorm:"not null;uniqueIndex:idx_circle_member_month" json:"month"`
	Late      bool      `gorm:"default:false" json:"late"`
	PaidAt    time.Time `gorm:"not null" json:"paid_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Payment) TableName() string {
	return "circle_payments"
}

// ============================================================
// Payout Proposals & Votes
// ============================================================

// PayoutProposal represents payout_proposals table (one per circle-month,
// opened implicitly by the first nomination)
type PayoutProposal struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CircleID     uint      `gorm:"not null;uniqueIndex:idx_circle_month" json:"circle_id"`
	Month        int       `gorm:"not null;uniqueIndex:idx_circle_month" json:"month"`
	EndTime      time.Time `gorm:"not null" json:"end_time"`
	Executed     bool      `gorm:"default:false" json:"executed"`
	WinnerMembNo *string   `gorm:"size:20" json:"winner_memb_no"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	Candidates []ProposalCandidate `gorm:"foreignKey:ProposalID" json:"candidates,omitempty"`
}

func (PayoutProposal) TableName() string {
	return "payout_proposals"
}

// ProposalCandidate represents proposal_candidates table. Position keeps
// nomination order for the stable tie-break scan.
type ProposalCandidate struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ProposalID uint      `gorm:"not null;uniqueIndex:idx_proposal_candidate" json:"proposal_id"`
	MembNo     string    `gorm:"size:20;not null;uniqueIndex:idx_proposal_candidate" json:"memb_no"`
	ProposedBy string    `gorm:"size:20;not null" json:"proposed_by"`
	TotalVotes int64     `gorm:"not null;default:0" json:"total_votes"`
	IsActive   bool      `gorm:"default:true" json:"is_active"`
	Position   int       `gorm:"not null" json:"position"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ProposalCandidate) TableName() string {
	return "proposal_candidates"
}

// ProposalVote represents proposal_votes table (one per voter per month)
type ProposalVote struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	ProposalID      uint      `gorm:"not null;uniqueIndex:idx_proposal_voter" json:"proposal_id"`
	VoterMembNo     string    `gorm:"size:20;not null;uniqueIndex:idx_proposal_voter" json:"voter_memb_no"`
	CandidateMembNo string    `gorm:"size:20;not null" json:"candidate_memb_no"`
	Weight          int       `gorm:"not null" json:"weight"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ProposalVote) TableName() string {
	return "proposal_votes"
}

// ============================================================
// Reserve Pool
// ============================================================

// ReservePool represents the single reserve_pool row shared by all circles
type ReservePool struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	TotalDeposited int64     `gorm:"not null;default:0" json:"total_deposited"`
	TotalWithdrawn int64     `gorm:"not null;default:0" json:"total_withdrawn"`
	CurrentBalance int64     `gorm:"not null;default:0" json:"current_balance"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ReservePool) TableName() string {
	return "reserve_pool"
}

// VerifiedCircle represents reserve_verified_circles table (the allow-list
// of circles permitted to move reserve funds)
type VerifiedCircle struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	CircleID  uint       `gorm:"uniqueIndex;not null" json:"circle_id"`
	Active    bool       `gorm:"default:true" json:"active"`
	RevokedAt *time.Time `json:"revoked_at"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (VerifiedCircle) TableName() string {
	return "reserve_verified_circles"
}

// ============================================================
// Transaction History
// ============================================================

// Transaction types
const (
	TxTypeCreate         = "CREATE"
	TxTypeContribution   = "CONTRIBUTION"
	TxTypeReserveDeposit = "RESERVE_DEPOSIT"
	TxTypeReserveBorrow  = "RESERVE_BORROW"
	TxTypePayout         = "PAYOUT"
	TxTypeExcessCredit   = "EXCESS_CREDIT"
	TxTypeWithdraw       = "WITHDRAW"
	TxTypeFund           = "FUND"
	TxTypeLate           = "LATE"
	TxTypeDefault        = "DEFAULT"
)

// Transaction represents circle_transactions table (append-only history)
type Transaction struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CircleID    uint      `gorm:"not null;index" json:"circle_id"`
	TxType      string    `gorm:"size:30;not null" json:"tx_type"`
	MembNo      string    `gorm:"size:20" json:"memb_no"`
	Amount      int64     `gorm:"not null;default:0" json:"amount"`
	Month       *int      `json:"month"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Transaction) TableName() string {
	return "circle_transactions"
}

// ============================================================
// Auto Migration
// ============================================================

// AutoMigrate runs auto migration for all tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		// Auth
		&User{},
		&RefreshToken{},
		// Credit ledger
		&CreditProfile{},
		// Circles
		&Circle{},
		&Participant{},
		&Payment{},
		// Payouts
		&PayoutProposal{},
		&ProposalCandidate{},
		&ProposalVote{},
		// Reserve
		&ReservePool{},
		&VerifiedCircle{},
		// History
		&Transaction{},
	)
}
