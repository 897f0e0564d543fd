package domain

import "testing"

func TestClampScore(t *testing.T) {
	cases := []struct {
		in   int
		want int
	}{
		{-50, 0},
		{0, 0},
		{300, 300},
		{1000, 1000},
		{1500, 1000},
	}
	for _, c := range cases {
		if got := ClampScore(c.in); got != c.want {
			t.Errorf("ClampScore(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestCircleParamsValidate(t *testing.T) {
	valid := CircleParams{
		MonthlyContribution: 100,
		DurationMonths:      6,
		MinParticipants:     3,
		MaxParticipants:     6,
		ReservePercentage:   10,
		DistributionMethod:  DistributionWithdrawable,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid params rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*CircleParams)
		want   error
	}{
		{"zero contribution", func(p *CircleParams) { p.MonthlyContribution = 0 }, ErrInvalidAmount},
		{"zero duration", func(p *CircleParams) { p.DurationMonths = 0 }, ErrInvalidDuration},
		{"one participant", func(p *CircleParams) { p.MinParticipants = 1 }, ErrTooFewParticipants},
		{"max below min", func(p *CircleParams) { p.MaxParticipants = 2 }, ErrInvalidParticipantRange},
		{"reserve over 100", func(p *CircleParams) { p.ReservePercentage = 101 }, ErrInvalidReservePercentage},
		{"bad method", func(p *CircleParams) { p.DistributionMethod = "STREAMING" }, ErrInvalidDistributionMethod},
	}
	for _, c := range cases {
		p := valid
		c.mutate(&p)
		if err := p.Validate(); err != c.want {
			t.Errorf("%s: got %v, want %v", c.name, err, c.want)
		}
	}
}

func TestCheckCreditLimits(t *testing.T) {
	params := CircleParams{
		MonthlyContribution: 100,
		DurationMonths:      6,
		MinParticipants:     3,
		MaxParticipants:     5,
		ReservePercentage:   10,
		DistributionMethod:  DistributionWithdrawable,
	}
	if err := params.CheckCreditLimits(300); err != nil {
		t.Fatalf("limits rejected for base score: %v", err)
	}

	over := params
	over.MonthlyContribution = 301
	if err := over.CheckCreditLimits(300); err != ErrContributionExceedsCredit {
		t.Errorf("contribution gate: got %v", err)
	}

	over = params
	over.MaxParticipants = 301
	if err := over.CheckCreditLimits(300); err != ErrParticipantsExceedCredit {
		t.Errorf("participants gate: got %v", err)
	}

	// 100 * 5 * 7 = 3500 > 300 * 10
	over = params
	over.DurationMonths = 7
	if err := over.CheckCreditLimits(300); err != ErrVolumeExceedsCredit {
		t.Errorf("volume gate: got %v", err)
	}
}

func TestReserveSplit(t *testing.T) {
	cases := []struct {
		amount      int64
		pct         int
		wantReserve int64
		wantPool    int64
	}{
		{100, 10, 10, 90},
		{105, 10, 10, 95}, // floor, pool takes the remainder
		{100, 0, 0, 100},
		{100, 100, 100, 0},
		{1, 50, 0, 1},
	}
	for _, c := range cases {
		reserve, pool := ReserveSplit(c.amount, c.pct)
		if reserve != c.wantReserve || pool != c.wantPool {
			t.Errorf("ReserveSplit(%d, %d) = (%d, %d), want (%d, %d)",
				c.amount, c.pct, reserve, pool, c.wantReserve, c.wantPool)
		}
		if reserve+pool != c.amount {
			t.Errorf("ReserveSplit(%d, %d) loses value", c.amount, c.pct)
		}
	}
}

func TestPayoutShareMatchesPoolAccrual(t *testing.T) {
	for _, amount := range []int64{100, 105, 33, 1} {
		for _, pct := range []int{0, 7, 10, 50, 100} {
			_, pool := ReserveSplit(amount, pct)
			if got := PayoutShare(amount, pct); got != pool {
				t.Errorf("PayoutShare(%d, %d) = %d, pool accrual is %d", amount, pct, got, pool)
			}
		}
	}
}

func TestExcessShare(t *testing.T) {
	each, rem := ExcessShare(10, 3)
	if each != 3 || rem != 1 {
		t.Errorf("ExcessShare(10, 3) = (%d, %d), want (3, 1)", each, rem)
	}

	each, rem = ExcessShare(0, 3)
	if each != 0 || rem != 0 {
		t.Errorf("ExcessShare(0, 3) = (%d, %d), want (0, 0)", each, rem)
	}

	each, rem = ExcessShare(10, 0)
	if each != 0 || rem != 10 {
		t.Errorf("ExcessShare(10, 0) = (%d, %d), want (0, 10)", each, rem)
	}
}

func TestSelectWinnerByVotes(t *testing.T) {
	winner, ok := SelectWinner([]Candidate{
		{MembNo: "A", TotalVotes: 10, CreditScore: 400, Eligible: true},
		{MembNo: "B", TotalVotes: 8, CreditScore: 900, Eligible: true},
	})
	if !ok || winner != "A" {
		t.Errorf("got (%q, %v), want A", winner, ok)
	}
}

func TestSelectWinnerTieBreaksToScore(t *testing.T) {
	winner, ok := SelectWinner([]Candidate{
		{MembNo: "A", TotalVotes: 10, CreditScore: 400, Eligible: true},
		{MembNo: "B", TotalVotes: 10, CreditScore: 500, Eligible: true},
	})
	if !ok || winner != "B" {
		t.Errorf("got (%q, %v), want B", winner, ok)
	}
}

func TestSelectWinnerFullTieKeepsFirstNominated(t *testing.T) {
	winner, ok := SelectWinner([]Candidate{
		{MembNo: "A", TotalVotes: 10, CreditScore: 500, Eligible: true},
		{MembNo: "B", TotalVotes: 10, CreditScore: 500, Eligible: true},
	})
	if !ok || winner != "A" {
		t.Errorf("got (%q, %v), want A", winner, ok)
	}
}

func TestSelectWinnerSkipsIneligible(t *testing.T) {
	winner, ok := SelectWinner([]Candidate{
		{MembNo: "A", TotalVotes: 100, CreditScore: 900, Eligible: false},
		{MembNo: "B", TotalVotes: 1, CreditScore: 100, Eligible: true},
	})
	if !ok || winner != "B" {
		t.Errorf("got (%q, %v), want B", winner, ok)
	}

	if _, ok := SelectWinner([]Candidate{
		{MembNo: "A", TotalVotes: 100, Eligible: false},
	}); ok {
		t.Error("expected no winner when every candidate is ineligible")
	}

	if _, ok := SelectWinner(nil); ok {
		t.Error("expected no winner for empty candidate list")
	}
}
