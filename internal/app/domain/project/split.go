package project

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/Yassin6up/somoo-sub000/internal/app/domain/wallet"
)

// Policy holds the percentage split applied to every accepted budget.
type Policy struct {
	LeaderPercent   int64 `json:"leader_percent"`
	PlatformPercent int64 `json:"platform_percent"`
	MemberPercent   int64 `json:"member_percent"`
}

// DefaultPolicy is the 30/10/60 split.
var DefaultPolicy = Policy{LeaderPercent: 30, PlatformPercent: 10, MemberPercent: 60}

func (p Policy) Validate() error {
	if p.LeaderPercent < 0 || p.PlatformPercent < 0 || p.MemberPercent < 0 {
		return fmt.Errorf("split percentages must not be negative")
	}
	if sum := p.LeaderPercent + p.PlatformPercent + p.MemberPercent; sum != 100 {
		return fmt.Errorf("split percentages must sum to 100, got %d", sum)
	}
	return nil
}

// Shares is the division of a budget. Leader+Platform+Members always equals
// the budget it was computed from.
type Shares struct {
	Leader   int64 `json:"leader"`
	Platform int64 `json:"platform"`
	Members  int64 `json:"members"`
}

func (s Shares) Total() int64 { return s.Leader + s.Platform + s.Members }

// Split divides budget by the policy. Leader and platform shares round down;
// the member pool absorbs the remainder.
func (p Policy) Split(budget int64) (Shares, error) {
	if budget <= 0 {
		return Shares{}, fmt.Errorf("budget must be positive")
	}
	if err := p.Validate(); err != nil {
		return Shares{}, err
	}
	leader := percentOf(budget, p.LeaderPercent)
	platform := percentOf(budget, p.PlatformPercent)
	return Shares{Leader: leader, Platform: platform, Members: budget - leader - platform}, nil
}

// percentOf computes floor(amount*pct/100) without overflowing int64.
func percentOf(amount, pct int64) int64 {
	q, r := amount/100, amount%100
	return q*pct + r*pct/100
}

// Weight is a completer's claim on the member pool, normally the sum of the
// rewards of their approved tasks.
type Weight struct {
	UserID string
	Weight int64
}

// Allocation is a computed share of the member pool.
type Allocation struct {
	UserID string
	Amount int64
}

// DistributeMembers splits pool in proportion to the weights using largest
// remainder rounding. Ties on the remainder go to the lower user id. The
// allocations always sum to pool. It returns nil when no weight is positive.
func DistributeMembers(pool int64, completers []Weight) []Allocation {
	merged := make(map[string]int64)
	for _, c := range completers {
		if c.Weight > 0 && c.UserID != "" {
			merged[c.UserID] += c.Weight
		}
	}
	if len(merged) == 0 || pool <= 0 {
		return nil
	}

	ids := make([]string, 0, len(merged))
	total := new(big.Int)
	for id, w := range merged {
		ids = append(ids, id)
		total.Add(total, big.NewInt(w))
	}
	sort.Strings(ids)

	type part struct {
		id        string
		amount    int64
		remainder *big.Int
	}
	parts := make([]part, len(ids))
	bigPool := big.NewInt(pool)
	var assigned int64
	for i, id := range ids {
		num := new(big.Int).Mul(bigPool, big.NewInt(merged[id]))
		quo, rem := new(big.Int).QuoRem(num, total, new(big.Int))
		parts[i] = part{id: id, amount: quo.Int64(), remainder: rem}
		assigned += quo.Int64()
	}

	order := make([]int, len(parts))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return parts[order[a]].remainder.Cmp(parts[order[b]].remainder) > 0
	})
	for i := 0; assigned < pool; i++ {
		parts[order[i%len(order)]].amount++
		assigned++
	}

	out := make([]Allocation, 0, len(parts))
	for _, p := range parts {
		out = append(out, Allocation{UserID: p.id, Amount: p.amount})
	}
	return out
}

// Settle computes every payout released when the project completes. The
// platform share goes to the platform wallet; with no completers the member
// pool is paid to the leader. Zero amounts are omitted.
func Settle(p Project, completers []Weight) []Payout {
	payouts := make([]Payout, 0, len(completers)+2)
	add := func(userID string, kind PayoutKind, amount int64) {
		if amount > 0 {
			payouts = append(payouts, Payout{ProjectID: p.ID, UserID: userID, Kind: kind, Amount: amount})
		}
	}

	shares := p.Shares()
	allocations := DistributeMembers(shares.Members, completers)
	leaderAmount := shares.Leader
	if allocations == nil {
		leaderAmount += shares.Members
	}
	add(p.LeaderID, PayoutLeader, leaderAmount)
	add(wallet.PlatformOwnerID, PayoutPlatform, shares.Platform)
	for _, a := range allocations {
		add(a.UserID, PayoutMember, a.Amount)
	}
	return payouts
}
