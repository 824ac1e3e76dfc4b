// pkg/analytics/membership.go
package analytics

import (
	"sort"

	"github.com/David-Botos/customer-data-platform/pkg/model"
)

// TierRetention is the share of active rows within one tier
type TierRetention struct {
	Tier string  `json:"tier"`
	Rate float64 `json:"rate"`
}

// RetentionStats is the overall and per tier retention
type RetentionStats struct {
	Available bool            `json:"available"`
	Active    int             `json:"active"`
	Total     int             `json:"total"`
	Rate      float64         `json:"rate"`
	ByTier    []TierRetention `json:"by_tier"`
}

// Retention divides the active memberships of the merged view by all
// memberships, as a percentage, and breaks the merged view down by tier
func Retention(memberships, merged *model.Table) RetentionStats {
	stats := RetentionStats{ByTier: []TierRetention{}}
	if !hasColumns(memberships, model.ColMembershipID) {
		return stats
	}
	stats.Available = true

	stats.Total = uniqueCount(memberships, model.ColMembershipID, nil)
	if hasColumns(merged, model.ColStatus) {
		stats.Active = uniqueCount(merged, model.ColMembershipID, func(row model.Record) bool {
			return textOf(row, model.ColStatus) == StatusActive
		})
	}
	if stats.Total > 0 {
		stats.Rate = float64(stats.Active) / float64(stats.Total) * 100
	}

	if !hasColumns(merged, model.ColTier, model.ColStatus) {
		return stats
	}

	type tally struct{ active, rows int }
	byTier := make(map[string]*tally)
	for _, row := range merged.Rows {
		tier := textOf(row, model.ColTier)
		if tier == "" {
			continue
		}
		t, ok := byTier[tier]
		if !ok {
			t = &tally{}
			byTier[tier] = t
		}
		t.rows++
		if textOf(row, model.ColStatus) == StatusActive {
			t.active++
		}
	}
	for tier, t := range byTier {
		stats.ByTier = append(stats.ByTier, TierRetention{
			Tier: tier,
			Rate: float64(t.active) / float64(t.rows) * 100,
		})
	}
	sort.Slice(stats.ByTier, func(i, j int) bool {
		return tierLess(stats.ByTier[i].Tier, stats.ByTier[j].Tier)
	})

	return stats
}

// TierSpending is the spending summary of one tier
type TierSpending struct {
	Tier string `json:"tier"`
	BoxStats
}

// Spending is the spending distribution per tier
type Spending struct {
	Available bool           `json:"available"`
	Tiers     []TierSpending `json:"tiers"`
}

// MembershipSpending pairs each transaction with the first membership of its
// client and summarizes positive amounts per tier. Tiers without spending
// are omitted.
func MembershipSpending(memberships, transactions *model.Table) Spending {
	out := Spending{Tiers: []TierSpending{}}
	if !hasColumns(memberships, model.ColClientID, model.ColTier) ||
		!hasColumns(transactions, model.ColClientID, model.ColAmount) {
		return out
	}
	out.Available = true

	first := firstByClient(memberships)
	amounts := make(map[string][]float64)
	for _, row := range transactions.Rows {
		id, ok := clientIDOf(row)
		if !ok {
			continue
		}
		membership, found := first[id]
		if !found {
			continue
		}
		amount, ok := floatOf(row, model.ColAmount)
		if !ok || amount <= 0 {
			continue
		}
		tier := textOf(membership, model.ColTier)
		if tier == "" {
			continue
		}
		amounts[tier] = append(amounts[tier], amount)
	}

	for tier, xs := range amounts {
		out.Tiers = append(out.Tiers, TierSpending{Tier: tier, BoxStats: summarize(xs)})
	}
	sort.Slice(out.Tiers, func(i, j int) bool {
		return tierLess(out.Tiers[i].Tier, out.Tiers[j].Tier)
	})

	return out
}
