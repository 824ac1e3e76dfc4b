// pkg/analytics/overview.go
package analytics

import (
	"fmt"
	"time"

	"github.com/jinzhu/now"
	"github.com/shopspring/decimal"

	"github.com/David-Botos/customer-data-platform/pkg/model"
)

// Default range of the temporal trends block
var (
	DefaultTrendsFrom = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	DefaultTrendsTo   = time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
)

// QuickStats are the headline numbers of the overview page
type QuickStats struct {
	Available         bool            `json:"available"`
	TotalClients      int             `json:"total_clients"`
	ActiveMemberships int             `json:"active_memberships"`
	TotalTransactions int             `json:"total_transactions"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	TotalAmountText   string          `json:"total_amount_text"`
}

// QuickStatistics counts unique clients, active memberships and transactions
// and sums the transaction amounts
func QuickStatistics(clients, merged, transactions *model.Table) QuickStats {
	stats := QuickStats{
		Available:   hasColumns(clients, model.ColClientID),
		TotalAmount: decimal.Zero,
	}

	stats.TotalClients = uniqueCount(clients, model.ColClientID, nil)
	if hasColumns(merged, model.ColStatus) {
		stats.ActiveMemberships = uniqueCount(merged, model.ColMembershipID, func(row model.Record) bool {
			return textOf(row, model.ColStatus) == StatusActive
		})
	}
	stats.TotalTransactions = uniqueCount(transactions, model.ColTransactionID, nil)

	if hasColumns(transactions, model.ColAmount) {
		for _, row := range transactions.Rows {
			if amount, ok := floatOf(row, model.ColAmount); ok {
				stats.TotalAmount = stats.TotalAmount.Add(decimal.NewFromFloat(amount))
			}
		}
	}
	stats.TotalAmountText = FormatMoney(stats.TotalAmount)

	return stats
}

// MembershipSplit is the has/no membership split and the tier distribution
type MembershipSplit struct {
	Available         bool    `json:"available"`
	WithMembership    int     `json:"with_membership"`
	WithoutMembership int     `json:"without_membership"`
	Tiers             []Count `json:"tiers"`
}

// MembershipKPIs pairs each client with its first membership. Clients whose
// tier is "No Membership", or who have no membership at all, count as
// without membership. A client missing from the memberships table is
// therefore never counted as a member, even though its joined tier is empty
// rather than "No Membership".
func MembershipKPIs(clients, memberships *model.Table) MembershipSplit {
	split := MembershipSplit{Tiers: []Count{}}
	if !hasColumns(clients, model.ColClientID) {
		return split
	}
	split.Available = true

	first := firstByClient(memberships)
	withTier := hasColumns(memberships, model.ColTier)
	for _, row := range clients.Rows {
		id, ok := clientIDOf(row)
		membership, found := first[id]
		if !ok || !found || !withTier {
			split.WithoutMembership++
			continue
		}
		if tier := textOf(membership, model.ColTier); tier == "" || tier == NoMembership {
			split.WithoutMembership++
			continue
		}
		split.WithMembership++
	}

	if withTier {
		tally := make(map[string]int)
		for _, row := range memberships.Rows {
			if tier := textOf(row, model.ColTier); tier != "" {
				tally[tier]++
			}
		}
		for tier, n := range tally {
			split.Tiers = append(split.Tiers, Count{Label: tier, Count: n})
		}
		sortCounts(split.Tiers, tierLess)
	}

	return split
}

// MonthlyCount holds the new clients and memberships of one month
type MonthlyCount struct {
	Month          time.Time `json:"month"`
	NewClients     int       `json:"new_clients"`
	NewMemberships int       `json:"new_memberships"`
}

// Trends is the month by month growth over a date range
type Trends struct {
	Available bool           `json:"available"`
	From      time.Time      `json:"from"`
	To        time.Time      `json:"to"`
	Months    []MonthlyCount `json:"months"`
}

// TemporalTrends buckets client sign-ups (date_joined) and membership starts
// (start_date) by month between from and to, both days inclusive. Months
// without activity are present with zero counts.
func TemporalTrends(clients, memberships *model.Table, from, to time.Time) Trends {
	from, to = from.UTC(), to.UTC()
	trends := Trends{From: from, To: to, Months: []MonthlyCount{}}
	withClients := hasColumns(clients, model.ColDateJoined)
	withMemberships := hasColumns(memberships, model.ColStartDate)
	trends.Available = withClients || withMemberships
	if !trends.Available || to.Before(from) {
		return trends
	}

	index := make(map[time.Time]int)
	last := now.New(to).BeginningOfMonth()
	for m := now.New(from).BeginningOfMonth(); !m.After(last); m = m.AddDate(0, 1, 0) {
		index[m] = len(trends.Months)
		trends.Months = append(trends.Months, MonthlyCount{Month: m})
	}

	bucket := func(t *model.Table, col string, add func(*MonthlyCount)) {
		for _, row := range t.Rows {
			ts, ok := timeOf(row, col)
			if !ok || !inWindow(ts, from, to) {
				continue
			}
			if i, ok := index[now.New(ts).BeginningOfMonth()]; ok {
				add(&trends.Months[i])
			}
		}
	}
	if withClients {
		bucket(clients, model.ColDateJoined, func(m *MonthlyCount) { m.NewClients++ })
	}
	if withMemberships {
		bucket(memberships, model.ColStartDate, func(m *MonthlyCount) { m.NewMemberships++ })
	}

	return trends
}

// MonthlyStats are the sign-ups and membership starts of one calendar month
type MonthlyStats struct {
	Year        int        `json:"year"`
	Month       time.Month `json:"month"`
	Label       string     `json:"label"`
	Signups     int        `json:"signups"`
	Memberships int        `json:"memberships"`
}

// MonthlyStatistics counts clients that joined and memberships that started
// in the given month
func MonthlyStatistics(clients, memberships *model.Table, year int, month time.Month) (MonthlyStats, error) {
	if month < time.January || month > time.December {
		return MonthlyStats{}, fmt.Errorf("month must be between 1 and 12, got %d", month)
	}

	stats := MonthlyStats{
		Year:  year,
		Month: month,
		Label: fmt.Sprintf("%s %d", month, year),
	}

	inMonth := func(t *model.Table, col string) int {
		if !hasColumns(t, col) {
			return 0
		}
		n := 0
		for _, row := range t.Rows {
			ts, ok := timeOf(row, col)
			if ok && ts.Year() == year && ts.Month() == month {
				n++
			}
		}
		return n
	}
	stats.Signups = inMonth(clients, model.ColDateJoined)
	stats.Memberships = inMonth(memberships, model.ColStartDate)

	return stats, nil
}
