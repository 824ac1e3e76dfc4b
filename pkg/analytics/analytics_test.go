package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/David-Botos/customer-data-platform/pkg/model"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func fixtureClients() *model.Table {
	return model.NewTable(model.ClientsTable, []model.Record{
		{"client_id": int64(1), "first_name": "Ada", "last_name": "Lovelace", "country_code": "FRA",
			"birthdate": day(1990, time.January, 20), "age": 34, "date_joined": day(2024, time.January, 5)},
		{"client_id": int64(2), "first_name": "Alan", "last_name": "Turing", "country_code": "FRA",
			"birthdate": day(2000, time.February, 29), "age": 24, "date_joined": day(2024, time.March, 10)},
		{"client_id": int64(3), "first_name": "Grace", "last_name": "Hopper", "country_code": "DEU",
			"birthdate": day(1960, time.January, 15), "age": 65, "date_joined": day(2024, time.March, 31)},
		{"client_id": int64(4), "first_name": "Edsger", "last_name": "Dijkstra", "country_code": nil,
			"birthdate": nil, "age": 0, "date_joined": nil},
	})
}

func fixtureMemberships() *model.Table {
	return model.NewTable(model.MembershipsTable, []model.Record{
		{"client_id": int64(1), "membership_id": "M1", "tier": "Gold", "status": "ACTIVE", "start_date": day(2024, time.January, 5)},
		{"client_id": int64(2), "membership_id": "M2", "tier": "Bronze", "status": "EXPIRED", "start_date": day(2024, time.March, 12)},
		{"client_id": int64(3), "membership_id": "M3", "tier": "No Membership", "status": "ACTIVE", "start_date": nil},
		{"client_id": int64(1), "membership_id": "M4", "tier": "Silver", "status": "ACTIVE", "start_date": day(2024, time.June, 1)},
	})
}

func fixtureMerged() *model.Table {
	clients := firstByClient(fixtureClients())
	var rows []model.Record
	for _, m := range fixtureMemberships().Rows {
		id, _ := clientIDOf(m)
		row := model.Record{}
		for k, v := range clients[id] {
			row[k] = v
		}
		for k, v := range m {
			row[k] = v
		}
		rows = append(rows, row)
	}
	return model.NewTable(model.MergedTable, rows)
}

func fixtureTransactions() *model.Table {
	return model.NewTable(model.TransactionsTable, []model.Record{
		{"transaction_id": "T1", "client_id": int64(1), "amount": 100.0, "date": time.Date(2024, time.May, 1, 9, 0, 0, 0, time.UTC)},
		{"transaction_id": "T2", "client_id": int64(1), "amount": 50.5, "date": time.Date(2024, time.May, 1, 18, 30, 0, 0, time.UTC)},
		{"transaction_id": "T3", "client_id": int64(2), "amount": 1200.0, "date": time.Date(2024, time.May, 3, 0, 0, 0, 0, time.UTC)},
		{"transaction_id": "T4", "client_id": int64(3), "amount": 10.0, "date": time.Date(2023, time.May, 3, 0, 0, 0, 0, time.UTC)},
		{"transaction_id": "T5", "client_id": int64(9), "amount": 5000.0, "date": time.Date(2024, time.May, 2, 0, 0, 0, 0, time.UTC)},
	})
}

type fakeNames map[string]string

func (f fakeNames) Name(code string) (string, bool) {
	n, ok := f[code]
	return n, ok
}

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "$0.00"},
		{"1234.5", "$1,234.50"},
		{"1234567.891", "$1,234,567.89"},
		{"0.999", "$1.00"},
		{"-42.1", "-$42.10"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatMoney(decimal.RequireFromString(tt.in)))
		})
	}
}

func TestQuickStatistics(t *testing.T) {
	stats := QuickStatistics(fixtureClients(), fixtureMerged(), fixtureTransactions())

	assert.True(t, stats.Available)
	assert.Equal(t, 4, stats.TotalClients)
	// M1, M3 and M4 are active
	assert.Equal(t, 3, stats.ActiveMemberships)
	assert.Equal(t, 5, stats.TotalTransactions)
	assert.True(t, decimal.RequireFromString("6360.5").Equal(stats.TotalAmount))
	assert.Equal(t, "$6,360.50", stats.TotalAmountText)
}

func TestQuickStatisticsMissingColumns(t *testing.T) {
	empty := model.NewTable(model.TransactionsTable, nil)
	stats := QuickStatistics(model.NewTable(model.ClientsTable, nil), nil, empty)

	assert.False(t, stats.Available)
	assert.Zero(t, stats.TotalClients)
	assert.Equal(t, "$0.00", stats.TotalAmountText)
}

func TestMembershipKPIs(t *testing.T) {
	split := MembershipKPIs(fixtureClients(), fixtureMemberships())

	assert.True(t, split.Available)
	// Client 1 (Gold first) and 2 (Bronze) have one; 3 is "No Membership"; 4 has none
	assert.Equal(t, 2, split.WithMembership)
	assert.Equal(t, 2, split.WithoutMembership)
	assert.Equal(t, []Count{
		{Label: "No Membership", Count: 1},
		{Label: "Bronze", Count: 1},
		{Label: "Silver", Count: 1},
		{Label: "Gold", Count: 1},
	}, split.Tiers)
}

func TestTemporalTrends(t *testing.T) {
	trends := TemporalTrends(fixtureClients(), fixtureMemberships(), day(2024, time.January, 1), day(2024, time.March, 31))

	require.True(t, trends.Available)
	require.Len(t, trends.Months, 3)
	assert.Equal(t, day(2024, time.January, 1), trends.Months[0].Month)
	assert.Equal(t, MonthlyCount{Month: day(2024, time.January, 1), NewClients: 1, NewMemberships: 1}, trends.Months[0])
	assert.Equal(t, MonthlyCount{Month: day(2024, time.February, 1)}, trends.Months[1])
	// Mar 31 is inside the window because the last day is inclusive
	assert.Equal(t, MonthlyCount{Month: day(2024, time.March, 1), NewClients: 2, NewMemberships: 1}, trends.Months[2])
}

func TestTemporalTrendsDefaultsSpanThirteenMonths(t *testing.T) {
	trends := TemporalTrends(fixtureClients(), fixtureMemberships(), DefaultTrendsFrom, DefaultTrendsTo)
	assert.Len(t, trends.Months, 13)
}

func TestTemporalTrendsUnavailable(t *testing.T) {
	trends := TemporalTrends(model.NewTable(model.ClientsTable, nil), nil, DefaultTrendsFrom, DefaultTrendsTo)
	assert.False(t, trends.Available)
	assert.Empty(t, trends.Months)
}

func TestMonthlyStatistics(t *testing.T) {
	stats, err := MonthlyStatistics(fixtureClients(), fixtureMemberships(), 2024, time.March)
	require.NoError(t, err)

	assert.Equal(t, "March 2024", stats.Label)
	assert.Equal(t, 2, stats.Signups)
	assert.Equal(t, 1, stats.Memberships)

	_, err = MonthlyStatistics(fixtureClients(), fixtureMemberships(), 2024, 13)
	assert.Error(t, err)
}

func TestGlobalDistribution(t *testing.T) {
	dist := GlobalDistribution(fixtureClients(), fakeNames{"FRA": "France"})

	assert.True(t, dist.Available)
	assert.Equal(t, 1, dist.Unmatched)
	assert.Equal(t, []CountryCount{
		{Code: "FRA", Name: "France", Count: 2},
		{Code: "DEU", Name: UnknownCountry, Count: 1},
	}, dist.Countries)
}

func TestGlobalDistributionWithoutCountryCode(t *testing.T) {
	clients := model.NewTable(model.ClientsTable, []model.Record{{"client_id": int64(1)}})
	dist := GlobalDistribution(clients, nil)
	assert.False(t, dist.Available)
	assert.Empty(t, dist.Countries)
}

func TestDemographicInsights(t *testing.T) {
	demo := DemographicInsights(fixtureClients())

	require.True(t, demo.Available)
	assert.Equal(t, 4, demo.Clients)
	counts := map[string]int{}
	for _, g := range demo.Groups {
		counts[g.Label] = g.Count
	}
	// Age 0 sits outside the first bin
	assert.Equal(t, 0, counts["0-18"])
	assert.Equal(t, 1, counts["19-25"])
	assert.Equal(t, 1, counts["26-35"])
	assert.Equal(t, 1, counts["56-65"])
	assert.Equal(t, 0, counts["65+"])

	assert.InDelta(t, 30.75, demo.Stats.Mean, 1e-9)
	assert.InDelta(t, 29.0, demo.Stats.Median, 1e-9)
	assert.Equal(t, 0, demo.Stats.Min)
	assert.Equal(t, 65, demo.Stats.Max)
}

func TestDemographicGroupOrder(t *testing.T) {
	demo := DemographicInsights(model.NewTable(model.ClientsTable, nil))
	labels := make([]string, 0, len(demo.Groups))
	for _, g := range demo.Groups {
		labels = append(labels, g.Label)
	}
	assert.Equal(t, []string{"0-18", "19-25", "26-35", "36-45", "46-55", "56-65", "65+"}, labels)
	assert.False(t, demo.Available)
}

func TestUpcomingBirthdays(t *testing.T) {
	today := time.Date(2025, time.January, 15, 17, 0, 0, 0, time.UTC)
	out := UpcomingBirthdays(fixtureClients(), today)

	require.True(t, out.Available)
	require.Len(t, out.Upcoming, 3)

	assert.Equal(t, int64(3), out.Upcoming[0].ClientID)
	assert.Equal(t, 0, out.Upcoming[0].DaysUntil)
	assert.True(t, out.Upcoming[0].Today)
	assert.Equal(t, "Grace Hopper", out.Upcoming[0].Name)

	assert.Equal(t, int64(1), out.Upcoming[1].ClientID)
	assert.Equal(t, 5, out.Upcoming[1].DaysUntil)

	// Feb 29 rolls to Mar 1 in 2025
	assert.Equal(t, int64(2), out.Upcoming[2].ClientID)
	assert.Equal(t, 45, out.Upcoming[2].DaysUntil)
}

func TestNextBirthdayWrapsToNextYear(t *testing.T) {
	next := nextBirthday(day(1990, time.January, 1), day(2025, time.January, 2))
	assert.Equal(t, day(2026, time.January, 1), next)

	leap := nextBirthday(day(2000, time.February, 29), day(2028, time.January, 1))
	assert.Equal(t, day(2028, time.February, 29), leap)
}

func TestRetention(t *testing.T) {
	stats := Retention(fixtureMemberships(), fixtureMerged())

	require.True(t, stats.Available)
	assert.Equal(t, 3, stats.Active)
	assert.Equal(t, 4, stats.Total)
	assert.InDelta(t, 75.0, stats.Rate, 1e-9)
	assert.Equal(t, []TierRetention{
		{Tier: "No Membership", Rate: 100},
		{Tier: "Bronze", Rate: 0},
		{Tier: "Silver", Rate: 100},
		{Tier: "Gold", Rate: 100},
	}, stats.ByTier)
}

func TestRetentionWithoutMemberships(t *testing.T) {
	stats := Retention(model.NewTable(model.MembershipsTable, nil), nil)
	assert.False(t, stats.Available)
	assert.Zero(t, stats.Rate)
}

func TestMembershipSpending(t *testing.T) {
	transactions := model.NewTable(model.TransactionsTable, []model.Record{
		{"client_id": int64(1), "amount": 10.0},
		{"client_id": int64(1), "amount": 20.0},
		{"client_id": int64(1), "amount": 30.0},
		{"client_id": int64(1), "amount": 40.0},
		{"client_id": int64(2), "amount": 5.0},
		{"client_id": int64(9), "amount": 100.0},
	})
	out := MembershipSpending(fixtureMemberships(), transactions)

	require.True(t, out.Available)
	require.Len(t, out.Tiers, 2)

	assert.Equal(t, "Bronze", out.Tiers[0].Tier)
	assert.Equal(t, 1, out.Tiers[0].Count)
	assert.Equal(t, 5.0, out.Tiers[0].Median)

	gold := out.Tiers[1]
	assert.Equal(t, "Gold", gold.Tier)
	assert.Equal(t, BoxStats{Count: 4, Min: 10, Q1: 17.5, Median: 25, Q3: 32.5, Max: 40, Mean: 25}, gold.BoxStats)
}

func TestMembershipSpendingMissingTier(t *testing.T) {
	memberships := model.NewTable(model.MembershipsTable, []model.Record{{"client_id": int64(1)}})
	out := MembershipSpending(memberships, fixtureTransactions())
	assert.False(t, out.Available)
}

func TestTopSpenders(t *testing.T) {
	out := TopSpenders(fixtureClients(), fixtureTransactions(), day(2024, time.May, 1), day(2024, time.May, 3), 0)

	require.True(t, out.Available)
	// Client 9 has no client row; T4 is outside the window
	require.Len(t, out.Top, 2)
	assert.Equal(t, int64(2), out.Top[0].ClientID)
	assert.Equal(t, "Alan Turing", out.Top[0].Name)
	assert.Equal(t, "$1,200.00", out.Top[0].TotalText)
	assert.Equal(t, int64(1), out.Top[1].ClientID)
	assert.True(t, decimal.RequireFromString("150.5").Equal(out.Top[1].Total))
}

func TestTopSpendersLimit(t *testing.T) {
	out := TopSpenders(fixtureClients(), fixtureTransactions(), day(2020, time.January, 1), day(2025, time.January, 1), 1)
	require.Len(t, out.Top, 1)
	assert.Equal(t, int64(2), out.Top[0].ClientID)
}

func TestTransactionScatter(t *testing.T) {
	out := TransactionScatter(fixtureTransactions(), day(2024, time.May, 1), day(2024, time.May, 2))

	require.True(t, out.Available)
	ids := make([]string, 0, len(out.Points))
	for _, p := range out.Points {
		ids = append(ids, p.TransactionID)
	}
	assert.Equal(t, []string{"T1", "T2", "T5"}, ids)
	assert.Equal(t, int64(9), out.Points[2].ClientID)
}

func TestDailyTotals(t *testing.T) {
	out := DailyTotals(fixtureTransactions())

	require.True(t, out.Available)
	require.Len(t, out.Days, 4)
	assert.Equal(t, day(2023, time.May, 3), out.Days[0].Day)
	assert.Equal(t, day(2024, time.May, 1), out.Days[1].Day)
	assert.True(t, decimal.RequireFromString("150.5").Equal(out.Days[1].Total))
}

func TestNonFiniteAmountsAreIgnored(t *testing.T) {
	transactions := fixtureTransactions()
	transactions.Rows = append(transactions.Rows,
		model.Record{"transaction_id": "T6", "client_id": int64(1), "amount": math.Inf(1), "date": time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC)},
		model.Record{"transaction_id": "T7", "client_id": int64(2), "amount": math.Inf(-1), "date": time.Date(2024, time.May, 3, 10, 0, 0, 0, time.UTC)},
		model.Record{"transaction_id": "T8", "client_id": int64(2), "amount": math.NaN(), "date": time.Date(2024, time.May, 3, 11, 0, 0, 0, time.UTC)},
	)

	var (
		stats    QuickStats
		spenders Spenders
		daily    Daily
		scatter  Scatter
	)
	require.NotPanics(t, func() {
		stats = QuickStatistics(fixtureClients(), fixtureMerged(), transactions)
		spenders = TopSpenders(fixtureClients(), transactions, day(2024, time.May, 1), day(2024, time.May, 3), 0)
		daily = DailyTotals(transactions)
		scatter = TransactionScatter(transactions, day(2024, time.May, 1), day(2024, time.May, 3))
	})

	assert.Equal(t, 8, stats.TotalTransactions)
	assert.True(t, decimal.RequireFromString("6360.5").Equal(stats.TotalAmount))

	require.Len(t, spenders.Top, 2)
	assert.True(t, decimal.RequireFromString("1200").Equal(spenders.Top[0].Total))
	assert.True(t, decimal.RequireFromString("150.5").Equal(spenders.Top[1].Total))

	require.Len(t, daily.Days, 4)
	assert.True(t, decimal.RequireFromString("150.5").Equal(daily.Days[1].Total))

	for _, p := range scatter.Points {
		assert.False(t, math.IsInf(p.Amount, 0) || math.IsNaN(p.Amount), p.TransactionID)
	}
}

func TestDefaultWindow(t *testing.T) {
	start, end := DefaultWindow(time.Date(2025, time.January, 15, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, day(2025, time.January, 15), end)
	assert.Equal(t, day(2024, time.January, 16), start)
}

func TestQuantileInterpolation(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	assert.InDelta(t, 1.75, quantile(sorted, 0.25), 1e-9)
	assert.InDelta(t, 2.5, quantile(sorted, 0.5), 1e-9)
	assert.Equal(t, 4.0, quantile(sorted, 1))
	assert.Equal(t, 7.0, quantile([]float64{7}, 0.5))
	assert.Zero(t, quantile(nil, 0.5))
}
