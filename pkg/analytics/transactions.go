// pkg/analytics/transactions.go
package analytics

import (
	"sort"
	"time"

	"github.com/jinzhu/now"
	"github.com/shopspring/decimal"

	"github.com/David-Botos/customer-data-platform/pkg/model"
)

// DefaultTopSpenders is the list length when none is requested
const DefaultTopSpenders = 5

// Spender is one client's total spending in a window
type Spender struct {
	ClientID  int64           `json:"client_id"`
	Name      string          `json:"name"`
	Total     decimal.Decimal `json:"total"`
	TotalText string          `json:"total_text"`
}

// Spenders ranks clients by spending
type Spenders struct {
	Available bool      `json:"available"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Top       []Spender `json:"top"`
}

// TopSpenders sums amounts per client between start and end (whole days),
// names each client from its first client row and keeps the n largest.
// Clients without a client row are left out.
func TopSpenders(clients, transactions *model.Table, start, end time.Time, n int) Spenders {
	if n <= 0 {
		n = DefaultTopSpenders
	}
	out := Spenders{Start: start, End: end, Top: []Spender{}}
	if !hasColumns(transactions, model.ColClientID, model.ColAmount, model.ColDate) ||
		!hasColumns(clients, model.ColClientID) {
		return out
	}
	out.Available = true

	totals := make(map[int64]decimal.Decimal)
	for _, row := range transactions.Rows {
		date, ok := timeOf(row, model.ColDate)
		if !ok || !inWindow(date, start, end) {
			continue
		}
		id, ok := clientIDOf(row)
		if !ok {
			continue
		}
		amount, ok := floatOf(row, model.ColAmount)
		if !ok {
			continue
		}
		totals[id] = totals[id].Add(decimal.NewFromFloat(amount))
	}

	first := firstByClient(clients)
	for id, total := range totals {
		client, found := first[id]
		if !found {
			continue
		}
		out.Top = append(out.Top, Spender{
			ClientID:  id,
			Name:      displayName(client),
			Total:     total,
			TotalText: FormatMoney(total),
		})
	}
	sort.Slice(out.Top, func(i, j int) bool {
		if c := out.Top[i].Total.Cmp(out.Top[j].Total); c != 0 {
			return c > 0
		}
		return out.Top[i].ClientID < out.Top[j].ClientID
	})
	if len(out.Top) > n {
		out.Top = out.Top[:n]
	}

	return out
}

// ScatterPoint is one transaction of the scatter plot
type ScatterPoint struct {
	Date          time.Time `json:"date"`
	Amount        float64   `json:"amount"`
	TransactionID string    `json:"transaction_id"`
	ClientID      int64     `json:"client_id"`
}

// Scatter holds the transactions of a window
type Scatter struct {
	Available bool           `json:"available"`
	Start     time.Time      `json:"start"`
	End       time.Time      `json:"end"`
	Points    []ScatterPoint `json:"points"`
}

// TransactionScatter lists the transactions between start and end (whole
// days) in date order
func TransactionScatter(transactions *model.Table, start, end time.Time) Scatter {
	out := Scatter{Start: start, End: end, Points: []ScatterPoint{}}
	if !hasColumns(transactions, model.ColDate, model.ColAmount) {
		return out
	}
	out.Available = true

	for _, row := range transactions.Rows {
		date, ok := timeOf(row, model.ColDate)
		if !ok || !inWindow(date, start, end) {
			continue
		}
		amount, ok := floatOf(row, model.ColAmount)
		if !ok {
			continue
		}
		id, _ := clientIDOf(row)
		out.Points = append(out.Points, ScatterPoint{
			Date:          date,
			Amount:        amount,
			TransactionID: textOf(row, model.ColTransactionID),
			ClientID:      id,
		})
	}
	sort.SliceStable(out.Points, func(i, j int) bool {
		return out.Points[i].Date.Before(out.Points[j].Date)
	})

	return out
}

// DailyTotal is the amount transacted on one calendar day
type DailyTotal struct {
	Day   time.Time       `json:"day"`
	Total decimal.Decimal `json:"total"`
}

// Daily is the per day series of transaction amounts
type Daily struct {
	Available bool         `json:"available"`
	Days      []DailyTotal `json:"days"`
}

// DailyTotals sums amounts per calendar day (UTC), oldest day first
func DailyTotals(transactions *model.Table) Daily {
	out := Daily{Days: []DailyTotal{}}
	if !hasColumns(transactions, model.ColDate, model.ColAmount) {
		return out
	}
	out.Available = true

	totals := make(map[time.Time]decimal.Decimal)
	for _, row := range transactions.Rows {
		date, ok := timeOf(row, model.ColDate)
		if !ok {
			continue
		}
		amount, ok := floatOf(row, model.ColAmount)
		if !ok {
			continue
		}
		day := now.New(date).BeginningOfDay()
		totals[day] = totals[day].Add(decimal.NewFromFloat(amount))
	}

	for day, total := range totals {
		out.Days = append(out.Days, DailyTotal{Day: day, Total: total})
	}
	sort.Slice(out.Days, func(i, j int) bool {
		return out.Days[i].Day.Before(out.Days[j].Day)
	})

	return out
}
