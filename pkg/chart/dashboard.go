// pkg/chart/dashboard.go
package chart

import (
	"time"

	"github.com/David-Botos/customer-data-platform/pkg/analytics"
)

const dayLayout = "2006-01-02"

// MembershipDoughnut shows clients with and without a membership
func MembershipDoughnut(split analytics.MembershipSplit) Config {
	return Config{
		Type: "doughnut",
		Data: Data{
			Labels: []interface{}{"Has Membership", "No Membership"},
			Datasets: []Dataset{{
				Label:           "Membership Distribution",
				Data:            []interface{}{split.WithMembership, split.WithoutMembership},
				BackgroundColor: []string{BrandColor, NeutralFill},
			}},
		},
		Options: title("Membership Distribution"),
	}
}

// TierBars shows the number of memberships per tier
func TierBars(split analytics.MembershipSplit) Config {
	labels := make([]interface{}, 0, len(split.Tiers))
	data := make([]interface{}, 0, len(split.Tiers))
	for _, tier := range split.Tiers {
		labels = append(labels, tier.Label)
		data = append(data, tier.Count)
	}
	return Config{
		Type: "bar",
		Data: Data{
			Labels:   labels,
			Datasets: []Dataset{{Label: "Memberships", Data: data, BackgroundColor: BrandColor}},
		},
		Options: title("Membership Tier Distribution"),
	}
}

// TrendLines shows new clients and new memberships per month
func TrendLines(trends analytics.Trends) Config {
	labels := make([]interface{}, 0, len(trends.Months))
	clients := make([]interface{}, 0, len(trends.Months))
	memberships := make([]interface{}, 0, len(trends.Months))
	for _, m := range trends.Months {
		labels = append(labels, m.Month.Format("2006-01"))
		clients = append(clients, m.NewClients)
		memberships = append(memberships, m.NewMemberships)
	}
	return Config{
		Type: "line",
		Data: Data{
			Labels: labels,
			Datasets: []Dataset{
				{Label: "New Clients", Data: clients, BorderColor: ClientColor, LineTension: 0.1},
				{Label: "New Memberships", Data: memberships, BorderColor: MemberColor, LineTension: 0.1},
			},
		},
		Options: title("New Clients/Memberships Over Time"),
	}
}

// AgeHistogram shows clients per age group
func AgeHistogram(demo analytics.Demographics) Config {
	labels := make([]interface{}, 0, len(demo.Groups))
	data := make([]interface{}, 0, len(demo.Groups))
	for _, g := range demo.Groups {
		labels = append(labels, g.Label)
		data = append(data, g.Count)
	}
	return Config{
		Type: "bar",
		Data: Data{
			Labels:   labels,
			Datasets: []Dataset{{Label: "Clients", Data: data, BackgroundColor: BrandColor}},
		},
		Options: title("Age Group Distribution"),
	}
}

// AverageSpendingBars shows the mean amount per tier
func AverageSpendingBars(spending analytics.Spending) Config {
	labels := make([]interface{}, 0, len(spending.Tiers))
	data := make([]interface{}, 0, len(spending.Tiers))
	for _, t := range spending.Tiers {
		labels = append(labels, t.Tier)
		data = append(data, t.Mean)
	}
	return Config{
		Type: "bar",
		Data: Data{
			Labels:   labels,
			Datasets: []Dataset{{Label: "Average Amount Spent ($)", Data: data, BackgroundColor: BrandColor}},
		},
		Options: title("Average Spending by Tier"),
	}
}

// DailyTotalsLine shows the amount transacted per day
func DailyTotalsLine(daily analytics.Daily) Config {
	labels := make([]interface{}, 0, len(daily.Days))
	data := make([]interface{}, 0, len(daily.Days))
	for _, d := range daily.Days {
		labels = append(labels, d.Day.Format(dayLayout))
		data = append(data, d.Total.InexactFloat64())
	}
	return Config{
		Type: "line",
		Data: Data{
			Labels:   labels,
			Datasets: []Dataset{{Label: "Total Amount ($)", Data: data, BorderColor: BrandColor}},
		},
		Options: title("Total Transaction Amount (Daily)"),
	}
}

// TransactionScatterPlot shows each transaction's amount over time
func TransactionScatterPlot(scatter analytics.Scatter) Config {
	data := make([]interface{}, 0, len(scatter.Points))
	for _, p := range scatter.Points {
		data = append(data, Point{X: p.Date.Format(time.RFC3339), Y: p.Amount})
	}
	return Config{
		Type: "scatter",
		Data: Data{
			Datasets: []Dataset{{Label: "Amount ($)", Data: data, BackgroundColor: BrandColor, BorderColor: AccentColor}},
		},
		Options: map[string]interface{}{
			"title": map[string]interface{}{"display": true, "text": "Transaction Scatter Plot"},
			"scales": map[string]interface{}{
				"xAxes": []map[string]interface{}{{"type": "time"}},
			},
		},
	}
}
