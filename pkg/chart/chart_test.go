package chart

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/David-Botos/customer-data-platform/pkg/analytics"
)

func TestMembershipDoughnut(t *testing.T) {
	cfg := MembershipDoughnut(analytics.MembershipSplit{WithMembership: 3, WithoutMembership: 1})

	assert.Equal(t, "doughnut", cfg.Type)
	require.Len(t, cfg.Data.Datasets, 1)
	assert.Equal(t, []interface{}{3, 1}, cfg.Data.Datasets[0].Data)
	assert.Equal(t, []string{BrandColor, NeutralFill}, cfg.Data.Datasets[0].BackgroundColor)
}

func TestTrendLines(t *testing.T) {
	cfg := TrendLines(analytics.Trends{Months: []analytics.MonthlyCount{
		{Month: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), NewClients: 2, NewMemberships: 1},
		{Month: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
	}})

	assert.Equal(t, []interface{}{"2024-01", "2024-02"}, cfg.Data.Labels)
	require.Len(t, cfg.Data.Datasets, 2)
	assert.Equal(t, []interface{}{2, 0}, cfg.Data.Datasets[0].Data)
	assert.Equal(t, []interface{}{1, 0}, cfg.Data.Datasets[1].Data)
}

func TestDailyTotalsLine(t *testing.T) {
	cfg := DailyTotalsLine(analytics.Daily{Days: []analytics.DailyTotal{
		{Day: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), Total: decimal.RequireFromString("150.5")},
	}})

	assert.Equal(t, []interface{}{"2024-05-01"}, cfg.Data.Labels)
	assert.Equal(t, []interface{}{150.5}, cfg.Data.Datasets[0].Data)
}

func TestTransactionScatterPlotJSON(t *testing.T) {
	cfg := TransactionScatterPlot(analytics.Scatter{Points: []analytics.ScatterPoint{
		{Date: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), Amount: 12.5},
	}})

	raw, err := json.Marshal(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `{"x":"2024-05-01T09:00:00Z","y":12.5}`)
	assert.NotContains(t, string(raw), `"labels"`)
}

func TestRender(t *testing.T) {
	url, err := Render(AgeHistogram(analytics.Demographics{Groups: []analytics.Count{{Label: "19-25", Count: 4}}}))
	require.NoError(t, err)
	assert.Contains(t, url, "quickchart.io")
}

func TestRenderEmpty(t *testing.T) {
	_, err := Render(Config{Type: "bar"})
	assert.ErrorIs(t, err, ErrEmptyChart)
}
