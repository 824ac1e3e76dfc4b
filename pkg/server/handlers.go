// pkg/server/handlers.go
package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/David-Botos/customer-data-platform/pkg/analytics"
	"github.com/David-Botos/customer-data-platform/pkg/chart"
	"github.com/David-Botos/customer-data-platform/pkg/chat"
	"github.com/David-Botos/customer-data-platform/pkg/connector"
	"github.com/David-Botos/customer-data-platform/pkg/export"
	"github.com/David-Botos/customer-data-platform/pkg/model"
	"github.com/David-Botos/customer-data-platform/pkg/snapshot"
)

const (
	dateLayout          = "2006-01-02"
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message" binding:"required"`
}

// Health reports that the process is up and which snapshot is loaded,
// without triggering a load
func (s *Server) Health(c *gin.Context) {
	now := s.clock()
	resp := gin.H{"status": "ok", "time": now.UTC()}
	if snap := s.source.Current(); snap != nil {
		resp["snapshot_id"] = snap.ID
		resp["snapshot_age_seconds"] = int64(snap.Age(now).Seconds())
	}
	c.JSON(http.StatusOK, resp)
}

// Overview returns quick stats, membership KPIs and temporal trends
func (s *Server) Overview(c *gin.Context) {
	from, err := dateParam(c, "from", analytics.DefaultTrendsFrom)
	if err != nil {
		badRequest(c, err)
		return
	}
	to, err := dateParam(c, "to", analytics.DefaultTrendsTo)
	if err != nil {
		badRequest(c, err)
		return
	}
	if from.After(to) {
		badRequest(c, errors.New("from must not be after to"))
		return
	}

	snap, ok := s.snapshot(c)
	if !ok {
		return
	}
	data := snap.Data

	split := analytics.MembershipKPIs(data.Clients, data.Memberships)
	trends := analytics.TemporalTrends(data.Clients, data.Memberships, from, to)

	c.JSON(http.StatusOK, gin.H{
		"snapshot_id": snap.ID,
		"quick_stats": analytics.QuickStatistics(data.Clients, data.Merged, data.Transactions),
		"memberships": split,
		"trends":      trends,
		"charts": s.charts(map[string]chart.Config{
			"membership_distribution": chart.MembershipDoughnut(split),
			"tiers":                   chart.TierBars(split),
			"trends":                  chart.TrendLines(trends),
		}),
	})
}

// Monthly returns signups and new memberships of one month, the current one
// by default
func (s *Server) Monthly(c *gin.Context) {
	today := s.clock()
	year, err := intParam(c, "year", today.Year())
	if err != nil {
		badRequest(c, err)
		return
	}
	month, err := intParam(c, "month", int(today.Month()))
	if err != nil {
		badRequest(c, err)
		return
	}

	snap, ok := s.snapshot(c)
	if !ok {
		return
	}

	stats, err := analytics.MonthlyStatistics(snap.Data.Clients, snap.Data.Memberships, year, time.Month(month))
	if err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Geographic returns the client count per country
func (s *Server) Geographic(c *gin.Context) {
	snap, ok := s.snapshot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"snapshot_id":  snap.ID,
		"distribution": analytics.GlobalDistribution(snap.Data.Clients, s.names),
	})
}

// Demographic returns upcoming birthdays and the age breakdown
func (s *Server) Demographic(c *gin.Context) {
	snap, ok := s.snapshot(c)
	if !ok {
		return
	}

	demo := analytics.DemographicInsights(snap.Data.Clients)
	c.JSON(http.StatusOK, gin.H{
		"snapshot_id": snap.ID,
		"birthdays":   analytics.UpcomingBirthdays(snap.Data.Clients, s.clock()),
		"insights":    demo,
		"charts": s.charts(map[string]chart.Config{
			"age_groups": chart.AgeHistogram(demo),
		}),
	})
}

// Membership returns retention and spending per tier
func (s *Server) Membership(c *gin.Context) {
	snap, ok := s.snapshot(c)
	if !ok {
		return
	}
	data := snap.Data

	spending := analytics.MembershipSpending(data.Memberships, data.Transactions)
	c.JSON(http.StatusOK, gin.H{
		"snapshot_id": snap.ID,
		"retention":   analytics.Retention(data.Memberships, data.Merged),
		"spending":    spending,
		"charts": s.charts(map[string]chart.Config{
			"average_spending": chart.AverageSpendingBars(spending),
		}),
	})
}

// Transactions returns top spenders, the scatter and daily totals. The
// window defaults to the last 365 days.
func (s *Server) Transactions(c *gin.Context) {
	defStart, defEnd := analytics.DefaultWindow(s.clock())
	start, err := dateParam(c, "start", defStart)
	if err != nil {
		badRequest(c, err)
		return
	}
	end, err := dateParam(c, "end", defEnd)
	if err != nil {
		badRequest(c, err)
		return
	}
	if start.After(end) {
		badRequest(c, errors.New("start must not be after end"))
		return
	}
	n, err := intParam(c, "n", analytics.DefaultTopSpenders)
	if err != nil {
		badRequest(c, err)
		return
	}
	if n <= 0 {
		badRequest(c, errors.New("n must be positive"))
		return
	}

	snap, ok := s.snapshot(c)
	if !ok {
		return
	}
	data := snap.Data

	scatter := analytics.TransactionScatter(data.Transactions, start, end)
	daily := analytics.DailyTotals(data.Transactions)
	c.JSON(http.StatusOK, gin.H{
		"snapshot_id":  snap.ID,
		"top_spenders": analytics.TopSpenders(data.Clients, data.Transactions, start, end, n),
		"scatter":      scatter,
		"daily":        daily,
		"charts": s.charts(map[string]chart.Config{
			"scatter": chart.TransactionScatterPlot(scatter),
			"daily":   chart.DailyTotalsLine(daily),
		}),
	})
}

// Chat forwards a message to the assistant
func (s *Server) Chat(c *gin.Context) {
	if s.assistant == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": chat.ErrDisabled.Error()})
		return
	}

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	reply, err := s.assistant.Ask(c.Request.Context(), req.SessionID, req.Message)
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		badRequest(c, err)
		return
	case err != nil:
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "assistant is unavailable"})
		return
	}
	c.JSON(http.StatusOK, reply)
}

// Export downloads one processed table as an XLSX workbook
func (s *Server) Export(c *gin.Context) {
	name := c.Param("table")

	snap, ok := s.snapshot(c)
	if !ok {
		return
	}

	table, found := snap.Data.TableByName(name)
	if !found || table == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown table %q", name)})
		return
	}

	body, err := s.exporter.Bytes(table)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export table"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(table.Name)))
	c.Data(http.StatusOK, export.ContentType, body)
}

// Diagnostics returns the diagnostics and run report of the current snapshot
func (s *Server) Diagnostics(c *gin.Context) {
	snap, ok := s.snapshot(c)
	if !ok {
		return
	}

	resp := gin.H{
		"snapshot_id": snap.ID,
		"loaded_at":   snap.LoadedAt,
		"diagnostics": diagnosticsOrEmpty(snap.Data.Diagnostics),
		"counts":      model.CountByKind(snap.Data.Diagnostics),
	}
	if snap.Metrics != nil {
		resp["report"] = snap.Metrics.GenerateReport()
		resp["metrics"] = snap.Metrics
	}
	c.JSON(http.StatusOK, resp)
}

// History returns diagnostics persisted by earlier runs, newest first
func (s *Server) History(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "diagnostics sink is not configured"})
		return
	}

	limit, err := intParam(c, "limit", defaultHistoryLimit)
	if err != nil {
		badRequest(c, err)
		return
	}
	if limit <= 0 || limit > maxHistoryLimit {
		badRequest(c, fmt.Errorf("limit must be between 1 and %d", maxHistoryLimit))
		return
	}

	rows, err := s.history.Recent(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "diagnostics history is unavailable"})
		return
	}
	if rows == nil {
		rows = []connector.StoredDiagnostic{}
	}
	c.JSON(http.StatusOK, gin.H{"diagnostics": rows})
}

// Refresh drops the cached snapshot so the next request reloads it
func (s *Server) Refresh(c *gin.Context) {
	s.source.Invalidate()
	s.logger.Info("Snapshot invalidated", zap.String("clientIP", c.ClientIP()))
	c.JSON(http.StatusAccepted, gin.H{"status": "invalidated"})
}

func (s *Server) snapshot(c *gin.Context) (*snapshot.Snapshot, bool) {
	snap, err := s.source.Get(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "dashboard data is unavailable"})
		return nil, false
	}
	return snap, true
}

// charts renders every config; a chart that cannot be drawn is left out
func (s *Server) charts(configs map[string]chart.Config) map[string]string {
	urls := make(map[string]string, len(configs))
	for name, cfg := range configs {
		url, err := chart.Render(cfg)
		if err != nil {
			s.logger.Debug("Chart skipped", zap.String("chart", name), zap.Error(err))
			continue
		}
		urls[name] = url
	}
	return urls
}

func diagnosticsOrEmpty(diags []model.Diagnostic) []model.Diagnostic {
	if diags == nil {
		return []model.Diagnostic{}
	}
	return diags
}

func dateParam(c *gin.Context, key string, def time.Time) (time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q: expected YYYY-MM-DD", key, raw)
	}
	return t, nil
}

func intParam(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: expected an integer", key, raw)
	}
	return n, nil
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
