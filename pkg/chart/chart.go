// pkg/chart/chart.go
package chart

import (
	"encoding/json"
	"errors"
	"fmt"

	quickchartgo "github.com/henomis/quickchart-go"
	"go.uber.org/zap"
)

// Brand colours
const (
	BrandColor  = "#BED739"
	AccentColor = "#2E8B57"
	ClientColor = "#1f77b4"
	MemberColor = "#ff7f0e"
	NeutralFill = "#ffffff"
)

// Config is a Chart.js chart definition
type Config struct {
	Type    string                 `json:"type"`
	Data    Data                   `json:"data"`
	Options map[string]interface{} `json:"options,omitempty"`
}

// Data holds the labels and datasets of a chart
type Data struct {
	Labels   []interface{} `json:"labels,omitempty"`
	Datasets []Dataset     `json:"datasets"`
}

// Dataset is one series
type Dataset struct {
	Label           string        `json:"label"`
	Data            []interface{} `json:"data"`
	BackgroundColor interface{}   `json:"backgroundColor,omitempty"`
	BorderColor     string        `json:"borderColor,omitempty"`
	Fill            bool          `json:"fill"`
	LineTension     float32       `json:"lineTension,omitempty"`
}

// Point is an x/y pair for scatter charts
type Point struct {
	X string  `json:"x"`
	Y float64 `json:"y"`
}

// ErrEmptyChart is returned when a chart has no series to draw
var ErrEmptyChart = errors.New("chart has no data")

// Render returns the QuickChart image URL of a chart
func Render(cfg Config) (string, error) {
	if len(cfg.Data.Datasets) == 0 {
		return "", ErrEmptyChart
	}

	bytes, err := json.Marshal(cfg)
	if err != nil {
		zap.L().Error("Failed to marshal chart config", zap.String("type", cfg.Type), zap.Error(err))
		return "", fmt.Errorf("failed to marshal chart config: %w", err)
	}

	qc := quickchartgo.New()
	qc.Config = string(bytes)
	url, err := qc.GetUrl()
	if err != nil {
		zap.L().Error("Failed to get chart url from quickchart", zap.String("type", cfg.Type), zap.Error(err))
		return "", fmt.Errorf("failed to get chart url from quickchart: %w", err)
	}
	return url, nil
}

func title(text string) map[string]interface{} {
	return map[string]interface{}{
		"title": map[string]interface{}{"display": true, "text": text},
	}
}
