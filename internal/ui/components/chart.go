// Package components provides reusable rendering pieces for the terminal views.
package components

import (
	"fmt"

	"github.com/guptarohit/asciigraph"
	"github.com/samber/lo"

	"github.com/j-veylop/gemini-quota-switch/internal/models"
)

// NoDataText is rendered when a chart has nothing to plot.
const NoDataText = "No data available"

const (
	minChartWidth  = 20
	minChartHeight = 3
)

// RenderHistory plots remaining percentages on a fixed 0-100 axis. A positive
// threshold is drawn as a flat second series.
func RenderHistory(points []models.HistoryPoint, threshold float64, width, height int, caption string) string {
	if len(points) == 0 {
		return NoDataText
	}

	width = max(width, minChartWidth)
	height = max(height, minChartHeight)

	remaining := lo.Map(points, func(p models.HistoryPoint, _ int) float64 {
		return p.RemainingPercent
	})

	series := [][]float64{remaining}
	if threshold > 0 {
		series = append(series, lo.Times(len(remaining), func(int) float64 { return threshold }))
	}

	return asciigraph.PlotMany(series,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.LowerBound(0),
		asciigraph.UpperBound(100),
		asciigraph.Precision(0),
		asciigraph.Caption(caption),
	)
}

// HistoryCaption describes the charted window.
func HistoryCaption(profileID, family string, points []models.HistoryPoint) string {
	if len(points) == 0 {
		return fmt.Sprintf("%s %s", profileID, family)
	}
	first, last := points[0].Timestamp, points[len(points)-1].Timestamp
	return fmt.Sprintf("%s %s remaining %% (%s to %s)",
		profileID, family,
		first.Local().Format("Jan 2 15:04"),
		last.Local().Format("Jan 2 15:04"),
	)
}
