// Package components provides reusable UI components for the TUI.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/j-veylop/credit-reset-dashboard/internal/models"
	"github.com/j-veylop/credit-reset-dashboard/internal/ui/styles"
)

const (
	minChartWidth  = 20
	minChartHeight = 3
)

// RenderCreditsChart plots credits before and after each recorded reset.
func RenderCreditsChart(records []models.ResetRecord, width, height int) string {
	var before, after []float64
	for i := range records {
		if records[i].Status != models.OutcomeSuccess {
			continue
		}
		before = append(before, records[i].CreditsBefore)
		after = append(after, records[i].CreditsAfter)
	}
	if len(after) == 0 {
		return styles.HelpStyle.Render("No resets recorded yet")
	}
	// asciigraph needs at least two points to draw a line.
	if len(after) == 1 {
		before = append(before, before[0])
		after = append(after, after[0])
	}

	graph := asciigraph.PlotMany([][]float64{before, after},
		asciigraph.Height(max(height, minChartHeight)),
		asciigraph.Width(max(width, minChartWidth)),
		asciigraph.Caption("credits before / after reset"),
		asciigraph.SeriesColors(asciigraph.Red, asciigraph.Green),
	)

	legend := RenderLegend([]LegendItem{
		{Label: "before", Color: styles.ChartBefore},
		{Label: "after", Color: styles.ChartAfter},
	})
	return graph + "\n" + legend
}

// RenderCreditsBar draws a horizontal bar for current against limit.
func RenderCreditsBar(current, limit float64, width int) string {
	width = max(width, 10)
	percent := 0.0
	if limit > 0 {
		percent = min(max(current/limit*100, 0), 100)
	}

	filled := int(percent / 100 * float64(width))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	style := styles.CreditsStyle(percent)
	return style.Render(bar) + fmt.Sprintf(" %5.1f%%", percent)
}

// RenderSparkline creates a compact inline sparkline chart.
func RenderSparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return ""
	}

	sparkChars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	maxVal := 0.0
	for _, v := range values {
		maxVal = max(maxVal, v)
	}
	if maxVal == 0 {
		maxVal = 1
	}

	var result strings.Builder
	step := max(float64(len(values))/float64(width), 1)

	for i := 0; i < width && int(float64(i)*step) < len(values); i++ {
		val := values[int(float64(i)*step)]
		normalized := int((val / maxVal) * float64(len(sparkChars)-1))
		normalized = min(max(normalized, 0), len(sparkChars)-1)
		result.WriteRune(sparkChars[normalized])
	}

	return result.String()
}

// LegendItem represents a single legend entry.
type LegendItem struct {
	Label string
	Color lipgloss.Color
}

// RenderLegend creates a chart legend.
func RenderLegend(items []LegendItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		colorBox := lipgloss.NewStyle().Foreground(item.Color).Render("■")
		parts = append(parts, fmt.Sprintf("%s %s", colorBox, item.Label))
	}
	return strings.Join(parts, "  ")
}
