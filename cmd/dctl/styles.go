package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/dctl/internal/compare"
	"github.com/san-kum/dctl/internal/sim"
)

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444466")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00ffff"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888899")).
			Width(18)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00ccff")).
			Bold(true)

	passStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00ff88"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ff4444"))

	subtleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666688"))
)

func row(label, value string) string {
	return labelStyle.Render(label) + valueStyle.Render(value)
}

func renderSummary(name, runID string, result *sim.Result) string {
	lines := []string{
		titleStyle.Render(name),
		row("run id", runID),
		row("steps", fmt.Sprintf("%d", result.StepsTaken)),
	}
	if n := len(result.Measurements); n > 0 {
		lines = append(lines,
			row("final output", fmt.Sprintf("%.6f", result.Measurements[n-1])),
			row("final control", fmt.Sprintf("%.6f", result.Controls[n-1])))
	}

	names := make([]string, 0, len(result.Metrics))
	for k := range result.Metrics {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		lines = append(lines, row(k, fmt.Sprintf("%.6f", result.Metrics[k])))
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}

func renderReport(runID string, r *compare.Report) string {
	verdict := passStyle.Render("PASS")
	if !r.Pass {
		verdict = errorStyle.Render("FAIL")
	}

	lines := []string{
		titleStyle.Render("verify "+runID) + "  " + verdict,
		row("samples", fmt.Sprintf("%d", r.Samples)),
		row("trace error", fmt.Sprintf("%.6f%%", r.Error)),
		row("threshold", fmt.Sprintf("%.6f%%", r.Threshold)),
	}
	for _, ch := range r.Channels {
		lines = append(lines, row(ch, fmt.Sprintf("%.6f%%  max |d| %.3g", r.PerChannel[ch], r.MaxAbsDiff[ch])))
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}
