// Package terminal draws analysis results for the command line.
package terminal

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"news-analyzer/internal/analyzer"
	"news-analyzer/internal/models"
)

const abstainWarning = "⚠ El modelo no está seguro de este resultado."

var (
	negativeBadge = color.New(color.FgWhite, color.BgRed, color.Bold)
	positiveBadge = color.New(color.FgBlack, color.BgGreen, color.Bold)
	warningText   = color.New(color.FgYellow)
	faintText     = color.New(color.Faint)
)

// Printer writes views to out and alerts to errOut.
type Printer struct {
	out     io.Writer
	errOut  io.Writer
	showRaw bool
}

// NewPrinter creates a printer. showRaw adds the raw prediction JSON.
func NewPrinter(out, errOut io.Writer, showRaw bool) *Printer {
	return &Printer{out: out, errOut: errOut, showRaw: showRaw}
}

// Alert implements analyzer.Notifier.
func (p *Printer) Alert(message string) {
	fmt.Fprintf(p.errOut, "Error: %s\n", message)
}

// Print writes the result card when it is visible.
func (p *Printer) Print(state analyzer.ViewState) {
	if !state.CardVisible {
		return
	}

	fmt.Fprintln(p.out, badge(state))
	fmt.Fprintln(p.out, state.Confidence)
	if state.WarningVisible {
		warningText.Fprintln(p.out, abstainWarning)
	}
	if state.Terms != "" {
		fmt.Fprintln(p.out, state.Terms)
	}
	if p.showRaw && state.Raw != "" {
		faintText.Fprintln(p.out, state.Raw)
	}
}

// PrintMetrics writes the per-label counters of the service.
func (p *Printer) PrintMetrics(m *models.Metrics) {
	fmt.Fprintf(p.out, "Total: %d\n", m.Total)
	for _, s := range m.ByLabel {
		style := positiveBadge
		if analyzer.BadgeStyleFor(s.Label) == analyzer.BadgeNegative {
			style = negativeBadge
		}
		fmt.Fprintf(p.out, "%s %d (%s)\n", style.Sprint(" "+s.Label+" "), s.Count, strings.TrimPrefix(analyzer.FormatConfidence(s.AvgScore, ""), "Confianza: "))
	}
}

func badge(state analyzer.ViewState) string {
	text := " " + state.Badge + " "
	switch state.BadgeStyle {
	case analyzer.BadgeNegative:
		return negativeBadge.Sprint(text)
	case analyzer.BadgePositive:
		return positiveBadge.Sprint(text)
	default:
		return text
	}
}
