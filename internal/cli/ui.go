package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// uiOut receives status output. Rows may stream to stdout, so status goes
// to stderr.
var uiOut io.Writer = os.Stderr

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorRed    = lipgloss.Color("167") // Soft red - errors
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Public Styles
// =============================================================================

var (
	// StyleTitle for main headings.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// StyleDim for secondary/muted text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	// StyleValue for data values.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	// StyleNumber for numeric values.
	StyleNumber = lipgloss.NewStyle().Foreground(colorCyan)

	// StyleWarning for warning messages.
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)
)

// =============================================================================
// Internal Styles
// =============================================================================

var (
	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)

	styleTableHeader = lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	styleTableCell   = lipgloss.NewStyle().Padding(0, 1)
)

// =============================================================================
// Icons
// =============================================================================

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
)

// =============================================================================
// Status Output
// =============================================================================

// printSuccess prints a success message.
func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(uiOut, styleIconSuccess.Render(iconSuccess)+" "+msg)
}

// printError prints an error message.
func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(uiOut, styleIconError.Render(iconError)+" "+msg)
}

// printWarning prints a warning message.
func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(uiOut, styleIconWarning.Render(iconWarning)+" "+StyleWarning.Render(msg))
}

// printInfo prints an info/status message.
func printInfo(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(uiOut, styleIconInfo.Render(iconInfo)+" "+msg)
}

// printDetail prints a detail line (indented).
func printDetail(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(uiOut, "  "+StyleDim.Render(msg))
}

// printKeyValue prints a labeled value.
func printKeyValue(key, value string) {
	keyStyle := lipgloss.NewStyle().Foreground(colorGray).Width(14)
	fmt.Fprintln(uiOut, keyStyle.Render(key)+" "+StyleValue.Render(value))
}

// =============================================================================
// Run Summaries
// =============================================================================

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 { // header
				return styleTableHeader.Padding(0, 1)
			}
			if col > 0 {
				return styleTableCell.Foreground(colorCyan).Align(lipgloss.Right)
			}
			return styleTableCell
		})
}

// printSearchSummary prints per-library search statistics.
func printSearchSummary(results []libraryResult, verified bool) {
	headers := []string{"Library", "Matches", "Requests", "Splits", "Pruned", "Exhausted", "Incomplete", "Failed"}
	if verified {
		headers = append(headers, "Toggled")
	}
	t := newTable(headers...)
	for _, r := range results {
		s := r.stats
		row := []string{
			r.name,
			strconv.Itoa(s.Matches),
			strconv.Itoa(s.Requests),
			strconv.Itoa(s.Bisections + s.OrderFlips + s.LexicalSplit),
			strconv.Itoa(s.Pruned),
			strconv.Itoa(s.Exhausted),
			strconv.Itoa(s.Incomplete),
			strconv.Itoa(s.Failures),
		}
		if verified {
			row = append(row, strconv.Itoa(r.toggled))
		}
		t.Row(row...)
	}
	fmt.Fprintln(uiOut, t.Render())
	for _, r := range results {
		if r.stats.Exhausted > 0 {
			printWarning("%s: %d partitions still exceed the result cap; some matches may be missing", r.name, r.stats.Exhausted)
		}
	}
}

type summaryRow struct {
	label string
	value int
}

// printRecordSummary prints a titled two-column table of counts.
func printRecordSummary(title string, rows []summaryRow) {
	t := newTable(title, "")
	for _, r := range rows {
		t.Row(r.label, strconv.Itoa(r.value))
	}
	fmt.Fprintln(uiOut, t.Render())
}

// printUnresolved lists entities that never completed.
func printUnresolved(ids []string) {
	if len(ids) == 0 {
		return
	}
	printWarning("%d entities did not complete; rerun to retry them (cached answers are reused)", len(ids))
	for _, id := range ids {
		printDetail("%s", id)
	}
}

// printRunInfo prints the run id and where its rows went.
func printRunInfo(runID string, destinations ...string) {
	printKeyValue("Run", runID)
	for _, d := range destinations {
		printKeyValue("Output", d)
	}
}
