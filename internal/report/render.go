// SPDX-License-Identifier: Apache-2.0

package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/kusari-oss/mend/internal/core/models"
)

var (
	colorGreen  = lipgloss.Color("#50fa7b")
	colorRed    = lipgloss.Color("#ff5555")
	colorYellow = lipgloss.Color("#f1fa8c")
	colorOrange = lipgloss.Color("#ffb86c")
	colorBlue   = lipgloss.Color("#8be9fd")
	colorDim    = lipgloss.Color("#6272a4")
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(colorBlue).
			Bold(true)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Underline(true).
			MarginTop(1)

	headerStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	passStyle = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	warnStyle = lipgloss.NewStyle().Foreground(colorYellow).Bold(true)
	skipStyle = lipgloss.NewStyle().Foreground(colorDim)
)

func statusStyle(status string) lipgloss.Style {
	switch status {
	case string(models.StatusPassed), string(models.OutcomeSucceeded), string(models.LoopConverged):
		return passStyle
	case string(models.StatusSkipped):
		return skipStyle
	case string(models.StatusTimeout), string(models.LoopExhausted), string(models.LoopStalled),
		string(models.OutcomeRejectedByValidation):
		return warnStyle
	default:
		return failStyle
	}
}

func severityStyle(severity models.Severity) lipgloss.Style {
	switch severity {
	case models.SeverityCritical, models.SeverityHigh:
		return lipgloss.NewStyle().Foreground(colorRed)
	case models.SeverityMedium:
		return lipgloss.NewStyle().Foreground(colorOrange)
	default:
		return lipgloss.NewStyle().Foreground(colorYellow)
	}
}

// Render writes the console report
func Render(w io.Writer, s *Summary) error {
	var b strings.Builder

	if s.Status != "" {
		b.WriteString(titleStyle.Render("mend run " + s.RunID))
		b.WriteString("  ")
		b.WriteString(statusStyle(string(s.Status)).Render(string(s.Status)))
		b.WriteString("\n")
		fmt.Fprintf(&b, "%s %d   %s %d -> %d   %s %s\n",
			dimStyle.Render("iterations"), s.Iterations,
			dimStyle.Render("issues"), s.Baseline, len(s.Remaining),
			dimStyle.Render("took"), s.Duration.Round(time.Millisecond))
	}

	renderChecks(&b, s.Checks)
	renderHistory(&b, s.History)
	renderIssues(&b, s)
	renderReview(&b, s.NeedsReview)
	renderAttempts(&b, s.Attempts)

	_, err := io.WriteString(w, b.String())
	return err
}

func renderChecks(b *strings.Builder, rows []CheckRow) {
	b.WriteString(sectionStyle.Render("Checks"))
	b.WriteString("\n")
	if len(rows) == 0 {
		b.WriteString(dimStyle.Render("no checks configured"))
		b.WriteString("\n")
		return
	}

	table := [][]string{{"STRATEGY", "CHECK", "STATUS", "TIME", "ISSUES", "NOTE"}}
	for _, row := range rows {
		table = append(table, []string{
			row.Strategy,
			row.Name,
			string(row.Status),
			row.Duration.Round(time.Millisecond).String(),
			fmt.Sprintf("%d", row.Issues),
			row.Note,
		})
	}
	writeTable(b, table, 2)
}

func renderHistory(b *strings.Builder, history []models.IterationState) {
	table := [][]string{{"ITERATION", "REMAINING", "RESOLVED", "NEW", "UNCHANGED"}}
	for _, state := range history {
		if state.IterationNumber == 0 {
			continue
		}
		table = append(table, []string{
			fmt.Sprintf("%d", state.IterationNumber),
			fmt.Sprintf("%d", state.RemainingIssueCount),
			fmt.Sprintf("%d", state.Resolved),
			fmt.Sprintf("%d", state.Introduced),
			fmt.Sprintf("%d", state.Unchanged),
		})
	}
	if len(table) == 1 {
		return
	}
	b.WriteString(sectionStyle.Render("Iterations"))
	b.WriteString("\n")
	writeTable(b, table, -1)
}

func renderIssues(b *strings.Builder, s *Summary) {
	b.WriteString(sectionStyle.Render(fmt.Sprintf("Remaining issues (%d)", len(s.Remaining))))
	b.WriteString("\n")
	if len(s.Remaining) == 0 {
		b.WriteString(passStyle.Render("none"))
		b.WriteString("\n")
		return
	}

	kinds := make([]string, 0, len(s.ByKind))
	for kind, n := range s.ByKind {
		kinds = append(kinds, fmt.Sprintf("%s=%d", kind, n))
	}
	sort.Strings(kinds)
	b.WriteString(dimStyle.Render(strings.Join(kinds, " ")))
	b.WriteString("\n")

	for _, row := range s.Remaining {
		age := ""
		if row.Age > 0 {
			age = fmt.Sprintf(" (age %d)", row.Age)
		}
		fmt.Fprintf(b, "%s %s %s %s%s\n",
			severityStyle(row.Severity).Render(fmt.Sprintf("%-8s", row.Severity)),
			fmt.Sprintf("%-13s", row.Kind),
			row.Location(),
			row.Message,
			dimStyle.Render(fmt.Sprintf(" [%s]%s", row.OriginCheck, age)))
	}
}

func renderReview(b *strings.Builder, review []models.Issue) {
	if len(review) == 0 {
		return
	}
	b.WriteString(sectionStyle.Render(fmt.Sprintf("Needs review (%d)", len(review))))
	b.WriteString("\n")
	for _, issue := range review {
		fmt.Fprintf(b, "%s %s %s\n", warnStyle.Render(string(issue.Kind)), issue.Location(), issue.Message)
	}
}

func renderAttempts(b *strings.Builder, attempts []models.FixAttempt) {
	if len(attempts) == 0 {
		return
	}
	b.WriteString(sectionStyle.Render(fmt.Sprintf("Fix attempts (%d)", len(attempts))))
	b.WriteString("\n")

	table := [][]string{{"FIXER", "OUTCOME", "TRIES", "CONF", "ISSUE", "ERROR"}}
	for _, attempt := range attempts {
		table = append(table, []string{
			attempt.FixerName,
			string(attempt.Outcome),
			fmt.Sprintf("%d", attempt.Tries),
			fmt.Sprintf("%.2f", attempt.Confidence),
			attempt.Issue.Location(),
			attempt.Error,
		})
	}
	writeTable(b, table, 1)
}

// writeTable pads every column to its widest cell. statusColumn is styled by value.
func writeTable(b *strings.Builder, table [][]string, statusColumn int) {
	widths := make([]int, len(table[0]))
	for _, row := range table {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	for r, row := range table {
		cells := make([]string, len(row))
		for i, cell := range row {
			padded := cell
			if i < len(row)-1 {
				padded = fmt.Sprintf("%-*s", widths[i], cell)
			}
			switch {
			case r == 0:
				cells[i] = headerStyle.Render(padded)
			case i == statusColumn:
				cells[i] = statusStyle(cell).Render(padded)
			default:
				cells[i] = padded
			}
		}
		b.WriteString(strings.TrimRight(strings.Join(cells, "  "), " "))
		b.WriteString("\n")
	}
}
