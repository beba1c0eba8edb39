package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/evanschultz/daylog/internal/domain"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	errorStyle   = cellStyle.Foreground(lipgloss.Color("9"))
	warningStyle = cellStyle.Foreground(lipgloss.Color("11"))
	borderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// writeIssues renders the sorted issue set as a table followed by a summary line.
func writeIssues(w io.Writer, issues *domain.IssueSet) error {
	if issues == nil || issues.Len() == 0 {
		_, err := fmt.Fprintln(w, "no issues")
		return err
	}

	sorted := issues.Sorted()
	rows := make([][]string, 0, len(sorted))
	for _, issue := range sorted {
		line := ""
		if issue.Line > 0 {
			line = strconv.Itoa(issue.Line)
		}
		rows = append(rows, []string{issue.Source, line, string(issue.Severity), string(issue.Kind), issue.Message})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers("Source", "Line", "Severity", "Kind", "Message").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 2 && row >= 0 && row < len(sorted) {
				if sorted[row].Severity == domain.SeverityError {
					return errorStyle
				}
				return warningStyle
			}
			return cellStyle
		})
	if _, err := fmt.Fprintln(w, t.Render()); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d issues (%d errors, %d warnings)\n",
		issues.Len(), issues.CountSeverity(domain.SeverityError), issues.CountSeverity(domain.SeverityWarning))
	return err
}

// writeTotals renders per-project durations.
func writeTotals(w io.Writer, totals []domain.ProjectTotal) error {
	if len(totals) == 0 {
		_, err := fmt.Fprintln(w, "no records in range")
		return err
	}
	rows := make([][]string, 0, len(totals))
	var sum int64
	for _, total := range totals {
		rows = append(rows, []string{total.Project, formatDuration(total.Seconds), strconv.Itoa(total.Records)})
		sum += total.Seconds
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers("Project", "Duration", "Records").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	if _, err := fmt.Fprintln(w, t.Render()); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "total %s\n", formatDuration(sum))
	return err
}

// formatDuration renders seconds as H:MM.
func formatDuration(seconds int64) string {
	sign := ""
	if seconds < 0 {
		sign = "-"
		seconds = -seconds
	}
	minutes := seconds / 60
	return fmt.Sprintf("%s%d:%02d", sign, minutes/60, minutes%60)
}
