// Package report renders comparison results for the terminal.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/cockroachdb/datadiff/batch"
	"github.com/cockroachdb/datadiff/result"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Width(22)

	identicalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575")).
			Bold(true)

	differentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	skippedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFAA00"))

	tableHeaderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FFAA00")).
				Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

func line(label string, value any) string {
	return labelStyle.Render(label) + fmt.Sprint(value)
}

func verdict(identical bool) string {
	if identical {
		return identicalStyle.Render("IDENTICAL")
	}
	return differentStyle.Render("DIFFERENT")
}

// Comparison renders a single comparison as a bordered box of statistics.
func Comparison(c result.Comparison) string {
	key := "(row hash)"
	if c.HasKey {
		key = c.KeyString()
	}
	lines := []string{
		titleStyle.Render(fmt.Sprintf("%s <-> %s", c.RelationA, c.RelationB)),
		"",
		line("Run ID", c.RunID),
		line("Method", c.Method()),
		line("Key", key),
		line("Columns compared", len(c.ColumnsCompared)),
	}
	if len(c.ColumnsOnlyA) > 0 {
		lines = append(lines, line("Columns only in A", strings.Join(c.ColumnsOnlyA, ", ")))
	}
	if len(c.ColumnsOnlyB) > 0 {
		lines = append(lines, line("Columns only in B", strings.Join(c.ColumnsOnlyB, ", ")))
	}
	lines = append(lines,
		"",
		line("Rows in A", c.RowCountA),
		line("Rows in B", c.RowCountB),
		line("Matched", c.MatchedCount),
		line("Only in A", c.OnlyACount),
		line("Only in B", c.OnlyBCount),
		line("Differing rows", c.DiffRowCount),
		line("Differing values", c.DiffValueCount),
	)
	if c.DuplicateKeysA > 0 || c.DuplicateKeysB > 0 {
		lines = append(lines, line("Duplicate keys", fmt.Sprintf("A=%d B=%d", c.DuplicateKeysA, c.DuplicateKeysB)))
	}
	lines = append(lines,
		line("Match", fmt.Sprintf("%.2f%%", c.MatchPercentage)),
		line("Duration", fmt.Sprintf("%.3fs", c.ExecutionTimeSeconds)),
		"",
		verdict(c.Identical),
	)
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func outcomeCell(o batch.Outcome) string {
	switch o {
	case batch.OutcomeIdentical:
		return identicalStyle.Render(string(o))
	case batch.OutcomeDifferent, batch.OutcomeError:
		return differentStyle.Render(string(o))
	}
	return skippedStyle.Render(string(o))
}

// Summary renders a batch summary followed by one row per pair.
func Summary(s batch.Summary) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Batch comparison summary"))
	sb.WriteString("\n\n")
	for _, l := range []string{
		line("Total", s.Total),
		line("Identical", s.Identical),
		line("Different", s.Different),
		line("Errors", s.Errors),
		line("Skipped", s.Skipped),
		line("Duration", s.Duration().Round(time.Millisecond)),
	} {
		sb.WriteString(l)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	pairWidth := len("PAIR")
	for _, r := range s.Results {
		if w := len(r.Pair.String()); w > pairWidth {
			pairWidth = w
		}
	}
	pairCol := lipgloss.NewStyle().Width(pairWidth + 2)
	outcomeCol := lipgloss.NewStyle().Width(11)
	sb.WriteString(tableHeaderStyle.Render(pairCol.Render("PAIR") + outcomeCol.Render("OUTCOME") + "DETAIL"))
	sb.WriteString("\n")
	for _, r := range s.Results {
		detail := ""
		switch {
		case r.Err != nil:
			detail = r.Err.Error()
		case r.Outcome == batch.OutcomeIdentical || r.Outcome == batch.OutcomeDifferent:
			detail = fmt.Sprintf(
				"%.2f%% matched, %d only in A, %d only in B, %d differing values",
				r.Comparison.MatchPercentage,
				r.Comparison.OnlyACount,
				r.Comparison.OnlyBCount,
				r.Comparison.DiffValueCount,
			)
		}
		sb.WriteString(pairCol.Render(r.Pair.String()))
		sb.WriteString(outcomeCol.Render(outcomeCell(r.Outcome)))
		sb.WriteString(detail)
		sb.WriteString("\n")
	}
	return sb.String()
}

// Fprint writes a rendered block followed by a newline.
func Fprint(w io.Writer, rendered string) error {
	_, err := fmt.Fprintln(w, rendered)
	return err
}
