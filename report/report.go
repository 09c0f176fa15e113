// Package report renders a ranking as a terminal table, JSON or CSV.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/JohnPlummer/draft-ranker/corpus"
	"github.com/JohnPlummer/draft-ranker/scorer"
)

// Title is printed above the table
const Title = "Essay Quality Rankings (higher score = needs more work)"

// Score bands used to colour table rows
const (
	HighEffort   = 70.0
	MediumEffort = 40.0
)

// CSVHeader matches the record field names
var CSVHeader = []string{"file", "llm_score", "grammar_score", "readability_score", "composite_score", "notes"}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	highStyle   = cellStyle.Foreground(lipgloss.Color("1"))
	mediumStyle = cellStyle.Foreground(lipgloss.Color("3"))
	lowStyle    = cellStyle.Foreground(lipgloss.Color("2"))
)

// Table writes the ranking as a coloured table.
// Rows are red from HighEffort, yellow from MediumEffort, green below.
func Table(w io.Writer, records []scorer.Record) error {
	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = []string{
			filepath.Base(r.File),
			fmt.Sprintf("%.1f", r.CompositeScore),
			strconv.Itoa(r.JudgmentScore),
			fmt.Sprintf("%.1f", r.GrammarScore),
			fmt.Sprintf("%.1f", r.ReadabilityScore),
			r.Notes,
		}
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("File", "Score", "LLM", "Grammar", "Readability", "Notes").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if row < 0 || row >= len(records) {
				return cellStyle
			}
			return bandStyle(records[row].CompositeScore)
		})

	_, err := fmt.Fprintf(w, "\n%s\n\n%s\n", titleStyle.Render(Title), t.Render())
	return err
}

func bandStyle(score float64) lipgloss.Style {
	switch {
	case score >= HighEffort:
		return highStyle
	case score >= MediumEffort:
		return mediumStyle
	default:
		return lowStyle
	}
}

// JSON writes the ranking as a JSON list with file paths relative to base
func JSON(w io.Writer, records []scorer.Record, base string) error {
	out := make([]scorer.Record, len(records))
	for i, r := range records {
		r.File = filepath.ToSlash(corpus.RelativeTo(base, r.File))
		out[i] = r
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to encode ranking: %w", err)
	}
	return nil
}

// CSV writes a header row and one row per record
func CSV(w io.Writer, records []scorer.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.File,
			strconv.Itoa(r.JudgmentScore),
			formatFloat(r.GrammarScore),
			formatFloat(r.ReadabilityScore),
			formatFloat(r.CompositeScore),
			r.Notes,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row for %s: %w", r.File, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
