// Package report turns cleaning step logs into flat, human-readable reports.
//
// A report is a list of rows with three fields: the step name, a description
// of the affected columns, and a free-text summary. Every report ends with a
// "Row Summary" separator and the original and cleaned row counts. Step logs
// written by older versions (bare column lists, bare flags) are rendered on a
// best-effort basis rather than rejected.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/JonMunkholm/DataClean/internal/cleaning"
)

// Header is the column header of every serialized report.
var Header = []string{"Cleaning Step", "Affected Columns", "Summary"}

// Trailer step names.
const (
	RowSummary   = "Row Summary"
	OriginalRows = "Original Rows"
	CleanedRows  = "Cleaned Rows"
)

// Row is one line of a report.
type Row struct {
	Step            string `json:"cleaning_step"`
	AffectedColumns string `json:"affected_columns"`
	Summary         string `json:"summary"`
}

// Fields returns the row in Header order.
func (r Row) Fields() []string {
	return []string{r.Step, r.AffectedColumns, r.Summary}
}

// FromCleaningRun builds the report of a fresh run.
func FromCleaningRun(run cleaning.Run) []Row {
	return Build(FromRun(run), run.OriginalRows, run.CleanedRows)
}

// Build renders every step of log followed by the row summary trailer.
func Build(log StepLog, originalRows, cleanedRows int) []Row {
	rows := make([]Row, 0, len(log.Steps)+3)
	for _, s := range log.Steps {
		rows = append(rows, StepRow(s))
	}
	return append(rows,
		Row{Step: RowSummary},
		Row{Step: OriginalRows, AffectedColumns: strconv.Itoa(originalRows)},
		Row{Step: CleanedRows, AffectedColumns: strconv.Itoa(cleanedRows)},
	)
}

// StepRow renders a single recorded step.
func StepRow(s RecordedStep) Row {
	row := Row{Step: s.Name}
	info := s.Info

	switch cleaning.StepName(s.Name) {
	case cleaning.StepFillMissing:
		switch info.Kind {
		case InfoStructured:
			row.AffectedColumns = strings.Join(info.Columns, ", ")
			parts := make([]string, len(info.Filled))
			for i, c := range info.Filled {
				parts[i] = fmt.Sprintf("%s: %d filled", c.Column, c.Count)
			}
			row.Summary = strings.Join(parts, ", ")
		case InfoLegacyColumns:
			row.AffectedColumns = strings.Join(info.Columns, ", ")
		}

	case cleaning.StepRemoveDuplicates:
		switch info.Kind {
		case InfoStructured:
			row.AffectedColumns = "No"
			if info.Removed > 0 {
				row.AffectedColumns = "Yes"
			}
			row.Summary = fmt.Sprintf("%d duplicate rows removed", info.Removed)
		case InfoLegacyColumns:
			quoted := make([]string, len(info.Columns))
			for i, c := range info.Columns {
				quoted[i] = "'" + c + "'"
			}
			row.AffectedColumns = "[" + strings.Join(quoted, ", ") + "]"
		default:
			row.AffectedColumns = info.Flag
		}

	case cleaning.StepNormalizeStrings:
		if info.Kind == InfoStructured || info.Kind == InfoLegacyColumns {
			row.AffectedColumns = strings.Join(info.Columns, ", ")
			row.Summary = "Strings normalized in columns: " + row.AffectedColumns
		}
	}

	return row
}

// WriteCSV writes rows under Header as comma-separated text.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.Fields()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
