package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
)

// MissingMarker is written for missing cells. Load reads it back as missing.
const MissingMarker = "NaN"

// Write serializes d as comma-separated text with a header row. Present cells
// are written as their raw text; missing cells as MissingMarker.
func Write(w io.Writer, d *Dataset) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(d.Columns()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(d.columns))
	for r := 0; r < d.rows; r++ {
		for ci, c := range d.columns {
			v := c.Values[r]
			if v.Missing {
				record[ci] = MissingMarker
			} else {
				record[ci] = v.Raw
			}
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", r+1, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
