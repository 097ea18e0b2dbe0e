package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// utf8BOM is prepended by Excel and other Windows tools.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// missingTokens are the cell texts read as missing. They match the default NA
// markers of the pandas CSV reader the stored files were historically written
// for, so files produced by either side load the same way.
var missingTokens = map[string]struct{}{
	"":         {},
	"#N/A":     {},
	"#N/A N/A": {},
	"#NA":      {},
	"-1.#IND":  {},
	"-1.#QNAN": {},
	"-NaN":     {},
	"-nan":     {},
	"1.#IND":   {},
	"1.#QNAN":  {},
	"<NA>":     {},
	"N/A":      {},
	"NA":       {},
	"NULL":     {},
	"NaN":      {},
	"None":     {},
	"n/a":      {},
	"nan":      {},
	"null":     {},
}

// IsMissingToken reports whether s is read as a missing cell.
func IsMissingToken(s string) bool {
	_, ok := missingTokens[s]
	return ok
}

// Load parses delimited text with a header row into a Dataset.
//
// Column kinds are inferred from the observed values: numeric when every
// non-missing value parses as a number (a column with no values at all is
// numeric), other when every value is a boolean literal and none is missing,
// string otherwise. Malformed input fails with ErrInvalidInput naming the
// line and byte offset.
func Load(r io.Reader) (*Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	data = bytes.ToValidUTF8(data, []byte("?"))

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidInput)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = 0

	header, err := reader.Read()
	if err != nil {
		return nil, parseError(reader, err)
	}

	raw := make([][]string, len(header))
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, parseError(reader, err)
		}
		for i, cell := range record {
			raw[i] = append(raw[i], cell)
		}
	}

	columns := make([]Column, len(header))
	for i, name := range header {
		columns[i] = buildColumn(strings.TrimSpace(name), raw[i])
	}
	return New(columns)
}

func parseError(reader *csv.Reader, err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return fmt.Errorf("%w: invalid csv at line %d, column %d (byte offset %d): %v",
			ErrInvalidInput, pe.Line, pe.Column, reader.InputOffset(), pe.Err)
	}
	return fmt.Errorf("%w: invalid csv (byte offset %d): %v", ErrInvalidInput, reader.InputOffset(), err)
}

// buildColumn infers the column kind and converts its cells.
func buildColumn(name string, cells []string) Column {
	kind := inferKind(cells)
	values := make([]Value, len(cells))
	for i, cell := range cells {
		if IsMissingToken(cell) {
			values[i] = MissingValue()
			continue
		}
		v := Value{Raw: cell}
		if kind == KindNumeric {
			v.Num, _ = parseNumber(cell)
		}
		values[i] = v
	}
	return Column{Name: name, Kind: kind, Values: values}
}

func inferKind(cells []string) Kind {
	numeric, boolean, missing := true, true, false
	for _, cell := range cells {
		if IsMissingToken(cell) {
			missing = true
			continue
		}
		if numeric {
			if _, err := parseNumber(cell); err != nil {
				numeric = false
			}
		}
		if boolean && !isBoolLiteral(cell) {
			boolean = false
		}
	}
	switch {
	case numeric:
		return KindNumeric
	case boolean && !missing:
		return KindOther
	default:
		return KindString
	}
}

func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func isBoolLiteral(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "false":
		return true
	}
	return false
}
