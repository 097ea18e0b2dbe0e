package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/JonMunkholm/DataClean/internal/cleaning"
)

// InfoKind tags the shape a step's recorded info was stored in.
type InfoKind int

const (
	// InfoStructured carries columns and counts.
	InfoStructured InfoKind = iota
	// InfoLegacyColumns is a bare list of column names.
	InfoLegacyColumns
	// InfoLegacyFlag is a scalar such as true, a number or a string.
	InfoLegacyFlag
)

// ColumnCount is a per-column counter kept in column order.
type ColumnCount struct {
	Column string
	Count  int
}

// StepInfo is what was recorded for one step. Which fields are set depends on
// Kind.
type StepInfo struct {
	Kind InfoKind

	// InfoStructured and InfoLegacyColumns
	Columns []string

	// InfoStructured
	Filled  []ColumnCount
	Removed int

	// InfoLegacyFlag, already rendered as text
	Flag string
}

// RecordedStep is one entry of a stored step log.
type RecordedStep struct {
	Name string
	Info StepInfo
}

// StepLog is a decoded step log with optional row counts.
type StepLog struct {
	Steps        []RecordedStep
	OriginalRows *int
	CleanedRows  *int
}

// FromRun converts a fresh cleaning run to a step log.
func FromRun(run cleaning.Run) StepLog {
	log := StepLog{
		Steps:        make([]RecordedStep, 0, len(run.Steps)),
		OriginalRows: intPtr(run.OriginalRows),
		CleanedRows:  intPtr(run.CleanedRows),
	}
	for _, s := range run.Steps {
		info := StepInfo{
			Kind:    InfoStructured,
			Columns: append([]string(nil), s.Columns...),
			Removed: s.Removed,
		}
		for _, col := range s.Columns {
			if n, ok := s.Filled[col]; ok {
				info.Filled = append(info.Filled, ColumnCount{Column: col, Count: n})
			}
		}
		log.Steps = append(log.Steps, RecordedStep{Name: string(s.Step), Info: info})
	}
	return log
}

// Decode parses a stored step log. It accepts the current JSON run format, a
// legacy JSON object keyed by step name, and the same legacy object written as
// a Python literal (single quotes, True/False/None).
func Decode(data []byte) (StepLog, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return StepLog{}, nil
	}

	if !json.Valid(data) {
		converted, err := pythonLiteralToJSON(data)
		if err != nil || !json.Valid(converted) {
			return StepLog{}, fmt.Errorf("%w: unreadable step log", cleaning.ErrInvalidInput)
		}
		data = converted
	}

	var probe struct {
		Steps []cleaning.StepResult `json:"steps"`
	}
	if err := json.Unmarshal(data, &probe); err == nil && probe.Steps != nil {
		var run cleaning.Run
		if err := json.Unmarshal(data, &run); err != nil {
			return StepLog{}, fmt.Errorf("%w: step log: %v", cleaning.ErrInvalidInput, err)
		}
		return FromRun(run), nil
	}

	entries, err := orderedObject(data)
	if err != nil {
		return StepLog{}, fmt.Errorf("%w: step log: %v", cleaning.ErrInvalidInput, err)
	}

	log := StepLog{Steps: make([]RecordedStep, 0, len(entries))}
	for _, e := range entries {
		log.Steps = append(log.Steps, RecordedStep{Name: e.key, Info: decodeInfo(e.value)})
	}
	return log, nil
}

type entry struct {
	key   string
	value json.RawMessage
}

// orderedObject decodes a JSON object into its entries, keeping key order.
func orderedObject(data []byte) ([]entry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected an object")
	}

	var entries []entry
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		entries = append(entries, entry{key: key, value: value})
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return nil, err
	}
	return entries, nil
}

// decodeInfo classifies one legacy value.
func decodeInfo(raw json.RawMessage) StepInfo {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return StepInfo{Kind: InfoLegacyFlag}
	}

	switch trimmed[0] {
	case '[':
		var items []any
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return StepInfo{Kind: InfoLegacyFlag, Flag: string(trimmed)}
		}
		cols := make([]string, len(items))
		for i, it := range items {
			cols[i] = scalarText(it)
		}
		return StepInfo{Kind: InfoLegacyColumns, Columns: cols}

	case '{':
		var obj struct {
			Columns     []string        `json:"columns"`
			FilledCount json.RawMessage `json:"filled_count"`
			Removed     int             `json:"removed_count"`
		}
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return StepInfo{Kind: InfoLegacyFlag, Flag: string(trimmed)}
		}
		info := StepInfo{Kind: InfoStructured, Columns: obj.Columns, Removed: obj.Removed}
		if len(obj.FilledCount) > 0 {
			counts, err := orderedObject(obj.FilledCount)
			if err == nil {
				for _, c := range counts {
					n, _ := strconv.Atoi(strings.TrimSpace(string(c.value)))
					info.Filled = append(info.Filled, ColumnCount{Column: c.key, Count: n})
				}
			}
		}
		return info
	}

	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return StepInfo{Kind: InfoLegacyFlag, Flag: string(trimmed)}
	}
	return StepInfo{Kind: InfoLegacyFlag, Flag: scalarText(v)}
}

// scalarText renders a decoded JSON scalar the way the legacy writer printed
// it: booleans as True/False and null as None.
func scalarText(v any) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case bool:
		if x {
			return "True"
		}
		return "False"
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		return x
	default:
		b, _ := json.Marshal(x)
		return string(b)
	}
}

// pythonLiteralToJSON rewrites a Python dict/list literal of strings, numbers
// and booleans into JSON.
func pythonLiteralToJSON(src []byte) ([]byte, error) {
	var out bytes.Buffer
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == '\'' || c == '"':
			s, n, err := readPyString(src[i:])
			if err != nil {
				return nil, err
			}
			b, _ := json.Marshal(s)
			out.Write(b)
			i += n

		case isIdentStart(c):
			j := i
			for j < len(src) && (isIdentStart(src[j]) || (src[j] >= '0' && src[j] <= '9')) {
				j++
			}
			switch word := string(src[i:j]); word {
			case "True":
				out.WriteString("true")
			case "False":
				out.WriteString("false")
			case "None":
				out.WriteString("null")
			default:
				return nil, fmt.Errorf("unsupported literal %q", word)
			}
			i = j

		default:
			out.WriteByte(c)
			i++
		}
	}
	return out.Bytes(), nil
}

// readPyString reads a quoted Python string starting at src[0] and returns its
// value and the number of bytes consumed.
func readPyString(src []byte) (string, int, error) {
	quote := src[0]
	var sb strings.Builder
	for i := 1; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '\\' && i+1 < len(src):
			i++
			switch src[i] {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			default:
				sb.WriteByte(src[i])
			}
		case c == quote:
			return sb.String(), i + 1, nil
		default:
			sb.WriteByte(c)
		}
	}
	return "", 0, fmt.Errorf("unterminated string")
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func intPtr(n int) *int {
	return &n
}
