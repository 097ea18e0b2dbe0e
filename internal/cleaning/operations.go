package cleaning

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/JonMunkholm/DataClean/internal/dataset"
)

// DefaultPlaceholder replaces missing string cells.
const DefaultPlaceholder = "Unknown"

// Column names that receive special normalization.
const (
	NameColumn  = "name"
	EmailColumn = "email"
)

// DefaultIdentityColumns define row identity for duplicate removal.
func DefaultIdentityColumns() []string {
	return []string{EmailColumn, "signup_date"}
}

// Operation is one cleaning step. Apply must not modify its input.
type Operation interface {
	Name() StepName
	Apply(ds *dataset.Dataset) (*dataset.Dataset, StepResult, error)
}

// FillMissing replaces missing cells in string columns with Placeholder.
// Numeric columns keep their missing cells so numeric analysis downstream is
// not skewed by an arbitrary fill value.
type FillMissing struct {
	Placeholder string
}

func (FillMissing) Name() StepName { return StepFillMissing }

func (op FillMissing) Apply(ds *dataset.Dataset) (*dataset.Dataset, StepResult, error) {
	placeholder := op.Placeholder
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}

	out := ds.Clone()
	columns := out.ColumnsOfKind(dataset.KindString)
	filled := make(map[string]int, len(columns))
	total := 0

	for _, col := range columns {
		values, err := out.Column(col)
		if err != nil {
			return nil, StepResult{}, err
		}
		n := 0
		for i, v := range values {
			if v.Missing {
				values[i] = dataset.Text(placeholder)
				n++
			}
		}
		if n > 0 {
			if err := out.SetColumn(col, values); err != nil {
				return nil, StepResult{}, err
			}
		}
		filled[col] = n
		total += n
	}

	return out, StepResult{
		Step:    StepFillMissing,
		Columns: nonNil(columns),
		Filled:  filled,
		Message: fmt.Sprintf("Filled %d missing string cells with %q; numeric columns left as-is", total, placeholder),
	}, nil
}

// RemoveDuplicates keeps the first of every group of rows that share the same
// identity values. Identity values are compared in their normalized form, so
// rows that NormalizeStrings would make identical count as duplicates.
type RemoveDuplicates struct {
	IdentityColumns []string
}

func (RemoveDuplicates) Name() StepName { return StepRemoveDuplicates }

func (op RemoveDuplicates) Apply(ds *dataset.Dataset) (*dataset.Dataset, StepResult, error) {
	identity := op.IdentityColumns
	if len(identity) == 0 {
		identity = DefaultIdentityColumns()
	}

	out, removed, err := ds.DropDuplicatesFunc(identity, identityKey)
	if err != nil {
		return nil, StepResult{}, err
	}

	return out, StepResult{
		Step:    StepRemoveDuplicates,
		Columns: append([]string(nil), identity...),
		Removed: removed,
		Message: fmt.Sprintf("Removed %d duplicate rows based on %s", removed, strings.Join(identity, " + ")),
	}, nil
}

// identityKey renders an identity cell in the form NormalizeStrings would
// leave it in.
func identityKey(column string, kind dataset.Kind, v dataset.Value) string {
	switch {
	case v.Missing:
		return "\x00"
	case kind == dataset.KindNumeric:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case kind == dataset.KindString:
		return normalizeText(column, v.Raw)
	default:
		return v.Raw
	}
}

// NormalizeStrings trims every string column, title-cases the name column and
// lower-cases the email column.
type NormalizeStrings struct{}

func (NormalizeStrings) Name() StepName { return StepNormalizeStrings }

func (NormalizeStrings) Apply(ds *dataset.Dataset) (*dataset.Dataset, StepResult, error) {
	out := ds.Clone()
	columns := out.ColumnsOfKind(dataset.KindString)

	for _, col := range columns {
		values, err := out.Column(col)
		if err != nil {
			return nil, StepResult{}, err
		}
		for i, v := range values {
			if !v.Missing {
				values[i] = dataset.Text(normalizeText(col, v.Raw))
			}
		}
		if err := out.SetColumn(col, values); err != nil {
			return nil, StepResult{}, err
		}
	}

	return out, StepResult{
		Step:    StepNormalizeStrings,
		Columns: nonNil(columns),
		Message: "Trimmed string columns, title-cased names and lower-cased emails",
	}, nil
}

func normalizeText(column, s string) string {
	s = strings.TrimSpace(s)
	switch column {
	case NameColumn:
		return titleWords(s)
	case EmailColumn:
		// Casers hold state; one per call keeps this safe for concurrent runs.
		return cases.Lower(language.Und).String(s)
	}
	return s
}

// titleWords upper-cases the first cased letter after any uncased rune and
// lower-cases the rest, so "o'neil" becomes "O'Neil" and "3rd ave" becomes
// "3Rd Ave".
func titleWords(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevCased := false
	for _, r := range s {
		cased := unicode.IsUpper(r) || unicode.IsLower(r) || unicode.IsTitle(r)
		switch {
		case cased && !prevCased:
			b.WriteRune(unicode.ToTitle(r))
		case cased:
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
		prevCased = cased
	}
	return b.String()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
