// Package dataset provides the in-memory table the cleaning engine operates on.
//
// A Dataset is an ordered set of named, typed columns with an equal number of
// rows. Cells keep the raw text they were loaded from, so numeric values
// survive a write/read cycle byte for byte, and carry an explicit missing flag.
package dataset

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrInvalidInput marks malformed source data, a missing required column, or
// an operation whose arguments do not fit the table.
var ErrInvalidInput = errors.New("invalid input")

// Kind is the declared type of a column.
type Kind int

const (
	KindString Kind = iota
	KindNumeric
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumeric:
		return "numeric"
	default:
		return "other"
	}
}

// Value is a single cell.
type Value struct {
	Raw     string  // Text as loaded (empty when Missing)
	Num     float64 // Parsed value, numeric columns only
	Missing bool
}

// MissingValue returns a missing cell.
func MissingValue() Value {
	return Value{Missing: true}
}

// Text returns a present string cell.
func Text(s string) Value {
	return Value{Raw: s}
}

// Number returns a present numeric cell parsed from raw.
func Number(raw string) (Value, error) {
	f, err := parseNumber(raw)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %q is not a number", ErrInvalidInput, raw)
	}
	return Value{Raw: raw, Num: f}, nil
}

// Column is a named, typed sequence of cells.
type Column struct {
	Name   string
	Kind   Kind
	Values []Value
}

// Dataset is an in-memory table. It is not safe for concurrent mutation.
type Dataset struct {
	columns []Column
	index   map[string]int
	rows    int
}

// New builds a Dataset from columns. Column names must be unique and every
// column must have the same number of rows.
func New(columns []Column) (*Dataset, error) {
	d := &Dataset{
		columns: make([]Column, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		if _, dup := d.index[c.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrInvalidInput, c.Name)
		}
		if i > 0 && len(c.Values) != d.rows {
			return nil, fmt.Errorf("%w: column %q has %d rows, expected %d",
				ErrInvalidInput, c.Name, len(c.Values), d.rows)
		}
		d.rows = len(c.Values)
		d.index[c.Name] = i
		d.columns[i] = Column{Name: c.Name, Kind: c.Kind, Values: append([]Value(nil), c.Values...)}
	}
	return d, nil
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	return d.rows
}

// Columns returns the column names in order.
func (d *Dataset) Columns() []string {
	names := make([]string, len(d.columns))
	for i, c := range d.columns {
		names[i] = c.Name
	}
	return names
}

// ColumnsOfKind returns, in order, the names of columns with kind k.
func (d *Dataset) ColumnsOfKind(k Kind) []string {
	var names []string
	for _, c := range d.columns {
		if c.Kind == k {
			names = append(names, c.Name)
		}
	}
	return names
}

// Kind returns the kind of the named column.
func (d *Dataset) Kind(name string) (Kind, error) {
	i, err := d.lookup(name)
	if err != nil {
		return 0, err
	}
	return d.columns[i].Kind, nil
}

// Require fails with ErrInvalidInput naming the first absent column.
func (d *Dataset) Require(names ...string) error {
	for _, n := range names {
		if _, ok := d.index[n]; !ok {
			return fmt.Errorf("%w: missing required column %q", ErrInvalidInput, n)
		}
	}
	return nil
}

// Column returns a copy of the named column's values.
func (d *Dataset) Column(name string) ([]Value, error) {
	i, err := d.lookup(name)
	if err != nil {
		return nil, err
	}
	return append([]Value(nil), d.columns[i].Values...), nil
}

// SetColumn replaces the named column's values in place. The row count must
// not change.
func (d *Dataset) SetColumn(name string, values []Value) error {
	i, err := d.lookup(name)
	if err != nil {
		return err
	}
	if len(values) != d.rows {
		return fmt.Errorf("%w: column %q given %d values, table has %d rows",
			ErrInvalidInput, name, len(values), d.rows)
	}
	d.columns[i].Values = append([]Value(nil), values...)
	return nil
}

// Row returns the i-th record keyed by column name.
func (d *Dataset) Row(i int) map[string]Value {
	row := make(map[string]Value, len(d.columns))
	for _, c := range d.columns {
		row[c.Name] = c.Values[i]
	}
	return row
}

// Filter returns a new Dataset holding the rows where mask is true, in their
// original relative order.
func (d *Dataset) Filter(mask []bool) (*Dataset, error) {
	if len(mask) != d.rows {
		return nil, fmt.Errorf("%w: mask has %d entries, table has %d rows",
			ErrInvalidInput, len(mask), d.rows)
	}

	kept := 0
	for _, keep := range mask {
		if keep {
			kept++
		}
	}

	out := &Dataset{
		columns: make([]Column, len(d.columns)),
		index:   make(map[string]int, len(d.columns)),
		rows:    kept,
	}
	for ci, c := range d.columns {
		values := make([]Value, 0, kept)
		for ri, keep := range mask {
			if keep {
				values = append(values, c.Values[ri])
			}
		}
		out.columns[ci] = Column{Name: c.Name, Kind: c.Kind, Values: values}
		out.index[c.Name] = ci
	}
	return out, nil
}

// KeyFunc renders one identity cell into a comparable key fragment.
type KeyFunc func(column string, kind Kind, v Value) string

// RawKey compares cells by their loaded text; missing cells compare equal.
func RawKey(_ string, _ Kind, v Value) string {
	if v.Missing {
		return "\x00"
	}
	return v.Raw
}

// DropDuplicates keeps the first row of every group of rows sharing the same
// values on cols and returns the result with the number of rows removed.
func (d *Dataset) DropDuplicates(cols []string) (*Dataset, int, error) {
	return d.DropDuplicatesFunc(cols, RawKey)
}

// DropDuplicatesFunc is DropDuplicates with a caller-defined cell key.
func (d *Dataset) DropDuplicatesFunc(cols []string, key KeyFunc) (*Dataset, int, error) {
	if len(cols) == 0 {
		return nil, 0, fmt.Errorf("%w: no identity columns given", ErrInvalidInput)
	}
	if err := d.Require(cols...); err != nil {
		return nil, 0, err
	}

	idx := make([]int, len(cols))
	for i, name := range cols {
		idx[i] = d.index[name]
	}

	seen := make(map[string]struct{}, d.rows)
	mask := make([]bool, d.rows)
	removed := 0
	var buf []byte
	for r := 0; r < d.rows; r++ {
		buf = buf[:0]
		for _, ci := range idx {
			c := d.columns[ci]
			part := key(c.Name, c.Kind, c.Values[r])
			buf = strconv.AppendInt(buf, int64(len(part)), 10)
			buf = append(buf, ':')
			buf = append(buf, part...)
		}
		k := string(buf)
		if _, dup := seen[k]; dup {
			removed++
			continue
		}
		seen[k] = struct{}{}
		mask[r] = true
	}

	out, err := d.Filter(mask)
	if err != nil {
		return nil, 0, err
	}
	return out, removed, nil
}

// Clone returns a deep copy.
func (d *Dataset) Clone() *Dataset {
	out, _ := New(d.columns)
	return out
}

// Equal reports whether both tables have the same columns, kinds and cells in
// the same order.
func (d *Dataset) Equal(o *Dataset) bool {
	if d == nil || o == nil {
		return d == o
	}
	if d.rows != o.rows || len(d.columns) != len(o.columns) {
		return false
	}
	for i, c := range d.columns {
		oc := o.columns[i]
		if c.Name != oc.Name || c.Kind != oc.Kind {
			return false
		}
		for r := range c.Values {
			a, b := c.Values[r], oc.Values[r]
			if a.Missing != b.Missing || a.Raw != b.Raw {
				return false
			}
		}
	}
	return true
}

func (d *Dataset) lookup(name string) (int, error) {
	i, ok := d.index[name]
	if !ok {
		return 0, fmt.Errorf("%w: column %q not found", ErrInvalidInput, name)
	}
	return i, nil
}
