package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ValueKind identifies the scalar type held by a Value.
type ValueKind int

const (
	KindMissing ValueKind = iota
	KindText
	KindNumber
	KindBool
	KindTime
)

// maxExactFloat is the largest magnitude up to which every integer has an
// exact float64 form.
const maxExactFloat = 1 << 53

// Value is a single spreadsheet cell. The zero Value is Missing.
//
// Whole numbers also carry their exact int64 form in Int, with IsInt set.
// Keys and display text use it, so integer IDs beyond 2^53 keep every digit.
type Value struct {
	Kind   ValueKind
	Text   string
	Number float64
	Int    int64
	IsInt  bool
	Bool   bool
	Time   time.Time
}

// Missing returns the null marker used for unmatched join columns and empty cells.
func Missing() Value { return Value{} }

// Text wraps a string cell.
func Text(s string) Value { return Value{Kind: KindText, Text: s} }

// Number wraps a numeric cell. Negative zero is stored as zero.
func Number(f float64) Value {
	if f == 0 {
		f = 0
	}
	v := Value{Kind: KindNumber, Number: f}
	if f == math.Trunc(f) && math.Abs(f) <= maxExactFloat {
		v.Int, v.IsInt = int64(f), true
	}
	return v
}

// Integer wraps a whole-number cell without passing through float64.
func Integer(i int64) Value {
	return Value{Kind: KindNumber, Number: float64(i), Int: i, IsInt: true}
}

// Bool wraps a boolean cell.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Time wraps a date/time cell.
func Time(t time.Time) Value { return Value{Kind: KindTime, Time: t} }

// IsMissing reports whether v is the null marker.
func (v Value) IsMissing() bool { return v.Kind == KindMissing }

// String formats the value for display. Missing renders as an empty string.
func (v Value) String() string {
	switch v.Kind {
	case KindText:
		return v.Text
	case KindNumber:
		if v.IsInt {
			return strconv.FormatInt(v.Int, 10)
		}
		if v.Number == 0 {
			return "0"
		}
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case KindBool:
		if v.Bool {
			return "TRUE"
		}
		return "FALSE"
	case KindTime:
		if v.Time.Hour() == 0 && v.Time.Minute() == 0 && v.Time.Second() == 0 {
			return v.Time.Format("2006-01-02")
		}
		return v.Time.Format("2006-01-02 15:04:05")
	default:
		return ""
	}
}

// Key returns the canonical form used for join equality and whether the
// value can participate in a match at all. Text "1" and Number 1 share the
// key "1"; Missing values never match.
func (v Value) Key() (string, bool) {
	switch v.Kind {
	case KindMissing:
		return "", false
	case KindTime:
		return v.Time.Format(time.RFC3339Nano), true
	default:
		return v.String(), true
	}
}

// Interface returns the value as a plain Go scalar (nil for Missing),
// suitable for JSON encoding and spreadsheet writers.
func (v Value) Interface() any {
	switch v.Kind {
	case KindText:
		return v.Text
	case KindNumber:
		if v.IsInt && (v.Int > maxExactFloat || v.Int < -maxExactFloat) {
			return v.Int
		}
		return v.Number
	case KindBool:
		return v.Bool
	case KindTime:
		return v.Time
	default:
		return nil
	}
}

// Table is an ordered set of named columns with row-aligned values.
// Every row has exactly len(Columns) values.
type Table struct {
	Columns []string
	Rows    [][]Value
}

// NewTable builds a table from column-major data. All columns must have the
// same length.
func NewTable(names []string, columns ...[]Value) (*Table, error) {
	if len(names) != len(columns) {
		return nil, fmt.Errorf("table: %d names for %d columns", len(names), len(columns))
	}
	height := 0
	if len(columns) > 0 {
		height = len(columns[0])
	}
	for i, col := range columns {
		if len(col) != height {
			return nil, fmt.Errorf("table: column %q has %d values, want %d", names[i], len(col), height)
		}
	}

	t := &Table{
		Columns: append([]string(nil), names...),
		Rows:    make([][]Value, height),
	}
	for r := 0; r < height; r++ {
		row := make([]Value, len(columns))
		for c := range columns {
			row[c] = columns[c][r]
		}
		t.Rows[r] = row
	}
	return t, nil
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// ColumnIndex returns the position of the column with the exact name, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether a column with the exact (case-sensitive) name exists.
func (t *Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// Column returns a copy of the named column's values, or nil if absent.
func (t *Table) Column(name string) []Value {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil
	}
	out := make([]Value, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out
}

// Head returns up to n leading rows. The returned rows share storage with t.
func (t *Table) Head(n int) [][]Value {
	if n < 0 || n > len(t.Rows) {
		n = len(t.Rows)
	}
	return t.Rows[:n]
}

// normalizeHeaders renames blank headers to "Unnamed: N" and disambiguates
// repeated names with ".1", ".2", ... in order of appearance.
func normalizeHeaders(raw []string) []string {
	out := make([]string, len(raw))
	used := make(map[string]bool, len(raw))
	counts := make(map[string]int)
	for i, h := range raw {
		if strings.TrimSpace(h) == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		name := h
		for used[name] {
			counts[h]++
			name = fmt.Sprintf("%s.%d", h, counts[h])
		}
		used[name] = true
		out[i] = name
	}
	return out
}
