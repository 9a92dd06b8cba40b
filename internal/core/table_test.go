package core

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_String(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"missing", Missing(), ""},
		{"text", Text("abc"), "abc"},
		{"integer number", Number(42), "42"},
		{"fractional number", Number(2.5), "2.5"},
		{"true", Bool(true), "TRUE"},
		{"false", Bool(false), "FALSE"},
		{"date", Time(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)), "2024-01-15"},
		{"datetime", Time(time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)), "2024-01-15 09:30:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.v.String())
		})
	}
}

func TestValue_Key(t *testing.T) {
	_, ok := Missing().Key()
	assert.False(t, ok, "missing values must not produce a key")

	n, ok := Number(1).Key()
	require.True(t, ok)
	s, ok := Text("1").Key()
	require.True(t, ok)
	assert.Equal(t, n, s, "text and number with the same rendering share a key")

	a, _ := Text("01").Key()
	b, _ := Number(1).Key()
	assert.NotEqual(t, a, b)
}

func TestValue_NegativeZeroMatchesZero(t *testing.T) {
	neg, ok := Number(math.Copysign(0, -1)).Key()
	require.True(t, ok)
	zero, _ := Number(0).Key()
	assert.Equal(t, zero, neg)
	assert.Equal(t, "0", Value{Kind: KindNumber, Number: math.Copysign(0, -1)}.String())
}

func TestValue_LargeIntegerKeepsDigits(t *testing.T) {
	a, _ := Integer(9007199254740993).Key()
	b, _ := Integer(9007199254740992).Key()
	assert.Equal(t, "9007199254740993", a)
	assert.NotEqual(t, a, b)
	assert.Equal(t, int64(9007199254740993), Integer(9007199254740993).Interface())
	assert.Equal(t, Number(42), Integer(42))
}

func TestValue_Interface(t *testing.T) {
	assert.Nil(t, Missing().Interface())
	assert.Equal(t, "x", Text("x").Interface())
	assert.Equal(t, 1.5, Number(1.5).Interface())
	assert.Equal(t, true, Bool(true).Interface())
}

func TestNewTable(t *testing.T) {
	tbl, err := NewTable([]string{"ID", "Name"}, nums(1, 2), texts("a", "b"))
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, []Value{Number(2), Text("b")}, tbl.Rows[1])

	_, err = NewTable([]string{"ID"}, nums(1), nums(2))
	assert.Error(t, err, "name/column count mismatch")

	_, err = NewTable([]string{"ID", "Name"}, nums(1, 2), texts("a"))
	assert.Error(t, err, "ragged columns")
}

func TestTable_ColumnLookupIsCaseSensitive(t *testing.T) {
	tbl := mustTable(t, []string{"id", "ID "}, nums(1), nums(2))
	assert.False(t, tbl.HasColumn("ID"))
	assert.Equal(t, -1, tbl.ColumnIndex("ID"))
	assert.Nil(t, tbl.Column("ID"))
}

func TestTable_Head(t *testing.T) {
	tbl := mustTable(t, []string{"ID"}, nums(1, 2, 3))
	assert.Len(t, tbl.Head(2), 2)
	assert.Len(t, tbl.Head(10), 3)
	assert.Len(t, tbl.Head(0), 0)

	var nilTable *Table
	assert.Equal(t, 0, nilTable.Len())
}

func TestNormalizeHeaders(t *testing.T) {
	tests := []struct {
		name string
		raw  []string
		want []string
	}{
		{"unchanged", []string{"ID", "Name"}, []string{"ID", "Name"}},
		{"blank header", []string{"ID", "", "Val"}, []string{"ID", "Unnamed: 1", "Val"}},
		{"duplicates", []string{"A", "A", "A"}, []string{"A", "A.1", "A.2"}},
		{"duplicate of generated name", []string{"A", "A.1", "A"}, []string{"A", "A.1", "A.2"}},
		{"whitespace-only is blank", []string{"ID", "  "}, []string{"ID", "Unnamed: 1"}},
		{"surrounding space kept", []string{" ID ", "Name"}, []string{" ID ", "Name"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeHeaders(tt.raw))
		})
	}
}
