package core

import (
	"bytes"
	"encoding/csv"
	"io"
	"strconv"
	"testing"
)

// ============================================================================
// Cell Conversion Benchmarks
// ============================================================================

// BenchmarkCleanCell benchmarks cell cleanup on every CSV cell.
func BenchmarkCleanCell(b *testing.B) {
	testCases := []string{
		"simple",
		`="00123"`,
		"  spaces  ",
		"",
		`="`,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			CleanCell(tc)
		}
	}
}

// BenchmarkValueKey benchmarks join key canonicalization.
func BenchmarkValueKey(b *testing.B) {
	values := []Value{Number(12345), Number(1.5), Text("A-100"), Bool(true), Missing()}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		for _, v := range values {
			v.Key()
		}
	}
}

// ============================================================================
// Streaming Benchmarks
// ============================================================================

// BenchmarkSanitizeUTF8_LargeDataset benchmarks the ASCII fast path.
func BenchmarkSanitizeUTF8_LargeDataset(b *testing.B) {
	data := bytes.Repeat([]byte("Valid UTF-8 line with numbers 12345\n"), 300)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		io.Copy(io.Discard, csvSource(bytes.NewReader(data)))
	}
}

// BenchmarkSanitizeUTF8_Invalid benchmarks input that needs replacement.
func BenchmarkSanitizeUTF8_Invalid(b *testing.B) {
	data := bytes.Repeat([]byte("caf\xe9,na\xefve,\xff\xfe\n"), 300)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		io.Copy(io.Discard, csvSource(bytes.NewReader(data)))
	}
}

// ============================================================================
// Read / Join / Export Benchmarks
// ============================================================================

// BenchmarkReadCSV benchmarks parsing with type inference.
func BenchmarkReadCSV(b *testing.B) {
	data := generateTestCSV(1000)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := ReadCSV(bytes.NewReader(data)); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkLeftJoin benchmarks a join where every key matches one data row.
func BenchmarkLeftJoin(b *testing.B) {
	for _, rows := range []int{100, 10000} {
		b.Run(strconv.Itoa(rows), func(b *testing.B) {
			keys, data := benchTables(b, rows)

			b.ResetTimer()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := LeftJoin(keys, data, DefaultJoinOptions()); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkWriteXLSX benchmarks the streamed workbook export.
func BenchmarkWriteXLSX(b *testing.B) {
	keys, data := benchTables(b, 1000)
	joined, err := LeftJoin(keys, data, DefaultJoinOptions())
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if err := WriteXLSX(io.Discard, joined, DefaultSheetName); err != nil {
			b.Fatal(err)
		}
	}
}

// ============================================================================
// Helper Functions
// ============================================================================

// generateTestCSV generates CSV data with the specified number of rows.
func generateTestCSV(rows int) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	w.Write([]string{"ID", "Name", "Email", "Date", "Amount", "Status"})
	for i := 0; i < rows; i++ {
		w.Write([]string{
			strconv.Itoa(1000 + i),
			"John Doe",
			"john@example.com",
			"2024-01-15",
			"1234.56",
			"active",
		})
	}
	w.Flush()

	return buf.Bytes()
}

func benchTables(b *testing.B, rows int) (*Table, *Table) {
	b.Helper()
	ids := make([]Value, rows)
	names := make([]Value, rows)
	vals := make([]Value, rows)
	for i := range ids {
		ids[i] = Number(float64(i))
		names[i] = Text("row " + strconv.Itoa(i))
		vals[i] = Number(float64(i) * 1.5)
	}

	keys, err := NewTable([]string{"ID", "Name"}, ids, names)
	if err != nil {
		b.Fatal(err)
	}
	data, err := NewTable([]string{"ID", "Val"}, ids, vals)
	if err != nil {
		b.Fatal(err)
	}
	return keys, data
}
