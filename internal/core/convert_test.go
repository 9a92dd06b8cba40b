package core

import (
	"testing"

	"github.com/google/uuid"
)

func TestToPgText(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValid bool
		wantStr   string
	}{
		{name: "simple text", input: "hello", wantValid: true, wantStr: "hello"},
		{name: "trims whitespace", input: "  keys.xlsx  ", wantValid: true, wantStr: "keys.xlsx"},
		{name: "empty is null", input: "", wantValid: false},
		{name: "whitespace only is null", input: "   ", wantValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToPgText(tt.input)
			if got.Valid != tt.wantValid {
				t.Fatalf("ToPgText(%q).Valid = %v, want %v", tt.input, got.Valid, tt.wantValid)
			}
			if got.Valid && got.String != tt.wantStr {
				t.Errorf("ToPgText(%q).String = %q, want %q", tt.input, got.String, tt.wantStr)
			}
		})
	}
}

func TestToPgUUID(t *testing.T) {
	id := uuid.New().String()

	got := ToPgUUID(id)
	if !got.Valid {
		t.Fatalf("ToPgUUID(%q) is invalid", id)
	}
	if back := PgUUIDToString(got); back != id {
		t.Errorf("PgUUIDToString = %q, want %q", back, id)
	}

	if ToPgUUID("").Valid {
		t.Error("empty string should be invalid")
	}
	if ToPgUUID("not-a-uuid").Valid {
		t.Error("malformed uuid should be invalid")
	}
	if s := PgUUIDToString(ToPgUUID("")); s != "" {
		t.Errorf("invalid uuid renders %q, want empty", s)
	}
}

func TestCleanCell(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain text unchanged", input: "hello", want: "hello"},
		{name: "empty string", input: "", want: ""},
		{name: "whitespace preserved", input: "  A  ", want: "  A  "},
		{name: "excel text formula", input: `="00123"`, want: "00123"},
		{name: "excel empty text formula", input: `=""`, want: ""},
		{name: "bare formula unchanged", input: "=SUM(A1)", want: "=SUM(A1)"},
		{name: "unterminated formula unchanged", input: `="abc`, want: `="abc`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanCell(tt.input); got != tt.want {
				t.Errorf("CleanCell(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
