package sanitize

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestLabel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "passthrough position", input: "A1", want: "A1"},
		{name: "passthrough control name", input: "Neg 1", want: "Neg 1"},
		{name: "passthrough group label", input: "standard_3", want: "standard_3"},
		{name: "strip null bytes", input: "Neg\x00 1", want: "Neg 1"},
		{name: "strip control characters", input: "Pat\x01ient\x07 A", want: "Patient A"},
		{name: "strip delete", input: "B\x7f2", want: "B2"},
		{name: "newlines become spaces", input: "Patient\nA", want: "Patient A"},
		{name: "collapse whitespace", input: "  Neg \t\t 2  ", want: "Neg 2"},
		{name: "strip tags", input: "<b>Pos</b>", want: "Pos"},
		{name: "strip processing instruction", input: `<?xml version="1.0"?>Blank`, want: "Blank"},
		{name: "keep comparison text", input: "OD < 0.1", want: "OD < 0.1"},
		{name: "unicode preserved", input: "Antigen µ", want: "Antigen µ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Label(tt.input); got != tt.want {
				t.Errorf("Label(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestLabel_Truncates(t *testing.T) {
	got := Label(strings.Repeat("x", MaxLabelLength+20))
	if len(got) != MaxLabelLength {
		t.Errorf("len = %d, want %d", len(got), MaxLabelLength)
	}

	// Multi-byte runes straddling the limit are dropped whole.
	got = Label(strings.Repeat("é", MaxLabelLength))
	if len(got) > MaxLabelLength {
		t.Errorf("len = %d, exceeds %d", len(got), MaxLabelLength)
	}
	if !utf8.ValidString(got) {
		t.Errorf("truncation produced invalid UTF-8: %q", got)
	}
}

func TestLabels(t *testing.T) {
	got := Labels([]string{"Neg 1", "\x00\x01", "  Neg 2 "})
	if len(got) != 2 || got[0] != "Neg 1" || got[1] != "Neg 2" {
		t.Errorf("Labels = %q", got)
	}
	if Labels(nil) != nil {
		t.Error("Labels(nil) should be nil")
	}
}
