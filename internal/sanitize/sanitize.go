// Package sanitize cleans user-supplied labels (well names, negative-control
// selectors, scenario names) before they are echoed back to MCP clients,
// written to the audit trail or rendered into chart titles.
package sanitize

import (
	"regexp"
	"strings"
)

// MaxLabelLength is the maximum allowed length for a label, in bytes.
const MaxLabelLength = 64

var (
	// reXMLTag matches XML/HTML tags including those with attributes and self-closing tags.
	reXMLTag = regexp.MustCompile(`<[/?!]?[a-zA-Z][a-zA-Z0-9]*(?:\s+[^>]*)?/?>|<\?[^?]*\?>`)

	// reWhitespace matches runs of whitespace, including newlines and tabs.
	reWhitespace = regexp.MustCompile(`\s+`)
)

// Label sanitizes a well or control name. It strips control characters and
// markup tags, collapses whitespace to single spaces and truncates to
// MaxLabelLength without splitting a UTF-8 sequence.
//
// Labels are matched against plate positions and group labels, so ordinary
// names like "Neg 1", "A1" or "standard_3" pass through unchanged.
func Label(input string) string {
	if input == "" {
		return ""
	}

	s := stripControlChars(input)
	s = reXMLTag.ReplaceAllString(s, "")
	s = reWhitespace.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	if len(s) > MaxLabelLength {
		cut := MaxLabelLength
		for cut > 0 && !isRuneStart(s[cut]) {
			cut--
		}
		s = strings.TrimSpace(s[:cut])
	}

	return s
}

// Labels sanitizes each label and drops the ones that end up empty.
func Labels(inputs []string) []string {
	if inputs == nil {
		return nil
	}
	out := make([]string, 0, len(inputs))
	for _, in := range inputs {
		if s := Label(in); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// stripControlChars removes ASCII control characters (0x00-0x1F, 0x7F).
// Newlines and tabs become spaces so words stay separated.
func stripControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\t' || r == '\r':
			b.WriteRune(' ')
		case r < 0x20 || r == 0x7f:
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
