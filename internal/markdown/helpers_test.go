package markdown

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestEscapeV2(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"plain text", "plain text"},
		{"Please upload a valid PDF file.", `Please upload a valid PDF file\.`},
		{"report_v2 (final).pdf", `report\_v2 \(final\)\.pdf`},
		{`back\slash`, `back\\slash`},
		{"", ""},
	}

	for _, test := range tests {
		if got := EscapeV2(test.input); got != test.want {
			t.Errorf("EscapeV2(%q) = %q, want %q", test.input, got, test.want)
		}
	}
}

func TestCodeBlockV2EscapesOnlyBackticksAndBackslashes(t *testing.T) {
	got := CodeBlockV2("a.b `c` \\d")
	want := "```\na.b \\`c\\` \\\\d\n```"

	if got != want {
		t.Fatalf("CodeBlockV2 = %q, want %q", got, want)
	}
}

func TestSplitKeepsShortInput(t *testing.T) {
	chunks := Split("short", 10)
	if len(chunks) != 1 || chunks[0] != "short" {
		t.Fatalf("unexpected chunks: %q", chunks)
	}
}

func TestSplitRespectsLimitAndRunes(t *testing.T) {
	input := strings.Repeat("Привет мир ", 500)
	chunks := Split(input, 100)

	if strings.Join(chunks, "") != input {
		t.Fatalf("chunks do not reassemble input")
	}

	for i, chunk := range chunks {
		if len(chunk) > 100 {
			t.Fatalf("chunk %d exceeds limit: %d", i, len(chunk))
		}
		if !utf8.ValidString(chunk) {
			t.Fatalf("chunk %d cuts a rune: %q", i, chunk)
		}
	}
}

func TestSplitPrefersLineBreaks(t *testing.T) {
	input := strings.Repeat("a", 70) + "\n" + strings.Repeat("b", 70)
	chunks := Split(input, 100)

	if len(chunks) != 2 || chunks[0] != strings.Repeat("a", 70)+"\n" {
		t.Fatalf("unexpected chunks: %q", chunks)
	}
}
