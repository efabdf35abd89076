package debug

import (
	"strings"
	"testing"
)

func TestTreeWriter(t *testing.T) {
	tw := NewTreeWriter()
	tw.Line(0, "Blocks: %d", 2)
	tw.Line(1, "Block[%s]", "paragraph")
	tw.TextBlock(2, "text", "hello world")
	tw.Line(1, "Block[%s]", "divider")

	want := "Blocks: 2\n  Block[paragraph]\n    text: \"hello world\"\n  Block[divider]\n"
	if got := tw.String(); got != want {
		t.Errorf("dump:\n%q\nwant:\n%q", got, want)
	}
}

func TestEncodeText(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "plain", input: "hello", want: `"hello"`},
		{name: "quotes_escaped", input: `say "hi"`, want: `"say \"hi\""`},
		{name: "newline_escaped", input: "one\ntwo", want: `"one\ntwo"`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := encodeText(tc.input); got != tc.want {
				t.Errorf("encodeText(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestEncodeText_TruncatesLongValues(t *testing.T) {
	long := strings.Repeat("я", maxTextRunes+25)

	got := encodeText(long)
	if !strings.HasSuffix(got, " (25 more)") {
		t.Errorf("missing truncation marker: %q", got)
	}
	if strings.Count(got, "я") != maxTextRunes {
		t.Errorf("kept %d runes, want %d", strings.Count(got, "я"), maxTextRunes)
	}

	exact := strings.Repeat("a", maxTextRunes)
	if got := encodeText(exact); strings.Contains(got, "more") {
		t.Errorf("value at the limit must not be truncated: %q", got)
	}
}
