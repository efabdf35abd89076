// Package debug implements helpers for readable structure dumps stored in
// debug reports.
package debug

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// maxTextRunes caps quoted values, page paragraphs can be arbitrarily long
// and a dump only needs enough of one to recognize the block.
const maxTextRunes = 120

type TreeWriter struct {
	w *strings.Builder
}

func NewTreeWriter() *TreeWriter {
	return &TreeWriter{w: &strings.Builder{}}
}

func (tw TreeWriter) String() string {
	return tw.w.String()
}

// Line writes one indented formatted line.
func (tw TreeWriter) Line(depth int, format string, args ...any) {
	tw.indent(depth)
	fmt.Fprintf(tw.w, format, args...)
	tw.w.WriteByte('\n')
}

// TextBlock writes a labeled value, quoted and truncated to a readable size.
func (tw TreeWriter) TextBlock(depth int, label, value string) {
	tw.indent(depth)
	tw.w.WriteString(label)
	tw.w.WriteString(": ")
	tw.w.WriteString(encodeText(value))
	tw.w.WriteByte('\n')
}

func (tw TreeWriter) indent(depth int) {
	for range depth {
		tw.w.WriteString("  ")
	}
}

func encodeText(raw string) string {
	if raw == "" {
		return raw
	}
	if utf8.RuneCountInString(raw) > maxTextRunes {
		runes := []rune(raw)
		return strconv.Quote(string(runes[:maxTextRunes])) + fmt.Sprintf(" (%d more)", len(runes)-maxTextRunes)
	}
	return strconv.Quote(raw)
}
