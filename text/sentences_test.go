package text

import (
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"
	"golang.org/x/text/language"
)

func TestNewSplitter(t *testing.T) {
	if s := NewSplitter(language.English, zaptest.NewLogger(t)); s == nil {
		t.Fatal("expected a splitter for English")
	}
	if s := NewSplitter(language.MustParse("en-US"), zaptest.NewLogger(t)); s == nil {
		t.Fatal("expected a splitter for en-US")
	}
	if s := NewSplitter(language.Japanese, zaptest.NewLogger(t)); s != nil {
		t.Fatal("expected nil splitter for a language without a model")
	}
}

func TestSplit(t *testing.T) {
	s := NewSplitter(language.English, zaptest.NewLogger(t))

	in := "First sentence here. Second one follows! And a third?"
	got := s.Split(in)
	if len(got) != 3 {
		t.Fatalf("Split returned %d sentences: %q", len(got), got)
	}
	if !strings.HasPrefix(got[0], "First sentence here.") {
		t.Errorf("first sentence = %q", got[0])
	}
	// Moving inter-sentence whitespace around must not lose characters.
	if joined := strings.Join(got, ""); joined != in {
		t.Errorf("concatenated sentences = %q, want original input", joined)
	}
}

func TestSplit_NilSplitter(t *testing.T) {
	var s *Splitter
	got := s.Split("One. Two.")
	if len(got) != 1 || got[0] != "One. Two." {
		t.Errorf("nil splitter Split = %q, want whole input", got)
	}
}

func TestSentences_EarlyStop(t *testing.T) {
	s := NewSplitter(language.English, zaptest.NewLogger(t))

	count := 0
	for range s.Sentences("One. Two. Three. Four.") {
		count++
		if count == 2 {
			break
		}
	}
	if count != 2 {
		t.Errorf("iterated %d sentences, want 2", count)
	}
}
