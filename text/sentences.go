// Package text provides sentence segmentation for building page excerpts.
package text

import (
	"iter"
	"unicode"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// Splitter segments plain text into sentences. A nil Splitter is valid and
// treats the whole input as one sentence.
type Splitter struct {
	*sentences.DefaultSentenceTokenizer
}

// NewSplitter returns a splitter for the site language. Only the English
// model is compiled in; other languages get a nil splitter and excerpts
// degrade to whole-text.
func NewSplitter(lang language.Tag, log *zap.Logger) *Splitter {
	base, confidence := lang.Base()
	if confidence == language.No || base.String() != "en" {
		log.Warn("No sentence tokenizer model for language, excerpts will use whole text", zap.Stringer("language", lang))
		return nil
	}
	tok, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		log.Warn("Unable to load sentence tokenizer data", zap.Error(err))
		return nil
	}
	return &Splitter{tok}
}

// Split returns the input as a slice of sentences.
// For early-exit consumers use the Sentences iterator instead.
func (s *Splitter) Split(in string) []string {
	var result []string
	for sentence := range s.Sentences(in) {
		result = append(result, sentence)
	}
	return result
}

// Sentences iterates over sentences of in.
//
// The tokenizer attaches a sentence's trailing whitespace to the start of
// the following sentence; that whitespace is moved back so concatenating
// consecutive sentences reproduces the original spacing.
func (s *Splitter) Sentences(in string) iter.Seq[string] {
	return func(yield func(string) bool) {
		if s == nil {
			yield(in)
			return
		}

		sentences := s.Tokenize(in)
		if len(sentences) == 0 {
			return
		}

		for i := 0; i < len(sentences)-1; i++ {
			text := sentences[i].Text
			nextText := sentences[i+1].Text
			for idx, sym := range nextText {
				if !unicode.IsSpace(sym) {
					text = text + nextText[0:idx]
					sentences[i+1].Text = nextText[idx:]
					break
				}
			}
			if !yield(text) {
				return
			}
		}
		yield(sentences[len(sentences)-1].Text)
	}
}
