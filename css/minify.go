// Package css prepares the site stylesheet for publishing. The rewrite works
// at the token level: comments go away and whitespace is reduced to what the
// grammar actually needs, everything else passes through byte for byte.
package css

import (
	"bytes"
	"io"

	parse "github.com/tdewolff/parse/v2"
	cssparse "github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

// Minify strips comments and redundant whitespace from a stylesheet. It
// never fails; tokens the lexer cannot classify are kept as written.
func Minify(data []byte) []byte {
	l := cssparse.NewLexer(parse.NewInput(bytes.NewReader(data)))

	var out bytes.Buffer
	out.Grow(len(data))

	var (
		pendingSpace bool
		prevType     cssparse.TokenType
		prevDelim    byte
	)
	for {
		tt, text := l.Next()
		switch tt {
		case cssparse.ErrorToken:
			return out.Bytes()
		case cssparse.CommentToken:
			continue
		case cssparse.WhitespaceToken:
			pendingSpace = out.Len() > 0
			continue
		}
		if pendingSpace && spaceNeeded(prevType, prevDelim, tt, text) {
			out.WriteByte(' ')
		}
		out.Write(text)
		pendingSpace = false
		prevType = tt
		prevDelim = 0
		if tt == cssparse.DelimToken && len(text) > 0 {
			prevDelim = text[0]
		}
	}
}

// spaceNeeded keeps whitespace only between two value or selector words.
// Next to separators it is redundant, and the child/sibling combinators
// carry the relation themselves.
func spaceNeeded(prev cssparse.TokenType, prevDelim byte, next cssparse.TokenType, nextText []byte) bool {
	switch prev {
	case cssparse.LeftBraceToken, cssparse.RightBraceToken, cssparse.SemicolonToken,
		cssparse.ColonToken, cssparse.CommaToken, cssparse.LeftParenthesisToken, cssparse.LeftBracketToken:
		return false
	case cssparse.DelimToken:
		switch prevDelim {
		case '>', '+', '~':
			return false
		}
	}
	switch next {
	case cssparse.LeftBraceToken, cssparse.RightBraceToken, cssparse.SemicolonToken,
		cssparse.ColonToken, cssparse.CommaToken, cssparse.RightParenthesisToken, cssparse.RightBracketToken:
		return false
	case cssparse.DelimToken:
		if len(nextText) > 0 {
			switch nextText[0] {
			case '>', '+', '~', '!':
				return false
			}
		}
	}
	return true
}

// Check runs the stylesheet through the grammar parser and logs what it
// cannot digest. Minify keeps unparsable tokens anyway, so problems here are
// warnings for the site author, not failures.
func Check(data []byte, log *zap.Logger) {
	input := parse.NewInput(bytes.NewReader(data))
	p := cssparse.NewParser(input, false)
	for {
		gt, _, _ := p.Next()
		if gt == cssparse.ErrorGrammar {
			if err := p.Err(); err != nil && err != io.EOF {
				log.Warn("Stylesheet has parse problems", zap.Error(err))
			}
			return
		}
	}
}
