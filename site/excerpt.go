package site

import (
	"html/template"
	"strings"

	"golang.org/x/net/html"
)

// Excerpt derives a short plain text summary from a rendered fragment, taking
// the first configured number of sentences. Empty result means excerpts are
// disabled or the page has no readable text.
func (b *Builder) Excerpt(fragment template.HTML) string {
	limit := b.conf.ExcerptSentences
	if limit <= 0 {
		return ""
	}
	plain := textContent(string(fragment))
	if plain == "" {
		return ""
	}

	var (
		buf   strings.Builder
		taken int
	)
	for sentence := range b.splitter.Sentences(plain) {
		buf.WriteString(sentence)
		if taken++; taken == limit {
			break
		}
	}
	return strings.TrimSpace(buf.String())
}

// textContent flattens fragment markup into plain text. Inline elements keep
// their surrounding text adjacent, block elements become soft breaks so that
// neighboring paragraphs do not glue into one word. The parser is lenient,
// anything it cannot make sense of simply yields no text.
func textContent(fragment string) string {
	root, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return ""
	}

	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			buf.WriteString(n.Data)
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
		if n.Type == html.ElementNode && blockLevel(n.Data) {
			buf.WriteByte('\n')
		}
	}
	walk(root)

	return strings.Join(strings.Fields(buf.String()), " ")
}

func blockLevel(tag string) bool {
	switch tag {
	case "p", "h1", "h2", "h3", "h4", "h5", "h6",
		"ul", "ol", "li", "blockquote", "pre",
		"figure", "figcaption", "table", "tr", "td", "th",
		"div", "details", "summary", "hr", "br":
		return true
	}
	return false
}
