package render

import (
	"regexp"
	"strings"

	"nsg/notion"
)

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
)

func escapeText(s string) string {
	return textEscaper.Replace(s)
}

func escapeAttr(s string) string {
	return attrEscaper.Replace(s)
}

// renderRichText serializes an ordered span sequence to inline markup. Spans
// concatenate in order, each wrapped according to its own annotations.
func renderRichText(spans []notion.RichText) string {
	var buf strings.Builder
	for i := range spans {
		buf.WriteString(renderSpan(&spans[i]))
	}
	return buf.String()
}

// renderSpan emits one span: escape first, then line breaks, then annotation
// wrappers code innermost to bold outermost, then color, then the link. The
// order is fixed so repeated renders cannot reshuffle the nesting.
func renderSpan(span *notion.RichText) string {
	var out, link string
	switch span.Kind {
	case notion.RichTextEquation:
		expr := ""
		if span.Equation != nil {
			expr = span.Equation.Expression
		}
		out = `<span class="equation" data-expression="` + escapeAttr(expr) + `">` + escapeText(expr) + `</span>`
		link = span.Href
	case notion.RichTextMention:
		out = renderMention(span)
		link = ""
	default:
		text := span.PlainText
		if span.Text != nil {
			text = span.Text.Content
			link = span.Text.Link
		}
		if link == "" {
			link = span.Href
		}
		out = strings.ReplaceAll(escapeText(text), "\n", "<br>")
	}

	ann := span.Annotations
	if ann.Code {
		out = "<code>" + out + "</code>"
	}
	if ann.Underline {
		out = "<u>" + out + "</u>"
	}
	if ann.Strikethrough {
		out = "<s>" + out + "</s>"
	}
	if ann.Italic {
		out = "<em>" + out + "</em>"
	}
	if ann.Bold {
		out = "<strong>" + out + "</strong>"
	}
	if ann.Color != "" && ann.Color != "default" {
		out = `<span class="color-` + escapeAttr(ann.Color) + `">` + out + "</span>"
	}
	if link != "" {
		out = `<a href="` + escapeAttr(link) + `">` + out + "</a>"
	}
	return out
}

// renderMention keeps mentions textual: an at-mention for users, the
// referenced title for pages and databases, the literal date or range for
// dates. The API always provides a readable plain_text to fall back on.
func renderMention(span *notion.RichText) string {
	m := span.Mention
	if m == nil {
		return escapeText(span.PlainText)
	}
	switch m.Kind {
	case notion.MentionUser:
		return "@" + escapeText(span.PlainText)
	case notion.MentionDate:
		if m.Date != nil && m.Date.Start != "" {
			if m.Date.End != "" {
				return escapeText(m.Date.Start) + " → " + escapeText(m.Date.End)
			}
			return escapeText(m.Date.Start)
		}
		return escapeText(span.PlainText)
	default:
		return escapeText(span.PlainText)
	}
}

var (
	youtubeRe = regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/)([A-Za-z0-9_-]{6,})`)
	vimeoRe   = regexp.MustCompile(`vimeo\.com/(\d+)`)
)

// embedFrame rewrites recognized video page URLs to their player URLs.
func embedFrame(rawURL string) (string, bool) {
	if m := youtubeRe.FindStringSubmatch(rawURL); m != nil {
		return "https://www.youtube.com/embed/" + m[1], true
	}
	if m := vimeoRe.FindStringSubmatch(rawURL); m != nil {
		return "https://player.vimeo.com/video/" + m[1], true
	}
	return "", false
}
