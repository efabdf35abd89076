package render

import (
	"testing"

	"nsg/notion"
)

func textSpan(text string) notion.RichText {
	return notion.RichText{
		Kind:      notion.RichTextText,
		PlainText: text,
		Text:      &notion.TextSpan{Content: text},
	}
}

func TestRenderRichText_AnnotationNesting(t *testing.T) {
	tests := []struct {
		name string
		span notion.RichText
		want string
	}{
		{
			name: "plain",
			span: textSpan("x"),
			want: "x",
		},
		{
			name: "bold italic code nest in fixed order",
			span: func() notion.RichText {
				s := textSpan("x")
				s.Annotations = notion.Annotations{Bold: true, Italic: true, Code: true}
				return s
			}(),
			want: "<strong><em><code>x</code></em></strong>",
		},
		{
			name: "all annotations with color and link",
			span: func() notion.RichText {
				s := textSpan("x")
				s.Text.Link = "https://example.com/"
				s.Annotations = notion.Annotations{Bold: true, Italic: true, Strikethrough: true, Underline: true, Code: true, Color: "red"}
				return s
			}(),
			want: `<a href="https://example.com/"><span class="color-red"><strong><em><s><u><code>x</code></u></s></em></strong></span></a>`,
		},
		{
			name: "default color adds no wrapper",
			span: func() notion.RichText {
				s := textSpan("x")
				s.Annotations.Color = "default"
				return s
			}(),
			want: "x",
		},
		{
			name: "background color",
			span: func() notion.RichText {
				s := textSpan("x")
				s.Annotations.Color = "blue_background"
				return s
			}(),
			want: `<span class="color-blue_background">x</span>`,
		},
		{
			name: "escaping before wrapping",
			span: func() notion.RichText {
				s := textSpan("a<b>&c")
				s.Annotations.Bold = true
				return s
			}(),
			want: "<strong>a&lt;b&gt;&amp;c</strong>",
		},
		{
			name: "newlines become breaks",
			span: textSpan("one\ntwo"),
			want: "one<br>two",
		},
		{
			name: "link from href when text carries none",
			span: func() notion.RichText {
				s := textSpan("x")
				s.Href = "https://example.org/"
				return s
			}(),
			want: `<a href="https://example.org/">x</a>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := renderRichText([]notion.RichText{tt.span}); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestRenderRichText_NestingIsStable(t *testing.T) {
	span := textSpan("x")
	span.Annotations = notion.Annotations{Bold: true, Italic: true, Code: true}
	spans := []notion.RichText{span}

	first := renderRichText(spans)
	for i := 0; i < 10; i++ {
		if got := renderRichText(spans); got != first {
			t.Fatalf("nesting changed between runs: %q vs %q", first, got)
		}
	}
}

func TestRenderRichText_SpansConcatenateInOrder(t *testing.T) {
	bold := textSpan("bold")
	bold.Annotations.Bold = true
	got := renderRichText([]notion.RichText{textSpan("a "), bold, textSpan(" z")})
	if got != "a <strong>bold</strong> z" {
		t.Errorf("unexpected output: %q", got)
	}
}

func TestRenderRichText_Equation(t *testing.T) {
	span := notion.RichText{
		Kind:      notion.RichTextEquation,
		PlainText: `a"<b`,
		Equation:  &notion.EquationSpan{Expression: `a"<b`},
	}
	got := renderRichText([]notion.RichText{span})
	// The visible text keeps quotes readable, only the attribute escapes them.
	want := `<span class="equation" data-expression="a&quot;&lt;b">a"&lt;b</span>`
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestRenderRichText_Mentions(t *testing.T) {
	tests := []struct {
		name string
		span notion.RichText
		want string
	}{
		{
			name: "user",
			span: notion.RichText{Kind: notion.RichTextMention, PlainText: "Alex", Mention: &notion.MentionSpan{Kind: notion.MentionUser}},
			want: "@Alex",
		},
		{
			name: "page",
			span: notion.RichText{Kind: notion.RichTextMention, PlainText: "Other page", Mention: &notion.MentionSpan{Kind: notion.MentionPage}},
			want: "Other page",
		},
		{
			name: "single date",
			span: notion.RichText{Kind: notion.RichTextMention, PlainText: "x", Mention: &notion.MentionSpan{Kind: notion.MentionDate, Date: &notion.DateSpan{Start: "2026-01-15"}}},
			want: "2026-01-15",
		},
		{
			name: "date range",
			span: notion.RichText{Kind: notion.RichTextMention, PlainText: "x", Mention: &notion.MentionSpan{Kind: notion.MentionDate, Date: &notion.DateSpan{Start: "2026-01-15", End: "2026-01-20"}}},
			want: "2026-01-15 → 2026-01-20",
		},
		{
			name: "unknown falls back to plain text",
			span: notion.RichText{Kind: notion.RichTextMention, PlainText: "Today", Mention: &notion.MentionSpan{Kind: notion.MentionUnknown}},
			want: "Today",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := renderRichText([]notion.RichText{tt.span}); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestEmbedFrame(t *testing.T) {
	tests := []struct {
		name  string
		url   string
		want  string
		match bool
	}{
		{"youtube watch", "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=10s", "https://www.youtube.com/embed/dQw4w9WgXcQ", true},
		{"youtube short", "https://youtu.be/dQw4w9WgXcQ", "https://www.youtube.com/embed/dQw4w9WgXcQ", true},
		{"vimeo", "https://vimeo.com/76979871", "https://player.vimeo.com/video/76979871", true},
		{"direct file", "https://example.com/clip.mp4", "", false},
		{"vimeo without id", "https://vimeo.com/about", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := embedFrame(tt.url)
			if ok != tt.match || got != tt.want {
				t.Errorf("expected (%q, %v), got (%q, %v)", tt.want, tt.match, got, ok)
			}
		})
	}
}
