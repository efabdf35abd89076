package site

import (
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"nsg/config"
)

func newTestBuilder(t *testing.T) (*Builder, string) {
	t.Helper()

	dir := t.TempDir()
	conf := &config.SiteConfig{
		OutputDir:        dir,
		BaseURL:          "https://example.com",
		Title:            "Test Site",
		Subtitle:         "field notes",
		Author:           "Jane Doe",
		Language:         "en",
		ExcerptSentences: 2,
	}
	b, err := NewBuilder(conf, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	return b, dir
}

func readOutput(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("reading %s: %v", name, err)
	}
	return string(data)
}

func TestPageSlug(t *testing.T) {
	tests := []struct {
		name     string
		explicit string
		title    string
		want     string
	}{
		{"explicit_wins", "My Slug", "Ignored Title", "my-slug"},
		{"title_fallback", "", "Hello, World!", "hello-world"},
		{"unicode_transliterated", "", "Überraschung Ahead", "uberraschung-ahead"},
		{"blank_explicit", "   ", "Trim Me", "trim-me"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PageSlug(tt.explicit, tt.title); got != tt.want {
				t.Errorf("PageSlug(%q, %q) = %q, want %q", tt.explicit, tt.title, got, tt.want)
			}
		})
	}
}

func TestWritePage(t *testing.T) {
	b, dir := newTestBuilder(t)

	entry := Entry{
		Slug:     "first-post",
		Title:    "First Post",
		Date:     time.Date(2026, 1, 10, 12, 0, 0, 0, time.Local),
		Tags:     []string{"go", "notes"},
		Fragment: template.HTML("<p>Hello <strong>world</strong>.</p>"),
		Excerpt:  "Hello world.",
		Cover:    "images/first-post-cover-abc123def456.png",
	}

	name, err := b.WritePage(entry)
	if err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	if name != "first-post.html" {
		t.Errorf("unexpected file name %q", name)
	}

	page := readOutput(t, dir, name)
	for _, want := range []string{
		`<html lang="en">`,
		`<title>First Post &middot; Test Site</title>`,
		`<h1>First Post</h1>`,
		`<time datetime="2026-01-10">`,
		`<p>Hello <strong>world</strong>.</p>`,
		`<meta name="description" content="Hello world.">`,
		`<meta property="og:url" content="https://example.com/first-post.html">`,
		`<meta property="og:image" content="https://example.com/images/first-post-cover-abc123def456.png">`,
		`<span class="tag">go</span>`,
		`&copy; `,
	} {
		if !strings.Contains(page, want) {
			t.Errorf("page is missing %q", want)
		}
	}
}

func TestWritePage_EscapesTitle(t *testing.T) {
	b, dir := newTestBuilder(t)

	entry := Entry{
		Slug:     "esc",
		Title:    `Tips & <Tricks>`,
		Date:     time.Date(2026, 2, 1, 12, 0, 0, 0, time.Local),
		Fragment: template.HTML("<p>x</p>"),
	}
	if _, err := b.WritePage(entry); err != nil {
		t.Fatalf("WritePage: %v", err)
	}

	page := readOutput(t, dir, "esc.html")
	if !strings.Contains(page, "<h1>Tips &amp; &lt;Tricks&gt;</h1>") {
		t.Error("title was not escaped in page body")
	}
	if strings.Contains(page, "<Tricks>") {
		t.Error("raw title markup leaked into the page")
	}
}

func TestWritePage_RemoteCoverKept(t *testing.T) {
	b, dir := newTestBuilder(t)

	entry := Entry{
		Slug:     "remote",
		Title:    "Remote Cover",
		Date:     time.Date(2026, 2, 2, 12, 0, 0, 0, time.Local),
		Fragment: template.HTML("<p>x</p>"),
		Cover:    "https://cdn.example.org/cover.jpg",
	}
	if _, err := b.WritePage(entry); err != nil {
		t.Fatalf("WritePage: %v", err)
	}

	page := readOutput(t, dir, "remote.html")
	if !strings.Contains(page, `<meta property="og:image" content="https://cdn.example.org/cover.jpg">`) {
		t.Error("absolute cover URL should pass through unchanged")
	}
}

func TestWriteIndex(t *testing.T) {
	b, dir := newTestBuilder(t)

	entries := []Entry{
		{
			Slug:    "older",
			Title:   "Older Post",
			Date:    time.Date(2025, 11, 3, 12, 0, 0, 0, time.Local),
			Tags:    []string{"go"},
			Excerpt: "Old words.",
		},
		{
			Slug:  "newer",
			Title: "Newer Post",
			Date:  time.Date(2026, 1, 10, 12, 0, 0, 0, time.Local),
			Tags:  []string{"go", "v2"},
		},
	}
	if err := b.WriteIndex(entries); err != nil {
		t.Fatalf("WriteIndex: %v", err)
	}

	page := readOutput(t, dir, "index.html")
	newerAt := strings.Index(page, `<a href="newer.html">Newer Post</a>`)
	olderAt := strings.Index(page, `<a href="older.html">Older Post</a>`)
	if newerAt < 0 || olderAt < 0 {
		t.Fatal("index is missing post links")
	}
	if newerAt > olderAt {
		t.Error("index must list newest entries first")
	}
	if got := strings.Count(page, `<span class="tag">go</span>`); got != 1 {
		t.Errorf("tag navigation should list 'go' once, found %d", got)
	}
	if !strings.Contains(page, `<p class="post-excerpt">Old words.</p>`) {
		t.Error("index is missing the excerpt")
	}
}

func TestWriteStylesheet(t *testing.T) {
	b, dir := newTestBuilder(t)

	if err := b.WriteStylesheet(); err != nil {
		t.Fatalf("WriteStylesheet: %v", err)
	}
	sheet := readOutput(t, dir, "style.css")
	if !strings.Contains(sheet, "body{") {
		t.Error("stylesheet should be minified")
	}
	if !strings.Contains(sheet, "display:flex") {
		t.Error("stylesheet is missing layout rules")
	}
}

func TestWriteStylesheet_AppendsUserCSS(t *testing.T) {
	b, dir := newTestBuilder(t)

	custom := filepath.Join(t.TempDir(), "custom.css")
	if err := os.WriteFile(custom, []byte("/* mine */\n.custom { color: red; }\n"), 0644); err != nil {
		t.Fatalf("writing custom css: %v", err)
	}
	b.conf.StylesheetPath = custom

	if err := b.WriteStylesheet(); err != nil {
		t.Fatalf("WriteStylesheet: %v", err)
	}
	sheet := readOutput(t, dir, "style.css")
	if !strings.Contains(sheet, ".custom{color:red;}") {
		t.Error("user rules should come after the built-in ones, minified")
	}
	if strings.Contains(sheet, "/*") {
		t.Error("comments should be stripped")
	}
}

func TestWriteStylesheet_MissingUserCSS(t *testing.T) {
	b, _ := newTestBuilder(t)
	b.conf.StylesheetPath = filepath.Join(t.TempDir(), "nope.css")

	if err := b.WriteStylesheet(); err == nil {
		t.Error("expected an error for unreadable stylesheet")
	}
}

func TestSortEntries(t *testing.T) {
	older := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	entries := []Entry{
		{Slug: "b", Date: older},
		{Slug: "a", Date: older},
		{Slug: "c", Date: newer},
	}
	SortEntries(entries)

	var got []string
	for _, e := range entries {
		got = append(got, e.Slug)
	}
	want := []string{"c", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order %v, want %v", got, want)
		}
	}
}

func TestCollectTags(t *testing.T) {
	entries := []Entry{
		{Tags: []string{"v10", "go"}},
		{Tags: []string{"go", "v2"}},
	}
	got := collectTags(entries)
	want := []string{"go", "v2", "v10"}
	if len(got) != len(want) {
		t.Fatalf("tags %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tags %v, want %v", got, want)
		}
	}
}
