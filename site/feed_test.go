package site

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/beevik/etree"
)

func parseXML(t *testing.T, dir, name string) *etree.Document {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("reading %s: %v", name, err)
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		t.Fatalf("%s is not well formed: %v", name, err)
	}
	return doc
}

func elementText(t *testing.T, doc *etree.Document, path string) string {
	t.Helper()
	el := doc.FindElement(path)
	if el == nil {
		t.Fatalf("element %s not found", path)
	}
	return el.Text()
}

func TestWriteFeed(t *testing.T) {
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
		},
	}
	if err := b.WriteFeed(entries); err != nil {
		t.Fatalf("WriteFeed: %v", err)
	}

	doc := parseXML(t, dir, "feed.xml")
	if got := elementText(t, doc, "/rss/channel/title"); got != "Test Site" {
		t.Errorf("channel title %q", got)
	}
	if got := elementText(t, doc, "/rss/channel/link"); got != "https://example.com/" {
		t.Errorf("channel link %q", got)
	}

	self := doc.FindElement("/rss/channel/atom:link")
	if self == nil {
		t.Fatal("feed is missing the self link")
	}
	if got := self.SelectAttrValue("href", ""); got != "https://example.com/feed.xml" {
		t.Errorf("self link href %q", got)
	}

	items := doc.FindElements("//item")
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if got := items[0].SelectElement("title").Text(); got != "Newer Post" {
		t.Errorf("first item %q, feed should be newest first", got)
	}
	if got := items[0].SelectElement("link").Text(); got != "https://example.com/newer.html" {
		t.Errorf("item link %q", got)
	}
	if _, err := time.Parse(time.RFC1123Z, items[0].SelectElement("pubDate").Text()); err != nil {
		t.Errorf("bad pubDate: %v", err)
	}

	guid := items[1].SelectElement("guid")
	if guid == nil || guid.SelectAttrValue("isPermaLink", "") != "true" {
		t.Error("guid must be a permalink")
	}
	if got := items[1].SelectElement("description").Text(); got != "Old words." {
		t.Errorf("item description %q", got)
	}
	if got := items[1].SelectElement("category").Text(); got != "go" {
		t.Errorf("item category %q", got)
	}
}

func TestWriteFeed_LimitsItems(t *testing.T) {
	b, dir := newTestBuilder(t)

	var entries []Entry
	for i := range 25 {
		entries = append(entries, Entry{
			Slug:  fmt.Sprintf("post-%02d", i),
			Title: fmt.Sprintf("Post %d", i),
			Date:  time.Date(2026, 1, 1, 12, 0, 0, 0, time.Local).AddDate(0, 0, i),
		})
	}
	if err := b.WriteFeed(entries); err != nil {
		t.Fatalf("WriteFeed: %v", err)
	}

	doc := parseXML(t, dir, "feed.xml")
	if got := len(doc.FindElements("//item")); got != feedLimit {
		t.Errorf("expected %d items, got %d", feedLimit, got)
	}
}

func TestWriteSitemap(t *testing.T) {
	b, dir := newTestBuilder(t)

	entries := []Entry{
		{
			Slug:    "older",
			Date:    time.Date(2025, 11, 3, 12, 0, 0, 0, time.Local),
			Updated: time.Date(2025, 12, 24, 12, 0, 0, 0, time.Local),
		},
		{
			Slug: "newer",
			Date: time.Date(2026, 1, 10, 12, 0, 0, 0, time.Local),
		},
	}
	if err := b.WriteSitemap(entries); err != nil {
		t.Fatalf("WriteSitemap: %v", err)
	}

	doc := parseXML(t, dir, "sitemap.xml")
	set := doc.FindElement("/urlset")
	if set == nil {
		t.Fatal("sitemap has no urlset")
	}
	if got := set.SelectAttrValue("xmlns", ""); got != "http://www.sitemaps.org/schemas/sitemap/0.9" {
		t.Errorf("urlset namespace %q", got)
	}

	urls := doc.FindElements("//url")
	if len(urls) != 3 {
		t.Fatalf("expected 3 urls, got %d", len(urls))
	}
	if got := urls[0].SelectElement("loc").Text(); got != "https://example.com/" {
		t.Errorf("first loc %q, index must come first", got)
	}

	var locs []string
	for _, u := range urls {
		locs = append(locs, u.SelectElement("loc").Text())
		if mod := u.SelectElement("lastmod"); mod != nil {
			if _, err := time.Parse("2006-01-02", mod.Text()); err != nil {
				t.Errorf("bad lastmod %q: %v", mod.Text(), err)
			}
		}
	}
	found := false
	for _, loc := range locs {
		if loc == "https://example.com/older.html" {
			found = true
		}
	}
	if !found {
		t.Errorf("sitemap %v is missing a page", locs)
	}
}
