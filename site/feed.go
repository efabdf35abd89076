package site

import (
	"fmt"
	"time"

	"github.com/beevik/etree"
	"go.uber.org/zap"
)

// feedLimit caps the number of items in the RSS channel, the index still
// lists everything.
const feedLimit = 20

// WriteFeed emits an RSS 2.0 channel document with the newest entries.
func (b *Builder) WriteFeed(entries []Entry) error {
	SortEntries(entries)
	if len(entries) > feedLimit {
		entries = entries[:feedLimit]
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	rss := doc.CreateElement("rss")
	rss.CreateAttr("version", "2.0")
	rss.CreateAttr("xmlns:atom", "http://www.w3.org/2005/Atom")

	channel := rss.CreateElement("channel")
	channel.CreateElement("title").SetText(b.conf.Title)
	channel.CreateElement("link").SetText(b.conf.AbsoluteURL(""))
	channel.CreateElement("description").SetText(b.conf.Subtitle)
	if b.conf.Language != "" {
		channel.CreateElement("language").SetText(b.conf.Language)
	}
	channel.CreateElement("lastBuildDate").SetText(b.started.Format(time.RFC1123Z))

	self := channel.CreateElement("atom:link")
	self.CreateAttr("href", b.conf.AbsoluteURL("feed.xml"))
	self.CreateAttr("rel", "self")
	self.CreateAttr("type", "application/rss+xml")

	for _, e := range entries {
		v := b.view(e)
		item := channel.CreateElement("item")
		item.CreateElement("title").SetText(e.Title)
		item.CreateElement("link").SetText(v.URL)
		guid := item.CreateElement("guid")
		guid.CreateAttr("isPermaLink", "true")
		guid.SetText(v.URL)
		item.CreateElement("pubDate").SetText(e.Date.Format(time.RFC1123Z))
		if e.Excerpt != "" {
			item.CreateElement("description").SetText(e.Excerpt)
		}
		for _, tag := range e.Tags {
			item.CreateElement("category").SetText(tag)
		}
	}

	doc.Indent(2)
	data, err := doc.WriteToBytes()
	if err != nil {
		return fmt.Errorf("unable to serialize feed: %w", err)
	}
	if err := b.writeFile("feed.xml", data); err != nil {
		return err
	}
	b.log.Debug("Wrote feed", zap.Int("items", len(entries)))
	return nil
}

// WriteSitemap lists the index and every page for crawlers.
func (b *Builder) WriteSitemap(entries []Entry) error {
	SortEntries(entries)

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	set := doc.CreateElement("urlset")
	set.CreateAttr("xmlns", "http://www.sitemaps.org/schemas/sitemap/0.9")

	addURL := func(loc string, mod time.Time) {
		u := set.CreateElement("url")
		u.CreateElement("loc").SetText(loc)
		if !mod.IsZero() {
			u.CreateElement("lastmod").SetText(mod.Format("2006-01-02"))
		}
	}

	var latest time.Time
	for _, e := range entries {
		if m := entryModTime(e); m.After(latest) {
			latest = m
		}
	}
	addURL(b.conf.AbsoluteURL(""), latest)
	for _, e := range entries {
		addURL(b.conf.AbsoluteURL(e.Slug+".html"), entryModTime(e))
	}

	doc.Indent(2)
	data, err := doc.WriteToBytes()
	if err != nil {
		return fmt.Errorf("unable to serialize sitemap: %w", err)
	}
	if err := b.writeFile("sitemap.xml", data); err != nil {
		return err
	}
	b.log.Debug("Wrote sitemap", zap.Int("urls", len(entries)+1))
	return nil
}

func entryModTime(e Entry) time.Time {
	if !e.Updated.IsZero() {
		return e.Updated
	}
	return e.Date
}
