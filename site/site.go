// Package site renders the static surface of the generated site: page and
// index documents from embedded templates, the stylesheet, the feed and the
// sitemap. It knows nothing about where content comes from, callers hand it
// ready Entry values.
package site

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	sprig "github.com/go-task/slim-sprig/v3"
	"github.com/maruel/natural"
	"go.uber.org/zap"

	"nsg/config"
	"nsg/css"
	"nsg/text"
)

//go:embed assets/page.html.tmpl assets/index.html.tmpl
var templateFS embed.FS

//go:embed assets/default.css
var defaultStylesheet []byte

// Entry is a single publishable page prepared for templating. Fragment is
// trusted HTML produced by our own renderer, everything else is plain text.
type Entry struct {
	Slug     string
	Title    string
	Date     time.Time
	Updated  time.Time
	Tags     []string
	Fragment template.HTML
	Excerpt  string
	Cover    string // path relative to the output dir, or an absolute URL
}

type siteMeta struct {
	Title     string
	Subtitle  string
	Author    string
	Language  string
	BaseURL   string
	Generated time.Time
}

// entryView is what templates see, Entry plus resolved absolute locations.
type entryView struct {
	Entry
	URL      string
	CoverURL string
}

type pageData struct {
	Site siteMeta
	Page entryView
}

type indexData struct {
	Site    siteMeta
	Tags    []string
	Entries []entryView
}

// Builder writes site documents into the configured output directory.
type Builder struct {
	conf     *config.SiteConfig
	log      *zap.Logger
	splitter *text.Splitter
	page     *template.Template
	index    *template.Template
	started  time.Time
}

func NewBuilder(conf *config.SiteConfig, log *zap.Logger) (*Builder, error) {
	funcMap := sprig.HtmlFuncMap()

	page, err := template.New("page.html.tmpl").Funcs(funcMap).ParseFS(templateFS, "assets/page.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("unable to parse page template: %w", err)
	}
	index, err := template.New("index.html.tmpl").Funcs(funcMap).ParseFS(templateFS, "assets/index.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("unable to parse index template: %w", err)
	}

	return &Builder{
		conf:     conf,
		log:      log,
		splitter: text.NewSplitter(conf.LanguageTag(), log),
		page:     page,
		index:    index,
		started:  time.Now(),
	}, nil
}

func (b *Builder) meta() siteMeta {
	return siteMeta{
		Title:     b.conf.Title,
		Subtitle:  b.conf.Subtitle,
		Author:    b.conf.Author,
		Language:  b.conf.Language,
		BaseURL:   b.conf.AbsoluteURL(""),
		Generated: b.started,
	}
}

func (b *Builder) view(e Entry) entryView {
	v := entryView{
		Entry: e,
		URL:   b.conf.AbsoluteURL(e.Slug + ".html"),
	}
	switch {
	case e.Cover == "":
	case strings.HasPrefix(e.Cover, "http://"), strings.HasPrefix(e.Cover, "https://"):
		v.CoverURL = e.Cover
	default:
		v.CoverURL = b.conf.AbsoluteURL(e.Cover)
	}
	return v
}

// WritePage renders a single page document and returns its file name relative
// to the output directory.
func (b *Builder) WritePage(e Entry) (string, error) {
	name := e.Slug + ".html"

	var buf bytes.Buffer
	if err := b.page.Execute(&buf, pageData{Site: b.meta(), Page: b.view(e)}); err != nil {
		return "", fmt.Errorf("unable to render page '%s': %w", e.Slug, err)
	}
	if err := b.writeFile(name, buf.Bytes()); err != nil {
		return "", err
	}
	b.log.Debug("Wrote page", zap.String("file", name), zap.String("title", e.Title))
	return name, nil
}

// WriteIndex renders the front page. Entries are reordered newest first and
// the combined tag set goes into the header navigation.
func (b *Builder) WriteIndex(entries []Entry) error {
	SortEntries(entries)

	views := make([]entryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, b.view(e))
	}

	var buf bytes.Buffer
	data := indexData{Site: b.meta(), Tags: collectTags(entries), Entries: views}
	if err := b.index.Execute(&buf, data); err != nil {
		return fmt.Errorf("unable to render index: %w", err)
	}
	if err := b.writeFile("index.html", buf.Bytes()); err != nil {
		return err
	}
	b.log.Debug("Wrote index", zap.Int("entries", len(entries)))
	return nil
}

// WriteStylesheet combines the built-in stylesheet with the user supplied one
// when configured, minifies the result and writes style.css. Suspicious user
// CSS is reported but still passed through.
func (b *Builder) WriteStylesheet() error {
	data := slices.Clone(defaultStylesheet)
	if b.conf.StylesheetPath != "" {
		user, err := os.ReadFile(b.conf.StylesheetPath)
		if err != nil {
			return fmt.Errorf("unable to read stylesheet: %w", err)
		}
		data = append(data, '\n')
		data = append(data, user...)
	}
	css.Check(data, b.log)
	return b.writeFile("style.css", css.Minify(data))
}

func (b *Builder) writeFile(name string, data []byte) error {
	path := filepath.Join(b.conf.OutputDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("unable to write '%s': %w", path, err)
	}
	return nil
}

// SortEntries orders entries newest first. Slug breaks date ties so output is
// stable between runs.
func SortEntries(entries []Entry) {
	slices.SortStableFunc(entries, func(a, b Entry) int {
		switch {
		case a.Date.After(b.Date):
			return -1
		case b.Date.After(a.Date):
			return 1
		}
		return strings.Compare(a.Slug, b.Slug)
	})
}

func collectTags(entries []Entry) []string {
	seen := make(map[string]struct{})
	var tags []string
	for _, e := range entries {
		for _, tag := range e.Tags {
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			tags = append(tags, tag)
		}
	}
	slices.SortFunc(tags, func(a, b string) int {
		if natural.Less(a, b) {
			return -1
		}
		if natural.Less(b, a) {
			return 1
		}
		return 0
	})
	return tags
}
