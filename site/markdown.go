package site

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/adrg/frontmatter"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"go.uber.org/zap"
)

type localFrontMatter struct {
	Title     string   `yaml:"title"`
	Slug      string   `yaml:"slug"`
	Date      string   `yaml:"date"`
	Published *bool    `yaml:"published"`
	Tags      []string `yaml:"tags"`
}

// LoadLocalPages reads markdown files with YAML front matter from dir and
// converts them to entries. A missing or empty directory is not an error, the
// feature is optional. Pages marked published: false are skipped.
func LoadLocalPages(dir string, log *zap.Logger) ([]Entry, error) {
	if dir == "" {
		return nil, nil
	}
	names, err := filepath.Glob(filepath.Join(dir, "*.md"))
	if err != nil {
		return nil, fmt.Errorf("unable to list pages in '%s': %w", dir, err)
	}
	slices.Sort(names)

	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
	)

	var entries []Entry
	for _, name := range names {
		entry, ok, err := loadLocalPage(md, name)
		if err != nil {
			return nil, fmt.Errorf("unable to load page '%s': %w", name, err)
		}
		if !ok {
			log.Debug("Skipping unpublished page", zap.String("file", name))
			continue
		}
		log.Debug("Loaded local page", zap.String("file", name), zap.String("slug", entry.Slug))
		entries = append(entries, entry)
	}
	return entries, nil
}

func loadLocalPage(md goldmark.Markdown, name string) (Entry, bool, error) {
	f, err := os.Open(name)
	if err != nil {
		return Entry{}, false, err
	}
	defer f.Close()

	var fm localFrontMatter
	body, err := frontmatter.Parse(f, &fm)
	if err != nil {
		return Entry{}, false, fmt.Errorf("bad front matter: %w", err)
	}
	if fm.Published != nil && !*fm.Published {
		return Entry{}, false, nil
	}

	var buf bytes.Buffer
	if err := md.Convert(body, &buf); err != nil {
		return Entry{}, false, fmt.Errorf("markdown conversion failed: %w", err)
	}

	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	title := fm.Title
	if title == "" {
		title = stem
	}

	date, err := localPageDate(f, fm.Date)
	if err != nil {
		return Entry{}, false, err
	}

	return Entry{
		Slug:     PageSlug(fm.Slug, stem),
		Title:    title,
		Date:     date,
		Updated:  date,
		Tags:     fm.Tags,
		Fragment: template.HTML(buf.String()),
	}, true, nil
}

// localPageDate takes the front matter date when present, file modification
// time otherwise.
func localPageDate(f *os.File, raw string) (time.Time, error) {
	if raw == "" {
		fi, err := f.Stat()
		if err != nil {
			return time.Time{}, err
		}
		return fi.ModTime(), nil
	}
	if date, err := time.Parse("2006-01-02", raw); err == nil {
		return date, nil
	}
	date, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad date '%s': %w", raw, err)
	}
	return date, nil
}
