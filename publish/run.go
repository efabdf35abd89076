// Package publish drives one full content sync: every published database
// page through the renderer into the output directory, then the site wide
// documents, then the optional git handoff.
package publish

import (
	"context"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"nsg/config"
	"nsg/images"
	"nsg/journal"
	"nsg/notion"
	"nsg/render"
	"nsg/site"
	"nsg/state"
)

func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("publish")

	env.Force = cmd.Bool("force")
	env.DryRun = cmd.Bool("dry-run")
	env.Prune = cmd.Bool("prune")
	env.OnlyPages = cmd.StringSlice("pages")

	databaseID, err := env.Cfg.Notion.NormalizedDatabaseID()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(env.Cfg.Site.OutputDir, 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}

	client, err := notion.NewClient(&env.Cfg.Notion, log.Named("notion"), notion.WithReport(env.Rpt))
	if err != nil {
		return err
	}

	log.Info("Publishing starting",
		zap.String("database", databaseID),
		zap.String("destination", env.Cfg.Site.OutputDir),
		zap.Bool("dry_run", env.DryRun))
	defer func(start time.Time) {
		log.Info("Publishing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	p, err := newPublisher(env, client, log)
	if err != nil {
		return err
	}
	defer p.close()

	return p.run(ctx, databaseID)
}

// publisher carries everything one sync run needs. It is built per run and
// never shared.
type publisher struct {
	conf    *config.Config
	log     *zap.Logger
	rpt     *config.Report
	client  *notion.Client
	cache   *images.Cache
	journal *journal.Journal
	site    *site.Builder

	force  bool
	dryRun bool
	prune  bool
	only   map[string]struct{}

	published int
	upToDate  int
	failed    int
}

func newPublisher(env *state.LocalEnv, client *notion.Client, log *zap.Logger) (*publisher, error) {
	cache, err := images.NewCache(env.Cfg.Site.OutputDir, log.Named("images"))
	if err != nil {
		return nil, err
	}
	jrn, err := journal.Open(env.Cfg.Site.OutputDir, log.Named("journal"))
	if err != nil {
		return nil, err
	}
	builder, err := site.NewBuilder(&env.Cfg.Site, log.Named("site"))
	if err != nil {
		jrn.Close()
		return nil, err
	}

	only := make(map[string]struct{}, len(env.OnlyPages))
	for _, slug := range env.OnlyPages {
		only[slug] = struct{}{}
	}

	return &publisher{
		conf:    env.Cfg,
		log:     log,
		rpt:     env.Rpt,
		client:  client,
		cache:   cache,
		journal: jrn,
		site:    builder,
		force:   env.Force,
		dryRun:  env.DryRun,
		prune:   env.Prune,
		only:    only,
	}, nil
}

func (p *publisher) close() {
	if err := p.journal.Close(); err != nil {
		p.log.Warn("Unable to close journal", zap.Error(err))
	}
}

func (p *publisher) run(ctx context.Context, databaseID string) error {
	pages, err := p.client.QueryDatabase(ctx, databaseID)
	if err != nil {
		return fmt.Errorf("unable to query source database: %w", err)
	}
	p.log.Info("Found published pages", zap.Int("count", len(pages)))

	var result error
	entries := make([]site.Entry, 0, len(pages))
	for i := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		page := &pages[i]
		slug := pageSlug(page)
		if len(p.only) > 0 {
			// the filter accepts page IDs and slugs alike
			_, byID := p.only[page.ID]
			_, bySlug := p.only[slug]
			if !byID && !bySlug {
				continue
			}
		}
		if p.dryRun {
			p.planPage(page, slug)
			continue
		}
		entry, err := p.publishPage(ctx, page, slug)
		if err != nil {
			p.failed++
			p.log.Error("Unable to publish page", zap.String("page", page.ID), zap.String("slug", slug), zap.Error(err))
			result = multierr.Append(result, fmt.Errorf("page %s (%s): %w", page.ID, slug, err))
			if fallback := p.lastGood(page); fallback != nil {
				entries = append(entries, *fallback)
			}
			continue
		}
		entries = append(entries, *entry)
	}

	if p.dryRun {
		p.log.Info("Dry run completed, nothing written",
			zap.Int("would_publish", p.published), zap.Int("up_to_date", p.upToDate))
		return result
	}

	local, err := site.LoadLocalPages(p.conf.Site.PagesDir, p.log.Named("site"))
	if err != nil {
		p.log.Error("Unable to load local pages", zap.Error(err))
		result = multierr.Append(result, err)
	}
	for i := range local {
		local[i].Excerpt = p.site.Excerpt(local[i].Fragment)
		if _, err := p.site.WritePage(local[i]); err != nil {
			p.log.Error("Unable to write local page", zap.String("slug", local[i].Slug), zap.Error(err))
			result = multierr.Append(result, err)
			continue
		}
		entries = append(entries, local[i])
	}

	if p.prune {
		if err := p.prunePages(pages); err != nil {
			p.log.Error("Unable to prune removed pages", zap.Error(err))
			result = multierr.Append(result, err)
		}
	}

	for _, doc := range []struct {
		name  string
		write func() error
	}{
		{"index", func() error { return p.site.WriteIndex(entries) }},
		{"feed", func() error { return p.site.WriteFeed(entries) }},
		{"sitemap", func() error { return p.site.WriteSitemap(entries) }},
		{"stylesheet", p.site.WriteStylesheet},
	} {
		if err := doc.write(); err != nil {
			p.log.Error("Unable to write site document", zap.String("document", doc.name), zap.Error(err))
			result = multierr.Append(result, err)
		}
	}

	p.log.Info("Pages processed",
		zap.Int("published", p.published),
		zap.Int("up_to_date", p.upToDate),
		zap.Int("failed", p.failed))

	if p.conf.Git.Enable {
		if result != nil {
			p.log.Warn("Skipping git step, run had errors")
		} else if err := p.gitPush(ctx); err != nil {
			return err
		}
	}
	return result
}

// pageSlug derives the file stem for a page, page ID backs up an untitled
// page so two of those cannot collide.
func pageSlug(page *notion.Page) string {
	fallback := page.Title
	if fallback == "" {
		fallback = page.ID
	}
	return site.PageSlug(page.Slug, fallback)
}

// current reports whether the journaled render of the page is still good.
func (p *publisher) current(prev *journal.Entry, page *notion.Page, slug string) bool {
	return !p.force && prev != nil && prev.Slug == slug && !page.LastEditedTime.After(prev.LastEdited)
}

func (p *publisher) planPage(page *notion.Page, slug string) {
	prev, err := p.journal.Lookup(page.ID)
	if err != nil {
		p.log.Warn("Unable to read journal", zap.String("page", page.ID), zap.Error(err))
	}
	if p.current(prev, page, slug) {
		p.log.Info("Page is up to date", zap.String("slug", slug))
		p.upToDate++
		return
	}
	p.log.Info("Page would be published", zap.String("slug", slug), zap.String("title", page.Title))
	p.published++
}

// publishPage syncs a single page: journal gate, block fetch, render, write,
// journal update. The returned entry feeds the index, feed and sitemap.
func (p *publisher) publishPage(ctx context.Context, page *notion.Page, slug string) (entry *site.Entry, rerr error) {
	log := p.log.With(zap.String("page", page.ID), zap.String("slug", slug))

	log.Info("Page sync starting", zap.String("title", page.Title))
	defer func(start time.Time) {
		// NOTE: image decoding libraries are not mature enough, when multiple
		// pages are being synced we do not want one of them to stop the run.
		if r := recover(); r != nil {
			log.Error("Page sync ended with panic",
				zap.Any("panic", r), zap.Duration("elapsed", time.Since(start)), zap.ByteString("stack", debug.Stack()))
			entry, rerr = nil, fmt.Errorf("page sync panic: %v", r)
		} else {
			log.Info("Page sync completed", zap.Duration("elapsed", time.Since(start)))
		}
	}(time.Now())

	prev, err := p.journal.Lookup(page.ID)
	if err != nil {
		return nil, err
	}
	if p.current(prev, page, slug) {
		log.Info("Page is up to date, skipping")
		p.upToDate++
		return &site.Entry{
			Slug:    slug,
			Title:   page.Title,
			Date:    page.EffectiveDate(),
			Updated: page.LastEditedTime,
			Tags:    page.Tags,
			Excerpt: prev.Excerpt,
			Cover:   prev.Cover,
		}, nil
	}

	blocks, err := p.client.BlockChildren(ctx, page.ID)
	if err != nil {
		return nil, err
	}

	resolver := &recordingResolver{inner: p.cache}
	fragment, err := render.NewRenderer(p.client, resolver, log.Named("render")).Fragment(ctx, blocks, slug)
	if err != nil {
		return nil, err
	}
	if p.rpt != nil {
		p.rpt.StoreData(fmt.Sprintf("pages/%s.html", slug), []byte(fragment))
		p.rpt.StoreData(fmt.Sprintf("pages/%s.tree.txt", slug), []byte(blockTree(blocks)))
	}

	entry = &site.Entry{
		Slug:     slug,
		Title:    page.Title,
		Date:     page.EffectiveDate(),
		Updated:  page.LastEditedTime,
		Tags:     page.Tags,
		Fragment: template.HTML(fragment),
	}
	entry.Excerpt = p.site.Excerpt(entry.Fragment)

	cover, coverOwned := p.pageCover(ctx, page, slug, log)
	entry.Cover = cover

	name, err := p.site.WritePage(*entry)
	if err != nil {
		return nil, err
	}

	outputs := append([]string{name}, resolver.outputs()...)
	if coverOwned {
		outputs = append(outputs, cover)
	}
	if prev != nil {
		p.removeStale(prev.Outputs, outputs, log)
	}
	if err := p.journal.Record(journal.Entry{
		PageID:     page.ID,
		Slug:       slug,
		LastEdited: page.LastEditedTime,
		Excerpt:    entry.Excerpt,
		Cover:      entry.Cover,
		Outputs:    outputs,
	}); err != nil {
		return nil, err
	}

	p.published++
	return entry, nil
}

// pageCover settles what the page's cover reference should be. The second
// result tells whether the file belongs to this page and goes into its
// journaled output list (the shared default cover does not).
func (p *publisher) pageCover(ctx context.Context, page *notion.Page, slug string, log *zap.Logger) (string, bool) {
	conf := &p.conf.Site.Cover

	remote := ""
	if page.Cover != nil {
		remote = page.Cover.URL()
	}
	if remote == "" {
		if !conf.Generate {
			return "", false
		}
		local, err := p.cache.DefaultCover(conf)
		if err != nil {
			log.Warn("Unable to generate default cover", zap.Error(err))
			return "", false
		}
		return local, false
	}
	if !conf.Generate {
		return remote, false
	}
	local, cached, err := p.cache.Cover(ctx, remote, slug, conf)
	if err != nil {
		log.Warn("Unable to cache cover image, linking remote location", zap.String("url", remote), zap.Error(err))
		return remote, false
	}
	if cached {
		log.Debug("Cover already cached", zap.String("path", local))
	}
	return local, true
}

// lastGood rebuilds an index entry for a page whose sync just failed, so the
// site keeps linking the previous render instead of dropping the page.
func (p *publisher) lastGood(page *notion.Page) *site.Entry {
	prev, err := p.journal.Lookup(page.ID)
	if err != nil || prev == nil {
		return nil
	}
	return &site.Entry{
		Slug:    prev.Slug,
		Title:   page.Title,
		Date:    page.EffectiveDate(),
		Updated: prev.LastEdited,
		Tags:    page.Tags,
		Excerpt: prev.Excerpt,
		Cover:   prev.Cover,
	}
}

// removeStale drops files recorded for the previous revision which the fresh
// render no longer produces, a slug change being the usual reason.
func (p *publisher) removeStale(old, current []string, log *zap.Logger) {
	keep := make(map[string]struct{}, len(current))
	for _, path := range current {
		keep[path] = struct{}{}
	}
	for _, path := range old {
		if _, ok := keep[path]; ok {
			continue
		}
		full := filepath.Join(p.conf.Site.OutputDir, path)
		if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
			log.Warn("Unable to remove stale file", zap.String("file", full), zap.Error(err))
			continue
		}
		log.Debug("Removed stale file", zap.String("file", path))
	}
}

// prunePages removes output files and journal entries of pages which are no
// longer in the database query result.
func (p *publisher) prunePages(pages []notion.Page) error {
	known := make(map[string]struct{}, len(pages))
	for i := range pages {
		known[pages[i].ID] = struct{}{}
	}
	journaled, err := p.journal.Pages()
	if err != nil {
		return err
	}
	for _, e := range journaled {
		if _, ok := known[e.PageID]; ok {
			continue
		}
		p.log.Info("Pruning page gone from the source", zap.String("page", e.PageID), zap.String("slug", e.Slug))
		for _, out := range e.Outputs {
			full := filepath.Join(p.conf.Site.OutputDir, out)
			if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
				p.log.Warn("Unable to remove file", zap.String("file", full), zap.Error(err))
			}
		}
		if err := p.journal.Delete(e.PageID); err != nil {
			return err
		}
	}
	return nil
}

// recordingResolver wraps the image cache and remembers every local path it
// handed out, journal outputs are built from that after the page renders.
type recordingResolver struct {
	inner render.ImageResolver
	paths []string
}

func (r *recordingResolver) Resolve(ctx context.Context, remoteURL, slug string) (string, bool, error) {
	local, cached, err := r.inner.Resolve(ctx, remoteURL, slug)
	if err == nil {
		r.paths = append(r.paths, local)
	}
	return local, cached, err
}

func (r *recordingResolver) outputs() []string {
	seen := make(map[string]struct{}, len(r.paths))
	var out []string
	for _, path := range r.paths {
		if _, ok := seen[path]; ok {
			continue
		}
		seen[path] = struct{}{}
		out = append(out, path)
	}
	return out
}
