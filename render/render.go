// Package render turns block trees into deterministic HTML fragments.
// Children of container blocks are not part of the input, they are pulled
// through a ChildFetcher as the walk reaches them, strictly depth first.
package render

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"nsg/notion"
)

// ChildFetcher loads the ordered child list of a block.
type ChildFetcher interface {
	BlockChildren(ctx context.Context, blockID string) ([]notion.Block, error)
}

// ImageResolver pins a remote image down to a local relative path. The second
// result reports a cache hit, purely for logging.
type ImageResolver interface {
	Resolve(ctx context.Context, remoteURL, slug string) (string, bool, error)
}

// Renderer converts one page's block sequence at a time. Safe to reuse across
// pages, it keeps no per-page state.
type Renderer struct {
	fetcher ChildFetcher
	images  ImageResolver
	log     *zap.Logger
}

func NewRenderer(fetcher ChildFetcher, images ImageResolver, log *zap.Logger) *Renderer {
	return &Renderer{fetcher: fetcher, images: images, log: log}
}

// Fragment renders the full block sequence of a page. Output is a pure
// function of the blocks, their fetched children and the slug, so unchanged
// input renders byte-identical on every run.
func (r *Renderer) Fragment(ctx context.Context, blocks []notion.Block, slug string) (string, error) {
	return r.renderBlocks(ctx, blocks, slug)
}

// renderBlocks walks one sibling level. Adjacent list items of the same kind
// are folded into a single wrapper, everything else renders block by block.
// Blocks rendering to nothing contribute no fragment and no separator.
func (r *Renderer) renderBlocks(ctx context.Context, blocks []notion.Block, slug string) (string, error) {
	var frags []string
	for i := 0; i < len(blocks); {
		blk := &blocks[i]
		if blk.Kind == notion.BlockBulletedListItem || blk.Kind == notion.BlockNumberedListItem {
			frag, next, err := r.renderListRun(ctx, blocks, i, slug)
			if err != nil {
				return "", err
			}
			frags = append(frags, frag)
			i = next
			continue
		}
		frag, err := r.renderBlock(ctx, blk, slug)
		if err != nil {
			return "", fmt.Errorf("render %s block %s: %w", blk.Kind, blk.ID, err)
		}
		if frag != "" {
			frags = append(frags, frag)
		}
		i++
	}
	return strings.Join(frags, "\n"), nil
}

// renderListRun consumes the whole run of same-kind list items starting at
// start and returns the index right past it. Children of an item stay inside
// that item, they never extend the sibling run.
func (r *Renderer) renderListRun(ctx context.Context, blocks []notion.Block, start int, slug string) (string, int, error) {
	kind := blocks[start].Kind
	wrapper := "ul"
	if kind == notion.BlockNumberedListItem {
		wrapper = "ol"
	}

	var items []string
	i := start
	for ; i < len(blocks) && blocks[i].Kind == kind; i++ {
		blk := &blocks[i]
		var spans []notion.RichText
		switch {
		case kind == notion.BlockBulletedListItem && blk.Bulleted != nil:
			spans = blk.Bulleted.RichText
		case kind == notion.BlockNumberedListItem && blk.Numbered != nil:
			spans = blk.Numbered.RichText
		}
		item := renderRichText(spans)
		children, err := r.childFragment(ctx, blk, slug)
		if err != nil {
			return "", 0, fmt.Errorf("render %s block %s: %w", blk.Kind, blk.ID, err)
		}
		if children != "" {
			item += "\n" + children
		}
		items = append(items, "<li>"+item+"</li>")
	}
	return "<" + wrapper + ">\n" + strings.Join(items, "\n") + "\n</" + wrapper + ">", i, nil
}

func (r *Renderer) renderBlock(ctx context.Context, blk *notion.Block, slug string) (string, error) {
	switch blk.Kind {
	case notion.BlockParagraph:
		if blk.Paragraph == nil {
			return "", nil
		}
		return renderParagraph(blk.Paragraph.RichText), nil

	case notion.BlockHeading1:
		if blk.Heading1 == nil {
			return "", nil
		}
		return "<h1>" + renderRichText(blk.Heading1.RichText) + "</h1>", nil
	case notion.BlockHeading2:
		if blk.Heading2 == nil {
			return "", nil
		}
		return "<h2>" + renderRichText(blk.Heading2.RichText) + "</h2>", nil
	case notion.BlockHeading3:
		if blk.Heading3 == nil {
			return "", nil
		}
		return "<h3>" + renderRichText(blk.Heading3.RichText) + "</h3>", nil

	case notion.BlockQuote:
		if blk.Quote == nil {
			return "", nil
		}
		children, err := r.childFragment(ctx, blk, slug)
		if err != nil {
			return "", err
		}
		return wrapChildren("<blockquote>"+renderRichText(blk.Quote.RichText), children, "</blockquote>"), nil

	case notion.BlockToggle:
		if blk.Toggle == nil {
			return "", nil
		}
		children, err := r.childFragment(ctx, blk, slug)
		if err != nil {
			return "", err
		}
		summary := `<details class="toggle"><summary>` + renderRichText(blk.Toggle.RichText) + "</summary>"
		return wrapChildren(summary, children, "</details>"), nil

	case notion.BlockCallout:
		if blk.Callout == nil {
			return "", nil
		}
		children, err := r.childFragment(ctx, blk, slug)
		if err != nil {
			return "", err
		}
		open := `<div class="callout">`
		if icon := blk.Callout.Icon; icon != nil && icon.Emoji != "" {
			open += `<span class="callout-icon">` + escapeText(icon.Emoji) + "</span>"
		}
		open += "<p>" + renderRichText(blk.Callout.RichText) + "</p>"
		return wrapChildren(open, children, "</div>"), nil

	case notion.BlockToDo:
		if blk.ToDo == nil {
			return "", nil
		}
		children, err := r.childFragment(ctx, blk, slug)
		if err != nil {
			return "", err
		}
		checkbox := `<input type="checkbox" disabled>`
		if blk.ToDo.Checked {
			checkbox = `<input type="checkbox" checked disabled>`
		}
		open := `<div class="to-do">` + checkbox + " " + renderRichText(blk.ToDo.RichText)
		return wrapChildren(open, children, "</div>"), nil

	case notion.BlockCode:
		if blk.Code == nil {
			return "", nil
		}
		return renderCode(blk.Code), nil

	case notion.BlockDivider:
		return "<hr>", nil

	case notion.BlockImage:
		if blk.Image == nil {
			return "", nil
		}
		return r.renderImage(ctx, blk, slug), nil

	case notion.BlockEquation:
		if blk.Equation == nil {
			return "", nil
		}
		expr := blk.Equation.Expression
		return `<div class="equation" data-expression="` + escapeAttr(expr) + `">` + escapeText(expr) + "</div>", nil

	case notion.BlockBookmark:
		if blk.Bookmark == nil {
			return "", nil
		}
		return renderLinkCard(blk.Bookmark, "bookmark"), nil
	case notion.BlockLinkPreview:
		if blk.LinkPreview == nil {
			return "", nil
		}
		return renderLinkCard(blk.LinkPreview, "link-preview"), nil

	case notion.BlockVideo:
		if blk.Video == nil {
			return "", nil
		}
		return renderVideo(blk.Video), nil
	case notion.BlockAudio:
		if blk.Audio == nil {
			return "", nil
		}
		if u := blk.Audio.URL(); u != "" {
			return `<audio class="audio" controls src="` + escapeAttr(u) + `"></audio>`, nil
		}
		return "", nil
	case notion.BlockFile:
		if blk.File == nil {
			return "", nil
		}
		return renderFileLink(blk.File), nil
	case notion.BlockPDF:
		if blk.PDF == nil {
			return "", nil
		}
		if u := blk.PDF.URL(); u != "" {
			return `<object class="pdf" data="` + escapeAttr(u) + `" type="application/pdf"></object>`, nil
		}
		return "", nil
	case notion.BlockEmbed:
		if blk.Embed == nil || blk.Embed.URL == "" {
			return "", nil
		}
		src := blk.Embed.URL
		if frame, ok := embedFrame(src); ok {
			src = frame
		}
		return `<iframe class="embed" src="` + escapeAttr(src) + `" allowfullscreen loading="lazy"></iframe>`, nil

	case notion.BlockTable:
		return r.renderTable(ctx, blk, slug)

	case notion.BlockColumnList:
		return r.renderColumnList(ctx, blk, slug)
	case notion.BlockColumn:
		// Columns normally come wrapped in a column_list, a stray one still
		// renders its content.
		children, err := r.childFragment(ctx, blk, slug)
		if err != nil {
			return "", err
		}
		if children == "" {
			return "", nil
		}
		return wrapChildren(`<div class="column">`, children, "</div>"), nil

	case notion.BlockSynced:
		return r.renderSynced(ctx, blk, slug)

	case notion.BlockTableOfContents, notion.BlockBreadcrumb, notion.BlockChildPage, notion.BlockChildDatabase:
		return "", nil
	case notion.BlockTableRow:
		r.log.Debug("Dropping table row outside of a table", zap.String("id", blk.ID))
		return "", nil

	case notion.BlockUnknown:
		r.log.Warn("Skipping block of unsupported kind", zap.String("kind", blk.RawKind), zap.String("id", blk.ID))
		return "", nil
	}
	return "", nil
}

// renderParagraph trims break tags an otherwise empty paragraph would leave
// behind, collapsing it to nothing.
func renderParagraph(spans []notion.RichText) string {
	inline := renderRichText(spans)
	for strings.HasPrefix(inline, "<br>") {
		inline = strings.TrimPrefix(inline, "<br>")
	}
	for strings.HasSuffix(inline, "<br>") {
		inline = strings.TrimSuffix(inline, "<br>")
	}
	if inline == "" {
		return ""
	}
	return "<p>" + inline + "</p>"
}

// renderCode concatenates the raw span text without inline formatting, code
// content escapes only. The language tag lands in the conventional
// language-* class, plaintext when the block does not declare one.
func renderCode(code *notion.CodeBlock) string {
	var buf strings.Builder
	for _, span := range code.RichText {
		buf.WriteString(span.PlainText)
	}
	lang := code.Language
	if lang == "" {
		lang = "plaintext"
	}
	return `<pre><code class="language-` + escapeAttr(lang) + `">` + escapeText(buf.String()) + "</code></pre>"
}

// renderImage delegates to the image cache and keeps the remote source when
// resolution fails, a broken download must not take the page down.
func (r *Renderer) renderImage(ctx context.Context, blk *notion.Block, slug string) string {
	src := blk.Image.URL()
	if src == "" {
		r.log.Warn("Image block has no source", zap.String("id", blk.ID))
		return ""
	}
	local, skipped, err := r.images.Resolve(ctx, src, slug)
	switch {
	case err != nil:
		r.log.Warn("Image resolution failed, keeping remote source", zap.String("url", src), zap.Error(err))
	case skipped:
		src = local
		r.log.Debug("Image already cached", zap.String("path", local))
	default:
		src = local
	}

	alt := notion.PlainText(blk.Image.Caption)
	out := `<figure class="image"><img src="` + escapeAttr(src) + `" alt="` + escapeAttr(alt) + `">`
	if caption := renderRichText(blk.Image.Caption); caption != "" {
		out += "<figcaption>" + caption + "</figcaption>"
	}
	return out + "</figure>"
}

func renderLinkCard(lb *notion.LinkBlock, class string) string {
	if lb.URL == "" {
		return ""
	}
	label := strings.TrimSpace(notion.PlainText(lb.Caption))
	if label == "" {
		label = lb.URL
	}
	return `<p class="` + class + `"><a href="` + escapeAttr(lb.URL) + `">` + escapeText(label) + "</a></p>"
}

func renderVideo(mb *notion.MediaBlock) string {
	u := mb.URL()
	if u == "" {
		return ""
	}
	if frame, ok := embedFrame(u); ok {
		return `<iframe class="video" src="` + escapeAttr(frame) + `" allowfullscreen loading="lazy"></iframe>`
	}
	return `<video class="video" controls src="` + escapeAttr(u) + `"></video>`
}

func renderFileLink(mb *notion.MediaBlock) string {
	u := mb.URL()
	if u == "" {
		return ""
	}
	label := strings.TrimSpace(notion.PlainText(mb.Caption))
	if label == "" {
		label = mb.Name
	}
	if label == "" {
		label = u
	}
	return `<p class="file"><a href="` + escapeAttr(u) + `">` + escapeText(label) + "</a></p>"
}

// renderTable pulls the row blocks and headers the first row or first column
// as the table flags demand. Either flag alone is enough to make the top-left
// cell a header when both are set.
func (r *Renderer) renderTable(ctx context.Context, blk *notion.Block, slug string) (string, error) {
	if blk.Table == nil || !blk.HasChildren {
		return "", nil
	}
	rows, err := r.fetcher.BlockChildren(ctx, blk.ID)
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	buf.WriteString("<table>")
	rowIdx := 0
	for i := range rows {
		row := &rows[i]
		if row.Kind != notion.BlockTableRow || row.TableRow == nil {
			r.log.Warn("Skipping unexpected table child", zap.String("kind", string(row.Kind)), zap.String("id", row.ID))
			continue
		}
		buf.WriteString("<tr>")
		for col, cell := range row.TableRow.Cells {
			tag := "td"
			if (blk.Table.HasColumnHeader && rowIdx == 0) || (blk.Table.HasRowHeader && col == 0) {
				tag = "th"
			}
			buf.WriteString("<" + tag + ">")
			buf.WriteString(renderRichText(cell))
			buf.WriteString("</" + tag + ">")
		}
		buf.WriteString("</tr>")
		rowIdx++
	}
	buf.WriteString("</table>")
	return buf.String(), nil
}

// renderColumnList expects exactly one level of column blocks and lays them
// out side by side, each column rendering its own subtree.
func (r *Renderer) renderColumnList(ctx context.Context, blk *notion.Block, slug string) (string, error) {
	if !blk.HasChildren {
		return "", nil
	}
	columns, err := r.fetcher.BlockChildren(ctx, blk.ID)
	if err != nil {
		return "", err
	}

	var parts []string
	for i := range columns {
		col := &columns[i]
		if col.Kind != notion.BlockColumn {
			r.log.Warn("Skipping unexpected column list child", zap.String("kind", string(col.Kind)), zap.String("id", col.ID))
			continue
		}
		children, err := r.childFragment(ctx, col, slug)
		if err != nil {
			return "", fmt.Errorf("render %s block %s: %w", col.Kind, col.ID, err)
		}
		parts = append(parts, wrapChildren(`<div class="column">`, children, "</div>"))
	}
	return wrapChildren(`<div class="column-list">`, strings.Join(parts, "\n"), "</div>"), nil
}

// renderSynced renders an original's own children in place. For a reference
// the source block's children are fetched instead, and a fetch failure
// downgrades to nothing rendered, the rest of the page survives.
func (r *Renderer) renderSynced(ctx context.Context, blk *notion.Block, slug string) (string, error) {
	if blk.Synced != nil && blk.Synced.SyncedFrom != nil {
		source := blk.Synced.SyncedFrom.BlockID
		children, err := r.fetcher.BlockChildren(ctx, source)
		if err != nil {
			r.log.Warn("Skipping unresolvable synced block", zap.String("id", blk.ID), zap.String("source", source), zap.Error(err))
			return "", nil
		}
		return r.renderBlocks(ctx, children, slug)
	}
	return r.childFragment(ctx, blk, slug)
}

// childFragment fetches and renders declared children, empty result when the
// block declares none.
func (r *Renderer) childFragment(ctx context.Context, blk *notion.Block, slug string) (string, error) {
	if !blk.HasChildren {
		return "", nil
	}
	children, err := r.fetcher.BlockChildren(ctx, blk.ID)
	if err != nil {
		return "", err
	}
	return r.renderBlocks(ctx, children, slug)
}

func wrapChildren(open, inner, closing string) string {
	if inner == "" {
		return open + closing
	}
	return open + "\n" + inner + "\n" + closing
}
