package publish

import (
	"fmt"

	"nsg/notion"
	"nsg/utils/debug"
)

// blockTree renders a readable outline of a fetched block list. It exists
// solely for manual inspection of debug reports, nested children are fetched
// lazily during rendering and do not show up here.
func blockTree(blocks []notion.Block) string {
	tw := debug.NewTreeWriter()
	tw.Line(0, "Blocks: %d", len(blocks))
	for i := range blocks {
		describeBlock(tw, 1, &blocks[i])
	}
	return tw.String()
}

func describeBlock(tw *debug.TreeWriter, depth int, b *notion.Block) {
	kind := string(b.Kind)
	if b.Kind == notion.BlockUnknown {
		kind = fmt.Sprintf("unknown[%s]", b.RawKind)
	}
	if b.HasChildren {
		tw.Line(depth, "Block[%s] id[%s] +children", kind, b.ID)
	} else {
		tw.Line(depth, "Block[%s] id[%s]", kind, b.ID)
	}
	if text := b.AsPlainText(); len(text) > 0 {
		tw.TextBlock(depth+1, "text", text)
	}
	if loc := blockLocation(b); len(loc) > 0 {
		tw.TextBlock(depth+1, "location", loc)
	}
}

// blockLocation extracts the outbound reference of media and link blocks.
func blockLocation(b *notion.Block) string {
	switch b.Kind {
	case notion.BlockImage:
		return b.Image.URL()
	case notion.BlockVideo:
		return b.Video.URL()
	case notion.BlockAudio:
		return b.Audio.URL()
	case notion.BlockFile:
		return b.File.URL()
	case notion.BlockPDF:
		return b.PDF.URL()
	case notion.BlockEmbed:
		return b.Embed.URL
	case notion.BlockBookmark:
		return b.Bookmark.URL
	case notion.BlockLinkPreview:
		return b.LinkPreview.URL
	}
	return ""
}
