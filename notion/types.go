// Package notion models the subset of the Notion API we publish from: pages
// coming out of a database query and the block trees behind them.
package notion

import (
	"strings"
	"time"
)

// BlockKind distinguishes the different kinds of content blocks.
type BlockKind string

const (
	BlockParagraph        BlockKind = "paragraph"
	BlockHeading1         BlockKind = "heading_1"
	BlockHeading2         BlockKind = "heading_2"
	BlockHeading3         BlockKind = "heading_3"
	BlockBulletedListItem BlockKind = "bulleted_list_item"
	BlockNumberedListItem BlockKind = "numbered_list_item"
	BlockQuote            BlockKind = "quote"
	BlockCode             BlockKind = "code"
	BlockDivider          BlockKind = "divider"
	BlockImage            BlockKind = "image"
	BlockCallout          BlockKind = "callout"
	BlockToDo             BlockKind = "to_do"
	BlockBookmark         BlockKind = "bookmark"
	BlockLinkPreview      BlockKind = "link_preview"
	BlockVideo            BlockKind = "video"
	BlockAudio            BlockKind = "audio"
	BlockFile             BlockKind = "file"
	BlockPDF              BlockKind = "pdf"
	BlockEmbed            BlockKind = "embed"
	BlockToggle           BlockKind = "toggle"
	BlockTable            BlockKind = "table"
	BlockTableRow         BlockKind = "table_row"
	BlockColumnList       BlockKind = "column_list"
	BlockColumn           BlockKind = "column"
	BlockSynced           BlockKind = "synced_block"
	BlockEquation         BlockKind = "equation"
	BlockTableOfContents  BlockKind = "table_of_contents"
	BlockBreadcrumb       BlockKind = "breadcrumb"
	BlockChildPage        BlockKind = "child_page"
	BlockChildDatabase    BlockKind = "child_database"
	BlockUnknown          BlockKind = "unknown"
)

// Block stores a single content block, keeping the original ordering. Exactly
// one payload pointer matching Kind is set, BlockUnknown carries none. Children
// are never embedded - when HasChildren is set they have to be fetched
// separately using ID.
type Block struct {
	ID          string
	Kind        BlockKind
	HasChildren bool
	// RawKind preserves the wire type string for BlockUnknown.
	RawKind string

	Paragraph     *TextBlock
	Heading1      *HeadingBlock
	Heading2      *HeadingBlock
	Heading3      *HeadingBlock
	Bulleted      *TextBlock
	Numbered      *TextBlock
	Quote         *TextBlock
	Toggle        *TextBlock
	ToDo          *ToDoBlock
	Code          *CodeBlock
	Callout       *CalloutBlock
	Image         *MediaBlock
	Video         *MediaBlock
	Audio         *MediaBlock
	File          *MediaBlock
	PDF           *MediaBlock
	Embed         *LinkBlock
	Bookmark      *LinkBlock
	LinkPreview   *LinkBlock
	Equation      *EquationBlock
	Table         *TableBlock
	TableRow      *TableRowBlock
	Synced        *SyncedBlock
	ChildPage     *ChildTitleBlock
	ChildDatabase *ChildTitleBlock
}

// TextBlock is shared by paragraph, quote, toggle and both list item kinds.
type TextBlock struct {
	RichText []RichText `json:"rich_text"`
	Color    string     `json:"color"`
}

type HeadingBlock struct {
	RichText     []RichText `json:"rich_text"`
	Color        string     `json:"color"`
	IsToggleable bool       `json:"is_toggleable"`
}

type ToDoBlock struct {
	RichText []RichText `json:"rich_text"`
	Checked  bool       `json:"checked"`
	Color    string     `json:"color"`
}

type CodeBlock struct {
	RichText []RichText `json:"rich_text"`
	Caption  []RichText `json:"caption"`
	Language string     `json:"language"`
}

type CalloutBlock struct {
	RichText []RichText `json:"rich_text"`
	Icon     *Icon      `json:"icon"`
	Color    string     `json:"color"`
}

// MediaBlock is shared by image, video, audio, file and pdf blocks - all carry
// the same external/hosted locator pair.
type MediaBlock struct {
	FileObject
	Caption []RichText `json:"caption"`
	Name    string     `json:"name"`
}

// LinkBlock is shared by bookmark, embed and link_preview blocks.
type LinkBlock struct {
	URL     string     `json:"url"`
	Caption []RichText `json:"caption"`
}

type EquationBlock struct {
	Expression string `json:"expression"`
}

type TableBlock struct {
	Width           int  `json:"table_width"`
	HasColumnHeader bool `json:"has_column_header"`
	HasRowHeader    bool `json:"has_row_header"`
}

type TableRowBlock struct {
	Cells [][]RichText `json:"cells"`
}

// SyncedBlock either owns content (SyncedFrom is nil, children hang off the
// block itself) or mirrors another block by reference.
type SyncedBlock struct {
	SyncedFrom *BlockRef `json:"synced_from"`
}

type BlockRef struct {
	BlockID string `json:"block_id"`
}

// ChildTitleBlock is shared by child_page and child_database links.
type ChildTitleBlock struct {
	Title string `json:"title"`
}

// Icon is either an emoji or an image reference.
type Icon struct {
	Kind     string        `json:"type"`
	Emoji    string        `json:"emoji,omitempty"`
	External *ExternalFile `json:"external,omitempty"`
	File     *HostedFile   `json:"file,omitempty"`
}

// FileKind distinguishes externally linked files from Notion-hosted ones.
type FileKind string

const (
	FileExternal FileKind = "external"
	FileHosted   FileKind = "file"
)

// FileObject is the two-form locator used by media blocks and page covers.
// Hosted URLs carry an expiring signature, so they must never be used as
// long-term references - see the image cache for how they are pinned down.
type FileObject struct {
	Kind     FileKind      `json:"type"`
	External *ExternalFile `json:"external,omitempty"`
	File     *HostedFile   `json:"file,omitempty"`
}

type ExternalFile struct {
	URL string `json:"url"`
}

type HostedFile struct {
	URL        string    `json:"url"`
	ExpiryTime time.Time `json:"expiry_time"`
}

// URL picks the locator matching the object kind.
func (f *FileObject) URL() string {
	switch f.Kind {
	case FileExternal:
		if f.External != nil {
			return f.External.URL
		}
	case FileHosted:
		if f.File != nil {
			return f.File.URL
		}
	}
	return ""
}

// RichTextKind distinguishes inline span variants.
type RichTextKind string

const (
	RichTextText     RichTextKind = "text"
	RichTextEquation RichTextKind = "equation"
	RichTextMention  RichTextKind = "mention"
)

// Annotations is the inline formatting set attached to every span.
type Annotations struct {
	Bold          bool   `json:"bold"`
	Italic        bool   `json:"italic"`
	Strikethrough bool   `json:"strikethrough"`
	Underline     bool   `json:"underline"`
	Code          bool   `json:"code"`
	Color         string `json:"color"`
}

// RichText stores one run of inline content with uniform formatting.
type RichText struct {
	Kind        RichTextKind
	PlainText   string
	Href        string
	Annotations Annotations

	Text     *TextSpan
	Equation *EquationSpan
	Mention  *MentionSpan
}

type TextSpan struct {
	Content string
	Link    string
}

type EquationSpan struct {
	Expression string `json:"expression"`
}

// MentionKind enumerates mention targets we render.
type MentionKind string

const (
	MentionUser     MentionKind = "user"
	MentionPage     MentionKind = "page"
	MentionDatabase MentionKind = "database"
	MentionDate     MentionKind = "date"
	MentionUnknown  MentionKind = "unknown"
)

type MentionSpan struct {
	Kind MentionKind
	Date *DateSpan
}

// DateSpan keeps dates exactly as the API sends them (date or datetime form).
type DateSpan struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Page is one published entry of the source database.
type Page struct {
	ID             string
	Title          string
	Slug           string
	Tags           []string
	Published      bool
	CreatedTime    time.Time
	LastEditedTime time.Time
	Date           *time.Time
	Cover          *FileObject
	URL            string
}

// EffectiveDate returns the explicit date property when set, creation time
// otherwise.
func (p *Page) EffectiveDate() time.Time {
	if p.Date != nil {
		return *p.Date
	}
	return p.CreatedTime
}

// PlainText concatenates plain text of an ordered span sequence.
func PlainText(spans []RichText) string {
	var buf strings.Builder
	for _, span := range spans {
		buf.WriteString(span.PlainText)
	}
	return buf.String()
}

// AsPlainText extracts the readable text content of the block, used for
// excerpts and feed descriptions. Container-only and leaf media blocks yield
// nothing.
func (b *Block) AsPlainText() string {
	switch b.Kind {
	case BlockParagraph:
		if b.Paragraph != nil {
			return strings.TrimSpace(PlainText(b.Paragraph.RichText))
		}
	case BlockHeading1:
		if b.Heading1 != nil {
			return strings.TrimSpace(PlainText(b.Heading1.RichText))
		}
	case BlockHeading2:
		if b.Heading2 != nil {
			return strings.TrimSpace(PlainText(b.Heading2.RichText))
		}
	case BlockHeading3:
		if b.Heading3 != nil {
			return strings.TrimSpace(PlainText(b.Heading3.RichText))
		}
	case BlockBulletedListItem:
		if b.Bulleted != nil {
			return strings.TrimSpace(PlainText(b.Bulleted.RichText))
		}
	case BlockNumberedListItem:
		if b.Numbered != nil {
			return strings.TrimSpace(PlainText(b.Numbered.RichText))
		}
	case BlockQuote:
		if b.Quote != nil {
			return strings.TrimSpace(PlainText(b.Quote.RichText))
		}
	case BlockToggle:
		if b.Toggle != nil {
			return strings.TrimSpace(PlainText(b.Toggle.RichText))
		}
	case BlockToDo:
		if b.ToDo != nil {
			return strings.TrimSpace(PlainText(b.ToDo.RichText))
		}
	case BlockCallout:
		if b.Callout != nil {
			return strings.TrimSpace(PlainText(b.Callout.RichText))
		}
	case BlockCode:
		if b.Code != nil {
			return strings.TrimSpace(PlainText(b.Code.RichText))
		}
	}
	return ""
}
