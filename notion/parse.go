package notion

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// parseBlock converts a single wire block object into the model. Unrecognized
// block types are kept as BlockUnknown so the renderer can account for them,
// only malformed JSON is an error.
func parseBlock(raw json.RawMessage, log *zap.Logger) (Block, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Block{}, fmt.Errorf("bad block object: %w", err)
	}

	var blk Block
	if err := decodeField(fields, "id", &blk.ID); err != nil {
		return Block{}, err
	}
	var typ string
	if err := decodeField(fields, "type", &typ); err != nil {
		return Block{}, err
	}
	if err := decodeField(fields, "has_children", &blk.HasChildren); err != nil {
		return Block{}, err
	}

	blk.Kind = BlockKind(typ)
	payload := fields[typ]

	var err error
	switch blk.Kind {
	case BlockParagraph:
		blk.Paragraph, err = decodePayload[TextBlock](payload, typ)
	case BlockHeading1:
		blk.Heading1, err = decodePayload[HeadingBlock](payload, typ)
	case BlockHeading2:
		blk.Heading2, err = decodePayload[HeadingBlock](payload, typ)
	case BlockHeading3:
		blk.Heading3, err = decodePayload[HeadingBlock](payload, typ)
	case BlockBulletedListItem:
		blk.Bulleted, err = decodePayload[TextBlock](payload, typ)
	case BlockNumberedListItem:
		blk.Numbered, err = decodePayload[TextBlock](payload, typ)
	case BlockQuote:
		blk.Quote, err = decodePayload[TextBlock](payload, typ)
	case BlockToggle:
		blk.Toggle, err = decodePayload[TextBlock](payload, typ)
	case BlockToDo:
		blk.ToDo, err = decodePayload[ToDoBlock](payload, typ)
	case BlockCode:
		blk.Code, err = decodePayload[CodeBlock](payload, typ)
	case BlockCallout:
		blk.Callout, err = decodePayload[CalloutBlock](payload, typ)
	case BlockImage:
		blk.Image, err = decodePayload[MediaBlock](payload, typ)
	case BlockVideo:
		blk.Video, err = decodePayload[MediaBlock](payload, typ)
	case BlockAudio:
		blk.Audio, err = decodePayload[MediaBlock](payload, typ)
	case BlockFile:
		blk.File, err = decodePayload[MediaBlock](payload, typ)
	case BlockPDF:
		blk.PDF, err = decodePayload[MediaBlock](payload, typ)
	case BlockEmbed:
		blk.Embed, err = decodePayload[LinkBlock](payload, typ)
	case BlockBookmark:
		blk.Bookmark, err = decodePayload[LinkBlock](payload, typ)
	case BlockLinkPreview:
		blk.LinkPreview, err = decodePayload[LinkBlock](payload, typ)
	case BlockEquation:
		blk.Equation, err = decodePayload[EquationBlock](payload, typ)
	case BlockTable:
		blk.Table, err = decodePayload[TableBlock](payload, typ)
	case BlockTableRow:
		blk.TableRow, err = decodePayload[TableRowBlock](payload, typ)
	case BlockSynced:
		blk.Synced, err = decodePayload[SyncedBlock](payload, typ)
	case BlockChildPage:
		blk.ChildPage, err = decodePayload[ChildTitleBlock](payload, typ)
	case BlockChildDatabase:
		blk.ChildDatabase, err = decodePayload[ChildTitleBlock](payload, typ)
	case BlockDivider, BlockColumnList, BlockColumn, BlockTableOfContents, BlockBreadcrumb:
		// No payload worth keeping.
	default:
		log.Debug("Unmodeled block type", zap.String("type", typ), zap.String("id", blk.ID))
		blk.Kind = BlockUnknown
		blk.RawKind = typ
	}
	if err != nil {
		return Block{}, fmt.Errorf("block %s: %w", blk.ID, err)
	}
	return blk, nil
}

func decodeField(fields map[string]json.RawMessage, name string, dst any) error {
	raw, ok := fields[name]
	if !ok {
		return fmt.Errorf("block object has no %q field", name)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("bad %q field: %w", name, err)
	}
	return nil
}

func decodePayload[T any](raw json.RawMessage, typ string) (*T, error) {
	if raw == nil {
		return nil, fmt.Errorf("block object has no %q payload", typ)
	}
	dst := new(T)
	if err := json.Unmarshal(raw, dst); err != nil {
		return nil, fmt.Errorf("bad %q payload: %w", typ, err)
	}
	return dst, nil
}

// richTextEnvelope mirrors the wire shape of one inline span.
type richTextEnvelope struct {
	Type        string        `json:"type"`
	PlainText   string        `json:"plain_text"`
	Href        *string       `json:"href"`
	Annotations Annotations   `json:"annotations"`
	Text        *textSpanWire `json:"text"`
	Equation    *EquationSpan `json:"equation"`
	Mention     *mentionWire  `json:"mention"`
}

type textSpanWire struct {
	Content string `json:"content"`
	Link    *struct {
		URL string `json:"url"`
	} `json:"link"`
}

type mentionWire struct {
	Type string    `json:"type"`
	Date *DateSpan `json:"date"`
}

// UnmarshalJSON resolves the span union. Unknown span and mention variants
// degrade to their plain text so content never silently disappears.
func (rt *RichText) UnmarshalJSON(data []byte) error {
	var env richTextEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("bad rich text span: %w", err)
	}
	rt.PlainText = env.PlainText
	rt.Annotations = env.Annotations
	if env.Href != nil {
		rt.Href = *env.Href
	}
	switch RichTextKind(env.Type) {
	case RichTextText:
		rt.Kind = RichTextText
		rt.Text = &TextSpan{}
		if env.Text != nil {
			rt.Text.Content = env.Text.Content
			if env.Text.Link != nil {
				rt.Text.Link = env.Text.Link.URL
			}
		}
	case RichTextEquation:
		rt.Kind = RichTextEquation
		rt.Equation = &EquationSpan{}
		if env.Equation != nil {
			*rt.Equation = *env.Equation
		}
	case RichTextMention:
		rt.Kind = RichTextMention
		rt.Mention = &MentionSpan{Kind: MentionUnknown}
		if env.Mention != nil {
			switch MentionKind(env.Mention.Type) {
			case MentionUser, MentionPage, MentionDatabase:
				rt.Mention.Kind = MentionKind(env.Mention.Type)
			case MentionDate:
				rt.Mention.Kind = MentionDate
				rt.Mention.Date = env.Mention.Date
			}
		}
	default:
		// Treat like unformatted text, plain_text is all we have.
		rt.Kind = RichTextText
		rt.Text = &TextSpan{Content: env.PlainText}
	}
	return nil
}

// Database property names the publisher relies on. Title is recognized by its
// type, everything else by these exact names.
const (
	propSlug      = "Slug"
	propPublished = "Published"
	propTags      = "Tags"
	propDate      = "Date"
)

// pageEnvelope mirrors the wire shape of a page object from a database query.
type pageEnvelope struct {
	Object         string                     `json:"object"`
	ID             string                     `json:"id"`
	CreatedTime    time.Time                  `json:"created_time"`
	LastEditedTime time.Time                  `json:"last_edited_time"`
	Archived       bool                       `json:"archived"`
	Cover          *FileObject                `json:"cover"`
	Properties     map[string]json.RawMessage `json:"properties"`
	URL            string                     `json:"url"`
}

type propertyEnvelope struct {
	Type        string     `json:"type"`
	Title       []RichText `json:"title"`
	RichText    []RichText `json:"rich_text"`
	Checkbox    bool       `json:"checkbox"`
	MultiSelect []struct {
		Name string `json:"name"`
	} `json:"multi_select"`
	Date *DateSpan `json:"date"`
}

// parsePage converts a wire page object into the model, picking out the
// properties the publisher understands and ignoring the rest.
func parsePage(raw json.RawMessage, log *zap.Logger) (Page, error) {
	var env pageEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Page{}, fmt.Errorf("bad page object: %w", err)
	}

	page := Page{
		ID:             env.ID,
		CreatedTime:    env.CreatedTime,
		LastEditedTime: env.LastEditedTime,
		Cover:          env.Cover,
		URL:            env.URL,
	}
	for name, rawProp := range env.Properties {
		var prop propertyEnvelope
		if err := json.Unmarshal(rawProp, &prop); err != nil {
			return Page{}, fmt.Errorf("page %s: bad property %q: %w", env.ID, name, err)
		}
		switch {
		case prop.Type == "title":
			page.Title = strings.TrimSpace(PlainText(prop.Title))
		case name == propSlug && prop.Type == "rich_text":
			page.Slug = strings.TrimSpace(PlainText(prop.RichText))
		case name == propPublished && prop.Type == "checkbox":
			page.Published = prop.Checkbox
		case name == propTags && prop.Type == "multi_select":
			for _, sel := range prop.MultiSelect {
				if tag := strings.TrimSpace(sel.Name); tag != "" {
					page.Tags = append(page.Tags, tag)
				}
			}
		case name == propDate && prop.Type == "date":
			if prop.Date != nil && prop.Date.Start != "" {
				when, err := parseDateStart(prop.Date.Start)
				if err != nil {
					log.Warn("Ignoring unparsable page date", zap.String("page", env.ID), zap.String("date", prop.Date.Start))
					continue
				}
				page.Date = &when
			}
		}
	}
	if page.Title == "" {
		log.Warn("Page has empty title", zap.String("page", env.ID))
	}
	return page, nil
}

// parseDateStart accepts both date and datetime forms of a date property.
func parseDateStart(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
