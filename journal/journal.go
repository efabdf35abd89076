// Package journal keeps a small sqlite ledger of what was generated for
// which page revision. It lets a run skip pages that did not change since
// they were last rendered and find files belonging to pages that are gone.
package journal

import (
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// FileName is the journal database name inside the site output directory.
const FileName = ".nsg-journal.db"

const schema = `
CREATE TABLE IF NOT EXISTS pages (
	id          TEXT PRIMARY KEY,
	slug        TEXT NOT NULL,
	last_edited TEXT NOT NULL,
	rendered_at TEXT NOT NULL,
	excerpt     TEXT NOT NULL DEFAULT '',
	cover       TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS outputs (
	page_id TEXT NOT NULL,
	path    TEXT NOT NULL,
	PRIMARY KEY (page_id, path)
);
`

// Entry is one journaled page: its source identity, the revision that was
// rendered and every file that render produced (paths relative to the output
// directory). Excerpt and cover ride along so a skipped page can still fill
// its index and feed rows without being rendered again.
type Entry struct {
	PageID     string
	Slug       string
	LastEdited time.Time
	RenderedAt time.Time
	Excerpt    string
	Cover      string
	Outputs    []string
}

type Journal struct {
	conn *sqlite.Conn
	log  *zap.Logger
}

// Open opens or creates the journal database in outputDir.
func Open(outputDir string, log *zap.Logger) (*Journal, error) {
	path := filepath.Join(outputDir, FileName)
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite, sqlite.OpenCreate)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("prepare journal schema: %w", err)
	}
	return &Journal{conn: conn, log: log}, nil
}

func (j *Journal) Close() error {
	return j.conn.Close()
}

// Lookup returns the journaled entry for pageID, or nil when the page was
// never recorded.
func (j *Journal) Lookup(pageID string) (*Entry, error) {
	var entry *Entry
	err := sqlitex.Execute(j.conn, `SELECT slug, last_edited, rendered_at, excerpt, cover FROM pages WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{pageID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				e, err := entryFromRow(pageID, stmt)
				if err != nil {
					return err
				}
				entry = e
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("lookup page %s: %w", pageID, err)
	}
	if entry == nil {
		return nil, nil
	}
	if err := j.attachOutputs(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Record upserts the entry and replaces its output list.
func (j *Journal) Record(e Entry) (err error) {
	defer sqlitex.Save(j.conn)(&err)

	renderedAt := e.RenderedAt
	if renderedAt.IsZero() {
		renderedAt = time.Now()
	}
	err = sqlitex.Execute(j.conn,
		`INSERT INTO pages (id, slug, last_edited, rendered_at, excerpt, cover) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			slug = excluded.slug, last_edited = excluded.last_edited, rendered_at = excluded.rendered_at,
			excerpt = excluded.excerpt, cover = excluded.cover`,
		&sqlitex.ExecOptions{Args: []any{
			e.PageID,
			e.Slug,
			e.LastEdited.UTC().Format(time.RFC3339Nano),
			renderedAt.UTC().Format(time.RFC3339Nano),
			e.Excerpt,
			e.Cover,
		}})
	if err != nil {
		return fmt.Errorf("record page %s: %w", e.PageID, err)
	}
	err = sqlitex.Execute(j.conn, `DELETE FROM outputs WHERE page_id = ?`,
		&sqlitex.ExecOptions{Args: []any{e.PageID}})
	if err != nil {
		return fmt.Errorf("clear outputs for %s: %w", e.PageID, err)
	}
	for _, p := range e.Outputs {
		err = sqlitex.Execute(j.conn, `INSERT OR IGNORE INTO outputs (page_id, path) VALUES (?, ?)`,
			&sqlitex.ExecOptions{Args: []any{e.PageID, p}})
		if err != nil {
			return fmt.Errorf("record output %s for %s: %w", p, e.PageID, err)
		}
	}
	j.log.Debug("Journaled page", zap.String("id", e.PageID), zap.String("slug", e.Slug), zap.Int("outputs", len(e.Outputs)))
	return nil
}

// Delete removes the entry and its outputs from the journal. Removing files
// on disk is the caller's business.
func (j *Journal) Delete(pageID string) (err error) {
	defer sqlitex.Save(j.conn)(&err)

	err = sqlitex.Execute(j.conn, `DELETE FROM outputs WHERE page_id = ?`,
		&sqlitex.ExecOptions{Args: []any{pageID}})
	if err != nil {
		return fmt.Errorf("delete outputs for %s: %w", pageID, err)
	}
	err = sqlitex.Execute(j.conn, `DELETE FROM pages WHERE id = ?`,
		&sqlitex.ExecOptions{Args: []any{pageID}})
	if err != nil {
		return fmt.Errorf("delete page %s: %w", pageID, err)
	}
	return nil
}

// Pages returns all journaled entries with their outputs, ordered by slug.
func (j *Journal) Pages() ([]Entry, error) {
	var entries []Entry
	err := sqlitex.Execute(j.conn, `SELECT slug, last_edited, rendered_at, excerpt, cover, id FROM pages ORDER BY slug`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				e, err := entryFromRow(stmt.ColumnText(5), stmt)
				if err != nil {
					return err
				}
				entries = append(entries, *e)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("list journal pages: %w", err)
	}
	for i := range entries {
		if err := j.attachOutputs(&entries[i]); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func (j *Journal) attachOutputs(e *Entry) error {
	err := sqlitex.Execute(j.conn, `SELECT path FROM outputs WHERE page_id = ? ORDER BY path`,
		&sqlitex.ExecOptions{
			Args: []any{e.PageID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				e.Outputs = append(e.Outputs, stmt.ColumnText(0))
				return nil
			},
		})
	if err != nil {
		return fmt.Errorf("list outputs for %s: %w", e.PageID, err)
	}
	return nil
}

func entryFromRow(pageID string, stmt *sqlite.Stmt) (*Entry, error) {
	lastEdited, err := time.Parse(time.RFC3339Nano, stmt.ColumnText(1))
	if err != nil {
		return nil, fmt.Errorf("bad last_edited for page %s: %w", pageID, err)
	}
	renderedAt, err := time.Parse(time.RFC3339Nano, stmt.ColumnText(2))
	if err != nil {
		return nil, fmt.Errorf("bad rendered_at for page %s: %w", pageID, err)
	}
	return &Entry{
		PageID:     pageID,
		Slug:       stmt.ColumnText(0),
		LastEdited: lastEdited,
		RenderedAt: renderedAt,
		Excerpt:    stmt.ColumnText(3),
		Cover:      stmt.ColumnText(4),
	}, nil
}
