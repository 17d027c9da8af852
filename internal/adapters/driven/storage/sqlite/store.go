package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/docstash-cli/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/docstash-cli/internal/core/domain"
	"github.com/custodia-labs/docstash-cli/internal/core/ports/driven"
)

// Ensure Store implements both sides of the storage contract.
var (
	_ driven.ArtifactStore = (*Store)(nil)
	_ driven.LibraryStore  = (*Store)(nil)
)

// Store is a SQLite-backed artifact store. One Store owns one database
// connection for the duration of an invocation; transaction boundaries
// are opened by the caller through Begin and the Store itself performs
// no implicit commits.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the SQLite database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Ensure directory exists
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Begin opens a new transaction scope.
func (s *Store) Begin(ctx context.Context) (driven.ArtifactTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return &artifactTx{tx: tx}, nil
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial_schema.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Artifact Transaction ====================

// artifactTx implements driven.ArtifactTx over one *sql.Tx.
type artifactTx struct {
	tx *sql.Tx
}

var (
	_ driven.ArtifactStore = (*Store)(nil)
	_ driven.LibraryStore  = (*Store)(nil)
	_ driven.ArtifactTx    = (*artifactTx)(nil)
)

// ResolveOrCreateDocument looks a document up by its natural key,
// creating it with a null description if absent.
func (t *artifactTx) ResolveOrCreateDocument(ctx context.Context, title string, pageCount int) (driven.DocumentRef, error) {
	row := t.tx.QueryRowContext(ctx, "SELECT id, description FROM documents WHERE title = ?", title)

	var id int64
	var description sql.NullString
	err := row.Scan(&id, &description)
	switch {
	case err == nil:
		ref := driven.DocumentRef{ID: id}
		if description.Valid {
			ref.Description = &description.String
		}
		return ref, nil
	case errors.Is(err, sql.ErrNoRows):
		res, err := t.tx.ExecContext(ctx,
			"INSERT INTO documents (title, description, page_count) VALUES (?, NULL, ?)",
			title, pageCount)
		if err != nil {
			return driven.DocumentRef{}, fmt.Errorf("inserting document: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return driven.DocumentRef{}, fmt.Errorf("document row id: %w", err)
		}
		return driven.DocumentRef{ID: id, Created: true}, nil
	default:
		return driven.DocumentRef{}, fmt.Errorf("looking up document: %w", err)
	}
}

// SetDocumentDescription fills in the document abstract.
func (t *artifactTx) SetDocumentDescription(ctx context.Context, documentID int64, description string) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE documents SET description = ? WHERE id = ?", description, documentID)
	if err != nil {
		return fmt.Errorf("updating description: %w", err)
	}
	return requireRowAffected(res, "document", documentID)
}

// RecordPage looks a page up by (document, page number), inserting it
// if absent.
func (t *artifactTx) RecordPage(ctx context.Context, documentID int64, pageNumber int, raw []byte, text string) (driven.PageRef, error) {
	row := t.tx.QueryRowContext(ctx,
		"SELECT id, gist FROM pages WHERE document_id = ? AND page_number = ?",
		documentID, pageNumber)

	var id int64
	var gist sql.NullString
	err := row.Scan(&id, &gist)
	switch {
	case err == nil:
		return driven.PageRef{ID: id, HasGist: gist.Valid && gist.String != ""}, nil
	case errors.Is(err, sql.ErrNoRows):
		res, err := t.tx.ExecContext(ctx,
			"INSERT INTO pages (document_id, page_number, data, text) VALUES (?, ?, ?, ?)",
			documentID, pageNumber, raw, text)
		if err != nil {
			return driven.PageRef{}, fmt.Errorf("inserting page: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return driven.PageRef{}, fmt.Errorf("page row id: %w", err)
		}
		return driven.PageRef{ID: id, Created: true}, nil
	default:
		return driven.PageRef{}, fmt.Errorf("looking up page: %w", err)
	}
}

// RecordFigures stores the figures extracted at page-creation time.
func (t *artifactTx) RecordFigures(ctx context.Context, pageID int64, figures []driven.FigureData) ([]int64, error) {
	ids := make([]int64, 0, len(figures))
	for _, figure := range figures {
		res, err := t.tx.ExecContext(ctx,
			"INSERT INTO figures (page_id, data, mime_type, description) VALUES (?, ?, ?, NULL)",
			pageID, figure.Data, figure.MIMEType)
		if err != nil {
			return nil, fmt.Errorf("inserting figure: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("figure row id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// PendingFigures returns exactly those figures on a page whose
// description is still unset.
func (t *artifactTx) PendingFigures(ctx context.Context, pageID int64) ([]driven.PendingFigure, error) {
	rows, err := t.tx.QueryContext(ctx,
		"SELECT id, data, mime_type FROM figures WHERE page_id = ? AND description IS NULL ORDER BY id",
		pageID)
	if err != nil {
		return nil, fmt.Errorf("querying pending figures: %w", err)
	}
	defer rows.Close()

	var pending []driven.PendingFigure
	for rows.Next() {
		var figure driven.PendingFigure
		if err := rows.Scan(&figure.ID, &figure.Data, &figure.MIMEType); err != nil {
			return nil, fmt.Errorf("scanning pending figure: %w", err)
		}
		pending = append(pending, figure)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pending figures: %w", err)
	}
	return pending, nil
}

// SetFigureDescription fills in a figure description.
func (t *artifactTx) SetFigureDescription(ctx context.Context, figureID int64, description string) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE figures SET description = ? WHERE id = ?", description, figureID)
	if err != nil {
		return fmt.Errorf("updating figure description: %w", err)
	}
	return requireRowAffected(res, "figure", figureID)
}

// SetPageGist fills in a page's rolling summary.
func (t *artifactTx) SetPageGist(ctx context.Context, pageID int64, gist string) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE pages SET gist = ? WHERE id = ?", gist, pageID)
	if err != nil {
		return fmt.Errorf("updating gist: %w", err)
	}
	return requireRowAffected(res, "page", pageID)
}

// InsertSectionIfAbsent records a table-of-contents entry unless the
// (document, title) pair already exists.
func (t *artifactTx) InsertSectionIfAbsent(ctx context.Context, documentID int64, title string, startPage int) (int64, bool, error) {
	row := t.tx.QueryRowContext(ctx,
		"SELECT id FROM sections WHERE document_id = ? AND title = ?", documentID, title)

	var id int64
	err := row.Scan(&id)
	switch {
	case err == nil:
		return id, false, nil
	case errors.Is(err, sql.ErrNoRows):
		res, err := t.tx.ExecContext(ctx,
			"INSERT INTO sections (document_id, title, start_page) VALUES (?, ?, ?)",
			documentID, title, startPage)
		if err != nil {
			return 0, false, fmt.Errorf("inserting section: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, false, fmt.Errorf("section row id: %w", err)
		}
		return id, true, nil
	default:
		return 0, false, fmt.Errorf("looking up section: %w", err)
	}
}

// InsertTable appends a detected table.
func (t *artifactTx) InsertTable(ctx context.Context, pageID int64, table domain.Table) (int64, error) {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO tables (page_id, text, image, caption_above, caption_below, xmin, ymin, xmax, ymax)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pageID, table.Text, table.Image, table.CaptionAbove, table.CaptionBelow,
		table.BBox[0], table.BBox[1], table.BBox[2], table.BBox[3])
	if err != nil {
		return 0, fmt.Errorf("inserting table: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("table row id: %w", err)
	}
	return id, nil
}

// CountEmbeddings reports how many embedding rows exist for a document.
func (t *artifactTx) CountEmbeddings(ctx context.Context, documentID int64) (int, error) {
	var count int
	row := t.tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM embeddings WHERE document_id = ?", documentID)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("counting embeddings: %w", err)
	}
	return count, nil
}

// SaveEmbeddings stores the embedding stage's vector records.
func (t *artifactTx) SaveEmbeddings(ctx context.Context, records []domain.EmbeddingRecord) error {
	for _, rec := range records {
		_, err := t.tx.ExecContext(ctx,
			"INSERT INTO embeddings (document_id, section_title, ordinal, content, vector) VALUES (?, ?, ?, ?, ?)",
			rec.DocumentID, rec.SectionTitle, rec.Ordinal, rec.Content, float32SliceToBytes(rec.Vector))
		if err != nil {
			return fmt.Errorf("inserting embedding: %w", err)
		}
	}
	return nil
}

// Commit makes all mutations in this scope durable.
func (t *artifactTx) Commit() error {
	return t.tx.Commit()
}

// Rollback discards all mutations in this scope. Calling it after
// Commit is a no-op.
func (t *artifactTx) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// ==================== Library (read side) ====================

// ListDocuments returns all documents without blob payloads.
func (s *Store) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, title, description, page_count FROM documents ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocumentRow(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// GetDocument retrieves one document by id.
func (s *Store) GetDocument(ctx context.Context, id int64) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, title, description, page_count FROM documents WHERE id = ?", id)

	var doc domain.Document
	var description sql.NullString
	if err := row.Scan(&doc.ID, &doc.Title, &description, &doc.PageCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	if description.Valid {
		doc.Description = &description.String
	}
	return &doc, nil
}

// ListPages returns page metadata for a document in page order.
func (s *Store) ListPages(ctx context.Context, documentID int64) ([]driven.PageInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, page_number, gist, LENGTH(text), LENGTH(data)
		 FROM pages WHERE document_id = ? ORDER BY page_number`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying pages: %w", err)
	}
	defer rows.Close()

	var pages []driven.PageInfo //nolint:prealloc // size unknown from query
	for rows.Next() {
		var info driven.PageInfo
		var gist sql.NullString
		if err := rows.Scan(&info.ID, &info.DocumentID, &info.Number, &gist, &info.TextLength, &info.DataLength); err != nil {
			return nil, fmt.Errorf("scanning page: %w", err)
		}
		if gist.Valid {
			info.Gist = &gist.String
		}
		pages = append(pages, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pages: %w", err)
	}
	return pages, nil
}

// PageData returns the raw single-page sub-document blob.
func (s *Store) PageData(ctx context.Context, documentID int64, pageNumber int) ([]byte, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT data FROM pages WHERE document_id = ? AND page_number = ?",
		documentID, pageNumber)

	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning page data: %w", err)
	}
	return data, nil
}

// AllPageData returns every page blob of a document in page order.
func (s *Store) AllPageData(ctx context.Context, documentID int64) ([][]byte, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT data FROM pages WHERE document_id = ? ORDER BY page_number", documentID)
	if err != nil {
		return nil, fmt.Errorf("querying page data: %w", err)
	}
	defer rows.Close()

	var pages [][]byte //nolint:prealloc // size unknown from query
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning page data: %w", err)
		}
		pages = append(pages, data)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating page data: %w", err)
	}
	return pages, nil
}

// FigureData returns a figure's image bytes and media type.
func (s *Store) FigureData(ctx context.Context, figureID int64) ([]byte, string, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT data, mime_type FROM figures WHERE id = ?", figureID)

	var data []byte
	var mimeType string
	if err := row.Scan(&data, &mimeType); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", domain.ErrNotFound
		}
		return nil, "", fmt.Errorf("scanning figure: %w", err)
	}
	return data, mimeType, nil
}

// TableImage returns a table's rendered raster image.
func (s *Store) TableImage(ctx context.Context, tableID int64) ([]byte, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT image FROM tables WHERE id = ?", tableID)

	var image []byte
	if err := row.Scan(&image); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning table image: %w", err)
	}
	return image, nil
}

// ==================== Helper Functions ====================

// requireRowAffected turns a zero-row UPDATE into ErrNotFound so a
// write against a missing row is never silently swallowed.
func requireRowAffected(res sql.Result, entity string, id int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%s %d: %w", entity, id, domain.ErrNotFound)
	}
	return nil
}

// scanDocumentRow scans a document from *sql.Rows.
func scanDocumentRow(rows *sql.Rows) (*domain.Document, error) {
	var doc domain.Document
	var description sql.NullString
	if err := rows.Scan(&doc.ID, &doc.Title, &description, &doc.PageCount); err != nil {
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	if description.Valid {
		doc.Description = &description.String
	}
	return &doc, nil
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
