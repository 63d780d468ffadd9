// Package staging keeps resolved books on disk between resolve and publish.
//
// Each book is a JSON file named <isbn>.json in either the new_books or the
// processed_books directory. A SQLite index records which of the two states
// an ISBN is in, so a status change is a single transaction and an ISBN can
// never be both new and processed.
package staging

import (
	"bytes"
	"database/sql"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/lepinkainen/bookshelf/internal/enrichment/book"
	"github.com/lepinkainen/bookshelf/internal/errors"
	"github.com/lepinkainen/bookshelf/internal/fileutil"
	"github.com/lepinkainen/bookshelf/internal/isbn"
)

// Status is the lifecycle state of a staged book.
type Status string

const (
	StatusNew       Status = "new"
	StatusProcessed Status = "processed"
)

// Directory names under the staging root.
const (
	NewDir       = "new_books"
	ProcessedDir = "processed_books"
)

// Counts is the number of staged books per status.
type Counts struct {
	New       int `yaml:"new" json:"new"`
	Processed int `yaml:"processed" json:"processed"`
}

// Store is the staging area for resolved books.
type Store struct {
	root         string
	newDir       string
	processedDir string
	db           *sql.DB
	locks        *keyLocks
}

// Open creates the bucket directories under root and the index at dbPath,
// then reconciles the index with whatever files are already on disk.
func Open(root, dbPath string) (*Store, error) {
	s := &Store{
		root:         root,
		newDir:       filepath.Join(root, NewDir),
		processedDir: filepath.Join(root, ProcessedDir),
		locks:        newKeyLocks(),
	}

	for _, dir := range []string{s.newDir, s.processedDir, filepath.Dir(dbPath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create staging directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open staging index: %w", err)
	}
	// One writer keeps the status transitions serialised inside SQLite.
	db.SetMaxOpenConns(1)
	s.db = db

	if _, err := db.Exec(stagedBooksSchema); err != nil {
		closeErr := db.Close()
		return nil, stdErrors.Join(fmt.Errorf("failed to create staging index: %w", err), closeErr)
	}

	if _, err := s.Reconcile(); err != nil {
		closeErr := db.Close()
		return nil, stdErrors.Join(err, closeErr)
	}

	return s, nil
}

// Close closes the index.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// NewDir returns the directory of books waiting to be published.
func (s *Store) NewDir() string { return s.newDir }

// ProcessedDir returns the directory of published books.
func (s *Store) ProcessedDir() string { return s.processedDir }

// Lock holds the per-ISBN lock until the returned function is called.
// Callers use it to make a resolve-stage-fetch sequence exclusive for one ISBN.
func (s *Store) Lock(isbn string) func() {
	return s.locks.lock(isbn)
}

func (s *Store) path(status Status, isbn string) string {
	dir := s.newDir
	if status == StatusProcessed {
		dir = s.processedDir
	}
	return filepath.Join(dir, isbn+".json")
}

// Exists reports the status of isbn, and false when it is not staged at all.
func (s *Store) Exists(isbn string) (Status, bool, error) {
	var status string
	err := s.db.QueryRow(`SELECT status FROM staged_books WHERE isbn = ?`, isbn).Scan(&status)
	if stdErrors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query staging index for %s: %w", isbn, err)
	}
	return Status(status), true, nil
}

// WriteNew stages meta in the new bucket. It returns false without writing
// when the ISBN is already staged in either bucket.
func (s *Store) WriteNew(meta *book.Metadata) (bool, error) {
	if meta == nil || meta.ISBN == "" {
		return false, errors.Validation("stage", "", fmt.Errorf("metadata without ISBN"))
	}
	unlock := s.locks.lock(meta.ISBN)
	defer unlock()

	return s.writeNewLocked(meta)
}

// WriteNewLocked is WriteNew for callers already holding Lock(meta.ISBN).
func (s *Store) WriteNewLocked(meta *book.Metadata) (bool, error) {
	if meta == nil || meta.ISBN == "" {
		return false, errors.Validation("stage", "", fmt.Errorf("metadata without ISBN"))
	}
	return s.writeNewLocked(meta)
}

func (s *Store) writeNewLocked(meta *book.Metadata) (bool, error) {
	if _, staged, err := s.Exists(meta.ISBN); err != nil || staged {
		return false, err
	}

	data, err := encodeMetadata(meta)
	if err != nil {
		return false, fmt.Errorf("encode %s: %w", meta.ISBN, err)
	}

	path := s.path(StatusNew, meta.ISBN)
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}

	if _, err := s.db.Exec(`INSERT INTO staged_books (isbn, status) VALUES (?, ?)`, meta.ISBN, StatusNew); err != nil {
		_ = os.Remove(path)
		return false, fmt.Errorf("index %s: %w", meta.ISBN, err)
	}

	slog.Debug("Staged book", "isbn", meta.ISBN, "path", path)
	return true, nil
}

// List returns the ISBNs with the given status in ascending order.
func (s *Store) List(status Status) ([]string, error) {
	rows, err := s.db.Query(`SELECT isbn FROM staged_books WHERE status = ? ORDER BY isbn`, status)
	if err != nil {
		return nil, fmt.Errorf("list %s books: %w", status, err)
	}
	defer func() { _ = rows.Close() }()

	var isbns []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan staging index: %w", err)
		}
		isbns = append(isbns, id)
	}
	return isbns, rows.Err()
}

// ListNew returns the ISBNs waiting to be published.
func (s *Store) ListNew() ([]string, error) {
	return s.List(StatusNew)
}

// ReadNew loads the staged metadata of an ISBN in the new bucket.
func (s *Store) ReadNew(isbn string) (*book.Metadata, error) {
	return s.readFile(StatusNew, isbn)
}

// Read loads the staged metadata of an ISBN from whichever bucket holds it.
func (s *Store) Read(isbn string) (*book.Metadata, Status, error) {
	status, staged, err := s.Exists(isbn)
	if err != nil {
		return nil, "", err
	}
	if !staged {
		return nil, "", errors.State("read staged book", isbn, fmt.Errorf("not staged"))
	}
	meta, err := s.readFile(status, isbn)
	return meta, status, err
}

func (s *Store) readFile(status Status, isbn string) (*book.Metadata, error) {
	dir := NewDir
	if status == StatusProcessed {
		dir = ProcessedDir
	}

	data, err := os.ReadFile(s.path(status, isbn))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.State("read staged book", isbn, fmt.Errorf("not found in %s", dir))
		}
		return nil, fmt.Errorf("read staged book %s: %w", isbn, err)
	}

	var meta book.Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errors.Parse("read staged book", isbn, err)
	}
	return &meta, nil
}

// Promote moves a new book to the processed bucket. The file move and the
// index update succeed or fail together.
func (s *Store) Promote(isbn string) error {
	unlock := s.locks.lock(isbn)
	defer unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// Rollback if we don't commit - ignore errors as they're expected if transaction was committed
		_ = tx.Rollback()
	}()

	res, err := tx.Exec(`UPDATE staged_books SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE isbn = ? AND status = ?`,
		StatusProcessed, isbn, StatusNew)
	if err != nil {
		return fmt.Errorf("promote %s: %w", isbn, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.State("promote", isbn, fmt.Errorf("not in %s", NewDir))
	}

	from, to := s.path(StatusNew, isbn), s.path(StatusProcessed, isbn)
	if err := os.Rename(from, to); err != nil {
		return errors.State("promote", isbn, err)
	}

	if err := tx.Commit(); err != nil {
		_ = os.Rename(to, from)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	slog.Debug("Promoted book", "isbn", isbn)
	return nil
}

// Counts returns the number of books in each bucket.
func (s *Store) Counts() (Counts, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM staged_books GROUP BY status`)
	if err != nil {
		return Counts{}, fmt.Errorf("count staged books: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var c Counts
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return Counts{}, fmt.Errorf("scan staging index: %w", err)
		}
		switch Status(status) {
		case StatusNew:
			c.New = n
		case StatusProcessed:
			c.Processed = n
		}
	}
	return c, rows.Err()
}

// Reconcile makes the index agree with the bucket directories. Files missing
// from the index are imported, index rows without a file are dropped, and an
// ISBN present in both buckets keeps the processed copy. It returns the
// number of index rows changed.
func (s *Store) Reconcile() (int, error) {
	processed, err := stagedFiles(s.processedDir)
	if err != nil {
		return 0, err
	}
	fresh, err := stagedFiles(s.newDir)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	changed := 0
	exec := func(query string, args ...any) error {
		res, err := tx.Exec(query, args...)
		if err != nil {
			return fmt.Errorf("reconcile staging index: %w", err)
		}
		n, _ := res.RowsAffected()
		changed += int(n)
		return nil
	}

	var strays []string
	for id := range processed {
		if err := exec(`INSERT INTO staged_books (isbn, status) VALUES (?, ?)
			ON CONFLICT(isbn) DO UPDATE SET status = excluded.status, updated_at = CURRENT_TIMESTAMP
			WHERE staged_books.status <> excluded.status`, id, StatusProcessed); err != nil {
			return 0, err
		}
		if fresh[id] {
			strays = append(strays, id)
			delete(fresh, id)
		}
	}
	for id := range fresh {
		if err := exec(`INSERT OR IGNORE INTO staged_books (isbn, status) VALUES (?, ?)`, id, StatusNew); err != nil {
			return 0, err
		}
	}

	rows, err := tx.Query(`SELECT isbn, status FROM staged_books`)
	if err != nil {
		return 0, fmt.Errorf("reconcile staging index: %w", err)
	}
	var orphans []string
	for rows.Next() {
		var id, status string
		if err := rows.Scan(&id, &status); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("scan staging index: %w", err)
		}
		if (Status(status) == StatusProcessed && !processed[id]) || (Status(status) == StatusNew && !fresh[id]) {
			orphans = append(orphans, id)
		}
	}
	_ = rows.Close()
	for _, id := range orphans {
		if err := exec(`DELETE FROM staged_books WHERE isbn = ?`, id); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	sort.Strings(strays)
	for _, id := range strays {
		slog.Warn("Removing duplicate staged copy, book is already processed", "isbn", id)
		if err := os.Remove(s.path(StatusNew, id)); err != nil && !os.IsNotExist(err) {
			return changed, fmt.Errorf("remove stray %s: %w", id, err)
		}
	}

	if changed > 0 {
		slog.Info("Reconciled staging index", "changed", changed, "orphans", len(orphans))
	}
	return changed, nil
}

// stagedFiles returns the ISBNs of the <isbn>.json files in dir.
func stagedFiles(dir string) (map[string]bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	ids := make(map[string]bool, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		stem := strings.TrimSuffix(name, ".json")
		id, err := isbn.Sanitize(stem)
		if err != nil || id != stem {
			slog.Warn("Ignoring unexpected file in staging directory", "path", filepath.Join(dir, name))
			continue
		}
		ids[id] = true
	}
	return ids, nil
}

func encodeMetadata(meta *book.Metadata) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
