// Package docstore keeps schemaless JSON documents in named collections on
// top of database/sql. SQLite (modernc.org/sqlite) is the default backend,
// PostgreSQL (lib/pq) is supported for shared deployments.
package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Collection names used by the site.
const (
	Articles   = "articles"
	Gallery    = "gallery"
	Businesses = "businesses"
	Accounts   = "accounts"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("docstore: not found")
	// ErrWriteFailed wraps transport and driver errors on mutations.
	ErrWriteFailed = errors.New("docstore: write failed")
)

// Fields is a partial or complete document body.
type Fields map[string]any

// Document is a stored record with its id attached.
type Document struct {
	ID   string
	Data json.RawMessage
}

// Decode unmarshals the document body into v.
func (d Document) Decode(v any) error {
	return json.Unmarshal(d.Data, v)
}

// Store provides CRUD access to document collections.
type Store struct {
	db *sql.DB
	d  dialect
}

// Open connects to the database and ensures the schema exists. For sqlite the
// dsn is a file path; its directory is created if needed.
func Open(driver, dsn string) (*Store, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	switch d.name {
	case "sqlite":
		return openSQLite(dsn)
	default:
		return openPostgres(dsn)
	}
}

// sqliteDSN adds the busy_timeout pragma to path unless the caller already
// set one.
func sqliteDSN(path string) string {
	if strings.Contains(path, "_pragma=busy_timeout") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)"
}

func openSQLite(path string) (*Store, error) {
	file, _, _ := strings.Cut(strings.TrimPrefix(path, "file:"), "?")
	if dir := filepath.Dir(file); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	// busy_timeout has to be set on every pooled connection, so it goes in
	// the DSN rather than a one-off PRAGMA.
	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, err
	}
	// WAL lets readers proceed during writes; synchronous=NORMAL is safe with
	// WAL and skips an fsync per transaction.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA synchronous=NORMAL;
		PRAGMA cache_size=-8000;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	return newStore(db, sqliteDialect)
}

func openPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// The database container often comes up after the app does.
	err = retry.Do(
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return db.PingContext(ctx)
		},
		retry.Attempts(5),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("docstore: ping postgres: %w", err)
	}
	return newStore(db, postgresDialect)
}

func newStore(db *sql.DB, d dialect) (*Store, error) {
	s := &Store{db: db, d: d}
	if _, err := db.Exec(d.schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("docstore: ensure schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Driver reports the dialect in use.
func (s *Store) Driver() string {
	return s.d.name
}

// Create inserts a new document and returns its generated id.
func (s *Store) Create(ctx context.Context, collection string, f Fields) (string, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("%w: encode %s: %w", ErrWriteFailed, collection, err)
	}
	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx, s.d.insert, collection, id, string(data)); err != nil {
		return "", fmt.Errorf("%w: create %s: %w", ErrWriteFailed, collection, err)
	}
	return id, nil
}

// List returns every document in collection. Order is not guaranteed.
func (s *Store) List(ctx context.Context, collection string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, s.d.list, collection)
	if err != nil {
		return nil, fmt.Errorf("docstore: list %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("docstore: list %s: %w", collection, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("docstore: list %s: %w", collection, err)
	}
	return docs, nil
}

// Get returns one document or ErrNotFound.
func (s *Store) Get(ctx context.Context, collection, id string) (Document, error) {
	doc, err := scanDocument(s.db.QueryRowContext(ctx, s.d.get, collection, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	if err != nil {
		return Document{}, fmt.Errorf("docstore: get %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

// Update merges partial into the stored document in a single statement, so
// concurrent updates never interleave within one document: the last commit
// wins key by key.
func (s *Store) Update(ctx context.Context, collection, id string, partial Fields) error {
	patch, err := json.Marshal(partial)
	if err != nil {
		return fmt.Errorf("%w: encode %s/%s: %w", ErrWriteFailed, collection, id, err)
	}
	res, err := s.db.ExecContext(ctx, s.d.update, string(patch), collection, id)
	if err != nil {
		return fmt.Errorf("%w: update %s/%s: %w", ErrWriteFailed, collection, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: update %s/%s: %w", ErrWriteFailed, collection, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	return nil
}

// Delete removes a document. Deleting a missing id is not an error.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.db.ExecContext(ctx, s.d.delete, collection, id); err != nil {
		return fmt.Errorf("%w: delete %s/%s: %w", ErrWriteFailed, collection, id, err)
	}
	return nil
}

// FindByCredentials returns the first account whose username and password
// both match, or ErrNotFound.
func (s *Store) FindByCredentials(ctx context.Context, username, password string) (Document, error) {
	doc, err := scanDocument(s.db.QueryRowContext(ctx, s.d.findCreds, Accounts, username, password))
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("docstore: find credentials: %w", err)
	}
	return doc, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(sc scanner) (Document, error) {
	var (
		id   string
		data []byte
	)
	if err := sc.Scan(&id, &data); err != nil {
		return Document{}, err
	}
	return Document{ID: id, Data: json.RawMessage(data)}, nil
}
