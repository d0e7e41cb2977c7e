// Package store persists crawled listings as named documents. The store is
// the index's document source: Documents returns every name with its text.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/crawler"
	apperrors "github.com/Adithya-Monish-Kumar-K/appsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/database"
)

// Document is one stored listing. Name is unique; a later write under the
// same name replaces the earlier one.
type Document struct {
	Name        string    `db:"name" json:"name"`
	AppID       string    `db:"app_id" json:"app_id"`
	URL         string    `db:"url" json:"url"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	FetchedAt   time.Time `db:"-" json:"fetched_at"`
}

// Text is what gets indexed.
func (d Document) Text() string {
	switch {
	case d.Title == "":
		return d.Description
	case d.Description == "":
		return d.Title
	}
	return d.Title + " " + d.Description
}

func FromListing(l crawler.Listing) Document {
	return Document{
		Name:        l.Name(),
		AppID:       l.AppID,
		URL:         l.URL,
		Title:       l.Title,
		Description: l.Description,
		FetchedAt:   l.FetchedAt,
	}
}

// row mirrors the table; fetched_at is kept as unix milliseconds so the
// same column works on every driver.
type row struct {
	Name        string `db:"name"`
	AppID       string `db:"app_id"`
	URL         string `db:"url"`
	Title       string `db:"title"`
	Description string `db:"description"`
	FetchedAt   int64  `db:"fetched_at"`
}

func (r row) document() Document {
	d := Document{Name: r.Name, AppID: r.AppID, URL: r.URL, Title: r.Title, Description: r.Description}
	if r.FetchedAt != 0 {
		d.FetchedAt = time.UnixMilli(r.FetchedAt).UTC()
	}
	return d
}

func toRow(d Document) row {
	r := row{Name: d.Name, AppID: d.AppID, URL: d.URL, Title: d.Title, Description: d.Description}
	if !d.FetchedAt.IsZero() {
		r.FetchedAt = d.FetchedAt.UnixMilli()
	}
	return r
}

type Store struct {
	db     *database.Client
	logger *slog.Logger
}

func New(db *database.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "store"),
	}
}

var schema = map[string]string{
	database.DriverSQLite: `CREATE TABLE IF NOT EXISTS documents (
	name        TEXT PRIMARY KEY,
	app_id      TEXT NOT NULL DEFAULT '',
	url         TEXT NOT NULL DEFAULT '',
	title       TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	fetched_at  INTEGER NOT NULL DEFAULT 0
)`,
	database.DriverPostgres: `CREATE TABLE IF NOT EXISTS documents (
	name        TEXT PRIMARY KEY,
	app_id      TEXT NOT NULL DEFAULT '',
	url         TEXT NOT NULL DEFAULT '',
	title       TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	fetched_at  BIGINT NOT NULL DEFAULT 0
)`,
	database.DriverMySQL: `CREATE TABLE IF NOT EXISTS documents (
	name        VARCHAR(512) NOT NULL PRIMARY KEY,
	app_id      VARCHAR(255) NOT NULL DEFAULT '',
	url         TEXT NOT NULL,
	title       TEXT NOT NULL,
	description MEDIUMTEXT NOT NULL,
	fetched_at  BIGINT NOT NULL DEFAULT 0
) CHARACTER SET utf8mb4`,
}

// Migrate creates the documents table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	ddl, ok := schema[s.db.Driver]
	if !ok {
		return fmt.Errorf("no schema for driver %q: %w", s.db.Driver, apperrors.ErrInvalidArgument)
	}
	if _, err := s.db.DB.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("migrating documents table: %w", err)
	}
	return nil
}

func (s *Store) upsertQuery() string {
	const cols = `INSERT INTO documents (name, app_id, url, title, description, fetched_at)
VALUES (:name, :app_id, :url, :title, :description, :fetched_at)`
	if s.db.Driver == database.DriverMySQL {
		return cols + `
ON DUPLICATE KEY UPDATE app_id = VALUES(app_id), url = VALUES(url), title = VALUES(title),
	description = VALUES(description), fetched_at = VALUES(fetched_at)`
	}
	return cols + `
ON CONFLICT (name) DO UPDATE SET app_id = excluded.app_id, url = excluded.url, title = excluded.title,
	description = excluded.description, fetched_at = excluded.fetched_at`
}

// Upsert writes docs in one transaction. Documents with an empty name are
// rejected before anything is written.
func (s *Store) Upsert(ctx context.Context, docs ...Document) error {
	for _, d := range docs {
		if d.Name == "" {
			return fmt.Errorf("document with url %q has no name: %w", d.URL, apperrors.ErrInvalidArgument)
		}
	}
	if len(docs) == 0 {
		return nil
	}
	query := s.upsertQuery()
	err := s.db.InTx(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PrepareNamedContext(ctx, query)
		if err != nil {
			return fmt.Errorf("preparing upsert: %w", err)
		}
		defer stmt.Close()
		for _, d := range docs {
			if _, err := stmt.ExecContext(ctx, toRow(d)); err != nil {
				return fmt.Errorf("upserting %q: %w", d.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Debug("documents upserted", "count", len(docs))
	return nil
}

func (s *Store) Get(ctx context.Context, name string) (Document, error) {
	var r row
	err := s.db.DB.GetContext(ctx, &r, s.db.DB.Rebind(
		`SELECT name, app_id, url, title, description, fetched_at FROM documents WHERE name = ?`), name)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, fmt.Errorf("%q: %w", name, apperrors.ErrDocumentNotFound)
	}
	if err != nil {
		return Document{}, fmt.Errorf("querying document %q: %w", name, err)
	}
	return r.document(), nil
}

// List returns documents ordered by name. limit <= 0 means no limit.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Document, error) {
	if offset < 0 {
		return nil, fmt.Errorf("offset %d: %w", offset, apperrors.ErrInvalidArgument)
	}
	q := `SELECT name, app_id, url, title, description, fetched_at FROM documents ORDER BY name`
	var args []any
	if limit > 0 {
		q += ` LIMIT ? OFFSET ?`
		args = append(args, limit, offset)
	} else if offset > 0 {
		return nil, fmt.Errorf("offset without limit: %w", apperrors.ErrInvalidArgument)
	}
	var rows []row
	if err := s.db.DB.SelectContext(ctx, &rows, s.db.DB.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	docs := make([]Document, len(rows))
	for i, r := range rows {
		docs[i] = r.document()
	}
	return docs, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.DB.GetContext(ctx, &n, `SELECT COUNT(*) FROM documents`); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

func (s *Store) Delete(ctx context.Context, name string) error {
	res, err := s.db.DB.ExecContext(ctx, s.db.DB.Rebind(`DELETE FROM documents WHERE name = ?`), name)
	if err != nil {
		return fmt.Errorf("deleting document %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting document %q: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("%q: %w", name, apperrors.ErrDocumentNotFound)
	}
	return nil
}

// Documents returns every stored document's indexable text keyed by name.
func (s *Store) Documents(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.DB.QueryxContext(ctx, `SELECT name, title, description FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("reading documents: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var d Document
		if err := rows.StructScan(&d); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		out[d.Name] = d.Text()
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading documents: %w", err)
	}
	return out, nil
}
