package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hazyhaar/annot/annotation"
	"github.com/hazyhaar/annot/dbopen"
)

// Schema holds the SQLite layout: one row per collection key, the
// collection JSON as the value. The key space mirrors the document
// key convention (see Key), so imported data drops straight in.
const Schema = `
CREATE TABLE IF NOT EXISTS collections (
	k          TEXT PRIMARY KEY,
	v          TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// SQLite is a Store over an SQLite database opened with dbopen.
type SQLite struct {
	db *sql.DB
}

// NewSQLite wraps an already-open database. The caller owns db's
// schema; use OpenSQLite to get both in one step.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

// OpenSQLite opens (creating directories and schema as needed) the
// annotation database at path.
func OpenSQLite(path string, opts ...dbopen.Option) (*SQLite, error) {
	opts = append([]dbopen.Option{dbopen.WithMkdirAll(), dbopen.WithSchema(Schema)}, opts...)
	db, err := dbopen.Open(path, opts...)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) List(ctx context.Context, url string, kind annotation.Kind) ([]annotation.Record, error) {
	key, err := Key(url, kind)
	if err != nil {
		return nil, err
	}
	var data []byte
	err = s.db.QueryRowContext(ctx, `SELECT v FROM collections WHERE k = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: list %q: %w", key, err)
	}
	return decodeCollection(data)
}

func (s *SQLite) Replace(ctx context.Context, url string, kind annotation.Kind, recs []annotation.Record) error {
	key, err := Key(url, kind)
	if err != nil {
		return err
	}
	data, err := encodeCollection(recs)
	if err != nil {
		return err
	}
	_, err = dbopen.Exec(ctx, s.db,
		`INSERT INTO collections (k, v, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(k) DO UPDATE SET v = excluded.v, updated_at = excluded.updated_at`,
		key, data, annotation.Now())
	if err != nil {
		return fmt.Errorf("store: replace %q: %w", key, err)
	}
	return nil
}

func (s *SQLite) Clear(ctx context.Context, url string) error {
	if err := ValidateURL(url); err != nil {
		return err
	}
	return dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, kind := range []annotation.Kind{annotation.KindHighlight, annotation.KindText, annotation.KindDrawing} {
			key, err := Key(url, kind)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE k = ?`, key); err != nil {
				return fmt.Errorf("store: clear %q: %w", key, err)
			}
		}
		return nil
	})
}

func (s *SQLite) Close() error { return s.db.Close() }
