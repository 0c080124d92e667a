// Package storage handles the SQLite catalog of cars and game servers.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "modernc.org/sqlite" // Driver sqlite
)

// ErrNotFound is returned by writes that target a missing row.
var ErrNotFound = errors.New("record not found")

// Repository manages the SQLite database connection.
type Repository struct {
	db *sql.DB
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// New opens the database at dbPath, sets connection pool parameters, and runs migrations.
func New(dbPath string) (*Repository, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// encodeJSON stores a document as JSON text; nil becomes def.
func encodeJSON(v map[string]any, def string) (string, error) {
	if v == nil {
		return def, nil
	}

	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}

	return string(b), nil
}

// decodeJSON reads a JSON text column; unreadable or empty text yields nil.
func decodeJSON(s string) map[string]any {
	if s == "" {
		return nil
	}

	var v map[string]any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil
	}

	return v
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}

	return sql.NullInt64{Int64: *p, Valid: true}
}

func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	return nil
}
