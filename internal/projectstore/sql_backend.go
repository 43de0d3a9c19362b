package projectstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	t "ticketforge/internal/types"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS projects (
  id TEXT PRIMARY KEY,
  document TEXT NOT NULL,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
)`

// NewPostgres opens a pgx-backed store and pings it.
func NewPostgres(dsn string, cacheSize int) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("projectstore: postgres DSN is empty")
	}
	return openSQL("pgx", dsn, cacheSize)
}

// NewSQLite opens a modernc SQLite database at path, creating its directory.
func NewSQLite(path string, cacheSize int) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = filepath.Join("data", "ticketforge.db")
	}
	dsn := path
	if !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	}
	return openSQL("sqlite", dsn, cacheSize)
}

func openSQL(driver, dsn string, cacheSize int) (*Store, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if driver == "sqlite" {
		db.SetMaxOpenConns(1)
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, []byte](cacheSize)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, driver: driver, cache: cache}, nil
}

var placeholderRe = regexp.MustCompile(`\$\d+`)

// rebind rewrites $n placeholders for drivers that take "?".
func (s *Store) rebind(q string) string {
	if s.driver == "pgx" {
		return q
	}
	return placeholderRe.ReplaceAllString(q, "?")
}

func (s *Store) ensureSchema(ctx context.Context) error {
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(context.WithoutCancel(ctx), schemaSQL)
	})
	return s.schemaErr
}

func (s *Store) putDB(ctx context.Context, p t.ProjectState, doc []byte) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
INSERT INTO projects (id, document, created_at, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id)
DO UPDATE SET document=EXCLUDED.document,
  created_at=EXCLUDED.created_at,
  updated_at=EXCLUDED.updated_at`),
		p.ID, string(doc), p.CreatedAt.Format(time.RFC3339Nano), p.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		s.cache.Remove(p.ID)
		return fmt.Errorf("projectstore: put %s: %w", p.ID, err)
	}
	s.cache.Add(p.ID, doc)
	return nil
}

func (s *Store) getDB(ctx context.Context, id string) ([]byte, error) {
	if doc, ok := s.cache.Get(id); ok {
		return doc, nil
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	var doc string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT document FROM projects WHERE id = $1`), id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, t.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("projectstore: get %s: %w", id, err)
	}
	s.cache.Add(id, []byte(doc))
	return []byte(doc), nil
}

func (s *Store) existsDB(ctx context.Context, id string) (bool, error) {
	if s.cache.Contains(id) {
		return true, nil
	}
	if err := s.ensureSchema(ctx); err != nil {
		return false, err
	}
	var one int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT 1 FROM projects WHERE id = $1`), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) listDB(ctx context.Context, limit int) ([]t.ProjectState, error) {
	out := []t.ProjectState{}
	if err := s.ensureSchema(ctx); err != nil {
		return out, err
	}
	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = s.db.QueryContext(ctx, s.rebind(`SELECT document FROM projects ORDER BY id LIMIT $1`), limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT document FROM projects ORDER BY id`)
	}
	if err != nil {
		return out, err
	}
	defer rows.Close()
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			continue
		}
		p, err := decode([]byte(doc))
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
