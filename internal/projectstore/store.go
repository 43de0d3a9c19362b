package projectstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"ticketforge/internal/safeio"
	t "ticketforge/internal/types"
	"ticketforge/internal/util/jsonutil"
)

const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"

	DefaultCacheSize = 256
)

// Options selects and configures a backend.
type Options struct {
	Backend   string
	Dir       string // file backend root
	DSN       string // postgres DSN or sqlite path
	CacheSize int
}

// Store persists whole ProjectState documents keyed by id. It does no
// locking across processes; the last writer wins.
type Store struct {
	// file backend
	dir  string
	fsMu sync.Mutex
	fs   *safeio.SafeFS

	// sql backends
	db         *sql.DB
	driver     string
	schemaOnce sync.Once
	schemaErr  error
	cache      *lru.Cache[string, []byte]
}

// Open builds the backend named by opts.Backend. An empty backend means file.
func Open(opts Options) (*Store, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendFile:
		return NewFile(opts.Dir), nil
	case BackendPostgres, "pg":
		return NewPostgres(opts.DSN, opts.CacheSize)
	case BackendSQLite:
		return NewSQLite(opts.DSN, opts.CacheSize)
	default:
		return nil, fmt.Errorf("projectstore: unknown backend %q", opts.Backend)
	}
}

func (s *Store) Backend() string {
	if s.db == nil {
		return BackendFile
	}
	if s.driver == "pgx" {
		return BackendPostgres
	}
	return BackendSQLite
}

func validID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("projectstore: empty project id")
	}
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("projectstore: invalid project id %q: %w", id, safeio.ErrTraversal)
	}
	return nil
}

func encode(p t.ProjectState) ([]byte, error) {
	p.Normalize()
	return jsonutil.MarshalIndentNoEscape(p)
}

func decode(b []byte) (t.ProjectState, error) {
	var p t.ProjectState
	if err := jsonutil.UnmarshalFlex(b, &p); err != nil {
		return t.ProjectState{}, err
	}
	p.Normalize()
	return p, nil
}

// Put writes the whole document. Timestamps are stored as given.
func (s *Store) Put(ctx context.Context, p t.ProjectState) error {
	if err := validID(p.ID); err != nil {
		return err
	}
	doc, err := encode(p)
	if err != nil {
		return fmt.Errorf("projectstore: encode %s: %w", p.ID, err)
	}
	if s.db != nil {
		return s.putDB(ctx, p, doc)
	}
	return s.putFile(p.ID, doc)
}

// Get returns types.ErrNotFound when no document exists for id.
func (s *Store) Get(ctx context.Context, id string) (t.ProjectState, error) {
	if err := validID(id); err != nil {
		return t.ProjectState{}, err
	}
	var (
		doc []byte
		err error
	)
	if s.db != nil {
		doc, err = s.getDB(ctx, id)
	} else {
		doc, err = s.getFile(id)
	}
	if err != nil {
		return t.ProjectState{}, err
	}
	p, err := decode(doc)
	if err != nil {
		return t.ProjectState{}, fmt.Errorf("projectstore: decode %s: %w", id, err)
	}
	return p, nil
}

func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	if err := validID(id); err != nil {
		return false, err
	}
	if s.db != nil {
		return s.existsDB(ctx, id)
	}
	return s.existsFile(id)
}

// List returns up to limit projects in id order. Documents that cannot be
// read or decoded are skipped. limit <= 0 means no limit.
func (s *Store) List(ctx context.Context, limit int) ([]t.ProjectState, error) {
	if s.db != nil {
		return s.listDB(ctx, limit)
	}
	return s.listFile(limit)
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
