package projectstore

import (
	"errors"
	"io/fs"
	"sort"
	"strings"

	"ticketforge/internal/safeio"
	t "ticketforge/internal/types"
)

// NewFile stores one indented JSON document per project under dir. The
// directory is created on first write.
func NewFile(dir string) *Store {
	if strings.TrimSpace(dir) == "" {
		dir = "data/projects"
	}
	return &Store{dir: dir}
}

// root returns the SafeFS for the store directory, creating it when create
// is set. A nil SafeFS with a nil error means the directory does not exist.
func (s *Store) root(create bool) (*safeio.SafeFS, error) {
	s.fsMu.Lock()
	defer s.fsMu.Unlock()
	if s.fs != nil {
		return s.fs, nil
	}
	var (
		fsys *safeio.SafeFS
		err  error
	)
	if create {
		fsys, err = safeio.EnsureSafeFS(s.dir)
	} else {
		fsys, err = safeio.NewSafeFS(s.dir)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
	}
	if err != nil {
		return nil, err
	}
	s.fs = fsys
	return fsys, nil
}

func fileName(id string) string { return id + ".json" }

func (s *Store) putFile(id string, doc []byte) error {
	fsys, err := s.root(true)
	if err != nil {
		return err
	}
	return fsys.SafeWriteFile(fileName(id), doc, 0o644)
}

func (s *Store) getFile(id string) ([]byte, error) {
	fsys, err := s.root(false)
	if err != nil {
		return nil, err
	}
	if fsys == nil {
		return nil, t.ErrNotFound
	}
	b, err := fsys.SafeReadFile(fileName(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, t.ErrNotFound
	}
	return b, err
}

func (s *Store) existsFile(id string) (bool, error) {
	_, err := s.getFile(id)
	if errors.Is(err, t.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *Store) listFile(limit int) ([]t.ProjectState, error) {
	out := []t.ProjectState{}
	fsys, err := s.root(false)
	if err != nil || fsys == nil {
		return out, err
	}
	entries, err := fsys.SafeReadDir(".")
	if err != nil {
		return out, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)
	for _, id := range ids {
		if limit > 0 && len(out) == limit {
			break
		}
		b, err := fsys.SafeReadFile(fileName(id))
		if err != nil {
			continue
		}
		p, err := decode(b)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

