package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/accessally/accessally/internal/identity"
)

// FileLayout places one namespace's records as <Dir>/<Prefix>_<token><Ext>.
type FileLayout struct {
	Dir    string
	Prefix string
	Ext    string
}

// FileStore keeps each record in its own file.
type FileStore struct {
	layouts map[Namespace]FileLayout
}

// NewFileStore creates every layout directory if it does not exist yet.
func NewFileStore(layouts map[Namespace]FileLayout) (*FileStore, error) {
	for ns, l := range layouts {
		if strings.TrimSpace(l.Dir) == "" {
			return nil, fmt.Errorf("file store: no directory for namespace %q", ns)
		}
		if err := os.MkdirAll(l.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("file store: create %s: %w", l.Dir, err)
		}
	}
	return &FileStore{layouts: layouts}, nil
}

// Path returns the file backing (ns, key).
func (s *FileStore) Path(ns Namespace, key identity.Token) (string, error) {
	if err := checkKey(key); err != nil {
		return "", err
	}
	l, ok := s.layouts[ns]
	if !ok {
		return "", fmt.Errorf("file store: unknown namespace %q", ns)
	}
	return filepath.Join(l.Dir, fmt.Sprintf("%s_%s%s", l.Prefix, key, l.Ext)), nil
}

func (s *FileStore) Get(_ context.Context, ns Namespace, key identity.Token) ([]byte, error) {
	path, err := s.Path(ns, key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// Put writes to a temp file in the same directory and renames it over the
// record, so a failed write never leaves a truncated record behind.
func (s *FileStore) Put(_ context.Context, ns Namespace, key identity.Token, data []byte) error {
	path, err := s.Path(ns, key)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func (s *FileStore) Delete(_ context.Context, ns Namespace, key identity.Token) (bool, error) {
	path, err := s.Path(ns, key)
	if err != nil {
		return false, err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("remove %s: %w", path, err)
	}
	return true, nil
}

func (s *FileStore) Close() error { return nil }
