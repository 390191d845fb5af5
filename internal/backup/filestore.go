package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var ErrFileNotFound = errors.New("backup file not found")

type FileInfo struct {
	Name     string
	Size     int64
	Modified time.Time
}

// FileStore is somewhere backups can be kept: a local directory here, a
// cloud drive elsewhere.
type FileStore interface {
	Put(ctx context.Context, name string, data []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
	List(ctx context.Context) ([]FileInfo, error)
}

// DirStore keeps backups as .json files in one directory.
type DirStore struct {
	dir string
}

func NewDirStore(dir string) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}
	return &DirStore{dir: dir}, nil
}

func (s *DirStore) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid backup name %q", name)
	}
	return filepath.Join(s.dir, name), nil
}

func (s *DirStore) Put(ctx context.Context, name string, data []byte) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}

	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write backup: %w", err)
	}
	return nil
}

func (s *DirStore) Get(ctx context.Context, name string) ([]byte, error) {
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read backup: %w", err)
	}
	return data, nil
}

// List returns the stored backups, newest first.
func (s *DirStore) List(ctx context.Context) ([]FileInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}

	var out []FileInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, FileInfo{Name: e.Name(), Size: info.Size(), Modified: info.ModTime()})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Modified.Equal(out[j].Modified) {
			return out[i].Name > out[j].Name
		}
		return out[i].Modified.After(out[j].Modified)
	})
	return out, nil
}

// FileName is the default name for a backup taken at t.
func FileName(t time.Time) string {
	return fmt.Sprintf("productive-cloud-backup-%s.json", t.UTC().Format("2006-01-02-150405"))
}

// Save exports src into store under FileName(now).
func Save(ctx context.Context, src Source, store FileStore, now time.Time) (string, error) {
	f, err := Export(ctx, src, now)
	if err != nil {
		return "", err
	}
	data, err := f.Marshal()
	if err != nil {
		return "", fmt.Errorf("encode backup: %w", err)
	}

	name := FileName(now)
	if err := store.Put(ctx, name, data); err != nil {
		return "", err
	}
	return name, nil
}

// Load restores the named backup from store into dst.
func Load(ctx context.Context, store FileStore, name string, dst Sink, now time.Time) ([]string, error) {
	data, err := store.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	types, err := Restore(ctx, dst, data, now)
	if err != nil {
		return nil, err
	}

	out := make([]string, len(types))
	for i, dt := range types {
		out[i] = string(dt)
	}
	return out, nil
}
