package backup

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDirStore(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "backups")

	s, err := NewDirStore(dir)
	if err != nil {
		t.Fatalf("NewDirStore() error = %v", err)
	}

	if _, err := s.Get(ctx, "missing.json"); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("Get(missing) error = %v", err)
	}
	if err := s.Put(ctx, "../escape.json", []byte("{}")); err == nil {
		t.Error("Put() accepted a path outside the directory")
	}

	if err := s.Put(ctx, "a.json", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := s.Put(ctx, "b.json", []byte(`{"b":2}`)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600)

	old := time.Now().Add(-time.Hour)
	os.Chtimes(filepath.Join(dir, "a.json"), old, old)

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 || list[0].Name != "b.json" || list[1].Name != "a.json" {
		t.Errorf("List() = %+v, want b.json then a.json", list)
	}

	got, err := s.Get(ctx, "a.json")
	if err != nil || string(got) != `{"a":1}` {
		t.Errorf("Get() = %s, %v", got, err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	s, err := NewDirStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDirStore() error = %v", err)
	}

	src := memStore{"settings": json.RawMessage(`{"theme":"dark"}`)}
	name, err := Save(ctx, src, s, exportTime)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if name != "productive-cloud-backup-2024-06-01-083000.json" {
		t.Errorf("Save() name = %q", name)
	}

	dst := memStore{}
	restored, err := Load(ctx, s, name, dst, exportTime)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(restored) != 2 {
		t.Errorf("Load() restored %v, want habits and settings", restored)
	}
	if string(dst["settings"]) != `{"theme":"dark"}` {
		t.Errorf("settings = %s", dst["settings"])
	}
}
