package persist_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/navkit-dev/navkit/persist"
)

func TestFileStore_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nav", "snapshot.json")
	store := persist.NewFileStore(path)
	ctx := context.Background()

	want := []byte(`[{"path":"/home"}]`)
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(got) != string(want) {
		t.Errorf("Load() = %s, want %s", got, want)
	}
}

func TestFileStore_LoadMissing(t *testing.T) {
	store := persist.NewFileStore(filepath.Join(t.TempDir(), "absent.json"))

	_, err := store.Load(context.Background())
	if !errors.Is(err, persist.ErrNoSnapshot) {
		t.Errorf("Load() error = %v, want %v", err, persist.ErrNoSnapshot)
	}
}

func TestFileStore_Overwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	store := persist.NewFileStore(path)
	ctx := context.Background()

	if err := store.Save(ctx, []byte(`[{"path":"/a"}]`)); err != nil {
		t.Fatalf("first Save() error = %v", err)
	}
	if err := store.Save(ctx, []byte(`[{"path":"/b"}]`)); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(got) != `[{"path":"/b"}]` {
		t.Errorf("Load() = %s, want latest snapshot", got)
	}
}

func TestFileStore_NoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	store := persist.NewFileStore(filepath.Join(dir, "snapshot.json"))

	if err := store.Save(context.Background(), []byte(`[]`)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".snapshot-") {
			t.Errorf("temp file %s left behind after Save", entry.Name())
		}
	}
}
