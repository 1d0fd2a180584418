package atlas

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeAtomic(t *testing.T, path, contents string) {
	t.Helper()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(contents), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("rename: %v", err)
	}
}

func TestWatcherReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "capy_atlas.json")
	writeAtomic(t, path, capyAtlasJSON)

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })

	// unrelated files in the same directory are ignored
	writeAtomic(t, filepath.Join(dir, "notes.txt"), "hello")

	faster := strings.Replace(capyAtlasJSON, `"walk": {"start_index": 17, "count": 6, "fps": 4}`, `"walk": {"start_index": 17, "count": 6, "fps": 8}`, 1)
	writeAtomic(t, path, faster)

	select {
	case d := <-w.Reloads:
		if got := d.ResolveClip("walk").FPS; got != 8 {
			t.Fatalf("expected reloaded walk fps 8, got %v", got)
		}
	case err := <-w.Errors:
		t.Fatalf("unexpected watch error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestWatcherReportsInvalidEdit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "capy_atlas.yaml")
	writeAtomic(t, path, capyAtlasJSON)

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })

	writeAtomic(t, path, `{"frame_size": [64, 64], "atlas_size": [512, 512], "columns": 8, "animations": {"walk": {"start_index": 60, "count": 6, "fps": 4}}}`)

	select {
	case d := <-w.Reloads:
		t.Fatalf("expected no reload, got %+v", d)
	case err := <-w.Errors:
		if !errors.Is(err, ErrInvalidDescriptor) {
			t.Fatalf("expected ErrInvalidDescriptor, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for error")
	}
}

func TestWatcherCloseIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "capy_atlas.json")
	writeAtomic(t, path, capyAtlasJSON)

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, ok := <-w.Reloads; ok {
		t.Fatal("expected Reloads to be closed")
	}
}
