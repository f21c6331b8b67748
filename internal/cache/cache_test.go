package cache

import (
	"os"
	"path/filepath"
	"testing"
)

type entry struct {
	Title string `json:"title"`
	Count int    `json:"count"`
}

func newTestCache(t *testing.T) *FileCache {
	t.Helper()
	c, err := NewFileCache(NewFileCacheParams{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	return c
}

func TestFileCache_SaveAndLoad(t *testing.T) {
	c := newTestCache(t)

	saved := entry{Title: "Pride and Prejudice", Count: 42}
	if err := c.Save(saved, "graphs", "1342", "all"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	var loaded entry
	ok, err := c.Load(&loaded, "graphs", "1342", "all")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ok {
		t.Fatal("expected entry to exist")
	}
	if loaded != saved {
		t.Fatalf("expected %+v, got %+v", saved, loaded)
	}
}

func TestFileCache_MissingEntryIsNotAnError(t *testing.T) {
	c := newTestCache(t)

	var out entry
	ok, err := c.Load(&out, "graphs", "999", "all")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ok {
		t.Fatal("expected entry to be absent")
	}
}

func TestFileCache_KeysDoNotCollide(t *testing.T) {
	c := newTestCache(t)

	if err := c.Save(entry{Title: "full"}, "graphs", "11", "all"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := c.Save(entry{Title: "names"}, "graphs", "11", "names"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	var out entry
	if ok, _ := c.Load(&out, "graphs", "11", "all"); !ok || out.Title != "full" {
		t.Fatalf("expected full-mode entry, got ok=%v %+v", ok, out)
	}
	if ok, _ := c.Load(&out, "graphs", "11", "names"); !ok || out.Title != "names" {
		t.Fatalf("expected names-mode entry, got ok=%v %+v", ok, out)
	}
}

func TestFileCache_CorruptEntryRemovedAndAbsent(t *testing.T) {
	root := t.TempDir()
	c, err := NewFileCache(NewFileCacheParams{Root: root})
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}

	path := filepath.Join(root, "chunks", "11.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	var out entry
	ok, err := c.Load(&out, "chunks", "11")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ok {
		t.Fatal("expected corrupt entry to be reported absent")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("expected corrupt entry file to be removed")
	}
}

func TestFileCache_RejectsUnsafeKeyParts(t *testing.T) {
	c := newTestCache(t)

	var out entry
	for _, parts := range [][]string{
		{},
		{""},
		{"graphs", "../escape"},
		{"graphs", "a/b"},
		{".."},
	} {
		if _, err := c.Load(&out, parts...); err == nil {
			t.Fatalf("expected error for key parts %v", parts)
		}
		if err := c.Save(out, parts...); err == nil {
			t.Fatalf("expected error for key parts %v", parts)
		}
	}
}

func TestFileCache_OverwriteReplacesEntry(t *testing.T) {
	c := newTestCache(t)

	if err := c.Save(entry{Count: 1}, "books", "11"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := c.Save(entry{Count: 2}, "books", "11"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	var out entry
	if ok, _ := c.Load(&out, "books", "11"); !ok || out.Count != 2 {
		t.Fatalf("expected replaced entry, got ok=%v %+v", ok, out)
	}
}
