package cache

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestFileCache_PutGet(t *testing.T) {
	fc := NewFileCache(4, zerolog.Nop())
	mtime := time.Now()

	fc.Put("/a", []byte("content-a"), mtime)

	entry, ok := fc.Get("/a", mtime)
	if !ok {
		t.Fatal("expected hit")
	}
	if !bytes.Equal(entry.Content, []byte("content-a")) {
		t.Errorf("content = %q", entry.Content)
	}
}

func TestFileCache_StaleModTimeIsMiss(t *testing.T) {
	fc := NewFileCache(4, zerolog.Nop())
	mtime := time.Now()

	fc.Put("/a", []byte("old"), mtime)

	if _, ok := fc.Get("/a", mtime.Add(time.Second)); ok {
		t.Error("expected miss for different mtime")
	}
	// The stale entry is still present until replaced.
	if fc.Len() != 1 {
		t.Errorf("len = %d, want 1", fc.Len())
	}
}

func TestFileCache_ReplaceExisting(t *testing.T) {
	fc := NewFileCache(4, zerolog.Nop())
	m1 := time.Now()
	m2 := m1.Add(time.Minute)

	fc.Put("/a", []byte("v1"), m1)
	fc.Put("/a", []byte("v2"), m2)

	if fc.Len() != 1 {
		t.Fatalf("len = %d, want 1", fc.Len())
	}
	entry, ok := fc.Get("/a", m2)
	if !ok || string(entry.Content) != "v2" {
		t.Errorf("entry = %+v ok=%v, want v2", entry, ok)
	}
}

func TestFileCache_EvictsLeastRecentlyUsed(t *testing.T) {
	fc := NewFileCache(3, zerolog.Nop())
	mtime := time.Now()

	for i := 0; i < 3; i++ {
		fc.Put(fmt.Sprintf("/f%d", i), []byte("x"), mtime)
	}

	// Touch /f0 so /f1 becomes the eviction candidate.
	if _, ok := fc.Get("/f0", mtime); !ok {
		t.Fatal("expected hit for /f0")
	}

	fc.Put("/f3", []byte("x"), mtime)

	if fc.Len() != 3 {
		t.Fatalf("len = %d, want bound of 3", fc.Len())
	}
	if _, ok := fc.Get("/f1", mtime); ok {
		t.Error("/f1 should have been evicted")
	}
	for _, key := range []string{"/f0", "/f2", "/f3"} {
		if _, ok := fc.Get(key, mtime); !ok {
			t.Errorf("%s should have survived", key)
		}
	}
}

func TestFileCache_RejectsEmptyContent(t *testing.T) {
	fc := NewFileCache(4, zerolog.Nop())
	mtime := time.Now()

	fc.Put("/empty", nil, mtime)

	if fc.Len() != 0 {
		t.Errorf("len = %d, want empty content rejected", fc.Len())
	}
}

func TestFileCache_BoundHoldsUnderChurn(t *testing.T) {
	fc := NewFileCache(5, zerolog.Nop())
	mtime := time.Now()

	for i := 0; i < 100; i++ {
		fc.Put(fmt.Sprintf("/f%d", i), []byte("x"), mtime)
		if fc.Len() > 5 {
			t.Fatalf("len = %d after put %d, bound violated", fc.Len(), i)
		}
	}
}
