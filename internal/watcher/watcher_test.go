package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/queryscout/queryscout/internal/embedding"
	"github.com/queryscout/queryscout/internal/indexer"
	"github.com/queryscout/queryscout/internal/storage"
	"github.com/queryscout/queryscout/internal/vector"
)

func newWatcherFixture(t *testing.T) (*CorpusWatcher, storage.Storage, string) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	vectorIndex, err := vector.NewMemoryIndex(8)
	if err != nil {
		t.Fatalf("vector index: %v", err)
	}
	ix := indexer.New(store, embedding.NewMockEmbedder(8), vectorIndex, nil, nil)

	root := t.TempDir()
	w := New(ix, []string{root}, []string{".sql"}, true, nil)
	w.debounce = 20 * time.Millisecond
	return w, store, root
}

func waitForCount(t *testing.T, store storage.Storage, want int64) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		count, err := store.CountDocuments(context.Background())
		if err != nil {
			t.Fatalf("count: %v", err)
		}
		if count == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	count, _ := store.CountDocuments(context.Background())
	t.Fatalf("document count = %d, want %d", count, want)
}

func TestWatcher_IndexesNewFile(t *testing.T) {
	w, store, root := newWatcherFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	path := filepath.Join(root, "queries.sql")
	if err := os.WriteFile(path, []byte("SELECT 1 FROM a;\nSELECT 2 FROM b;\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitForCount(t, store, 2)
}

func TestWatcher_RemovesDeletedFile(t *testing.T) {
	w, store, root := newWatcherFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	path := filepath.Join(root, "queries.sql")
	if err := os.WriteFile(path, []byte("SELECT 1 FROM a;\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitForCount(t, store, 1)

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	waitForCount(t, store, 0)
}

func TestWatcher_IgnoresOtherExtensions(t *testing.T) {
	w, store, root := newWatcherFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("SELECT 1 FROM a;"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	count, err := store.CountDocuments(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("documents = %d, want 0 for an ignored extension", count)
	}
}

func TestWatcher_SyncExistingFiles(t *testing.T) {
	w, store, root := newWatcherFixture(t)
	path := filepath.Join(root, "existing.sql")
	if err := os.WriteFile(path, []byte("SELECT 1 FROM a;\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	w.SyncExistingFiles(ctx)
	waitForCount(t, store, 1)
}

func TestWatcher_CreatesMissingRoot(t *testing.T) {
	w, _, root := newWatcherFixture(t)
	missing := filepath.Join(root, "sub", "corpus")
	w.roots = []string{missing}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("start should create missing roots: %v", err)
	}
	defer w.Stop()

	if _, err := os.Stat(missing); err != nil {
		t.Errorf("root not created: %v", err)
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, _, _ := newWatcherFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	w.Stop()
	w.Stop()
}
