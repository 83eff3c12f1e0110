package docsync

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func testDraft(content string) Draft {
	return Draft{
		ContainerID: "sbx_1",
		Path:        "docs/readme.md",
		Content:     content,
		SavedAt:     time.Now().UTC().Truncate(time.Second),
	}
}

func exerciseDraftStore(t *testing.T, store DraftStore) {
	t.Helper()
	handle := Handle{ContainerID: "sbx_1", Path: "docs/readme.md"}

	draft, err := store.Load(handle)
	if err != nil || draft != nil {
		t.Fatalf("expected no draft initially, got %+v, %v", draft, err)
	}

	if err := store.Save(testDraft("first")); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := store.Save(testDraft("second")); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	draft, err = store.Load(handle)
	if err != nil || draft == nil || draft.Content != "second" {
		t.Fatalf("expected newest draft, got %+v, %v", draft, err)
	}

	other, err := store.Load(Handle{ContainerID: "sbx_1", Path: "docs/other.md"})
	if err != nil || other != nil {
		t.Fatalf("drafts must be keyed per path, got %+v, %v", other, err)
	}

	if err := store.Delete(handle); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	draft, err = store.Load(handle)
	if err != nil || draft != nil {
		t.Fatalf("expected draft gone after delete, got %+v, %v", draft, err)
	}
	if err := store.Delete(handle); err != nil {
		t.Fatalf("deleting a missing draft must be a no-op, got %v", err)
	}
}

func TestInMemoryDraftStore(t *testing.T) {
	exerciseDraftStore(t, NewInMemoryDraftStore())
}

func TestJSONFileDraftStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "drafts.json")
	store := NewJSONFileDraftStore(path)
	exerciseDraftStore(t, store)

	// Drafts survive a store restart.
	if err := store.Save(testDraft("persisted")); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	reopened := NewJSONFileDraftStore(path)
	draft, err := reopened.Load(Handle{ContainerID: "sbx_1", Path: "docs/readme.md"})
	if err != nil || draft == nil || draft.Content != "persisted" {
		t.Fatalf("expected draft after reopen, got %+v, %v", draft, err)
	}
}

func TestSQLiteDraftStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drafts.db")
	store, err := NewSQLiteDraftStore(path)
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	defer store.Close()
	exerciseDraftStore(t, store)
}

func TestBuildDraftStoreFromDSN(t *testing.T) {
	store, err := BuildDraftStoreFromDSN("")
	if err != nil {
		t.Fatalf("empty dsn: %v", err)
	}
	if _, ok := store.(*InMemoryDraftStore); !ok {
		t.Fatalf("expected in-memory store for empty dsn, got %T", store)
	}

	store, err = BuildDraftStoreFromDSN("memory://")
	if err != nil {
		t.Fatalf("memory dsn: %v", err)
	}
	if _, ok := store.(*InMemoryDraftStore); !ok {
		t.Fatalf("expected in-memory store, got %T", store)
	}

	path := filepath.Join(t.TempDir(), "drafts.json")
	store, err = BuildDraftStoreFromDSN(path)
	if err != nil {
		t.Fatalf("bare path dsn: %v", err)
	}
	fileStore, ok := store.(*JSONFileDraftStore)
	if !ok || fileStore.Path != path {
		t.Fatalf("expected file store at %s, got %T %+v", path, store, store)
	}

	store, err = BuildDraftStoreFromDSN("sqlite:" + filepath.Join(t.TempDir(), "drafts.db"))
	if err != nil {
		t.Fatalf("sqlite dsn: %v", err)
	}
	if _, ok := store.(*SQLiteDraftStore); !ok {
		t.Fatalf("expected sqlite store, got %T", store)
	}

	if _, err := BuildDraftStoreFromDSN("mysql://localhost/drafts"); !errors.Is(err, ErrNotImplemented) {
		t.Fatalf("expected not implemented for mysql, got %v", err)
	}
	if _, err := BuildDraftStoreFromDSN("carrierpigeon://coop"); err == nil {
		t.Fatalf("expected an error for an unknown scheme")
	}
}

func TestRegisteredFactoryOverridesBuiltins(t *testing.T) {
	custom := NewInMemoryDraftStore()
	RegisterDraftStoreFactory("vault", func(dsn string) (DraftStore, error) {
		return custom, nil
	})
	store, err := BuildDraftStoreFromDSN("vault://drafts")
	if err != nil {
		t.Fatalf("custom scheme: %v", err)
	}
	if store != custom {
		t.Fatalf("expected the registered factory's store, got %T", store)
	}
}
