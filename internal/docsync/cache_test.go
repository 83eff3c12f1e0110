package docsync

import "testing"

func TestCacheLiveAndHistoricalKeysAreIndependent(t *testing.T) {
	cache, err := NewContentCache(8)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	handle := Handle{ContainerID: "sbx_1", Path: "docs/a.md"}

	cache.Put(handle, "", Payload{Kind: KindText, Text: "live"})
	cache.Put(handle, "c1", Payload{Kind: KindText, Text: "historic"})

	live, ok := cache.Get(handle, KindText, "")
	if !ok || live.Payload.Text != "live" {
		t.Fatalf("expected live entry, got %+v, %v", live, ok)
	}
	historic, ok := cache.Get(handle, KindText, "c1")
	if !ok || historic.Payload.Text != "historic" {
		t.Fatalf("expected historical entry, got %+v, %v", historic, ok)
	}

	cache.InvalidateLive(handle)
	if _, ok := cache.Get(handle, KindText, ""); ok {
		t.Fatalf("expected live entry invalidated")
	}
	if _, ok := cache.Get(handle, KindText, "c1"); !ok {
		t.Fatalf("live invalidation must not touch historical entries")
	}

	cache.InvalidateCommit(handle, "c1")
	if _, ok := cache.Get(handle, KindText, "c1"); ok {
		t.Fatalf("expected historical entry invalidated")
	}
}

func TestCacheKeysIncludeHandle(t *testing.T) {
	cache, err := NewContentCache(8)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	a := Handle{ContainerID: "sbx_1", Path: "docs/a.md"}
	b := Handle{ContainerID: "sbx_1", Path: "docs/b.md"}

	cache.Put(a, "", Payload{Kind: KindText, Text: "content a"})
	cache.Put(b, "", Payload{Kind: KindText, Text: "content b"})

	cache.InvalidateLive(a)
	if _, ok := cache.Get(b, KindText, ""); !ok {
		t.Fatalf("invalidating one path must not evict another")
	}
}

func TestCacheEvictsAtCapacity(t *testing.T) {
	cache, err := NewContentCache(2)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	for _, path := range []string{"a", "b", "c"} {
		cache.Put(Handle{ContainerID: "sbx_1", Path: path}, "", Payload{Kind: KindText, Text: path})
	}
	if cache.Len() != 2 {
		t.Fatalf("expected capacity-bounded cache, got %d entries", cache.Len())
	}
	if _, ok := cache.Get(Handle{ContainerID: "sbx_1", Path: "a"}, KindText, ""); ok {
		t.Fatalf("expected oldest entry evicted")
	}
}
