package docsync

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultCacheSize = 256

type cacheKey struct {
	ContainerID string
	Path        string
	Kind        ContentKind
	CommitID    string
}

type CachedContent struct {
	Payload   Payload
	FetchedAt time.Time
}

// ContentCache holds fetched payloads keyed by handle, kind and commit.
// Live entries use an empty commit id; historical reads are stored under
// their commit id so browsing a revision never disturbs the live entry.
type ContentCache struct {
	entries *lru.Cache[cacheKey, CachedContent]
	now     func() time.Time
}

func NewContentCache(size int) (*ContentCache, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	entries, err := lru.New[cacheKey, CachedContent](size)
	if err != nil {
		return nil, err
	}
	return &ContentCache{entries: entries, now: time.Now}, nil
}

func (c *ContentCache) Get(handle Handle, kind ContentKind, commitID string) (CachedContent, bool) {
	return c.entries.Get(cacheKey{
		ContainerID: handle.ContainerID,
		Path:        handle.Path,
		Kind:        kind,
		CommitID:    commitID,
	})
}

func (c *ContentCache) Put(handle Handle, commitID string, payload Payload) {
	c.entries.Add(cacheKey{
		ContainerID: handle.ContainerID,
		Path:        handle.Path,
		Kind:        payload.Kind,
		CommitID:    commitID,
	}, CachedContent{Payload: payload, FetchedAt: c.now()})
}

// InvalidateLive drops the live entry for every kind of the handle. A path's
// kind is derived from its extension, but dropping all three keys keeps the
// invalidation independent of detection.
func (c *ContentCache) InvalidateLive(handle Handle) {
	for _, kind := range []ContentKind{KindText, KindBlob, KindJSON} {
		c.entries.Remove(cacheKey{
			ContainerID: handle.ContainerID,
			Path:        handle.Path,
			Kind:        kind,
		})
	}
}

func (c *ContentCache) InvalidateCommit(handle Handle, commitID string) {
	for _, kind := range []ContentKind{KindText, KindBlob, KindJSON} {
		c.entries.Remove(cacheKey{
			ContainerID: handle.ContainerID,
			Path:        handle.Path,
			Kind:        kind,
			CommitID:    commitID,
		})
	}
}

func (c *ContentCache) Len() int {
	return c.entries.Len()
}
