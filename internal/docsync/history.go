package docsync

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

const defaultRevisionLimit = 50

// HistoryBrowser exposes a document's revision history and read-only views of
// past revisions. Historical payloads are cached under commit-scoped keys so
// browsing never disturbs the live entry.
type HistoryBrowser struct {
	session *Session

	mu        sync.Mutex
	revisions []RevisionRecord
	loaded    bool
}

func newHistoryBrowser(session *Session) *HistoryBrowser {
	return &HistoryBrowser{session: session}
}

// Revisions returns the revision list, newest first. The list is fetched
// lazily on first call and kept for the session's lifetime.
func (b *HistoryBrowser) Revisions(ctx context.Context) ([]RevisionRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.loaded {
		return b.revisions, nil
	}
	revs, err := b.session.client.ListRevisions(ctx, b.session.handle, defaultRevisionLimit)
	if err != nil {
		return nil, err
	}
	b.revisions = revs
	b.loaded = true
	return revs, nil
}

// Select switches the session to a read-only view of the given revision.
// Polling continues in the background but its results are not surfaced until
// Current is called.
func (b *HistoryBrowser) Select(ctx context.Context, commitID string) (Payload, error) {
	commitID = strings.TrimSpace(commitID)
	if commitID == "" {
		return Payload{}, fmt.Errorf("%w: commit id is required", ErrInvalidInput)
	}
	s := b.session
	kind := DetectKind(s.handle.Path)
	if cached, ok := s.cache.Get(s.handle, kind, commitID); ok {
		s.setHistorical(commitID)
		return cached.Payload, nil
	}
	payload, err := s.client.ReadRevision(ctx, s.handle, commitID)
	if err != nil {
		return Payload{}, err
	}
	s.cache.Put(s.handle, commitID, payload)
	s.setHistorical(commitID)
	return payload, nil
}

// Selected returns the commit id of the current historical view, or the
// empty string when the session is live.
func (b *HistoryBrowser) Selected() string {
	b.session.mu.Lock()
	defer b.session.mu.Unlock()
	return b.session.historical
}

// Current leaves the historical view. The live cache entry is invalidated
// and the document is re-read so the caller sees the freshest remote state.
func (b *HistoryBrowser) Current(ctx context.Context) (Payload, error) {
	s := b.session
	s.setHistorical("")
	s.cache.InvalidateLive(s.handle)
	payload, err := s.client.ReadContent(ctx, s.handle)
	if err != nil {
		return Payload{}, err
	}
	s.cache.Put(s.handle, "", payload)
	s.refreshBaseline(ctx)
	return payload, nil
}

// Revert restores the document (or the whole snapshot) to the given revision
// on the remote side and invalidates the live cache entries of every
// affected path.
func (b *HistoryBrowser) Revert(ctx context.Context, commitID string, scope RevertScope) ([]string, error) {
	s := b.session
	affected, err := s.client.Revert(ctx, s.handle, commitID, scope)
	if err != nil {
		return nil, err
	}
	for _, path := range affected {
		s.cache.InvalidateLive(Handle{ContainerID: s.handle.ContainerID, Path: path})
	}
	s.cache.InvalidateLive(s.handle)
	s.refreshBaseline(ctx)
	b.mu.Lock()
	b.loaded = false
	b.revisions = nil
	b.mu.Unlock()
	return affected, nil
}

// CommitInfo previews which paths a revert to the given commit would touch.
func (b *HistoryBrowser) CommitInfo(ctx context.Context, commitID string) (CommitInfo, error) {
	return b.session.client.CommitInfo(ctx, b.session.handle, commitID)
}

func (s *Session) setHistorical(commitID string) {
	s.mu.Lock()
	s.historical = commitID
	s.mu.Unlock()
}
