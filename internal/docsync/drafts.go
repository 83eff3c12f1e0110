package docsync

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Draft is an unsaved local buffer for one document. It outlives the session
// so edits survive process restarts and teardown mid-debounce.
type Draft struct {
	ContainerID string    `json:"containerId"`
	Path        string    `json:"path"`
	Content     string    `json:"content"`
	SavedAt     time.Time `json:"savedAt"`
}

// DraftStore persists unsaved buffers keyed by (containerID, path).
// Load returns nil with no error when no draft exists.
type DraftStore interface {
	Load(handle Handle) (*Draft, error)
	Save(draft Draft) error
	Delete(handle Handle) error
	Close() error
}

func draftKey(handle Handle) string {
	return handle.ContainerID + "\x00" + handle.Path
}

type InMemoryDraftStore struct {
	mu     sync.Mutex
	drafts map[string]Draft
}

func NewInMemoryDraftStore() *InMemoryDraftStore {
	return &InMemoryDraftStore{drafts: make(map[string]Draft)}
}

func (s *InMemoryDraftStore) Load(handle Handle) (*Draft, error) {
	if s == nil {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	draft, ok := s.drafts[draftKey(handle)]
	if !ok {
		return nil, nil
	}
	clone := draft
	return &clone, nil
}

func (s *InMemoryDraftStore) Save(draft Draft) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[draftKey(Handle{ContainerID: draft.ContainerID, Path: draft.Path})] = draft
	return nil
}

func (s *InMemoryDraftStore) Delete(handle Handle) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, draftKey(handle))
	return nil
}

func (s *InMemoryDraftStore) Close() error { return nil }

// JSONFileDraftStore keeps all drafts in a single JSON file. Writes go
// through a temp file plus rename so a crash never leaves a torn file.
type JSONFileDraftStore struct {
	Path string

	mu sync.Mutex
}

func NewJSONFileDraftStore(path string) *JSONFileDraftStore {
	return &JSONFileDraftStore{Path: strings.TrimSpace(path)}
}

func (s *JSONFileDraftStore) Load(handle Handle) (*Draft, error) {
	if s == nil || strings.TrimSpace(s.Path) == "" {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	drafts, err := s.read()
	if err != nil {
		return nil, err
	}
	draft, ok := drafts[draftKey(handle)]
	if !ok {
		return nil, nil
	}
	clone := draft
	return &clone, nil
}

func (s *JSONFileDraftStore) Save(draft Draft) error {
	if s == nil || strings.TrimSpace(s.Path) == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	drafts, err := s.read()
	if err != nil {
		return err
	}
	drafts[draftKey(Handle{ContainerID: draft.ContainerID, Path: draft.Path})] = draft
	return s.write(drafts)
}

func (s *JSONFileDraftStore) Delete(handle Handle) error {
	if s == nil || strings.TrimSpace(s.Path) == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	drafts, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := drafts[draftKey(handle)]; !ok {
		return nil
	}
	delete(drafts, draftKey(handle))
	return s.write(drafts)
}

func (s *JSONFileDraftStore) Close() error { return nil }

func (s *JSONFileDraftStore) read() (map[string]Draft, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]Draft{}, nil
		}
		return nil, err
	}
	drafts := map[string]Draft{}
	if err := json.Unmarshal(data, &drafts); err != nil {
		return nil, err
	}
	return drafts, nil
}

func (s *JSONFileDraftStore) write(drafts map[string]Draft) error {
	data, err := json.Marshal(drafts)
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.Path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.Path)
}
