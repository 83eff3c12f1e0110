package docsync

import (
	"strings"
	"sync"
)

type DraftStoreFactory func(dsn string) (DraftStore, error)

var draftStoreRegistry = struct {
	mu        sync.RWMutex
	factories map[string]DraftStoreFactory
}{
	factories: map[string]DraftStoreFactory{},
}

// RegisterDraftStoreFactory maps a DSN scheme to a custom store constructor.
// Registrations override the built-in schemes.
func RegisterDraftStoreFactory(scheme string, factory DraftStoreFactory) {
	scheme = normalizeStoreScheme(scheme)
	if scheme == "" || factory == nil {
		return
	}
	draftStoreRegistry.mu.Lock()
	defer draftStoreRegistry.mu.Unlock()
	draftStoreRegistry.factories[scheme] = factory
}

func lookupDraftStoreFactory(scheme string) (DraftStoreFactory, bool) {
	scheme = normalizeStoreScheme(scheme)
	draftStoreRegistry.mu.RLock()
	defer draftStoreRegistry.mu.RUnlock()
	factory, ok := draftStoreRegistry.factories[scheme]
	return factory, ok
}

func normalizeStoreScheme(scheme string) string {
	return strings.ToLower(strings.TrimSpace(scheme))
}
