package docsync

import (
	"fmt"
	"net/url"
	"strings"
)

// BuildDraftStoreFromDSN selects a draft store by DSN scheme. An empty DSN
// yields an in-memory store. Externally registered factories win over the
// built-in schemes so deployments can plug in their own storage.
func BuildDraftStoreFromDSN(dsn string) (DraftStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return NewInMemoryDraftStore(), nil
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, err
	}
	scheme := strings.ToLower(strings.TrimSpace(parsed.Scheme))
	if factory, ok := lookupDraftStoreFactory(scheme); ok {
		return factory(dsn)
	}
	switch scheme {
	case "", "file":
		path, pathErr := dsnPath(parsed, dsn)
		if pathErr != nil {
			return nil, pathErr
		}
		return NewJSONFileDraftStore(path), nil
	case "memory", "mem", "inmem":
		return NewInMemoryDraftStore(), nil
	case "sqlite", "sqlite3":
		path, pathErr := dsnPath(parsed, dsn)
		if pathErr != nil {
			return nil, pathErr
		}
		return NewSQLiteDraftStore(path)
	case "postgres", "postgresql":
		return NewPostgresDraftStore(dsn)
	case "mysql":
		return nil, fmt.Errorf("%w: draft store %s", ErrNotImplemented, scheme)
	default:
		return nil, fmt.Errorf("unsupported draft store scheme: %s", scheme)
	}
}

func dsnPath(parsed *url.URL, raw string) (string, error) {
	if parsed == nil {
		return "", ErrInvalidInput
	}
	if strings.TrimSpace(parsed.Scheme) == "" {
		if strings.TrimSpace(raw) == "" {
			return "", ErrInvalidInput
		}
		return strings.TrimSpace(raw), nil
	}
	path := strings.TrimSpace(parsed.Path)
	if path == "" {
		path = strings.TrimSpace(parsed.Opaque)
	}
	if path == "" {
		path = strings.TrimSpace(parsed.Host)
	}
	if path == "" {
		return "", ErrInvalidInput
	}
	return path, nil
}
