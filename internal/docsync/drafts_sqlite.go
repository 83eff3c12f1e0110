package docsync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteOperationTimeout = 5 * time.Second

// SQLiteDraftStore keeps drafts in a local sqlite database, the default for
// single-machine use where drafts should survive restarts without a server.
type SQLiteDraftStore struct {
	path   string
	openDB sqlOpenFunc

	initOnce sync.Once
	initErr  error
	db       *sql.DB
}

func NewSQLiteDraftStore(path string) (*SQLiteDraftStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: sqlite path is required", ErrInvalidInput)
	}
	return &SQLiteDraftStore{path: path, openDB: sql.Open}, nil
}

func (s *SQLiteDraftStore) Load(handle Handle) (*Draft, error) {
	if s == nil {
		return nil, nil
	}
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), sqliteOperationTimeout)
	defer cancel()

	draft := Draft{ContainerID: handle.ContainerID, Path: handle.Path}
	err := s.db.QueryRowContext(ctx,
		"SELECT content, saved_at FROM drafts WHERE container_id = ? AND path = ?",
		handle.ContainerID, handle.Path).Scan(&draft.Content, &draft.SavedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &draft, nil
}

func (s *SQLiteDraftStore) Save(draft Draft) error {
	if s == nil {
		return nil
	}
	if err := s.ensureReady(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), sqliteOperationTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO drafts (container_id, path, content, saved_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (container_id, path)
		DO UPDATE SET content = excluded.content, saved_at = excluded.saved_at`,
		draft.ContainerID, draft.Path, draft.Content, draft.SavedAt)
	return err
}

func (s *SQLiteDraftStore) Delete(handle Handle) error {
	if s == nil {
		return nil
	}
	if err := s.ensureReady(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), sqliteOperationTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		"DELETE FROM drafts WHERE container_id = ? AND path = ?",
		handle.ContainerID, handle.Path)
	return err
}

func (s *SQLiteDraftStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteDraftStore) ensureReady() error {
	if s == nil {
		return ErrInvalidInput
	}
	s.initOnce.Do(func() {
		db, err := s.openDB("sqlite3", s.path)
		if err != nil {
			s.initErr = err
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), sqliteOperationTimeout)
		defer cancel()

		if _, err := db.ExecContext(ctx, `
			CREATE TABLE IF NOT EXISTS drafts (
				container_id TEXT NOT NULL,
				path TEXT NOT NULL,
				content TEXT NOT NULL,
				saved_at TIMESTAMP NOT NULL,
				PRIMARY KEY (container_id, path)
			)`); err != nil {
			_ = db.Close()
			s.initErr = err
			return
		}
		s.db = db
	})
	return s.initErr
}
