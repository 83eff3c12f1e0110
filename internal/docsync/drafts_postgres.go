package docsync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
)

const (
	postgresDraftTableName   = "docsync_drafts"
	postgresOperationTimeout = 5 * time.Second
)

type sqlOpenFunc func(driverName, dsn string) (*sql.DB, error)

// PostgresDraftStore persists drafts in a single table, created lazily on
// first use. Suited to shared deployments where several workstations point at
// the same sandbox.
type PostgresDraftStore struct {
	dsn       string
	tableName string
	openDB    sqlOpenFunc

	initOnce sync.Once
	initErr  error
	db       *sql.DB
}

func NewPostgresDraftStore(dsn string) (*PostgresDraftStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("%w: postgres dsn is required", ErrInvalidInput)
	}
	return &PostgresDraftStore{
		dsn:       dsn,
		tableName: postgresDraftTableName,
		openDB:    sql.Open,
	}, nil
}

func (s *PostgresDraftStore) Load(handle Handle) (*Draft, error) {
	if s == nil {
		return nil, nil
	}
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), postgresOperationTimeout)
	defer cancel()

	query := fmt.Sprintf(
		"SELECT content, saved_at FROM %s WHERE container_id = $1 AND path = $2",
		postgresQuoteIdentifier(s.tableName))
	draft := Draft{ContainerID: handle.ContainerID, Path: handle.Path}
	err := s.db.QueryRowContext(ctx, query, handle.ContainerID, handle.Path).Scan(&draft.Content, &draft.SavedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &draft, nil
}

func (s *PostgresDraftStore) Save(draft Draft) error {
	if s == nil {
		return nil
	}
	if err := s.ensureReady(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), postgresOperationTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		INSERT INTO %s (container_id, path, content, saved_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (container_id, path)
		DO UPDATE SET content = EXCLUDED.content, saved_at = EXCLUDED.saved_at`,
		postgresQuoteIdentifier(s.tableName))
	_, err := s.db.ExecContext(ctx, query, draft.ContainerID, draft.Path, draft.Content, draft.SavedAt)
	return err
}

func (s *PostgresDraftStore) Delete(handle Handle) error {
	if s == nil {
		return nil
	}
	if err := s.ensureReady(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), postgresOperationTimeout)
	defer cancel()

	query := fmt.Sprintf(
		"DELETE FROM %s WHERE container_id = $1 AND path = $2",
		postgresQuoteIdentifier(s.tableName))
	_, err := s.db.ExecContext(ctx, query, handle.ContainerID, handle.Path)
	return err
}

func (s *PostgresDraftStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresDraftStore) ensureReady() error {
	if s == nil {
		return ErrInvalidInput
	}
	s.initOnce.Do(func() {
		db, err := s.openDB("postgres", s.dsn)
		if err != nil {
			s.initErr = err
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), postgresOperationTimeout)
		defer cancel()

		query := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				container_id TEXT NOT NULL,
				path TEXT NOT NULL,
				content TEXT NOT NULL,
				saved_at TIMESTAMPTZ NOT NULL,
				PRIMARY KEY (container_id, path)
			)`, postgresQuoteIdentifier(s.tableName))
		if _, err := db.ExecContext(ctx, query); err != nil {
			_ = db.Close()
			s.initErr = err
			return
		}
		s.db = db
	})
	return s.initErr
}

func postgresQuoteIdentifier(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "\"\""
	}
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}
