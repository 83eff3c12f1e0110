package mirror

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/agentworkforce/docsync/internal/docsync"
)

// EditSink receives full-content snapshots of the mirrored file. A sync
// session satisfies it.
type EditSink interface {
	Edit(content string) error
}

// Mirror materializes a synced document as a local file so any editor can be
// used, and feeds file changes back into the session as edits. The parent
// directory is watched rather than the file itself because most editors save
// through a rename, which replaces the watched inode.
type Mirror struct {
	session   EditSink
	localPath string
	logger    *slog.Logger

	watcher *fsnotify.Watcher

	mu       sync.Mutex
	lastHash string
	closed   bool

	wg sync.WaitGroup
}

func New(session EditSink, localPath string, logger *slog.Logger) (*Mirror, error) {
	if session == nil {
		return nil, fmt.Errorf("%w: session is required", docsync.ErrInvalidInput)
	}
	localPath = strings.TrimSpace(localPath)
	if localPath == "" {
		return nil, fmt.Errorf("%w: local path is required", docsync.ErrInvalidInput)
	}
	abs, err := filepath.Abs(localPath)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Mirror{
		session:   session,
		localPath: abs,
		logger:    logger.With("mirror", abs),
	}, nil
}

func (m *Mirror) LocalPath() string { return m.localPath }

// Start writes the initial payload to the local file and begins watching it.
func (m *Mirror) Start(initial docsync.Payload) error {
	if err := m.ApplyRemote(initial); err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(m.localPath)); err != nil {
		_ = watcher.Close()
		return err
	}
	m.watcher = watcher
	m.wg.Add(1)
	go m.loop()
	return nil
}

// ApplyRemote writes remote-accepted content to the local file. The write is
// recorded so its own fsnotify echo is not fed back as an edit.
func (m *Mirror) ApplyRemote(payload docsync.Payload) error {
	data := payload.Data
	if payload.Kind != docsync.KindBlob {
		data = []byte(payload.Text)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(m.localPath), 0o755); err != nil {
		return err
	}
	if err := writeFileAtomic(m.localPath, data, 0o644); err != nil {
		return err
	}
	m.lastHash = hashBytes(data)
	return nil
}

func (m *Mirror) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	watcher := m.watcher
	m.mu.Unlock()

	var err error
	if watcher != nil {
		err = watcher.Close()
	}
	m.wg.Wait()
	return err
}

func (m *Mirror) loop() {
	defer m.wg.Done()
	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if !m.relevant(event) {
				continue
			}
			m.handleChange()
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn("watch error", "error", err)
		}
	}
}

func (m *Mirror) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != m.localPath {
		return false
	}
	return event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Rename)
}

func (m *Mirror) handleChange() {
	data, err := os.ReadFile(m.localPath)
	if err != nil {
		// Editors replace files through rename; a transient miss resolves on
		// the follow-up create event.
		if errors.Is(err, os.ErrNotExist) {
			return
		}
		m.logger.Warn("read after change failed", "error", err)
		return
	}
	hash := hashBytes(data)

	m.mu.Lock()
	if m.closed || hash == m.lastHash {
		m.mu.Unlock()
		return
	}
	m.lastHash = hash
	m.mu.Unlock()

	if err := m.session.Edit(string(data)); err != nil {
		m.logger.Warn("edit rejected", "error", err)
	}
}

func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmpFile.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()
	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Chmod(mode); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return nil
}
