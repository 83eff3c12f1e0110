package docsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultPollInterval   = 5 * time.Second
	defaultMaxRetries     = 3
	defaultRetryBaseDelay = 250 * time.Millisecond
	defaultRetryMaxDelay  = 5 * time.Second
	writeTimeout          = 30 * time.Second
	baselineTimeout       = 5 * time.Second
)

type SessionOptions struct {
	// QuietInterval is how long edits must stay quiet before a write fires.
	QuietInterval time.Duration
	// PollInterval is the cadence of the background revision poll.
	PollInterval time.Duration
	// MaxRetries bounds automatic retries of a failed write. Only network
	// failures are retried.
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	Cache  *ContentCache
	Drafts DraftStore
	Logger *slog.Logger

	// DisablePolling turns off the background poll. Conflicts are then never
	// detected; intended for tests and one-shot commands.
	DisablePolling bool
}

func (o *SessionOptions) applyDefaults() error {
	if o.QuietInterval <= 0 {
		o.QuietInterval = defaultQuietInterval
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetries
	}
	if o.RetryBaseDelay <= 0 {
		o.RetryBaseDelay = defaultRetryBaseDelay
	}
	if o.RetryMaxDelay <= 0 {
		o.RetryMaxDelay = defaultRetryMaxDelay
	}
	if o.Cache == nil {
		cache, err := NewContentCache(defaultCacheSize)
		if err != nil {
			return err
		}
		o.Cache = cache
	}
	if o.Drafts == nil {
		o.Drafts = NewInMemoryDraftStore()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return nil
}

// Session synchronizes one remote document with local edits. The handle is
// fixed for the session's lifetime; a different document means a new session.
//
// All mutable session state is serialized through one mutex. The debounce
// timer, the poll goroutine and write completions all funnel through it, so
// listeners observe state transitions in event order.
type Session struct {
	handle Handle
	client RemoteClient
	opts   SessionOptions
	hub    *stateHub
	cache  *ContentCache
	drafts DraftStore
	logger *slog.Logger
	sched  *writeScheduler

	mu           sync.Mutex
	lastCommit   string
	remoteCommit string
	writing      bool
	resolving    bool
	historical   string
	closed       bool

	baseCtx    context.Context
	baseCancel context.CancelFunc
	pollCancel context.CancelFunc
	wg         sync.WaitGroup
}

func NewSession(client RemoteClient, handle Handle, opts SessionOptions) (*Session, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: remote client is required", ErrInvalidInput)
	}
	if err := handle.Validate(); err != nil {
		return nil, err
	}
	if err := opts.applyDefaults(); err != nil {
		return nil, err
	}
	s := &Session{
		handle: handle,
		client: client,
		opts:   opts,
		hub:    newStateHub(),
		cache:  opts.Cache,
		drafts: opts.Drafts,
		logger: opts.Logger.With("container", handle.ContainerID, "path", handle.Path),
	}
	s.baseCtx, s.baseCancel = context.WithCancel(context.Background())
	s.sched = newWriteScheduler(opts.QuietInterval, s.save)
	return s, nil
}

func (s *Session) Handle() Handle { return s.handle }

func (s *Session) State() SyncState { return s.hub.State() }

// Subscribe registers a state listener and returns its unsubscribe function.
func (s *Session) Subscribe(fn StateListener) func() {
	return s.hub.Subscribe(fn)
}

// Open loads the initial content and starts the background poll. A persisted
// draft wins over the cache and the remote copy; the session then starts with
// pending changes. The baseline revision is recorded so later polls can tell
// whether the remote moved.
func (s *Session) Open(ctx context.Context) (Payload, error) {
	draft, err := s.drafts.Load(s.handle)
	if err != nil {
		return Payload{}, err
	}
	if draft != nil {
		s.refreshBaseline(ctx)
		s.hub.set(func(st *SyncState) { st.PendingChanges = true })
		s.startPolling()
		return Payload{Kind: DetectKind(s.handle.Path), Text: draft.Content}, nil
	}

	kind := DetectKind(s.handle.Path)
	if cached, ok := s.cache.Get(s.handle, kind, ""); ok {
		s.refreshBaseline(ctx)
		s.startPolling()
		return cached.Payload, nil
	}

	payload, err := s.client.ReadContent(ctx, s.handle)
	if err != nil {
		return Payload{}, err
	}
	s.cache.Put(s.handle, "", payload)
	s.refreshBaseline(ctx)
	s.startPolling()
	return payload, nil
}

// Edit records a full-content snapshot. The draft store is updated first so
// the snapshot survives even if the process dies before the debounce fires.
func (s *Session) Edit(content string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.historical != "" {
		s.mu.Unlock()
		return fmt.Errorf("%w: historical view is read-only", ErrInvalidInput)
	}
	s.mu.Unlock()

	if err := s.drafts.Save(Draft{
		ContainerID: s.handle.ContainerID,
		Path:        s.handle.Path,
		Content:     content,
		SavedAt:     time.Now().UTC(),
	}); err != nil {
		return err
	}

	state := s.hub.set(func(st *SyncState) {
		st.PendingChanges = true
		if st.Status == StatusError {
			st.RetryCount = 0
			st.ErrorMessage = ""
		}
	})
	if state.Status == StatusConflict {
		// A conflict needs an explicit resolution before anything is written.
		return nil
	}
	s.sched.Edit(content)
	return nil
}

// ForceSave writes the current draft immediately, bypassing the debounce.
// It is the manual retry affordance after a terminal error. It cannot resolve
// a conflict: that always takes an explicit keep-local or take-remote call.
func (s *Session) ForceSave() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.mu.Unlock()

	if s.hub.State().Status == StatusConflict {
		return fmt.Errorf("%w: resolve the conflict before saving", ErrConflict)
	}

	draft, err := s.drafts.Load(s.handle)
	if err != nil {
		return err
	}
	if draft == nil {
		return nil
	}
	s.hub.set(func(st *SyncState) {
		st.RetryCount = 0
		st.ErrorMessage = ""
	})
	s.sched.Edit(draft.Content)
	s.sched.Flush()
	return nil
}

// Conflict returns the detected conflict details, or nil when the session is
// not in the conflict state.
func (s *Session) Conflict() *ConflictError {
	if s.hub.State().Status != StatusConflict {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return &ConflictError{
		Path:         s.handle.Path,
		LocalCommit:  s.lastCommit,
		RemoteCommit: s.remoteCommit,
	}
}

// ResolveKeepLocal resolves a conflict by re-issuing the local draft as a
// write, overwriting the remote revision.
func (s *Session) ResolveKeepLocal() error {
	if s.hub.State().Status != StatusConflict {
		return fmt.Errorf("%w: no conflict to resolve", ErrInvalidInput)
	}
	draft, err := s.drafts.Load(s.handle)
	if err != nil {
		return err
	}
	if draft == nil {
		return fmt.Errorf("%w: no local draft to keep", ErrInvalidInput)
	}
	s.mu.Lock()
	if s.remoteCommit != "" {
		s.lastCommit = s.remoteCommit
	}
	s.remoteCommit = ""
	s.resolving = true
	s.mu.Unlock()

	s.sched.Edit(draft.Content)
	s.sched.Flush()
	return nil
}

// ResolveTakeRemote resolves a conflict by discarding the local draft and
// adopting the remote revision. Returns the freshly fetched payload.
func (s *Session) ResolveTakeRemote(ctx context.Context) (Payload, error) {
	if s.hub.State().Status != StatusConflict {
		return Payload{}, fmt.Errorf("%w: no conflict to resolve", ErrInvalidInput)
	}
	if err := s.drafts.Delete(s.handle); err != nil {
		return Payload{}, err
	}
	s.cache.InvalidateLive(s.handle)
	payload, err := s.client.ReadContent(ctx, s.handle)
	if err != nil {
		return Payload{}, err
	}
	s.cache.Put(s.handle, "", payload)
	s.refreshBaseline(ctx)
	s.mu.Lock()
	s.remoteCommit = ""
	s.mu.Unlock()
	s.hub.set(func(st *SyncState) {
		st.Status = StatusSynced
		st.PendingChanges = false
		st.ErrorMessage = ""
		st.RetryCount = 0
	})
	return payload, nil
}

// History returns a browser over this document's revisions.
func (s *Session) History() *HistoryBrowser {
	return newHistoryBrowser(s)
}

// Close stops the poll, cancels any pending debounce without a trailing
// write, and cuts short an in-flight write's retry loop. An unsaved draft
// stays in the draft store for the next session.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancel := s.pollCancel
	s.pollCancel = nil
	s.mu.Unlock()

	s.sched.Close()
	s.baseCancel()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	return nil
}

// save is the scheduler's fire callback. Exactly one save runs at a time.
func (s *Session) save(content string) {
	defer s.sched.WriteDone()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	resolving := s.resolving
	s.resolving = false
	s.writing = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.writing = false
		s.mu.Unlock()
	}()

	// A conflict can be detected in the gap between the scheduler taking the
	// snapshot and this point. Only a keep-local resolution may write through
	// a conflict; anything else stays in the draft store until resolved.
	if !resolving && s.hub.State().Status == StatusConflict {
		return
	}

	s.hub.set(func(st *SyncState) { st.Status = StatusSyncing })

	ctx, cancel := context.WithTimeout(s.baseCtx, writeTimeout)
	defer cancel()

	var lastErr error
	for attempt := 0; ; attempt++ {
		err := s.client.WriteContent(ctx, s.handle, content)
		if err == nil {
			s.finishWrite()
			return
		}
		if errors.Is(err, ErrNetwork) && attempt < s.opts.MaxRetries {
			retry := attempt + 1
			s.logger.Warn("write failed, retrying", "attempt", retry, "error", err)
			s.hub.set(func(st *SyncState) { st.RetryCount = retry })
			if waitErr := waitWithContext(ctx, backoffDelay(s.opts.RetryBaseDelay, s.opts.RetryMaxDelay, retry)); waitErr != nil {
				lastErr = err
				break
			}
			continue
		}
		lastErr = err
		break
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		// Teardown cancelled the write; the snapshot is still in the draft
		// store and there is no listener left to act on an error state.
		return
	}

	s.logger.Error("write failed", "error", lastErr)
	s.hub.set(func(st *SyncState) {
		st.Status = StatusError
		st.ErrorMessage = lastErr.Error()
	})
}

func (s *Session) finishWrite() {
	ctx, cancel := context.WithTimeout(context.Background(), baselineTimeout)
	defer cancel()

	s.cache.InvalidateLive(s.handle)
	s.refreshBaseline(ctx)

	stillPending := s.sched.Pending()
	if !stillPending {
		if err := s.drafts.Delete(s.handle); err != nil {
			s.logger.Warn("draft cleanup failed", "error", err)
		}
	}
	now := time.Now().UTC()
	s.hub.set(func(st *SyncState) {
		st.Status = StatusSynced
		st.LastSyncedAt = &now
		st.PendingChanges = stillPending
		st.ErrorMessage = ""
		st.RetryCount = 0
	})
}

func (s *Session) refreshBaseline(ctx context.Context) {
	revs, err := s.client.ListRevisions(ctx, s.handle, 1)
	if err != nil {
		s.logger.Debug("baseline refresh failed", "error", err)
		return
	}
	if len(revs) == 0 {
		return
	}
	s.mu.Lock()
	s.lastCommit = revs[0].CommitID
	s.mu.Unlock()
}

func (s *Session) startPolling() {
	if s.opts.DisablePolling {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.pollCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.pollCancel = cancel
	s.wg.Add(1)
	go s.pollLoop(ctx)
}

func (s *Session) pollLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollOnce(ctx)
		}
	}
}

// pollOnce checks whether the remote moved past the session's baseline.
// Polls are skipped while a write is outstanding and while a historical view
// is selected, so a completing write is never misread as a conflict.
func (s *Session) pollOnce(ctx context.Context) {
	if !s.pollAllowed() {
		return
	}
	revs, err := s.client.ListRevisions(ctx, s.handle, 1)
	s.applyPollResult(revs, err)
}

func (s *Session) pollAllowed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.writing || s.historical != "" {
		return false
	}
	switch s.hub.State().Status {
	case StatusSyncing, StatusError, StatusConflict:
		return false
	}
	return true
}

// applyPollResult acts on what a poll observed. The revision fetch ran
// without the lock held, so a debounced write may have started meanwhile; in
// that case the whole observation is discarded before any side effect and the
// next poll re-detects anything real. The conflict decision, the debounce
// cancel and the baseline bookkeeping all happen under the mutex, atomically
// with the writing re-check.
func (s *Session) applyPollResult(revs []RevisionRecord, err error) {
	s.mu.Lock()
	if s.closed || s.writing || s.historical != "" {
		s.mu.Unlock()
		return
	}
	observed := s.hub.State()
	switch observed.Status {
	case StatusSyncing, StatusError, StatusConflict:
		s.mu.Unlock()
		return
	}
	baseline := s.lastCommit

	if err != nil {
		s.mu.Unlock()
		if errors.Is(err, ErrNetwork) && (observed.Status == StatusIdle || observed.Status == StatusSynced) {
			s.logger.Warn("poll failed, going offline", "error", err)
			s.hub.set(func(st *SyncState) { st.Status = StatusOffline })
		}
		return
	}

	if len(revs) == 0 {
		s.mu.Unlock()
		s.recoverFromOffline(observed)
		return
	}
	latest := revs[0].CommitID
	if baseline == "" || latest == baseline {
		s.lastCommit = latest
		s.mu.Unlock()
		s.recoverFromOffline(observed)
		return
	}

	if observed.PendingChanges {
		s.remoteCommit = latest
		// Nothing may be written until the conflict is resolved, so any armed
		// debounce is dropped. The snapshot stays in the draft store.
		s.sched.Cancel()
		s.mu.Unlock()
		s.recoverFromOffline(observed)
		s.logger.Info("remote moved with local edits pending", "local", baseline, "remote", latest)
		s.hub.set(func(st *SyncState) { st.Status = StatusConflict })
		return
	}

	// Remote moved with nothing pending: adopt the new baseline silently.
	s.cache.InvalidateLive(s.handle)
	s.lastCommit = latest
	s.mu.Unlock()
	s.recoverFromOffline(observed)
}

func (s *Session) recoverFromOffline(observed SyncState) {
	if observed.Status != StatusOffline {
		return
	}
	recovered := StatusIdle
	if observed.LastSyncedAt != nil {
		recovered = StatusSynced
	}
	s.hub.set(func(st *SyncState) { st.Status = recovered })
}

func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = defaultRetryBaseDelay
	}
	if max <= 0 {
		max = defaultRetryMaxDelay
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}
