// Package session owns named pipeline sessions, keyed by user, device, and
// workspace. Lifecycle is init at first use, teardown on Close or Shutdown;
// there is no global mutable state behind it.
package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nameFly-top/vscode-codeBase/internal/config"
	"github.com/nameFly-top/vscode-codeBase/internal/pipeline"
	"github.com/nameFly-top/vscode-codeBase/internal/sink"
	"github.com/nameFly-top/vscode-codeBase/pkg/types"
)

// janitorInterval is how often each session's cache janitor enforces TTL and
// size limits.
const janitorInterval = 10 * time.Minute

// Key identifies a session.
type Key struct {
	UserID        string
	DeviceID      string
	WorkspacePath string
}

// Session is one named pipeline with its sink client and cache janitor.
type Session struct {
	ID  string
	Key Key

	pipeline *pipeline.Pipeline
	searcher sink.Searcher
	cancel   context.CancelFunc

	run     RunLock    // rejects concurrent runs within the session
	closeMu sync.Mutex // serializes teardown against an active run
}

// sinkFactory builds the sink pair for a session. Tests substitute it.
type sinkFactory func(cfg config.SinkConfig) (sink.ChunkSink, sink.Searcher)

func defaultSinkFactory(cfg config.SinkConfig) (sink.ChunkSink, sink.Searcher) {
	c := sink.NewHTTPClient(cfg)
	return c, c
}

// Manager owns all sessions.
type Manager struct {
	cfg     config.Config
	newSink sinkFactory

	mu       sync.Mutex
	sessions map[Key]*Session
	closed   bool
}

// NewManager creates a session manager over a frozen base configuration.
func NewManager(cfg config.Config) *Manager {
	return &Manager{
		cfg:      cfg,
		newSink:  defaultSinkFactory,
		sessions: make(map[Key]*Session),
	}
}

// ProcessWorkspace runs the chunking pipeline for the keyed workspace,
// creating the session on first use. It reports true when at least one chunk
// was accepted by the sink or every file resolved to a cache hit.
func (m *Manager) ProcessWorkspace(ctx context.Context, userID, deviceID, workspacePath, token string, ignorePatterns []string) (bool, error) {
	s, err := m.session(Key{UserID: userID, DeviceID: deviceID, WorkspacePath: workspacePath}, token, ignorePatterns)
	if err != nil {
		return false, err
	}

	if !s.run.TryAcquire() {
		return false, fmt.Errorf("%w: workspace run already in progress", types.ErrCancelled)
	}
	defer s.run.Release()
	s.closeMu.Lock()
	defer s.closeMu.Unlock()

	ok, stats, err := s.pipeline.Run(ctx, workspacePath)
	if err != nil {
		return ok, err
	}
	log.Info().
		Str("session", s.ID).
		Int("scanned", stats.FilesScanned).
		Int("accepted", stats.ChunksAccepted).
		Bool("unchanged", stats.Unchanged).
		Msg("session: workspace processed")
	return ok, nil
}

// Search queries the remote store through the session's sink client.
func (m *Manager) Search(ctx context.Context, userID, deviceID, workspacePath, query string, topK int, filters *types.SearchFilters) ([]types.SearchHit, error) {
	s, err := m.session(Key{UserID: userID, DeviceID: deviceID, WorkspacePath: workspacePath}, "", nil)
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 10
	}
	return s.searcher.Search(ctx, query, topK, filters)
}

// Progress returns the keyed session's overall completion percentage in
// [0, 100]. An unknown session reports 0.
func (m *Manager) Progress(userID, deviceID, workspacePath string) float64 {
	m.mu.Lock()
	s, ok := m.sessions[Key{UserID: userID, DeviceID: deviceID, WorkspacePath: workspacePath}]
	m.mu.Unlock()
	if !ok {
		return 0
	}
	return s.pipeline.Tracker().OverallProgress()
}

// FailedFiles returns per-file failure messages for the keyed session.
func (m *Manager) FailedFiles(userID, deviceID, workspacePath string) map[string]string {
	m.mu.Lock()
	s, ok := m.sessions[Key{UserID: userID, DeviceID: deviceID, WorkspacePath: workspacePath}]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return s.pipeline.Tracker().FailedFiles()
}

// CloseSession tears down one session.
func (m *Manager) CloseSession(userID, deviceID, workspacePath string) error {
	key := Key{UserID: userID, DeviceID: deviceID, WorkspacePath: workspacePath}
	m.mu.Lock()
	s, ok := m.sessions[key]
	delete(m.sessions, key)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return m.teardown(s)
}

// Shutdown tears down every session. The manager rejects use afterwards.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[Key]*Session)
	m.closed = true
	m.mu.Unlock()

	var firstErr error
	for _, s := range sessions {
		if err := m.teardown(s); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// session returns the existing session for key or creates one.
func (m *Manager) session(key Key, token string, ignorePatterns []string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("%w: manager is shut down", types.ErrConfig)
	}
	if s, ok := m.sessions[key]; ok {
		return s, nil
	}

	cfg := m.cfg
	cfg.WorkspacePath = key.WorkspacePath
	cfg.IgnoreGlobs = append(append([]string{}, cfg.IgnoreGlobs...), ignorePatterns...)
	if token != "" {
		cfg.Sink.Token = token
	}
	if cfg.Cache.DBPath == "" {
		cfg.Cache.DBPath = filepath.Join(key.WorkspacePath, ".codebase", "cache.db")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Cache.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create cache dir: %v", types.ErrConfig, err)
	}

	chunkSink, searcher := m.newSink(cfg.Sink)
	p, err := pipeline.New(cfg, chunkSink)
	if err != nil {
		return nil, err
	}

	jctx, cancel := context.WithCancel(context.Background())
	p.Cache().StartJanitor(jctx, janitorInterval)

	s := &Session{
		ID:       uuid.NewString(),
		Key:      key,
		pipeline: p,
		searcher: searcher,
		cancel:   cancel,
	}
	m.sessions[key] = s
	log.Info().Str("session", s.ID).Str("workspace", key.WorkspacePath).Msg("session: created")
	return s, nil
}

func (m *Manager) teardown(s *Session) error {
	s.cancel()
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	return s.pipeline.Close()
}
