package session

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/listenupapp/listenup-companion/internal/coordinator"
	"github.com/listenupapp/listenup-companion/internal/errors"
	"github.com/listenupapp/listenup-companion/internal/id"
	"github.com/listenupapp/listenup-companion/internal/library"
	"github.com/listenupapp/listenup-companion/internal/logger"
	"github.com/listenupapp/listenup-companion/internal/playback"
	"github.com/listenupapp/listenup-companion/internal/tools"
	"github.com/listenupapp/listenup-companion/internal/validation"
)

// Config configures sessions created by a Manager.
type Config struct {
	Library   *library.Library
	Earlier   tools.EarlierSearcher
	Validator *validation.Validator

	ContextWindow time.Duration
	IdleTimeout   time.Duration
	ResumeGrace   time.Duration
	// Clock drives coordinator timers. Nil uses the wall clock.
	Clock coordinator.Clock

	Logger *logger.Logger
}

// Manager is the registry of live sessions, keyed by ID.
type Manager struct {
	cfg    Config
	logger *logger.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool
}

// NewManager creates an empty registry.
func NewManager(cfg Config) *Manager {
	if cfg.Library == nil {
		cfg.Library = library.New(nil)
	}
	if cfg.Validator == nil {
		cfg.Validator = validation.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = &logger.Logger{Logger: logger.Discard()}
	}
	return &Manager{
		cfg:      cfg,
		logger:   cfg.Logger,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session on the first book of the library.
func (m *Manager) Create() (*Session, error) {
	sid, err := id.Generate(id.PrefixSession)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "generate session id")
	}

	log := m.logger.WithSession(sid).Logger
	s := &Session{
		id:        sid,
		createdAt: time.Now(),
		logger:    log,
		tracker:   playback.NewTracker(),
		cursor:    m.cfg.Library.NewCursor(),
	}
	s.coord = coordinator.New(coordinator.Options{
		Playback:    s.tracker,
		Sender:      s,
		Clock:       m.cfg.Clock,
		IdleTimeout: m.cfg.IdleTimeout,
		ResumeGrace: m.cfg.ResumeGrace,
		Logger:      log,
	})
	s.tools = tools.NewDispatcher(tools.Env{
		Playback:      s.tracker,
		Cursor:        s.cursor,
		Sender:        s,
		Coordinator:   s.coord,
		Earlier:       m.cfg.Earlier,
		ContextWindow: m.cfg.ContextWindow.Seconds(),
		Logger:        log,
	}, m.cfg.Validator)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		s.Close()
		return nil, errors.Unavailable("session manager is shut down")
	}
	m.sessions[sid] = s

	log.Info("session created")
	return s, nil
}

// Get returns a live session.
func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, errors.NotFoundf("session %q not found", sessionID)
	}
	return s, nil
}

// Remove closes and forgets a session. Unknown IDs are ignored.
func (m *Manager) Remove(sessionID string) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	if ok {
		s.Close()
		s.logger.Info("session removed")
	}
}

// List returns info for every live session, ordered by ID.
func (m *Manager) List() []Info {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	slices.SortFunc(sessions, func(a, b *Session) int { return strings.Compare(a.id, b.id) })
	out := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Info())
	}
	return out
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown closes every session and rejects new ones.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.closed = true
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	m.logger.Info("session manager shut down", "sessions", len(sessions))
	return nil
}
