// Package session ties one connected player to its playback state, turn-taking
// coordinator, book cursor and tools.
package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/listenupapp/listenup-companion/internal/coordinator"
	"github.com/listenupapp/listenup-companion/internal/errors"
	"github.com/listenupapp/listenup-companion/internal/library"
	"github.com/listenupapp/listenup-companion/internal/playback"
	"github.com/listenupapp/listenup-companion/internal/tools"
)

// UserState is the listener's voice activity as reported by the dialogue layer.
type UserState string

// User states.
const (
	UserSpeaking  UserState = "speaking"
	UserListening UserState = "listening"
	UserAway      UserState = "away"
)

// AgentState is the agent's activity as reported by the dialogue layer.
type AgentState string

// Agent states.
const (
	AgentInitializing AgentState = "initializing"
	AgentIdle         AgentState = "idle"
	AgentListening    AgentState = "listening"
	AgentThinking     AgentState = "thinking"
	AgentSpeaking     AgentState = "speaking"
)

// Session is one player connection's companion state.
type Session struct {
	id        string
	createdAt time.Time
	logger    *slog.Logger

	tracker *playback.Tracker
	coord   *coordinator.Coordinator
	cursor  *library.Cursor
	tools   *tools.Dispatcher

	// eventMu orders dialogue state reports so the coordinator sees them in the
	// order they are recorded.
	eventMu sync.Mutex

	mu        sync.Mutex
	sender    playback.CommandSender
	senderGen uint64
	userState UserState
	agentLast AgentState
}

// Info is a point-in-time view of a session.
type Info struct {
	ID          string             `json:"id"`
	CreatedAt   time.Time          `json:"created_at"`
	Connected   bool               `json:"connected"`
	Playback    playback.Snapshot  `json:"playback"`
	Coordinator coordinator.Status `json:"coordinator"`
	BookIndex   int                `json:"book_index"`
	Book        library.Book       `json:"book"`
	UserState   UserState          `json:"user_state,omitempty"`
	AgentState  AgentState         `json:"agent_state,omitempty"`

	// PlaybackUpdatedAt is zero until the player reports its state.
	PlaybackUpdatedAt time.Time `json:"playback_updated_at"`
}

// ID returns the session ID.
func (s *Session) ID() string { return s.id }

// Playback returns the player's last reported state.
func (s *Session) Playback() playback.Snapshot { return s.tracker.Snapshot() }

// Coordinator returns the session's turn-taking state machine.
func (s *Session) Coordinator() *coordinator.Coordinator { return s.coord }

// Info returns a snapshot of the session.
func (s *Session) Info() Info {
	s.mu.Lock()
	connected := s.sender != nil
	user, agent := s.userState, s.agentLast
	s.mu.Unlock()

	book, _ := s.cursor.Current()
	return Info{
		ID:                s.id,
		CreatedAt:         s.createdAt,
		Connected:         connected,
		Playback:          s.tracker.Snapshot(),
		PlaybackUpdatedAt: s.tracker.UpdatedAt(),
		Coordinator:       s.coord.Status(),
		BookIndex:         s.cursor.Index(),
		Book:              book,
		UserState:         user,
		AgentState:        agent,
	}
}

// Attach routes outbound commands to sender. The returned func detaches it,
// unless another sender has been attached since.
func (s *Session) Attach(sender playback.CommandSender) (detach func()) {
	s.mu.Lock()
	s.sender = sender
	s.senderGen++
	gen := s.senderGen
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.senderGen == gen {
			s.sender = nil
		}
	}
}

// Send implements playback.CommandSender for the coordinator and tools.
func (s *Session) Send(cmd playback.Command) error {
	s.mu.Lock()
	sender := s.sender
	s.mu.Unlock()

	if sender == nil {
		return errors.Unavailable("no player connected")
	}
	s.logger.Debug("sending player command", "action", cmd.Action)
	return sender.Send(cmd)
}

// HandleData applies an inbound data message from the player.
// Malformed messages are logged and dropped; the playback state is untouched.
func (s *Session) HandleData(data []byte) error {
	msg, err := playback.Decode(data)
	if err != nil {
		s.logger.Warn("dropping malformed player message", "error", err, "bytes", len(data))
		return err
	}

	if !msg.Known() {
		s.logger.Debug("ignoring player message", "type", msg.Type)
		return nil
	}

	switch {
	case msg.PlaybackState != nil:
		snap := msg.PlaybackState.Snapshot()
		if s.tracker.Apply(snap) {
			s.logger.Debug("playback state updated",
				"status", snap.Status,
				"current_time", snap.CurrentTime,
			)
		}
	case msg.AudiobookChanged != nil:
		book, vol, err := s.cursor.Select(msg.AudiobookChanged.Index, msg.AudiobookChanged.AudiobookID)
		if err != nil {
			s.logger.Warn("player switched to an unknown audiobook",
				"audiobook_id", msg.AudiobookChanged.AudiobookID,
				"error", err,
			)
			return err
		}
		if vol == nil {
			s.logger.Warn("no transcript for audiobook", "book_id", book.ID)
		}
		s.logger.Info("player switched audiobook", "book_id", book.ID, "title", book.Title)
	}
	return nil
}

// SetUserState records a user voice activity change and feeds the coordinator.
// An empty old state means the last reported one.
func (s *Session) SetUserState(old, next UserState) {
	s.eventMu.Lock()
	defer s.eventMu.Unlock()

	s.mu.Lock()
	if old == "" {
		old = s.userState
	}
	s.userState = next
	s.mu.Unlock()

	switch {
	case next == UserSpeaking:
		s.coord.Handle(coordinator.UserStartedSpeaking)
	case old == UserSpeaking:
		s.coord.Handle(coordinator.UserStoppedSpeaking)
	}
}

// SetAgentState records an agent activity change and feeds the coordinator.
// Only speaking to listening counts as the agent finishing its turn.
func (s *Session) SetAgentState(old, next AgentState) {
	s.eventMu.Lock()
	defer s.eventMu.Unlock()

	s.mu.Lock()
	if old == "" {
		old = s.agentLast
	}
	s.agentLast = next
	s.mu.Unlock()

	switch {
	case next == AgentSpeaking && old != AgentSpeaking:
		s.coord.Handle(coordinator.AgentStartedSpeaking)
	case old == AgentSpeaking && next == AgentListening:
		s.coord.Handle(coordinator.AgentStoppedSpeaking)
	}
}

// CallTool runs a tool. Calls do not block the coordinator and may run concurrently.
func (s *Session) CallTool(ctx context.Context, name string, args json.RawMessage) (string, error) {
	return s.tools.Call(ctx, name, args)
}

// Close stops the coordinator's timers.
func (s *Session) Close() {
	s.coord.Close()
}
