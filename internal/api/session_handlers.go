package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/listenup-companion/internal/errors"
	"github.com/listenupapp/listenup-companion/internal/session"
)

func (s *Server) registerSessionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listSessions",
		Method:      http.MethodGet,
		Path:        "/api/v1/sessions",
		Summary:     "List sessions",
		Description: "Returns every live session",
		Tags:        []string{"Sessions"},
	}, s.handleListSessions)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createSession",
		Method:        http.MethodPost,
		Path:          "/api/v1/sessions",
		Summary:       "Create session",
		Description:   "Creates a session without a player connection. Player commands fail until one attaches.",
		Tags:          []string{"Sessions"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "getSession",
		Method:      http.MethodGet,
		Path:        "/api/v1/sessions/{id}",
		Summary:     "Get session",
		Description: "Returns the playback snapshot and turn-taking state of a session",
		Tags:        []string{"Sessions"},
	}, s.handleGetSession)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteSession",
		Method:        http.MethodDelete,
		Path:          "/api/v1/sessions/{id}",
		Summary:       "Delete session",
		Description:   "Ends a session and stops its timers",
		Tags:          []string{"Sessions"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "setUserState",
		Method:      http.MethodPost,
		Path:        "/api/v1/sessions/{id}/user-state",
		Summary:     "Report user state",
		Description: "Reports a change in the listener's voice activity",
		Tags:        []string{"Sessions"},
	}, s.handleSetUserState)

	huma.Register(s.api, huma.Operation{
		OperationID: "setAgentState",
		Method:      http.MethodPost,
		Path:        "/api/v1/sessions/{id}/agent-state",
		Summary:     "Report agent state",
		Description: "Reports a change in the agent's activity",
		Tags:        []string{"Sessions"},
	}, s.handleSetAgentState)
}

// PlaybackResponse is the player's last reported state.
type PlaybackResponse struct {
	Status      string     `json:"status" doc:"Playback status as reported by the player, or unknown"`
	CurrentTime float64    `json:"current_time" doc:"Position in seconds"`
	Speed       *float64   `json:"speed,omitempty" doc:"Playback speed, when reported"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty" doc:"When the player last reported its state"`
}

// CoordinatorResponse is the turn-taking state of a session.
type CoordinatorResponse struct {
	State                        string `json:"state" enum:"idle,user_speaking,awaiting_agent_response,resume_pending" doc:"Coordinator state"`
	WasPlayingBeforeInterruption bool   `json:"was_playing_before_interruption" doc:"Playback was running when the user interrupted"`
	InConversation               bool   `json:"in_conversation" doc:"A conversation turn is in progress"`
	ResumePending                bool   `json:"resume_pending" doc:"A resume was sent and is still in its grace period"`
}

// SessionResponse describes a session.
type SessionResponse struct {
	ID          string              `json:"id" doc:"Session ID"`
	CreatedAt   time.Time           `json:"created_at" doc:"Creation time"`
	Connected   bool                `json:"connected" doc:"Whether a player is attached"`
	Playback    PlaybackResponse    `json:"playback" doc:"Last reported playback state"`
	Coordinator CoordinatorResponse `json:"coordinator" doc:"Turn-taking state"`
	BookIndex   int                 `json:"book_index" doc:"Index of the current audiobook"`
	BookID      string              `json:"book_id" doc:"ID of the current audiobook"`
	BookTitle   string              `json:"book_title" doc:"Title of the current audiobook"`
	UserState   string              `json:"user_state,omitempty" doc:"Last reported user state"`
	AgentState  string              `json:"agent_state,omitempty" doc:"Last reported agent state"`
}

// SessionPathInput identifies a session.
type SessionPathInput struct {
	ID string `path:"id" doc:"Session ID"`
}

// SessionOutput wraps a session response for Huma.
type SessionOutput struct {
	Body SessionResponse
}

// ListSessionsOutput wraps the session list for Huma.
type ListSessionsOutput struct {
	Body struct {
		Sessions []SessionResponse `json:"sessions" doc:"Live sessions ordered by ID"`
	}
}

// UserStateRequest reports the listener's voice activity.
type UserStateRequest struct {
	State    string `json:"state" enum:"speaking,listening,away" doc:"New user state"`
	OldState string `json:"old_state,omitempty" enum:"speaking,listening,away" doc:"Previous user state; defaults to the last reported one"`
}

// UserStateInput is the user-state request.
type UserStateInput struct {
	ID   string `path:"id" doc:"Session ID"`
	Body UserStateRequest
}

// AgentStateRequest reports the agent's activity.
type AgentStateRequest struct {
	OldState string `json:"old_state,omitempty" enum:"initializing,idle,listening,thinking,speaking" doc:"Previous agent state; defaults to the last reported one"`
	NewState string `json:"new_state" enum:"initializing,idle,listening,thinking,speaking" doc:"New agent state"`
}

// AgentStateInput is the agent-state request.
type AgentStateInput struct {
	ID   string `path:"id" doc:"Session ID"`
	Body AgentStateRequest
}

func (s *Server) handleListSessions(_ context.Context, _ *struct{}) (*ListSessionsOutput, error) {
	out := &ListSessionsOutput{}
	out.Body.Sessions = []SessionResponse{}
	for _, info := range s.sessions.List() {
		out.Body.Sessions = append(out.Body.Sessions, toSessionResponse(info))
	}
	return out, nil
}

func (s *Server) handleCreateSession(_ context.Context, _ *struct{}) (*SessionOutput, error) {
	sess, err := s.sessions.Create()
	if err != nil {
		return nil, err
	}
	return &SessionOutput{Body: toSessionResponse(sess.Info())}, nil
}

func (s *Server) handleGetSession(_ context.Context, input *SessionPathInput) (*SessionOutput, error) {
	sess, err := s.sessions.Get(input.ID)
	if err != nil {
		return nil, err
	}
	return &SessionOutput{Body: toSessionResponse(sess.Info())}, nil
}

func (s *Server) handleDeleteSession(_ context.Context, input *SessionPathInput) (*struct{}, error) {
	if _, err := s.sessions.Get(input.ID); err != nil {
		return nil, err
	}
	s.sessions.Remove(input.ID)
	return nil, nil //nolint:nilnil // 204 has no body
}

func (s *Server) handleSetUserState(_ context.Context, input *UserStateInput) (*SessionOutput, error) {
	sess, err := s.sessions.Get(input.ID)
	if err != nil {
		return nil, err
	}
	if input.Body.State == "" {
		return nil, errors.Validation("state is required")
	}

	sess.SetUserState(session.UserState(input.Body.OldState), session.UserState(input.Body.State))
	return &SessionOutput{Body: toSessionResponse(sess.Info())}, nil
}

func (s *Server) handleSetAgentState(_ context.Context, input *AgentStateInput) (*SessionOutput, error) {
	sess, err := s.sessions.Get(input.ID)
	if err != nil {
		return nil, err
	}
	if input.Body.NewState == "" {
		return nil, errors.Validation("new_state is required")
	}

	sess.SetAgentState(session.AgentState(input.Body.OldState), session.AgentState(input.Body.NewState))
	return &SessionOutput{Body: toSessionResponse(sess.Info())}, nil
}

func toSessionResponse(info session.Info) SessionResponse {
	var updatedAt *time.Time
	if !info.PlaybackUpdatedAt.IsZero() {
		updatedAt = &info.PlaybackUpdatedAt
	}
	return SessionResponse{
		ID:        info.ID,
		CreatedAt: info.CreatedAt,
		Connected: info.Connected,
		Playback: PlaybackResponse{
			Status:      string(info.Playback.Status),
			CurrentTime: info.Playback.CurrentTime,
			Speed:       info.Playback.Speed,
			UpdatedAt:   updatedAt,
		},
		Coordinator: CoordinatorResponse{
			State:                        info.Coordinator.State.String(),
			WasPlayingBeforeInterruption: info.Coordinator.WasPlayingBeforeInterruption,
			InConversation:               info.Coordinator.InConversation,
			ResumePending:                info.Coordinator.ResumePending,
		},
		BookIndex:  info.BookIndex,
		BookID:     info.Book.ID,
		BookTitle:  info.Book.Title,
		UserState:  string(info.UserState),
		AgentState: string(info.AgentState),
	}
}
