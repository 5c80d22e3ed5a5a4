package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/listenup-companion/internal/errors"
	"github.com/listenupapp/listenup-companion/internal/tools"
)

func (s *Server) registerToolRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listTools",
		Method:      http.MethodGet,
		Path:        "/api/v1/tools",
		Summary:     "List tools",
		Description: "Returns every tool the agent can call, with its arguments",
		Tags:        []string{"Tools"},
	}, s.handleListTools)

	huma.Register(s.api, huma.Operation{
		OperationID: "callTool",
		Method:      http.MethodPost,
		Path:        "/api/v1/sessions/{id}/tools/{name}",
		Summary:     "Call tool",
		Description: "Runs a tool for a session and returns the text the agent should speak",
		Tags:        []string{"Tools"},
	}, s.handleCallTool)
}

// ListToolsOutput wraps the tool definitions for Huma.
type ListToolsOutput struct {
	Body struct {
		Tools []tools.Definition `json:"tools" doc:"Tool definitions ordered by name"`
	}
}

// ToolCallRequest carries a tool's arguments.
type ToolCallRequest struct {
	Arguments map[string]any `json:"arguments,omitempty" doc:"Tool arguments by name"`
}

// ToolCallInput is the tool call request.
type ToolCallInput struct {
	ID   string `path:"id" doc:"Session ID"`
	Name string `path:"name" doc:"Tool name"`
	// Body is optional; tools without arguments may be called with no body.
	Body *ToolCallRequest
}

// ToolCallResponse is a tool's spoken result.
type ToolCallResponse struct {
	Tool   string `json:"tool" doc:"Tool that ran"`
	Result string `json:"result" doc:"Text for the agent to speak"`
}

// ToolCallOutput wraps the tool call response for Huma.
type ToolCallOutput struct {
	Body ToolCallResponse
}

func (s *Server) handleListTools(_ context.Context, _ *struct{}) (*ListToolsOutput, error) {
	out := &ListToolsOutput{}
	out.Body.Tools = tools.Definitions()
	return out, nil
}

func (s *Server) handleCallTool(ctx context.Context, input *ToolCallInput) (*ToolCallOutput, error) {
	if !tools.Known(input.Name) {
		return nil, errors.NotFoundf("unknown tool %q", input.Name)
	}
	sess, err := s.sessions.Get(input.ID)
	if err != nil {
		return nil, err
	}

	var args json.RawMessage
	if input.Body != nil && len(input.Body.Arguments) > 0 {
		args, err = json.Marshal(input.Body.Arguments)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeValidation, "encode tool arguments")
		}
	}

	result, err := sess.CallTool(ctx, input.Name, args)
	if err != nil {
		s.logger.Warn("tool call failed",
			"session_id", input.ID,
			"tool", input.Name,
			"error", err,
		)
		return nil, err
	}
	return &ToolCallOutput{Body: ToolCallResponse{Tool: input.Name, Result: result}}, nil
}
