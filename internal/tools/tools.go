// Package tools implements the conversational tool surface exposed to the dialogue layer.
//
// The set of tools is closed. Each tool has a typed argument struct, validated
// before it runs, and answers with a short sentence the agent can speak.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"slices"

	"github.com/listenupapp/listenup-companion/internal/errors"
	"github.com/listenupapp/listenup-companion/internal/library"
	"github.com/listenupapp/listenup-companion/internal/playback"
	"github.com/listenupapp/listenup-companion/internal/search"
	"github.com/listenupapp/listenup-companion/internal/validation"
)

// Name identifies a tool.
type Name string

// Tool names.
const (
	GetCurrentAudiobookInfo  Name = "get_current_audiobook_info"
	GetStoryContext          Name = "get_story_context"
	CheckIfCharacterAppeared Name = "check_if_character_appeared"
	PauseAudiobook           Name = "pause_audiobook"
	ResumeAudiobook          Name = "resume_audiobook"
	SetPlaybackSpeed         Name = "set_playback_speed"
	SkipTime                 Name = "skip_time"
	NextAudiobook            Name = "next_audiobook"
	PreviousAudiobook        Name = "previous_audiobook"
	NavigateToScene          Name = "navigate_to_scene"
	SearchEarlierContext     Name = "search_earlier_context"
)

// defaultContextWindow is the story context window in seconds.
const defaultContextWindow = 180.0

// Argument types.
type (
	noArgs struct{}

	// CharacterArgs names a character to check.
	CharacterArgs struct {
		CharacterName string `json:"character_name" validate:"required,max=100"`
	}

	// SpeedArgs sets the playback speed. Values outside [0.25, 2.0] are clamped.
	SpeedArgs struct {
		Speed *float64 `json:"speed" validate:"required"`
	}

	// SkipArgs skips by a relative number of seconds. Negative rewinds.
	SkipArgs struct {
		Seconds *int `json:"seconds" validate:"required"`
	}

	// SceneArgs describes a scene to navigate to.
	SceneArgs struct {
		Description string `json:"description" validate:"required,max=500"`
	}

	// TopicArgs names a topic to look up in what has been heard.
	TopicArgs struct {
		Topic string `json:"topic" validate:"required,max=200"`
	}
)

// Resetter drops conversational state. The explicit pause and resume tools use it
// so the playback coordinator does not undo them.
type Resetter interface {
	Reset()
}

// EarlierSearcher finds heard chunks mentioning a topic.
type EarlierSearcher interface {
	SearchEarlier(ctx context.Context, params search.EarlierParams) ([]search.EarlierHit, error)
}

// Env is what a tool acts on: one session's player, book cursor and coordinator.
type Env struct {
	Playback    *playback.Tracker
	Cursor      *library.Cursor
	Sender      playback.CommandSender
	Coordinator Resetter
	Earlier     EarlierSearcher
	// ContextWindow is the story context window in seconds.
	ContextWindow float64
	Logger        *slog.Logger
}

type runner func(ctx context.Context, d *Dispatcher, raw json.RawMessage) (string, error)

// Definition describes a tool for listing.
type Definition struct {
	Name        Name   `json:"name"`
	Description string `json:"description"`
	Arguments   []Arg  `json:"arguments,omitempty"`
}

// Arg describes one tool argument.
type Arg struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type entry struct {
	def Definition
	run runner
}

var table = map[Name]entry{
	GetCurrentAudiobookInfo: {
		Definition{Name: GetCurrentAudiobookInfo, Description: "Title and author of the audiobook that is playing."},
		typed((*Dispatcher).currentAudiobookInfo),
	},
	GetStoryContext: {
		Definition{Name: GetStoryContext, Description: "Text heard in the last few minutes of the story."},
		typed((*Dispatcher).storyContext),
	},
	CheckIfCharacterAppeared: {
		Definition{Name: CheckIfCharacterAppeared, Description: "Whether a character has appeared in the story so far.",
			Arguments: []Arg{{Name: "character_name", Type: "string"}}},
		typed((*Dispatcher).characterAppeared),
	},
	PauseAudiobook: {
		Definition{Name: PauseAudiobook, Description: "Pause the audiobook."},
		typed((*Dispatcher).pause),
	},
	ResumeAudiobook: {
		Definition{Name: ResumeAudiobook, Description: "Resume the audiobook."},
		typed((*Dispatcher).resume),
	},
	SetPlaybackSpeed: {
		Definition{Name: SetPlaybackSpeed, Description: "Set playback speed between 0.25x and 2.0x.",
			Arguments: []Arg{{Name: "speed", Type: "number"}}},
		typed((*Dispatcher).setSpeed),
	},
	SkipTime: {
		Definition{Name: SkipTime, Description: "Skip forward (positive) or back (negative) by seconds.",
			Arguments: []Arg{{Name: "seconds", Type: "integer"}}},
		typed((*Dispatcher).skip),
	},
	NextAudiobook: {
		Definition{Name: NextAudiobook, Description: "Switch to the next audiobook in the library."},
		typed((*Dispatcher).next),
	},
	PreviousAudiobook: {
		Definition{Name: PreviousAudiobook, Description: "Switch to the previous audiobook in the library."},
		typed((*Dispatcher).previous),
	},
	NavigateToScene: {
		Definition{Name: NavigateToScene, Description: "Find a described scene and seek to it.",
			Arguments: []Arg{{Name: "description", Type: "string"}}},
		typed((*Dispatcher).navigate),
	},
	SearchEarlierContext: {
		Definition{Name: SearchEarlierContext, Description: "Look for an earlier mention of a topic in what has been heard.",
			Arguments: []Arg{{Name: "topic", Type: "string"}}},
		typed((*Dispatcher).searchEarlier),
	},
}

// Definitions lists every tool, sorted by name.
func Definitions() []Definition {
	defs := make([]Definition, 0, len(table))
	for _, e := range table {
		defs = append(defs, e.def)
	}
	slices.SortFunc(defs, func(a, b Definition) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return defs
}

// Known reports whether name is a tool.
func Known(name string) bool {
	_, ok := table[Name(name)]
	return ok
}

// Dispatcher runs tools against one session's environment. It is safe for concurrent use.
type Dispatcher struct {
	env       Env
	validator *validation.Validator
	logger    *slog.Logger
}

// NewDispatcher creates a dispatcher for env.
func NewDispatcher(env Env, v *validation.Validator) *Dispatcher {
	if env.Playback == nil {
		env.Playback = playback.NewTracker()
	}
	if env.Sender == nil {
		env.Sender = playback.SenderFunc(func(playback.Command) error {
			return errors.Unavailable("no player connected")
		})
	}
	if env.ContextWindow <= 0 {
		env.ContextWindow = defaultContextWindow
	}
	if env.Logger == nil {
		env.Logger = slog.Default()
	}
	if v == nil {
		v = validation.New()
	}
	return &Dispatcher{env: env, validator: v, logger: env.Logger}
}

// Call runs the named tool with JSON arguments.
// Unknown tools are NotFound; bad arguments are Validation errors.
func (d *Dispatcher) Call(ctx context.Context, name string, args json.RawMessage) (string, error) {
	e, ok := table[Name(name)]
	if !ok {
		return "", errors.NotFoundf("unknown tool %q", name)
	}

	result, err := e.run(ctx, d, args)
	if err != nil {
		d.logger.Warn("tool failed", "tool", name, "error", err)
		return "", err
	}
	d.logger.Info("tool called", "tool", name)
	return result, nil
}

// typed decodes and validates the arguments before calling fn.
func typed[A any](fn func(*Dispatcher, context.Context, A) (string, error)) runner {
	return func(ctx context.Context, d *Dispatcher, raw json.RawMessage) (string, error) {
		var args A
		if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
			if err := json.Unmarshal(trimmed, &args); err != nil {
				return "", errors.Validationf("invalid tool arguments: %v", err)
			}
		}
		if err := d.validator.Validate(args); err != nil {
			return "", err
		}
		return fn(d, ctx, args)
	}
}
