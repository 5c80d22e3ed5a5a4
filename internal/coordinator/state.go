package coordinator

// State is the coordinator's position in a conversational episode.
type State int

// States.
const (
	// Idle: no conversation in progress; the player is left alone.
	Idle State = iota
	// UserSpeaking: the listener is talking; playback has been paused if it was running.
	UserSpeaking
	// AwaitingAgentResponse: the listener finished; the agent is thinking or speaking.
	AwaitingAgentResponse
	// ResumePending: a resume was sent and is treated as authoritative for one grace period.
	ResumePending
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case UserSpeaking:
		return "user_speaking"
	case AwaitingAgentResponse:
		return "awaiting_agent_response"
	case ResumePending:
		return "resume_pending"
	default:
		return "unknown"
	}
}

// inConversation reports whether the state belongs to an open conversational episode.
func (s State) inConversation() bool {
	return s == UserSpeaking || s == AwaitingAgentResponse
}

// Flags is the boolean view of the coordinator's state.
type Flags struct {
	WasPlayingBeforeInterruption bool `json:"was_playing_before_interruption"`
	InConversation               bool `json:"in_conversation"`
	ResumePending                bool `json:"resume_pending"`
}

// Event is an input to the coordinator.
type Event int

// Events. The timer events are raised internally.
const (
	UserStartedSpeaking Event = iota
	UserStoppedSpeaking
	AgentStartedSpeaking
	AgentStoppedSpeaking
	IdleTimeoutFired
	ResumeGraceElapsed
)

func (e Event) String() string {
	switch e {
	case UserStartedSpeaking:
		return "user_started_speaking"
	case UserStoppedSpeaking:
		return "user_stopped_speaking"
	case AgentStartedSpeaking:
		return "agent_started_speaking"
	case AgentStoppedSpeaking:
		return "agent_stopped_speaking"
	case IdleTimeoutFired:
		return "idle_timeout_fired"
	case ResumeGraceElapsed:
		return "resume_grace_elapsed"
	default:
		return "unknown"
	}
}

// Status is a point-in-time view of the coordinator.
type Status struct {
	State State `json:"state"`
	Flags
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
