package playback

import "math"

// Action names an outbound player command.
type Action string

// Player commands.
const (
	ActionPause             Action = "pause_audiobook"
	ActionResume            Action = "resume_audiobook"
	ActionSetSpeed          Action = "set_speed"
	ActionSeek              Action = "seek"
	ActionNextAudiobook     Action = "next_audiobook"
	ActionPreviousAudiobook Action = "previous_audiobook"
)

// Playback speed bounds accepted by the player.
const (
	MinSpeed = 0.25
	MaxSpeed = 2.0
)

// Command is an outbound message to the player.
type Command struct {
	Action Action   `json:"action"`
	Speed  *float64 `json:"speed,omitempty"`
	Time   *float64 `json:"time,omitempty"`
}

// CommandSender delivers commands to the player.
// Send must not block on the network; delivery is fire-and-forget.
type CommandSender interface {
	Send(cmd Command) error
}

// SenderFunc adapts a function to CommandSender.
type SenderFunc func(Command) error

// Send implements CommandSender.
func (f SenderFunc) Send(cmd Command) error { return f(cmd) }

// Pause returns a pause command.
func Pause() Command { return Command{Action: ActionPause} }

// Resume returns a resume command.
func Resume() Command { return Command{Action: ActionResume} }

// NextAudiobook returns a command to switch to the next book.
func NextAudiobook() Command { return Command{Action: ActionNextAudiobook} }

// PreviousAudiobook returns a command to switch to the previous book.
func PreviousAudiobook() Command { return Command{Action: ActionPreviousAudiobook} }

// SetSpeed returns a set_speed command with speed clamped to [MinSpeed, MaxSpeed].
func SetSpeed(speed float64) Command {
	s := ClampSpeed(speed)
	return Command{Action: ActionSetSpeed, Speed: &s}
}

// Seek returns a seek command. Negative times clamp to 0.
func Seek(seconds float64) Command {
	if !(seconds > 0) || math.IsInf(seconds, 1) {
		seconds = 0
	}
	return Command{Action: ActionSeek, Time: &seconds}
}

// ClampSpeed clamps speed to [MinSpeed, MaxSpeed]. NaN maps to 1.
func ClampSpeed(speed float64) float64 {
	if math.IsNaN(speed) {
		return 1
	}
	return min(max(speed, MinSpeed), MaxSpeed)
}
