package playback

import (
	"encoding/json"
	"strings"

	"github.com/listenupapp/listenup-companion/internal/errors"
)

// MessageType identifies an inbound data message.
type MessageType string

// Inbound message types.
const (
	TypePlaybackState    MessageType = "playback_state"
	TypeAudiobookChanged MessageType = "audiobook_changed"
)

// PlaybackStateMessage reports the player's state.
type PlaybackStateMessage struct {
	Status      string   `json:"status"`
	CurrentTime *float64 `json:"current_time"`
	Speed       *float64 `json:"speed,omitempty"`
	// Older players send playback_speed.
	PlaybackSpeed *float64 `json:"playback_speed,omitempty"`
}

// Snapshot converts the message into a state snapshot. Missing fields take defaults.
func (m PlaybackStateMessage) Snapshot() Snapshot {
	s := Snapshot{Status: Status(strings.ToLower(strings.TrimSpace(m.Status)))}
	if s.Status == "" {
		s.Status = StatusUnknown
	}
	if m.CurrentTime != nil && *m.CurrentTime > 0 {
		s.CurrentTime = *m.CurrentTime
	}
	switch {
	case m.Speed != nil:
		s.Speed = m.Speed
	case m.PlaybackSpeed != nil:
		s.Speed = m.PlaybackSpeed
	}
	return s
}

// AudiobookChangedMessage reports that the player switched books.
type AudiobookChangedMessage struct {
	Index       *int   `json:"index"`
	AudiobookID string `json:"audiobook_id"`
}

// Message is a decoded inbound message. At most one payload is set.
// Unrecognized types decode with both payloads nil.
type Message struct {
	Type             MessageType
	PlaybackState    *PlaybackStateMessage
	AudiobookChanged *AudiobookChangedMessage
}

// Known reports whether the message type is recognized.
func (m Message) Known() bool {
	return m.PlaybackState != nil || m.AudiobookChanged != nil
}

type envelope struct {
	Type MessageType `json:"type"`
}

// Decode parses an inbound data payload.
// Unparseable payloads return ErrMalformedMessage and must be dropped.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Message{}, errors.MalformedMessage(err, "decode message envelope")
	}
	if env.Type == "" {
		return Message{}, errors.MalformedMessage(nil, "message has no type")
	}

	msg := Message{Type: env.Type}
	switch env.Type {
	case TypePlaybackState:
		var p PlaybackStateMessage
		if err := json.Unmarshal(data, &p); err != nil {
			return Message{}, errors.MalformedMessage(err, "decode playback_state")
		}
		msg.PlaybackState = &p
	case TypeAudiobookChanged:
		var a AudiobookChangedMessage
		if err := json.Unmarshal(data, &a); err != nil {
			return Message{}, errors.MalformedMessage(err, "decode audiobook_changed")
		}
		if a.Index == nil && a.AudiobookID == "" {
			return Message{}, errors.MalformedMessage(nil, "audiobook_changed needs index or audiobook_id")
		}
		msg.AudiobookChanged = &a
	}
	return msg, nil
}
