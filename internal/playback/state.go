// Package playback holds the player's last reported state and the commands sent back to it.
package playback

import (
	"sync"
	"time"
)

// Status is the player's reported status.
type Status string

// Known statuses. Players may report others, which are kept verbatim.
const (
	StatusPlaying Status = "playing"
	StatusPaused  Status = "paused"
	StatusUnknown Status = "unknown"
)

// Snapshot is the player's state as of its last playback_state message.
type Snapshot struct {
	Status      Status   `json:"status"`
	CurrentTime float64  `json:"current_time"`
	Speed       *float64 `json:"speed,omitempty"`
}

// Playing reports whether the player said it is playing.
func (s Snapshot) Playing() bool {
	return s.Status == StatusPlaying
}

// Equal reports whether two snapshots carry the same values.
func (s Snapshot) Equal(o Snapshot) bool {
	if s.Status != o.Status || s.CurrentTime != o.CurrentTime {
		return false
	}
	if (s.Speed == nil) != (o.Speed == nil) {
		return false
	}
	return s.Speed == nil || *s.Speed == *o.Speed
}

// Tracker owns the current Snapshot. It is safe for concurrent use.
type Tracker struct {
	mu        sync.RWMutex
	snap      Snapshot
	updatedAt time.Time
}

// NewTracker returns a tracker in the default state: time 0, status unknown.
func NewTracker() *Tracker {
	return &Tracker{snap: Snapshot{Status: StatusUnknown}}
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := t.snap
	if s.Speed != nil {
		v := *s.Speed
		s.Speed = &v
	}
	return s
}

// CurrentTime returns the last reported playback time.
func (t *Tracker) CurrentTime() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap.CurrentTime
}

// UpdatedAt returns when the last update was applied. Zero before the first update.
func (t *Tracker) UpdatedAt() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.updatedAt
}

// Apply replaces the snapshot wholesale and reports whether anything changed.
func (t *Tracker) Apply(s Snapshot) bool {
	if s.Status == "" {
		s.Status = StatusUnknown
	}
	if !(s.CurrentTime > 0) {
		s.CurrentTime = 0
	}
	if s.Speed != nil {
		v := *s.Speed
		s.Speed = &v
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.updatedAt = time.Now()
	if t.snap.Equal(s) {
		return false
	}
	t.snap = s
	return true
}

