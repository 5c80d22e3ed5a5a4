// Package coordinator pauses the audiobook while the listener and the agent talk,
// and resumes it when the exchange ends.
package coordinator

import (
	"log/slog"
	"sync"
	"time"

	"github.com/listenupapp/listenup-companion/internal/logger"
	"github.com/listenupapp/listenup-companion/internal/playback"
)

// Default timer durations.
const (
	DefaultIdleTimeout = 3 * time.Second
	DefaultResumeGrace = 3 * time.Second
)

// SnapshotSource provides the player's last reported state.
type SnapshotSource interface {
	Snapshot() playback.Snapshot
}

// Options configures a Coordinator.
type Options struct {
	Playback    SnapshotSource
	Sender      playback.CommandSender
	Clock       Clock
	IdleTimeout time.Duration
	ResumeGrace time.Duration
	Logger      *slog.Logger
}

// Coordinator is the playback state machine for one session.
// All transitions happen under mu; commands are sent after it is released.
type Coordinator struct {
	playback SnapshotSource
	sender   playback.CommandSender
	clock    Clock
	idle     time.Duration
	grace    time.Duration
	logger   *slog.Logger

	mu         sync.Mutex
	state      State
	wasPlaying bool

	// Timer callbacks only act when their generation still matches.
	idleGen    uint64
	idleTimer  Timer
	graceGen   uint64
	graceTimer Timer
	closed     bool
}

// New creates a Coordinator in the Idle state.
func New(opts Options) *Coordinator {
	if opts.Playback == nil {
		opts.Playback = playback.NewTracker()
	}
	if opts.Sender == nil {
		opts.Sender = playback.SenderFunc(func(playback.Command) error { return nil })
	}
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.ResumeGrace <= 0 {
		opts.ResumeGrace = DefaultResumeGrace
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}

	return &Coordinator{
		playback: opts.Playback,
		sender:   opts.Sender,
		clock:    opts.Clock,
		idle:     opts.IdleTimeout,
		grace:    opts.ResumeGrace,
		logger:   opts.Logger,
		state:    Idle,
	}
}

// Handle applies one of the speaking events. Timer events are ignored here.
func (c *Coordinator) Handle(ev Event) {
	switch ev {
	case UserStartedSpeaking:
		c.UserStartedSpeaking()
	case UserStoppedSpeaking:
		c.UserStoppedSpeaking()
	case AgentStartedSpeaking:
		c.AgentStartedSpeaking()
	case AgentStoppedSpeaking:
		c.AgentStoppedSpeaking()
	}
}

// UserStartedSpeaking pauses playback if it is running, or if a resume was just sent.
func (c *Coordinator) UserStartedSpeaking() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	prev := c.state
	snap := c.playback.Snapshot()

	c.stopIdleLocked()
	c.stopGraceLocked()

	if !prev.inConversation() {
		c.wasPlaying = snap.Playing()
	}
	// The player may not have reported the resume yet; trust what we sent.
	if prev == ResumePending {
		c.wasPlaying = true
	}
	c.state = UserSpeaking

	var cmds []playback.Command
	if snap.Playing() || prev == ResumePending {
		cmds = append(cmds, playback.Pause())
	}
	c.logTransitionLocked(UserStartedSpeaking, prev, snap)
	c.mu.Unlock()

	c.send(cmds)
}

// UserStoppedSpeaking moves to awaiting the agent's reply.
func (c *Coordinator) UserStoppedSpeaking() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	prev := c.state
	if prev == UserSpeaking {
		c.state = AwaitingAgentResponse
	}
	c.logTransitionLocked(UserStoppedSpeaking, prev, playback.Snapshot{})
}

// AgentStartedSpeaking keeps the conversation open while the agent talks.
func (c *Coordinator) AgentStartedSpeaking() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	prev := c.state
	if prev.inConversation() {
		c.state = AwaitingAgentResponse
		c.stopIdleLocked()
	}
	c.logTransitionLocked(AgentStartedSpeaking, prev, playback.Snapshot{})
}

// AgentStoppedSpeaking resumes playback if it was interrupted. Otherwise it
// (re)starts the idle timeout that closes the conversation.
func (c *Coordinator) AgentStoppedSpeaking() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	prev := c.state

	var cmds []playback.Command
	if prev.inConversation() && c.wasPlaying {
		cmds = append(cmds, playback.Resume())
		c.state = ResumePending
		c.wasPlaying = false
		c.stopIdleLocked()
		c.startGraceLocked()
	} else {
		c.startIdleLocked()
	}
	c.logTransitionLocked(AgentStoppedSpeaking, prev, playback.Snapshot{})
	c.mu.Unlock()

	c.send(cmds)
}

// Reset drops any conversation state without sending commands.
// The explicit pause and resume tools call it so the coordinator will not fight them.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Idle
	c.wasPlaying = false
	c.stopIdleLocked()
	c.stopGraceLocked()
}

// Close stops pending timers. Later events are ignored.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.stopIdleLocked()
	c.stopGraceLocked()
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Flags returns the boolean view of the current state.
func (c *Coordinator) Flags() Flags {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flagsLocked()
}

// Status returns the state and flags together.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{State: c.state, Flags: c.flagsLocked()}
}

func (c *Coordinator) flagsLocked() Flags {
	return Flags{
		WasPlayingBeforeInterruption: c.wasPlaying,
		InConversation:               c.state.inConversation(),
		ResumePending:                c.state == ResumePending,
	}
}

func (c *Coordinator) startIdleLocked() {
	c.stopIdleLocked()
	gen := c.idleGen
	c.idleTimer = c.clock.AfterFunc(c.idle, func() { c.idleExpired(gen) })
}

func (c *Coordinator) stopIdleLocked() {
	c.idleGen++
	if c.idleTimer != nil {
		c.idleTimer.Stop()
		c.idleTimer = nil
	}
}

func (c *Coordinator) startGraceLocked() {
	c.stopGraceLocked()
	gen := c.graceGen
	c.graceTimer = c.clock.AfterFunc(c.grace, func() { c.graceExpired(gen) })
}

func (c *Coordinator) stopGraceLocked() {
	c.graceGen++
	if c.graceTimer != nil {
		c.graceTimer.Stop()
		c.graceTimer = nil
	}
}

func (c *Coordinator) idleExpired(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.idleGen {
		return
	}
	prev := c.state
	c.idleTimer = nil
	c.state = Idle
	c.wasPlaying = false
	c.stopGraceLocked()
	c.logTransitionLocked(IdleTimeoutFired, prev, playback.Snapshot{})
}

func (c *Coordinator) graceExpired(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.graceGen {
		return
	}
	c.graceTimer = nil
	if c.state != ResumePending {
		return
	}
	c.state = Idle
	c.logTransitionLocked(ResumeGraceElapsed, ResumePending, playback.Snapshot{})
}

func (c *Coordinator) send(cmds []playback.Command) {
	for _, cmd := range cmds {
		if err := c.sender.Send(cmd); err != nil {
			c.logger.Warn("failed to send player command",
				"action", cmd.Action,
				"error", err,
			)
		}
	}
}

func (c *Coordinator) logTransitionLocked(ev Event, prev State, snap playback.Snapshot) {
	attrs := []any{
		"event", ev.String(),
		"from", prev.String(),
		"to", c.state.String(),
		"was_playing", c.wasPlaying,
	}
	if snap.Status != "" {
		attrs = append(attrs, "player_status", string(snap.Status))
	}
	c.logger.Debug("coordinator transition", attrs...)
}
