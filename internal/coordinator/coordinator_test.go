package coordinator

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/listenup-companion/internal/errors"
	"github.com/listenupapp/listenup-companion/internal/playback"
)

// recorder captures sent commands and checks that the coordinator lock is free
// during delivery.
type recorder struct {
	mu    sync.Mutex
	cmds  []playback.Command
	coord *Coordinator
	err   error
}

func (r *recorder) Send(cmd playback.Command) error {
	if r.coord != nil {
		// Would deadlock if the coordinator held its lock across Send.
		_ = r.coord.State()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds = append(r.cmds, cmd)
	return r.err
}

func (r *recorder) actions() []playback.Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]playback.Action, 0, len(r.cmds))
	for _, c := range r.cmds {
		out = append(out, c.Action)
	}
	return out
}

type fixture struct {
	coord   *Coordinator
	tracker *playback.Tracker
	clock   *ManualClock
	sent    *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		tracker: playback.NewTracker(),
		clock:   NewManualClock(),
		sent:    &recorder{},
	}
	f.coord = New(Options{
		Playback:    f.tracker,
		Sender:      f.sent,
		Clock:       f.clock,
		IdleTimeout: 3 * time.Second,
		ResumeGrace: 3 * time.Second,
	})
	f.sent.coord = f.coord
	return f
}

func (f *fixture) playing() {
	f.tracker.Apply(playback.Snapshot{Status: playback.StatusPlaying, CurrentTime: 30})
}

func (f *fixture) paused() {
	f.tracker.Apply(playback.Snapshot{Status: playback.StatusPaused, CurrentTime: 30})
}

func TestCoordinator_StartsIdle(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, Idle, f.coord.State())
	assert.Equal(t, Flags{}, f.coord.Flags())
}

func TestCoordinator_PausesWhenUserInterruptsPlayback(t *testing.T) {
	f := newFixture(t)
	f.playing()

	f.coord.UserStartedSpeaking()

	assert.Equal(t, []playback.Action{playback.ActionPause}, f.sent.actions())
	assert.Equal(t, UserSpeaking, f.coord.State())
	assert.Equal(t, Flags{WasPlayingBeforeInterruption: true, InConversation: true}, f.coord.Flags())
}

func TestCoordinator_NoPauseWhenAlreadyPaused(t *testing.T) {
	f := newFixture(t)
	f.paused()

	f.coord.UserStartedSpeaking()
	f.coord.UserStoppedSpeaking()
	f.coord.AgentStartedSpeaking()
	f.coord.AgentStoppedSpeaking()

	assert.Empty(t, f.sent.actions())
	assert.False(t, f.coord.Flags().WasPlayingBeforeInterruption)
}

func TestCoordinator_SecondInterruptionKeepsFirstSnapshot(t *testing.T) {
	f := newFixture(t)
	f.playing()
	f.coord.UserStartedSpeaking()

	// player has confirmed the pause before the user speaks again
	f.paused()
	f.coord.UserStoppedSpeaking()
	f.coord.UserStartedSpeaking()

	assert.Equal(t, []playback.Action{playback.ActionPause}, f.sent.actions())
	assert.True(t, f.coord.Flags().WasPlayingBeforeInterruption)
}

func TestCoordinator_FullExchangeResumes(t *testing.T) {
	f := newFixture(t)
	f.playing()

	f.coord.UserStartedSpeaking()
	f.paused()
	f.coord.UserStoppedSpeaking()
	assert.Equal(t, AwaitingAgentResponse, f.coord.State())

	f.coord.AgentStartedSpeaking()
	assert.Equal(t, AwaitingAgentResponse, f.coord.State())

	f.coord.AgentStoppedSpeaking()

	assert.Equal(t, []playback.Action{playback.ActionPause, playback.ActionResume}, f.sent.actions())
	assert.Equal(t, ResumePending, f.coord.State())
	assert.Equal(t, Flags{ResumePending: true}, f.coord.Flags())
}

func TestCoordinator_InterruptDuringGraceStillPauses(t *testing.T) {
	f := newFixture(t)
	f.playing()
	f.coord.UserStartedSpeaking()
	f.paused()
	f.coord.UserStoppedSpeaking()
	f.coord.AgentStoppedSpeaking()

	// the player has not reported the resume yet
	f.clock.Advance(time.Second)
	f.coord.UserStartedSpeaking()

	assert.Equal(t, []playback.Action{
		playback.ActionPause,
		playback.ActionResume,
		playback.ActionPause,
	}, f.sent.actions())
	assert.Equal(t, UserSpeaking, f.coord.State())
	assert.Equal(t, Flags{WasPlayingBeforeInterruption: true, InConversation: true}, f.coord.Flags())

	// and the second exchange resumes again
	f.coord.UserStoppedSpeaking()
	f.coord.AgentStoppedSpeaking()
	assert.Equal(t, playback.ActionResume, f.sent.actions()[3])
}

func TestCoordinator_GraceElapsesToIdle(t *testing.T) {
	f := newFixture(t)
	f.playing()
	f.coord.UserStartedSpeaking()
	f.coord.UserStoppedSpeaking()
	f.coord.AgentStoppedSpeaking()
	require.Equal(t, ResumePending, f.coord.State())

	f.clock.Advance(2999 * time.Millisecond)
	assert.Equal(t, ResumePending, f.coord.State())

	f.clock.Advance(time.Millisecond)
	assert.Equal(t, Idle, f.coord.State())
	assert.Equal(t, Flags{}, f.coord.Flags())

	// a later interruption with a paused player does not pause again
	f.paused()
	f.coord.UserStartedSpeaking()
	assert.Len(t, f.sent.actions(), 2)
}

func TestCoordinator_IdleTimeoutEndsConversation(t *testing.T) {
	f := newFixture(t)
	f.paused()
	f.coord.UserStartedSpeaking()
	f.coord.UserStoppedSpeaking()
	f.coord.AgentStoppedSpeaking()

	assert.True(t, f.coord.Flags().InConversation)
	assert.Equal(t, 1, f.clock.Pending())

	f.clock.Advance(3 * time.Second)

	assert.Equal(t, Idle, f.coord.State())
	assert.Equal(t, Flags{}, f.coord.Flags())
	assert.Empty(t, f.sent.actions())
}

func TestCoordinator_IdleTimerRestartsOnAgentStop(t *testing.T) {
	f := newFixture(t)
	f.coord.UserStartedSpeaking()
	f.coord.AgentStoppedSpeaking()

	f.clock.Advance(2 * time.Second)
	f.coord.AgentStoppedSpeaking()
	f.clock.Advance(2 * time.Second)

	// first timer was superseded
	assert.True(t, f.coord.Flags().InConversation)
	assert.Equal(t, 1, f.clock.Pending())

	f.clock.Advance(time.Second)
	assert.Equal(t, Idle, f.coord.State())
}

func TestCoordinator_UserSpeechCancelsIdleTimer(t *testing.T) {
	f := newFixture(t)
	f.coord.UserStartedSpeaking()
	f.coord.AgentStoppedSpeaking()

	f.clock.Advance(time.Second)
	f.coord.UserStartedSpeaking()
	f.clock.Advance(10 * time.Second)

	assert.Equal(t, UserSpeaking, f.coord.State())
}

func TestCoordinator_AgentSpeechCancelsIdleTimer(t *testing.T) {
	f := newFixture(t)
	f.coord.UserStartedSpeaking()
	f.coord.AgentStoppedSpeaking()
	f.coord.AgentStartedSpeaking()

	f.clock.Advance(10 * time.Second)
	assert.Equal(t, AwaitingAgentResponse, f.coord.State())
}

func TestCoordinator_StaleTimerIsNoOp(t *testing.T) {
	f := newFixture(t)
	c := f.coord

	c.mu.Lock()
	c.startIdleLocked()
	staleGen := c.idleGen
	c.stopIdleLocked()
	c.state = UserSpeaking
	c.mu.Unlock()

	// a callback that raced its cancellation
	c.idleExpired(staleGen)
	assert.Equal(t, UserSpeaking, c.State())

	c.mu.Lock()
	c.state = ResumePending
	c.startGraceLocked()
	graceGen := c.graceGen
	c.stopGraceLocked()
	c.mu.Unlock()

	c.graceExpired(graceGen)
	assert.Equal(t, ResumePending, c.State())
}

func TestCoordinator_AgentEventsOutsideConversation(t *testing.T) {
	f := newFixture(t)
	f.playing()

	f.coord.AgentStartedSpeaking()
	assert.Equal(t, Idle, f.coord.State())

	f.coord.AgentStoppedSpeaking()
	assert.Equal(t, Idle, f.coord.State())
	assert.Empty(t, f.sent.actions())

	f.clock.Advance(5 * time.Second)
	assert.Equal(t, Idle, f.coord.State())
}

func TestCoordinator_UserStoppedWithoutStartIsIgnored(t *testing.T) {
	f := newFixture(t)

	f.coord.UserStoppedSpeaking()

	assert.Equal(t, Idle, f.coord.State())
	assert.Empty(t, f.sent.actions())
}

func TestCoordinator_Reset(t *testing.T) {
	f := newFixture(t)
	f.playing()
	f.coord.UserStartedSpeaking()
	f.coord.AgentStoppedSpeaking()
	require.Equal(t, ResumePending, f.coord.State())

	f.coord.Reset()

	assert.Equal(t, Idle, f.coord.State())
	assert.Equal(t, Flags{}, f.coord.Flags())
	assert.Zero(t, f.clock.Pending())

	// an explicit pause followed by an agent turn must not resume
	f.paused()
	f.coord.UserStartedSpeaking()
	f.coord.AgentStoppedSpeaking()
	assert.Equal(t, []playback.Action{playback.ActionPause, playback.ActionResume}, f.sent.actions())
}

func TestCoordinator_IdenticalPlaybackStateSendsNothing(t *testing.T) {
	f := newFixture(t)
	for range 3 {
		f.playing()
	}
	assert.Empty(t, f.sent.actions())
	assert.Equal(t, Idle, f.coord.State())
}

func TestCoordinator_SendErrorsAreTolerated(t *testing.T) {
	f := newFixture(t)
	f.sent.err = errors.Unavailable("player gone")
	f.playing()

	f.coord.UserStartedSpeaking()

	assert.Equal(t, UserSpeaking, f.coord.State())
	assert.Len(t, f.sent.actions(), 1)
}

func TestCoordinator_CloseStopsTimers(t *testing.T) {
	f := newFixture(t)
	f.coord.UserStartedSpeaking()
	f.coord.AgentStoppedSpeaking()

	f.coord.Close()
	assert.Zero(t, f.clock.Pending())

	f.playing()
	f.coord.UserStartedSpeaking()
	assert.Empty(t, f.sent.actions())
}

func TestCoordinator_Handle(t *testing.T) {
	f := newFixture(t)
	f.playing()

	f.coord.Handle(UserStartedSpeaking)
	f.coord.Handle(UserStoppedSpeaking)
	f.coord.Handle(AgentStartedSpeaking)
	f.coord.Handle(AgentStoppedSpeaking)
	f.coord.Handle(IdleTimeoutFired)

	assert.Equal(t, ResumePending, f.coord.State())
	assert.Equal(t, []playback.Action{playback.ActionPause, playback.ActionResume}, f.sent.actions())
}

func TestCoordinator_ConcurrentEvents(t *testing.T) {
	f := newFixture(t)
	f.playing()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(3)
		go func() { defer wg.Done(); f.coord.UserStartedSpeaking() }()
		go func() { defer wg.Done(); f.coord.AgentStoppedSpeaking() }()
		go func() { defer wg.Done(); f.clock.Advance(time.Second) }()
	}
	wg.Wait()

	s := f.coord.Status()
	assert.False(t, s.ResumePending && s.InConversation)
}

func TestRealClock_Fires(t *testing.T) {
	done := make(chan struct{})
	RealClock{}.AfterFunc(time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestManualClock_OrderAndStop(t *testing.T) {
	c := NewManualClock()
	var got []int
	c.AfterFunc(2*time.Second, func() { got = append(got, 2) })
	c.AfterFunc(time.Second, func() { got = append(got, 1) })
	stopped := c.AfterFunc(time.Second, func() { got = append(got, 99) })

	assert.True(t, stopped.Stop())
	assert.False(t, stopped.Stop())

	c.Advance(5 * time.Second)
	assert.Equal(t, []int{1, 2}, got)
	assert.Zero(t, c.Pending())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "user_speaking", UserSpeaking.String())
	assert.Equal(t, "awaiting_agent_response", AwaitingAgentResponse.String())
	assert.Equal(t, "resume_pending", ResumePending.String())
	assert.Equal(t, "agent_stopped_speaking", AgentStoppedSpeaking.String())
}
