package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/listenup-companion/internal/errors"
	"github.com/listenupapp/listenup-companion/internal/library"
	"github.com/listenupapp/listenup-companion/internal/logger"
	"github.com/listenupapp/listenup-companion/internal/playback"
	"github.com/listenupapp/listenup-companion/internal/scene"
	"github.com/listenupapp/listenup-companion/internal/search"
	"github.com/listenupapp/listenup-companion/internal/transcript"
	"github.com/listenupapp/listenup-companion/internal/validation"
)

const snowWhite = "Snow White lived with the Queen. Later the Prince arrived."

type fakeScorer struct {
	match scene.Match
	err   error
}

func (f *fakeScorer) Locate(_ context.Context, _, _ string) (scene.Match, error) {
	return f.match, f.err
}

type fakeEarlier struct {
	hits   []search.EarlierHit
	err    error
	params search.EarlierParams
}

func (f *fakeEarlier) SearchEarlier(_ context.Context, p search.EarlierParams) ([]search.EarlierHit, error) {
	f.params = p
	return f.hits, f.err
}

type countingResetter struct{ n int }

func (r *countingResetter) Reset() { r.n++ }

type commandLog struct {
	mu   sync.Mutex
	cmds []playback.Command
	err  error
}

func (c *commandLog) Send(cmd playback.Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.cmds = append(c.cmds, cmd)
	return nil
}

func (c *commandLog) last(t *testing.T) playback.Command {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.cmds)
	return c.cmds[len(c.cmds)-1]
}

type fixture struct {
	d       *Dispatcher
	tracker *playback.Tracker
	cursor  *library.Cursor
	sent    *commandLog
	reset   *countingResetter
	scorer  *fakeScorer
	earlier *fakeEarlier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		tracker: playback.NewTracker(),
		sent:    &commandLog{},
		reset:   &countingResetter{},
		scorer:  &fakeScorer{},
		earlier: &fakeEarlier{},
	}

	tr := transcript.New(snowWhite, 120)
	chunks, err := transcript.NewChunkIndex(tr, 4, 1)
	require.NoError(t, err)
	vol := &library.Volume{
		Book:       library.Book{ID: "snow-white-001", Title: "Snow White", Author: "Brothers Grimm"},
		Transcript: tr,
		Chunks:     chunks,
		Scene:      scene.New(tr, chunks, scene.Options{Scorer: f.scorer, Logger: logger.Discard()}),
	}
	lib := library.New([]library.Book{
		vol.Book,
		{ID: "hansel-gretel-002", Title: "Hansel and Gretel", Author: "Brothers Grimm"},
	}, vol)
	f.cursor = lib.NewCursor()

	f.d = NewDispatcher(Env{
		Playback:    f.tracker,
		Cursor:      f.cursor,
		Sender:      f.sent,
		Coordinator: f.reset,
		Earlier:     f.earlier,
		Logger:      logger.Discard(),
	}, validation.New())
	return f
}

func (f *fixture) at(seconds float64) {
	f.tracker.Apply(playback.Snapshot{Status: playback.StatusPlaying, CurrentTime: seconds})
}

func (f *fixture) call(t *testing.T, name Name, args string) (string, error) {
	t.Helper()
	var raw json.RawMessage
	if args != "" {
		raw = json.RawMessage(args)
	}
	return f.d.Call(context.Background(), string(name), raw)
}

func TestDefinitions(t *testing.T) {
	defs := Definitions()
	require.Len(t, defs, 11)
	for i := 1; i < len(defs); i++ {
		assert.Less(t, defs[i-1].Name, defs[i].Name)
	}
	assert.True(t, Known("navigate_to_scene"))
	assert.False(t, Known("lookup_weather"))
}

func TestCall_UnknownTool(t *testing.T) {
	f := newFixture(t)
	_, err := f.d.Call(context.Background(), "lookup_weather", nil)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestCall_InvalidArguments(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name Name
		args string
	}{
		{CheckIfCharacterAppeared, `{}`},
		{CheckIfCharacterAppeared, `{"character_name": 7}`},
		{SkipTime, `{}`},
		{SkipTime, `not json`},
		{SkipTime, `{"seconds": 1.5}`},
		{SetPlaybackSpeed, `{"speed": "fast"}`},
		{SetPlaybackSpeed, `null`},
		{NavigateToScene, `null`},
		{SearchEarlierContext, `{"topic": ""}`},
	}

	for _, tt := range tests {
		t.Run(string(tt.name)+" "+tt.args, func(t *testing.T) {
			_, err := f.call(t, tt.name, tt.args)
			assert.ErrorIs(t, err, errors.ErrValidation)
		})
	}
	assert.Empty(t, f.sent.cmds)
}

func TestCurrentAudiobookInfo(t *testing.T) {
	f := newFixture(t)

	got, err := f.call(t, GetCurrentAudiobookInfo, "")
	require.NoError(t, err)
	assert.Equal(t, "Title: Snow White, Author: Brothers Grimm", got)
}

func TestStoryContext(t *testing.T) {
	f := newFixture(t)

	got, err := f.call(t, GetStoryContext, "")
	require.NoError(t, err)
	assert.Empty(t, got)

	f.at(3) // six words at 2 words per second
	got, err = f.call(t, GetStoryContext, "{}")
	require.NoError(t, err)
	assert.Equal(t, "Snow White lived with the Queen.", got)
}

func TestStoryContext_NoTranscript(t *testing.T) {
	f := newFixture(t)
	f.cursor.Next()

	_, err := f.call(t, GetStoryContext, "")
	assert.ErrorIs(t, err, errors.ErrUnavailable)
}

func TestCharacterAppeared(t *testing.T) {
	f := newFixture(t)

	f.at(3)
	got, err := f.call(t, CheckIfCharacterAppeared, `{"character_name": "Prince"}`)
	require.NoError(t, err)
	assert.Equal(t, "no, Prince has not been mentioned yet (avoid spoilers!)", got)

	f.at(4.5)
	got, err = f.call(t, CheckIfCharacterAppeared, `{"character_name": "Prince"}`)
	require.NoError(t, err)
	assert.Equal(t, "yes, Prince has appeared in the story", got)
}

func TestPauseAndResume(t *testing.T) {
	f := newFixture(t)

	got, err := f.call(t, PauseAudiobook, "")
	require.NoError(t, err)
	assert.Equal(t, ReplyPaused, got)
	assert.Equal(t, playback.Pause(), f.sent.last(t))

	got, err = f.call(t, ResumeAudiobook, "")
	require.NoError(t, err)
	assert.Equal(t, ReplyPlaying, got)
	assert.Equal(t, playback.Resume(), f.sent.last(t))

	assert.Equal(t, 2, f.reset.n)
}

func TestPause_PlayerUnavailable(t *testing.T) {
	f := newFixture(t)
	f.sent.err = errors.New("connection closed")

	_, err := f.call(t, PauseAudiobook, "")
	assert.ErrorIs(t, err, errors.ErrUnavailable)
	assert.Zero(t, f.reset.n)
}

func TestSetPlaybackSpeed(t *testing.T) {
	tests := []struct {
		args  string
		want  string
		speed float64
	}{
		{`{"speed": 1.5}`, "Speed 1.5x", 1.5},
		{`{"speed": 1}`, "Speed 1.0x", 1},
		{`{"speed": 3}`, "Speed 2.0x", 2},
		{`{"speed": 0.1}`, "Speed 0.25x", 0.25},
		{`{"speed": 0}`, "Speed 0.25x", 0.25},
		{`{"speed": -0.25}`, "Speed 0.25x", 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.args, func(t *testing.T) {
			f := newFixture(t)
			got, err := f.call(t, SetPlaybackSpeed, tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			cmd := f.sent.last(t)
			assert.Equal(t, playback.ActionSetSpeed, cmd.Action)
			require.NotNil(t, cmd.Speed)
			assert.InDelta(t, tt.speed, *cmd.Speed, 1e-9)
		})
	}
}

func TestSkipTime(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
		seek    float64
	}{
		{30, "Skipped forward 30 seconds", 130},
		{-30, "Skipped back 30 seconds", 70},
		{60, "Skipped forward 1 minute", 160},
		{90, "Skipped forward 1 minute", 190},
		{-120, "Skipped back 2 minutes", 0},
		{1, "Skipped forward 1 seconds", 101},
		{0, "Skipped back 0 seconds", 100},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			f := newFixture(t)
			f.at(100)

			got, err := f.call(t, SkipTime, fmt.Sprintf(`{"seconds": %d}`, tt.seconds))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			cmd := f.sent.last(t)
			assert.Equal(t, playback.ActionSeek, cmd.Action)
			require.NotNil(t, cmd.Time)
			assert.InDelta(t, tt.seek, *cmd.Time, 1e-9)
		})
	}
}

func TestNextAndPreviousAudiobook(t *testing.T) {
	f := newFixture(t)

	got, err := f.call(t, NextAudiobook, "")
	require.NoError(t, err)
	assert.Equal(t, ReplyNextAudiobook, got)
	assert.Equal(t, playback.NextAudiobook(), f.sent.last(t))
	assert.Equal(t, 1, f.cursor.Index())

	_, err = f.call(t, NextAudiobook, "")
	require.NoError(t, err)
	assert.Equal(t, 0, f.cursor.Index(), "wraps around")

	got, err = f.call(t, PreviousAudiobook, "")
	require.NoError(t, err)
	assert.Equal(t, ReplyPrevAudiobook, got)
	assert.Equal(t, playback.PreviousAudiobook(), f.sent.last(t))
	assert.Equal(t, 1, f.cursor.Index())
}

func TestNavigateToScene(t *testing.T) {
	f := newFixture(t)
	f.scorer.match = scene.Match{Found: true, Percent: 80, Preview: "Later the\nPrince arrived."}

	got, err := f.call(t, NavigateToScene, `{"description": "the prince shows up"}`)
	require.NoError(t, err)
	assert.Equal(t, "Found it: Later the Prince arrived....", got)

	// 80% of 10 words is word 8, which is 4 seconds in at 2 words per second
	cmd := f.sent.last(t)
	assert.Equal(t, playback.ActionSeek, cmd.Action)
	require.NotNil(t, cmd.Time)
	assert.InDelta(t, 4.0, *cmd.Time, 1e-9)
}

func TestNavigateToScene_LongPreviewTruncated(t *testing.T) {
	f := newFixture(t)
	long := ""
	for range 30 {
		long += "abcd "
	}
	f.scorer.match = scene.Match{Found: true, Percent: 10, Preview: long}

	got, err := f.call(t, NavigateToScene, `{"description": "anything"}`)
	require.NoError(t, err)
	assert.Len(t, []rune(got), len("Found it: ")+80+len("..."))
}

func TestNavigateToScene_NotFound(t *testing.T) {
	f := newFixture(t)

	got, err := f.call(t, NavigateToScene, `{"description": "a dragon"}`)
	require.NoError(t, err)
	assert.Equal(t, ReplySceneNotFound, got)
	assert.Empty(t, f.sent.cmds)
}

func TestNavigateToScene_ScorerFailureIsNotNotFound(t *testing.T) {
	f := newFixture(t)
	f.scorer.err = errors.SearchFailed(nil, "model returned garbage")

	got, err := f.call(t, NavigateToScene, `{"description": "the mirror"}`)
	require.NoError(t, err)
	assert.Equal(t, ReplySearchFailed, got)
	assert.Empty(t, f.sent.cmds)
}

func TestNavigateToScene_NoScorer(t *testing.T) {
	tr := transcript.New(snowWhite, 120)
	chunks, err := transcript.NewChunkIndex(tr, 4, 1)
	require.NoError(t, err)
	vol := &library.Volume{
		Book:       library.Book{ID: "snow-white-001"},
		Transcript: tr,
		Chunks:     chunks,
		Scene:      scene.New(tr, chunks, scene.Options{Logger: logger.Discard()}),
	}
	lib := library.New([]library.Book{vol.Book}, vol)
	d := NewDispatcher(Env{Cursor: lib.NewCursor(), Sender: &commandLog{}, Logger: logger.Discard()}, nil)

	_, err = d.Call(context.Background(), string(NavigateToScene), json.RawMessage(`{"description": "the mirror"}`))
	assert.ErrorIs(t, err, errors.ErrConfiguration)
}

func TestSearchEarlierContext(t *testing.T) {
	f := newFixture(t)
	f.at(5)
	f.earlier.hits = []search.EarlierHit{{ChunkID: 0, Preview: "Snow White lived with"}}

	got, err := f.call(t, SearchEarlierContext, `{"topic": "snow white"}`)
	require.NoError(t, err)
	assert.Equal(t, "Earlier mention: Snow White lived with", got)
	assert.Equal(t, search.EarlierParams{
		BookID:      "snow-white-001",
		Topic:       "snow white",
		CurrentTime: 5,
		Limit:       1,
	}, f.earlier.params)
}

func TestSearchEarlierContext_NothingHeard(t *testing.T) {
	f := newFixture(t)

	got, err := f.call(t, SearchEarlierContext, `{"topic": "prince"}`)
	require.NoError(t, err)
	assert.Equal(t, ReplyNoEarlierMention, got)
}

func TestSearchEarlierContext_Failure(t *testing.T) {
	f := newFixture(t)
	f.earlier.err = errors.New("index closed")

	got, err := f.call(t, SearchEarlierContext, `{"topic": "prince"}`)
	require.NoError(t, err)
	assert.Equal(t, ReplySearchFailed, got)
}

func TestSearchEarlierContext_WithBleveIndex(t *testing.T) {
	f := newFixture(t)
	idx, err := search.NewSearchIndex(search.Options{Logger: logger.Discard()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	_, vol := f.cursor.Current()
	require.NoError(t, idx.IndexBook(vol.ID, vol.Chunks.Chunks()))
	f.d.env.Earlier = idx

	f.at(2) // first chunk ends at 2s
	got, err := f.call(t, SearchEarlierContext, `{"topic": "queen"}`)
	require.NoError(t, err)
	assert.Equal(t, ReplyNoEarlierMention, got)

	f.at(5)
	got, err = f.call(t, SearchEarlierContext, `{"topic": "queen"}`)
	require.NoError(t, err)
	assert.Contains(t, got, "Earlier mention: ")
	assert.Contains(t, got, "Queen")
}

func TestSkipReply(t *testing.T) {
	assert.Equal(t, "Skipped back 1 minute", skipReply(-60))
	assert.Equal(t, "Skipped back 59 seconds", skipReply(-59))
	assert.Equal(t, "Skipped forward 3 minutes", skipReply(200))
}

func TestFormatSpeed(t *testing.T) {
	assert.Equal(t, "2.0", formatSpeed(2))
	assert.Equal(t, "0.75", formatSpeed(0.75))
}
