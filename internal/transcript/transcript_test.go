package transcript

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/listenup-companion/internal/errors"
)

const snowWhiteLine = "Snow White lived with the Queen. Later the Prince arrived."

// numbered returns "w0 w1 ... w{n-1}".
func numbered(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(words, " ")
}

func TestTimeIndex_WordOffset(t *testing.T) {
	ti := NewTimeIndex(100, 120)

	tests := []struct {
		seconds float64
		want    int
	}{
		{0, 0},
		{-5, 0},
		{math.NaN(), 0},
		{0.49, 0},
		{0.5, 1},
		{10, 20},
		{10.3, 20},
		{50, 100},
		{10000, 100},
		{math.Inf(1), 100},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.seconds), func(t *testing.T) {
			assert.Equal(t, tt.want, ti.WordOffset(tt.seconds))
		})
	}
}

func TestTimeIndex_MonotonicAndBounded(t *testing.T) {
	ti := NewTimeIndex(737, 137)

	prev := 0
	for s := 0.0; s < 400; s += 0.37 {
		got := ti.WordOffset(s)
		assert.GreaterOrEqual(t, got, prev)
		assert.LessOrEqual(t, got, ti.TotalWords())
		prev = got
	}
}

func TestTimeIndex_RoundTrip(t *testing.T) {
	for _, wpm := range []float64{97, 120, 150, 173.5} {
		ti := NewTimeIndex(1000, wpm)
		for n := 0; n <= 1000; n++ {
			require.Equal(t, n, ti.WordOffset(ti.TimeAt(n)), "wpm=%v n=%d", wpm, n)
		}
	}
}

func TestTimeIndex_EstimatedDuration(t *testing.T) {
	ti := NewTimeIndex(3000, 120)
	assert.InDelta(t, 1500.0, ti.EstimatedDuration(), 1e-9)
	assert.InDelta(t, 2.0, ti.WordsPerSecond(), 1e-9)
}

func TestTimeIndex_InvalidRateFallsBack(t *testing.T) {
	assert.InDelta(t, 2.0, NewTimeIndex(10, 0).WordsPerSecond(), 1e-9)
	assert.InDelta(t, 2.0, NewTimeIndex(10, -3).WordsPerSecond(), 1e-9)
}

func TestLoad_MissingFileIsConfigurationError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.txt"), 120)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrConfiguration)
}

func TestLoad_ReadsWords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.txt")
	require.NoError(t, os.WriteFile(path, []byte("  once upon\n\ta   time \n"), 0o600))

	tr, err := Load(path, 120)
	require.NoError(t, err)
	assert.Equal(t, 4, tr.TotalWords())
	assert.Equal(t, "once upon a time", tr.Text(0, 4))
}

func TestText_ClampsBounds(t *testing.T) {
	tr := New("a b c", 120)
	assert.Equal(t, "a b c", tr.Text(-3, 99))
	assert.Equal(t, "", tr.Text(2, 1))
	assert.Equal(t, "c", tr.Text(2, 3))
}

func TestHeardContext_AtZeroIsEmpty(t *testing.T) {
	tr := New(numbered(500), 120)

	for _, w := range []float64{0, 30, 180, 1e6} {
		hc := tr.HeardContext(0, w)
		assert.Empty(t, hc.Text)
		assert.Zero(t, hc.WordCount)
		assert.Zero(t, hc.ProgressPercent)
	}
}

func TestHeardContext_Window(t *testing.T) {
	tr := New(numbered(1000), 120)

	hc := tr.HeardContext(100, 30)
	// words [140, 200)
	assert.Equal(t, 60, hc.WordCount)
	assert.True(t, strings.HasPrefix(hc.Text, "w140 "))
	assert.True(t, strings.HasSuffix(hc.Text, " w199"))
	assert.InDelta(t, 20.0, hc.ProgressPercent, 1e-9)

	small := tr.HeardContext(300, 30)
	large := tr.HeardContext(300, 180)
	assert.Greater(t, large.WordCount, small.WordCount)
}

func TestHeardContext_BeyondDuration(t *testing.T) {
	tr := New(numbered(1000), 120) // 500 seconds

	hc := tr.HeardContext(10000, 180)
	assert.InDelta(t, 100.0, hc.ProgressPercent, 1e-9)
	// final 180 seconds = last 360 words
	assert.Equal(t, 360, hc.WordCount)
	assert.Equal(t, tr.Text(640, 1000), hc.Text)

	whole := tr.HeardContext(10000, 10000)
	assert.Equal(t, 1000, whole.WordCount)
}

func TestHeardContext_EmptyTranscript(t *testing.T) {
	tr := New("", 120)
	hc := tr.HeardContext(60, 180)
	assert.Empty(t, hc.Text)
	assert.Zero(t, hc.ProgressPercent)
	assert.Zero(t, tr.EstimatedDuration())
}

func TestHeardContext_CharacterMentionsFollowHeardWords(t *testing.T) {
	tr := New(snowWhiteLine, 120)

	before := tr.HeardContext(tr.TimeAt(6), 180)
	assert.False(t, before.CharacterMentions["prince"])
	assert.True(t, before.CharacterMentions["snow white"])
	assert.True(t, before.CharacterMentions["queen"])

	after := tr.HeardContext(tr.TimeAt(9), 180)
	assert.True(t, after.CharacterMentions["prince"])
	assert.False(t, after.CharacterMentions["huntsman"])
	assert.Len(t, after.CharacterMentions, len(DefaultAliases()))
}

func TestHeardContext_MentionsUseWindowOnly(t *testing.T) {
	text := "the queen spoke " + numbered(1000)
	tr := New(text, 120)

	// queen was heard at word 1 but is outside a 10 second window at t=400
	assert.False(t, tr.HeardContext(400, 10).CharacterMentions["queen"])
	assert.True(t, tr.CharacterAppeared(400, "queen"))
}

func TestFullHeardContext(t *testing.T) {
	tr := New(snowWhiteLine, 120)
	assert.Equal(t, "", tr.FullHeardContext(0))
	assert.Equal(t, "Snow White lived", tr.FullHeardContext(1.5))
	assert.Equal(t, snowWhiteLine, tr.FullHeardContext(1000))
}

func TestCharacterAppeared(t *testing.T) {
	tr := New(snowWhiteLine+" The HUNTER waited by the Mirror.", 120)

	tests := []struct {
		name    string
		atWord  int
		subject string
		want    bool
	}{
		{"alias key before mention", 6, "prince", false},
		{"alias key after mention", 9, "Prince", true},
		{"alias of canonical key", 13, "huntsman", true},
		{"alias key case insensitive", 16, "MAGIC MIRROR", true},
		{"unknown name falls back to literal", 4, "lived", true},
		{"unknown name not yet heard", 4, "arrived", false},
		{"blank name", 16, "  ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tr.CharacterAppeared(tr.TimeAt(tt.atWord), tt.subject))
		})
	}
}

func TestCharacterAppeared_Monotonic(t *testing.T) {
	tr := New(snowWhiteLine, 120)

	for _, name := range []string{"prince", "queen", "arrived", "dwarfs"} {
		seen := false
		for s := 0.0; s <= tr.EstimatedDuration()+1; s += 0.25 {
			got := tr.CharacterAppeared(s, name)
			if seen {
				assert.True(t, got, "%s regressed at %v", name, s)
			}
			seen = seen || got
		}
	}
}

func TestWithAliases(t *testing.T) {
	tr := New("Gretel pushed the witch", 120, WithAliases(Aliases{"witch": {"witch", "old woman"}}))

	assert.True(t, tr.CharacterAppeared(tr.EstimatedDuration(), "WITCH"))
	hc := tr.HeardContext(tr.EstimatedDuration(), 180)
	assert.Equal(t, map[string]bool{"witch": true}, hc.CharacterMentions)
}
