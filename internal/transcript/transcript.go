// Package transcript models an audiobook transcript indexed by playback time.
//
// A Transcript is built once at load and is read-only afterwards, so it is safe
// for concurrent use. Everything here answers the question "what has the
// listener heard by time t" without reaching past it.
package transcript

import (
	"os"
	"strings"

	"github.com/listenupapp/listenup-companion/internal/errors"
)

// Transcript is an immutable ordered sequence of words plus its time index.
type Transcript struct {
	TimeIndex

	words   []string
	aliases Aliases
	folded  []string
}

// Option configures a Transcript.
type Option func(*Transcript)

// WithAliases sets the character alias table used for mention tracking.
func WithAliases(a Aliases) Option {
	return func(t *Transcript) {
		t.aliases = a
	}
}

// New splits text on whitespace and indexes it at wordsPerMinute.
func New(text string, wordsPerMinute float64, opts ...Option) *Transcript {
	words := strings.Fields(text)

	t := &Transcript{
		TimeIndex: NewTimeIndex(len(words), wordsPerMinute),
		words:     words,
		aliases:   DefaultAliases(),
	}
	for _, opt := range opts {
		opt(t)
	}

	t.folded = make([]string, len(words))
	for i, w := range words {
		t.folded[i] = fold(w)
	}

	return t
}

// Load reads a transcript file from disk. A missing file is a configuration error.
func Load(path string, wordsPerMinute float64, opts ...Option) (*Transcript, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- Transcript path comes from the library manifest
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Configurationf("transcript not found: %s", path)
		}
		return nil, errors.Wrapf(err, errors.CodeConfiguration, "read transcript %s", path)
	}
	return New(string(data), wordsPerMinute, opts...), nil
}

// Aliases returns the character alias table.
func (t *Transcript) Aliases() Aliases { return t.aliases }

// Text joins words [from, to) with single spaces. Bounds are clamped.
func (t *Transcript) Text(from, to int) string {
	from, to = t.clampRange(from, to)
	return strings.Join(t.words[from:to], " ")
}

// foldedText is Text over the case-folded words.
func (t *Transcript) foldedText(from, to int) string {
	from, to = t.clampRange(from, to)
	return strings.Join(t.folded[from:to], " ")
}

func (t *Transcript) clampRange(from, to int) (int, int) {
	n := len(t.words)
	from = min(max(from, 0), n)
	to = min(max(to, from), n)
	return from, to
}
