// Package scene locates a described scene in a transcript using a semantic scorer.
package scene

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"github.com/listenupapp/listenup-companion/internal/errors"
	"github.com/listenupapp/listenup-companion/internal/transcript"
)

const (
	// NoChunk is the chunk ID reported when no chunk contains the matched time.
	NoChunk = -1
	// MatchConfidence is reported for every scorer match.
	MatchConfidence = 0.9
	// MaxPreviewRunes bounds Result.Preview.
	MaxPreviewRunes = 200
)

// Match is a scorer's answer: a relative position in [0, 100] over the corpus.
type Match struct {
	Found   bool    `json:"found"`
	Percent float64 `json:"position_percent"`
	Preview string  `json:"preview"`
}

// Scorer finds the passage in corpus that best fits a free-text query.
// Implementations talk to an external model and may block.
type Scorer interface {
	Locate(ctx context.Context, corpus, query string) (Match, error)
}

// Result is the outcome of a scene search.
type Result struct {
	Found      bool    `json:"found"`
	Time       float64 `json:"time"`
	ChunkID    int     `json:"chunk_id"`
	Preview    string  `json:"preview"`
	Confidence float64 `json:"confidence"`
}

// NotFound is the result reported when the scorer finds nothing. Every field is
// zero except ChunkID, which is NoChunk so it cannot be mistaken for chunk 0.
func NotFound() Result {
	return Result{ChunkID: NoChunk}
}

// Options configures a Searcher.
type Options struct {
	// Scorer is required. Without one every search fails with a configuration error.
	Scorer Scorer
	// SpoilerSafe limits the corpus to the text heard so far.
	SpoilerSafe bool
	Logger      *slog.Logger
}

// Searcher runs scene searches over one transcript. It is safe for concurrent use.
type Searcher struct {
	transcript  *transcript.Transcript
	chunks      *transcript.ChunkIndex
	scorer      Scorer
	spoilerSafe bool
	logger      *slog.Logger
}

// New creates a Searcher for a transcript and its chunk index.
func New(tr *transcript.Transcript, chunks *transcript.ChunkIndex, opts Options) *Searcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{
		transcript:  tr,
		chunks:      chunks,
		scorer:      opts.Scorer,
		spoilerSafe: opts.SpoilerSafe,
		logger:      logger,
	}
}

// FindScene asks the scorer where query happens and maps the answer onto playback time.
//
// By default the whole transcript is searched so listeners can jump ahead.
// Scorer failures are returned as ErrSearchFailed and never reported as not found.
func (s *Searcher) FindScene(ctx context.Context, query string, currentTime float64) (Result, error) {
	if s.scorer == nil {
		return NotFound(), errors.Configuration("scene search requires a semantic scorer backend")
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return NotFound(), errors.Validation("scene description is required")
	}

	corpusWords := s.transcript.TotalWords()
	if s.spoilerSafe {
		corpusWords = s.transcript.WordOffset(currentTime)
	}
	if corpusWords == 0 {
		return NotFound(), nil
	}
	corpus := s.transcript.Text(0, corpusWords)

	match, err := s.scorer.Locate(ctx, corpus, query)
	if err != nil {
		if errors.Is(err, errors.ErrSearchFailed) || errors.Is(err, errors.ErrConfiguration) {
			return NotFound(), err
		}
		return NotFound(), errors.SearchFailed(err, "scene scorer failed")
	}

	if !match.Found {
		s.logger.Debug("scene not found", "query", query)
		return NotFound(), nil
	}
	if math.IsNaN(match.Percent) || match.Percent < 0 || match.Percent > 100 {
		return NotFound(), errors.SearchFailed(nil, "scene scorer returned a position outside 0-100")
	}

	offset := int(math.Round(match.Percent / 100 * float64(corpusWords)))
	at := s.transcript.TimeAt(offset)

	chunkID := NoChunk
	if c, ok := s.chunks.ChunkContaining(at); ok {
		chunkID = c.ID
	}

	s.logger.Debug("scene located",
		"query", query,
		"percent", match.Percent,
		"time", at,
		"chunk_id", chunkID,
	)

	return Result{
		Found:      true,
		Time:       at,
		ChunkID:    chunkID,
		Preview:    truncateRunes(strings.TrimSpace(match.Preview), MaxPreviewRunes),
		Confidence: MatchConfidence,
	}, nil
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
