package transcript

import (
	"slices"
	"sort"
	"strings"
	"unicode"

	"github.com/listenupapp/listenup-companion/internal/errors"
)

// Default chunking parameters.
const (
	DefaultChunkSize    = 150
	DefaultChunkOverlap = 25
)

// Chunk is a contiguous, immutable word range of the transcript.
type Chunk struct {
	ID        int      `json:"id"`
	StartWord int      `json:"start_word"`
	EndWord   int      `json:"end_word"` // exclusive
	StartTime float64  `json:"start_time"`
	EndTime   float64  `json:"end_time"`
	Text      string   `json:"text"`
	Keywords  []string `json:"keywords"`
}

// ChunkIndex partitions a transcript into overlapping fixed-size windows.
type ChunkIndex struct {
	chunks  []Chunk
	size    int
	overlap int
}

// NewChunkIndex slides a window of size words with overlap words of overlap across t.
// The final chunk ends at the last word and may be shorter than size.
func NewChunkIndex(t *Transcript, size, overlap int) (*ChunkIndex, error) {
	if size <= 0 {
		return nil, errors.Validationf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, errors.Validationf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}

	n := t.TotalWords()
	step := size - overlap
	ci := &ChunkIndex{size: size, overlap: overlap}
	if n == 0 {
		return ci, nil
	}

	ci.chunks = make([]Chunk, 0, n/step+1)
	for start := 0; ; start += step {
		end := min(start+size, n)
		ci.chunks = append(ci.chunks, Chunk{
			ID:        len(ci.chunks),
			StartWord: start,
			EndWord:   end,
			StartTime: t.TimeAt(start),
			EndTime:   t.TimeAt(end),
			Text:      t.Text(start, end),
			Keywords:  keywords(t.folded[start:end]),
		})
		if end == n {
			break
		}
	}

	return ci, nil
}

// Len returns the number of chunks.
func (ci *ChunkIndex) Len() int { return len(ci.chunks) }

// Chunks returns the chunks in ID order. The slice must not be modified.
func (ci *ChunkIndex) Chunks() []Chunk { return ci.chunks }

// Chunk returns the chunk with the given ID.
func (ci *ChunkIndex) Chunk(id int) (Chunk, bool) {
	if id < 0 || id >= len(ci.chunks) {
		return Chunk{}, false
	}
	return ci.chunks[id], true
}

// ChunkContaining returns the first chunk whose [StartTime, EndTime] contains seconds.
func (ci *ChunkIndex) ChunkContaining(seconds float64) (Chunk, bool) {
	// End times ascend, so the first chunk ending at or after seconds is the only candidate.
	i := sort.Search(len(ci.chunks), func(i int) bool {
		return ci.chunks[i].EndTime >= seconds
	})
	if i == len(ci.chunks) || ci.chunks[i].StartTime > seconds {
		return Chunk{}, false
	}
	return ci.chunks[i], true
}

// Keywords returns the distinct lower-case tokens of text, as stored on chunks.
func Keywords(text string) []string {
	fields := strings.Fields(text)
	for i, f := range fields {
		fields[i] = fold(f)
	}
	return keywords(fields)
}

// keywords returns the distinct lower-case tokens of words with surrounding punctuation removed.
func keywords(folded []string) []string {
	seen := make(map[string]struct{}, len(folded))
	out := make([]string, 0, len(folded))
	for _, w := range folded {
		w = strings.TrimFunc(w, func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSymbol(r)
		})
		if w == "" {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	slices.Sort(out)
	return out
}
