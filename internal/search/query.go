package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/listenupapp/listenup-companion/internal/transcript"
)

var errIndexClosed = errors.New("search index is closed")

// previewRunes bounds EarlierHit.Preview.
const previewRunes = 200

// EarlierParams configures an earlier-context search.
type EarlierParams struct {
	BookID      string
	Topic       string
	CurrentTime float64 // Only chunks ending at or before this time are searched
	Limit       int     // Defaults to 1
}

// EarlierHit is a heard chunk that mentions the topic.
type EarlierHit struct {
	ChunkID   int     `json:"chunk_id"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Score     float64 `json:"score"`
	Preview   string  `json:"preview"`
}

// SearchEarlier finds fully heard chunks of a book that mention topic, best match first.
func (s *SearchIndex) SearchEarlier(ctx context.Context, params EarlierParams) ([]EarlierHit, error) {
	if strings.TrimSpace(params.Topic) == "" || params.CurrentTime <= 0 {
		return nil, nil
	}
	if params.Limit <= 0 {
		params.Limit = 1
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errIndexClosed
	}

	req := bleve.NewSearchRequestOptions(buildEarlierQuery(params), params.Limit, 0, false)
	req.SortBy([]string{"-_score", "start_time"})
	req.Fields = []string{"chunk_id", "start_time", "end_time", "text"}

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	hits := make([]EarlierHit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		h := EarlierHit{Score: hit.Score}
		if v, ok := hit.Fields["chunk_id"].(float64); ok {
			h.ChunkID = int(v)
		}
		if v, ok := hit.Fields["start_time"].(float64); ok {
			h.StartTime = v
		}
		if v, ok := hit.Fields["end_time"].(float64); ok {
			h.EndTime = v
		}
		if v, ok := hit.Fields["text"].(string); ok {
			h.Preview = preview(v)
		}
		hits = append(hits, h)
	}

	s.logger.Debug("earlier context search",
		"book_id", params.BookID,
		"topic", params.Topic,
		"current_time", params.CurrentTime,
		"total", res.Total,
	)

	return hits, nil
}

// buildEarlierQuery restricts to one book and to chunks that end by CurrentTime,
// then matches the topic against chunk text and keywords.
func buildEarlierQuery(params EarlierParams) query.Query {
	bookQuery := bleve.NewTermQuery(params.BookID)
	bookQuery.SetField("book_id")

	inclusive := true
	upper := params.CurrentTime
	heardQuery := bleve.NewNumericRangeInclusiveQuery(nil, &upper, nil, &inclusive)
	heardQuery.SetField("end_time")

	textMatch := bleve.NewMatchQuery(params.Topic)
	textMatch.SetField("text")
	textQueries := []query.Query{textMatch}

	// Exact keyword hits rank above stemmed text matches
	for _, kw := range transcript.Keywords(params.Topic) {
		kq := bleve.NewTermQuery(kw)
		kq.SetField("keywords")
		kq.SetBoost(2.0)
		textQueries = append(textQueries, kq)
	}

	return bleve.NewConjunctionQuery(bookQuery, heardQuery, bleve.NewDisjunctionQuery(textQueries...))
}

func preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= previewRunes {
		return text
	}
	return string(r[:previewRunes])
}
