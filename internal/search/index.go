package search

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/listenupapp/listenup-companion/internal/transcript"
)

// SearchIndex wraps an in-memory Bleve index of transcript chunks.
//
// Thread safety: All public methods are safe for concurrent use.
type SearchIndex struct {
	index  bleve.Index
	logger *slog.Logger
	mu     sync.RWMutex // Protects the index against use after Close
	closed bool
}

// Options configures the search index.
type Options struct {
	Logger *slog.Logger // Logger for operations (uses stderr if nil)
}

// NewSearchIndex creates an empty in-memory index.
// Transcripts are immutable and rebuilt at every start, so nothing is persisted.
func NewSearchIndex(opts Options) (*SearchIndex, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &SearchIndex{
		index:  index,
		logger: logger,
	}, nil
}

// Close closes the index and releases resources.
func (s *SearchIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.index.Close()
}

// IndexBook indexes every chunk of a book in a single batch.
func (s *SearchIndex) IndexBook(bookID string, chunks []transcript.Chunk) error {
	docs := make([]*ChunkDocument, len(chunks))
	for i, c := range chunks {
		docs[i] = FromChunk(bookID, c)
	}
	if err := s.IndexDocuments(docs); err != nil {
		return fmt.Errorf("index book %s: %w", bookID, err)
	}
	s.logger.Debug("indexed book chunks", "book_id", bookID, "chunks", len(chunks))
	return nil
}

// IndexDocuments indexes multiple documents in batches.
func (s *SearchIndex) IndexDocuments(docs []*ChunkDocument) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errIndexClosed
	}

	const batchSize = 500

	for i := 0; i < len(docs); i += batchSize {
		end := min(i+batchSize, len(docs))

		batch := s.index.NewBatch()
		for _, doc := range docs[i:end] {
			if err := batch.Index(doc.ID, doc.ToMap()); err != nil {
				return fmt.Errorf("batch index %s: %w", doc.ID, err)
			}
		}

		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", i, end, err)
		}
	}

	return nil
}

// DocumentCount returns the total number of indexed documents.
func (s *SearchIndex) DocumentCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, errIndexClosed
	}
	return s.index.DocCount()
}
