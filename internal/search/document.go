// Package search provides full-text search over transcript chunks using Bleve.
// It answers "where did we hear about X" without looking past the listener's position.
package search

import (
	"fmt"

	"github.com/listenupapp/listenup-companion/internal/transcript"
)

// ChunkDocument is the indexed form of a transcript chunk.
type ChunkDocument struct {
	ID        string   `json:"id"` // {book_id}/{chunk_id}
	BookID    string   `json:"book_id"`
	ChunkID   int      `json:"chunk_id"`
	Text      string   `json:"text"`
	Keywords  []string `json:"keywords"`
	StartTime float64  `json:"start_time"`
	EndTime   float64  `json:"end_time"`
}

// DocumentID returns the index ID for a book's chunk.
func DocumentID(bookID string, chunkID int) string {
	return fmt.Sprintf("%s/%d", bookID, chunkID)
}

// FromChunk converts a transcript chunk into a search document.
func FromChunk(bookID string, c transcript.Chunk) *ChunkDocument {
	return &ChunkDocument{
		ID:        DocumentID(bookID, c.ID),
		BookID:    bookID,
		ChunkID:   c.ID,
		Text:      c.Text,
		Keywords:  c.Keywords,
		StartTime: c.StartTime,
		EndTime:   c.EndTime,
	}
}

// ToMap converts the document to a map with lowercase field names.
// This ensures field names match the Bleve index mapping.
func (d *ChunkDocument) ToMap() map[string]any {
	return map[string]any{
		"id":         d.ID,
		"book_id":    d.BookID,
		"chunk_id":   d.ChunkID,
		"text":       d.Text,
		"keywords":   d.Keywords,
		"start_time": d.StartTime,
		"end_time":   d.EndTime,
	}
}
