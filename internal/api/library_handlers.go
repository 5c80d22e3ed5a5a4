package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerLibraryRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listAudiobooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/library",
		Summary:     "List audiobooks",
		Description: "Returns the audiobooks in manifest order and whether each has a transcript",
		Tags:        []string{"Library"},
	}, s.handleListAudiobooks)
}

// AudiobookResponse describes one audiobook.
type AudiobookResponse struct {
	Index         int     `json:"index" doc:"Position in the library"`
	ID            string  `json:"id" doc:"Audiobook ID"`
	Title         string  `json:"title" doc:"Title"`
	Author        string  `json:"author" doc:"Author"`
	Duration      float64 `json:"duration,omitempty" doc:"Duration in seconds, when known"`
	HasTranscript bool    `json:"has_transcript" doc:"Whether story tools can use this audiobook"`
}

// LibraryResponse lists the library.
type LibraryResponse struct {
	Audiobooks []AudiobookResponse `json:"audiobooks" doc:"Audiobooks in manifest order"`
	Total      int                 `json:"total" doc:"Number of audiobooks"`
}

// LibraryOutput wraps the library response for Huma.
type LibraryOutput struct {
	Body LibraryResponse
}

func (s *Server) handleListAudiobooks(_ context.Context, _ *struct{}) (*LibraryOutput, error) {
	books := s.library.Books()
	resp := LibraryResponse{
		Audiobooks: make([]AudiobookResponse, 0, len(books)),
		Total:      len(books),
	}
	for i, b := range books {
		resp.Audiobooks = append(resp.Audiobooks, AudiobookResponse{
			Index:         i,
			ID:            b.ID,
			Title:         b.Title,
			Author:        b.Author,
			Duration:      b.Duration,
			HasTranscript: s.library.HasTranscript(b.ID),
		})
	}
	return &LibraryOutput{Body: resp}, nil
}
