package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/listenup-companion/internal/logger"
	"github.com/listenupapp/listenup-companion/internal/search"
)

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.SearchIndex
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the in-memory earlier-context index.
// It starts empty; the library fills it while loading transcripts.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	index, err := search.NewSearchIndex(search.Options{Logger: log.Logger})
	if err != nil {
		return nil, err
	}
	return &SearchIndexHandle{SearchIndex: index}, nil
}
