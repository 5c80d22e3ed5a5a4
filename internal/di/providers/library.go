package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/listenupapp/listenup-companion/internal/config"
	"github.com/listenupapp/listenup-companion/internal/library"
	"github.com/listenupapp/listenup-companion/internal/logger"
	"github.com/listenupapp/listenup-companion/internal/scene"
	"github.com/listenupapp/listenup-companion/internal/transcript"
)

// ProvideLibrary loads the manifest and every transcript, indexing chunks for
// earlier-context search.
func ProvideLibrary(i do.Injector) (*library.Library, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	scorerHandle := do.MustInvoke[*ScorerHandle](i)

	var aliases transcript.Aliases
	if cfg.Library.AliasPath != "" {
		a, err := transcript.LoadAliases(cfg.Library.AliasPath)
		if err != nil {
			return nil, err
		}
		log.Info("Loaded character aliases", "path", cfg.Library.AliasPath, "characters", len(a))
		aliases = a
	}

	lib, err := library.Load(context.Background(), library.Options{
		ManifestPath:   cfg.Library.ManifestPath,
		TranscriptDir:  cfg.Library.TranscriptDir,
		WordsPerMinute: cfg.Transcript.WordsPerMinute,
		ChunkSize:      cfg.Transcript.ChunkSize,
		ChunkOverlap:   cfg.Transcript.ChunkOverlap,
		Aliases:        aliases,
		Scene: scene.Options{
			Scorer:      scorerHandle.Scorer,
			SpoilerSafe: cfg.Scorer.SpoilerSafe,
			Logger:      log.Logger,
		},
		Index:  indexHandle.SearchIndex,
		Logger: log.Logger,
	})
	if err != nil {
		return nil, err
	}

	docCount, _ := indexHandle.DocumentCount()
	log.Info("Search index initialized", "documents", docCount)

	return lib, nil
}
