package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/listenup-companion/internal/config"
	"github.com/listenupapp/listenup-companion/internal/errors"
	"github.com/listenupapp/listenup-companion/internal/llm"
	"github.com/listenupapp/listenup-companion/internal/logger"
	"github.com/listenupapp/listenup-companion/internal/scene"
)

// ScorerHandle holds the scene scorer. Scorer is nil when no backend is configured,
// and scene navigation then reports a configuration error on every call.
type ScorerHandle struct {
	Scorer scene.Scorer
}

// ProvideScorer provides the semantic scene scorer.
func ProvideScorer(i do.Injector) (*ScorerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	client, err := llm.NewClient(llm.Config{
		BaseURL: cfg.Scorer.BaseURL,
		APIKey:  cfg.Scorer.APIKey,
		Model:   cfg.Scorer.Model,
		Timeout: cfg.Scorer.Timeout,
		RPS:     cfg.Scorer.RPS,
		Burst:   cfg.Scorer.Burst,
		Logger:  log.Logger,
	})
	if err != nil {
		if errors.Is(err, errors.ErrConfiguration) {
			// Non-fatal: every other tool works without a scorer.
			log.Warn("Scene scorer not configured, scene navigation disabled", "error", err)
			return &ScorerHandle{}, nil
		}
		return nil, err
	}

	log.Info("Scene scorer configured", "base_url", cfg.Scorer.BaseURL, "model", cfg.Scorer.Model)
	return &ScorerHandle{Scorer: client}, nil
}
