// Package providers contains dependency injection providers for the companion.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/listenup-companion/internal/config"
	"github.com/listenupapp/listenup-companion/internal/logger"
	"github.com/listenupapp/listenup-companion/internal/validation"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(_ do.Injector) (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting ListenUp Companion",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"manifest", cfg.Library.ManifestPath,
		"transcript_dir", cfg.Library.TranscriptDir,
	)

	return log, nil
}

// ProvideValidator provides the shared struct validator.
func ProvideValidator(_ do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}
