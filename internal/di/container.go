// Package di provides dependency injection configuration for the companion.
package di

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/listenup-companion/internal/config"
	"github.com/listenupapp/listenup-companion/internal/di/providers"
	"github.com/listenupapp/listenup-companion/internal/library"
	"github.com/listenupapp/listenup-companion/internal/logger"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()
	do.Provide(injector, providers.ProvideConfig)
	Register(injector)
	return injector
}

// Register adds every provider except the configuration, which the caller
// provides first.
func Register(injector do.Injector) {
	// Core infrastructure
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideValidator)

	// Story layer
	do.Provide(injector, providers.ProvideSearchIndex)
	do.Provide(injector, providers.ProvideScorer)
	do.Provide(injector, providers.ProvideLibrary)

	// Sessions
	do.Provide(injector, providers.ProvideSessionManager)

	// Server
	do.Provide(injector, providers.ProvidePlayerHandler)
	do.Provide(injector, providers.ProvideHTTPServer)
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector do.Injector) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)
	_ = do.MustInvoke[*providers.ScorerHandle](injector)

	// A bad transcript directory stops startup.
	if _, err := do.Invoke[*library.Library](injector); err != nil {
		return err
	}

	_ = do.MustInvoke[*providers.SessionManagerHandle](injector)

	// Server
	if _, err := do.Invoke[*providers.HTTPServerHandle](injector); err != nil {
		return err
	}
	return nil
}
