package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/listenup-companion/internal/config"
	"github.com/listenupapp/listenup-companion/internal/library"
	"github.com/listenupapp/listenup-companion/internal/logger"
	"github.com/listenupapp/listenup-companion/internal/session"
	"github.com/listenupapp/listenup-companion/internal/validation"
)

// SessionManagerHandle wraps session.Manager with Shutdownable.
type SessionManagerHandle struct {
	*session.Manager
}

// Shutdown implements do.Shutdownable.
func (h *SessionManagerHandle) Shutdown() error {
	return h.Manager.Shutdown()
}

// ProvideSessionManager provides the registry of player sessions.
func ProvideSessionManager(i do.Injector) (*SessionManagerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	lib := do.MustInvoke[*library.Library](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	v := do.MustInvoke[*validation.Validator](i)

	manager := session.NewManager(session.Config{
		Library:       lib,
		Earlier:       indexHandle.SearchIndex,
		Validator:     v,
		ContextWindow: cfg.Transcript.ContextWindow,
		IdleTimeout:   cfg.Coordinator.IdleTimeout,
		ResumeGrace:   cfg.Coordinator.ResumeGrace,
		Logger:        log,
	})
	return &SessionManagerHandle{Manager: manager}, nil
}
