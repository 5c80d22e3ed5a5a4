package providers

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/listenupapp/listenup-companion/internal/api"
	"github.com/listenupapp/listenup-companion/internal/config"
	"github.com/listenupapp/listenup-companion/internal/library"
	"github.com/listenupapp/listenup-companion/internal/logger"
	"github.com/listenupapp/listenup-companion/internal/transport"
)

// ProvidePlayerHandler provides the player WebSocket handler.
func ProvidePlayerHandler(i do.Injector) (*transport.Handler, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	sessionsHandle := do.MustInvoke[*SessionManagerHandle](i)

	return transport.NewHandler(transport.Options{
		Sessions:    sessionsHandle.Manager,
		Logger:      log.Logger,
		CheckOrigin: transport.AllowOrigins(cfg.Server.CORSOrigins),
	}), nil
}

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	listener net.Listener
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ListenAddr returns the address the server is bound to.
func (h *HTTPServerHandle) ListenAddr() string {
	return h.listener.Addr().String()
}

// ProvideHTTPServer binds the listen address and serves the API in the background.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	lib := do.MustInvoke[*library.Library](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	sessionsHandle := do.MustInvoke[*SessionManagerHandle](i)
	player := do.MustInvoke[*transport.Handler](i)

	handler := api.NewServer(api.Deps{
		Sessions:    sessionsHandle.Manager,
		Library:     lib,
		Index:       indexHandle.SearchIndex,
		Player:      player,
		CORSOrigins: cfg.Server.CORSOrigins,
		Logger:      log.Logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return nil, err
	}

	// Start in background
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", ln.Addr().String())

	return &HTTPServerHandle{Server: srv, listener: ln}, nil
}
