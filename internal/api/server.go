// Package api provides the HTTP API for the companion: health, library listing,
// dialogue-layer state events and tool calls.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/listenupapp/listenup-companion/internal/library"
	"github.com/listenupapp/listenup-companion/internal/search"
	"github.com/listenupapp/listenup-companion/internal/session"
)

// Version is reported in the OpenAPI document.
const Version = "1.0.0"

// Deps are the components the API serves.
type Deps struct {
	Sessions *session.Manager
	Library  *library.Library
	// Index is optional. Without it health reports search as degraded.
	Index *search.SearchIndex
	// Player is mounted at /ws/player when set.
	Player http.Handler
	// CORSOrigins enables CORS for browser clients when non-empty.
	CORSOrigins []string
	Logger      *slog.Logger
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	router   *chi.Mux
	api      huma.API
	sessions *session.Manager
	library  *library.Library
	index    *search.SearchIndex
	logger   *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Library == nil {
		deps.Library = library.New(nil)
	}

	s := &Server{
		router:   chi.NewRouter(),
		sessions: deps.Sessions,
		library:  deps.Library,
		index:    deps.Index,
		logger:   deps.Logger,
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	if len(deps.CORSOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins: deps.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         300,
		}))
	}

	if deps.Player != nil {
		s.router.Method(http.MethodGet, "/ws/player", deps.Player)
	}

	humaConfig := huma.DefaultConfig("ListenUp Companion API", Version)
	humaConfig.Info.Description = "Turn-taking and tool surface for the voice audiobook companion."
	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerLibraryRoutes()
	s.registerSessionRoutes()
	s.registerToolRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API returns the huma API, mainly for OpenAPI generation.
func (s *Server) API() huma.API {
	return s.api
}
