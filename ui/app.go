package ui

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"goresearch/adapters/artifacts"
	"goresearch/domain/core"
	"goresearch/internal/logging"
	"goresearch/ports"
)

// App is the root HTTP application: the JSON API plus artifact downloads
type App struct {
	router *chi.Mux
	api    http.Handler
	reader ports.ArtifactReader
	logger *zap.Logger
	server *http.Server
}

// NewApp mounts api under /api. reader may be nil, in which case artifact
// downloads answer 404.
func NewApp(api http.Handler, reader ports.ArtifactReader, logger *zap.Logger) *App {
	a := &App{
		router: chi.NewRouter(),
		api:    api,
		reader: reader,
		logger: logging.OrNop(logger),
	}
	a.setupMiddleware()
	a.setupRoutes()
	return a
}

// setupMiddleware configures HTTP middleware
func (a *App) setupMiddleware() {
	a.router.Use(middleware.RequestID)
	a.router.Use(middleware.RealIP)
	a.router.Use(requestLogger(a.logger))
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))
}

// setupRoutes configures the application routes
func (a *App) setupRoutes() {
	a.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	a.router.Handle("/api/*", a.api)
	a.router.Get("/artifacts/{runID}/{name}", a.handleArtifact)
}

// ServeHTTP makes App an http.Handler
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

func (a *App) handleArtifact(w http.ResponseWriter, r *http.Request) {
	runID, err := core.ParseRunID(chi.URLParam(r, "runID"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	name := chi.URLParam(r, "name")
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		http.Error(w, "invalid artifact name", http.StatusBadRequest)
		return
	}
	if a.reader == nil {
		http.NotFound(w, r)
		return
	}

	rc, err := a.reader.Open(r.Context(), runID.String()+"/"+name)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		a.logger.Warn("artifact read failed", zap.String("run_id", runID.String()), zap.String("name", name), zap.Error(err))
		http.Error(w, "artifact unavailable", http.StatusInternalServerError)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", artifacts.ContentType(name))
	if _, err := io.Copy(w, rc); err != nil {
		a.logger.Warn("artifact copy interrupted", zap.Error(err))
	}
}

// Start serves on addr until Shutdown is called
func (a *App) Start(addr string) error {
	a.server = &http.Server{
		Addr:              addr,
		Handler:           a,
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.logger.Info("http server starting", zap.String("addr", addr))
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (a *App) Shutdown(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}
