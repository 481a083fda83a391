package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	handlers "github.com/de-tools/kmp-audit/pkg/handlers/audit"
	kmpmiddleware "github.com/de-tools/kmp-audit/pkg/server/middleware"
	"github.com/de-tools/kmp-audit/pkg/services/audit"
	"github.com/de-tools/kmp-audit/pkg/services/batch"
	"github.com/de-tools/kmp-audit/pkg/store/duckdb/results"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type WebAPI struct {
	router          http.Handler
	logger          *zerolog.Logger
	server          *http.Server
	shutdownTimeout time.Duration
	onShutdown      func(ctx context.Context)
}

type Dependencies struct {
	Analyzer      *audit.Analyzer
	Results       results.Store
	RunController batch.Controller
	Logger        zerolog.Logger
}

type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	Dependencies    Dependencies
	// OnShutdown runs after the HTTP server stopped accepting requests.
	OnShutdown func(ctx context.Context)
}

func ConfigureRouter(config Config) http.Handler {
	deps := config.Dependencies
	h := handlers.NewHandler(deps.Analyzer, deps.Results, deps.RunController)

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(kmpmiddleware.Logger(&deps.Logger))
	router.Use(middleware.Recoverer)

	router.Route("/api/v1", func(r chi.Router) {
		r.Post("/packages/analyze", h.AnalyzePackage)
		r.Post("/modules/analyze", h.AnalyzeModules)

		r.Get("/runs", h.ListRuns)
		r.Post("/runs", h.StartRun)
		r.Get("/runs/{run}", h.GetRun)
		r.Delete("/runs/{run}", h.CancelRun)
		r.Get("/runs/{run}/results", h.GetResults)
	})

	return router
}

func NewWebAPI(config Config) *WebAPI {
	router := ConfigureRouter(config)
	logger := config.Dependencies.Logger
	timeout := config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &WebAPI{
		router:          router,
		logger:          &logger,
		shutdownTimeout: timeout,
		onShutdown:      config.OnShutdown,
		server: &http.Server{
			Addr:              config.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (w *WebAPI) Start() error {
	serverErrors := make(chan error, 1)
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	go func() {
		w.logger.Info().Str("addr", w.server.Addr).Msg("starting server")
		serverErrors <- w.server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-shutdown:
		w.logger.Info().Msg("shutdown initiated")

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), w.shutdownTimeout)
		defer cancel()

		err := w.server.Shutdown(ctx)
		if err != nil {
			w.logger.Error().Err(err).Msg("graceful shutdown failed")
			err = w.server.Close()
		}
		if w.onShutdown != nil {
			w.onShutdown(ctx)
		}

		if err != nil {
			return err
		}
	}

	return nil
}
