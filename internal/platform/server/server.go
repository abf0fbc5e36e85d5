package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"WCKV/internal/platform/server/handler/dbentry"
	"WCKV/internal/platform/server/handler/health"
	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	httpAddr     string
	engine       *chi.Mux
	entryHandler *dbentry.DbEntryHandler
}

func NewServer(host string, port int, entryHandler *dbentry.DbEntryHandler) *Server {
	url := fmt.Sprintf("%s:%d", host, port)
	srv := &Server{
		engine:       chi.NewRouter(),
		httpAddr:     url,
		entryHandler: entryHandler,
	}
	srv.engine.Use(middleware.Logger)
	srv.registerRoutes()
	return srv
}

// Serve runs the HTTP server until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.httpAddr,
		Handler: s.engine,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Println("Server Running on:", s.httpAddr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrapf(err, "http server %s", s.httpAddr)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down http server: %v", err)
		}
		return ctx.Err()
	}
}

func (s *Server) String() string {
	return "http-server(" + s.httpAddr + ")"
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) registerRoutes() {
	s.engine.Get("/health", health.CheckHandler)
	s.engine.Method(http.MethodGet, "/metrics", promhttp.Handler())

	s.engine.Get("/db/{cf}/{key}", s.entryHandler.GetColumns)
	s.engine.Post("/db/{cf}/{key}", s.entryHandler.PostColumns)
	s.engine.Delete("/db/{cf}/{key}", s.entryHandler.DeleteEntry)
	s.engine.Get("/db/{cf}/{key}/{column}", s.entryHandler.GetEntry)
	s.engine.Put("/db/{cf}/{key}/{column}", s.entryHandler.PutEntry)
	s.engine.Delete("/db/{cf}/{key}/{column}", s.entryHandler.DeleteEntry)
}
