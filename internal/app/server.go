package app

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/markdave123-py/Scanlens/internal/api"
	"github.com/markdave123-py/Scanlens/internal/config"
	"github.com/markdave123-py/Scanlens/internal/core"
	"github.com/markdave123-py/Scanlens/internal/core/ingestion_engine"
	"github.com/markdave123-py/Scanlens/internal/services"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, pipeCfg *ingestion_engine.PipelineConfig, db core.DbClient, users *services.UserService, docs *services.DocumentService) *Server {
	return &Server{httpServer: &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(cfg, pipeCfg, db, users, docs),
		ReadHeaderTimeout: 10 * time.Second,
	}}
}

// Start runs the HTTP server.
func (s *Server) Start() {
	log.Printf("HTTP server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}
