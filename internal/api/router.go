package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/markdave123-py/Scanlens/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/Scanlens/internal/api/middlewares"
	"github.com/markdave123-py/Scanlens/internal/config"
	"github.com/markdave123-py/Scanlens/internal/core"
	"github.com/markdave123-py/Scanlens/internal/core/ingestion_engine"
	"github.com/markdave123-py/Scanlens/internal/services"
)

// NewRouter returns the chi router serving the public API.
func NewRouter(cfg *config.Config, pipeCfg *ingestion_engine.PipelineConfig, db core.DbClient, users *services.UserService, docs *services.DocumentService) http.Handler {
	// Upload covers a conversion, a render and a model call. The handler's
	// own deadline fires first and answers 503; the middleware is a backstop.
	processTimeout := 2*pipeCfg.ConvertTimeout + pipeCfg.ClassifyTimeout + 30*time.Second
	uploadTimeout := processTimeout + 15*time.Second

	authHandler := handlers.NewAuthHandler(users)
	docHandler := handlers.NewDocumentHandler(docs, processTimeout)
	healthHandler := handlers.NewHealthHandler(db, map[string]string{
		"converter": pipeCfg.ConverterBin,
		"renderer":  pipeCfg.RendererBin,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: !allowsAnyOrigin(cfg.AllowedOrigins),
	}))

	r.Get("/health", healthHandler.Health)

	r.Group(func(auth chi.Router) {
		auth.Use(middleware.Timeout(30 * time.Second))
		auth.Post("/signup", authHandler.Signup)
		auth.Post("/login", authHandler.Login)
	})

	r.Group(func(upload chi.Router) {
		upload.Use(middleware.Timeout(uploadTimeout))
		upload.Use(appMiddleware.JWTMiddleware(cfg.JWTSecret, cfg.RequireAuth))
		upload.Post("/upload", docHandler.UploadDocument)
	})

	return r
}

func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
