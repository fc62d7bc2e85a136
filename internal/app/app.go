// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/markdave123-py/Scanlens/internal/config"
	"github.com/markdave123-py/Scanlens/internal/core"
	db "github.com/markdave123-py/Scanlens/internal/core/database"
	"github.com/markdave123-py/Scanlens/internal/core/ingestion_engine"
	"github.com/markdave123-py/Scanlens/internal/core/llm"
	objectclient "github.com/markdave123-py/Scanlens/internal/core/object-client"
	"github.com/markdave123-py/Scanlens/internal/core/ocr"
	"github.com/markdave123-py/Scanlens/internal/services"
)

type App struct {
	DBClient *db.DatabaseClient
	OCR      *ocr.TesseractEngine
	LLM      core.LLMProvider
	Pipeline *ingestion_engine.Pipeline
	Server   *Server
	stopPool context.CancelFunc
}

// NewApp builds every long-lived collaborator once. Missing external tools,
// an unreachable database or an unusable OCR language abort start-up.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	pipeCfg := ingestion_engine.PipelineConfigFrom(cfg)

	if n, err := ingestion_engine.SweepScratch(pipeCfg.ScratchDir, cfg.ScratchMaxAge); err != nil {
		log.Printf("WARN: scratch sweep failed: %v", err)
	} else if n > 0 {
		log.Printf("Removed %d stale scratch arena(s) from %s", n, pipeCfg.ScratchDir)
	}

	runner := ingestion_engine.ExecRunner{}
	if err := ingestion_engine.ProbeTools(appCtx, runner, pipeCfg.Probes()); err != nil {
		return nil, fmt.Errorf("external tools: %w", err)
	}

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Println("Database initialized and ready.")

	var quarantine core.ObjectClient
	if cfg.QuarantineBucket != "" {
		s3Client, err := objectclient.NewS3Client(appCtx, cfg)
		if err != nil {
			dbClient.Close()
			return nil, fmt.Errorf("quarantine store: %w", err)
		}
		quarantine = s3Client
		log.Printf("Object client initialized; failed uploads go to s3://%s", cfg.QuarantineBucket)
	}

	llmProvider, err := llm.NewProvider(appCtx, cfg)
	if err != nil {
		dbClient.Close()
		return nil, fmt.Errorf("couldn't initialize the llm provider, %w", err)
	}

	engine, err := ocr.NewTesseractEngine(cfg.OCRLanguage, cfg.OCRPSM, cfg.OCRPoolSize)
	if err != nil {
		dbClient.Close()
		return nil, fmt.Errorf("couldn't initialize the ocr engine, %w", err)
	}

	pipeline := ingestion_engine.NewPipeline(
		pipeCfg,
		ingestion_engine.NewFormatNormalizer(pipeCfg, runner),
		ingestion_engine.NewExtractor(engine),
		ingestion_engine.NewClassifier(llmProvider, pipeCfg),
		quarantine,
	)

	poolCtx, stopPool := context.WithCancel(context.Background())
	pipeline.Start(poolCtx, cfg.PipelineWorkers)
	log.Printf("Pipeline started with %d worker(s), model %s via %s", cfg.PipelineWorkers, cfg.GenModel, cfg.LLMProvider)

	userService := services.NewUserService(dbClient, cfg.JWTSecret, cfg.JWTTTL)
	documentService := services.NewDocumentService(pipeline, cfg.MaxUploadMB)

	server := NewServer(cfg, pipeCfg, dbClient, userService, documentService)

	return &App{
		DBClient: dbClient,
		OCR:      engine,
		LLM:      llmProvider,
		Pipeline: pipeline,
		Server:   server,
		stopPool: stopPool,
	}, nil
}

// Close stops the workers and releases the OCR clients and the database.
func (a *App) Close() {
	if a.stopPool != nil {
		a.stopPool()
	}
	if a.OCR != nil {
		_ = a.OCR.Close()
	}
	if c, ok := a.LLM.(io.Closer); ok {
		_ = c.Close()
	}
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
