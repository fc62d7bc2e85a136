package ingestion_engine

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/markdave123-py/Scanlens/internal/config"
	"github.com/markdave123-py/Scanlens/internal/core"
	"github.com/markdave123-py/Scanlens/internal/models"
)

// PipelineConfig tunes the ingestion pipeline.
//
// ScratchDir:       root under which every request gets its own arena.
// PageIndex:        zero-based page rendered from PDF and word-processor inputs.
// RenderDPI:        rasterisation resolution handed to the renderer.
// ConverterBin:     headless office converter (soffice).
// RendererBin:      PDF page rasteriser (pdftoppm).
// ConvertTimeout:   upper bound for each converter/renderer run.
// ClassifyTimeout:  upper bound for the language-model call.
// ClassifyMaxChars: text longer than this is truncated before prompting.
// ClassifyLabels:   optional closed label set; empty means free text.
// QuarantineBucket: bucket receiving uploads that fail normalize/extract.
type PipelineConfig struct {
	ScratchDir       string
	PageIndex        int
	RenderDPI        int
	ConverterBin     string
	RendererBin      string
	ConvertTimeout   time.Duration
	ClassifyTimeout  time.Duration
	ClassifyMaxChars int
	ClassifyLabels   []string
	QuarantineBucket string
}

// PipelineConfigFrom maps the process configuration onto the pipeline knobs.
func PipelineConfigFrom(cfg *config.Config) *PipelineConfig {
	pc := &PipelineConfig{
		ScratchDir:       cfg.ScratchDir,
		PageIndex:        cfg.PageIndex,
		RenderDPI:        cfg.RenderDPI,
		ConverterBin:     cfg.ConverterBin,
		RendererBin:      cfg.RendererBin,
		ConvertTimeout:   cfg.ConvertTimeout,
		ClassifyTimeout:  cfg.ClassifyTimeout,
		ClassifyMaxChars: cfg.ClassifyMaxChars,
		ClassifyLabels:   cfg.ClassifyLabels,
		QuarantineBucket: cfg.QuarantineBucket,
	}
	pc.defaults()
	return pc
}

func (c *PipelineConfig) defaults() {
	if c.ScratchDir == "" {
		c.ScratchDir = filepath.Join(os.TempDir(), "scanlens")
	}
	if c.PageIndex < 0 {
		c.PageIndex = 0
	}
	if c.RenderDPI <= 0 {
		c.RenderDPI = 150
	}
	if c.ConverterBin == "" {
		c.ConverterBin = "soffice"
	}
	if c.RendererBin == "" {
		c.RendererBin = "pdftoppm"
	}
	if c.ConvertTimeout <= 0 {
		c.ConvertTimeout = 2 * time.Minute
	}
	if c.ClassifyTimeout <= 0 {
		c.ClassifyTimeout = 60 * time.Second
	}
	if c.ClassifyMaxChars <= 0 {
		c.ClassifyMaxChars = 12000
	}
}

// job is one upload waiting for a pipeline worker.
type job struct {
	ctx   context.Context
	doc   models.UploadedDocument
	reply chan jobResult
}

type jobResult struct {
	res *models.AnalysisResult
	err error
}

// Pipeline orchestrates normalize → extract → classify:
//
// normalizer: converts the upload to one raster page inside a scratch arena.
// extractor:  runs OCR and assembles the ExtractionResult.
// classifier: labels the extracted text through the LLM provider.
// quarantine: optional object store for uploads that could not be read.
// jobs:       in-memory queue feeding the bounded worker pool.
type Pipeline struct {
	cfg        *PipelineConfig
	normalizer *FormatNormalizer
	extractor  *Extractor
	classifier *Classifier
	quarantine core.ObjectClient
	jobs       chan job
}
