package ingestion_engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/markdave123-py/Scanlens/internal/core"
	objectclient "github.com/markdave123-py/Scanlens/internal/core/object-client"
	"github.com/markdave123-py/Scanlens/internal/models"
)

var _ core.DocumentProcessor = (*Pipeline)(nil)

// NewPipeline wires the three stages. quarantine may be nil.
func NewPipeline(cfg *PipelineConfig, normalizer *FormatNormalizer, extractor *Extractor, classifier *Classifier, quarantine core.ObjectClient) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		normalizer: normalizer,
		extractor:  extractor,
		classifier: classifier,
		quarantine: quarantine,
		jobs:       make(chan job, 64),
	}
}

// Start runs numWorkers goroutines reading from the jobs channel.
// It bounds how many documents are normalized and OCR'd at once.
func (p *Pipeline) Start(ctx context.Context, numWorkers int) {
	if numWorkers < 1 {
		numWorkers = 1
	}
	for w := 1; w <= numWorkers; w++ {
		go func(w int) {
			for {
				select {
				case <-ctx.Done():
					log.Printf("DocumentIngestor: worker %d shutting down.", w)
					return
				case j := <-p.jobs:
					p.runJob(w, j)
				}
			}
		}(w)
	}
}

// runJob answers j exactly once, even when processing panics, so the
// worker survives and Submit is never left waiting.
func (p *Pipeline) runJob(w int, j job) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("DocumentIngestor: worker %d recovered panic: %v\n%s", w, r, debug.Stack())
			j.reply <- jobResult{err: &core.PipelineError{
				Kind:     core.KindInternal,
				Filename: j.doc.Filename,
				Err:      &core.PanicError{Value: r},
			}}
		}
	}()
	if err := j.ctx.Err(); err != nil {
		j.reply <- jobResult{err: err}
		return
	}
	res, err := p.Process(j.ctx, j.doc)
	j.reply <- jobResult{res: res, err: err}
}

// Submit queues doc and waits for its result. The caller's context bounds
// both the wait for a free worker and the processing itself.
func (p *Pipeline) Submit(ctx context.Context, doc models.UploadedDocument) (*models.AnalysisResult, error) {
	reply := make(chan jobResult, 1)
	select {
	case p.jobs <- job{ctx: ctx, doc: doc, reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-reply:
		return r.res, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Process runs normalize → extract → classify for one document.
//
// A classification failure keeps the OCR output: the result is returned
// together with the *core.PipelineError and carries ClassificationError.
// Normalize and extract failures return a nil result.
func (p *Pipeline) Process(ctx context.Context, doc models.UploadedDocument) (*models.AnalysisResult, error) {
	requestID := uuid.NewString()
	start := time.Now()
	log.Printf("DocumentIngestor: request %s processing %q (%d bytes)", requestID, doc.Filename, len(doc.Content))

	extraction, err := p.normalizeAndExtract(ctx, requestID, doc)
	if err != nil {
		err = annotate(err, requestID, doc.Filename)
		log.Printf("DocumentIngestor: request %s failed: %v", requestID, err)
		p.quarantineUpload(ctx, requestID, doc, err)
		return nil, err
	}
	log.Printf("DocumentIngestor: request %s extracted %d region(s) from %dx%d image",
		requestID, len(extraction.Regions), extraction.Width, extraction.Height)

	result := &models.AnalysisResult{
		RequestID: requestID,
		ImageSize: models.ImageSize{Width: extraction.Width, Height: extraction.Height},
		Content:   extraction.Regions,
	}

	var label string
	err = guard(core.StageClassify, core.KindClassificationUnavailable, func() error {
		var err error
		label, err = p.classifier.Classify(ctx, extraction.Text)
		return err
	})
	if err != nil {
		err = annotate(err, requestID, doc.Filename)
		result.ClassificationError = err.Error()
		log.Printf("DocumentIngestor: request %s returning OCR output without type: %v", requestID, err)
		return result, err
	}
	result.Type = label

	log.Printf("DocumentIngestor: request %s classified as %q in %s", requestID, label, time.Since(start).Round(time.Millisecond))
	return result, nil
}

// normalizeAndExtract owns the request arena; it is gone by the time
// classification starts, whatever happened here.
func (p *Pipeline) normalizeAndExtract(ctx context.Context, requestID string, doc models.UploadedDocument) (*models.ExtractionResult, error) {
	arena, err := NewArena(p.cfg.ScratchDir, requestID)
	if err != nil {
		return nil, fmt.Errorf("scratch: %w", err)
	}
	defer func() {
		if err := arena.Release(); err != nil {
			log.Printf("DocumentIngestor: request %s could not release scratch: %v", requestID, err)
		}
	}()

	var img models.NormalizedImage
	err = guard(core.StageNormalize, core.KindConversionFailed, func() error {
		var err error
		img, err = p.normalizer.Normalize(ctx, arena, doc)
		return err
	})
	if err != nil {
		return nil, err
	}

	var extraction *models.ExtractionResult
	err = guard(core.StageExtract, core.KindExtractionFailed, func() error {
		var err error
		extraction, err = p.extractor.Extract(ctx, img)
		return err
	})
	return extraction, err
}

// guard runs one stage and reports a panic inside it as that stage's error.
func guard(stage core.Stage, kind core.ErrorKind, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("DocumentIngestor: %s stage panic recovered: %v\n%s", stage, r, debug.Stack())
			err = core.NewPipelineError(kind, stage, &core.PanicError{Value: r})
		}
	}()
	return fn()
}

// annotate stamps the request identity onto pipeline errors.
func annotate(err error, requestID, filename string) error {
	var pe *core.PipelineError
	if errors.As(err, &pe) {
		pe.RequestID = requestID
		if pe.Filename == "" {
			pe.Filename = filename
		}
	}
	return err
}

// quarantineUpload keeps a copy of uploads the pipeline could not read, when
// an object store is configured. Failures are only logged.
func (p *Pipeline) quarantineUpload(ctx context.Context, requestID string, doc models.UploadedDocument, cause error) {
	if p.quarantine == nil || p.cfg.QuarantineBucket == "" {
		return
	}
	switch core.KindOf(cause) {
	case core.KindUnsupportedFormat, core.KindConversionFailed, core.KindExtractionFailed:
	default:
		return
	}

	qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	key := objectclient.QuarantineKey(requestID, doc.Filename)
	url, err := p.quarantine.UploadFile(qctx, p.cfg.QuarantineBucket, key, bytes.NewReader(doc.Content), http.DetectContentType(doc.Content))
	if err != nil {
		log.Printf("DocumentIngestor: request %s quarantine failed: %v", requestID, err)
		return
	}
	log.Printf("DocumentIngestor: request %s upload quarantined at %s", requestID, url)
}
