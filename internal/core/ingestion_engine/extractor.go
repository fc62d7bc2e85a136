package ingestion_engine

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/markdave123-py/Scanlens/internal/core"
	"github.com/markdave123-py/Scanlens/internal/models"
)

// Extractor wraps an OCR engine and enforces the ExtractionResult invariants.
type Extractor struct {
	engine core.OCREngine
}

func NewExtractor(engine core.OCREngine) *Extractor {
	return &Extractor{engine: engine}
}

// Extract keeps the engine's region order, clamps every point into the image
// and joins region texts with newlines. Zero regions is a valid result.
func (e *Extractor) Extract(ctx context.Context, img models.NormalizedImage) (*models.ExtractionResult, error) {
	raw, err := e.engine.Recognize(ctx, img)
	if err != nil {
		return nil, extractErr(fmt.Errorf("%s: %w", e.engine.Name(), err))
	}

	w, h := float64(img.Width), float64(img.Height)
	regions := make([]models.TextRegion, 0, len(raw))
	texts := make([]string, 0, len(raw))

	for i, r := range raw {
		if len(r.Polygon) != 4 {
			return nil, extractErr(fmt.Errorf("region %d: polygon has %d points, want 4", i, len(r.Polygon)))
		}
		if math.IsNaN(r.Confidence) {
			return nil, extractErr(fmt.Errorf("region %d: confidence is NaN", i))
		}

		poly := make([]models.Point, len(r.Polygon))
		for j, p := range r.Polygon {
			if math.IsNaN(p[0]) || math.IsNaN(p[1]) {
				return nil, extractErr(fmt.Errorf("region %d: point %d is NaN", i, j))
			}
			poly[j] = models.Point{clamp(p[0], 0, w), clamp(p[1], 0, h)}
		}

		regions = append(regions, models.TextRegion{
			Polygon:    poly,
			Text:       r.Text,
			Confidence: clamp(r.Confidence, 0, 1),
		})
		texts = append(texts, r.Text)
	}

	return &models.ExtractionResult{
		Width:   img.Width,
		Height:  img.Height,
		Regions: regions,
		Text:    strings.Join(texts, "\n"),
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func extractErr(err error) *core.PipelineError {
	return core.NewPipelineError(core.KindExtractionFailed, core.StageExtract, err)
}
