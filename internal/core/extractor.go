package core

import (
	"context"

	"github.com/markdave123-py/Scanlens/internal/models"
)

// OCREngine detects and recognizes text on a normalized image.
// Implementations must be safe for concurrent use; they are built once at
// start-up and shared by every request.
type OCREngine interface {
	Name() string
	Recognize(ctx context.Context, img models.NormalizedImage) ([]models.TextRegion, error)
}

// DocumentProcessor runs the normalize → extract → classify pipeline for one upload.
type DocumentProcessor interface {
	Submit(ctx context.Context, doc models.UploadedDocument) (*models.AnalysisResult, error)
}
