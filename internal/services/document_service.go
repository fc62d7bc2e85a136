package services

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/markdave123-py/Scanlens/internal/core"
	"github.com/markdave123-py/Scanlens/internal/models"
)

// AcceptedExtensions are the upload types advertised to clients. Other
// extensions are still attempted as images.
var AcceptedExtensions = []string{".pdf", ".docx", ".jpg", ".jpeg", ".png"}

// UploadTooLargeError is returned when the upload exceeds the configured cap.
type UploadTooLargeError struct {
	Limit int64
}

func (e *UploadTooLargeError) Error() string {
	return fmt.Sprintf("file exceeds the %d MB upload limit", e.Limit>>20)
}

type DocumentService struct {
	processor core.DocumentProcessor
	maxBytes  int64
}

func NewDocumentService(processor core.DocumentProcessor, maxUploadMB int) *DocumentService {
	if maxUploadMB <= 0 {
		maxUploadMB = 10
	}
	return &DocumentService{processor: processor, maxBytes: int64(maxUploadMB) << 20}
}

func (s *DocumentService) MaxBytes() int64 { return s.maxBytes }

// Analyze reads the upload and runs it through the pipeline. The body is
// read into memory; it never outlives the request.
func (s *DocumentService) Analyze(ctx context.Context, filename string, body io.Reader) (*models.AnalysisResult, error) {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), `\`, "/"))
	if name == "." || name == "/" || name == "" {
		return nil, &core.ValidationError{Field: "file", Msg: "filename is required"}
	}

	data, err := io.ReadAll(io.LimitReader(body, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, &UploadTooLargeError{Limit: s.maxBytes}
	}

	return s.processor.Submit(ctx, models.UploadedDocument{Filename: name, Content: data})
}
