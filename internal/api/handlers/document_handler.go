package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	appMiddleware "github.com/markdave123-py/Scanlens/internal/api/middlewares"
	"github.com/markdave123-py/Scanlens/internal/core"
	"github.com/markdave123-py/Scanlens/internal/services"
)

// multipartSlack covers the multipart framing around the file part.
const multipartSlack = 1 << 20

type DocumentHandler struct {
	docs    *services.DocumentService
	timeout time.Duration
}

// NewDocumentHandler bounds each analysis by timeout; zero means the request
// context alone. Keep it below any outer timeout middleware so the handler
// answers first.
func NewDocumentHandler(docs *services.DocumentService, timeout time.Duration) *DocumentHandler {
	return &DocumentHandler{docs: docs, timeout: timeout}
}

// uploadError is the JSON body of every failed upload.
type uploadError struct {
	Error     string   `json:"error"`
	Kind      string   `json:"kind,omitempty"`
	Stage     string   `json:"stage,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
	Retryable bool     `json:"retryable"`
	Accepted  []string `json:"accepted,omitempty"`
}

// UploadDocument runs the multipart "file" field through the pipeline and
// returns the analysis synchronously.
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.docs.MaxBytes()+multipartSlack)

	file, header, err := r.FormFile("file")
	if err != nil {
		if isBodyTooLarge(err) {
			respondJSON(w, uploadError{Error: (&services.UploadTooLargeError{Limit: h.docs.MaxBytes()}).Error()}, http.StatusRequestEntityTooLarge)
			return
		}
		respondJSON(w, uploadError{Error: "multipart field \"file\" is required"}, http.StatusBadRequest)
		return
	}
	defer file.Close()

	if userID, ok := appMiddleware.UserIDFromContext(r.Context()); ok {
		log.Printf("DocumentHandler: %s uploading %q for user %s", middleware.GetReqID(r.Context()), header.Filename, userID)
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	result, err := h.docs.Analyze(ctx, header.Filename, file)
	if err == nil {
		respondJSON(w, result, http.StatusOK)
		return
	}

	// OCR succeeded but the model did not answer: the text is still useful.
	if result != nil && core.KindOf(err) == core.KindClassificationUnavailable {
		respondJSON(w, result, http.StatusOK)
		return
	}

	status, body := uploadFailure(err)
	if status >= http.StatusInternalServerError {
		log.Printf("DocumentHandler: upload %q failed: %v", header.Filename, err)
	}
	respondJSON(w, body, status)
}

// uploadFailure maps an upload error onto a status code and error body.
func uploadFailure(err error) (int, uploadError) {
	var (
		pe       *core.PipelineError
		ve       *core.ValidationError
		tooLarge *services.UploadTooLargeError
	)
	switch {
	case errors.As(err, &pe):
		body := uploadError{
			Error:     pe.Error(),
			Kind:      string(pe.Kind),
			Stage:     string(pe.Stage),
			RequestID: pe.RequestID,
			Retryable: pe.Retryable,
		}
		switch pe.Kind {
		case core.KindUnsupportedFormat:
			body.Accepted = services.AcceptedExtensions
			return http.StatusUnsupportedMediaType, body
		case core.KindConversionFailed, core.KindExtractionFailed:
			return http.StatusUnprocessableEntity, body
		case core.KindClassificationUnavailable:
			return http.StatusServiceUnavailable, body
		}
		return http.StatusInternalServerError, body
	case errors.As(err, &ve):
		return http.StatusBadRequest, uploadError{Error: ve.Error(), Kind: string(core.KindValidation)}
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, uploadError{Error: tooLarge.Error()}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, uploadError{Error: "service busy, try again later", Retryable: true}
	}
	if isBodyTooLarge(err) {
		return http.StatusRequestEntityTooLarge, uploadError{Error: "upload too large"}
	}
	return http.StatusInternalServerError, uploadError{Error: "internal error"}
}

// isBodyTooLarge spots http.MaxBytesReader failures; the multipart reader
// does not always wrap them.
func isBodyTooLarge(err error) bool {
	var maxBytes *http.MaxBytesError
	return errors.As(err, &maxBytes) || strings.Contains(err.Error(), "request body too large")
}
