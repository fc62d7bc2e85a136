package ingestion_engine

import (
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/markdave123-py/Scanlens/internal/core"
	"github.com/markdave123-py/Scanlens/internal/models"
)

func newTestNormalizer(t *testing.T, runner CommandRunner) (*FormatNormalizer, *Arena) {
	t.Helper()
	cfg := testPipelineConfig(t)
	arena, err := NewArena(cfg.ScratchDir, "req")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { arena.Release() })
	return NewFormatNormalizer(cfg, runner), arena
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		filename string
		want     documentFormat
	}{
		{"scan.pdf", formatPDF},
		{"SCAN.PDF", formatPDF},
		{"letter.docx", formatWord},
		{"letter.doc", formatWord},
		{"photo.jpg", formatImage},
		{"photo.png", formatImage},
		{"noextension", formatImage},
	}
	for _, tt := range tests {
		if got, _ := detectFormat(tt.filename); got != tt.want {
			t.Errorf("detectFormat(%q) = %s, want %s", tt.filename, got, tt.want)
		}
	}
}

func TestNormalizeImage(t *testing.T) {
	runner := &fakeRunner{}
	n, arena := newTestNormalizer(t, runner)

	img, err := n.Normalize(context.Background(), arena, models.UploadedDocument{
		Filename: "receipt.png",
		Content:  pngBytes(t, 64, 48),
	})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if img.Width != 64 || img.Height != 48 || img.Format != "png" {
		t.Errorf("got %+v", img)
	}
	if !strings.HasPrefix(img.Path, arena.Dir()) {
		t.Errorf("image %s outside arena %s", img.Path, arena.Dir())
	}
	if len(runner.calls) != 0 {
		t.Errorf("images must not hit external tools, got %v", runner.calls)
	}
}

func TestNormalizePDF(t *testing.T) {
	runner := &fakeRunner{pageWidth: 200, pageHeight: 300}
	n, arena := newTestNormalizer(t, runner)

	img, err := n.Normalize(context.Background(), arena, models.UploadedDocument{
		Filename: "invoice.pdf",
		Content:  buildPagedPDF(2),
	})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if img.Width != 200 || img.Height != 300 {
		t.Errorf("size = %dx%d, want 200x300", img.Width, img.Height)
	}

	call := runner.called("pdftoppm")
	if call == nil {
		t.Fatal("renderer not invoked")
	}
	if i := slices.Index(call, "-f"); i < 0 || call[i+1] != "1" {
		t.Errorf("renderer args %v, want first page", call)
	}
	if !slices.Contains(call, "-singlefile") {
		t.Errorf("renderer args %v missing -singlefile", call)
	}
}

func TestNormalizePDFPageIndex(t *testing.T) {
	runner := &fakeRunner{}
	n, arena := newTestNormalizer(t, runner)
	n.cfg.PageIndex = 1

	if _, err := n.Normalize(context.Background(), arena, models.UploadedDocument{
		Filename: "two.pdf",
		Content:  buildPagedPDF(2),
	}); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	call := runner.called("pdftoppm")
	if i := slices.Index(call, "-f"); i < 0 || call[i+1] != "2" {
		t.Errorf("renderer args %v, want second page", call)
	}
}

func TestNormalizePDFPageOutOfRange(t *testing.T) {
	runner := &fakeRunner{}
	n, arena := newTestNormalizer(t, runner)
	n.cfg.PageIndex = 3

	_, err := n.Normalize(context.Background(), arena, models.UploadedDocument{
		Filename: "one.pdf",
		Content:  buildPagedPDF(1),
	})
	if core.KindOf(err) != core.KindUnsupportedFormat {
		t.Fatalf("err = %v, want unsupported_format", err)
	}
	if runner.called("pdftoppm") != nil {
		t.Error("renderer invoked for out-of-range page")
	}
}

func TestNormalizePDFParserPanic(t *testing.T) {
	runner := &fakeRunner{}
	n, arena := newTestNormalizer(t, runner)
	n.pageCount = func(io.ReadSeeker) (int, error) {
		var xref []byte
		return int(xref[513]), nil
	}

	_, err := n.Normalize(context.Background(), arena, models.UploadedDocument{
		Filename: "truncated.pdf",
		Content:  buildPagedPDF(2),
	})
	var pe *core.PipelineError
	if !errors.As(err, &pe) || pe.Kind != core.KindUnsupportedFormat || pe.Stage != core.StageNormalize {
		t.Fatalf("err = %v, want unsupported_format from normalize", err)
	}
	if !strings.Contains(err.Error(), "unreadable pdf") {
		t.Errorf("err = %v, want unreadable pdf", err)
	}
	if runner.called("pdftoppm") != nil {
		t.Error("renderer invoked after parser panic")
	}
}

func TestNormalizeMutatedPDFs(t *testing.T) {
	runner := &fakeRunner{}
	n, arena := newTestNormalizer(t, runner)
	valid := buildPagedPDF(2)
	rng := rand.New(rand.NewPCG(1, 1))

	for i := 0; i < 100; i++ {
		doc := slices.Clone(valid)
		if i%2 == 0 {
			doc = doc[:rng.IntN(len(doc))+1]
		}
		for j := 0; j < 1+rng.IntN(8); j++ {
			doc[rng.IntN(len(doc))] = byte(rng.IntN(256))
		}

		_, err := n.Normalize(context.Background(), arena, models.UploadedDocument{
			Filename: "mutated.pdf",
			Content:  doc,
		})
		if err != nil && core.KindOf(err) == "" {
			t.Fatalf("mutation %d: untyped error %v", i, err)
		}
	}
}

func TestNormalizeWord(t *testing.T) {
	runner := &fakeRunner{pageWidth: 90, pageHeight: 120}
	n, arena := newTestNormalizer(t, runner)

	img, err := n.Normalize(context.Background(), arena, models.UploadedDocument{
		Filename: "Contract.DOCX",
		Content:  []byte("PK\x03\x04 not really a docx"),
	})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if img.Width != 90 || img.Height != 120 {
		t.Errorf("size = %dx%d", img.Width, img.Height)
	}

	call := runner.called("soffice")
	if call == nil {
		t.Fatal("converter not invoked")
	}
	if !slices.Contains(call, "--headless") || !slices.Contains(call, "pdf") {
		t.Errorf("converter args %v", call)
	}
	if !strings.HasPrefix(call[1], "-env:UserInstallation=file://"+arena.Dir()) {
		t.Errorf("converter profile %q not inside arena", call[1])
	}
	if runner.called("pdftoppm") == nil {
		t.Error("converted pdf was not rendered")
	}
}

func TestNormalizeFailures(t *testing.T) {
	tests := []struct {
		name     string
		runner   *fakeRunner
		doc      models.UploadedDocument
		timeout  time.Duration
		wantKind core.ErrorKind
		retry    bool
	}{
		{
			name:     "empty upload",
			runner:   &fakeRunner{},
			doc:      models.UploadedDocument{Filename: "a.png"},
			wantKind: core.KindUnsupportedFormat,
		},
		{
			name:     "garbage image",
			runner:   &fakeRunner{},
			doc:      models.UploadedDocument{Filename: "a.png", Content: []byte("definitely not an image")},
			wantKind: core.KindUnsupportedFormat,
		},
		{
			name:     "garbage pdf",
			runner:   &fakeRunner{},
			doc:      models.UploadedDocument{Filename: "a.pdf", Content: []byte("%PDF-1.4 broken")},
			wantKind: core.KindUnsupportedFormat,
		},
		{
			name:     "converter exits non-zero",
			runner:   &fakeRunner{failBin: "soffice"},
			doc:      models.UploadedDocument{Filename: "a.docx", Content: []byte("PK")},
			wantKind: core.KindConversionFailed,
		},
		{
			name:     "renderer exits non-zero",
			runner:   &fakeRunner{failBin: "pdftoppm"},
			doc:      models.UploadedDocument{Filename: "a.pdf", Content: buildPagedPDF(1)},
			wantKind: core.KindConversionFailed,
		},
		{
			name:     "converter times out",
			runner:   &fakeRunner{hang: true},
			doc:      models.UploadedDocument{Filename: "a.docx", Content: []byte("PK")},
			timeout:  20 * time.Millisecond,
			wantKind: core.KindConversionFailed,
			retry:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, arena := newTestNormalizer(t, tt.runner)
			if tt.timeout > 0 {
				n.cfg.ConvertTimeout = tt.timeout
			}

			_, err := n.Normalize(context.Background(), arena, tt.doc)

			var pe *core.PipelineError
			if !errors.As(err, &pe) {
				t.Fatalf("err = %v, want *core.PipelineError", err)
			}
			if pe.Kind != tt.wantKind || pe.Stage != core.StageNormalize {
				t.Errorf("got %s/%s, want %s/normalize", pe.Kind, pe.Stage, tt.wantKind)
			}
			if pe.Retryable != tt.retry {
				t.Errorf("Retryable = %t, want %t", pe.Retryable, tt.retry)
			}
		})
	}
}
