package ingestion_engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/markdave123-py/Scanlens/internal/models"
)

// pngBytes encodes a white w x h PNG.
func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(0, 0, color.Black)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// buildPagedPDF creates a valid PDF with the given number of pages and
// proper xref offsets.
func buildPagedPDF(pages int) []byte {
	stream := "BT\n/F1 12 Tf\n72 720 Td\n(scan) Tj\nET"

	var b strings.Builder
	b.WriteString("%PDF-1.4\n")

	total := 4 + pages
	offsets := make([]int, total+1)

	kids := make([]string, pages)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", 5+i)
	}

	offsets[1] = b.Len()
	b.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	offsets[2] = b.Len()
	fmt.Fprintf(&b, "2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n", strings.Join(kids, " "), pages)

	offsets[3] = b.Len()
	b.WriteString("3 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n")

	offsets[4] = b.Len()
	fmt.Fprintf(&b, "4 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", len(stream), stream)

	for i := 0; i < pages; i++ {
		offsets[5+i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 3 0 R >> >> >>\nendobj\n", 5+i)
	}

	xrefOffset := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", total+1)
	b.WriteString("0000000000 65535 f \n")
	for i := 1; i <= total; i++ {
		fmt.Fprintf(&b, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", total+1, xrefOffset)

	return []byte(b.String())
}

// fakeRunner stands in for soffice and pdftoppm. It writes the files the
// real tools would produce.
type fakeRunner struct {
	mu         sync.Mutex
	calls      [][]string
	pageWidth  int
	pageHeight int
	pdfPages   int
	failBin    string
	hang       bool
}

func (r *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	r.calls = append(r.calls, append([]string{name}, args...))
	r.mu.Unlock()

	if r.hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if name == r.failBin {
		return []byte("source file could not be loaded"), errors.New("exit status 1")
	}

	switch name {
	case "pdftoppm":
		prefix := args[len(args)-1]
		w, h := r.pageWidth, r.pageHeight
		if w == 0 {
			w, h = 120, 160
		}
		return nil, writePNG(prefix+".png", w, h)
	case "soffice":
		var outdir string
		for i, a := range args {
			if a == "--outdir" {
				outdir = args[i+1]
			}
		}
		src := args[len(args)-1]
		base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
		pages := r.pdfPages
		if pages == 0 {
			pages = 1
		}
		return nil, os.WriteFile(filepath.Join(outdir, base+".pdf"), buildPagedPDF(pages), 0o600)
	}
	return nil, fmt.Errorf("unexpected binary %q", name)
}

func (r *fakeRunner) called(bin string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.calls {
		if c[0] == bin {
			return c
		}
	}
	return nil
}

func writePNG(path string, w, h int) error {
	img := image.NewGray(image.Rect(0, 0, w, h))
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

// widthEngine reports one region naming the image width, so tests can tell
// which upload an image came from.
type widthEngine struct {
	delay time.Duration
	err   error
}

func (e *widthEngine) Name() string { return "width" }

func (e *widthEngine) Recognize(ctx context.Context, img models.NormalizedImage) ([]models.TextRegion, error) {
	if e.err != nil {
		return nil, e.err
	}
	if e.delay > 0 {
		time.Sleep(e.delay)
	}
	f, err := os.Open(img.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return nil, err
	}
	return []models.TextRegion{{
		Polygon:    []models.Point{{0, 0}, {10, 0}, {10, 5}, {0, 5}},
		Text:       fmt.Sprintf("width-%d", cfg.Width),
		Confidence: 0.9,
	}}, nil
}

// stubEngine returns canned regions.
type stubEngine struct {
	regions []models.TextRegion
	err     error
}

func (e *stubEngine) Name() string { return "stub" }

func (e *stubEngine) Recognize(context.Context, models.NormalizedImage) ([]models.TextRegion, error) {
	return e.regions, e.err
}

// stubLLM answers every prompt through reply.
type stubLLM struct {
	mu      sync.Mutex
	prompts []string
	reply   func(prompt string) (string, error)
}

func (s *stubLLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, userPrompt)
	s.mu.Unlock()
	return s.reply(userPrompt)
}

func (s *stubLLM) lastPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.prompts) == 0 {
		return ""
	}
	return s.prompts[len(s.prompts)-1]
}

func fixedReply(label string) func(string) (string, error) {
	return func(string) (string, error) { return label, nil }
}

func testPipelineConfig(t *testing.T) *PipelineConfig {
	t.Helper()
	cfg := &PipelineConfig{ScratchDir: t.TempDir()}
	cfg.defaults()
	return cfg
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read %s: %v", dir, err)
	}
	if len(entries) != 0 {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Fatalf("scratch root not empty: %v", names)
	}
}
