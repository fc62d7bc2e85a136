package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"code.sajari.com/docconv"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/markdave123-py/Scanlens/internal/core"
	"github.com/markdave123-py/Scanlens/internal/models"
)

type documentFormat int

const (
	formatImage documentFormat = iota
	formatPDF
	formatWord
)

func (f documentFormat) String() string {
	switch f {
	case formatPDF:
		return "pdf"
	case formatWord:
		return "word"
	default:
		return "image"
	}
}

// wordMimeTypes are the formats the office converter turns into PDF.
var wordMimeTypes = map[string]bool{
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.oasis.opendocument.text":                                 true,
	"application/rtf": true,
}

// detectFormat routes a filename to a normalizer branch. Unknown extensions
// fall through to the image branch and may fail when decoded.
func detectFormat(filename string) (documentFormat, string) {
	mime := docconv.MimeTypeByExtension(strings.ToLower(filename))
	switch {
	case mime == "application/pdf":
		return formatPDF, mime
	case wordMimeTypes[mime]:
		return formatWord, mime
	default:
		return formatImage, mime
	}
}

// FormatNormalizer turns an upload into a single raster page.
type FormatNormalizer struct {
	cfg       *PipelineConfig
	runner    CommandRunner
	pageCount func(rs io.ReadSeeker) (int, error)
}

var disablePdfcpuConfig sync.Once

func NewFormatNormalizer(cfg *PipelineConfig, runner CommandRunner) *FormatNormalizer {
	if runner == nil {
		runner = ExecRunner{}
	}
	disablePdfcpuConfig.Do(api.DisableConfigDir)
	return &FormatNormalizer{cfg: cfg, runner: runner, pageCount: pdfPageCount}
}

// pdfPageCount reads and validates the PDF with pdfcpu.
func pdfPageCount(rs io.ReadSeeker) (int, error) {
	return api.PageCount(rs, model.NewDefaultConfiguration())
}

// countPages turns a parser panic into an error. pdfcpu panics on some
// truncated cross-reference tables.
func countPages(count func(io.ReadSeeker) (int, error), rs io.ReadSeeker) (pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Normalizer: pdf parser panic recovered: %v", r)
			err = fmt.Errorf("pdf parser panic: %v", r)
		}
	}()
	return count(rs)
}

// Normalize writes doc into the arena and returns the page image to OCR.
func (n *FormatNormalizer) Normalize(ctx context.Context, arena *Arena, doc models.UploadedDocument) (models.NormalizedImage, error) {
	if len(doc.Content) == 0 {
		return models.NormalizedImage{}, normalizeErr(core.KindUnsupportedFormat, errors.New("empty upload"))
	}

	format, mime := detectFormat(doc.Filename)
	log.Printf("Normalizer: %q detected as %s (%s)", doc.Filename, format, mime)

	switch format {
	case formatPDF:
		pdfPath, err := arena.WriteFile("source.pdf", doc.Content)
		if err != nil {
			return models.NormalizedImage{}, err
		}
		return n.fromPDF(ctx, arena, pdfPath)
	case formatWord:
		return n.fromWord(ctx, arena, doc)
	default:
		return n.fromImage(arena, doc)
	}
}

// fromPDF validates the document and rasterises the configured page.
func (n *FormatNormalizer) fromPDF(ctx context.Context, arena *Arena, pdfPath string) (models.NormalizedImage, error) {
	f, err := os.Open(pdfPath)
	if err != nil {
		return models.NormalizedImage{}, fmt.Errorf("open pdf: %w", err)
	}
	pages, err := countPages(n.pageCount, f)
	f.Close()
	if err != nil {
		return models.NormalizedImage{}, normalizeErr(core.KindUnsupportedFormat, fmt.Errorf("unreadable pdf: %w", err))
	}
	if n.cfg.PageIndex >= pages {
		return models.NormalizedImage{}, normalizeErr(core.KindUnsupportedFormat,
			fmt.Errorf("page index %d out of range, document has %d page(s)", n.cfg.PageIndex, pages))
	}

	page := strconv.Itoa(n.cfg.PageIndex + 1)
	prefix := arena.Path("page")
	args := []string{
		"-f", page, "-l", page,
		"-r", strconv.Itoa(n.cfg.RenderDPI),
		"-png", "-singlefile",
		pdfPath, prefix,
	}

	rctx, cancel := context.WithTimeout(ctx, n.cfg.ConvertTimeout)
	defer cancel()
	if out, err := n.runner.Run(rctx, n.cfg.RendererBin, args...); err != nil {
		return models.NormalizedImage{}, subprocessErr(rctx, "render pdf page", err, out)
	}

	imgPath := prefix + ".png"
	if _, err := os.Stat(imgPath); err != nil {
		return models.NormalizedImage{}, normalizeErr(core.KindConversionFailed, fmt.Errorf("renderer produced no image: %w", err))
	}
	return loadImage(imgPath)
}

// fromWord converts the document to PDF with the headless office suite, then
// renders it like any other PDF.
func (n *FormatNormalizer) fromWord(ctx context.Context, arena *Arena, doc models.UploadedDocument) (models.NormalizedImage, error) {
	ext := strings.ToLower(filepath.Ext(doc.Filename))
	src, err := arena.WriteFile("source"+ext, doc.Content)
	if err != nil {
		return models.NormalizedImage{}, err
	}

	// A private profile per arena: concurrent soffice runs sharing one
	// profile block each other.
	profile := "file://" + filepath.ToSlash(arena.Path("lo-profile"))
	args := []string{
		"-env:UserInstallation=" + profile,
		"--headless",
		"--convert-to", "pdf",
		"--outdir", arena.Dir(),
		src,
	}

	cctx, cancel := context.WithTimeout(ctx, n.cfg.ConvertTimeout)
	defer cancel()
	if out, err := n.runner.Run(cctx, n.cfg.ConverterBin, args...); err != nil {
		return models.NormalizedImage{}, subprocessErr(cctx, "convert to pdf", err, out)
	}

	pdfPath := strings.TrimSuffix(src, ext) + ".pdf"
	if _, err := os.Stat(pdfPath); err != nil {
		return models.NormalizedImage{}, normalizeErr(core.KindConversionFailed, fmt.Errorf("converter produced no pdf: %w", err))
	}
	return n.fromPDF(ctx, arena, pdfPath)
}

// fromImage stores the bytes verbatim under their original extension.
func (n *FormatNormalizer) fromImage(arena *Arena, doc models.UploadedDocument) (models.NormalizedImage, error) {
	ext := strings.ToLower(filepath.Ext(doc.Filename))
	if ext == "" {
		ext = ".img"
	}
	p, err := arena.WriteFile("source"+ext, doc.Content)
	if err != nil {
		return models.NormalizedImage{}, err
	}
	return loadImage(p)
}

// loadImage reads the image header for its dimensions.
func loadImage(path string) (models.NormalizedImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.NormalizedImage{}, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return models.NormalizedImage{}, normalizeErr(core.KindUnsupportedFormat, fmt.Errorf("not a decodable image: %w", err))
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return models.NormalizedImage{}, normalizeErr(core.KindUnsupportedFormat,
			fmt.Errorf("image has invalid dimensions %dx%d", cfg.Width, cfg.Height))
	}
	return models.NormalizedImage{Path: path, Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

func normalizeErr(kind core.ErrorKind, err error) *core.PipelineError {
	return core.NewPipelineError(kind, core.StageNormalize, err)
}

// subprocessErr maps a failed converter/renderer run to ConversionFailed.
// Timeouts are retryable, non-zero exits are not.
func subprocessErr(ctx context.Context, what string, err error, out []byte) *core.PipelineError {
	pe := normalizeErr(core.KindConversionFailed, fmt.Errorf("%s: %w: %s", what, err, trimOutput(out)))
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		pe.Err = fmt.Errorf("%s: timed out: %w", what, ctx.Err())
		pe.Retryable = true
	}
	return pe
}
