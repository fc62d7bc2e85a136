package ocr

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/markdave123-py/Scanlens/internal/core"
	"github.com/markdave123-py/Scanlens/internal/models"
)

var _ core.OCREngine = (*TesseractEngine)(nil)

// TesseractEngine recognizes text lines with Tesseract. A gosseract client
// is not safe for concurrent use, so the engine hands out clients from a
// fixed pool; each Recognize call owns one client for its duration.
type TesseractEngine struct {
	clients chan *gosseract.Client
	size    int
	mode    gosseract.PageSegMode
}

// osdInstalled reports whether Tesseract can load its orientation data.
var osdInstalled = findOSDData

// tessdataGlobs are the usual distribution locations of osd.traineddata.
var tessdataGlobs = []string{
	"/usr/share/tesseract-ocr/*/tessdata/osd.traineddata",
	"/usr/share/tessdata/osd.traineddata",
	"/usr/local/share/tessdata/osd.traineddata",
	"/opt/homebrew/share/tessdata/osd.traineddata",
}

func findOSDData() bool {
	if prefix := os.Getenv("TESSDATA_PREFIX"); prefix != "" {
		if _, err := os.Stat(filepath.Join(prefix, "osd.traineddata")); err == nil {
			return true
		}
	}
	for _, pattern := range tessdataGlobs {
		if matches, _ := filepath.Glob(pattern); len(matches) > 0 {
			return true
		}
	}
	out, err := exec.Command("tesseract", "--list-langs").CombinedOutput()
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(out), "\n") {
		if strings.TrimSpace(line) == "osd" {
			return true
		}
	}
	return false
}

// usesOSD reports whether mode runs orientation and script detection.
func usesOSD(mode gosseract.PageSegMode) bool {
	return mode == gosseract.PSM_AUTO_OSD || mode == gosseract.PSM_SPARSE_TEXT_OSD
}

// NewTesseractEngine loads poolSize clients for the given languages
// (e.g. "eng", "eng+fra") in page segmentation mode psm, numbered as in
// tesseract --psm. Modes with orientation detection fall back to
// PSM_AUTO when osd.traineddata is not installed.
func NewTesseractEngine(language string, psm int, poolSize int) (*TesseractEngine, error) {
	mode := gosseract.PageSegMode(psm)
	if mode < gosseract.PSM_AUTO_OSD || mode > gosseract.PSM_RAW_LINE {
		return nil, fmt.Errorf("page segmentation mode %d does not produce text", psm)
	}
	if usesOSD(mode) && !osdInstalled() {
		log.Printf("OCR: WARN osd.traineddata not found, page segmentation mode %d falls back to %d; rotated pages will not be straightened", mode, gosseract.PSM_AUTO)
		mode = gosseract.PSM_AUTO
	}
	if poolSize < 1 {
		poolSize = 1
	}
	langs := strings.Split(language, "+")

	e := &TesseractEngine{clients: make(chan *gosseract.Client, poolSize), mode: mode}
	for i := 0; i < poolSize; i++ {
		c := gosseract.NewClient()
		if err := c.SetLanguage(langs...); err != nil {
			c.Close()
			e.Close()
			return nil, fmt.Errorf("set language %q: %w", language, err)
		}
		if err := c.SetPageSegMode(mode); err != nil {
			c.Close()
			e.Close()
			return nil, fmt.Errorf("set page segmentation: %w", err)
		}
		e.clients <- c
		e.size++
	}

	log.Printf("OCR: tesseract %s ready with %d client(s), language %s, psm %d", gosseract.Version(), poolSize, language, mode)
	return e, nil
}

func (e *TesseractEngine) Name() string { return "tesseract" }

// PageSegMode is the mode the clients actually run in.
func (e *TesseractEngine) PageSegMode() gosseract.PageSegMode { return e.mode }

// Recognize returns one region per text line, in reading order. Polygons are
// the line boxes as clockwise quadrilaterals starting top-left.
func (e *TesseractEngine) Recognize(ctx context.Context, img models.NormalizedImage) ([]models.TextRegion, error) {
	var c *gosseract.Client
	select {
	case c = <-e.clients:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { e.clients <- c }()

	if err := c.SetImage(img.Path); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("recognize lines: %w", err)
	}

	regions := make([]models.TextRegion, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		x0, y0 := float64(b.Box.Min.X), float64(b.Box.Min.Y)
		x1, y1 := float64(b.Box.Max.X), float64(b.Box.Max.Y)
		regions = append(regions, models.TextRegion{
			Polygon:    []models.Point{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}},
			Text:       text,
			Confidence: b.Confidence / 100.0,
		})
	}
	return regions, nil
}

// Close releases every pooled client, waiting for in-flight calls to hand
// theirs back.
func (e *TesseractEngine) Close() error {
	for ; e.size > 0; e.size-- {
		c := <-e.clients
		c.Close()
	}
	return nil
}
