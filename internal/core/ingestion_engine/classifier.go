package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/markdave123-py/Scanlens/internal/core"
)

// Unclassified is returned when a closed label set is configured and the
// model answers outside of it.
const Unclassified = "Unclassified"

const classificationPrompt = `
You are a document classification expert.
Given the following document content, determine its type.
%s

Document:
"""
%s
"""

Type:`

const freeTextInstruction = "Respond with a single word like: Facture, Contrat, Rapport, Lettre, etc."

// Classifier labels extracted text through a language model.
type Classifier struct {
	llm      core.LLMProvider
	timeout  time.Duration
	maxChars int
	labels   []string
}

func NewClassifier(llm core.LLMProvider, cfg *PipelineConfig) *Classifier {
	return &Classifier{
		llm:      llm,
		timeout:  cfg.ClassifyTimeout,
		maxChars: cfg.ClassifyMaxChars,
		labels:   cfg.ClassifyLabels,
	}
}

// BuildPrompt embeds text verbatim in the classification prompt.
func BuildPrompt(text string, labels []string) string {
	instruction := freeTextInstruction
	if len(labels) > 0 {
		instruction = "Respond with exactly one of: " + strings.Join(labels, ", ") + "."
	}
	return fmt.Sprintf(classificationPrompt, instruction, text)
}

// Classify returns the trimmed model reply as the document type.
func (c *Classifier) Classify(ctx context.Context, text string) (string, error) {
	text, truncated := truncateText(text, c.maxChars)
	if truncated {
		log.Printf("Classifier: input truncated to %d characters", c.maxChars)
	}

	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reply, err := c.llm.Generate(cctx, "", BuildPrompt(text, c.labels))
	if err != nil {
		pe := core.NewPipelineError(core.KindClassificationUnavailable, core.StageClassify, err)
		pe.Retryable = isTransient(cctx, err)
		return "", pe
	}

	label := strings.TrimSpace(reply)
	if label == "" {
		return "", core.NewPipelineError(core.KindClassificationUnavailable, core.StageClassify, errors.New("model returned an empty reply"))
	}
	if len(c.labels) > 0 {
		return matchLabel(label, c.labels), nil
	}
	return label, nil
}

// matchLabel maps the reply onto the closed set, ignoring case and trailing
// punctuation.
func matchLabel(reply string, labels []string) string {
	cleaned := strings.TrimRight(reply, ".!:;,\"' ")
	for _, l := range labels {
		if strings.EqualFold(cleaned, l) {
			return l
		}
	}
	return Unclassified
}

// truncateText cuts text to at most max runes, preferring the last line
// break inside the limit so no region is split.
func truncateText(text string, max int) (string, bool) {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text, false
	}
	runes := []rune(text)
	cut := string(runes[:max])
	if i := strings.LastIndexByte(cut, '\n'); i > 0 {
		cut = cut[:i]
	}
	return cut, true
}

func isTransient(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
