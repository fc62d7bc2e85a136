package ingestion_engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/markdave123-py/Scanlens/internal/core"
)

func newTestClassifier(t *testing.T, llm core.LLMProvider, mutate func(*PipelineConfig)) *Classifier {
	t.Helper()
	cfg := testPipelineConfig(t)
	if mutate != nil {
		mutate(cfg)
	}
	return NewClassifier(llm, cfg)
}

func TestClassifyTrimsReply(t *testing.T) {
	llm := &stubLLM{reply: fixedReply("  Facture\n")}
	c := newTestClassifier(t, llm, nil)

	got, err := c.Classify(context.Background(), "FACTURE N° 42\nTotal 120 EUR")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got != "Facture" {
		t.Errorf("label = %q, want Facture", got)
	}
	if !strings.Contains(llm.lastPrompt(), "FACTURE N° 42\nTotal 120 EUR") {
		t.Error("prompt does not embed the extracted text verbatim")
	}
}

func TestClassifyIsDeterministicForSameText(t *testing.T) {
	llm := &stubLLM{reply: fixedReply("Contrat")}
	c := newTestClassifier(t, llm, nil)

	first, _ := c.Classify(context.Background(), "same text")
	second, _ := c.Classify(context.Background(), "same text")
	if first != second {
		t.Errorf("labels differ: %q vs %q", first, second)
	}
	if llm.prompts[0] != llm.prompts[1] {
		t.Error("prompts differ for identical input")
	}
}

func TestClassifyEmptyText(t *testing.T) {
	llm := &stubLLM{reply: fixedReply("Inconnu")}
	got, err := newTestClassifier(t, llm, nil).Classify(context.Background(), "")
	if err != nil || got != "Inconnu" {
		t.Errorf("Classify(\"\") = %q, %v", got, err)
	}
}

func TestClassifyUnavailable(t *testing.T) {
	tests := []struct {
		name  string
		reply func(string) (string, error)
		retry bool
	}{
		{"provider error", func(string) (string, error) { return "", errors.New("connection refused") }, false},
		{"deadline", func(string) (string, error) { return "", context.DeadlineExceeded }, true},
		{"blank reply", fixedReply("   "), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClassifier(t, &stubLLM{reply: tt.reply}, nil)
			_, err := c.Classify(context.Background(), "text")

			var pe *core.PipelineError
			if !errors.As(err, &pe) {
				t.Fatalf("err = %v, want *core.PipelineError", err)
			}
			if pe.Kind != core.KindClassificationUnavailable || pe.Stage != core.StageClassify {
				t.Errorf("got %s/%s", pe.Kind, pe.Stage)
			}
			if pe.Retryable != tt.retry {
				t.Errorf("Retryable = %t, want %t", pe.Retryable, tt.retry)
			}
		})
	}
}

func TestClassifyTimeout(t *testing.T) {
	slow := &stubLLM{}
	c := newTestClassifier(t, slow, func(cfg *PipelineConfig) { cfg.ClassifyTimeout = 20 * time.Millisecond })
	// The stub cannot see the context, so simulate a provider honouring it.
	slow.reply = func(string) (string, error) {
		time.Sleep(40 * time.Millisecond)
		return "", context.DeadlineExceeded
	}

	_, err := c.Classify(context.Background(), "text")
	var pe *core.PipelineError
	if !errors.As(err, &pe) || !pe.Retryable {
		t.Fatalf("err = %v, want retryable classification error", err)
	}
}

func TestClassifyLabelSet(t *testing.T) {
	labels := []string{"Facture", "Contrat", "Lettre"}
	tests := []struct {
		reply string
		want  string
	}{
		{"facture.", "Facture"},
		{"CONTRAT", "Contrat"},
		{"Rapport", Unclassified},
	}
	for _, tt := range tests {
		llm := &stubLLM{reply: fixedReply(tt.reply)}
		c := newTestClassifier(t, llm, func(cfg *PipelineConfig) { cfg.ClassifyLabels = labels })
		got, err := c.Classify(context.Background(), "text")
		if err != nil {
			t.Fatalf("Classify: %v", err)
		}
		if got != tt.want {
			t.Errorf("reply %q -> %q, want %q", tt.reply, got, tt.want)
		}
		if !strings.Contains(llm.lastPrompt(), "exactly one of: Facture, Contrat, Lettre") {
			t.Error("prompt does not list the allowed labels")
		}
	}
}

func TestClassifyTruncatesLongText(t *testing.T) {
	llm := &stubLLM{reply: fixedReply("Rapport")}
	c := newTestClassifier(t, llm, func(cfg *PipelineConfig) { cfg.ClassifyMaxChars = 10 })

	if _, err := c.Classify(context.Background(), "line one\nline two\nline three"); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(llm.lastPrompt(), "line two") {
		t.Error("prompt was not truncated")
	}
}

func TestTruncateText(t *testing.T) {
	tests := []struct {
		text      string
		max       int
		want      string
		truncated bool
	}{
		{"short", 10, "short", false},
		{"abc\ndef\nghi", 9, "abc\ndef", true},
		{"abcdefghij", 4, "abcd", true},
		{"éééé", 2, "éé", true},
		{"anything", 0, "anything", false},
	}
	for _, tt := range tests {
		got, truncated := truncateText(tt.text, tt.max)
		if got != tt.want || truncated != tt.truncated {
			t.Errorf("truncateText(%q, %d) = %q, %t; want %q, %t", tt.text, tt.max, got, truncated, tt.want, tt.truncated)
		}
	}
}
