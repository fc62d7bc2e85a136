package ingestion_engine

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"time"

	"golang.org/x/sync/errgroup"
)

// CommandRunner executes an external tool and returns its combined output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec; the context kills overdue processes.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

// ToolProbe describes an external binary the pipeline depends on.
// VersionArgs, when set, are run once to prove the binary actually starts.
type ToolProbe struct {
	Name        string
	Bin         string
	VersionArgs []string
}

// Probes lists the external tools configured for cfg.
func (c *PipelineConfig) Probes() []ToolProbe {
	return []ToolProbe{
		{Name: "converter", Bin: c.ConverterBin, VersionArgs: []string{"--headless", "--version"}},
		{Name: "renderer", Bin: c.RendererBin},
	}
}

// ProbeTools checks every tool concurrently and fails on the first one missing.
func ProbeTools(ctx context.Context, runner CommandRunner, probes []ToolProbe) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range probes {
		g.Go(func() error {
			path, err := exec.LookPath(p.Bin)
			if err != nil {
				return fmt.Errorf("%s %q not found: %w", p.Name, p.Bin, err)
			}
			if p.VersionArgs == nil {
				log.Printf("Probe: %s available at %s", p.Name, path)
				return nil
			}
			vctx, cancel := context.WithTimeout(gctx, 30*time.Second)
			defer cancel()
			out, err := runner.Run(vctx, path, p.VersionArgs...)
			if err != nil {
				return fmt.Errorf("%s %q does not start: %w: %s", p.Name, p.Bin, err, trimOutput(out))
			}
			log.Printf("Probe: %s available at %s (%s)", p.Name, path, trimOutput(out))
			return nil
		})
	}
	return g.Wait()
}

// trimOutput keeps subprocess output short enough for logs and errors.
func trimOutput(out []byte) string {
	const max = 300
	s := string(out)
	if len(s) > max {
		s = s[:max] + "..."
	}
	return s
}
