package ingestion_engine

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Arena is a scratch directory owned by exactly one request. Everything the
// normalizer writes goes inside it, so two requests never share a filename.
type Arena struct {
	dir string
}

// NewArena creates <root>/<id>. The id must be a single path element.
func NewArena(root, id string) (*Arena, error) {
	if id == "" || id != filepath.Base(id) || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return nil, fmt.Errorf("invalid arena id %q", id)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve scratch root: %w", err)
	}
	if err := os.MkdirAll(absRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch root: %w", err)
	}
	dir := filepath.Join(absRoot, id)
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create arena: %w", err)
	}
	return &Arena{dir: dir}, nil
}

func (a *Arena) Dir() string { return a.dir }

// Path returns the location of name inside the arena.
func (a *Arena) Path(name string) string {
	return filepath.Join(a.dir, filepath.Base(name))
}

// WriteFile stores data under name and returns its full path.
func (a *Arena) WriteFile(name string, data []byte) (string, error) {
	p := a.Path(name)
	if err := os.WriteFile(p, data, 0o600); err != nil {
		return "", fmt.Errorf("write scratch file: %w", err)
	}
	return p, nil
}

// Release deletes the arena and everything in it.
func (a *Arena) Release() error {
	return os.RemoveAll(a.dir)
}

// SweepScratch removes arenas under root older than maxAge, left behind by a
// crashed process. It returns how many were removed.
func SweepScratch(root string, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read scratch root: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(root, e.Name())); err != nil {
			log.Printf("Scratch: could not remove stale arena %s: %v", e.Name(), err)
			continue
		}
		removed++
	}
	return removed, nil
}
