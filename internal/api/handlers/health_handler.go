package handlers

import (
	"context"
	"net/http"
	"os/exec"
	"time"

	"github.com/markdave123-py/Scanlens/internal/core"
)

type HealthHandler struct {
	db    core.DbClient
	tools map[string]string
	// lookPath is exec.LookPath outside tests.
	lookPath func(string) (string, error)
}

// NewHealthHandler reports on db and on each named external binary.
func NewHealthHandler(db core.DbClient, tools map[string]string) *HealthHandler {
	return &HealthHandler{db: db, tools: tools, lookPath: exec.LookPath}
}

type healthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	report := healthReport{Status: "ok", Checks: map[string]string{}}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		report.Status = "degraded"
		report.Checks["database"] = err.Error()
	} else {
		report.Checks["database"] = "ok"
	}

	for name, bin := range h.tools {
		if _, err := h.lookPath(bin); err != nil {
			report.Status = "degraded"
			report.Checks[name] = bin + " not found"
			continue
		}
		report.Checks[name] = "ok"
	}

	status := http.StatusOK
	if report.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, report, status)
}
