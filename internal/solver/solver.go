// Package solver defines the interface to the external
// dependency-resolution collaborator. The solver itself is a black box:
// it takes a spec set and either returns concrete package records or an
// unsatisfiability signal.
package solver

import (
	"context"
	"strings"
	"time"

	"github.com/sourceplane/pkgforge/internal/model"
)

// Request carries one solve invocation: the spec set, the target
// environment, the variant-scoped subdir, cache and output directories,
// and retry/timeout bounds.
type Request struct {
	Specs      []string
	Env        string
	Subdir     string
	ScratchDir string
	CacheDirs  []string
	OutputDir  string
	Channels   []string
	Timeout    time.Duration
	Retries    int
}

// Solver resolves a spec set into concrete package records.
type Solver interface {
	Solve(ctx context.Context, req Request) ([]model.ResolvedRecord, error)
}

// Unsatisfiable signals that the solver cannot satisfy a spec set. It
// carries either the offending package names or a free-text message.
type Unsatisfiable struct {
	Packages []string
	Message  string
}

func (e *Unsatisfiable) Error() string {
	return "unsatisfiable: " + e.Diagnostic()
}

// Diagnostic renders the human-readable form surfaced on tolerated
// unsatisfiable jobs.
func (e *Unsatisfiable) Diagnostic() string {
	if len(e.Packages) > 0 {
		return strings.Join(e.Packages, ", ")
	}
	return e.Message
}
