package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/sourceplane/pkgforge/internal/lock"
	"github.com/sourceplane/pkgforge/internal/model"
	"github.com/sourceplane/pkgforge/internal/recipe"
	"github.com/sourceplane/pkgforge/internal/solver"
	"github.com/sourceplane/pkgforge/internal/variant"
)

// Resolver drives the external solver for one environment at a time,
// guarding the shared package caches with filesystem locks.
type Resolver struct {
	Solver      solver.Solver
	Locks       *lock.Manager
	Locking     bool
	CacheDirs   []string
	OutputDir   string
	Channels    []string
	Subdirs     map[string]string // environment name -> platform subdir
	Timeout     time.Duration
	Retries     int
	LockTimeout time.Duration
	Log         *slog.Logger
}

// Resolution is the outcome of resolving one environment: the final
// spec list, the concrete records behind it, and a diagnostic when the
// caller tolerated unsatisfiability.
type Resolution struct {
	Specs   []string
	Records []model.ResolvedRecord
	Unsat   string
}

// EnvDependencies resolves one environment's requirements. The
// environment's specs are normalized (x.x literals take the variant's
// concrete version), categorized, unioned with the extra injected
// specs, and handed to the solver inside an isolated scratch directory
// so concurrent resolutions never share solver state. On an
// unsatisfiable result, permitUnsat selects between capturing the
// diagnostic and propagating the failure.
func (r *Resolver) EnvDependencies(
	ctx context.Context,
	tmpl recipe.Template,
	env string,
	section *model.RequirementsSection,
	v variant.Variant,
	exclude *regexp.Regexp,
	extraSpecs []string,
	permitUnsat bool,
) (*Resolution, error) {
	specs := append([]string(nil), section.Get(env)...)
	if env == model.EnvBuild || env == model.EnvHost {
		var err error
		if specs, err = substituteXX(specs, v); err != nil {
			return nil, err
		}
	}

	outputNames := make([]string, 0, len(tmpl.Outputs()))
	for _, out := range tmpl.Outputs() {
		outputNames = append(outputNames, out.Name)
	}
	categorized := Categorize(specs, exclude, v, outputNames, tmpl.Version())
	toSolve := model.UnionSpecs(categorized.Dependencies, extraSpecs)

	records, unsat, err := r.solve(ctx, env, toSolve, permitUnsat)
	if err != nil {
		return nil, err
	}

	resolved := make([]string, 0, len(records)+len(categorized.Subpackages)+len(categorized.PassThrough))
	for _, rec := range records {
		resolved = append(resolved, rec.Requirement())
	}
	resolved = append(resolved, categorized.Subpackages...)
	resolved = append(resolved, categorized.PassThrough...)
	if len(resolved) == 0 {
		resolved = append(resolved, section.Get(env)...)
	}
	return &Resolution{Specs: resolved, Records: records, Unsat: unsat}, nil
}

func (r *Resolver) solve(ctx context.Context, env string, specs []string, permitUnsat bool) ([]model.ResolvedRecord, string, error) {
	if len(specs) == 0 {
		return nil, "", nil
	}
	scratch, err := os.MkdirTemp("", "pkgforge-solve-")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create solver scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	release, err := r.acquireOperationLocks()
	if err != nil {
		return nil, "", err
	}
	defer release()

	records, err := r.Solver.Solve(ctx, solver.Request{
		Specs:      specs,
		Env:        env,
		Subdir:     r.Subdirs[env],
		ScratchDir: scratch,
		CacheDirs:  r.CacheDirs,
		OutputDir:  r.OutputDir,
		Channels:   r.Channels,
		Timeout:    r.Timeout,
		Retries:    r.Retries,
	})
	if err != nil {
		var unsat *solver.Unsatisfiable
		if errors.As(err, &unsat) {
			if permitUnsat {
				if r.Log != nil {
					r.Log.Warn("environment unsatisfiable, continuing without pins",
						"env", env, "diagnostic", unsat.Diagnostic())
				}
				return nil, unsat.Diagnostic(), nil
			}
			return nil, "", err
		}
		return nil, "", fmt.Errorf("solver failed for %s environment: %w", env, err)
	}
	return records, "", nil
}

// acquireOperationLocks takes the all-or-nothing lock set over the
// shared package caches and output directory.
func (r *Resolver) acquireOperationLocks() (func(), error) {
	if !r.Locking || r.Locks == nil {
		return func() {}, nil
	}
	targets := append([]string(nil), r.CacheDirs...)
	if r.OutputDir != "" {
		targets = append(targets, r.OutputDir)
	}
	targets = append(targets, "pkgforge-operation")

	handles := make([]*lock.Handle, 0, len(targets))
	for _, target := range targets {
		handle, err := r.Locks.Lock(target)
		if err != nil {
			return nil, err
		}
		handles = append(handles, handle)
	}
	timeout := r.LockTimeout
	if timeout == 0 {
		timeout = 15 * time.Minute
	}
	return lock.AcquireAll(handles, timeout)
}

// substituteXX replaces "name x.x" literals with the variant's concrete
// version so the solver never sees the sentinel.
func substituteXX(specs []string, v variant.Variant) ([]string, error) {
	normalized := make([]string, 0, len(specs))
	for _, spec := range specs {
		if !strings.Contains(spec, " x.x") {
			normalized = append(normalized, spec)
			continue
		}
		name := model.SpecName(spec)
		value := v.StringValue(name)
		if value == "" {
			return nil, fmt.Errorf("spec %q uses x.x but the variant carries no %s version", spec, name)
		}
		normalized = append(normalized, model.EnsureValidSpec(name+" "+value))
	}
	return normalized, nil
}
