// Package finalize pins a rendered build job down to exact, solver-backed
// dependency versions: upstream run exports are applied, the build and
// host environments are fully resolved, and runtime specs are rewritten
// against the build-time versions.
package finalize

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/sourceplane/pkgforge/internal/exports"
	"github.com/sourceplane/pkgforge/internal/model"
	"github.com/sourceplane/pkgforge/internal/recipe"
	"github.com/sourceplane/pkgforge/internal/resolve"
	"github.com/sourceplane/pkgforge/internal/variant"
)

// Finalizer turns a variant-bound build job into its final form.
type Finalizer struct {
	Resolver   *resolve.Resolver
	Propagator *exports.Propagator
	// Cross marks a cross-compilation layout where the build and host
	// platforms differ and the host environment is resolved separately.
	Cross bool
	// BuildIsHost marks the legacy layout where a single prefix serves
	// as both build and host environment.
	BuildIsHost bool
	Log         *slog.Logger
}

// Finalize resolves the job's environments and rewrites its
// requirements in place. Siblings are the other jobs expanded from the
// same multi-output template; their pins feed the host resolution so
// co-installed outputs stay consistent. When permitUnsat is true an
// unsatisfiable environment leaves the job non-final with its
// diagnostics recorded instead of failing the render.
func (f *Finalizer) Finalize(
	ctx context.Context,
	job *model.BuildJob,
	tmpl recipe.Template,
	siblings []*model.BuildJob,
	permitUnsat bool,
) error {
	outputNames := make([]string, 0, len(tmpl.Outputs()))
	for _, out := range tmpl.Outputs() {
		outputNames = append(outputNames, out.Name)
	}

	// Variables whose versions are deliberately ignored are excluded
	// from resolution, unless a pin policy explicitly overrides the
	// ignore. Sub-output names are always excluded: they do not exist
	// in any channel yet.
	pinned := job.Variant.PinRunAsBuild()
	var excludeNames []string
	for _, name := range job.Variant.IgnoreVersions() {
		if _, overridden := pinned[name]; !overridden {
			excludeNames = append(excludeNames, name)
		}
	}
	excludeNames = append(excludeNames, outputNames...)
	exclude, err := resolve.ExclusionPattern(excludeNames)
	if err != nil {
		return err
	}

	insertVariantVersions(job.Requirements, job.Variant, model.EnvBuild)
	insertVariantVersions(job.Requirements, job.Variant, model.EnvHost)

	extraSpecs := siblingSpecs(job, siblings)

	buildUnsat, hostUnsat, err := f.addUpstreamPins(ctx, job, tmpl, exclude, extraSpecs, permitUnsat)
	if err != nil {
		return fmt.Errorf("failed to apply upstream pins for %s: %w", job.Dist(), err)
	}

	// Final pass: resolve both environments so every non-excluded spec
	// ends up exact.
	buildRes, err := f.Resolver.EnvDependencies(ctx, tmpl, model.EnvBuild, job.Requirements, job.Variant, exclude, nil, permitUnsat)
	if err != nil {
		return err
	}
	job.Requirements.Build = buildRes.Specs
	if buildRes.Unsat != "" {
		buildUnsat = buildRes.Unsat
	}

	hostRes, err := f.Resolver.EnvDependencies(ctx, tmpl, model.EnvHost, job.Requirements, job.Variant, exclude, extraSpecs, permitUnsat)
	if err != nil {
		return err
	}
	if len(job.Requirements.Host) > 0 {
		job.Requirements.Host = hostRes.Specs
	}
	if hostRes.Unsat != "" {
		hostUnsat = hostRes.Unsat
	}

	// Runtime and test specs pin against the host environment when one
	// exists, otherwise against the build environment.
	pinningSpecs := job.Requirements.Host
	if len(pinningSpecs) == 0 {
		pinningSpecs = job.Requirements.Build
	}
	versions := buildVersionTable(pinningSpecs)

	var pinErrs *multierror.Error
	job.Requirements.Run = pinSpecs(job.Requirements.Run, job.Variant, versions, &pinErrs)
	job.TestRequires = pinSpecs(job.TestRequires, job.Variant, versions, &pinErrs)
	if err := pinErrs.ErrorOrNil(); err != nil {
		return fmt.Errorf("failed to pin runtime dependencies for %s: %w", job.Dist(), err)
	}

	appendPythonToRun(job, versions)
	resolveSourcePaths(job)

	for _, env := range []string{model.EnvBuild, model.EnvHost, model.EnvRun, model.EnvRunConstrained} {
		specs := job.Requirements.Get(env)
		for i, spec := range specs {
			specs[i] = model.EnsureValidSpec(spec)
		}
		job.Requirements.Set(env, specs)
	}

	if err := SimplifyExactPins(job.Requirements); err != nil {
		return fmt.Errorf("cannot finalize %s: %w", job.Dist(), err)
	}

	job.BuildUnsat = buildUnsat
	job.HostUnsat = hostUnsat
	if buildUnsat != "" || hostUnsat != "" {
		job.Final = false
		if f.Log != nil {
			f.Log.Warn("job left non-final, environments unsatisfiable",
				"job", job.Dist(), "build", buildUnsat, "host", hostUnsat)
		}
		return nil
	}
	job.Final = true
	return nil
}

func pinSpecs(specs []string, v variant.Variant, versions map[string]string, errs **multierror.Error) []string {
	pinned := make([]string, 0, len(specs))
	for _, spec := range specs {
		result, err := pinFromBuild(v, spec, versions)
		if err != nil {
			*errs = multierror.Append(*errs, err)
			continue
		}
		pinned = append(pinned, result)
	}
	return pinned
}

// siblingSpecs collects "name version" specs for the other outputs of
// the same template whose variant agrees with the job's on every shared
// variable, following runtime references between outputs transitively.
func siblingSpecs(job *model.BuildJob, siblings []*model.BuildJob) []string {
	candidates := make(map[string]*model.BuildJob)
	for _, sib := range siblings {
		if sib.Name == job.Name {
			continue
		}
		if !variant.Match(job.Variant, sib.Variant) {
			continue
		}
		candidates[sib.Name] = sib
	}
	if len(candidates) == 0 {
		return nil
	}

	wanted := make(map[string]bool)
	queue := referencedNames(job.Requirements, job.TestRequires)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		sib, exists := candidates[name]
		if !exists || wanted[name] {
			continue
		}
		wanted[name] = true
		queue = append(queue, referencedNames(sib.Requirements, sib.TestRequires)...)
	}

	var specs []string
	for _, sib := range siblings {
		if wanted[sib.Name] && candidates[sib.Name] == sib {
			specs = append(specs, strings.TrimSpace(sib.Name+" "+sib.Version))
		}
	}
	return specs
}

func referencedNames(section *model.RequirementsSection, testRequires []string) []string {
	var names []string
	for _, env := range []string{model.EnvBuild, model.EnvHost, model.EnvRun} {
		for _, spec := range section.Get(env) {
			names = append(names, model.SpecName(spec))
		}
	}
	for _, spec := range testRequires {
		names = append(names, model.SpecName(spec))
	}
	return names
}

// appendPythonToRun pins a bare python runtime dep to the interpreter's
// major.minor series when the pinning environment resolved a concrete
// python. Architecture-independent jobs keep python unpinned so one
// artifact serves every interpreter.
func appendPythonToRun(job *model.BuildJob, versions map[string]string) {
	if job.Noarch {
		return
	}
	resolved := versions["python"]
	if resolved == "" {
		return
	}
	for i, spec := range job.Requirements.Run {
		name, specVersion, build := model.SplitSpec(spec)
		if name == "python" && specVersion == "" && build == "" {
			job.Requirements.Run[i] = model.EnsureValidSpec("python " + majorMinor(resolved))
		}
	}
}

func majorMinor(qualified string) string {
	fields := strings.Fields(qualified)
	if len(fields) == 0 {
		return ""
	}
	parts := strings.SplitN(fields[0], ".", 3)
	if len(parts) < 2 {
		return fields[0]
	}
	return parts[0] + "." + parts[1]
}

// resolveSourcePaths rewrites relative source locations against the
// recipe directory so a finalized job is reproducible from any working
// directory. A git_url without a scheme separator is a local checkout
// path and gets the same treatment.
func resolveSourcePaths(job *model.BuildJob) {
	for i, src := range job.Sources {
		if src.Path != "" && !filepath.IsAbs(src.Path) {
			job.Sources[i].Path = filepath.Join(job.RecipeDir, src.Path)
		}
		if src.GitURL != "" && !strings.Contains(src.GitURL, ":") && !filepath.IsAbs(src.GitURL) {
			job.Sources[i].GitURL = filepath.Join(job.RecipeDir, src.GitURL)
		}
	}
}
