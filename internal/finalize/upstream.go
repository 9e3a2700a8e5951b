package finalize

import (
	"context"
	"regexp"

	"github.com/sourceplane/pkgforge/internal/model"
	"github.com/sourceplane/pkgforge/internal/recipe"
)

// envPins is the outcome of resolving one environment and collecting
// its upstream run exports.
type envPins struct {
	deps    []string
	unsat   string
	exports model.RunExportSet
}

// readUpstreamPins resolves one environment and inspects its explicit
// resolved packages for declared downstream constraints.
func (f *Finalizer) readUpstreamPins(
	ctx context.Context,
	job *model.BuildJob,
	tmpl recipe.Template,
	env string,
	exclude *regexp.Regexp,
	extraSpecs []string,
	permitUnsat bool,
) (*envPins, error) {
	resolution, err := f.Resolver.EnvDependencies(ctx, tmpl, env, job.Requirements, job.Variant, exclude, extraSpecs, permitUnsat)
	if err != nil {
		return nil, err
	}
	collected, err := f.Propagator.Collect(
		resolution.Records,
		job.Requirements.Get(env),
		tmpl.IgnoreRunExportsFrom(),
		tmpl.IgnoreRunExports(),
	)
	if err != nil {
		return nil, err
	}
	deps := resolution.Specs
	if len(deps) == 0 {
		deps = job.Requirements.Get(env)
	}
	return &envPins{deps: model.UnionSpecs(nil, deps), unsat: resolution.Unsat, exports: collected}, nil
}

// addUpstreamPins applies run exports from build (and, when
// cross-compiling, host) dependencies to the job's host and run
// sections. Strong exports propagate across both build→host and
// host→run edges; weak exports stop after one edge. The constrains
// categories follow the same edges but land in run_constrained.
// Returns the build-side and host-side unsatisfiability diagnostics.
func (f *Finalizer) addUpstreamPins(
	ctx context.Context,
	job *model.BuildJob,
	tmpl recipe.Template,
	exclude *regexp.Regexp,
	extraSpecs []string,
	permitUnsat bool,
) (buildUnsat, hostUnsat string, err error) {
	buildExtras := extraSpecs
	if f.Cross {
		buildExtras = nil
	}
	build, err := f.readUpstreamPins(ctx, job, tmpl, model.EnvBuild, exclude, buildExtras, permitUnsat)
	if err != nil {
		return "", "", err
	}

	var extraRun, extraRunConstrained []string
	buildDeps := build.deps
	var hostDeps []string

	if f.Cross {
		// Build-environment strong exports must be in place before host
		// resolution; they enforce things like the compiler's runtime
		// version inside the host environment.
		job.Requirements.Host = model.UnionSpecs(build.exports.Get(model.ExportStrong), job.Requirements.Host)

		host, herr := f.readUpstreamPins(ctx, job, tmpl, model.EnvHost, exclude, extraSpecs, permitUnsat)
		if herr != nil {
			return "", "", herr
		}
		hostUnsat = host.unsat
		hostDeps = host.deps

		if job.Noarch {
			extraRun = host.exports.Get(model.ExportNoarch)
		} else {
			extraRun = concat(
				host.exports.Get(model.ExportStrong),
				host.exports.Get(model.ExportWeak),
				build.exports.Get(model.ExportStrong),
			)
			extraRunConstrained = concat(
				host.exports.Get(model.ExportStrongConstrains),
				host.exports.Get(model.ExportWeakConstrains),
				build.exports.Get(model.ExportStrongConstrains),
			)
		}
	} else {
		switch {
		case job.Noarch && f.BuildIsHost:
			// The build prefix doubles as the host prefix, so noarch
			// exports feed both the build deps and the run section.
			extraRun = build.exports.Get(model.ExportNoarch)
			buildDeps = model.UnionSpecs(buildDeps, build.exports.Get(model.ExportNoarch))
		case job.Noarch:
			// nothing propagates
		default:
			extraRun = build.exports.Get(model.ExportStrong)
			extraRunConstrained = build.exports.Get(model.ExportStrongConstrains)
			if f.BuildIsHost {
				extraRun = concat(extraRun, build.exports.Get(model.ExportWeak))
				extraRunConstrained = concat(extraRunConstrained, build.exports.Get(model.ExportWeakConstrains))
				buildDeps = model.UnionSpecs(buildDeps, build.exports.Get(model.ExportWeak))
			} else {
				hostDeps = model.UnionSpecs(nil, build.exports.Get(model.ExportStrong))
			}
		}
	}

	if len(buildDeps) > 0 {
		job.Requirements.Build = buildDeps
	}
	if len(hostDeps) > 0 {
		job.Requirements.Host = hostDeps
	}
	job.Requirements.Run = model.UnionSpecs(job.Requirements.Run, extraRun)
	job.Requirements.RunConstrained = model.UnionSpecs(job.Requirements.RunConstrained, extraRunConstrained)

	return build.unsat, hostUnsat, nil
}

func concat(lists ...[]string) []string {
	var merged []string
	for _, list := range lists {
		merged = append(merged, list...)
	}
	return merged
}
