// Package distribute expands a build template across a reduced variant
// matrix, producing one build job per distinct used-variables tuple.
package distribute

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sourceplane/pkgforge/internal/model"
	"github.com/sourceplane/pkgforge/internal/recipe"
	"github.com/sourceplane/pkgforge/internal/source"
	"github.com/sourceplane/pkgforge/internal/variant"
	"github.com/sourceplane/pkgforge/internal/version"
)

// Distributor expands templates into variant-bound build jobs.
type Distributor struct {
	// Source provides fetched source trees for templates whose render
	// depends on them. Nil defers all source fetches.
	Source source.Provider
	// Platform is the default target platform for variants that do not
	// carry target_platform themselves.
	Platform string
	Log      *slog.Logger
}

// versionRenderer is implemented by templates whose version string
// resolves against the bound variant or fetched source metadata.
type versionRenderer interface {
	RenderedVersion(v variant.Variant) (string, error)
}

// Distribute expands the template over the matrix. Each distinct
// projection onto the template's used variables yields exactly one job;
// a clone whose render raises the benign skip signal is dropped
// silently. Re-running over the same inputs produces the same job key
// set.
func (d *Distributor) Distribute(ctx context.Context, tmpl recipe.Template, matrix variant.Matrix) ([]*model.BuildJob, error) {
	if err := matrix.Validate(); err != nil {
		return nil, err
	}
	if len(matrix) == 0 {
		return nil, fmt.Errorf("empty variant matrix")
	}

	// Architecture-independent templates only build against the newest
	// interpreter version.
	if tmpl.Noarch() {
		matrix = reduceToNewestPython(matrix)
	}

	usedVars := tmpl.UsedVariables(matrix)
	projections := variant.DistinctProjections(matrix, usedVars)

	jobs := make(map[string]*model.BuildJob)
	var order []string
	for _, projection := range projections {
		job, err := d.expandOne(ctx, tmpl, projection, matrix, usedVars)
		if err != nil {
			if errors.Is(err, recipe.ErrSkip) {
				continue
			}
			return nil, err
		}
		key := job.Key()
		if _, seen := jobs[key]; !seen {
			order = append(order, key)
		}
		jobs[key] = job
	}

	result := make([]*model.BuildJob, 0, len(order))
	for _, key := range order {
		result = append(result, jobs[key])
	}
	return result, nil
}

func (d *Distributor) expandOne(
	ctx context.Context,
	tmpl recipe.Template,
	projection variant.Projection,
	matrix variant.Matrix,
	usedVars []string,
) (*model.BuildJob, error) {
	// Bind an independent copy of the representative full variant; the
	// clone never aliases a sibling's nested configuration.
	bound := projection.Representative.Clone()

	// Re-filter a private copy of the full matrix to the variants
	// consistent with the bound values.
	private := matrix.Clone()
	for _, key := range usedVars {
		if filtered := variant.FilterByKeyValue(private, key, bound.StringValue(key)); len(filtered) > 0 {
			private = filtered
		}
	}

	sourceProvided := false
	if tmpl.NeedsSourceForRender() && tmpl.VariantInSource() && d.Source != nil {
		if err := d.provideSource(ctx, tmpl, bound); err != nil {
			return nil, err
		}
		sourceProvided = true
	}

	rendered, err := tmpl.Render(bound)
	if err != nil {
		return nil, err
	}

	jobVersion := tmpl.Version()
	if renderer, ok := tmpl.(versionRenderer); ok {
		if !strings.Contains(jobVersion, "{{") || sourceProvided || !tmpl.NeedsSourceForRender() {
			if resolved, err := renderer.RenderedVersion(bound); err == nil {
				jobVersion = resolved
			}
		}
	}

	pinNumpyXX(rendered.Requirements, bound, private)

	job := &model.BuildJob{
		Name:           tmpl.Name(),
		Version:        jobVersion,
		TargetPlatform: targetPlatform(bound, d.Platform),
		Noarch:         tmpl.Noarch(),
		Requirements:   rendered.Requirements,
		TestRequires:   rendered.TestRequires,
		Sources:        rendered.Sources,
		Variant:        bound,
		UsedVariables:  append([]string(nil), usedVars...),
		RecipeDir:      tmpl.Dir(),
		NeedsSource:    tmpl.NeedsSourceForRender() && !sourceProvided,
	}
	return job, nil
}

func (d *Distributor) provideSource(ctx context.Context, tmpl recipe.Template, bound variant.Variant) error {
	rendered, err := tmpl.Render(bound)
	if err != nil {
		return err
	}
	for _, src := range rendered.Sources {
		if _, err := d.Source.Provide(ctx, src, tmpl.Dir()); err != nil {
			return fmt.Errorf("failed to provide source for %s: %w", tmpl.Name(), err)
		}
	}
	return nil
}

// pinNumpyXX threads the numpy "defer to variant" sentinel through the
// variant's pin table: a template depending on "numpy x.x" without an
// explicit pin_run_as_build entry gets the x.x/x.x policy, on the bound
// variant and on every variant of the private matrix.
func pinNumpyXX(section *model.RequirementsSection, bound variant.Variant, private variant.Matrix) {
	if !usesNumpyXX(section) {
		return
	}
	table := bound.PinRunAsBuild()
	if _, pinned := table["numpy"]; pinned {
		return
	}
	table["numpy"] = variant.PinPolicy{MinPin: "x.x", MaxPin: "x.x"}
	bound.SetPinRunAsBuild(table)
	for _, v := range private {
		other := v.PinRunAsBuild()
		if _, pinned := other["numpy"]; !pinned {
			other["numpy"] = variant.PinPolicy{MinPin: "x.x", MaxPin: "x.x"}
			v.SetPinRunAsBuild(other)
		}
	}
}

func usesNumpyXX(section *model.RequirementsSection) bool {
	for _, env := range []string{model.EnvBuild, model.EnvHost} {
		for _, spec := range section.Get(env) {
			if model.SpecName(spec) == "numpy" && strings.Contains(spec, "x.x") {
				return true
			}
		}
	}
	return false
}

func targetPlatform(v variant.Variant, fallback string) string {
	if platform := v.StringValue(variant.KeyTargetPlatform); platform != "" {
		return platform
	}
	return fallback
}

// reduceToNewestPython keeps only the variants carrying the
// numerically-highest interpreter version.
func reduceToNewestPython(matrix variant.Matrix) variant.Matrix {
	newest := ""
	for _, v := range matrix {
		value := v.StringValue("python")
		if value == "" {
			continue
		}
		// the value may carry a build qualifier ("3.10 *_cpython");
		// order by the version field but filter on the full value
		if newest == "" || version.CompareStrings(model.SpecName(value), model.SpecName(newest)) > 0 {
			newest = value
		}
	}
	if newest == "" {
		return matrix
	}
	return variant.FilterByKeyValue(matrix, "python", newest)
}

// ExpandOutputs turns each job of a multi-output template into one job
// per declared sub-output, deduplicated by distribution identity. Jobs
// of templates without outputs pass through unchanged.
func ExpandOutputs(tmpl recipe.Template, jobs []*model.BuildJob) ([]*model.BuildJob, error) {
	outputs := tmpl.Outputs()
	if len(outputs) == 0 {
		return jobs, nil
	}
	expanded := make(map[string]*model.BuildJob)
	var order []string
	for _, job := range jobs {
		for _, out := range outputs {
			rendered, found, err := tmpl.RenderOutput(out.Name, job.Variant)
			if err != nil {
				if errors.Is(err, recipe.ErrSkip) {
					continue
				}
				return nil, err
			}
			if !found {
				continue
			}
			sub := &model.BuildJob{
				Name:           out.Name,
				Version:        job.Version,
				TargetPlatform: job.TargetPlatform,
				Noarch:         job.Noarch,
				Requirements:   rendered.Requirements,
				TestRequires:   rendered.TestRequires,
				Sources:        job.Sources,
				Variant:        job.Variant.Clone(),
				UsedVariables:  append([]string(nil), job.UsedVariables...),
				RecipeDir:      job.RecipeDir,
			}
			key := sub.Key()
			if _, seen := expanded[key]; !seen {
				order = append(order, key)
			}
			expanded[key] = sub
		}
	}
	result := make([]*model.BuildJob, 0, len(order))
	for _, key := range order {
		result = append(result, expanded[key])
	}
	return result, nil
}
