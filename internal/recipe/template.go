// Package recipe defines the build-template collaborator at its
// interface boundary. Template parsing and templating proper are
// outside the engine; the engine only needs the two-phase render
// contract: an unbound pass that reports which variant variables affect
// the rendered output, and a bound pass that produces the concrete
// sections for one variant.
package recipe

import (
	"errors"

	"github.com/sourceplane/pkgforge/internal/model"
	"github.com/sourceplane/pkgforge/internal/variant"
)

// ErrSkip is the benign "stop processing this recipe" signal: a variant
// the template declines to build. The distributor drops such clones
// silently.
var ErrSkip = errors.New("recipe skipped for this variant")

// Output is a sub-output declared by the template: a package produced
// by the same template, referenced as a dependency rather than
// externally resolved.
type Output struct {
	Name         string                     `yaml:"name"`
	Requirements *model.RequirementsSection `yaml:"requirements,omitempty"`
}

// Rendered is the concrete, variant-bound section set of a template.
type Rendered struct {
	Requirements *model.RequirementsSection
	TestRequires []string
	Sources      []model.Source
}

// Template is the build template as seen by the distributor and
// finalizer.
type Template interface {
	Name() string
	Version() string
	Noarch() bool

	// Dir is the recipe's own directory, the base for resolving
	// relative source paths.
	Dir() string

	Outputs() []Output
	IgnoreRunExports() []string
	IgnoreRunExportsFrom() []string

	// NeedsSourceForRender reports whether the rendered output depends
	// on fetched source (e.g. version strings read from source control
	// metadata); VariantInSource whether the active variant affects
	// source selection.
	NeedsSourceForRender() bool
	VariantInSource() bool

	// UsedVariables is the unbound render pass: the subset of the
	// matrix's keys that affect this template's rendered output.
	UsedVariables(matrix variant.Matrix) []string

	// Render is the bound render pass for one variant. It returns
	// ErrSkip when the template declines the variant.
	Render(v variant.Variant) (*Rendered, error)

	// RenderOutput renders the sections of one named sub-output for a
	// variant. The second result is false when the template declares no
	// such output.
	RenderOutput(name string, v variant.Variant) (*Rendered, bool, error)
}
