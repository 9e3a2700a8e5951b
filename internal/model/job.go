package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sourceplane/pkgforge/internal/variant"
)

// Source is one source entry of a build template. Relative paths are
// resolved against the recipe directory during finalization.
type Source struct {
	Path   string `yaml:"path,omitempty" json:"path,omitempty"`
	GitURL string `yaml:"git_url,omitempty" json:"git_url,omitempty"`
	GitRev string `yaml:"git_rev,omitempty" json:"git_rev,omitempty"`
}

// BuildJob is one concrete, variant-bound rendering of a build
// template. It is created by the distributor, mutated in place by the
// finalizer, and immutable once Final is true. An unsatisfiable job that
// the caller tolerates is retained with Final=false and its diagnostics
// set rather than discarded.
type BuildJob struct {
	Name           string                     `yaml:"name" json:"name"`
	Version        string                     `yaml:"version" json:"version"`
	TargetPlatform string                     `yaml:"target_platform,omitempty" json:"target_platform,omitempty"`
	Noarch         bool                       `yaml:"noarch,omitempty" json:"noarch,omitempty"`
	Requirements   *RequirementsSection       `yaml:"requirements" json:"requirements"`
	TestRequires   []string                   `yaml:"test_requires,omitempty" json:"test_requires,omitempty"`
	Sources        []Source                   `yaml:"sources,omitempty" json:"sources,omitempty"`
	Variant        variant.Variant            `yaml:"variant" json:"variant"`
	UsedVariables  []string                   `yaml:"used_variables,omitempty" json:"used_variables,omitempty"`
	RecipeDir      string                     `yaml:"-" json:"-"`
	NeedsSource    bool                       `yaml:"-" json:"-"`

	Final      bool   `yaml:"final" json:"final"`
	BuildUnsat string `yaml:"build_unsat,omitempty" json:"build_unsat,omitempty"`
	HostUnsat  string `yaml:"host_unsat,omitempty" json:"host_unsat,omitempty"`
}

// Dist is the job's distribution identity.
func (j *BuildJob) Dist() string {
	return j.Name + "-" + j.Version
}

// Key identifies the job for idempotent re-expansion: distribution
// identity, target platform and the ordered tuple of (used-variable,
// value) pairs. Re-running the distributor over the same inputs yields
// the same key set.
func (j *BuildJob) Key() string {
	ordered := append([]string(nil), j.UsedVariables...)
	sort.Strings(ordered)
	pairs := make([]string, 0, len(ordered))
	for _, name := range ordered {
		pairs = append(pairs, fmt.Sprintf("%s=%s", name, j.Variant.StringValue(name)))
	}
	return fmt.Sprintf("%s|%s|%s", j.Dist(), j.TargetPlatform, strings.Join(pairs, ","))
}
