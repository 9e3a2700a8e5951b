package model

import "strings"

// ResolvedRecord is one concrete package produced by the solver
// collaborator: immutable once obtained. The declared run-export set is
// fetched lazily by the propagator, not carried here.
type ResolvedRecord struct {
	Name    string `yaml:"name" json:"name"`
	Version string `yaml:"version" json:"version"`
	Build   string `yaml:"build" json:"build"`
	Channel string `yaml:"channel,omitempty" json:"channel,omitempty"`
}

// Requirement renders the record back into a fully pinned requirement
// spec: "name version build".
func (r ResolvedRecord) Requirement() string {
	return strings.TrimSpace(strings.Join([]string{r.Name, r.Version, r.Build}, " "))
}

// Dist is the record's distribution identity, "name-version-build".
func (r ResolvedRecord) Dist() string {
	return r.Name + "-" + r.Version + "-" + r.Build
}

// Run-export categories, ordered by propagation strength. Strong exports
// propagate across both build→host and host→run edges; weak exports stop
// after one edge. The constrains variants follow the same edges but land
// in run_constrained instead of run.
const (
	ExportWeak             = "weak"
	ExportStrong           = "strong"
	ExportNoarch           = "noarch"
	ExportWeakConstrains   = "weak_constrains"
	ExportStrongConstrains = "strong_constrains"
)

// RunExportSet maps an export category to its requirement specs.
type RunExportSet map[string][]string

// Merge concatenates another set into this one category by category and
// returns the result. Deduplication happens later, when specs are
// unioned into a requirements section.
func (s RunExportSet) Merge(other RunExportSet) RunExportSet {
	if len(other) == 0 {
		return s
	}
	merged := RunExportSet{}
	for category, specs := range s {
		merged[category] = append(merged[category], specs...)
	}
	for category, specs := range other {
		merged[category] = append(merged[category], specs...)
	}
	return merged
}

// Get returns the specs for a category, nil when absent.
func (s RunExportSet) Get(category string) []string {
	if s == nil {
		return nil
	}
	return s[category]
}
