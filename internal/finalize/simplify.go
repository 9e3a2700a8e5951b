package finalize

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sourceplane/pkgforge/internal/model"
)

// ErrPinConflict marks two exact constraints for the same dependency
// that disagree. Never silently resolved.
var ErrPinConflict = errors.New("conflicting exact pins")

// SimplifyExactPins collapses redundant specs per section. When every
// occurrence of a name carries the same exact constraint (specific
// build string, version free of >, < and *), they collapse to one spec;
// disagreeing exact constraints are a hard conflict. A name occurring
// exactly once with no qualifiers collapses to the bare name. Anything
// else keeps its qualified occurrences verbatim, preserving legitimate
// multi-spec accumulation.
func SimplifyExactPins(section *model.RequirementsSection) error {
	for _, env := range []string{model.EnvBuild, model.EnvHost, model.EnvRun} {
		specs := section.Get(env)
		if len(specs) == 0 {
			continue
		}

		type entry struct {
			name       string
			qualifiers [][]string
		}
		var order []*entry
		byName := make(map[string]*entry)
		for _, spec := range specs {
			fields := strings.Fields(model.EnsureValidSpec(spec))
			if len(fields) == 0 {
				continue
			}
			name := fields[0]
			group, exists := byName[name]
			if !exists {
				group = &entry{name: name}
				byName[name] = group
				order = append(order, group)
			}
			group.qualifiers = append(group.qualifiers, fields[1:])
		}

		var simplified []string
		for _, group := range order {
			var exactPins [][]string
			for _, qualifier := range group.qualifiers {
				if len(qualifier) > 1 && isExact(qualifier[0], qualifier[1]) {
					exactPins = append(exactPins, qualifier)
				}
			}
			switch {
			case len(group.qualifiers) == 1 && len(group.qualifiers[0]) == 0:
				simplified = append(simplified, group.name)
			case len(exactPins) > 0:
				for _, pin := range exactPins[1:] {
					if !equalQualifiers(pin, exactPins[0]) {
						return fmt.Errorf("%w for %s: %v vs %v", ErrPinConflict, group.name, exactPins[0], pin)
					}
				}
				simplified = append(simplified, strings.Join(append([]string{group.name}, exactPins[0]...), " "))
			default:
				for _, qualifier := range group.qualifiers {
					if len(qualifier) > 0 {
						simplified = append(simplified, strings.Join(append([]string{group.name}, qualifier...), " "))
					}
				}
			}
		}
		if len(simplified) > 0 {
			section.Set(env, simplified)
		}
	}
	return nil
}

func isExact(specVersion, build string) bool {
	return !strings.ContainsAny(specVersion, "><*") && !strings.Contains(build, "*")
}

func equalQualifiers(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
