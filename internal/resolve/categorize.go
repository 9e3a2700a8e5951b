// Package resolve turns abstract requirement lists into concrete,
// solver-backed spec lists for one environment at a time.
package resolve

import (
	"fmt"
	"regexp"

	"github.com/sourceplane/pkgforge/internal/model"
	"github.com/sourceplane/pkgforge/internal/variant"
)

// Categorized splits a raw spec list three ways: self-referential
// subpackage references, external dependencies to hand to the solver,
// and pass-through specs excluded from versioning.
type Categorized struct {
	Subpackages  []string
	Dependencies []string
	PassThrough  []string
}

// Categorize walks the spec list. A spec matching the exclusion pattern
// is pass-through, never versioned. A spec naming a declared sub-output
// becomes a subpackage reference pinned to the template version. An
// unversioned spec whose dash/underscore-normalized name matches a
// variant key additionally picks up the variant's value as its version.
func Categorize(specs []string, exclude *regexp.Regexp, v variant.Variant, outputNames []string, templateVersion string) Categorized {
	outputs := make(map[string]bool, len(outputNames))
	for _, name := range outputNames {
		outputs[name] = true
	}

	var result Categorized
	for _, spec := range specs {
		if exclude != nil && exclude.MatchString(spec) {
			result.PassThrough = append(result.PassThrough, spec)
			continue
		}
		name, specVersion, _ := model.SplitSpec(spec)
		if outputs[name] {
			result.Subpackages = append(result.Subpackages, name+" "+templateVersion)
		} else {
			result.Dependencies = append(result.Dependencies, spec)
		}
		// fill in the variant version iff no version at all is provided
		if specVersion == "" {
			for key := range v {
				switch key {
				case variant.KeyExtendKeys, variant.KeyPinRunAsBuild, variant.KeyIgnoreVersion, variant.KeyTargetPlatform:
					continue
				}
				if variant.NormalizeName(key) == variant.NormalizeName(name) {
					result.Dependencies = append(result.Dependencies, name+" "+v.StringValue(key))
				}
			}
		}
	}
	return result
}

// ExclusionPattern builds the anchored name-alternation regex used to
// mark specs as pass-through.
func ExclusionPattern(names []string) (*regexp.Regexp, error) {
	if len(names) == 0 {
		return nil, nil
	}
	alternatives := make([]string, 0, len(names))
	for _, name := range names {
		alternatives = append(alternatives, fmt.Sprintf(`(?:^%s(?:\s|$))`, regexp.QuoteMeta(name)))
	}
	pattern := alternatives[0]
	for _, alt := range alternatives[1:] {
		pattern += "|" + alt
	}
	return regexp.Compile(pattern)
}
