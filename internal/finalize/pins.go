package finalize

import (
	"fmt"
	"strings"

	"github.com/sourceplane/pkgforge/internal/model"
	"github.com/sourceplane/pkgforge/internal/variant"
	"github.com/sourceplane/pkgforge/internal/version"
)

// pinFromBuild version-pins one runtime spec against the build-time
// version table. A spec is pinned only when the variant's
// pin_run_as_build policy names it, except for the numpy "x.x"
// sentinel, which always pins to the build-time numpy and errors when
// numpy is absent from the build dependencies.
func pinFromBuild(v variant.Variant, dep string, buildVersions map[string]string) (string, error) {
	name, _, build := model.SplitSpec(dep)
	pinTable := v.PinRunAsBuild()

	resolved := buildVersions[name]
	if resolved == "" {
		resolved = v.StringValue(name)
	}

	pin := ""
	policy, pinned := pinTable[name]
	switch {
	case resolved != "" && pinned && buildVersions[name] != "":
		computed, err := version.ApplyPinExpressions(model.SpecName(resolved), policy.MinPin, policy.MaxPin)
		if err != nil {
			return "", fmt.Errorf("failed to pin %s: %w", name, err)
		}
		pin = computed
	case name == "numpy" && strings.Contains(dep, "x.x"):
		if buildVersions[name] == "" {
			return "", fmt.Errorf("numpy x.x specified, but numpy not in build requirements")
		}
		computed, err := version.ApplyPinExpressions(model.SpecName(resolved), "x.x", "x.x")
		if err != nil {
			return "", fmt.Errorf("failed to pin numpy: %w", err)
		}
		pin = computed
	}
	if pin == "" {
		return dep, nil
	}
	return strings.TrimSpace(strings.Join([]string{name, pin, build}, " ")), nil
}

// insertVariantVersions rewrites an environment's specs in place:
// unversioned specs whose normalized name matches a variant key take
// the variant's value, and "name x.x" literals take the variant's
// concrete version.
func insertVariantVersions(section *model.RequirementsSection, v variant.Variant, env string) {
	specs := section.Get(env)
	if len(specs) == 0 {
		return
	}
	for i, spec := range specs {
		name, specVersion, build := model.SplitSpec(spec)
		if build != "" {
			continue
		}
		if specVersion == "" {
			for key := range v {
				switch key {
				case variant.KeyExtendKeys, variant.KeyPinRunAsBuild, variant.KeyIgnoreVersion, variant.KeyTargetPlatform:
					continue
				}
				if variant.NormalizeName(key) == variant.NormalizeName(name) {
					specs[i] = model.EnsureValidSpec(name + " " + v.StringValue(key))
					break
				}
			}
		} else if specVersion == "x.x" {
			if value := v.StringValue(name); value != "" {
				specs[i] = model.EnsureValidSpec(name + " " + value)
			}
		}
	}
	section.Set(env, specs)
}

// buildVersionTable maps each fully resolved spec to its version/build
// qualifier string for run-dependency pinning.
func buildVersionTable(specs []string) map[string]string {
	table := make(map[string]string, len(specs))
	for _, spec := range specs {
		fields := strings.Fields(spec)
		if len(fields) < 2 {
			continue
		}
		table[fields[0]] = strings.Join(fields[1:], " ")
	}
	return table
}
