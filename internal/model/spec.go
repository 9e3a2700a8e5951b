package model

import (
	"regexp"
	"strings"
)

// A requirement spec is a textual dependency descriptor of the form
// "name [version] [build]". Fields after the name are optional and
// order-significant. Specs are carried as strings end to end; these
// helpers pick them apart where a field is needed.

// SpecName returns the package name portion of a requirement spec.
func SpecName(spec string) string {
	fields := strings.Fields(spec)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// SplitSpec splits a requirement spec into its name, version and build
// fields. Missing fields come back empty.
func SplitSpec(spec string) (name, version, build string) {
	fields := strings.Fields(spec)
	if len(fields) > 0 {
		name = fields[0]
	}
	if len(fields) > 1 {
		version = fields[1]
	}
	if len(fields) > 2 {
		build = fields[2]
	}
	return name, version, build
}

// StripChannel removes a "channel::" prefix from a spec, if present.
func StripChannel(spec string) string {
	if idx := strings.LastIndex(spec, "::"); idx >= 0 {
		return spec[idx+2:]
	}
	return spec
}

var specNeedingStar = regexp.MustCompile(`^([0-9a-zA-Z\._\-]+)\s+([0-9a-zA-Z\.]+)(\s+[0-9a-zA-Z\._]+)?$`)

// EnsureValidSpec appends ".*" to a bare version so it stays satisfiable
// as a prefix match. Exact pins (name version build) are left alone, as
// are the python/numpy "x.x" sentinels, which mean "defer to variant"
// rather than a literal version.
func EnsureValidSpec(spec string) string {
	match := specNeedingStar.FindStringSubmatch(spec)
	if match == nil || match[3] != "" {
		return spec
	}
	name, version := match[1], match[2]
	if version == "x.x" && (name == "python" || name == "numpy") {
		return spec
	}
	if strings.ContainsAny(version, "><=!*") {
		return spec
	}
	return name + " " + version + ".*"
}

// UnionSpecs merges additional specs into an existing list, dropping
// duplicates while keeping first-seen order.
func UnionSpecs(existing []string, extra []string) []string {
	seen := make(map[string]bool, len(existing)+len(extra))
	merged := make([]string, 0, len(existing)+len(extra))
	for _, group := range [][]string{existing, extra} {
		for _, spec := range group {
			if spec == "" || seen[spec] {
				continue
			}
			seen[spec] = true
			merged = append(merged, spec)
		}
	}
	return merged
}
