// Package exports reads, filters and merges run-export constraints
// declared by resolved packages: constraints a package asks its
// downstream consumers to inherit, categorized by propagation strength.
package exports

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sourceplane/pkgforge/internal/model"
	"gopkg.in/yaml.v3"
)

// payloadKind tags the three historical run-export payload encodings.
// Payloads are normalized to the canonical category mapping at this
// parse boundary; nothing downstream sees the raw encodings.
type payloadKind int

const (
	payloadYAML payloadKind = iota
	payloadJSON
	payloadLegacyText
)

// parsePayload decodes one payload into a run-export set. Legacy
// newline-delimited text is all category "weak", with entries that
// merely pin the package itself dropped. A garbled structured document
// degrades to "no exports" rather than failing the build.
func parsePayload(data []byte, kind payloadKind, pkgName string) model.RunExportSet {
	switch kind {
	case payloadYAML:
		var set model.RunExportSet
		if err := yaml.Unmarshal(data, &set); err != nil {
			return nil
		}
		return set
	case payloadJSON:
		var set model.RunExportSet
		if err := json.Unmarshal(data, &set); err != nil {
			return nil
		}
		return set
	case payloadLegacyText:
		var weak []string
		for _, line := range strings.Split(string(data), "\n") {
			spec := strings.TrimRight(line, " \t\r")
			if spec == "" {
				continue
			}
			// a package pinning itself makes no sense
			if model.SpecName(spec) == pkgName {
				continue
			}
			weak = append(weak, spec)
		}
		if len(weak) == 0 {
			return nil
		}
		return model.RunExportSet{model.ExportWeak: weak}
	}
	return nil
}

// ReadFromPackage reads the declared run-export set from an extracted
// package directory, trying the structured documents first and the
// legacy text file last. A missing payload means no exports; an I/O
// error reading an existing payload is fatal.
func ReadFromPackage(pkgDir, pkgName string) (model.RunExportSet, error) {
	candidates := []struct {
		file string
		kind payloadKind
	}{
		{"run_exports.yaml", payloadYAML},
		{"run_exports.json", payloadJSON},
		{"run_exports", payloadLegacyText},
	}
	for _, candidate := range candidates {
		path := filepath.Join(pkgDir, "info", candidate.file)
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to read run exports from %s: %w", path, err)
		}
		return parsePayload(data, candidate.kind, pkgName), nil
	}
	return nil, nil
}

// Filter removes export specs matching the ignore list. An ignore entry
// matches on the whole spec, on "name "-prefix, or globally with "*".
func Filter(set model.RunExportSet, ignoreSpecs []string) model.RunExportSet {
	if len(ignoreSpecs) == 0 || len(set) == 0 {
		return set
	}
	filtered := model.RunExportSet{}
	for category, specs := range set {
		for _, spec := range specs {
			ignored := false
			for _, ignore := range ignoreSpecs {
				if ignore == "*" || spec == ignore || strings.HasPrefix(spec, ignore+" ") {
					ignored = true
					break
				}
			}
			if !ignored {
				filtered[category] = append(filtered[category], spec)
			}
		}
	}
	return filtered
}
