package solver

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sourceplane/pkgforge/internal/model"
	"github.com/sourceplane/pkgforge/internal/version"
	"gopkg.in/yaml.v3"
)

// IndexEntry is one package available to the index solver, optionally
// carrying the run exports it declares.
type IndexEntry struct {
	Name       string              `yaml:"name"`
	Version    string              `yaml:"version"`
	Build      string              `yaml:"build"`
	Channel    string              `yaml:"channel,omitempty"`
	RunExports model.RunExportSet  `yaml:"run_exports,omitempty"`
}

// IndexSolver resolves specs against a static package index. It stands
// in for a real channel-backed solver in offline renders and tests:
// each spec picks the highest satisfying version, and a spec with no
// match yields the unsatisfiability signal.
type IndexSolver struct {
	Entries []IndexEntry
}

// LoadIndex reads a package index YAML file.
func LoadIndex(path string) (*IndexSolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read package index: %w", err)
	}
	var doc struct {
		Packages []IndexEntry `yaml:"packages"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse package index YAML: %w", err)
	}
	return &IndexSolver{Entries: doc.Packages}, nil
}

// Solve resolves every spec to the best matching index entry.
func (s *IndexSolver) Solve(ctx context.Context, req Request) ([]model.ResolvedRecord, error) {
	var records []model.ResolvedRecord
	var missing []string
	for _, spec := range req.Specs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		best, found := s.match(spec)
		if !found {
			missing = append(missing, model.SpecName(spec))
			continue
		}
		records = append(records, model.ResolvedRecord{
			Name:    best.Name,
			Version: best.Version,
			Build:   best.Build,
			Channel: best.Channel,
		})
	}
	if len(missing) > 0 {
		return nil, &Unsatisfiable{Packages: missing}
	}
	return records, nil
}

// RunExportsFor returns the declared run exports for a resolved record,
// letting the index double as a channel metadata source.
func (s *IndexSolver) RunExportsFor(rec model.ResolvedRecord) (model.RunExportSet, bool) {
	for _, entry := range s.Entries {
		if entry.Name == rec.Name && entry.Version == rec.Version && entry.Build == rec.Build {
			return entry.RunExports, entry.RunExports != nil
		}
	}
	return nil, false
}

func (s *IndexSolver) match(spec string) (IndexEntry, bool) {
	name, constraint, build := model.SplitSpec(model.StripChannel(spec))
	var best IndexEntry
	found := false
	for _, entry := range s.Entries {
		if entry.Name != name {
			continue
		}
		if constraint != "" && !satisfies(entry.Version, constraint) {
			continue
		}
		if build != "" && entry.Build != build {
			continue
		}
		if !found || version.CompareStrings(entry.Version, best.Version) > 0 {
			best = entry
			found = true
		}
	}
	return best, found
}

// satisfies checks a version against a comma-joined constraint
// expression supporting >=, >, <=, <, == and bare/star prefix matches.
func satisfies(candidate, constraint string) bool {
	for _, clause := range strings.Split(constraint, ",") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		switch {
		case strings.HasPrefix(clause, ">="):
			if version.CompareStrings(candidate, clause[2:]) < 0 {
				return false
			}
		case strings.HasPrefix(clause, "<="):
			if version.CompareStrings(candidate, clause[2:]) > 0 {
				return false
			}
		case strings.HasPrefix(clause, ">"):
			if version.CompareStrings(candidate, clause[1:]) <= 0 {
				return false
			}
		case strings.HasPrefix(clause, "<"):
			if version.CompareStrings(candidate, clause[1:]) >= 0 {
				return false
			}
		case strings.HasPrefix(clause, "=="):
			if version.CompareStrings(candidate, clause[2:]) != 0 {
				return false
			}
		case strings.HasSuffix(clause, ".*") || strings.HasSuffix(clause, "*"):
			prefix := strings.TrimSuffix(strings.TrimSuffix(clause, "*"), ".")
			if candidate != prefix && !strings.HasPrefix(candidate, prefix+".") {
				return false
			}
		default:
			if version.CompareStrings(candidate, clause) != 0 {
				return false
			}
		}
	}
	return true
}
