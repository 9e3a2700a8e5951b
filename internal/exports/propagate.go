package exports

import (
	"log/slog"

	"github.com/sourceplane/pkgforge/internal/model"
)

// PackageLocator finds the extracted payload directory for a resolved
// record. Download and extraction are the job of an external
// collaborator; the propagator only reads what is already on disk.
type PackageLocator interface {
	Locate(rec model.ResolvedRecord) (string, error)
}

// Propagator collects the declared run exports of the resolved packages
// in one environment. Sources are consulted in order: the channel-level
// cache when enabled, an injected per-record source (e.g. a solver
// index), then the package's own payload files.
type Propagator struct {
	Channel *ChannelCache
	Record  func(rec model.ResolvedRecord) (model.RunExportSet, bool)
	Locator PackageLocator
	Log     *slog.Logger
}

// Collect merges the filtered run-export sets of every record that is
// an explicit requirement (not a transitively pulled dependency) and
// not on the ignore-by-name list. Merging concatenates category by
// category; dedup happens later when specs are unioned into a
// requirements section.
func (p *Propagator) Collect(records []model.ResolvedRecord, explicitSpecs, ignoreNames, ignoreSpecs []string) (model.RunExportSet, error) {
	explicit := make(map[string]bool, len(explicitSpecs))
	for _, spec := range explicitSpecs {
		explicit[model.SpecName(spec)] = true
	}
	ignored := make(map[string]bool, len(ignoreNames))
	ignoreAll := false
	for _, name := range ignoreNames {
		if name == "*" {
			ignoreAll = true
		}
		ignored[model.SpecName(name)] = true
	}

	merged := model.RunExportSet{}
	for _, rec := range records {
		if !explicit[rec.Name] || ignoreAll || ignored[rec.Name] {
			continue
		}
		set, err := p.exportsFor(rec)
		if err != nil {
			return nil, err
		}
		set = Filter(set, ignoreSpecs)
		if len(set) > 0 {
			merged = merged.Merge(set)
		}
	}
	return merged, nil
}

func (p *Propagator) exportsFor(rec model.ResolvedRecord) (model.RunExportSet, error) {
	if set, found := p.Channel.RunExports(rec); found {
		return set, nil
	}
	if p.Record != nil {
		if set, found := p.Record(rec); found {
			return set, nil
		}
	}
	if p.Locator == nil {
		return nil, nil
	}
	pkgDir, err := p.Locator.Locate(rec)
	if err != nil || pkgDir == "" {
		if p.Log != nil {
			p.Log.Debug("package payload unavailable, assuming no run exports", "package", rec.Dist())
		}
		return nil, nil
	}
	return ReadFromPackage(pkgDir, rec.Name)
}
