package exports

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/sourceplane/pkgforge/internal/model"
)

// ChannelData is a channel-level run-export document: package name to
// version to category mapping, consulted instead of per-package payload
// fetches when enabled.
type ChannelData struct {
	Packages map[string]map[string]model.RunExportSet `yaml:"packages" json:"packages"`
}

// ChannelCache memoizes channel data per channel URL. It is
// process-scoped state owned by the propagator, never a module
// singleton; Reset exists for test isolation.
type ChannelCache struct {
	fetch func(channel string) (ChannelData, error)
	cache *lru.Cache[string, ChannelData]
}

// NewChannelCache builds a cache around a channel-data fetcher.
func NewChannelCache(size int, fetch func(channel string) (ChannelData, error)) (*ChannelCache, error) {
	cache, err := lru.New[string, ChannelData](size)
	if err != nil {
		return nil, err
	}
	return &ChannelCache{fetch: fetch, cache: cache}, nil
}

// RunExports looks up the declared exports for one resolved record. The
// second result is false when the channel document does not cover the
// record, in which case the caller falls back to the package payload.
func (c *ChannelCache) RunExports(rec model.ResolvedRecord) (model.RunExportSet, bool) {
	if c == nil || rec.Channel == "" {
		return nil, false
	}
	data, cached := c.cache.Get(rec.Channel)
	if !cached {
		fetched, err := c.fetch(rec.Channel)
		if err != nil {
			// channel data is an optimization; fall back to payloads
			return nil, false
		}
		c.cache.Add(rec.Channel, fetched)
		data = fetched
	}
	versions, exists := data.Packages[rec.Name]
	if !exists {
		return nil, false
	}
	set, exists := versions[rec.Version]
	return set, exists
}

// Reset drops all cached channel documents.
func (c *ChannelCache) Reset() {
	if c != nil {
		c.cache.Purge()
	}
}
