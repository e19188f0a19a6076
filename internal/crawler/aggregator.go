package crawler

import (
	"slices"
	"sync"

	"github.com/nao1215/imagefinder/internal/model"
)

// Aggregator accumulates discovered image and favicon URLs with set semantics.
type Aggregator struct {
	mu       sync.Mutex
	images   map[string]struct{}
	favicons map[string]struct{}
}

// NewAggregator creates an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		images:   make(map[string]struct{}),
		favicons: make(map[string]struct{}),
	}
}

// Merge adds the given URLs. Adding a URL that is already present has no effect.
func (a *Aggregator) Merge(images, favicons []string) {
	if len(images) == 0 && len(favicons) == 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, u := range images {
		a.images[u] = struct{}{}
	}
	for _, u := range favicons {
		a.favicons[u] = struct{}{}
	}
}

// Snapshot returns a point-in-time copy of the aggregated URLs.
// The returned slices are sorted and owned by the caller.
func (a *Aggregator) Snapshot() model.CrawlResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	return model.CrawlResult{
		Images:   sortedKeys(a.images),
		Favicons: sortedKeys(a.favicons),
	}
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
