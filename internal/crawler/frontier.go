package crawler

import "sync"

// Frontier is the registry of URLs already claimed for fetching within one crawl.
// It is the single source of exactly-once semantics: a URL can be claimed
// at most once, no matter how many tasks discover it concurrently.
type Frontier struct {
	mu      sync.Mutex
	claimed map[string]struct{}
}

// NewFrontier creates an empty Frontier.
func NewFrontier() *Frontier {
	return &Frontier{
		claimed: make(map[string]struct{}),
	}
}

// TryClaim claims rawURL and reports whether this call was the first to do so.
// The lookup and the insertion happen under one lock acquisition.
// URLs are compared byte for byte; no normalization is applied.
func (f *Frontier) TryClaim(rawURL string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.claimed[rawURL]; ok {
		return false
	}
	f.claimed[rawURL] = struct{}{}
	return true
}

// Len returns the number of claimed URLs.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.claimed)
}
