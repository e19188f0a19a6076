package crawler

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
)

// fakeFetcher serves canned HTML from memory and counts calls per URL.
type fakeFetcher struct {
	pages map[string]string

	// block, when set for a URL, makes Fetch wait for it (or ctx) first.
	block func(ctx context.Context, rawURL string) error

	mu    sync.Mutex
	calls map[string]int
	total atomic.Int64
}

func newFakeFetcher(pages map[string]string) *fakeFetcher {
	return &fakeFetcher{
		pages: pages,
		calls: make(map[string]int),
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string) (*Document, error) {
	f.mu.Lock()
	f.calls[rawURL]++
	f.mu.Unlock()
	f.total.Add(1)

	if f.block != nil {
		if err := f.block(ctx, rawURL); err != nil {
			return nil, &FetchError{URL: rawURL, Err: err}
		}
	}

	body, ok := f.pages[rawURL]
	if !ok {
		return nil, &FetchError{URL: rawURL, StatusCode: 404, Err: ErrUnexpectedStatus}
	}
	return NewDocument(rawURL, strings.NewReader(body))
}

func (f *fakeFetcher) callCount(rawURL string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[rawURL]
}

func (f *fakeFetcher) calledURLs() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int, len(f.calls))
	for k, v := range f.calls {
		out[k] = v
	}
	return out
}
