package model

import (
	"slices"
)

// Kind is the category of a discovered image URL.
type Kind string

const (
	// KindImage is an image referenced by an <img src> element.
	KindImage Kind = "images"

	// KindFavicon is a site icon referenced by a head <link rel="icon"> or
	// <link rel="shortcut icon"> element.
	KindFavicon Kind = "favicons"
)

// String returns the category name used as the JSON key.
func (k Kind) String() string {
	return string(k)
}

// ImageRecord is a single discovered URL together with its category.
type ImageRecord struct {
	// URL is the absolute URL of the image.
	URL string `json:"url"`

	// Kind is the category the URL was found under.
	Kind Kind `json:"kind"`
}

// CrawlResult maps each category to the absolute URLs discovered for it.
// It serializes to an object with exactly two keys, "images" and "favicons".
// Both slices are non-nil so that empty categories encode as [] rather than null.
type CrawlResult struct {
	// Images contains every <img src> URL found on crawled pages.
	Images []string `json:"images"`

	// Favicons contains every favicon URL found in crawled page heads.
	Favicons []string `json:"favicons"`
}

// NewCrawlResult creates an empty CrawlResult with non-nil slices.
func NewCrawlResult() CrawlResult {
	return CrawlResult{
		Images:   make([]string, 0),
		Favicons: make([]string, 0),
	}
}

// Get returns the URLs stored under the given category.
func (r CrawlResult) Get(kind Kind) []string {
	switch kind {
	case KindImage:
		return r.Images
	case KindFavicon:
		return r.Favicons
	default:
		return nil
	}
}

// Records flattens the result into a list of ImageRecords,
// images first and then favicons.
func (r CrawlResult) Records() []ImageRecord {
	records := make([]ImageRecord, 0, len(r.Images)+len(r.Favicons))
	for _, u := range r.Images {
		records = append(records, ImageRecord{URL: u, Kind: KindImage})
	}
	for _, u := range r.Favicons {
		records = append(records, ImageRecord{URL: u, Kind: KindFavicon})
	}
	return records
}

// Total returns the number of URLs across both categories.
func (r CrawlResult) Total() int {
	return len(r.Images) + len(r.Favicons)
}

// IsEmpty reports whether nothing was found.
func (r CrawlResult) IsEmpty() bool {
	return r.Total() == 0
}

// Normalize returns a copy with non-nil, sorted and deduplicated slices.
// Results decoded from JSON or built by hand go through this before they
// are compared or archived.
func (r CrawlResult) Normalize() CrawlResult {
	return CrawlResult{
		Images:   sortedUnique(r.Images),
		Favicons: sortedUnique(r.Favicons),
	}
}

func sortedUnique(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	slices.Sort(out)
	return slices.Compact(out)
}

// ResultDiff describes how a result changed between two crawls.
type ResultDiff struct {
	// AddedImages are image URLs present only in the newer result.
	AddedImages []string `json:"added_images"`

	// RemovedImages are image URLs present only in the older result.
	RemovedImages []string `json:"removed_images"`

	// AddedFavicons are favicon URLs present only in the newer result.
	AddedFavicons []string `json:"added_favicons"`

	// RemovedFavicons are favicon URLs present only in the older result.
	RemovedFavicons []string `json:"removed_favicons"`
}

// Diff compares an older result with a newer one.
func Diff(older, newer CrawlResult) ResultDiff {
	return ResultDiff{
		AddedImages:     difference(newer.Images, older.Images),
		RemovedImages:   difference(older.Images, newer.Images),
		AddedFavicons:   difference(newer.Favicons, older.Favicons),
		RemovedFavicons: difference(older.Favicons, newer.Favicons),
	}
}

// HasChanges reports whether any URL was added or removed.
func (d ResultDiff) HasChanges() bool {
	return len(d.AddedImages)+len(d.RemovedImages)+len(d.AddedFavicons)+len(d.RemovedFavicons) > 0
}

// difference returns the sorted elements of a that are not in b.
func difference(a, b []string) []string {
	exclude := make(map[string]struct{}, len(b))
	for _, s := range b {
		exclude[s] = struct{}{}
	}

	out := make([]string, 0)
	for _, s := range a {
		if _, ok := exclude[s]; ok {
			continue
		}
		exclude[s] = struct{}{}
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}
