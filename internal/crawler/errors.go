package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSeed is returned when the seed is not an absolute http(s) URL.
	ErrInvalidSeed = errors.New("invalid seed URL: must be an absolute http or https URL")

	// ErrSeedUnreachable is returned when the seed page itself could not be
	// fetched. It lets callers tell "crawled, found nothing" apart from
	// "could not start".
	ErrSeedUnreachable = errors.New("seed URL unreachable")

	// ErrNotHTML is returned by HTTPFetcher when a response is not an HTML document.
	ErrNotHTML = errors.New("response is not an HTML document")

	// ErrUnexpectedStatus is returned by HTTPFetcher for responses with status >= 400.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")

	// ErrUnknownRatePolicy is returned by NewLimiter for an unsupported policy name.
	ErrUnknownRatePolicy = errors.New("unknown rate policy")
)

// FetchError records why a single URL could not be fetched.
type FetchError struct {
	// URL is the URL that failed.
	URL string

	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}
