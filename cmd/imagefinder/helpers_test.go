package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// testSite is a small website whose second image can be swapped between
// crawls.
type testSite struct {
	*httptest.Server
	swapped atomic.Bool
}

func newTestSite(t *testing.T) *testSite {
	t.Helper()

	site := &testSite{}
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head><link rel="shortcut icon" href="/fav.ico"></head>
<body><img src="a.jpg"><a href="sub/">sub</a><a href="https://other.invalid/">elsewhere</a></body></html>`)
	})
	mux.HandleFunc("/sub/", func(w http.ResponseWriter, _ *http.Request) {
		img := "b.jpg"
		if site.swapped.Load() {
			img = "c.jpg"
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<html><body><img src=%q><a href="/">home</a></body></html>`, img)
	})

	site.Server = httptest.NewServer(mux)
	t.Cleanup(site.Close)
	return site
}

// seed returns the seed URL of the site.
func (s *testSite) seed() string {
	return s.URL + "/"
}

// runCLI executes the root command with args and returns stdout and stderr.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}
