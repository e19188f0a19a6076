package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// quietSpider returns a Spider with no rate limiting and a discarded log.
func quietSpider(f Fetcher, opts ...SpiderOption) *Spider {
	base := []SpiderOption{
		WithDelay(0),
		WithWorkers(4),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	return NewSpider(f, append(base, opts...)...)
}

func TestSpiderCrawl(t *testing.T) {
	t.Parallel()

	t.Run("collects images and favicons across in-scope pages", func(t *testing.T) {
		t.Parallel()

		f := newFakeFetcher(map[string]string{
			"http://ex.com/": `<html><head><link rel="icon" href="/fav.ico"></head><body>
<img src="a.jpg"><a href="/sub">sub</a><a href="http://other.com/x">other</a></body></html>`,
			"http://ex.com/sub": `<html><body><img src="/sub/b.jpg"><a href="/">home</a></body></html>`,
		})

		report, err := quietSpider(f).Crawl(context.Background(), "http://ex.com/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		wantImages := []string{"http://ex.com/a.jpg", "http://ex.com/sub/b.jpg"}
		if !slices.Equal(report.Result.Images, wantImages) {
			t.Errorf("images: expected %v, got %v", wantImages, report.Result.Images)
		}
		if !slices.Equal(report.Result.Favicons, []string{"http://ex.com/fav.ico"}) {
			t.Errorf("favicons: unexpected %v", report.Result.Favicons)
		}
		if n := f.callCount("http://other.com/x"); n != 0 {
			t.Errorf("out-of-scope URL fetched %d times", n)
		}
		if n := f.callCount("http://ex.com/"); n != 1 {
			t.Errorf("seed fetched %d times, expected 1", n)
		}
		if report.Stats.PagesFetched != 2 {
			t.Errorf("expected 2 pages fetched, got %d", report.Stats.PagesFetched)
		}
		if report.Stats.LinksOutOfScope != 1 {
			t.Errorf("expected 1 out-of-scope link, got %d", report.Stats.LinksOutOfScope)
		}
		if report.Stats.TimedOut {
			t.Error("expected the crawl not to time out")
		}
	})

	t.Run("failed sub-page does not stop the crawl and is not retried", func(t *testing.T) {
		t.Parallel()

		f := newFakeFetcher(map[string]string{
			"http://ex.com/": `<html><body><img src="a.jpg">
<a href="/broken">broken</a><a href="/ok">ok</a></body></html>`,
			"http://ex.com/ok": `<html><body><img src="c.jpg"><a href="/broken">again</a></body></html>`,
		})

		report, err := quietSpider(f).Crawl(context.Background(), "http://ex.com/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		wantImages := []string{"http://ex.com/a.jpg", "http://ex.com/c.jpg"}
		if !slices.Equal(report.Result.Images, wantImages) {
			t.Errorf("images: expected %v, got %v", wantImages, report.Result.Images)
		}
		if n := f.callCount("http://ex.com/broken"); n != 1 {
			t.Errorf("broken page fetched %d times, expected exactly 1", n)
		}
		if report.Stats.PagesFailed != 1 {
			t.Errorf("expected 1 failed page, got %d", report.Stats.PagesFailed)
		}
		if report.Status() != "complete" {
			t.Errorf("expected status complete, got %q", report.Status())
		}
	})

	t.Run("cyclic link graph terminates", func(t *testing.T) {
		t.Parallel()

		f := newFakeFetcher(map[string]string{
			"http://ex.com/":  `<html><body><a href="/a">a</a></body></html>`,
			"http://ex.com/a": `<html><body><a href="/b">b</a><a href="/">root</a></body></html>`,
			"http://ex.com/b": `<html><body><a href="/a">a</a><a href="/b">self</a></body></html>`,
		})

		done := make(chan struct{})
		go func() {
			defer close(done)
			if _, err := quietSpider(f).Crawl(context.Background(), "http://ex.com/"); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("crawl of a cyclic graph did not terminate")
		}

		for u, n := range f.calledURLs() {
			if n != 1 {
				t.Errorf("%s fetched %d times", u, n)
			}
		}
	})

	t.Run("each URL is fetched at most once under heavy fan-in", func(t *testing.T) {
		t.Parallel()

		// Every page links to every other page, so each URL is discovered
		// by all pages concurrently.
		const n = 40
		var links strings.Builder
		for i := range n {
			fmt.Fprintf(&links, `<a href="/p%d">p%d</a>`, i, i)
		}
		pages := map[string]string{
			"http://ex.com/": "<html><body>" + links.String() + "</body></html>",
		}
		for i := range n {
			pages[fmt.Sprintf("http://ex.com/p%d", i)] = fmt.Sprintf(
				`<html><body><img src="/img%d.jpg"><img src="/shared.jpg">%s<a href="/">home</a></body></html>`,
				i, links.String())
		}
		f := newFakeFetcher(pages)

		report, err := quietSpider(f, WithWorkers(16)).Crawl(context.Background(), "http://ex.com/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if got := f.total.Load(); got != n+1 {
			t.Errorf("expected %d fetches, got %d", n+1, got)
		}
		for u, c := range f.calledURLs() {
			if c != 1 {
				t.Errorf("%s fetched %d times", u, c)
			}
		}
		// n distinct images plus the shared one, with no duplicates
		if len(report.Result.Images) != n+1 {
			t.Errorf("expected %d images, got %d", n+1, len(report.Result.Images))
		}
		if report.Stats.URLsClaimed != n+1 {
			t.Errorf("expected %d claimed URLs, got %d", n+1, report.Stats.URLsClaimed)
		}
	})

	t.Run("single worker with fan-out completes", func(t *testing.T) {
		t.Parallel()

		f := newFakeFetcher(map[string]string{
			"http://ex.com/":    `<html><body><a href="/a">a</a><a href="/b">b</a><a href="/c">c</a></body></html>`,
			"http://ex.com/a":   `<html><body><a href="/a/1">1</a><a href="/a/2">2</a></body></html>`,
			"http://ex.com/b":   `<html><body><img src="/b.jpg"></body></html>`,
			"http://ex.com/c":   `<html><body></body></html>`,
			"http://ex.com/a/1": `<html><body><img src="/a1.jpg"></body></html>`,
			"http://ex.com/a/2": `<html><body></body></html>`,
		})

		report, err := quietSpider(f, WithWorkers(1)).Crawl(context.Background(), "http://ex.com/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.Stats.PagesFetched != 6 {
			t.Errorf("expected 6 pages, got %d", report.Stats.PagesFetched)
		}
		if len(report.Result.Images) != 2 {
			t.Errorf("expected 2 images, got %v", report.Result.Images)
		}
	})

	t.Run("scope is a literal prefix of the seed", func(t *testing.T) {
		t.Parallel()

		f := newFakeFetcher(map[string]string{
			"http://ex.com/blog": `<html><body>
<a href="http://ex.com/blog/post">post</a>
<a href="http://ex.com/blogroll">roll</a>
<a href="http://ex.com/about">about</a></body></html>`,
			"http://ex.com/blog/post": `<html></html>`,
			"http://ex.com/blogroll":  `<html></html>`,
		})

		if _, err := quietSpider(f).Crawl(context.Background(), "http://ex.com/blog"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if f.callCount("http://ex.com/blog/post") != 1 || f.callCount("http://ex.com/blogroll") != 1 {
			t.Error("expected both prefixed URLs to be fetched")
		}
		if f.callCount("http://ex.com/about") != 0 {
			t.Error("expected http://ex.com/about to be out of scope")
		}
	})

	t.Run("unreachable seed returns ErrSeedUnreachable", func(t *testing.T) {
		t.Parallel()

		f := newFakeFetcher(map[string]string{})

		report, err := quietSpider(f).Crawl(context.Background(), "http://ex.com/")
		if !errors.Is(err, ErrSeedUnreachable) {
			t.Fatalf("expected ErrSeedUnreachable, got %v", err)
		}
		if !errors.Is(err, ErrUnexpectedStatus) {
			t.Errorf("expected the fetch cause to be wrapped, got %v", err)
		}
		if report == nil {
			t.Fatal("expected a report alongside the error")
		}
		if !report.Result.IsEmpty() {
			t.Errorf("expected an empty result, got %+v", report.Result)
		}
		if report.Status() != "failed" {
			t.Errorf("expected status failed, got %q", report.Status())
		}
	})

	t.Run("invalid seed", func(t *testing.T) {
		t.Parallel()

		for _, seed := range []string{"", "/relative", "ftp://ex.com/", "ex.com", "http://", "http://[::1"} {
			_, err := quietSpider(newFakeFetcher(nil)).Crawl(context.Background(), seed)
			if !errors.Is(err, ErrInvalidSeed) {
				t.Errorf("seed %q: expected ErrInvalidSeed, got %v", seed, err)
			}
		}
	})

	t.Run("timeout returns partial results", func(t *testing.T) {
		t.Parallel()

		f := newFakeFetcher(map[string]string{
			"http://ex.com/":     `<html><body><img src="a.jpg"><a href="/slow">slow</a></body></html>`,
			"http://ex.com/slow": `<html><body><img src="never.jpg"></body></html>`,
		})
		f.block = func(ctx context.Context, rawURL string) error {
			if rawURL != "http://ex.com/slow" {
				return nil
			}
			<-ctx.Done()
			return ctx.Err()
		}

		spider := quietSpider(f, WithCrawlTimeout(100*time.Millisecond), WithGracePeriod(time.Second))
		report, err := spider.Crawl(context.Background(), "http://ex.com/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !report.Stats.TimedOut {
			t.Error("expected TimedOut to be set")
		}
		if !slices.Equal(report.Result.Images, []string{"http://ex.com/a.jpg"}) {
			t.Errorf("expected the seed's image only, got %v", report.Result.Images)
		}
		if report.Status() != "partial" {
			t.Errorf("expected status partial, got %q", report.Status())
		}
		if report.Stats.PagesFailed != 0 {
			t.Errorf("expected the interrupted fetch not to count as failed, got %d", report.Stats.PagesFailed)
		}
		if report.Stats.TasksDropped != 1 {
			t.Errorf("expected the interrupted fetch to count as dropped, got %d", report.Stats.TasksDropped)
		}
	})

	t.Run("returns after the grace period even if tasks ignore cancellation", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		t.Cleanup(func() { close(release) })

		f := newFakeFetcher(map[string]string{
			"http://ex.com/":      `<html><body><img src="a.jpg"><a href="/stuck">stuck</a></body></html>`,
			"http://ex.com/stuck": `<html></html>`,
		})
		f.block = func(_ context.Context, rawURL string) error {
			if rawURL == "http://ex.com/stuck" {
				<-release
			}
			return nil
		}

		spider := quietSpider(f, WithCrawlTimeout(50*time.Millisecond), WithGracePeriod(50*time.Millisecond))
		start := time.Now()
		report, err := spider.Crawl(context.Background(), "http://ex.com/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if elapsed := time.Since(start); elapsed > 2*time.Second {
			t.Errorf("expected a forced return, took %v", elapsed)
		}
		if !report.Stats.TimedOut {
			t.Error("expected TimedOut to be set")
		}
		if len(report.Result.Images) != 1 {
			t.Errorf("expected partial results, got %v", report.Result.Images)
		}
	})

	t.Run("cancelled before the seed is fetched", func(t *testing.T) {
		t.Parallel()

		f := newFakeFetcher(map[string]string{"http://ex.com/": `<html></html>`})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := quietSpider(f).Crawl(ctx, "http://ex.com/")
		if !errors.Is(err, ErrSeedUnreachable) {
			t.Fatalf("expected ErrSeedUnreachable, got %v", err)
		}
		if f.total.Load() != 0 {
			t.Errorf("expected no fetches, got %d", f.total.Load())
		}
	})

	t.Run("rate limiter is consulted before every fetch", func(t *testing.T) {
		t.Parallel()

		f := newFakeFetcher(map[string]string{
			"http://ex.com/":  `<html><body><a href="/a">a</a><a href="/b">b</a></body></html>`,
			"http://ex.com/a": `<html></html>`,
			"http://ex.com/b": `<html></html>`,
		})
		limiter := &countingLimiter{}

		if _, err := quietSpider(f, WithLimiter(limiter)).Crawl(context.Background(), "http://ex.com/"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if limiter.waits.Load() != 3 {
			t.Errorf("expected 3 limiter waits, got %d", limiter.waits.Load())
		}
	})

	t.Run("delay occupies only the waiting worker", func(t *testing.T) {
		t.Parallel()

		const pages = 5
		const delay = 200 * time.Millisecond

		site := map[string]string{}
		var seedBody strings.Builder
		seedBody.WriteString("<html><body>")
		for i := range pages {
			pageURL := fmt.Sprintf("http://ex.com/p%d", i)
			site[pageURL] = fmt.Sprintf(`<html><body><img src="/%d.jpg"></body></html>`, i)
			fmt.Fprintf(&seedBody, `<a href="%s">p</a>`, pageURL)
		}
		seedBody.WriteString("</body></html>")
		site["http://ex.com/"] = seedBody.String()
		f := newFakeFetcher(site)

		spider := quietSpider(f, WithWorkers(pages), WithDelay(delay))
		start := time.Now()
		report, err := spider.Crawl(context.Background(), "http://ex.com/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		elapsed := time.Since(start)

		if len(report.Result.Images) != pages {
			t.Errorf("expected %d images, got %v", pages, report.Result.Images)
		}
		// The seed waits once, then every sub-page waits in parallel.
		// Serialized waits would take (pages+1)*delay.
		if elapsed >= 3*delay {
			t.Errorf("crawl took %v, expected well under %v", elapsed, time.Duration(pages+1)*delay)
		}
	})

	t.Run("limiter factory builds one limiter per crawl", func(t *testing.T) {
		t.Parallel()

		var built atomic.Int64
		spider := quietSpider(newFakeFetcher(map[string]string{"http://ex.com/": `<html></html>`}),
			WithLimiterFactory(func() Limiter {
				built.Add(1)
				return NewSharedLimiter(0)
			}))

		for range 3 {
			if _, err := spider.Crawl(context.Background(), "http://ex.com/"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if built.Load() != 3 {
			t.Errorf("expected 3 limiters, got %d", built.Load())
		}
	})
}

type countingLimiter struct {
	waits atomic.Int64
}

func (l *countingLimiter) Wait(ctx context.Context) error {
	l.waits.Add(1)
	return ctx.Err()
}

func TestSpiderRunCrawl(t *testing.T) {
	t.Parallel()

	t.Run("crawls a live site over HTTP", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/" {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "text/html")
			//nolint:errcheck // test handler
			_, _ = w.Write([]byte(`<html><head><link rel="shortcut icon" href="/favicon.ico"></head>
<body><img src="/a.jpg"><a href="/sub/">sub</a><a href="/missing">missing</a><a href="/logo.png">logo</a></body></html>`))
		})
		mux.HandleFunc("/sub/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<html><body><img src="b.jpg"><img src="/a.jpg"></body></html>`)) //nolint:errcheck
		})
		mux.HandleFunc("/logo.png", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'}) //nolint:errcheck
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		spider := quietSpider(NewHTTPFetcher(WithHTTPClient(server.Client())))
		result, err := spider.RunCrawl(context.Background(), server.URL+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		wantImages := []string{server.URL + "/a.jpg", server.URL + "/sub/b.jpg"}
		if !slices.Equal(result.Images, wantImages) {
			t.Errorf("images: expected %v, got %v", wantImages, result.Images)
		}
		if !slices.Equal(result.Favicons, []string{server.URL + "/favicon.ico"}) {
			t.Errorf("favicons: unexpected %v", result.Favicons)
		}
	})

	t.Run("unreachable seed yields an empty result and an error", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.NotFoundHandler())
		defer server.Close()

		spider := quietSpider(NewHTTPFetcher(WithHTTPClient(server.Client())))
		result, err := spider.RunCrawl(context.Background(), server.URL+"/")
		if !errors.Is(err, ErrSeedUnreachable) {
			t.Fatalf("expected ErrSeedUnreachable, got %v", err)
		}
		if result.Images == nil || result.Favicons == nil {
			t.Error("expected non-nil slices")
		}
	})

	t.Run("invalid seed yields an empty result", func(t *testing.T) {
		t.Parallel()

		result, err := quietSpider(newFakeFetcher(nil)).RunCrawl(context.Background(), "not a url")
		if !errors.Is(err, ErrInvalidSeed) {
			t.Fatalf("expected ErrInvalidSeed, got %v", err)
		}
		if !result.IsEmpty() {
			t.Errorf("expected an empty result, got %+v", result)
		}
	})
}
