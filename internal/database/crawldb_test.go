package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/imagefinder/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *CrawlDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

// newReport builds a finished report for seed with the given URLs.
func newReport(seed string, finished time.Time, images, favicons []string) *model.CrawlReport {
	report := model.NewCrawlReport(seed)
	report.StartedAt = finished.Add(-time.Second)
	report.FinishedAt = finished
	report.Result = model.CrawlResult{Images: images, Favicons: favicons}
	report.Stats.PagesFetched = 3
	report.PerformedSteps = []string{"crawl"}
	return report
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		dbPath := filepath.Join(dbDir, DBFileName)
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if db.Path() != dbPath {
			t.Errorf("Path() = %q, want %q", db.Path(), dbPath)
		}
	})

	t.Run("CreateIfNotExists=false fails for missing database", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "nonexistent-db")
		_, err := Open(dbDir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err == nil {
			t.Fatal("expected error when CreateIfNotExists=false and database does not exist")
		}
		if !strings.Contains(err.Error(), "database not found") {
			t.Errorf("unexpected error message: %v", err)
		}
		if _, statErr := os.Stat(dbDir); !os.IsNotExist(statErr) {
			t.Error("database directory should not have been created")
		}
	})

	t.Run("CreateIfNotExists=false with directory but no db file", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "empty-dir")
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			t.Fatalf("failed to create directory: %v", err)
		}
		if _, err := Open(dbDir, Options{}); err == nil {
			t.Fatal("expected error when directory exists but database file does not")
		}
	})

	t.Run("CreateIfNotExists=false opens existing database", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "existing-db")
		ctx := context.Background()

		db1, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		report := newReport("https://example.com/", time.Now(), []string{"https://example.com/a.png"}, nil)
		if _, err := db1.SaveReport(ctx, report); err != nil {
			t.Fatalf("SaveReport() error = %v", err)
		}
		db1.Close()

		db2, err := Open(dbDir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to open existing database: %v", err)
		}
		defer db2.Close()

		seeds, err := db2.ListSeeds(ctx)
		if err != nil {
			t.Fatalf("ListSeeds() error = %v", err)
		}
		if len(seeds) != 1 || seeds[0] != "https://example.com/" {
			t.Errorf("ListSeeds() = %v, want the saved seed", seeds)
		}
	})
}

func TestDefaultOptions(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	if !opts.CreateIfNotExists {
		t.Error("expected CreateIfNotExists to be true by default")
	}
	if !opts.EnableWAL {
		t.Error("expected EnableWAL to be true by default")
	}
}

func TestSaveAndGetReport(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	finished := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	report := newReport("https://example.com/",
		finished,
		[]string{"https://example.com/b.png", "https://example.com/a.png"},
		[]string{"https://example.com/favicon.ico"},
	)

	id, err := db.SaveReport(ctx, report)
	if err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}
	if id <= 0 {
		t.Fatalf("SaveReport() id = %d, want positive", id)
	}

	got, err := db.GetReportByID(ctx, id)
	if err != nil {
		t.Fatalf("GetReportByID() error = %v", err)
	}
	if got.Seed != report.Seed {
		t.Errorf("Seed = %q, want %q", got.Seed, report.Seed)
	}
	if !got.FinishedAt.Equal(finished) {
		t.Errorf("FinishedAt = %v, want %v", got.FinishedAt, finished)
	}
	if len(got.Result.Images) != 2 || got.Result.Images[0] != "https://example.com/a.png" {
		t.Errorf("Images = %v, want sorted saved images", got.Result.Images)
	}
	if len(got.Result.Favicons) != 1 {
		t.Errorf("Favicons = %v, want 1 favicon", got.Result.Favicons)
	}
	if got.Stats.PagesFetched != 3 {
		t.Errorf("PagesFetched = %d, want 3", got.Stats.PagesFetched)
	}
}

func TestGetReportByIDNotFound(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	_, err := db.GetReportByID(context.Background(), 42)
	if !errors.Is(err, ErrReportNotFound) {
		t.Errorf("GetReportByID() error = %v, want ErrReportNotFound", err)
	}
}

func TestGetLatestReports(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	seed := "https://example.com/"
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := range 3 {
		images := []string{"https://example.com/" + string(rune('a'+i)) + ".png"}
		// Sub-second offsets check that ordering is chronological, not lexical.
		finished := base.Add(time.Duration(i) * 500 * time.Millisecond)
		if _, err := db.SaveReport(ctx, newReport(seed, finished, images, nil)); err != nil {
			t.Fatalf("SaveReport() error = %v", err)
		}
	}
	if _, err := db.SaveReport(ctx, newReport("https://other.example/", base, nil, nil)); err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}

	reports, err := db.GetLatestReports(ctx, seed, 2)
	if err != nil {
		t.Fatalf("GetLatestReports() error = %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("GetLatestReports() returned %d reports, want 2", len(reports))
	}
	if reports[0].Result.Images[0] != "https://example.com/c.png" {
		t.Errorf("newest report images = %v, want c.png", reports[0].Result.Images)
	}
	if reports[1].Result.Images[0] != "https://example.com/b.png" {
		t.Errorf("second report images = %v, want b.png", reports[1].Result.Images)
	}

	none, err := db.GetLatestReports(ctx, "https://unknown.example/", 5)
	if err != nil {
		t.Fatalf("GetLatestReports() error = %v", err)
	}
	if len(none) != 0 {
		t.Errorf("GetLatestReports() for unknown seed = %d reports, want 0", len(none))
	}
}

func TestListSeeds(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	seeds, err := db.ListSeeds(ctx)
	if err != nil {
		t.Fatalf("ListSeeds() error = %v", err)
	}
	if len(seeds) != 0 {
		t.Errorf("ListSeeds() on empty db = %v, want empty", seeds)
	}

	for _, seed := range []string{"https://b.example/", "https://a.example/", "https://b.example/"} {
		if _, err := db.SaveReport(ctx, newReport(seed, time.Now(), nil, nil)); err != nil {
			t.Fatalf("SaveReport() error = %v", err)
		}
	}

	seeds, err = db.ListSeeds(ctx)
	if err != nil {
		t.Fatalf("ListSeeds() error = %v", err)
	}
	want := []string{"https://a.example/", "https://b.example/"}
	if len(seeds) != len(want) {
		t.Fatalf("ListSeeds() = %v, want %v", seeds, want)
	}
	for i := range want {
		if seeds[i] != want[i] {
			t.Errorf("ListSeeds()[%d] = %q, want %q", i, seeds[i], want[i])
		}
	}
}

func TestGetHistoryWithMetadata(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	seed := "https://example.com/"
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := newReport(seed, base, []string{"https://example.com/a.png"}, nil)
	second := newReport(seed, base.Add(time.Hour),
		[]string{"https://example.com/a.png", "https://example.com/b.png"},
		[]string{"https://example.com/favicon.ico"},
	)
	second.Stats.TimedOut = true

	firstID, err := db.SaveReport(ctx, first)
	if err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}
	secondID, err := db.SaveReport(ctx, second)
	if err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}

	history, err := db.GetHistoryWithMetadata(ctx, seed)
	if err != nil {
		t.Fatalf("GetHistoryWithMetadata() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}

	newest := history[0]
	if newest.ID != secondID {
		t.Errorf("newest ID = %d, want %d", newest.ID, secondID)
	}
	if newest.ImageCount != 2 || newest.FaviconCount != 1 {
		t.Errorf("newest counts = %d/%d, want 2/1", newest.ImageCount, newest.FaviconCount)
	}
	if !newest.TimedOut {
		t.Error("newest TimedOut = false, want true")
	}
	if !newest.Timestamp.Equal(base.Add(time.Hour)) {
		t.Errorf("newest Timestamp = %v, want %v", newest.Timestamp, base.Add(time.Hour))
	}
	if newest.Fingerprint != Fingerprint(second.Result) {
		t.Error("newest fingerprint does not match the saved result")
	}

	oldest := history[1]
	if oldest.ID != firstID {
		t.Errorf("oldest ID = %d, want %d", oldest.ID, firstID)
	}
	if oldest.TimedOut {
		t.Error("oldest TimedOut = true, want false")
	}
	if oldest.PagesFetched != 3 {
		t.Errorf("oldest PagesFetched = %d, want 3", oldest.PagesFetched)
	}
}

func TestGetSightings(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	seed := "https://example.com/"
	first := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	second := first.Add(24 * time.Hour)

	if _, err := db.SaveReport(ctx, newReport(seed, first,
		[]string{"https://example.com/a.png"},
		[]string{"https://example.com/favicon.ico"},
	)); err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}
	if _, err := db.SaveReport(ctx, newReport(seed, second,
		[]string{"https://example.com/a.png", "https://example.com/b.png"},
		nil,
	)); err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}

	sightings, err := db.GetSightings(ctx, seed)
	if err != nil {
		t.Fatalf("GetSightings() error = %v", err)
	}
	if len(sightings) != 3 {
		t.Fatalf("GetSightings() returned %d sightings, want 3: %+v", len(sightings), sightings)
	}

	byURL := make(map[string]Sighting, len(sightings))
	for _, s := range sightings {
		byURL[s.URL] = s
	}

	a := byURL["https://example.com/a.png"]
	if a.Kind != model.KindImage {
		t.Errorf("a.png kind = %q, want %q", a.Kind, model.KindImage)
	}
	if !a.FirstSeen.Equal(first) || !a.LastSeen.Equal(second) {
		t.Errorf("a.png seen %v..%v, want %v..%v", a.FirstSeen, a.LastSeen, first, second)
	}

	b := byURL["https://example.com/b.png"]
	if !b.FirstSeen.Equal(second) {
		t.Errorf("b.png first seen %v, want %v", b.FirstSeen, second)
	}

	fav := byURL["https://example.com/favicon.ico"]
	if fav.Kind != model.KindFavicon {
		t.Errorf("favicon kind = %q, want %q", fav.Kind, model.KindFavicon)
	}
	if !fav.LastSeen.Equal(first) {
		t.Errorf("favicon last seen %v, want %v", fav.LastSeen, first)
	}
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	a := model.CrawlResult{
		Images:   []string{"https://example.com/b.png", "https://example.com/a.png"},
		Favicons: []string{"https://example.com/favicon.ico"},
	}
	b := model.CrawlResult{
		Images:   []string{"https://example.com/a.png", "https://example.com/b.png", "https://example.com/a.png"},
		Favicons: []string{"https://example.com/favicon.ico"},
	}
	c := model.CrawlResult{
		Images: []string{"https://example.com/a.png"},
	}

	if Fingerprint(a) != Fingerprint(b) {
		t.Error("fingerprint should ignore order and duplicates")
	}
	if Fingerprint(a) == Fingerprint(c) {
		t.Error("different results should have different fingerprints")
	}
	if len(Fingerprint(c)) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex characters", len(Fingerprint(c)))
	}
	if Fingerprint(model.CrawlResult{}) != Fingerprint(model.NewCrawlResult()) {
		t.Error("nil and empty results should have the same fingerprint")
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	want := time.Date(2026, 3, 1, 12, 30, 45, 0, time.UTC)
	tests := []struct {
		name  string
		input string
	}{
		{name: "fixed layout", input: want.Format(timestampLayout)},
		{name: "RFC3339", input: "2026-03-01T12:30:45Z"},
		{name: "sqlite datetime", input: "2026-03-01 12:30:45"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := parseTimestamp(tt.input); !got.Equal(want) {
				t.Errorf("parseTimestamp(%q) = %v, want %v", tt.input, got, want)
			}
		})
	}

	if got := parseTimestamp("not a time"); !got.IsZero() {
		t.Errorf("parseTimestamp(invalid) = %v, want zero", got)
	}
}
