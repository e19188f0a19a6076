package database

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/blake2b"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/imagefinder/internal/model"
)

// DBFileName is the name of the archive file inside the database directory.
const DBFileName = "imagefinder.db"

// timestampLayout has fixed-width fractional seconds so stored timestamps
// sort lexically in chronological order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrReportNotFound is returned when no archived report matches a query.
var ErrReportNotFound = errors.New("report not found")

// CrawlDB is the SQLite archive of crawl reports.
type CrawlDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file if missing.
	// Read-only commands such as history leave it false so they never
	// create an empty archive.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging, which lets concurrent batch
	// crawls write while history readers query.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the archive in dbDir.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	} else {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s: %w", dbPath, err)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	}

	// mode=rw refuses to create a missing file; mode=rwc allows it.
	// busy_timeout lets readers such as history wait for a running crawl's write.
	dsn := dbPath + "?mode=rw&_pragma=busy_timeout(5000)"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite supports a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close() //nolint:errcheck
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close() //nolint:errcheck
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Path returns the path of the database file.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

func (cdb *CrawlDB) createTables() error {
	schema := `
	-- One row per finished crawl; the full report is kept as JSON
	CREATE TABLE IF NOT EXISTS crawl_reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		seed TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		report_json TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		image_count INTEGER NOT NULL DEFAULT 0,
		favicon_count INTEGER NOT NULL DEFAULT 0,
		pages_fetched INTEGER NOT NULL DEFAULT 0,
		timed_out INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_reports_seed ON crawl_reports(seed);
	CREATE INDEX IF NOT EXISTS idx_reports_timestamp ON crawl_reports(timestamp);

	-- One row per URL ever found under a seed
	CREATE TABLE IF NOT EXISTS image_sightings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		seed TEXT NOT NULL,
		url TEXT NOT NULL,
		kind TEXT NOT NULL,
		first_seen DATETIME NOT NULL,
		last_seen DATETIME NOT NULL,
		UNIQUE(seed, url, kind)
	);

	CREATE INDEX IF NOT EXISTS idx_sightings_seed ON image_sightings(seed);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// Fingerprint returns a stable hex digest of a result. Two results with the
// same URLs have the same fingerprint regardless of order or duplicates.
func Fingerprint(result model.CrawlResult) string {
	// Marshalling a struct of string slices cannot fail.
	data, _ := json.Marshal(result.Normalize()) //nolint:errcheck,errchkjson
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SaveReport archives a report and updates the sightings of its URLs.
// It returns the ID of the new report row.
func (cdb *CrawlDB) SaveReport(ctx context.Context, report *model.CrawlReport) (int64, error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	timestamp := report.FinishedAt
	if timestamp.IsZero() {
		timestamp = time.Now()
	}
	ts := timestamp.UTC().Format(timestampLayout)

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	result, err := tx.ExecContext(ctx, `
	INSERT INTO crawl_reports (seed, timestamp, report_json, fingerprint, image_count, favicon_count, pages_fetched, timed_out)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.Seed,
		ts,
		string(reportJSON),
		Fingerprint(report.Result),
		len(report.Result.Images),
		len(report.Result.Favicons),
		report.Stats.PagesFetched,
		report.Stats.TimedOut,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save report: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get report ID: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO image_sightings (seed, url, kind, first_seen, last_seen)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(seed, url, kind) DO UPDATE SET
		last_seen = excluded.last_seen
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare sighting insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range report.Result.Records() {
		if _, err := stmt.ExecContext(ctx, report.Seed, rec.URL, string(rec.Kind), ts, ts); err != nil {
			return 0, fmt.Errorf("failed to record sighting of %s: %w", rec.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit report: %w", err)
	}
	return id, nil
}

// GetReportByID retrieves an archived report by its ID.
// It returns ErrReportNotFound if no such report exists.
func (cdb *CrawlDB) GetReportByID(ctx context.Context, id int64) (*model.CrawlReport, error) {
	var reportJSON string
	err := cdb.db.QueryRowContext(ctx, `SELECT report_json FROM crawl_reports WHERE id = ?`, id).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrReportNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return decodeReport(reportJSON)
}

// GetLatestReports returns up to limit reports for seed, newest first.
func (cdb *CrawlDB) GetLatestReports(ctx context.Context, seed string, limit int) ([]*model.CrawlReport, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT report_json FROM crawl_reports
	WHERE seed = ?
	ORDER BY timestamp DESC, id DESC
	LIMIT ?
	`, seed, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get reports: %w", err)
	}
	defer rows.Close()

	reports := make([]*model.CrawlReport, 0, limit)
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		report, err := decodeReport(reportJSON)
		if err != nil {
			continue // Skip malformed reports
		}
		reports = append(reports, report)
	}

	return reports, rows.Err()
}

// ListSeeds returns every seed with at least one archived report, sorted.
func (cdb *CrawlDB) ListSeeds(ctx context.Context) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx, `SELECT DISTINCT seed FROM crawl_reports ORDER BY seed`)
	if err != nil {
		return nil, fmt.Errorf("failed to list seeds: %w", err)
	}
	defer rows.Close()

	seeds := make([]string, 0)
	for rows.Next() {
		var seed string
		if err := rows.Scan(&seed); err != nil {
			return nil, fmt.Errorf("failed to scan seed: %w", err)
		}
		seeds = append(seeds, seed)
	}

	return seeds, rows.Err()
}

// ReportMetadata summarizes an archived report without decoding it.
type ReportMetadata struct {
	// ID is the database ID of the report.
	ID int64

	// Seed is the crawled seed URL.
	Seed string

	// Timestamp is when the crawl finished.
	Timestamp time.Time

	// Fingerprint identifies the result's URL set.
	Fingerprint string

	// ImageCount and FaviconCount are the sizes of the result lists.
	ImageCount   int
	FaviconCount int

	// PagesFetched is the number of pages the crawl fetched.
	PagesFetched int64

	// TimedOut reports whether the result is partial.
	TimedOut bool
}

// GetHistoryWithMetadata returns the metadata of every report for seed,
// newest first.
func (cdb *CrawlDB) GetHistoryWithMetadata(ctx context.Context, seed string) ([]ReportMetadata, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT id, seed, timestamp, fingerprint, image_count, favicon_count, pages_fetched, timed_out
	FROM crawl_reports
	WHERE seed = ?
	ORDER BY timestamp DESC, id DESC
	`, seed)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	results := make([]ReportMetadata, 0)
	for rows.Next() {
		var meta ReportMetadata
		var timestamp string

		if err := rows.Scan(
			&meta.ID,
			&meta.Seed,
			&timestamp,
			&meta.Fingerprint,
			&meta.ImageCount,
			&meta.FaviconCount,
			&meta.PagesFetched,
			&meta.TimedOut,
		); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}
		meta.Timestamp = parseTimestamp(timestamp)
		results = append(results, meta)
	}

	return results, rows.Err()
}

// Sighting is a URL found under a seed across all archived crawls.
type Sighting struct {
	URL       string
	Kind      model.Kind
	FirstSeen time.Time
	LastSeen  time.Time
}

// GetSightings returns every URL ever found under seed, ordered by kind and URL.
func (cdb *CrawlDB) GetSightings(ctx context.Context, seed string) ([]Sighting, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT url, kind, first_seen, last_seen
	FROM image_sightings
	WHERE seed = ?
	ORDER BY kind DESC, url
	`, seed)
	if err != nil {
		return nil, fmt.Errorf("failed to get sightings: %w", err)
	}
	defer rows.Close()

	sightings := make([]Sighting, 0)
	for rows.Next() {
		var s Sighting
		var kind, firstSeen, lastSeen string
		if err := rows.Scan(&s.URL, &kind, &firstSeen, &lastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan sighting: %w", err)
		}
		s.Kind = model.Kind(kind)
		s.FirstSeen = parseTimestamp(firstSeen)
		s.LastSeen = parseTimestamp(lastSeen)
		sightings = append(sightings, s)
	}

	return sightings, rows.Err()
}

func decodeReport(reportJSON string) (*model.CrawlReport, error) {
	var report model.CrawlReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	report.Result = report.Result.Normalize()
	return &report, nil
}

// timestampFormats contains the timestamp formats SQLite may return.
// More specific formats come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999-07:00", // modernc.org/sqlite time.Time text form
	"2006-01-02 15:04:05.999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp parses a timestamp string using multiple formats.
// It returns the zero time if no format matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
