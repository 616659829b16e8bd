package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/webspider/internal/model"
)

// FileName is the database file created inside the database directory.
const FileName = "webspider.db"

// CrawlDB provides SQLite-based storage for scan reports.
type CrawlDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB in dbDir.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s: %w", dbPath, ErrDatabaseNotFound)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc creates it.
	// foreign_keys is a per-connection pragma, so it goes in the DSN.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}
	dsn += "&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

func (cdb *CrawlDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scans (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		targets TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		request_count INTEGER NOT NULL DEFAULT 0,
		broken_count INTEGER NOT NULL DEFAULT 0,
		cancelled INTEGER NOT NULL DEFAULT 0,
		stats TEXT,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_scans_started ON scans(started_at);

	CREATE TABLE IF NOT EXISTS requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		scan_id INTEGER NOT NULL REFERENCES scans(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		kind TEXT NOT NULL,
		method TEXT NOT NULL,
		url TEXT NOT NULL,
		body TEXT,
		UNIQUE(scan_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_requests_url ON requests(url);

	CREATE TABLE IF NOT EXISTS broken_links (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		scan_id INTEGER NOT NULL REFERENCES scans(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		referrer TEXT NOT NULL,
		UNIQUE(scan_id, url, referrer)
	);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveScanReport stores report and sets report.ID to the new scan ID.
func (cdb *CrawlDB) SaveScanReport(ctx context.Context, report *model.ScanReport) (int64, error) {
	targetsJSON, err := json.Marshal(report.Targets)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize targets: %w", err)
	}
	statsJSON, err := json.Marshal(report.Stats)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize stats: %w", err)
	}
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	result, err := tx.ExecContext(ctx, `
	INSERT INTO scans (targets, started_at, finished_at, request_count, broken_count, cancelled, stats, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(targetsJSON),
		report.StartedAt.UTC().Format(time.RFC3339Nano),
		report.FinishedAt.UTC().Format(time.RFC3339Nano),
		len(report.Requests),
		len(report.BrokenLinks),
		boolToInt(report.Cancelled),
		string(statsJSON),
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save scan: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read scan id: %w", err)
	}

	reqStmt, err := tx.PrepareContext(ctx, `
	INSERT INTO requests (scan_id, position, kind, method, url, body)
	VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare request insert: %w", err)
	}
	defer reqStmt.Close()

	for i, fr := range report.Requests {
		if _, err := reqStmt.ExecContext(ctx, id, i, fr.Kind.String(), fr.Method, fr.URLString(), fr.Body()); err != nil {
			return 0, fmt.Errorf("failed to save request: %w", err)
		}
	}

	linkStmt, err := tx.PrepareContext(ctx, `
	INSERT OR IGNORE INTO broken_links (scan_id, url, referrer)
	VALUES (?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare broken link insert: %w", err)
	}
	defer linkStmt.Close()

	for _, link := range report.BrokenLinks {
		if _, err := linkStmt.ExecContext(ctx, id, link.URL, link.Referrer); err != nil {
			return 0, fmt.Errorf("failed to save broken link: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit scan: %w", err)
	}

	report.ID = id
	return id, nil
}

// ScanSummary describes a stored scan without loading its report.
type ScanSummary struct {
	// ID is the scan identifier.
	ID int64

	// Targets are the seed URLs.
	Targets []string

	// StartedAt is when the scan started.
	StartedAt time.Time

	// FinishedAt is when the scan finished.
	FinishedAt time.Time

	// Requests is the number of discovered requests.
	Requests int

	// BrokenLinks is the number of broken links.
	BrokenLinks int

	// Cancelled is true when the scan was interrupted.
	Cancelled bool
}

// ListScans returns every stored scan, most recent first.
func (cdb *CrawlDB) ListScans(ctx context.Context) ([]ScanSummary, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT id, targets, started_at, finished_at, request_count, broken_count, cancelled
	FROM scans
	ORDER BY started_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	defer rows.Close()

	var summaries []ScanSummary
	for rows.Next() {
		var s ScanSummary
		var targetsJSON, startedAt string
		var finishedAt sql.NullString
		var cancelled int

		if err := rows.Scan(&s.ID, &targetsJSON, &startedAt, &finishedAt, &s.Requests, &s.BrokenLinks, &cancelled); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if err := json.Unmarshal([]byte(targetsJSON), &s.Targets); err != nil {
			return nil, fmt.Errorf("failed to parse targets: %w", err)
		}
		s.StartedAt = parseTimestamp(startedAt)
		if finishedAt.Valid {
			s.FinishedAt = parseTimestamp(finishedAt.String)
		}
		s.Cancelled = cancelled != 0
		summaries = append(summaries, s)
	}

	return summaries, rows.Err()
}

// GetScanReport returns the stored report with the given ID,
// or ErrScanNotFound.
func (cdb *CrawlDB) GetScanReport(ctx context.Context, id int64) (*model.ScanReport, error) {
	var reportJSON string
	err := cdb.db.QueryRowContext(ctx, `SELECT report_json FROM scans WHERE id = ?`, id).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("scan %d: %w", id, ErrScanNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan report: %w", err)
	}

	var report model.ScanReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	report.ID = id
	return &report, nil
}

// GetBrokenLinks returns the broken links of a scan, sorted.
func (cdb *CrawlDB) GetBrokenLinks(ctx context.Context, scanID int64) ([]model.BrokenLink, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT url, referrer FROM broken_links
	WHERE scan_id = ?
	ORDER BY url, referrer
	`, scanID)
	if err != nil {
		return nil, fmt.Errorf("failed to get broken links: %w", err)
	}
	defer rows.Close()

	links := make([]model.BrokenLink, 0)
	for rows.Next() {
		var link model.BrokenLink
		if err := rows.Scan(&link.URL, &link.Referrer); err != nil {
			return nil, fmt.Errorf("failed to scan broken link: %w", err)
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

// StoredRequest is one row of the requests table.
type StoredRequest struct {
	Position int
	Kind     string
	Method   string
	URL      string
	Body     string
}

// GetRequests returns the requests of a scan in discovery order.
func (cdb *CrawlDB) GetRequests(ctx context.Context, scanID int64) ([]StoredRequest, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT position, kind, method, url, body FROM requests
	WHERE scan_id = ?
	ORDER BY position
	`, scanID)
	if err != nil {
		return nil, fmt.Errorf("failed to get requests: %w", err)
	}
	defer rows.Close()

	var out []StoredRequest
	for rows.Next() {
		var r StoredRequest
		var body sql.NullString
		if err := rows.Scan(&r.Position, &r.Kind, &r.Method, &r.URL, &body); err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		r.Body = body.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// FindRequestsByURL returns the distinct request URLs across all scans that
// contain substr.
func (cdb *CrawlDB) FindRequestsByURL(ctx context.Context, substr string) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT DISTINCT url FROM requests
	WHERE instr(url, ?) > 0
	ORDER BY url
	`, substr)
	if err != nil {
		return nil, fmt.Errorf("failed to search requests: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan url: %w", err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// DeleteScan removes a scan and its rows.
func (cdb *CrawlDB) DeleteScan(ctx context.Context, id int64) error {
	result, err := cdb.db.ExecContext(ctx, `DELETE FROM scans WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete scan: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete scan: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("scan %d: %w", id, ErrScanNotFound)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// timestampFormats contains the timestamp formats that SQLite may return.
// More specific formats come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp tries every known format and returns the zero time when
// none matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
