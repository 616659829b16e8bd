// Package database provides SQLite-based storage for webspider scans.
//
// The CrawlDB stores:
//   - one row per scan with its targets, timing and spider statistics
//   - the fuzzable requests each scan discovered, in discovery order
//   - the broken links each scan reported
//
// The full report is also kept as JSON so a past scan can be rendered again
// with any report writer. SQLite is used through modernc.org/sqlite, which
// needs no cgo, in WAL mode with a single connection.
package database
