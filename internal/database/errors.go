package database

import "errors"

var (
	// ErrDatabaseNotFound is returned by Open when the database file is
	// missing and CreateIfNotExists is false.
	ErrDatabaseNotFound = errors.New("database not found")

	// ErrScanNotFound is returned when no scan has the requested ID.
	ErrScanNotFound = errors.New("scan not found")
)
