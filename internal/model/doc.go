// Package model defines the core data structures shared by the crawler,
// its collaborators and the report writers.
//
// This package contains the following main types:
//   - FuzzableRequest: An HTTP request template whose inputs can be mutated later
//   - Reference: A discovered URL together with the confidence tier it was found with
//   - Response: A fetched HTTP response
//   - BrokenLink: A (broken URL, referrer) pair
//   - ScanReport: The result of a whole crawl, used for reports and storage
//
// The models are kept in their own package so that crawler, parser, fuzzable,
// database and report can share them without import cycles. All of them are
// serializable to JSON for report output and database storage.
package model
