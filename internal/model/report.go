package model

import "time"

// SpiderStats contains crawl statistics.
type SpiderStats struct {
	// CrawlCalls is the number of nodes expanded.
	CrawlCalls int64 `json:"crawl_calls"`

	// Candidates is the number of unique references considered.
	Candidates int64 `json:"candidates"`

	// Admitted is the number of references scheduled for verification.
	Admitted int64 `json:"admitted"`

	// OutOfDomain is the number of references dropped by the domain check.
	OutOfDomain int64 `json:"out_of_domain"`

	// PatternRejected is the number of references dropped by follow/ignore patterns.
	PatternRejected int64 `json:"pattern_rejected"`

	// VariantCapped is the number of references dropped by the variant cap.
	VariantCapped int64 `json:"variant_capped"`

	// NotForward is the number of admitted references skipped in only-forward mode.
	NotForward int64 `json:"not_forward"`

	// FetchErrors is the number of failed fetches.
	FetchErrors int64 `json:"fetch_errors"`

	// NotFound is the number of verified references classified as 404.
	NotFound int64 `json:"not_found"`

	// Results is the number of fuzzable requests returned by Crawl calls.
	Results int64 `json:"results"`

	// Shapes is the number of distinct URL shapes seen by the variant cap.
	Shapes int64 `json:"shapes"`

	// BrokenLinks is the number of distinct (broken, referrer) pairs.
	BrokenLinks int64 `json:"broken_links"`
}

// ScanReport is the result of a complete crawl.
type ScanReport struct {
	// ID is the database identifier. Zero until the report is saved.
	ID int64 `json:"id,omitempty"`

	// Targets are the URLs the crawl started from.
	Targets []string `json:"targets"`

	// StartedAt is when the crawl started.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the crawl finished.
	FinishedAt time.Time `json:"finished_at"`

	// Requests are the unique fuzzable requests discovered, in discovery order.
	Requests []*FuzzableRequest `json:"requests"`

	// BrokenLinks is the deduplicated broken-link report, sorted.
	BrokenLinks []BrokenLink `json:"broken_links"`

	// Stats are the spider counters at the end of the crawl.
	Stats SpiderStats `json:"stats"`

	// Cancelled is true when the crawl was interrupted and results are partial.
	Cancelled bool `json:"cancelled,omitempty"`
}

// NewScanReport creates an empty report for the given targets.
func NewScanReport(targets []string) *ScanReport {
	return &ScanReport{
		Targets:     targets,
		StartedAt:   time.Now(),
		Requests:    make([]*FuzzableRequest, 0),
		BrokenLinks: make([]BrokenLink, 0),
	}
}

// Duration returns how long the crawl took.
func (r *ScanReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
