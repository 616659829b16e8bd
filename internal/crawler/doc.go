// Package crawler provides the crawl frontier of the web spider.
//
// # Architecture
//
// The Spider expands one node of the site graph per Crawl call. An external
// driver (see package discovery) calls Crawl for every fuzzable request found
// so far; the Spider fetches the request, collects the references in the
// response and verifies the ones worth following on a shared worker pool.
//
// Each candidate reference passes, in order:
//   - the domain check: only the target host is ever fetched
//   - the follow and ignore patterns, where ignore wins
//   - the variant cap: at most five URLs per canonical shape per scan
//
// A verifier task then fetches the reference (skipped in only-forward mode
// when it lies outside the target directories), classifies the response with
// the 404 detector and emits the fuzzable requests built from it.
//
// # Shared state
//
// The variant counters, the broken-link set and the set of form-filled URLs
// live for the whole scan and are shared by every task and by concurrent
// Crawl calls. Each carries its own lock. The result set belongs to one Crawl
// call and is returned when that call's batch has been joined.
//
// # Collaborators
//
// Fetching, parsing, request building, 404 detection, form filling and the
// worker pool are injected through the small interfaces in this package.
//
// # Usage
//
//	spider, err := crawler.NewSpider(targets, client, pool,
//		crawler.WithScope(crawler.ScopeOptions{IgnoreRegex: "logout"}),
//	)
//	requests, err := spider.Crawl(ctx, seed)
//	broken := spider.End()
package crawler
