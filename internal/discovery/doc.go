// Package discovery drives a crawl over the whole site.
//
// The Driver runs a breadth-first traversal: every request of the current
// level is expanded with one Crawl call, at most Concurrency calls at a time
// (errgroup.SetLimit), and the new in-scope requests form the next level.
// Requests are deduplicated by key. MaxDepth bounds the number of levels and
// MaxRequests the number of distinct requests. When the context is cancelled
// the Driver stops after the running calls return and hands back what it has.
package discovery
