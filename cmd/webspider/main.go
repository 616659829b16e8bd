// Package main provides the entry point for the webspider CLI.
//
// webspider crawls a web application from one or more target URLs and lists
// every fuzzable request it finds (query-string URLs and HTML forms), plus
// the broken links it met on the way.
//
// Usage:
//
//	webspider crawl <url>...
//	webspider history [scan-id]
//
// See --help for all available options.
package main

func main() {
	Execute()
}
