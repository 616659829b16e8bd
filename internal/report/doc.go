// Package report renders scan reports.
//
// Writers:
//   - SimpleWriter: human-readable text for the terminal, with coloured headings
//   - JSONWriter: structured JSON for tool integration
//   - MarkdownWriter: Markdown for sharing
//
// Every writer lists the discovered fuzzable requests and the broken-link
// report, one line per pair:
//
//	- <broken URL> [ referenced from: <referrer URL> ]
package report
