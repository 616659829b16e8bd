// Package scope decides which discovered URLs a crawl may touch.
//
// A Filter is built once from a Config and is read-only afterwards, so it can
// be shared by every verifier goroutine without locking. Changing the scope
// means building a new Filter; New fails fast on an invalid pattern.
//
// # Checks
//
//   - InDomain: the URL host equals the target domain (port ignored)
//   - PassesPattern: the follow pattern matches and the ignore pattern does not
//   - IsForward: the URL path lies below the directory of a target root
//
// The ignore pattern always wins over the follow pattern.
package scope
