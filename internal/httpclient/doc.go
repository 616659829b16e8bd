// Package httpclient is the HTTP transport used by the crawler.
//
// A Client wraps two net/http clients sharing one transport: one follows up
// to ten redirects, the other returns the first response as is. Every request
// carries the configured User-Agent, extra headers and cookie. Responses are
// read through a size limit and returned as *model.Response.
//
// # Caching
//
// GET requests with UseCache set are cached in memory for the lifetime of the
// Client, keyed by method and URL. Concurrent identical requests are collapsed
// into one network call.
//
// # Proxy and rate limiting
//
// WithSOCKS5 routes all connections through a SOCKS5 proxy such as a local
// Tor daemon. WithRate limits the number of requests per second across all
// goroutines sharing the Client.
package httpclient
