package httpclient

import (
	"net/http"
	"net/url"

	"github.com/nao1215/webspider/internal/model"
)

// Request describes one fetch.
type Request struct {
	// Method is the HTTP method. Empty means GET.
	Method string

	// URL is the absolute target URL.
	URL *url.URL

	// Header holds per-request headers. They override the client defaults.
	Header http.Header

	// Body is the raw request body.
	Body string

	// UseCache allows the response to be served from, and stored in, the cache.
	// Only GET requests are cached.
	UseCache bool

	// FollowRedirects makes the client follow up to ten redirects.
	FollowRedirects bool
}

// NewGet returns a GET request for u.
func NewGet(u *url.URL) *Request {
	return &Request{Method: http.MethodGet, URL: u, Header: make(http.Header)}
}

// FromFuzzable builds a request replaying fr with its own method, body,
// headers and cookie.
func FromFuzzable(fr *model.FuzzableRequest) *Request {
	req := &Request{
		Method: fr.Method,
		URL:    fr.URL,
		Header: fr.Headers.Clone(),
		Body:   fr.Body(),
	}
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	if fr.Cookie != "" {
		req.Header.Set("Cookie", fr.Cookie)
	}
	if fr.Kind == model.KindPostData {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return req
}

func (r *Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return r.Method
}

func (r *Request) cacheable() bool {
	return r.UseCache && r.method() == http.MethodGet
}

func (r *Request) cacheKey() string {
	return r.method() + " " + r.URL.String()
}
