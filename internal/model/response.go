package model

import (
	"mime"
	"net/http"
	"net/url"
	"strings"
)

// Response is a fetched HTTP response.
type Response struct {
	// Code is the HTTP status code.
	Code int

	// URL is the URL that was requested.
	URL *url.URL

	// Header holds the response headers.
	Header http.Header

	// Body is the response body, truncated to the client's size limit.
	Body []byte
}

// ContentType returns the media type of the response in lower case,
// without parameters. Empty when the header is missing.
func (r *Response) ContentType() string {
	raw := r.Header.Get("Content-Type")
	if raw == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(raw)
	if err != nil {
		mediaType, _, _ = strings.Cut(raw, ";")
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

// IsHTML reports whether the response is an HTML or XHTML document.
func (r *Response) IsHTML() bool {
	ct := r.ContentType()
	return ct == "text/html" || ct == "application/xhtml+xml"
}

// IsTextOrHTML reports whether the response is textual.
func (r *Response) IsTextOrHTML() bool {
	ct := r.ContentType()
	if strings.HasPrefix(ct, "text/") || r.IsHTML() {
		return true
	}
	switch ct {
	case "application/javascript", "application/x-javascript", "application/json", "application/xml":
		return true
	}
	return false
}

// IsPDF reports whether the response is a PDF document.
func (r *Response) IsPDF() bool {
	return r.ContentType() == "application/pdf"
}

// IsSWF reports whether the response is a Flash movie.
func (r *Response) IsSWF() bool {
	return r.ContentType() == "application/x-shockwave-flash"
}

// BaseURL returns scheme://host/ of the response URL.
func (r *Response) BaseURL() string {
	if r.URL == nil {
		return ""
	}
	return BaseURL(r.URL)
}

// BaseURL returns scheme://host/ of u.
func BaseURL(u *url.URL) string {
	return u.Scheme + "://" + u.Host + "/"
}
