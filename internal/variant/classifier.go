package variant

import (
	"net/url"
	"strings"
	"sync"
)

// MaxVariants is the default number of URLs explored per shape.
const MaxVariants = 5

const (
	placeholderNumber = "number"
	placeholderString = "string"
)

// Canonicalize returns the shape of u. Query parameter names, their order and
// their multiplicity are preserved; each value is replaced by "number" when it
// is a non-empty run of ASCII digits and by "string" otherwise.
func Canonicalize(u *url.URL) string {
	var sb strings.Builder
	sb.WriteString(Origin(u))
	sb.WriteString(u.EscapedPath())

	if u.RawQuery == "" {
		return sb.String()
	}

	sb.WriteByte('?')
	first := true
	for _, part := range strings.Split(u.RawQuery, "&") {
		if part == "" {
			continue
		}
		name, value, _ := strings.Cut(part, "=")
		if !first {
			sb.WriteByte('&')
		}
		first = false
		sb.WriteString(name)
		sb.WriteByte('=')
		if isNumber(value) {
			sb.WriteString(placeholderNumber)
		} else {
			sb.WriteString(placeholderString)
		}
	}
	return sb.String()
}

// Origin returns scheme://host of u in the form the domain check compares:
// scheme and host lower-cased, the scheme's default port dropped.
func Origin(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	return scheme + "://" + normalizedHost(scheme, u)
}

// Key returns u without fragment and with its origin normalized.
// URLs with the same key address the same resource.
func Key(u *url.URL) string {
	clean := *u
	clean.Scheme = strings.ToLower(u.Scheme)
	clean.Host = normalizedHost(clean.Scheme, u)
	clean.Fragment = ""
	clean.RawFragment = ""
	return clean.String()
}

func normalizedHost(scheme string, u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	port := u.Port()
	if port == "" || (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		return host
	}
	return host + ":" + port
}

func isNumber(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Classifier counts admitted URLs per shape. It is safe for concurrent use.
type Classifier struct {
	max    int
	mu     sync.Mutex
	counts map[string]int
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithMax sets the per-shape cap. Values below 1 are ignored.
func WithMax(n int) Option {
	return func(c *Classifier) {
		if n > 0 {
			c.max = n
		}
	}
}

// New creates a Classifier capped at MaxVariants per shape.
func New(opts ...Option) *Classifier {
	c := &Classifier{
		max:    MaxVariants,
		counts: make(map[string]int),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NeedsMore reports whether the shape of u is still below the cap.
func (c *Classifier) NeedsMore(u *url.URL) bool {
	shape := Canonicalize(u)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[shape] < c.max
}

// Register counts u against its shape.
func (c *Classifier) Register(u *url.URL) {
	shape := Canonicalize(u)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[shape]++
}

// Admit registers u and returns true if its shape is below the cap,
// otherwise it returns false and leaves the count untouched.
// The check and the increment happen under one lock.
func (c *Classifier) Admit(u *url.URL) bool {
	shape := Canonicalize(u)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts[shape] >= c.max {
		return false
	}
	c.counts[shape]++
	return true
}

// Count returns how many URLs with the shape of u were registered.
func (c *Classifier) Count(u *url.URL) int {
	shape := Canonicalize(u)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[shape]
}

// Len returns the number of distinct shapes seen.
func (c *Classifier) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.counts)
}

// Max returns the per-shape cap.
func (c *Classifier) Max() int {
	return c.max
}
