package scope

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

// Config holds the raw scope options.
type Config struct {
	// IgnoreRegex excludes every URL it matches. Empty never matches.
	IgnoreRegex string

	// FollowRegex must match a URL for it to be followed. Empty means ".*".
	FollowRegex string

	// OnlyForward restricts fetches to paths below the target roots.
	OnlyForward bool

	// Roots are the scan target URLs.
	Roots []*url.URL

	// Domain is the target host name.
	Domain string
}

// Filter is a compiled, immutable scope.
type Filter struct {
	ignore      *regexp.Regexp
	follow      *regexp.Regexp
	onlyForward bool
	roots       []*url.URL
	domain      string
}

// New compiles cfg into a Filter.
// An invalid pattern returns a *ConfigurationError.
func New(cfg Config) (*Filter, error) {
	f := &Filter{
		onlyForward: cfg.OnlyForward,
		domain:      strings.ToLower(cfg.Domain),
	}

	if cfg.IgnoreRegex != "" {
		re, err := regexp.Compile(cfg.IgnoreRegex)
		if err != nil {
			return nil, &ConfigurationError{Option: "ignore_regex", Pattern: cfg.IgnoreRegex, Err: err}
		}
		f.ignore = re
	}

	follow := cfg.FollowRegex
	if follow == "" {
		follow = ".*"
	}
	re, err := regexp.Compile(follow)
	if err != nil {
		return nil, &ConfigurationError{Option: "follow_regex", Pattern: cfg.FollowRegex, Err: err}
	}
	f.follow = re

	f.roots = make([]*url.URL, 0, len(cfg.Roots))
	for _, r := range cfg.Roots {
		if r == nil {
			continue
		}
		c := *r
		f.roots = append(f.roots, &c)
	}

	return f, nil
}

// InDomain reports whether u belongs to the target domain.
// The comparison is case-insensitive and ignores the port.
func (f *Filter) InDomain(u *url.URL) bool {
	if u == nil || f.domain == "" {
		return false
	}
	return strings.EqualFold(u.Hostname(), f.domain)
}

// PassesPattern reports whether the follow pattern matches u and the ignore
// pattern does not. Both are searched anywhere in the full URL string.
func (f *Filter) PassesPattern(u *url.URL) bool {
	if u == nil {
		return false
	}
	s := u.String()
	if f.ignore != nil && f.ignore.MatchString(s) {
		return false
	}
	return f.follow.MatchString(s)
}

// IsForward reports whether u lies at or below the directory of at least one
// target root on the same host.
func (f *Filter) IsForward(u *url.URL) bool {
	if u == nil {
		return false
	}
	p := u.Path
	if p == "" {
		p = "/"
	}
	for _, root := range f.roots {
		if !strings.EqualFold(root.Hostname(), u.Hostname()) {
			continue
		}
		if strings.HasPrefix(p, Dir(root)) {
			return true
		}
	}
	return false
}

// OnlyForward reports whether fetches are restricted to forward URLs.
func (f *Filter) OnlyForward() bool {
	return f.onlyForward
}

// Domain returns the target domain in lower case.
func (f *Filter) Domain() string {
	return f.domain
}

// Roots returns copies of the target roots.
func (f *Filter) Roots() []*url.URL {
	roots := make([]*url.URL, len(f.roots))
	for i, r := range f.roots {
		c := *r
		roots[i] = &c
	}
	return roots
}

// Dir returns the directory part of u's path, always ending in "/".
// "/a/b/c.php" becomes "/a/b/", "/a/b/" stays as is, "" becomes "/".
func Dir(u *url.URL) string {
	p := u.Path
	if p == "" || p == "/" {
		return "/"
	}
	if strings.HasSuffix(p, "/") {
		return p
	}
	d := path.Dir(p)
	if d == "/" {
		return "/"
	}
	return d + "/"
}
