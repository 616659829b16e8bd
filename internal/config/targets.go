package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Targets is the parsed list of scan targets. It is the scan configuration
// the spider reads its roots and domain from.
type Targets struct {
	roots []*url.URL
}

// ParseTargets parses raw target strings. A missing scheme defaults to
// http and an empty path becomes "/".
func ParseTargets(raw []string) (*Targets, error) {
	if len(raw) == 0 {
		return nil, ErrNoTarget
	}

	roots := make([]*url.URL, 0, len(raw))
	for _, r := range raw {
		u, err := parseTarget(r)
		if err != nil {
			return nil, err
		}
		roots = append(roots, u)
	}
	return &Targets{roots: roots}, nil
}

func parseTarget(raw string) (*url.URL, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, fmt.Errorf("%q: %w", raw, ErrInvalidTarget)
	}
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", raw, ErrInvalidTarget)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%q: %w", raw, ErrInvalidTarget)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u, nil
}

// TargetRoots returns copies of the target URLs.
func (t *Targets) TargetRoots() []*url.URL {
	out := make([]*url.URL, 0, len(t.roots))
	for _, u := range t.roots {
		c := *u
		out = append(out, &c)
	}
	return out
}

// TargetDomain returns the host name of the first target.
func (t *Targets) TargetDomain() string {
	if len(t.roots) == 0 {
		return ""
	}
	return t.roots[0].Hostname()
}

// Strings returns the normalized target URLs.
func (t *Targets) Strings() []string {
	out := make([]string, 0, len(t.roots))
	for _, u := range t.roots {
		out = append(out, u.String())
	}
	return out
}
