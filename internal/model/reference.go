package model

import (
	"net/url"
	"sort"
)

// Tier is the confidence with which a reference was discovered.
type Tier int

const (
	// TierParsed marks references that came from an explicit structural
	// element (a link, a form action, an ancestor directory).
	TierParsed Tier = iota

	// TierHeuristic marks references that came from a best-effort regex scan
	// of raw text, such as string literals inside JavaScript.
	TierHeuristic
)

// String returns the name of the tier.
func (t Tier) String() string {
	switch t {
	case TierParsed:
		return "parsed"
	case TierHeuristic:
		return "heuristic"
	default:
		return "unknown"
	}
}

// Reference is a discovered absolute URL that has not been verified yet.
type Reference struct {
	// URL is the absolute reference URL, without fragment.
	URL *url.URL

	// Tier is the confidence with which URL was found.
	Tier Tier
}

// NewReference returns a Reference for u with its fragment stripped.
func NewReference(u *url.URL, tier Tier) Reference {
	clean := *u
	clean.Fragment = ""
	clean.RawFragment = ""
	return Reference{URL: &clean, Tier: tier}
}

// String returns the reference URL.
func (r Reference) String() string {
	return r.URL.String()
}

// BrokenLink is a structurally linked reference whose fetch was classified as 404.
type BrokenLink struct {
	// URL is the broken reference.
	URL string `json:"url"`

	// Referrer is the page that linked to URL.
	Referrer string `json:"referrer"`
}

// SortBrokenLinks sorts links by URL, then by referrer.
func SortBrokenLinks(links []BrokenLink) {
	sort.Slice(links, func(i, j int) bool {
		if links[i].URL != links[j].URL {
			return links[i].URL < links[j].URL
		}
		return links[i].Referrer < links[j].Referrer
	})
}
