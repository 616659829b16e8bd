package crawler

import (
	"sort"
	"sync"

	"github.com/nao1215/webspider/internal/model"
)

// brokenLinkSet holds each (broken, referrer) pair once for the whole scan.
type brokenLinkSet struct {
	mu       sync.Mutex
	links    map[model.BrokenLink]struct{}
	reported map[model.BrokenLink]struct{}
}

func newBrokenLinkSet() *brokenLinkSet {
	return &brokenLinkSet{
		links:    make(map[model.BrokenLink]struct{}),
		reported: make(map[model.BrokenLink]struct{}),
	}
}

// add stores link and reports whether it was new.
func (s *brokenLinkSet) add(link model.BrokenLink) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.links[link]; ok {
		return false
	}
	s.links[link] = struct{}{}
	return true
}

// sorted returns every link sorted by URL and referrer, plus the ones that
// were not returned as unreported before. The latter are marked reported.
func (s *brokenLinkSet) sorted() (all, fresh []model.BrokenLink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all = make([]model.BrokenLink, 0, len(s.links))
	for link := range s.links {
		all = append(all, link)
		if _, ok := s.reported[link]; !ok {
			s.reported[link] = struct{}{}
			fresh = append(fresh, link)
		}
	}
	model.SortBrokenLinks(all)
	model.SortBrokenLinks(fresh)
	return all, fresh
}

func (s *brokenLinkSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.links)
}

// formFillCache remembers which URLs already had their forms filled.
type formFillCache struct {
	mu     sync.Mutex
	filled map[string]struct{}
}

func newFormFillCache() *formFillCache {
	return &formFillCache{filled: make(map[string]struct{})}
}

// markOnce marks url as filled and reports whether this call did it.
func (c *formFillCache) markOnce(url string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.filled[url]; ok {
		return false
	}
	c.filled[url] = struct{}{}
	return true
}

// resultSet accumulates the requests verified during one Crawl call.
type resultSet struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	items []*model.FuzzableRequest
}

func newResultSet() *resultSet {
	return &resultSet{seen: make(map[string]struct{})}
}

func (r *resultSet) add(fr *model.FuzzableRequest) {
	key := fr.Key()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[key]; ok {
		return
	}
	r.seen[key] = struct{}{}
	r.items = append(r.items, fr)
}

func (r *resultSet) merge(frs []*model.FuzzableRequest) {
	for _, fr := range frs {
		r.add(fr)
	}
}

// list returns the requests ordered by key.
func (r *resultSet) list() []*model.FuzzableRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.FuzzableRequest, len(r.items))
	copy(out, r.items)
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key() < out[j].Key()
	})
	return out
}
