package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/nao1215/webspider/internal/formfill"
	"github.com/nao1215/webspider/internal/fuzzable"
	"github.com/nao1215/webspider/internal/httpclient"
	"github.com/nao1215/webspider/internal/model"
	"github.com/nao1215/webspider/internal/notfound"
	"github.com/nao1215/webspider/internal/parser"
	"github.com/nao1215/webspider/internal/scope"
	"github.com/nao1215/webspider/internal/variant"
)

// ScopeOptions are the user-facing scope settings.
// Target roots and domain come from the TargetSource.
type ScopeOptions struct {
	// IgnoreRegex excludes matching URLs. Empty excludes nothing.
	IgnoreRegex string

	// FollowRegex must match a URL for it to be followed. Empty means ".*".
	FollowRegex string

	// OnlyForward skips fetching references outside the target directories.
	OnlyForward bool
}

// Spider is the crawl frontier. One Spider serves one scan; it is safe for
// concurrent Crawl calls.
type Spider struct {
	targets  TargetSource
	fetcher  Fetcher
	pool     Pool
	parser   DocumentParser
	factory  RequestFactory
	notFound NotFoundClassifier
	filler   FormFiller
	logger   *slog.Logger

	scopeOpts ScopeOptions
	maxVar    int

	// latch holds the scope built from the targets on the first Crawl call.
	latch  sync.Once
	filter *scope.Filter

	variants *variant.Classifier
	broken   *brokenLinkSet
	filled   *formFillCache
	stats    counters
}

// counters are the live statistics behind Stats.
type counters struct {
	crawlCalls      atomic.Int64
	candidates      atomic.Int64
	admitted        atomic.Int64
	outOfDomain     atomic.Int64
	patternRejected atomic.Int64
	variantCapped   atomic.Int64
	notForward      atomic.Int64
	fetchErrors     atomic.Int64
	notFound        atomic.Int64
	results         atomic.Int64
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithScope sets the ignore and follow patterns and the only-forward flag.
func WithScope(opts ScopeOptions) SpiderOption {
	return func(s *Spider) {
		s.scopeOpts = opts
	}
}

// WithMaxVariants sets how many URLs of one canonical shape are verified.
func WithMaxVariants(n int) SpiderOption {
	return func(s *Spider) {
		s.maxVar = n
	}
}

// WithParser replaces the document parser.
func WithParser(p DocumentParser) SpiderOption {
	return func(s *Spider) {
		s.parser = p
	}
}

// WithRequestFactory replaces the fuzzable request factory.
func WithRequestFactory(f RequestFactory) SpiderOption {
	return func(s *Spider) {
		s.factory = f
	}
}

// WithNotFoundClassifier replaces the 404 detector.
func WithNotFoundClassifier(c NotFoundClassifier) SpiderOption {
	return func(s *Spider) {
		s.notFound = c
	}
}

// WithFormFiller replaces the form filler.
func WithFormFiller(f FormFiller) SpiderOption {
	return func(s *Spider) {
		s.filler = f
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		s.logger = logger
	}
}

// NewSpider creates a Spider for the scan described by targets.
// Collaborators not set through options get the package defaults.
// An invalid scope pattern returns a *scope.ConfigurationError.
func NewSpider(targets TargetSource, fetcher Fetcher, pool Pool, opts ...SpiderOption) (*Spider, error) {
	s := &Spider{
		targets: targets,
		fetcher: fetcher,
		pool:    pool,
		maxVar:  variant.MaxVariants,
		broken:  newBrokenLinkSet(),
		filled:  newFormFillCache(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.parser == nil {
		s.parser = parser.New(parser.WithLogger(s.logger))
	}
	if s.factory == nil {
		s.factory = fuzzable.New(fuzzable.WithLogger(s.logger))
	}
	if s.notFound == nil {
		s.notFound = notfound.New(fetcher, notfound.WithLogger(s.logger))
	}
	if s.filler == nil {
		s.filler = formfill.New()
	}
	s.variants = variant.New(variant.WithMax(s.maxVar))

	// Compile once up front so bad patterns fail before the scan starts.
	if _, err := scope.New(s.scopeConfig(nil, "")); err != nil {
		return nil, fmt.Errorf("invalid spider scope: %w", err)
	}
	return s, nil
}

func (s *Spider) scopeConfig(roots []*url.URL, domain string) scope.Config {
	return scope.Config{
		IgnoreRegex: s.scopeOpts.IgnoreRegex,
		FollowRegex: s.scopeOpts.FollowRegex,
		OnlyForward: s.scopeOpts.OnlyForward,
		Roots:       roots,
		Domain:      domain,
	}
}

// latchTargets builds the scope from the scan targets. Without targets the
// filter stays nil and every Crawl returns an empty result.
func (s *Spider) latchTargets() {
	if s.targets == nil {
		return
	}
	roots := s.targets.TargetRoots()
	domain := s.targets.TargetDomain()
	if len(roots) == 0 || domain == "" {
		s.logger.Warn("no scan targets configured, spider is idle")
		return
	}
	f, err := scope.New(s.scopeConfig(roots, domain))
	if err != nil {
		// Patterns were validated in NewSpider.
		s.logger.Error("failed to build scope", "error", err)
		return
	}
	s.filter = f
	s.logger.Debug("scope latched", "domain", f.Domain(), "roots", len(roots))
}

// Crawl expands seed: it fetches it, verifies the references found in the
// response and returns the fuzzable requests discovered, ordered by key.
// Fetch failures only shrink the result. The error is non-nil only when ctx
// is cancelled, in which case the result holds what was verified so far.
//
// A post-data seed whose URL was never form-filled gets its blank fields
// filled in place.
func (s *Spider) Crawl(ctx context.Context, seed *model.FuzzableRequest) ([]*model.FuzzableRequest, error) {
	s.stats.crawlCalls.Add(1)
	s.latch.Do(s.latchTargets)

	if s.filter == nil || seed == nil || seed.URL == nil {
		return []*model.FuzzableRequest{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := newResultSet()

	if seed.HasFillableFields() && s.filled.markOnce(seed.URLString()) {
		s.fillForm(seed)
	}

	req := httpclient.FromFuzzable(seed)
	req.UseCache = true
	resp, err := s.fetcher.Fetch(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.stats.fetchErrors.Add(1)
		s.logger.Debug("seed fetch failed", "request", seed.String(), "error", err)
		return []*model.FuzzableRequest{}, nil
	}
	if resp.Code == http.StatusUnauthorized {
		s.logger.Debug("seed requires authentication", "url", seed.URLString())
		return []*model.FuzzableRequest{}, nil
	}

	results.merge(s.factory.Build(resp, seed, false))

	batch := s.pool.NewBatch(ctx)
	for _, ref := range s.candidates(resp) {
		s.stats.candidates.Add(1)
		if !s.admit(ref) {
			continue
		}
		s.stats.admitted.Add(1)
		batch.Submit(func(ctx context.Context) {
			s.verify(ctx, ref, resp, seed, results)
		})
	}

	// Join fails only when ctx was cancelled before every task started.
	joinErr := batch.Join()
	out := results.list()
	s.stats.results.Add(int64(len(out)))
	return out, joinErr
}

// admit applies the domain, pattern and variant checks in that order.
func (s *Spider) admit(ref model.Reference) bool {
	switch {
	case !s.filter.InDomain(ref.URL):
		s.stats.outOfDomain.Add(1)
		return false
	case !s.filter.PassesPattern(ref.URL):
		s.stats.patternRejected.Add(1)
		return false
	case !s.variants.Admit(ref.URL):
		s.stats.variantCapped.Add(1)
		s.logger.Debug("variant cap reached", "url", ref.String())
		return false
	}
	return true
}

// fillForm fills every blank, non-structural field of seed.
func (s *Spider) fillForm(seed *model.FuzzableRequest) {
	for i := range seed.Form.Fields {
		f := &seed.Form.Fields[i]
		if f.IsStructural() || f.Value != "" {
			continue
		}
		f.Value = s.filler.FillValue(f.Name)
	}
	s.logger.Debug("filled form", "url", seed.URLString(), "fields", len(seed.Form.Fields))
}

// candidates returns the references of resp sorted by URL, one per URL,
// the parsed tier winning over the heuristic one.
func (s *Spider) candidates(resp *model.Response) []model.Reference {
	if !resp.IsTextOrHTML() && !resp.IsPDF() && !resp.IsSWF() {
		return nil
	}

	tiers := make(map[string]model.Reference)
	add := func(u *url.URL, tier model.Tier) {
		ref := model.NewReference(u, tier)
		key := variant.Key(ref.URL)
		if prev, ok := tiers[key]; ok && prev.Tier == model.TierParsed {
			return
		}
		tiers[key] = ref
	}

	parsed, heuristic, err := s.parser.Parse(resp)
	if err != nil {
		if !errors.Is(err, parser.ErrNoParser) {
			s.logger.Debug("parse failed", "url", resp.URL.String(), "error", err)
		}
		parsed, heuristic = nil, nil
	}
	for _, u := range heuristic {
		add(u, model.TierHeuristic)
	}
	for _, u := range parsed {
		add(u, model.TierParsed)
	}
	for _, u := range ancestors(resp.URL) {
		add(u, model.TierParsed)
	}

	keys := make([]string, 0, len(tiers))
	for k := range tiers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	refs := make([]model.Reference, 0, len(keys))
	for _, k := range keys {
		refs = append(refs, tiers[k])
	}
	return refs
}

// ancestors returns every directory above u, up to the root, without query.
// The directory u itself points at is excluded.
func ancestors(u *url.URL) []*url.URL {
	self := strings.TrimSuffix(u.Path, "/")
	var dirs []*url.URL
	p := self
	for {
		i := strings.LastIndex(p, "/")
		if i < 0 {
			break
		}
		p = p[:i]
		dirs = append(dirs, &url.URL{Scheme: u.Scheme, Host: u.Host, Path: p + "/"})
		if p == "" {
			break
		}
	}
	return dirs
}

// End returns the broken links found during the scan, sorted and
// deduplicated, and logs the ones not logged by a previous call.
func (s *Spider) End() []model.BrokenLink {
	all, fresh := s.broken.sorted()
	for _, link := range fresh {
		s.logger.Info("broken link",
			"url", link.URL,
			"referenced_from", link.Referrer,
		)
	}
	return all
}

// Stats returns the current counters.
func (s *Spider) Stats() model.SpiderStats {
	return model.SpiderStats{
		CrawlCalls:      s.stats.crawlCalls.Load(),
		Candidates:      s.stats.candidates.Load(),
		Admitted:        s.stats.admitted.Load(),
		OutOfDomain:     s.stats.outOfDomain.Load(),
		PatternRejected: s.stats.patternRejected.Load(),
		VariantCapped:   s.stats.variantCapped.Load(),
		NotForward:      s.stats.notForward.Load(),
		FetchErrors:     s.stats.fetchErrors.Load(),
		NotFound:        s.stats.notFound.Load(),
		Results:         s.stats.results.Load(),
		Shapes:          int64(s.variants.Len()),
		BrokenLinks:     int64(s.broken.len()),
	}
}

// Filter returns the latched scope, or nil before the first Crawl call or
// when there are no targets.
func (s *Spider) Filter() *scope.Filter {
	s.latch.Do(s.latchTargets)
	return s.filter
}

// InScope reports whether u belongs to the target domain of the scan.
func (s *Spider) InScope(u *url.URL) bool {
	f := s.Filter()
	return f != nil && f.InDomain(u)
}
