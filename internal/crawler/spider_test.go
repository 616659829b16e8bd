package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/nao1215/webspider/internal/httpclient"
	"github.com/nao1215/webspider/internal/model"
	"github.com/nao1215/webspider/internal/scope"
	"github.com/nao1215/webspider/internal/workerpool"
)

// page is one canned answer of fakeSite.
type page struct {
	code        int
	contentType string
	body        string
}

// fakeSite serves canned pages and records every fetch.
type fakeSite struct {
	mu      sync.Mutex
	pages   map[string]page
	fetched []*httpclient.Request
	fail    map[string]bool
}

func newFakeSite() *fakeSite {
	return &fakeSite{pages: make(map[string]page), fail: make(map[string]bool)}
}

func (f *fakeSite) html(rawURL, body string) {
	f.pages[rawURL] = page{code: http.StatusOK, contentType: "text/html", body: body}
}

func (f *fakeSite) Fetch(ctx context.Context, req *httpclient.Request) (*model.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := req.URL.String()
	f.mu.Lock()
	f.fetched = append(f.fetched, req)
	p, ok := f.pages[key]
	failed := f.fail[key]
	f.mu.Unlock()

	if failed {
		return nil, errors.New("connection reset")
	}
	if !ok {
		p = page{code: http.StatusNotFound, contentType: "text/html", body: "<html>not found</html>"}
	}
	h := make(http.Header)
	h.Set("Content-Type", p.contentType)
	u := *req.URL
	return &model.Response{Code: p.code, URL: &u, Header: h, Body: []byte(p.body)}, nil
}

// fetchCount returns how many fetches hit URLs accepted by match.
func (f *fakeSite) fetchCount(match func(string) bool) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.fetched {
		if match(r.URL.String()) {
			n++
		}
	}
	return n
}

func (f *fakeSite) requestFor(rawURL string) *httpclient.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.fetched {
		if r.URL.String() == rawURL {
			return r
		}
	}
	return nil
}

type statusNotFound struct{}

func (statusNotFound) IsLikely404(_ context.Context, resp *model.Response) bool {
	return resp.Code == http.StatusNotFound
}

type countingFiller struct {
	calls atomic.Int64
}

func (c *countingFiller) FillValue(name string) string {
	c.calls.Add(1)
	return "filled-" + name
}

type targets struct {
	roots  []*url.URL
	domain string
}

func (t targets) TargetRoots() []*url.URL { return t.roots }
func (t targets) TargetDomain() string    { return t.domain }

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse %q: %v", raw, err)
	}
	return u
}

func newSpider(t *testing.T, site *fakeSite, root string, opts ...SpiderOption) *Spider {
	t.Helper()
	u := mustParse(t, root)
	opts = append([]SpiderOption{WithNotFoundClassifier(statusNotFound{})}, opts...)
	s, err := NewSpider(targets{roots: []*url.URL{u}, domain: u.Hostname()}, site, workerpool.New(4), opts...)
	if err != nil {
		t.Fatalf("failed to create spider: %v", err)
	}
	return s
}

func seed(t *testing.T, raw string) *model.FuzzableRequest {
	t.Helper()
	return model.NewQueryStringRequest(mustParse(t, raw))
}

func urlsOf(frs []*model.FuzzableRequest) []string {
	out := make([]string, len(frs))
	for i, fr := range frs {
		out[i] = fr.URLString()
	}
	return out
}

func containsURL(frs []*model.FuzzableRequest, raw string) bool {
	for _, fr := range frs {
		if fr.URLString() == raw {
			return true
		}
	}
	return false
}

// TestNewSpider tests spider construction.
func TestNewSpider(t *testing.T) {
	t.Parallel()

	_, err := NewSpider(targets{}, newFakeSite(), workerpool.New(1), WithScope(ScopeOptions{IgnoreRegex: "(logout"}))
	if !errors.Is(err, scope.ErrInvalidPattern) {
		t.Fatalf("expected ErrInvalidPattern, got %v", err)
	}
	var cfgErr *scope.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Errorf("expected *scope.ConfigurationError, got %T", err)
	}
}

// TestCrawlWithoutTargets tests that an unconfigured scan stays idle.
func TestCrawlWithoutTargets(t *testing.T) {
	t.Parallel()

	site := newFakeSite()
	site.html("http://h/", `<a href="/a">a</a>`)
	s, err := NewSpider(targets{}, site, workerpool.New(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 2; i++ {
		got, err := s.Crawl(context.Background(), seed(t, "http://h/"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected empty result, got %v", urlsOf(got))
		}
	}
	if n := site.fetchCount(func(string) bool { return true }); n != 0 {
		t.Errorf("expected no fetches, got %d", n)
	}
	if s.Filter() != nil {
		t.Error("expected no scope without targets")
	}
}

// TestCrawlUnauthorized tests that a 401 seed yields nothing.
func TestCrawlUnauthorized(t *testing.T) {
	t.Parallel()

	site := newFakeSite()
	site.pages["http://h/admin/"] = page{code: http.StatusUnauthorized, contentType: "text/html", body: `<a href="/admin/users">u</a>`}
	s := newSpider(t, site, "http://h/")

	got, err := s.Crawl(context.Background(), seed(t, "http://h/admin/"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty result, got %v", urlsOf(got))
	}
	if n := site.fetchCount(func(string) bool { return true }); n != 1 {
		t.Errorf("expected only the seed fetch, got %d", n)
	}
}

// TestCrawlSeedFetchError tests that a failing seed yields nothing.
func TestCrawlSeedFetchError(t *testing.T) {
	t.Parallel()

	site := newFakeSite()
	site.fail["http://h/"] = true
	s := newSpider(t, site, "http://h/")

	got, err := s.Crawl(context.Background(), seed(t, "http://h/"))
	if err != nil {
		t.Fatalf("fetch errors must not surface: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty result, got %v", urlsOf(got))
	}
	if s.Stats().FetchErrors != 1 {
		t.Errorf("expected 1 fetch error, got %d", s.Stats().FetchErrors)
	}
}

// TestCrawlVariantCap tests the ?id=2..20 scenario.
func TestCrawlVariantCap(t *testing.T) {
	t.Parallel()

	site := newFakeSite()
	var links strings.Builder
	for i := 2; i <= 20; i++ {
		fmt.Fprintf(&links, `<a href="/videos?id=%d">video %d</a>`, i, i)
		site.html(fmt.Sprintf("http://h/videos?id=%d", i), "<html>video</html>")
	}
	site.html("http://h/videos?id=1", "<html>"+links.String()+"</html>")
	site.html("http://h/", "<html>home</html>")
	s := newSpider(t, site, "http://h/")

	got, err := s.Crawl(context.Background(), seed(t, "http://h/videos?id=1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	siblings := site.fetchCount(func(u string) bool {
		return strings.HasPrefix(u, "http://h/videos?id=") && u != "http://h/videos?id=1"
	})
	if siblings != 5 {
		t.Errorf("expected 5 sibling fetches, got %d", siblings)
	}

	n := 0
	for _, fr := range got {
		if strings.HasPrefix(fr.URLString(), "http://h/videos?id=") {
			n++
		}
	}
	if n != 5 {
		t.Errorf("expected 5 sibling results, got %d: %v", n, urlsOf(got))
	}
	if !containsURL(got, "http://h/") {
		t.Errorf("expected ancestor directory in results, got %v", urlsOf(got))
	}

	stats := s.Stats()
	if stats.VariantCapped != 14 {
		t.Errorf("expected 14 capped references, got %d", stats.VariantCapped)
	}
	if stats.Shapes != 2 {
		t.Errorf("expected 2 shapes (videos and the root directory), got %d", stats.Shapes)
	}

	// A second call on the same page finds every shape already full.
	if _, err := s.Crawl(context.Background(), seed(t, "http://h/videos?id=1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	siblings = site.fetchCount(func(u string) bool {
		return strings.HasPrefix(u, "http://h/videos?id=") && u != "http://h/videos?id=1"
	})
	if siblings != 5 {
		t.Errorf("expected no new sibling fetches, got %d", siblings)
	}
}

// TestCrawlVariantCapHostSpelling tests that host case and default port do
// not open extra variant slots.
func TestCrawlVariantCapHostSpelling(t *testing.T) {
	t.Parallel()

	site := newFakeSite()
	hosts := []string{"h", "H", "h:80"}
	var links strings.Builder
	for i := 2; i <= 20; i++ {
		fmt.Fprintf(&links, `<a href="http://%s/v?id=%d">v</a>`, hosts[i%len(hosts)], i)
	}
	site.html("http://h/", "<html>"+links.String()+"</html>")
	s := newSpider(t, site, "http://h/")

	if _, err := s.Crawl(context.Background(), seed(t, "http://h/")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fetched := site.fetchCount(func(u string) bool {
		return strings.Contains(strings.ToLower(u), "/v?id=")
	})
	if fetched != 5 {
		t.Errorf("expected 5 variant fetches across host spellings, got %d", fetched)
	}
}

// TestCrawlScope tests domain and pattern checks.
func TestCrawlScope(t *testing.T) {
	t.Parallel()

	site := newFakeSite()
	site.html("http://h/", `<html>
		<a href="http://other.org/page">other</a>
		<a href="http://sub.h/page">sub</a>
		<a href="/account/logout">logout</a>
		<a href="/account/profile">profile</a>
	</html>`)
	site.html("http://h/account/profile", "<html>profile</html>")
	s := newSpider(t, site, "http://h/", WithScope(ScopeOptions{FollowRegex: ".*", IgnoreRegex: "logout"}))

	got, err := s.Crawl(context.Background(), seed(t, "http://h/"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, u := range []string{"http://other.org/page", "http://sub.h/page", "http://h/account/logout"} {
		if site.requestFor(u) != nil {
			t.Errorf("expected %s never to be fetched", u)
		}
	}
	for _, fr := range got {
		if fr.URL.Hostname() != "h" {
			t.Errorf("result outside target domain: %s", fr.URLString())
		}
	}
	if !containsURL(got, "http://h/account/profile") {
		t.Errorf("expected profile in results, got %v", urlsOf(got))
	}

	stats := s.Stats()
	if stats.OutOfDomain != 2 {
		t.Errorf("expected 2 out-of-domain references, got %d", stats.OutOfDomain)
	}
	if stats.PatternRejected != 1 {
		t.Errorf("expected 1 pattern rejection, got %d", stats.PatternRejected)
	}
}

// TestCrawlNotFound tests the 404 branch.
func TestCrawlNotFound(t *testing.T) {
	t.Parallel()

	site := newFakeSite()
	site.html("http://h/", `<html>
		<a href="/missing">missing</a>
		<script>var api = "/ghost";</script>
	</html>`)
	site.pages["http://h/missing"] = page{
		code:        http.StatusNotFound,
		contentType: "text/html",
		body:        `<html><form action="/search"><input name="q"></form></html>`,
	}
	s := newSpider(t, site, "http://h/")

	got, err := s.Crawl(context.Background(), seed(t, "http://h/"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if containsURL(got, "http://h/missing") {
		t.Errorf("404 URL must not be a result: %v", urlsOf(got))
	}
	if !containsURL(got, "http://h/search?q=") {
		t.Errorf("expected form from 404 page in results, got %v", urlsOf(got))
	}
	if site.requestFor("http://h/ghost") == nil {
		t.Error("expected heuristic reference to be verified")
	}

	broken := s.End()
	if len(broken) != 1 {
		t.Fatalf("expected 1 broken link, got %v", broken)
	}
	want := model.BrokenLink{URL: "http://h/missing", Referrer: "http://h/"}
	if broken[0] != want {
		t.Errorf("expected %v, got %v", want, broken[0])
	}
	if s.Stats().NotFound != 2 {
		t.Errorf("expected 2 not-found responses, got %d", s.Stats().NotFound)
	}
}

// TestBrokenLinkDedup tests that a pair is recorded once.
func TestBrokenLinkDedup(t *testing.T) {
	t.Parallel()

	site := newFakeSite()
	site.html("http://h/a/", `<a href="/dead">x</a><a href="/dead">again</a>`)
	site.html("http://h/b/", `<a href="/dead">x</a>`)
	site.html("http://h/", "<html></html>")
	s := newSpider(t, site, "http://h/")

	for i := 0; i < 2; i++ {
		if _, err := s.Crawl(context.Background(), seed(t, "http://h/a/")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if _, err := s.Crawl(context.Background(), seed(t, "http://h/b/")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	broken := s.End()
	want := []model.BrokenLink{
		{URL: "http://h/dead", Referrer: "http://h/a/"},
		{URL: "http://h/dead", Referrer: "http://h/b/"},
	}
	if len(broken) != len(want) {
		t.Fatalf("expected %d broken links, got %v", len(want), broken)
	}
	for i := range want {
		if broken[i] != want[i] {
			t.Errorf("broken link %d: expected %v, got %v", i, want[i], broken[i])
		}
	}

	if again := s.End(); len(again) != len(want) {
		t.Errorf("expected End to be repeatable, got %v", again)
	}
	if n := s.Stats().BrokenLinks; n != int64(len(want)) {
		t.Errorf("expected %d broken links in stats, got %d", len(want), n)
	}
}

// TestCrawlFormFill tests that a post form is filled once per URL.
func TestCrawlFormFill(t *testing.T) {
	t.Parallel()

	site := newFakeSite()
	site.html("http://h/login", "<html>ok</html>")
	filler := &countingFiller{}
	s := newSpider(t, site, "http://h/", WithFormFiller(filler))

	newSeed := func() *model.FuzzableRequest {
		return model.NewPostDataRequest(mustParse(t, "http://h/login"), []model.FormField{
			{Name: "name", Type: "text"},
			{Name: "__VIEWSTATE", Type: "hidden", Value: "dDwtMTA4"},
			{Name: "remember", Type: "checkbox"},
		})
	}

	first := newSeed()
	if _, err := s.Crawl(context.Background(), first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fields := first.Form.Fields
	if fields[0].Value != "filled-name" {
		t.Errorf("expected name to be filled, got %q", fields[0].Value)
	}
	if fields[1].Value != "dDwtMTA4" {
		t.Errorf("expected __VIEWSTATE untouched, got %q", fields[1].Value)
	}
	if fields[2].Value != "" {
		t.Errorf("expected checkbox untouched, got %q", fields[2].Value)
	}
	if req := site.requestFor("http://h/login"); req == nil || req.Body != "name=filled-name&__VIEWSTATE=dDwtMTA4&remember=" {
		t.Errorf("expected filled body to be sent, got %+v", req)
	}

	second := newSeed()
	if _, err := s.Crawl(context.Background(), second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Form.Fields[0].Value != "" {
		t.Errorf("expected second seed not to be re-filled, got %q", second.Form.Fields[0].Value)
	}
	if filler.calls.Load() != 1 {
		t.Errorf("expected 1 fill call, got %d", filler.calls.Load())
	}
}

// TestCrawlOnlyForward tests that out-of-root references are never fetched.
func TestCrawlOnlyForward(t *testing.T) {
	t.Parallel()

	site := newFakeSite()
	site.html("http://h/app/", `<a href="/app/users">u</a><a href="/other/x">o</a>`)
	site.html("http://h/app/users", "<html>users</html>")
	s := newSpider(t, site, "http://h/app/", WithScope(ScopeOptions{OnlyForward: true}))

	got, err := s.Crawl(context.Background(), seed(t, "http://h/app/"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if site.requestFor("http://h/other/x") != nil {
		t.Error("expected /other/x not to be fetched")
	}
	if site.requestFor("http://h/") != nil {
		t.Error("expected root directory not to be fetched")
	}
	if !containsURL(got, "http://h/app/users") {
		t.Errorf("expected forward reference in results, got %v", urlsOf(got))
	}
	if n := s.Stats().NotForward; n != 2 {
		t.Errorf("expected 2 skipped references, got %d", n)
	}
}

// TestCrawlReferer tests the Referer header on fetches and results.
func TestCrawlReferer(t *testing.T) {
	t.Parallel()

	site := newFakeSite()
	site.html("http://h/dir/page.php", `<a href="/dir/next.php">n</a>`)
	site.html("http://h/dir/next.php", "<html>next</html>")
	s := newSpider(t, site, "http://h/")

	got, err := s.Crawl(context.Background(), seed(t, "http://h/dir/page.php"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := site.requestFor("http://h/dir/next.php")
	if req == nil {
		t.Fatal("expected next.php to be fetched")
	}
	if got := req.Header.Get("Referer"); got != "http://h/" {
		t.Errorf("expected Referer http://h/, got %q", got)
	}
	if req.FollowRedirects {
		t.Error("expected redirects to be disabled")
	}
	for _, fr := range got {
		if fr.URLString() == "http://h/dir/next.php" && fr.Headers.Get("Referer") != "http://h/" {
			t.Errorf("expected Referer on result, got %q", fr.Headers.Get("Referer"))
		}
	}
}

// TestCrawlFetchErrorDropsBranch tests that a failing reference is skipped.
func TestCrawlFetchErrorDropsBranch(t *testing.T) {
	t.Parallel()

	site := newFakeSite()
	site.html("http://h/", `<a href="/ok">ok</a><a href="/broken-conn">x</a>`)
	site.html("http://h/ok", "<html>ok</html>")
	site.fail["http://h/broken-conn"] = true
	s := newSpider(t, site, "http://h/")

	got, err := s.Crawl(context.Background(), seed(t, "http://h/"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !containsURL(got, "http://h/ok") {
		t.Errorf("expected /ok in results, got %v", urlsOf(got))
	}
	if containsURL(got, "http://h/broken-conn") {
		t.Error("failed reference must not be a result")
	}
	if len(s.End()) != 0 {
		t.Error("fetch errors must not be broken links")
	}
}

// TestCrawlCancelled tests that a cancelled context is reported.
func TestCrawlCancelled(t *testing.T) {
	t.Parallel()

	site := newFakeSite()
	site.html("http://h/", "<html></html>")
	s := newSpider(t, site, "http://h/")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Crawl(ctx, seed(t, "http://h/")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// TestCrawlConcurrent tests shared state under concurrent Crawl calls.
func TestCrawlConcurrent(t *testing.T) {
	t.Parallel()

	site := newFakeSite()
	var links strings.Builder
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&links, `<a href="/item?id=%d">i</a>`, i)
		site.html(fmt.Sprintf("http://h/item?id=%d", i), "<html>item</html>")
	}
	for i := 0; i < 10; i++ {
		site.html(fmt.Sprintf("http://h/list%d", i), "<html>"+links.String()+`<a href="/dead">d</a></html>`)
	}
	site.html("http://h/", "<html></html>")
	s := newSpider(t, site, "http://h/")

	seeds := make([]*model.FuzzableRequest, 10)
	for i := range seeds {
		seeds[i] = seed(t, fmt.Sprintf("http://h/list%d", i))
	}

	var wg sync.WaitGroup
	for _, sd := range seeds {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Crawl(context.Background(), sd); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	items := site.fetchCount(func(u string) bool { return strings.HasPrefix(u, "http://h/item?id=") })
	if items != 5 {
		t.Errorf("expected 5 item fetches across all calls, got %d", items)
	}
	if got := len(s.End()); got != 5 {
		t.Errorf("expected 5 broken links, one per admitted /dead reference, got %d", got)
	}
}

// TestAncestors tests directory synthesis.
func TestAncestors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want []string
	}{
		{"http://h/a/b/c.php?x=1", []string{"http://h/a/b/", "http://h/a/", "http://h/"}},
		{"http://h/a/b/", []string{"http://h/a/", "http://h/"}},
		{"http://h/x.php", []string{"http://h/"}},
		{"http://h/", nil},
		{"http://h", nil},
	}
	for _, tt := range tests {
		got := ancestors(mustParse(t, tt.raw))
		if len(got) != len(tt.want) {
			t.Errorf("ancestors(%q) = %v, want %v", tt.raw, got, tt.want)
			continue
		}
		for i := range tt.want {
			if got[i].String() != tt.want[i] {
				t.Errorf("ancestors(%q)[%d] = %q, want %q", tt.raw, i, got[i].String(), tt.want[i])
			}
		}
	}
}
