package notfound

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/nao1215/webspider/internal/httpclient"
	"github.com/nao1215/webspider/internal/model"
)

func newFetcher(t *testing.T) *httpclient.Client {
	t.Helper()
	c, err := httpclient.New()
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return c
}

func fetch(t *testing.T, c *httpclient.Client, raw string) *model.Response {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse %q: %v", raw, err)
	}
	resp, err := c.Fetch(context.Background(), httpclient.NewGet(u))
	if err != nil {
		t.Fatalf("failed to fetch %q: %v", raw, err)
	}
	return resp
}

// TestIsLikely404 tests 404 detection against real and soft-404 sites.
func TestIsLikely404(t *testing.T) {
	t.Parallel()

	t.Run("real 404 status", func(t *testing.T) {
		t.Parallel()

		c := New(nil)
		if !c.IsLikely404(context.Background(), &model.Response{Code: http.StatusNotFound}) {
			t.Error("expected status 404 to be 404-like")
		}
		if c.IsLikely404(context.Background(), nil) {
			t.Error("expected nil response not to be 404-like")
		}
	})

	t.Run("site with real 404s", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/exists.php" {
				_, _ = io.WriteString(w, "welcome")
				return
			}
			http.NotFound(w, r)
		}))
		defer srv.Close()

		client := newFetcher(t)
		c := New(client)
		if c.IsLikely404(context.Background(), fetch(t, client, srv.URL+"/exists.php")) {
			t.Error("expected existing page not to be 404-like")
		}
		if !c.IsLikely404(context.Background(), fetch(t, client, srv.URL+"/missing.php")) {
			t.Error("expected missing page to be 404-like")
		}
	})

	t.Run("soft 404 site", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/shop/item.php":
				_, _ = io.WriteString(w, "<html><body><h1>Blue widget</h1><p>In stock, ships tomorrow.</p></body></html>")
			default:
				fmt.Fprintf(w, "<html><body><h1>Oops</h1><p>The page %s could not be found on this server.</p></body></html>", r.URL.Path)
			}
		}))
		defer srv.Close()

		client := newFetcher(t)
		c := New(client)
		if c.IsLikely404(context.Background(), fetch(t, client, srv.URL+"/shop/item.php")) {
			t.Error("expected real page not to be 404-like")
		}
		if !c.IsLikely404(context.Background(), fetch(t, client, srv.URL+"/shop/nothing.php")) {
			t.Error("expected soft 404 to be detected")
		}
		if c.Probes() != 1 {
			t.Errorf("expected one probe for /shop/ .php, got %d", c.Probes())
		}
	})

	t.Run("probes once per directory and extension", func(t *testing.T) {
		t.Parallel()

		var probes atomic.Int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(r.URL.Path) > 20 {
				probes.Add(1)
				http.NotFound(w, r)
				return
			}
			_, _ = io.WriteString(w, "ok")
		}))
		defer srv.Close()

		client := newFetcher(t)
		c := New(client)
		resp := fetch(t, client, srv.URL+"/a/x.html")

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				c.IsLikely404(context.Background(), resp)
			}()
		}
		wg.Wait()

		if probes.Load() != 1 {
			t.Errorf("expected 1 probe request, got %d", probes.Load())
		}

		c.IsLikely404(context.Background(), fetch(t, client, srv.URL+"/a/y.php"))
		if probes.Load() != 2 {
			t.Errorf("expected a new probe for another extension, got %d", probes.Load())
		}
	})

	t.Run("failed probe falls back to status", func(t *testing.T) {
		t.Parallel()

		c := New(failingFetcher{})
		u, _ := url.Parse("http://h/page")
		if c.IsLikely404(context.Background(), &model.Response{Code: http.StatusOK, URL: u, Body: []byte("x")}) {
			t.Error("expected non-404 when probe fails")
		}
		if c.Probes() != 0 {
			t.Errorf("expected a failed baseline not to be remembered, got %d", c.Probes())
		}
	})

	t.Run("retries after a transient fetch failure", func(t *testing.T) {
		t.Parallel()

		f := &flakyFetcher{}
		c := New(f)
		u, _ := url.Parse("http://h/dir/page")
		resp := &model.Response{Code: http.StatusOK, URL: u, Body: []byte("<html>nothing here</html>")}

		if c.IsLikely404(context.Background(), resp) {
			t.Error("expected non-404 while the baseline fetch fails")
		}
		if !c.IsLikely404(context.Background(), resp) {
			t.Error("expected soft 404 once the baseline fetch succeeds")
		}
		if got := f.calls.Load(); got != 2 {
			t.Errorf("expected 2 baseline fetches, got %d", got)
		}
		if c.Probes() != 1 {
			t.Errorf("expected the successful baseline to be remembered, got %d", c.Probes())
		}
	})
}

// flakyFetcher fails its first fetch and then serves a soft 404 page.
type flakyFetcher struct {
	calls atomic.Int64
}

func (f *flakyFetcher) Fetch(_ context.Context, req *httpclient.Request) (*model.Response, error) {
	if f.calls.Add(1) == 1 {
		return nil, errors.New("connection reset")
	}
	u := *req.URL
	return &model.Response{Code: http.StatusOK, URL: &u, Body: []byte("<html>nothing here</html>")}, nil
}

type failingFetcher struct{}

func (failingFetcher) Fetch(context.Context, *httpclient.Request) (*model.Response, error) {
	return nil, errors.New("connection refused")
}

// TestSimilarity tests token similarity.
func TestSimilarity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "a b c", "a b c", 1},
		{"disjoint", "a b", "c d", 0},
		{"half", "a b", "a c", 0.5},
		{"both empty", "", "", 1},
		{"one empty", "a", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := Similarity(tokenize(tt.a), tokenize(tt.b)); got != tt.want {
				t.Errorf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

// TestStripName tests requested-name removal.
func TestStripName(t *testing.T) {
	t.Parallel()

	got := stripName("missing.php not found (missing)", "missing.php")
	if got != " not found ()" {
		t.Errorf("unexpected result %q", got)
	}
	if got := stripName("body", ""); got != "body" {
		t.Errorf("expected unchanged body, got %q", got)
	}
}
