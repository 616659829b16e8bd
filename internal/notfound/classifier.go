package notfound

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"unicode"

	"github.com/nao1215/webspider/internal/httpclient"
	"github.com/nao1215/webspider/internal/model"
	"golang.org/x/crypto/sha3"
	"golang.org/x/sync/singleflight"
)

// Threshold is the default similarity above which two bodies are the same page.
const Threshold = 0.9

// Fetcher performs HTTP requests.
type Fetcher interface {
	Fetch(ctx context.Context, req *httpclient.Request) (*model.Response, error)
}

// probe is the remembered answer for a missing file in one directory.
type probe struct {
	code   int
	digest [32]byte
	tokens []string
	err    error
}

// Classifier detects 404 pages. It is safe for concurrent use.
type Classifier struct {
	fetcher   Fetcher
	threshold float64
	logger    *slog.Logger

	group  singleflight.Group
	mu     sync.Mutex
	probes map[string]*probe
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithThreshold sets the similarity threshold in (0, 1].
func WithThreshold(t float64) Option {
	return func(c *Classifier) {
		if t > 0 && t <= 1 {
			c.threshold = t
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Classifier) {
		c.logger = logger
	}
}

// New creates a Classifier probing through fetcher.
func New(fetcher Fetcher, opts ...Option) *Classifier {
	c := &Classifier{
		fetcher:   fetcher,
		threshold: Threshold,
		probes:    make(map[string]*probe),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// IsLikely404 reports whether resp is a "not found" answer.
// A failed probe leaves only the status code to decide.
func (c *Classifier) IsLikely404(ctx context.Context, resp *model.Response) bool {
	if resp == nil {
		return false
	}
	if resp.Code == http.StatusNotFound {
		return true
	}
	if resp.URL == nil {
		return false
	}

	p := c.probe(ctx, resp.URL)
	if p.err != nil {
		return false
	}
	if p.code == http.StatusNotFound {
		return false
	}

	body := stripName(string(resp.Body), path.Base(resp.URL.Path))
	if sha3.Sum256([]byte(body)) == p.digest {
		return true
	}
	return Similarity(tokenize(body), p.tokens) >= c.threshold
}

// Probes returns the number of remembered probes.
func (c *Classifier) Probes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.probes)
}

func (c *Classifier) probe(ctx context.Context, u *url.URL) *probe {
	dir := dirOf(u.Path)
	ext := path.Ext(u.Path)
	key := u.Scheme + "://" + u.Host + dir + "|" + ext

	c.mu.Lock()
	p, ok := c.probes[key]
	c.mu.Unlock()
	if ok {
		return p
	}

	v, _, _ := c.group.Do(key, func() (any, error) {
		c.mu.Lock()
		if p, ok := c.probes[key]; ok {
			c.mu.Unlock()
			return p, nil
		}
		c.mu.Unlock()

		p := c.fetchProbe(ctx, u, dir, ext)
		// Failed probes are not remembered so a later call can retry.
		if p.err == nil {
			c.mu.Lock()
			c.probes[key] = p
			c.mu.Unlock()
		}
		return p, nil
	})
	return v.(*probe)
}

func (c *Classifier) fetchProbe(ctx context.Context, u *url.URL, dir, ext string) *probe {
	name := randomName() + ext
	target := &url.URL{Scheme: u.Scheme, Host: u.Host, Path: dir + name}

	resp, err := c.fetcher.Fetch(ctx, httpclient.NewGet(target))
	if err != nil {
		c.logger.Debug("404 probe failed", "url", target.String(), "error", err)
		return &probe{err: err}
	}

	body := stripName(string(resp.Body), name)
	c.logger.Debug("404 probe", "url", target.String(), "status", resp.Code)
	return &probe{
		code:   resp.Code,
		digest: sha3.Sum256([]byte(body)),
		tokens: tokenize(body),
	}
}

func randomName() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func dirOf(p string) string {
	if p == "" {
		return "/"
	}
	if strings.HasSuffix(p, "/") {
		return p
	}
	d := path.Dir(p)
	if d == "/" || d == "." {
		return "/"
	}
	return d + "/"
}

// stripName removes every occurrence of name, and of its extension-less
// form, from body.
func stripName(body, name string) string {
	if name == "" || name == "/" || name == "." {
		return body
	}
	body = strings.ReplaceAll(body, name, "")
	if stem := strings.TrimSuffix(name, path.Ext(name)); stem != "" && stem != name {
		body = strings.ReplaceAll(body, stem, "")
	}
	return body
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Similarity returns 2*common/(len(a)+len(b)) over token multisets.
// Two empty inputs are identical.
func Similarity(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	counts := make(map[string]int, len(a))
	for _, t := range a {
		counts[t]++
	}
	common := 0
	for _, t := range b {
		if counts[t] > 0 {
			counts[t]--
			common++
		}
	}
	return 2 * float64(common) / float64(len(a)+len(b))
}
