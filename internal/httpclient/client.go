package httpclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/nao1215/webspider/internal/model"
	"golang.org/x/net/proxy"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds a single request including reading the body.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent identifies the crawler.
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"

	// DefaultMaxBodySize caps how much of a response body is read.
	DefaultMaxBodySize int64 = 5 * 1024 * 1024

	// DefaultCacheSize caps the total body bytes held by the GET cache.
	// The oldest entries are evicted first once the cap is reached.
	DefaultCacheSize int64 = 64 * 1024 * 1024

	maxRedirects = 10
)

// Client fetches URLs for the crawler. It is safe for concurrent use.
type Client struct {
	timeout     time.Duration
	userAgent   string
	maxBodySize int64
	headers     map[string]string
	cookie      string
	proxyAddr   string
	rps         float64
	insecure    bool
	logger      *slog.Logger

	follow   *http.Client
	noFollow *http.Client
	limiter  *rate.Limiter

	group      singleflight.Group
	mu         sync.RWMutex
	cache      map[string]*model.Response
	cacheOrder []string
	cacheBytes int64
	cacheSize  int64
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithMaxBodySize sets how many body bytes are read per response.
func WithMaxBodySize(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBodySize = n
		}
	}
}

// WithCacheSize sets how many body bytes the GET cache may hold.
// Zero disables caching.
func WithCacheSize(n int64) Option {
	return func(c *Client) {
		if n >= 0 {
			c.cacheSize = n
		}
	}
}

// WithHeaders adds headers sent with every request.
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) {
		for k, v := range headers {
			c.headers[k] = v
		}
	}
}

// WithCookie sets a raw cookie string (e.g. "session=abc") sent with every request.
func WithCookie(cookie string) Option {
	return func(c *Client) {
		c.cookie = cookie
	}
}

// WithSOCKS5 routes connections through the SOCKS5 proxy at addr ("host:port").
func WithSOCKS5(addr string) Option {
	return func(c *Client) {
		c.proxyAddr = addr
	}
}

// WithRate limits requests per second. Zero or less means unlimited.
func WithRate(rps float64) Option {
	return func(c *Client) {
		c.rps = rps
	}
}

// WithInsecureSkipVerify disables TLS certificate verification.
func WithInsecureSkipVerify(skip bool) Option {
	return func(c *Client) {
		c.insecure = skip
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a Client. It fails only on an invalid proxy address.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		timeout:     DefaultTimeout,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
		headers:     make(map[string]string),
		cache:       make(map[string]*model.Response),
		cacheSize:   DefaultCacheSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: c.insecure, //nolint:gosec // opt-in for targets with self-signed certificates
		},
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     30 * time.Second,
	}

	if c.proxyAddr != "" {
		if !isValidProxyAddress(c.proxyAddr) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidProxyAddress, c.proxyAddr)
		}
		dialer, err := proxy.SOCKS5("tcp", c.proxyAddr, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		transport.Proxy = nil
		transport.DialContext = dialContext(dialer)
	}

	if c.rps > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(c.rps), 1)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	rt := &headerInjectingTransport{
		base:      transport,
		userAgent: c.userAgent,
		cookie:    c.cookie,
		headers:   c.headers,
	}

	c.follow = &http.Client{
		Transport: rt,
		Timeout:   c.timeout,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
	c.noFollow = &http.Client{
		Transport: rt,
		Timeout:   c.timeout,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return c, nil
}

func dialContext(d proxy.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext
	}
	return func(_ context.Context, network, addr string) (net.Conn, error) {
		return d.Dial(network, addr)
	}
}

// isValidProxyAddress checks for "host:port" with a port in 1..65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" || port == "" {
		return false
	}
	n := 0
	for _, r := range port {
		if r < '0' || r > '9' {
			return false
		}
		n = n*10 + int(r-'0')
		if n > 65535 {
			return false
		}
	}
	return n >= 1
}

// Fetch performs req and returns the response.
// Non-2xx status codes are not errors.
func (c *Client) Fetch(ctx context.Context, req *Request) (*model.Response, error) {
	if req == nil || req.URL == nil {
		return nil, ErrNilRequest
	}
	if !req.cacheable() {
		return c.do(ctx, req)
	}

	key := req.cacheKey()
	if resp, ok := c.cached(key); ok {
		return resp, nil
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		if resp, ok := c.cached(key); ok {
			return resp, nil
		}
		resp, err := c.do(ctx, req)
		if err != nil {
			return nil, err
		}
		c.store(key, resp)
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug("collapsed concurrent fetch", "url", req.URL.String())
	}
	return copyResponse(v.(*model.Response)), nil
}

func (c *Client) cached(key string) (*model.Response, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	resp, ok := c.cache[key]
	if !ok {
		return nil, false
	}
	return copyResponse(resp), true
}

// store caches resp under key, evicting the oldest entries until the body
// bytes fit within the cache size. Bodies larger than the cache are skipped.
func (c *Client) store(key string, resp *model.Response) {
	size := int64(len(resp.Body))
	if c.cacheSize == 0 || size > c.cacheSize {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.cache[key]; ok {
		return
	}
	for c.cacheBytes+size > c.cacheSize && len(c.cacheOrder) > 0 {
		oldest := c.cacheOrder[0]
		c.cacheOrder = c.cacheOrder[1:]
		c.cacheBytes -= int64(len(c.cache[oldest].Body))
		delete(c.cache, oldest)
	}
	c.cache[key] = resp
	c.cacheOrder = append(c.cacheOrder, key)
	c.cacheBytes += size
}

// CacheLen returns the number of cached responses.
func (c *Client) CacheLen() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// CacheBytes returns the total body bytes held by the cache.
func (c *Client) CacheBytes() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cacheBytes
}

func (c *Client) do(ctx context.Context, req *Request) (*model.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var body io.Reader
	if req.Body != "" {
		body = strings.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method(), req.URL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	client := c.noFollow
	if req.FollowRedirects {
		client = c.follow
	}

	c.logger.Debug("fetching", "method", httpReq.Method, "url", httpReq.URL.String())

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	final := req.URL
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL
	}
	u := *final
	return &model.Response{
		Code:   resp.StatusCode,
		URL:    &u,
		Header: resp.Header,
		Body:   data,
	}, nil
}

func copyResponse(r *model.Response) *model.Response {
	c := *r
	if r.URL != nil {
		u := *r.URL
		c.URL = &u
	}
	c.Header = r.Header.Clone()
	return &c
}

// headerInjectingTransport adds the client-wide headers to every request.
// Per-request headers win over client-wide ones.
type headerInjectingTransport struct {
	base      http.RoundTripper
	userAgent string
	cookie    string
	headers   map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if clone.Header.Get("User-Agent") == "" {
		clone.Header.Set("User-Agent", t.userAgent)
	}
	for key, value := range t.headers {
		if clone.Header.Get(key) == "" {
			clone.Header.Set(key, value)
		}
	}
	if t.cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+t.cookie)
		} else {
			clone.Header.Set("Cookie", t.cookie)
		}
	}

	return t.base.RoundTrip(clone)
}
