package parser

import (
	"bytes"
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/nao1215/webspider/internal/model"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// linkAttrs maps element names to the attribute holding a reference.
var linkAttrs = map[string]string{
	"a":      "href",
	"area":   "href",
	"link":   "href",
	"script": "src",
	"img":    "src",
	"iframe": "src",
	"frame":  "src",
	"embed":  "src",
	"form":   "action",
	"object": "data",
}

var (
	// absoluteURLRegex finds absolute http(s) URLs in raw text.
	absoluteURLRegex = regexp.MustCompile(`https?://[^\s"'<>()\\{}|^` + "`" + `]+`)

	// relativePathRegex finds quoted root-relative paths such as "/api/users".
	relativePathRegex = regexp.MustCompile(`["'](/[^"'\s<>\\]*)["']`)

	// refreshURLRegex extracts the target of a meta refresh content attribute.
	refreshURLRegex = regexp.MustCompile(`(?i)url\s*=\s*['"]?([^'"\s;]+)`)
)

// Parser extracts references from responses. It has no mutable state and is
// safe for concurrent use.
type Parser struct {
	logger *slog.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) {
		p.logger = logger
	}
}

// New creates a Parser.
func New(opts ...Option) *Parser {
	p := &Parser{}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Parse returns the parsed and heuristic references found in resp.
// All URLs are absolute http(s) URLs without fragment, deduplicated, in
// document order.
func (p *Parser) Parse(resp *model.Response) (parsed, heuristic []*url.URL, err error) {
	if resp == nil || resp.URL == nil {
		return nil, nil, ErrNoParser
	}

	switch {
	case resp.IsHTML():
		text := decode(resp)
		parsed = p.parseHTML(resp.URL, text)
		heuristic = scanText(resp.URL, text, parsed)
	case resp.IsTextOrHTML():
		heuristic = scanText(resp.URL, decode(resp), nil)
	case resp.IsPDF(), resp.IsSWF():
		heuristic = scanText(resp.URL, string(resp.Body), nil)
	default:
		return nil, nil, ErrNoParser
	}

	p.logger.Debug("parsed document",
		"url", resp.URL.String(),
		"parsed", len(parsed),
		"heuristic", len(heuristic),
	)
	return parsed, heuristic, nil
}

// decode converts the body to UTF-8 using the declared or sniffed charset.
func decode(resp *model.Response) string {
	r, err := charset.NewReader(bytes.NewReader(resp.Body), resp.Header.Get("Content-Type"))
	if err != nil {
		return string(resp.Body)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return string(resp.Body)
	}
	return string(data)
}

func (p *Parser) parseHTML(base *url.URL, text string) []*url.URL {
	doc, err := html.Parse(strings.NewReader(text))
	if err != nil {
		p.logger.Debug("html parse failed", "url", base.String(), "error", err)
		return nil
	}

	c := newCollector()
	docBase := base

	// <base href> applies to every relative URL in the document.
	if b := findBase(doc); b != "" {
		if u := resolve(base, b); u != nil {
			docBase = u
		}
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if attr, ok := linkAttrs[n.Data]; ok {
				if v := getAttr(n, attr); v != "" {
					c.add(resolve(docBase, v))
				}
			}
			if n.Data == "meta" && strings.EqualFold(getAttr(n, "http-equiv"), "refresh") {
				if m := refreshURLRegex.FindStringSubmatch(getAttr(n, "content")); m != nil {
					c.add(resolve(docBase, m[1]))
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return c.urls
}

func findBase(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "base" {
		return getAttr(n, "href")
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if v := findBase(child); v != "" {
			return v
		}
	}
	return ""
}

// scanText finds heuristic references in text, skipping those in exclude.
func scanText(base *url.URL, text string, exclude []*url.URL) []*url.URL {
	c := newCollector()
	for _, u := range exclude {
		c.seen[u.String()] = struct{}{}
	}

	for _, m := range absoluteURLRegex.FindAllString(text, -1) {
		c.add(resolve(base, strings.TrimRight(m, ".,;:")))
	}
	for _, m := range relativePathRegex.FindAllStringSubmatch(text, -1) {
		// Protocol-relative "//host/..." is left to the absolute scan.
		if strings.HasPrefix(m[1], "//") {
			continue
		}
		c.add(resolve(base, m[1]))
	}
	return c.urls
}

// collector keeps unique URLs in insertion order.
type collector struct {
	seen map[string]struct{}
	urls []*url.URL
}

func newCollector() *collector {
	return &collector{seen: make(map[string]struct{})}
}

func (c *collector) add(u *url.URL) {
	if u == nil {
		return
	}
	key := u.String()
	if _, ok := c.seen[key]; ok {
		return
	}
	c.seen[key] = struct{}{}
	c.urls = append(c.urls, u)
}

// resolve resolves href against base and keeps only http(s) URLs.
func resolve(base *url.URL, href string) *url.URL {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return nil
	}
	lower := strings.ToLower(href)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return nil
		}
	}

	ref, err := url.Parse(href)
	if err != nil {
		return nil
	}
	u := base.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil
	}
	if u.Host == "" {
		return nil
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if strings.EqualFold(attr.Key, key) {
			return attr.Val
		}
	}
	return ""
}
