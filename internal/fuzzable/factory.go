package fuzzable

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/nao1215/webspider/internal/model"
)

// redirectHeaders are response headers whose value is a URL worth requesting.
var redirectHeaders = []string{"Location", "Content-Location"}

// ignoredInputTypes are inputs that never carry user data.
var ignoredInputTypes = map[string]bool{
	"button": true,
	"reset":  true,
	"image":  true,
}

// Factory builds fuzzable requests from responses. It is safe for concurrent use.
type Factory struct {
	logger *slog.Logger
}

// Option configures a Factory.
type Option func(*Factory)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Factory) {
		f.logger = logger
	}
}

// New creates a Factory.
func New(opts ...Option) *Factory {
	f := &Factory{}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f
}

// Build returns the fuzzable requests found in resp, deduplicated by key.
// When includeSelf is true the response URL itself comes first.
// Every request carries the cookie set by resp, or else the seed's cookie.
func (f *Factory) Build(resp *model.Response, seed *model.FuzzableRequest, includeSelf bool) []*model.FuzzableRequest {
	if resp == nil || resp.URL == nil {
		return nil
	}

	cookie := responseCookie(resp)
	if cookie == "" && seed != nil {
		cookie = seed.Cookie
	}

	out := newResultList()
	if includeSelf {
		out.add(model.NewQueryStringRequest(resp.URL))
	}

	for _, h := range redirectHeaders {
		v := resp.Header.Get(h)
		if v == "" {
			continue
		}
		if u := resolve(resp.URL, v); u != nil {
			out.add(model.NewQueryStringRequest(u))
		}
	}

	if resp.IsHTML() {
		for _, fr := range f.forms(resp) {
			out.add(fr)
		}
	}

	for _, fr := range out.items {
		fr.Cookie = cookie
	}
	return out.items
}

// forms extracts every <form> of an HTML response.
func (f *Factory) forms(resp *model.Response) []*model.FuzzableRequest {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		f.logger.Debug("failed to read forms", "url", resp.URL.String(), "error", err)
		return nil
	}

	base := resp.URL
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if u := resolve(resp.URL, href); u != nil {
			base = u
		}
	}

	var requests []*model.FuzzableRequest
	doc.Find("form").Each(func(_ int, form *goquery.Selection) {
		action := base
		if raw, ok := form.Attr("action"); ok && strings.TrimSpace(raw) != "" {
			u := resolve(base, raw)
			if u == nil {
				return
			}
			action = u
		}

		fields := formFields(form)
		method := strings.ToUpper(strings.TrimSpace(form.AttrOr("method", http.MethodGet)))

		if method == http.MethodPost {
			requests = append(requests, model.NewPostDataRequest(action, fields))
			return
		}

		u := *action
		if len(fields) > 0 {
			parts := make([]string, 0, len(fields))
			for _, field := range fields {
				parts = append(parts, url.QueryEscape(field.Name)+"="+url.QueryEscape(field.Value))
			}
			u.RawQuery = strings.Join(parts, "&")
		}
		requests = append(requests, model.NewQueryStringRequest(&u))
	})
	return requests
}

// formFields returns the named inputs of a form in document order.
func formFields(form *goquery.Selection) []model.FormField {
	fields := make([]model.FormField, 0)
	form.Find("input, select, textarea").Each(func(_ int, s *goquery.Selection) {
		name, ok := s.Attr("name")
		if !ok || name == "" {
			return
		}

		switch goquery.NodeName(s) {
		case "select":
			fields = append(fields, model.FormField{
				Name:  name,
				Type:  model.FieldTypeSelect,
				Value: firstOption(s),
			})
		case "textarea":
			fields = append(fields, model.FormField{
				Name:  name,
				Type:  "textarea",
				Value: s.Text(),
			})
		default:
			typ := strings.ToLower(strings.TrimSpace(s.AttrOr("type", "text")))
			if typ == "" {
				typ = "text"
			}
			if ignoredInputTypes[typ] {
				return
			}
			fields = append(fields, model.FormField{
				Name:  name,
				Type:  typ,
				Value: s.AttrOr("value", ""),
			})
		}
	})
	return fields
}

// firstOption returns the selected option value of a select, or its first one.
func firstOption(sel *goquery.Selection) string {
	opt := sel.Find("option[selected]").First()
	if opt.Length() == 0 {
		opt = sel.Find("option").First()
	}
	if opt.Length() == 0 {
		return ""
	}
	if v, ok := opt.Attr("value"); ok {
		return v
	}
	return strings.TrimSpace(opt.Text())
}

// responseCookie joins the name=value pairs of the response Set-Cookie headers.
func responseCookie(resp *model.Response) string {
	cookies := (&http.Response{Header: resp.Header}).Cookies()
	if len(cookies) == 0 {
		return ""
	}
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

// resolve resolves raw against base, keeping only http(s) URLs.
func resolve(base *url.URL, raw string) *url.URL {
	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil
	}
	u := base.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil
	}
	return u
}

type resultList struct {
	seen  map[string]struct{}
	items []*model.FuzzableRequest
}

func newResultList() *resultList {
	return &resultList{seen: make(map[string]struct{})}
}

func (l *resultList) add(fr *model.FuzzableRequest) {
	key := fr.Key()
	if _, ok := l.seen[key]; ok {
		return
	}
	l.seen[key] = struct{}{}
	l.items = append(l.items, fr)
}
