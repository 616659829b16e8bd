package model

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

// RequestKind tags the variant of a FuzzableRequest.
type RequestKind int

const (
	// KindQueryString is a request whose inputs live in the URL query string.
	KindQueryString RequestKind = iota

	// KindPostData is a request whose inputs live in a form-encoded body.
	KindPostData
)

// String returns the name of the request kind.
func (k RequestKind) String() string {
	switch k {
	case KindQueryString:
		return "querystring"
	case KindPostData:
		return "postdata"
	default:
		return "unknown"
	}
}

// Structural form field types. Fields of these types are never smart-filled
// because their value is chosen from a fixed set rather than typed.
const (
	FieldTypeCheckbox = "checkbox"
	FieldTypeFile     = "file"
	FieldTypeRadio    = "radio"
	FieldTypeSelect   = "select"
)

// Param is one name/value pair of a query string.
// A slice of Params keeps order and multiplicity, which url.Values does not.
type Param struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// FormField is an input of an HTML form.
type FormField struct {
	// Name is the field name attribute.
	Name string `json:"name"`

	// Type is the input type (text, password, hidden, select, ...).
	Type string `json:"type"`

	// Value is the current value of the field.
	Value string `json:"value,omitempty"`
}

// IsStructural reports whether the field value is picked from a fixed set.
func (f FormField) IsStructural() bool {
	switch strings.ToLower(f.Type) {
	case FieldTypeCheckbox, FieldTypeFile, FieldTypeRadio, FieldTypeSelect:
		return true
	default:
		return false
	}
}

// Form is the ordered field list of a post-data request.
type Form struct {
	Fields []FormField `json:"fields"`
}

// Encode returns the form as application/x-www-form-urlencoded, in field order.
func (f *Form) Encode() string {
	if f == nil {
		return ""
	}
	parts := make([]string, 0, len(f.Fields))
	for _, field := range f.Fields {
		parts = append(parts, url.QueryEscape(field.Name)+"="+url.QueryEscape(field.Value))
	}
	return strings.Join(parts, "&")
}

// FuzzableRequest is an HTTP request template representing one point where
// inputs can later be mutated. It is a tagged variant: Kind decides whether
// the inputs are in Params (query string) or in Form (post data).
type FuzzableRequest struct {
	// Kind tags which of the input containers is meaningful.
	Kind RequestKind

	// Method is the HTTP method.
	Method string

	// URL is the request URL. For query-string requests its RawQuery mirrors Params.
	URL *url.URL

	// Params are the ordered query-string parameters.
	Params []Param

	// Form holds the post-data fields. Nil for query-string requests.
	Form *Form

	// Headers are extra request headers (for example Referer).
	Headers http.Header

	// Cookie is the raw Cookie header value to send.
	Cookie string
}

// NewQueryStringRequest builds a GET request from a URL, splitting its query
// string into ordered parameters. The fragment is dropped.
func NewQueryStringRequest(u *url.URL) *FuzzableRequest {
	clean := *u
	clean.Fragment = ""
	clean.RawFragment = ""
	return &FuzzableRequest{
		Kind:    KindQueryString,
		Method:  http.MethodGet,
		URL:     &clean,
		Params:  ParseQuery(clean.RawQuery),
		Headers: make(http.Header),
	}
}

// NewPostDataRequest builds a POST request carrying the given form fields.
func NewPostDataRequest(u *url.URL, fields []FormField) *FuzzableRequest {
	clean := *u
	clean.Fragment = ""
	clean.RawFragment = ""
	copied := make([]FormField, len(fields))
	copy(copied, fields)
	return &FuzzableRequest{
		Kind:    KindPostData,
		Method:  http.MethodPost,
		URL:     &clean,
		Form:    &Form{Fields: copied},
		Headers: make(http.Header),
	}
}

// ParseQuery splits a raw query string into ordered parameters.
// Names and values are unescaped; undecodable parts are kept verbatim.
func ParseQuery(rawQuery string) []Param {
	if rawQuery == "" {
		return nil
	}
	params := make([]Param, 0)
	for _, part := range strings.Split(rawQuery, "&") {
		if part == "" {
			continue
		}
		name, value, _ := strings.Cut(part, "=")
		params = append(params, Param{Name: unescape(name), Value: unescape(value)})
	}
	return params
}

func unescape(s string) string {
	if v, err := url.QueryUnescape(s); err == nil {
		return v
	}
	return s
}

// HasFillableFields reports whether the request carries form fields that the
// smart form filler may complete.
func (r *FuzzableRequest) HasFillableFields() bool {
	return r.Kind == KindPostData && r.Form != nil && len(r.Form.Fields) > 0
}

// Body returns the encoded request body. Empty for query-string requests.
func (r *FuzzableRequest) Body() string {
	if r.Kind != KindPostData {
		return ""
	}
	return r.Form.Encode()
}

// URLString returns the request URL without fragment, or "" when unset.
func (r *FuzzableRequest) URLString() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.String()
}

// Key returns the identity of the request: two requests with the same key
// hit the same endpoint with the same inputs.
func (r *FuzzableRequest) Key() string {
	var sb strings.Builder
	sb.WriteString(r.Method)
	sb.WriteByte(' ')
	sb.WriteString(r.URLString())
	if body := r.Body(); body != "" {
		sb.WriteByte('|')
		sb.WriteString(body)
	}
	return sb.String()
}

// SetHeader sets a request header, allocating the header map when needed.
func (r *FuzzableRequest) SetHeader(key, value string) {
	if r.Headers == nil {
		r.Headers = make(http.Header)
	}
	r.Headers.Set(key, value)
}

// Clone returns a deep copy of the request.
func (r *FuzzableRequest) Clone() *FuzzableRequest {
	c := *r
	if r.URL != nil {
		u := *r.URL
		c.URL = &u
	}
	if r.Params != nil {
		c.Params = append([]Param(nil), r.Params...)
	}
	if r.Form != nil {
		c.Form = &Form{Fields: append([]FormField(nil), r.Form.Fields...)}
	}
	c.Headers = r.Headers.Clone()
	return &c
}

// String returns a short human-readable form such as "POST http://h/login (user, pass)".
func (r *FuzzableRequest) String() string {
	var names []string
	switch r.Kind {
	case KindPostData:
		if r.Form != nil {
			for _, f := range r.Form.Fields {
				names = append(names, f.Name)
			}
		}
	default:
		for _, p := range r.Params {
			names = append(names, p.Name)
		}
	}
	s := r.Method + " " + r.URLString()
	if len(names) > 0 {
		s += " (" + strings.Join(names, ", ") + ")"
	}
	return s
}

// requestJSON is the wire form of FuzzableRequest; the URL travels as a string.
type requestJSON struct {
	Kind    RequestKind `json:"kind"`
	Method  string      `json:"method"`
	URL     string      `json:"url"`
	Params  []Param     `json:"params,omitempty"`
	Form    *Form       `json:"form,omitempty"`
	Headers http.Header `json:"headers,omitempty"`
	Cookie  string      `json:"cookie,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (r *FuzzableRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(requestJSON{
		Kind:    r.Kind,
		Method:  r.Method,
		URL:     r.URLString(),
		Params:  r.Params,
		Form:    r.Form,
		Headers: r.Headers,
		Cookie:  r.Cookie,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *FuzzableRequest) UnmarshalJSON(data []byte) error {
	var raw requestJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	u, err := url.Parse(raw.URL)
	if err != nil {
		return err
	}
	*r = FuzzableRequest{
		Kind:    raw.Kind,
		Method:  raw.Method,
		URL:     u,
		Params:  raw.Params,
		Form:    raw.Form,
		Headers: raw.Headers,
		Cookie:  raw.Cookie,
	}
	return nil
}
