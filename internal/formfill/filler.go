package formfill

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	// DefaultNumber is used for unknown names that look numeric.
	DefaultNumber = "56"

	// DefaultString is used for every other unknown name.
	DefaultString = "John8212"
)

// rule maps name fragments to a value.
type rule struct {
	fragments []string
	value     string
}

// rules are checked in order, so specific fragments come before generic ones.
var rules = []rule{
	{[]string{"email", "e-mail", "mail"}, "john.smith@example.com"},
	{[]string{"password", "passwd", "pass", "pwd"}, "FrAmE30."},
	{[]string{"username", "user", "login", "nick"}, "john8212"},
	{[]string{"firstname", "first_name", "fname"}, "John"},
	{[]string{"lastname", "last_name", "lname", "surname"}, "Smith"},
	{[]string{"fullname", "name"}, "John Smith"},
	{[]string{"phone", "mobile", "cell", "tel", "fax"}, "55550178"},
	{[]string{"zip", "postal", "postcode"}, "90210"},
	{[]string{"url", "website", "homepage", "link"}, "http://www.example.com/"},
	{[]string{"domain", "host"}, "example.com"},
	{[]string{"ip"}, "127.0.0.1"},
	{[]string{"date", "birth", "dob"}, "2000-01-15"},
	{[]string{"year"}, "2000"},
	{[]string{"month"}, "01"},
	{[]string{"day"}, "15"},
	{[]string{"city", "town"}, "Buenos Aires"},
	{[]string{"state", "province", "region"}, "AK"},
	{[]string{"country"}, "Argentina"},
	{[]string{"address", "street"}, "Bonsai Street 123"},
	{[]string{"company", "organization", "organisation"}, "Acme Corp"},
	{[]string{"title", "subject"}, "Hello"},
	{[]string{"comment", "message", "text", "body", "description"}, "Hello there"},
	{[]string{"search", "query", "keyword", "q"}, "spider"},
	{[]string{"captcha"}, "abc123"},
	{[]string{"color", "colour"}, "blue"},
	{[]string{"card", "ccnum"}, "4111111111111111"},
	{[]string{"cvv", "cvc"}, "123"},
	{[]string{"amount", "price", "qty", "quantity", "count", "age", "number", "num", "id"}, DefaultNumber},
}

// numericHints are name fragments suggesting a numeric value.
var numericHints = []string{"id", "num", "no", "nr", "size", "len", "max", "min", "page", "limit", "offset"}

// Filler chooses values for form fields. It is safe for concurrent use.
type Filler struct{}

// New creates a Filler.
func New() *Filler {
	return &Filler{}
}

// FillValue returns a value for a field named name.
func (f *Filler) FillValue(name string) string {
	lower := Fold(name)
	if lower == "" {
		return DefaultString
	}

	for _, r := range rules {
		for _, frag := range r.fragments {
			if matches(lower, frag) {
				return r.value
			}
		}
	}

	for _, hint := range numericHints {
		if matches(lower, hint) {
			return DefaultNumber
		}
	}
	return DefaultString
}

// Fold returns name trimmed and lower-cased the way FillValue matches it.
// A Caser keeps state between calls, so each call gets its own.
func Fold(name string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(name))
}

// matches reports whether frag occurs in name. Fragments of up to two letters
// must match a whole word so "q" does not match "unique".
func matches(name, frag string) bool {
	if len(frag) > 2 {
		return strings.Contains(name, frag)
	}
	for _, word := range strings.FieldsFunc(name, isSeparator) {
		if word == frag {
			return true
		}
	}
	return false
}

func isSeparator(r rune) bool {
	switch r {
	case '_', '-', '.', '[', ']', ' ', ':':
		return true
	}
	return false
}
