package scope

import (
	"errors"
	"net/url"
	"testing"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse %q: %v", raw, err)
	}
	return u
}

func newFilter(t *testing.T, cfg Config) *Filter {
	t.Helper()
	f, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to build filter: %v", err)
	}
	return f
}

// TestNew tests filter construction.
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("invalid ignore pattern", func(t *testing.T) {
		t.Parallel()

		_, err := New(Config{IgnoreRegex: "("})
		if err == nil {
			t.Fatal("expected error for invalid ignore pattern")
		}
		if !errors.Is(err, ErrInvalidPattern) {
			t.Errorf("expected ErrInvalidPattern, got %v", err)
		}
		var cfgErr *ConfigurationError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("expected *ConfigurationError, got %T", err)
		}
		if cfgErr.Option != "ignore_regex" {
			t.Errorf("expected option ignore_regex, got %q", cfgErr.Option)
		}
	})

	t.Run("invalid follow pattern", func(t *testing.T) {
		t.Parallel()

		_, err := New(Config{FollowRegex: "[a-"})
		var cfgErr *ConfigurationError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("expected *ConfigurationError, got %v", err)
		}
		if cfgErr.Option != "follow_regex" {
			t.Errorf("expected option follow_regex, got %q", cfgErr.Option)
		}
	})

	t.Run("roots are copied", func(t *testing.T) {
		t.Parallel()

		root := mustParse(t, "http://h/app/")
		f := newFilter(t, Config{Roots: []*url.URL{root}, Domain: "h"})
		root.Path = "/changed/"

		if got := f.Roots()[0].Path; got != "/app/" {
			t.Errorf("expected root path /app/, got %q", got)
		}
	})
}

// TestInDomain tests the domain check.
func TestInDomain(t *testing.T) {
	t.Parallel()

	f := newFilter(t, Config{Domain: "Example.com"})

	tests := []struct {
		raw  string
		want bool
	}{
		{"http://example.com/", true},
		{"https://EXAMPLE.com:8443/a", true},
		{"http://sub.example.com/", false},
		{"http://example.com.evil.org/", false},
		{"http://other.org/?u=example.com", false},
	}
	for _, tt := range tests {
		if got := f.InDomain(mustParse(t, tt.raw)); got != tt.want {
			t.Errorf("InDomain(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}

	empty := newFilter(t, Config{})
	if empty.InDomain(mustParse(t, "http://example.com/")) {
		t.Error("filter without domain must reject everything")
	}
}

// TestPassesPattern tests follow and ignore patterns.
func TestPassesPattern(t *testing.T) {
	t.Parallel()

	t.Run("ignore beats follow", func(t *testing.T) {
		t.Parallel()

		f := newFilter(t, Config{FollowRegex: ".*", IgnoreRegex: "logout"})
		if f.PassesPattern(mustParse(t, "http://h/account/logout")) {
			t.Error("expected logout URL to be excluded")
		}
		if !f.PassesPattern(mustParse(t, "http://h/account/login")) {
			t.Error("expected login URL to pass")
		}
	})

	t.Run("empty ignore never matches", func(t *testing.T) {
		t.Parallel()

		f := newFilter(t, Config{})
		if !f.PassesPattern(mustParse(t, "http://h/anything?x=1")) {
			t.Error("expected URL to pass with default patterns")
		}
	})

	t.Run("follow restricts", func(t *testing.T) {
		t.Parallel()

		f := newFilter(t, Config{FollowRegex: `/api/`})
		if f.PassesPattern(mustParse(t, "http://h/static/app.js")) {
			t.Error("expected non-matching URL to be rejected")
		}
		if !f.PassesPattern(mustParse(t, "http://h/v1/api/users")) {
			t.Error("expected unanchored follow match")
		}
	})

	t.Run("matches query string", func(t *testing.T) {
		t.Parallel()

		f := newFilter(t, Config{IgnoreRegex: `action=delete`})
		if f.PassesPattern(mustParse(t, "http://h/item?id=1&action=delete")) {
			t.Error("expected ignore pattern to see the query string")
		}
	})
}

// TestIsForward tests the forward path check.
func TestIsForward(t *testing.T) {
	t.Parallel()

	f := newFilter(t, Config{
		Roots:       []*url.URL{mustParse(t, "http://h/app/index.php")},
		Domain:      "h",
		OnlyForward: true,
	})

	tests := []struct {
		raw  string
		want bool
	}{
		{"http://h/app/", true},
		{"http://h/app/users/list", true},
		{"http://h/app/index.php?x=1", true},
		{"http://h/", false},
		{"http://h/other/", false},
		{"http://h/application", false},
		{"http://other/app/x", false},
	}
	for _, tt := range tests {
		if got := f.IsForward(mustParse(t, tt.raw)); got != tt.want {
			t.Errorf("IsForward(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
	if !f.OnlyForward() {
		t.Error("expected OnlyForward to be true")
	}
}

// TestDir tests directory extraction.
func TestDir(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want string
	}{
		{"http://h", "/"},
		{"http://h/", "/"},
		{"http://h/a.php", "/"},
		{"http://h/a/b/c.php", "/a/b/"},
		{"http://h/a/b/", "/a/b/"},
	}
	for _, tt := range tests {
		if got := Dir(mustParse(t, tt.raw)); got != tt.want {
			t.Errorf("Dir(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
