package fuzzable

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/nao1215/webspider/internal/model"
)

func newResponse(t *testing.T, rawURL, body string) *model.Response {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("failed to parse %q: %v", rawURL, err)
	}
	h := make(http.Header)
	h.Set("Content-Type", "text/html; charset=utf-8")
	return &model.Response{Code: http.StatusOK, URL: u, Header: h, Body: []byte(body)}
}

// TestBuild tests fuzzable request extraction.
func TestBuild(t *testing.T) {
	t.Parallel()

	t.Run("include self", func(t *testing.T) {
		t.Parallel()

		resp := newResponse(t, "http://h/i.php?id=1", "<html></html>")
		f := New()

		with := f.Build(resp, nil, true)
		if len(with) != 1 || with[0].URLString() != "http://h/i.php?id=1" {
			t.Fatalf("expected the response URL, got %v", with)
		}
		if with[0].Kind != model.KindQueryString {
			t.Errorf("expected query string request, got %v", with[0].Kind)
		}

		without := f.Build(resp, nil, false)
		if len(without) != 0 {
			t.Errorf("expected nothing without self, got %v", without)
		}
	})

	t.Run("post form keeps field order and types", func(t *testing.T) {
		t.Parallel()

		body := `<html><body>
			<form action="/login.aspx" method="post">
				<input type="hidden" name="__VIEWSTATE" value="dDwtMTA4">
				<input name="name">
				<input type="password" name="pass">
				<input type="checkbox" name="remember" value="1">
				<select name="lang"><option value="en">English</option><option value="ja">Japanese</option></select>
				<textarea name="bio">hello</textarea>
				<input type="submit" name="go" value="Login">
				<input type="reset" name="clear">
				<input type="text" value="no name">
			</form>
		</body></html>`

		got := New().Build(newResponse(t, "http://h/app/", body), nil, false)
		if len(got) != 1 {
			t.Fatalf("expected 1 request, got %d", len(got))
		}
		fr := got[0]
		if fr.Kind != model.KindPostData || fr.Method != http.MethodPost {
			t.Fatalf("expected POST post-data request, got %s %v", fr.Method, fr.Kind)
		}
		if fr.URLString() != "http://h/login.aspx" {
			t.Errorf("unexpected action %q", fr.URLString())
		}

		want := []model.FormField{
			{Name: "__VIEWSTATE", Type: "hidden", Value: "dDwtMTA4"},
			{Name: "name", Type: "text"},
			{Name: "pass", Type: "password"},
			{Name: "remember", Type: "checkbox", Value: "1"},
			{Name: "lang", Type: "select", Value: "en"},
			{Name: "bio", Type: "textarea", Value: "hello"},
			{Name: "go", Type: "submit", Value: "Login"},
		}
		if len(fr.Form.Fields) != len(want) {
			t.Fatalf("expected %d fields, got %d: %v", len(want), len(fr.Form.Fields), fr.Form.Fields)
		}
		for i := range want {
			if fr.Form.Fields[i] != want[i] {
				t.Errorf("field %d: expected %+v, got %+v", i, want[i], fr.Form.Fields[i])
			}
		}
	})

	t.Run("get form becomes query string", func(t *testing.T) {
		t.Parallel()

		body := `<form action="search.php"><input name="q" value="a b"><input name="page" value="1"></form>`
		got := New().Build(newResponse(t, "http://h/dir/index.html", body), nil, false)
		if len(got) != 1 {
			t.Fatalf("expected 1 request, got %d", len(got))
		}
		if got[0].URLString() != "http://h/dir/search.php?q=a+b&page=1" {
			t.Errorf("unexpected URL %q", got[0].URLString())
		}
		if got[0].HasFillableFields() {
			t.Error("GET form must not be fillable")
		}
		if len(got[0].Params) != 2 || got[0].Params[0].Value != "a b" {
			t.Errorf("unexpected params %v", got[0].Params)
		}
	})

	t.Run("selected option wins", func(t *testing.T) {
		t.Parallel()

		body := `<form method="POST"><select name="s"><option>one</option><option selected>two</option></select></form>`
		got := New().Build(newResponse(t, "http://h/f", body), nil, false)
		if len(got) != 1 {
			t.Fatalf("expected 1 request, got %d", len(got))
		}
		if v := got[0].Form.Fields[0].Value; v != "two" {
			t.Errorf("expected selected option, got %q", v)
		}
		if got[0].URLString() != "http://h/f" {
			t.Errorf("expected action to default to page URL, got %q", got[0].URLString())
		}
	})

	t.Run("redirect headers", func(t *testing.T) {
		t.Parallel()

		resp := newResponse(t, "http://h/old", "")
		resp.Header.Set("Content-Type", "text/plain")
		resp.Header.Set("Location", "/new?x=1")
		resp.Header.Set("Content-Location", "http://h/alt")

		got := New().Build(resp, nil, false)
		if len(got) != 2 {
			t.Fatalf("expected 2 requests, got %d", len(got))
		}
		if got[0].URLString() != "http://h/new?x=1" {
			t.Errorf("unexpected Location target %q", got[0].URLString())
		}
		if got[1].URLString() != "http://h/alt" {
			t.Errorf("unexpected Content-Location target %q", got[1].URLString())
		}
	})

	t.Run("deduplicates", func(t *testing.T) {
		t.Parallel()

		body := `<form action="/a"></form><form action="/a"></form>`
		resp := newResponse(t, "http://h/a", body)
		got := New().Build(resp, nil, true)
		if len(got) != 1 {
			t.Errorf("expected 1 unique request, got %d", len(got))
		}
	})

	t.Run("cookie propagation", func(t *testing.T) {
		t.Parallel()

		seed := model.NewQueryStringRequest(&url.URL{Scheme: "http", Host: "h", Path: "/"})
		seed.Cookie = "sid=seed"

		resp := newResponse(t, "http://h/", "")
		got := New().Build(resp, seed, true)
		if got[0].Cookie != "sid=seed" {
			t.Errorf("expected seed cookie, got %q", got[0].Cookie)
		}

		resp.Header.Add("Set-Cookie", "sid=fresh; Path=/")
		got = New().Build(resp, seed, true)
		if got[0].Cookie != "sid=fresh" {
			t.Errorf("expected response cookie, got %q", got[0].Cookie)
		}
	})
}
