// Package log provides slog loggers that redact sensitive values.
//
// A crawler logs URLs, headers and form bodies of the application it visits,
// and those carry session cookies, credentials and server-side state. The
// SecureHandler wraps any slog.Handler and masks:
//   - attributes whose key names a secret (cookie, authorization, password,
//     session identifiers, CSRF tokens, ASP.NET __VIEWSTATE and
//     __EVENTVALIDATION)
//   - values that look like bearer tokens, JWTs or basic credentials
//   - the values of sensitive parameters inside logged URLs and
//     form-encoded bodies, leaving the rest of the URL readable
//   - sensitive entries of logged http.Header values
//
// Usage:
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
//	logger.Debug("fetch", "url", "http://h/login?user=a&password=b")
//	// url=http://h/login?user=a&password=***REDACTED***
package log
