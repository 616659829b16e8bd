package httpclient

import "errors"

var (
	// ErrInvalidProxyAddress is returned when the proxy address is not "host:port".
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrNilRequest is returned when Fetch is called without a request or URL.
	ErrNilRequest = errors.New("request has no URL")
)
