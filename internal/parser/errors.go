package parser

import "errors"

// ErrNoParser is returned when no parser handles the response content type.
var ErrNoParser = errors.New("no parser available for content type")
