package httpserver

import "errors"

var errUnknownResult = errors.New("unknown result type")
