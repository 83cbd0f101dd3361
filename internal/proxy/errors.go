package proxy

import (
	"errors"
	"net/http"
)

// ErrNoTarget is raised when neither Target nor Forward resolves to a
// non-empty structured target before the stream pass runs (spec.md §3,
// invariant (a); §7, ConfigurationError).
var ErrNoTarget = errors.New("proxy: requires a target or forward option")

// ErrMalformedUpgrade documents the checkMethodAndHeader rejection kind
// from spec.md §7; the client socket is destroyed directly and no event
// fires, so this value exists for tests and logging, not propagation.
var ErrMalformedUpgrade = errors.New("proxy: malformed websocket upgrade request")

// ErrorCallback is the optional per-call error handler passed into a
// pipeline run. When set, it wins over the Error event (spec.md §7,
// propagation policy).
type ErrorCallback func(err error, req *http.Request, w http.ResponseWriter, targetURL string)
