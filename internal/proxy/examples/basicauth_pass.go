package examples

import (
	"net/http"

	"reverseproxyd/internal/proxy"
)

// NewBasicAuthPass returns a web-incoming pass that rejects requests
// without valid HTTP Basic credentials before the stream pass runs,
// returning true (halting the pipeline) on rejection — the same
// halt-on-truthy contract every other pass in the pipeline follows.
// Splice it in before "stream": server.BeforeWeb("stream", NewBasicAuthPass(...)).
func NewBasicAuthPass(realm string, check func(user, pass string) bool) proxy.WebPass {
	return func(w http.ResponseWriter, req *http.Request, options *proxy.Options, s *proxy.Server, onError proxy.ErrorCallback) bool {
		user, pass, ok := req.BasicAuth()
		if !ok || !check(user, pass) {
			w.Header().Set("WWW-Authenticate", `Basic realm="`+realm+`"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return true
		}
		return false
	}
}
