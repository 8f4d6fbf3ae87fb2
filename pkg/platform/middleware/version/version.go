// Package version stamps and enforces the API version on versioned routes.
package version

import (
	"net/http"

	id "firmo/pkg/domain"
	"firmo/pkg/platform/httputil"
	"firmo/pkg/requestcontext"
)

// ExtractVersion records the version of the matched route in the request
// context. Chi already picked the route, so the version is a constant per
// subrouter; downstream middleware reads it instead of re-parsing the path.
func ExtractVersion(version id.APIVersion) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithAPIVersion(r.Context(), version)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// versionError matches the envelope httputil.WriteError produces so clients
// parse one format regardless of which layer rejected the request.
type versionError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func writeVersionError(w http.ResponseWriter, status int, code, description string) {
	httputil.WriteJSON(w, status, versionError{Error: code, ErrorDescription: description})
}
