// Package device derives a human-readable device label from the User-Agent
// header and stores it in the request context. The label is recorded on
// verification sessions for audit purposes ("Chrome 120 on Windows 10").
package device

import (
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"firmo/pkg/requestcontext"
)

// labelUnknown is recorded when the User-Agent header is absent or unparseable.
const labelUnknown = "unknown device"

// Middleware parses the User-Agent header and injects the derived device
// label into the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		label := Label(r.UserAgent())
		ctx := requestcontext.WithDeviceLabel(r.Context(), label)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Label converts a raw User-Agent string into a short display label.
// Bots are labeled as such; anything unparseable falls back to a generic label.
func Label(rawUA string) string {
	if strings.TrimSpace(rawUA) == "" {
		return labelUnknown
	}

	ua := useragent.New(rawUA)
	if ua.Bot() {
		return "bot"
	}

	name, version := ua.Browser()
	if name == "" {
		return labelUnknown
	}

	// Keep only the major version: "120.0.6099.109" reads poorly in audit logs.
	if idx := strings.IndexByte(version, '.'); idx > 0 {
		version = version[:idx]
	}

	var b strings.Builder
	b.WriteString(name)
	if version != "" {
		b.WriteByte(' ')
		b.WriteString(version)
	}
	if os := ua.OSInfo().FullName; os != "" {
		b.WriteString(" on ")
		b.WriteString(os)
	}
	return b.String()
}
