package version

import (
	"log/slog"
	"net/http"

	id "firmo/pkg/domain"
	"firmo/pkg/requestcontext"
)

// ValidateTokenVersion rejects tokens minted for a newer API surface than the
// matched route. Tokens without a version claim are treated as v1.
//
// The rule is routeVersion >= tokenVersion: a v1 token keeps working after a
// newer surface ships, but a newer token cannot be replayed against v1
// routes. Must run after ExtractVersion and the auth middleware, which set
// the two versions in the context.
func ValidateTokenVersion(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			routeVersion := requestcontext.APIVersion(ctx)
			if routeVersion.IsNil() {
				logger.ErrorContext(ctx, "route version not set, ExtractVersion missing from chain",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeVersionError(w, http.StatusInternalServerError, "server_error", "route version not configured")
				return
			}

			tokenVersion := requestcontext.TokenAPIVersion(ctx)
			if tokenVersion.IsNil() {
				tokenVersion = id.APIVersionV1
			}

			if !routeVersion.IsAtLeast(tokenVersion) {
				logger.WarnContext(ctx, "cross-version token rejected",
					"token_version", tokenVersion.String(),
					"route_version", routeVersion.String(),
					"request_id", requestcontext.RequestID(ctx),
					"user_id", requestcontext.UserID(ctx).String(),
				)
				writeVersionError(w, http.StatusForbidden, "invalid_token",
					"token API version not compatible with this endpoint version")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
