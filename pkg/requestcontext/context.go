// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// This package defines context keys and getter/setter functions for values that are
// typically set by middleware but consumed by services. By keeping this package free
// of net/http dependencies, services can import only what they need without pulling
// in HTTP-related code.
//
// Usage in services (read values):
//
//	userID := requestcontext.UserID(ctx)
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in middleware (set values):
//
//	ctx = requestcontext.WithUserID(ctx, userID)
//	ctx = requestcontext.WithRequestID(ctx, requestID)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithDeviceLabel(ctx, "Chrome on macOS")
package requestcontext

import (
	"context"
	"time"

	id "firmo/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	userIDKey      struct{}
	deviceLabelKey struct{}
	clientIPKey    struct{}
	userAgentKey   struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
	apiVersionKey  struct{}
	tokenAPIVerKey struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyUserID          = userIDKey{}
	ContextKeyDeviceLabel     = deviceLabelKey{}
	ContextKeyClientIP        = clientIPKey{}
	ContextKeyUserAgent       = userAgentKey{}
	ContextKeyRequestID       = requestIDKey{}
	ContextKeyRequestTime     = requestTimeKey{}
	ContextKeyAPIVersion      = apiVersionKey{}
	ContextKeyTokenAPIVersion = tokenAPIVerKey{}
)

// -----------------------------------------------------------------------------
// Auth context
// -----------------------------------------------------------------------------

// UserID retrieves the authenticated user ID from the context.
// Returns the zero value (nil UUID) if not set.
func UserID(ctx context.Context) id.UserID {
	if userID, ok := ctx.Value(ContextKeyUserID).(id.UserID); ok {
		return userID
	}
	return id.UserID{}
}

// WithUserID injects a user ID into the context.
func WithUserID(ctx context.Context, userID id.UserID) context.Context {
	return context.WithValue(ctx, ContextKeyUserID, userID)
}

// -----------------------------------------------------------------------------
// Device context
// -----------------------------------------------------------------------------

// DeviceLabel retrieves the parsed device display label ("Chrome on macOS").
func DeviceLabel(ctx context.Context) string {
	if label, ok := ctx.Value(ContextKeyDeviceLabel).(string); ok {
		return label
	}
	return ""
}

// WithDeviceLabel injects a device display label into a context.
// Useful for service unit tests that don't run the full HTTP middleware chain.
func WithDeviceLabel(ctx context.Context, label string) context.Context {
	return context.WithValue(ctx, ContextKeyDeviceLabel, label)
}

// -----------------------------------------------------------------------------
// Client metadata (IP, User-Agent)
// -----------------------------------------------------------------------------

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

// UserAgent retrieves the User-Agent from the context.
func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(ContextKeyUserAgent).(string); ok {
		return ua
	}
	return ""
}

// WithClientMetadata injects client IP and User-Agent into a context.
// Useful for service unit tests that don't run the full HTTP middleware chain.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyClientIP, clientIP)
	ctx = context.WithValue(ctx, ContextKeyUserAgent, userAgent)
	return ctx
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// -----------------------------------------------------------------------------
// Request time
// -----------------------------------------------------------------------------

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (for non-HTTP contexts like workers, CLI, tests).
//
// Session TTL checks MUST go through this accessor so tests can inject time.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
// Useful for:
//   - Service unit tests that don't run the full HTTP middleware chain
//   - Workers that need consistent time within a batch operation
//   - CLI commands
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}

// -----------------------------------------------------------------------------
// API version
// -----------------------------------------------------------------------------

// APIVersion retrieves the route's API version from the context.
func APIVersion(ctx context.Context) id.APIVersion {
	if v, ok := ctx.Value(ContextKeyAPIVersion).(id.APIVersion); ok {
		return v
	}
	return ""
}

// WithAPIVersion injects the route's API version into the context.
func WithAPIVersion(ctx context.Context, v id.APIVersion) context.Context {
	return context.WithValue(ctx, ContextKeyAPIVersion, v)
}

// TokenAPIVersion retrieves the token's API version from the context.
func TokenAPIVersion(ctx context.Context) id.APIVersion {
	if v, ok := ctx.Value(ContextKeyTokenAPIVersion).(id.APIVersion); ok {
		return v
	}
	return ""
}

// WithTokenAPIVersion injects the token's API version into the context.
func WithTokenAPIVersion(ctx context.Context, v id.APIVersion) context.Context {
	return context.WithValue(ctx, ContextKeyTokenAPIVersion, v)
}
