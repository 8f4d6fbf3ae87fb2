package version_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "firmo/pkg/domain"
	"firmo/pkg/platform/middleware/version"
	"firmo/pkg/requestcontext"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// serveGate runs ValidateTokenVersion over a request whose context carries
// the given route and token versions. A nil version leaves the slot unset.
func serveGate(t *testing.T, routeVersion, tokenVersion id.APIVersion) (*httptest.ResponseRecorder, bool) {
	t.Helper()

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/contracts/abc/verification/status", nil)
	ctx := req.Context()
	if !routeVersion.IsNil() {
		ctx = requestcontext.WithAPIVersion(ctx, routeVersion)
	}
	if !tokenVersion.IsNil() {
		ctx = requestcontext.WithTokenAPIVersion(ctx, tokenVersion)
	}

	rec := httptest.NewRecorder()
	version.ValidateTokenVersion(discardLogger())(next).ServeHTTP(rec, req.WithContext(ctx))
	return rec, nextCalled
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var envelope map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	return envelope
}

func TestExtractVersionStampsContext(t *testing.T) {
	var seen id.APIVersion
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.APIVersion(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/contracts/abc/verification/status", nil)
	rec := httptest.NewRecorder()
	version.ExtractVersion(id.APIVersionV1)(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id.APIVersionV1, seen)
}

func TestValidateTokenVersionMatchingVersionsPass(t *testing.T) {
	rec, nextCalled := serveGate(t, id.APIVersionV1, id.APIVersionV1)

	assert.True(t, nextCalled)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestValidateTokenVersionMissingTokenVersionTreatedAsV1(t *testing.T) {
	rec, nextCalled := serveGate(t, id.APIVersionV1, "")

	assert.True(t, nextCalled)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestValidateTokenVersionMissingRouteVersionFailsClosed(t *testing.T) {
	rec, nextCalled := serveGate(t, "", id.APIVersionV1)

	assert.False(t, nextCalled)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, "server_error", envelope["error"])
}

func TestValidateTokenVersionUnknownRouteVersionRejects(t *testing.T) {
	// A route version outside the ordering table never satisfies IsAtLeast,
	// so the gate denies rather than waving the token through.
	rec, nextCalled := serveGate(t, id.APIVersion("v0"), id.APIVersionV1)

	assert.False(t, nextCalled)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, "invalid_token", envelope["error"])
	assert.NotEmpty(t, envelope["error_description"])
}
