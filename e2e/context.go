// Package e2e drives a running firmo server over HTTP, end to end. The suite
// targets the development setup: in-memory stores with the seeded contract,
// so the fixed party IDs below are valid and tokens can be minted with the
// shared dev signing key.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Seeded development contract. Mirrors the fixture the server creates when it
// runs on in-memory stores.
const (
	SeedContractID = "11111111-1111-1111-1111-111111111111"

	seedTenantID    = "33333333-3333-3333-3333-333333333333"
	seedLandlordID  = "44444444-4444-4444-4444-444444444444"
	seedGuarantorID = "55555555-5555-5555-5555-555555555555"
)

// TestContext carries shared state across scenario steps: the HTTP client,
// the current bearer token, and the last response.
type TestContext struct {
	baseURL    string
	client     *http.Client
	signingKey []byte
	issuer     string
	audience   string

	bearer     string
	lastStatus int
	lastBody   []byte

	// Session IDs captured per role, so later scenarios can refer back to an
	// earlier party's session.
	sessions map[string]string
}

// NewTestContext builds a context targeting baseURL. Tokens are minted with
// signingKey, which must match the server's FIRMO_JWT_SIGNING_KEY.
func NewTestContext(baseURL string, signingKey, issuer, audience string) *TestContext {
	return &TestContext{
		baseURL:    baseURL,
		client:     &http.Client{Timeout: 30 * time.Second},
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		sessions:   make(map[string]string),
	}
}

// WaitReady polls the health endpoint until the server answers or the timeout
// lapses.
func (tc *TestContext) WaitReady(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		resp, err := tc.client.Get(tc.baseURL + "/healthz")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		if time.Now().After(deadline) {
			if err != nil {
				return fmt.Errorf("server at %s not ready: %w", tc.baseURL, err)
			}
			return fmt.Errorf("server at %s not ready", tc.baseURL)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
}

// ResetResponse clears the captured response between scenarios. Tokens and
// saved session IDs survive, the journey builds on them.
func (tc *TestContext) ResetResponse() {
	tc.lastStatus = 0
	tc.lastBody = nil
}

// AuthenticateRole mints a bearer token for the seeded party with the given
// role and uses it for subsequent requests.
func (tc *TestContext) AuthenticateRole(role string) error {
	var userID string
	switch role {
	case "tenant":
		userID = seedTenantID
	case "guarantor":
		userID = seedGuarantorID
	case "landlord":
		userID = seedLandlordID
	default:
		return fmt.Errorf("unknown role %q", role)
	}
	return tc.AuthenticateUser(userID)
}

// AuthenticateUser mints a bearer token for an arbitrary user ID.
func (tc *TestContext) AuthenticateUser(userID string) error {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, struct {
		UserID string `json:"user_id"`
		jwt.RegisteredClaims
	}{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tc.issuer,
			Audience:  []string{tc.audience, "v1"},
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(tc.signingKey)
	if err != nil {
		return fmt.Errorf("mint token: %w", err)
	}
	tc.bearer = signed
	return nil
}

// ClearAuthentication drops the bearer token so the next request goes out
// anonymous.
func (tc *TestContext) ClearAuthentication() {
	tc.bearer = ""
}

// ContractID returns the seeded contract's ID.
func (tc *TestContext) ContractID() string {
	return SeedContractID
}

// SaveSessionID remembers the "id" field of the last response as role's
// verification session.
func (tc *TestContext) SaveSessionID(role string) error {
	v, err := tc.GetResponseField("id")
	if err != nil {
		return err
	}
	id, ok := v.(string)
	if !ok || id == "" {
		return fmt.Errorf("response field %q is not a session id", "id")
	}
	tc.sessions[role] = id
	return nil
}

// SessionID returns the saved session ID for role.
func (tc *TestContext) SessionID(role string) (string, error) {
	id, ok := tc.sessions[role]
	if !ok {
		return "", fmt.Errorf("no session saved for role %q", role)
	}
	return id, nil
}

// POST sends a JSON request with the current bearer token.
func (tc *TestContext) POST(path string, body interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(http.MethodPost, tc.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return tc.send(req, nil)
}

// GET sends a request with the current bearer token plus any extra headers.
func (tc *TestContext) GET(path string, headers map[string]string) error {
	req, err := http.NewRequest(http.MethodGet, tc.baseURL+path, nil)
	if err != nil {
		return err
	}
	return tc.send(req, headers)
}

func (tc *TestContext) send(req *http.Request, headers map[string]string) error {
	if tc.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+tc.bearer)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	tc.lastStatus = resp.StatusCode
	tc.lastBody = body
	return nil
}

// GetLastResponseStatus returns the status code of the last response.
func (tc *TestContext) GetLastResponseStatus() int {
	return tc.lastStatus
}

// GetLastResponseBody returns the raw body of the last response.
func (tc *TestContext) GetLastResponseBody() []byte {
	return tc.lastBody
}

// GetResponseField reads one field from the last JSON response. Nested fields
// use dots: "roles.tenant.completed".
func (tc *TestContext) GetResponseField(field string) (interface{}, error) {
	var parsed map[string]interface{}
	if err := json.Unmarshal(tc.lastBody, &parsed); err != nil {
		return nil, fmt.Errorf("last response is not a JSON object: %w", err)
	}

	var current interface{} = parsed
	for _, part := range splitPath(field) {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("field %q: %q is not an object", field, part)
		}
		current, ok = obj[part]
		if !ok {
			return nil, fmt.Errorf("field %q not present in response", field)
		}
	}
	return current, nil
}

// ResponseContains reports whether the last JSON response has the field.
func (tc *TestContext) ResponseContains(field string) bool {
	_, err := tc.GetResponseField(field)
	return err == nil
}

func splitPath(field string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(field); i++ {
		if field[i] == '.' {
			parts = append(parts, field[start:i])
			start = i + 1
		}
	}
	return append(parts, field[start:])
}
