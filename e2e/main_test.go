package e2e

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/cucumber/godog"
)

// The suite targets a running server, by default the local development setup
// (in-memory stores, seeded contract). Point FIRMO_E2E_BASE_URL elsewhere to
// run against another instance; the signing key must match the server's.
func TestFeatures(t *testing.T) {
	baseURL := envOr("FIRMO_E2E_BASE_URL", "http://localhost:8080")
	tc := NewTestContext(baseURL,
		envOr("FIRMO_E2E_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		envOr("FIRMO_E2E_JWT_ISSUER", "firmo"),
		envOr("FIRMO_E2E_JWT_AUDIENCE", "firmo-api"),
	)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := tc.WaitReady(ctx, 10*time.Second); err != nil {
		t.Skipf("skipping e2e: %v", err)
	}

	suite := godog.TestSuite{
		ScenarioInitializer: func(sc *godog.ScenarioContext) {
			sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
				tc.ResetResponse()
				return ctx, nil
			})
			RegisterSteps(sc, tc)
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			Strict:   true,
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("e2e feature suite failed")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
