package common

import (
	"context"
	"fmt"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string, headers map[string]string) error
	POST(path string, body interface{}) error
	GetResponseField(field string) (interface{}, error)
	ResponseContains(field string) bool
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	ClearAuthentication()
}

// RegisterSteps registers background and generic assertion step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^the service is healthy$`, steps.serviceIsHealthy)
	ctx.Step(`^I am not authenticated$`, steps.notAuthenticated)
	ctx.Step(`^I GET "([^"]*)"$`, steps.get)
	ctx.Step(`^I POST to "([^"]*)" with an empty body$`, steps.postEmpty)

	ctx.Step(`^the response status should be (\d+)$`, steps.responseStatusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should equal "([^"]*)"$`, steps.fieldShouldEqual)
	ctx.Step(`^the response field "([^"]*)" should be true$`, steps.fieldShouldBeTrue)
	ctx.Step(`^the response field "([^"]*)" should be false$`, steps.fieldShouldBeFalse)
	ctx.Step(`^the response should contain "([^"]*)"$`, steps.responseShouldContain)
	ctx.Step(`^the response field "([^"]*)" should be at least ([\d.]+)$`, steps.fieldShouldBeAtLeast)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) serviceIsHealthy(ctx context.Context) error {
	if err := s.tc.GET("/healthz", nil); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() != 200 {
		return fmt.Errorf("health check returned %d", s.tc.GetLastResponseStatus())
	}
	return nil
}

func (s *commonSteps) notAuthenticated(ctx context.Context) error {
	s.tc.ClearAuthentication()
	return nil
}

func (s *commonSteps) get(ctx context.Context, path string) error {
	return s.tc.GET(path, nil)
}

func (s *commonSteps) postEmpty(ctx context.Context, path string) error {
	return s.tc.POST(path, nil)
}

func (s *commonSteps) responseStatusShouldBe(ctx context.Context, expected int) error {
	if got := s.tc.GetLastResponseStatus(); got != expected {
		return fmt.Errorf("expected status %d, got %d: %s",
			expected, got, truncate(s.tc.GetLastResponseBody()))
	}
	return nil
}

func (s *commonSteps) fieldShouldEqual(ctx context.Context, field, expected string) error {
	value, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if got := fmt.Sprintf("%v", value); got != expected {
		return fmt.Errorf("field %q: expected %q, got %q", field, expected, got)
	}
	return nil
}

func (s *commonSteps) fieldShouldBeTrue(ctx context.Context, field string) error {
	return s.fieldShouldEqual(ctx, field, "true")
}

func (s *commonSteps) fieldShouldBeFalse(ctx context.Context, field string) error {
	return s.fieldShouldEqual(ctx, field, "false")
}

func (s *commonSteps) responseShouldContain(ctx context.Context, substr string) error {
	body := string(s.tc.GetLastResponseBody())
	if !strings.Contains(body, substr) {
		return fmt.Errorf("response does not contain %q: %s", substr, truncate([]byte(body)))
	}
	return nil
}

func (s *commonSteps) fieldShouldBeAtLeast(ctx context.Context, field string, min float64) error {
	value, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	n, ok := value.(float64)
	if !ok {
		return fmt.Errorf("field %q is not a number: %v", field, value)
	}
	if n < min {
		return fmt.Errorf("field %q: expected at least %v, got %v", field, min, n)
	}
	return nil
}

func truncate(body []byte) string {
	const max = 300
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
