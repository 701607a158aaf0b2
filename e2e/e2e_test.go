package e2e

import (
	"context"
	"os"
	"testing"

	"github.com/cucumber/godog"
)

// TestFeatures runs the feature files against ROLLCALL_E2E_URL.
func TestFeatures(t *testing.T) {
	baseURL := os.Getenv("ROLLCALL_E2E_URL")
	if baseURL == "" {
		t.Skip("ROLLCALL_E2E_URL not set")
	}
	tc := NewTestContext(baseURL, os.Getenv("ROLLCALL_E2E_STAFF_TOKEN"))

	suite := godog.TestSuite{
		ScenarioInitializer: func(sc *godog.ScenarioContext) {
			sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
				tc.Reset()
				return ctx, nil
			})
			RegisterSteps(sc, tc)
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
			Strict:   true,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("feature scenarios failed")
	}
}
