package e2e

import (
	"github.com/cucumber/godog"

	"rollcall/e2e/steps/attendance"
	"rollcall/e2e/steps/common"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	attendance.RegisterSteps(ctx, tc)
}
