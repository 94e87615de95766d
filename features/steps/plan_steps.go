//go:build integration

package steps

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cucumber/godog"

	"github.com/keanucz/audioconv/internal/converr"
	"github.com/keanucz/audioconv/internal/formats"
	"github.com/keanucz/audioconv/internal/plan"
)

type planContext struct {
	defaultFormat string
	result        plan.Plan
	err           error
}

// SharedPlanContext is reset before each scenario via After hook
var SharedPlanContext = &planContext{}

func InitializePlanScenario(ctx *godog.ScenarioContext) {
	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		SharedPlanContext = &planContext{}
		return c, nil
	})

	ctx.Step(`^the default output format is "([^"]*)"$`, func(f string) error {
		return SharedPlanContext.theDefaultOutputFormatIs(f)
	})
	ctx.Step(`^I plan the arguments "([^"]*)"$`, func(args string) error {
		return SharedPlanContext.iPlanTheArguments(args)
	})
	ctx.Step(`^the plan mode should be "([^"]*)"$`, func(m string) error {
		return SharedPlanContext.thePlanModeShouldBe(m)
	})
	ctx.Step(`^the plan input should be "([^"]*)"$`, func(p string) error {
		return SharedPlanContext.thePlanInputShouldBe(p)
	})
	ctx.Step(`^the plan format should be "([^"]*)"$`, func(f string) error {
		return SharedPlanContext.thePlanFormatShouldBe(f)
	})
	ctx.Step(`^planning should fail with "([^"]*)"$`, func(msg string) error {
		return SharedPlanContext.planningShouldFailWith(msg)
	})
}

func (c *planContext) theDefaultOutputFormatIs(f string) error {
	c.defaultFormat = f
	return nil
}

func (c *planContext) iPlanTheArguments(args string) error {
	c.result, c.err = plan.Build(strings.Fields(args), c.defaultFormat, formats.Default())
	return nil
}

func (c *planContext) thePlanModeShouldBe(mode string) error {
	if c.err != nil {
		return fmt.Errorf("planning failed: %w", c.err)
	}
	if got := c.result.Mode.String(); got != mode {
		return fmt.Errorf("expected mode %q, got %q", mode, got)
	}
	return nil
}

func (c *planContext) thePlanInputShouldBe(path string) error {
	if c.result.InputPath != path {
		return fmt.Errorf("expected input %q, got %q", path, c.result.InputPath)
	}
	return nil
}

func (c *planContext) thePlanFormatShouldBe(format string) error {
	if c.err != nil {
		return fmt.Errorf("planning failed: %w", c.err)
	}
	if c.result.OutputFormat != format {
		return fmt.Errorf("expected format %q, got %q", format, c.result.OutputFormat)
	}
	return nil
}

func (c *planContext) planningShouldFailWith(msg string) error {
	var argErr *converr.ArgumentError
	if !errors.As(c.err, &argErr) {
		return fmt.Errorf("expected an argument error, got %v", c.err)
	}
	if argErr.Msg != msg {
		return fmt.Errorf("expected %q, got %q", msg, argErr.Msg)
	}
	return nil
}
