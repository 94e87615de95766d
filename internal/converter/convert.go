package converter

import (
	"context"

	"github.com/keanucz/audioconv/internal/outdir"
	"github.com/keanucz/audioconv/internal/plan"
)

// Converter is the entry point for a run: it validates the arguments,
// prepares the output directory and hands the plan to the engine.
type Converter struct {
	engine        *Engine
	formats       plan.FormatChecker
	defaultFormat string
}

// NewConverter creates a Converter. defaultFormat applies when the
// arguments carry no format pair.
func NewConverter(engine *Engine, formats plan.FormatChecker, defaultFormat string) *Converter {
	return &Converter{engine: engine, formats: formats, defaultFormat: defaultFormat}
}

// Convert runs the conversion described by tokens
// ([mode, path, formatFlag?, formatValue?]). A failure at any step ends the
// run with an EventFailed status line and is returned.
func (c *Converter) Convert(ctx context.Context, tokens []string) error {
	p, err := plan.Build(tokens, c.defaultFormat, c.formats)
	if err != nil {
		return c.engine.fail(err)
	}
	return c.Execute(ctx, p)
}

// Execute prepares the output directory and runs an already built plan.
func (c *Converter) Execute(ctx context.Context, p plan.Plan) error {
	c.engine.emit(Event{Kind: EventPlanAccepted, Path: p.InputPath, Format: p.OutputFormat})
	log(c.engine.opts.Log, "plan accepted", "mode", p.Mode, "input", p.InputPath, "format", p.OutputFormat)

	if err := outdir.Prepare(c.engine.OutputDir()); err != nil {
		return c.engine.fail(err)
	}
	return c.engine.Run(ctx, p)
}
