package pipeline

import (
	"context"
	"math"

	"aqua-guard/internal/model"
	"aqua-guard/internal/rules"
)

// Processor receives an annotated data point, normalizes it and evaluates rules
type Processor struct {
	engine *rules.Engine
}

// NewProcessor creates a new processor instance
func NewProcessor(engine *rules.Engine) *Processor {
	return &Processor{
		engine: engine,
	}
}

// Process evaluates rules against point; rules emit their own alerts
func (p *Processor) Process(ctx context.Context, point *model.DataPoint) []model.Alert {
	if point == nil || p == nil || p.engine == nil {
		return nil
	}

	normalized := p.normalize(point)
	return p.engine.Evaluate(ctx, normalized)
}

// normalize zeroes non-finite feature values so rules never compare against NaN
func (p *Processor) normalize(point *model.DataPoint) *model.DataPoint {
	for k, v := range point.Features {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			point.Features[k] = 0
		}
	}
	return point
}
