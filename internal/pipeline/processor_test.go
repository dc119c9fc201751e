package pipeline

import (
	"context"
	"math"
	"testing"

	"aqua-guard/internal/model"
	"aqua-guard/internal/rules"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type thresholdRule struct{}

func (thresholdRule) Name() string    { return "threshold" }
func (thresholdRule) IsEnabled() bool { return true }
func (thresholdRule) Evaluate(ctx context.Context, p *model.DataPoint) []model.Alert {
	if p.Feature("x") > 1 {
		return []model.Alert{{Type: "threshold", Value: p.Feature("x")}}
	}
	return nil
}

func TestProcessNormalizesAndEvaluates(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	engine := rules.NewEngine(logger)
	engine.RegisterRule(thresholdRule{})
	p := NewProcessor(engine)

	alerts := p.Process(context.Background(), &model.DataPoint{Features: map[string]float64{"x": math.Inf(1)}})
	assert.Empty(t, alerts, "non-finite values are zeroed before rules run")

	alerts = p.Process(context.Background(), &model.DataPoint{Features: map[string]float64{"x": 3}})
	require.Len(t, alerts, 1)
	assert.Equal(t, 3.0, alerts[0].Value)
}

func TestProcessNil(t *testing.T) {
	assert.Nil(t, NewProcessor(nil).Process(context.Background(), &model.DataPoint{}))
	var p *Processor
	assert.Nil(t, p.Process(context.Background(), nil))
}
