package inference

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"aqua-guard/internal/model"
	"aqua-guard/internal/schema"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu  sync.Mutex
	seq [][]float64
}

func (f *fakeSource) SequenceForModel() [][]float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seq
}

func (f *fakeSource) set(seq [][]float64) {
	f.mu.Lock()
	f.seq = seq
	f.mu.Unlock()
}

type countingPredictor struct {
	calls atomic.Int32
	pred  Prediction
	err   error
	block bool
}

func (p *countingPredictor) Predict(ctx context.Context, _ [][]float64) (Prediction, error) {
	p.calls.Add(1)
	if p.block {
		<-ctx.Done()
		return Prediction{}, ctx.Err()
	}
	return p.pred, p.err
}

func window(rows int, fill float64) [][]float64 {
	seq := make([][]float64, rows)
	for i := range seq {
		row := make([]float64, schema.Count())
		for j := range row {
			row[j] = fill
		}
		seq[i] = row
	}
	return seq
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func newTestDetector(src SequenceSource, p Predictor, cfg Config) *Detector {
	d := NewDetector(src, p, cfg, nil, quietLogger())
	d.random = func() float64 { return 0.5 }
	return d
}

func TestDetectCachesByLatestVector(t *testing.T) {
	src := &fakeSource{seq: window(24, 1)}
	p := &countingPredictor{pred: Prediction{AnomalyScore: 0.7}}
	d := newTestDetector(src, p, Config{})

	first := d.DetectOperatorAnomaly(context.Background())
	second := d.DetectOperatorAnomaly(context.Background())

	assert.Equal(t, int32(1), p.calls.Load())
	assert.Equal(t, 0.7, first.AnomalyScore)
	assert.Equal(t, first.AnomalyScore, second.AnomalyScore)
	assert.False(t, second.Fallback)
	assert.Equal(t, model.SeverityHigh, second.AnomalyContext.Severity)
	assert.True(t, second.AnomalyContext.IsActive)
	require.NotNil(t, second.AnomalyContext.StartTime)

	src.set(window(24, 2))
	d.DetectOperatorAnomaly(context.Background())
	assert.Equal(t, int32(2), p.calls.Load())
}

func TestDetectCacheExpires(t *testing.T) {
	src := &fakeSource{seq: window(24, 1)}
	p := &countingPredictor{pred: Prediction{AnomalyScore: 0.1}}
	d := newTestDetector(src, p, Config{CacheTTL: 20 * time.Millisecond})

	d.DetectOperatorAnomaly(context.Background())
	time.Sleep(60 * time.Millisecond)
	d.DetectOperatorAnomaly(context.Background())

	assert.Equal(t, int32(2), p.calls.Load())
}

func TestDetectInsufficientHistorySkipsCall(t *testing.T) {
	src := &fakeSource{seq: window(10, 1)}
	p := &countingPredictor{pred: Prediction{AnomalyScore: 0.9}}
	d := newTestDetector(src, p, Config{})

	res := d.DetectOperatorAnomaly(context.Background())

	assert.Equal(t, int32(0), p.calls.Load())
	assert.True(t, res.Fallback)
	assert.InDelta(t, 0.35, res.AnomalyScore, 1e-9)
	assert.False(t, res.AnomalyContext.IsActive)
	assert.Equal(t, MapScoreToSeverity(res.AnomalyScore), res.AnomalyContext.Severity)
}

func TestDetectTimeoutFallsBack(t *testing.T) {
	src := &fakeSource{seq: window(24, 1)}
	p := &countingPredictor{block: true}
	d := newTestDetector(src, p, Config{Timeout: 20 * time.Millisecond})

	done := make(chan Result, 1)
	go func() { done <- d.DetectOperatorAnomaly(context.Background()) }()

	select {
	case res := <-done:
		assert.True(t, res.Fallback)
		assert.GreaterOrEqual(t, res.AnomalyScore, 0.2)
		assert.Less(t, res.AnomalyScore, 0.5)
		assert.Equal(t, MapScoreToSeverity(res.AnomalyScore), res.AnomalyContext.Severity)
	case <-time.After(2 * time.Second):
		t.Fatal("detection did not return after predictor timeout")
	}
}

func TestDetectFallbackPrefersLastPrediction(t *testing.T) {
	src := &fakeSource{seq: window(24, 1)}
	p := &countingPredictor{pred: Prediction{AnomalyScore: 0.85}}
	d := newTestDetector(src, p, Config{})

	ok := d.DetectOperatorAnomaly(context.Background())
	require.False(t, ok.Fallback)

	p.err = ErrMissingScore
	src.set(window(24, 3))
	res := d.DetectOperatorAnomaly(context.Background())

	assert.True(t, res.Fallback)
	assert.Equal(t, 0.85, res.AnomalyScore)
	assert.Equal(t, model.SeverityCritical, res.AnomalyContext.Severity)

	last, found := d.LastPrediction()
	require.True(t, found)
	assert.Equal(t, 0.85, last.AnomalyScore)
}

func TestDetectMalformedResponseIsFailure(t *testing.T) {
	src := &fakeSource{seq: window(24, 1)}
	p := &countingPredictor{err: ErrMissingScore}
	d := newTestDetector(src, p, Config{})

	res := d.DetectOperatorAnomaly(context.Background())

	assert.True(t, res.Fallback)
	_, found := d.LastPrediction()
	assert.False(t, found)
}

func TestDetectCoalescesConcurrentCalls(t *testing.T) {
	src := &fakeSource{seq: window(24, 1)}
	p := &countingPredictor{pred: Prediction{AnomalyScore: 0.4}}
	d := newTestDetector(src, p, Config{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := d.DetectOperatorAnomaly(context.Background())
			assert.Equal(t, 0.4, res.AnomalyScore)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), p.calls.Load())
}

func TestDetectAttachesFeatureImportance(t *testing.T) {
	importance := make([]float64, schema.Count())
	idx, _ := schema.Index(schema.FirewallAlerts)
	importance[idx] = 1

	src := &fakeSource{seq: window(24, 0)}
	p := &countingPredictor{pred: Prediction{AnomalyScore: 0.55, FeatureImportance: importance}}
	d := newTestDetector(src, p, Config{})

	res := d.DetectOperatorAnomaly(context.Background())

	assert.Equal(t, model.AnomalyCyber, res.AnomalyContext.Type)
	assert.Equal(t, importance, res.Predictions["feature_importance"])
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "1,2.5,-3", cacheKey([]float64{1, 2.5, -3}))
	assert.Equal(t, "", cacheKey(nil))
	assert.NotEqual(t, cacheKey([]float64{1, 23}), cacheKey([]float64{12, 3}))
}


type gatedPredictor struct {
	gate  chan struct{}
	calls atomic.Int32
}

func (p *gatedPredictor) Predict(ctx context.Context, seq [][]float64) (Prediction, error) {
	p.calls.Add(1)
	select {
	case <-p.gate:
	case <-ctx.Done():
		return Prediction{}, ctx.Err()
	}
	return Prediction{AnomalyScore: seq[len(seq)-1][0] / 100}, nil
}

func TestDetectSequenceScoresGivenWindow(t *testing.T) {
	src := &fakeSource{seq: window(24, 90)}
	p := &gatedPredictor{gate: make(chan struct{})}
	close(p.gate)
	d := newTestDetector(src, p, Config{})

	res := d.DetectSequence(context.Background(), window(24, 30))
	assert.False(t, res.Fallback)
	assert.InDelta(t, 0.3, res.AnomalyScore, 1e-9)
}

func TestDetectCancelledCallerDoesNotFailSharedCall(t *testing.T) {
	src := &fakeSource{seq: window(24, 40)}
	p := &gatedPredictor{gate: make(chan struct{})}
	d := newTestDetector(src, p, Config{Timeout: 5 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan Result, 1)
	go func() { first <- d.DetectOperatorAnomaly(ctx) }()
	require.Eventually(t, func() bool { return p.calls.Load() == 1 }, time.Second, time.Millisecond)

	second := make(chan Result, 1)
	go func() { second <- d.DetectOperatorAnomaly(context.Background()) }()

	cancel()
	abandoned := <-first
	assert.True(t, abandoned.Fallback)

	close(p.gate)
	res := <-second
	assert.False(t, res.Fallback)
	assert.InDelta(t, 0.4, res.AnomalyScore, 1e-9)
	assert.EqualValues(t, 1, p.calls.Load())
}
