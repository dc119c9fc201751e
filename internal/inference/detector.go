package inference

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"aqua-guard/internal/metrics"
	"aqua-guard/internal/model"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultSequenceLength = 24
	DefaultCacheSize      = 10
	DefaultCacheTTL       = 30 * time.Second
	DefaultTimeout        = 5 * time.Second
)

// SequenceSource supplies the model input window, oldest row first
type SequenceSource interface {
	SequenceForModel() [][]float64
}

// Result is the outcome of one detection, always usable even when the model is down
type Result struct {
	AnomalyScore   float64                `json:"anomalyScore"`
	AnomalyContext model.AnomalyContext   `json:"anomalyContext"`
	Predictions    map[string]interface{} `json:"predictions"`
	Fallback       bool                   `json:"fallback"`
}

// Config tunes a Detector; zero values take the package defaults
type Config struct {
	SequenceLength int
	CacheSize      int
	CacheTTL       time.Duration
	Timeout        time.Duration
}

// Detector wraps a Predictor with caching, request coalescing and fallback.
// It is safe for concurrent use.
type Detector struct {
	source    SequenceSource
	predictor Predictor
	cache     *expirable.LRU[string, Result]
	group     singleflight.Group
	seqLen    int
	timeout   time.Duration
	metrics   *metrics.Metrics
	logger    *logrus.Logger

	mu   sync.Mutex
	last *Result

	// hooks replaced in tests
	random func() float64
	now    func() time.Time
}

func NewDetector(source SequenceSource, predictor Predictor, cfg Config, m *metrics.Metrics, logger *logrus.Logger) *Detector {
	if cfg.SequenceLength <= 0 {
		cfg.SequenceLength = DefaultSequenceLength
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Detector{
		source:    source,
		predictor: predictor,
		cache:     expirable.NewLRU[string, Result](cfg.CacheSize, nil, cfg.CacheTTL),
		seqLen:    cfg.SequenceLength,
		timeout:   cfg.Timeout,
		metrics:   m,
		logger:    logger,
		random:    rand.Float64,
		now:       time.Now,
	}
}

// DetectOperatorAnomaly scores the current model window. Failures of the
// external predictor are logged and answered from the fallback path.
func (d *Detector) DetectOperatorAnomaly(ctx context.Context) Result {
	return d.DetectSequence(ctx, d.source.SequenceForModel())
}

// DetectSequence scores seq, whose last row is the point being scored.
// Concurrent callers with the same latest row share one predictor call; that
// call is bounded by the detector timeout, not by any single caller's context.
func (d *Detector) DetectSequence(ctx context.Context, seq [][]float64) Result {
	if len(seq) < d.seqLen {
		d.metrics.ObserveInference(metrics.InferenceInsufficient, 0)
		d.logger.Debugf("[Inference] %v: have %d rows, need %d", ErrInsufficientHistory, len(seq), d.seqLen)
		return d.fallback()
	}
	seq = seq[len(seq)-d.seqLen:]

	key := cacheKey(seq[len(seq)-1])
	if cached, ok := d.cache.Get(key); ok {
		d.metrics.ObserveInference(metrics.InferenceCacheHit, 0)
		return cached
	}

	shared := context.WithoutCancel(ctx)
	ch := d.group.DoChan(key, func() (interface{}, error) {
		if cached, ok := d.cache.Get(key); ok {
			return cached, nil
		}
		return d.predict(shared, seq, key)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			d.logger.Warnf("[Inference] ML service unavailable, using fallback: %v", res.Err)
			return d.fallback()
		}
		return res.Val.(Result)
	case <-ctx.Done():
		d.logger.Debugf("[Inference] Caller gave up waiting: %v", ctx.Err())
		return d.fallback()
	}
}

// LastPrediction returns the most recent successful result, if any
func (d *Detector) LastPrediction() (Result, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.last == nil {
		return Result{}, false
	}
	return *d.last, true
}

func (d *Detector) predict(ctx context.Context, seq [][]float64, key string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	pred, err := d.predictor.Predict(ctx, seq)
	elapsed := time.Since(start)
	if err != nil {
		d.metrics.ObserveInference(metrics.InferenceFailure, elapsed)
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{}, fmt.Errorf("inference call timed out after %s: %w", d.timeout, err)
		}
		return Result{}, err
	}
	d.metrics.ObserveInference(metrics.InferenceSuccess, elapsed)

	score := pred.AnomalyScore
	startTime := d.now()
	result := Result{
		AnomalyScore: score,
		AnomalyContext: model.AnomalyContext{
			IsActive:  IsActive(score),
			Severity:  MapScoreToSeverity(score),
			Type:      DetermineAnomalyType(seq, pred.FeatureImportance),
			StartTime: &startTime,
		},
		Predictions: map[string]interface{}{},
	}
	if len(pred.FeatureImportance) > 0 {
		result.Predictions["feature_importance"] = pred.FeatureImportance
	}

	d.mu.Lock()
	last := result
	d.last = &last
	d.mu.Unlock()

	d.cache.Add(key, result)
	d.metrics.ObserveScore(score)
	return result, nil
}

func (d *Detector) fallback() Result {
	if last, ok := d.LastPrediction(); ok {
		last.Fallback = true
		return last
	}

	score := 0.2 + d.random()*0.3
	return Result{
		AnomalyScore: score,
		AnomalyContext: model.AnomalyContext{
			IsActive: false,
			Severity: MapScoreToSeverity(score),
		},
		Predictions: map[string]interface{}{},
		Fallback:    true,
	}
}

func cacheKey(row []float64) string {
	var b strings.Builder
	for i, v := range row {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	return b.String()
}
