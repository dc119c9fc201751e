package generator

import (
	"context"
	"sync"
	"time"

	"aqua-guard/internal/features"
	"aqua-guard/internal/history"
	"aqua-guard/internal/inference"
	"aqua-guard/internal/metrics"
	"aqua-guard/internal/model"
	"aqua-guard/internal/pipeline"
	"aqua-guard/internal/schema"
	"aqua-guard/internal/simulator"

	"github.com/sirupsen/logrus"
)

const (
	DefaultInterval     = time.Minute
	DefaultHistoryHours = 24
)

// Options configures a Generator. Zero values take the package defaults.
// BackfillHours is used as given: 0 synthesizes only the current point and a
// negative value skips backfill entirely.
type Options struct {
	Interval        time.Duration
	BackfillHours   int
	HistoryCapacity int
	Seed            uint64
	Location        *time.Location
	Inference       inference.Config
	// Clock overrides time.Now, for tests
	Clock func() time.Time
}

// Generator owns the simulated plant and its history. One goroutine ticks it;
// any number of goroutines may read from it.
type Generator struct {
	sim        *simulator.Simulator
	it         *simulator.ITGenerator
	aggregator *features.Aggregator
	history    *history.Store
	detector   *inference.Detector
	processor  *pipeline.Processor
	metrics    *metrics.Metrics
	logger     *logrus.Logger
	seqLen     int
	interval   time.Duration
	now        func() time.Time

	tickMu sync.Mutex

	runMu    sync.Mutex
	stopChan chan struct{}
	done     chan struct{}

	ctx     context.Context
	cancel  context.CancelFunc
	pending sync.WaitGroup

	subsMu      sync.RWMutex
	subscribers map[chan model.DataPoint]struct{}
}

// New builds a generator and synthesizes the backfill history. predictor and
// processor may be nil, in which case points are not scored or not checked.
func New(opts Options, predictor inference.Predictor, processor *pipeline.Processor, m *metrics.Metrics, logger *logrus.Logger) *Generator {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Inference.SequenceLength <= 0 {
		opts.Inference.SequenceLength = inference.DefaultSequenceLength
	}
	if logger == nil {
		logger = logrus.New()
	}

	rng := simulator.NewSource(opts.Seed)
	store := history.NewStore(opts.HistoryCapacity)
	ctx, cancel := context.WithCancel(context.Background())

	g := &Generator{
		sim:         simulator.NewSimulator(rng),
		it:          simulator.NewITGenerator(rng),
		aggregator:  features.NewAggregator(features.NewRollingEngine(store), opts.Location),
		history:     store,
		processor:   processor,
		metrics:     m,
		logger:      logger,
		seqLen:      opts.Inference.SequenceLength,
		interval:    opts.Interval,
		now:         opts.Clock,
		ctx:         ctx,
		cancel:      cancel,
		subscribers: make(map[chan model.DataPoint]struct{}),
	}
	if predictor != nil {
		g.detector = inference.NewDetector(g, predictor, opts.Inference, m, logger)
	}

	if opts.BackfillHours >= 0 {
		g.backfill(opts.BackfillHours)
	}
	return g
}

// backfill synthesizes one point per hour for the last hours hours, ending now
func (g *Generator) backfill(hours int) {
	now := g.now()
	for i := hours; i >= 0; i-- {
		ts := now.Add(-time.Duration(i) * time.Hour)
		cur, _ := g.history.Current()
		if _, err := g.history.Append(g.generate(ts, cur.Score())); err != nil {
			g.logger.Warnf("[Generator] Dropping backfill point at %s: %v", ts.Format(time.RFC3339), err)
		}
	}
	g.logger.Infof("[Generator] Backfilled %d points (%dh)", g.history.Len(), hours)
}

func (g *Generator) generate(ts time.Time, prevScore float64) model.DataPoint {
	state := g.sim.Step()
	sample := g.it.Sample()

	f, base := g.aggregator.Build(features.Input{
		State:     state,
		IT:        sample,
		Timestamp: ts,
		PrevScore: prevScore,
	})
	return model.DataPoint{Timestamp: ts, Features: f, Base: base}
}

// Tick advances the plant by one step and appends the new point immediately.
// Scoring and rule evaluation run in the background and never delay the tick.
func (g *Generator) Tick() (model.DataPoint, error) {
	g.tickMu.Lock()
	defer g.tickMu.Unlock()

	ts := g.now()
	cur, ok := g.history.Current()
	if ok && ts.Before(cur.Timestamp) {
		ts = cur.Timestamp
	}

	stored, err := g.history.Append(g.generate(ts, cur.Score()))
	if err != nil {
		return model.DataPoint{}, err
	}
	g.metrics.ObservePoint(stored, g.history.Len())
	g.logger.Debugf("[Generator] Tick %d at %s", stored.Seq, ts.Format(time.RFC3339))

	// the model window must end at this point even if later ticks land first
	g.annotate(stored, g.GetSequenceForModel())
	return stored, nil
}

func (g *Generator) annotate(p model.DataPoint, seq [][]float64) {
	g.pending.Add(1)
	go func() {
		defer g.pending.Done()

		if g.detector != nil {
			res := g.detector.DetectSequence(g.ctx, seq)
			if !g.history.Annotate(p.Seq, res.AnomalyScore, res.AnomalyContext) {
				g.logger.Debugf("[Generator] Point %d evicted before annotation", p.Seq)
			}
			score, ac := res.AnomalyScore, res.AnomalyContext
			p.AnomalyScore = &score
			p.AnomalyContext = &ac
		}

		g.processor.Process(g.ctx, &p)
		g.publish(p)
	}()
}

// Start ticks every interval until Stop. Calling Start on a running generator
// restarts it with the new interval; a non-positive interval keeps the configured one.
func (g *Generator) Start(interval time.Duration) {
	if interval <= 0 {
		interval = g.interval
	}

	g.runMu.Lock()
	defer g.runMu.Unlock()

	g.stopLocked()

	stop := make(chan struct{})
	done := make(chan struct{})
	g.stopChan, g.done = stop, done

	go g.run(interval, stop, done)
}

func (g *Generator) run(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	g.logger.Infof("[Generator] Starting data generation (interval: %v)", interval)

	for {
		select {
		case <-ticker.C:
			if _, err := g.Tick(); err != nil {
				g.logger.Errorf("[Generator] Tick failed: %v", err)
			}
		case <-stop:
			g.logger.Info("[Generator] Data generation stopped")
			return
		}
	}
}

// Stop halts ticking. When it returns no further tick will run. Safe to call
// any number of times.
func (g *Generator) Stop() {
	g.runMu.Lock()
	defer g.runMu.Unlock()
	g.stopLocked()
}

func (g *Generator) stopLocked() {
	if g.stopChan == nil {
		return
	}
	close(g.stopChan)
	<-g.done
	g.stopChan, g.done = nil, nil
}

// Running reports whether the tick loop is active
func (g *Generator) Running() bool {
	g.runMu.Lock()
	defer g.runMu.Unlock()
	return g.stopChan != nil
}

// Wait blocks until in-flight annotations have finished
func (g *Generator) Wait() {
	g.pending.Wait()
}

// Close stops ticking, cancels in-flight inference calls and closes subscriber channels
func (g *Generator) Close() {
	g.Stop()
	g.cancel()
	g.pending.Wait()

	g.subsMu.Lock()
	defer g.subsMu.Unlock()
	for ch := range g.subscribers {
		close(ch)
		delete(g.subscribers, ch)
	}
}

// Subscribe streams annotated points. The returned func unsubscribes.
// Slow subscribers miss points rather than block the generator.
func (g *Generator) Subscribe(buffer int) (<-chan model.DataPoint, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan model.DataPoint, buffer)

	g.subsMu.Lock()
	g.subscribers[ch] = struct{}{}
	g.subsMu.Unlock()

	return ch, func() {
		g.subsMu.Lock()
		defer g.subsMu.Unlock()
		if _, ok := g.subscribers[ch]; ok {
			delete(g.subscribers, ch)
			close(ch)
		}
	}
}

func (g *Generator) publish(p model.DataPoint) {
	g.subsMu.RLock()
	defer g.subsMu.RUnlock()

	for ch := range g.subscribers {
		select {
		case ch <- p.Clone():
		default:
			g.logger.Debug("[Generator] Subscriber channel full, dropping point")
		}
	}
}

// GetCurrentState returns the most recently appended point
func (g *Generator) GetCurrentState() model.DataPoint {
	p, _ := g.history.Current()
	return p
}

// GetHistory returns the points of the last hours hours, oldest first.
// A non-positive value means DefaultHistoryHours.
func (g *Generator) GetHistory(hours float64) []model.DataPoint {
	if hours <= 0 {
		hours = DefaultHistoryHours
	}
	return g.history.SinceHours(g.now(), hours)
}

// GetLastNPoints returns up to n of the newest points, oldest first
func (g *Generator) GetLastNPoints(n int) []model.DataPoint {
	return g.history.LastN(n)
}

// GetSequenceForModel returns the last sequence-length points as feature
// vectors in catalog order, or an empty matrix while history is shorter.
func (g *Generator) GetSequenceForModel() [][]float64 {
	points := g.history.LastN(g.seqLen)
	if len(points) < g.seqLen {
		return [][]float64{}
	}

	seq := make([][]float64, len(points))
	for i, p := range points {
		seq[i] = schema.Vector(p.Features)
	}
	return seq
}

// SequenceForModel lets the generator feed its own detector
func (g *Generator) SequenceForModel() [][]float64 {
	return g.GetSequenceForModel()
}

// GetFeatureNames returns the feature catalog in vector order
func (g *Generator) GetFeatureNames() []string {
	return schema.Names()
}

// DetectOperatorAnomaly scores the current window on demand. Without a
// predictor it reports the last annotation of the current point.
func (g *Generator) DetectOperatorAnomaly(ctx context.Context) inference.Result {
	if g.detector != nil {
		return g.detector.DetectOperatorAnomaly(ctx)
	}

	cur := g.GetCurrentState()
	res := inference.Result{
		AnomalyScore: cur.Score(),
		Predictions:  map[string]interface{}{},
		Fallback:     true,
	}
	if cur.AnomalyContext != nil {
		res.AnomalyContext = *cur.AnomalyContext
	} else {
		res.AnomalyContext = model.AnomalyContext{Severity: inference.MapScoreToSeverity(res.AnomalyScore)}
	}
	return res
}

// HistoryLen reports how many points are held
func (g *Generator) HistoryLen() int {
	return g.history.Len()
}
