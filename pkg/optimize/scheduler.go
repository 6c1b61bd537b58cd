package optimize

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/board"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// increasedRipupFactor scales ripup costs while increased ripup is on.
const increasedRipupFactor = 10

// defaultAcquireInterval is how often a blocked slot acquire rechecks the
// context.
const defaultAcquireInterval = 50 * time.Millisecond

// Strategy selects when winning clones replace the master board.
type Strategy int

const (
	// Greedy promotes every winner as soon as it is arbitrated.
	Greedy Strategy = iota
	// Global promotes the best winner once, when the pass ends.
	Global
)

func (s Strategy) String() string {
	switch s {
	case Greedy:
		return "greedy"
	case Global:
		return "global"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy parses "greedy" or "global".
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "greedy", "":
		return Greedy, nil
	case "global":
		return Global, nil
	default:
		return Greedy, fmt.Errorf("optimize: unknown strategy %q", s)
	}
}

// State is the phase of the running pass.
type State int32

const (
	StateIdle State = iota
	StateCollecting
	StateScheduling
	StateAwaiting
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCollecting:
		return "collecting"
	case StateScheduling:
		return "scheduling"
	case StateAwaiting:
		return "awaiting"
	case StateComplete:
		return "complete"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Pass is handed to the item optimizer with every task.
type Pass struct {
	ID              string
	Number          int
	PreferDirection bool
	RipupFactor     float64
}

// ItemOptimizer improves the routing around one item of a private board
// copy. The board passed in belongs to the call.
type ItemOptimizer interface {
	OptimizeItem(ctx context.Context, b *board.Board, id board.ItemID, p Pass) (RouteResult, error)
}

// passRun is the state of one OptimizePass call. Tasks keep a pointer to
// the run that started them, so results of an abandoned run can be told
// apart from those of the current one.
type passRun struct {
	stopped   atomic.Bool
	scheduled atomic.Int64
	finished  atomic.Int64
}

// Scheduler runs optimization passes over a master board with a bounded
// pool of workers. OptimizePass must not be called concurrently.
type Scheduler struct {
	// mu guards master. Tasks clone under the read lock.
	mu     sync.RWMutex
	master *board.Board

	// arbMu serializes arbitration.
	arbMu     sync.Mutex
	incumbent Score
	best      *board.Board
	improved  bool

	threads   int
	strategy  Strategy
	optimizer ItemOptimizer
	logger    *zap.Logger
	interval  time.Duration

	increasedRipup atomic.Bool

	state   atomic.Int32
	current atomic.Pointer[passRun]
	faults  atomic.Int64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithThreads sets the worker count. Values below 1 mean one worker.
func WithThreads(n int) Option {
	return func(s *Scheduler) { s.threads = max(n, 1) }
}

// WithStrategy selects greedy or global promotion.
func WithStrategy(st Strategy) Option {
	return func(s *Scheduler) { s.strategy = st }
}

// WithOptimizer replaces the item optimizer.
func WithOptimizer(o ItemOptimizer) Option {
	return func(s *Scheduler) { s.optimizer = o }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithAcquireInterval sets how often a waiting acquire rechecks the context.
func WithAcquireInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// NewScheduler creates a scheduler owning b. Without WithOptimizer the
// scheduler cannot run passes.
func NewScheduler(b *board.Board, opts ...Option) *Scheduler {
	s := &Scheduler{
		master:   b,
		threads:  runtime.NumCPU(),
		logger:   zap.NewNop(),
		interval: defaultAcquireInterval,
	}
	s.increasedRipup.Store(true)
	s.current.Store(&passRun{})
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Board returns the current master board.
func (s *Scheduler) Board() *board.Board {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.master
}

// State returns the phase of the current or last pass.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

func (s *Scheduler) setState(st State) {
	s.state.Store(int32(st))
}

// Progress returns the number of tasks scheduled and finished in the
// current or last pass. Tasks abandoned by an earlier pass do not count.
func (s *Scheduler) Progress() (scheduled, finished int64) {
	run := s.current.Load()
	return run.scheduled.Load(), run.finished.Load()
}

// Faults returns the number of tasks that panicked.
func (s *Scheduler) Faults() int64 {
	return s.faults.Load()
}

// IncreasedRipup reports whether ripup costs are still scaled up.
func (s *Scheduler) IncreasedRipup() bool {
	return s.increasedRipup.Load()
}

// OptimizePass offers every connection of the master board to the item
// optimizer once. It reports whether the board improved. Cancelling ctx
// ends the pass early and keeps what was won so far; the returned error is
// then nil.
func (s *Scheduler) OptimizePass(ctx context.Context, passNo int, preferDirection bool) (bool, error) {
	if s.optimizer == nil {
		return false, fmt.Errorf("optimize: no item optimizer")
	}
	pass := Pass{
		ID:              uuid.NewString(),
		Number:          passNo,
		PreferDirection: preferDirection,
		RipupFactor:     1,
	}
	if s.increasedRipup.Load() {
		pass.RipupFactor = increasedRipupFactor
	}
	ctx, span := getTracer().Start(ctx, "optimize.Scheduler.OptimizePass",
		trace.WithAttributes(
			attribute.String("pass.id", pass.ID),
			attribute.Int("pass.number", passNo),
			attribute.String("strategy", s.strategy.String()),
		),
	)
	defer span.End()
	logger := s.logger.With(zap.String("pass_id", pass.ID), zap.Int("pass", passNo))

	s.setState(StateCollecting)
	items := s.collect()

	run := &passRun{}
	start := s.Board()
	s.arbMu.Lock()
	s.current.Store(run)
	s.incumbent = ScoreOf(start)
	s.best = nil
	s.improved = false
	s.arbMu.Unlock()
	logger.Debug("pass started",
		zap.Int("items", len(items)),
		zap.Stringer("score", s.incumbent),
		zap.Float64("ripup_factor", pass.RipupFactor))

	s.setState(StateScheduling)
	sem := make(chan struct{}, s.threads)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	for _, id := range items {
		if !acquire(ctx, sem, ticker) {
			break
		}
		run.scheduled.Add(1)
		tasksScheduled.Inc()
		wg.Add(1)
		go func(id board.ItemID) {
			defer wg.Done()
			defer func() { <-sem }()
			s.runTask(ctx, run, id, pass, logger)
		}(id)
	}

	s.setState(StateAwaiting)
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	canceled := false
	select {
	case <-done:
	case <-ctx.Done():
		canceled = true
	}
	if ctx.Err() != nil {
		canceled = true
	}

	s.arbMu.Lock()
	run.stopped.Store(true)
	if s.strategy == Global && s.best != nil {
		s.promote(s.best)
	}
	improved := s.improved
	final := s.incumbent
	s.arbMu.Unlock()
	s.setState(StateComplete)

	span.SetAttributes(attribute.Bool("improved", improved), attribute.Bool("canceled", canceled))
	logger.Info("pass finished",
		zap.Bool("improved", improved),
		zap.Bool("canceled", canceled),
		zap.Stringer("score", final))

	if !improved && !canceled && s.increasedRipup.Load() {
		s.increasedRipup.Store(false)
		logger.Info("no improvement, relaxing ripup costs")
		return true, nil
	}
	return improved, nil
}

// collect returns one unfixed route item per connection, ordered by ID.
func (s *Scheduler) collect() []board.ItemID {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[board.ItemID]bool)
	var out []board.ItemID
	for _, it := range s.master.Items() {
		if !it.IsRoute() || it.Fixed != board.Unfixed || seen[it.ID] {
			continue
		}
		conn := s.master.ConnectionOf(it.ID)
		if conn == nil {
			continue
		}
		for _, m := range conn.Items {
			seen[m] = true
		}
		out = append(out, it.ID)
	}
	return out
}

// acquire takes a worker slot. It returns false once ctx is done.
func acquire(ctx context.Context, sem chan struct{}, ticker *time.Ticker) bool {
	for {
		if ctx.Err() != nil {
			return false
		}
		select {
		case sem <- struct{}{}:
			return true
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) runTask(ctx context.Context, run *passRun, id board.ItemID, pass Pass, logger *zap.Logger) {
	defer func() {
		run.finished.Add(1)
		tasksFinished.Inc()
	}()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: item %d: %v", ErrWorkerTaskFault, id, r)
			s.faults.Add(1)
			taskFaults.Inc()
			logger.Error("task failed", zap.Error(err))
		}
	}()

	s.mu.RLock()
	clone := s.master.Clone()
	s.mu.RUnlock()
	if clone.Item(id) == nil {
		return
	}

	res, err := s.optimizer.OptimizeItem(ctx, clone, id, pass)
	if err != nil {
		logger.Debug("item not optimized", zap.Int("item", int(id)), zap.Error(err))
		return
	}
	s.arbitrate(run, id, res, clone, logger)
}

// arbitrate keeps clone if its result beats the incumbent. Results of a
// stopped run, or of a run that is no longer current, are dropped.
func (s *Scheduler) arbitrate(run *passRun, id board.ItemID, res RouteResult, clone *board.Board, logger *zap.Logger) {
	s.arbMu.Lock()
	defer s.arbMu.Unlock()
	if run.stopped.Load() || s.current.Load() != run {
		arbitrationTotal.WithLabelValues("late").Inc()
		return
	}
	if !res.Improved || !res.After.Better(s.incumbent) {
		arbitrationTotal.WithLabelValues("lost").Inc()
		return
	}
	arbitrationTotal.WithLabelValues("won").Inc()
	logger.Debug("item improved",
		zap.Int("item", int(id)),
		zap.Stringer("before", s.incumbent),
		zap.Stringer("after", res.After))
	s.incumbent = res.After
	s.improved = true
	if s.strategy == Greedy {
		s.promote(clone)
		return
	}
	s.best = clone
}

func (s *Scheduler) promote(b *board.Board) {
	s.mu.Lock()
	s.master = b
	s.mu.Unlock()
}

var (
	tracerOnce sync.Once
	tracer     trace.Tracer
)

func getTracer() trace.Tracer {
	tracerOnce.Do(func() {
		tracer = otel.Tracer("github.com/OpenTraceLab/OpenTraceRoute/pkg/optimize")
	})
	return tracer
}
