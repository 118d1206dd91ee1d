package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"trashtrim/internal/config"
	"trashtrim/internal/disk"
	"trashtrim/internal/filter"
	"trashtrim/internal/fsops"
	"trashtrim/internal/limiter"
	"trashtrim/internal/metrics"
	"trashtrim/internal/operation"
	"trashtrim/internal/safety"
	"trashtrim/internal/walk"
)

var (
	// ErrStrictAbort is returned when --strict stops the run at the first failure
	ErrStrictAbort = errors.New("aborted on first failure")
	// ErrInterrupted is returned when the parent context is cancelled mid-run
	ErrInterrupted = errors.New("run interrupted")
)

// Sink consumes the report stream. Calls happen on a single goroutine.
type Sink interface {
	TrashReady(path string, created bool)
	Result(res operation.Result)
}

// Recorder persists matched results, e.g. the sqlite history
type Recorder interface {
	Record(runID string, at time.Time, res operation.Result) error
}

// Counters are shared by every task and only ever incremented
type Counters struct {
	Seen        atomic.Uint64
	Matched     atomic.Uint64
	Failed      atomic.Uint64
	Quarantined atomic.Int64
}

// Summary is the final snapshot of a run
type Summary struct {
	RunID            string
	Op               string
	Workers          int
	Seen             uint64
	Matched          uint64
	Failed           uint64
	BytesQuarantined int64
	Elapsed          time.Duration
	DryRun           bool
	// Started is false when the run was refused before the walk began
	Started bool
}

// Runner walks one root and applies one operation to every dispatched file
type Runner struct {
	Options config.Options
	FS      *fsops.FS
	Logger  *zap.Logger
	Metrics *metrics.Run
	History Recorder
	Sink    Sink

	now func() time.Time
}

// New returns a runner on the real filesystem. opts must already be validated.
func New(opts config.Options, logger *zap.Logger, sink Sink) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		Options: opts,
		FS:      fsops.NewOSFS(),
		Logger:  logger,
		Metrics: metrics.NewRun(),
		Sink:    sink,
		now:     time.Now,
	}
}

// Run processes the tree and returns once every dispatched task has finished
// and its result has been handed to the sink. The summary is valid even when
// an error is returned.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	start := r.now()
	opts := r.Options
	sum := Summary{
		RunID:   uuid.NewString(),
		Op:      string(opts.Mode),
		Workers: opts.Workers,
		DryRun:  opts.DryRun,
	}
	log := r.Logger.With(zap.String("run_id", sum.RunID), zap.String("op", sum.Op))

	validator := safety.NewValidator(opts.Root, nil)
	if err := validator.ValidateRoot(); err != nil {
		return sum, fmt.Errorf("root %s: %w", opts.Root, err)
	}

	if u, err := disk.GetUsage(opts.Root); err != nil {
		log.Debug("disk usage unavailable", zap.Error(err))
	} else {
		r.Metrics.RootFreeBytes.Set(float64(u.FreeBytes))
		log.Debug("root filesystem", zap.Int64("free_bytes", u.FreeBytes), zap.Float64("used_percent", u.UsedPercent))
	}

	op, err := r.buildOperation(validator, log)
	if err != nil {
		return sum, err
	}

	pool, err := ants.NewPool(opts.Workers)
	if err != nil {
		return sum, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()
	r.Metrics.Workers.Set(float64(opts.Workers))

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var (
		counters Counters
		wg       sync.WaitGroup
		results  = make(chan operation.Result, opts.Workers*2)
		drained  = make(chan struct{})
	)

	go func() {
		defer close(drained)
		for res := range results {
			if r.Sink != nil {
				r.Sink.Result(res)
			}
		}
	}()

	walker := &walk.Walker{Fs: r.FS.Fs, Policy: r.walkPolicy(log)}
	sum.Started = true
	log.Info("run started", zap.String("root", opts.Root), zap.Int("workers", opts.Workers), zap.Bool("dry_run", opts.DryRun))

	walkErr := walker.Walk(ctx, opts.Root, func(o walk.Outcome) error {
		e := o.Entry
		if reason := filter.Classify(e); reason != filter.ReasonNone {
			r.Metrics.RecordSkip(reason.String())
			return nil
		}

		wg.Add(1)
		task := func() {
			defer wg.Done()
			r.process(ctx, cancel, op, e, &counters, sum.RunID, results, log)
		}
		if err := pool.Submit(task); err != nil {
			wg.Done()
			return fmt.Errorf("submit %s: %w", e.Path, err)
		}
		return nil
	})

	// tasks are only added by the walk, so waiting can start once it returns
	go func() {
		wg.Wait()
		close(results)
	}()
	<-drained

	sum.Seen = counters.Seen.Load()
	sum.Matched = counters.Matched.Load()
	sum.Failed = counters.Failed.Load()
	sum.BytesQuarantined = counters.Quarantined.Load()
	sum.Elapsed = r.now().Sub(start)
	r.Metrics.Finish(sum.Elapsed, r.now())

	log.Info("run finished",
		zap.Uint64("seen", sum.Seen),
		zap.Uint64("matched", sum.Matched),
		zap.Uint64("failed", sum.Failed),
		zap.Int64("bytes_quarantined", sum.BytesQuarantined),
		zap.Duration("elapsed", sum.Elapsed),
	)

	return sum, runError(ctx, walkErr)
}

// runError picks the error that explains why the walk stopped early
func runError(ctx context.Context, walkErr error) error {
	if cause := context.Cause(ctx); cause != nil && errors.Is(cause, ErrStrictAbort) {
		return cause
	}
	if walkErr == nil {
		return nil
	}
	if errors.Is(walkErr, context.Canceled) || errors.Is(walkErr, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrInterrupted, walkErr)
	}
	return fmt.Errorf("walk: %w", walkErr)
}

func (r *Runner) process(
	ctx context.Context,
	cancel context.CancelCauseFunc,
	op operation.Operation,
	e *walk.FileEntry,
	counters *Counters,
	runID string,
	results chan<- operation.Result,
	log *zap.Logger,
) {
	if ctx.Err() != nil {
		return
	}
	counters.Seen.Add(1)
	r.Metrics.EntriesSeen.Inc()

	began := r.now()
	res := op.Apply(ctx, e)
	if !res.Matched {
		return
	}
	took := r.now().Sub(began)

	counters.Matched.Add(1)
	quarantined := res.Op == operation.OpDelete && !res.DryRun
	if res.Err != nil {
		counters.Failed.Add(1)
		log.Warn("action failed", zap.String("path", res.Path), zap.String("dest", res.Dest), zap.Error(res.Err))
		if r.Options.Strict {
			cancel(fmt.Errorf("%w: %s: %v", ErrStrictAbort, res.Path, res.Err))
		}
	} else {
		if quarantined {
			counters.Quarantined.Add(res.Size)
		}
		log.Debug("action done", zap.String("path", res.Path), zap.String("dest", res.Dest), zap.String("pattern", res.Pattern))
	}
	r.Metrics.RecordAction(res.Op, res.Size, quarantined, res.Err != nil, took)

	if r.History != nil {
		if err := r.History.Record(runID, r.now(), res); err != nil {
			log.Error("failed to record history", zap.String("path", res.Path), zap.Error(err))
		}
	}

	results <- res
}

// buildOperation builds the configured operation, preparing the trash directory
// for deletes
func (r *Runner) buildOperation(validator *safety.Validator, log *zap.Logger) (operation.Operation, error) {
	opts := r.Options
	env := operation.Env{
		Mover:     r.FS,
		Validator: validator,
		Limiter:   limiter.NewOpLimiter(opts.RateLimit),
		DryRun:    opts.DryRun,
	}
	if env.Limiter.Enabled() {
		log.Info("throttling file actions", zap.Float64("ops_per_second", opts.RateLimit))
	}

	switch opts.Mode {
	case config.ModeDelete:
		trash := opts.TrashPath()
		if err := r.prepareTrash(validator, trash, log); err != nil {
			return nil, err
		}
		return &operation.Delete{Env: env, Trash: trash, Marker: opts.Suffix}, nil
	case config.ModeTrim:
		return &operation.Trim{Env: env, Patterns: operation.NewPatterns(opts.Override)}, nil
	}
	return nil, fmt.Errorf("%w: %q", config.ErrUnknownMode, opts.Mode)
}

func (r *Runner) prepareTrash(validator *safety.Validator, trash string, log *zap.Logger) error {
	if err := validator.ValidateTrash(trash); err != nil {
		return fmt.Errorf("trash %s: %w", trash, err)
	}

	var created bool
	if r.Options.DryRun {
		exists, err := r.FS.DirExists(trash)
		if err != nil {
			return err
		}
		created = !exists
	} else {
		var err error
		if created, err = r.FS.EnsureDir(trash); err != nil {
			return fmt.Errorf("prepare trash: %w", err)
		}
	}

	log.Debug("trash directory ready", zap.String("path", trash), zap.Bool("created", created))
	if r.Sink != nil {
		r.Sink.TrashReady(trash, created)
	}
	return nil
}

func (r *Runner) walkPolicy(log *zap.Logger) walk.ErrorPolicy {
	return walk.PolicyFunc(func(path string, err error) {
		r.Metrics.WalkErrors.Inc()
		if r.Options.Logging.Debug {
			walk.LogPolicy{Logger: log}.HandleWalkError(path, err)
		}
	})
}
