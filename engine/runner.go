package engine

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/franksops/grabsync/jobconfig"
	"github.com/franksops/grabsync/metrics"
	"github.com/franksops/grabsync/provider"
	"github.com/franksops/grabsync/store"
)

// ErrUnknownJob is returned when a launch names a job the runner cannot run.
var ErrUnknownJob = errors.New("unknown job")

// ErrNilRunner is returned by Launch on a nil *Runner.
var ErrNilRunner = errors.New("runner is nil")

const defaultWorkers = 8

// ResolveSource returns the provider for a job's source server.
type ResolveSource func(ctx context.Context, opts provider.SourceOptions) (provider.Provider, error)

// RunnerConfig wires a Runner to its storage and collaborators.
type RunnerConfig struct {
	// Store holds the execution history. Required.
	Store store.Store

	// Destination is the client repository. Required.
	Destination provider.Provider

	// Source carries the bucket or root directory of the source server.
	// Scheme, host, port and credentials come from the job parameters.
	Source provider.SourceOptions

	// ResolveSource defaults to provider.FromServer.
	ResolveSource ResolveSource

	Workers           int
	BufferSize        int
	MaxItemsPerSecond float64

	// Workflows defaults to LogWorkflowTrigger.
	Workflows WorkflowTrigger

	Metrics *metrics.Transfer
	Logger  *slog.Logger
	Now     func() time.Time
}

// Runner executes content transfer jobs. It implements jobconfig.Launcher:
// Launch records a STARTING execution and runs it in the background.
type Runner struct {
	cfg     RunnerConfig
	buffers *bufferPool
	group   errgroup.Group

	mu       sync.Mutex
	trackers map[int64]*ExecutionTracker
}

// NewRunner validates cfg and returns a Runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("runner requires a store")
	}
	if cfg.Destination == nil {
		return nil, fmt.Errorf("runner requires a destination")
	}
	if cfg.ResolveSource == nil {
		cfg.ResolveSource = provider.FromServer
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Workflows == nil {
		cfg.Workflows = LogWorkflowTrigger{Logger: cfg.Logger}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Runner{
		cfg:      cfg,
		buffers:  newBufferPool(cfg.BufferSize),
		trackers: make(map[int64]*ExecutionTracker),
	}, nil
}

// execution is a launch request with its parameters decoded.
type execution struct {
	jobName           string
	path              string
	excludes          []string
	workflows         []string
	source            provider.SourceOptions
	clientUsername    string
	transactionID     int64
	contentAfter      time.Time
	deleteBeforeWrite bool
	batchSize         int
}

func (r *Runner) decode(jobName string, params jobconfig.Parameters) (execution, error) {
	e := execution{
		jobName:        jobName,
		path:           params.Get(jobconfig.ParamPath),
		excludes:       jobconfig.SplitExcludePaths(params.Get(jobconfig.ParamExcludePaths)),
		workflows:      jobconfig.SplitWorkflowConfigIDs(params.Get(jobconfig.ParamWorkflowConfigIDs)),
		clientUsername: params.Get(jobconfig.ParamClientUsername),
	}

	switch jobName {
	case jobconfig.JobFullContent:
	case jobconfig.JobDeltaContent:
		v, ok := params.Lookup(jobconfig.ParamContentAfterDate)
		if !ok {
			return execution{}, fmt.Errorf("%s requires %s", jobName, jobconfig.ParamContentAfterDate)
		}
		after, err := jobconfig.ParseContentAfterDate(v)
		if err != nil {
			return execution{}, fmt.Errorf("invalid %s %q: %w", jobconfig.ParamContentAfterDate, v, err)
		}
		e.contentAfter = after
	default:
		return execution{}, fmt.Errorf("%w: %q", ErrUnknownJob, jobName)
	}

	if e.path == "" {
		return execution{}, fmt.Errorf("missing %s parameter", jobconfig.ParamPath)
	}

	var err error
	if v := params.Get(jobconfig.ParamTransactionID); v != "" {
		if e.transactionID, err = strconv.ParseInt(v, 10, 64); err != nil {
			return execution{}, fmt.Errorf("invalid %s %q: %w", jobconfig.ParamTransactionID, v, err)
		}
	}
	if v := params.Get(jobconfig.ParamBatchSize); v != "" {
		if e.batchSize, err = strconv.Atoi(v); err != nil {
			return execution{}, fmt.Errorf("invalid %s %q: %w", jobconfig.ParamBatchSize, v, err)
		}
	}
	if v := params.Get(jobconfig.ParamDeleteBeforeWrite); v != "" {
		if e.deleteBeforeWrite, err = strconv.ParseBool(v); err != nil {
			return execution{}, fmt.Errorf("invalid %s %q: %w", jobconfig.ParamDeleteBeforeWrite, v, err)
		}
	}

	e.source = r.cfg.Source
	e.source.Scheme = params.Get(jobconfig.ParamScheme)
	e.source.Host = params.Get(jobconfig.ParamHost)
	e.source.Port = params.Get(jobconfig.ParamPort)
	e.source.Username = params.Get(jobconfig.ParamServerUsername)
	e.source.Password = params.Get(jobconfig.ParamServerPassword)
	return e, nil
}

// Launch records a new execution of jobName and starts it. The execution
// runs until it finishes or ctx is cancelled.
func (r *Runner) Launch(ctx context.Context, jobName string, params jobconfig.Parameters) (int64, error) {
	if r == nil {
		return 0, ErrNilRunner
	}
	e, err := r.decode(jobName, params)
	if err != nil {
		return 0, err
	}

	rec := &store.ExecutionRecord{
		JobName:        e.jobName,
		ClientUsername: e.clientUsername,
		Path:           e.path,
		TransactionID:  e.transactionID,
		Status:         store.StatusStarting,
		StartTime:      r.cfg.Now().UTC(),
	}
	if err := r.cfg.Store.CreateExecution(rec); err != nil {
		return 0, fmt.Errorf("failed to record execution: %w", err)
	}

	logger := r.cfg.Logger.With("execution", rec.ID, "job", e.jobName, "path", e.path)
	tracker := NewExecutionTracker(r.cfg.Store, *rec, e.batchSize, logger)

	r.mu.Lock()
	r.trackers[rec.ID] = tracker
	r.mu.Unlock()

	r.group.Go(func() error {
		return r.run(ctx, e, tracker, logger)
	})
	return rec.ID, nil
}

// Wait blocks until every launched execution has finished and returns the
// first execution that did not complete.
func (r *Runner) Wait() error {
	return r.group.Wait()
}

// Snapshot returns the progress of every execution launched by r, ordered by id.
func (r *Runner) Snapshot() []Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Progress, 0, len(r.trackers))
	for _, t := range r.trackers {
		out = append(out, t.Progress())
	}
	slices.SortFunc(out, func(a, b Progress) int {
		return cmp.Compare(a.ExecutionID, b.ExecutionID)
	})
	return out
}

func (r *Runner) run(ctx context.Context, e execution, tracker *ExecutionTracker, logger *slog.Logger) error {
	started := r.cfg.Now()
	if err := tracker.MarkRunning(); err != nil {
		logger.Warn("failed to mark execution running", "error", err)
	}
	logger.Info("execution started")

	runErr := r.transferTree(ctx, e, tracker, logger)

	var (
		status store.ExecutionStatus
		msg    string
	)
	switch {
	case ctx.Err() != nil:
		status, msg = store.StatusStopped, context.Cause(ctx).Error()
	case runErr != nil:
		status, msg = store.StatusFailed, runErr.Error()
	default:
		status = store.StatusCompleted
	}

	end := r.cfg.Now().UTC()
	final, err := tracker.Finish(status, end, msg)
	if err != nil {
		logger.Error("failed to save execution result", "status", status, "error", err)
	}
	r.cfg.Metrics.ExecutionFinished(e.jobName, status.String(), end.Sub(started).Seconds())

	logger.Info("execution finished",
		"status", status,
		"files", final.FilesTransferred,
		"bytes", final.BytesTransferred,
		"properties_dropped", final.PropertiesDropped,
	)

	if status != store.StatusCompleted {
		return fmt.Errorf("execution %d of %s %s: %s", final.ID, e.path, status, msg)
	}

	// The transfer is already recorded as completed, so a workflow failure
	// is reported without changing the execution status.
	for _, id := range e.workflows {
		if err := r.cfg.Workflows.Trigger(ctx, id, e.path); err != nil {
			logger.Error("workflow failed", "workflow", id, "error", err)
		}
	}
	return nil
}

func (r *Runner) transferTree(ctx context.Context, e execution, tracker *ExecutionTracker, logger *slog.Logger) error {
	src, err := r.cfg.ResolveSource(ctx, e.source)
	if err != nil {
		return fmt.Errorf("failed to resolve source: %w", err)
	}

	if e.deleteBeforeWrite {
		if e.jobName == jobconfig.JobDeltaContent {
			logger.Warn("deleteBeforeWrite ignored for delta transfer")
		} else if err := r.cfg.Destination.RemoveAll(ctx, e.path); err != nil {
			return fmt.Errorf("failed to clear destination %s: %w", e.path, err)
		}
	}

	jobCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	t := &transferer{src: src, dst: r.cfg.Destination, buffers: r.buffers}
	jobChan := make(JobChannel, r.cfg.Workers*4)

	pool := NewWorkerPool(jobCtx, jobChan, func(ctx context.Context, job TransferJob) error {
		res, err := t.transfer(ctx, job)
		if err != nil {
			tracker.ItemFailed(err)
			cancel(err)
			return err
		}
		tracker.ItemDone(res.Bytes)
		tracker.PropertiesDropped(res.Dropped)
		r.cfg.Metrics.FileTransferred(e.jobName, res.Bytes)
		r.cfg.Metrics.PropertiesDropped(e.jobName, res.Dropped)
		logger.Debug("item transferred", "item", job.ID, "file", job.Path, "bytes", res.Bytes, "dropped", res.Dropped)
		return nil
	})
	pool.SetRateLimit(r.cfg.MaxItemsPerSecond)
	pool.SetWorkerCount(r.cfg.Workers)

	opts := []WalkerOption{WithExcludes(e.excludes...)}
	if !e.contentAfter.IsZero() {
		opts = append(opts, WithModifiedAfter(e.contentAfter))
	}
	walker := NewWalker(src, jobChan, opts...)

	emitted, walkErr := walker.Walk(jobCtx, e.path, tracker.Progress().ExecutionID)
	if walkErr != nil {
		cancel(walkErr)
	}
	close(jobChan)
	pool.Wait()

	logger.Debug("walk finished", "emitted", emitted)

	if err := tracker.Err(); err != nil {
		return err
	}
	if walkErr != nil && !errors.Is(walkErr, context.Canceled) {
		return walkErr
	}
	if err := jobCtx.Err(); err != nil && ctx.Err() == nil {
		return context.Cause(jobCtx)
	}
	return nil
}
