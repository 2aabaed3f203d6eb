package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"hikfetch/internal/logging"
	"hikfetch/internal/retrieval"
	"hikfetch/internal/services"
)

const (
	defaultPollInterval = time.Second
	defaultStopTimeout  = 5 * time.Second
)

// ErrStopTimeout is returned by Stop when the dispatch loop does not exit in time.
var ErrStopTimeout = errors.New("dispatch loop did not stop in time")

// Runner executes one retrieval. *retrieval.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, req retrieval.Request, tracker retrieval.Tracker) retrieval.Result
}

// Notifier is told about jobs the runner finished as completed or failed.
type Notifier interface {
	JobFinished(ctx context.Context, snap Snapshot) error
}

// Options configures an Orchestrator.
type Options struct {
	Runner       Runner
	Notifier     Notifier
	PollInterval time.Duration
	StopTimeout  time.Duration
	Logger       *slog.Logger
}

// Orchestrator owns the job registry and dispatches jobs to the runner.
type Orchestrator struct {
	runner       Runner
	notifier     Notifier
	logger       *slog.Logger
	pollInterval time.Duration
	stopTimeout  time.Duration
	now          func() time.Time

	mu   sync.RWMutex
	jobs map[string]*Job

	queueMu sync.Mutex
	queue   []string
	wake    chan struct{}

	// gate admits one execution at a time to the device.
	gate chan struct{}

	runMu   sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	executions sync.WaitGroup
}

// NewOrchestrator constructs an orchestrator. Call Start to begin dispatching.
func NewOrchestrator(opts Options) *Orchestrator {
	o := &Orchestrator{
		runner:       opts.Runner,
		notifier:     opts.Notifier,
		logger:       logging.NewComponentLogger(opts.Logger, "jobs"),
		pollInterval: opts.PollInterval,
		stopTimeout:  opts.StopTimeout,
		now:          time.Now,
		jobs:         make(map[string]*Job),
		wake:         make(chan struct{}, 1),
		gate:         make(chan struct{}, 1),
	}
	if o.pollInterval <= 0 {
		o.pollInterval = defaultPollInterval
	}
	if o.stopTimeout <= 0 {
		o.stopTimeout = defaultStopTimeout
	}
	return o
}

// Submit registers a pending job and queues it for dispatch. It never blocks
// on execution and performs no validation.
func (o *Orchestrator) Submit(params Params) Snapshot {
	job := newJob(params, o.now())

	o.mu.Lock()
	o.jobs[job.id] = job
	o.mu.Unlock()

	o.queueMu.Lock()
	o.queue = append(o.queue, job.id)
	o.queueMu.Unlock()
	select {
	case o.wake <- struct{}{}:
	default:
	}

	o.logger.Info("job submitted",
		logging.String(logging.FieldJobID, job.id),
		logging.String(logging.FieldDisplayCode, job.displayCode),
		logging.String("start", job.params.Start),
		logging.String("end", job.params.End),
		logging.Int("channel", job.params.Channel),
	)
	return job.Snapshot()
}

// Get returns a snapshot of the job with the given id.
func (o *Orchestrator) Get(id string) (Snapshot, bool) {
	job := o.lookup(id)
	if job == nil {
		return Snapshot{}, false
	}
	return job.Snapshot(), true
}

// List returns snapshots of every job, oldest first.
func (o *Orchestrator) List() []Snapshot {
	o.mu.RLock()
	jobs := make([]*Job, 0, len(o.jobs))
	for _, job := range o.jobs {
		jobs = append(jobs, job)
	}
	o.mu.RUnlock()

	snapshots := make([]Snapshot, 0, len(jobs))
	for _, job := range jobs {
		snapshots = append(snapshots, job.Snapshot())
	}
	sort.SliceStable(snapshots, func(i, k int) bool {
		return snapshots[i].CreatedAt.Before(snapshots[k].CreatedAt)
	})
	return snapshots
}

// Counts returns the number of jobs in each state.
func (o *Orchestrator) Counts() map[State]int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	counts := make(map[State]int)
	for _, job := range o.jobs {
		counts[job.State()]++
	}
	return counts
}

// Cancel raises the job's cancellation flag and, when the job has not
// finished, moves it to cancelled right away. It reports whether the job exists.
func (o *Orchestrator) Cancel(id string) bool {
	job := o.lookup(id)
	if job == nil {
		return false
	}
	job.requestCancel()
	if job.markCancelled(o.now()) {
		o.logger.Info("job cancelled",
			logging.String(logging.FieldJobID, job.id),
			logging.String(logging.FieldDisplayCode, job.displayCode),
		)
	}
	return true
}

// Running reports whether the dispatch loop is active.
func (o *Orchestrator) Running() bool {
	o.runMu.Lock()
	defer o.runMu.Unlock()
	return o.running
}

// Start launches the dispatch loop.
func (o *Orchestrator) Start(ctx context.Context) error {
	if o.runner == nil {
		return services.Wrap(services.ErrConfiguration, "jobs", "start", "no runner configured", nil)
	}
	o.runMu.Lock()
	defer o.runMu.Unlock()
	if o.running {
		return errors.New("dispatch loop already running")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.done = make(chan struct{})
	o.running = true
	go o.dispatchLoop(loopCtx, o.done)
	return nil
}

// Stop ends the dispatch loop and waits up to the stop timeout for it to
// exit. Executions already spawned keep running.
func (o *Orchestrator) Stop() error {
	o.runMu.Lock()
	if !o.running {
		o.runMu.Unlock()
		return nil
	}
	cancel, done := o.cancel, o.done
	o.running = false
	o.cancel = nil
	o.runMu.Unlock()

	cancel()
	select {
	case <-done:
		return nil
	case <-time.After(o.stopTimeout):
		o.logger.Warn("dispatch loop did not stop in time",
			logging.Duration("stop_timeout", o.stopTimeout),
			logging.String(logging.FieldEventType, "dispatch_stop_timeout"),
		)
		return ErrStopTimeout
	}
}

// Wait blocks until every spawned execution has returned.
func (o *Orchestrator) Wait() {
	o.executions.Wait()
}

func (o *Orchestrator) lookup(id string) *Job {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.jobs[id]
}

func (o *Orchestrator) dispatchLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		id, ok := o.next(ctx)
		if ctx.Err() != nil {
			return
		}
		if !ok {
			continue
		}
		o.dispatch(ctx, id)
	}
}

// next pops the oldest queued id, waiting up to the poll interval for one.
func (o *Orchestrator) next(ctx context.Context) (string, bool) {
	if id, ok := o.pop(); ok {
		return id, true
	}
	timer := time.NewTimer(o.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return "", false
	case <-o.wake:
	case <-timer.C:
	}
	return o.pop()
}

func (o *Orchestrator) pop() (string, bool) {
	o.queueMu.Lock()
	defer o.queueMu.Unlock()
	if len(o.queue) == 0 {
		return "", false
	}
	id := o.queue[0]
	o.queue[0] = ""
	o.queue = o.queue[1:]
	return id, true
}

func (o *Orchestrator) dispatch(ctx context.Context, id string) {
	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(o.logger, "dispatch failed", "dispatch_panic",
				logging.String(logging.FieldJobID, id),
				logging.String("panic", fmt.Sprint(r)),
			)
		}
	}()

	job := o.lookup(id)
	if job == nil {
		return
	}
	if job.Cancelled() {
		job.markCancelled(o.now())
		o.logger.Info("skipping job cancelled while queued",
			logging.String(logging.FieldJobID, job.id),
			logging.String(logging.FieldDisplayCode, job.displayCode),
		)
		return
	}

	execCtx := services.WithDisplayCode(services.WithJobID(context.WithoutCancel(ctx), job.id), job.displayCode)
	o.executions.Add(1)
	go o.execute(execCtx, job)
}

func (o *Orchestrator) execute(ctx context.Context, job *Job) {
	defer o.executions.Done()
	logger := logging.WithContext(ctx, o.logger)
	defer func() {
		if r := recover(); r != nil {
			message := fmt.Sprintf("job execution error: %v", r)
			logging.ErrorWithContext(logger, "job execution panicked", "job_panic",
				logging.String("panic", fmt.Sprint(r)),
				logging.String("stack", string(debug.Stack())),
			)
			job.fail(message, o.now())
		}
	}()

	select {
	case o.gate <- struct{}{}:
	case <-job.cancelSignal():
		job.markCancelled(o.now())
		return
	}
	if o.run(ctx, job, logger) {
		o.notify(ctx, job, logger)
	}
}

// run executes the job while holding the device gate. It reports whether the
// job ended completed or failed.
func (o *Orchestrator) run(ctx context.Context, job *Job, logger *slog.Logger) bool {
	defer func() { <-o.gate }()

	if job.Cancelled() {
		job.markCancelled(o.now())
		return false
	}
	if !job.markRunning(o.now()) {
		return false
	}
	logger.Info("job started")

	result := o.runner.Run(ctx, job.request(), job)
	now := o.now()
	switch {
	case result.Status == retrieval.StatusCancelled || job.Cancelled():
		job.markCancelled(now)
		logger.Info("job cancelled during retrieval")
		return false
	case result.Status == retrieval.StatusSuccess:
		if !job.complete(Result{Status: string(retrieval.StatusSuccess), Files: result.Files}, now) {
			return false
		}
		logger.Info("job completed", logging.Int("files", result.Files))
		return true
	default:
		message := result.Message
		if message == "" {
			message = "retrieval failed"
		}
		if !job.fail(message, now) {
			return false
		}
		logging.WarnWithContext(logger, "job failed", "job_failed",
			logging.String("error_message", message),
			logging.String(logging.FieldImpact, "no further files will be retrieved for this job"),
			logging.String(logging.FieldErrorHint, "review the job error and resubmit"),
		)
		return true
	}
}

func (o *Orchestrator) notify(ctx context.Context, job *Job, logger *slog.Logger) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.JobFinished(ctx, job.Snapshot()); err != nil {
		logging.WarnWithContext(logger, "job notification failed", "notification_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "the job outcome was not announced"),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and network access"),
		)
	}
}
