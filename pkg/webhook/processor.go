package webhook

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/practicebilling/pkg/apperr"
	"github.com/dmitrymomot/practicebilling/pkg/logger"
)

// Handler processes a single webhook job. Errors are classified with
// apperr.IsRetryable to decide between retry and permanent failure.
type Handler interface {
	HandleJob(ctx context.Context, job *Job) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job *Job) error

func (f HandlerFunc) HandleJob(ctx context.Context, job *Job) error {
	return f(ctx, job)
}

// Processor is a single-worker webhook queue with persisted retry schedule.
//
// The worker goroutine is started on demand by Submit or Recover and exits
// once both the pending set and the retry list are empty.
type Processor struct {
	handler     Handler
	store       JobStore
	backoff     BackoffStrategy
	maxAttempts int
	idlePoll    time.Duration
	logger      *slog.Logger
	metrics     *Metrics
	now         func() time.Time
	onFailed    FailureHook
	onRetry     RetryHook

	mu         sync.Mutex
	pending    map[string]*Job
	retries    []*Job
	processing bool
	inflight   string
	generation uint64
	stopped    bool
	stats      Stats

	wake   chan struct{}
	quit   chan struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewProcessor panics on a nil handler.
func NewProcessor(handler Handler, opts ...ProcessorOption) *Processor {
	if handler == nil {
		panic(ErrNilHandler)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Processor{
		handler:     handler,
		store:       NewMemoryJobStore(),
		backoff:     DefaultBackoff(),
		maxAttempts: DefaultMaxAttempts,
		idlePoll:    time.Second,
		logger:      slog.Default(),
		now:         time.Now,
		pending:     make(map[string]*Job),
		wake:        make(chan struct{}, 1),
		quit:        make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = NewMetrics(nil)
	}
	p.logger = p.logger.With(logger.Component("webhook_processor"))
	return p
}

// Submit persists a new job and hands it to the worker.
func (p *Processor) Submit(ctx context.Context, payload []byte, signature string, headers map[string]string, priority Priority) (*Job, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}
	if !priority.Valid() {
		priority = PriorityNormal
	}

	job := &Job{
		ID:          uuid.NewString(),
		Payload:     append([]byte(nil), payload...),
		Signature:   signature,
		Headers:     headers,
		Priority:    priority,
		MaxAttempts: p.maxAttempts,
		Status:      StatusPending,
		CreatedAt:   p.now(),
	}

	// Saved under the lock so Recover never sees a job that is persisted
	// but not yet queued.
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil, ErrProcessorStopped
	}
	if err := p.store.Save(ctx, job); err != nil {
		p.mu.Unlock()
		return nil, apperr.Database("failed to persist webhook job", err)
	}

	submitted := job.Clone()

	p.pending[job.ID] = job
	p.stats.Submitted++
	p.updateDepthLocked()
	p.startLocked()
	p.mu.Unlock()

	p.metrics.submitted.WithLabelValues(string(priority)).Inc()
	p.signal()

	p.logger.DebugContext(ctx, "webhook job submitted",
		logger.JobID(job.ID),
		slog.String("priority", string(priority)),
	)

	return submitted, nil
}

// Recover reloads active jobs from the store after a restart. Jobs that were
// mid-flight when the process died are retried as pending.
//
// The store is read under the queue lock: the worker releases the in-flight
// job only under that lock, after its store state is final.
func (p *Processor) Recover(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return 0, ErrProcessorStopped
	}

	jobs, err := p.store.Active(ctx)
	if err != nil {
		return 0, apperr.Database("failed to load webhook jobs", err)
	}

	known := make(map[string]struct{}, len(p.pending)+len(p.retries)+1)
	if p.inflight != "" {
		known[p.inflight] = struct{}{}
	}
	for id := range p.pending {
		known[id] = struct{}{}
	}
	for _, j := range p.retries {
		known[j.ID] = struct{}{}
	}

	recovered := 0
	for _, job := range jobs {
		if _, ok := known[job.ID]; ok {
			continue
		}
		if job.Status == StatusRetrying && job.NextRetryAt != nil {
			p.retries = append(p.retries, job)
		} else {
			job.Status = StatusPending
			job.NextRetryAt = nil
			p.pending[job.ID] = job
		}
		recovered++
	}

	if recovered > 0 {
		p.updateDepthLocked()
		p.startLocked()
		p.signalLocked()
		p.logger.InfoContext(ctx, "webhook jobs recovered", slog.Int("count", recovered))
	}
	return recovered, nil
}

// Clear drops all queued jobs. A job already being processed completes, but
// is not re-queued if it fails.
func (p *Processor) Clear(ctx context.Context) (int, error) {
	p.mu.Lock()
	dropped := len(p.pending) + len(p.retries)
	p.generation++
	p.pending = make(map[string]*Job)
	p.retries = nil
	p.updateDepthLocked()
	p.mu.Unlock()

	if err := p.store.Clear(ctx); err != nil {
		return dropped, apperr.Database("failed to clear webhook jobs", err)
	}

	p.logger.WarnContext(ctx, "webhook queue cleared", slog.Int("dropped", dropped))
	return dropped, nil
}

// Stats returns a snapshot of queue counters.
func (p *Processor) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.stats
	s.Pending = len(p.pending)
	s.Retrying = len(p.retries)
	s.Processing = p.processing
	return s
}

// Failed lists permanently failed jobs for operator review.
func (p *Processor) Failed(ctx context.Context) ([]*Job, error) {
	jobs, err := p.store.Failed(ctx)
	if err != nil {
		return nil, apperr.Database("failed to list failed webhook jobs", err)
	}
	return jobs, nil
}

// Stop prevents new submissions and waits for the in-flight job. If ctx
// expires first, the handler context is cancelled and ctx.Err is returned.
// Queued jobs stay in the store for Recover.
func (p *Processor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.quit)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		return ctx.Err()
	}
}

// Run returns a function suitable for errgroup: it recovers persisted jobs,
// then blocks until ctx is done and stops the processor.
func (p *Processor) Run(ctx context.Context) func() error {
	return func() error {
		if _, err := p.Recover(ctx); err != nil {
			p.logger.ErrorContext(ctx, "webhook job recovery failed", logger.Error(err))
		}
		<-ctx.Done()

		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return p.Stop(stopCtx)
	}
}

func (p *Processor) startLocked() {
	if p.processing || p.stopped {
		return
	}
	p.processing = true
	p.wg.Add(1)
	go p.run()
}

func (p *Processor) signal() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signalLocked()
}

func (p *Processor) signalLocked() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Processor) updateDepthLocked() {
	p.metrics.queueDepth.Set(float64(len(p.pending) + len(p.retries)))
}

func (p *Processor) run() {
	defer p.wg.Done()

	for {
		job, gen, wait, ok := p.next()
		if !ok {
			return
		}
		if job != nil {
			p.process(job, gen)
			p.mu.Lock()
			p.inflight = ""
			p.mu.Unlock()
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-p.wake:
		case <-timer.C:
		case <-p.quit:
		}
		timer.Stop()
	}
}

// next picks the due retry with the earliest due time, then the pending job
// with the highest priority and oldest creation time. When only future
// retries remain it returns the time to sleep. ok is false when the worker
// should exit.
func (p *Processor) next() (job *Job, gen uint64, wait time.Duration, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped || (len(p.pending) == 0 && len(p.retries) == 0) {
		p.processing = false
		return nil, 0, 0, false
	}

	now := p.now()
	gen = p.generation

	due := -1
	for i, r := range p.retries {
		if r.NextRetryAt.After(now) {
			continue
		}
		if due < 0 || r.NextRetryAt.Before(*p.retries[due].NextRetryAt) {
			due = i
		}
	}
	if due >= 0 {
		job = p.retries[due]
		p.retries = append(p.retries[:due], p.retries[due+1:]...)
		p.inflight = job.ID
		p.updateDepthLocked()
		return job, gen, 0, true
	}

	for _, j := range p.pending {
		if job == nil ||
			j.Priority.rank() > job.Priority.rank() ||
			(j.Priority.rank() == job.Priority.rank() && j.CreatedAt.Before(job.CreatedAt)) {
			job = j
		}
	}
	if job != nil {
		delete(p.pending, job.ID)
		p.inflight = job.ID
		p.updateDepthLocked()
		return job, gen, 0, true
	}

	earliest := *p.retries[0].NextRetryAt
	for _, r := range p.retries[1:] {
		if r.NextRetryAt.Before(earliest) {
			earliest = *r.NextRetryAt
		}
	}
	wait = min(earliest.Sub(now), p.idlePoll)
	if wait < 0 {
		wait = 0
	}
	return nil, gen, wait, true
}

func (p *Processor) process(job *Job, gen uint64) {
	ctx := p.ctx
	log := p.logger.With(
		logger.JobID(job.ID),
		slog.String("priority", string(job.Priority)),
	)

	job.Attempts++
	job.Status = StatusProcessing
	job.NextRetryAt = nil
	if err := p.store.Save(ctx, job); err != nil {
		log.WarnContext(ctx, "failed to persist webhook job state", logger.Error(err))
	}

	start := time.Now()
	err := p.handler.HandleJob(ctx, job)
	elapsed := time.Since(start)
	p.metrics.duration.WithLabelValues(string(job.Priority)).Observe(elapsed.Seconds())

	if err == nil {
		job.Status = StatusCompleted
		job.Error = ""
		if derr := p.store.Delete(ctx, job.ID); derr != nil {
			log.WarnContext(ctx, "failed to remove completed webhook job", logger.Error(derr))
		}
		p.mu.Lock()
		p.stats.Completed++
		p.mu.Unlock()
		p.metrics.completed.WithLabelValues(string(job.Priority)).Inc()
		log.InfoContext(ctx, "webhook job completed",
			logger.Attempt(job.Attempts),
			logger.Duration(elapsed),
		)
		return
	}

	job.Error = err.Error()

	if !apperr.IsRetryable(err) || job.Attempts >= job.MaxAttempts {
		p.fail(ctx, log, job, err)
		return
	}

	delay := p.backoff.NextInterval(job.Attempts)
	nextAt := p.now().Add(delay)
	job.Status = StatusRetrying
	job.NextRetryAt = &nextAt

	if serr := p.store.Save(ctx, job); serr != nil {
		log.WarnContext(ctx, "failed to persist webhook retry", logger.Error(serr))
	}

	p.mu.Lock()
	cleared := gen != p.generation
	if !cleared {
		p.retries = append(p.retries, job)
		p.stats.Retried++
		p.updateDepthLocked()
	}
	p.mu.Unlock()

	if cleared {
		if derr := p.store.Delete(ctx, job.ID); derr != nil {
			log.WarnContext(ctx, "failed to drop cleared webhook job", logger.Error(derr))
		}
		log.InfoContext(ctx, "webhook job dropped after queue clear", logger.Error(err))
		return
	}

	p.metrics.retried.WithLabelValues(string(job.Priority)).Inc()
	log.WarnContext(ctx, "webhook job scheduled for retry",
		logger.Attempt(job.Attempts),
		slog.Duration("delay", delay),
		logger.Error(err),
	)
	if p.onRetry != nil {
		p.onRetry(job.Clone(), delay, err)
	}
}

func (p *Processor) fail(ctx context.Context, log *slog.Logger, job *Job, err error) {
	failedAt := p.now()
	job.Status = StatusFailed
	job.FailedAt = &failedAt

	if aerr := p.store.Archive(ctx, job); aerr != nil {
		log.ErrorContext(ctx, "failed to archive webhook job", logger.Error(aerr))
	}

	p.mu.Lock()
	p.stats.Failed++
	p.mu.Unlock()
	p.metrics.failed.WithLabelValues(string(job.Priority)).Inc()

	reason := "max attempts reached"
	if !apperr.IsRetryable(err) {
		reason = "non-retryable error"
	}
	log.ErrorContext(ctx, "webhook job failed permanently",
		logger.Attempt(job.Attempts),
		slog.Int("max_attempts", job.MaxAttempts),
		slog.String("reason", reason),
		slog.String("code", apperr.Code(err)),
		slog.Int("payload_bytes", len(job.Payload)),
		logger.Error(err),
	)

	if p.onFailed != nil {
		p.onFailed(job.Clone(), err)
	}
}
