package webhook

import (
	"context"
	"slices"
	"sync"
)

// DefaultFailedRetention bounds the archive of permanently failed jobs.
const DefaultFailedRetention = 1000

type storeOptions struct {
	failedRetention int
}

// StoreOption configures a JobStore implementation.
type StoreOption func(*storeOptions)

// WithFailedRetention keeps at most n archived jobs, dropping the oldest
// failures first. n <= 0 keeps the default.
func WithFailedRetention(n int) StoreOption {
	return func(o *storeOptions) {
		if n > 0 {
			o.failedRetention = n
		}
	}
}

func newStoreOptions(opts []StoreOption) storeOptions {
	o := storeOptions{failedRetention: DefaultFailedRetention}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// JobStore persists jobs so that queued and retrying work survives a restart.
// Due times live in the store; the processor keeps no per-job timers.
type JobStore interface {
	// Save inserts or replaces an active (pending, processing, retrying) job.
	Save(ctx context.Context, job *Job) error
	// Delete removes an active job.
	Delete(ctx context.Context, id string) error
	// Archive moves a permanently failed job out of the active set.
	Archive(ctx context.Context, job *Job) error
	// Active returns all active jobs ordered by due time.
	Active(ctx context.Context) ([]*Job, error)
	// Failed returns archived jobs, most recent failure first. The archive is
	// capped; the oldest failures are dropped first.
	Failed(ctx context.Context) ([]*Job, error)
	// Clear drops every active job. Archived jobs are kept.
	Clear(ctx context.Context) error
}

// MemoryJobStore is a process-local JobStore.
type MemoryJobStore struct {
	mu        sync.RWMutex
	active    map[string]*Job
	failed    map[string]*Job
	retention int
}

func NewMemoryJobStore(opts ...StoreOption) *MemoryJobStore {
	o := newStoreOptions(opts)
	return &MemoryJobStore{
		active:    make(map[string]*Job),
		failed:    make(map[string]*Job),
		retention: o.failedRetention,
	}
}

func (s *MemoryJobStore) Save(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[job.ID] = job.Clone()
	return nil
}

func (s *MemoryJobStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, id)
	return nil
}

func (s *MemoryJobStore) Archive(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, job.ID)
	s.failed[job.ID] = job.Clone()

	if over := len(s.failed) - s.retention; over > 0 {
		jobs := make([]*Job, 0, len(s.failed))
		for _, j := range s.failed {
			jobs = append(jobs, j)
		}
		sortFailed(jobs)
		for _, j := range jobs[len(jobs)-over:] {
			delete(s.failed, j.ID)
		}
	}
	return nil
}

func (s *MemoryJobStore) Active(_ context.Context) ([]*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]*Job, 0, len(s.active))
	for _, j := range s.active {
		jobs = append(jobs, j.Clone())
	}
	slices.SortFunc(jobs, func(a, b *Job) int {
		return a.dueAt().Compare(b.dueAt())
	})
	return jobs, nil
}

func (s *MemoryJobStore) Failed(_ context.Context) ([]*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]*Job, 0, len(s.failed))
	for _, j := range s.failed {
		jobs = append(jobs, j.Clone())
	}
	sortFailed(jobs)
	return jobs, nil
}

func (s *MemoryJobStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.active)
	return nil
}

func sortFailed(jobs []*Job) {
	slices.SortFunc(jobs, func(a, b *Job) int {
		return b.failedAt().Compare(a.failedAt())
	})
}
