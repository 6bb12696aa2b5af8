package webhook

import (
	"maps"
	"time"
)

// Priority orders pending jobs. Higher priorities are processed first.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 2
	case PriorityLow:
		return 0
	default:
		return 1
	}
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

// Status is the lifecycle state of a webhook job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRetrying   Status = "retrying"
)

// DefaultMaxAttempts bounds delivery attempts per job.
const DefaultMaxAttempts = 5

// Job is a single received webhook awaiting processing.
type Job struct {
	ID          string            `json:"id"`
	Payload     []byte            `json:"payload"`
	Signature   string            `json:"signature,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Priority    Priority          `json:"priority"`
	Attempts    int               `json:"attempts"`
	MaxAttempts int               `json:"max_attempts"`
	Status      Status            `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	NextRetryAt *time.Time        `json:"next_retry_at,omitempty"`
	FailedAt    *time.Time        `json:"failed_at,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// Clone returns a deep copy safe to hand to other goroutines.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	cp.Payload = append([]byte(nil), j.Payload...)
	cp.Headers = maps.Clone(j.Headers)
	if j.NextRetryAt != nil {
		t := *j.NextRetryAt
		cp.NextRetryAt = &t
	}
	if j.FailedAt != nil {
		t := *j.FailedAt
		cp.FailedAt = &t
	}
	return &cp
}

// dueAt is the time the job becomes eligible for processing.
func (j *Job) dueAt() time.Time {
	if j.NextRetryAt != nil {
		return *j.NextRetryAt
	}
	return j.CreatedAt
}

func (j *Job) failedAt() time.Time {
	if j.FailedAt != nil {
		return *j.FailedAt
	}
	return j.CreatedAt
}

// Stats is a snapshot of processor state.
type Stats struct {
	Pending    int    `json:"pending"`
	Retrying   int    `json:"retrying"`
	Processing bool   `json:"processing"`
	Submitted  uint64 `json:"submitted"`
	Completed  uint64 `json:"completed"`
	Failed     uint64 `json:"failed"`
	Retried    uint64 `json:"retried"`
}
