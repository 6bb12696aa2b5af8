package ratelimit

import (
	"context"
	"errors"
	"time"
)

// FixedWindow enforces "at most limit calls per window" for arbitrary keys.
// Limits are supplied per call so one limiter can serve many features.
type FixedWindow struct {
	store Store
}

func NewFixedWindow(store Store) (*FixedWindow, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	return &FixedWindow{store: store}, nil
}

// Allow counts one call against key and reports whether it fits the limit.
// The call that exceeds the limit, and every call after it in the same
// window, is denied.
func (l *FixedWindow) Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	if err := validate(key, limit, window); err != nil {
		return nil, err
	}

	count, resetAt, err := l.store.IncrementAndGet(ctx, key, 1, window)
	if err != nil {
		return nil, errors.Join(ErrStore, err)
	}

	return &Result{
		Allowed:   count <= int64(limit),
		Limit:     limit,
		Remaining: max(limit-int(count), 0),
		ResetAt:   resetAt,
	}, nil
}

// Status reports the current window for key without counting a call.
func (l *FixedWindow) Status(ctx context.Context, key string, limit int) (*Result, error) {
	if key == "" {
		return nil, ErrKeyRequired
	}
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	count, resetAt, err := l.store.Get(ctx, key)
	if err != nil {
		return nil, errors.Join(ErrStore, err)
	}
	return &Result{
		Allowed:   count < int64(limit),
		Limit:     limit,
		Remaining: max(limit-int(count), 0),
		ResetAt:   resetAt,
	}, nil
}

// Reset drops the current window for key.
func (l *FixedWindow) Reset(ctx context.Context, key string) error {
	if key == "" {
		return ErrKeyRequired
	}
	if err := l.store.Delete(ctx, key); err != nil {
		return errors.Join(ErrStore, err)
	}
	return nil
}

func validate(key string, limit int, window time.Duration) error {
	switch {
	case key == "":
		return ErrKeyRequired
	case limit <= 0:
		return ErrInvalidLimit
	case window <= 0:
		return ErrInvalidInterval
	}
	return nil
}
