package webhook

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisJobStore keeps active jobs in a hash, their due times in a sorted set
// and permanently failed jobs in a separate hash indexed by failure time.
type RedisJobStore struct {
	client       redis.UniversalClient
	activeKey    string
	dueKey       string
	failedKey    string
	failedIdxKey string
	retention    int
}

// NewRedisJobStore namespaces all keys under prefix.
func NewRedisJobStore(client redis.UniversalClient, prefix string, opts ...StoreOption) *RedisJobStore {
	if prefix == "" {
		prefix = "billing:webhooks"
	}
	o := newStoreOptions(opts)
	return &RedisJobStore{
		client:       client,
		activeKey:    prefix + ":active",
		dueKey:       prefix + ":due",
		failedKey:    prefix + ":failed",
		failedIdxKey: prefix + ":failed_idx",
		retention:    o.failedRetention,
	}
}

func (s *RedisJobStore) Save(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return errors.Join(ErrJobStore, err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.activeKey, job.ID, data)
		pipe.ZAdd(ctx, s.dueKey, redis.Z{Score: float64(job.dueAt().UnixMilli()), Member: job.ID})
		return nil
	})
	if err != nil {
		return errors.Join(ErrJobStore, err)
	}
	return nil
}

func (s *RedisJobStore) Delete(ctx context.Context, id string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, s.activeKey, id)
		pipe.ZRem(ctx, s.dueKey, id)
		return nil
	})
	if err != nil {
		return errors.Join(ErrJobStore, err)
	}
	return nil
}

func (s *RedisJobStore) Archive(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return errors.Join(ErrJobStore, err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, s.activeKey, job.ID)
		pipe.ZRem(ctx, s.dueKey, job.ID)
		pipe.HSet(ctx, s.failedKey, job.ID, data)
		pipe.ZAdd(ctx, s.failedIdxKey, redis.Z{Score: float64(job.failedAt().UnixMilli()), Member: job.ID})
		return nil
	})
	if err != nil {
		return errors.Join(ErrJobStore, err)
	}
	return s.trimFailed(ctx)
}

// trimFailed drops the oldest archived jobs beyond the retention cap.
func (s *RedisJobStore) trimFailed(ctx context.Context) error {
	stale, err := s.client.ZRange(ctx, s.failedIdxKey, 0, int64(-s.retention-1)).Result()
	if err != nil {
		return errors.Join(ErrJobStore, err)
	}
	if len(stale) == 0 {
		return nil
	}
	members := make([]any, len(stale))
	for i, id := range stale {
		members[i] = id
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, s.failedKey, stale...)
		pipe.ZRem(ctx, s.failedIdxKey, members...)
		return nil
	})
	if err != nil {
		return errors.Join(ErrJobStore, err)
	}
	return nil
}

func (s *RedisJobStore) Active(ctx context.Context) ([]*Job, error) {
	ids, err := s.client.ZRange(ctx, s.dueKey, 0, -1).Result()
	if err != nil {
		return nil, errors.Join(ErrJobStore, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	values, err := s.client.HMGet(ctx, s.activeKey, ids...).Result()
	if err != nil {
		return nil, errors.Join(ErrJobStore, err)
	}

	jobs := make([]*Job, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			// due entry without a body: a concurrent delete
			continue
		}
		var job Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			return nil, errors.Join(ErrJobStore, err)
		}
		jobs = append(jobs, &job)
	}
	return jobs, nil
}

func (s *RedisJobStore) Failed(ctx context.Context) ([]*Job, error) {
	values, err := s.client.HGetAll(ctx, s.failedKey).Result()
	if err != nil {
		return nil, errors.Join(ErrJobStore, err)
	}

	jobs := make([]*Job, 0, len(values))
	for _, raw := range values {
		var job Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			return nil, errors.Join(ErrJobStore, err)
		}
		jobs = append(jobs, &job)
	}
	sortFailed(jobs)
	return jobs, nil
}

func (s *RedisJobStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.activeKey, s.dueKey).Err(); err != nil {
		return errors.Join(ErrJobStore, err)
	}
	return nil
}
