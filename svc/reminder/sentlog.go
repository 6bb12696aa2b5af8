package reminder

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SentLog remembers which subscriptions were already notified on a day.
type SentLog interface {
	// Mark records the key and reports false if it was already present.
	Mark(ctx context.Context, key string) (bool, error)
	// Forget drops a key so a failed delivery can be attempted again.
	Forget(ctx context.Context, key string) error
}

// sentKey is per subscription per UTC day, independent of the notice kind.
func sentKey(id uuid.UUID, now time.Time) string {
	return id.String() + ":" + now.UTC().Format(time.DateOnly)
}

const sentTTL = 48 * time.Hour

// MemorySentLog is a process-local SentLog. Entries older than two days are
// pruned on write.
type MemorySentLog struct {
	mu   sync.Mutex
	keys map[string]time.Time
	now  func() time.Time
}

func NewMemorySentLog() *MemorySentLog {
	return &MemorySentLog{keys: make(map[string]time.Time), now: time.Now}
}

func (l *MemorySentLog) Mark(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k, at := range l.keys {
		if now.Sub(at) > sentTTL {
			delete(l.keys, k)
		}
	}
	if _, ok := l.keys[key]; ok {
		return false, nil
	}
	l.keys[key] = now
	return true, nil
}

func (l *MemorySentLog) Forget(_ context.Context, key string) error {
	l.mu.Lock()
	delete(l.keys, key)
	l.mu.Unlock()
	return nil
}

// RedisSentLog shares the log between instances using SETNX with a TTL.
type RedisSentLog struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisSentLog(client redis.UniversalClient, prefix string) *RedisSentLog {
	if prefix == "" {
		prefix = "billing:reminders"
	}
	return &RedisSentLog{client: client, prefix: prefix}
}

func (l *RedisSentLog) Mark(ctx context.Context, key string) (bool, error) {
	return l.client.SetNX(ctx, l.prefix+":"+key, 1, sentTTL).Result()
}

func (l *RedisSentLog) Forget(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.prefix+":"+key).Err()
}
