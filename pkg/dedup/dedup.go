// Package dedup holds short-lived Redis locks so a derived layer is only
// processed by one request at a time.
package dedup

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

const defaultLockTTL = 300 * time.Second

type Locker struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewLocker wraps a redis client. The TTL bounds how long a crashed job can
// block its derived layer and should match the request timeout. A nil client
// disables locking, which keeps the service usable when Redis is down at the
// cost of duplicate work.
func NewLocker(rdb *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &Locker{rdb: rdb, ttl: ttl}
}

func lockKey(workspace, layerName string) string {
	return "processing:" + workspace + ":" + layerName
}

// Acquire takes the lock for a derived layer. Returns false when another job
// already holds it.
func (l *Locker) Acquire(ctx context.Context, workspace, layerName string) bool {
	if l.rdb == nil {
		return true
	}

	ok, err := l.rdb.SetNX(ctx, lockKey(workspace, layerName), 1, l.ttl).Result()
	if err != nil {
		log.WithError(err).Warn("Redis lock acquire failed, proceeding without lock")
		return true
	}
	return ok
}

// Release drops the lock once a job reaches a terminal state.
func (l *Locker) Release(ctx context.Context, workspace, layerName string) {
	if l.rdb == nil {
		return
	}

	if err := l.rdb.Del(ctx, lockKey(workspace, layerName)).Err(); err != nil {
		log.WithError(err).Warn("Redis lock release failed")
	}
}
