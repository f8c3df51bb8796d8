package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLockKey(t *testing.T) {
	assert.Equal(t, "processing:sentinel:scene_NDVI", lockKey("sentinel", "scene_NDVI"))
}

func TestLockTTLFollowsRequestTimeout(t *testing.T) {
	locker := NewLocker(nil, 300*time.Second)
	assert.Equal(t, 300*time.Second, locker.ttl)
}

func TestLockTTLDefaultsWhenUnset(t *testing.T) {
	locker := NewLocker(nil, 0)
	assert.Equal(t, defaultLockTTL, locker.ttl)

	locker = NewLocker(nil, -1*time.Second)
	assert.Equal(t, defaultLockTTL, locker.ttl)
}

func TestNilClientAlwaysAcquires(t *testing.T) {
	locker := NewLocker(nil, time.Minute)

	assert.True(t, locker.Acquire(context.Background(), "sentinel", "scene_NDVI"))
	// must not panic
	locker.Release(context.Background(), "sentinel", "scene_NDVI")
}
