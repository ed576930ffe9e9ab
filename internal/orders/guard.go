package orders

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LocalGuard tracks in-flight submissions inside this process.
type LocalGuard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewLocalGuard() *LocalGuard {
	return &LocalGuard{inFlight: make(map[string]struct{})}
}

func (g *LocalGuard) TryAcquire(ctx context.Context, key string) (func(), bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.inFlight[key]; busy {
		return nil, false, nil
	}
	g.inFlight[key] = struct{}{}

	var once sync.Once
	release := func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.inFlight, key)
			g.mu.Unlock()
		})
	}
	return release, true, nil
}

type locker interface {
	AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, token string) (bool, error)
	OrderLockKey(cartID string) string
}

// RedisGuard shares the in-flight marker across instances. The TTL bounds how
// long a crashed instance can block a cart.
type RedisGuard struct {
	locks locker
	ttl   time.Duration
}

func NewRedisGuard(locks locker, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisGuard{locks: locks, ttl: ttl}
}

func (g *RedisGuard) TryAcquire(ctx context.Context, key string) (func(), bool, error) {
	lockKey := g.locks.OrderLockKey(key)
	token := uuid.NewString()

	ok, err := g.locks.AcquireLock(ctx, lockKey, token, g.ttl)
	if err != nil || !ok {
		return nil, false, err
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			_, _ = g.locks.ReleaseLock(releaseCtx, lockKey, token)
		})
	}
	return release, true, nil
}
