// Package lock keeps two invocations of the same trigger operation from
// overlapping across processes.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "callsched:lock:"

// ErrHeld means another invocation of the operation is still running.
var ErrHeld = errors.New("operation already running")

type Guard struct {
	locker *redislock.Client
	ttl    time.Duration
	log    *zap.Logger
}

// Dial connects to redis and returns a Guard. An empty addr returns a nil
// Guard, which never blocks.
func Dial(ctx context.Context, addr string, ttl time.Duration, log *zap.Logger) (*Guard, *redis.Client, error) {
	if addr == "" {
		return nil, nil, nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return New(rdb, ttl, log), rdb, nil
}

func New(rdb redislock.RedisClient, ttl time.Duration, log *zap.Logger) *Guard {
	return &Guard{locker: redislock.New(rdb), ttl: ttl, log: log.Named("lock")}
}

// Acquire takes the lock for op. The returned release func is always
// safe to call.
func (g *Guard) Acquire(ctx context.Context, op string) (func(), error) {
	if g == nil {
		return func() {}, nil
	}
	l, err := g.locker.Obtain(ctx, keyPrefix+op, g.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return func() {}, ErrHeld
	}
	if err != nil {
		return func() {}, fmt.Errorf("obtain lock %s: %w", op, err)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go g.keepAlive(l, op, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			// the caller's context may already be done
			if err := l.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				g.log.Warn("release lock", zap.String("op", op), zap.Error(err))
			}
		})
	}, nil
}

// keepAlive extends the lock every third of its TTL so long operations,
// such as a rate-limited PMS sync, never outlive it.
func (g *Guard) keepAlive(l *redislock.Lock, op string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	t := time.NewTicker(max(g.ttl/3, time.Millisecond))
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			if err := l.Refresh(context.Background(), g.ttl, nil); err != nil {
				g.log.Warn("refresh lock", zap.String("op", op), zap.Error(err))
				if errors.Is(err, redislock.ErrNotObtained) {
					return
				}
			}
		}
	}
}
