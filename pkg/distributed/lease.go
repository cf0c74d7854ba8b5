package distributed

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Lease keeps a RedisLock alive in the background. The matchmaking queue lives
// in process memory, so only the instance holding the lease may serve it.
type Lease struct {
	lock     *RedisLock
	logger   *zap.Logger
	renew    time.Duration
	renewed  time.Time
	lost     chan struct{}
	stopChan chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// AcquireLease takes key for ttl and renews it every ttl/3 until Release. While
// another owner holds the key it keeps retrying for up to wait.
func AcquireLease(ctx context.Context, m *RedisLockManager, key string, ttl, wait time.Duration, logger *zap.Logger) (*Lease, error) {
	interval := ttl / 3
	retries := 1
	if wait > 0 && interval > 0 {
		retries += int(wait / interval)
	}

	lock, err := m.TryLockWithRetry(ctx, key, uuid.NewString(), ttl, retries, interval)
	if err != nil {
		return nil, err
	}

	l := &Lease{
		lock:     lock,
		logger:   logger,
		renew:    ttl / 3,
		renewed:  time.Now(),
		lost:     make(chan struct{}),
		stopChan: make(chan struct{}),
	}

	l.wg.Add(1)
	go l.renewLoop(ttl)

	logger.Info("Lease acquired", zap.String("key", key), zap.Duration("ttl", ttl))
	return l, nil
}

// Lost is closed when the lease could not be renewed.
func (l *Lease) Lost() <-chan struct{} {
	return l.lost
}

func (l *Lease) renewLoop(ttl time.Duration) {
	defer l.wg.Done()

	ticker := time.NewTicker(l.renew)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.renew)
			err := l.lock.Extend(ctx, ttl)
			cancel()

			if errors.Is(err, ErrLockNotHeld) {
				l.logger.Error("Lease lost", zap.String("key", l.lock.Key()))
				close(l.lost)
				return
			}
			if err == nil {
				l.renewed = time.Now()
				continue
			}

			// past the ttl the key may already belong to another instance
			if since := time.Since(l.renewed); since >= ttl {
				l.logger.Error("Lease expired without renewal",
					zap.String("key", l.lock.Key()),
					zap.Duration("sinceRenewed", since),
					zap.Error(err))
				close(l.lost)
				return
			}
			l.logger.Warn("Failed to renew lease", zap.String("key", l.lock.Key()), zap.Error(err))
		case <-l.stopChan:
			return
		}
	}
}

// Release stops renewal and deletes the key if still owned.
func (l *Lease) Release(ctx context.Context) error {
	var err error
	l.once.Do(func() {
		close(l.stopChan)
		l.wg.Wait()
		err = l.lock.Release(ctx)
	})
	return err
}
