package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/logging"
	"github.com/biosustain/lifelike-annotator/pkg/errors"
)

var (
	ErrLockNotAcquired = errors.New(errors.ErrCodeConflict, "annotation lock not acquired")
	ErrLockNotHeld     = errors.New(errors.ErrCodeConflict, "annotation lock not held by this owner")
)

// FileLock serializes annotation runs for a single document across worker
// instances. A lock is a plain SET NX key holding a random owner token; a
// background refresher keeps the key alive while the pipeline runs, so the
// TTL only has to cover a refresh interval rather than a worst-case run.
type FileLock struct {
	client       *Client
	fileHashID   string
	token        string
	ttl          time.Duration
	refreshEvery time.Duration
	logger       logging.Logger

	cancelRefresh context.CancelFunc
	refreshDone   chan struct{}
}

// LockOption adjusts FileLock timing.
type LockOption func(*FileLock)

// WithLockTTL sets how long the lock key lives without a refresh.
func WithLockTTL(ttl time.Duration) LockOption {
	return func(l *FileLock) { l.ttl = ttl }
}

// WithRefreshInterval sets how often the held lock is extended.
func WithRefreshInterval(interval time.Duration) LockOption {
	return func(l *FileLock) { l.refreshEvery = interval }
}

// NewFileLock builds a lock for one document. The zero-value timings give a
// 30s TTL refreshed every 10s, which rides out redis hiccups while still
// releasing abandoned locks quickly after a worker crash.
func NewFileLock(client *Client, fileHashID string, log logging.Logger, opts ...LockOption) *FileLock {
	l := &FileLock{
		client:       client,
		fileHashID:   fileHashID,
		token:        uuid.New().String(),
		ttl:          30 * time.Second,
		refreshEvery: 10 * time.Second,
		logger:       log.Named("file_lock"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

var unlockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

var extendScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("PEXPIRE", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

func (l *FileLock) key() string {
	return "lifelike:annotate-lock:" + l.fileHashID
}

// TryAcquire takes the lock if no other worker holds it. It does not block:
// a contended file means another worker is already annotating it, and the
// caller should let the message retry rather than wait.
func (l *FileLock) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := l.client.GetUnderlyingClient().SetNX(ctx, l.key(), l.token, l.ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeCacheError, "failed to acquire annotation lock")
	}
	if ok {
		l.startRefresher()
	}
	return ok, nil
}

// Release deletes the lock if this owner still holds it.
func (l *FileLock) Release(ctx context.Context) error {
	l.stopRefresher()
	res, err := unlockScript.Run(ctx, l.client.GetUnderlyingClient(), []string{l.key()}, l.token).Result()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to release annotation lock")
	}
	if res.(int64) == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// Extend pushes the expiry out by ttl if this owner still holds the lock.
func (l *FileLock) Extend(ctx context.Context, ttl time.Duration) (bool, error) {
	res, err := extendScript.Run(ctx, l.client.GetUnderlyingClient(), []string{l.key()}, l.token, ttl.Milliseconds()).Result()
	if err != nil {
		return false, err
	}
	return res.(int64) == 1, nil
}

// TTL reports the remaining lifetime of the lock key.
func (l *FileLock) TTL(ctx context.Context) (time.Duration, error) {
	return l.client.GetUnderlyingClient().PTTL(ctx, l.key()).Result()
}

func (l *FileLock) startRefresher() {
	ctx, cancel := context.WithCancel(context.Background())
	l.cancelRefresh = cancel
	l.refreshDone = make(chan struct{})

	go func() {
		defer close(l.refreshDone)
		ticker := time.NewTicker(l.refreshEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ok, err := l.Extend(ctx, l.ttl)
				if err != nil {
					l.logger.Error("failed to extend annotation lock",
						logging.String("file_hash_id", l.fileHashID), logging.Err(err))
					return
				}
				if !ok {
					l.logger.Warn("annotation lock lost",
						logging.String("file_hash_id", l.fileHashID))
					return
				}
			}
		}
	}()
}

func (l *FileLock) stopRefresher() {
	if l.cancelRefresh != nil {
		l.cancelRefresh()
		<-l.refreshDone
		l.cancelRefresh = nil
	}
}
