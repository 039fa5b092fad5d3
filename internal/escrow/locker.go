package escrow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cosmossdk.io/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"SlaEscrow/internal/model"
)

// Locker serializes operations on one agreement.
type Locker interface {
	Lock(ctx context.Context, id uuid.UUID) (unlock func(), err error)
}

// MemoryLocker is an in-process keyed mutex. Waiters block until the
// holder releases or their context ends.
type MemoryLocker struct {
	mu    sync.Mutex
	slots map[uuid.UUID]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewMemoryLocker returns an empty locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{slots: make(map[uuid.UUID]*slot)}
}

func (l *MemoryLocker) Lock(ctx context.Context, id uuid.UUID) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[id]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[id] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
		return func() {
			<-s.ch
			l.release(id, s)
		}, nil
	case <-ctx.Done():
		l.release(id, s)
		return nil, fmt.Errorf("lock agreement %s: %w", id, ctx.Err())
	}
}

func (l *MemoryLocker) release(id uuid.UUID, s *slot) {
	l.mu.Lock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, id)
	}
	l.mu.Unlock()
}

// unlockScript deletes the lock only if it still carries our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker holds agreement locks in Redis so several daemons can share
// one store. A held lock rejects other callers with ErrAgreementBusy.
type RedisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
	logger log.Logger
}

// NewRedisLocker creates a locker whose locks expire after ttl.
func NewRedisLocker(client redis.UniversalClient, ttl time.Duration, logger log.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{
		client: client,
		ttl:    ttl,
		prefix: "slaescrow:lock:",
		logger: logger.With("module", "locker"),
	}
}

func (l *RedisLocker) Lock(ctx context.Context, id uuid.UUID) (func(), error) {
	key := l.prefix + id.String()
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lock %s: %w", key, err)
	}
	if !ok {
		return nil, model.ErrAgreementBusy.Wrap(id.String())
	}
	return func() { l.release(ctx, key, token) }, nil
}

// release deletes key if it still holds token. A lock left behind expires
// after the TTL, so failures are only logged.
func (l *RedisLocker) release(ctx context.Context, key, token string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	n, err := unlockScript.Run(ctx, l.client, []string{key}, token).Int()
	if err != nil {
		l.logger.Error("redis unlock failed", "key", key, "err", err)
		return
	}
	if n == 0 {
		l.logger.Warn("redis lock expired before unlock", "key", key, "ttl", l.ttl)
	}
}

// NewRedisClient connects to url and checks the connection.
// Returns nil if the URL is empty (Redis not configured).
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}
