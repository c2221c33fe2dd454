package redis

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker implements usecase.Locker across processes with SET NX PX.
type Locker struct {
	client       *redis.Client
	prefix       string
	ttl          time.Duration
	pollInterval time.Duration
	logger       zerolog.Logger
}

// LockerOption configures a Locker.
type LockerOption func(*Locker)

// WithLockTTL sets how long a lock survives a crashed holder.
func WithLockTTL(ttl time.Duration) LockerOption {
	return func(l *Locker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithPollInterval sets how often a waiting caller retries.
func WithPollInterval(d time.Duration) LockerOption {
	return func(l *Locker) {
		if d > 0 {
			l.pollInterval = d
		}
	}
}

// WithLockerLogger sets the logger used for release failures.
func WithLockerLogger(logger zerolog.Logger) LockerOption {
	return func(l *Locker) {
		l.logger = logger
	}
}

// NewLocker creates a new Locker.
func NewLocker(client *redis.Client, opts ...LockerOption) *Locker {
	l := &Locker{
		client:       client,
		prefix:       "badbank:lock:",
		ttl:          30 * time.Second,
		pollInterval: 10 * time.Millisecond,
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire polls until key is free or ctx is done.
func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	fullKey := l.prefix + key
	token := ulid.Make().String()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, fullKey, token, l.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, err
		}
		if ok {
			return l.releaser(fullKey, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *Locker) releaser(fullKey, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client, []string{fullKey}, token).Err(); err != nil {
				// The key lingers until its TTL runs out.
				l.logger.Warn().
					Err(err).
					Str("key", fullKey).
					Dur("ttl", l.ttl).
					Msg("failed to release lock")
			}
		})
	}
}
