package redis

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestLocker_AcquireAndRelease(t *testing.T) {
	mr, client := newRedis(t)

	locker := NewLocker(client, WithLockTTL(time.Minute))
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "account:u1")
	require.NoError(t, err)
	require.True(t, mr.Exists(locker.prefix+"account:u1"))

	release()
	release()
	require.False(t, mr.Exists(locker.prefix+"account:u1"))
}

func TestLocker_WaitTimesOut(t *testing.T) {
	_, client := newRedis(t)

	locker := NewLocker(client, WithPollInterval(5*time.Millisecond))
	release, err := locker.Acquire(context.Background(), "account:u1")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err = locker.Acquire(ctx, "account:u1")
	require.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestLocker_DifferentKeysDoNotBlock(t *testing.T) {
	_, client := newRedis(t)

	locker := NewLocker(client)
	r1, err := locker.Acquire(context.Background(), "account:u1")
	require.NoError(t, err)
	defer r1()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	r2, err := locker.Acquire(ctx, "account:u2")
	require.NoError(t, err)
	r2()
}

func TestLocker_ReleaseKeepsForeignLock(t *testing.T) {
	mr, client := newRedis(t)

	locker := NewLocker(client, WithLockTTL(time.Second))
	release, err := locker.Acquire(context.Background(), "account:u1")
	require.NoError(t, err)

	// Our lease expires and someone else takes the key.
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set(locker.prefix+"account:u1", "other-token"))

	release()

	got, err := mr.Get(locker.prefix + "account:u1")
	require.NoError(t, err)
	require.Equal(t, "other-token", got)
}

func TestLocker_ReleaseFailureIsLogged(t *testing.T) {
	mr, client := newRedis(t)

	var buf bytes.Buffer
	locker := NewLocker(client, WithLockerLogger(zerolog.New(&buf)))
	release, err := locker.Acquire(context.Background(), "account:u1")
	require.NoError(t, err)

	mr.Close()
	release()

	out := buf.String()
	require.Contains(t, out, `"level":"warn"`)
	require.Contains(t, out, "failed to release lock")
	require.Contains(t, out, locker.prefix+"account:u1")
}

func TestLocker_MutualExclusion(t *testing.T) {
	_, client := newRedis(t)

	locker := NewLocker(client, WithPollInterval(time.Millisecond))

	var inside, maxInside int32
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			release, err := locker.Acquire(ctx, "account:shared")
			if err != nil {
				t.Errorf("acquire failed: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, maxInside)
}
