package redis

import (
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	redislib "github.com/redis/go-redis/v9"
)

// newRedis starts an in-memory Redis and a client for it. Both are closed
// when the test ends; tests may close the server earlier to simulate an
// outage.
func newRedis(t *testing.T) (*miniredis.Miniredis, *redislib.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redislib.NewClient(&redislib.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}
