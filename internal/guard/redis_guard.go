package guard

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/example/fleet-loads/internal/accept"
)

// ErrBusy means another holder owns the lock for the key.
var ErrBusy = accept.ErrBusy

// Locker is the subset of redis needed by RedisGuard, so tests can fake it.
type Locker interface {
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	CompareAndDelete(ctx context.Context, key, value string) error
}

// releaseScript deletes the key only if we still own it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisLocker struct{ c *redis.Client }

func (r *redisLocker) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return r.c.SetNX(ctx, key, value, ttl).Result()
}

func (r *redisLocker) CompareAndDelete(ctx context.Context, key, value string) error {
	return releaseScript.Run(ctx, r.c, []string{key}, value).Err()
}

// RedisGuard serializes accepts of the same load across dashboard instances.
type RedisGuard struct {
	locker Locker
	prefix string
	ttl    time.Duration
}

func NewRedisGuard(addr, password string, ttl time.Duration) *RedisGuard {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return NewRedisGuardWithLocker(&redisLocker{c: c}, ttl)
}

func NewRedisGuardWithLocker(l Locker, ttl time.Duration) *RedisGuard {
	return &RedisGuard{locker: l, prefix: "load:accept:", ttl: ttl}
}

// Acquire takes the lock for loadID. The returned release is safe to call
// once; it only deletes the key if this holder still owns it.
func (g *RedisGuard) Acquire(ctx context.Context, loadID string) (func(), error) {
	key := g.prefix + loadID
	token := uuid.NewString()
	ok, err := g.locker.SetNX(ctx, key, token, g.ttl)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrBusy
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = g.locker.CompareAndDelete(ctx, key, token)
	}, nil
}
