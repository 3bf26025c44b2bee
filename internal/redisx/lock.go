package redisx

import (
	"context"
	"fmt"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"time"
)

// hapus key hanya kalau value-nya masih token kita
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

type Locker struct {
	Redis *redis.Client
}

// Acquire mencoba SET NX dengan TTL. ok=false berarti replica lain sedang pegang lock.
func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (release func(), ok bool, err error) {
	key := fmt.Sprintf(KeyJobLock, name)
	token := uuid.NewString()

	ok, err = l.Redis.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return func() {}, false, err
	}
	return func() {
		// context terpisah: release tetap jalan walau ctx job sudah cancel
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(rctx, l.Redis, []string{key}, token).Err()
	}, true, nil
}
