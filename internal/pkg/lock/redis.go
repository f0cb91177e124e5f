package lock

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only when it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type tokenGenerator interface {
	Generate() string
}

// Redis implements Locker with SET NX PX and a token checked on release.
type Redis struct {
	client redis.UniversalClient
	uuid   tokenGenerator
	prefix string
	opts   Options
}

// NewRedis returns a Redis backed Locker.
func NewRedis(client redis.UniversalClient, uuid tokenGenerator, opts Options) *Redis {
	return &Redis{
		client: client,
		uuid:   uuid,
		prefix: "lock:",
		opts:   opts,
	}
}

func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error) {
	fk := r.prefix + key
	token := r.uuid.Generate()

	err := acquireWithRetry(ctx, r.opts, func(ctx context.Context) (bool, error) {
		return r.client.SetNX(ctx, fk, token, ttl).Result()
	})
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context) error {
		return releaseScript.Run(ctx, r.client, []string{fk}, token).Err()
	}, nil
}
