package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/otpgate/internal/otplogin/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
)

type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
	ins    instrument.Instrumentation
}

func NewRedis(client redis.UniversalClient, ttl time.Duration, ins instrument.Instrumentation) *Redis {
	return &Redis{client: client, ttl: ttl, ins: ins}
}

func (r *Redis) GetPending(ctx context.Context, userID int64) (_ *entity.PendingChallenge, err error) {
	ctx, span := startSpan(ctx, r.ins, "GetPending")
	defer func() { endSpan(span, err) }()

	b, err := r.client.Get(ctx, pendingKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, goerror.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return decode(b)
}

func (r *Redis) SetPending(ctx context.Context, userID int64, p entity.PendingChallenge) (err error) {
	ctx, span := startSpan(ctx, r.ins, "SetPending")
	defer func() { endSpan(span, err) }()

	b, err := encode(p)
	if err != nil {
		return err
	}

	return r.client.Set(ctx, pendingKey(userID), b, r.ttl).Err()
}

func (r *Redis) DeletePending(ctx context.Context, userID int64) (err error) {
	ctx, span := startSpan(ctx, r.ins, "DeletePending")
	defer func() { endSpan(span, err) }()

	return r.client.Del(ctx, pendingKey(userID)).Err()
}
