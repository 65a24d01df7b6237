package repository

import (
	"context"
	"time"

	"github.com/yanun0323/errors"
	"github.com/zeromicro/go-zero/core/stores/redis"
)

// Redis stores snapshots as string values, with an optional expiry.
type Redis struct {
	client *redis.Redis
	expire time.Duration
}

func NewRedis(client *redis.Redis, expire time.Duration) *Redis {
	return &Redis{client: client, expire: expire}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := r.client.GetCtx(ctx, key)
	if err != nil {
		return nil, false, errors.Wrap(err, "redis get").With("key", key)
	}
	if len(v) == 0 {
		return nil, false, nil
	}
	return []byte(v), true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	var err error
	if r.expire > 0 {
		err = r.client.SetexCtx(ctx, key, string(value), int(r.expire/time.Second))
	} else {
		err = r.client.SetCtx(ctx, key, string(value))
	}
	if err != nil {
		return errors.Wrap(err, "redis set").With("key", key)
	}
	return nil
}
