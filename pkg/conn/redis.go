package conn

import (
	"context"

	"github.com/yanun0323/errors"
	"github.com/zeromicro/go-zero/core/stores/redis"
)

// RedisOption defines connection options for a single redis node.
type RedisOption struct {
	Host string `yaml:"host"`
	Pass string `yaml:"pass"`
	TLS  bool   `yaml:"tls"`
}

// NewRedis creates a redis client and checks the connection.
func NewRedis(ctx context.Context, option RedisOption) (*redis.Redis, error) {
	if option.Host == "" {
		return nil, errors.New("empty redis host")
	}

	client, err := redis.NewRedis(redis.RedisConf{
		Host: option.Host,
		Type: redis.NodeType,
		Pass: option.Pass,
		Tls:  option.TLS,
	})
	if err != nil {
		return nil, errors.Wrap(err, "new redis").With("host", option.Host)
	}

	if !client.PingCtx(ctx) {
		return nil, errors.Errorf("ping redis %s failed", option.Host)
	}
	return client, nil
}
