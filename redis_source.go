package bttconf

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSource 从 Redis Hash 读取由 Publisher 发布的配置。
type RedisSource struct {
	rdb *redis.Client
}

// NewRedisSource 创建 Redis 数据源。
// client: Redis 客户端实例（外部传入，DI）。
func NewRedisSource(client *redis.Client) *RedisSource {
	return &RedisSource{rdb: client}
}

func (r *RedisSource) Name() string {
	return "redis:" + KeyProperties()
}

// Load 读取全部配置项。Hash 不存在时返回空配置。
func (r *RedisSource) Load(ctx context.Context) (map[string]string, error) {
	values, err := r.rdb.HGetAll(ctx, KeyProperties()).Result()
	if err != nil {
		return nil, fmt.Errorf("get properties failed: %w", err)
	}
	return values, nil
}

// RemoteHash 返回已发布内容的 Hash，未发布时为空字符串。
func (r *RedisSource) RemoteHash(ctx context.Context) (string, error) {
	h, err := r.rdb.Get(ctx, KeyCurrent()).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get current hash failed: %w", err)
	}
	return h, nil
}
