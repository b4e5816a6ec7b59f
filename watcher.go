package bttconf

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	// 反熵检查周期
	antiEntropyInterval = time.Minute
	// XREAD 阻塞时长
	watchBlock = 5 * time.Second
	// 读取失败后的退避时长
	watchBackoff = 5 * time.Second
)

// Watch 监听 Update Stream，发现远程内容变化时触发 store 重新加载。
// 它是阻塞的，应在 goroutine 中运行，ctx 取消时返回。
func (r *RedisSource) Watch(ctx context.Context, store *Store) error {
	streamKey := KeyUpdates()
	logger := store.logger
	block, backoff := watchBlock, watchBackoff

	// 起始位置只确定一次，之后沿消息 ID 前进，两次读取之间的发布不会丢失
	lastID, err := r.streamTail(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Error("resolve update stream tail failed", zap.Error(err))
		lastID = "$"
	}

	// 内部函数：检查本地快照与远程是否一致
	checkConsistency := func() {
		remoteHash, err := r.RemoteHash(ctx)
		if err != nil {
			logger.Error("check consistency failed", zap.Error(err))
			return
		}
		localHash := store.Snapshot().Hash
		if remoteHash != localHash {
			logger.Info("content hash mismatch detected, reloading",
				zap.String("local", localHash),
				zap.String("remote", remoteHash),
			)
			_ = store.TriggerReload(ctx)
		}
	}

	// 启动时立即检查一次（防止 New 和 Watch 之间的 Gap 导致漏更）
	checkConsistency()

	ticker := time.NewTicker(antiEntropyInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			checkConsistency()
		default:
		}

		// 阻塞读取
		streams, err := r.rdb.XRead(ctx, &redis.XReadArgs{
			Streams: []string{streamKey, lastID},
			Block:   block,
			Count:   1,
		}).Result()

		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error("watch failed", zap.Error(err))
			// 退避等待，防止死循环刷日志
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				continue
			}
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				lastID = msg.ID

				dataStr, ok := msg.Values["data"].(string)
				if !ok {
					continue
				}

				var updateMsg UpdateMessage
				if err := json.Unmarshal([]byte(dataStr), &updateMsg); err != nil {
					logger.Warn("invalid update message", zap.String("id", msg.ID), zap.Error(err))
					continue
				}

				// 内容与本地一致时无需加载
				if updateMsg.Hash == store.Snapshot().Hash {
					continue
				}
				if err := store.TriggerReload(ctx); err != nil && ctx.Err() != nil {
					return ctx.Err()
				}
			}
		}
	}
}

// streamTail 返回 Update Stream 中最后一条消息的 ID，Stream 为空时返回 "0-0"。
func (r *RedisSource) streamTail(ctx context.Context) (string, error) {
	msgs, err := r.rdb.XRevRangeN(ctx, KeyUpdates(), "+", "-", 1).Result()
	if err != nil {
		return "", err
	}
	if len(msgs) == 0 {
		return "0-0", nil
	}
	return msgs[0].ID, nil
}
