package bttconf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// Publisher 将配置发布到 Redis，供 RedisSource 读取。
type Publisher struct {
	rdb *redis.Client
}

// NewPublisher 创建发布者。
// client: Redis 客户端实例（外部传入，DI）。
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{rdb: client}
}

// PublishRequest 代表发布新配置的请求。
type PublishRequest struct {
	// FullReplace 如果为 true，忽略已发布的内容，直接使用 Set 作为全部内容。
	FullReplace bool

	// Set 要更新或新增的 Key -> 原始值。
	Set map[string]string

	// Deletes 要删除的 Key。先删除后设置。
	Deletes []string
}

// 检查当前 Hash 后原子地替换配置、记录历史并发送通知。
var publishScript = redis.NewScript(`
	local propsKey = KEYS[1]
	local currentKey = KEYS[2]
	local historyKey = KEYS[3]
	local streamKey = KEYS[4]

	local oldHash = ARGV[1]
	local newHash = ARGV[2]
	local historyJSON = ARGV[3]
	local streamData = ARGV[4]

	local currentHash = redis.call('GET', currentKey)
	if currentHash == false then
		currentHash = ""
	end

	if currentHash ~= oldHash then
		return redis.error_reply('version_mismatch: ' .. currentHash .. ' != ' .. oldHash)
	end

	redis.call('DEL', propsKey)
	for i = 5, #ARGV, 2 do
		redis.call('HSET', propsKey, ARGV[i], ARGV[i + 1])
	end
	redis.call('SET', currentKey, newHash)
	redis.call('RPUSH', historyKey, historyJSON)
	redis.call('XADD', streamKey, 'MAXLEN', '~', '1000', '*', 'data', streamData)

	return "OK"
`)

// Publish 发布新内容并返回内容 Hash。内容未变化时不写入也不通知。
// 如果在读取与写入之间被其他发布者修改，返回 version_mismatch 错误。
func (p *Publisher) Publish(ctx context.Context, req PublishRequest) (string, error) {
	// 1. 获取当前 Hash (用于 CAS)
	baseHash, err := p.rdb.Get(ctx, KeyCurrent()).Result()
	if errors.Is(err, redis.Nil) {
		baseHash = ""
		err = nil
	}
	if err != nil {
		return "", fmt.Errorf("get current hash failed: %w", err)
	}

	current := make(map[string]string)
	if !req.FullReplace && baseHash != "" {
		existing, err := p.rdb.HGetAll(ctx, KeyProperties()).Result()
		if err != nil {
			return "", fmt.Errorf("load current properties failed: %w", err)
		}
		current = existing
	}

	// 2. 应用删除与更新
	for _, key := range req.Deletes {
		delete(current, key)
	}
	maps.Copy(current, req.Set)

	// 3. 计算新 Hash
	newHash := ComputeHash(current)
	if newHash == baseHash {
		return newHash, nil
	}

	// 4. CAS 更新
	now := time.Now().Unix()
	histJSON, _ := json.Marshal(HistoryRecord{
		Hash:      newHash,
		Keys:      len(current),
		Timestamp: now,
	})
	msgData, _ := json.Marshal(UpdateMessage{
		Event:     EventPublish,
		Hash:      newHash,
		Timestamp: now,
	})

	keys := []string{
		KeyProperties(),
		KeyCurrent(),
		KeyHistory(),
		KeyUpdates(),
	}
	argv := []any{baseHash, newHash, string(histJSON), string(msgData)}

	// 排序保证写入顺序稳定
	names := make([]string, 0, len(current))
	for k := range current {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		argv = append(argv, k, current[k])
	}

	if err := publishScript.Run(ctx, p.rdb, keys, argv...).Err(); err != nil {
		return "", fmt.Errorf("cas update failed: %w", err)
	}
	return newHash, nil
}

// NotifyReload 发送 reload 事件，让所有监听者重新检查。
func (p *Publisher) NotifyReload(ctx context.Context) error {
	hash, err := p.rdb.Get(ctx, KeyCurrent()).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("get current hash failed: %w", err)
	}
	msgData, _ := json.Marshal(UpdateMessage{
		Event:     EventReload,
		Hash:      hash,
		Timestamp: time.Now().Unix(),
	})
	return p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: KeyUpdates(),
		MaxLen: 1000,
		Approx: true,
		Values: map[string]any{"data": string(msgData)},
	}).Err()
}

// History 返回最近 n 条发布记录，按时间顺序。
func (p *Publisher) History(ctx context.Context, n int64) ([]HistoryRecord, error) {
	raw, err := p.rdb.LRange(ctx, KeyHistory(), -n, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("get history failed: %w", err)
	}
	records := make([]HistoryRecord, 0, len(raw))
	for _, item := range raw {
		var rec HistoryRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal history failed: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}
