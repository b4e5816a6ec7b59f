package bttconf

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

func TestIntegration(t *testing.T) {
	// 1. 初始化 Miniredis
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	SetPrefix("testapp:")
	op := NewPublisher(rdb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. 发布初始配置
	_, err = op.Publish(ctx, PublishRequest{
		FullReplace: true,
		Set: map[string]string{
			KeyRemotePort:       "2004",
			KeyExcludedHeaders:  "Cookie",
			"request.timeout.ms": "1000",
		},
	})
	if err != nil {
		t.Fatalf("Publish v1 failed: %v", err)
	}

	// 3. 初始化 Store - 在发布之后初始化，应该立即加载到数据
	src := NewRedisSource(rdb)
	store := New(src, WithReloadInterval(0), WithReloadLimit(rate.Inf, 1))
	defer store.Close()

	if v := store.GetInt("request.timeout.ms", 0); v != 1000 {
		t.Errorf("Get timeout failed, expected 1000, got %v", v)
	}
	settings := NewSettings(store)
	if settings.RemotePort() != 2004 {
		t.Errorf("Expected remote port 2004, got %d", settings.RemotePort())
	}

	// 4. 启动监听器
	watchDone := make(chan error, 1)
	go func() {
		watchDone <- src.Watch(ctx, store)
	}()
	time.Sleep(100 * time.Millisecond) // 等待监听器启动

	// 5. 发布更新
	_, err = op.Publish(ctx, PublishRequest{
		Set: map[string]string{"request.timeout.ms": "2000"},
	})
	if err != nil {
		t.Fatalf("Publish update failed: %v", err)
	}

	// 6. 等待推送传播
	deadline := time.Now().Add(3 * time.Second)
	for store.GetInt("request.timeout.ms", 0) != 2000 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}

	// 7. 验证更新
	if v := store.GetInt("request.timeout.ms", 0); v != 2000 {
		t.Errorf("Get timeout updated failed, expected 2000, got %v", v)
	}
	if settings.RemotePort() != 2004 {
		t.Errorf("Untouched key should survive incremental publish")
	}
	if store.Snapshot().Hash == "" {
		t.Errorf("Expected snapshot hash after reload")
	}

	// 8. 停止监听
	cancel()
	mr.Close()
	select {
	case <-watchDone:
	case <-time.After(10 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestIntegration_CatchUpOnStart(t *testing.T) {
	mr, _ := miniredis.Run()
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	SetPrefix("testcatchup:")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := NewRedisSource(rdb)
	store := New(src, WithReloadLimit(rate.Inf, 1))
	defer store.Close()

	if store.Snapshot().Len() != 0 {
		t.Fatalf("Expected empty snapshot before publish")
	}

	// 在 New 与 Watch 之间发布，Watch 启动时的一致性检查应补上
	if _, err := NewPublisher(rdb).Publish(ctx, PublishRequest{Set: map[string]string{"k": "v"}}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	watchDone := make(chan error, 1)
	go func() {
		watchDone <- src.Watch(ctx, store)
	}()

	deadline := time.Now().Add(3 * time.Second)
	for store.GetString("k", "") != "v" && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if v := store.GetString("k", ""); v != "v" {
		t.Errorf("Expected catch-up reload, got %q", v)
	}

	cancel()
	mr.Close()
	select {
	case <-watchDone:
	case <-time.After(10 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestStreamTail(t *testing.T) {
	mr, _ := miniredis.Run()
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	SetPrefix("testtail:")
	ctx := context.Background()
	src := NewRedisSource(rdb)

	id, err := src.streamTail(ctx)
	if err != nil {
		t.Fatalf("streamTail failed: %v", err)
	}
	if id != "0-0" {
		t.Errorf("Expected 0-0 for empty stream, got %s", id)
	}

	if _, err := NewPublisher(rdb).Publish(ctx, PublishRequest{Set: map[string]string{"k": "v"}}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	msgs, err := rdb.XRange(ctx, KeyUpdates(), "-", "+").Result()
	if err != nil || len(msgs) != 1 {
		t.Fatalf("Expected one stream message, got %v (%v)", msgs, err)
	}

	id, err = src.streamTail(ctx)
	if err != nil {
		t.Fatalf("streamTail failed: %v", err)
	}
	if id != msgs[0].ID {
		t.Errorf("Expected tail %s, got %s", msgs[0].ID, id)
	}
}

func TestIntegration_EveryPublishPropagatesBetweenReads(t *testing.T) {
	// 关闭反熵检查，只依赖 Stream；短阻塞制造大量空读
	oldAntiEntropy, oldBlock := antiEntropyInterval, watchBlock
	antiEntropyInterval, watchBlock = time.Hour, 10*time.Millisecond
	defer func() {
		antiEntropyInterval, watchBlock = oldAntiEntropy, oldBlock
	}()

	mr, _ := miniredis.Run()
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	SetPrefix("testgap:")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := NewRedisSource(rdb)
	store := New(src, WithReloadInterval(0), WithReloadLimit(rate.Inf, 1))
	defer store.Close()

	watchDone := make(chan error, 1)
	go func() {
		watchDone <- src.Watch(ctx, store)
	}()
	time.Sleep(50 * time.Millisecond)

	op := NewPublisher(rdb)
	for i := 1; i <= 5; i++ {
		want := strconv.Itoa(i)
		if _, err := op.Publish(ctx, PublishRequest{Set: map[string]string{"k": want}}); err != nil {
			t.Fatalf("Publish %d failed: %v", i, err)
		}
		deadline := time.Now().Add(3 * time.Second)
		for store.GetString("k", "") != want && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		if v := store.GetString("k", ""); v != want {
			t.Fatalf("Publish %d not propagated, got %q want %q", i, v, want)
		}
	}

	cancel()
	mr.Close()
	select {
	case <-watchDone:
	case <-time.After(10 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
