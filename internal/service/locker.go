package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	pkgerrors "rota-planner/backend/pkg/errors"
	"rota-planner/backend/pkg/redis"
)

// ErrResourceBusy 等待锁超时
var ErrResourceBusy = pkgerrors.New(pkgerrors.ErrConflict, "资源正被其他操作占用，请稍后重试")

// Locker 按 key 互斥，等待有上限
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// ── 进程内实现（未配置 Redis 时使用） ──

type localLocker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
	wait  time.Duration
}

// NewLocalLocker 创建进程内 Locker
func NewLocalLocker(wait time.Duration) Locker {
	return &localLocker{locks: make(map[string]chan struct{}), wait: wait}
}

func (l *localLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	ch, ok := l.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[key] = ch
	}
	l.mu.Unlock()

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-timer.C:
		return nil, ErrResourceBusy
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ── Redis 实现 ──

type redisLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
}

// NewRedisLocker 创建基于 Redis 的分布式 Locker
func NewRedisLocker(client *redis.Client, ttl, wait time.Duration) Locker {
	return &redisLocker{client: client, ttl: ttl, wait: wait}
}

func (l *redisLocker) Lock(ctx context.Context, key string) (func(), error) {
	unlock, err := l.client.Lock(ctx, key, l.ttl, l.wait)
	if errors.Is(err, redis.ErrLockTimeout) {
		return nil, ErrResourceBusy
	}
	return unlock, err
}

// lockAll 按字典序获取多把锁，避免交叉等待；返回的 unlock 逆序释放
func lockAll(ctx context.Context, locker Locker, keys ...string) (func(), error) {
	uniq := make(map[string]struct{}, len(keys))
	sorted := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := uniq[k]; ok {
			continue
		}
		uniq[k] = struct{}{}
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	unlocks := make([]func(), 0, len(sorted))
	release := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
	for _, k := range sorted {
		unlock, err := locker.Lock(ctx, k)
		if err != nil {
			release()
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}
	return release, nil
}

func draftLockKey(draftID string) string        { return "draft:" + draftID }
func tradeLockKey(tradeID string) string        { return "trade:" + tradeID }
func assignmentLockKey(id string) string        { return "assignment:" + id }
func approvalLockKey(physicianID string) string { return "approval:" + physicianID }
