package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"rota-planner/backend/internal/dto"
	"rota-planner/backend/pkg/redis"
)

// SummaryCache 财年级 cFTE 汇总缓存
// 以 epoch 区分版本：Invalidate 使 epoch 递增，旧 epoch 下写入的数据不会再被读到
type SummaryCache interface {
	Load(ctx context.Context, fiscalYearID string) (rows []dto.CfteSummaryRow, epoch int64, hit bool)
	Store(ctx context.Context, fiscalYearID string, epoch int64, rows []dto.CfteSummaryRow)
	Invalidate(ctx context.Context, fiscalYearID string)
}

// ── 进程内实现 ──

type memorySummaryCache struct {
	mu      sync.Mutex
	epochs  map[string]int64
	entries map[string]memoryEntry
}

type memoryEntry struct {
	epoch int64
	rows  []dto.CfteSummaryRow
}

// NewMemorySummaryCache 创建进程内汇总缓存
func NewMemorySummaryCache() SummaryCache {
	return &memorySummaryCache{
		epochs:  make(map[string]int64),
		entries: make(map[string]memoryEntry),
	}
}

func (c *memorySummaryCache) Load(_ context.Context, fiscalYearID string) ([]dto.CfteSummaryRow, int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	epoch := c.epochs[fiscalYearID]
	e, ok := c.entries[fiscalYearID]
	if !ok || e.epoch != epoch {
		return nil, epoch, false
	}
	return append([]dto.CfteSummaryRow(nil), e.rows...), epoch, true
}

func (c *memorySummaryCache) Store(_ context.Context, fiscalYearID string, epoch int64, rows []dto.CfteSummaryRow) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epochs[fiscalYearID] != epoch {
		return
	}
	c.entries[fiscalYearID] = memoryEntry{epoch: epoch, rows: append([]dto.CfteSummaryRow(nil), rows...)}
}

func (c *memorySummaryCache) Invalidate(_ context.Context, fiscalYearID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epochs[fiscalYearID]++
	delete(c.entries, fiscalYearID)
}

// ── Redis 实现 ──

type redisSummaryCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisSummaryCache 创建 Redis 汇总缓存
func NewRedisSummaryCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) SummaryCache {
	return &redisSummaryCache{client: client, ttl: ttl, logger: logger}
}

func epochKey(fiscalYearID string) string { return "cfte:epoch:" + fiscalYearID }

func summaryKey(fiscalYearID string, epoch int64) string {
	return fmt.Sprintf("cfte:summaries:%s:%d", fiscalYearID, epoch)
}

// 缓存读写失败只记录日志，回退到实时计算
func (c *redisSummaryCache) Load(ctx context.Context, fiscalYearID string) ([]dto.CfteSummaryRow, int64, bool) {
	epoch, err := c.client.GetInt64(ctx, epochKey(fiscalYearID))
	if err != nil {
		c.logger.Warn("读取 cFTE 缓存 epoch 失败", zap.Error(err))
		return nil, -1, false
	}
	var rows []dto.CfteSummaryRow
	hit, err := c.client.GetJSON(ctx, summaryKey(fiscalYearID, epoch), &rows)
	if err != nil {
		c.logger.Warn("读取 cFTE 缓存失败", zap.Error(err))
		return nil, epoch, false
	}
	return rows, epoch, hit
}

func (c *redisSummaryCache) Store(ctx context.Context, fiscalYearID string, epoch int64, rows []dto.CfteSummaryRow) {
	if epoch < 0 {
		return
	}
	if err := c.client.SetJSON(ctx, summaryKey(fiscalYearID, epoch), rows, c.ttl); err != nil {
		c.logger.Warn("写入 cFTE 缓存失败", zap.Error(err))
	}
}

func (c *redisSummaryCache) Invalidate(ctx context.Context, fiscalYearID string) {
	if _, err := c.client.Incr(ctx, epochKey(fiscalYearID)); err != nil {
		c.logger.Error("cFTE 缓存失效失败", zap.String("fiscal_year_id", fiscalYearID), zap.Error(err))
	}
}
