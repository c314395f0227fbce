package service

import (
	"go.uber.org/zap"

	"rota-planner/backend/config"
	"rota-planner/backend/internal/repository"
)

// Service 所有 Service 的聚合入口
type Service struct {
	FiscalYear FiscalYearService
	Preference PreferenceService
	Cfte       CfteService
	Calendar   CalendarService
	Trade      TradeService
	Export     ExportService
	Event      CalendarEventService
}

// NewService 创建 Service 聚合
//
// locker 与 cache 由调用方按部署方式选择：单实例用进程内实现，多实例用 Redis 实现。
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	locker Locker,
	cache SummaryCache,
	logger *zap.Logger,
) *Service {
	return &Service{
		FiscalYear: NewFiscalYearService(repo, locker, cache, logger),
		Preference: NewPreferenceService(repo, cfg.Scheduling, locker, logger),
		Cfte:       NewCfteService(repo, cache, logger),
		Calendar:   NewCalendarService(repo, cfg.Scheduling, locker, cache, logger),
		Trade:      NewTradeService(repo, locker, cache, logger),
		Export:     NewExportService(repo, logger),
		Event:      NewCalendarEventService(repo, logger),
	}
}
