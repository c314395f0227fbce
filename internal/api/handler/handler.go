package handler

import "rota-planner/backend/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	FiscalYear *FiscalYearHandler
	Preference *PreferenceHandler
	Cfte       *CfteHandler
	Calendar   *CalendarHandler
	Trade      *TradeHandler
	Export     *ExportHandler
	Event      *CalendarEventHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		FiscalYear: NewFiscalYearHandler(svc.FiscalYear),
		Preference: NewPreferenceHandler(svc.Preference),
		Cfte:       NewCfteHandler(svc.Cfte),
		Calendar:   NewCalendarHandler(svc.Calendar),
		Trade:      NewTradeHandler(svc.Trade),
		Export:     NewExportHandler(svc.Export),
		Event:      NewCalendarEventHandler(svc.Event),
	}
}
