package service

import (
	"context"
	"errors"
	"io"
	"strings"

	"go.uber.org/zap"

	"rota-planner/backend/internal/dto"
	"rota-planner/backend/internal/model"
	"rota-planner/backend/internal/repository"
	pkgerrors "rota-planner/backend/pkg/errors"
)

// ── 日历事件模块业务错误 ──

var (
	ErrEventCategoryInvalid = pkgerrors.New(pkgerrors.ErrValidation, "日历事件类别无效")
	ErrEventICSInvalid      = pkgerrors.New(pkgerrors.ErrValidation, "ICS 内容无法解析")
	ErrEventFetchFail       = pkgerrors.New(pkgerrors.ErrValidation, "获取 ICS 订阅失败")
)

// CalendarEventService 日历事件业务接口
//
// 导入按类别整体替换当前财年内的事件：同一类别重复导入不会产生重复数据。
type CalendarEventService interface {
	List(ctx context.Context, actor Actor) ([]dto.ExportCalendarEvent, error)
	ImportICS(ctx context.Context, actor Actor, r io.Reader, category string) (*dto.CalendarEventImportResponse, error)
	ImportICSFromURL(ctx context.Context, actor Actor, rawURL, category string) (*dto.CalendarEventImportResponse, error)
}

type calendarEventService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewCalendarEventService 创建 CalendarEventService 实例
func NewCalendarEventService(repo *repository.Repository, logger *zap.Logger) CalendarEventService {
	return &calendarEventService{repo: repo, logger: logger}
}

func (s *calendarEventService) List(ctx context.Context, actor Actor) ([]dto.ExportCalendarEvent, error) {
	if err := authorize(actor, actEventRead, ""); err != nil {
		return nil, err
	}
	fy, err := readableFiscalYear(ctx, s.repo)
	if err != nil {
		return nil, err
	}
	events, err := s.repo.CalendarEvent.ListByFiscalYear(ctx, fy.FiscalYearID)
	if err != nil {
		return nil, err
	}
	return toEventResponses(events), nil
}

func (s *calendarEventService) ImportICSFromURL(ctx context.Context, actor Actor, rawURL, category string) (*dto.CalendarEventImportResponse, error) {
	if err := authorize(actor, actEventWrite, ""); err != nil {
		return nil, err
	}
	body, err := FetchICSContent(ctx, strings.TrimSpace(rawURL))
	if err != nil {
		s.logger.Warn("获取 ICS 订阅失败", zap.String("url", rawURL), zap.Error(err))
		return nil, pkgerrors.WithDetail(ErrEventFetchFail, err.Error())
	}
	defer body.Close()
	return s.ImportICS(ctx, actor, body, category)
}

func (s *calendarEventService) ImportICS(ctx context.Context, actor Actor, r io.Reader, category string) (*dto.CalendarEventImportResponse, error) {
	if err := authorize(actor, actEventWrite, ""); err != nil {
		return nil, err
	}
	category = strings.TrimSpace(category)
	if category == "" {
		category = model.EventHoliday
	}
	if !validEventCategory(category) {
		return nil, pkgerrors.WithDetail(ErrEventCategoryInvalid, category)
	}

	fy, err := currentFiscalYear(ctx, s.repo)
	if err != nil {
		return nil, err
	}

	events, err := ParseEventsICS(io.LimitReader(r, icsMaxFileSize), fy.FiscalYearID, category, fy.StartDate, fy.EndDate)
	if err != nil {
		return nil, pkgerrors.WithDetail(ErrEventICSInvalid, err.Error())
	}

	err = runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		if err := txRepo.CalendarEvent.ReplaceByCategory(ctx, fy.FiscalYearID, category, events); err != nil {
			return err
		}
		return recordAudit(ctx, txRepo, actor, auditEventImport, "fiscal_year", fy.FiscalYearID, map[string]interface{}{
			"category": category,
			"imported": len(events),
		})
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		s.logger.Error("导入日历事件失败", zap.String("category", category), zap.Error(err))
		return nil, err
	}

	s.logger.Info("日历事件已导入",
		zap.String("fiscal_year_id", fy.FiscalYearID),
		zap.String("category", category),
		zap.Int("count", len(events)))

	return &dto.CalendarEventImportResponse{
		Category: category,
		Imported: len(events),
		Events:   toEventResponses(events),
	}, nil
}

func validEventCategory(category string) bool {
	for _, c := range model.EventCategories {
		if c == category {
			return true
		}
	}
	return false
}

func toEventResponses(events []model.CalendarEvent) []dto.ExportCalendarEvent {
	result := make([]dto.ExportCalendarEvent, 0, len(events))
	for _, e := range events {
		result = append(result, dto.ExportCalendarEvent{
			EventID:   e.EventID,
			Title:     e.Title,
			Category:  e.Category,
			StartDate: dto.FormatDate(e.StartDate),
			EndDate:   dto.FormatDate(e.EndDate),
		})
	}
	return result
}
