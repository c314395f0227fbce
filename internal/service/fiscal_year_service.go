package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"rota-planner/backend/internal/dto"
	"rota-planner/backend/internal/model"
	"rota-planner/backend/internal/repository"
	pkgerrors "rota-planner/backend/pkg/errors"
)

// ── 财年模块业务错误 ──

var (
	ErrFiscalYearNotFound          = pkgerrors.New(pkgerrors.ErrNotFound, "财年不存在")
	ErrFiscalYearDateInvalid       = pkgerrors.New(pkgerrors.ErrValidation, "财年结束日期必须晚于开始日期")
	ErrFiscalYearLabelExists       = pkgerrors.New(pkgerrors.ErrConflict, "财年名称已存在")
	ErrFiscalYearInvalidTransition = pkgerrors.New(pkgerrors.ErrInvalidTransition, "财年状态只能按顺序前进一步")
	ErrPublishWithoutDraft         = pkgerrors.New(pkgerrors.ErrBlocked, "尚未创建主日历草稿，无法发布")
)

// FiscalYearService 财年生命周期业务接口
type FiscalYearService interface {
	Create(ctx context.Context, actor Actor, req *dto.CreateFiscalYearRequest) (*dto.FiscalYearResponse, error)
	GetByID(ctx context.Context, id string) (*dto.FiscalYearResponse, error)
	GetCurrent(ctx context.Context) (*dto.FiscalYearResponse, error)
	List(ctx context.Context) ([]dto.FiscalYearResponse, error)
	SetCurrent(ctx context.Context, actor Actor, id string) (*dto.FiscalYearResponse, error)
	// Transition 严格按 setup → collecting → building → published → archived 前进一步
	Transition(ctx context.Context, actor Actor, id string, target string) (*dto.FiscalYearResponse, error)
}

type fiscalYearService struct {
	repo   *repository.Repository
	locker Locker
	cache  SummaryCache
	logger *zap.Logger
}

// NewFiscalYearService 创建 FiscalYearService 实例
func NewFiscalYearService(repo *repository.Repository, locker Locker, cache SummaryCache, logger *zap.Logger) FiscalYearService {
	return &fiscalYearService{repo: repo, locker: locker, cache: cache, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *fiscalYearService) Create(ctx context.Context, actor Actor, req *dto.CreateFiscalYearRequest) (*dto.FiscalYearResponse, error) {
	if err := authorize(actor, actFiscalYearWrite, ""); err != nil {
		return nil, err
	}

	startDate, err := time.Parse(dto.DateLayout, req.StartDate)
	if err != nil {
		return nil, ErrFiscalYearDateInvalid
	}
	endDate, err := time.Parse(dto.DateLayout, req.EndDate)
	if err != nil {
		return nil, ErrFiscalYearDateInvalid
	}
	if !endDate.After(startDate) {
		return nil, ErrFiscalYearDateInvalid
	}

	existing, err := s.repo.FiscalYear.List(ctx)
	if err != nil {
		s.logger.Error("列出财年失败", zap.Error(err))
		return nil, err
	}
	for _, fy := range existing {
		if normalizeLabel(fy.Label) == normalizeLabel(req.Label) {
			return nil, ErrFiscalYearLabelExists
		}
	}

	fy := &model.FiscalYear{
		Label:     req.Label,
		Status:    model.FiscalYearSetup,
		StartDate: startDate,
		EndDate:   endDate,
	}
	fy.CreatedBy = &actor.UserID
	fy.UpdatedBy = &actor.UserID

	var weeks []model.Week
	err = runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		if err := txRepo.FiscalYear.Create(ctx, fy); err != nil {
			return err
		}
		weeks = generateWeeks(fy.FiscalYearID, startDate, endDate)
		if err := txRepo.Week.BatchCreate(ctx, weeks); err != nil {
			return err
		}
		return recordAudit(ctx, txRepo, actor, auditFiscalYearCreate, "fiscal_year", fy.FiscalYearID, map[string]interface{}{
			"label": fy.Label,
			"weeks": len(weeks),
		})
	})
	if err != nil {
		s.logger.Error("创建财年失败", zap.String("label", req.Label), zap.Error(err))
		return nil, err
	}

	return toFiscalYearResponse(fy, weeks), nil
}

// generateWeeks 生成以周一对齐的 7 天周序列，第 1 周包含开始日期
func generateWeeks(fiscalYearID string, start, end time.Time) []model.Week {
	offset := (int(start.Weekday()) + 6) % 7 // 周一为 0
	weekStart := start.AddDate(0, 0, -offset)

	var weeks []model.Week
	for n := 1; !weekStart.After(end); n++ {
		weeks = append(weeks, model.Week{
			FiscalYearID: fiscalYearID,
			WeekNumber:   n,
			StartDate:    weekStart,
			EndDate:      weekStart.AddDate(0, 0, 6),
			IsActive:     true,
		})
		weekStart = weekStart.AddDate(0, 0, 7)
	}
	return weeks
}

// ────────────────────── 查询 ──────────────────────

func (s *fiscalYearService) GetByID(ctx context.Context, id string) (*dto.FiscalYearResponse, error) {
	fy, err := s.repo.FiscalYear.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFiscalYearNotFound
		}
		s.logger.Error("查询财年失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return s.withWeeks(ctx, fy)
}

func (s *fiscalYearService) GetCurrent(ctx context.Context) (*dto.FiscalYearResponse, error) {
	fy, err := s.repo.FiscalYear.GetCurrent(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoCurrentFiscalYear
		}
		s.logger.Error("查询当前财年失败", zap.Error(err))
		return nil, err
	}
	return s.withWeeks(ctx, fy)
}

func (s *fiscalYearService) List(ctx context.Context) ([]dto.FiscalYearResponse, error) {
	list, err := s.repo.FiscalYear.List(ctx)
	if err != nil {
		s.logger.Error("列出财年失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.FiscalYearResponse, 0, len(list))
	for i := range list {
		result = append(result, *toFiscalYearResponse(&list[i], nil))
	}
	return result, nil
}

func (s *fiscalYearService) withWeeks(ctx context.Context, fy *model.FiscalYear) (*dto.FiscalYearResponse, error) {
	weeks, err := s.repo.Week.ListByFiscalYear(ctx, fy.FiscalYearID, false)
	if err != nil {
		s.logger.Error("查询财年周失败", zap.String("id", fy.FiscalYearID), zap.Error(err))
		return nil, err
	}
	return toFiscalYearResponse(fy, weeks), nil
}

// ────────────────────── SetCurrent ──────────────────────

func (s *fiscalYearService) SetCurrent(ctx context.Context, actor Actor, id string) (*dto.FiscalYearResponse, error) {
	if err := authorize(actor, actFiscalYearWrite, ""); err != nil {
		return nil, err
	}
	if _, err := s.repo.FiscalYear.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFiscalYearNotFound
		}
		return nil, err
	}

	var fy *model.FiscalYear
	err := runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		if err := txRepo.FiscalYear.ClearCurrent(ctx); err != nil {
			return err
		}
		// ClearCurrent 会递增版本，重新读取
		var err error
		fy, err = txRepo.FiscalYear.GetByID(ctx, id)
		if err != nil {
			return err
		}
		fy.IsCurrent = true
		fy.UpdatedBy = &actor.UserID
		if err := txRepo.FiscalYear.Update(ctx, fy); err != nil {
			return err
		}
		return recordAudit(ctx, txRepo, actor, auditFiscalYearSetCurrent, "fiscal_year", id, nil)
	})
	if err != nil {
		s.logger.Error("设置当前财年失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return s.withWeeks(ctx, fy)
}

// ────────────────────── Transition ──────────────────────

func (s *fiscalYearService) Transition(ctx context.Context, actor Actor, id string, target string) (*dto.FiscalYearResponse, error) {
	if err := authorize(actor, actFiscalYearWrite, ""); err != nil {
		return nil, err
	}

	fy, err := s.repo.FiscalYear.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFiscalYearNotFound
		}
		s.logger.Error("查询财年失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	if !isNextStatus(fy.Status, target) {
		return nil, pkgerrors.WithDetail(ErrFiscalYearInvalidTransition, fmt.Sprintf("%s → %s", fy.Status, target))
	}

	// 发布时冻结草稿：与手动/自动排班互斥
	var draft *model.MasterCalendarDraft
	if target == model.FiscalYearPublished {
		draft, err = s.repo.Draft.GetByFiscalYear(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrPublishWithoutDraft
			}
			return nil, err
		}
		unlock, err := s.locker.Lock(ctx, draftLockKey(draft.DraftID))
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	from := fy.Status
	published := 0
	err = runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		if draft != nil {
			n, err := publishDraft(ctx, txRepo, fy, draft.DraftID, actor)
			if err != nil {
				return err
			}
			published = n
		}

		fy.Status = target
		fy.UpdatedBy = &actor.UserID
		if err := txRepo.FiscalYear.Update(ctx, fy); err != nil {
			return err
		}
		return recordAudit(ctx, txRepo, actor, auditFiscalYearTransition, "fiscal_year", id, map[string]interface{}{
			"from":      from,
			"to":        target,
			"published": published,
		})
	})
	if err != nil {
		s.logger.Error("财年状态流转失败",
			zap.String("id", id), zap.String("from", from), zap.String("to", target), zap.Error(err))
		return nil, err
	}

	if draft != nil {
		s.cache.Invalidate(ctx, id)
	}
	s.logger.Info("财年状态流转", zap.String("id", id), zap.String("from", from), zap.String("to", target))
	return s.withWeeks(ctx, fy)
}

// publishDraft 将草稿中已排的格子复制为已发布日历，返回复制数量
func publishDraft(ctx context.Context, txRepo *repository.Repository, fy *model.FiscalYear, draftID string, actor Actor) (int, error) {
	if _, err := txRepo.Draft.LockByID(ctx, draftID); err != nil {
		return 0, err
	}
	cells, err := txRepo.DraftCell.ListByDraft(ctx, draftID)
	if err != nil {
		return 0, err
	}

	assignments := make([]model.CalendarAssignment, 0, len(cells))
	for _, c := range cells {
		if c.PhysicianID == nil {
			continue
		}
		a := model.CalendarAssignment{
			FiscalYearID: fy.FiscalYearID,
			WeekID:       c.WeekID,
			RotationID:   c.RotationID,
			PhysicianID:  *c.PhysicianID,
		}
		a.CreatedBy = &actor.UserID
		a.UpdatedBy = &actor.UserID
		a.Version = 1
		assignments = append(assignments, a)
	}
	if err := txRepo.Assignment.BatchCreate(ctx, assignments); err != nil {
		return 0, err
	}
	if err := txRepo.Draft.MarkPublished(ctx, draftID, time.Now().UTC(), actor.UserID); err != nil {
		return 0, err
	}
	return len(assignments), nil
}

// isNextStatus 目标状态是否恰为当前状态的下一步
func isNextStatus(current, target string) bool {
	for i, st := range model.FiscalYearStatuses {
		if st == current {
			return i+1 < len(model.FiscalYearStatuses) && model.FiscalYearStatuses[i+1] == target
		}
	}
	return false
}

// ── 内部辅助方法 ──

func toFiscalYearResponse(fy *model.FiscalYear, weeks []model.Week) *dto.FiscalYearResponse {
	resp := &dto.FiscalYearResponse{
		ID:        fy.FiscalYearID,
		Label:     fy.Label,
		Status:    fy.Status,
		StartDate: dto.FormatDate(fy.StartDate),
		EndDate:   dto.FormatDate(fy.EndDate),
		IsCurrent: fy.IsCurrent,
		Version:   fy.Version,
	}
	if len(weeks) > 0 {
		resp.Weeks = make([]dto.WeekResponse, 0, len(weeks))
		for _, w := range weeks {
			resp.Weeks = append(resp.Weeks, toWeekResponse(w))
		}
	}
	return resp
}

func toWeekResponse(w model.Week) dto.WeekResponse {
	return dto.WeekResponse{
		ID:         w.WeekID,
		WeekNumber: w.WeekNumber,
		StartDate:  dto.FormatDate(w.StartDate),
		EndDate:    dto.FormatDate(w.EndDate),
		IsActive:   w.IsActive,
	}
}
