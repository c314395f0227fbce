package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"rota-planner/backend/config"
	"rota-planner/backend/internal/dto"
	"rota-planner/backend/internal/model"
	"rota-planner/backend/internal/repository"
	pkgerrors "rota-planner/backend/pkg/errors"
)

// ── 主日历模块业务错误 ──

var (
	ErrDraftNotFound          = pkgerrors.New(pkgerrors.ErrNotFound, "主日历草稿不存在")
	ErrDraftExists            = pkgerrors.New(pkgerrors.ErrConflict, "本财年已存在主日历草稿")
	ErrFiscalYearNotCurrent   = pkgerrors.New(pkgerrors.ErrValidation, "只能为当前财年创建草稿")
	ErrCellUnavailable        = pkgerrors.New(pkgerrors.ErrConflict, "该周或轮转未启用，格子不可排")
	ErrPhysicianInactive      = pkgerrors.New(pkgerrors.ErrValidation, "医生已停用")
	ErrPhysicianNotApproved   = pkgerrors.New(pkgerrors.ErrBlocked, "医生尚未批准进入排班")
	ErrDoubleBooked           = pkgerrors.New(pkgerrors.ErrConflict, "医生在该周已有其他排班")
	ErrRedAvailabilityBlocked = pkgerrors.New(pkgerrors.ErrConflict, "医生在该周标记为不可用")
	ErrCalendarNotPublished   = pkgerrors.New(pkgerrors.ErrInvalidTransition, "主日历尚未发布")
)

// CalendarService 主日历草稿、排班与视图业务接口
type CalendarService interface {
	CreateDraft(ctx context.Context, actor Actor, req *dto.CreateDraftRequest) (*dto.DraftResponse, error)
	// AssignCell 手动排班；PhysicianID 为空时清空格子。告警不阻断写入
	AssignCell(ctx context.Context, actor Actor, req *dto.AssignCellRequest) (*dto.AssignCellResponse, error)
	// AutoAssign 仅填充空格子，整批在一个事务内提交
	AutoAssign(ctx context.Context, actor Actor) (*dto.AutoAssignResponse, error)
	GetDraftGrid(ctx context.Context, actor Actor) (*dto.CalendarGrid, error)
	GetPublishedGrid(ctx context.Context, actor Actor) (*dto.CalendarGrid, error)
}

type calendarService struct {
	repo       *repository.Repository
	scheduling config.SchedulingConfig
	locker     Locker
	cache      SummaryCache
	logger     *zap.Logger
}

// NewCalendarService 创建 CalendarService 实例
func NewCalendarService(repo *repository.Repository, scheduling config.SchedulingConfig, locker Locker, cache SummaryCache, logger *zap.Logger) CalendarService {
	return &calendarService{repo: repo, scheduling: scheduling, locker: locker, cache: cache, logger: logger}
}

// ════════════════════════════════════════════════════════════
// CreateDraft
// ════════════════════════════════════════════════════════════

func (s *calendarService) CreateDraft(ctx context.Context, actor Actor, req *dto.CreateDraftRequest) (*dto.DraftResponse, error) {
	if err := authorize(actor, actDraftWrite, ""); err != nil {
		return nil, err
	}
	fy, err := currentFiscalYear(ctx, s.repo, model.FiscalYearBuilding)
	if err != nil {
		return nil, err
	}
	if req.FiscalYearID != fy.FiscalYearID {
		return nil, ErrFiscalYearNotCurrent
	}

	unlock, err := s.locker.Lock(ctx, draftLockKey("fy:"+fy.FiscalYearID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, err := s.repo.Draft.GetByFiscalYear(ctx, fy.FiscalYearID); err == nil {
		return nil, ErrDraftExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	weeks, err := s.repo.Week.ListByFiscalYear(ctx, fy.FiscalYearID, true)
	if err != nil {
		return nil, err
	}
	rotations, err := s.repo.Rotation.List(ctx, true)
	if err != nil {
		return nil, err
	}

	draft := &model.MasterCalendarDraft{FiscalYearID: fy.FiscalYearID, Version: 1}
	draft.CreatedBy = &actor.UserID
	draft.UpdatedBy = &actor.UserID
	var cells []model.DraftCell

	err = runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		if err := txRepo.Draft.Create(ctx, draft); err != nil {
			return err
		}
		cells = make([]model.DraftCell, 0, len(weeks)*len(rotations))
		for _, w := range weeks {
			for _, r := range rotations {
				cells = append(cells, model.DraftCell{
					DraftID:    draft.DraftID,
					WeekID:     w.WeekID,
					RotationID: r.RotationID,
					UpdatedBy:  &actor.UserID,
				})
			}
		}
		if len(cells) > 0 {
			if err := txRepo.DraftCell.BatchCreate(ctx, cells); err != nil {
				return err
			}
		}
		return recordAudit(ctx, txRepo, actor, auditDraftCreate, "draft", draft.DraftID, map[string]interface{}{
			"fiscal_year_id": fy.FiscalYearID,
			"cells":          len(cells),
		})
	})
	if err != nil {
		s.logger.Error("创建主日历草稿失败", zap.String("fiscal_year_id", fy.FiscalYearID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("主日历草稿已创建",
		zap.String("draft_id", draft.DraftID),
		zap.Int("cells", len(cells)),
	)
	return &dto.DraftResponse{
		DraftID:      draft.DraftID,
		FiscalYearID: draft.FiscalYearID,
		Version:      draft.Version,
		CellCount:    len(cells),
	}, nil
}

// ════════════════════════════════════════════════════════════
// AssignCell
// ════════════════════════════════════════════════════════════

func (s *calendarService) AssignCell(ctx context.Context, actor Actor, req *dto.AssignCellRequest) (*dto.AssignCellResponse, error) {
	if err := authorize(actor, actDraftWrite, ""); err != nil {
		return nil, err
	}
	fy, err := currentFiscalYear(ctx, s.repo, model.FiscalYearBuilding)
	if err != nil {
		return nil, err
	}
	draft, err := s.getDraft(ctx, fy.FiscalYearID)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, draftLockKey(draft.DraftID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var resp *dto.AssignCellResponse
	err = runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		if _, err := txRepo.Draft.LockByID(ctx, draft.DraftID); err != nil {
			return err
		}
		cells, err := txRepo.DraftCell.ListByDraft(ctx, draft.DraftID)
		if err != nil {
			return err
		}
		state, err := loadPlanState(ctx, txRepo, fy, cells)
		if err != nil {
			return err
		}

		key := cellKey{req.WeekID, req.RotationID}
		cell, ok := state.cells[key]
		if !ok || !state.weekByID[key.weekID].IsActive || !state.rotationByID[key.rotationID].IsActive {
			return ErrCellUnavailable
		}

		warnings := []dto.CalendarWarning{}
		state.unplace(key)
		if req.PhysicianID != nil {
			pid := *req.PhysicianID
			p, ok := state.physicianByID[pid]
			if !ok {
				return ErrPhysicianNotFound
			}
			if !p.IsActive {
				return ErrPhysicianInactive
			}
			if !state.approved[pid] {
				return ErrPhysicianNotApproved
			}
			if state.isBusy(pid, key.weekID) {
				return ErrDoubleBooked
			}
			if s.scheduling.BlockRedAvailability && state.availabilityOf(pid, key.weekID) == model.AvailabilityRed {
				return ErrRedAvailabilityBlocked
			}
			state.place(key, pid)
			warnings = state.assess(key, pid)
		}

		if err := txRepo.DraftCell.UpdatePhysician(ctx, cell.CellID, req.PhysicianID, actor.UserID); err != nil {
			return err
		}
		version, err := txRepo.Draft.BumpVersion(ctx, draft.DraftID, actor.UserID)
		if err != nil {
			return err
		}
		if err := recordAudit(ctx, txRepo, actor, auditCellAssign, "draft_cell", cell.CellID, map[string]interface{}{
			"previous_physician_id": cell.PhysicianID,
			"physician_id":          req.PhysicianID,
			"warnings":              len(warnings),
		}); err != nil {
			return err
		}

		resp = &dto.AssignCellResponse{
			Cell: dto.CellResponse{
				CellID:      cell.CellID,
				WeekID:      cell.WeekID,
				RotationID:  cell.RotationID,
				PhysicianID: req.PhysicianID,
			},
			Version:  version,
			Warnings: warnings,
		}
		return nil
	})
	if err != nil {
		if pkgerrors.KindOf(err) == nil {
			s.logger.Error("手动排班失败", zap.String("draft_id", draft.DraftID), zap.Error(err))
		}
		return nil, err
	}

	s.cache.Invalidate(ctx, fy.FiscalYearID)
	return resp, nil
}

// ════════════════════════════════════════════════════════════
// AutoAssign
// ════════════════════════════════════════════════════════════

func (s *calendarService) AutoAssign(ctx context.Context, actor Actor) (*dto.AutoAssignResponse, error) {
	if err := authorize(actor, actDraftWrite, ""); err != nil {
		return nil, err
	}
	fy, err := currentFiscalYear(ctx, s.repo, model.FiscalYearBuilding)
	if err != nil {
		return nil, err
	}
	draft, err := s.getDraft(ctx, fy.FiscalYearID)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, draftLockKey(draft.DraftID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var resp *dto.AutoAssignResponse
	err = runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		if _, err := txRepo.Draft.LockByID(ctx, draft.DraftID); err != nil {
			return err
		}
		cells, err := txRepo.DraftCell.ListByDraft(ctx, draft.DraftID)
		if err != nil {
			return err
		}
		state, err := loadPlanState(ctx, txRepo, fy, cells)
		if err != nil {
			return err
		}

		plan := state.autoAssign()
		for _, p := range plan.Placements {
			physicianID := p.PhysicianID
			if err := txRepo.DraftCell.UpdatePhysician(ctx, p.CellID, &physicianID, actor.UserID); err != nil {
				return err
			}
		}
		version, err := txRepo.Draft.BumpVersion(ctx, draft.DraftID, actor.UserID)
		if err != nil {
			return err
		}
		if err := recordAudit(ctx, txRepo, actor, auditAutoAssign, "draft", draft.DraftID, map[string]interface{}{
			"assigned":  len(plan.Placements),
			"unstaffed": plan.RemainingUnstaffed,
		}); err != nil {
			return err
		}

		resp = &dto.AutoAssignResponse{
			AssignedCount:           len(plan.Placements),
			RemainingUnstaffedCount: state.unstaffedCount(),
			Warnings:                plan.Warnings,
			Version:                 version,
		}
		return nil
	})
	if err != nil {
		s.logger.Error("自动排班失败", zap.String("draft_id", draft.DraftID), zap.Error(err))
		return nil, err
	}

	s.cache.Invalidate(ctx, fy.FiscalYearID)
	s.logger.Info("自动排班完成",
		zap.String("draft_id", draft.DraftID),
		zap.Int("assigned", resp.AssignedCount),
		zap.Int("unstaffed", resp.RemainingUnstaffedCount),
	)
	return resp, nil
}

// ════════════════════════════════════════════════════════════
// 视图
// ════════════════════════════════════════════════════════════

func (s *calendarService) GetDraftGrid(ctx context.Context, actor Actor) (*dto.CalendarGrid, error) {
	if err := authorize(actor, actDraftRead, ""); err != nil {
		return nil, err
	}
	fy, err := readableFiscalYear(ctx, s.repo)
	if err != nil {
		return nil, err
	}
	draft, err := s.getDraft(ctx, fy.FiscalYearID)
	if err != nil {
		return nil, err
	}
	cells, err := s.repo.DraftCell.ListByDraft(ctx, draft.DraftID)
	if err != nil {
		return nil, err
	}

	entries := make(map[cellKey]gridEntry, len(cells))
	for _, c := range cells {
		entries[cellKey{c.WeekID, c.RotationID}] = gridEntry{id: c.CellID, physicianID: c.PhysicianID}
	}
	grid, err := s.grid(ctx, fy.FiscalYearID, entries)
	if err != nil {
		return nil, err
	}
	grid.Version = draft.Version
	grid.Published = draft.PublishedAt != nil
	return grid, nil
}

func (s *calendarService) GetPublishedGrid(ctx context.Context, actor Actor) (*dto.CalendarGrid, error) {
	if err := authorize(actor, actPublishedRead, ""); err != nil {
		return nil, err
	}
	fy, err := readableFiscalYear(ctx, s.repo)
	if err != nil {
		return nil, err
	}
	if fy.Status != model.FiscalYearPublished && fy.Status != model.FiscalYearArchived {
		return nil, pkgerrors.WithDetail(ErrCalendarNotPublished, fy.Status)
	}
	assignments, err := s.repo.Assignment.ListByFiscalYear(ctx, fy.FiscalYearID)
	if err != nil {
		return nil, err
	}

	entries := make(map[cellKey]gridEntry, len(assignments))
	for _, a := range assignments {
		physicianID := a.PhysicianID
		entries[cellKey{a.WeekID, a.RotationID}] = gridEntry{id: a.AssignmentID, physicianID: &physicianID}
	}
	grid, err := s.grid(ctx, fy.FiscalYearID, entries)
	if err != nil {
		return nil, err
	}
	grid.Published = true
	if draft, err := s.repo.Draft.GetByFiscalYear(ctx, fy.FiscalYearID); err == nil {
		grid.Version = draft.Version
	}
	return grid, nil
}

func (s *calendarService) grid(ctx context.Context, fiscalYearID string, entries map[cellKey]gridEntry) (*dto.CalendarGrid, error) {
	weeks, err := s.repo.Week.ListByFiscalYear(ctx, fiscalYearID, true)
	if err != nil {
		return nil, err
	}
	rotations, err := s.repo.Rotation.List(ctx, true)
	if err != nil {
		return nil, err
	}
	physicians, err := s.repo.Physician.List(ctx, false)
	if err != nil {
		return nil, err
	}
	return buildGrid(fiscalYearID, weeks, rotations, entries, physicians), nil
}

// ── 内部辅助方法 ──

func (s *calendarService) getDraft(ctx context.Context, fiscalYearID string) (*model.MasterCalendarDraft, error) {
	draft, err := s.repo.Draft.GetByFiscalYear(ctx, fiscalYearID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDraftNotFound
		}
		s.logger.Error("查询主日历草稿失败", zap.String("fiscal_year_id", fiscalYearID), zap.Error(err))
		return nil, err
	}
	return draft, nil
}

// loadPlanState 读取构建规划状态所需的全部数据
func loadPlanState(ctx context.Context, repo *repository.Repository, fy *model.FiscalYear, cells []model.DraftCell) (*planState, error) {
	weeks, err := repo.Week.ListByFiscalYear(ctx, fy.FiscalYearID, false)
	if err != nil {
		return nil, err
	}
	rotations, err := repo.Rotation.List(ctx, false)
	if err != nil {
		return nil, err
	}
	physicians, err := repo.Physician.List(ctx, false)
	if err != nil {
		return nil, err
	}
	approvals, err := repo.Approval.ListByFiscalYear(ctx, fy.FiscalYearID)
	if err != nil {
		return nil, err
	}
	weekPrefs, err := repo.WeekPreference.ListByFiscalYear(ctx, fy.FiscalYearID)
	if err != nil {
		return nil, err
	}
	rotationPrefs, err := repo.RotationPreference.ListByFiscalYear(ctx, fy.FiscalYearID)
	if err != nil {
		return nil, err
	}
	clinicTypes, err := repo.ClinicType.List(ctx, false)
	if err != nil {
		return nil, err
	}
	clinics, err := repo.ClinicAssignment.ListByFiscalYear(ctx, fy.FiscalYearID)
	if err != nil {
		return nil, err
	}
	targets, err := repo.CfteTarget.ListByFiscalYear(ctx, fy.FiscalYearID)
	if err != nil {
		return nil, err
	}

	clinicTypeByID := make(map[string]model.ClinicType, len(clinicTypes))
	for _, ct := range clinicTypes {
		clinicTypeByID[ct.ClinicTypeID] = ct
	}
	clinicsByPhysician := make(map[string][]model.PhysicianClinicAssignment)
	for _, c := range clinics {
		clinicsByPhysician[c.PhysicianID] = append(clinicsByPhysician[c.PhysicianID], c)
	}
	clinicTotals := make(map[string]float64, len(clinicsByPhysician))
	for id, list := range clinicsByPhysician {
		clinicTotals[id] = clinicCfte(list, clinicTypeByID)
	}

	return newPlanState(planInput{
		Weeks:         weeks,
		Rotations:     rotations,
		Physicians:    physicians,
		Approvals:     approvals,
		WeekPrefs:     weekPrefs,
		RotationPrefs: rotationPrefs,
		ClinicCfte:    clinicTotals,
		Targets:       targets,
		Cells:         cells,
	}), nil
}
