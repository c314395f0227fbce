package service

import (
	"context"
	"errors"
	"math"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"rota-planner/backend/internal/dto"
	"rota-planner/backend/internal/model"
	"rota-planner/backend/internal/repository"
	pkgerrors "rota-planner/backend/pkg/errors"
)

// ── cFTE 模块业务错误 ──

var (
	ErrClinicTypeNotFound    = pkgerrors.New(pkgerrors.ErrNotFound, "门诊类型不存在")
	ErrHalfDaysOutOfRange    = pkgerrors.New(pkgerrors.ErrValidation, "每周半天数必须在 0 到 10 之间")
	ErrActiveWeeksOutOfRange = pkgerrors.New(pkgerrors.ErrValidation, "出诊周数必须在 0 到 52 之间")
	ErrDuplicateClinicType   = pkgerrors.New(pkgerrors.ErrValidation, "同一门诊类型不能重复提交")
	ErrNegativeTarget        = pkgerrors.New(pkgerrors.ErrValidation, "cFTE 目标不能为负数")
)

const (
	maxHalfDaysPerWeek = 10
	maxActiveWeeks     = 52
)

// CfteService 临床工作量（cFTE）业务接口
//
// 汇总为派生数据：发布前统计草稿格子，发布后统计已发布日历。
type CfteService interface {
	UpsertClinicAssignments(ctx context.Context, actor Actor, physicianID string, req *dto.UpsertClinicAssignmentsRequest) (*dto.CfteSummaryRow, error)
	SetTarget(ctx context.Context, actor Actor, physicianID string, req *dto.SetCfteTargetRequest) (*dto.CfteSummaryRow, error)
	GetSummary(ctx context.Context, actor Actor, physicianID string) (*dto.CfteSummaryRow, error)
	ListSummaries(ctx context.Context, actor Actor) ([]dto.CfteSummaryRow, error)
}

type cfteService struct {
	repo   *repository.Repository
	cache  SummaryCache
	logger *zap.Logger
}

// NewCfteService 创建 CfteService 实例
func NewCfteService(repo *repository.Repository, cache SummaryCache, logger *zap.Logger) CfteService {
	return &cfteService{repo: repo, cache: cache, logger: logger}
}

// roundCfte 保留 6 位小数
func roundCfte(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// clinicCfte Σ 每半天 cFTE × 每周半天数 × 出诊周数
func clinicCfte(assignments []model.PhysicianClinicAssignment, clinicTypes map[string]model.ClinicType) float64 {
	total := 0.0
	for _, a := range assignments {
		ct, ok := clinicTypes[a.ClinicTypeID]
		if !ok {
			continue
		}
		total += ct.CftePerHalfDay * float64(a.HalfDaysPerWeek) * float64(a.ActiveWeeks)
	}
	return total
}

// summarize 由各分量组装汇总行
func summarize(p model.Physician, clinic, rotation float64, rotationWeeks int, target *float64) dto.CfteSummaryRow {
	row := dto.CfteSummaryRow{
		PhysicianID:   p.PhysicianID,
		FullName:      p.FullName,
		ClinicCfte:    roundCfte(clinic),
		RotationCfte:  roundCfte(rotation),
		TotalCfte:     roundCfte(clinic + rotation),
		RotationWeeks: rotationWeeks,
	}
	if target != nil {
		t := roundCfte(*target)
		h := roundCfte(t - row.TotalCfte)
		row.TargetCfte = &t
		row.Headroom = &h
		row.IsOverTarget = row.TotalCfte > t
	}
	return row
}

// staffedCell 已排班的一个周 × 轮转
type staffedCell struct {
	WeekID      string
	RotationID  string
	PhysicianID string
}

// staffedCells 发布前读取草稿格子，发布后读取已发布日历
func staffedCells(ctx context.Context, repo *repository.Repository, fy *model.FiscalYear) ([]staffedCell, error) {
	if fy.Status == model.FiscalYearPublished || fy.Status == model.FiscalYearArchived {
		assignments, err := repo.Assignment.ListByFiscalYear(ctx, fy.FiscalYearID)
		if err != nil {
			return nil, err
		}
		cells := make([]staffedCell, 0, len(assignments))
		for _, a := range assignments {
			cells = append(cells, staffedCell{WeekID: a.WeekID, RotationID: a.RotationID, PhysicianID: a.PhysicianID})
		}
		return cells, nil
	}

	draft, err := repo.Draft.GetByFiscalYear(ctx, fy.FiscalYearID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	draftCells, err := repo.DraftCell.ListByDraft(ctx, draft.DraftID)
	if err != nil {
		return nil, err
	}
	cells := make([]staffedCell, 0, len(draftCells))
	for _, c := range draftCells {
		if c.PhysicianID == nil {
			continue
		}
		cells = append(cells, staffedCell{WeekID: c.WeekID, RotationID: c.RotationID, PhysicianID: *c.PhysicianID})
	}
	return cells, nil
}

// computeSummaries 计算财年内全部医生的 cFTE 汇总
func computeSummaries(ctx context.Context, repo *repository.Repository, fy *model.FiscalYear) ([]dto.CfteSummaryRow, error) {
	physicians, err := repo.Physician.List(ctx, false)
	if err != nil {
		return nil, err
	}
	rotations, err := repo.Rotation.List(ctx, false)
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
	cells, err := staffedCells(ctx, repo, fy)
	if err != nil {
		return nil, err
	}

	rotationByID := make(map[string]model.Rotation, len(rotations))
	for _, r := range rotations {
		rotationByID[r.RotationID] = r
	}
	clinicTypeByID := make(map[string]model.ClinicType, len(clinicTypes))
	for _, ct := range clinicTypes {
		clinicTypeByID[ct.ClinicTypeID] = ct
	}
	clinicsByPhysician := make(map[string][]model.PhysicianClinicAssignment)
	for _, c := range clinics {
		clinicsByPhysician[c.PhysicianID] = append(clinicsByPhysician[c.PhysicianID], c)
	}
	targetByPhysician := make(map[string]*float64, len(targets))
	for _, t := range targets {
		targetByPhysician[t.PhysicianID] = t.TargetCfte
	}
	rotationCfte := make(map[string]float64)
	rotationWeeks := make(map[string]int)
	for _, c := range cells {
		rotationCfte[c.PhysicianID] += rotationByID[c.RotationID].CftePerWeek
		rotationWeeks[c.PhysicianID]++
	}

	rows := make([]dto.CfteSummaryRow, 0, len(physicians))
	for _, p := range physicians {
		rows = append(rows, summarize(p,
			clinicCfte(clinicsByPhysician[p.PhysicianID], clinicTypeByID),
			rotationCfte[p.PhysicianID],
			rotationWeeks[p.PhysicianID],
			targetByPhysician[p.PhysicianID],
		))
	}
	return rows, nil
}

// ────────────────────── 写入 ──────────────────────

func (s *cfteService) UpsertClinicAssignments(ctx context.Context, actor Actor, physicianID string, req *dto.UpsertClinicAssignmentsRequest) (*dto.CfteSummaryRow, error) {
	if err := authorize(actor, actCfteWrite, physicianID); err != nil {
		return nil, err
	}
	fy, err := currentFiscalYear(ctx, s.repo)
	if err != nil {
		return nil, err
	}
	if err := s.ensurePhysician(ctx, physicianID); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(req.Assignments))
	for _, item := range req.Assignments {
		if item.HalfDaysPerWeek < 0 || item.HalfDaysPerWeek > maxHalfDaysPerWeek {
			return nil, ErrHalfDaysOutOfRange
		}
		if item.ActiveWeeks < 0 || item.ActiveWeeks > maxActiveWeeks {
			return nil, ErrActiveWeeksOutOfRange
		}
		if seen[item.ClinicTypeID] {
			return nil, pkgerrors.WithDetail(ErrDuplicateClinicType, item.ClinicTypeID)
		}
		seen[item.ClinicTypeID] = true
		if _, err := s.repo.ClinicType.GetByID(ctx, item.ClinicTypeID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.WithDetail(ErrClinicTypeNotFound, item.ClinicTypeID)
			}
			return nil, err
		}
	}

	err = runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		for _, item := range req.Assignments {
			// 任一数值为 0 即删除该门诊类型
			if item.HalfDaysPerWeek == 0 || item.ActiveWeeks == 0 {
				if err := txRepo.ClinicAssignment.Delete(ctx, fy.FiscalYearID, physicianID, item.ClinicTypeID); err != nil {
					return err
				}
				continue
			}
			a := &model.PhysicianClinicAssignment{
				FiscalYearID:    fy.FiscalYearID,
				PhysicianID:     physicianID,
				ClinicTypeID:    item.ClinicTypeID,
				HalfDaysPerWeek: item.HalfDaysPerWeek,
				ActiveWeeks:     item.ActiveWeeks,
			}
			a.CreatedBy = &actor.UserID
			a.UpdatedBy = &actor.UserID
			if err := txRepo.ClinicAssignment.Upsert(ctx, a); err != nil {
				return err
			}
		}
		return recordAudit(ctx, txRepo, actor, auditClinicUpsert, "physician", physicianID, map[string]interface{}{
			"fiscal_year_id": fy.FiscalYearID,
			"count":          len(req.Assignments),
		})
	})
	if err != nil {
		s.logger.Error("写入门诊排班量失败", zap.String("physician_id", physicianID), zap.Error(err))
		return nil, err
	}

	s.cache.Invalidate(ctx, fy.FiscalYearID)
	return s.summaryFor(ctx, fy, physicianID)
}

func (s *cfteService) SetTarget(ctx context.Context, actor Actor, physicianID string, req *dto.SetCfteTargetRequest) (*dto.CfteSummaryRow, error) {
	if err := authorize(actor, actCfteWrite, physicianID); err != nil {
		return nil, err
	}
	if req.TargetCfte != nil && *req.TargetCfte < 0 {
		return nil, ErrNegativeTarget
	}
	fy, err := currentFiscalYear(ctx, s.repo)
	if err != nil {
		return nil, err
	}
	if err := s.ensurePhysician(ctx, physicianID); err != nil {
		return nil, err
	}

	err = runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		t := &model.CfteTarget{
			FiscalYearID: fy.FiscalYearID,
			PhysicianID:  physicianID,
			TargetCfte:   req.TargetCfte,
		}
		t.CreatedBy = &actor.UserID
		t.UpdatedBy = &actor.UserID
		if err := txRepo.CfteTarget.Upsert(ctx, t); err != nil {
			return err
		}
		return recordAudit(ctx, txRepo, actor, auditTargetSet, "physician", physicianID, map[string]interface{}{
			"fiscal_year_id": fy.FiscalYearID,
			"target_cfte":    req.TargetCfte,
		})
	})
	if err != nil {
		s.logger.Error("设置 cFTE 目标失败", zap.String("physician_id", physicianID), zap.Error(err))
		return nil, err
	}

	s.cache.Invalidate(ctx, fy.FiscalYearID)
	return s.summaryFor(ctx, fy, physicianID)
}

// ────────────────────── 查询 ──────────────────────

func (s *cfteService) GetSummary(ctx context.Context, actor Actor, physicianID string) (*dto.CfteSummaryRow, error) {
	if err := authorize(actor, actCfteRead, physicianID); err != nil {
		return nil, err
	}
	fy, err := readableFiscalYear(ctx, s.repo)
	if err != nil {
		return nil, err
	}
	if err := s.ensurePhysician(ctx, physicianID); err != nil {
		return nil, err
	}
	return s.summaryFor(ctx, fy, physicianID)
}

func (s *cfteService) ListSummaries(ctx context.Context, actor Actor) ([]dto.CfteSummaryRow, error) {
	if err := authorize(actor, actCfteReadAll, ""); err != nil {
		return nil, err
	}
	fy, err := readableFiscalYear(ctx, s.repo)
	if err != nil {
		return nil, err
	}
	return s.summaries(ctx, fy)
}

// summaries 优先读缓存；未命中时计算并按读取时的 epoch 回写
func (s *cfteService) summaries(ctx context.Context, fy *model.FiscalYear) ([]dto.CfteSummaryRow, error) {
	rows, epoch, hit := s.cache.Load(ctx, fy.FiscalYearID)
	if hit {
		return rows, nil
	}
	rows, err := computeSummaries(ctx, s.repo, fy)
	if err != nil {
		s.logger.Error("计算 cFTE 汇总失败", zap.String("fiscal_year_id", fy.FiscalYearID), zap.Error(err))
		return nil, err
	}
	s.cache.Store(ctx, fy.FiscalYearID, epoch, rows)
	return rows, nil
}

func (s *cfteService) summaryFor(ctx context.Context, fy *model.FiscalYear, physicianID string) (*dto.CfteSummaryRow, error) {
	rows, err := s.summaries(ctx, fy)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if rows[i].PhysicianID == physicianID {
			return &rows[i], nil
		}
	}
	return nil, ErrPhysicianNotFound
}

func (s *cfteService) ensurePhysician(ctx context.Context, id string) error {
	if _, err := s.repo.Physician.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPhysicianNotFound
		}
		return err
	}
	return nil
}
