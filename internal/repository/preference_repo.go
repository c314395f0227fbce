package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rota-planner/backend/internal/model"
)

// ScheduleRequestRepository 排班申请数据访问接口
type ScheduleRequestRepository interface {
	Create(ctx context.Context, req *model.ScheduleRequest) error
	GetByPhysician(ctx context.Context, fiscalYearID, physicianID string) (*model.ScheduleRequest, error)
	ListByFiscalYear(ctx context.Context, fiscalYearID string) ([]model.ScheduleRequest, error)
	Update(ctx context.Context, req *model.ScheduleRequest) error
}

// WeekPreferenceRepository 周可用性数据访问接口
type WeekPreferenceRepository interface {
	ListByPhysician(ctx context.Context, fiscalYearID, physicianID string) ([]model.WeekPreference, error)
	ListByFiscalYear(ctx context.Context, fiscalYearID string) ([]model.WeekPreference, error)
	Upsert(ctx context.Context, prefs []model.WeekPreference) error
	ReplaceForPhysician(ctx context.Context, fiscalYearID, physicianID string, prefs []model.WeekPreference) error
}

// RotationPreferenceRepository 轮转意愿数据访问接口
type RotationPreferenceRepository interface {
	ListByPhysician(ctx context.Context, fiscalYearID, physicianID string) ([]model.RotationPreference, error)
	ListByFiscalYear(ctx context.Context, fiscalYearID string) ([]model.RotationPreference, error)
	Upsert(ctx context.Context, prefs []model.RotationPreference) error
}

// PhysicianApprovalRepository 排班映射审批数据访问接口
type PhysicianApprovalRepository interface {
	GetByPhysician(ctx context.Context, fiscalYearID, physicianID string) (*model.PhysicianApproval, error)
	ListByFiscalYear(ctx context.Context, fiscalYearID string) ([]model.PhysicianApproval, error)
	Upsert(ctx context.Context, approval *model.PhysicianApproval) error
}

// ── ScheduleRequest ──

type scheduleRequestRepo struct {
	db *gorm.DB
}

// NewScheduleRequestRepo 创建 ScheduleRequestRepository 实例
func NewScheduleRequestRepo(db *gorm.DB) ScheduleRequestRepository {
	return &scheduleRequestRepo{db: db}
}

func (r *scheduleRequestRepo) Create(ctx context.Context, req *model.ScheduleRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *scheduleRequestRepo) GetByPhysician(ctx context.Context, fiscalYearID, physicianID string) (*model.ScheduleRequest, error) {
	var req model.ScheduleRequest
	err := r.db.WithContext(ctx).
		Where("fiscal_year_id = ? AND physician_id = ?", fiscalYearID, physicianID).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *scheduleRequestRepo) ListByFiscalYear(ctx context.Context, fiscalYearID string) ([]model.ScheduleRequest, error) {
	var list []model.ScheduleRequest
	err := r.db.WithContext(ctx).
		Where("fiscal_year_id = ?", fiscalYearID).
		Find(&list).Error
	return list, err
}

func (r *scheduleRequestRepo) Update(ctx context.Context, req *model.ScheduleRequest) error {
	return r.db.WithContext(ctx).
		Model(&model.ScheduleRequest{}).
		Where("schedule_request_id = ?", req.ScheduleRequestID).
		Updates(map[string]interface{}{
			"status":           req.Status,
			"special_requests": req.SpecialRequests,
			"submitted_at":     req.SubmittedAt,
			"updated_by":       req.UpdatedBy,
			"updated_at":       gorm.Expr("NOW()"),
		}).Error
}

// ── WeekPreference ──

type weekPreferenceRepo struct {
	db *gorm.DB
}

// NewWeekPreferenceRepo 创建 WeekPreferenceRepository 实例
func NewWeekPreferenceRepo(db *gorm.DB) WeekPreferenceRepository {
	return &weekPreferenceRepo{db: db}
}

func (r *weekPreferenceRepo) ListByPhysician(ctx context.Context, fiscalYearID, physicianID string) ([]model.WeekPreference, error) {
	var list []model.WeekPreference
	err := r.db.WithContext(ctx).
		Where("fiscal_year_id = ? AND physician_id = ?", fiscalYearID, physicianID).
		Find(&list).Error
	return list, err
}

func (r *weekPreferenceRepo) ListByFiscalYear(ctx context.Context, fiscalYearID string) ([]model.WeekPreference, error) {
	var list []model.WeekPreference
	err := r.db.WithContext(ctx).
		Where("fiscal_year_id = ?", fiscalYearID).
		Find(&list).Error
	return list, err
}

// Upsert 按 (fiscal_year_id, physician_id, week_id) 幂等写入
func (r *weekPreferenceRepo) Upsert(ctx context.Context, prefs []model.WeekPreference) error {
	if len(prefs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "fiscal_year_id"}, {Name: "physician_id"}, {Name: "week_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"availability", "reason_text", "schedule_request_id", "updated_by", "updated_at",
			}),
		}).
		Create(&prefs).Error
}

// ReplaceForPhysician 整体替换某医生本财年的周偏好（需在事务中调用）
func (r *weekPreferenceRepo) ReplaceForPhysician(ctx context.Context, fiscalYearID, physicianID string, prefs []model.WeekPreference) error {
	if err := r.db.WithContext(ctx).
		Where("fiscal_year_id = ? AND physician_id = ?", fiscalYearID, physicianID).
		Delete(&model.WeekPreference{}).Error; err != nil {
		return err
	}
	if len(prefs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(&prefs, 100).Error
}

// ── RotationPreference ──

type rotationPreferenceRepo struct {
	db *gorm.DB
}

// NewRotationPreferenceRepo 创建 RotationPreferenceRepository 实例
func NewRotationPreferenceRepo(db *gorm.DB) RotationPreferenceRepository {
	return &rotationPreferenceRepo{db: db}
}

func (r *rotationPreferenceRepo) ListByPhysician(ctx context.Context, fiscalYearID, physicianID string) ([]model.RotationPreference, error) {
	var list []model.RotationPreference
	err := r.db.WithContext(ctx).
		Where("fiscal_year_id = ? AND physician_id = ?", fiscalYearID, physicianID).
		Find(&list).Error
	return list, err
}

func (r *rotationPreferenceRepo) ListByFiscalYear(ctx context.Context, fiscalYearID string) ([]model.RotationPreference, error) {
	var list []model.RotationPreference
	err := r.db.WithContext(ctx).
		Where("fiscal_year_id = ?", fiscalYearID).
		Find(&list).Error
	return list, err
}

// Upsert 按 (fiscal_year_id, physician_id, rotation_id) 幂等写入
func (r *rotationPreferenceRepo) Upsert(ctx context.Context, prefs []model.RotationPreference) error {
	if len(prefs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "fiscal_year_id"}, {Name: "physician_id"}, {Name: "rotation_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"avoid", "avoid_reason", "deprioritize", "preference_rank", "updated_by", "updated_at",
			}),
		}).
		Create(&prefs).Error
}

// ── PhysicianApproval ──

type physicianApprovalRepo struct {
	db *gorm.DB
}

// NewPhysicianApprovalRepo 创建 PhysicianApprovalRepository 实例
func NewPhysicianApprovalRepo(db *gorm.DB) PhysicianApprovalRepository {
	return &physicianApprovalRepo{db: db}
}

func (r *physicianApprovalRepo) GetByPhysician(ctx context.Context, fiscalYearID, physicianID string) (*model.PhysicianApproval, error) {
	var a model.PhysicianApproval
	err := r.db.WithContext(ctx).
		Where("fiscal_year_id = ? AND physician_id = ?", fiscalYearID, physicianID).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *physicianApprovalRepo) ListByFiscalYear(ctx context.Context, fiscalYearID string) ([]model.PhysicianApproval, error) {
	var list []model.PhysicianApproval
	err := r.db.WithContext(ctx).
		Where("fiscal_year_id = ?", fiscalYearID).
		Find(&list).Error
	return list, err
}

// Upsert 写入审批状态；已批准的行不会被降级
func (r *physicianApprovalRepo) Upsert(ctx context.Context, approval *model.PhysicianApproval) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "fiscal_year_id"}, {Name: "physician_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"status":      approval.Status,
				"approved_at": approval.ApprovedAt,
				"approved_by": approval.ApprovedBy,
				"updated_at":  gorm.Expr("NOW()"),
			}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Neq{Column: clause.Column{Table: "physician_approvals", Name: "status"}, Value: model.ApprovalApproved},
			}},
		}).
		Create(approval).Error
}
