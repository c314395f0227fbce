package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rota-planner/backend/internal/model"
)

// ClinicAssignmentRepository 门诊排班量数据访问接口
type ClinicAssignmentRepository interface {
	ListByPhysician(ctx context.Context, fiscalYearID, physicianID string) ([]model.PhysicianClinicAssignment, error)
	ListByFiscalYear(ctx context.Context, fiscalYearID string) ([]model.PhysicianClinicAssignment, error)
	Upsert(ctx context.Context, a *model.PhysicianClinicAssignment) error
	Delete(ctx context.Context, fiscalYearID, physicianID, clinicTypeID string) error
}

// CfteTargetRepository cFTE 目标数据访问接口
type CfteTargetRepository interface {
	GetByPhysician(ctx context.Context, fiscalYearID, physicianID string) (*model.CfteTarget, error)
	ListByFiscalYear(ctx context.Context, fiscalYearID string) ([]model.CfteTarget, error)
	Upsert(ctx context.Context, t *model.CfteTarget) error
}

// ── ClinicAssignment ──

type clinicAssignmentRepo struct {
	db *gorm.DB
}

// NewClinicAssignmentRepo 创建 ClinicAssignmentRepository 实例
func NewClinicAssignmentRepo(db *gorm.DB) ClinicAssignmentRepository {
	return &clinicAssignmentRepo{db: db}
}

func (r *clinicAssignmentRepo) ListByPhysician(ctx context.Context, fiscalYearID, physicianID string) ([]model.PhysicianClinicAssignment, error) {
	var list []model.PhysicianClinicAssignment
	err := r.db.WithContext(ctx).
		Where("fiscal_year_id = ? AND physician_id = ?", fiscalYearID, physicianID).
		Find(&list).Error
	return list, err
}

func (r *clinicAssignmentRepo) ListByFiscalYear(ctx context.Context, fiscalYearID string) ([]model.PhysicianClinicAssignment, error) {
	var list []model.PhysicianClinicAssignment
	err := r.db.WithContext(ctx).
		Where("fiscal_year_id = ?", fiscalYearID).
		Find(&list).Error
	return list, err
}

func (r *clinicAssignmentRepo) Upsert(ctx context.Context, a *model.PhysicianClinicAssignment) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "fiscal_year_id"}, {Name: "physician_id"}, {Name: "clinic_type_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"half_days_per_week", "active_weeks", "updated_by", "updated_at",
			}),
		}).
		Create(a).Error
}

func (r *clinicAssignmentRepo) Delete(ctx context.Context, fiscalYearID, physicianID, clinicTypeID string) error {
	return r.db.WithContext(ctx).
		Where("fiscal_year_id = ? AND physician_id = ? AND clinic_type_id = ?", fiscalYearID, physicianID, clinicTypeID).
		Delete(&model.PhysicianClinicAssignment{}).Error
}

// ── CfteTarget ──

type cfteTargetRepo struct {
	db *gorm.DB
}

// NewCfteTargetRepo 创建 CfteTargetRepository 实例
func NewCfteTargetRepo(db *gorm.DB) CfteTargetRepository {
	return &cfteTargetRepo{db: db}
}

func (r *cfteTargetRepo) GetByPhysician(ctx context.Context, fiscalYearID, physicianID string) (*model.CfteTarget, error) {
	var t model.CfteTarget
	err := r.db.WithContext(ctx).
		Where("fiscal_year_id = ? AND physician_id = ?", fiscalYearID, physicianID).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *cfteTargetRepo) ListByFiscalYear(ctx context.Context, fiscalYearID string) ([]model.CfteTarget, error) {
	var list []model.CfteTarget
	err := r.db.WithContext(ctx).
		Where("fiscal_year_id = ?", fiscalYearID).
		Find(&list).Error
	return list, err
}

func (r *cfteTargetRepo) Upsert(ctx context.Context, t *model.CfteTarget) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "fiscal_year_id"}, {Name: "physician_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"target_cfte", "updated_by", "updated_at"}),
		}).
		Create(t).Error
}
