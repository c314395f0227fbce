package repository

import (
	"context"

	"gorm.io/gorm"

	"rota-planner/backend/internal/model"
	pkgerrors "rota-planner/backend/pkg/errors"
)

// FiscalYearRepository 财年数据访问接口
type FiscalYearRepository interface {
	Create(ctx context.Context, fy *model.FiscalYear) error
	GetByID(ctx context.Context, id string) (*model.FiscalYear, error)
	GetCurrent(ctx context.Context) (*model.FiscalYear, error)
	List(ctx context.Context) ([]model.FiscalYear, error)
	Update(ctx context.Context, fy *model.FiscalYear) error
	ClearCurrent(ctx context.Context) error
}

// WeekRepository 财年周数据访问接口
type WeekRepository interface {
	BatchCreate(ctx context.Context, weeks []model.Week) error
	GetByID(ctx context.Context, id string) (*model.Week, error)
	ListByFiscalYear(ctx context.Context, fiscalYearID string, activeOnly bool) ([]model.Week, error)
}

// ── FiscalYear Repository 实现 ──

type fiscalYearRepo struct {
	db *gorm.DB
}

// NewFiscalYearRepo 创建 FiscalYearRepository 实例
func NewFiscalYearRepo(db *gorm.DB) FiscalYearRepository {
	return &fiscalYearRepo{db: db}
}

func (r *fiscalYearRepo) Create(ctx context.Context, fy *model.FiscalYear) error {
	return r.db.WithContext(ctx).Create(fy).Error
}

func (r *fiscalYearRepo) GetByID(ctx context.Context, id string) (*model.FiscalYear, error) {
	var fy model.FiscalYear
	err := r.db.WithContext(ctx).
		Where("fiscal_year_id = ?", id).
		First(&fy).Error
	if err != nil {
		return nil, err
	}
	return &fy, nil
}

func (r *fiscalYearRepo) GetCurrent(ctx context.Context) (*model.FiscalYear, error) {
	var fy model.FiscalYear
	err := r.db.WithContext(ctx).
		Where("is_current = ?", true).
		First(&fy).Error
	if err != nil {
		return nil, err
	}
	return &fy, nil
}

func (r *fiscalYearRepo) List(ctx context.Context) ([]model.FiscalYear, error) {
	var list []model.FiscalYear
	err := r.db.WithContext(ctx).
		Order("start_date DESC").
		Find(&list).Error
	return list, err
}

// Update 乐观锁更新
func (r *fiscalYearRepo) Update(ctx context.Context, fy *model.FiscalYear) error {
	oldVersion := fy.Version
	result := r.db.WithContext(ctx).
		Model(&model.FiscalYear{}).
		Where("fiscal_year_id = ? AND version = ?", fy.FiscalYearID, oldVersion).
		Updates(map[string]interface{}{
			"label":      fy.Label,
			"status":     fy.Status,
			"is_current": fy.IsCurrent,
			"updated_by": fy.UpdatedBy,
			"updated_at": gorm.Expr("NOW()"),
			"version":    oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	fy.Version = oldVersion + 1
	return nil
}

// ClearCurrent 将所有财年的 is_current 设为 false
func (r *fiscalYearRepo) ClearCurrent(ctx context.Context) error {
	return r.db.WithContext(ctx).
		Model(&model.FiscalYear{}).
		Where("is_current = ?", true).
		Updates(map[string]interface{}{
			"is_current": false,
			"version":    gorm.Expr("version + 1"),
		}).Error
}

// ── Week Repository 实现 ──

type weekRepo struct {
	db *gorm.DB
}

// NewWeekRepo 创建 WeekRepository 实例
func NewWeekRepo(db *gorm.DB) WeekRepository {
	return &weekRepo{db: db}
}

func (r *weekRepo) BatchCreate(ctx context.Context, weeks []model.Week) error {
	if len(weeks) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(&weeks, 100).Error
}

func (r *weekRepo) GetByID(ctx context.Context, id string) (*model.Week, error) {
	var w model.Week
	err := r.db.WithContext(ctx).
		Where("week_id = ?", id).
		First(&w).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *weekRepo) ListByFiscalYear(ctx context.Context, fiscalYearID string, activeOnly bool) ([]model.Week, error) {
	var weeks []model.Week
	q := r.db.WithContext(ctx).Where("fiscal_year_id = ?", fiscalYearID)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	err := q.Order("week_number ASC").Find(&weeks).Error
	return weeks, err
}
