package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rota-planner/backend/internal/model"
	pkgerrors "rota-planner/backend/pkg/errors"
)

// DraftRepository 主日历草稿数据访问接口
type DraftRepository interface {
	Create(ctx context.Context, draft *model.MasterCalendarDraft) error
	GetByFiscalYear(ctx context.Context, fiscalYearID string) (*model.MasterCalendarDraft, error)
	// LockByID 行锁读取草稿（SELECT ... FOR UPDATE），需在事务中调用
	LockByID(ctx context.Context, id string) (*model.MasterCalendarDraft, error)
	// BumpVersion 版本号原子加一，返回新版本
	BumpVersion(ctx context.Context, id string, updatedBy string) (int, error)
	MarkPublished(ctx context.Context, id string, at time.Time, updatedBy string) error
}

// DraftCellRepository 草稿格子数据访问接口
type DraftCellRepository interface {
	BatchCreate(ctx context.Context, cells []model.DraftCell) error
	ListByDraft(ctx context.Context, draftID string) ([]model.DraftCell, error)
	UpdatePhysician(ctx context.Context, cellID string, physicianID *string, updatedBy string) error
}

// CalendarAssignmentRepository 已发布日历数据访问接口
type CalendarAssignmentRepository interface {
	BatchCreate(ctx context.Context, assignments []model.CalendarAssignment) error
	GetByID(ctx context.Context, id string) (*model.CalendarAssignment, error)
	ListByFiscalYear(ctx context.Context, fiscalYearID string) ([]model.CalendarAssignment, error)
	ListByPhysician(ctx context.Context, fiscalYearID, physicianID string) ([]model.CalendarAssignment, error)
	// LockByIDs 按 assignment_id 升序加行锁，需在事务中调用
	LockByIDs(ctx context.Context, ids []string) ([]model.CalendarAssignment, error)
	// UpdatePhysician 乐观锁更新格子的医生
	UpdatePhysician(ctx context.Context, a *model.CalendarAssignment) error
}

// ── Draft ──

type draftRepo struct {
	db *gorm.DB
}

// NewDraftRepo 创建 DraftRepository 实例
func NewDraftRepo(db *gorm.DB) DraftRepository {
	return &draftRepo{db: db}
}

func (r *draftRepo) Create(ctx context.Context, draft *model.MasterCalendarDraft) error {
	return r.db.WithContext(ctx).Create(draft).Error
}

func (r *draftRepo) GetByFiscalYear(ctx context.Context, fiscalYearID string) (*model.MasterCalendarDraft, error) {
	var d model.MasterCalendarDraft
	err := r.db.WithContext(ctx).
		Where("fiscal_year_id = ?", fiscalYearID).
		First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *draftRepo) LockByID(ctx context.Context, id string) (*model.MasterCalendarDraft, error) {
	var d model.MasterCalendarDraft
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("draft_id = ?", id).
		First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *draftRepo) BumpVersion(ctx context.Context, id string, updatedBy string) (int, error) {
	var d model.MasterCalendarDraft
	result := r.db.WithContext(ctx).
		Model(&d).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "version"}}}).
		Where("draft_id = ?", id).
		Updates(map[string]interface{}{
			"version":    gorm.Expr("version + 1"),
			"updated_by": updatedBy,
			"updated_at": gorm.Expr("NOW()"),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	return d.Version, nil
}

func (r *draftRepo) MarkPublished(ctx context.Context, id string, at time.Time, updatedBy string) error {
	return r.db.WithContext(ctx).
		Model(&model.MasterCalendarDraft{}).
		Where("draft_id = ?", id).
		Updates(map[string]interface{}{
			"published_at": at,
			"updated_by":   updatedBy,
			"updated_at":   gorm.Expr("NOW()"),
		}).Error
}

// ── DraftCell ──

type draftCellRepo struct {
	db *gorm.DB
}

// NewDraftCellRepo 创建 DraftCellRepository 实例
func NewDraftCellRepo(db *gorm.DB) DraftCellRepository {
	return &draftCellRepo{db: db}
}

func (r *draftCellRepo) BatchCreate(ctx context.Context, cells []model.DraftCell) error {
	if len(cells) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(&cells, 200).Error
}

func (r *draftCellRepo) ListByDraft(ctx context.Context, draftID string) ([]model.DraftCell, error) {
	var cells []model.DraftCell
	err := r.db.WithContext(ctx).
		Where("draft_id = ?", draftID).
		Find(&cells).Error
	return cells, err
}

func (r *draftCellRepo) UpdatePhysician(ctx context.Context, cellID string, physicianID *string, updatedBy string) error {
	result := r.db.WithContext(ctx).
		Model(&model.DraftCell{}).
		Where("cell_id = ?", cellID).
		Updates(map[string]interface{}{
			"physician_id": physicianID,
			"updated_by":   updatedBy,
			"updated_at":   gorm.Expr("NOW()"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ── CalendarAssignment ──

type calendarAssignmentRepo struct {
	db *gorm.DB
}

// NewCalendarAssignmentRepo 创建 CalendarAssignmentRepository 实例
func NewCalendarAssignmentRepo(db *gorm.DB) CalendarAssignmentRepository {
	return &calendarAssignmentRepo{db: db}
}

func (r *calendarAssignmentRepo) BatchCreate(ctx context.Context, assignments []model.CalendarAssignment) error {
	if len(assignments) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(&assignments, 200).Error
}

func (r *calendarAssignmentRepo) GetByID(ctx context.Context, id string) (*model.CalendarAssignment, error) {
	var a model.CalendarAssignment
	err := r.db.WithContext(ctx).
		Where("assignment_id = ?", id).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *calendarAssignmentRepo) ListByFiscalYear(ctx context.Context, fiscalYearID string) ([]model.CalendarAssignment, error) {
	var list []model.CalendarAssignment
	err := r.db.WithContext(ctx).
		Where("fiscal_year_id = ?", fiscalYearID).
		Find(&list).Error
	return list, err
}

func (r *calendarAssignmentRepo) ListByPhysician(ctx context.Context, fiscalYearID, physicianID string) ([]model.CalendarAssignment, error) {
	var list []model.CalendarAssignment
	err := r.db.WithContext(ctx).
		Where("fiscal_year_id = ? AND physician_id = ?", fiscalYearID, physicianID).
		Find(&list).Error
	return list, err
}

func (r *calendarAssignmentRepo) LockByIDs(ctx context.Context, ids []string) ([]model.CalendarAssignment, error) {
	var list []model.CalendarAssignment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("assignment_id IN ?", ids).
		Order("assignment_id ASC").
		Find(&list).Error
	return list, err
}

func (r *calendarAssignmentRepo) UpdatePhysician(ctx context.Context, a *model.CalendarAssignment) error {
	oldVersion := a.Version
	result := r.db.WithContext(ctx).
		Model(&model.CalendarAssignment{}).
		Where("assignment_id = ? AND version = ?", a.AssignmentID, oldVersion).
		Updates(map[string]interface{}{
			"physician_id": a.PhysicianID,
			"updated_by":   a.UpdatedBy,
			"updated_at":   gorm.Expr("NOW()"),
			"version":      oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	a.Version = oldVersion + 1
	return nil
}
