package repository

import (
	"context"

	"gorm.io/gorm"

	"rota-planner/backend/internal/model"
)

// 参考数据（轮转、门诊类型、医生）由外部维护，此处只读；
// 日历事件可由管理员从 ICS 按类别整体导入

// RotationRepository 轮转数据访问接口
type RotationRepository interface {
	GetByID(ctx context.Context, id string) (*model.Rotation, error)
	List(ctx context.Context, activeOnly bool) ([]model.Rotation, error)
}

// ClinicTypeRepository 门诊类型数据访问接口
type ClinicTypeRepository interface {
	GetByID(ctx context.Context, id string) (*model.ClinicType, error)
	List(ctx context.Context, activeOnly bool) ([]model.ClinicType, error)
}

// PhysicianRepository 医生数据访问接口
type PhysicianRepository interface {
	GetByID(ctx context.Context, id string) (*model.Physician, error)
	List(ctx context.Context, activeOnly bool) ([]model.Physician, error)
}

// CalendarEventRepository 日历事件数据访问接口
type CalendarEventRepository interface {
	ListByFiscalYear(ctx context.Context, fiscalYearID string) ([]model.CalendarEvent, error)
	// ReplaceByCategory 删除该财年该类别的全部事件后写入 events
	ReplaceByCategory(ctx context.Context, fiscalYearID, category string, events []model.CalendarEvent) error
}

// ── Rotation ──

type rotationRepo struct {
	db *gorm.DB
}

// NewRotationRepo 创建 RotationRepository 实例
func NewRotationRepo(db *gorm.DB) RotationRepository {
	return &rotationRepo{db: db}
}

func (r *rotationRepo) GetByID(ctx context.Context, id string) (*model.Rotation, error) {
	var rot model.Rotation
	if err := r.db.WithContext(ctx).Where("rotation_id = ?", id).First(&rot).Error; err != nil {
		return nil, err
	}
	return &rot, nil
}

func (r *rotationRepo) List(ctx context.Context, activeOnly bool) ([]model.Rotation, error) {
	var list []model.Rotation
	q := r.db.WithContext(ctx)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	err := q.Order("sort_order ASC, name ASC").Find(&list).Error
	return list, err
}

// ── ClinicType ──

type clinicTypeRepo struct {
	db *gorm.DB
}

// NewClinicTypeRepo 创建 ClinicTypeRepository 实例
func NewClinicTypeRepo(db *gorm.DB) ClinicTypeRepository {
	return &clinicTypeRepo{db: db}
}

func (r *clinicTypeRepo) GetByID(ctx context.Context, id string) (*model.ClinicType, error) {
	var ct model.ClinicType
	if err := r.db.WithContext(ctx).Where("clinic_type_id = ?", id).First(&ct).Error; err != nil {
		return nil, err
	}
	return &ct, nil
}

func (r *clinicTypeRepo) List(ctx context.Context, activeOnly bool) ([]model.ClinicType, error) {
	var list []model.ClinicType
	q := r.db.WithContext(ctx)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	err := q.Order("name ASC").Find(&list).Error
	return list, err
}

// ── Physician ──

type physicianRepo struct {
	db *gorm.DB
}

// NewPhysicianRepo 创建 PhysicianRepository 实例
func NewPhysicianRepo(db *gorm.DB) PhysicianRepository {
	return &physicianRepo{db: db}
}

func (r *physicianRepo) GetByID(ctx context.Context, id string) (*model.Physician, error) {
	var p model.Physician
	if err := r.db.WithContext(ctx).Where("physician_id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *physicianRepo) List(ctx context.Context, activeOnly bool) ([]model.Physician, error) {
	var list []model.Physician
	q := r.db.WithContext(ctx)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	err := q.Order("last_name ASC, full_name ASC").Find(&list).Error
	return list, err
}

// ── CalendarEvent ──

type calendarEventRepo struct {
	db *gorm.DB
}

// NewCalendarEventRepo 创建 CalendarEventRepository 实例
func NewCalendarEventRepo(db *gorm.DB) CalendarEventRepository {
	return &calendarEventRepo{db: db}
}

func (r *calendarEventRepo) ListByFiscalYear(ctx context.Context, fiscalYearID string) ([]model.CalendarEvent, error) {
	var list []model.CalendarEvent
	err := r.db.WithContext(ctx).
		Where("fiscal_year_id = ?", fiscalYearID).
		Order("start_date ASC").
		Find(&list).Error
	return list, err
}

func (r *calendarEventRepo) ReplaceByCategory(ctx context.Context, fiscalYearID, category string, events []model.CalendarEvent) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("fiscal_year_id = ? AND category = ?", fiscalYearID, category).
		Delete(&model.CalendarEvent{}).Error; err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}
	return db.CreateInBatches(events, 100).Error
}
