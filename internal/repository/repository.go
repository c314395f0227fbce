package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db *gorm.DB

	FiscalYear         FiscalYearRepository
	Week               WeekRepository
	Rotation           RotationRepository
	ClinicType         ClinicTypeRepository
	Physician          PhysicianRepository
	CalendarEvent      CalendarEventRepository
	ScheduleRequest    ScheduleRequestRepository
	WeekPreference     WeekPreferenceRepository
	RotationPreference RotationPreferenceRepository
	Approval           PhysicianApprovalRepository
	ClinicAssignment   ClinicAssignmentRepository
	CfteTarget         CfteTargetRepository
	Draft              DraftRepository
	DraftCell          DraftCellRepository
	Assignment         CalendarAssignmentRepository
	Trade              TradeRequestRepository
	AuditLog           AuditLogRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:                 db,
		FiscalYear:         NewFiscalYearRepo(db),
		Week:               NewWeekRepo(db),
		Rotation:           NewRotationRepo(db),
		ClinicType:         NewClinicTypeRepo(db),
		Physician:          NewPhysicianRepo(db),
		CalendarEvent:      NewCalendarEventRepo(db),
		ScheduleRequest:    NewScheduleRequestRepo(db),
		WeekPreference:     NewWeekPreferenceRepo(db),
		RotationPreference: NewRotationPreferenceRepo(db),
		Approval:           NewPhysicianApprovalRepo(db),
		ClinicAssignment:   NewClinicAssignmentRepo(db),
		CfteTarget:         NewCfteTargetRepo(db),
		Draft:              NewDraftRepo(db),
		DraftCell:          NewDraftCellRepo(db),
		Assignment:         NewCalendarAssignmentRepo(db),
		Trade:              NewTradeRequestRepo(db),
		AuditLog:           NewAuditLogRepo(db),
	}
}

// BeginTx 开启事务；未绑定数据库（单元测试中的内存实现）时返回 nil
func (r *Repository) BeginTx(ctx context.Context) (*gorm.DB, error) {
	if r.db == nil {
		return nil, nil
	}
	tx := r.db.WithContext(ctx).Begin()
	return tx, tx.Error
}

// WithTx 返回绑定到事务的 Repository；tx 为 nil 时返回自身
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return NewRepository(tx)
}
