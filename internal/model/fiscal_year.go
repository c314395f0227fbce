package model

import "time"

// 财年状态，严格按顺序前进
const (
	FiscalYearSetup      = "setup"
	FiscalYearCollecting = "collecting"
	FiscalYearBuilding   = "building"
	FiscalYearPublished  = "published"
	FiscalYearArchived   = "archived"
)

// FiscalYearStatuses 财年状态的先后顺序
var FiscalYearStatuses = []string{
	FiscalYearSetup,
	FiscalYearCollecting,
	FiscalYearBuilding,
	FiscalYearPublished,
	FiscalYearArchived,
}

// FiscalYear 财年表 — 对应 fiscal_years
type FiscalYear struct {
	FiscalYearID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"fiscal_year_id"`
	Label        string    `gorm:"type:varchar(50);not null"                      json:"label"`
	Status       string    `gorm:"type:varchar(20);not null;default:'setup'"      json:"status"`
	StartDate    time.Time `gorm:"type:date;not null"                             json:"start_date"`
	EndDate      time.Time `gorm:"type:date;not null"                             json:"end_date"`
	IsCurrent    bool      `gorm:"not null;default:false"                         json:"is_current"`
	VersionedModel
}

func (FiscalYear) TableName() string { return "fiscal_years" }

// Week 财年周 — 对应 weeks
type Week struct {
	WeekID       string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"week_id"`
	FiscalYearID string    `gorm:"type:uuid;not null"                             json:"fiscal_year_id"`
	WeekNumber   int       `gorm:"type:smallint;not null"                         json:"week_number"`
	StartDate    time.Time `gorm:"type:date;not null"                             json:"start_date"`
	EndDate      time.Time `gorm:"type:date;not null"                             json:"end_date"`
	IsActive     bool      `gorm:"not null;default:true"                          json:"is_active"`
	CreatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

func (Week) TableName() string { return "weeks" }
