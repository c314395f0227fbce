package model

import "time"

// MasterCalendarDraft 主日历草稿 — 对应 master_calendar_drafts（每个财年一份）
type MasterCalendarDraft struct {
	DraftID      string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"draft_id"`
	FiscalYearID string     `gorm:"type:uuid;not null"                             json:"fiscal_year_id"`
	Version      int        `gorm:"not null;default:1"                             json:"version"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	BaseModel
}

func (MasterCalendarDraft) TableName() string { return "master_calendar_drafts" }

// DraftCell 草稿格子（周 × 轮转） — 对应 draft_cells
type DraftCell struct {
	CellID      string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"cell_id"`
	DraftID     string    `gorm:"type:uuid;not null"                             json:"draft_id"`
	WeekID      string    `gorm:"type:uuid;not null"                             json:"week_id"`
	RotationID  string    `gorm:"type:uuid;not null"                             json:"rotation_id"`
	PhysicianID *string   `gorm:"type:uuid"                                      json:"physician_id,omitempty"`
	UpdatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"updated_at"`
	UpdatedBy   *string   `gorm:"type:uuid"                                      json:"updated_by,omitempty"`
}

func (DraftCell) TableName() string { return "draft_cells" }

// CalendarAssignment 已发布的日历格子 — 对应 calendar_assignments
// AssignmentID 即换班中引用的 "assignment id"
type CalendarAssignment struct {
	AssignmentID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"assignment_id"`
	FiscalYearID string `gorm:"type:uuid;not null"                             json:"fiscal_year_id"`
	WeekID       string `gorm:"type:uuid;not null"                             json:"week_id"`
	RotationID   string `gorm:"type:uuid;not null"                             json:"rotation_id"`
	PhysicianID  string `gorm:"type:uuid;not null"                             json:"physician_id"`
	VersionedModel
}

func (CalendarAssignment) TableName() string { return "calendar_assignments" }
