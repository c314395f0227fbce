package model

import "time"

// Rotation 住院轮转线 — 对应 rotations（每个启用周需要一名医生）
type Rotation struct {
	RotationID          string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"rotation_id"`
	Name                string    `gorm:"type:varchar(100);not null"                     json:"name"`
	Abbreviation        string    `gorm:"type:varchar(20);not null"                      json:"abbreviation"`
	CftePerWeek         float64   `gorm:"type:numeric(8,6);not null;default:0"           json:"cfte_per_week"`
	MinStaff            int       `gorm:"type:smallint;not null;default:1"               json:"min_staff"`
	MaxConsecutiveWeeks int       `gorm:"type:smallint;not null;default:1"               json:"max_consecutive_weeks"`
	IsActive            bool      `gorm:"not null;default:true"                          json:"is_active"`
	SortOrder           int       `gorm:"not null;default:0"                             json:"sort_order"`
	CreatedAt           time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
	UpdatedAt           time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"updated_at"`
}

func (Rotation) TableName() string { return "rotations" }

// ClinicType 门诊类型 — 对应 clinic_types
type ClinicType struct {
	ClinicTypeID   string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"clinic_type_id"`
	Name           string    `gorm:"type:varchar(100);not null"                     json:"name"`
	CftePerHalfDay float64   `gorm:"type:numeric(8,6);not null;default:0"           json:"cfte_per_half_day"`
	IsActive       bool      `gorm:"not null;default:true"                          json:"is_active"`
	CreatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"updated_at"`
}

func (ClinicType) TableName() string { return "clinic_types" }

// Physician 医生 — 对应 physicians
type Physician struct {
	PhysicianID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"physician_id"`
	FullName    string    `gorm:"type:varchar(100);not null"                     json:"full_name"`
	LastName    string    `gorm:"type:varchar(50);not null"                      json:"last_name"`
	Initials    string    `gorm:"type:varchar(10);not null"                      json:"initials"`
	Email       string    `gorm:"type:varchar(255)"                              json:"email,omitempty"`
	IsActive    bool      `gorm:"not null;default:true"                          json:"is_active"`
	CreatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"updated_at"`
}

func (Physician) TableName() string { return "physicians" }

// 日历事件类别
const (
	EventHoliday    = "holiday"
	EventConference = "conference"
	EventOther      = "other"
)

// EventCategories 允许的日历事件类别
var EventCategories = []string{EventHoliday, EventConference, EventOther}

// CalendarEvent 节假日/会议等日历事件 — 对应 calendar_events，可从 ICS 按类别整体导入
type CalendarEvent struct {
	EventID      string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"event_id"`
	FiscalYearID string    `gorm:"type:uuid;not null"                             json:"fiscal_year_id"`
	Title        string    `gorm:"type:varchar(200);not null"                     json:"title"`
	Category     string    `gorm:"type:varchar(30);not null;default:'holiday'"    json:"category"`
	StartDate    time.Time `gorm:"type:date;not null"                             json:"start_date"`
	EndDate      time.Time `gorm:"type:date;not null"                             json:"end_date"`
	CreatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

func (CalendarEvent) TableName() string { return "calendar_events" }
