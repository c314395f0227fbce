package model

import "time"

// 周可用性
const (
	AvailabilityGreen  = "green"
	AvailabilityYellow = "yellow"
	AvailabilityRed    = "red"
)

// 排班申请状态
const (
	RequestDraft     = "draft"
	RequestSubmitted = "submitted"
	RequestRevised   = "revised"
)

// 排班映射审批状态
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
)

// ScheduleRequest 医生年度排班申请 — 对应 schedule_requests
type ScheduleRequest struct {
	ScheduleRequestID string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"schedule_request_id"`
	FiscalYearID      string     `gorm:"type:uuid;not null"                             json:"fiscal_year_id"`
	PhysicianID       string     `gorm:"type:uuid;not null"                             json:"physician_id"`
	Status            string     `gorm:"type:varchar(20);not null;default:'draft'"      json:"status"` // draft | submitted | revised
	SpecialRequests   string     `gorm:"type:text;not null;default:''"                  json:"special_requests"`
	SubmittedAt       *time.Time `json:"submitted_at,omitempty"`
	BaseModel
}

func (ScheduleRequest) TableName() string { return "schedule_requests" }

// WeekPreference 周可用性偏好 — 对应 week_preferences
type WeekPreference struct {
	WeekPreferenceID  string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"week_preference_id"`
	FiscalYearID      string  `gorm:"type:uuid;not null"                             json:"fiscal_year_id"`
	PhysicianID       string  `gorm:"type:uuid;not null"                             json:"physician_id"`
	WeekID            string  `gorm:"type:uuid;not null"                             json:"week_id"`
	ScheduleRequestID *string `gorm:"type:uuid"                                      json:"schedule_request_id,omitempty"`
	Availability      string  `gorm:"type:varchar(10);not null;default:'yellow'"     json:"availability"`
	ReasonText        string  `gorm:"type:varchar(500);not null;default:''"          json:"reason_text,omitempty"`
	BaseModel
}

func (WeekPreference) TableName() string { return "week_preferences" }

// RotationPreference 轮转意愿 — 对应 rotation_preferences
// Avoid / Deprioritize / PreferenceRank 至多一项生效，都未设置即 willing
type RotationPreference struct {
	RotationPreferenceID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"rotation_preference_id"`
	FiscalYearID         string `gorm:"type:uuid;not null"                             json:"fiscal_year_id"`
	PhysicianID          string `gorm:"type:uuid;not null"                             json:"physician_id"`
	RotationID           string `gorm:"type:uuid;not null"                             json:"rotation_id"`
	Avoid                bool   `gorm:"not null;default:false"                         json:"avoid"`
	AvoidReason          string `gorm:"type:varchar(500);not null;default:''"          json:"avoid_reason,omitempty"`
	Deprioritize         bool   `gorm:"not null;default:false"                         json:"deprioritize"`
	PreferenceRank       *int   `gorm:"type:smallint"                                  json:"preference_rank,omitempty"`
	BaseModel
}

func (RotationPreference) TableName() string { return "rotation_preferences" }

// PhysicianApproval 排班映射审批 — 对应 physician_approvals
type PhysicianApproval struct {
	ApprovalID   string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"approval_id"`
	FiscalYearID string     `gorm:"type:uuid;not null"                             json:"fiscal_year_id"`
	PhysicianID  string     `gorm:"type:uuid;not null"                             json:"physician_id"`
	Status       string     `gorm:"type:varchar(20);not null;default:'pending'"    json:"status"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
	ApprovedBy   *string    `gorm:"type:uuid"                                      json:"approved_by,omitempty"`
	CreatedAt    time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
	UpdatedAt    time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"updated_at"`
}

func (PhysicianApproval) TableName() string { return "physician_approvals" }
