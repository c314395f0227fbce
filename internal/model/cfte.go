package model

// PhysicianClinicAssignment 门诊排班量 — 对应 physician_clinic_assignments
// 任一数值为 0 时行不存在
type PhysicianClinicAssignment struct {
	ClinicAssignmentID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"clinic_assignment_id"`
	FiscalYearID       string `gorm:"type:uuid;not null"                             json:"fiscal_year_id"`
	PhysicianID        string `gorm:"type:uuid;not null"                             json:"physician_id"`
	ClinicTypeID       string `gorm:"type:uuid;not null"                             json:"clinic_type_id"`
	HalfDaysPerWeek    int    `gorm:"type:smallint;not null"                         json:"half_days_per_week"`
	ActiveWeeks        int    `gorm:"type:smallint;not null"                         json:"active_weeks"`
	BaseModel
}

func (PhysicianClinicAssignment) TableName() string { return "physician_clinic_assignments" }

// CfteTarget 年度 cFTE 目标 — 对应 cfte_targets，TargetCfte 为空表示未设目标
type CfteTarget struct {
	CfteTargetID string   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"cfte_target_id"`
	FiscalYearID string   `gorm:"type:uuid;not null"                             json:"fiscal_year_id"`
	PhysicianID  string   `gorm:"type:uuid;not null"                             json:"physician_id"`
	TargetCfte   *float64 `gorm:"type:numeric(8,6)"                              json:"target_cfte"`
	BaseModel
}

func (CfteTarget) TableName() string { return "cfte_targets" }
