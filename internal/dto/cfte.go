package dto

// ── cFTE 模块 DTO ──

// ClinicAssignmentItem 门诊排班量，任一数值为 0 表示删除
type ClinicAssignmentItem struct {
	ClinicTypeID    string `json:"clinic_type_id"     binding:"required,uuid"`
	HalfDaysPerWeek int    `json:"half_days_per_week"`
	ActiveWeeks     int    `json:"active_weeks"`
}

// UpsertClinicAssignmentsRequest 批量写入门诊排班量
type UpsertClinicAssignmentsRequest struct {
	Assignments []ClinicAssignmentItem `json:"assignments" binding:"required,min=1,dive"`
}

// SetCfteTargetRequest 设置年度 cFTE 目标，null 表示清除
type SetCfteTargetRequest struct {
	TargetCfte *float64 `json:"target_cfte"`
}

// CfteSummaryRow cFTE 汇总（派生数据）
type CfteSummaryRow struct {
	PhysicianID   string   `json:"physician_id"`
	FullName      string   `json:"full_name"`
	ClinicCfte    float64  `json:"clinic_cfte"`
	RotationCfte  float64  `json:"rotation_cfte"`
	TotalCfte     float64  `json:"total_cfte"`
	TargetCfte    *float64 `json:"target_cfte"`
	Headroom      *float64 `json:"headroom"`
	IsOverTarget  bool     `json:"is_over_target"`
	RotationWeeks int      `json:"rotation_weeks"`
}
