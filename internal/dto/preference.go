package dto

// ── 偏好模块 DTO ──

// WeekPreferenceItem 单周可用性
type WeekPreferenceItem struct {
	WeekID       string `json:"week_id"      binding:"required,uuid"`
	Availability string `json:"availability" binding:"required,availability"`
	ReasonText   string `json:"reason_text"  binding:"max=500"`
}

// UpsertWeekPreferencesRequest 批量写入周可用性
type UpsertWeekPreferencesRequest struct {
	Preferences []WeekPreferenceItem `json:"preferences" binding:"required,min=1,dive"`
}

// WeekPreferenceResponse 周可用性（未填写的周按 yellow 返回）
type WeekPreferenceResponse struct {
	WeekID       string `json:"week_id"`
	WeekNumber   int    `json:"week_number"`
	WeekStart    string `json:"week_start"`
	Availability string `json:"availability"`
	ReasonText   string `json:"reason_text,omitempty"`
	IsDefault    bool   `json:"is_default"`
}

// RotationPreferenceItem 单个轮转意愿
// avoid / deprioritize / preference_rank 至多设置一项，都不设置即 willing
type RotationPreferenceItem struct {
	RotationID     string `json:"rotation_id"     binding:"required,uuid"`
	Avoid          bool   `json:"avoid"`
	AvoidReason    string `json:"avoid_reason"    binding:"max=500"`
	Deprioritize   bool   `json:"deprioritize"`
	PreferenceRank *int   `json:"preference_rank"`
}

// UpsertRotationPreferencesRequest 批量写入轮转意愿
type UpsertRotationPreferencesRequest struct {
	Preferences []RotationPreferenceItem `json:"preferences" binding:"required,min=1,dive"`
}

// RotationPreferenceResponse 轮转意愿
type RotationPreferenceResponse struct {
	RotationID     string `json:"rotation_id"`
	RotationName   string `json:"rotation_name"`
	Mode           string `json:"mode"` // avoid | deprioritize | ranked | willing
	AvoidReason    string `json:"avoid_reason,omitempty"`
	PreferenceRank *int   `json:"preference_rank,omitempty"`
}

// RotationPreferenceMatrix 医生的轮转意愿矩阵及完整度
type RotationPreferenceMatrix struct {
	PhysicianID      string                       `json:"physician_id"`
	Preferences      []RotationPreferenceResponse `json:"preferences"`
	ConfiguredCount  int                          `json:"configured_count"`
	RequiredCount    int                          `json:"required_count"`
	MissingRotations []string                     `json:"missing_rotations"`
	IsComplete       bool                         `json:"is_complete"`
}

// SubmitScheduleRequestRequest 提交排班申请
type SubmitScheduleRequestRequest struct {
	SpecialRequests string `json:"special_requests" binding:"max=2000"`
}

// ScheduleRequestResponse 排班申请
type ScheduleRequestResponse struct {
	ID              string  `json:"id"`
	PhysicianID     string  `json:"physician_id"`
	Status          string  `json:"status"`
	SpecialRequests string  `json:"special_requests,omitempty"`
	SubmittedAt     *string `json:"submitted_at,omitempty"`
}

// ── 审批面板 ──

// ApprovalPanelResponse 排班映射审批面板
type ApprovalPanelResponse struct {
	FiscalYearID   string                 `json:"fiscal_year_id"`
	RequiredCount  int                    `json:"required_count"`
	BlockingReason string                 `json:"blocking_reason,omitempty"` // 轮转配置不合法时整个面板被阻塞
	Physicians     []PhysicianApprovalRow `json:"physicians"`
}

// PhysicianApprovalRow 面板中的医生行
type PhysicianApprovalRow struct {
	PhysicianID           string   `json:"physician_id"`
	FullName              string   `json:"full_name"`
	Initials              string   `json:"initials"`
	ConfiguredCount       int      `json:"configured_count"`
	RequiredCount         int      `json:"required_count"`
	MissingRotations      []string `json:"missing_rotations"`
	HasScheduleRequest    bool     `json:"has_schedule_request"`
	ScheduleRequestStatus string   `json:"schedule_request_status,omitempty"`
	ApprovalStatus        string   `json:"approval_status"`
	CanApprove            bool     `json:"can_approve"`
}

// PhysicianApprovalResponse 审批结果
type PhysicianApprovalResponse struct {
	PhysicianID    string  `json:"physician_id"`
	ApprovalStatus string  `json:"approval_status"`
	ApprovedAt     *string `json:"approved_at,omitempty"`
	ApprovedBy     *string `json:"approved_by,omitempty"`
}

// ── 导入 ──

// ScheduleImportPayload 上传文件解析后的内容
type ScheduleImportPayload struct {
	SourceFiscalYearLabel string       `json:"source_fiscal_year_label"`
	SourceDoctorToken     string       `json:"source_doctor_token"`
	Weeks                 []ImportWeek `json:"weeks"`
}

// ImportWeek 导入的单周可用性
type ImportWeek struct {
	WeekStart    string `json:"week_start"`
	Availability string `json:"availability"`
}
