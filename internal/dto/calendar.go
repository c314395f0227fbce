package dto

// ── 主日历模块 DTO ──

// CreateDraftRequest 创建草稿
type CreateDraftRequest struct {
	FiscalYearID string `json:"fiscal_year_id" binding:"required,uuid"`
}

// DraftResponse 草稿概要
type DraftResponse struct {
	DraftID      string  `json:"draft_id"`
	FiscalYearID string  `json:"fiscal_year_id"`
	Version      int     `json:"version"`
	CellCount    int     `json:"cell_count"`
	PublishedAt  *string `json:"published_at,omitempty"`
}

// AssignCellRequest 手动排班（physician_id 为空表示清空格子）
type AssignCellRequest struct {
	WeekID      string  `json:"week_id"      binding:"required,uuid"`
	RotationID  string  `json:"rotation_id"  binding:"required,uuid"`
	PhysicianID *string `json:"physician_id" binding:"omitempty,uuid"`
}

// CellResponse 草稿格子
type CellResponse struct {
	CellID      string  `json:"cell_id"`
	WeekID      string  `json:"week_id"`
	RotationID  string  `json:"rotation_id"`
	PhysicianID *string `json:"physician_id"`
}

// 告警代码
const (
	WarnRedAvailability = "red_availability"
	WarnMaxConsecutive  = "max_consecutive_exceeded"
	WarnAvoidPreference = "avoid_preference"
	WarnOverTarget      = "over_target"
	WarnUnstaffed       = "unstaffed"
)

// CalendarWarning 非阻断告警：写入已生效，由排班员自行处理
type CalendarWarning struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	WeekID      string `json:"week_id,omitempty"`
	RotationID  string `json:"rotation_id,omitempty"`
	PhysicianID string `json:"physician_id,omitempty"`
}

// AssignCellResponse 手动排班结果
type AssignCellResponse struct {
	Cell     CellResponse      `json:"cell"`
	Version  int               `json:"version"`
	Warnings []CalendarWarning `json:"warnings"`
}

// AutoAssignResponse 自动排班结果
type AutoAssignResponse struct {
	AssignedCount           int               `json:"assigned_count"`
	RemainingUnstaffedCount int               `json:"remaining_unstaffed_count"`
	Warnings                []CalendarWarning `json:"warnings"`
	Version                 int               `json:"version"`
}

// ── 日历视图 ──

// CalendarGrid 周 × 轮转视图（按需计算）
type CalendarGrid struct {
	FiscalYearID   string         `json:"fiscal_year_id"`
	Published      bool           `json:"published"`
	Version        int            `json:"version"`
	Rotations      []GridRotation `json:"rotations"`
	Rows           []GridRow      `json:"rows"`
	UnstaffedCount int            `json:"unstaffed_count"`
}

// GridRotation 列头
type GridRotation struct {
	RotationID   string `json:"rotation_id"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
	SortOrder    int    `json:"sort_order"`
}

// GridRow 一周
type GridRow struct {
	WeekID         string     `json:"week_id"`
	WeekNumber     int        `json:"week_number"`
	WeekStart      string     `json:"week_start"`
	WeekEnd        string     `json:"week_end"`
	Cells          []GridCell `json:"cells"`
	UnstaffedCount int        `json:"unstaffed_count"`
}

// GridCell 一个格子；发布后 CellID 为 assignment id
type GridCell struct {
	CellID      string  `json:"cell_id,omitempty"`
	RotationID  string  `json:"rotation_id"`
	PhysicianID *string `json:"physician_id"`
	Initials    string  `json:"initials,omitempty"`
}
