package dto

// ── 导出快照 ──

// ExportSnapshot 已发布日历的扁平快照，供各导出格式渲染
type ExportSnapshot struct {
	FiscalYear     FiscalYearResponse    `json:"fiscal_year"`
	Physicians     []ExportPhysician     `json:"physicians"`
	Weeks          []WeekResponse        `json:"weeks"`
	Rotations      []GridRotation        `json:"rotations"`
	Assignments    []ExportAssignment    `json:"assignments"`
	CalendarEvents []ExportCalendarEvent `json:"calendar_events"`
}

// ExportPhysician 医生
type ExportPhysician struct {
	PhysicianID string `json:"physician_id"`
	FullName    string `json:"full_name"`
	Initials    string `json:"initials"`
	Email       string `json:"email,omitempty"`
}

// ExportAssignment 已发布格子
type ExportAssignment struct {
	AssignmentID string `json:"assignment_id"`
	PhysicianID  string `json:"physician_id"`
	WeekID       string `json:"week_id"`
	RotationID   string `json:"rotation_id"`
	WeekNumber   int    `json:"week_number"`
	WeekStart    string `json:"week_start"`
	WeekEnd      string `json:"week_end"`
}

// ExportCalendarEvent 日历事件
type ExportCalendarEvent struct {
	EventID   string `json:"event_id"`
	Title     string `json:"title"`
	Category  string `json:"category"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}
