package dto

// ── 日历事件 ──

// ImportCalendarEventsRequest 从 ICS 订阅地址导入日历事件
type ImportCalendarEventsRequest struct {
	URL      string `json:"url"      binding:"required,url"`
	Category string `json:"category" binding:"omitempty,event_category"`
}

// CalendarEventImportResponse 导入结果
type CalendarEventImportResponse struct {
	Category string                `json:"category"`
	Imported int                   `json:"imported"`
	Events   []ExportCalendarEvent `json:"events"`
}
