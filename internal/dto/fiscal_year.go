package dto

// ── 财年模块 DTO ──

// CreateFiscalYearRequest 创建财年请求
type CreateFiscalYearRequest struct {
	Label     string `json:"label"      binding:"required,min=2,max=50"`
	StartDate string `json:"start_date" binding:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date"   binding:"required,datetime=2006-01-02"`
}

// TransitionFiscalYearRequest 财年状态流转请求
type TransitionFiscalYearRequest struct {
	Status string `json:"status" binding:"required,fiscal_year_status"`
}

// FiscalYearResponse 财年响应
type FiscalYearResponse struct {
	ID        string         `json:"id"`
	Label     string         `json:"label"`
	Status    string         `json:"status"`
	StartDate string         `json:"start_date"`
	EndDate   string         `json:"end_date"`
	IsCurrent bool           `json:"is_current"`
	Version   int            `json:"version"`
	Weeks     []WeekResponse `json:"weeks,omitempty"`
}

// WeekResponse 财年周
type WeekResponse struct {
	ID         string `json:"id"`
	WeekNumber int    `json:"week_number"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	IsActive   bool   `json:"is_active"`
}
