package dto

// ── 换班模块 DTO ──

// ProposeTradeRequest 发起换班
type ProposeTradeRequest struct {
	RequesterAssignmentID string `json:"requester_assignment_id" binding:"required,uuid"`
	TargetAssignmentID    string `json:"target_assignment_id"    binding:"required,uuid,nefield=RequesterAssignmentID"`
	Reason                string `json:"reason"                  binding:"max=500"`
}

// RespondTradeRequest 目标医生答复
type RespondTradeRequest struct {
	Decision string `json:"decision" binding:"required,trade_decision"` // accept | decline
}

// ResolveTradeRequest 管理员裁决
type ResolveTradeRequest struct {
	Approve *bool  `json:"approve" binding:"required"`
	Note    string `json:"note"    binding:"max=500"`
}

// TradeListRequest 换班列表查询参数
type TradeListRequest struct {
	Status string `form:"status" binding:"omitempty,trade_status"`
	Mine   bool   `form:"mine"`
	PaginationRequest
}

// TradeResponse 换班申请
type TradeResponse struct {
	ID                    string  `json:"id"`
	FiscalYearID          string  `json:"fiscal_year_id"`
	RequesterPhysicianID  string  `json:"requester_physician_id"`
	RequesterAssignmentID string  `json:"requester_assignment_id"`
	TargetPhysicianID     string  `json:"target_physician_id"`
	TargetAssignmentID    string  `json:"target_assignment_id"`
	Reason                string  `json:"reason,omitempty"`
	Status                string  `json:"status"`
	RespondedAt           *string `json:"responded_at,omitempty"`
	ResolvedAt            *string `json:"resolved_at,omitempty"`
	ResolvedBy            *string `json:"resolved_by,omitempty"`
	AdminNote             string  `json:"admin_note,omitempty"`
	Version               int     `json:"version"`
	CreatedAt             string  `json:"created_at"`
}
