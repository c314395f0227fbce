package model

import "time"

// 换班状态
const (
	TradeProposed      = "proposed"
	TradePeerAccepted  = "peer_accepted"
	TradePeerDeclined  = "peer_declined"
	TradeAdminApproved = "admin_approved"
	TradeAdminDenied   = "admin_denied"
	TradeCancelled     = "cancelled"
)

// LiveTradeStatuses 未终结的换班状态
var LiveTradeStatuses = []string{TradeProposed, TradePeerAccepted}

// TradeRequest 换班申请 — 对应 trade_requests
type TradeRequest struct {
	TradeRequestID        string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"trade_request_id"`
	FiscalYearID          string     `gorm:"type:uuid;not null"                             json:"fiscal_year_id"`
	RequesterPhysicianID  string     `gorm:"type:uuid;not null"                             json:"requester_physician_id"`
	RequesterAssignmentID string     `gorm:"type:uuid;not null"                             json:"requester_assignment_id"`
	TargetPhysicianID     string     `gorm:"type:uuid;not null"                             json:"target_physician_id"`
	TargetAssignmentID    string     `gorm:"type:uuid;not null"                             json:"target_assignment_id"`
	Reason                string     `gorm:"type:varchar(500);not null;default:''"          json:"reason,omitempty"`
	Status                string     `gorm:"type:varchar(20);not null;default:'proposed'"   json:"status"`
	RespondedAt           *time.Time `json:"responded_at,omitempty"`
	ResolvedAt            *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy            *string    `gorm:"type:uuid"                                      json:"resolved_by,omitempty"`
	AdminNote             string     `gorm:"type:varchar(500);not null;default:''"          json:"admin_note,omitempty"`
	VersionedModel
}

func (TradeRequest) TableName() string { return "trade_requests" }

// IsTerminal 是否为终结状态
func (t *TradeRequest) IsTerminal() bool {
	return t.Status != TradeProposed && t.Status != TradePeerAccepted
}
