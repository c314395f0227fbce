package service

import (
	pkgerrors "rota-planner/backend/pkg/errors"
	"rota-planner/backend/pkg/jwt"
)

// ── 权限 ──

var (
	ErrForbidden         = pkgerrors.New(pkgerrors.ErrPermission, "无权限执行该操作")
	ErrNotPhysicianActor = pkgerrors.New(pkgerrors.ErrPermission, "当前账号未关联医生")
)

// Actor 操作者身份，由认证中间件从 Access Token 中解析
type Actor struct {
	UserID      string
	Role        string
	PhysicianID string
}

// IsAdmin 是否管理员
func (a Actor) IsAdmin() bool { return a.Role == jwt.RoleAdmin }

type action string

const (
	actFiscalYearWrite action = "fiscal_year.write"
	actPreferenceRead  action = "preference.read"
	actPreferenceWrite action = "preference.write"
	actApprovalRead    action = "approval.read"
	actApprove         action = "approval.approve"
	actCfteWrite       action = "cfte.write"
	actCfteRead        action = "cfte.read"
	actCfteReadAll     action = "cfte.read_all"
	actDraftWrite      action = "draft.write"
	actDraftRead       action = "draft.read"
	actPublishedRead   action = "published.read"
	actTradePropose    action = "trade.propose"
	actTradeRespond    action = "trade.respond"
	actTradeCancel     action = "trade.cancel"
	actTradeResolve    action = "trade.resolve"
	actTradeRead       action = "trade.read"
	actExportAll       action = "export.all"
	actExportOwn       action = "export.own"
	actEventWrite      action = "calendar_event.write"
	actEventRead       action = "calendar_event.read"
)

type rule int

const (
	ruleAdmin         rule = iota // 仅管理员
	ruleSelf                      // 仅医生本人（管理员不可代办）
	ruleSelfOrAdmin               // 医生本人或管理员
	ruleAuthenticated             // 任意已认证用户
)

// 所有写操作前统一在此处鉴权
var policies = map[action]rule{
	actFiscalYearWrite: ruleAdmin,
	actPreferenceRead:  ruleSelfOrAdmin,
	actPreferenceWrite: ruleSelfOrAdmin,
	actApprovalRead:    ruleAdmin,
	actApprove:         ruleAdmin,
	actCfteWrite:       ruleAdmin,
	actCfteRead:        ruleSelfOrAdmin,
	actCfteReadAll:     ruleAdmin,
	actDraftWrite:      ruleAdmin,
	actDraftRead:       ruleAdmin,
	actPublishedRead:   ruleAuthenticated,
	actTradePropose:    ruleSelf,
	actTradeRespond:    ruleSelf,
	actTradeCancel:     ruleSelf,
	actTradeResolve:    ruleAdmin,
	actTradeRead:       ruleSelfOrAdmin,
	actExportAll:       ruleAuthenticated,
	actExportOwn:       ruleSelfOrAdmin,
	actEventWrite:      ruleAdmin,
	actEventRead:       ruleAuthenticated,
}

// authorize 检查 actor 能否对 subjectPhysicianID 所属资源执行 act
func authorize(actor Actor, act action, subjectPhysicianID string) error {
	if actor.UserID == "" {
		return ErrForbidden
	}
	r, ok := policies[act]
	if !ok {
		return ErrForbidden
	}

	isSelf := actor.PhysicianID != "" && actor.PhysicianID == subjectPhysicianID

	switch r {
	case ruleAdmin:
		if actor.IsAdmin() {
			return nil
		}
	case ruleSelf:
		if actor.PhysicianID == "" {
			return ErrNotPhysicianActor
		}
		if isSelf {
			return nil
		}
	case ruleSelfOrAdmin:
		if actor.IsAdmin() || isSelf {
			return nil
		}
	case ruleAuthenticated:
		return nil
	}
	return ErrForbidden
}
