package service

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"rota-planner/backend/internal/model"
	"rota-planner/backend/internal/repository"
	pkgerrors "rota-planner/backend/pkg/errors"
)

// ── 当前财年与阶段约束 ──

var (
	ErrNoCurrentFiscalYear = pkgerrors.New(pkgerrors.ErrNotFound, "尚未设置当前财年")
	ErrPhaseNotAllowed     = pkgerrors.New(pkgerrors.ErrInvalidTransition, "当前财年阶段不允许该操作")
)

// currentFiscalYear 读取当前财年，并要求其处于 phases 之一（为空时只要求非归档）
func currentFiscalYear(ctx context.Context, repo *repository.Repository, phases ...string) (*model.FiscalYear, error) {
	fy, err := repo.FiscalYear.GetCurrent(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoCurrentFiscalYear
		}
		return nil, err
	}
	if len(phases) == 0 {
		if fy.Status == model.FiscalYearArchived {
			return nil, pkgerrors.WithDetail(ErrPhaseNotAllowed, fy.Status)
		}
		return fy, nil
	}
	for _, p := range phases {
		if fy.Status == p {
			return fy, nil
		}
	}
	return nil, pkgerrors.WithDetail(ErrPhaseNotAllowed, fy.Status)
}

// readableFiscalYear 读取当前财年用于查询，不限阶段
func readableFiscalYear(ctx context.Context, repo *repository.Repository) (*model.FiscalYear, error) {
	fy, err := repo.FiscalYear.GetCurrent(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoCurrentFiscalYear
		}
		return nil, err
	}
	return fy, nil
}

// ── 事务 ──

// runInTx 在事务中执行 fn；repo 未绑定数据库时直接执行
func runInTx(ctx context.Context, repo *repository.Repository, logger *zap.Logger, fn func(txRepo *repository.Repository) error) error {
	tx, err := repo.BeginTx(ctx)
	if err != nil {
		logger.Error("开启事务失败", zap.Error(err))
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			if tx != nil {
				tx.Rollback()
			}
			panic(r)
		}
	}()

	if err := fn(repo.WithTx(tx)); err != nil {
		if tx != nil {
			tx.Rollback()
		}
		return err
	}

	if tx != nil {
		if err := tx.Commit().Error; err != nil {
			logger.Error("提交事务失败", zap.Error(err))
			return err
		}
	}
	return nil
}

// ── 审计 ──

// 审计动作
const (
	auditFiscalYearCreate     = "fiscal_year.create"
	auditFiscalYearSetCurrent = "fiscal_year.set_current"
	auditFiscalYearTransition = "fiscal_year.transition"
	auditWeekPrefUpsert       = "week_preference.upsert"
	auditWeekPrefImport       = "week_preference.import"
	auditRotationPrefUpsert   = "rotation_preference.upsert"
	auditRequestSubmit        = "schedule_request.submit"
	auditApprove              = "physician.approve"
	auditClinicUpsert         = "clinic_assignment.upsert"
	auditTargetSet            = "cfte_target.set"
	auditDraftCreate          = "draft.create"
	auditCellAssign           = "draft.assign_cell"
	auditAutoAssign           = "draft.auto_assign"
	auditTradePropose         = "trade.propose"
	auditTradeRespond         = "trade.respond"
	auditTradeCancel          = "trade.cancel"
	auditTradeResolve         = "trade.resolve"
	auditEventImport          = "calendar_event.import"
)

// recordAudit 在调用方的事务中写入审计记录
func recordAudit(ctx context.Context, repo *repository.Repository, actor Actor, act, entityType, entityID string, details map[string]interface{}) error {
	entry := &model.AuditLog{
		UserID:     actor.UserID,
		Action:     act,
		EntityType: entityType,
		EntityID:   entityID,
	}
	if len(details) > 0 {
		raw, err := json.Marshal(details)
		if err != nil {
			return err
		}
		entry.Details = datatypes.JSON(raw)
	}
	return repo.AuditLog.Create(ctx, entry)
}
