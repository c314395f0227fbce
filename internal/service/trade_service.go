package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"rota-planner/backend/internal/dto"
	"rota-planner/backend/internal/model"
	"rota-planner/backend/internal/repository"
	pkgerrors "rota-planner/backend/pkg/errors"
)

// ── 换班模块业务错误 ──

var (
	ErrTradeNotFound          = pkgerrors.New(pkgerrors.ErrNotFound, "换班申请不存在")
	ErrAssignmentNotFound     = pkgerrors.New(pkgerrors.ErrNotFound, "排班记录不存在")
	ErrTradeSameAssignment    = pkgerrors.New(pkgerrors.ErrValidation, "不能用同一个格子换班")
	ErrTradeSamePhysician     = pkgerrors.New(pkgerrors.ErrValidation, "不能与自己换班")
	ErrTradeLiveExists        = pkgerrors.New(pkgerrors.ErrConflict, "所涉排班已有进行中的换班申请")
	ErrTradeInvalidTransition = pkgerrors.New(pkgerrors.ErrInvalidTransition, "换班申请当前状态不允许该操作")
	ErrTradeStale             = pkgerrors.New(pkgerrors.ErrConflict, "换班申请已被其他操作修改，请刷新后重试")
	ErrTradeOwnershipChanged  = pkgerrors.New(pkgerrors.ErrConflict, "排班归属已变化，无法完成换班")
	ErrTradeDoubleBooking     = pkgerrors.New(pkgerrors.ErrConflict, "换班后医生在同一周将有两个排班")
)

// 答复取值
const (
	TradeDecisionAccept  = "accept"
	TradeDecisionDecline = "decline"
)

// TradeService 已发布日历上的换班协商业务接口
//
// 状态机：
//
//	proposed ──accept──▶ peer_accepted ──approve──▶ admin_approved
//	   │ │ └──decline──▶ peer_declined       └──deny──▶ admin_denied
//	   │ └──deny──▶ admin_denied
//	   └──cancel──▶ cancelled ◀──cancel── peer_accepted
//
// 所有状态推进仅在当前财年处于 published 时允许。
type TradeService interface {
	Propose(ctx context.Context, actor Actor, req *dto.ProposeTradeRequest) (*dto.TradeResponse, error)
	Respond(ctx context.Context, actor Actor, id string, req *dto.RespondTradeRequest) (*dto.TradeResponse, error)
	Cancel(ctx context.Context, actor Actor, id string) (*dto.TradeResponse, error)
	// Resolve 管理员裁决；批准时在同一事务内交换两个格子的医生
	Resolve(ctx context.Context, actor Actor, id string, req *dto.ResolveTradeRequest) (*dto.TradeResponse, error)
	Get(ctx context.Context, actor Actor, id string) (*dto.TradeResponse, error)
	List(ctx context.Context, actor Actor, req *dto.TradeListRequest) ([]dto.TradeResponse, int64, error)
}

type tradeService struct {
	repo   *repository.Repository
	locker Locker
	cache  SummaryCache
	logger *zap.Logger
}

// NewTradeService 创建 TradeService 实例
func NewTradeService(repo *repository.Repository, locker Locker, cache SummaryCache, logger *zap.Logger) TradeService {
	return &tradeService{repo: repo, locker: locker, cache: cache, logger: logger}
}

// ════════════════════════════════════════════════════════════
// Propose
// ════════════════════════════════════════════════════════════

func (s *tradeService) Propose(ctx context.Context, actor Actor, req *dto.ProposeTradeRequest) (*dto.TradeResponse, error) {
	fy, err := currentFiscalYear(ctx, s.repo, model.FiscalYearPublished)
	if err != nil {
		return nil, err
	}
	if req.RequesterAssignmentID == req.TargetAssignmentID {
		return nil, ErrTradeSameAssignment
	}

	mine, err := s.getAssignment(ctx, fy.FiscalYearID, req.RequesterAssignmentID)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, actTradePropose, mine.PhysicianID); err != nil {
		return nil, err
	}
	theirs, err := s.getAssignment(ctx, fy.FiscalYearID, req.TargetAssignmentID)
	if err != nil {
		return nil, err
	}
	if theirs.PhysicianID == mine.PhysicianID {
		return nil, ErrTradeSamePhysician
	}

	unlock, err := lockAll(ctx, s.locker, assignmentLockKey(mine.AssignmentID), assignmentLockKey(theirs.AssignmentID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	trade := &model.TradeRequest{
		FiscalYearID:          fy.FiscalYearID,
		RequesterPhysicianID:  mine.PhysicianID,
		RequesterAssignmentID: mine.AssignmentID,
		TargetPhysicianID:     theirs.PhysicianID,
		TargetAssignmentID:    theirs.AssignmentID,
		Reason:                strings.TrimSpace(req.Reason),
		Status:                model.TradeProposed,
	}
	trade.Version = 1
	trade.CreatedBy = &actor.UserID
	trade.UpdatedBy = &actor.UserID

	err = runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		live, err := txRepo.Trade.CountLiveByAssignments(ctx, []string{mine.AssignmentID, theirs.AssignmentID})
		if err != nil {
			return err
		}
		if live > 0 {
			return ErrTradeLiveExists
		}
		if err := txRepo.Trade.Create(ctx, trade); err != nil {
			return err
		}
		return recordAudit(ctx, txRepo, actor, auditTradePropose, "trade_request", trade.TradeRequestID, map[string]interface{}{
			"requester_assignment_id": mine.AssignmentID,
			"target_assignment_id":    theirs.AssignmentID,
		})
	})
	if err != nil {
		if pkgerrors.KindOf(err) == nil {
			s.logger.Error("发起换班失败", zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("换班申请已发起",
		zap.String("trade_id", trade.TradeRequestID),
		zap.String("requester", trade.RequesterPhysicianID),
		zap.String("target", trade.TargetPhysicianID),
	)
	return toTradeResponse(trade), nil
}

// ════════════════════════════════════════════════════════════
// Respond / Cancel
// ════════════════════════════════════════════════════════════

func (s *tradeService) Respond(ctx context.Context, actor Actor, id string, req *dto.RespondTradeRequest) (*dto.TradeResponse, error) {
	_, trade, err := s.getMutableTrade(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, actTradeRespond, trade.TargetPhysicianID); err != nil {
		return nil, err
	}

	next := model.TradePeerDeclined
	if req.Decision == TradeDecisionAccept {
		next = model.TradePeerAccepted
	}

	return s.transition(ctx, actor, trade, []string{model.TradeProposed}, auditTradeRespond,
		func(t *model.TradeRequest, now time.Time) {
			t.Status = next
			t.RespondedAt = &now
			if next == model.TradePeerDeclined {
				t.ResolvedAt = &now
			}
		})
}

func (s *tradeService) Cancel(ctx context.Context, actor Actor, id string) (*dto.TradeResponse, error) {
	_, trade, err := s.getMutableTrade(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, actTradeCancel, trade.RequesterPhysicianID); err != nil {
		return nil, err
	}

	return s.transition(ctx, actor, trade, model.LiveTradeStatuses, auditTradeCancel,
		func(t *model.TradeRequest, now time.Time) {
			t.Status = model.TradeCancelled
			t.ResolvedAt = &now
		})
}

// transition 在换班锁内校验预读版本后推进状态，不涉及格子交换
func (s *tradeService) transition(ctx context.Context, actor Actor, seen *model.TradeRequest, from []string, act string, apply func(*model.TradeRequest, time.Time)) (*dto.TradeResponse, error) {
	if !statusIn(seen.Status, from) {
		return nil, pkgerrors.WithDetail(ErrTradeInvalidTransition, seen.Status)
	}

	unlock, err := s.locker.Lock(ctx, tradeLockKey(seen.TradeRequestID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var updated *model.TradeRequest
	err = runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		current, err := s.recheck(ctx, txRepo, seen)
		if err != nil {
			return err
		}
		previous := current.Status
		apply(current, time.Now().UTC())
		current.UpdatedBy = &actor.UserID
		if err := txRepo.Trade.Update(ctx, current); err != nil {
			return staleOr(err)
		}
		updated = current
		return recordAudit(ctx, txRepo, actor, act, "trade_request", current.TradeRequestID, map[string]interface{}{
			"from": previous,
			"to":   current.Status,
		})
	})
	if err != nil {
		if pkgerrors.KindOf(err) == nil {
			s.logger.Error("更新换班申请失败", zap.String("trade_id", seen.TradeRequestID), zap.Error(err))
		}
		return nil, err
	}
	return toTradeResponse(updated), nil
}

// ════════════════════════════════════════════════════════════
// Resolve
// ════════════════════════════════════════════════════════════

func (s *tradeService) Resolve(ctx context.Context, actor Actor, id string, req *dto.ResolveTradeRequest) (*dto.TradeResponse, error) {
	if err := authorize(actor, actTradeResolve, ""); err != nil {
		return nil, err
	}
	fy, trade, err := s.getMutableTrade(ctx, id)
	if err != nil {
		return nil, err
	}
	// 批准需对方已接受；驳回可作用于任一进行中状态
	approve := req.Approve != nil && *req.Approve
	from := model.LiveTradeStatuses
	if approve {
		from = []string{model.TradePeerAccepted}
	}
	if !statusIn(trade.Status, from) {
		return nil, pkgerrors.WithDetail(ErrTradeInvalidTransition, trade.Status)
	}

	unlock, err := lockAll(ctx, s.locker,
		tradeLockKey(trade.TradeRequestID),
		assignmentLockKey(trade.RequesterAssignmentID),
		assignmentLockKey(trade.TargetAssignmentID),
	)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var updated *model.TradeRequest
	err = runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		current, err := s.recheck(ctx, txRepo, trade)
		if err != nil {
			return err
		}

		if approve {
			if err := s.swap(ctx, txRepo, fy.FiscalYearID, current, actor); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		current.Status = model.TradeAdminDenied
		if approve {
			current.Status = model.TradeAdminApproved
		}
		current.ResolvedAt = &now
		current.ResolvedBy = &actor.UserID
		current.AdminNote = strings.TrimSpace(req.Note)
		current.UpdatedBy = &actor.UserID
		if err := txRepo.Trade.Update(ctx, current); err != nil {
			return staleOr(err)
		}
		updated = current
		return recordAudit(ctx, txRepo, actor, auditTradeResolve, "trade_request", current.TradeRequestID, map[string]interface{}{
			"approved": approve,
			"note":     current.AdminNote,
		})
	})
	if err != nil {
		if pkgerrors.KindOf(err) == nil {
			s.logger.Error("裁决换班申请失败", zap.String("trade_id", id), zap.Error(err))
		}
		return nil, err
	}

	if approve {
		s.cache.Invalidate(ctx, fy.FiscalYearID)
		s.logger.Info("换班已批准并完成交换", zap.String("trade_id", id))
	}
	return toTradeResponse(updated), nil
}

// swap 交换两个格子的医生；归属已变化或会造成同周双排时拒绝
func (s *tradeService) swap(ctx context.Context, txRepo *repository.Repository, fiscalYearID string, trade *model.TradeRequest, actor Actor) error {
	locked, err := txRepo.Assignment.LockByIDs(ctx, []string{trade.RequesterAssignmentID, trade.TargetAssignmentID})
	if err != nil {
		return err
	}
	var mine, theirs *model.CalendarAssignment
	for i := range locked {
		switch locked[i].AssignmentID {
		case trade.RequesterAssignmentID:
			mine = &locked[i]
		case trade.TargetAssignmentID:
			theirs = &locked[i]
		}
	}
	if mine == nil || theirs == nil {
		return ErrAssignmentNotFound
	}
	if mine.PhysicianID != trade.RequesterPhysicianID || theirs.PhysicianID != trade.TargetPhysicianID {
		return ErrTradeOwnershipChanged
	}

	if mine.WeekID != theirs.WeekID {
		if err := s.ensureFree(ctx, txRepo, fiscalYearID, trade.RequesterPhysicianID, theirs.WeekID, mine.AssignmentID); err != nil {
			return err
		}
		if err := s.ensureFree(ctx, txRepo, fiscalYearID, trade.TargetPhysicianID, mine.WeekID, theirs.AssignmentID); err != nil {
			return err
		}
	}

	mine.PhysicianID, theirs.PhysicianID = trade.TargetPhysicianID, trade.RequesterPhysicianID
	mine.UpdatedBy = &actor.UserID
	theirs.UpdatedBy = &actor.UserID
	if err := txRepo.Assignment.UpdatePhysician(ctx, mine); err != nil {
		return staleOr(err)
	}
	if err := txRepo.Assignment.UpdatePhysician(ctx, theirs); err != nil {
		return staleOr(err)
	}
	return nil
}

// ensureFree 医生在 weekID 除 leaving 之外没有其他排班
func (s *tradeService) ensureFree(ctx context.Context, txRepo *repository.Repository, fiscalYearID, physicianID, weekID, leaving string) error {
	list, err := txRepo.Assignment.ListByPhysician(ctx, fiscalYearID, physicianID)
	if err != nil {
		return err
	}
	for _, a := range list {
		if a.WeekID == weekID && a.AssignmentID != leaving {
			return ErrTradeDoubleBooking
		}
	}
	return nil
}

// ════════════════════════════════════════════════════════════
// 查询
// ════════════════════════════════════════════════════════════

func (s *tradeService) Get(ctx context.Context, actor Actor, id string) (*dto.TradeResponse, error) {
	trade, err := s.getTrade(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, actTradeRead, trade.RequesterPhysicianID); err != nil {
		if authorize(actor, actTradeRead, trade.TargetPhysicianID) != nil {
			return nil, err
		}
	}
	return toTradeResponse(trade), nil
}

func (s *tradeService) List(ctx context.Context, actor Actor, req *dto.TradeListRequest) ([]dto.TradeResponse, int64, error) {
	fy, err := readableFiscalYear(ctx, s.repo)
	if err != nil {
		return nil, 0, err
	}

	filter := repository.TradeFilter{FiscalYearID: fy.FiscalYearID, Status: req.Status}
	if !actor.IsAdmin() || req.Mine {
		if actor.PhysicianID == "" {
			return nil, 0, ErrNotPhysicianActor
		}
		filter.PhysicianID = actor.PhysicianID
	}

	list, total, err := s.repo.Trade.List(ctx, filter, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询换班列表失败", zap.Error(err))
		return nil, 0, err
	}
	result := make([]dto.TradeResponse, 0, len(list))
	for i := range list {
		result = append(result, *toTradeResponse(&list[i]))
	}
	return result, total, nil
}

// ── 内部辅助方法 ──

func (s *tradeService) getTrade(ctx context.Context, id string) (*model.TradeRequest, error) {
	t, err := s.repo.Trade.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTradeNotFound
		}
		s.logger.Error("查询换班申请失败", zap.String("trade_id", id), zap.Error(err))
		return nil, err
	}
	return t, nil
}

// getMutableTrade 要求当前财年处于 published 且换班申请属于该财年
func (s *tradeService) getMutableTrade(ctx context.Context, id string) (*model.FiscalYear, *model.TradeRequest, error) {
	fy, err := currentFiscalYear(ctx, s.repo, model.FiscalYearPublished)
	if err != nil {
		return nil, nil, err
	}
	trade, err := s.getTrade(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if trade.FiscalYearID != fy.FiscalYearID {
		return nil, nil, pkgerrors.WithDetail(ErrPhaseNotAllowed, trade.FiscalYearID)
	}
	return fy, trade, nil
}

func (s *tradeService) getAssignment(ctx context.Context, fiscalYearID, id string) (*model.CalendarAssignment, error) {
	a, err := s.repo.Assignment.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.WithDetail(ErrAssignmentNotFound, id)
		}
		return nil, err
	}
	if a.FiscalYearID != fiscalYearID {
		return nil, pkgerrors.WithDetail(ErrAssignmentNotFound, id)
	}
	return a, nil
}

// recheck 锁内重读：版本与预读不一致说明已被并发操作推进
func (s *tradeService) recheck(ctx context.Context, txRepo *repository.Repository, seen *model.TradeRequest) (*model.TradeRequest, error) {
	current, err := txRepo.Trade.GetByID(ctx, seen.TradeRequestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTradeNotFound
		}
		return nil, err
	}
	if current.Version != seen.Version || current.Status != seen.Status {
		return nil, pkgerrors.WithDetail(ErrTradeStale, current.Status)
	}
	return current, nil
}

func staleOr(err error) error {
	if errors.Is(err, pkgerrors.ErrOptimisticLock) {
		return ErrTradeStale
	}
	return err
}

func statusIn(status string, set []string) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

func toTradeResponse(t *model.TradeRequest) *dto.TradeResponse {
	return &dto.TradeResponse{
		ID:                    t.TradeRequestID,
		FiscalYearID:          t.FiscalYearID,
		RequesterPhysicianID:  t.RequesterPhysicianID,
		RequesterAssignmentID: t.RequesterAssignmentID,
		TargetPhysicianID:     t.TargetPhysicianID,
		TargetAssignmentID:    t.TargetAssignmentID,
		Reason:                t.Reason,
		Status:                t.Status,
		RespondedAt:           dto.FormatTimePtr(t.RespondedAt),
		ResolvedAt:            dto.FormatTimePtr(t.ResolvedAt),
		ResolvedBy:            t.ResolvedBy,
		AdminNote:             t.AdminNote,
		Version:               t.Version,
		CreatedAt:             t.CreatedAt.UTC().Format(dto.DateTimeLayout),
	}
}
