package repository

import (
	"context"

	"gorm.io/gorm"

	"rota-planner/backend/internal/model"
	pkgerrors "rota-planner/backend/pkg/errors"
)

// TradeFilter 换班列表筛选条件
type TradeFilter struct {
	FiscalYearID string
	Status       string
	PhysicianID  string // 作为发起方或目标方参与的换班
}

// TradeRequestRepository 换班申请数据访问接口
type TradeRequestRepository interface {
	Create(ctx context.Context, trade *model.TradeRequest) error
	GetByID(ctx context.Context, id string) (*model.TradeRequest, error)
	List(ctx context.Context, filter TradeFilter, offset, limit int) ([]model.TradeRequest, int64, error)
	// Update 乐观锁更新状态相关字段
	Update(ctx context.Context, trade *model.TradeRequest) error
	// CountLiveByAssignments 统计引用这些格子的未终结换班
	CountLiveByAssignments(ctx context.Context, assignmentIDs []string) (int64, error)
}

type tradeRequestRepo struct {
	db *gorm.DB
}

// NewTradeRequestRepo 创建 TradeRequestRepository 实例
func NewTradeRequestRepo(db *gorm.DB) TradeRequestRepository {
	return &tradeRequestRepo{db: db}
}

func (r *tradeRequestRepo) Create(ctx context.Context, trade *model.TradeRequest) error {
	return r.db.WithContext(ctx).Create(trade).Error
}

func (r *tradeRequestRepo) GetByID(ctx context.Context, id string) (*model.TradeRequest, error) {
	var t model.TradeRequest
	err := r.db.WithContext(ctx).
		Where("trade_request_id = ?", id).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *tradeRequestRepo) List(ctx context.Context, filter TradeFilter, offset, limit int) ([]model.TradeRequest, int64, error) {
	var list []model.TradeRequest
	var total int64

	q := r.db.WithContext(ctx).Model(&model.TradeRequest{})
	if filter.FiscalYearID != "" {
		q = q.Where("fiscal_year_id = ?", filter.FiscalYearID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.PhysicianID != "" {
		q = q.Where("requester_physician_id = ? OR target_physician_id = ?", filter.PhysicianID, filter.PhysicianID)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&list).Error
	return list, total, err
}

func (r *tradeRequestRepo) Update(ctx context.Context, trade *model.TradeRequest) error {
	oldVersion := trade.Version
	result := r.db.WithContext(ctx).
		Model(&model.TradeRequest{}).
		Where("trade_request_id = ? AND version = ?", trade.TradeRequestID, oldVersion).
		Updates(map[string]interface{}{
			"status":       trade.Status,
			"responded_at": trade.RespondedAt,
			"resolved_at":  trade.ResolvedAt,
			"resolved_by":  trade.ResolvedBy,
			"admin_note":   trade.AdminNote,
			"updated_by":   trade.UpdatedBy,
			"updated_at":   gorm.Expr("NOW()"),
			"version":      oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	trade.Version = oldVersion + 1
	return nil
}

func (r *tradeRequestRepo) CountLiveByAssignments(ctx context.Context, assignmentIDs []string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.TradeRequest{}).
		Where("status IN ?", model.LiveTradeStatuses).
		Where("requester_assignment_id IN ? OR target_assignment_id IN ?", assignmentIDs, assignmentIDs).
		Count(&count).Error
	return count, err
}
