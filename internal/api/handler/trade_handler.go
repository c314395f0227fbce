package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"rota-planner/backend/internal/dto"
	"rota-planner/backend/internal/service"
	"rota-planner/backend/pkg/response"
)

// TradeHandler 换班模块 HTTP 处理器
type TradeHandler struct {
	tradeSvc service.TradeService
}

// NewTradeHandler 创建 TradeHandler
func NewTradeHandler(tradeSvc service.TradeService) *TradeHandler {
	return &TradeHandler{tradeSvc: tradeSvc}
}

// ProposeTrade 发起换班
// POST /api/v1/trades
func (h *TradeHandler) ProposeTrade(c *gin.Context) {
	var req dto.ProposeTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	trade, err := h.tradeSvc.Propose(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleTradeError(c, err)
		return
	}

	response.Created(c, trade)
}

// ListTrades 换班列表（分页）
// GET /api/v1/trades?status=proposed&mine=true&page=1&page_size=20
func (h *TradeHandler) ListTrades(c *gin.Context) {
	var req dto.TradeListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	list, total, err := h.tradeSvc.List(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleTradeError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// GetTrade 换班详情
// GET /api/v1/trades/:id
func (h *TradeHandler) GetTrade(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "换班ID不能为空")
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	trade, err := h.tradeSvc.Get(c.Request.Context(), actor, id)
	if err != nil {
		h.handleTradeError(c, err)
		return
	}

	response.OK(c, trade)
}

// RespondTrade 对方接受 / 拒绝
// POST /api/v1/trades/:id/respond
func (h *TradeHandler) RespondTrade(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "换班ID不能为空")
		return
	}

	var req dto.RespondTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	trade, err := h.tradeSvc.Respond(c.Request.Context(), actor, id, &req)
	if err != nil {
		h.handleTradeError(c, err)
		return
	}

	response.OK(c, trade)
}

// CancelTrade 发起人撤回
// POST /api/v1/trades/:id/cancel
func (h *TradeHandler) CancelTrade(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "换班ID不能为空")
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	trade, err := h.tradeSvc.Cancel(c.Request.Context(), actor, id)
	if err != nil {
		h.handleTradeError(c, err)
		return
	}

	response.OK(c, trade)
}

// ResolveTrade 管理员裁决
// POST /api/v1/trades/:id/resolve
func (h *TradeHandler) ResolveTrade(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "换班ID不能为空")
		return
	}

	var req dto.ResolveTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	trade, err := h.tradeSvc.Resolve(c.Request.Context(), actor, id, &req)
	if err != nil {
		h.handleTradeError(c, err)
		return
	}

	response.OK(c, trade)
}

// handleTradeError 统一处理换班模块业务错误
func (h *TradeHandler) handleTradeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTradeNotFound):
		respondError(c, err, 15001)
	case errors.Is(err, service.ErrAssignmentNotFound):
		respondError(c, err, 15002)
	case errors.Is(err, service.ErrTradeSameAssignment),
		errors.Is(err, service.ErrTradeSamePhysician):
		respondError(c, err, 15003)
	case errors.Is(err, service.ErrTradeLiveExists):
		respondError(c, err, 15004)
	case errors.Is(err, service.ErrTradeInvalidTransition):
		respondError(c, err, 15005)
	case errors.Is(err, service.ErrTradeStale):
		respondError(c, err, 15006)
	case errors.Is(err, service.ErrTradeOwnershipChanged):
		respondError(c, err, 15007)
	case errors.Is(err, service.ErrTradeDoubleBooking):
		respondError(c, err, 15008)
	case errors.Is(err, service.ErrCalendarNotPublished):
		respondError(c, err, 14010)
	default:
		handleCommonError(c, err)
	}
}
