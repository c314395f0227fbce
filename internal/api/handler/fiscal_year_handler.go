package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"rota-planner/backend/internal/dto"
	"rota-planner/backend/internal/service"
	"rota-planner/backend/pkg/response"
)

// FiscalYearHandler 财年模块 HTTP 处理器
type FiscalYearHandler struct {
	fiscalYearSvc service.FiscalYearService
}

// NewFiscalYearHandler 创建 FiscalYearHandler
func NewFiscalYearHandler(fiscalYearSvc service.FiscalYearService) *FiscalYearHandler {
	return &FiscalYearHandler{fiscalYearSvc: fiscalYearSvc}
}

// ListFiscalYears 获取财年列表
// GET /api/v1/fiscal-years
func (h *FiscalYearHandler) ListFiscalYears(c *gin.Context) {
	list, err := h.fiscalYearSvc.List(c.Request.Context())
	if err != nil {
		h.handleFiscalYearError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// GetFiscalYear 获取财年详情（含周列表）
// GET /api/v1/fiscal-years/:id
func (h *FiscalYearHandler) GetFiscalYear(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "财年ID不能为空")
		return
	}

	fy, err := h.fiscalYearSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleFiscalYearError(c, err)
		return
	}

	response.OK(c, fy)
}

// GetCurrentFiscalYear 获取当前财年
// GET /api/v1/fiscal-years/current
func (h *FiscalYearHandler) GetCurrentFiscalYear(c *gin.Context) {
	fy, err := h.fiscalYearSvc.GetCurrent(c.Request.Context())
	if err != nil {
		h.handleFiscalYearError(c, err)
		return
	}

	response.OK(c, fy)
}

// CreateFiscalYear 创建财年并生成周
// POST /api/v1/fiscal-years
func (h *FiscalYearHandler) CreateFiscalYear(c *gin.Context) {
	var req dto.CreateFiscalYearRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	fy, err := h.fiscalYearSvc.Create(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleFiscalYearError(c, err)
		return
	}

	response.Created(c, fy)
}

// SetCurrentFiscalYear 设为当前财年
// PUT /api/v1/fiscal-years/:id/current
func (h *FiscalYearHandler) SetCurrentFiscalYear(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "财年ID不能为空")
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	fy, err := h.fiscalYearSvc.SetCurrent(c.Request.Context(), actor, id)
	if err != nil {
		h.handleFiscalYearError(c, err)
		return
	}

	response.OK(c, fy)
}

// TransitionFiscalYear 推进财年状态
// PUT /api/v1/fiscal-years/:id/status
func (h *FiscalYearHandler) TransitionFiscalYear(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "财年ID不能为空")
		return
	}

	var req dto.TransitionFiscalYearRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	fy, err := h.fiscalYearSvc.Transition(c.Request.Context(), actor, id, req.Status)
	if err != nil {
		h.handleFiscalYearError(c, err)
		return
	}

	response.OK(c, fy)
}

// handleFiscalYearError 统一处理财年模块业务错误
func (h *FiscalYearHandler) handleFiscalYearError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrFiscalYearNotFound):
		respondError(c, err, 11001)
	case errors.Is(err, service.ErrFiscalYearDateInvalid):
		respondError(c, err, 11002)
	case errors.Is(err, service.ErrFiscalYearLabelExists):
		respondError(c, err, 11003)
	case errors.Is(err, service.ErrFiscalYearInvalidTransition):
		respondError(c, err, 11004)
	case errors.Is(err, service.ErrPublishWithoutDraft):
		respondError(c, err, 11005)
	default:
		handleCommonError(c, err)
	}
}
