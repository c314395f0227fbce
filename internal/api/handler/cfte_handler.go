package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"rota-planner/backend/internal/dto"
	"rota-planner/backend/internal/service"
	"rota-planner/backend/pkg/response"
)

// CfteHandler cFTE 模块 HTTP 处理器
type CfteHandler struct {
	cfteSvc service.CfteService
}

// NewCfteHandler 创建 CfteHandler
func NewCfteHandler(cfteSvc service.CfteService) *CfteHandler {
	return &CfteHandler{cfteSvc: cfteSvc}
}

// UpsertClinicAssignments 批量写入门诊排班量
// PUT /api/v1/physicians/:id/clinic-assignments
func (h *CfteHandler) UpsertClinicAssignments(c *gin.Context) {
	var req dto.UpsertClinicAssignmentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	row, err := h.cfteSvc.UpsertClinicAssignments(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		h.handleCfteError(c, err)
		return
	}

	response.OK(c, row)
}

// SetTarget 设置年度 cFTE 目标
// PUT /api/v1/physicians/:id/cfte-target
func (h *CfteHandler) SetTarget(c *gin.Context) {
	var req dto.SetCfteTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	row, err := h.cfteSvc.SetTarget(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		h.handleCfteError(c, err)
		return
	}

	response.OK(c, row)
}

// ListSummaries 获取全部医生的 cFTE 汇总
// GET /api/v1/cfte/summaries
func (h *CfteHandler) ListSummaries(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	rows, err := h.cfteSvc.ListSummaries(c.Request.Context(), actor)
	if err != nil {
		h.handleCfteError(c, err)
		return
	}

	response.OK(c, gin.H{"list": rows})
}

// GetSummary 获取单个医生的 cFTE 汇总
// GET /api/v1/cfte/summaries/:physicianId
func (h *CfteHandler) GetSummary(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	row, err := h.cfteSvc.GetSummary(c.Request.Context(), actor, c.Param("physicianId"))
	if err != nil {
		h.handleCfteError(c, err)
		return
	}

	response.OK(c, row)
}

// handleCfteError 统一处理 cFTE 模块业务错误
func (h *CfteHandler) handleCfteError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPhysicianNotFound):
		respondError(c, err, 13001)
	case errors.Is(err, service.ErrClinicTypeNotFound):
		respondError(c, err, 13002)
	case errors.Is(err, service.ErrHalfDaysOutOfRange),
		errors.Is(err, service.ErrActiveWeeksOutOfRange):
		respondError(c, err, 13003)
	case errors.Is(err, service.ErrDuplicateClinicType):
		respondError(c, err, 13004)
	case errors.Is(err, service.ErrNegativeTarget):
		respondError(c, err, 13005)
	default:
		handleCommonError(c, err)
	}
}
