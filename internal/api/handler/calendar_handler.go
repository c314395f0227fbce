package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"rota-planner/backend/internal/dto"
	"rota-planner/backend/internal/service"
	"rota-planner/backend/pkg/response"
)

// CalendarHandler 主日历模块 HTTP 处理器
type CalendarHandler struct {
	calendarSvc service.CalendarService
}

// NewCalendarHandler 创建 CalendarHandler
func NewCalendarHandler(calendarSvc service.CalendarService) *CalendarHandler {
	return &CalendarHandler{calendarSvc: calendarSvc}
}

// CreateDraft 创建主日历草稿
// POST /api/v1/calendar/draft
func (h *CalendarHandler) CreateDraft(c *gin.Context) {
	var req dto.CreateDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	draft, err := h.calendarSvc.CreateDraft(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleCalendarError(c, err)
		return
	}

	response.Created(c, draft)
}

// GetDraftGrid 获取草稿网格
// GET /api/v1/calendar/draft/grid
func (h *CalendarHandler) GetDraftGrid(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	grid, err := h.calendarSvc.GetDraftGrid(c.Request.Context(), actor)
	if err != nil {
		h.handleCalendarError(c, err)
		return
	}

	response.OK(c, grid)
}

// AssignCell 手动排班 / 清空格子
// PUT /api/v1/calendar/draft/cells
func (h *CalendarHandler) AssignCell(c *gin.Context) {
	var req dto.AssignCellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.calendarSvc.AssignCell(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleCalendarError(c, err)
		return
	}

	response.OK(c, result)
}

// AutoAssign 自动填充空格子
// POST /api/v1/calendar/draft/auto-assign
func (h *CalendarHandler) AutoAssign(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.calendarSvc.AutoAssign(c.Request.Context(), actor)
	if err != nil {
		h.handleCalendarError(c, err)
		return
	}

	response.OK(c, result)
}

// GetPublishedGrid 获取已发布主日历
// GET /api/v1/calendar/published/grid
func (h *CalendarHandler) GetPublishedGrid(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	grid, err := h.calendarSvc.GetPublishedGrid(c.Request.Context(), actor)
	if err != nil {
		h.handleCalendarError(c, err)
		return
	}

	response.OK(c, grid)
}

// handleCalendarError 统一处理主日历模块业务错误
func (h *CalendarHandler) handleCalendarError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrDraftNotFound):
		respondError(c, err, 14001)
	case errors.Is(err, service.ErrDraftExists):
		respondError(c, err, 14002)
	case errors.Is(err, service.ErrFiscalYearNotCurrent):
		respondError(c, err, 14003)
	case errors.Is(err, service.ErrCellUnavailable):
		respondError(c, err, 14004)
	case errors.Is(err, service.ErrPhysicianNotFound):
		respondError(c, err, 14005)
	case errors.Is(err, service.ErrPhysicianInactive):
		respondError(c, err, 14006)
	case errors.Is(err, service.ErrPhysicianNotApproved):
		respondError(c, err, 14007)
	case errors.Is(err, service.ErrDoubleBooked):
		respondError(c, err, 14008)
	case errors.Is(err, service.ErrRedAvailabilityBlocked):
		respondError(c, err, 14009)
	case errors.Is(err, service.ErrCalendarNotPublished):
		respondError(c, err, 14010)
	default:
		handleCommonError(c, err)
	}
}
