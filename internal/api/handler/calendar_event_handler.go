package handler

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"rota-planner/backend/internal/dto"
	"rota-planner/backend/internal/service"
	"rota-planner/backend/pkg/response"
)

// CalendarEventHandler 日历事件模块 HTTP 处理器
type CalendarEventHandler struct {
	eventSvc service.CalendarEventService
}

// NewCalendarEventHandler 创建 CalendarEventHandler
func NewCalendarEventHandler(eventSvc service.CalendarEventService) *CalendarEventHandler {
	return &CalendarEventHandler{eventSvc: eventSvc}
}

// ListEvents 当前财年的日历事件
// GET /api/v1/calendar-events
func (h *CalendarEventHandler) ListEvents(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	list, err := h.eventSvc.List(c.Request.Context(), actor)
	if err != nil {
		h.handleEventError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// ImportEvents 从 ICS 导入日历事件
// POST /api/v1/calendar-events/import
//
// 支持两种方式：multipart 上传 file（可带 category 表单字段），或 JSON {url, category}。
func (h *CalendarEventHandler) ImportEvents(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var (
		result *dto.CalendarEventImportResponse
		err    error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fileHeader, ferr := c.FormFile("file")
		if ferr != nil {
			response.BadRequest(c, 10001, "请上传 ICS 文件")
			return
		}
		f, ferr := fileHeader.Open()
		if ferr != nil {
			response.BadRequest(c, 10001, "无法读取上传文件")
			return
		}
		defer f.Close()
		result, err = h.eventSvc.ImportICS(c.Request.Context(), actor, f, c.PostForm("category"))
	} else {
		var req dto.ImportCalendarEventsRequest
		if berr := c.ShouldBindJSON(&req); berr != nil {
			response.BadRequest(c, 10001, "参数校验失败")
			return
		}
		result, err = h.eventSvc.ImportICSFromURL(c.Request.Context(), actor, req.URL, req.Category)
	}
	if err != nil {
		h.handleEventError(c, err)
		return
	}

	response.OK(c, result)
}

func (h *CalendarEventHandler) handleEventError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrEventCategoryInvalid):
		respondError(c, err, 17001)
	case errors.Is(err, service.ErrEventICSInvalid):
		respondError(c, err, 17002)
	case errors.Is(err, service.ErrEventFetchFail):
		respondError(c, err, 17003)
	default:
		handleCommonError(c, err)
	}
}
