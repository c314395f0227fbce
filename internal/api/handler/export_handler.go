package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"rota-planner/backend/internal/service"
	"rota-planner/backend/pkg/response"
)

const icsContentType = "text/calendar; charset=utf-8"

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// Snapshot 导出已发布日历快照（JSON）
// GET /api/v1/export/snapshot
func (h *ExportHandler) Snapshot(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	snap, err := h.exportSvc.Snapshot(c.Request.Context(), actor)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	response.OK(c, snap)
}

// ExportWorkbook 导出主日历 Excel
// GET /api/v1/export/calendar.xlsx
func (h *ExportHandler) ExportWorkbook(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.ExportWorkbook(c.Request.Context(), actor)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	c.Header("Content-Description", "File Transfer")
	response.Attachment(c, filename, xlsxContentType, buf.Bytes())
}

// ExportPhysicianICS 导出医生个人 ICS 日历
// GET /api/v1/export/physicians/:id/calendar.ics
func (h *ExportHandler) ExportPhysicianICS(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "医生ID不能为空")
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	body, filename, err := h.exportSvc.ExportPhysicianICS(c.Request.Context(), actor, id)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	response.Attachment(c, filename, icsContentType, body)
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExportNotPublished):
		respondError(c, err, 16101)
	case errors.Is(err, service.ErrPhysicianNotFound):
		respondError(c, err, 16102)
	case errors.Is(err, service.ErrExportGenerateFail):
		response.InternalError(c)
	default:
		handleCommonError(c, err)
	}
}
