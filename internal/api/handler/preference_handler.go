package handler

import (
	"errors"
	"io"
	"strings"

	"github.com/gin-gonic/gin"

	"rota-planner/backend/internal/dto"
	"rota-planner/backend/internal/service"
	"rota-planner/backend/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// PreferenceHandler 偏好与审批模块 HTTP 处理器
type PreferenceHandler struct {
	preferenceSvc service.PreferenceService
}

// NewPreferenceHandler 创建 PreferenceHandler
func NewPreferenceHandler(preferenceSvc service.PreferenceService) *PreferenceHandler {
	return &PreferenceHandler{preferenceSvc: preferenceSvc}
}

// ════════════════════════════════════════════════════════════
// 周可用性
// ════════════════════════════════════════════════════════════

// ListWeekPreferences 获取医生本财年的周可用性
// GET /api/v1/physicians/:id/week-preferences
func (h *PreferenceHandler) ListWeekPreferences(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	list, err := h.preferenceSvc.ListWeekPreferences(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.handlePreferenceError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// UpsertWeekPreferences 批量写入周可用性
// PUT /api/v1/physicians/:id/week-preferences
func (h *PreferenceHandler) UpsertWeekPreferences(c *gin.Context) {
	var req dto.UpsertWeekPreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	list, err := h.preferenceSvc.UpsertWeekPreferences(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		h.handlePreferenceError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// ImportWeekPreferences 导入周可用性
// POST /api/v1/physicians/:id/week-preferences/import
//
// multipart 上传 file 字段时按 Excel 工作簿解析，否则按 JSON 解析。
func (h *PreferenceHandler) ImportWeekPreferences(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	physicianID := c.Param("id")

	var (
		list []dto.WeekPreferenceResponse
		err  error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fileHeader, ferr := c.FormFile("file")
		if ferr != nil {
			response.BadRequest(c, 10001, "请上传导入文件")
			return
		}
		f, ferr := fileHeader.Open()
		if ferr != nil {
			response.BadRequest(c, 10001, "无法读取上传文件")
			return
		}
		defer f.Close()
		list, err = h.preferenceSvc.ImportWeekPreferencesWorkbook(c.Request.Context(), actor, physicianID, f)
	} else {
		var payload dto.ScheduleImportPayload
		if berr := c.ShouldBindJSON(&payload); berr != nil {
			response.BadRequest(c, 10001, "参数校验失败")
			return
		}
		list, err = h.preferenceSvc.ImportWeekPreferences(c.Request.Context(), actor, physicianID, &payload)
	}
	if err != nil {
		h.handlePreferenceError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// DownloadWeekPreferenceTemplate 下载周可用性导入模板
// GET /api/v1/physicians/:id/week-preferences/template
func (h *PreferenceHandler) DownloadWeekPreferenceTemplate(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	body, filename, err := h.preferenceSvc.WeekPreferenceTemplate(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.handlePreferenceError(c, err)
		return
	}

	response.Attachment(c, filename, xlsxContentType, body)
}

// ════════════════════════════════════════════════════════════
// 轮转意愿与排班申请
// ════════════════════════════════════════════════════════════

// ListRotationPreferences 获取医生的轮转意愿矩阵
// GET /api/v1/physicians/:id/rotation-preferences
func (h *PreferenceHandler) ListRotationPreferences(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	matrix, err := h.preferenceSvc.ListRotationPreferences(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.handlePreferenceError(c, err)
		return
	}

	response.OK(c, matrix)
}

// UpsertRotationPreferences 批量写入轮转意愿
// PUT /api/v1/physicians/:id/rotation-preferences
func (h *PreferenceHandler) UpsertRotationPreferences(c *gin.Context) {
	var req dto.UpsertRotationPreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	matrix, err := h.preferenceSvc.UpsertRotationPreferences(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		h.handlePreferenceError(c, err)
		return
	}

	response.OK(c, matrix)
}

// SubmitScheduleRequest 提交排班申请
// POST /api/v1/physicians/:id/schedule-request/submit
func (h *PreferenceHandler) SubmitScheduleRequest(c *gin.Context) {
	var req dto.SubmitScheduleRequestRequest
	// 请求体可为空
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.preferenceSvc.SubmitScheduleRequest(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		h.handlePreferenceError(c, err)
		return
	}

	response.OK(c, result)
}

// ════════════════════════════════════════════════════════════
// 审批
// ════════════════════════════════════════════════════════════

// GetApprovalPanel 获取审批面板
// GET /api/v1/approvals
func (h *PreferenceHandler) GetApprovalPanel(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	panel, err := h.preferenceSvc.GetApprovalPanel(c.Request.Context(), actor)
	if err != nil {
		h.handlePreferenceError(c, err)
		return
	}

	response.OK(c, panel)
}

// ApprovePhysician 批准医生进入排班
// POST /api/v1/approvals/:physicianId
func (h *PreferenceHandler) ApprovePhysician(c *gin.Context) {
	physicianID := c.Param("physicianId")
	if physicianID == "" {
		response.BadRequest(c, 10001, "医生ID不能为空")
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.preferenceSvc.ApproveForMapping(c.Request.Context(), actor, physicianID)
	if err != nil {
		h.handlePreferenceError(c, err)
		return
	}

	response.OK(c, result)
}

// handlePreferenceError 统一处理偏好模块业务错误
func (h *PreferenceHandler) handlePreferenceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPhysicianNotFound):
		respondError(c, err, 12001)
	case errors.Is(err, service.ErrWeekNotFound):
		respondError(c, err, 12002)
	case errors.Is(err, service.ErrRotationNotFound):
		respondError(c, err, 12003)
	case errors.Is(err, service.ErrDuplicateWeek),
		errors.Is(err, service.ErrDuplicateRotation):
		respondError(c, err, 12004)
	case errors.Is(err, service.ErrRotationPrefModes),
		errors.Is(err, service.ErrPreferenceRankInvalid),
		errors.Is(err, service.ErrAvoidReasonWithoutAvoid):
		respondError(c, err, 12005)
	case errors.Is(err, service.ErrRotationSetInvalid):
		respondError(c, err, 12006)
	case errors.Is(err, service.ErrScheduleRequestMissing):
		respondError(c, err, 12007)
	case errors.Is(err, service.ErrPreferencesIncomplete):
		respondError(c, err, 12008)
	case errors.Is(err, service.ErrImportFileInvalid):
		respondError(c, err, 12101)
	case errors.Is(err, service.ErrImportFiscalYearMismatch),
		errors.Is(err, service.ErrImportDoctorMismatch):
		respondError(c, err, 12102)
	case errors.Is(err, service.ErrImportWeekInvalid),
		errors.Is(err, service.ErrImportAvailabilityInvalid),
		errors.Is(err, service.ErrImportWeekSetMismatch):
		respondError(c, err, 12103)
	default:
		handleCommonError(c, err)
	}
}
