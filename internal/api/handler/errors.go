package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"rota-planner/backend/internal/service"
	pkgerrors "rota-planner/backend/pkg/errors"
	"rota-planner/backend/pkg/response"
)

// ── 业务错误 → HTTP ──
//
// 状态码由错误类别决定；业务码优先取模块自己的编号，未编号时取类别的通用编号。

type errorClass struct {
	status int
	code   int
}

var errorClasses = map[error]errorClass{
	pkgerrors.ErrValidation:        {http.StatusBadRequest, 10001},
	pkgerrors.ErrPermission:        {http.StatusForbidden, 10003},
	pkgerrors.ErrNotFound:          {http.StatusNotFound, 10006},
	pkgerrors.ErrConflict:          {http.StatusConflict, 10009},
	pkgerrors.ErrInvalidTransition: {http.StatusConflict, 10010},
	pkgerrors.ErrBlocked:           {http.StatusUnprocessableEntity, 10022},
}

// respondError 按错误类别写入响应；code 为 0 时使用类别通用编号
func respondError(c *gin.Context, err error, code int) {
	class, ok := errorClasses[pkgerrors.KindOf(err)]
	if !ok {
		_ = c.Error(err)
		response.InternalError(c)
		return
	}
	if code == 0 {
		code = class.code
	}
	response.ErrorWithDetails(c, class.status, code, errorMessage(err), pkgerrors.DetailOf(err))
}

// errorMessage 返回不含附加说明的业务错误文案
func errorMessage(err error) string {
	var e *pkgerrors.Error
	if errors.As(err, &e) {
		return e.Error()
	}
	return err.Error()
}

// handleCommonError 处理各模块共用的错误（鉴权、阶段、锁）
func handleCommonError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotPhysicianActor):
		respondError(c, err, 10007)
	case errors.Is(err, service.ErrNoCurrentFiscalYear):
		respondError(c, err, 10008)
	case errors.Is(err, service.ErrPhaseNotAllowed):
		respondError(c, err, 10011)
	case errors.Is(err, service.ErrResourceBusy):
		respondError(c, err, 10012)
	default:
		respondError(c, err, 0)
	}
}
