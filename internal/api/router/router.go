package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"rota-planner/backend/config"
	"rota-planner/backend/internal/api/handler"
	"rota-planner/backend/internal/api/middleware"
	"rota-planner/backend/internal/dto"
	"rota-planner/backend/pkg/jwt"
	"rota-planner/backend/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
// rdb 可为 nil：单实例部署不启用限流
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, db *gorm.DB, rdb *redis.Client, logger *zap.Logger) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := dto.RegisterValidators(v); err != nil {
			return nil, err
		}
	}

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", healthCheck(db, rdb))

	admin := middleware.RoleAuth(jwt.RoleAdmin)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(jwtMgr))
	v1.Use(middleware.RateLimit(rdb, cfg.Server.RateLimit, time.Minute, logger))
	{
		// 财年模块
		fiscalYears := v1.Group("/fiscal-years")
		{
			fiscalYears.GET("", h.FiscalYear.ListFiscalYears)
			fiscalYears.GET("/current", h.FiscalYear.GetCurrentFiscalYear)
			fiscalYears.GET("/:id", h.FiscalYear.GetFiscalYear)
			fiscalYears.POST("", admin, h.FiscalYear.CreateFiscalYear)
			fiscalYears.PUT("/:id/current", admin, h.FiscalYear.SetCurrentFiscalYear)
			fiscalYears.PUT("/:id/status", admin, h.FiscalYear.TransitionFiscalYear)
		}

		// 医生偏好与 cFTE 输入（本人或管理员，Service 层鉴权）
		physicians := v1.Group("/physicians/:id")
		{
			physicians.GET("/week-preferences", h.Preference.ListWeekPreferences)
			physicians.PUT("/week-preferences", h.Preference.UpsertWeekPreferences)
			physicians.POST("/week-preferences/import", h.Preference.ImportWeekPreferences)
			physicians.GET("/week-preferences/template", h.Preference.DownloadWeekPreferenceTemplate)
			physicians.GET("/rotation-preferences", h.Preference.ListRotationPreferences)
			physicians.PUT("/rotation-preferences", h.Preference.UpsertRotationPreferences)
			physicians.POST("/schedule-request/submit", h.Preference.SubmitScheduleRequest)
			physicians.PUT("/clinic-assignments", admin, h.Cfte.UpsertClinicAssignments)
			physicians.PUT("/cfte-target", admin, h.Cfte.SetTarget)
		}

		// 审批模块
		approvals := v1.Group("/approvals", admin)
		{
			approvals.GET("", h.Preference.GetApprovalPanel)
			approvals.POST("/:physicianId", h.Preference.ApprovePhysician)
		}

		// cFTE 汇总
		cfte := v1.Group("/cfte")
		{
			cfte.GET("/summaries", admin, h.Cfte.ListSummaries)
			cfte.GET("/summaries/:physicianId", h.Cfte.GetSummary)
		}

		// 主日历模块
		calendar := v1.Group("/calendar")
		{
			calendar.POST("/draft", admin, h.Calendar.CreateDraft)
			calendar.GET("/draft/grid", admin, h.Calendar.GetDraftGrid)
			calendar.PUT("/draft/cells", admin, h.Calendar.AssignCell)
			calendar.POST("/draft/auto-assign", admin, h.Calendar.AutoAssign)
			calendar.GET("/published/grid", h.Calendar.GetPublishedGrid)
		}

		// 换班模块
		trades := v1.Group("/trades")
		{
			trades.POST("", h.Trade.ProposeTrade)
			trades.GET("", h.Trade.ListTrades)
			trades.GET("/:id", h.Trade.GetTrade)
			trades.POST("/:id/respond", h.Trade.RespondTrade)
			trades.POST("/:id/cancel", h.Trade.CancelTrade)
			trades.POST("/:id/resolve", admin, h.Trade.ResolveTrade)
		}

		// 导出模块
		export := v1.Group("/export")
		{
			export.GET("/snapshot", h.Export.Snapshot)
			export.GET("/calendar.xlsx", h.Export.ExportWorkbook)
			export.GET("/physicians/:id/calendar.ics", h.Export.ExportPhysicianICS)
		}

		// 日历事件模块
		events := v1.Group("/calendar-events")
		{
			events.GET("", h.Event.ListEvents)
			events.POST("/import", admin, h.Event.ImportEvents)
		}
	}

	return r, nil
}

// healthCheck 检查数据库与 Redis 连通性
func healthCheck(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := gin.H{"status": "ok", "database": "ok"}
		code := http.StatusOK

		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			status["status"] = "degraded"
			status["database"] = "unreachable"
			code = http.StatusServiceUnavailable
		}
		if rdb != nil {
			if err := rdb.Ping(ctx); err != nil {
				status["status"] = "degraded"
				status["redis"] = "unreachable"
				code = http.StatusServiceUnavailable
			} else {
				status["redis"] = "ok"
			}
		}

		c.JSON(code, status)
	}
}
