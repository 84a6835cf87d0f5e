package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/paiban/nurseshift/internal/auth"
	"github.com/paiban/nurseshift/internal/config"
	"github.com/paiban/nurseshift/internal/metrics"
	"github.com/paiban/nurseshift/internal/middleware"
	"github.com/paiban/nurseshift/internal/security"
	"github.com/paiban/nurseshift/pkg/override"
	"github.com/paiban/nurseshift/pkg/priority"
	"github.com/paiban/nurseshift/pkg/report"
	"github.com/paiban/nurseshift/pkg/scheduler/engine"
	"github.com/paiban/nurseshift/pkg/scheduler/resolver"
	"github.com/paiban/nurseshift/pkg/store"
)

// Deps 处理器依赖
type Deps struct {
	Config   *config.Config
	Store    store.Store
	Registry *priority.Registry
	Resolver *resolver.Resolver
	Engine   *engine.Engine
	Override *override.Service
	Report   *report.Service
	Auth     *auth.Service
	Limiter  security.Limiter            // 为空时不限流
	Health   func(context.Context) error // 为空时只报告进程存活
}

// Handler HTTP 处理器
type Handler struct {
	Deps
	started time.Time
}

// New 创建处理器
func New(d Deps) *Handler {
	return &Handler{Deps: d, started: time.Now()}
}

// Router 构建路由
func (h *Handler) Router() *gin.Engine {
	if h.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.RequestID(), middleware.AccessLog(), middleware.SecurityHeaders())
	if h.Config.API.CORS.Enabled {
		r.Use(middleware.CORS(h.Config.API.CORS))
	}

	r.GET("/health", h.health)
	r.GET("/version", h.version)
	if h.Config.Metrics.Enabled {
		r.GET(h.Config.Metrics.Path, metrics.Handler())
	}

	api := r.Group("/api/v1")
	api.Use(middleware.Auth(h.Auth, h.Config.Auth.Disabled))
	if h.Limiter != nil {
		api.Use(middleware.RateLimit(h.Limiter))
	}
	write := middleware.RequireRole(auth.RoleAdmin, auth.RoleManager)

	pr := api.Group("/priorities")
	pr.GET("", h.listPriorities)
	pr.PUT("/:id", write, h.updatePriority)
	pr.PUT("/:id/setting", write, h.updatePrioritySetting)
	pr.POST("/swap", write, h.swapPriorities)

	api.GET("/calendar-meta", h.calendarMeta)
	api.GET("/constraints/library", h.constraintLibrary)

	sc := api.Group("/schedules")
	sc.GET("/", h.listAssignments)
	sc.GET("/shifts", h.listShifts)
	sc.GET("/available-staff", h.availableStaff)
	sc.GET("/eligibility", h.eligibility)
	sc.GET("/stats", h.monthlyStats)
	sc.GET("/conflicts", h.conflicts)
	sc.POST("/", write, h.createAssignment)
	sc.POST("/edit-shift", write, h.editShift)
	sc.POST("/check-overlap", h.checkOverlap)
	sc.POST("/reduce-staff", write, h.reduceStaff)
	sc.POST("/auto-generate", write, h.autoGenerate)
	sc.POST("/ai-generate", write, h.aiGenerate)
	sc.GET("/:id", h.getAssignment)
	sc.PUT("/:id", write, h.updateAssignment)
	sc.DELETE("/:id", write, h.removeAssignment)
	sc.PATCH("/:id/toggle", write, h.toggleAssignment)
	sc.GET("/:id/replacements", h.replacements)
	sc.POST("/:id/take-over", write, h.takeOver)

	return r
}

func (h *Handler) health(c *gin.Context) {
	status, body := http.StatusOK, "success"
	data := gin.H{"status": "healthy", "uptime": time.Since(h.started).Round(time.Second).String()}
	if h.Health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		if err := h.Health(ctx); err != nil {
			status, body = http.StatusServiceUnavailable, "error"
			data["status"] = "unhealthy"
			data["error"] = err.Error()
		}
	}
	c.JSON(status, Response{Status: body, Data: data})
}

func (h *Handler) version(c *gin.Context) {
	ok(c, gin.H{
		"name":       h.Config.App.Name,
		"version":    h.Config.App.Version,
		"env":        h.Config.App.Env,
		"strategies": h.Engine.Strategies(),
	})
}
