// Package middleware 提供 gin 中间件
package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/paiban/nurseshift/internal/auth"
	"github.com/paiban/nurseshift/internal/config"
	"github.com/paiban/nurseshift/internal/metrics"
	"github.com/paiban/nurseshift/internal/security"
	apperrors "github.com/paiban/nurseshift/pkg/errors"
	"github.com/paiban/nurseshift/pkg/logger"
)

const (
	HeaderRequestID = "X-Request-ID"
	principalKey    = "principal"
)

func abort(c *gin.Context, err *apperrors.AppError) {
	body := gin.H{
		"status":  "error",
		"code":    err.Code,
		"message": err.Message,
	}
	if err.Details != "" {
		body["details"] = err.Details
	}
	c.AbortWithStatusJSON(err.HTTPStatus, body)
}

// RequestID 透传或生成请求ID，写入请求上下文供日志使用
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.New().String()
		}
		c.Header(HeaderRequestID, id)
		c.Request = c.Request.WithContext(logger.ContextWithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// AccessLog 请求日志与请求指标
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start)
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := c.Writer.Status()
		metrics.RecordRequest(c.Request.Method, path, status, duration)

		event := logger.WithContext(c.Request.Context()).Info()
		if status >= http.StatusInternalServerError {
			event = logger.WithContext(c.Request.Context()).Error()
		} else if status >= http.StatusBadRequest {
			event = logger.WithContext(c.Request.Context()).Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP请求")
	}
}

// Recovery 捕获 panic 并返回统一错误
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if p := recover(); p != nil {
				logger.WithContext(c.Request.Context()).Error().
					Interface("panic", p).
					Bytes("stack", debug.Stack()).
					Msg("请求处理 panic")
				abort(c, apperrors.New(apperrors.CodeInternal, "เกิดข้อผิดพลาดภายในระบบ"))
			}
		}()
		c.Next()
	}
}

// Auth 校验 Bearer token；disabled 时以匿名管理员身份放行
func Auth(svc *auth.Service, disabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var p *auth.Principal
		if disabled {
			p = auth.Anonymous()
		} else {
			token := security.ExtractBearer(c.Request)
			if token == "" {
				abort(c, apperrors.Unauthorized("ไม่พบ token"))
				return
			}
			var err error
			if p, err = svc.Parse(token); err != nil {
				abort(c, apperrors.Unauthorized(err.Error()))
				return
			}
		}

		ctx := auth.WithPrincipal(c.Request.Context(), p)
		ctx = logger.ContextWithUserID(ctx, p.UserID)
		c.Request = c.Request.WithContext(ctx)
		c.Set(principalKey, p)
		c.Next()
	}
}

// Principal 读取当前主体
func Principal(c *gin.Context) (*auth.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*auth.Principal)
	return p, ok
}

// RequireRole 限制角色，需放在 Auth 之后
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := Principal(c)
		if !ok {
			abort(c, apperrors.Unauthorized("ไม่ได้เข้าสู่ระบบ"))
			return
		}
		for _, r := range roles {
			if p.Role == r {
				c.Next()
				return
			}
		}
		abort(c, apperrors.New(apperrors.CodeForbidden, "ไม่มีสิทธิ์ดำเนินการ"))
	}
}

// RateLimit 按用户或客户端IP限流；限流后端异常时放行
func RateLimit(l security.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if p, ok := Principal(c); ok {
			key = "user:" + p.UserID
		}
		allowed, err := l.Allow(c.Request.Context(), key)
		if err != nil {
			logger.WithContext(c.Request.Context()).Warn().Err(err).Msg("限流检查失败")
			c.Next()
			return
		}
		if !allowed {
			abort(c, apperrors.New(apperrors.CodeRateLimited, security.ErrRateLimitExceeded.Error()))
			return
		}
		c.Next()
	}
}

// SecurityHeaders 安全响应头
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		c.Next()
	}
}

// CORS 跨域配置；未配置来源时允许全部
func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", HeaderRequestID},
		ExposeHeaders: []string{"Content-Length", HeaderRequestID},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.Origins) == 0 {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = cfg.Origins
		cc.AllowCredentials = true
	}
	return cors.New(cc)
}
