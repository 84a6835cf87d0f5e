package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiban/nurseshift/internal/auth"
	"github.com/paiban/nurseshift/internal/config"
	"github.com/paiban/nurseshift/internal/security"
	"github.com/paiban/nurseshift/pkg/logger"
)

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func setupAuthService() *auth.Service {
	return auth.NewService(config.AuthConfig{JWTSecret: "test-secret-123456", Issuer: "nurseshift", TokenTTL: time.Hour})
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuth_Success(t *testing.T) {
	svc := setupAuthService()
	router := setupTestRouter()
	router.GET("/protected", Auth(svc, false), func(c *gin.Context) {
		p, ok := Principal(c)
		require.True(t, ok)
		fromCtx, ok := auth.FromContext(c.Request.Context())
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"user": p.UserID, "same": fromCtx == p})
	})

	token, err := svc.Issue(auth.Principal{UserID: "nurse-7", Role: auth.RoleStaff})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := serve(router, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":"nurse-7","same":true}`, w.Body.String())
}

func TestAuth_MissingOrInvalidToken(t *testing.T) {
	router := setupTestRouter()
	router.GET("/protected", Auth(setupAuthService(), false), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := serve(router, httptest.NewRequest(http.MethodGet, "/protected", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"UNAUTHORIZED"`)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w = serve(router, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_Disabled(t *testing.T) {
	router := setupTestRouter()
	router.GET("/protected", Auth(nil, true), RequireRole(auth.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	w := serve(router, httptest.NewRequest(http.MethodGet, "/protected", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRequireRole_Forbidden(t *testing.T) {
	svc := setupAuthService()
	router := setupTestRouter()
	router.POST("/write", Auth(svc, false), RequireRole(auth.RoleAdmin, auth.RoleManager), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	token, _ := svc.Issue(auth.Principal{UserID: "nurse-7", Role: auth.RoleStaff})
	req := httptest.NewRequest(http.MethodPost, "/write", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := serve(router, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequestID(t *testing.T) {
	router := setupTestRouter()
	router.Use(RequestID())
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, logger.RequestIDFrom(c.Request.Context()))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "req-abc")
	w := serve(router, req)
	assert.Equal(t, "req-abc", w.Header().Get(HeaderRequestID))
	assert.Equal(t, "req-abc", w.Body.String())

	w = serve(router, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := w.Header().Get(HeaderRequestID)
	assert.NotEmpty(t, generated)
	assert.Equal(t, generated, w.Body.String())
}

func TestRecovery(t *testing.T) {
	router := setupTestRouter()
	router.Use(Recovery())
	router.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := serve(router, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"error"`)
}

type stubLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (s *stubLimiter) Allow(_ context.Context, key string) (bool, error) {
	s.keys = append(s.keys, key)
	return s.allow, s.err
}

func TestRateLimit(t *testing.T) {
	tests := []struct {
		name string
		lim  *stubLimiter
		want int
	}{
		{"允许", &stubLimiter{allow: true}, http.StatusOK},
		{"超限", &stubLimiter{allow: false}, http.StatusTooManyRequests},
		{"后端异常放行", &stubLimiter{err: errors.New("redis down")}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupTestRouter()
			router.GET("/", Auth(nil, true), RateLimit(tt.lim), func(c *gin.Context) { c.Status(http.StatusOK) })
			w := serve(router, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, tt.want, w.Code)
			assert.Equal(t, []string{"user:anonymous"}, tt.lim.keys)
		})
	}
}

func TestRateLimit_InMemory(t *testing.T) {
	lim := security.NewRateLimiter(2, time.Minute)
	defer lim.Stop()
	router := setupTestRouter()
	router.GET("/", RateLimit(lim), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 3)
	for i := range codes {
		codes[i] = serve(router, httptest.NewRequest(http.MethodGet, "/", nil)).Code
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestCORS(t *testing.T) {
	router := setupTestRouter()
	router.Use(CORS(config.CORSConfig{Enabled: true, Origins: []string{"https://ward.example"}}))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://ward.example")
	w := serve(router, req)
	assert.Equal(t, "https://ward.example", w.Header().Get("Access-Control-Allow-Origin"))
}
