// Package handler 提供 HTTP 接口
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	apperrors "github.com/paiban/nurseshift/pkg/errors"
	"github.com/paiban/nurseshift/pkg/logger"
)

// Response 统一响应格式
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Code    string      `json:"code,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

var validate = validator.New()

func respond(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Response{Status: "success", Message: message, Data: data})
}

func ok(c *gin.Context, data interface{}) {
	respond(c, http.StatusOK, "", data)
}

// fail 把错误转换为统一响应；非 AppError 视为内部错误
func fail(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.Wrap(err, apperrors.CodeInternal, "เกิดข้อผิดพลาดภายในระบบ")
	}
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		logger.WithContext(c.Request.Context()).Error().Err(err).Str("path", c.FullPath()).Msg("请求失败")
	}

	resp := Response{Status: "error", Code: string(appErr.Code), Message: appErr.Message}
	switch {
	case len(appErr.Fields) > 0:
		resp.Details = appErr.Fields
	case appErr.Details != "":
		resp.Details = appErr.Details
	}
	c.JSON(appErr.HTTPStatus, resp)
}

// bind 解析并校验请求体
func bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		fail(c, apperrors.Wrap(err, apperrors.CodeInvalidInput, "รูปแบบข้อมูลไม่ถูกต้อง").WithDetails(err.Error()))
		return false
	}
	if err := validate.Struct(dst); err != nil {
		fail(c, apperrors.FromValidator(err))
		return false
	}
	return true
}

func parseID(c *gin.Context, field, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		fail(c, apperrors.InvalidInput(field, "รูปแบบ UUID ไม่ถูกต้อง"))
		return uuid.Nil, false
	}
	return id, true
}

func queryID(c *gin.Context, field string) (uuid.UUID, bool) {
	return parseID(c, field, c.Query(field))
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	return parseID(c, "id", c.Param("id"))
}
