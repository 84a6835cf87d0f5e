// Package errors 提供统一的错误处理框架
package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// Code 错误码
type Code string

const (
	// 通用错误码
	CodeUnknown      Code = "UNKNOWN"
	CodeInternal     Code = "INTERNAL_ERROR"
	CodeInvalidInput Code = "INVALID_INPUT"
	CodeNotFound     Code = "NOT_FOUND"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeTimeout      Code = "TIMEOUT"
	CodeRateLimited  Code = "RATE_LIMITED"

	// 排班引擎相关
	CodeIneligible           Code = "INELIGIBLE"
	CodeGenerationInProgress Code = "GENERATION_IN_PROGRESS"
	CodeAlreadyGenerated     Code = "ALREADY_GENERATED"
	CodeShiftBusy            Code = "SHIFT_BUSY"

	// 数据相关
	CodeDatabaseError  Code = "DATABASE_ERROR"
	CodePersistence    Code = "PERSISTENCE_ERROR"
	CodeValidationFail Code = "VALIDATION_FAILED"
)

// AppError 应用错误
type AppError struct {
	Code       Code                   `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
	Cause      error                  `json:"-"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails 添加详细信息
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithCause 添加原因
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithField 添加字段
func (e *AppError) WithField(key string, value interface{}) *AppError {
	if e.Fields == nil {
		e.Fields = make(map[string]interface{})
	}
	e.Fields[key] = value
	return e
}

// New 创建新错误
func New(code Code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

// Wrap 包装错误
func Wrap(err error, code Code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

// codeToHTTPStatus 错误码转HTTP状态码
func codeToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput, CodeValidationFail:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeGenerationInProgress, CodeAlreadyGenerated, CodeShiftBusy:
		return http.StatusConflict
	case CodeIneligible:
		return http.StatusUnprocessableEntity
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Is 检查错误是否为特定类型
func Is(err error, code Code) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// GetCode 获取错误码
func GetCode(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// GetHTTPStatus 获取HTTP状态码
func GetHTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// InvalidInput 创建输入无效错误
func InvalidInput(field, reason string) *AppError {
	return New(CodeInvalidInput, fmt.Sprintf("ข้อมูล '%s' ไม่ถูกต้อง: %s", field, reason)).
		WithField(field, reason)
}

// NotFound 创建资源不存在错误
func NotFound(resource, id string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("ไม่พบ%s '%s'", resource, id))
}

// OutOfRange 设置值超出允许范围 (ValidationError)
func OutOfRange(field string, value, min, max int) *AppError {
	return New(CodeValidationFail, fmt.Sprintf("ค่า %s ต้องอยู่ระหว่าง %d ถึง %d", field, min, max)).
		WithField(field, value).
		WithField("min", min).
		WithField("max", max)
}

// Ineligible 人员不可排入该班次 (EligibilityError)
func Ineligible(staffID, date, reason string) *AppError {
	return New(CodeIneligible, "ไม่สามารถจัดเวรให้บุคลากรนี้ได้").
		WithDetails(reason).
		WithField("staffId", staffID).
		WithField("date", date).
		WithField("reason", reason)
}

// GenerationInProgress 同一科室同月正在生成 (ConcurrencyError)
func GenerationInProgress(departmentID, month string) *AppError {
	return New(CodeGenerationInProgress, "กำลังจัดตารางเวรของเดือนนี้อยู่ กรุณาลองใหม่ภายหลัง").
		WithField("departmentId", departmentID).
		WithField("month", month)
}

// AlreadyGenerated 目标时间段已有有效排班
func AlreadyGenerated(departmentID, month string, existing int) *AppError {
	return New(CodeAlreadyGenerated, "มีตารางเวรในช่วงนี้อยู่แล้ว กรุณาล้างข้อมูลก่อนจัดใหม่").
		WithField("departmentId", departmentID).
		WithField("month", month).
		WithField("existing", existing)
}

// ShiftBusy 班次正在被其他请求修改
func ShiftBusy(shiftID, date string) *AppError {
	return New(CodeShiftBusy, "เวรนี้กำลังถูกแก้ไขอยู่ กรุณาลองใหม่").
		WithField("shiftId", shiftID).
		WithField("date", date)
}

// RosterBusy 科室排班正在被人工调整
func RosterBusy(departmentID string) *AppError {
	return New(CodeShiftBusy, "มีการแก้ไขตารางเวรของแผนกนี้อยู่ กรุณาลองใหม่").
		WithField("departmentId", departmentID)
}

// Persistence 存储失败 (PersistenceError)
func Persistence(err error, op string) *AppError {
	return Wrap(err, CodePersistence, "บันทึกข้อมูลไม่สำเร็จ").WithDetails(op)
}

// Database 数据库访问失败
func Database(err error) *AppError {
	return Wrap(err, CodeDatabaseError, "เกิดข้อผิดพลาดกับฐานข้อมูล")
}

// Unauthorized 未授权访问
func Unauthorized(reason string) *AppError {
	return New(CodeUnauthorized, "ไม่ได้รับอนุญาต").WithDetails(reason)
}

// Forbidden 无权操作该科室
func Forbidden(departmentID string) *AppError {
	return New(CodeForbidden, "ไม่มีสิทธิ์จัดการตารางเวรของแผนกนี้").WithField("departmentId", departmentID)
}

// ValidationErrors 验证错误集合
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// ValidationError 单个验证错误
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error 实现 error 接口
func (ve *ValidationErrors) Error() string {
	if len(ve.Errors) == 0 {
		return "验证失败"
	}
	return fmt.Sprintf("验证失败: %s - %s", ve.Errors[0].Field, ve.Errors[0].Message)
}

// Add 添加验证错误
func (ve *ValidationErrors) Add(field, message string) {
	ve.Errors = append(ve.Errors, ValidationError{Field: field, Message: message})
}

// HasErrors 检查是否有错误
func (ve *ValidationErrors) HasErrors() bool {
	return len(ve.Errors) > 0
}

// ToAppError 转换为 AppError
func (ve *ValidationErrors) ToAppError() *AppError {
	err := New(CodeValidationFail, "ข้อมูลไม่ถูกต้อง")
	err.Fields = make(map[string]interface{})
	for _, e := range ve.Errors {
		err.Fields[e.Field] = e.Message
	}
	return err
}

// FromValidator 将 validator 的校验结果转换为 AppError
func FromValidator(err error) *AppError {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return Wrap(err, CodeInvalidInput, "รูปแบบข้อมูลไม่ถูกต้อง")
	}
	ve := &ValidationErrors{}
	for _, fe := range fieldErrs {
		msg := fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		ve.Add(fe.Field(), msg)
	}
	return ve.ToAppError()
}
