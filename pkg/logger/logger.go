// Package logger 提供统一的日志框架
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	once   sync.Once
	logger zerolog.Logger
)

// Level 日志级别
type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	FatalLevel = zerolog.FatalLevel
)

// Config 日志配置
type Config struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"` // json/console
	Output     string `yaml:"output" json:"output"` // stdout/stderr/file
	FilePath   string `yaml:"file_path,omitempty" json:"file_path,omitempty"`
	TimeFormat string `yaml:"time_format,omitempty" json:"time_format,omitempty"`
	Service    string `yaml:"service,omitempty" json:"service,omitempty"` // 写入每条日志的 service 字段
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
		Service:    "nurseshift",
	}
}

// Init 初始化全局日志器，只有第一次调用生效
func Init(cfg Config) {
	once.Do(func() {
		zerolog.SetGlobalLevel(parseLevel(cfg.Level))
		logger = New(cfg, openOutput(cfg))
	})
}

// New 按配置创建写入 w 的日志器，不修改全局状态
func New(cfg Config, w io.Writer) zerolog.Logger {
	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: cfg.TimeFormat, NoColor: cfg.Output == "file"}
	}
	ctx := zerolog.New(w).Level(parseLevel(cfg.Level)).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	return ctx.Logger()
}

// openOutput 打开日志输出；日志文件无法打开时退回标准输出
func openOutput(cfg Config) io.Writer {
	switch cfg.Output {
	case "stderr":
		return os.Stderr
	case "file":
		if cfg.FilePath == "" {
			return os.Stdout
		}
		f, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "无法打开日志文件 %s: %v\n", cfg.FilePath, err)
			return os.Stdout
		}
		return f
	}
	return os.Stdout
}

// parseLevel 解析日志级别，无法识别时使用 info
func parseLevel(level string) zerolog.Level {
	if level == "warning" {
		level = "warn"
	}
	l, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return l
}

// Get 获取日志器，未初始化时使用默认配置
func Get() *zerolog.Logger {
	Init(DefaultConfig())
	return &logger
}

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	userIDKey    ctxKey = "user_id"
)

// ContextWithRequestID 在上下文中记录请求ID
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// ContextWithUserID 在上下文中记录操作用户
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// RequestIDFrom 读取请求ID
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithContext 从上下文创建日志器
func WithContext(ctx context.Context) *zerolog.Logger {
	l := Get().With().Logger()

	if reqID, ok := ctx.Value(requestIDKey).(string); ok && reqID != "" {
		l = l.With().Str("request_id", reqID).Logger()
	}
	if userID, ok := ctx.Value(userIDKey).(string); ok && userID != "" {
		l = l.With().Str("user_id", userID).Logger()
	}

	return &l
}

// Debug 记录调试日志
func Debug() *zerolog.Event {
	return Get().Debug()
}

// Info 记录信息日志
func Info() *zerolog.Event {
	return Get().Info()
}

// Warn 记录警告日志
func Warn() *zerolog.Event {
	return Get().Warn()
}

// Error 记录错误日志
func Error() *zerolog.Event {
	return Get().Error()
}

// Fatal 记录致命错误日志
func Fatal() *zerolog.Event {
	return Get().Fatal()
}

// WithError 添加错误信息
func WithError(err error) *zerolog.Event {
	return Get().Error().Err(err)
}

// WithField 添加字段
func WithField(key string, value interface{}) *zerolog.Logger {
	l := Get().With().Interface(key, value).Logger()
	return &l
}

// WithFields 添加多个字段
func WithFields(fields map[string]interface{}) *zerolog.Logger {
	ctx := Get().With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	l := ctx.Logger()
	return &l
}

// SchedulerLogger 排班引擎专用日志器
type SchedulerLogger struct {
	base *zerolog.Logger
}

// NewSchedulerLogger 创建排班引擎日志器
func NewSchedulerLogger(ctx context.Context) *SchedulerLogger {
	l := WithContext(ctx).With().Str("component", "scheduler").Logger()
	return &SchedulerLogger{base: &l}
}

// StartGenerate 记录排班开始
func (l *SchedulerLogger) StartGenerate(departmentID, month, strategy string, staff, days int) {
	l.base.Info().
		Str("department_id", departmentID).
		Str("month", month).
		Str("strategy", strategy).
		Int("staff", staff).
		Int("days", days).
		Msg("开始生成排班")
}

// Shortfall 记录班次人手不足
func (l *SchedulerLogger) Shortfall(date, shiftID, role string, required, assigned int) {
	l.base.Warn().
		Str("date", date).
		Str("shift_id", shiftID).
		Str("role", role).
		Int("required", required).
		Int("assigned", assigned).
		Msg("班次人手不足")
}

// Rejected 记录候选人被排除的原因
func (l *SchedulerLogger) Rejected(staffID, date, reason string) {
	l.base.Debug().
		Str("staff_id", staffID).
		Str("date", date).
		Str("reason", reason).
		Msg("候选人不可排")
}

// GenerateComplete 记录排班完成
func (l *SchedulerLogger) GenerateComplete(departmentID, month string, inserted int, duration time.Duration, err error) {
	ev := l.base.Info()
	if err != nil {
		ev = l.base.Error().Err(err)
	}
	ev.Str("department_id", departmentID).
		Str("month", month).
		Int("inserted", inserted).
		Dur("duration", duration).
		Msg("排班生成结束")
}
