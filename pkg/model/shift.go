package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const minutesPerDay = 24 * 60

// Shift 班次定义，每个科室每天重复
type Shift struct {
	BaseModel
	DepartmentID       uuid.UUID `json:"departmentId" db:"department_id"`
	Name               string    `json:"name" db:"name"`
	ShiftType          string    `json:"type" db:"shift_type"`      // morning/afternoon/night
	StartTime          string    `json:"startTime" db:"start_time"` // HH:MM
	EndTime            string    `json:"endTime" db:"end_time"`     // HH:MM，可跨零点
	RequiredNurses     int       `json:"requiredNurse" db:"required_nurses"`
	RequiredAssistants int       `json:"requiredAsst" db:"required_assistants"`
	Color              string    `json:"color,omitempty" db:"color"`
	IsActive           bool      `json:"isActive" db:"is_active"`
}

// ParseClock 解析 HH:MM（兼容 HH:MM:SS）为当日分钟数
func ParseClock(s string) (int, error) {
	var hh, mm int
	if _, err := fmt.Sscanf(s, "%d:%d", &hh, &mm); err != nil {
		return 0, fmt.Errorf("时间格式错误 %q: %w", s, err)
	}
	if hh < 0 || hh > 24 || mm < 0 || mm > 59 || (hh == 24 && mm != 0) {
		return 0, fmt.Errorf("时间超出范围 %q", s)
	}
	return hh*60 + mm, nil
}

// TimeWindow 半开区间 [Start, End)，单位为自 1970-01-01 起的绝对分钟
type TimeWindow struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// NormalizeWindow 将班次起止时间锚定到日期上；结束不晚于开始时视为跨零点
func NormalizeWindow(date Date, start, end string) (TimeWindow, error) {
	s, err := ParseClock(start)
	if err != nil {
		return TimeWindow{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return TimeWindow{}, err
	}
	if e <= s {
		e += minutesPerDay
	}
	base := date.DayIndex() * minutesPerDay
	return TimeWindow{Start: base + s, End: base + e}, nil
}

// Overlaps 两个窗口是否共享任一分钟，首尾相接不算重叠
func (w TimeWindow) Overlaps(other TimeWindow) bool {
	return w.Start < other.End && other.Start < w.End
}

// Minutes 窗口时长
func (w TimeWindow) Minutes() int {
	return w.End - w.Start
}

// Window 返回班次在指定日期的绝对时间窗口
func (s *Shift) Window(date Date) (TimeWindow, error) {
	return NormalizeWindow(date, s.StartTime, s.EndTime)
}

// DurationMinutes 班次时长（分钟）
func (s *Shift) DurationMinutes() int {
	w, err := NormalizeWindow("1970-01-01", s.StartTime, s.EndTime)
	if err != nil {
		return 0
	}
	return w.Minutes()
}

// DurationHours 班次时长（小时）
func (s *Shift) DurationHours() float64 {
	return float64(s.DurationMinutes()) / 60.0
}

// StartMinute 开始时间的当日分钟数，解析失败排在最后
func (s *Shift) StartMinute() int {
	m, err := ParseClock(s.StartTime)
	if err != nil {
		return minutesPerDay
	}
	return m
}

// IsNightShift 检查是否为夜班：显式类型、名称或时间判断
func (s *Shift) IsNightShift() bool {
	if s.ShiftType == "night" {
		return true
	}
	name := strings.ToLower(s.Name)
	if strings.Contains(name, "ดึก") || strings.Contains(name, "night") {
		return true
	}
	start, err := ParseClock(s.StartTime)
	if err != nil {
		return false
	}
	end, err := ParseClock(s.EndTime)
	if err != nil {
		return false
	}
	return end <= start || start >= 22*60 || start < 5*60
}

// Required 按角色返回需求人数
func (s *Shift) Required(role Role) int {
	if role == RoleAssistant {
		return s.RequiredAssistants
	}
	return s.RequiredNurses
}
