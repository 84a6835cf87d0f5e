// Package model 定义排班引擎的核心数据模型
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
)

// BaseModel 基础模型（包含通用字段）
type BaseModel struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// NewBaseModel 创建新的基础模型
func NewBaseModel() BaseModel {
	now := time.Now()
	return BaseModel{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Date 日历日期 (YYYY-MM-DD)，按字符串比较即按时间先后
type Date string

// ParseDate 解析日期
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", fmt.Errorf("日期格式错误 %q: %w", s, err)
	}
	return Date(t.Format(DateLayout)), nil
}

// DateOf 从时间构造日期
func DateOf(t time.Time) Date {
	return Date(t.Format(DateLayout))
}

// Time 返回UTC零点
func (d Date) Time() time.Time {
	t, _ := time.Parse(DateLayout, string(d))
	return t
}

// AddDays 日期偏移
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// Weekday 星期 (0=周日)
func (d Date) Weekday() time.Weekday {
	return d.Time().Weekday()
}

// Month 所在月份
func (d Date) Month() Month {
	if len(d) < 7 {
		return ""
	}
	return Month(d[:7])
}

// DayIndex 自 1970-01-01 起的天数，用于计算绝对分钟
func (d Date) DayIndex() int {
	return int(d.Time().Unix() / 86400)
}

// String 实现 Stringer
func (d Date) String() string {
	return string(d)
}

// Scan 实现 sql.Scanner，兼容 DATE 列返回的 time.Time
func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = ""
	case time.Time:
		*d = DateOf(v)
	case []byte:
		return d.scanString(string(v))
	case string:
		return d.scanString(v)
	default:
		return fmt.Errorf("无法将 %T 转换为日期", src)
	}
	return nil
}

func (d *Date) scanString(s string) error {
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value 实现 driver.Valuer
func (d Date) Value() (driver.Value, error) {
	if d == "" {
		return nil, nil
	}
	return string(d), nil
}

// Month 月份 (YYYY-MM)
type Month string

// ParseMonth 解析月份
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse(MonthLayout, s)
	if err != nil {
		return "", fmt.Errorf("月份格式错误 %q: %w", s, err)
	}
	return Month(t.Format(MonthLayout)), nil
}

// First 当月第一天
func (m Month) First() Date {
	return Date(string(m) + "-01")
}

// Last 当月最后一天
func (m Month) Last() Date {
	return DateOf(m.First().Time().AddDate(0, 1, -1))
}

// Days 当月所有日期
func (m Month) Days() []Date {
	return DateRange{Start: m.First(), End: m.Last()}.Days()
}

// Contains 日期是否属于该月
func (m Month) Contains(d Date) bool {
	return d.Month() == m
}

// String 实现 Stringer
func (m Month) String() string {
	return string(m)
}

// DateRange 闭区间日期范围
type DateRange struct {
	Start Date `json:"startDate" db:"start_date"`
	End   Date `json:"endDate" db:"end_date"`
}

// Contains 日期是否在范围内（含两端）
func (r DateRange) Contains(d Date) bool {
	return d >= r.Start && d <= r.End
}

// Days 展开范围内所有日期
func (r DateRange) Days() []Date {
	if r.End < r.Start {
		return nil
	}
	days := make([]Date, 0, 31)
	for d := r.Start; d <= r.End; d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

// JSONMap 用于存储 JSONB 数据
type JSONMap map[string]interface{}

// Scan 实现 sql.Scanner
func (m *JSONMap) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("无法将 %T 转换为 JSONMap", src)
	}
	if len(raw) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(raw, m)
}

// Value 实现 driver.Valuer
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
