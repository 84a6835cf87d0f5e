package model

import (
	"time"

	"github.com/google/uuid"
)

// WorkingDay 科室每周工作日配置
type WorkingDay struct {
	DepartmentID uuid.UUID    `json:"departmentId" db:"department_id"`
	DayOfWeek    time.Weekday `json:"dayOfWeek" db:"day_of_week"` // 0=周日
	IsWorkingDay bool         `json:"isWorkingDay" db:"is_working_day"`
}

// Holiday 科室假期，范围内的日期不排班
type Holiday struct {
	ID           uuid.UUID `json:"id" db:"id"`
	DepartmentID uuid.UUID `json:"departmentId" db:"department_id"`
	Name         string    `json:"name" db:"name"`
	DateRange
}

// CalendarDay 日历元数据
type CalendarDay struct {
	Date      Date `json:"date"`
	IsWorking bool `json:"isWorking"`
	IsHoliday bool `json:"isHoliday"`
}
