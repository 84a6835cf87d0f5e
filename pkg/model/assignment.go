package model

import (
	"github.com/google/uuid"
)

// AssignmentStatus 排班状态
type AssignmentStatus string

const (
	StatusActive    AssignmentStatus = "active"
	StatusCancelled AssignmentStatus = "cancelled"
)

// Assignment 排班分配；取消只改状态，不物理删除
type Assignment struct {
	BaseModel
	DepartmentID uuid.UUID        `json:"departmentId" db:"department_id"`
	StaffID      uuid.UUID        `json:"userId" db:"staff_id"`
	ShiftID      uuid.UUID        `json:"shiftId" db:"shift_id"`
	Date         Date             `json:"scheduleDate" db:"schedule_date"`
	Role         Role             `json:"departmentRole" db:"role_at_assignment"`
	Status       AssignmentStatus `json:"status" db:"status"`
	Notes        string           `json:"notes,omitempty" db:"notes"`
}

// NewAssignment 创建有效排班
func NewAssignment(departmentID, staffID, shiftID uuid.UUID, date Date, role Role) *Assignment {
	return &Assignment{
		BaseModel:    NewBaseModel(),
		DepartmentID: departmentID,
		StaffID:      staffID,
		ShiftID:      shiftID,
		Date:         date,
		Role:         role,
		Status:       StatusActive,
	}
}

// IsActive 是否为有效排班
func (a *Assignment) IsActive() bool {
	return a.Status == StatusActive
}

// IsOnDate 检查分配是否在指定日期
func (a *Assignment) IsOnDate(date Date) bool {
	return a.Date == date
}

// Shortfall 班次人手缺口
type Shortfall struct {
	Date     Date      `json:"date"`
	ShiftID  uuid.UUID `json:"shiftId"`
	Role     Role      `json:"role"`
	Required int       `json:"required"`
	Assigned int       `json:"assigned"`
}

// Missing 缺少人数
func (s Shortfall) Missing() int {
	return s.Required - s.Assigned
}
