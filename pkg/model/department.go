package model

import (
	"strings"

	"github.com/google/uuid"
)

// Role 人员角色
type Role string

const (
	RoleNurse     Role = "nurse"
	RoleAssistant Role = "assistant"
)

// Roles 排班时按此顺序处理角色
var Roles = []Role{RoleNurse, RoleAssistant}

// Valid 是否为合法角色
func (r Role) Valid() bool {
	return r == RoleNurse || r == RoleAssistant
}

// Department 科室
type Department struct {
	BaseModel
	Name          string `json:"name" db:"name"`
	MaxNurses     int    `json:"maxNurses" db:"max_nurses"`
	MaxAssistants int    `json:"maxAssistants" db:"max_assistants"`
	IsActive      bool   `json:"isActive" db:"is_active"`
}

// Staff 科室人员
type Staff struct {
	BaseModel
	DepartmentID uuid.UUID `json:"departmentId" db:"department_id"`
	Name         string    `json:"name" db:"name"`
	Position     string    `json:"position" db:"position"`
	Role         Role      `json:"role" db:"role"`
	IsActive     bool      `json:"isActive" db:"is_active"`
}

// RoleFromPosition 由职位名称推断角色，未识别的按护士处理
func RoleFromPosition(position string) Role {
	p := strings.TrimSpace(strings.ToLower(position))
	switch p {
	case "assistant", "ผู้ช่วยพยาบาล", "ผู้ช่วย":
		return RoleAssistant
	}
	if strings.Contains(p, "assist") || strings.Contains(p, "ผู้ช่วย") {
		return RoleAssistant
	}
	return RoleNurse
}

// EffectiveRole 角色为空时由职位推断
func (s *Staff) EffectiveRole() Role {
	if s.Role.Valid() {
		return s.Role
	}
	return RoleFromPosition(s.Position)
}

// LeaveStatus 请假状态
type LeaveStatus string

const (
	LeavePending   LeaveStatus = "pending"
	LeaveApproved  LeaveStatus = "approved"
	LeaveCancelled LeaveStatus = "cancelled"
)

// Leave 请假记录
type Leave struct {
	ID      uuid.UUID   `json:"id" db:"id"`
	StaffID uuid.UUID   `json:"staffId" db:"staff_id"`
	Status  LeaveStatus `json:"status" db:"status"`
	DateRange
}

// Covers 是否为覆盖该日期的有效请假；待审批与已批准都算，只有取消的不算
func (l *Leave) Covers(d Date) bool {
	return l.Status != LeaveCancelled && l.Contains(d)
}
