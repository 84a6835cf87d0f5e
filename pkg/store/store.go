// Package store 定义排班服务依赖的持久化接口
//
// Postgres 实现位于 internal/repository，内存实现位于 internal/memstore。
// Get* 方法在记录不存在时返回 (nil, nil)。
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/paiban/nurseshift/pkg/model"
)

// ErrDuplicate 同一人员同日同班次已有有效排班
var ErrDuplicate = errors.New("duplicate active assignment")

// DepartmentStore 科室与人员目录
type DepartmentStore interface {
	GetDepartment(ctx context.Context, id uuid.UUID) (*model.Department, error)
	ListDepartments(ctx context.Context) ([]*model.Department, error)
	GetStaff(ctx context.Context, id uuid.UUID) (*model.Staff, error)
	ListStaff(ctx context.Context, departmentID uuid.UUID) ([]*model.Staff, error)
}

// ShiftStore 班次配置
type ShiftStore interface {
	GetShift(ctx context.Context, id uuid.UUID) (*model.Shift, error)
	ListShifts(ctx context.Context, departmentID uuid.UUID, activeOnly bool) ([]*model.Shift, error)
}

// CalendarStore 工作日、假期与请假
type CalendarStore interface {
	ListWorkingDays(ctx context.Context, departmentID uuid.UUID) ([]model.WorkingDay, error)
	ListHolidays(ctx context.Context, departmentID uuid.UUID, r model.DateRange) ([]*model.Holiday, error)
	// ListLeaves 返回与范围相交且未取消的请假
	ListLeaves(ctx context.Context, departmentID uuid.UUID, r model.DateRange) ([]*model.Leave, error)
}

// PriorityStore 优先级规则
type PriorityStore interface {
	ListPriorities(ctx context.Context, departmentID uuid.UUID) ([]*model.Priority, error)
	GetPriority(ctx context.Context, id uuid.UUID) (*model.Priority, error)
	CreatePriorities(ctx context.Context, priorities []*model.Priority) error
	UpdatePriority(ctx context.Context, p *model.Priority) error
	// MovePriority 将优先级移动到指定序号，其余重新压缩为 1..N，需在事务中完成
	MovePriority(ctx context.Context, id uuid.UUID, order int) error
	// SwapPriorityOrder 原子交换两个优先级的序号
	SwapPriorityOrder(ctx context.Context, a, b uuid.UUID) error
}

// AssignmentFilter 排班查询条件
type AssignmentFilter struct {
	DepartmentID uuid.UUID
	StaffIDs     []uuid.UUID
	ShiftID      uuid.UUID
	From         model.Date
	To           model.Date
	ActiveOnly   bool
}

// AssignmentStore 排班记录
type AssignmentStore interface {
	// CreateAssignment 唯一约束冲突时返回 ErrDuplicate
	CreateAssignment(ctx context.Context, a *model.Assignment) error
	GetAssignment(ctx context.Context, id uuid.UUID) (*model.Assignment, error)
	UpdateAssignment(ctx context.Context, a *model.Assignment) error
	ListAssignments(ctx context.Context, f AssignmentFilter) ([]*model.Assignment, error)
	CountActive(ctx context.Context, departmentID uuid.UUID, r model.DateRange) (int, error)
	// CancelAssignments 只取消仍有效的记录，返回实际取消数
	CancelAssignments(ctx context.Context, ids []uuid.UUID) (int, error)
	CancelRange(ctx context.Context, departmentID uuid.UUID, r model.DateRange) (int, error)
}

// Store 聚合接口
type Store interface {
	DepartmentStore
	ShiftStore
	CalendarStore
	PriorityStore
	AssignmentStore
}
