package builtin

import (
	"github.com/paiban/nurseshift/pkg/scheduler/constraint"
)

// ActiveStaffConstraint 人员在职且属于该科室
type ActiveStaffConstraint struct {
	baseConstraint
}

// NewActiveStaffConstraint 创建在职约束
func NewActiveStaffConstraint() *ActiveStaffConstraint {
	return &ActiveStaffConstraint{baseConstraint{"在职人员", constraint.ReasonInactiveStaff}}
}

// Allows 实现 Constraint
func (c *ActiveStaffConstraint) Allows(ctx *constraint.Context, cand *constraint.Candidate) bool {
	return cand.Staff.IsActive && cand.Staff.DepartmentID == ctx.DepartmentID
}

// WorkingDayConstraint 日期必须是科室工作日且不在假期内
type WorkingDayConstraint struct {
	baseConstraint
}

// NewWorkingDayConstraint 创建工作日约束
func NewWorkingDayConstraint() *WorkingDayConstraint {
	return &WorkingDayConstraint{baseConstraint{"工作日", constraint.ReasonNonWorkingDay}}
}

// Allows 实现 Constraint
func (c *WorkingDayConstraint) Allows(ctx *constraint.Context, cand *constraint.Candidate) bool {
	return ctx.Calendar.IsWorkingDay(cand.Date)
}

// LeaveConstraint 请假日不可排班
type LeaveConstraint struct {
	baseConstraint
}

// NewLeaveConstraint 创建请假约束
func NewLeaveConstraint() *LeaveConstraint {
	return &LeaveConstraint{baseConstraint{"请假", constraint.ReasonOnLeave}}
}

// Allows 实现 Constraint
func (c *LeaveConstraint) Allows(ctx *constraint.Context, cand *constraint.Candidate) bool {
	return !ctx.IsOnLeave(cand.Staff.ID, cand.Date)
}

// OverlapConstraint 同一人员的班次时间窗口不可重叠（含跨零点班次）
type OverlapConstraint struct {
	baseConstraint
}

// NewOverlapConstraint 创建时间重叠约束
func NewOverlapConstraint() *OverlapConstraint {
	return &OverlapConstraint{baseConstraint{"时间重叠", constraint.ReasonOverlap}}
}

// Allows 实现 Constraint
func (c *OverlapConstraint) Allows(ctx *constraint.Context, cand *constraint.Candidate) bool {
	for _, w := range ctx.StaffWindows(cand.Staff.ID) {
		if w.Overlaps(cand.Window) {
			return false
		}
	}
	return true
}
