// Package builtin 提供护理排班的内置资格约束
package builtin

import (
	"github.com/paiban/nurseshift/pkg/scheduler/constraint"
)

// Default 返回按检查顺序排列的全部内置约束
//
// 顺序决定返回的原因：在职 → 工作日 → 请假 → 时间重叠 → 连续班次 → 连续夜班 → 连续工时。
func Default() []constraint.Constraint {
	return []constraint.Constraint{
		NewActiveStaffConstraint(),
		NewWorkingDayConstraint(),
		NewLeaveConstraint(),
		NewOverlapConstraint(),
		NewConsecutiveShiftsConstraint(),
		NewConsecutiveNightsConstraint(),
		NewConsecutiveWorkHoursConstraint(),
	}
}

// NewManager 创建注册了全部内置约束的管理器
func NewManager() *constraint.Manager {
	return constraint.NewManager(Default()...)
}

// baseConstraint 约束公共字段
type baseConstraint struct {
	name   string
	reason constraint.Reason
}

func (b *baseConstraint) Name() string {
	return b.name
}

func (b *baseConstraint) Reason() constraint.Reason {
	return b.reason
}
