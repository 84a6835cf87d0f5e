package builtin

import (
	"sort"

	"github.com/paiban/nurseshift/pkg/model"
	"github.com/paiban/nurseshift/pkg/scheduler/constraint"
)

// ConsecutiveShiftsConstraint 连续上班天数上限
// 任意一天没有排班即中断连续。
type ConsecutiveShiftsConstraint struct {
	baseConstraint
}

// NewConsecutiveShiftsConstraint 创建连续班次约束
func NewConsecutiveShiftsConstraint() *ConsecutiveShiftsConstraint {
	return &ConsecutiveShiftsConstraint{baseConstraint{"连续班次", constraint.ReasonMaxConsecutiveShifts}}
}

// Allows 实现 Constraint
func (c *ConsecutiveShiftsConstraint) Allows(ctx *constraint.Context, cand *constraint.Candidate) bool {
	limit, ok := ctx.Rules.Limit(model.SettingMaxConsecutiveShifts)
	if !ok {
		return true
	}
	return StreakWith(ctx.WorkedDays(cand.Staff.ID, false), cand.Date) <= limit
}

// ConsecutiveNightsConstraint 连续夜班天数上限，只对夜班候选生效
type ConsecutiveNightsConstraint struct {
	baseConstraint
}

// NewConsecutiveNightsConstraint 创建连续夜班约束
func NewConsecutiveNightsConstraint() *ConsecutiveNightsConstraint {
	return &ConsecutiveNightsConstraint{baseConstraint{"连续夜班", constraint.ReasonMaxConsecutiveNights}}
}

// Allows 实现 Constraint
func (c *ConsecutiveNightsConstraint) Allows(ctx *constraint.Context, cand *constraint.Candidate) bool {
	if !cand.Shift.IsNightShift() {
		return true
	}
	limit, ok := ctx.Rules.Limit(model.SettingMaxConsecutiveNightShifts)
	if !ok {
		return true
	}
	return StreakWith(ctx.WorkedDays(cand.Staff.ID, true), cand.Date) <= limit
}

// StreakWith 假设 d 当天上班，返回包含 d 的连续天数
func StreakWith(days map[model.Date]bool, d model.Date) int {
	streak := 1
	for cur := d.AddDays(-1); days[cur]; cur = cur.AddDays(-1) {
		streak++
	}
	for cur := d.AddDays(1); days[cur]; cur = cur.AddDays(1) {
		streak++
	}
	return streak
}

// ConsecutiveWorkHoursConstraint 不间断工作时长上限
// 首尾相接或重叠的班次视为同一段连续工作。
type ConsecutiveWorkHoursConstraint struct {
	baseConstraint
}

// NewConsecutiveWorkHoursConstraint 创建连续工时约束
func NewConsecutiveWorkHoursConstraint() *ConsecutiveWorkHoursConstraint {
	return &ConsecutiveWorkHoursConstraint{baseConstraint{"连续工时", constraint.ReasonMaxConsecutiveWorkTime}}
}

// Allows 实现 Constraint
func (c *ConsecutiveWorkHoursConstraint) Allows(ctx *constraint.Context, cand *constraint.Candidate) bool {
	limit, ok := ctx.Rules.Limit(model.SettingMaxConsecutiveWorkHours)
	if !ok {
		return true
	}
	windows := append(ctx.StaffWindows(cand.Staff.ID), cand.Window)
	return ContiguousMinutes(windows, cand.Window) <= limit*60
}

// ContiguousMinutes 合并相接或重叠的窗口，返回包含 target 的连续段时长
func ContiguousMinutes(windows []model.TimeWindow, target model.TimeWindow) int {
	if len(windows) == 0 {
		return 0
	}
	sorted := append([]model.TimeWindow(nil), windows...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	cur := sorted[0]
	for _, w := range sorted[1:] {
		if w.Start <= cur.End {
			if w.End > cur.End {
				cur.End = w.End
			}
			continue
		}
		if cur.Start <= target.Start && target.End <= cur.End {
			return cur.Minutes()
		}
		cur = w
	}
	if cur.Start <= target.Start && target.End <= cur.End {
		return cur.Minutes()
	}
	return target.Minutes()
}
