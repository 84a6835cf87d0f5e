// Package solver 提供确定性的贪心排班求解器
package solver

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/paiban/nurseshift/pkg/model"
	"github.com/paiban/nurseshift/pkg/scheduler"
)

// GreedySolver 贪心求解器
//
// 逐日、逐班次（按开始时间）、逐角色填充；候选人按当月已排班次数升序，
// 夜班均衡优先时再按夜班数升序，最后按人员ID保证结果确定。
// 每条排班提交后立即计入上下文，后续班次看到最新的计数与重叠状态。
type GreedySolver struct{}

// NewGreedySolver 创建贪心求解器
func NewGreedySolver() *GreedySolver {
	return &GreedySolver{}
}

// Name 实现 Generator
func (s *GreedySolver) Name() scheduler.Strategy {
	return scheduler.StrategyGreedy
}

// Generate 实现 Generator
func (s *GreedySolver) Generate(ctx context.Context, plan *scheduler.Plan, sink scheduler.Sink) error {
	for _, slot := range plan.Slots() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.fill(ctx, plan, slot, sink); err != nil {
			return err
		}
	}
	return nil
}

// fill 填充单个需求单元
func (s *GreedySolver) fill(ctx context.Context, plan *scheduler.Plan, slot scheduler.Slot, sink scheduler.Sink) error {
	assigned := plan.Context.SlotCount(slot.Date, slot.Shift.ID, slot.Role)
	need := slot.Required - assigned
	if need <= 0 {
		return nil
	}

	candidates := plan.Candidates(slot)
	Rank(plan, candidates)

	for _, staff := range candidates {
		if need == 0 {
			break
		}
		a := model.NewAssignment(slot.Shift.DepartmentID, staff.ID, slot.Shift.ID, slot.Date, slot.Role)
		if err := sink.Commit(ctx, a); err != nil {
			return err
		}
		assigned++
		need--
	}

	if need > 0 {
		sink.Shortfall(model.Shortfall{
			Date:     slot.Date,
			ShiftID:  slot.Shift.ID,
			Role:     slot.Role,
			Required: slot.Required,
			Assigned: assigned,
		})
	}
	return nil
}

// Rank 按公平性对候选人排序
func Rank(plan *scheduler.Plan, staff []*model.Staff) {
	nightFirst := plan.Context.Rules.NightBalanceFirst()

	type key struct {
		total  int
		nights int
	}
	keys := make(map[uuid.UUID]key, len(staff))
	for _, s := range staff {
		t := plan.Context.MonthTally(s.ID)
		keys[s.ID] = key{total: t.Shifts, nights: t.Nights}
	}

	sort.SliceStable(staff, func(i, j int) bool {
		ki, kj := keys[staff[i].ID], keys[staff[j].ID]
		if ki.total != kj.total {
			return ki.total < kj.total
		}
		if nightFirst && ki.nights != kj.nights {
			return ki.nights < kj.nights
		}
		return staff[i].ID.String() < staff[j].ID.String()
	})
}
