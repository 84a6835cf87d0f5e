// Package scheduler 定义自动排班策略接口
//
// 贪心与模拟退火两种策略共用同一个 Generator 接口，由调用方选择。
package scheduler

import (
	"context"
	"sort"

	"github.com/paiban/nurseshift/pkg/model"
	"github.com/paiban/nurseshift/pkg/scheduler/constraint"
)

// Strategy 策略名称
type Strategy string

const (
	StrategyGreedy    Strategy = "greedy"
	StrategyAnnealing Strategy = "annealing"
)

// Generator 自动排班策略
type Generator interface {
	// Name 返回策略名称
	Name() Strategy

	// Generate 为计划中的每个工作日、班次、角色填充人员
	// 每条排班通过 sink 提交，提交成功后才计入上下文
	Generate(ctx context.Context, plan *Plan, sink Sink) error
}

// Sink 排班提交目标
type Sink interface {
	// Commit 持久化排班；返回错误时策略必须停止
	Commit(ctx context.Context, a *model.Assignment) error

	// Shortfall 报告人手缺口，不影响继续排班
	Shortfall(s model.Shortfall)
}

// Plan 一次排班运行的输入
type Plan struct {
	Context *constraint.Context
	Checks  *constraint.Manager
	Days    []model.Date   // 目标范围内的工作日
	Shifts  []*model.Shift // 启用班次，按开始时间排序
}

// SortShifts 按开始时间、名称、ID 排序，保证稳定
func SortShifts(shifts []*model.Shift) {
	sort.SliceStable(shifts, func(i, j int) bool {
		a, b := shifts[i], shifts[j]
		if a.StartMinute() != b.StartMinute() {
			return a.StartMinute() < b.StartMinute()
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID.String() < b.ID.String()
	})
}

// Slot 排班需求单元：某日某班次某角色
type Slot struct {
	Date     model.Date
	Shift    *model.Shift
	Role     model.Role
	Required int
}

// Slots 按处理顺序展开计划中的所有需求
func (p *Plan) Slots() []Slot {
	out := make([]Slot, 0, len(p.Days)*len(p.Shifts)*len(model.Roles))
	for _, d := range p.Days {
		for _, s := range p.Shifts {
			for _, role := range model.Roles {
				if req := s.Required(role); req > 0 {
					out = append(out, Slot{Date: d, Shift: s, Role: role, Required: req})
				}
			}
		}
	}
	return out
}

// Candidates 角色匹配且通过全部约束的人员
func (p *Plan) Candidates(slot Slot) []*model.Staff {
	out := make([]*model.Staff, 0)
	for _, s := range p.Context.Staff() {
		if s.EffectiveRole() != slot.Role {
			continue
		}
		cand, err := constraint.NewCandidate(s, slot.Shift, slot.Date)
		if err != nil {
			continue
		}
		if p.Checks.Check(p.Context, cand).Eligible {
			out = append(out, s)
		}
	}
	return out
}

// RecordingSink 只写入上下文并记录结果，不落库
type RecordingSink struct {
	Context    *constraint.Context
	Committed  []*model.Assignment
	Shortfalls []model.Shortfall
}

// Commit 实现 Sink
func (s *RecordingSink) Commit(_ context.Context, a *model.Assignment) error {
	if s.Context.AddAssignment(a) {
		s.Committed = append(s.Committed, a)
	}
	return nil
}

// Shortfall 实现 Sink
func (s *RecordingSink) Shortfall(sf model.Shortfall) {
	s.Shortfalls = append(s.Shortfalls, sf)
}
