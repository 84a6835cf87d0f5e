// Package resolver 判断人员在某日某班次是否可排
package resolver

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/paiban/nurseshift/pkg/calendar"
	apperrors "github.com/paiban/nurseshift/pkg/errors"
	"github.com/paiban/nurseshift/pkg/logger"
	"github.com/paiban/nurseshift/pkg/model"
	"github.com/paiban/nurseshift/pkg/priority"
	"github.com/paiban/nurseshift/pkg/scheduler/constraint"
	"github.com/paiban/nurseshift/pkg/scheduler/constraint/builtin"
	"github.com/paiban/nurseshift/pkg/store"
)

// RulesSource 提供科室启用的优先级规则
type RulesSource interface {
	Rules(ctx context.Context, departmentID uuid.UUID) (priority.Rules, error)
}

// Resolver 人员可用性判断
type Resolver struct {
	store   store.Store
	rules   RulesSource
	manager *constraint.Manager
}

// New 创建 Resolver；manager 为空时使用内置约束
func New(s store.Store, rules RulesSource, manager *constraint.Manager) *Resolver {
	if manager == nil {
		manager = builtin.NewManager()
	}
	return &Resolver{store: s, rules: rules, manager: manager}
}

// Manager 返回约束管理器
func (r *Resolver) Manager() *constraint.Manager {
	return r.manager
}

// Load 加载科室在日期范围内的排班上下文，前后各多加载规则需要的天数
func (r *Resolver) Load(ctx context.Context, departmentID uuid.UUID, month model.Month, span model.DateRange) (*constraint.Context, error) {
	rules, err := r.rules.Rules(ctx, departmentID)
	if err != nil {
		return nil, err
	}

	pad := rules.LookaroundDays()
	window := model.DateRange{Start: span.Start.AddDays(-pad), End: span.End.AddDays(pad)}
	if month != "" {
		if first := month.First(); first < window.Start {
			window.Start = first
		}
		if last := month.Last(); last > window.End {
			window.End = last
		}
	}

	cal, err := calendar.Load(ctx, r.store, departmentID, window)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	staff, err := r.store.ListStaff(ctx, departmentID)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("查询科室人员失败: %w", err))
	}
	shifts, err := r.store.ListShifts(ctx, departmentID, false)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("查询班次失败: %w", err))
	}
	leaves, err := r.store.ListLeaves(ctx, departmentID, window)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("查询请假失败: %w", err))
	}
	assignments, err := r.store.ListAssignments(ctx, store.AssignmentFilter{
		DepartmentID: departmentID,
		From:         window.Start,
		To:           window.End,
		ActiveOnly:   true,
	})
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("查询排班失败: %w", err))
	}

	sc := constraint.NewContext(departmentID, month, cal, rules)
	sc.SetStaff(staff)
	sc.SetShifts(shifts)
	for _, l := range leaves {
		sc.AddLeave(l)
	}
	for _, a := range assignments {
		sc.AddAssignment(a)
	}
	return sc, nil
}

// lookup 获取人员与班次，并确认属于同一科室
func (r *Resolver) lookup(ctx context.Context, staffID, shiftID uuid.UUID) (*model.Staff, *model.Shift, error) {
	shift, err := r.store.GetShift(ctx, shiftID)
	if err != nil {
		return nil, nil, apperrors.Database(err)
	}
	if shift == nil {
		return nil, nil, apperrors.NotFound("เวร", shiftID.String())
	}
	staff, err := r.store.GetStaff(ctx, staffID)
	if err != nil {
		return nil, nil, apperrors.Database(err)
	}
	if staff == nil {
		return nil, nil, apperrors.NotFound("บุคลากร", staffID.String())
	}
	return staff, shift, nil
}

// IsEligible 按顺序检查，返回第一个不满足的原因
func (r *Resolver) IsEligible(ctx context.Context, staffID uuid.UUID, date model.Date, shiftID uuid.UUID) (constraint.Verdict, error) {
	staff, shift, err := r.lookup(ctx, staffID, shiftID)
	if err != nil {
		return constraint.Verdict{}, err
	}
	sc, err := r.Load(ctx, shift.DepartmentID, "", model.DateRange{Start: date, End: date})
	if err != nil {
		return constraint.Verdict{}, err
	}
	cand, err := constraint.NewCandidate(staff, shift, date)
	if err != nil {
		return constraint.Verdict{}, apperrors.InvalidInput("shiftId", err.Error())
	}

	v := r.manager.Check(sc, cand)
	if !v.Eligible {
		logger.NewSchedulerLogger(ctx).Rejected(staffID.String(), date.String(), string(v.Reason))
	}
	return v, nil
}

// OverlapResult 重叠检查结果
type OverlapResult struct {
	CanAssign bool   `json:"canAssign"`
	Reason    string `json:"reason,omitempty"`
}

// CheckOverlap 只检查时间重叠，供界面预校验
func (r *Resolver) CheckOverlap(ctx context.Context, departmentID uuid.UUID, date model.Date, shiftID, staffID uuid.UUID) (*OverlapResult, error) {
	staff, shift, err := r.lookup(ctx, staffID, shiftID)
	if err != nil {
		return nil, err
	}
	if shift.DepartmentID != departmentID {
		return nil, apperrors.InvalidInput("shiftId", "เวรไม่ได้อยู่ในแผนกนี้")
	}
	sc, err := r.Load(ctx, departmentID, "", model.DateRange{Start: date, End: date})
	if err != nil {
		return nil, err
	}
	cand, err := constraint.NewCandidate(staff, shift, date)
	if err != nil {
		return nil, apperrors.InvalidInput("shiftId", err.Error())
	}

	v := r.manager.CheckOnly(sc, cand, constraint.ReasonOverlap)
	if v.Eligible {
		return &OverlapResult{CanAssign: true}, nil
	}
	return &OverlapResult{CanAssign: false, Reason: overlapMessage(sc, staff.ID, cand)}, nil
}

func overlapMessage(sc *constraint.Context, staffID uuid.UUID, cand *constraint.Candidate) string {
	for _, a := range sc.StaffAssignments(staffID) {
		w, ok := sc.Window(a)
		if !ok || !w.Overlaps(cand.Window) {
			continue
		}
		if s := sc.GetShift(a.ShiftID); s != nil {
			return fmt.Sprintf("เวลาทับซ้อนกับ%s (%s-%s) วันที่ %s", s.Name, s.StartTime, s.EndTime, a.Date)
		}
	}
	return string(constraint.ReasonOverlap)
}

// AvailableStaff 返回该日该班次所有可排人员，按姓名排序
func (r *Resolver) AvailableStaff(ctx context.Context, departmentID uuid.UUID, date model.Date, shiftID uuid.UUID) ([]*model.Staff, error) {
	shift, err := r.store.GetShift(ctx, shiftID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if shift == nil || shift.DepartmentID != departmentID {
		return nil, apperrors.NotFound("เวร", shiftID.String())
	}
	sc, err := r.Load(ctx, departmentID, "", model.DateRange{Start: date, End: date})
	if err != nil {
		return nil, err
	}

	out := make([]*model.Staff, 0)
	for _, s := range sc.Staff() {
		cand, err := constraint.NewCandidate(s, shift, date)
		if err != nil {
			return nil, apperrors.InvalidInput("shiftId", err.Error())
		}
		if r.manager.Check(sc, cand).Eligible {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
