// Package testutil 构造排班测试用的科室上下文
package testutil

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/paiban/nurseshift/pkg/calendar"
	"github.com/paiban/nurseshift/pkg/model"
	"github.com/paiban/nurseshift/pkg/priority"
	"github.com/paiban/nurseshift/pkg/scheduler"
	"github.com/paiban/nurseshift/pkg/scheduler/constraint"
	"github.com/paiban/nurseshift/pkg/scheduler/constraint/builtin"
)

// Ward 测试科室
type Ward struct {
	DepartmentID uuid.UUID
	Nurses       []*model.Staff
	Assistants   []*model.Staff
	Morning      *model.Shift
	Evening      *model.Shift
	Night        *model.Shift
	Context      *constraint.Context
	Checks       *constraint.Manager
}

// NewWard 创建科室：指定护士、助理人数，早班 07-15、晚班 15-23、夜班 23-07
func NewWard(month model.Month, nurses, assistants int) *Ward {
	dept := uuid.New()
	w := &Ward{DepartmentID: dept}
	for i := 0; i < nurses; i++ {
		w.Nurses = append(w.Nurses, NewStaff(dept, fmt.Sprintf("nurse-%02d", i), model.RoleNurse))
	}
	for i := 0; i < assistants; i++ {
		w.Assistants = append(w.Assistants, NewStaff(dept, fmt.Sprintf("asst-%02d", i), model.RoleAssistant))
	}
	w.Morning = NewShift(dept, "เวรเช้า", "07:00", "15:00", 2, 1)
	w.Evening = NewShift(dept, "เวรบ่าย", "15:00", "23:00", 1, 1)
	w.Night = NewShift(dept, "เวรดึก", "23:00", "07:00", 1, 0)

	w.Context = constraint.NewContext(dept, month, calendar.New(nil, nil), priority.NewRules(model.DefaultPriorities(dept)))
	w.Context.SetStaff(append(append([]*model.Staff(nil), w.Nurses...), w.Assistants...))
	w.Context.SetShifts(w.Shifts())
	w.Checks = builtin.NewManager()
	return w
}

// NewStaff 创建在职人员；ID 由姓名派生，保证排序稳定
func NewStaff(dept uuid.UUID, name string, role model.Role) *model.Staff {
	base := model.NewBaseModel()
	base.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(name))
	return &model.Staff{BaseModel: base, DepartmentID: dept, Name: name, Role: role, IsActive: true}
}

// NewShift 创建启用班次
func NewShift(dept uuid.UUID, name, start, end string, nurses, assistants int) *model.Shift {
	return &model.Shift{
		BaseModel:          model.NewBaseModel(),
		DepartmentID:       dept,
		Name:               name,
		StartTime:          start,
		EndTime:            end,
		RequiredNurses:     nurses,
		RequiredAssistants: assistants,
		IsActive:           true,
	}
}

// Shifts 按开始时间排序的班次
func (w *Ward) Shifts() []*model.Shift {
	return []*model.Shift{w.Morning, w.Evening, w.Night}
}

// Plan 生成覆盖指定日期的计划
func (w *Ward) Plan(days ...model.Date) *scheduler.Plan {
	return &scheduler.Plan{Context: w.Context, Checks: w.Checks, Days: days, Shifts: w.Shifts()}
}

// Assign 直接写入上下文，用于构造已有排班
func (w *Ward) Assign(staff *model.Staff, shift *model.Shift, date model.Date) *model.Assignment {
	a := model.NewAssignment(w.DepartmentID, staff.ID, shift.ID, date, staff.EffectiveRole())
	w.Context.AddAssignment(a)
	return a
}

// Violations 逐条移除后复检，返回不满足约束的排班说明
func Violations(ctx *constraint.Context, checks *constraint.Manager, list []*model.Assignment) []string {
	out := make([]string, 0)
	for _, a := range list {
		staff, shift := ctx.GetStaff(a.StaffID), ctx.GetShift(a.ShiftID)
		if staff == nil || shift == nil {
			out = append(out, fmt.Sprintf("%s: 未知人员或班次", a.ID))
			continue
		}
		ctx.RemoveAssignment(a.ID)
		cand, err := constraint.NewCandidate(staff, shift, a.Date)
		if err == nil {
			if v := checks.Evaluate(ctx, cand); !v.Eligible {
				out = append(out, fmt.Sprintf("%s %s %s: %s", staff.Name, shift.Name, a.Date, v.Reason))
			}
		}
		ctx.AddAssignment(a)
	}
	return out
}
