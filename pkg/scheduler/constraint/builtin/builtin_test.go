package builtin

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/paiban/nurseshift/pkg/calendar"
	"github.com/paiban/nurseshift/pkg/model"
	"github.com/paiban/nurseshift/pkg/priority"
	"github.com/paiban/nurseshift/pkg/scheduler/constraint"
)

type fixture struct {
	dept    uuid.UUID
	nurse   *model.Staff
	morning *model.Shift
	evening *model.Shift
	night   *model.Shift
	ctx     *constraint.Context
	mgr     *constraint.Manager
}

func newFixture(t *testing.T, cal *calendar.Calendar, priorities []*model.Priority) *fixture {
	t.Helper()
	dept := uuid.New()
	f := &fixture{
		dept:    dept,
		nurse:   &model.Staff{BaseModel: model.NewBaseModel(), DepartmentID: dept, Name: "สมศรี", Role: model.RoleNurse, IsActive: true},
		morning: &model.Shift{BaseModel: model.NewBaseModel(), DepartmentID: dept, Name: "เวรเช้า", StartTime: "07:00", EndTime: "15:00", IsActive: true},
		evening: &model.Shift{BaseModel: model.NewBaseModel(), DepartmentID: dept, Name: "เวรบ่าย", StartTime: "15:00", EndTime: "23:00", IsActive: true},
		night:   &model.Shift{BaseModel: model.NewBaseModel(), DepartmentID: dept, Name: "เวรดึก", StartTime: "23:00", EndTime: "07:00", IsActive: true},
	}
	if priorities == nil {
		priorities = model.DefaultPriorities(dept)
	}
	f.ctx = constraint.NewContext(dept, "2024-03", cal, priority.NewRules(priorities))
	f.ctx.SetStaff([]*model.Staff{f.nurse})
	f.ctx.SetShifts([]*model.Shift{f.morning, f.evening, f.night})
	f.mgr = NewManager()
	return f
}

func (f *fixture) assign(t *testing.T, shift *model.Shift, date model.Date) *model.Assignment {
	t.Helper()
	a := model.NewAssignment(f.dept, f.nurse.ID, shift.ID, date, model.RoleNurse)
	if !f.ctx.AddAssignment(a) {
		t.Fatalf("AddAssignment(%s %s) 失败", shift.Name, date)
	}
	return a
}

func (f *fixture) check(t *testing.T, shift *model.Shift, date model.Date) constraint.Verdict {
	t.Helper()
	cand, err := constraint.NewCandidate(f.nurse, shift, date)
	if err != nil {
		t.Fatalf("NewCandidate() error = %v", err)
	}
	return f.mgr.Check(f.ctx, cand)
}

func TestManager_CheckOrder(t *testing.T) {
	got := NewManager().Reasons()
	expected := []constraint.Reason{
		constraint.ReasonInactiveStaff,
		constraint.ReasonNonWorkingDay,
		constraint.ReasonOnLeave,
		constraint.ReasonOverlap,
		constraint.ReasonMaxConsecutiveShifts,
		constraint.ReasonMaxConsecutiveNights,
		constraint.ReasonMaxConsecutiveWorkTime,
	}
	if len(got) != len(expected) {
		t.Fatalf("Reasons() = %v", got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("Reasons()[%d] = %s, expected %s", i, got[i], expected[i])
		}
	}
}

func TestWorkingDayAndLeave(t *testing.T) {
	cal := calendar.New(
		[]model.WorkingDay{{DayOfWeek: time.Friday, IsWorkingDay: true}, {DayOfWeek: time.Monday, IsWorkingDay: true}},
		[]*model.Holiday{{DateRange: model.DateRange{Start: "2024-03-18", End: "2024-03-18"}}},
	)
	f := newFixture(t, cal, nil)
	f.ctx.AddLeave(&model.Leave{StaffID: f.nurse.ID, Status: model.LeaveApproved, DateRange: model.DateRange{Start: "2024-03-15", End: "2024-03-15"}})
	f.ctx.AddLeave(&model.Leave{StaffID: f.nurse.ID, Status: model.LeaveCancelled, DateRange: model.DateRange{Start: "2024-03-22", End: "2024-03-22"}})

	tests := []struct {
		name     string
		date     model.Date
		expected constraint.Verdict
	}{
		{"请假日", "2024-03-15", constraint.Rejected(constraint.ReasonOnLeave)},
		{"非工作星期", "2024-03-16", constraint.Rejected(constraint.ReasonNonWorkingDay)},
		{"假期优先于星期配置", "2024-03-18", constraint.Rejected(constraint.ReasonNonWorkingDay)},
		{"已取消的请假不生效", "2024-03-22", constraint.Eligible()},
		{"普通工作日", "2024-03-25", constraint.Eligible()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.check(t, f.morning, tt.date); got != tt.expected {
				t.Errorf("Check() = %+v, expected %+v", got, tt.expected)
			}
		})
	}
}

func TestInactiveStaff(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.nurse.IsActive = false
	if got := f.check(t, f.morning, "2024-03-15"); got.Reason != constraint.ReasonInactiveStaff {
		t.Errorf("Check() = %+v", got)
	}
}

func TestOverlap(t *testing.T) {
	tests := []struct {
		name     string
		existing *model.Shift
		existDay model.Date
		cand     func(f *fixture) *model.Shift
		candDay  model.Date
		expected bool
	}{
		{"夜班结束与次日早班首尾相接", nil, "2024-03-14", func(f *fixture) *model.Shift { return f.morning }, "2024-03-15", true},
		{"同日早班后接午班", nil, "2024-03-15", func(f *fixture) *model.Shift { return f.evening }, "2024-03-15", true},
		{"同一班次重复排", nil, "2024-03-15", func(f *fixture) *model.Shift { return f.morning }, "2024-03-15", false},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil, nil)
			existing := f.morning
			if i == 0 {
				existing = f.night
			}
			f.assign(t, existing, tt.existDay)
			got := f.check(t, tt.cand(f), tt.candDay)
			if got.Eligible != tt.expected {
				t.Errorf("Check() = %+v, expected eligible=%v", got, tt.expected)
			}
			if !tt.expected && got.Reason != constraint.ReasonOverlap {
				t.Errorf("Reason = %s, expected overlap", got.Reason)
			}
		})
	}
}

func TestOverlap_PreviousNightSpill(t *testing.T) {
	f := newFixture(t, nil, nil)
	early := &model.Shift{BaseModel: model.NewBaseModel(), DepartmentID: f.dept, Name: "เวรเช้ามืด", StartTime: "06:00", EndTime: "14:00", IsActive: true}
	f.ctx.SetShifts([]*model.Shift{f.morning, f.evening, f.night, early})
	f.assign(t, f.night, "2024-03-14")

	if got := f.check(t, early, "2024-03-15"); got.Reason != constraint.ReasonOverlap {
		t.Errorf("前一日夜班延伸到 07:00，应与 06:00 开始的班次重叠: %+v", got)
	}
}

func TestCancelledAssignmentsIgnored(t *testing.T) {
	f := newFixture(t, nil, nil)
	a := model.NewAssignment(f.dept, f.nurse.ID, f.morning.ID, "2024-03-15", model.RoleNurse)
	a.Status = model.StatusCancelled
	if f.ctx.AddAssignment(a) {
		t.Fatal("取消的排班不应加入上下文")
	}
	if got := f.check(t, f.morning, "2024-03-15"); !got.Eligible {
		t.Errorf("Check() = %+v", got)
	}
	if n := f.ctx.MonthCount(f.nurse.ID); n != 0 {
		t.Errorf("MonthCount() = %d, expected 0", n)
	}
}

func TestConsecutiveShifts(t *testing.T) {
	f := newFixture(t, nil, nil) // 默认上限 4 天
	for _, d := range []model.Date{"2024-03-11", "2024-03-12", "2024-03-14"} {
		f.assign(t, f.morning, d)
	}

	// 11,12,13,14 共 4 天，允许
	if got := f.check(t, f.morning, "2024-03-13"); !got.Eligible {
		t.Errorf("4 天连续应允许: %+v", got)
	}

	f.assign(t, f.morning, "2024-03-13")
	// 再加 15 日形成 5 天
	if got := f.check(t, f.morning, "2024-03-15"); got.Reason != constraint.ReasonMaxConsecutiveShifts {
		t.Errorf("5 天连续应拒绝: %+v", got)
	}
	// 16 日与连续段之间隔一天
	if got := f.check(t, f.morning, "2024-03-16"); !got.Eligible {
		t.Errorf("中断后应允许: %+v", got)
	}
}

func TestConsecutiveShifts_Inactive(t *testing.T) {
	ps := model.DefaultPriorities(uuid.New())
	for _, p := range ps {
		p.IsActive = false
	}
	f := newFixture(t, nil, ps)
	for _, d := range []model.Date{"2024-03-10", "2024-03-11", "2024-03-12", "2024-03-13", "2024-03-14"} {
		f.assign(t, f.morning, d)
	}
	if got := f.check(t, f.morning, "2024-03-15"); !got.Eligible {
		t.Errorf("规则未启用时不应限制: %+v", got)
	}
}

func TestConsecutiveNights(t *testing.T) {
	f := newFixture(t, nil, nil) // 默认夜班上限 2 天
	f.assign(t, f.night, "2024-03-13")
	f.assign(t, f.night, "2024-03-14")

	if got := f.check(t, f.night, "2024-03-15"); got.Reason != constraint.ReasonMaxConsecutiveNights {
		t.Errorf("第三个连续夜班应拒绝: %+v", got)
	}
	// 非夜班不受夜班上限限制；14 日夜班在 15 日 07:00 结束
	if got := f.check(t, f.evening, "2024-03-15"); !got.Eligible {
		t.Errorf("午班应允许: %+v", got)
	}
}

func TestConsecutiveWorkHours(t *testing.T) {
	ps := model.DefaultPriorities(uuid.New())
	limit := 16
	ps[4].SettingValue = &limit
	f := newFixture(t, nil, ps)

	f.assign(t, f.morning, "2024-03-15")
	f.assign(t, f.evening, "2024-03-15")

	// 07:00-23:00 已连续 16 小时，再接夜班为 24 小时
	if got := f.check(t, f.night, "2024-03-15"); got.Reason != constraint.ReasonMaxConsecutiveWorkTime {
		t.Errorf("超出连续工时应拒绝: %+v", got)
	}
}

func TestContiguousMinutes(t *testing.T) {
	w := func(s, e int) model.TimeWindow { return model.TimeWindow{Start: s, End: e} }

	tests := []struct {
		name     string
		windows  []model.TimeWindow
		target   model.TimeWindow
		expected int
	}{
		{"单个窗口", []model.TimeWindow{w(0, 480)}, w(0, 480), 480},
		{"首尾相接合并", []model.TimeWindow{w(0, 480), w(480, 960)}, w(480, 960), 960},
		{"有间隔不合并", []model.TimeWindow{w(0, 480), w(540, 1020)}, w(540, 1020), 480},
		{"目标在第一段", []model.TimeWindow{w(540, 1020), w(0, 480), w(480, 500)}, w(0, 480), 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ContiguousMinutes(tt.windows, tt.target); got != tt.expected {
				t.Errorf("ContiguousMinutes() = %d, expected %d", got, tt.expected)
			}
		})
	}
}

func TestStreakWith(t *testing.T) {
	days := map[model.Date]bool{"2024-03-01": true, "2024-03-02": true, "2024-03-04": true}
	if got := StreakWith(days, "2024-03-03"); got != 4 {
		t.Errorf("StreakWith() = %d, expected 4", got)
	}
	if got := StreakWith(days, "2024-03-10"); got != 1 {
		t.Errorf("StreakWith() = %d, expected 1", got)
	}
	// 当天已有排班只算一次
	if got := StreakWith(days, "2024-03-02"); got != 2 {
		t.Errorf("StreakWith() = %d, expected 2", got)
	}
}
