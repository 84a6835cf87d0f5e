package constraint

import (
	"github.com/google/uuid"

	"github.com/paiban/nurseshift/pkg/calendar"
	"github.com/paiban/nurseshift/pkg/model"
	"github.com/paiban/nurseshift/pkg/priority"
)

// Context 排班上下文：科室配置加上加载窗口内的有效排班
//
// 只保存有效排班；取消的记录在 AddAssignment 时被忽略，因此不会参与重叠检查和公平性计数。
type Context struct {
	DepartmentID uuid.UUID
	Month        model.Month // 公平性计数范围
	Calendar     *calendar.Calendar
	Rules        priority.Rules

	staff    []*model.Staff
	staffMap map[uuid.UUID]*model.Staff
	shifts   []*model.Shift
	shiftMap map[uuid.UUID]*model.Shift
	leaves   map[uuid.UUID][]*model.Leave

	assignments map[uuid.UUID]*model.Assignment
	windows     map[uuid.UUID]model.TimeWindow
	byStaff     map[uuid.UUID][]*model.Assignment
	bySlot      map[slotKey][]*model.Assignment
}

// NewContext 创建排班上下文
func NewContext(departmentID uuid.UUID, month model.Month, cal *calendar.Calendar, rules priority.Rules) *Context {
	if cal == nil {
		cal = calendar.New(nil, nil)
	}
	return &Context{
		DepartmentID: departmentID,
		Month:        month,
		Calendar:     cal,
		Rules:        rules,
		staffMap:     make(map[uuid.UUID]*model.Staff),
		shiftMap:     make(map[uuid.UUID]*model.Shift),
		leaves:       make(map[uuid.UUID][]*model.Leave),
		assignments:  make(map[uuid.UUID]*model.Assignment),
		windows:      make(map[uuid.UUID]model.TimeWindow),
		byStaff:      make(map[uuid.UUID][]*model.Assignment),
		bySlot:       make(map[slotKey][]*model.Assignment),
	}
}

// SetStaff 设置人员列表
func (c *Context) SetStaff(staff []*model.Staff) {
	c.staff = staff
	c.staffMap = make(map[uuid.UUID]*model.Staff, len(staff))
	for _, s := range staff {
		c.staffMap[s.ID] = s
	}
}

// SetShifts 设置班次列表（包括已停用班次，用于计算历史排班窗口）
func (c *Context) SetShifts(shifts []*model.Shift) {
	c.shifts = shifts
	c.shiftMap = make(map[uuid.UUID]*model.Shift, len(shifts))
	for _, s := range shifts {
		c.shiftMap[s.ID] = s
	}
}

// AddLeave 添加请假记录
func (c *Context) AddLeave(l *model.Leave) {
	if l.Status == model.LeaveCancelled {
		return
	}
	c.leaves[l.StaffID] = append(c.leaves[l.StaffID], l)
}

// Staff 人员列表
func (c *Context) Staff() []*model.Staff {
	return c.staff
}

// GetStaff 获取人员
func (c *Context) GetStaff(id uuid.UUID) *model.Staff {
	return c.staffMap[id]
}

// Shifts 班次列表
func (c *Context) Shifts() []*model.Shift {
	return c.shifts
}

// GetShift 获取班次
func (c *Context) GetShift(id uuid.UUID) *model.Shift {
	return c.shiftMap[id]
}

// IsOnLeave 人员该日是否请假
func (c *Context) IsOnLeave(staffID uuid.UUID, d model.Date) bool {
	for _, l := range c.leaves[staffID] {
		if l.Covers(d) {
			return true
		}
	}
	return false
}

// AddAssignment 添加有效排班；取消状态或班次未知时忽略并返回 false
func (c *Context) AddAssignment(a *model.Assignment) bool {
	if !a.IsActive() {
		return false
	}
	if _, exists := c.assignments[a.ID]; exists {
		return false
	}
	shift := c.shiftMap[a.ShiftID]
	if shift == nil {
		return false
	}
	w, err := shift.Window(a.Date)
	if err != nil {
		return false
	}
	c.assignments[a.ID] = a
	c.windows[a.ID] = w
	c.byStaff[a.StaffID] = append(c.byStaff[a.StaffID], a)
	key := slotKey{a.Date, a.ShiftID}
	c.bySlot[key] = append(c.bySlot[key], a)
	return true
}

// RemoveAssignment 移除排班
func (c *Context) RemoveAssignment(id uuid.UUID) bool {
	a, ok := c.assignments[id]
	if !ok {
		return false
	}
	delete(c.assignments, id)
	delete(c.windows, id)
	c.byStaff[a.StaffID] = without(c.byStaff[a.StaffID], id)
	key := slotKey{a.Date, a.ShiftID}
	c.bySlot[key] = without(c.bySlot[key], id)
	return true
}

func without(list []*model.Assignment, id uuid.UUID) []*model.Assignment {
	out := make([]*model.Assignment, 0, len(list))
	for _, a := range list {
		if a.ID != id {
			out = append(out, a)
		}
	}
	return out
}

// Assignments 全部有效排班
func (c *Context) Assignments() []*model.Assignment {
	out := make([]*model.Assignment, 0, len(c.assignments))
	for _, a := range c.assignments {
		out = append(out, a)
	}
	return out
}

// StaffAssignments 人员的有效排班
func (c *Context) StaffAssignments(staffID uuid.UUID) []*model.Assignment {
	return c.byStaff[staffID]
}

// SlotAssignments 某日某班次的有效排班
func (c *Context) SlotAssignments(d model.Date, shiftID uuid.UUID) []*model.Assignment {
	return c.bySlot[slotKey{d, shiftID}]
}

// SlotCount 某日某班次指定角色的人数
func (c *Context) SlotCount(d model.Date, shiftID uuid.UUID, role model.Role) int {
	n := 0
	for _, a := range c.bySlot[slotKey{d, shiftID}] {
		if a.Role == role {
			n++
		}
	}
	return n
}

// Window 排班的绝对时间窗口
func (c *Context) Window(a *model.Assignment) (model.TimeWindow, bool) {
	w, ok := c.windows[a.ID]
	return w, ok
}

// WorkedDays 人员有排班的日期；nightOnly 时只统计夜班
func (c *Context) WorkedDays(staffID uuid.UUID, nightOnly bool) map[model.Date]bool {
	days := make(map[model.Date]bool)
	for _, a := range c.byStaff[staffID] {
		if nightOnly {
			if s := c.shiftMap[a.ShiftID]; s == nil || !s.IsNightShift() {
				continue
			}
		}
		days[a.Date] = true
	}
	return days
}

// StaffWindows 人员全部排班窗口
func (c *Context) StaffWindows(staffID uuid.UUID) []model.TimeWindow {
	list := c.byStaff[staffID]
	out := make([]model.TimeWindow, 0, len(list))
	for _, a := range list {
		out = append(out, c.windows[a.ID])
	}
	return out
}

// Tally 人员当月排班统计
type Tally struct {
	Shifts  int
	Nights  int
	Minutes int
	ByShift map[uuid.UUID]int
}

// MonthTally 统计人员当月有效排班
func (c *Context) MonthTally(staffID uuid.UUID) Tally {
	t := Tally{ByShift: make(map[uuid.UUID]int)}
	for _, a := range c.byStaff[staffID] {
		if c.Month != "" && !c.Month.Contains(a.Date) {
			continue
		}
		t.Shifts++
		t.ByShift[a.ShiftID]++
		t.Minutes += c.windows[a.ID].Minutes()
		if s := c.shiftMap[a.ShiftID]; s != nil && s.IsNightShift() {
			t.Nights++
		}
	}
	return t
}

// MonthCount 人员当月有效排班数
func (c *Context) MonthCount(staffID uuid.UUID) int {
	n := 0
	for _, a := range c.byStaff[staffID] {
		if c.Month == "" || c.Month.Contains(a.Date) {
			n++
		}
	}
	return n
}

// Clone 复制上下文；排班记录指针共享，索引独立
func (c *Context) Clone() *Context {
	clone := NewContext(c.DepartmentID, c.Month, c.Calendar, c.Rules)
	clone.SetStaff(c.staff)
	clone.SetShifts(c.shifts)
	for id, ls := range c.leaves {
		clone.leaves[id] = ls
	}
	for id, a := range c.assignments {
		clone.assignments[id] = a
		clone.windows[id] = c.windows[id]
	}
	for id, list := range c.byStaff {
		clone.byStaff[id] = append([]*model.Assignment(nil), list...)
	}
	for k, list := range c.bySlot {
		clone.bySlot[k] = append([]*model.Assignment(nil), list...)
	}
	return clone
}
