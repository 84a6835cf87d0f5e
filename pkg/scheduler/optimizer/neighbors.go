package optimizer

import (
	"math/rand"

	"github.com/google/uuid"

	"github.com/paiban/nurseshift/pkg/model"
	"github.com/paiban/nurseshift/pkg/scheduler"
	"github.com/paiban/nurseshift/pkg/scheduler/constraint"
)

// MoveType 邻域移动类型
type MoveType int

const (
	MoveReplace MoveType = iota // 把某条排班换成同角色的另一人
	MoveSwap                    // 交换两条同角色排班的人员
	MoveFill                    // 为缺人的班次补一人
)

// move 一次可逆的邻域移动
type move struct {
	kind    MoveType
	removed []*model.Assignment
	added   []*model.Assignment
}

func (m *move) key() uint64 {
	return hashAssignments(m.added)
}

// state 搜索状态：上下文副本加上本次运行提出的排班
type state struct {
	ctx       *constraint.Context
	checks    *constraint.Manager
	slots     []scheduler.Slot
	shifts    []*model.Shift
	roleStaff map[model.Role][]*model.Staff

	list  []*model.Assignment
	pos   map[uuid.UUID]int
	score float64

	proposed map[uuid.UUID]*model.Assignment
}

func newState(ctx *constraint.Context, checks *constraint.Manager, slots []scheduler.Slot, shifts []*model.Shift) *state {
	st := &state{
		ctx:       ctx,
		checks:    checks,
		slots:     slots,
		shifts:    shifts,
		roleStaff: make(map[model.Role][]*model.Staff),
		pos:       make(map[uuid.UUID]int),
		proposed:  make(map[uuid.UUID]*model.Assignment),
	}
	for _, s := range ctx.Staff() {
		if s.IsActive {
			role := s.EffectiveRole()
			st.roleStaff[role] = append(st.roleStaff[role], s)
		}
	}
	return st
}

// index 将 proposed 同步到有序列表，保证随机选择可复现
func (st *state) index(order []*model.Assignment) {
	st.list = st.list[:0]
	st.pos = make(map[uuid.UUID]int, len(order))
	for _, a := range order {
		if _, ok := st.proposed[a.ID]; ok {
			st.pos[a.ID] = len(st.list)
			st.list = append(st.list, a)
		}
	}
}

func (st *state) clone() *state {
	c := newState(st.ctx.Clone(), st.checks, st.slots, st.shifts)
	for id, a := range st.proposed {
		c.proposed[id] = a
	}
	c.index(st.list)
	c.score = st.score
	return c
}

func (st *state) snapshot() *Solution {
	return &Solution{
		Assignments: append([]*model.Assignment(nil), st.list...),
		Score:       st.score,
	}
}

func (st *state) add(a *model.Assignment) {
	st.ctx.AddAssignment(a)
	st.proposed[a.ID] = a
	st.pos[a.ID] = len(st.list)
	st.list = append(st.list, a)
}

func (st *state) remove(a *model.Assignment) {
	st.ctx.RemoveAssignment(a.ID)
	delete(st.proposed, a.ID)
	i, ok := st.pos[a.ID]
	if !ok {
		return
	}
	last := len(st.list) - 1
	st.list[i] = st.list[last]
	st.pos[st.list[i].ID] = i
	st.list = st.list[:last]
	delete(st.pos, a.ID)
}

func (st *state) apply(m *move) {
	for _, a := range m.removed {
		st.remove(a)
	}
	for _, a := range m.added {
		st.add(a)
	}
}

func (st *state) revert(m *move) {
	for i := len(m.added) - 1; i >= 0; i-- {
		st.remove(m.added[i])
	}
	for _, a := range m.removed {
		st.add(a)
	}
}

// allows 检查人员能否排入某日某班次（不触发拒绝回调）
func (st *state) allows(staff *model.Staff, shiftID uuid.UUID, date model.Date) bool {
	shift := st.ctx.GetShift(shiftID)
	if shift == nil {
		return false
	}
	cand, err := constraint.NewCandidate(staff, shift, date)
	if err != nil {
		return false
	}
	return st.checks.Evaluate(st.ctx, cand).Eligible
}

// moveGenerator 按权重随机生成移动
type moveGenerator struct {
	rng     *rand.Rand
	weights []float64 // 按 MoveType 索引
}

func newMoveGenerator(rng *rand.Rand) *moveGenerator {
	return &moveGenerator{
		rng:     rng,
		weights: []float64{0.40, 0.35, 0.25},
	}
}

func (g *moveGenerator) selectMoveType() MoveType {
	r := g.rng.Float64()
	acc := 0.0
	for i, w := range g.weights {
		acc += w
		if r < acc {
			return MoveType(i)
		}
	}
	return MoveReplace
}

// next 生成一个可行移动；找不到时返回 nil
func (g *moveGenerator) next(st *state) *move {
	if len(st.list) == 0 {
		return g.fill(st)
	}
	switch g.selectMoveType() {
	case MoveSwap:
		return g.swap(st)
	case MoveFill:
		if m := g.fill(st); m != nil {
			return m
		}
		return g.replace(st)
	default:
		return g.replace(st)
	}
}

func (g *moveGenerator) replace(st *state) *move {
	a := st.list[g.rng.Intn(len(st.list))]
	pool := st.roleStaff[a.Role]
	if len(pool) < 2 {
		return nil
	}
	staff := pool[g.rng.Intn(len(pool))]
	if staff.ID == a.StaffID {
		return nil
	}

	st.ctx.RemoveAssignment(a.ID)
	ok := st.allows(staff, a.ShiftID, a.Date)
	st.ctx.AddAssignment(a)
	if !ok {
		return nil
	}
	return &move{
		kind:    MoveReplace,
		removed: []*model.Assignment{a},
		added:   []*model.Assignment{model.NewAssignment(a.DepartmentID, staff.ID, a.ShiftID, a.Date, a.Role)},
	}
}

func (g *moveGenerator) swap(st *state) *move {
	if len(st.list) < 2 {
		return nil
	}
	a := st.list[g.rng.Intn(len(st.list))]
	b := st.list[g.rng.Intn(len(st.list))]
	if a.Role != b.Role || a.StaffID == b.StaffID {
		return nil
	}
	if a.Date == b.Date && a.ShiftID == b.ShiftID {
		return nil
	}
	staffA := st.ctx.GetStaff(a.StaffID)
	staffB := st.ctx.GetStaff(b.StaffID)
	if staffA == nil || staffB == nil {
		return nil
	}

	st.ctx.RemoveAssignment(a.ID)
	st.ctx.RemoveAssignment(b.ID)
	defer func() {
		st.ctx.AddAssignment(a)
		st.ctx.AddAssignment(b)
	}()

	if !st.allows(staffB, a.ShiftID, a.Date) {
		return nil
	}
	newA := model.NewAssignment(a.DepartmentID, staffB.ID, a.ShiftID, a.Date, a.Role)
	st.ctx.AddAssignment(newA)
	ok := st.allows(staffA, b.ShiftID, b.Date)
	st.ctx.RemoveAssignment(newA.ID)
	if !ok {
		return nil
	}
	return &move{
		kind:    MoveSwap,
		removed: []*model.Assignment{a, b},
		added:   []*model.Assignment{newA, model.NewAssignment(b.DepartmentID, staffA.ID, b.ShiftID, b.Date, b.Role)},
	}
}

func (g *moveGenerator) fill(st *state) *move {
	open := make([]scheduler.Slot, 0)
	for _, slot := range st.slots {
		if st.ctx.SlotCount(slot.Date, slot.Shift.ID, slot.Role) < slot.Required {
			open = append(open, slot)
		}
	}
	if len(open) == 0 {
		return nil
	}
	slot := open[g.rng.Intn(len(open))]
	pool := st.roleStaff[slot.Role]
	if len(pool) == 0 {
		return nil
	}

	offset := g.rng.Intn(len(pool))
	for i := range pool {
		staff := pool[(offset+i)%len(pool)]
		if st.allows(staff, slot.Shift.ID, slot.Date) {
			return &move{
				kind:  MoveFill,
				added: []*model.Assignment{model.NewAssignment(slot.Shift.DepartmentID, staff.ID, slot.Shift.ID, slot.Date, slot.Role)},
			}
		}
	}
	return nil
}
