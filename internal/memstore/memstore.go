// Package memstore 提供 store.Store 的内存实现，用于测试与演示
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/paiban/nurseshift/pkg/model"
	"github.com/paiban/nurseshift/pkg/store"
)

// Store 内存存储，所有读写均返回副本
type Store struct {
	mu          sync.RWMutex
	departments map[uuid.UUID]*model.Department
	staff       map[uuid.UUID]*model.Staff
	shifts      map[uuid.UUID]*model.Shift
	workingDays map[uuid.UUID][]model.WorkingDay
	holidays    map[uuid.UUID][]*model.Holiday
	leaves      []*model.Leave
	priorities  map[uuid.UUID]*model.Priority
	assignments map[uuid.UUID]*model.Assignment

	// CreateHook 非空时在写入排班前调用，返回错误则写入失败
	CreateHook func(a *model.Assignment) error
}

var _ store.Store = (*Store)(nil)

// New 创建内存存储
func New() *Store {
	return &Store{
		departments: make(map[uuid.UUID]*model.Department),
		staff:       make(map[uuid.UUID]*model.Staff),
		shifts:      make(map[uuid.UUID]*model.Shift),
		workingDays: make(map[uuid.UUID][]model.WorkingDay),
		holidays:    make(map[uuid.UUID][]*model.Holiday),
		priorities:  make(map[uuid.UUID]*model.Priority),
		assignments: make(map[uuid.UUID]*model.Assignment),
	}
}

// --- 配置写入 ---

// PutDepartment 写入科室
func (s *Store) PutDepartment(d *model.Department) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *d
	s.departments[d.ID] = &c
}

// PutStaff 写入人员
func (s *Store) PutStaff(st *model.Staff) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *st
	s.staff[st.ID] = &c
}

// PutShift 写入班次
func (s *Store) PutShift(sh *model.Shift) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *sh
	s.shifts[sh.ID] = &c
}

// SetWorkingDays 替换科室工作日配置
func (s *Store) SetWorkingDays(departmentID uuid.UUID, days []model.WorkingDay) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workingDays[departmentID] = append([]model.WorkingDay(nil), days...)
}

// PutHoliday 写入假期
func (s *Store) PutHoliday(h *model.Holiday) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *h
	s.holidays[h.DepartmentID] = append(s.holidays[h.DepartmentID], &c)
}

// PutLeave 写入请假
func (s *Store) PutLeave(l *model.Leave) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *l
	s.leaves = append(s.leaves, &c)
}

// --- DepartmentStore ---

func (s *Store) GetDepartment(_ context.Context, id uuid.UUID) (*model.Department, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.departments[id]
	if !ok {
		return nil, nil
	}
	c := *d
	return &c, nil
}

func (s *Store) ListDepartments(_ context.Context) ([]*model.Department, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Department, 0, len(s.departments))
	for _, d := range s.departments {
		c := *d
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetStaff(_ context.Context, id uuid.UUID) (*model.Staff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.staff[id]
	if !ok {
		return nil, nil
	}
	c := *st
	return &c, nil
}

func (s *Store) ListStaff(_ context.Context, departmentID uuid.UUID) ([]*model.Staff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Staff, 0)
	for _, st := range s.staff {
		if st.DepartmentID == departmentID {
			c := *st
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

// --- ShiftStore ---

func (s *Store) GetShift(_ context.Context, id uuid.UUID) (*model.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sh, ok := s.shifts[id]
	if !ok {
		return nil, nil
	}
	c := *sh
	return &c, nil
}

func (s *Store) ListShifts(_ context.Context, departmentID uuid.UUID, activeOnly bool) ([]*model.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Shift, 0)
	for _, sh := range s.shifts {
		if sh.DepartmentID != departmentID || (activeOnly && !sh.IsActive) {
			continue
		}
		c := *sh
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// --- CalendarStore ---

func (s *Store) ListWorkingDays(_ context.Context, departmentID uuid.UUID) ([]model.WorkingDay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.WorkingDay(nil), s.workingDays[departmentID]...), nil
}

func (s *Store) ListHolidays(_ context.Context, departmentID uuid.UUID, r model.DateRange) ([]*model.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Holiday, 0)
	for _, h := range s.holidays[departmentID] {
		if h.End >= r.Start && h.Start <= r.End {
			c := *h
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *Store) ListLeaves(_ context.Context, departmentID uuid.UUID, r model.DateRange) ([]*model.Leave, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Leave, 0)
	for _, l := range s.leaves {
		st, ok := s.staff[l.StaffID]
		if !ok || st.DepartmentID != departmentID || l.Status == model.LeaveCancelled {
			continue
		}
		if l.End >= r.Start && l.Start <= r.End {
			c := *l
			out = append(out, &c)
		}
	}
	return out, nil
}

// --- PriorityStore ---

func clonePriority(p *model.Priority) *model.Priority {
	c := *p
	if p.SettingType != nil {
		st := *p.SettingType
		c.SettingType = &st
	}
	if p.SettingValue != nil {
		v := *p.SettingValue
		c.SettingValue = &v
	}
	return &c
}

func (s *Store) ListPriorities(_ context.Context, departmentID uuid.UUID) ([]*model.Priority, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedPriorities(departmentID, true), nil
}

func (s *Store) sortedPriorities(departmentID uuid.UUID, clone bool) []*model.Priority {
	out := make([]*model.Priority, 0)
	for _, p := range s.priorities {
		if p.DepartmentID != departmentID {
			continue
		}
		if clone {
			p = clonePriority(p)
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

func (s *Store) GetPriority(_ context.Context, id uuid.UUID) (*model.Priority, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.priorities[id]
	if !ok {
		return nil, nil
	}
	return clonePriority(p), nil
}

func (s *Store) CreatePriorities(_ context.Context, priorities []*model.Priority) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range priorities {
		s.priorities[p.ID] = clonePriority(p)
	}
	return nil
}

func (s *Store) UpdatePriority(_ context.Context, p *model.Priority) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.priorities[p.ID]
	if !ok {
		return nil
	}
	c := clonePriority(p)
	c.Order = cur.Order
	c.UpdatedAt = time.Now()
	s.priorities[p.ID] = c
	return nil
}

func (s *Store) MovePriority(_ context.Context, id uuid.UUID, order int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	target, ok := s.priorities[id]
	if !ok {
		return nil
	}
	list := s.sortedPriorities(target.DepartmentID, false)
	rest := make([]*model.Priority, 0, len(list))
	for _, p := range list {
		if p.ID != id {
			rest = append(rest, p)
		}
	}
	if order < 1 {
		order = 1
	}
	if order > len(list) {
		order = len(list)
	}
	reordered := make([]*model.Priority, 0, len(list))
	reordered = append(reordered, rest[:order-1]...)
	reordered = append(reordered, target)
	reordered = append(reordered, rest[order-1:]...)
	for i, p := range reordered {
		p.Order = i + 1
	}
	return nil
}

func (s *Store) SwapPriorityOrder(_ context.Context, a, b uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pa, okA := s.priorities[a]
	pb, okB := s.priorities[b]
	if !okA || !okB {
		return nil
	}
	pa.Order, pb.Order = pb.Order, pa.Order
	return nil
}

// --- AssignmentStore ---

func (s *Store) CreateAssignment(_ context.Context, a *model.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateHook != nil {
		if err := s.CreateHook(a); err != nil {
			return err
		}
	}
	if a.IsActive() {
		for _, cur := range s.assignments {
			if cur.IsActive() && cur.StaffID == a.StaffID && cur.Date == a.Date && cur.ShiftID == a.ShiftID {
				return store.ErrDuplicate
			}
		}
	}
	c := *a
	s.assignments[a.ID] = &c
	return nil
}

func (s *Store) GetAssignment(_ context.Context, id uuid.UUID) (*model.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assignments[id]
	if !ok {
		return nil, nil
	}
	c := *a
	return &c, nil
}

func (s *Store) UpdateAssignment(_ context.Context, a *model.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assignments[a.ID]; !ok {
		return nil
	}
	if a.IsActive() {
		for _, cur := range s.assignments {
			if cur.ID != a.ID && cur.IsActive() && cur.StaffID == a.StaffID && cur.Date == a.Date && cur.ShiftID == a.ShiftID {
				return store.ErrDuplicate
			}
		}
	}
	c := *a
	c.UpdatedAt = time.Now()
	s.assignments[a.ID] = &c
	return nil
}

func (s *Store) ListAssignments(_ context.Context, f store.AssignmentFilter) ([]*model.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	staffSet := make(map[uuid.UUID]bool, len(f.StaffIDs))
	for _, id := range f.StaffIDs {
		staffSet[id] = true
	}

	out := make([]*model.Assignment, 0)
	for _, a := range s.assignments {
		if f.DepartmentID != uuid.Nil && a.DepartmentID != f.DepartmentID {
			continue
		}
		if len(staffSet) > 0 && !staffSet[a.StaffID] {
			continue
		}
		if f.ShiftID != uuid.Nil && a.ShiftID != f.ShiftID {
			continue
		}
		if f.From != "" && a.Date < f.From {
			continue
		}
		if f.To != "" && a.Date > f.To {
			continue
		}
		if f.ActiveOnly && !a.IsActive() {
			continue
		}
		c := *a
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) CountActive(_ context.Context, departmentID uuid.UUID, r model.DateRange) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.assignments {
		if a.DepartmentID == departmentID && a.IsActive() && r.Contains(a.Date) {
			n++
		}
	}
	return n, nil
}

func (s *Store) CancelAssignments(_ context.Context, ids []uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, id := range ids {
		if a, ok := s.assignments[id]; ok && a.IsActive() {
			a.Status = model.StatusCancelled
			a.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

func (s *Store) CancelRange(_ context.Context, departmentID uuid.UUID, r model.DateRange) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.assignments {
		if a.DepartmentID == departmentID && a.IsActive() && r.Contains(a.Date) {
			a.Status = model.StatusCancelled
			a.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}
