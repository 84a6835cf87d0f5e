// Package override 提供人工调整排班：编辑班次人员、重叠预检、减员以及单条排班维护
//
// 每个写操作在读取、检查和写入期间都持有科室排班锁，自动生成运行时同样持有；
// 该科室月份正在自动生成时直接拒绝。
package override

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/paiban/nurseshift/pkg/errors"
	"github.com/paiban/nurseshift/pkg/lock"
	"github.com/paiban/nurseshift/pkg/logger"
	"github.com/paiban/nurseshift/pkg/model"
	"github.com/paiban/nurseshift/pkg/scheduler/constraint"
	"github.com/paiban/nurseshift/pkg/scheduler/resolver"
	"github.com/paiban/nurseshift/pkg/store"
)

// Service 人工调整服务
type Service struct {
	store    store.Store
	resolver *resolver.Resolver
	locker   lock.Locker
	lockTTL  time.Duration
	lockWait time.Duration
}

// New 创建人工调整服务；locker 应与自动排班引擎共用
func New(s store.Store, r *resolver.Resolver, locker lock.Locker) *Service {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	return &Service{
		store:    s,
		resolver: r,
		locker:   locker,
		lockTTL:  30 * time.Second,
		lockWait: 2 * time.Second,
	}
}

// generating 该科室月份正在自动生成时返回 GENERATION_IN_PROGRESS
func (s *Service) generating(ctx context.Context, departmentID uuid.UUID, month model.Month) error {
	held, err := s.locker.Held(ctx, lock.GenerationKey(departmentID, month.String()))
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "ตรวจสอบสถานะการจัดเวรไม่สำเร็จ")
	}
	if held {
		return apperrors.GenerationInProgress(departmentID.String(), month.String())
	}
	return nil
}

// guard 检查生成锁并获取科室排班锁
func (s *Service) guard(ctx context.Context, departmentID, shiftID uuid.UUID, date model.Date) (lock.Release, error) {
	if err := s.generating(ctx, departmentID, date.Month()); err != nil {
		return nil, err
	}

	release, err := lock.Acquire(ctx, s.locker, lock.RosterKey(departmentID), s.lockTTL, s.lockWait)
	if errors.Is(err, lock.ErrLocked) {
		// 等待期间可能开始了自动生成
		if gerr := s.generating(ctx, departmentID, date.Month()); gerr != nil {
			return nil, gerr
		}
		return nil, apperrors.ShiftBusy(shiftID.String(), date.String())
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "ไม่สามารถล็อกเวรได้")
	}
	return release, nil
}

// lockAssignment 持锁后重新读取排班，调用方负责 unlock
func (s *Service) lockAssignment(ctx context.Context, id uuid.UUID) (*model.Assignment, lock.Release, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	release, err := s.guard(ctx, a.DepartmentID, a.ShiftID, a.Date)
	if err != nil {
		return nil, nil, err
	}
	if a, err = s.Get(ctx, id); err != nil {
		unlock(release)
		return nil, nil, err
	}
	return a, release, nil
}

func unlock(release lock.Release) {
	if err := release(context.Background()); err != nil {
		logger.WithError(err).Msg("释放排班锁失败")
	}
}

// shift 获取班次并校验科室
func (s *Service) shift(ctx context.Context, departmentID, shiftID uuid.UUID) (*model.Shift, error) {
	sh, err := s.store.GetShift(ctx, shiftID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if sh == nil || (departmentID != uuid.Nil && sh.DepartmentID != departmentID) {
		return nil, apperrors.NotFound("เวร", shiftID.String())
	}
	return sh, nil
}

func parseDate(field string, d model.Date) (model.Date, error) {
	parsed, err := model.ParseDate(string(d))
	if err != nil {
		return "", apperrors.InvalidInput(field, "รูปแบบต้องเป็น YYYY-MM-DD")
	}
	return parsed, nil
}

// slot 某日某班次的有效排班
func (s *Service) slot(ctx context.Context, departmentID, shiftID uuid.UUID, date model.Date) ([]*model.Assignment, error) {
	list, err := s.store.ListAssignments(ctx, store.AssignmentFilter{
		DepartmentID: departmentID,
		ShiftID:      shiftID,
		From:         date,
		To:           date,
		ActiveOnly:   true,
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return list, nil
}

// EditShiftInput 编辑班次人员
type EditShiftInput struct {
	DepartmentID     uuid.UUID   `json:"departmentId" validate:"required"`
	Date             model.Date  `json:"date" validate:"required"`
	ShiftID          uuid.UUID   `json:"shiftId" validate:"required"`
	AddNurses        []uuid.UUID `json:"addNurses"`
	AddAssistants    []uuid.UUID `json:"addAssistants"`
	RemoveNurses     []uuid.UUID `json:"removeNurses"`
	RemoveAssistants []uuid.UUID `json:"removeAssistants"`
}

// Skip 未能加入的人员及原因
type Skip struct {
	StaffID uuid.UUID  `json:"staffId"`
	Role    model.Role `json:"role"`
	Reason  string     `json:"reason"`
}

// EditShiftResult 编辑结果
type EditShiftResult struct {
	Added   []*model.Assignment `json:"added"`
	Removed int                 `json:"removed"`
	Skipped []Skip              `json:"skipped"`
}

// 跳过原因（资格原因之外）
const (
	skipUnknownStaff = "unknown-staff"
	skipRoleMismatch = "role-mismatch"
	skipDuplicate    = "already-assigned"
)

// EditShift 先移除后添加；不满足资格的添加项跳过，不中断整批
func (s *Service) EditShift(ctx context.Context, in EditShiftInput) (*EditShiftResult, error) {
	date, err := parseDate("date", in.Date)
	if err != nil {
		return nil, err
	}
	shift, err := s.shift(ctx, in.DepartmentID, in.ShiftID)
	if err != nil {
		return nil, err
	}

	release, err := s.guard(ctx, in.DepartmentID, shift.ID, date)
	if err != nil {
		return nil, err
	}
	defer unlock(release)

	result := &EditShiftResult{Added: []*model.Assignment{}, Skipped: []Skip{}}

	current, err := s.slot(ctx, in.DepartmentID, shift.ID, date)
	if err != nil {
		return nil, err
	}
	removeSet := map[model.Role]map[uuid.UUID]bool{
		model.RoleNurse:     toSet(in.RemoveNurses),
		model.RoleAssistant: toSet(in.RemoveAssistants),
	}
	ids := make([]uuid.UUID, 0)
	for _, a := range current {
		if removeSet[a.Role][a.StaffID] {
			ids = append(ids, a.ID)
		}
	}
	if len(ids) > 0 {
		n, err := s.store.CancelAssignments(ctx, ids)
		if err != nil {
			return nil, apperrors.Persistence(err, "cancel assignments")
		}
		result.Removed = n
	}

	if len(in.AddNurses)+len(in.AddAssistants) == 0 {
		return result, nil
	}

	sc, err := s.resolver.Load(ctx, in.DepartmentID, date.Month(), model.DateRange{Start: date, End: date})
	if err != nil {
		return nil, err
	}
	checks := s.resolver.Manager()
	slog := logger.NewSchedulerLogger(ctx)

	adds := []struct {
		role model.Role
		ids  []uuid.UUID
	}{
		{model.RoleNurse, in.AddNurses},
		{model.RoleAssistant, in.AddAssistants},
	}
	for _, group := range adds {
		for _, id := range group.ids {
			staff := sc.GetStaff(id)
			switch {
			case staff == nil:
				result.Skipped = append(result.Skipped, Skip{StaffID: id, Role: group.role, Reason: skipUnknownStaff})
				continue
			case staff.EffectiveRole() != group.role:
				result.Skipped = append(result.Skipped, Skip{StaffID: id, Role: group.role, Reason: skipRoleMismatch})
				continue
			}

			cand, err := constraint.NewCandidate(staff, shift, date)
			if err != nil {
				return nil, apperrors.InvalidInput("shiftId", err.Error())
			}
			if v := checks.Check(sc, cand); !v.Eligible {
				slog.Rejected(id.String(), date.String(), string(v.Reason))
				result.Skipped = append(result.Skipped, Skip{StaffID: id, Role: group.role, Reason: string(v.Reason)})
				continue
			}

			a := model.NewAssignment(in.DepartmentID, staff.ID, shift.ID, date, group.role)
			err = s.store.CreateAssignment(ctx, a)
			if errors.Is(err, store.ErrDuplicate) {
				result.Skipped = append(result.Skipped, Skip{StaffID: id, Role: group.role, Reason: skipDuplicate})
				continue
			}
			if err != nil {
				return result, apperrors.Persistence(err, "create assignment")
			}
			sc.AddAssignment(a)
			result.Added = append(result.Added, a)
		}
	}
	return result, nil
}

func toSet(ids []uuid.UUID) map[uuid.UUID]bool {
	out := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}

// CheckShiftOverlap 只做时间重叠检查，供界面逐个预检
func (s *Service) CheckShiftOverlap(ctx context.Context, departmentID uuid.UUID, date model.Date, shiftID, staffID uuid.UUID) (*resolver.OverlapResult, error) {
	d, err := parseDate("date", date)
	if err != nil {
		return nil, err
	}
	return s.resolver.CheckOverlap(ctx, departmentID, d, shiftID, staffID)
}

// ReduceStaffInput 减员请求
type ReduceStaffInput struct {
	Date       model.Date `json:"date" validate:"required"`
	ShiftID    uuid.UUID  `json:"shiftId" validate:"required"`
	Nurses     int        `json:"nursesToReduce" validate:"min=0"`
	Assistants int        `json:"assistantsToReduce" validate:"min=0"`
}

// ReduceStaffResult 减员结果
type ReduceStaffResult struct {
	Cancelled []*model.Assignment `json:"cancelled"`
}

// ReduceStaff 每个角色取消当月班次最多的 N 人，同数按人员ID
func (s *Service) ReduceStaff(ctx context.Context, in ReduceStaffInput) (*ReduceStaffResult, error) {
	if in.Nurses < 0 {
		return nil, apperrors.InvalidInput("nursesToReduce", "ต้องไม่ติดลบ")
	}
	if in.Assistants < 0 {
		return nil, apperrors.InvalidInput("assistantsToReduce", "ต้องไม่ติดลบ")
	}
	date, err := parseDate("date", in.Date)
	if err != nil {
		return nil, err
	}
	shift, err := s.shift(ctx, uuid.Nil, in.ShiftID)
	if err != nil {
		return nil, err
	}

	release, err := s.guard(ctx, shift.DepartmentID, shift.ID, date)
	if err != nil {
		return nil, err
	}
	defer unlock(release)

	current, err := s.slot(ctx, shift.DepartmentID, shift.ID, date)
	if err != nil {
		return nil, err
	}
	result := &ReduceStaffResult{Cancelled: []*model.Assignment{}}
	if len(current) == 0 || in.Nurses+in.Assistants == 0 {
		return result, nil
	}

	counts, err := s.monthCounts(ctx, shift.DepartmentID, date.Month(), current)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, in.Nurses+in.Assistants)
	for _, role := range model.Roles {
		n := in.Nurses
		if role == model.RoleAssistant {
			n = in.Assistants
		}
		victims := pickMostAssigned(current, role, counts, n)
		for _, a := range victims {
			ids = append(ids, a.ID)
			a.Status = model.StatusCancelled
			result.Cancelled = append(result.Cancelled, a)
		}
	}
	if len(ids) == 0 {
		return result, nil
	}
	if _, err := s.store.CancelAssignments(ctx, ids); err != nil {
		return nil, apperrors.Persistence(err, "cancel assignments")
	}
	return result, nil
}

// monthCounts 统计班次上每个人当月的有效排班数
func (s *Service) monthCounts(ctx context.Context, departmentID uuid.UUID, month model.Month, current []*model.Assignment) (map[uuid.UUID]int, error) {
	staffIDs := make([]uuid.UUID, 0, len(current))
	for _, a := range current {
		staffIDs = append(staffIDs, a.StaffID)
	}
	list, err := s.store.ListAssignments(ctx, store.AssignmentFilter{
		DepartmentID: departmentID,
		StaffIDs:     staffIDs,
		From:         month.First(),
		To:           month.Last(),
		ActiveOnly:   true,
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}
	counts := make(map[uuid.UUID]int, len(staffIDs))
	for _, a := range list {
		counts[a.StaffID]++
	}
	return counts, nil
}

// pickMostAssigned 选出该角色当月班次最多的 n 条排班
func pickMostAssigned(current []*model.Assignment, role model.Role, counts map[uuid.UUID]int, n int) []*model.Assignment {
	pool := make([]*model.Assignment, 0, len(current))
	for _, a := range current {
		if a.Role == role {
			pool = append(pool, a)
		}
	}
	sort.SliceStable(pool, func(i, j int) bool {
		ci, cj := counts[pool[i].StaffID], counts[pool[j].StaffID]
		if ci != cj {
			return ci > cj
		}
		return pool[i].StaffID.String() < pool[j].StaffID.String()
	})
	if n > len(pool) {
		n = len(pool)
	}
	return pool[:n]
}
