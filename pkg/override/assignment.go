package override

import (
	"context"
	"errors"

	"github.com/google/uuid"

	apperrors "github.com/paiban/nurseshift/pkg/errors"
	"github.com/paiban/nurseshift/pkg/model"
	"github.com/paiban/nurseshift/pkg/scheduler/constraint"
	"github.com/paiban/nurseshift/pkg/store"
)

// CreateInput 新建单条排班
type CreateInput struct {
	DepartmentID uuid.UUID  `json:"departmentId" validate:"required"`
	StaffID      uuid.UUID  `json:"userId" validate:"required"`
	ShiftID      uuid.UUID  `json:"shiftId" validate:"required"`
	Date         model.Date `json:"scheduleDate" validate:"required"`
	Role         model.Role `json:"departmentRole,omitempty"`
	Notes        string     `json:"notes,omitempty" validate:"max=500"`
}

// UpdateInput 修改单条排班；为空的字段保持不变
type UpdateInput struct {
	ShiftID *uuid.UUID  `json:"shiftId,omitempty"`
	Date    *model.Date `json:"scheduleDate,omitempty"`
	Notes   *string     `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// List 科室月份的排班
func (s *Service) List(ctx context.Context, departmentID uuid.UUID, month model.Month, activeOnly bool) ([]*model.Assignment, error) {
	m, err := model.ParseMonth(string(month))
	if err != nil {
		return nil, apperrors.InvalidInput("month", "รูปแบบต้องเป็น YYYY-MM")
	}
	list, err := s.store.ListAssignments(ctx, store.AssignmentFilter{
		DepartmentID: departmentID,
		From:         m.First(),
		To:           m.Last(),
		ActiveOnly:   activeOnly,
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return list, nil
}

// Get 获取单条排班
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Assignment, error) {
	a, err := s.store.GetAssignment(ctx, id)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if a == nil {
		return nil, apperrors.NotFound("ตารางเวร", id.String())
	}
	return a, nil
}

// Create 新建排班，资格不满足时返回 INELIGIBLE
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.Assignment, error) {
	date, err := parseDate("scheduleDate", in.Date)
	if err != nil {
		return nil, err
	}
	shift, err := s.shift(ctx, in.DepartmentID, in.ShiftID)
	if err != nil {
		return nil, err
	}
	staff, err := s.staff(ctx, in.StaffID)
	if err != nil {
		return nil, err
	}
	role := staff.EffectiveRole()
	if in.Role != "" && in.Role != role {
		return nil, apperrors.InvalidInput("departmentRole", "ตำแหน่งไม่ตรงกับบุคลากร")
	}

	release, err := s.guard(ctx, in.DepartmentID, shift.ID, date)
	if err != nil {
		return nil, err
	}
	defer unlock(release)

	if err := s.ensureEligible(ctx, staff, shift, date, uuid.Nil); err != nil {
		return nil, err
	}

	a := model.NewAssignment(in.DepartmentID, staff.ID, shift.ID, date, role)
	a.Notes = in.Notes
	if err := s.store.CreateAssignment(ctx, a); err != nil {
		return nil, s.writeError(err, staff.ID, date)
	}
	return a, nil
}

// Update 修改班次、日期或备注；有效排班改动时间后重新检查资格
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*model.Assignment, error) {
	a, release, err := s.lockAssignment(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock(release)

	month := a.Date.Month()
	moved := false
	if in.ShiftID != nil && *in.ShiftID != a.ShiftID {
		a.ShiftID = *in.ShiftID
		moved = true
	}
	if in.Date != nil && *in.Date != a.Date {
		d, err := parseDate("scheduleDate", *in.Date)
		if err != nil {
			return nil, err
		}
		a.Date = d
		moved = true
	}
	if in.Notes != nil {
		a.Notes = *in.Notes
	}

	if a.Date.Month() != month {
		if err := s.generating(ctx, a.DepartmentID, a.Date.Month()); err != nil {
			return nil, err
		}
	}
	shift, err := s.shift(ctx, a.DepartmentID, a.ShiftID)
	if err != nil {
		return nil, err
	}

	if moved && a.IsActive() {
		staff, err := s.staff(ctx, a.StaffID)
		if err != nil {
			return nil, err
		}
		if err := s.ensureEligible(ctx, staff, shift, a.Date, a.ID); err != nil {
			return nil, err
		}
	}
	if err := s.store.UpdateAssignment(ctx, a); err != nil {
		return nil, s.writeError(err, a.StaffID, a.Date)
	}
	return a, nil
}

// Remove 逻辑删除（取消）排班
func (s *Service) Remove(ctx context.Context, id uuid.UUID) error {
	_, release, err := s.lockAssignment(ctx, id)
	if err != nil {
		return err
	}
	defer unlock(release)

	if _, err := s.store.CancelAssignments(ctx, []uuid.UUID{id}); err != nil {
		return apperrors.Persistence(err, "cancel assignment")
	}
	return nil
}

// Toggle 在有效与取消之间切换；恢复时重新检查资格
func (s *Service) Toggle(ctx context.Context, id uuid.UUID) (*model.Assignment, error) {
	a, release, err := s.lockAssignment(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock(release)

	if a.IsActive() {
		a.Status = model.StatusCancelled
	} else {
		shift, err := s.shift(ctx, a.DepartmentID, a.ShiftID)
		if err != nil {
			return nil, err
		}
		staff, err := s.staff(ctx, a.StaffID)
		if err != nil {
			return nil, err
		}
		if err := s.ensureEligible(ctx, staff, shift, a.Date, a.ID); err != nil {
			return nil, err
		}
		a.Status = model.StatusActive
	}
	if err := s.store.UpdateAssignment(ctx, a); err != nil {
		return nil, s.writeError(err, a.StaffID, a.Date)
	}
	return a, nil
}

func (s *Service) staff(ctx context.Context, id uuid.UUID) (*model.Staff, error) {
	st, err := s.store.GetStaff(ctx, id)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if st == nil {
		return nil, apperrors.NotFound("บุคลากร", id.String())
	}
	return st, nil
}

// ensureEligible 在最新上下文上检查资格；exclude 为正在修改的排班本身
func (s *Service) ensureEligible(ctx context.Context, staff *model.Staff, shift *model.Shift, date model.Date, exclude uuid.UUID) error {
	sc, err := s.resolver.Load(ctx, shift.DepartmentID, date.Month(), model.DateRange{Start: date, End: date})
	if err != nil {
		return err
	}
	if exclude != uuid.Nil {
		sc.RemoveAssignment(exclude)
	}
	cand, err := constraint.NewCandidate(staff, shift, date)
	if err != nil {
		return apperrors.InvalidInput("shiftId", err.Error())
	}
	if v := s.resolver.Manager().Check(sc, cand); !v.Eligible {
		return apperrors.Ineligible(staff.ID.String(), date.String(), string(v.Reason))
	}
	return nil
}

func (s *Service) writeError(err error, staffID uuid.UUID, date model.Date) error {
	if errors.Is(err, store.ErrDuplicate) {
		return apperrors.Ineligible(staffID.String(), date.String(), string(constraint.ReasonOverlap))
	}
	return apperrors.Persistence(err, "save assignment")
}
