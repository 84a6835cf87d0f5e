package override

import (
	"context"

	"github.com/google/uuid"

	apperrors "github.com/paiban/nurseshift/pkg/errors"
	"github.com/paiban/nurseshift/pkg/logger"
	"github.com/paiban/nurseshift/pkg/model"
	"github.com/paiban/nurseshift/pkg/swap"
)

func (s *Service) activeAssignment(ctx context.Context, id uuid.UUID) (*model.Assignment, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.IsActive() {
		return nil, errCancelled()
	}
	return a, nil
}

func errCancelled() error {
	return apperrors.InvalidInput("id", "ตารางเวรนี้ถูกยกเลิกแล้ว")
}

// Replacements 为有效排班推荐接替人员，按本月负担从轻到重排序
func (s *Service) Replacements(ctx context.Context, id uuid.UUID, limit int) ([]swap.Candidate, error) {
	a, err := s.activeAssignment(ctx, id)
	if err != nil {
		return nil, err
	}
	sc, err := s.resolver.Load(ctx, a.DepartmentID, a.Date.Month(), model.DateRange{Start: a.Date, End: a.Date})
	if err != nil {
		return nil, err
	}
	return swap.NewRecommender(s.resolver.Manager()).Recommend(sc, a, swap.Options{Limit: limit}), nil
}

// TakeOver 将有效排班转给同角色的另一名人员，资格检查与单条新增相同
func (s *Service) TakeOver(ctx context.Context, id, staffID uuid.UUID) (*model.Assignment, error) {
	a, release, err := s.lockAssignment(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock(release)

	if !a.IsActive() {
		return nil, errCancelled()
	}
	if a.StaffID == staffID {
		return nil, apperrors.InvalidInput("userId", "เป็นบุคลากรคนเดิม")
	}
	shift, err := s.shift(ctx, a.DepartmentID, a.ShiftID)
	if err != nil {
		return nil, err
	}
	staff, err := s.staff(ctx, staffID)
	if err != nil {
		return nil, err
	}
	if staff.EffectiveRole() != a.Role {
		return nil, apperrors.InvalidInput("userId", "ตำแหน่งไม่ตรงกับตารางเวร")
	}

	if err := s.ensureEligible(ctx, staff, shift, a.Date, a.ID); err != nil {
		return nil, err
	}
	from := a.StaffID
	a.StaffID = staff.ID
	if err := s.store.UpdateAssignment(ctx, a); err != nil {
		return nil, s.writeError(err, staff.ID, a.Date)
	}

	logger.WithContext(ctx).Info().
		Str("assignment_id", a.ID.String()).
		Str("from", from.String()).
		Str("to", staff.ID.String()).
		Msg("排班已转交")
	return a, nil
}
