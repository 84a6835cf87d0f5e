package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/paiban/nurseshift/internal/database"
	"github.com/paiban/nurseshift/pkg/model"
)

// CalendarRepository 工作日、假期与请假
type CalendarRepository struct {
	db *database.DB
}

// NewCalendarRepository 创建日历仓储
func NewCalendarRepository(db *database.DB) *CalendarRepository {
	return &CalendarRepository{db: db}
}

// ListWorkingDays 科室每周工作日配置
func (r *CalendarRepository) ListWorkingDays(ctx context.Context, departmentID uuid.UUID) ([]model.WorkingDay, error) {
	var list []model.WorkingDay
	err := r.db.SelectContext(ctx, &list, `
		SELECT department_id, day_of_week, is_working_day
		FROM working_days
		WHERE department_id = $1
		ORDER BY day_of_week`, departmentID)
	if err != nil {
		return nil, fmt.Errorf("查询工作日失败: %w", err)
	}
	return list, nil
}

// ListHolidays 与范围相交的假期
func (r *CalendarRepository) ListHolidays(ctx context.Context, departmentID uuid.UUID, rng model.DateRange) ([]*model.Holiday, error) {
	var list []*model.Holiday
	err := r.db.SelectContext(ctx, &list, `
		SELECT id, department_id, name, start_date, end_date
		FROM holidays
		WHERE department_id = $1 AND end_date >= $2 AND start_date <= $3
		ORDER BY start_date`, departmentID, rng.Start, rng.End)
	if err != nil {
		return nil, fmt.Errorf("查询假期失败: %w", err)
	}
	return list, nil
}

// ListLeaves 与范围相交且未取消的请假
func (r *CalendarRepository) ListLeaves(ctx context.Context, departmentID uuid.UUID, rng model.DateRange) ([]*model.Leave, error) {
	var list []*model.Leave
	err := r.db.SelectContext(ctx, &list, `
		SELECT id, staff_id, status, start_date, end_date
		FROM leave_requests
		WHERE department_id = $1 AND status <> $2 AND end_date >= $3 AND start_date <= $4
		ORDER BY start_date`, departmentID, model.LeaveCancelled, rng.Start, rng.End)
	if err != nil {
		return nil, fmt.Errorf("查询请假失败: %w", err)
	}
	return list, nil
}
