package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/paiban/nurseshift/internal/database"
	"github.com/paiban/nurseshift/pkg/model"
	"github.com/paiban/nurseshift/pkg/store"
)

// AssignmentRepository 排班记录仓储，对应 schedules 表
type AssignmentRepository struct {
	db *database.DB
}

// NewAssignmentRepository 创建排班仓储
func NewAssignmentRepository(db *database.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

const assignmentColumns = `id, department_id, staff_id, shift_id, schedule_date,
	role_at_assignment, status, notes, created_at, updated_at`

// CreateAssignment 创建排班记录
func (r *AssignmentRepository) CreateAssignment(ctx context.Context, a *model.Assignment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now
	if a.Status == "" {
		a.Status = model.StatusActive
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO schedules (`+assignmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.DepartmentID, a.StaffID, a.ShiftID, a.Date,
		a.Role, a.Status, a.Notes, a.CreatedAt, a.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return store.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("创建排班记录失败: %w", err)
	}
	return nil
}

// GetAssignment 根据ID获取排班
func (r *AssignmentRepository) GetAssignment(ctx context.Context, id uuid.UUID) (*model.Assignment, error) {
	var a model.Assignment
	err := r.db.GetContext(ctx, &a, `SELECT `+assignmentColumns+` FROM schedules WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询排班记录失败: %w", err)
	}
	return &a, nil
}

// UpdateAssignment 更新人员、班次、日期、状态与备注
func (r *AssignmentRepository) UpdateAssignment(ctx context.Context, a *model.Assignment) error {
	a.UpdatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, `
		UPDATE schedules SET
			staff_id = $2, shift_id = $3, schedule_date = $4, role_at_assignment = $5,
			status = $6, notes = $7, updated_at = $8
		WHERE id = $1`,
		a.ID, a.StaffID, a.ShiftID, a.Date, a.Role, a.Status, a.Notes, a.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return store.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("更新排班记录失败: %w", err)
	}
	return nil
}

// ListAssignments 按条件查询，结果按日期、班次开始时间排序
func (r *AssignmentRepository) ListAssignments(ctx context.Context, f store.AssignmentFilter) ([]*model.Assignment, error) {
	var c conditions
	if f.DepartmentID != uuid.Nil {
		c.add("s.department_id = $%d", f.DepartmentID)
	}
	if len(f.StaffIDs) > 0 {
		c.add("s.staff_id = ANY($%d::uuid[])", uuidArray(f.StaffIDs))
	}
	if f.ShiftID != uuid.Nil {
		c.add("s.shift_id = $%d", f.ShiftID)
	}
	if f.From != "" {
		c.add("s.schedule_date >= $%d", f.From)
	}
	if f.To != "" {
		c.add("s.schedule_date <= $%d", f.To)
	}
	if f.ActiveOnly {
		c.add("s.status = $%d", model.StatusActive)
	}

	query := `
		SELECT s.id, s.department_id, s.staff_id, s.shift_id, s.schedule_date,
			s.role_at_assignment, s.status, s.notes, s.created_at, s.updated_at
		FROM schedules s
		JOIN shifts sh ON sh.id = s.shift_id
		` + c.where() + `
		ORDER BY s.schedule_date, sh.start_time, s.staff_id`

	var list []*model.Assignment
	if err := r.db.SelectContext(ctx, &list, query, c.args...); err != nil {
		return nil, fmt.Errorf("查询排班记录失败: %w", err)
	}
	return list, nil
}

// CountActive 统计范围内有效排班数
func (r *AssignmentRepository) CountActive(ctx context.Context, departmentID uuid.UUID, rng model.DateRange) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM schedules
		WHERE department_id = $1 AND status = $2 AND schedule_date BETWEEN $3 AND $4`,
		departmentID, model.StatusActive, rng.Start, rng.End)
	if err != nil {
		return 0, fmt.Errorf("统计排班失败: %w", err)
	}
	return count, nil
}

// CancelAssignments 取消指定排班
func (r *AssignmentRepository) CancelAssignments(ctx context.Context, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE schedules SET status = $1, updated_at = NOW()
		WHERE id = ANY($2::uuid[]) AND status = $3`,
		model.StatusCancelled, uuidArray(ids), model.StatusActive)
	if err != nil {
		return 0, fmt.Errorf("取消排班失败: %w", err)
	}
	return rowsAffected(res)
}

// CancelRange 取消科室在范围内的全部有效排班
func (r *AssignmentRepository) CancelRange(ctx context.Context, departmentID uuid.UUID, rng model.DateRange) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE schedules SET status = $1, updated_at = NOW()
		WHERE department_id = $2 AND status = $3 AND schedule_date BETWEEN $4 AND $5`,
		model.StatusCancelled, departmentID, model.StatusActive, rng.Start, rng.End)
	if err != nil {
		return 0, fmt.Errorf("取消排班失败: %w", err)
	}
	return rowsAffected(res)
}

func rowsAffected(res sql.Result) (int, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("读取影响行数失败: %w", err)
	}
	return int(n), nil
}
