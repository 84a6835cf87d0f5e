package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/paiban/nurseshift/internal/database"
	"github.com/paiban/nurseshift/pkg/model"
)

// ShiftRepository 班次仓储
type ShiftRepository struct {
	db *database.DB
}

// NewShiftRepository 创建班次仓储
func NewShiftRepository(db *database.DB) *ShiftRepository {
	return &ShiftRepository{db: db}
}

// TIME 列统一格式化为 HH:MM
const shiftColumns = `id, department_id, name, shift_type,
	to_char(start_time, 'HH24:MI') AS start_time, to_char(end_time, 'HH24:MI') AS end_time,
	required_nurses, required_assistants, color, is_active, created_at, updated_at`

// GetShift 根据ID获取班次
func (r *ShiftRepository) GetShift(ctx context.Context, id uuid.UUID) (*model.Shift, error) {
	var s model.Shift
	err := r.db.GetContext(ctx, &s, `SELECT `+shiftColumns+` FROM shifts WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询班次失败: %w", err)
	}
	return &s, nil
}

// ListShifts 科室班次，按开始时间排序
func (r *ShiftRepository) ListShifts(ctx context.Context, departmentID uuid.UUID, activeOnly bool) ([]*model.Shift, error) {
	query := `SELECT ` + shiftColumns + ` FROM shifts WHERE department_id = $1`
	if activeOnly {
		query += ` AND is_active = TRUE`
	}
	query += ` ORDER BY shifts.start_time, name`

	var list []*model.Shift
	if err := r.db.SelectContext(ctx, &list, query, departmentID); err != nil {
		return nil, fmt.Errorf("查询班次列表失败: %w", err)
	}
	return list, nil
}
