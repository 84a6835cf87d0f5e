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

// DepartmentRepository 科室与人员
type DepartmentRepository struct {
	db *database.DB
}

// NewDepartmentRepository 创建科室仓储
func NewDepartmentRepository(db *database.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

const departmentColumns = `id, name, max_nurses, max_assistants, is_active, created_at, updated_at`

// GetDepartment 根据ID获取科室
func (r *DepartmentRepository) GetDepartment(ctx context.Context, id uuid.UUID) (*model.Department, error) {
	var d model.Department
	err := r.db.GetContext(ctx, &d, `SELECT `+departmentColumns+` FROM departments WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询科室失败: %w", err)
	}
	return &d, nil
}

// ListDepartments 列出启用的科室
func (r *DepartmentRepository) ListDepartments(ctx context.Context) ([]*model.Department, error) {
	var list []*model.Department
	err := r.db.SelectContext(ctx, &list, `SELECT `+departmentColumns+` FROM departments WHERE is_active = TRUE ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("查询科室列表失败: %w", err)
	}
	return list, nil
}

const staffColumns = `id, department_id, name, position, role, is_active, created_at, updated_at`

// GetStaff 根据ID获取人员
func (r *DepartmentRepository) GetStaff(ctx context.Context, id uuid.UUID) (*model.Staff, error) {
	var s model.Staff
	err := r.db.GetContext(ctx, &s, `SELECT `+staffColumns+` FROM department_staff WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询人员失败: %w", err)
	}
	return &s, nil
}

// ListStaff 科室全部人员（含停用）
func (r *DepartmentRepository) ListStaff(ctx context.Context, departmentID uuid.UUID) ([]*model.Staff, error) {
	var list []*model.Staff
	err := r.db.SelectContext(ctx, &list,
		`SELECT `+staffColumns+` FROM department_staff WHERE department_id = $1 ORDER BY id`, departmentID)
	if err != nil {
		return nil, fmt.Errorf("查询科室人员失败: %w", err)
	}
	return list, nil
}
