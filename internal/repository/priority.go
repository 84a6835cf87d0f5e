package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/paiban/nurseshift/internal/database"
	"github.com/paiban/nurseshift/pkg/model"
)

// PriorityRepository 排班优先级仓储；参数值保存在 JSONB config 的 value 字段
type PriorityRepository struct {
	db *database.DB
}

// NewPriorityRepository 创建优先级仓储
func NewPriorityRepository(db *database.DB) *PriorityRepository {
	return &PriorityRepository{db: db}
}

const priorityColumns = `id, department_id, name, description, order_index, is_active,
	setting_type, setting_unit, config, created_at, updated_at`

type priorityRow struct {
	model.Priority
	Config model.JSONMap `db:"config"`
}

func (row *priorityRow) toModel() *model.Priority {
	p := row.Priority
	if v, ok := row.Config["value"].(float64); ok {
		n := int(v)
		p.SettingValue = &n
	}
	return &p
}

func settingConfig(p *model.Priority) model.JSONMap {
	if p.SettingValue == nil {
		return nil
	}
	return model.JSONMap{"value": *p.SettingValue}
}

// ListPriorities 科室优先级，按序号排序
func (r *PriorityRepository) ListPriorities(ctx context.Context, departmentID uuid.UUID) ([]*model.Priority, error) {
	var rows []priorityRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT `+priorityColumns+` FROM scheduling_priorities WHERE department_id = $1 ORDER BY order_index`, departmentID)
	if err != nil {
		return nil, fmt.Errorf("查询优先级失败: %w", err)
	}
	out := make([]*model.Priority, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toModel())
	}
	return out, nil
}

// GetPriority 根据ID获取优先级
func (r *PriorityRepository) GetPriority(ctx context.Context, id uuid.UUID) (*model.Priority, error) {
	var row priorityRow
	err := r.db.GetContext(ctx, &row, `SELECT `+priorityColumns+` FROM scheduling_priorities WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询优先级失败: %w", err)
	}
	return row.toModel(), nil
}

// CreatePriorities 在一个事务内写入一组优先级
func (r *PriorityRepository) CreatePriorities(ctx context.Context, priorities []*model.Priority) error {
	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		for _, p := range priorities {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO scheduling_priorities (
					id, department_id, name, description, order_index, is_active,
					setting_type, setting_unit, config, created_at, updated_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
				p.ID, p.DepartmentID, p.Name, p.Description, p.Order, p.IsActive,
				p.SettingType, p.SettingUnit, settingConfig(p), p.CreatedAt, p.UpdatedAt,
			)
			if err != nil {
				return fmt.Errorf("创建优先级失败: %w", err)
			}
		}
		return nil
	})
}

// UpdatePriority 更新启用状态与参数；序号只通过 MovePriority/SwapPriorityOrder 修改
func (r *PriorityRepository) UpdatePriority(ctx context.Context, p *model.Priority) error {
	p.UpdatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, `
		UPDATE scheduling_priorities SET
			name = $2, description = $3, is_active = $4, config = $5, updated_at = $6
		WHERE id = $1`,
		p.ID, p.Name, p.Description, p.IsActive, settingConfig(p), p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("更新优先级失败: %w", err)
	}
	return nil
}

// MovePriority 移动到目标序号并把科室内其余优先级压缩为 1..N
func (r *PriorityRepository) MovePriority(ctx context.Context, id uuid.UUID, order int) error {
	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var departmentID uuid.UUID
		err := tx.GetContext(ctx, &departmentID, `SELECT department_id FROM scheduling_priorities WHERE id = $1`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("查询优先级失败: %w", err)
		}

		var ids []uuid.UUID
		err = tx.SelectContext(ctx, &ids, `
			SELECT id FROM scheduling_priorities
			WHERE department_id = $1
			ORDER BY order_index
			FOR UPDATE`, departmentID)
		if err != nil {
			return fmt.Errorf("锁定优先级失败: %w", err)
		}

		reordered := moveTo(ids, id, order)
		for i, pid := range reordered {
			if _, err := tx.ExecContext(ctx,
				`UPDATE scheduling_priorities SET order_index = $1, updated_at = NOW() WHERE id = $2`, i+1, pid); err != nil {
				return fmt.Errorf("更新序号失败: %w", err)
			}
		}
		return nil
	})
}

// moveTo 把 id 移到第 order 位（从 1 开始，越界时截断）
func moveTo(ids []uuid.UUID, id uuid.UUID, order int) []uuid.UUID {
	rest := make([]uuid.UUID, 0, len(ids))
	for _, v := range ids {
		if v != id {
			rest = append(rest, v)
		}
	}
	if order < 1 {
		order = 1
	}
	if order > len(rest)+1 {
		order = len(rest) + 1
	}
	out := make([]uuid.UUID, 0, len(ids))
	out = append(out, rest[:order-1]...)
	out = append(out, id)
	return append(out, rest[order-1:]...)
}

// SwapPriorityOrder 交换两个优先级的序号；唯一约束延迟到提交时检查
func (r *PriorityRepository) SwapPriorityOrder(ctx context.Context, a, b uuid.UUID) error {
	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var rows []struct {
			ID    uuid.UUID `db:"id"`
			Order int       `db:"order_index"`
		}
		err := tx.SelectContext(ctx, &rows, `
			SELECT id, order_index FROM scheduling_priorities
			WHERE id IN ($1, $2)
			FOR UPDATE`, a, b)
		if err != nil {
			return fmt.Errorf("锁定优先级失败: %w", err)
		}
		if len(rows) != 2 {
			return nil
		}
		for i, row := range rows {
			other := rows[1-i]
			if _, err := tx.ExecContext(ctx,
				`UPDATE scheduling_priorities SET order_index = $1, updated_at = NOW() WHERE id = $2`, other.Order, row.ID); err != nil {
				return fmt.Errorf("交换序号失败: %w", err)
			}
		}
		return nil
	})
}
