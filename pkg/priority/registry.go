// Package priority 管理科室排班优先级规则
package priority

import (
	"context"
	"sync"

	"github.com/google/uuid"

	apperrors "github.com/paiban/nurseshift/pkg/errors"
	"github.com/paiban/nurseshift/pkg/logger"
	"github.com/paiban/nurseshift/pkg/model"
	"github.com/paiban/nurseshift/pkg/store"
)

// Registry 优先级注册表
type Registry struct {
	priorities  store.PriorityStore
	departments store.DepartmentStore
	seedMu      sync.Mutex
}

// NewRegistry 创建注册表
func NewRegistry(priorities store.PriorityStore, departments store.DepartmentStore) *Registry {
	return &Registry{priorities: priorities, departments: departments}
}

// ListResult 列表结果
type ListResult struct {
	Priorities  []*model.Priority `json:"priorities"`
	Total       int               `json:"total"`
	ActiveCount int               `json:"activeCount"`
}

// UpdateInput 更新参数，nil 字段不修改
type UpdateInput struct {
	IsActive     *bool `json:"isActive"`
	Order        *int  `json:"order"`
	SettingValue *int  `json:"settingValue"`
}

// List 按序号返回科室优先级，首次访问时写入默认规则
func (r *Registry) List(ctx context.Context, departmentID uuid.UUID) (*ListResult, error) {
	dept, err := r.departments.GetDepartment(ctx, departmentID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if dept == nil {
		return nil, apperrors.NotFound("แผนก", departmentID.String())
	}

	list, err := r.ensureDefaults(ctx, departmentID)
	if err != nil {
		return nil, err
	}

	res := &ListResult{Priorities: list, Total: len(list)}
	for _, p := range list {
		if p.IsActive {
			res.ActiveCount++
		}
	}
	return res, nil
}

func (r *Registry) ensureDefaults(ctx context.Context, departmentID uuid.UUID) ([]*model.Priority, error) {
	list, err := r.priorities.ListPriorities(ctx, departmentID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if len(list) > 0 {
		return list, nil
	}

	r.seedMu.Lock()
	defer r.seedMu.Unlock()

	// 双重检查，避免并发写入两套默认值
	list, err = r.priorities.ListPriorities(ctx, departmentID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if len(list) > 0 {
		return list, nil
	}

	defaults := model.DefaultPriorities(departmentID)
	if err := r.priorities.CreatePriorities(ctx, defaults); err != nil {
		// 其他实例可能已写入
		if list, lerr := r.priorities.ListPriorities(ctx, departmentID); lerr == nil && len(list) > 0 {
			return list, nil
		}
		return nil, apperrors.Database(err)
	}
	logger.WithContext(ctx).Info().
		Str("department_id", departmentID.String()).
		Int("count", len(defaults)).
		Msg("已创建默认优先级")
	return defaults, nil
}

// Rules 返回科室启用中的规则快照
func (r *Registry) Rules(ctx context.Context, departmentID uuid.UUID) (Rules, error) {
	list, err := r.ensureDefaults(ctx, departmentID)
	if err != nil {
		return Rules{}, err
	}
	return NewRules(list), nil
}

// Update 更新启用状态、序号或参数值；校验失败时不做任何修改
func (r *Registry) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*model.Priority, error) {
	p, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.SettingValue != nil {
		if err := validateSetting(p, *in.SettingValue); err != nil {
			return nil, err
		}
	}
	if in.Order != nil {
		siblings, err := r.priorities.ListPriorities(ctx, p.DepartmentID)
		if err != nil {
			return nil, apperrors.Database(err)
		}
		if *in.Order < 1 || *in.Order > len(siblings) {
			return nil, apperrors.OutOfRange("order", *in.Order, 1, len(siblings))
		}
	}

	changed := false
	if in.IsActive != nil && *in.IsActive != p.IsActive {
		p.IsActive = *in.IsActive
		changed = true
	}
	if in.SettingValue != nil {
		v := *in.SettingValue
		p.SettingValue = &v
		changed = true
	}
	if changed {
		if err := r.priorities.UpdatePriority(ctx, p); err != nil {
			return nil, apperrors.Persistence(err, "update priority")
		}
	}
	if in.Order != nil && *in.Order != p.Order {
		if err := r.priorities.MovePriority(ctx, p.ID, *in.Order); err != nil {
			return nil, apperrors.Persistence(err, "move priority")
		}
		p.Order = *in.Order
	}

	logger.WithContext(ctx).Info().
		Str("priority_id", id.String()).
		Bool("is_active", p.IsActive).
		Int("order", p.Order).
		Msg("优先级已更新")
	return p, nil
}

// UpdateSetting 仅更新参数值
func (r *Registry) UpdateSetting(ctx context.Context, id uuid.UUID, value int) (*model.Priority, error) {
	return r.Update(ctx, id, UpdateInput{SettingValue: &value})
}

// Swap 交换两个优先级的序号，两者必须属于同一科室
func (r *Registry) Swap(ctx context.Context, a, b uuid.UUID) error {
	if a == b {
		return apperrors.InvalidInput("priorityId2", "ต้องเป็นคนละรายการ")
	}
	pa, err := r.get(ctx, a)
	if err != nil {
		return err
	}
	pb, err := r.get(ctx, b)
	if err != nil {
		return err
	}
	if pa.DepartmentID != pb.DepartmentID {
		return apperrors.InvalidInput("priorityId2", "ต้องอยู่ในแผนกเดียวกัน")
	}

	if err := r.priorities.SwapPriorityOrder(ctx, a, b); err != nil {
		return apperrors.Persistence(err, "swap priority order")
	}

	logger.WithContext(ctx).Info().
		Str("priority_a", a.String()).
		Str("priority_b", b.String()).
		Msg("优先级顺序已交换")
	return nil
}

func (r *Registry) get(ctx context.Context, id uuid.UUID) (*model.Priority, error) {
	p, err := r.priorities.GetPriority(ctx, id)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if p == nil {
		return nil, apperrors.NotFound("ลำดับความสำคัญ", id.String())
	}
	return p, nil
}

func validateSetting(p *model.Priority, value int) error {
	if !p.HasSetting() {
		return apperrors.InvalidInput("settingValue", "รายการนี้ไม่มีค่าตั้งค่า")
	}
	rng, ok := p.SettingType.Range()
	if !ok {
		return apperrors.InvalidInput("settingType", string(*p.SettingType))
	}
	if value < rng.Min || value > rng.Max {
		return apperrors.OutOfRange("settingValue", value, rng.Min, rng.Max)
	}
	return nil
}
