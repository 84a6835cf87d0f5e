package priority

import (
	"github.com/paiban/nurseshift/pkg/model"
)

// Rules 启用中的优先级参数快照，供排班引擎与资格检查使用
type Rules struct {
	limits map[model.SettingType]int
	ranks  map[model.SettingType]int
}

// NewRules 由优先级列表构建规则快照，仅启用项生效
func NewRules(priorities []*model.Priority) Rules {
	r := Rules{
		limits: make(map[model.SettingType]int),
		ranks:  make(map[model.SettingType]int),
	}
	for _, p := range priorities {
		if !p.IsActive || !p.HasSetting() {
			continue
		}
		v, ok := p.Setting()
		if !ok {
			continue
		}
		st := *p.SettingType
		if prev, exists := r.ranks[st]; exists && prev <= p.Order {
			continue
		}
		r.limits[st] = v
		r.ranks[st] = p.Order
	}
	return r
}

// Limit 返回启用参数的取值
func (r Rules) Limit(t model.SettingType) (int, bool) {
	v, ok := r.limits[t]
	return v, ok
}

// Active 参数是否启用
func (r Rules) Active(t model.SettingType) bool {
	_, ok := r.limits[t]
	return ok
}

// Outranks a 是否启用且排在 b 之前（b 未启用时视为 a 优先）
func (r Rules) Outranks(a, b model.SettingType) bool {
	ra, ok := r.ranks[a]
	if !ok {
		return false
	}
	rb, ok := r.ranks[b]
	if !ok {
		return true
	}
	return ra < rb
}

// NightBalanceFirst 夜班均衡是否优先于总量均衡
func (r Rules) NightBalanceFirst() bool {
	return r.Outranks(model.SettingMaxConsecutiveNightShifts, model.SettingMaxTotalWorkHoursDifference)
}

// LookaroundDays 资格检查需要前后加载的天数
func (r Rules) LookaroundDays() int {
	days := 1
	if v, ok := r.limits[model.SettingMaxConsecutiveShifts]; ok && v+1 > days {
		days = v + 1
	}
	if v, ok := r.limits[model.SettingMaxConsecutiveNightShifts]; ok && v+1 > days {
		days = v + 1
	}
	if v, ok := r.limits[model.SettingMaxConsecutiveWorkHours]; ok {
		if d := v/24 + 2; d > days {
			days = d
		}
	}
	return days
}
