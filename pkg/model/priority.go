package model

import (
	"fmt"

	"github.com/google/uuid"
)

// SettingType 优先级参数类型
type SettingType string

const (
	SettingMaxShiftTypeDifference      SettingType = "max_shift_type_difference"
	SettingMaxConsecutiveNightShifts   SettingType = "max_consecutive_night_shifts"
	SettingMaxConsecutiveShifts        SettingType = "max_consecutive_shifts"
	SettingMaxConsecutiveWorkHours     SettingType = "max_consecutive_work_hours"
	SettingMaxTotalWorkHoursDifference SettingType = "max_total_work_hours_difference"
)

// SettingRange 参数取值范围及默认值
type SettingRange struct {
	Min     int    `json:"min"`
	Max     int    `json:"max"`
	Default int    `json:"default"`
	Unit    string `json:"unit"`
}

var settingRanges = map[SettingType]SettingRange{
	SettingMaxShiftTypeDifference:      {Min: 0, Max: 5, Default: 2, Unit: "เวร"},
	SettingMaxConsecutiveNightShifts:   {Min: 1, Max: 5, Default: 2, Unit: "วัน"},
	SettingMaxConsecutiveShifts:        {Min: 1, Max: 10, Default: 4, Unit: "วัน"},
	SettingMaxConsecutiveWorkHours:     {Min: 12, Max: 72, Default: 48, Unit: "ชั่วโมง"},
	SettingMaxTotalWorkHoursDifference: {Min: 8, Max: 80, Default: 16, Unit: "ชั่วโมง"},
}

// Range 返回参数范围
func (t SettingType) Range() (SettingRange, bool) {
	r, ok := settingRanges[t]
	return r, ok
}

// Validate 检查参数值是否在范围内
func (t SettingType) Validate(value int) error {
	r, ok := settingRanges[t]
	if !ok {
		return fmt.Errorf("未知的参数类型 %q", t)
	}
	if value < r.Min || value > r.Max {
		return fmt.Errorf("%s 取值 %d 超出范围 [%d, %d]", t, value, r.Min, r.Max)
	}
	return nil
}

// Priority 排班优先级规则
type Priority struct {
	BaseModel
	DepartmentID uuid.UUID    `json:"departmentId" db:"department_id"`
	Name         string       `json:"name" db:"name"`
	Description  string       `json:"description" db:"description"`
	Order        int          `json:"order" db:"order_index"`
	IsActive     bool         `json:"isActive" db:"is_active"`
	SettingType  *SettingType `json:"settingType,omitempty" db:"setting_type"`
	SettingValue *int         `json:"settingValue,omitempty" db:"setting_value"`
	SettingUnit  string       `json:"settingUnit,omitempty" db:"setting_unit"`
}

// HasSetting 是否带数值参数
func (p *Priority) HasSetting() bool {
	return p.SettingType != nil && *p.SettingType != ""
}

// Setting 当前参数值，未设置时返回默认值
func (p *Priority) Setting() (int, bool) {
	if !p.HasSetting() {
		return 0, false
	}
	if p.SettingValue != nil {
		return *p.SettingValue, true
	}
	r, ok := p.SettingType.Range()
	return r.Default, ok
}

// DefaultPriorities 新科室的默认优先级，顺序即 1..N
func DefaultPriorities(departmentID uuid.UUID) []*Priority {
	type def struct {
		name, desc string
		setting    SettingType
	}
	defs := []def{
		{"วันที่ขอหยุด", "เคารพวันที่บุคลากรขอหยุด", ""},
		{"จำนวนเวรเท่ากันในแต่ละประเภท", "จำนวนเวรแต่ละประเภทของแต่ละคนต่างกันได้ไม่เกินค่าที่กำหนด", SettingMaxShiftTypeDifference},
		{"จำนวนเวรดึกติดต่อกัน", "จำนวนวันที่อยู่เวรดึกติดต่อกันได้สูงสุด", SettingMaxConsecutiveNightShifts},
		{"จำนวนเวรติดต่อกัน", "จำนวนวันที่อยู่เวรติดต่อกันได้สูงสุด", SettingMaxConsecutiveShifts},
		{"จำนวนชั่วโมงทำงานสูงสุดติดต่อกันโดยไม่พัก", "จำนวนชั่วโมงทำงานต่อเนื่องโดยไม่มีช่วงพัก", SettingMaxConsecutiveWorkHours},
		{"จำนวนชั่วโมงการทำงานทั้งหมด", "ชั่วโมงทำงานรวมของแต่ละคนต่างกันได้ไม่เกินค่าที่กำหนด", SettingMaxTotalWorkHoursDifference},
	}

	out := make([]*Priority, 0, len(defs))
	for i, d := range defs {
		p := &Priority{
			BaseModel:    NewBaseModel(),
			DepartmentID: departmentID,
			Name:         d.name,
			Description:  d.desc,
			Order:        i + 1,
			IsActive:     true,
		}
		if d.setting != "" {
			st := d.setting
			r, _ := st.Range()
			v := r.Default
			p.SettingType = &st
			p.SettingValue = &v
			p.SettingUnit = r.Unit
		}
		out = append(out, p)
	}
	return out
}
