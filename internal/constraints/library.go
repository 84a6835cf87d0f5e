// Package constraints 约束库：内置资格检查与均衡规则的说明及参数范围
package constraints

import (
	"github.com/paiban/nurseshift/pkg/model"
	"github.com/paiban/nurseshift/pkg/scheduler/constraint"
)

// 约束类型
const (
	TypeHard = "hard" // 不满足则不可排
	TypeSoft = "soft" // 只影响候选人排序
)

// Param 约束参数定义，取值来自科室优先级设置
type Param struct {
	Setting model.SettingType `json:"setting"`
	Unit    string            `json:"unit"`
	Default int               `json:"default"`
	Min     int               `json:"min"`
	Max     int               `json:"max"`
}

// Definition 约束定义
type Definition struct {
	Name        string            `json:"name"`
	DisplayName string            `json:"displayName"`
	Type        string            `json:"type"`
	Category    string            `json:"category"`
	Description string            `json:"description"`
	Reason      constraint.Reason `json:"reason,omitempty"` // 仅硬约束
	Order       int               `json:"order,omitempty"`  // 硬约束的检查顺序
	Param       *Param            `json:"param,omitempty"`
}

// LibraryResponse 约束库响应
type LibraryResponse struct {
	Library []Definition `json:"library"`
}

type entry struct {
	name, display, category, desc string
	setting                       model.SettingType
}

var hard = map[constraint.Reason]entry{
	constraint.ReasonInactiveStaff: {
		"active_staff", "บุคลากรปฏิบัติงานอยู่", "สถานะบุคลากร",
		"บุคลากรต้องยังปฏิบัติงานและสังกัดแผนกเดียวกับเวร", "",
	},
	constraint.ReasonNonWorkingDay: {
		"working_day", "วันทำการของแผนก", "ปฏิทิน",
		"ไม่จัดเวรในวันหยุดประจำสัปดาห์หรือวันหยุดพิเศษของแผนก", "",
	},
	constraint.ReasonOnLeave: {
		"leave", "วันลา", "ปฏิทิน",
		"ไม่จัดเวรในวันที่บุคลากรลา (ยกเว้นใบลาที่ยกเลิกแล้ว)", "",
	},
	constraint.ReasonOverlap: {
		"no_overlap", "เวลาเวรไม่ทับซ้อน", "เวลาทำงาน",
		"บุคลากรหนึ่งคนอยู่ได้ครั้งละหนึ่งเวร รวมเวรดึกที่ข้ามเที่ยงคืน", "",
	},
	constraint.ReasonMaxConsecutiveShifts: {
		"max_consecutive_shifts", "จำนวนวันทำงานติดต่อกัน", "การพักผ่อน",
		"จำนวนวันที่มีเวรติดต่อกันต้องไม่เกินค่าที่ตั้งไว้", model.SettingMaxConsecutiveShifts,
	},
	constraint.ReasonMaxConsecutiveNights: {
		"max_consecutive_night_shifts", "จำนวนเวรดึกติดต่อกัน", "การพักผ่อน",
		"จำนวนวันที่อยู่เวรดึกติดต่อกันต้องไม่เกินค่าที่ตั้งไว้", model.SettingMaxConsecutiveNightShifts,
	},
	constraint.ReasonMaxConsecutiveWorkTime: {
		"max_consecutive_work_hours", "ชั่วโมงทำงานต่อเนื่อง", "เวลาทำงาน",
		"ช่วงเวลาทำงานต่อเนื่องโดยไม่มีช่วงพักต้องไม่เกินค่าที่ตั้งไว้", model.SettingMaxConsecutiveWorkHours,
	},
}

var soft = []entry{
	{
		"shift_type_balance", "จำนวนเวรแต่ละประเภทใกล้เคียงกัน", "ความเป็นธรรม",
		"เลือกผู้ที่มีเวรประเภทนี้น้อยกว่าก่อน", model.SettingMaxShiftTypeDifference,
	},
	{
		"work_hours_balance", "ชั่วโมงทำงานรวมใกล้เคียงกัน", "ความเป็นธรรม",
		"เลือกผู้ที่มีชั่วโมงทำงานรวมน้อยกว่าก่อน", model.SettingMaxTotalWorkHoursDifference,
	},
}

func param(t model.SettingType) *Param {
	if t == "" {
		return nil
	}
	r, ok := t.Range()
	if !ok {
		return nil
	}
	return &Param{Setting: t, Unit: r.Unit, Default: r.Default, Min: r.Min, Max: r.Max}
}

// GetLibrary 按检查顺序列出硬约束，之后是均衡规则；未收录的原因只给出原因代码
func GetLibrary(order []constraint.Reason) []Definition {
	out := make([]Definition, 0, len(order)+len(soft))
	for i, reason := range order {
		e, ok := hard[reason]
		if !ok {
			e = entry{name: string(reason), display: string(reason)}
		}
		out = append(out, Definition{
			Name:        e.name,
			DisplayName: e.display,
			Type:        TypeHard,
			Category:    e.category,
			Description: e.desc,
			Reason:      reason,
			Order:       i + 1,
			Param:       param(e.setting),
		})
	}
	for _, e := range soft {
		out = append(out, Definition{
			Name:        e.name,
			DisplayName: e.display,
			Type:        TypeSoft,
			Category:    e.category,
			Description: e.desc,
			Param:       param(e.setting),
		})
	}
	return out
}
