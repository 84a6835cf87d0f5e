package optimizer

import (
	"github.com/google/uuid"

	"github.com/paiban/nurseshift/pkg/model"
)

// 目标函数权重；缺人远重于公平性
const (
	weightUnfilled  = 1000.0
	weightCount     = 10.0
	weightNights    = 5.0
	weightShiftType = 50.0
	weightHours     = 5.0
)

// objective 目标值，越小越好
func (st *state) objective() float64 {
	score := 0.0
	for _, slot := range st.slots {
		if n := st.ctx.SlotCount(slot.Date, slot.Shift.ID, slot.Role); n < slot.Required {
			score += weightUnfilled * float64(slot.Required-n)
		}
	}

	nightWeight := weightNights
	if st.ctx.Rules.NightBalanceFirst() {
		nightWeight *= 3
	}
	typeLimit, typeOn := st.ctx.Rules.Limit(model.SettingMaxShiftTypeDifference)
	hoursLimit, hoursOn := st.ctx.Rules.Limit(model.SettingMaxTotalWorkHoursDifference)

	for _, role := range model.Roles {
		staff := st.roleStaff[role]
		if len(staff) < 2 {
			continue
		}
		counts := make([]int, len(staff))
		nights := make([]int, len(staff))
		minutes := make([]int, len(staff))
		byShift := make(map[uuid.UUID][]int, len(st.shifts))
		for i, s := range staff {
			t := st.ctx.MonthTally(s.ID)
			counts[i], nights[i], minutes[i] = t.Shifts, t.Nights, t.Minutes
			for _, sh := range st.shifts {
				byShift[sh.ID] = append(byShift[sh.ID], t.ByShift[sh.ID])
			}
		}

		c := float64(spread(counts))
		score += weightCount * c * c
		n := float64(spread(nights))
		score += nightWeight * n * n

		if typeOn {
			for _, sh := range st.shifts {
				if excess := spread(byShift[sh.ID]) - typeLimit; excess > 0 {
					score += weightShiftType * float64(excess)
				}
			}
		}
		if hoursOn {
			if excess := float64(spread(minutes))/60.0 - float64(hoursLimit); excess > 0 {
				score += weightHours * excess
			}
		}
	}
	return score
}

// spread 最大值与最小值之差
func spread(values []int) int {
	if len(values) == 0 {
		return 0
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return hi - lo
}
