// Package swap 为已有排班推荐接替人员
package swap

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/paiban/nurseshift/pkg/model"
	"github.com/paiban/nurseshift/pkg/scheduler/constraint"
)

// Candidate 接替候选
type Candidate struct {
	StaffID     uuid.UUID `json:"staffId"`
	Name        string    `json:"name"`
	Position    string    `json:"position,omitempty"`
	Score       float64   `json:"score"` // 0-100
	MonthShifts int       `json:"monthShifts"`
	MonthHours  float64   `json:"monthHours"`
	MonthNights int       `json:"monthNights"`
	Reason      string    `json:"reason"`
	Rank        int       `json:"rank"`
}

// Options 推荐选项
type Options struct {
	Limit   int         // 最大推荐数量，<=0 使用默认值
	Exclude []uuid.UUID // 排除的人员
}

// DefaultLimit 默认推荐数量
const DefaultLimit = 5

// Recommender 接替推荐器
type Recommender struct {
	checks *constraint.Manager
}

// NewRecommender 创建接替推荐器
func NewRecommender(checks *constraint.Manager) *Recommender {
	return &Recommender{checks: checks}
}

type roleAverage struct {
	hours  float64
	nights float64
}

// Recommend 为 source 推荐同角色、满足全部资格检查的在职人员
//
// 评估时原排班暂时移出上下文，返回前恢复。得分越高表示接替后本月负担越均衡。
func (r *Recommender) Recommend(sc *constraint.Context, source *model.Assignment, opts Options) []Candidate {
	shift := sc.GetShift(source.ShiftID)
	if shift == nil {
		return []Candidate{}
	}
	if sc.RemoveAssignment(source.ID) {
		defer sc.AddAssignment(source)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	exclude := map[uuid.UUID]bool{source.StaffID: true}
	for _, id := range opts.Exclude {
		exclude[id] = true
	}

	avg := average(sc, source.Role)
	shiftHours := shift.DurationHours()
	night := shift.IsNightShift()

	out := make([]Candidate, 0)
	for _, st := range sc.Staff() {
		if exclude[st.ID] || !st.IsActive || st.EffectiveRole() != source.Role {
			continue
		}
		cand, err := constraint.NewCandidate(st, shift, source.Date)
		if err != nil {
			continue
		}
		if v := r.checks.Evaluate(sc, cand); !v.Eligible {
			continue
		}

		t := sc.MonthTally(st.ID)
		hours := float64(t.Minutes) / 60
		c := Candidate{
			StaffID:     st.ID,
			Name:        st.Name,
			Position:    st.Position,
			MonthShifts: t.Shifts,
			MonthHours:  hours,
			MonthNights: t.Nights,
			Score:       score(hours+shiftHours, t.Nights, night, avg),
		}
		c.Reason = fmt.Sprintf("เดือนนี้ %d เวร %.1f ชั่วโมง", t.Shifts, hours)
		if night {
			c.Reason += fmt.Sprintf(" เวรดึก %d ครั้ง", t.Nights)
		}
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].MonthShifts != out[j].MonthShifts {
			return out[i].MonthShifts < out[j].MonthShifts
		}
		return out[i].StaffID.String() < out[j].StaffID.String()
	})
	if len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// average 同角色在职人员本月平均工时与夜班数
func average(sc *constraint.Context, role model.Role) roleAverage {
	var avg roleAverage
	n := 0
	for _, st := range sc.Staff() {
		if !st.IsActive || st.EffectiveRole() != role {
			continue
		}
		t := sc.MonthTally(st.ID)
		avg.hours += float64(t.Minutes) / 60
		avg.nights += float64(t.Nights)
		n++
	}
	if n > 0 {
		avg.hours /= float64(n)
		avg.nights /= float64(n)
	}
	return avg
}

// score 接替后工时超出平均值越多扣分越多；夜班另按夜班数扣分
func score(hoursAfter float64, nights int, night bool, avg roleAverage) float64 {
	const (
		hoursWeight = 50.0
		nightWeight = 10.0
	)
	s := 100.0
	if over := hoursAfter - avg.hours; over > 0 {
		s -= over / math.Max(avg.hours, 8) * hoursWeight
	}
	if night {
		if over := float64(nights+1) - avg.nights; over > 0 {
			s -= over * nightWeight
		}
	}
	return math.Max(0, math.Min(100, s))
}
