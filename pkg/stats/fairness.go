// Package stats 提供月度排班统计：人员公平性与班次覆盖率
package stats

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/paiban/nurseshift/pkg/model"
)

// StaffStat 单个人员的月度统计
type StaffStat struct {
	StaffID       uuid.UUID      `json:"staffId"`
	Name          string         `json:"name"`
	Role          model.Role     `json:"role"`
	ShiftCount    int            `json:"shiftCount"`
	TotalHours    float64        `json:"totalHours"`
	NightShifts   int            `json:"nightShifts"`
	WeekendShifts int            `json:"weekendShifts"`
	ByShift       map[string]int `json:"byShift"`   // 班次名称 -> 次数
	Deviation     float64        `json:"deviation"` // 工时相对同角色平均值的偏差百分比
}

// RoleFairness 同一角色内的公平性指标，基尼系数 0 为完全均衡
type RoleFairness struct {
	StaffCount    int     `json:"staffCount"`
	AvgShifts     float64 `json:"avgShifts"`
	AvgHours      float64 `json:"avgHours"`
	HoursStdDev   float64 `json:"hoursStdDev"`
	MaxHours      float64 `json:"maxHours"`
	MinHours      float64 `json:"minHours"`
	ShiftGini     float64 `json:"shiftGini"`
	HoursGini     float64 `json:"hoursGini"`
	NightGini     float64 `json:"nightGini"`
	WeekendGini   float64 `json:"weekendGini"`
	FairnessScore float64 `json:"fairnessScore"`
}

// FairnessMetrics 公平性分析结果
type FairnessMetrics struct {
	TotalAssignments      int                         `json:"totalAssignments"`
	ShiftTypeDistribution map[string]float64          `json:"shiftTypeDistribution"` // 班次名称 -> 占比 (%)
	Roles                 map[model.Role]RoleFairness `json:"roles"`
	Staff                 []StaffStat                 `json:"staff"`
	OverallFairnessScore  float64                     `json:"overallFairnessScore"` // 0-100
}

// FairnessAnalyzer 公平性分析器
type FairnessAnalyzer struct{}

// NewFairnessAnalyzer 创建公平性分析器
func NewFairnessAnalyzer() *FairnessAnalyzer {
	return &FairnessAnalyzer{}
}

// Analyze 统计有效排班；没有排班的在职人员同样计入，以反映分配不均
func (f *FairnessAnalyzer) Analyze(staff []*model.Staff, shifts map[uuid.UUID]*model.Shift, assignments []*model.Assignment) *FairnessMetrics {
	metrics := &FairnessMetrics{
		ShiftTypeDistribution: make(map[string]float64),
		Roles:                 make(map[model.Role]RoleFairness),
		OverallFairnessScore:  100,
	}

	statMap := make(map[uuid.UUID]*StaffStat, len(staff))
	for _, s := range staff {
		if !s.IsActive {
			continue
		}
		statMap[s.ID] = &StaffStat{StaffID: s.ID, Name: s.Name, Role: s.EffectiveRole(), ByShift: map[string]int{}}
	}

	typeCounts := make(map[string]int)
	for _, a := range assignments {
		if !a.IsActive() {
			continue
		}
		shift, ok := shifts[a.ShiftID]
		if !ok {
			continue
		}
		stat, ok := statMap[a.StaffID]
		if !ok {
			// 已停用或外科室人员的历史排班
			stat = &StaffStat{StaffID: a.StaffID, Name: a.StaffID.String(), Role: a.Role, ByShift: map[string]int{}}
			statMap[a.StaffID] = stat
		}
		stat.ShiftCount++
		stat.TotalHours += shift.DurationHours()
		stat.ByShift[shift.Name]++
		if shift.IsNightShift() {
			stat.NightShifts++
		}
		if isWeekend(a.Date) {
			stat.WeekendShifts++
		}
		typeCounts[shift.Name]++
		metrics.TotalAssignments++
	}

	for name, count := range typeCounts {
		metrics.ShiftTypeDistribution[name] = float64(count) / float64(metrics.TotalAssignments) * 100
	}

	byRole := make(map[model.Role][]*StaffStat)
	for _, stat := range statMap {
		byRole[stat.Role] = append(byRole[stat.Role], stat)
	}

	weighted, people := 0.0, 0
	for role, list := range byRole {
		rf := f.analyzeRole(list)
		metrics.Roles[role] = rf
		weighted += rf.FairnessScore * float64(rf.StaffCount)
		people += rf.StaffCount
	}
	if people > 0 {
		metrics.OverallFairnessScore = weighted / float64(people)
	}

	metrics.Staff = make([]StaffStat, 0, len(statMap))
	for _, stat := range statMap {
		metrics.Staff = append(metrics.Staff, *stat)
	}
	sort.Slice(metrics.Staff, func(i, j int) bool {
		a, b := metrics.Staff[i], metrics.Staff[j]
		if a.TotalHours != b.TotalHours {
			return a.TotalHours > b.TotalHours
		}
		return a.StaffID.String() < b.StaffID.String()
	})
	return metrics
}

// analyzeRole 计算同角色指标并回填偏差
func (f *FairnessAnalyzer) analyzeRole(list []*StaffStat) RoleFairness {
	n := len(list)
	counts := make([]float64, n)
	hours := make([]float64, n)
	nights := make([]float64, n)
	weekends := make([]float64, n)
	for i, s := range list {
		counts[i] = float64(s.ShiftCount)
		hours[i] = s.TotalHours
		nights[i] = float64(s.NightShifts)
		weekends[i] = float64(s.WeekendShifts)
	}

	avgHours := mean(hours)
	stdDev := math.Sqrt(variance(hours, avgHours))
	maxHours, minHours := valueRange(hours)
	for _, s := range list {
		if avgHours > 0 {
			s.Deviation = (s.TotalHours - avgHours) / avgHours * 100
		}
	}

	rf := RoleFairness{
		StaffCount:  n,
		AvgShifts:   mean(counts),
		AvgHours:    avgHours,
		HoursStdDev: stdDev,
		MaxHours:    maxHours,
		MinHours:    minHours,
		ShiftGini:   Gini(counts),
		HoursGini:   Gini(hours),
		NightGini:   Gini(nights),
		WeekendGini: Gini(weekends),
	}
	rf.FairnessScore = overallScore(rf.HoursGini, rf.NightGini, rf.WeekendGini, stdDev, avgHours)
	return rf
}

func isWeekend(d model.Date) bool {
	w := d.Weekday()
	return w == time.Saturday || w == time.Sunday
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// variance 总体方差
func variance(values []float64, m float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sumSquares := 0.0
	for _, v := range values {
		diff := v - m
		sumSquares += diff * diff
	}
	return sumSquares / float64(len(values))
}

func valueRange(values []float64) (max, min float64) {
	if len(values) == 0 {
		return 0, 0
	}
	max, min = values[0], values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
		if v < min {
			min = v
		}
	}
	return
}

// Gini 基尼系数，结果截断到 [0, 1]；全零视为完全均衡
func Gini(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	if sum == 0 {
		return 0
	}

	gini := 0.0
	for i, v := range sorted {
		gini += (2*float64(i+1) - float64(n) - 1) * v
	}
	gini = gini / (float64(n) * sum)
	return math.Max(0, math.Min(1, gini))
}

// overallScore 综合评分 0-100
func overallScore(hoursGini, nightGini, weekendGini, stdDev, avgHours float64) float64 {
	const (
		hoursWeight   = 0.4
		nightWeight   = 0.25
		weekendWeight = 0.25
		cvWeight      = 0.1
	)

	cvScore := 100.0
	if avgHours > 0 {
		cvScore = math.Max(0, 100-stdDev/avgHours*200)
	}

	score := hoursWeight*(1-hoursGini)*100 +
		nightWeight*(1-nightGini)*100 +
		weekendWeight*(1-weekendGini)*100 +
		cvWeight*cvScore
	return math.Max(0, math.Min(100, score))
}
