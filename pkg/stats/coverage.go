package stats

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/paiban/nurseshift/pkg/model"
)

// CoverageMetrics 覆盖率指标，以岗位（日期 × 班次 × 角色 的需求人数）为单位
type CoverageMetrics struct {
	RequiredSlots   int                        `json:"requiredSlots"`
	FilledSlots     int                        `json:"filledSlots"`
	OverallCoverage float64                    `json:"overallCoverage"` // (%)
	DailyCoverage   map[model.Date]DayCoverage `json:"dailyCoverage"`
	ShiftCoverage   map[string]float64         `json:"shiftCoverage"` // 班次名称 -> 覆盖率
	RoleCoverage    map[model.Role]float64     `json:"roleCoverage"`
	Shortfalls      []model.Shortfall          `json:"shortfalls"`
	Overstaffed     []model.Shortfall          `json:"overstaffed,omitempty"`
}

// DayCoverage 每日覆盖情况
type DayCoverage struct {
	Date         model.Date `json:"date"`
	Required     int        `json:"required"`
	Filled       int        `json:"filled"`
	CoverageRate float64    `json:"coverageRate"`
	StaffCount   int        `json:"staffCount"`
	TotalHours   float64    `json:"totalHours"`
}

// CoverageAnalyzer 覆盖率分析器
type CoverageAnalyzer struct{}

// NewCoverageAnalyzer 创建覆盖率分析器
func NewCoverageAnalyzer() *CoverageAnalyzer {
	return &CoverageAnalyzer{}
}

type slotKey struct {
	date  model.Date
	shift uuid.UUID
	role  model.Role
}

// Analyze 按工作日与班次需求统计覆盖；超出需求的人数不计入已覆盖
func (c *CoverageAnalyzer) Analyze(shifts []*model.Shift, days []model.Date, assignments []*model.Assignment) *CoverageMetrics {
	metrics := &CoverageMetrics{
		DailyCoverage:   make(map[model.Date]DayCoverage),
		ShiftCoverage:   make(map[string]float64),
		RoleCoverage:    make(map[model.Role]float64),
		OverallCoverage: 100,
	}

	byID := make(map[uuid.UUID]*model.Shift, len(shifts))
	for _, s := range shifts {
		byID[s.ID] = s
	}
	assigned := make(map[slotKey]int)
	staffPerDay := make(map[model.Date]map[uuid.UUID]bool)
	hoursPerDay := make(map[model.Date]float64)
	for _, a := range assignments {
		shift, ok := byID[a.ShiftID]
		if !a.IsActive() || !ok {
			continue
		}
		assigned[slotKey{a.Date, a.ShiftID, a.Role}]++
		if staffPerDay[a.Date] == nil {
			staffPerDay[a.Date] = make(map[uuid.UUID]bool)
		}
		staffPerDay[a.Date][a.StaffID] = true
		hoursPerDay[a.Date] += shift.DurationHours()
	}

	shiftReq := make(map[string]int)
	shiftFilled := make(map[string]int)
	roleReq := make(map[model.Role]int)
	roleFilled := make(map[model.Role]int)

	for _, date := range days {
		day := DayCoverage{Date: date, StaffCount: len(staffPerDay[date]), TotalHours: hoursPerDay[date]}
		for _, shift := range shifts {
			for _, role := range model.Roles {
				required := shift.Required(role)
				got := assigned[slotKey{date, shift.ID, role}]
				filled := min(got, required)

				day.Required += required
				day.Filled += filled
				shiftReq[shift.Name] += required
				shiftFilled[shift.Name] += filled
				roleReq[role] += required
				roleFilled[role] += filled

				sf := model.Shortfall{Date: date, ShiftID: shift.ID, Role: role, Required: required, Assigned: got}
				switch {
				case got < required:
					metrics.Shortfalls = append(metrics.Shortfalls, sf)
				case got > required:
					metrics.Overstaffed = append(metrics.Overstaffed, sf)
				}
			}
		}
		day.CoverageRate = percent(day.Filled, day.Required)
		metrics.RequiredSlots += day.Required
		metrics.FilledSlots += day.Filled
		metrics.DailyCoverage[date] = day
	}

	metrics.OverallCoverage = percent(metrics.FilledSlots, metrics.RequiredSlots)
	for name, req := range shiftReq {
		metrics.ShiftCoverage[name] = percent(shiftFilled[name], req)
	}
	for role, req := range roleReq {
		metrics.RoleCoverage[role] = percent(roleFilled[role], req)
	}
	return metrics
}

// percent 无需求时视为完全覆盖
func percent(filled, required int) float64 {
	if required == 0 {
		return 100
	}
	return float64(filled) / float64(required) * 100
}

// Report 生成覆盖率文本报告
func (c *CoverageAnalyzer) Report(metrics *CoverageMetrics, shiftNames map[uuid.UUID]string) string {
	var b strings.Builder
	b.WriteString("=== 覆盖率分析报告 ===\n\n")
	fmt.Fprintf(&b, "需求岗位: %d\n", metrics.RequiredSlots)
	fmt.Fprintf(&b, "已覆盖:   %d\n", metrics.FilledSlots)
	fmt.Fprintf(&b, "覆盖率:   %.1f%%\n", metrics.OverallCoverage)

	if len(metrics.Shortfalls) > 0 {
		b.WriteString("\n【人手不足】\n")
		list := append([]model.Shortfall(nil), metrics.Shortfalls...)
		sort.SliceStable(list, func(i, j int) bool { return list[i].Date < list[j].Date })
		for _, sf := range list {
			name := shiftNames[sf.ShiftID]
			if name == "" {
				name = sf.ShiftID.String()
			}
			fmt.Fprintf(&b, "  - %s %s %s: 需要 %d 人，已排 %d 人，缺 %d 人\n",
				sf.Date, name, sf.Role, sf.Required, sf.Assigned, sf.Missing())
		}
	}
	return b.String()
}
