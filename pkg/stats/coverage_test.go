package stats

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/paiban/nurseshift/pkg/model"
)

func TestCoverageAnalyzer_Analyze(t *testing.T) {
	r := newRoster()
	shifts := []*model.Shift{r.morning, r.night}
	days := []model.Date{"2024-03-15"}

	// 早班需要 2 护士 1 助理，夜班 1 护士
	assignments := []*model.Assignment{
		r.assign(r.a, r.morning, "2024-03-15"),
		r.assign(r.asst, r.morning, "2024-03-15"),
	}
	metrics := NewCoverageAnalyzer().Analyze(shifts, days, assignments)

	if metrics.RequiredSlots != 4 || metrics.FilledSlots != 2 {
		t.Fatalf("岗位统计错误: %d/%d", metrics.FilledSlots, metrics.RequiredSlots)
	}
	if metrics.OverallCoverage != 50 {
		t.Errorf("期望覆盖率 50%%，实际 %.1f%%", metrics.OverallCoverage)
	}
	if len(metrics.Shortfalls) != 2 {
		t.Fatalf("期望 2 个缺口，实际 %d", len(metrics.Shortfalls))
	}
	if sf := metrics.Shortfalls[0]; sf.ShiftID != r.morning.ID || sf.Role != model.RoleNurse || sf.Missing() != 1 {
		t.Errorf("第一个缺口应为早班护士缺 1 人: %+v", sf)
	}
	if got := metrics.RoleCoverage[model.RoleAssistant]; got != 100 {
		t.Errorf("助理覆盖率应为 100%%，实际 %.1f", got)
	}
	day := metrics.DailyCoverage["2024-03-15"]
	if day.StaffCount != 2 || day.TotalHours != 16 {
		t.Errorf("每日统计错误: %+v", day)
	}
}

func TestCoverageAnalyzer_OverstaffedNotCounted(t *testing.T) {
	r := newRoster()
	extra := r.assign(r.b, r.night, "2024-03-15")
	assignments := []*model.Assignment{r.assign(r.a, r.night, "2024-03-15"), extra}

	metrics := NewCoverageAnalyzer().Analyze([]*model.Shift{r.night}, []model.Date{"2024-03-15"}, assignments)

	if metrics.OverallCoverage != 100 {
		t.Errorf("期望 100%%，实际 %.1f%%", metrics.OverallCoverage)
	}
	if len(metrics.Overstaffed) != 1 || metrics.Overstaffed[0].Assigned != 2 {
		t.Errorf("超编应单独列出: %+v", metrics.Overstaffed)
	}
}

func TestCoverageAnalyzer_EmptyInput(t *testing.T) {
	metrics := NewCoverageAnalyzer().Analyze(nil, nil, nil)

	if metrics.OverallCoverage != 100 {
		t.Errorf("无需求时覆盖率应为 100%%，实际 %.1f%%", metrics.OverallCoverage)
	}
}

func TestCoverageAnalyzer_Report(t *testing.T) {
	r := newRoster()
	analyzer := NewCoverageAnalyzer()
	metrics := analyzer.Analyze([]*model.Shift{r.night}, []model.Date{"2024-03-15"}, nil)

	report := analyzer.Report(metrics, map[uuid.UUID]string{r.night.ID: r.night.Name})
	if !strings.Contains(report, "覆盖率:   0.0%") {
		t.Errorf("报告缺少覆盖率: %s", report)
	}
	if !strings.Contains(report, "เวรดึก nurse: 需要 1 人，已排 0 人，缺 1 人") {
		t.Errorf("报告缺少缺口: %s", report)
	}
}
