package validator

import (
	"testing"

	"github.com/google/uuid"

	"github.com/paiban/nurseshift/pkg/model"
	"github.com/paiban/nurseshift/pkg/scheduler/constraint"
	"github.com/paiban/nurseshift/pkg/scheduler/testutil"
)

var march = model.DateRange{Start: "2024-03-01", End: "2024-03-31"}

func TestConflictDetector_CleanRoster(t *testing.T) {
	w := testutil.NewWard("2024-03", 2, 1)
	w.Assign(w.Nurses[0], w.Morning, "2024-03-15")
	w.Assign(w.Nurses[0], w.Night, "2024-03-15")
	w.Assign(w.Nurses[1], w.Evening, "2024-03-15")

	conflicts := NewConflictDetector(w.Checks).DetectAll(w.Context, march)
	if len(conflicts) != 0 {
		t.Errorf("不应有冲突: %+v", conflicts)
	}
}

func TestConflictDetector_Overlap(t *testing.T) {
	w := testutil.NewWard("2024-03", 2, 1)
	early := testutil.NewShift(w.DepartmentID, "เวรเช้ามืด", "06:00", "14:00", 1, 0)
	w.Context.SetShifts(append(w.Shifts(), early))

	night := w.Assign(w.Nurses[0], w.Night, "2024-03-14")
	first := w.Assign(w.Nurses[0], early, "2024-03-15")
	second := w.Assign(w.Nurses[0], w.Morning, "2024-03-15")

	conflicts := NewConflictDetector(w.Checks).DetectAll(w.Context, march)
	if len(conflicts) != 2 {
		t.Fatalf("期望 2 个重叠，实际 %d: %+v", len(conflicts), conflicts)
	}
	for _, c := range conflicts {
		if c.Type != constraint.ReasonOverlap || c.Severity != SeverityError {
			t.Errorf("冲突类型错误: %+v", c)
		}
		if c.StaffID != w.Nurses[0].ID {
			t.Errorf("人员错误: %s", c.StaffID)
		}
	}

	pairs := map[[2]uuid.UUID]bool{}
	for _, c := range conflicts {
		pairs[[2]uuid.UUID{c.Assignments[0], c.Assignments[1]}] = true
	}
	// 夜班到 07:00 结束，与 07:00 开始的早班首尾相接不算重叠
	if !pairs[[2]uuid.UUID{night.ID, first.ID}] {
		t.Errorf("缺少夜班与 06:00 班的重叠")
	}
	if !pairs[[2]uuid.UUID{first.ID, second.ID}] {
		t.Errorf("缺少 06:00 班与 07:00 早班的重叠")
	}
	if pairs[[2]uuid.UUID{night.ID, second.ID}] {
		t.Errorf("夜班与 07:00 早班不应重叠")
	}
}

func TestConflictDetector_AssignedDuringLeave(t *testing.T) {
	w := testutil.NewWard("2024-03", 2, 1)
	w.Context.AddLeave(&model.Leave{ID: uuid.New(), StaffID: w.Nurses[1].ID, Status: model.LeaveApproved,
		DateRange: model.DateRange{Start: "2024-03-15", End: "2024-03-15"}})
	a := w.Assign(w.Nurses[1], w.Morning, "2024-03-15")

	conflicts := NewConflictDetector(w.Checks).DetectAll(w.Context, march)
	if len(conflicts) != 1 {
		t.Fatalf("期望 1 个冲突，实际 %d", len(conflicts))
	}
	c := conflicts[0]
	if c.Type != constraint.ReasonOnLeave || c.Severity != SeverityError || c.Assignments[0] != a.ID {
		t.Errorf("冲突错误: %+v", c)
	}
	if c.StaffName != w.Nurses[1].Name {
		t.Errorf("姓名错误: %s", c.StaffName)
	}
}

func TestConflictDetector_ConsecutiveIsWarning(t *testing.T) {
	w := testutil.NewWard("2024-03", 2, 1)
	for _, d := range []model.Date{"2024-03-11", "2024-03-12", "2024-03-13", "2024-03-14", "2024-03-15"} {
		w.Assign(w.Nurses[0], w.Morning, d)
	}

	conflicts := NewConflictDetector(w.Checks).DetectAll(w.Context, march)
	// 默认上限 4 天，5 天中每一条都处于超限的连续段内
	if len(conflicts) != 5 {
		t.Fatalf("期望 5 个警告，实际 %d", len(conflicts))
	}
	for i, c := range conflicts {
		if c.Type != constraint.ReasonMaxConsecutiveShifts || c.Severity != SeverityWarning {
			t.Errorf("冲突错误: %+v", c)
		}
		if i > 0 && conflicts[i-1].Date > c.Date {
			t.Errorf("结果应按日期排序")
		}
	}
}

func TestConflictDetector_OutsideRangeIgnored(t *testing.T) {
	w := testutil.NewWard("2024-03", 2, 1)
	w.Context.AddLeave(&model.Leave{ID: uuid.New(), StaffID: w.Nurses[0].ID, Status: model.LeaveApproved,
		DateRange: model.DateRange{Start: "2024-02-29", End: "2024-02-29"}})
	w.Assign(w.Nurses[0], w.Morning, "2024-02-29")

	conflicts := NewConflictDetector(w.Checks).DetectAll(w.Context, march)
	if len(conflicts) != 0 {
		t.Errorf("范围外的排班不应检查: %+v", conflicts)
	}
}
