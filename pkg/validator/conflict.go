// Package validator 审计已保存的排班，找出违反资格约束的记录
package validator

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/paiban/nurseshift/pkg/model"
	"github.com/paiban/nurseshift/pkg/scheduler/constraint"
)

// ConflictType 冲突类型，与资格检查的原因一致
type ConflictType = constraint.Reason

// Severity 严重程度
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Conflict 冲突信息
type Conflict struct {
	Type        ConflictType `json:"type"`
	Severity    Severity     `json:"severity"`
	StaffID     uuid.UUID    `json:"staffId"`
	StaffName   string       `json:"staffName"`
	Date        model.Date   `json:"date"`
	Message     string       `json:"message"`
	Assignments []uuid.UUID  `json:"assignments,omitempty"`
}

// ConflictDetector 冲突检测器
type ConflictDetector struct {
	checks *constraint.Manager
}

// NewConflictDetector 创建冲突检测器
func NewConflictDetector(checks *constraint.Manager) *ConflictDetector {
	return &ConflictDetector{checks: checks}
}

// DetectAll 检测范围内全部有效排班
//
// 重叠成对报告；其余约束逐条将排班移出上下文后复检。规则上限可能在排班后被调整，
// 连续类约束只作为警告。
func (d *ConflictDetector) DetectAll(sc *constraint.Context, r model.DateRange) []Conflict {
	var conflicts []Conflict

	byStaff := groupByStaff(sc, r)
	for staffID, list := range byStaff {
		conflicts = append(conflicts, d.detectOverlaps(sc, staffID, list)...)
		for _, a := range list {
			if c, ok := d.detectRuleViolation(sc, a); ok {
				conflicts = append(conflicts, c)
			}
		}
	}

	sort.Slice(conflicts, func(i, j int) bool {
		a, b := conflicts[i], conflicts[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.StaffName != b.StaffName {
			return a.StaffName < b.StaffName
		}
		return a.Type < b.Type
	})
	return conflicts
}

// detectOverlaps 按开始时间扫描，记录与此前任一窗口相交的排班
func (d *ConflictDetector) detectOverlaps(sc *constraint.Context, staffID uuid.UUID, list []*model.Assignment) []Conflict {
	var conflicts []Conflict

	sorted := make([]*model.Assignment, len(list))
	copy(sorted, list)
	sort.Slice(sorted, func(i, j int) bool {
		wi, _ := sc.Window(sorted[i])
		wj, _ := sc.Window(sorted[j])
		return wi.Start < wj.Start
	})

	var reach *model.Assignment
	reachEnd := 0
	for _, a := range sorted {
		w, _ := sc.Window(a)
		if reach != nil && w.Start < reachEnd {
			conflicts = append(conflicts, Conflict{
				Type:        constraint.ReasonOverlap,
				Severity:    SeverityError,
				StaffID:     staffID,
				StaffName:   staffName(sc, staffID),
				Date:        a.Date,
				Message:     fmt.Sprintf("%s 与 %s 的排班时间重叠", shiftLabel(sc, a), shiftLabel(sc, reach)),
				Assignments: []uuid.UUID{reach.ID, a.ID},
			})
		}
		if reach == nil || w.End > reachEnd {
			reach, reachEnd = a, w.End
		}
	}
	return conflicts
}

// detectRuleViolation 复检除重叠以外的约束
func (d *ConflictDetector) detectRuleViolation(sc *constraint.Context, a *model.Assignment) (Conflict, bool) {
	shift := sc.GetShift(a.ShiftID)
	staff := sc.GetStaff(a.StaffID)
	if staff == nil {
		return Conflict{
			Type:        constraint.ReasonInactiveStaff,
			Severity:    SeverityError,
			StaffID:     a.StaffID,
			StaffName:   a.StaffID.String(),
			Date:        a.Date,
			Message:     "人员不属于本科室",
			Assignments: []uuid.UUID{a.ID},
		}, true
	}
	if shift == nil {
		return Conflict{}, false
	}
	cand, err := constraint.NewCandidate(staff, shift, a.Date)
	if err != nil {
		return Conflict{}, false
	}

	sc.RemoveAssignment(a.ID)
	v := d.checks.Evaluate(sc, cand)
	sc.AddAssignment(a)

	if v.Eligible || v.Reason == constraint.ReasonOverlap {
		return Conflict{}, false
	}
	return Conflict{
		Type:        v.Reason,
		Severity:    severityOf(v.Reason),
		StaffID:     staff.ID,
		StaffName:   staff.Name,
		Date:        a.Date,
		Message:     fmt.Sprintf("%s 不满足约束 %s", shiftLabel(sc, a), v.Reason),
		Assignments: []uuid.UUID{a.ID},
	}, true
}

func severityOf(r constraint.Reason) Severity {
	switch r {
	case constraint.ReasonMaxConsecutiveShifts, constraint.ReasonMaxConsecutiveNights, constraint.ReasonMaxConsecutiveWorkTime:
		return SeverityWarning
	}
	return SeverityError
}

// groupByStaff 按人员分组范围内的有效排班
func groupByStaff(sc *constraint.Context, r model.DateRange) map[uuid.UUID][]*model.Assignment {
	result := make(map[uuid.UUID][]*model.Assignment)
	for _, a := range sc.Assignments() {
		if r.Contains(a.Date) {
			result[a.StaffID] = append(result[a.StaffID], a)
		}
	}
	return result
}

func staffName(sc *constraint.Context, id uuid.UUID) string {
	if s := sc.GetStaff(id); s != nil {
		return s.Name
	}
	return id.String()
}

func shiftLabel(sc *constraint.Context, a *model.Assignment) string {
	if s := sc.GetShift(a.ShiftID); s != nil {
		return fmt.Sprintf("%s %s", a.Date, s.Name)
	}
	return a.Date.String()
}
