// Package report 汇总科室月度排班的统计与审计结果
package report

import (
	"context"

	"github.com/google/uuid"

	apperrors "github.com/paiban/nurseshift/pkg/errors"
	"github.com/paiban/nurseshift/pkg/logger"
	"github.com/paiban/nurseshift/pkg/model"
	"github.com/paiban/nurseshift/pkg/scheduler/constraint"
	"github.com/paiban/nurseshift/pkg/scheduler/resolver"
	"github.com/paiban/nurseshift/pkg/stats"
	"github.com/paiban/nurseshift/pkg/validator"
)

// Monthly 月度统计
type Monthly struct {
	DepartmentID uuid.UUID              `json:"departmentId"`
	Month        model.Month            `json:"month"`
	WorkingDays  int                    `json:"workingDays"`
	Fairness     *stats.FairnessMetrics `json:"fairness"`
	Coverage     *stats.CoverageMetrics `json:"coverage"`
}

// Audit 排班审计结果
type Audit struct {
	DepartmentID uuid.UUID            `json:"departmentId"`
	Month        model.Month          `json:"month"`
	Checked      int                  `json:"checked"`
	Conflicts    []validator.Conflict `json:"conflicts"`
}

// Service 统计服务
type Service struct {
	resolver *resolver.Resolver
	fairness *stats.FairnessAnalyzer
	coverage *stats.CoverageAnalyzer
	detector *validator.ConflictDetector
}

// New 创建统计服务
func New(r *resolver.Resolver) *Service {
	return &Service{
		resolver: r,
		fairness: stats.NewFairnessAnalyzer(),
		coverage: stats.NewCoverageAnalyzer(),
		detector: validator.NewConflictDetector(r.Manager()),
	}
}

func (s *Service) load(ctx context.Context, departmentID uuid.UUID, month string) (*constraint.Context, model.Month, error) {
	if departmentID == uuid.Nil {
		return nil, "", apperrors.InvalidInput("departmentId", "จำเป็นต้องระบุแผนก")
	}
	m, err := model.ParseMonth(month)
	if err != nil {
		return nil, "", apperrors.InvalidInput("month", "รูปแบบต้องเป็น YYYY-MM")
	}
	sc, err := s.resolver.Load(ctx, departmentID, m, model.DateRange{Start: m.First(), End: m.Last()})
	if err != nil {
		return nil, "", err
	}
	return sc, m, nil
}

// MonthlyStats 计算公平性与覆盖率
func (s *Service) MonthlyStats(ctx context.Context, departmentID uuid.UUID, month string) (*Monthly, error) {
	sc, m, err := s.load(ctx, departmentID, month)
	if err != nil {
		return nil, err
	}
	span := model.DateRange{Start: m.First(), End: m.Last()}
	days, err := sc.Calendar.WorkingDays(span)
	if err != nil {
		return nil, apperrors.InvalidInput("month", err.Error())
	}

	var active []*model.Shift
	shiftMap := make(map[uuid.UUID]*model.Shift)
	for _, sh := range sc.Shifts() {
		shiftMap[sh.ID] = sh
		if sh.IsActive {
			active = append(active, sh)
		}
	}
	var assignments []*model.Assignment
	for _, a := range sc.Assignments() {
		if span.Contains(a.Date) {
			assignments = append(assignments, a)
		}
	}

	result := &Monthly{
		DepartmentID: departmentID,
		Month:        m,
		WorkingDays:  len(days),
		Fairness:     s.fairness.Analyze(sc.Staff(), shiftMap, assignments),
		Coverage:     s.coverage.Analyze(active, days, assignments),
	}
	logger.WithContext(ctx).Debug().
		Str("department_id", departmentID.String()).
		Str("month", m.String()).
		Int("assignments", len(assignments)).
		Float64("coverage", result.Coverage.OverallCoverage).
		Msg("月度统计完成")
	return result, nil
}

// Conflicts 审计当月有效排班
func (s *Service) Conflicts(ctx context.Context, departmentID uuid.UUID, month string) (*Audit, error) {
	sc, m, err := s.load(ctx, departmentID, month)
	if err != nil {
		return nil, err
	}
	span := model.DateRange{Start: m.First(), End: m.Last()}
	checked := 0
	for _, a := range sc.Assignments() {
		if span.Contains(a.Date) {
			checked++
		}
	}
	conflicts := s.detector.DetectAll(sc, span)
	if conflicts == nil {
		conflicts = []validator.Conflict{}
	}
	if len(conflicts) > 0 {
		logger.WithContext(ctx).Warn().
			Str("department_id", departmentID.String()).
			Str("month", m.String()).
			Int("conflicts", len(conflicts)).
			Msg("排班审计发现冲突")
	}
	return &Audit{DepartmentID: departmentID, Month: m, Checked: checked, Conflicts: conflicts}, nil
}
