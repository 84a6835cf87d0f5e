// Package constraint 定义排班资格约束与排班上下文
package constraint

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/paiban/nurseshift/pkg/model"
)

// Reason 不可排原因
type Reason string

const (
	ReasonInactiveStaff          Reason = "inactive-staff"
	ReasonNonWorkingDay          Reason = "non-working-day"
	ReasonOnLeave                Reason = "on-leave"
	ReasonOverlap                Reason = "overlap"
	ReasonMaxConsecutiveShifts   Reason = "max-consecutive-shifts"
	ReasonMaxConsecutiveNights   Reason = "max-consecutive-night-shifts"
	ReasonMaxConsecutiveWorkTime Reason = "max-consecutive-work-hours"
)

// Constraint 硬约束，按注册顺序短路评估
type Constraint interface {
	// Name 返回约束名称
	Name() string

	// Reason 不满足时返回的原因
	Reason() Reason

	// Allows 候选分配是否满足约束
	Allows(ctx *Context, c *Candidate) bool
}

// Candidate 待检查的候选分配
type Candidate struct {
	Staff  *model.Staff
	Shift  *model.Shift
	Date   model.Date
	Window model.TimeWindow
}

// NewCandidate 创建候选分配并计算绝对时间窗口
func NewCandidate(staff *model.Staff, shift *model.Shift, date model.Date) (*Candidate, error) {
	w, err := shift.Window(date)
	if err != nil {
		return nil, fmt.Errorf("班次 %s 时间无效: %w", shift.ID, err)
	}
	return &Candidate{Staff: staff, Shift: shift, Date: date, Window: w}, nil
}

// Assignment 将候选转换为排班记录
func (c *Candidate) Assignment() *model.Assignment {
	return model.NewAssignment(c.Shift.DepartmentID, c.Staff.ID, c.Shift.ID, c.Date, c.Staff.EffectiveRole())
}

// Verdict 资格检查结果
type Verdict struct {
	Eligible bool   `json:"eligible"`
	Reason   Reason `json:"reason,omitempty"`
}

// Eligible 通过
func Eligible() Verdict {
	return Verdict{Eligible: true}
}

// Rejected 未通过
func Rejected(r Reason) Verdict {
	return Verdict{Eligible: false, Reason: r}
}

type slotKey struct {
	date    model.Date
	shiftID uuid.UUID
}
