package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/paiban/nurseshift/pkg/calendar"
	apperrors "github.com/paiban/nurseshift/pkg/errors"
	"github.com/paiban/nurseshift/pkg/model"
)

func (h *Handler) department(ctx context.Context, id uuid.UUID) error {
	d, err := h.Store.GetDepartment(ctx, id)
	if err != nil {
		return apperrors.Database(err)
	}
	if d == nil {
		return apperrors.NotFound("แผนก", id.String())
	}
	return nil
}

// calendarMeta 月份每天是否排班、是否假期
func (h *Handler) calendarMeta(c *gin.Context) {
	dept, valid := queryID(c, "departmentId")
	if !valid {
		return
	}
	month, err := model.ParseMonth(c.Query("month"))
	if err != nil {
		fail(c, apperrors.InvalidInput("month", "รูปแบบต้องเป็น YYYY-MM"))
		return
	}
	ctx := c.Request.Context()
	if err := h.department(ctx, dept); err != nil {
		fail(c, err)
		return
	}
	cal, err := calendar.Load(ctx, h.Store, dept, model.DateRange{Start: month.First(), End: month.Last()})
	if err != nil {
		fail(c, apperrors.Database(err))
		return
	}
	ok(c, cal.Meta(month))
}

// listShifts 科室班次配置
func (h *Handler) listShifts(c *gin.Context) {
	dept, valid := queryID(c, "departmentId")
	if !valid {
		return
	}
	ctx := c.Request.Context()
	if err := h.department(ctx, dept); err != nil {
		fail(c, err)
		return
	}
	shifts, err := h.Store.ListShifts(ctx, dept, c.Query("all") != "true")
	if err != nil {
		fail(c, apperrors.Database(err))
		return
	}
	if shifts == nil {
		shifts = []*model.Shift{}
	}
	ok(c, shifts)
}
