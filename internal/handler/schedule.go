package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/paiban/nurseshift/pkg/errors"
	"github.com/paiban/nurseshift/pkg/model"
	"github.com/paiban/nurseshift/pkg/override"
	"github.com/paiban/nurseshift/pkg/scheduler"
	"github.com/paiban/nurseshift/pkg/scheduler/engine"
)

// GenerateRequest 自动排班请求
type GenerateRequest struct {
	DepartmentID uuid.UUID  `json:"departmentId" validate:"required"`
	Month        string     `json:"month" validate:"required"`
	From         model.Date `json:"from,omitempty"`
	To           model.Date `json:"to,omitempty"`
	Replace      bool       `json:"replace,omitempty"`
}

type checkOverlapRequest struct {
	DepartmentID uuid.UUID  `json:"departmentId" validate:"required"`
	Date         model.Date `json:"date" validate:"required"`
	ShiftID      uuid.UUID  `json:"shiftId" validate:"required"`
	StaffID      uuid.UUID  `json:"userId" validate:"required"`
}

type availableStaff struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Position string    `json:"position"`
}

func parseDate(c *gin.Context, field string) (model.Date, bool) {
	d, err := model.ParseDate(c.Query(field))
	if err != nil {
		fail(c, apperrors.InvalidInput(field, "รูปแบบต้องเป็น YYYY-MM-DD"))
		return "", false
	}
	return d, true
}

func (h *Handler) listAssignments(c *gin.Context) {
	dept, valid := queryID(c, "departmentId")
	if !valid {
		return
	}
	activeOnly := c.Query("includeCancelled") != "true"
	list, err := h.Override.List(c.Request.Context(), dept, model.Month(c.Query("month")), activeOnly)
	if err != nil {
		fail(c, err)
		return
	}
	if list == nil {
		list = []*model.Assignment{}
	}
	ok(c, list)
}

func (h *Handler) availableStaff(c *gin.Context) {
	dept, valid := queryID(c, "departmentId")
	if !valid {
		return
	}
	shiftID, valid := queryID(c, "shiftId")
	if !valid {
		return
	}
	date, valid := parseDate(c, "date")
	if !valid {
		return
	}
	staff, err := h.Resolver.AvailableStaff(c.Request.Context(), dept, date, shiftID)
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]availableStaff, 0, len(staff))
	for _, s := range staff {
		out = append(out, availableStaff{ID: s.ID, Name: s.Name, Position: s.Position})
	}
	ok(c, out)
}

func (h *Handler) eligibility(c *gin.Context) {
	staffID, valid := queryID(c, "staffId")
	if !valid {
		return
	}
	shiftID, valid := queryID(c, "shiftId")
	if !valid {
		return
	}
	date, valid := parseDate(c, "date")
	if !valid {
		return
	}
	v, err := h.Resolver.IsEligible(c.Request.Context(), staffID, date, shiftID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, v)
}

func (h *Handler) monthlyStats(c *gin.Context) {
	dept, valid := queryID(c, "departmentId")
	if !valid {
		return
	}
	result, err := h.Report.MonthlyStats(c.Request.Context(), dept, c.Query("month"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, result)
}

func (h *Handler) conflicts(c *gin.Context) {
	dept, valid := queryID(c, "departmentId")
	if !valid {
		return
	}
	result, err := h.Report.Conflicts(c.Request.Context(), dept, c.Query("month"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, result)
}

func (h *Handler) getAssignment(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	a, err := h.Override.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, a)
}

func (h *Handler) createAssignment(c *gin.Context) {
	var in override.CreateInput
	if !bind(c, &in) || !h.authorize(c, in.DepartmentID) {
		return
	}
	a, err := h.Override.Create(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, "เพิ่มตารางเวรสำเร็จ", a)
}

func (h *Handler) updateAssignment(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var in override.UpdateInput
	if !bind(c, &in) || !h.authorizeAssignment(c, id) {
		return
	}
	a, err := h.Override.Update(c.Request.Context(), id, in)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "แก้ไขตารางเวรสำเร็จ", a)
}

func (h *Handler) removeAssignment(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	if !h.authorizeAssignment(c, id) {
		return
	}
	if err := h.Override.Remove(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "ยกเลิกตารางเวรสำเร็จ", nil)
}

func (h *Handler) toggleAssignment(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	if !h.authorizeAssignment(c, id) {
		return
	}
	a, err := h.Override.Toggle(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "เปลี่ยนสถานะสำเร็จ", a)
}

func (h *Handler) editShift(c *gin.Context) {
	var in override.EditShiftInput
	if !bind(c, &in) || !h.authorize(c, in.DepartmentID) {
		return
	}
	result, err := h.Override.EditShift(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "แก้ไขเวรสำเร็จ", result)
}

func (h *Handler) checkOverlap(c *gin.Context) {
	var in checkOverlapRequest
	if !bind(c, &in) {
		return
	}
	result, err := h.Override.CheckShiftOverlap(c.Request.Context(), in.DepartmentID, in.Date, in.ShiftID, in.StaffID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, result)
}

func (h *Handler) reduceStaff(c *gin.Context) {
	var in override.ReduceStaffInput
	if !bind(c, &in) || !h.authorizeShift(c, in.ShiftID) {
		return
	}
	result, err := h.Override.ReduceStaff(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "ลดจำนวนบุคลากรสำเร็จ", result)
}

func (h *Handler) autoGenerate(c *gin.Context) {
	h.generate(c, scheduler.StrategyGreedy)
}

func (h *Handler) aiGenerate(c *gin.Context) {
	h.generate(c, scheduler.StrategyAnnealing)
}

// generate 运行自动排班；部分写入的数量由引擎放在错误字段 inserted 中
func (h *Handler) generate(c *gin.Context, strategy scheduler.Strategy) {
	var in GenerateRequest
	if !bind(c, &in) || !h.authorize(c, in.DepartmentID) {
		return
	}
	result, err := h.Engine.Generate(c.Request.Context(), engine.Request{
		DepartmentID: in.DepartmentID,
		Month:        model.Month(in.Month),
		From:         in.From,
		To:           in.To,
		Replace:      in.Replace,
		Strategy:     strategy,
	})
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "จัดตารางเวรอัตโนมัติสำเร็จ", result)
}

type takeOverRequest struct {
	StaffID uuid.UUID `json:"userId" validate:"required"`
}

// replacements 推荐接替人员
func (h *Handler) replacements(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 50 {
			fail(c, apperrors.InvalidInput("limit", "ต้องเป็นตัวเลข 1-50"))
			return
		}
		limit = n
	}
	list, err := h.Override.Replacements(c.Request.Context(), id, limit)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, list)
}

func (h *Handler) takeOver(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var in takeOverRequest
	if !bind(c, &in) || !h.authorizeAssignment(c, id) {
		return
	}
	a, err := h.Override.TakeOver(c.Request.Context(), id, in.StaffID)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "เปลี่ยนผู้รับเวรสำเร็จ", a)
}
