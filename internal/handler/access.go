package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/paiban/nurseshift/internal/middleware"
	apperrors "github.com/paiban/nurseshift/pkg/errors"
)

// authorize 当前主体须可管理目标科室；科室经理只能修改本科室
func (h *Handler) authorize(c *gin.Context, departmentID uuid.UUID) bool {
	p, found := middleware.Principal(c)
	if !found {
		fail(c, apperrors.Unauthorized("ไม่ได้เข้าสู่ระบบ"))
		return false
	}
	if !p.CanManage(departmentID) {
		fail(c, apperrors.Forbidden(departmentID.String()))
		return false
	}
	return true
}

// authorizeAssignment 按排班所属科室鉴权
func (h *Handler) authorizeAssignment(c *gin.Context, id uuid.UUID) bool {
	a, err := h.Override.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return false
	}
	return h.authorize(c, a.DepartmentID)
}

// authorizeShift 按班次所属科室鉴权
func (h *Handler) authorizeShift(c *gin.Context, id uuid.UUID) bool {
	sh, err := h.Store.GetShift(c.Request.Context(), id)
	if err != nil {
		fail(c, apperrors.Database(err))
		return false
	}
	if sh == nil {
		fail(c, apperrors.NotFound("เวร", id.String()))
		return false
	}
	return h.authorize(c, sh.DepartmentID)
}

// authorizePriority 按优先级所属科室鉴权
func (h *Handler) authorizePriority(c *gin.Context, ids ...uuid.UUID) bool {
	for _, id := range ids {
		p, err := h.Store.GetPriority(c.Request.Context(), id)
		if err != nil {
			fail(c, apperrors.Database(err))
			return false
		}
		if p == nil {
			fail(c, apperrors.NotFound("ลำดับความสำคัญ", id.String()))
			return false
		}
		if !h.authorize(c, p.DepartmentID) {
			return false
		}
	}
	return true
}
