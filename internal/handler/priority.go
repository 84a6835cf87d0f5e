package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/paiban/nurseshift/internal/constraints"
	"github.com/paiban/nurseshift/pkg/priority"
)

type settingRequest struct {
	SettingValue *int `json:"settingValue" validate:"required"`
}

type swapRequest struct {
	PriorityID1 uuid.UUID `json:"priorityId1" validate:"required"`
	PriorityID2 uuid.UUID `json:"priorityId2" validate:"required"`
}

// listPriorities 科室优先级；首次访问时写入默认值
func (h *Handler) listPriorities(c *gin.Context) {
	dept, valid := queryID(c, "departmentId")
	if !valid {
		return
	}
	result, err := h.Registry.List(c.Request.Context(), dept)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, result)
}

func (h *Handler) updatePriority(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var in priority.UpdateInput
	if !bind(c, &in) || !h.authorizePriority(c, id) {
		return
	}
	p, err := h.Registry.Update(c.Request.Context(), id, in)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "อัปเดตลำดับความสำคัญสำเร็จ", p)
}

func (h *Handler) updatePrioritySetting(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var in settingRequest
	if !bind(c, &in) || !h.authorizePriority(c, id) {
		return
	}
	p, err := h.Registry.UpdateSetting(c.Request.Context(), id, *in.SettingValue)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "อัปเดตค่าการตั้งค่าสำเร็จ", p)
}

func (h *Handler) swapPriorities(c *gin.Context) {
	var in swapRequest
	if !bind(c, &in) || !h.authorizePriority(c, in.PriorityID1, in.PriorityID2) {
		return
	}
	if err := h.Registry.Swap(c.Request.Context(), in.PriorityID1, in.PriorityID2); err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "สลับลำดับความสำคัญสำเร็จ", nil)
}

// constraintLibrary 内置资格检查（按检查顺序）与均衡规则
func (h *Handler) constraintLibrary(c *gin.Context) {
	ok(c, constraints.LibraryResponse{Library: constraints.GetLibrary(h.Resolver.Manager().Reasons())})
}
