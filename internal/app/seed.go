package app

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/paiban/nurseshift/internal/memstore"
	"github.com/paiban/nurseshift/pkg/model"
)

// DemoDepartmentID 演示科室，ID 固定便于本地调试
var DemoDepartmentID = uuid.MustParse("6f1c2a9e-3b7d-4c1a-9e55-0d2b7a4c8f10")

// SeedDemo 向内存存储写入演示科室：周一至周六上班、三个班次、8 名护士和 4 名助理
func SeedDemo(s *memstore.Store) uuid.UUID {
	dept := &model.Department{
		BaseModel:     model.NewBaseModel(),
		Name:          "หอผู้ป่วยอายุรกรรม",
		MaxNurses:     8,
		MaxAssistants: 4,
		IsActive:      true,
	}
	dept.ID = DemoDepartmentID
	s.PutDepartment(dept)

	days := make([]model.WorkingDay, 0, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		days = append(days, model.WorkingDay{DepartmentID: dept.ID, DayOfWeek: d, IsWorkingDay: d != time.Sunday})
	}
	s.SetWorkingDays(dept.ID, days)

	for _, sh := range []struct {
		name, start, end   string
		nurses, assistants int
	}{
		{"เวรเช้า", "07:00", "15:00", 2, 1},
		{"เวรบ่าย", "15:00", "23:00", 2, 1},
		{"เวรดึก", "23:00", "07:00", 1, 0},
	} {
		s.PutShift(&model.Shift{
			BaseModel:          demoBase("shift/" + sh.name),
			DepartmentID:       dept.ID,
			Name:               sh.name,
			StartTime:          sh.start,
			EndTime:            sh.end,
			RequiredNurses:     sh.nurses,
			RequiredAssistants: sh.assistants,
			IsActive:           true,
		})
	}

	add := func(prefix string, n int, role model.Role) {
		for i := 1; i <= n; i++ {
			name := fmt.Sprintf("%s %02d", prefix, i)
			s.PutStaff(&model.Staff{
				BaseModel:    demoBase("staff/" + name),
				DepartmentID: dept.ID,
				Name:         name,
				Role:         role,
				IsActive:     true,
			})
		}
	}
	add("พยาบาล", dept.MaxNurses, model.RoleNurse)
	add("ผู้ช่วย", dept.MaxAssistants, model.RoleAssistant)
	return dept.ID
}

func demoBase(key string) model.BaseModel {
	b := model.NewBaseModel()
	b.ID = uuid.NewSHA1(DemoDepartmentID, []byte(key))
	return b
}
