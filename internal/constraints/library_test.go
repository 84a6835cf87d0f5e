package constraints

import (
	"testing"

	"github.com/paiban/nurseshift/pkg/model"
	"github.com/paiban/nurseshift/pkg/scheduler/constraint"
	"github.com/paiban/nurseshift/pkg/scheduler/constraint/builtin"
)

func TestGetLibrary_FollowsCheckOrder(t *testing.T) {
	reasons := builtin.NewManager().Reasons()
	lib := GetLibrary(reasons)

	if len(lib) != len(reasons)+2 {
		t.Fatalf("expected %d definitions, got %d", len(reasons)+2, len(lib))
	}
	for i, r := range reasons {
		d := lib[i]
		if d.Reason != r || d.Order != i+1 || d.Type != TypeHard {
			t.Errorf("#%d: got %+v, want reason %s", i, d, r)
		}
		if d.Description == "" {
			t.Errorf("%s 缺少说明", r)
		}
	}
	for _, d := range lib[len(reasons):] {
		if d.Type != TypeSoft || d.Param == nil {
			t.Errorf("均衡规则应带参数: %+v", d)
		}
	}
}

func TestGetLibrary_Params(t *testing.T) {
	tests := []struct {
		reason  constraint.Reason
		setting model.SettingType
		max     int
	}{
		{constraint.ReasonMaxConsecutiveShifts, model.SettingMaxConsecutiveShifts, 10},
		{constraint.ReasonMaxConsecutiveNights, model.SettingMaxConsecutiveNightShifts, 5},
		{constraint.ReasonMaxConsecutiveWorkTime, model.SettingMaxConsecutiveWorkHours, 72},
	}
	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			d := GetLibrary([]constraint.Reason{tt.reason})[0]
			if d.Param == nil {
				t.Fatal("缺少参数")
			}
			if d.Param.Setting != tt.setting || d.Param.Max != tt.max {
				t.Errorf("got %+v", d.Param)
			}
		})
	}

	if d := GetLibrary([]constraint.Reason{constraint.ReasonOverlap})[0]; d.Param != nil {
		t.Errorf("overlap 不应带参数: %+v", d.Param)
	}
}

func TestGetLibrary_UnknownReason(t *testing.T) {
	d := GetLibrary([]constraint.Reason{"custom"})[0]
	if d.Name != "custom" || d.Type != TypeHard {
		t.Errorf("got %+v", d)
	}
}
