package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiban/nurseshift/internal/app"
	"github.com/paiban/nurseshift/internal/auth"
	"github.com/paiban/nurseshift/internal/config"
	"github.com/paiban/nurseshift/pkg/model"
)

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
	Details json.RawMessage `json:"details"`
}

type testServer struct {
	app    *app.App
	router *gin.Engine
	dept   uuid.UUID
	token  string
}

func newTestServer(t *testing.T, authDisabled bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.App.Env = "test"
	cfg.Storage.Driver = "memory"
	cfg.RateLimit.Requests = 0
	cfg.Auth.Disabled = authDisabled
	cfg.Auth.JWTSecret = "handler-test-secret"
	cfg.Scheduler.Annealing.MaxTime = 300 * time.Millisecond
	cfg.Scheduler.Annealing.Seed = 7

	a, err := app.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	return &testServer{app: a, router: a.Handler().Router(), dept: app.DemoDepartmentID}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func (s *testServer) priorities(t *testing.T) []*model.Priority {
	t.Helper()
	w, env := s.do(t, http.MethodGet, "/api/v1/priorities?departmentId="+s.dept.String(), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var list struct {
		Priorities []*model.Priority `json:"priorities"`
		Total      int               `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Equal(t, len(list.Priorities), list.Total)
	return list.Priorities
}

func (s *testServer) morningShift(t *testing.T) *model.Shift {
	t.Helper()
	shifts, err := s.app.Store.ListShifts(context.Background(), s.dept, true)
	require.NoError(t, err)
	for _, sh := range shifts {
		if sh.StartTime == "07:00" {
			return sh
		}
	}
	t.Fatal("演示科室缺少早班")
	return nil
}

func (s *testServer) firstNurse(t *testing.T) *model.Staff {
	t.Helper()
	staff, err := s.app.Store.ListStaff(context.Background(), s.dept)
	require.NoError(t, err)
	for _, st := range staff {
		if st.Role == model.RoleNurse {
			return st
		}
	}
	t.Fatal("演示科室缺少护士")
	return nil
}

func TestHealthAndVersion(t *testing.T) {
	s := newTestServer(t, true)

	w, env := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", env.Status)

	w, env = s.do(t, http.MethodGet, "/version", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"greedy"`)
	assert.Contains(t, string(env.Data), `"annealing"`)
}

func TestPriorities_SeedAndSwap(t *testing.T) {
	s := newTestServer(t, true)

	list := s.priorities(t)
	require.Len(t, list, 6)
	for i, p := range list {
		assert.Equal(t, i+1, p.Order)
	}

	first, second := list[0], list[1]
	w, env := s.do(t, http.MethodPost, "/api/v1/priorities/swap", gin.H{
		"priorityId1": first.ID, "priorityId2": second.ID,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "success", env.Status)

	after := s.priorities(t)
	assert.Equal(t, second.ID, after[0].ID)
	assert.Equal(t, first.ID, after[1].ID)

	// 同一条不能与自身交换
	w, env = s.do(t, http.MethodPost, "/api/v1/priorities/swap", gin.H{
		"priorityId1": first.ID, "priorityId2": first.ID,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "error", env.Status)
}

func TestPrioritySetting_Range(t *testing.T) {
	s := newTestServer(t, true)
	var withSetting *model.Priority
	for _, p := range s.priorities(t) {
		if p.HasSetting() {
			withSetting = p
			break
		}
	}
	require.NotNil(t, withSetting)

	path := "/api/v1/priorities/" + withSetting.ID.String() + "/setting"
	w, _ := s.do(t, http.MethodPut, path, gin.H{"settingValue": 999})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env := s.do(t, http.MethodPut, path, gin.H{"settingValue": 3})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var p model.Priority
	require.NoError(t, json.Unmarshal(env.Data, &p))
	require.NotNil(t, p.SettingValue)
	assert.Equal(t, 3, *p.SettingValue)

	w, env = s.do(t, http.MethodPut, path, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_FAILED", env.Code)
}

func TestCalendarMeta(t *testing.T) {
	s := newTestServer(t, true)

	w, env := s.do(t, http.MethodGet, "/api/v1/calendar-meta?departmentId="+s.dept.String()+"&month=2024-03", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var days []model.CalendarDay
	require.NoError(t, json.Unmarshal(env.Data, &days))
	require.Len(t, days, 31)
	// 2024-03-03 是周日，演示科室周日不上班
	assert.Equal(t, model.Date("2024-03-03"), days[2].Date)
	assert.False(t, days[2].IsWorking)
	assert.True(t, days[3].IsWorking)

	w, env = s.do(t, http.MethodGet, "/api/v1/calendar-meta?departmentId="+s.dept.String()+"&month=2024-13", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "error", env.Status)
}

func TestBadRequests(t *testing.T) {
	s := newTestServer(t, true)

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"科室ID格式错误", http.MethodGet, "/api/v1/priorities?departmentId=abc", http.StatusBadRequest},
		{"缺少科室ID", http.MethodGet, "/api/v1/schedules/shifts", http.StatusBadRequest},
		{"科室不存在", http.MethodGet, "/api/v1/schedules/shifts?departmentId=" + uuid.NewString(), http.StatusNotFound},
		{"排班ID格式错误", http.MethodGet, "/api/v1/schedules/not-a-uuid", http.StatusBadRequest},
		{"排班不存在", http.MethodGet, "/api/v1/schedules/" + uuid.NewString(), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := s.do(t, tt.method, tt.path, nil)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.Equal(t, "error", env.Status)
		})
	}
}

func TestAutoGenerate_RequiresReplaceOnSecondRun(t *testing.T) {
	s := newTestServer(t, true)
	body := gin.H{"departmentId": s.dept, "month": "2024-03", "from": "2024-03-04", "to": "2024-03-09"}

	w, env := s.do(t, http.MethodPost, "/api/v1/schedules/auto-generate", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result struct {
		Strategy string `json:"strategy"`
		Inserted int    `json:"inserted"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, "greedy", result.Strategy)
	assert.Positive(t, result.Inserted)

	w, env = s.do(t, http.MethodPost, "/api/v1/schedules/auto-generate", body)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ALREADY_GENERATED", env.Code)

	body["replace"] = true
	w, env = s.do(t, http.MethodPost, "/api/v1/schedules/auto-generate", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var replaced struct {
		Inserted int `json:"inserted"`
		Replaced int `json:"replaced"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &replaced))
	assert.Equal(t, result.Inserted, replaced.Replaced)

	// 生成结果不应存在重叠
	w, env = s.do(t, http.MethodGet, "/api/v1/schedules/conflicts?departmentId="+s.dept.String()+"&month=2024-03", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotContains(t, string(env.Data), `"type":"overlap"`)

	w, env = s.do(t, http.MethodGet, "/api/v1/schedules/?departmentId="+s.dept.String()+"&month=2024-03", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []*model.Assignment
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, replaced.Inserted)
}

func TestAIGenerate_UsesAnnealing(t *testing.T) {
	s := newTestServer(t, true)
	w, env := s.do(t, http.MethodPost, "/api/v1/schedules/ai-generate", gin.H{
		"departmentId": s.dept, "month": "2024-03", "from": "2024-03-04", "to": "2024-03-05",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, string(env.Data), `"strategy":"annealing"`)
}

func TestCreateAssignment_EligibilityEnforced(t *testing.T) {
	s := newTestServer(t, true)
	nurse, morning := s.firstNurse(t), s.morningShift(t)
	body := gin.H{
		"departmentId": s.dept,
		"userId":       nurse.ID,
		"shiftId":      morning.ID,
		"scheduleDate": "2024-03-04",
	}

	w, env := s.do(t, http.MethodPost, "/api/v1/schedules/", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created model.Assignment
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, model.RoleNurse, created.Role)

	// 同一人同一天同一班次重复排班
	w, env = s.do(t, http.MethodPost, "/api/v1/schedules/", body)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "INELIGIBLE", env.Code)

	// 取消后可再次排入
	w, _ = s.do(t, http.MethodDelete, "/api/v1/schedules/"+created.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w, _ = s.do(t, http.MethodPost, "/api/v1/schedules/", body)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestWriteRoutesRequireManager(t *testing.T) {
	s := newTestServer(t, false)
	body := gin.H{"departmentId": s.dept, "month": "2024-03"}

	w, env := s.do(t, http.MethodPost, "/api/v1/schedules/auto-generate", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", env.Code)

	token, err := s.app.Auth.Issue(auth.Principal{UserID: "nurse-1", Role: auth.RoleStaff, DepartmentID: s.dept.String()})
	require.NoError(t, err)
	s.token = token
	w, _ = s.do(t, http.MethodPost, "/api/v1/schedules/auto-generate", body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// 只读接口对普通人员开放
	w, _ = s.do(t, http.MethodGet, "/api/v1/schedules/shifts?departmentId="+s.dept.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWriteRoutesScopedToDepartment(t *testing.T) {
	s := newTestServer(t, false)
	admin, err := s.app.Auth.Issue(auth.Principal{UserID: "admin-1", Role: auth.RoleAdmin})
	require.NoError(t, err)
	s.token = admin

	nurse, morning := s.firstNurse(t), s.morningShift(t)
	w, env := s.do(t, http.MethodPost, "/api/v1/schedules/", gin.H{
		"departmentId": s.dept, "userId": nurse.ID, "shiftId": morning.ID, "scheduleDate": "2024-03-05",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created model.Assignment
	require.NoError(t, json.Unmarshal(env.Data, &created))
	list := s.priorities(t)

	foreign, err := s.app.Auth.Issue(auth.Principal{UserID: "mgr-x", Role: auth.RoleManager, DepartmentID: uuid.NewString()})
	require.NoError(t, err)
	s.token = foreign

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
	}{
		{"自动排班", http.MethodPost, "/api/v1/schedules/auto-generate", gin.H{"departmentId": s.dept, "month": "2024-03"}},
		{"调整班次", http.MethodPost, "/api/v1/schedules/edit-shift", gin.H{
			"departmentId": s.dept, "date": "2024-03-05", "shiftId": morning.ID, "removeNurses": []uuid.UUID{nurse.ID},
		}},
		{"减员", http.MethodPost, "/api/v1/schedules/reduce-staff", gin.H{"date": "2024-03-05", "shiftId": morning.ID, "nursesToReduce": 1}},
		{"新增排班", http.MethodPost, "/api/v1/schedules/", gin.H{
			"departmentId": s.dept, "userId": nurse.ID, "shiftId": morning.ID, "scheduleDate": "2024-03-06",
		}},
		{"取消排班", http.MethodDelete, "/api/v1/schedules/" + created.ID.String(), nil},
		{"切换状态", http.MethodPatch, "/api/v1/schedules/" + created.ID.String() + "/toggle", nil},
		{"交换优先级", http.MethodPost, "/api/v1/priorities/swap", gin.H{"priorityId1": list[0].ID, "priorityId2": list[1].ID}},
		{"修改设置", http.MethodPut, "/api/v1/priorities/" + list[2].ID.String() + "/setting", gin.H{"settingValue": 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := s.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
			assert.Equal(t, "FORBIDDEN", env.Code)
		})
	}

	// 外科室经理的请求没有写入任何数据
	a, err := s.app.Store.GetAssignment(context.Background(), created.ID)
	require.NoError(t, err)
	assert.True(t, a.IsActive())
	after := s.priorities(t)
	assert.Equal(t, list[0].ID, after[0].ID)

	own, err := s.app.Auth.Issue(auth.Principal{UserID: "mgr-1", Role: auth.RoleManager, DepartmentID: s.dept.String()})
	require.NoError(t, err)
	s.token = own
	w, _ = s.do(t, http.MethodPatch, "/api/v1/schedules/"+created.ID.String()+"/toggle", nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestReplacementsAndTakeOver(t *testing.T) {
	s := newTestServer(t, true)
	nurse, morning := s.firstNurse(t), s.morningShift(t)
	w, env := s.do(t, http.MethodPost, "/api/v1/schedules/", gin.H{
		"departmentId": s.dept, "userId": nurse.ID, "shiftId": morning.ID, "scheduleDate": "2024-03-05",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created model.Assignment
	require.NoError(t, json.Unmarshal(env.Data, &created))
	base := "/api/v1/schedules/" + created.ID.String()

	w, _ = s.do(t, http.MethodGet, base+"/replacements?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = s.do(t, http.MethodGet, base+"/replacements?limit=3", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var candidates []struct {
		StaffID uuid.UUID `json:"staffId"`
		Rank    int       `json:"rank"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &candidates))
	require.Len(t, candidates, 3)
	assert.Equal(t, 1, candidates[0].Rank)
	assert.NotEqual(t, nurse.ID, candidates[0].StaffID)

	w, env = s.do(t, http.MethodPost, base+"/take-over", gin.H{"userId": candidates[0].StaffID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var moved model.Assignment
	require.NoError(t, json.Unmarshal(env.Data, &moved))
	assert.Equal(t, candidates[0].StaffID, moved.StaffID)
	assert.Equal(t, created.ID, moved.ID)
}

func TestConstraintLibrary(t *testing.T) {
	s := newTestServer(t, true)
	w, env := s.do(t, http.MethodGet, "/api/v1/constraints/library", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var lib struct {
		Library []struct {
			Reason string `json:"reason"`
			Type   string `json:"type"`
			Order  int    `json:"order"`
		} `json:"library"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &lib))
	require.NotEmpty(t, lib.Library)
	assert.Equal(t, "inactive-staff", lib.Library[0].Reason)
	assert.Equal(t, 1, lib.Library[0].Order)
	assert.Equal(t, "soft", lib.Library[len(lib.Library)-1].Type)
}
