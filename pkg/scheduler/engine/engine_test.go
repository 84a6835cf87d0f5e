package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiban/nurseshift/internal/memstore"
	apperrors "github.com/paiban/nurseshift/pkg/errors"
	"github.com/paiban/nurseshift/pkg/lock"
	"github.com/paiban/nurseshift/pkg/model"
	"github.com/paiban/nurseshift/pkg/priority"
	"github.com/paiban/nurseshift/pkg/scheduler"
	"github.com/paiban/nurseshift/pkg/scheduler/optimizer"
	"github.com/paiban/nurseshift/pkg/scheduler/resolver"
	"github.com/paiban/nurseshift/pkg/scheduler/solver"
	"github.com/paiban/nurseshift/pkg/scheduler/testutil"
	"github.com/paiban/nurseshift/pkg/store"
)

type fixture struct {
	store      *memstore.Store
	engine     *Engine
	locker     *lock.LocalLocker
	dept       uuid.UUID
	morning    *model.Shift
	nurses     []*model.Staff
	assistants []*model.Staff
}

func newFixture(t *testing.T, nurses, assistants int, cfg Config) *fixture {
	t.Helper()
	s := memstore.New()
	dept := &model.Department{BaseModel: model.NewBaseModel(), Name: "ศัลยกรรม", IsActive: true}
	s.PutDepartment(dept)

	f := &fixture{store: s, dept: dept.ID, locker: lock.NewLocalLocker()}
	for i := 0; i < nurses; i++ {
		st := testutil.NewStaff(dept.ID, fmt.Sprintf("engine-nurse-%02d", i), model.RoleNurse)
		s.PutStaff(st)
		f.nurses = append(f.nurses, st)
	}
	for i := 0; i < assistants; i++ {
		st := testutil.NewStaff(dept.ID, fmt.Sprintf("engine-asst-%02d", i), model.RoleAssistant)
		s.PutStaff(st)
		f.assistants = append(f.assistants, st)
	}
	f.morning = testutil.NewShift(dept.ID, "เวรเช้า", "07:00", "15:00", 2, 1)
	s.PutShift(f.morning)

	annealing := optimizer.DefaultConfig()
	annealing.MaxIterations = 150
	annealing.Islands = 1
	annealing.Seed = 7

	res := resolver.New(s, priority.NewRegistry(s, s), nil)
	f.engine = New(s, res, f.locker, cfg, solver.NewGreedySolver(), optimizer.NewAnnealingSolver(annealing))
	return f
}

func (f *fixture) seed(t *testing.T, staff *model.Staff, date model.Date) {
	t.Helper()
	a := model.NewAssignment(f.dept, staff.ID, f.morning.ID, date, staff.EffectiveRole())
	require.NoError(t, f.store.CreateAssignment(context.Background(), a))
}

func (f *fixture) active(t *testing.T, from, to model.Date) []*model.Assignment {
	t.Helper()
	list, err := f.store.ListAssignments(context.Background(), store.AssignmentFilter{
		DepartmentID: f.dept, From: from, To: to, ActiveOnly: true,
	})
	require.NoError(t, err)
	return list
}

func oneDay(dept uuid.UUID) Request {
	return Request{DepartmentID: dept, Month: "2024-03", From: "2024-03-15", To: "2024-03-15"}
}

func TestEngine_OneDayPicksLowestCounts(t *testing.T) {
	f := newFixture(t, 3, 2, Config{})
	f.seed(t, f.nurses[0], "2024-03-01")
	f.seed(t, f.nurses[0], "2024-03-05")
	f.seed(t, f.nurses[1], "2024-03-05")

	res, err := f.engine.Generate(context.Background(), oneDay(f.dept))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Inserted)
	assert.Empty(t, res.Shortfalls)
	assert.Equal(t, scheduler.StrategyGreedy, res.Strategy)

	got := map[uuid.UUID]model.Role{}
	for _, a := range f.active(t, "2024-03-15", "2024-03-15") {
		got[a.StaffID] = a.Role
	}
	assert.Len(t, got, 3)
	assert.Equal(t, model.RoleNurse, got[f.nurses[1].ID])
	assert.Equal(t, model.RoleNurse, got[f.nurses[2].ID])
	assert.NotContains(t, got, f.nurses[0].ID)
}

func TestEngine_SecondRunDoesNotDoubleBook(t *testing.T) {
	f := newFixture(t, 3, 2, Config{})
	ctx := context.Background()

	first, err := f.engine.Generate(ctx, oneDay(f.dept))
	require.NoError(t, err)
	require.Equal(t, 3, first.Inserted)

	second, err := f.engine.Generate(ctx, oneDay(f.dept))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeAlreadyGenerated))
	assert.Equal(t, 0, second.Inserted)
	assert.Len(t, f.active(t, "2024-03-15", "2024-03-15"), 3)
}

func TestEngine_ReplaceCancelsExisting(t *testing.T) {
	f := newFixture(t, 3, 2, Config{})
	ctx := context.Background()

	_, err := f.engine.Generate(ctx, oneDay(f.dept))
	require.NoError(t, err)

	req := oneDay(f.dept)
	req.Replace = true
	res, err := f.engine.Generate(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Replaced)
	assert.Equal(t, 3, res.Inserted)
	assert.Len(t, f.active(t, "2024-03-15", "2024-03-15"), 3)
}

func TestEngine_ConcurrentRunFailsFast(t *testing.T) {
	f := newFixture(t, 3, 2, Config{})
	ctx := context.Background()

	release, err := f.locker.TryLock(ctx, lock.GenerationKey(f.dept, "2024-03"), time.Minute)
	require.NoError(t, err)
	defer release(ctx)

	_, err = f.engine.Generate(ctx, oneDay(f.dept))
	assert.True(t, apperrors.Is(err, apperrors.CodeGenerationInProgress))
	assert.Empty(t, f.active(t, "2024-03-01", "2024-03-31"))
}

func TestEngine_WaitsForRosterWrites(t *testing.T) {
	f := newFixture(t, 3, 2, Config{LockWait: 30 * time.Millisecond})
	ctx := context.Background()

	release, err := f.locker.TryLock(ctx, lock.RosterKey(f.dept), time.Minute)
	require.NoError(t, err)

	_, err = f.engine.Generate(ctx, oneDay(f.dept))
	assert.True(t, apperrors.Is(err, apperrors.CodeShiftBusy))
	assert.Empty(t, f.active(t, "2024-03-01", "2024-03-31"))

	held, err := f.locker.Held(ctx, lock.GenerationKey(f.dept, "2024-03"))
	require.NoError(t, err)
	assert.False(t, held, "失败后释放生成锁")

	require.NoError(t, release(ctx))
	res, err := f.engine.Generate(ctx, oneDay(f.dept))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Inserted)
}

func TestEngine_ParallelCallsNeverDoubleBook(t *testing.T) {
	f := newFixture(t, 3, 2, Config{})

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.engine.Generate(context.Background(), oneDay(f.dept))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		code := apperrors.GetCode(err)
		assert.Contains(t, []apperrors.Code{apperrors.CodeGenerationInProgress, apperrors.CodeAlreadyGenerated}, code)
	}
	assert.Equal(t, 1, succeeded)
	assert.Len(t, f.active(t, "2024-03-15", "2024-03-15"), 3)
}

func TestEngine_PersistenceErrorReturnsPartialCount(t *testing.T) {
	f := newFixture(t, 3, 2, Config{})
	calls := 0
	f.store.CreateHook = func(*model.Assignment) error {
		calls++
		if calls > 2 {
			return errors.New("connection reset")
		}
		return nil
	}

	res, err := f.engine.Generate(context.Background(), oneDay(f.dept))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodePersistence))
	require.NotNil(t, res)
	assert.Equal(t, 2, res.Inserted)
	assert.True(t, res.Partial)
	assert.Len(t, f.active(t, "2024-03-15", "2024-03-15"), 2)
}

func TestEngine_TimeoutAbortsRun(t *testing.T) {
	f := newFixture(t, 3, 2, Config{Timeout: time.Nanosecond})

	res, err := f.engine.Generate(context.Background(), oneDay(f.dept))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeTimeout))
	require.NotNil(t, res)
	assert.True(t, res.Partial)
	assert.Equal(t, 0, res.Inserted)
}

func TestEngine_ShortfallIsNotAnError(t *testing.T) {
	f := newFixture(t, 1, 0, Config{})

	res, err := f.engine.Generate(context.Background(), oneDay(f.dept))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	require.Len(t, res.Shortfalls, 2)
	assert.Equal(t, model.RoleNurse, res.Shortfalls[0].Role)
	assert.Equal(t, 1, res.Shortfalls[0].Missing())
}

func TestEngine_AnnealingWeekHasNoOverlaps(t *testing.T) {
	f := newFixture(t, 6, 3, Config{})
	night := testutil.NewShift(f.dept, "เวรดึก", "23:00", "07:00", 1, 1)
	f.store.PutShift(night)

	req := Request{DepartmentID: f.dept, Month: "2024-03", From: "2024-03-04", To: "2024-03-10", Strategy: scheduler.StrategyAnnealing}
	res, err := f.engine.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, scheduler.StrategyAnnealing, res.Strategy)
	assert.Positive(t, res.Inserted)

	list := f.active(t, "2024-03-01", "2024-03-31")
	assert.Len(t, list, res.Inserted)
	shifts := map[uuid.UUID]*model.Shift{f.morning.ID: f.morning, night.ID: night}
	for i, a := range list {
		wa, err := shifts[a.ShiftID].Window(a.Date)
		require.NoError(t, err)
		for _, b := range list[i+1:] {
			if a.StaffID != b.StaffID {
				continue
			}
			wb, err := shifts[b.ShiftID].Window(b.Date)
			require.NoError(t, err)
			assert.False(t, wa.Overlaps(wb), "%s %s 与 %s 重叠", a.StaffID, a.Date, b.Date)
		}
	}
}

func TestEngine_InvalidRequests(t *testing.T) {
	f := newFixture(t, 1, 1, Config{})
	ctx := context.Background()

	tests := []struct {
		name string
		req  Request
		code apperrors.Code
	}{
		{"缺少科室", Request{Month: "2024-03"}, apperrors.CodeInvalidInput},
		{"月份格式错误", Request{DepartmentID: f.dept, Month: "2024/03"}, apperrors.CodeInvalidInput},
		{"日期超出月份", Request{DepartmentID: f.dept, Month: "2024-03", From: "2024-04-01"}, apperrors.CodeInvalidInput},
		{"结束早于开始", Request{DepartmentID: f.dept, Month: "2024-03", From: "2024-03-10", To: "2024-03-09"}, apperrors.CodeInvalidInput},
		{"未知策略", Request{DepartmentID: f.dept, Month: "2024-03", Strategy: "magic"}, apperrors.CodeInvalidInput},
		{"未知科室", Request{DepartmentID: uuid.New(), Month: "2024-03"}, apperrors.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.Generate(ctx, tt.req)
			assert.Equal(t, tt.code, apperrors.GetCode(err))
		})
	}
}

type recordingObserver struct {
	strategy scheduler.Strategy
	inserted int
	err      error
}

func (o *recordingObserver) GenerationFinished(s scheduler.Strategy, r *Result, err error) {
	o.strategy, o.inserted, o.err = s, r.Inserted, err
}

func TestEngine_Observer(t *testing.T) {
	f := newFixture(t, 3, 2, Config{})
	obs := &recordingObserver{}
	f.engine.SetObserver(obs)

	_, err := f.engine.Generate(context.Background(), oneDay(f.dept))
	require.NoError(t, err)
	assert.Equal(t, scheduler.StrategyGreedy, obs.strategy)
	assert.Equal(t, 3, obs.inserted)
	assert.NoError(t, obs.err)
	assert.Equal(t, []scheduler.Strategy{scheduler.StrategyGreedy, scheduler.StrategyAnnealing}, f.engine.Strategies())
}
