// Package engine 编排一次自动排班运行：加锁、前置检查、加载上下文、执行策略、逐条落库
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/paiban/nurseshift/pkg/errors"
	"github.com/paiban/nurseshift/pkg/lock"
	"github.com/paiban/nurseshift/pkg/logger"
	"github.com/paiban/nurseshift/pkg/model"
	"github.com/paiban/nurseshift/pkg/scheduler"
	"github.com/paiban/nurseshift/pkg/scheduler/constraint"
	"github.com/paiban/nurseshift/pkg/scheduler/resolver"
	"github.com/paiban/nurseshift/pkg/store"
)

// Config 引擎配置
type Config struct {
	Timeout  time.Duration // 单次生成超时，0 表示只受调用方 ctx 约束
	LockTTL  time.Duration // 生成锁有效期
	LockWait time.Duration // 等待人工调整释放科室写锁的时间
	Strategy scheduler.Strategy
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		Timeout:  2 * time.Minute,
		LockTTL:  5 * time.Minute,
		LockWait: 5 * time.Second,
		Strategy: scheduler.StrategyGreedy,
	}
}

// Request 生成请求
type Request struct {
	DepartmentID uuid.UUID
	Month        model.Month
	From         model.Date // 可选，默认当月第一天
	To           model.Date // 可选，默认当月最后一天
	Replace      bool       // 先取消窗口内已有排班
	Strategy     scheduler.Strategy
}

// Result 生成结果
type Result struct {
	Strategy   scheduler.Strategy `json:"strategy"`
	Inserted   int                `json:"inserted"`
	Skipped    int                `json:"skipped,omitempty"`
	Replaced   int                `json:"replaced,omitempty"`
	Shortfalls []model.Shortfall  `json:"shortfalls"`
	Partial    bool               `json:"partial,omitempty"`
	Duration   time.Duration      `json:"-"`
	DurationMs int64              `json:"durationMs"`
}

// Observer 生成结束回调，用于指标采集
type Observer interface {
	GenerationFinished(strategy scheduler.Strategy, result *Result, err error)
}

// Engine 自动排班引擎
type Engine struct {
	store      store.Store
	resolver   *resolver.Resolver
	locker     lock.Locker
	generators map[scheduler.Strategy]scheduler.Generator
	observer   Observer
	config     Config
}

// New 创建引擎；locker 为空时使用进程内锁
func New(s store.Store, r *resolver.Resolver, locker lock.Locker, cfg Config, generators ...scheduler.Generator) *Engine {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultConfig().LockTTL
	}
	if cfg.LockWait <= 0 {
		cfg.LockWait = DefaultConfig().LockWait
	}
	if cfg.Strategy == "" {
		cfg.Strategy = scheduler.StrategyGreedy
	}
	e := &Engine{
		store:      s,
		resolver:   r,
		locker:     locker,
		generators: make(map[scheduler.Strategy]scheduler.Generator, len(generators)),
		config:     cfg,
	}
	for _, g := range generators {
		e.generators[g.Name()] = g
	}
	return e
}

// SetObserver 设置回调
func (e *Engine) SetObserver(o Observer) {
	e.observer = o
}

// Locker 返回引擎使用的锁，人工调整需要检查生成锁
func (e *Engine) Locker() lock.Locker {
	return e.locker
}

// Strategies 已注册的策略
func (e *Engine) Strategies() []scheduler.Strategy {
	out := make([]scheduler.Strategy, 0, len(e.generators))
	for _, s := range []scheduler.Strategy{scheduler.StrategyGreedy, scheduler.StrategyAnnealing} {
		if _, ok := e.generators[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

// window 校验请求并返回目标日期范围
func (e *Engine) window(req *Request) (model.DateRange, error) {
	if req.DepartmentID == uuid.Nil {
		return model.DateRange{}, apperrors.InvalidInput("departmentId", "ต้องระบุแผนก")
	}
	month, err := model.ParseMonth(string(req.Month))
	if err != nil {
		return model.DateRange{}, apperrors.InvalidInput("month", "รูปแบบต้องเป็น YYYY-MM")
	}
	req.Month = month

	r := model.DateRange{Start: month.First(), End: month.Last()}
	if req.From != "" {
		if _, err := model.ParseDate(string(req.From)); err != nil {
			return model.DateRange{}, apperrors.InvalidInput("from", "รูปแบบต้องเป็น YYYY-MM-DD")
		}
		r.Start = req.From
	}
	if req.To != "" {
		if _, err := model.ParseDate(string(req.To)); err != nil {
			return model.DateRange{}, apperrors.InvalidInput("to", "รูปแบบต้องเป็น YYYY-MM-DD")
		}
		r.End = req.To
	}
	if !month.Contains(r.Start) || !month.Contains(r.End) {
		return model.DateRange{}, apperrors.InvalidInput("from", "ช่วงวันที่ต้องอยู่ในเดือนที่เลือก")
	}
	if r.End < r.Start {
		return model.DateRange{}, apperrors.InvalidInput("to", "วันที่สิ้นสุดต้องไม่น้อยกว่าวันที่เริ่มต้น")
	}
	return r, nil
}

// Generate 为科室月份生成排班
//
// 同一科室月份同时只允许一个生成任务。超时或存储失败时返回已插入的部分结果与错误。
func (e *Engine) Generate(ctx context.Context, req Request) (result *Result, err error) {
	start := time.Now()
	if req.Strategy == "" {
		req.Strategy = e.config.Strategy
	}
	result = &Result{Strategy: req.Strategy, Shortfalls: []model.Shortfall{}}

	gen, ok := e.generators[req.Strategy]
	if !ok {
		return nil, apperrors.InvalidInput("strategy", fmt.Sprintf("ไม่รู้จักวิธีจัดเวร %q", req.Strategy))
	}
	span, err := e.window(&req)
	if err != nil {
		return nil, err
	}
	dept, err := e.store.GetDepartment(ctx, req.DepartmentID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if dept == nil {
		return nil, apperrors.NotFound("แผนก", req.DepartmentID.String())
	}

	key := lock.GenerationKey(req.DepartmentID, req.Month.String())
	release, err := e.locker.TryLock(ctx, key, e.config.LockTTL)
	if errors.Is(err, lock.ErrLocked) {
		return nil, apperrors.GenerationInProgress(req.DepartmentID.String(), req.Month.String())
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "ไม่สามารถล็อกการจัดเวรได้")
	}
	defer unlock(release, key)

	// 人工调整可能正在写入，等其完成后再读取上下文
	rosterKey := lock.RosterKey(req.DepartmentID)
	releaseRoster, err := lock.Acquire(ctx, e.locker, rosterKey, e.config.LockTTL, e.config.LockWait)
	if errors.Is(err, lock.ErrLocked) {
		return nil, apperrors.RosterBusy(req.DepartmentID.String())
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "ไม่สามารถล็อกตารางเวรของแผนกได้")
	}
	defer unlock(releaseRoster, rosterKey)

	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}

	slog := logger.NewSchedulerLogger(ctx)
	defer func() {
		result.Duration = time.Since(start)
		result.DurationMs = result.Duration.Milliseconds()
		slog.GenerateComplete(req.DepartmentID.String(), req.Month.String(), result.Inserted, result.Duration, err)
		if e.observer != nil {
			e.observer.GenerationFinished(req.Strategy, result, err)
		}
	}()

	existing, err := e.store.CountActive(ctx, req.DepartmentID, span)
	if err != nil {
		return result, apperrors.Database(err)
	}
	if existing > 0 {
		if !req.Replace {
			return result, apperrors.AlreadyGenerated(req.DepartmentID.String(), req.Month.String(), existing)
		}
		n, err := e.store.CancelRange(ctx, req.DepartmentID, span)
		if err != nil {
			return result, apperrors.Persistence(err, "cancel existing assignments")
		}
		result.Replaced = n
	}

	sc, err := e.resolver.Load(ctx, req.DepartmentID, req.Month, span)
	if err != nil {
		return result, err
	}
	days, err := sc.Calendar.WorkingDays(span)
	if err != nil {
		return result, apperrors.Wrap(err, apperrors.CodeInternal, "คำนวณวันทำงานไม่สำเร็จ")
	}
	plan := &scheduler.Plan{
		Context: sc,
		Checks:  e.resolver.Manager(),
		Days:    days,
		Shifts:  activeShifts(sc),
	}
	slog.StartGenerate(req.DepartmentID.String(), req.Month.String(), string(req.Strategy), len(sc.Staff()), len(plan.Days))

	sink := &persistSink{store: e.store, context: sc, result: result, log: slog}
	if err := gen.Generate(ctx, plan, sink); err != nil {
		return result, e.classify(ctx, err, result)
	}
	return result, nil
}

func unlock(release lock.Release, key string) {
	if err := release(context.Background()); err != nil {
		logger.WithError(err).Str("key", key).Msg("释放锁失败")
	}
}

// classify 将策略返回的错误转换为对外错误
func (e *Engine) classify(ctx context.Context, err error, result *Result) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		result.Partial = true
		return appErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		result.Partial = true
		return apperrors.Wrap(err, apperrors.CodeTimeout, "การจัดเวรใช้เวลานานเกินกำหนด").
			WithField("inserted", result.Inserted)
	}
	if errors.Is(err, context.Canceled) {
		result.Partial = true
		return apperrors.Wrap(err, apperrors.CodeTimeout, "การจัดเวรถูกยกเลิก").
			WithField("inserted", result.Inserted)
	}
	return apperrors.Wrap(err, apperrors.CodeInternal, "การจัดเวรล้มเหลว")
}

// activeShifts 启用班次，按开始时间排序
func activeShifts(sc *constraint.Context) []*model.Shift {
	out := make([]*model.Shift, 0, len(sc.Shifts()))
	for _, s := range sc.Shifts() {
		if s.IsActive {
			out = append(out, s)
		}
	}
	scheduler.SortShifts(out)
	return out
}

// persistSink 每条排班立即落库，成功后计入上下文
type persistSink struct {
	store   store.AssignmentStore
	context *constraint.Context
	result  *Result
	log     *logger.SchedulerLogger
}

// Commit 实现 scheduler.Sink
func (s *persistSink) Commit(ctx context.Context, a *model.Assignment) error {
	err := s.store.CreateAssignment(ctx, a)
	switch {
	case errors.Is(err, store.ErrDuplicate):
		// 其他请求已插入同一条，占用情况与库中一致
		s.context.AddAssignment(a)
		s.result.Skipped++
		return nil
	case err != nil:
		return apperrors.Persistence(err, "create assignment").
			WithField("inserted", s.result.Inserted)
	}
	s.context.AddAssignment(a)
	s.result.Inserted++
	return nil
}

// Shortfall 实现 scheduler.Sink
func (s *persistSink) Shortfall(sf model.Shortfall) {
	s.result.Shortfalls = append(s.result.Shortfalls, sf)
	s.log.Shortfall(sf.Date.String(), sf.ShiftID.String(), string(sf.Role), sf.Required, sf.Assigned)
}
