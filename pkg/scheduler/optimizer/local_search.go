// Package optimizer 提供模拟退火排班策略
//
// 以贪心结果为初始解，在上下文副本上做替换、交换、补位三类移动，
// 每次移动都经过约束管理器检查，因此搜索过程始终保持可行。
package optimizer

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/paiban/nurseshift/pkg/logger"
	"github.com/paiban/nurseshift/pkg/model"
	"github.com/paiban/nurseshift/pkg/scheduler"
	"github.com/paiban/nurseshift/pkg/scheduler/constraint"
	"github.com/paiban/nurseshift/pkg/scheduler/solver"
)

// Config 退火配置
type Config struct {
	MaxIterations    int           `json:"max_iterations" yaml:"max_iterations"`       // 最大迭代次数
	MaxTime          time.Duration `json:"max_time" yaml:"max_time"`                   // 最大运行时间
	InitialTemp      float64       `json:"initial_temp" yaml:"initial_temp"`           // 初始温度
	CoolingRate      float64       `json:"cooling_rate" yaml:"cooling_rate"`           // 冷却速率
	TabuSize         int           `json:"tabu_size" yaml:"tabu_size"`                 // 禁忌表大小
	NeighborhoodSize int           `json:"neighborhood_size" yaml:"neighborhood_size"` // 每轮候选移动数
	Islands          int           `json:"islands" yaml:"islands"`                     // 并行搜索链数
	StopOnPlateau    bool          `json:"stop_on_plateau" yaml:"stop_on_plateau"`     // 平台期停止
	PlateauThreshold int           `json:"plateau_threshold" yaml:"plateau_threshold"` // 无改进迭代次数
	Seed             int64         `json:"seed" yaml:"seed"`                           // 0 表示按时间取种子
}

// DefaultConfig 默认退火配置
func DefaultConfig() Config {
	return Config{
		MaxIterations:    2000,
		MaxTime:          20 * time.Second,
		InitialTemp:      100.0,
		CoolingRate:      0.995,
		TabuSize:         50,
		NeighborhoodSize: 12,
		Islands:          2,
		StopOnPlateau:    true,
		PlateauThreshold: 300,
	}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.MaxIterations <= 0 {
		c.MaxIterations = d.MaxIterations
	}
	if c.MaxTime <= 0 {
		c.MaxTime = d.MaxTime
	}
	if c.InitialTemp <= 0 {
		c.InitialTemp = d.InitialTemp
	}
	if c.CoolingRate <= 0 || c.CoolingRate >= 1 {
		c.CoolingRate = d.CoolingRate
	}
	if c.TabuSize <= 0 {
		c.TabuSize = d.TabuSize
	}
	if c.NeighborhoodSize <= 0 {
		c.NeighborhoodSize = d.NeighborhoodSize
	}
	if c.Islands <= 0 {
		c.Islands = 1
	}
	if c.PlateauThreshold <= 0 {
		c.PlateauThreshold = d.PlateauThreshold
	}
	return c
}

// AnnealingSolver 模拟退火策略，实现 scheduler.Generator
type AnnealingSolver struct {
	config Config
}

// NewAnnealingSolver 创建模拟退火策略
func NewAnnealingSolver(config Config) *AnnealingSolver {
	return &AnnealingSolver{config: config.normalized()}
}

// Name 实现 Generator
func (s *AnnealingSolver) Name() scheduler.Strategy {
	return scheduler.StrategyAnnealing
}

// Generate 实现 Generator
func (s *AnnealingSolver) Generate(ctx context.Context, plan *scheduler.Plan, sink scheduler.Sink) error {
	slots := plan.Slots()
	if len(slots) == 0 {
		return nil
	}

	initial, err := s.initialState(ctx, plan, slots)
	if err != nil {
		return err
	}

	best := s.runIslands(ctx, initial)
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.persist(ctx, plan, slots, best, sink)
}

// initialState 在上下文副本上运行贪心，得到初始可行解
func (s *AnnealingSolver) initialState(ctx context.Context, plan *scheduler.Plan, slots []scheduler.Slot) (*state, error) {
	work := plan.Context.Clone()
	rec := &scheduler.RecordingSink{Context: work}
	draft := &scheduler.Plan{Context: work, Checks: plan.Checks, Days: plan.Days, Shifts: plan.Shifts}
	if err := solver.NewGreedySolver().Generate(ctx, draft, rec); err != nil {
		return nil, err
	}

	st := newState(work, plan.Checks, slots, plan.Shifts)
	for _, a := range rec.Committed {
		st.proposed[a.ID] = a
	}
	st.index(rec.Committed)
	st.score = st.objective()
	return st, nil
}

// Solution 一条搜索链找到的最优方案
type Solution struct {
	Assignments []*model.Assignment
	Score       float64
}

// optimize 单条搜索链
func (s *AnnealingSolver) optimize(ctx context.Context, current *state, rng *rand.Rand) *Solution {
	start := time.Now()
	cfg := s.config
	tabu := NewTabuList(cfg.TabuSize)
	moves := newMoveGenerator(rng)

	best := current.snapshot()
	initialScore := best.Score
	temperature := cfg.InitialTemp
	noImprovement := 0

	for i := 0; i < cfg.MaxIterations; i++ {
		select {
		case <-ctx.Done():
			return best
		default:
		}
		if time.Since(start) > cfg.MaxTime {
			break
		}

		// 生成若干候选移动，选目标值最低的一个
		var chosen *move
		chosenScore := math.Inf(1)
		for k := 0; k < cfg.NeighborhoodSize; k++ {
			m := moves.next(current)
			if m == nil {
				continue
			}
			current.apply(m)
			score := current.objective()
			current.revert(m)
			if score < chosenScore {
				chosen, chosenScore = m, score
			}
		}
		if chosen == nil {
			noImprovement++
			if cfg.StopOnPlateau && noImprovement >= cfg.PlateauThreshold {
				break
			}
			continue
		}

		key := chosen.key()
		accept := chosenScore < current.score
		if !accept && !tabu.Contains(key) {
			accept = rng.Float64() < boltzmannProbability(chosenScore-current.score, temperature)
		}

		if accept {
			current.apply(chosen)
			current.score = chosenScore
			tabu.Add(key)
			if current.score < best.Score {
				best = current.snapshot()
				noImprovement = 0
			} else {
				noImprovement++
			}
		} else {
			noImprovement++
		}

		if cfg.StopOnPlateau && noImprovement >= cfg.PlateauThreshold {
			break
		}
		temperature *= cfg.CoolingRate
	}

	logger.Debug().
		Float64("initial", initialScore).
		Float64("final", best.Score).
		Dur("elapsed", time.Since(start)).
		Msg("退火搜索完成")
	return best
}

// persist 将最优方案按日期、班次、角色顺序提交；每条在实时上下文上复检
func (s *AnnealingSolver) persist(ctx context.Context, plan *scheduler.Plan, slots []scheduler.Slot, best *Solution, sink scheduler.Sink) error {
	list := append([]*model.Assignment(nil), best.Assignments...)
	order := make(map[uuid.UUID]int, len(plan.Shifts))
	for i, sh := range plan.Shifts {
		order[sh.ID] = i
	}
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if order[a.ShiftID] != order[b.ShiftID] {
			return order[a.ShiftID] < order[b.ShiftID]
		}
		if a.Role != b.Role {
			return roleIndex(a.Role) < roleIndex(b.Role)
		}
		return a.StaffID.String() < b.StaffID.String()
	})

	live := plan.Context
	for _, a := range list {
		if err := ctx.Err(); err != nil {
			return err
		}
		staff := live.GetStaff(a.StaffID)
		shift := live.GetShift(a.ShiftID)
		if staff == nil || shift == nil {
			continue
		}
		if live.SlotCount(a.Date, a.ShiftID, a.Role) >= shift.Required(a.Role) {
			continue
		}
		cand, err := constraint.NewCandidate(staff, shift, a.Date)
		if err != nil {
			continue
		}
		if !plan.Checks.Check(live, cand).Eligible {
			continue
		}
		if err := sink.Commit(ctx, a); err != nil {
			return err
		}
	}

	for _, slot := range slots {
		assigned := live.SlotCount(slot.Date, slot.Shift.ID, slot.Role)
		if assigned < slot.Required {
			sink.Shortfall(model.Shortfall{
				Date:     slot.Date,
				ShiftID:  slot.Shift.ID,
				Role:     slot.Role,
				Required: slot.Required,
				Assigned: assigned,
			})
		}
	}
	return nil
}

func roleIndex(r model.Role) int {
	for i, role := range model.Roles {
		if role == r {
			return i
		}
	}
	return len(model.Roles)
}

// boltzmannProbability 计算模拟退火的接受概率
// delta: 能量差 (new - old)
func boltzmannProbability(delta, temperature float64) float64 {
	if delta <= 0 {
		return 1.0
	}
	if temperature <= 0 {
		return 0.0
	}
	return math.Exp(-delta / temperature)
}

// hashAssignments 计算分配的哈希 (FNV-1a)
func hashAssignments(assignments []*model.Assignment) uint64 {
	if len(assignments) == 0 {
		return 0
	}
	h := fnv.New64a()
	for _, a := range assignments {
		h.Write(a.StaffID[:])
		h.Write(a.ShiftID[:])
		h.Write([]byte(a.Date))
	}
	return h.Sum64()
}

// TabuList 禁忌表（uint64 哈希作键）
type TabuList struct {
	items   map[uint64]struct{}
	order   []uint64
	maxSize int
	mu      sync.RWMutex
}

// NewTabuList 创建禁忌表
func NewTabuList(size int) *TabuList {
	return &TabuList{
		items:   make(map[uint64]struct{}),
		order:   make([]uint64, 0, size),
		maxSize: size,
	}
}

// Add 添加到禁忌表，超出容量时移除最旧的
func (t *TabuList) Add(key uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.items[key]; exists {
		return
	}
	if len(t.order) >= t.maxSize {
		oldest := t.order[0]
		t.order = t.order[1:]
		delete(t.items, oldest)
	}
	t.items[key] = struct{}{}
	t.order = append(t.order, key)
}

// Contains 检查是否在禁忌表中
func (t *TabuList) Contains(key uint64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, exists := t.items[key]
	return exists
}

// Len 当前条目数
func (t *TabuList) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.order)
}
