package optimizer

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/paiban/nurseshift/pkg/logger"
)

// island 独立搜索链，拥有自己的上下文副本与随机源
type island struct {
	id    int
	state *state
	rng   *rand.Rand
	best  *Solution
}

// runIslands 多条搜索链并行运行，返回全局最优解
// 分数相同时取编号较小的链，保证固定种子下结果可复现
func (s *AnnealingSolver) runIslands(ctx context.Context, initial *state) *Solution {
	seed := s.config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	islands := make([]*island, s.config.Islands)
	for i := range islands {
		st := initial
		if len(islands) > 1 {
			st = initial.clone()
		}
		islands[i] = &island{id: i, state: st, rng: rand.New(rand.NewSource(seed + int64(i)))}
	}

	var wg sync.WaitGroup
	for _, isl := range islands {
		wg.Add(1)
		go func(isl *island) {
			defer wg.Done()
			isl.best = s.optimize(ctx, isl.state, isl.rng)
		}(isl)
	}
	wg.Wait()

	best := islands[0].best
	for _, isl := range islands[1:] {
		if isl.best.Score < best.Score {
			best = isl.best
		}
	}

	logger.Info().
		Int("islands", len(islands)).
		Float64("initial_score", initial.score).
		Float64("best_score", best.Score).
		Int("assignments", len(best.Assignments)).
		Msg("退火优化完成")
	return best
}
