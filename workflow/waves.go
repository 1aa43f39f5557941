package workflow

import (
	"github.com/veriflow-ai/veriflow/types"
)

// linearDependencies 将 executionOrder 展开为线性链依赖表：
// 第 i 个 agent 依赖其前面的全部 i-1 个 agent。这是刻意保守的模型，
// 比路由器的成对依赖表更严格（见 doc.go 执行语义）。
func linearDependencies(executionOrder []string) map[string][]string {
	deps := make(map[string][]string, len(executionOrder))
	for i, id := range executionOrder {
		deps[id] = append([]string(nil), executionOrder[:i]...)
	}
	return deps
}

// buildWaves 构建波次调度计划：反复收集"依赖已全部被此前波次调度"的
// agent 组成一波，直到全部调度完毕。某轮一个 agent 都收不进来而候选
// 仍有剩余，说明依赖表成环，返回 CIRCULAR_DEPENDENCY。
//
// 依赖表中指向 ids 之外的边会被忽略，波内顺序跟随 ids 的输入顺序。
func buildWaves(ids []string, deps map[string][]string) ([][]string, error) {
	inSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		inSet[id] = true
	}

	scheduled := make(map[string]bool, len(ids))
	waves := make([][]string, 0, len(ids))
	remaining := len(ids)

	for remaining > 0 {
		var wave []string
		for _, id := range ids {
			if scheduled[id] {
				continue
			}
			ready := true
			for _, dep := range deps[id] {
				if !inSet[dep] || dep == id {
					continue
				}
				if !scheduled[dep] {
					ready = false
					break
				}
			}
			if ready {
				wave = append(wave, id)
			}
		}

		if len(wave) == 0 {
			return nil, types.NewError(types.ErrCircularDependency,
				"wave scheduling stalled: circular dependency among remaining agents")
		}

		// 本波成员对下一波才算"已调度"
		for _, id := range wave {
			scheduled[id] = true
		}
		waves = append(waves, wave)
		remaining -= len(wave)
	}

	return waves, nil
}
