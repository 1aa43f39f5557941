package router

import (
	"sort"

	"github.com/veriflow-ai/veriflow/types"
)

// DFS 着色标记
const (
	markUnvisited = iota
	markVisiting
	markDone
)

// topoSort 对候选 Agent 集合做依赖拓扑排序，返回先决条件在前的执行顺序。
// 使用显式栈的迭代 DFS（visiting/visited 双标记），避免递归深度风险。
// 仅考虑集合内的依赖边：指向未入选 Agent 的依赖被忽略。
// 检测到环时返回 CIRCULAR_DEPENDENCY —— 静态依赖表不应出现环，但依赖
// 可配置后必须防御。
func topoSort(agents []string, deps map[string][]string) ([]string, error) {
	selected := make(map[string]bool, len(agents))
	for _, id := range agents {
		selected[id] = true
	}

	// 根与邻接均排序，保证确定性输出
	roots := append([]string(nil), agents...)
	sort.Strings(roots)

	inSetDeps := func(id string) []string {
		var ds []string
		for _, d := range deps[id] {
			if selected[d] && d != id {
				ds = append(ds, d)
			}
		}
		sort.Strings(ds)
		return ds
	}

	type frame struct {
		id   string
		deps []string
		next int
	}

	marks := make(map[string]int, len(agents))
	order := make([]string, 0, len(agents))

	for _, root := range roots {
		if marks[root] != markUnvisited {
			continue
		}

		stack := []frame{{id: root, deps: inSetDeps(root)}}
		marks[root] = markVisiting

		for len(stack) > 0 {
			top := &stack[len(stack)-1]

			if top.next < len(top.deps) {
				d := top.deps[top.next]
				top.next++

				switch marks[d] {
				case markVisiting:
					return nil, types.NewError(types.ErrCircularDependency,
						"circular dependency involving agent "+d)
				case markUnvisited:
					marks[d] = markVisiting
					stack = append(stack, frame{id: d, deps: inSetDeps(d)})
				}
				continue
			}

			// 依赖全部完成，后序输出保证先决条件在前
			marks[top.id] = markDone
			order = append(order, top.id)
			stack = stack[:len(stack)-1]
		}
	}

	return order, nil
}

// isTopologicalOrder 校验 order 是否为 deps 下的合法拓扑序（测试辅助）。
func isTopologicalOrder(order []string, deps map[string][]string) bool {
	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	for id, ds := range deps {
		pi, ok := pos[id]
		if !ok {
			continue
		}
		for _, d := range ds {
			if pd, ok := pos[d]; ok && pd > pi {
				return false
			}
		}
	}
	return true
}
