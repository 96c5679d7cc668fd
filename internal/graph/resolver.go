package graph

import (
	"github.com/mautops/taskqueue-gin/internal/types"
)

// StatusLookup 查询任务当前状态,任务不存在时 ok 为 false
type StatusLookup func(taskID string) (types.TaskStatus, bool)

// DependencyLookup 查询任务的依赖边,任务不存在时 ok 为 false
type DependencyLookup func(taskID string) ([]types.Dependency, bool)

// Readiness 就绪判定结果
type Readiness struct {
	Ready    bool
	Blocking []string // 未满足条件的依赖任务 ID
}

// Resolve 判定任务的依赖是否全部满足
// 每个依赖单独判定: 前置任务未达到终态或终态不满足条件时计入 Blocking
func Resolve(deps []types.Dependency, lookup StatusLookup) Readiness {
	result := Readiness{Ready: true}
	for _, dep := range deps {
		status, ok := lookup(dep.TaskID)
		if !ok || !dep.Condition.Satisfied(status) {
			result.Ready = false
			result.Blocking = append(result.Blocking, dep.TaskID)
		}
	}
	return result
}

// dfs 遍历标记
const (
	colorWhite = 0 // 未访问
	colorGray  = 1 // 访问中(在当前 DFS 栈上)
	colorBlack = 2 // 已完成
)

// CheckAcyclic 校验从 taskID 出发,加上 newDeps 这组新边后依赖图仍无环
// 必须在持久化新边之前调用;发现环时返回 CyclicDependency,
// 引用不存在的任务时返回 DependencyNotFound
func CheckAcyclic(taskID string, newDeps []types.Dependency, lookup DependencyLookup) error {
	// 1. 先校验所有新边指向的任务都存在
	for _, dep := range newDeps {
		if dep.TaskID == taskID {
			return types.NewError(types.KindCyclicDependency,
				"task %q cannot depend on itself", taskID)
		}
		if _, ok := lookup(dep.TaskID); !ok {
			return types.NewError(types.KindDependencyNotFound,
				"dependency %q does not exist", dep.TaskID)
		}
	}

	// 2. DFS 检环: 把新边视作 taskID 的出边,沿既有边下探
	//    灰色节点再次被访问即说明存在环
	colors := map[string]int{taskID: colorGray}
	for _, dep := range newDeps {
		if err := visit(dep.TaskID, colors, lookup); err != nil {
			return err
		}
	}
	return nil
}

// visit DFS 访问单个节点
func visit(id string, colors map[string]int, lookup DependencyLookup) error {
	switch colors[id] {
	case colorGray:
		return types.NewError(types.KindCyclicDependency,
			"adding dependency closes a cycle through task %q", id)
	case colorBlack:
		return nil
	}

	colors[id] = colorGray
	deps, ok := lookup(id)
	if ok {
		for _, dep := range deps {
			if err := visit(dep.TaskID, colors, lookup); err != nil {
				return err
			}
		}
	}
	colors[id] = colorBlack
	return nil
}
