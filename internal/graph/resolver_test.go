package graph

import (
	"testing"

	"github.com/mautops/taskqueue-gin/internal/types"
	"github.com/stretchr/testify/assert"
)

func statusMap(m map[string]types.TaskStatus) StatusLookup {
	return func(id string) (types.TaskStatus, bool) {
		s, ok := m[id]
		return s, ok
	}
}

func depMap(m map[string][]types.Dependency) DependencyLookup {
	return func(id string) ([]types.Dependency, bool) {
		d, ok := m[id]
		return d, ok
	}
}

// TestResolveReady 测试依赖全部满足时就绪
func TestResolveReady(t *testing.T) {
	lookup := statusMap(map[string]types.TaskStatus{
		"a": types.TaskStatusCompleted,
		"b": types.TaskStatusFailed,
		"c": types.TaskStatusCancelled,
	})

	r := Resolve([]types.Dependency{
		{TaskID: "a", Condition: types.ConditionSuccess},
		{TaskID: "b", Condition: types.ConditionFailure},
		{TaskID: "c", Condition: types.ConditionCompletion},
	}, lookup)

	assert.True(t, r.Ready)
	assert.Empty(t, r.Blocking)
}

// TestResolveBlocking 测试未满足的依赖计入 Blocking
func TestResolveBlocking(t *testing.T) {
	lookup := statusMap(map[string]types.TaskStatus{
		"a": types.TaskStatusRunning,
		"b": types.TaskStatusFailed,
	})

	r := Resolve([]types.Dependency{
		{TaskID: "a", Condition: types.ConditionSuccess},
		{TaskID: "b", Condition: types.ConditionSuccess},
	}, lookup)

	assert.False(t, r.Ready)
	assert.ElementsMatch(t, []string{"a", "b"}, r.Blocking)
}

// TestResolveNoDependencies 测试无依赖的任务立即就绪
func TestResolveNoDependencies(t *testing.T) {
	r := Resolve(nil, statusMap(nil))
	assert.True(t, r.Ready)
}

// TestCheckAcyclicSelfDependency 测试自依赖被拒绝
func TestCheckAcyclicSelfDependency(t *testing.T) {
	err := CheckAcyclic("a", []types.Dependency{{TaskID: "a"}}, depMap(nil))
	assert.True(t, types.IsKind(err, types.KindCyclicDependency))
}

// TestCheckAcyclicMissingDependency 测试引用不存在的任务被拒绝
func TestCheckAcyclicMissingDependency(t *testing.T) {
	err := CheckAcyclic("a", []types.Dependency{{TaskID: "ghost"}}, depMap(nil))
	assert.True(t, types.IsKind(err, types.KindDependencyNotFound))
}

// TestCheckAcyclicDetectsCycle 测试新边闭合成环时被拒绝
func TestCheckAcyclicDetectsCycle(t *testing.T) {
	// 既有边: b -> c, c -> a; 新边 a -> b 会闭合 a -> b -> c -> a
	edges := depMap(map[string][]types.Dependency{
		"a": nil,
		"b": {{TaskID: "c"}},
		"c": {{TaskID: "a"}},
	})

	err := CheckAcyclic("a", []types.Dependency{{TaskID: "b"}}, edges)
	assert.True(t, types.IsKind(err, types.KindCyclicDependency))
}

// TestCheckAcyclicDiamond 测试菱形依赖不是环
func TestCheckAcyclicDiamond(t *testing.T) {
	// b 和 c 都依赖 d,a 同时依赖 b 和 c:合法的菱形
	edges := depMap(map[string][]types.Dependency{
		"b": {{TaskID: "d"}},
		"c": {{TaskID: "d"}},
		"d": nil,
	})

	err := CheckAcyclic("a", []types.Dependency{
		{TaskID: "b"},
		{TaskID: "c"},
	}, edges)
	assert.NoError(t, err)
}

// TestCheckAcyclicChain 测试长链依赖合法
func TestCheckAcyclicChain(t *testing.T) {
	edges := depMap(map[string][]types.Dependency{
		"b": {{TaskID: "c"}},
		"c": {{TaskID: "d"}},
		"d": nil,
	})

	assert.NoError(t, CheckAcyclic("a", []types.Dependency{{TaskID: "b"}}, edges))
}
