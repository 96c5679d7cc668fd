package statemachine

import (
	"fmt"
	"time"

	"github.com/mautops/taskqueue-gin/internal/types"
)

// WorkflowGateConfig 开发流程门禁阈值
type WorkflowGateConfig struct {
	MinTestCoverage float64 // 百分比 0-100
	MinAIReviews    int     // 不同模型的最少评审数
	MinReviewScore  float64 // 单份评审最低分
}

// DefaultGateConfig 默认门禁阈值
func DefaultGateConfig() WorkflowGateConfig {
	return WorkflowGateConfig{
		MinTestCoverage: 90.0,
		MinAIReviews:    3,
		MinReviewScore:  0.8,
	}
}

// WorkflowStateMachine 开发流程状态机
// 阶段严格按 types.PhaseOrder 顺序推进,不可跳过也不可回退;
// failed 可以从任意非终态显式进入
type WorkflowStateMachine struct {
	gates WorkflowGateConfig
}

// NewWorkflowStateMachine 创建开发流程状态机
func NewWorkflowStateMachine(gates WorkflowGateConfig) *WorkflowStateMachine {
	return &WorkflowStateMachine{gates: gates}
}

// NextPhase 返回当前阶段的下一个阶段
func NextPhase(current types.WorkflowPhase) (types.WorkflowPhase, bool) {
	idx := current.Index()
	if idx < 0 || idx+1 >= len(types.PhaseOrder) {
		return "", false
	}
	return types.PhaseOrder[idx+1], true
}

// Advance 校验当前阶段的出口条件并推进到下一阶段
// 条件不满足时返回 PhaseCriteriaNotMet,Details 中携带缺失条件列表
func (m *WorkflowStateMachine) Advance(wf *types.DevelopmentWorkflow) error {
	if wf.Status.IsTerminal() {
		return types.NewError(types.KindInvalidStateTransition,
			"workflow is in terminal phase %q", wf.Status)
	}

	next, ok := NextPhase(wf.Status)
	if !ok {
		return types.NewError(types.KindInvalidStateTransition,
			"no phase follows %q", wf.Status)
	}

	if missing := m.missingCriteria(wf); len(missing) > 0 {
		return types.NewError(types.KindPhaseCriteriaNotMet,
			"cannot advance from %q", wf.Status).WithDetails(missing...)
	}

	now := time.Now()
	if wf.Status == types.PhaseNotStarted {
		wf.StartedAt = &now
	}
	wf.Status = next
	if next == types.PhaseCompleted {
		wf.CompletedAt = &now
	}

	return nil
}

// Fail 将流程显式置为 failed,任意非终态可达
func (m *WorkflowStateMachine) Fail(wf *types.DevelopmentWorkflow) error {
	if wf.Status.IsTerminal() {
		return types.NewError(types.KindInvalidStateTransition,
			"workflow is in terminal phase %q", wf.Status)
	}
	now := time.Now()
	wf.Status = types.PhaseFailed
	wf.CompletedAt = &now
	return nil
}

// missingCriteria 返回当前阶段尚未满足的出口条件
func (m *WorkflowStateMachine) missingCriteria(wf *types.DevelopmentWorkflow) []string {
	var missing []string

	switch wf.Status {
	case types.PhasePlanning:
		if wf.TechnicalDocumentationPath == "" {
			missing = append(missing, "technical documentation path is not set")
		}

	case types.PhaseTesting:
		if wf.TestCoveragePercentage == nil {
			missing = append(missing, "test coverage percentage is not set")
		} else if *wf.TestCoveragePercentage < m.gates.MinTestCoverage {
			missing = append(missing, fmt.Sprintf(
				"test coverage %.1f%% is below required %.1f%%",
				*wf.TestCoveragePercentage, m.gates.MinTestCoverage))
		}

	case types.PhaseAIReview:
		missing = append(missing, m.missingReviewCriteria(wf)...)
	}

	return missing
}

// missingReviewCriteria 校验 AI 评审门禁:
// 至少 MinAIReviews 份来自不同模型的报告,且全部 approved 且分数达标
func (m *WorkflowStateMachine) missingReviewCriteria(wf *types.DevelopmentWorkflow) []string {
	var missing []string

	distinctApproved := make(map[string]bool)
	for _, report := range wf.AIReviewReports {
		if !report.Approved {
			missing = append(missing, fmt.Sprintf(
				"review from %q is not approved", report.ModelName))
			continue
		}
		if report.Score < m.gates.MinReviewScore {
			missing = append(missing, fmt.Sprintf(
				"review from %q has score %.2f below required %.2f",
				report.ModelName, report.Score, m.gates.MinReviewScore))
			continue
		}
		distinctApproved[report.ModelName] = true
	}

	if len(distinctApproved) < m.gates.MinAIReviews {
		missing = append(missing, fmt.Sprintf(
			"%d approved reviews from distinct models, %d required",
			len(distinctApproved), m.gates.MinAIReviews))
	}

	return missing
}
