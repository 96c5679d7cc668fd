package types

import (
	"errors"
	"fmt"
)

// ErrorKind 错误分类,API 层据此映射 HTTP 状态码
type ErrorKind string

const (
	KindValidation             ErrorKind = "VALIDATION_ERROR"
	KindCyclicDependency       ErrorKind = "CYCLIC_DEPENDENCY"
	KindDependencyNotFound     ErrorKind = "DEPENDENCY_NOT_FOUND"
	KindInvalidStateTransition ErrorKind = "INVALID_STATE_TRANSITION"
	KindPhaseCriteriaNotMet    ErrorKind = "PHASE_CRITERIA_NOT_MET"
	KindWrongPhase             ErrorKind = "WRONG_PHASE"
	KindNoWorkflowAttached     ErrorKind = "NO_WORKFLOW_ATTACHED"
	KindInvalidCoverageValue   ErrorKind = "INVALID_COVERAGE_VALUE"
	KindExecutionTimeout       ErrorKind = "EXECUTION_TIMEOUT"
	KindExecutionFailure       ErrorKind = "EXECUTION_FAILURE"
	KindNotFound               ErrorKind = "NOT_FOUND"
)

// DomainError 结构化领域错误
// Details 携带调用方可用于自我纠正的信息(如缺失的阶段条件列表)
type DomainError struct {
	Kind    ErrorKind
	Message string
	Details []string
}

// Error 实现 error 接口
func (e *DomainError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewError 创建领域错误
func NewError(kind ErrorKind, format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithDetails 附加详情列表
func (e *DomainError) WithDetails(details ...string) *DomainError {
	e.Details = append(e.Details, details...)
	return e
}

// AsDomainError 从错误链中提取领域错误
func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// IsKind 判断错误是否属于指定分类
func IsKind(err error, kind ErrorKind) bool {
	de, ok := AsDomainError(err)
	return ok && de.Kind == kind
}
