package executor

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	"github.com/mautops/taskqueue-gin/internal/types"
)

// Executor 任务执行器接口
// Execute 阻塞直到命令结束或 ctx 取消,返回执行结果
type Executor interface {
	Execute(ctx context.Context, tsk *types.Task) *Result
}

// Result 单次执行的结果,三个字段互斥
type Result struct {
	Success  *types.SuccessResult
	Failure  *types.FailureResult
	TimedOut bool
}

// shellExecutor 通过 shell 执行任务命令
type shellExecutor struct {
	shell string
}

// NewShellExecutor 创建 shell 执行器
func NewShellExecutor() Executor {
	return &shellExecutor{shell: "/bin/sh"}
}

// Execute 执行任务命令
// ctx 超时或取消会终止进程;超时归类为失败并标记 TimedOut
func (e *shellExecutor) Execute(ctx context.Context, tsk *types.Task) *Result {
	if strings.TrimSpace(tsk.Command) == "" {
		// 无命令的任务视为空操作,直接成功
		return &Result{Success: &types.SuccessResult{Output: ""}}
	}

	cmd := exec.CommandContext(ctx, e.shell, "-c", tsk.Command)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	output := buf.String()

	if err == nil {
		return &Result{Success: &types.SuccessResult{Output: output}}
	}

	failure := &types.FailureResult{
		Error:    err.Error(),
		ExitCode: exitCode(err),
		Logs:     output,
	}
	timedOut := errors.Is(ctx.Err(), context.DeadlineExceeded)
	if timedOut {
		failure.Error = "execution timed out"
	}
	return &Result{Failure: failure, TimedOut: timedOut}
}

// exitCode 从错误中提取进程退出码,提取不到时返回 -1
func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
