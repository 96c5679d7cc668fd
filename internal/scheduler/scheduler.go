package scheduler

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/mautops/taskqueue-gin/internal/executor"
	"github.com/mautops/taskqueue-gin/internal/graph"
	"github.com/mautops/taskqueue-gin/internal/integration"
	"github.com/mautops/taskqueue-gin/internal/metrics"
	"github.com/mautops/taskqueue-gin/internal/model"
	"github.com/mautops/taskqueue-gin/internal/repository"
	"github.com/mautops/taskqueue-gin/internal/types"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Options 调度器配置
type Options struct {
	MaxConcurrentTasks int
	DefaultRetryDelay  time.Duration
	DefaultTimeout     time.Duration // 0 表示不限时
}

// Scheduler 任务调度器
// 所有调度决策在单个 loop goroutine 中串行做出,
// 任务执行本身在独立 goroutine 中进行
type Scheduler struct {
	opts     Options
	tasks    integration.TaskManager
	taskRepo repository.TaskRepository
	exec     executor.Executor
	log      *logrus.Entry

	wake     chan struct{}
	finished chan *execResult
	stop     chan struct{}
	done     chan struct{}

	// 以下状态仅由 loop goroutine 访问
	running   map[string]context.CancelFunc
	notBefore map[string]time.Time
}

// execResult 执行 goroutine 回传给调度循环的结果
type execResult struct {
	taskID  string
	outcome *integration.ExecutionOutcome
	elapsed time.Duration
}

// New 创建调度器
func New(db *gorm.DB, tasks integration.TaskManager, exec executor.Executor, opts Options) *Scheduler {
	if opts.MaxConcurrentTasks <= 0 {
		opts.MaxConcurrentTasks = 1
	}
	return &Scheduler{
		opts:      opts,
		tasks:     tasks,
		taskRepo:  repository.NewTaskRepository(db),
		exec:      exec,
		log:       logrus.WithField("component", "scheduler"),
		wake:      make(chan struct{}, 1),
		finished:  make(chan *execResult, 64),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		running:   make(map[string]context.CancelFunc),
		notBefore: make(map[string]time.Time),
	}
}

// Start 启动调度循环
func (s *Scheduler) Start() {
	go s.loop()
	s.Wake()
}

// Stop 停止调度循环并取消所有在途执行
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

// Wake 请求一轮调度决策
// 任务创建、状态变化、取消后调用;通道带缓冲,重复唤醒会被合并
func (s *Scheduler) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Interrupt 中断正在运行的任务的执行进程
// 状态转换由 TaskManager.Cancel 负责,这里只负责杀掉进程
func (s *Scheduler) Interrupt(taskID string) {
	// 中断请求也走调度循环,避免并发访问 running 表
	select {
	case s.finished <- &execResult{taskID: taskID}:
	case <-s.stop:
	}
}

// loop 调度主循环,串行处理唤醒与执行完成
func (s *Scheduler) loop() {
	defer close(s.done)

	for {
		select {
		case <-s.wake:
			s.reconcile()

		case res := <-s.finished:
			s.handleFinished(res)
			s.reconcile()

		case <-s.stop:
			for id, cancel := range s.running {
				s.log.WithField("task_id", id).Info("cancelling in-flight execution on shutdown")
				cancel()
			}
			return
		}
	}
}

// handleFinished 处理执行完成或中断请求
func (s *Scheduler) handleFinished(res *execResult) {
	// outcome 为空说明是 Interrupt 请求: 取消执行上下文即可,
	// 真正的完成事件稍后还会到达
	if res.outcome == nil {
		if cancel, ok := s.running[res.taskID]; ok {
			cancel()
		}
		return
	}

	delete(s.running, res.taskID)
	metrics.TasksRunning.Set(float64(len(s.running)))
	metrics.TaskExecutionDuration.Observe(res.elapsed.Seconds())

	tsk, err := s.tasks.CompleteExecution(res.taskID, res.outcome)
	if err != nil {
		s.log.WithError(err).WithField("task_id", res.taskID).Error("failed to record execution outcome")
		return
	}
	metrics.TaskTransitionsTotal.WithLabelValues(string(tsk.Status)).Inc()

	// 失败重试: 回到 pending 的任务延迟 retry_delay 后再进入候选集
	if tsk.Status == types.TaskStatusPending && res.outcome.Failure != nil {
		metrics.TaskRetriesTotal.Inc()
		delay := tsk.RetryDelay
		if delay <= 0 {
			delay = s.opts.DefaultRetryDelay
		}
		if delay > 0 {
			s.notBefore[tsk.ID] = time.Now().Add(delay)
			time.AfterFunc(delay, s.Wake)
		}
	}
}

// reconcile 单轮调度决策:
// 1. 等待依赖的任务满足条件后重新进入候选集
// 2. 依赖未满足的 pending 任务转入等待
// 3. 按优先级降序、创建时间升序依次派发,直到并发上限
func (s *Scheduler) reconcile() {
	models, err := s.taskRepo.FindByStatuses([]string{
		string(types.TaskStatusPending),
		string(types.TaskStatusWaitingForDependencies),
	})
	if err != nil {
		s.log.WithError(err).Error("failed to load schedulable tasks")
		return
	}

	statuses := s.statusLookup(models)
	now := time.Now()
	var candidates []*types.Task

	for _, tm := range models {
		var tsk types.Task
		if err := json.Unmarshal(tm.Data, &tsk); err != nil {
			s.log.WithError(err).WithField("task_id", tm.ID).Error("failed to unmarshal task")
			continue
		}
		if _, ok := s.running[tsk.ID]; ok {
			continue
		}
		if nb, ok := s.notBefore[tsk.ID]; ok {
			if now.Before(nb) {
				continue
			}
			delete(s.notBefore, tsk.ID)
		}

		readiness := graph.Resolve(tsk.Dependencies, statuses)
		if !readiness.Ready {
			if tsk.Status == types.TaskStatusPending {
				if err := s.tasks.MarkWaiting(tsk.ID, readiness.Blocking); err != nil {
					s.log.WithError(err).WithField("task_id", tsk.ID).Error("failed to mark task waiting")
				}
			}
			continue
		}
		candidates = append(candidates, &tsk)
	}

	// 优先级权重降序;FindByStatuses 已按创建时间升序返回,
	// 稳定排序保证同优先级 FIFO
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority.Weight() > candidates[j].Priority.Weight()
	})

	for _, tsk := range candidates {
		if len(s.running) >= s.opts.MaxConcurrentTasks {
			break
		}
		s.dispatch(tsk.ID)
	}
}

// statusLookup 以一次批量查询为主构建状态查询函数
// 候选集之外的前置任务回落到单条查询
func (s *Scheduler) statusLookup(models []*model.TaskModel) graph.StatusLookup {
	known := make(map[string]types.TaskStatus, len(models))
	for _, tm := range models {
		known[tm.ID] = types.TaskStatus(tm.Status)
	}
	return func(id string) (types.TaskStatus, bool) {
		if status, ok := known[id]; ok {
			return status, true
		}
		tm, err := s.taskRepo.FindByID(id)
		if err != nil {
			return "", false
		}
		return types.TaskStatus(tm.Status), true
	}
}

// dispatch 派发单个任务并启动执行 goroutine
func (s *Scheduler) dispatch(taskID string) {
	tsk, err := s.tasks.Dispatch(taskID)
	if err != nil {
		// 竞争下任务可能已被取消,跳过即可
		s.log.WithError(err).WithField("task_id", taskID).Warn("dispatch skipped")
		return
	}

	timeout := tsk.Timeout
	if timeout <= 0 {
		timeout = s.opts.DefaultTimeout
	}

	ctx := context.Background()
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	s.running[taskID] = cancel
	metrics.TasksDispatchedTotal.Inc()
	metrics.TasksRunning.Set(float64(len(s.running)))
	s.log.WithFields(logrus.Fields{
		"task_id":  taskID,
		"priority": tsk.Priority,
	}).Info("task dispatched")

	go func() {
		defer cancel()
		start := time.Now()
		result := s.exec.Execute(ctx, tsk)

		outcome := &integration.ExecutionOutcome{
			Success:  result.Success,
			Failure:  result.Failure,
			TimedOut: result.TimedOut,
		}
		select {
		case s.finished <- &execResult{taskID: taskID, outcome: outcome, elapsed: time.Since(start)}:
		case <-s.stop:
		}
	}()
}
