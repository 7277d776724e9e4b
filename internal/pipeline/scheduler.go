package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"vectorflow-go/pkg/log"
)

// Runner 抽象一次完整的管道运行，调度器只依赖该接口。
type Runner interface {
	Run(ctx context.Context, documentID string) error
}

// finalWriteTimeout 是运行结束后写入终态的独立时限，
// 不受已经超时的运行上下文影响。
const finalWriteTimeout = 10 * time.Second

// Scheduler 是管道的顶层编排者：对同一文档的并发触发去重，
// 给每次运行套上超时，并保证任务表项在任何退出路径上都被移除一次。
type Scheduler struct {
	mu    sync.Mutex
	tasks map[string]*taskHandle

	runner  Runner
	tracker *StatusTracker
	cleanup *CleanupManager
	repo    DocumentStore
	timeout time.Duration
}

// taskHandle 是一次活跃运行的句柄。
type taskHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler 创建一个新的 Scheduler。
func NewScheduler(runner Runner, tracker *StatusTracker, cleanup *CleanupManager, repo DocumentStore, timeout time.Duration) *Scheduler {
	return &Scheduler{
		tasks:   make(map[string]*taskHandle),
		runner:  runner,
		tracker: tracker,
		cleanup: cleanup,
		repo:    repo,
		timeout: timeout,
	}
}

// Enqueue 为指定文档启动一次异步的管道运行。
// 同一文档已有运行在进行时为空操作（记录日志，不算错误），返回 false。
// freshUpload 标记这次运行对应一次全新上传，失败时需要补偿清理。
func (s *Scheduler) Enqueue(documentID string, freshUpload bool) bool {
	s.mu.Lock()
	if _, exists := s.tasks[documentID]; exists {
		s.mu.Unlock()
		log.Infof("[Scheduler] 文档已有运行在进行, 跳过重复触发, documentID: %s", documentID)
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	handle := &taskHandle{cancel: cancel, done: make(chan struct{})}
	s.tasks[documentID] = handle
	s.mu.Unlock()

	log.Infof("[Scheduler] 已入队, documentID: %s, freshUpload: %v, timeout: %s", documentID, freshUpload, s.timeout)
	go s.run(ctx, documentID, freshUpload, handle)
	return true
}

// run 执行一次运行并处理所有退出路径。任务表项的移除放在 defer 中，
// 成功、失败、超时乃至 panic 都恰好清理一次。
func (s *Scheduler) run(ctx context.Context, documentID string, freshUpload bool, handle *taskHandle) {
	var runErr error
	defer func() {
		if r := recover(); r != nil {
			runErr = fmt.Errorf("管道运行异常退出: %v", r)
			log.Errorf("[Scheduler] 运行 panic, documentID: %s, panic: %v", documentID, r)
		}
		if runErr != nil {
			// 超时/取消的判定以运行上下文为准，不依赖各阶段对错误的包装方式
			if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(runErr, ctxErr) {
				runErr = fmt.Errorf("%w: %v", ctxErr, runErr)
			}
			s.finalize(documentID, freshUpload, runErr)
		}

		handle.cancel()
		s.mu.Lock()
		delete(s.tasks, documentID)
		s.mu.Unlock()
		close(handle.done)
	}()

	runErr = s.runner.Run(ctx, documentID)
}

// finalize 是失败路径上唯一的终态写入点。被超时取消的运行不自己写状态，
// 统一由这里在新的上下文中落库，避免与取消竞争。
func (s *Scheduler) finalize(documentID string, freshUpload bool, runErr error) {
	ctx, cancel := context.WithTimeout(context.Background(), finalWriteTimeout)
	defer cancel()

	cause := runErr
	switch {
	case errors.Is(runErr, context.DeadlineExceeded):
		cause = fmt.Errorf("%w: 运行超过 %s 的处理时限", ErrTimeout, s.timeout)
	case errors.Is(runErr, context.Canceled):
		cause = fmt.Errorf("运行被外部取消: %v", runErr)
	}
	if err := s.tracker.MarkFailed(ctx, documentID, cause); err != nil {
		log.Errorf("[Scheduler] 写入失败终态时出错, documentID: %s, error: %v", documentID, err)
	}

	// 全新上传的失败运行需要清掉已落地的对象和向量
	if freshUpload && s.cleanup != nil {
		doc, err := s.repo.GetByID(ctx, documentID)
		if err != nil {
			log.Warnf("[Scheduler] 补偿清理前读取文档失败, documentID: %s, error: %v", documentID, err)
			return
		}
		s.cleanup.Compensate(ctx, doc)
	}
}

// Cancel 对指定文档的活跃运行发出取消信号，无活跃运行时为空操作。
func (s *Scheduler) Cancel(documentID string) {
	s.mu.Lock()
	handle, ok := s.tasks[documentID]
	s.mu.Unlock()
	if ok {
		handle.cancel()
	}
}

// Running 报告指定文档当前是否有活跃运行。
func (s *Scheduler) Running(documentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[documentID]
	return ok
}

// ActiveCount 返回当前活跃运行的数量。
func (s *Scheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}
