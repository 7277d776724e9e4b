package pipeline

import (
	"context"
	"errors"
	"time"

	"vectorflow-go/pkg/log"
)

// RetryPolicy 是一个显式的重试策略对象：所有跨进程调用
// （提取、向量化、向量库写入、存在性检查）都通过同一策略执行。
type RetryPolicy struct {
	// MaxAttempts 是包含首次调用在内的最大尝试次数。
	MaxAttempts int
	// BaseDelay 是首次重试前的延迟，之后每次翻倍。
	BaseDelay time.Duration
	// MaxDelay 是单次延迟的上限，0 表示不设上限。
	MaxDelay time.Duration
	// Retryable 判断错误是否值得重试，nil 时使用 DefaultRetryable。
	Retryable func(error) bool
}

// DefaultRetryable 是默认的可重试判定：上下文取消/超时与数量不一致
// 视为终态，其余错误按瞬时故障处理。
func DefaultRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !errors.Is(err, ErrCountMismatch)
}

// Do 以指数退避的方式执行 op，直到成功、重试耗尽或上下文被取消。
// 返回最后一次尝试的错误。
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = DefaultRetryable
	}

	var lastErr error
	delay := p.BaseDelay
	for attempt := 1; attempt <= attempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lastErr = op()
		if lastErr == nil {
			if attempt > 1 {
				log.Infof("[Retry] 操作在第 %d 次尝试后成功", attempt)
			}
			return nil
		}
		if !retryable(lastErr) || attempt == attempts {
			break
		}

		log.Warnf("[Retry] 第 %d/%d 次尝试失败，%s 后重试: %v", attempt, attempts, delay, lastErr)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return lastErr
}
