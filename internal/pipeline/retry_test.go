package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy(maxAttempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    10 * time.Millisecond,
	}
}

func TestRetryDo_FirstAttemptSucceeds(t *testing.T) {
	attempts := 0
	err := testPolicy(3).Do(context.Background(), func() error {
		attempts++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryDo_EventualSuccess(t *testing.T) {
	attempts := 0
	err := testPolicy(5).Do(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("瞬时故障")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryDo_ExhaustedReturnsLastError(t *testing.T) {
	attempts := 0
	err := testPolicy(3).Do(context.Background(), func() error {
		attempts++
		return fmt.Errorf("第 %d 次失败", attempts)
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Contains(t, err.Error(), "第 3 次失败")
}

func TestRetryDo_NonRetryableStopsImmediately(t *testing.T) {
	attempts := 0
	err := testPolicy(5).Do(context.Background(), func() error {
		attempts++
		return fmt.Errorf("包装: %w", ErrCountMismatch)
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCountMismatch)
	assert.Equal(t, 1, attempts, "数量不一致错误不应重试")
}

func TestRetryDo_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := testPolicy(10).Do(ctx, func() error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errors.New("故障")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.LessOrEqual(t, attempts, 2)
}

func TestRetryDo_DelayCappedAtMax(t *testing.T) {
	p := RetryPolicy{
		MaxAttempts: 4,
		BaseDelay:   2 * time.Millisecond,
		MaxDelay:    4 * time.Millisecond,
	}
	start := time.Now()
	_ = p.Do(context.Background(), func() error {
		return errors.New("故障")
	})
	// 未封顶时延迟为 2+4+8=14ms，封顶后为 2+4+4=10ms，留出调度余量
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestRetryDo_ZeroAttemptsRunsOnce(t *testing.T) {
	attempts := 0
	err := testPolicy(0).Do(context.Background(), func() error {
		attempts++
		return errors.New("故障")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDefaultRetryable(t *testing.T) {
	assert.False(t, DefaultRetryable(context.Canceled))
	assert.False(t, DefaultRetryable(context.DeadlineExceeded))
	assert.False(t, DefaultRetryable(fmt.Errorf("x: %w", ErrCountMismatch)))
	assert.True(t, DefaultRetryable(errors.New("网络抖动")))
}
