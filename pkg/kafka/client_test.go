package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vectorflow-go/pkg/tasks"
)

type fetchResult struct {
	msg kafka.Message
	err error
}

// fakeFetcher 按脚本依次返回拉取结果，脚本耗尽后阻塞到上下文结束。
type fakeFetcher struct {
	mu        sync.Mutex
	script    []fetchResult
	pos       int
	committed []int64
}

func (f *fakeFetcher) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	exhausted := f.pos >= len(f.script)
	var r fetchResult
	if !exhausted {
		r = f.script[f.pos]
		f.pos++
	}
	f.mu.Unlock()

	if exhausted {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	if ctx.Err() != nil {
		return kafka.Message{}, ctx.Err()
	}
	return r.msg, r.err
}

func (f *fakeFetcher) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeFetcher) committedOffsets() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.committed...)
}

// recordingDispatcher 记录收到的任务投递。
type recordingDispatcher struct {
	mu   sync.Mutex
	seen []string
}

func (d *recordingDispatcher) Enqueue(documentID string, freshUpload bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen = append(d.seen, documentID)
	return true
}

func (d *recordingDispatcher) enqueued() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.seen...)
}

func taskMessage(t *testing.T, documentID string, offset int64) kafka.Message {
	t.Helper()
	value, err := json.Marshal(tasks.DocumentProcessingTask{DocumentID: documentID, FreshUpload: true})
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Value: value}
}

func runConsumeLoop(ctx context.Context, fetcher *fakeFetcher, dispatcher *recordingDispatcher) chan struct{} {
	done := make(chan struct{})
	go func() {
		consumeLoop(ctx, fetcher, dispatcher, time.Millisecond, 4*time.Millisecond)
		close(done)
	}()
	return done
}

func TestConsumeLoop_SurvivesFetchFailures(t *testing.T) {
	fetcher := &fakeFetcher{script: []fetchResult{
		{err: errors.New("broker 不可达")},
		{err: errors.New("broker 不可达")},
		{msg: taskMessage(t, "doc-1", 3)},
	}}
	dispatcher := &recordingDispatcher{}

	ctx, cancel := context.WithCancel(context.Background())
	done := runConsumeLoop(ctx, fetcher, dispatcher)

	// 连续拉取失败后消费者仍然存活并投递后续消息
	require.Eventually(t, func() bool {
		return len(dispatcher.enqueued()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"doc-1"}, dispatcher.enqueued())
	assert.Contains(t, fetcher.committedOffsets(), int64(3))

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("消费循环未在上下文结束后退出")
	}
}

func TestConsumeLoop_MalformedMessagesCommittedAndSkipped(t *testing.T) {
	fetcher := &fakeFetcher{script: []fetchResult{
		{msg: kafka.Message{Offset: 7, Value: []byte("不是 json")}},
		{msg: kafka.Message{Offset: 8, Value: []byte(`{"document_id":""}`)}},
		{msg: taskMessage(t, "doc-2", 9)},
	}}
	dispatcher := &recordingDispatcher{}

	ctx, cancel := context.WithCancel(context.Background())
	done := runConsumeLoop(ctx, fetcher, dispatcher)

	require.Eventually(t, func() bool {
		return len(dispatcher.enqueued()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	// 坏消息不投递但必须提交，避免阻塞分区
	assert.Equal(t, []string{"doc-2"}, dispatcher.enqueued())
	assert.ElementsMatch(t, []int64{7, 8, 9}, fetcher.committedOffsets())

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("消费循环未在上下文结束后退出")
	}
}
