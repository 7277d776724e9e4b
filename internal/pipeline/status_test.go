package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vectorflow-go/internal/model"
	"vectorflow-go/internal/status"
)

func TestStatusTracker_MarkCompleted(t *testing.T) {
	docs := newFakeDocStore(testDocument())
	tracker := NewStatusTracker(docs, nil)

	require.NoError(t, tracker.MarkCompleted(context.Background(), "doc-1", 7, "proj_p1"))

	doc := docs.get("doc-1")
	assert.Equal(t, model.StatusCompleted, doc.Status)
	assert.Equal(t, 7, doc.ChunkCount)
	assert.Equal(t, "proj_p1", doc.VectorNamespace)
	assert.Empty(t, doc.ProcessingError)

	// 状态、分块数、命名空间与错误清除必须是同一次更新
	require.Equal(t, 1, docs.updateCount())
}

func TestStatusTracker_MarkFailed(t *testing.T) {
	docs := newFakeDocStore(testDocument())
	tracker := NewStatusTracker(docs, nil)

	require.NoError(t, tracker.MarkFailed(context.Background(), "doc-1", errors.New("下载对象失败")))

	doc := docs.get("doc-1")
	assert.Equal(t, model.StatusFailed, doc.Status)
	assert.Equal(t, "下载对象失败", doc.ProcessingError)
}

func TestStatusTracker_MarkFailedTruncatesLongError(t *testing.T) {
	docs := newFakeDocStore(testDocument())
	tracker := NewStatusTracker(docs, nil)

	longMsg := strings.Repeat("错", 3000)
	require.NoError(t, tracker.MarkFailed(context.Background(), "doc-1", errors.New(longMsg)))

	doc := docs.get("doc-1")
	assert.Equal(t, maxErrorLen, len([]rune(doc.ProcessingError)))
}

func TestStatusTracker_MarkCompletedClearsPreviousError(t *testing.T) {
	doc := testDocument()
	doc.Status = model.StatusFailed
	doc.ProcessingError = "上一次运行的错误"
	docs := newFakeDocStore(doc)
	tracker := NewStatusTracker(docs, nil)

	require.NoError(t, tracker.MarkCompleted(context.Background(), "doc-1", 3, "proj_p1"))

	updated := docs.get("doc-1")
	assert.Equal(t, model.StatusCompleted, updated.Status)
	assert.Empty(t, updated.ProcessingError, "成功终态必须清除既有错误信息")
}

func TestStatusTracker_UpdateFailurePropagates(t *testing.T) {
	docs := newFakeDocStore(testDocument())
	docs.updateErr = errors.New("数据库不可用")
	tracker := NewStatusTracker(docs, nil)

	assert.Error(t, tracker.MarkCompleted(context.Background(), "doc-1", 1, "proj_p1"))
	assert.Error(t, tracker.MarkFailed(context.Background(), "doc-1", errors.New("x")))
}

func TestStatusTracker_PublishesEvents(t *testing.T) {
	docs := newFakeDocStore(testDocument())
	hub := status.NewHub()
	tracker := NewStatusTracker(docs, hub)

	events, cancel := hub.Subscribe("doc-1")
	defer cancel()

	require.NoError(t, tracker.MarkCompleted(context.Background(), "doc-1", 5, "proj_p1"))

	select {
	case evt := <-events:
		assert.Equal(t, "doc-1", evt.DocumentID)
		assert.Equal(t, model.StatusCompleted, evt.Status)
		assert.Equal(t, 5, evt.ChunkCount)
	case <-time.After(time.Second):
		t.Fatal("未收到状态事件")
	}
}
