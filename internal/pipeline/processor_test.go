package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vectorflow-go/internal/config"
	"vectorflow-go/internal/model"
	"vectorflow-go/internal/pipeline/extract"
)

func testDocument() *model.Document {
	return &model.Document{
		ID:            "doc-1",
		ProjectID:     "p1",
		UserID:        1,
		Name:          "note.txt",
		StoragePath:   "projects/p1/doc-1_note.txt",
		StorageBucket: "test-bucket",
		FileType:      "txt",
		Status:        model.StatusProcessing,
	}
}

type processorFixture struct {
	processor *Processor
	docs      *fakeDocStore
	blobs     *fakeBlobStore
	embedder  *fakeEmbedder
	vectors   *fakeVectorStore
}

func newProcessorFixture(t *testing.T, doc *model.Document, content []byte) *processorFixture {
	t.Helper()
	docs := newFakeDocStore(doc)
	blobs := newFakeBlobStore()
	if content != nil {
		require.NoError(t, blobs.Upload(context.Background(), content, doc.StoragePath, doc.StorageBucket, "text/plain"))
	}
	embedder := newFakeEmbedder(4)
	vectors := newFakeVectorStore()

	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	tracker := NewStatusTracker(docs, nil)
	processor := NewProcessor(
		docs,
		blobs,
		extract.NewRegistry(),
		NewEmbeddingBatcher(embedder, policy),
		NewVectorUpserter(vectors, policy),
		vectors,
		tracker,
		policy,
		config.PipelineConfig{ChunkSize: 50, ChunkOverlap: 10},
	)
	return &processorFixture{processor: processor, docs: docs, blobs: blobs, embedder: embedder, vectors: vectors}
}

func TestProcessorRun_Success(t *testing.T) {
	doc := testDocument()
	content := []byte(strings.Repeat("Hello world vector flow. ", 10))
	f := newProcessorFixture(t, doc, content)

	err := f.processor.Run(context.Background(), doc.ID)
	require.NoError(t, err)

	updated := f.docs.get(doc.ID)
	assert.Equal(t, model.StatusCompleted, updated.Status)
	assert.Greater(t, updated.ChunkCount, 0)
	assert.Equal(t, "proj_p1", updated.VectorNamespace)
	assert.Empty(t, updated.ProcessingError)

	records := f.vectors.stored("proj_p1")
	require.Len(t, records, updated.ChunkCount)
	assert.Equal(t, "doc-1_0", records[0].ID)
	for i, r := range records {
		assert.Equal(t, "proj_p1", r.Namespace)
		assert.Equal(t, "doc-1", r.DocumentID)
		assert.Equal(t, i, r.ChunkIndex)
	}
}

func TestProcessorRun_DownloadFailure(t *testing.T) {
	doc := testDocument()
	f := newProcessorFixture(t, doc, nil) // 不放对象

	err := f.processor.Run(context.Background(), doc.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorage)

	// 失败终态由调度器写入，处理器只返回错误
	assert.Equal(t, model.StatusProcessing, f.docs.get(doc.ID).Status)
	assert.Empty(t, f.vectors.stored("proj_p1"))
}

func TestProcessorRun_EmptyObject(t *testing.T) {
	doc := testDocument()
	f := newProcessorFixture(t, doc, []byte{})

	err := f.processor.Run(context.Background(), doc.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorage)
}

func TestProcessorRun_UnsupportedFileType(t *testing.T) {
	doc := testDocument()
	doc.FileType = "exe"
	f := newProcessorFixture(t, doc, []byte("binary"))

	err := f.processor.Run(context.Background(), doc.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExtraction)
}

func TestProcessorRun_EmbeddingCountMismatch(t *testing.T) {
	doc := testDocument()
	f := newProcessorFixture(t, doc, []byte(strings.Repeat("some searchable text here. ", 10)))
	f.embedder.returnCount = 1 // 无论多少分块都只返回一个向量

	err := f.processor.Run(context.Background(), doc.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCountMismatch)
	assert.Equal(t, 1, f.embedder.callCount(), "数量不一致不应重试")
	assert.Empty(t, f.vectors.stored("proj_p1"), "数量不一致时不应写入任何向量")
}

func TestProcessorRun_EmbeddingRetriesTransientFailure(t *testing.T) {
	doc := testDocument()
	f := newProcessorFixture(t, doc, []byte("short note"))
	f.embedder.failFirstN = 2

	err := f.processor.Run(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, f.embedder.callCount())
	assert.Equal(t, model.StatusCompleted, f.docs.get(doc.ID).Status)
}

func TestProcessorRun_VectorStorePartialAccept(t *testing.T) {
	doc := testDocument()
	f := newProcessorFixture(t, doc, []byte(strings.Repeat("chunked content body. ", 20)))
	f.vectors.accepted = 1 // 只接受一条

	err := f.processor.Run(context.Background(), doc.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrVectorStore)
	assert.Equal(t, model.StatusProcessing, f.docs.get(doc.ID).Status)
}

func TestProcessorRun_ReprocessCleansExistingVectors(t *testing.T) {
	doc := testDocument()
	f := newProcessorFixture(t, doc, []byte("fresh content"))

	// 预置一条旧向量，模拟上一次运行的残留
	_, err := f.vectors.Upsert(context.Background(), "proj_p1", []model.VectorRecord{
		{ID: "doc-1_99", Namespace: "proj_p1", DocumentID: "doc-1", ChunkIndex: 99},
	})
	require.NoError(t, err)

	require.NoError(t, f.processor.Run(context.Background(), doc.ID))

	assert.Contains(t, f.vectors.deletedKeys(), "proj_p1/doc-1")
	for _, r := range f.vectors.stored("proj_p1") {
		assert.NotEqual(t, 99, r.ChunkIndex, "旧向量应在写入前被清理")
	}
}

func TestProcessorRun_CanceledBeforeFinalWrite(t *testing.T) {
	doc := testDocument()
	f := newProcessorFixture(t, doc, nil)
	f.blobs.downloadErr = errors.New("连接被重置")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.processor.Run(ctx, doc.ID)
	require.Error(t, err)
	assert.Equal(t, model.StatusProcessing, f.docs.get(doc.ID).Status)
}
