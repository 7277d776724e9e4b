package pipeline

import (
	"context"
	"fmt"
	"time"

	"vectorflow-go/internal/model"
	"vectorflow-go/pkg/log"
)

// VectorUpserter 为每个分块构建向量记录并以单次批量调用写入向量库，
// 重试策略与 EmbeddingBatcher 一致。
type VectorUpserter struct {
	store VectorStore
	retry RetryPolicy
}

// NewVectorUpserter 创建一个新的 VectorUpserter。
func NewVectorUpserter(store VectorStore, retry RetryPolicy) *VectorUpserter {
	return &VectorUpserter{store: store, retry: retry}
}

// UpsertChunks 将分块与对应向量写入指定命名空间，返回实际被接受的数量。
// 调用方需要用返回值与期望的分块数量交叉校验后才能宣告成功。
func (u *VectorUpserter) UpsertChunks(ctx context.Context, doc *model.Document, chunks []Chunk, vectors [][]float32) (int, error) {
	if len(chunks) != len(vectors) {
		return 0, fmt.Errorf("%w: 分块 %d, 向量 %d", ErrCountMismatch, len(chunks), len(vectors))
	}

	namespace := model.VectorNamespace(doc.ProjectID)
	now := time.Now()
	records := make([]model.VectorRecord, len(chunks))
	for i, c := range chunks {
		records[i] = model.VectorRecord{
			ID:          fmt.Sprintf("%s_%d", doc.ID, c.Index),
			Namespace:   namespace,
			Embedding:   vectors[i],
			DocumentID:  doc.ID,
			ProjectID:   doc.ProjectID,
			FileName:    doc.Name,
			ChunkIndex:  c.Index,
			ChunkText:   c.Text,
			ProcessedAt: now,
		}
	}

	var accepted int
	err := u.retry.Do(ctx, func() error {
		var callErr error
		accepted, callErr = u.store.Upsert(ctx, namespace, records)
		return callErr
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrVectorStore, err)
	}

	log.Infof("[VectorUpserter] 向量写入完成, namespace: %s, documentID: %s, accepted: %d", namespace, doc.ID, accepted)
	return accepted, nil
}
