package pipeline

import (
	"context"

	"vectorflow-go/internal/model"
	"vectorflow-go/pkg/log"
)

// CleanupManager 在首次上传的运行以失败告终时做补偿清理，
// 删除已写入的对象与向量，避免为永远到不了 completed 的文档泄漏存储。
// 所有删除都是幂等的："目标已不存在"按成功处理。
type CleanupManager struct {
	blobs   BlobStore
	vectors VectorStore
}

// NewCleanupManager 创建一个新的 CleanupManager。
func NewCleanupManager(blobs BlobStore, vectors VectorStore) *CleanupManager {
	return &CleanupManager{blobs: blobs, vectors: vectors}
}

// Compensate 清理指定文档遗留的对象与向量。清理失败只记录日志，
// 不影响已经写入的失败终态。
func (m *CleanupManager) Compensate(ctx context.Context, doc *model.Document) {
	log.Infof("[CleanupManager] 开始补偿清理, documentID: %s, path: %s", doc.ID, doc.StoragePath)

	if err := m.blobs.Delete(ctx, doc.StoragePath, doc.StorageBucket); err != nil {
		log.Warnf("[CleanupManager] 删除对象失败, path: %s, error: %v", doc.StoragePath, err)
	}

	namespace := model.VectorNamespace(doc.ProjectID)
	if err := m.vectors.DeleteByDocument(ctx, namespace, doc.ID); err != nil {
		log.Warnf("[CleanupManager] 删除向量失败, namespace: %s, documentID: %s, error: %v", namespace, doc.ID, err)
	}
}
