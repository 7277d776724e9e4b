package pipeline

import (
	"context"
	"time"

	"vectorflow-go/internal/model"
	"vectorflow-go/internal/status"
	"vectorflow-go/pkg/log"
)

// StatusTracker 负责文档状态机的持久化迁移。
// 状态只会从 processing 迁移到 completed 或 failed，chunk_count 与
// vector_namespace 只随 completed 一起写入，失败时绝不记录部分成功。
type StatusTracker struct {
	repo DocumentStore
	hub  *status.Hub
}

// NewStatusTracker 创建一个新的 StatusTracker。hub 可以为 nil。
func NewStatusTracker(repo DocumentStore, hub *status.Hub) *StatusTracker {
	return &StatusTracker{repo: repo, hub: hub}
}

// MarkCompleted 以一次逻辑更新写入成功终态：状态、真实分块数与
// 命名空间一起落库，并清除既有的错误信息。
func (t *StatusTracker) MarkCompleted(ctx context.Context, documentID string, chunkCount int, namespace string) error {
	err := t.repo.Update(ctx, documentID, map[string]interface{}{
		"status":           model.StatusCompleted,
		"chunk_count":      chunkCount,
		"vector_namespace": namespace,
		"processing_error": "",
	})
	if err != nil {
		log.Errorf("[StatusTracker] 写入 completed 状态失败, documentID: %s, error: %v", documentID, err)
		return err
	}
	log.Infof("[StatusTracker] 文档处理完成, documentID: %s, chunkCount: %d, namespace: %s", documentID, chunkCount, namespace)
	t.publish(documentID, model.StatusCompleted, "", chunkCount)
	return nil
}

// MarkFailed 写入失败终态，错误信息截断后持久化，后续阶段全部跳过。
func (t *StatusTracker) MarkFailed(ctx context.Context, documentID string, cause error) error {
	msg := truncateError(cause.Error())
	err := t.repo.Update(ctx, documentID, map[string]interface{}{
		"status":           model.StatusFailed,
		"processing_error": msg,
	})
	if err != nil {
		log.Errorf("[StatusTracker] 写入 failed 状态失败, documentID: %s, error: %v", documentID, err)
		return err
	}
	log.Warnf("[StatusTracker] 文档处理失败, documentID: %s, 原因: %s", documentID, msg)
	t.publish(documentID, model.StatusFailed, msg, 0)
	return nil
}

func (t *StatusTracker) publish(documentID, st, errMsg string, chunkCount int) {
	if t.hub == nil {
		return
	}
	t.hub.Publish(status.Event{
		DocumentID: documentID,
		Status:     st,
		Error:      errMsg,
		ChunkCount: chunkCount,
		At:         time.Now(),
	})
}
