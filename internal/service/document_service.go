// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"fmt"
	"time"

	"vectorflow-go/internal/model"
	"vectorflow-go/internal/pipeline"
	"vectorflow-go/internal/repository"
	"vectorflow-go/pkg/log"
	"vectorflow-go/pkg/tasks"
)

// ProjectStats 汇总了一个项目下的文档与向量统计。
type ProjectStats struct {
	ProjectID      string           `json:"project_id"`
	DocumentCounts map[string]int64 `json:"document_counts"`
	TotalDocuments int64            `json:"total_documents"`
	VectorCount    int64            `json:"vector_count"`
}

// URLSigner 为对象生成限时下载地址，以函数注入便于测试替换。
type URLSigner func(ctx context.Context, path, bucket string, expiry time.Duration) (string, error)

// downloadURLExpiry 是预签名下载地址的有效期。
const downloadURLExpiry = 15 * time.Minute

// DocumentService 接口定义了文档生命周期的业务操作。
type DocumentService interface {
	List(ctx context.Context, projectID string, page, size int) ([]model.Document, int64, error)
	Get(ctx context.Context, id string) (*model.Document, error)
	DownloadURL(ctx context.Context, id string) (string, error)
	Delete(ctx context.Context, id string) error
	Reprocess(ctx context.Context, id string) (*model.Document, error)
	Stats(ctx context.Context, projectID string) (*ProjectStats, error)
}

type documentService struct {
	docRepo   repository.DocumentRepository
	blobs     pipeline.BlobStore
	vectors   pipeline.VectorStore
	scheduler *pipeline.Scheduler
	produce   TaskProducer
	signURL   URLSigner
}

// NewDocumentService 创建一个新的 DocumentService 实例。
func NewDocumentService(docRepo repository.DocumentRepository, blobs pipeline.BlobStore, vectors pipeline.VectorStore, scheduler *pipeline.Scheduler, produce TaskProducer, signURL URLSigner) DocumentService {
	return &documentService{
		docRepo:   docRepo,
		blobs:     blobs,
		vectors:   vectors,
		scheduler: scheduler,
		produce:   produce,
		signURL:   signURL,
	}
}

// List 分页返回指定项目下的文档记录。
func (s *documentService) List(ctx context.Context, projectID string, page, size int) ([]model.Document, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	return s.docRepo.FindByProject(ctx, projectID, (page-1)*size, size)
}

// Get 返回单条文档记录。
func (s *documentService) Get(ctx context.Context, id string) (*model.Document, error) {
	return s.docRepo.GetByID(ctx, id)
}

// DownloadURL 为文档的原始对象生成限时下载地址。
func (s *documentService) DownloadURL(ctx context.Context, id string) (string, error) {
	doc, err := s.docRepo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	url, err := s.signURL(ctx, doc.StoragePath, doc.StorageBucket, downloadURLExpiry)
	if err != nil {
		return "", fmt.Errorf("生成下载地址失败: %w", err)
	}
	return url, nil
}

// Delete 级联删除一个文档：先取消可能还在进行的运行，
// 再依次清理向量、对象与数据库记录。向量与对象的删除失败只记录日志，
// 记录删除失败才算删除失败。
func (s *documentService) Delete(ctx context.Context, id string) error {
	doc, err := s.docRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	s.scheduler.Cancel(id)

	namespace := model.VectorNamespace(doc.ProjectID)
	if err := s.vectors.DeleteByDocument(ctx, namespace, doc.ID); err != nil {
		log.Warnf("[DocumentService] 删除向量失败, documentID: %s, error: %v", doc.ID, err)
	}
	if err := s.blobs.Delete(ctx, doc.StoragePath, doc.StorageBucket); err != nil {
		log.Warnf("[DocumentService] 删除对象失败, path: %s, error: %v", doc.StoragePath, err)
	}

	if err := s.docRepo.Delete(ctx, doc.ID); err != nil {
		return fmt.Errorf("删除文档记录失败: %w", err)
	}

	log.Infof("[DocumentService] 文档已删除, documentID: %s, projectID: %s", doc.ID, doc.ProjectID)
	return nil
}

// Reprocess 对已有文档重新触发一次处理。记录先回到 processing 状态并清空错误，
// 任务走与上传相同的队列，调度器会抑制同一文档的并发运行。
func (s *documentService) Reprocess(ctx context.Context, id string) (*model.Document, error) {
	doc, err := s.docRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.scheduler.Running(doc.ID) {
		log.Infof("[DocumentService] 文档已有运行在进行, 重新处理请求被忽略, documentID: %s", doc.ID)
		return doc, nil
	}

	err = s.docRepo.Update(ctx, doc.ID, map[string]interface{}{
		"status":           model.StatusProcessing,
		"processing_error": "",
	})
	if err != nil {
		return nil, fmt.Errorf("重置文档状态失败: %w", err)
	}
	doc.Status = model.StatusProcessing
	doc.ProcessingError = ""

	task := tasks.DocumentProcessingTask{
		DocumentID:  doc.ID,
		ProjectID:   doc.ProjectID,
		UserID:      doc.UserID,
		FileName:    doc.Name,
		StoragePath: doc.StoragePath,
		FileType:    doc.FileType,
		FreshUpload: false,
	}
	if err := s.produce(ctx, task); err != nil {
		return nil, fmt.Errorf("投递重新处理任务失败: %w", err)
	}

	log.Infof("[DocumentService] 重新处理已受理, documentID: %s", doc.ID)
	return doc, nil
}

// Stats 汇总指定项目的文档状态分布与向量总量。
func (s *documentService) Stats(ctx context.Context, projectID string) (*ProjectStats, error) {
	counts, err := s.docRepo.CountByStatus(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("统计文档状态失败: %w", err)
	}

	var total int64
	for _, c := range counts {
		total += c
	}

	vectorCount, err := s.vectors.Stats(ctx, model.VectorNamespace(projectID))
	if err != nil {
		log.Warnf("[DocumentService] 统计向量数失败, projectID: %s, error: %v", projectID, err)
		vectorCount = -1 // 向量库暂不可用时以 -1 标记
	}

	return &ProjectStats{
		ProjectID:      projectID,
		DocumentCounts: counts,
		TotalDocuments: total,
		VectorCount:    vectorCount,
	}, nil
}
