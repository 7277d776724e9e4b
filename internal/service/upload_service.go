// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"vectorflow-go/internal/config"
	"vectorflow-go/internal/model"
	"vectorflow-go/internal/pipeline"
	"vectorflow-go/internal/pipeline/extract"
	"vectorflow-go/internal/repository"
	"vectorflow-go/pkg/log"
	"vectorflow-go/pkg/tasks"
)

// existsRetryDelay 是对象写入后首次可见性检查失败时，二次检查前的等待时间。
const existsRetryDelay = 500 * time.Millisecond

// TaskProducer 将文档处理任务投递到消息队列。
type TaskProducer func(ctx context.Context, task tasks.DocumentProcessingTask) error

// UploadService 接口定义了文档上传入口的业务操作。
type UploadService interface {
	Upload(ctx context.Context, fileName string, data []byte, projectID string, userID uint) (*model.Document, error)
}

type uploadService struct {
	docRepo   repository.DocumentRepository
	blobs     pipeline.BlobStore
	produce   TaskProducer
	uploadCfg config.UploadConfig
	minioCfg  config.MinIOConfig
}

// NewUploadService 创建一个新的 UploadService 实例。
func NewUploadService(docRepo repository.DocumentRepository, blobs pipeline.BlobStore, produce TaskProducer, uploadCfg config.UploadConfig, minioCfg config.MinIOConfig) UploadService {
	return &uploadService{
		docRepo:   docRepo,
		blobs:     blobs,
		produce:   produce,
		uploadCfg: uploadCfg,
		minioCfg:  minioCfg,
	}
}

// Upload 接收一个完整的文件，完成校验、对象写入、记录创建并投递处理任务。
// 所有校验都在任何 I/O 之前完成，校验失败不留下任何痕迹。
func (s *uploadService) Upload(ctx context.Context, fileName string, data []byte, projectID string, userID uint) (*model.Document, error) {
	log.Infof("[UploadService] 收到上传请求, fileName: %s, projectID: %s, userID: %d, size: %d", fileName, projectID, userID, len(data))

	// 1. 前置校验
	if err := s.validate(fileName, data, projectID); err != nil {
		return nil, err
	}

	fileType, err := extract.ParseFileType(fileName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pipeline.ErrValidation, err)
	}

	// 2. 生成文档 ID 与对象路径
	docID := uuid.NewString()
	objectPath := fmt.Sprintf("projects/%s/%s_%s", projectID, docID, sanitizeFileName(fileName))
	bucket := s.minioCfg.BucketName

	// 3. 写入对象存储
	if err := s.blobs.Upload(ctx, data, objectPath, bucket, contentTypeFor(fileType)); err != nil {
		return nil, fmt.Errorf("%w: 写入对象存储失败: %v", pipeline.ErrStorage, err)
	}

	// 4. 写入后做可见性检查，失败则等待片刻重查一次
	if err := s.verifyObject(ctx, objectPath, bucket); err != nil {
		if delErr := s.blobs.Delete(ctx, objectPath, bucket); delErr != nil {
			log.Warnf("[UploadService] 回收不可见对象失败, path: %s, error: %v", objectPath, delErr)
		}
		return nil, err
	}

	// 5. 创建文档记录，初始状态为 processing。
	// 命名空间由 projectID 推导，处理成功时才随 completed 一并落库。
	doc := &model.Document{
		ID:            docID,
		ProjectID:     projectID,
		UserID:        userID,
		Name:          fileName,
		StoragePath:   objectPath,
		StorageBucket: bucket,
		FileType:      string(fileType),
		FileSize:      int64(len(data)),
		Status:        model.StatusProcessing,
	}
	if err := s.docRepo.Create(ctx, doc); err != nil {
		// 记录创建失败时回收已写入的对象，避免孤儿对象
		if delErr := s.blobs.Delete(ctx, objectPath, bucket); delErr != nil {
			log.Warnf("[UploadService] 回收对象失败, path: %s, error: %v", objectPath, delErr)
		}
		return nil, fmt.Errorf("创建文档记录失败: %w", err)
	}

	// 6. 投递处理任务
	task := tasks.DocumentProcessingTask{
		DocumentID:  doc.ID,
		ProjectID:   doc.ProjectID,
		UserID:      doc.UserID,
		FileName:    doc.Name,
		StoragePath: doc.StoragePath,
		FileType:    doc.FileType,
		FreshUpload: true,
	}
	if err := s.produce(ctx, task); err != nil {
		log.Errorf("[UploadService] 投递处理任务失败, documentID: %s, error: %v", doc.ID, err)
		// 任务没能进入队列，文档永远不会被处理，直接落失败终态并回收对象
		updateErr := s.docRepo.Update(ctx, doc.ID, map[string]interface{}{
			"status":           model.StatusFailed,
			"processing_error": "投递处理任务失败: " + err.Error(),
		})
		if updateErr != nil {
			log.Errorf("[UploadService] 写入失败终态时出错, documentID: %s, error: %v", doc.ID, updateErr)
		}
		if delErr := s.blobs.Delete(ctx, objectPath, bucket); delErr != nil {
			log.Warnf("[UploadService] 回收对象失败, path: %s, error: %v", objectPath, delErr)
		}
		return nil, fmt.Errorf("投递处理任务失败: %w", err)
	}

	log.Infof("[UploadService] 上传受理成功, documentID: %s, path: %s", doc.ID, objectPath)
	return doc, nil
}

// validate 对文件名、大小与项目 ID 做前置校验，任何失败都归为 ErrValidation。
func (s *uploadService) validate(fileName string, data []byte, projectID string) error {
	if projectID == "" {
		return fmt.Errorf("%w: 缺少项目 ID", pipeline.ErrValidation)
	}
	if strings.TrimSpace(fileName) == "" {
		return fmt.Errorf("%w: 缺少文件名", pipeline.ErrValidation)
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: 文件内容为空", pipeline.ErrValidation)
	}
	if s.uploadCfg.MaxSizeBytes > 0 && int64(len(data)) > s.uploadCfg.MaxSizeBytes {
		return fmt.Errorf("%w: 文件大小 %d 超过上限 %d", pipeline.ErrValidation, len(data), s.uploadCfg.MaxSizeBytes)
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	for _, allowed := range s.uploadCfg.AllowedExtensions {
		if ext == strings.ToLower(allowed) {
			return nil
		}
	}
	return fmt.Errorf("%w: 不支持的文件类型 %q", pipeline.ErrValidation, ext)
}

// verifyObject 检查刚写入的对象是否可见，首查失败后延迟重查一次。
func (s *uploadService) verifyObject(ctx context.Context, path, bucket string) error {
	exists, err := s.blobs.Exists(ctx, path, bucket)
	if err == nil && exists {
		return nil
	}
	if err != nil {
		log.Warnf("[UploadService] 首次可见性检查出错, path: %s, error: %v", path, err)
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", pipeline.ErrStorage, ctx.Err())
	case <-time.After(existsRetryDelay):
	}

	exists, err = s.blobs.Exists(ctx, path, bucket)
	if err != nil {
		return fmt.Errorf("%w: 可见性检查失败: %v", pipeline.ErrStorage, err)
	}
	if !exists {
		return fmt.Errorf("%w: 对象写入后不可见: %s", pipeline.ErrStorage, path)
	}
	return nil
}

// sanitizeFileName 去掉文件名中的路径成分与易引起歧义的字符。
func sanitizeFileName(fileName string) string {
	name := filepath.Base(fileName)
	replacer := strings.NewReplacer(" ", "_", "/", "_", "\\", "_", "#", "_", "?", "_")
	return replacer.Replace(name)
}

// contentTypeFor 根据文件类型给出对象存储使用的 Content-Type。
func contentTypeFor(ft extract.FileType) string {
	switch ft {
	case extract.FileTypePDF:
		return "application/pdf"
	case extract.FileTypeDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case extract.FileTypeCSV:
		return "text/csv"
	case extract.FileTypeJSON:
		return "application/json"
	case extract.FileTypeMD:
		return "text/markdown"
	default:
		return "text/plain"
	}
}
