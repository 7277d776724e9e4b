package pipeline

import (
	"context"
	"fmt"
	"unicode/utf8"

	"vectorflow-go/internal/config"
	"vectorflow-go/internal/model"
	"vectorflow-go/internal/pipeline/extract"
	"vectorflow-go/pkg/log"
)

// Processor 封装了单个文档的处理流程：下载 -> 提取 -> 分块 -> 向量化 -> 写入。
// 各阶段严格串行，所有外部调用都经过注入的能力接口。
type Processor struct {
	repo       DocumentStore
	blobs      BlobStore
	extractors *extract.Registry
	batcher    *EmbeddingBatcher
	upserter   *VectorUpserter
	vectors    VectorStore
	tracker    *StatusTracker
	retry      RetryPolicy
	cfg        config.PipelineConfig
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(
	repo DocumentStore,
	blobs BlobStore,
	extractors *extract.Registry,
	batcher *EmbeddingBatcher,
	upserter *VectorUpserter,
	vectors VectorStore,
	tracker *StatusTracker,
	retry RetryPolicy,
	cfg config.PipelineConfig,
) *Processor {
	return &Processor{
		repo:       repo,
		blobs:      blobs,
		extractors: extractors,
		batcher:    batcher,
		upserter:   upserter,
		vectors:    vectors,
		tracker:    tracker,
		retry:      retry,
		cfg:        cfg,
	}
}

// Run 执行一次完整的管道运行并在成功时写入 completed 终态。
// 失败时返回错误，由调度器负责写入 failed 终态，
// 因此被取消的运行不会与调度器竞争最终的状态写入。
func (p *Processor) Run(ctx context.Context, documentID string) error {
	log.Infof("[Processor] 开始处理文档, documentID: %s", documentID)

	doc, err := p.repo.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("读取文档记录失败: %w", err)
	}

	// 1. 从对象存储下载文件
	log.Infof("[Processor] 步骤1: 下载对象, bucket: %s, path: %s", doc.StorageBucket, doc.StoragePath)
	data, err := p.blobs.Download(ctx, doc.StoragePath, doc.StorageBucket)
	if err != nil {
		return fmt.Errorf("%w: 下载对象失败: %w", ErrStorage, err)
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: 对象内容为空", ErrStorage)
	}
	log.Infof("[Processor] 步骤1: 下载成功, 大小: %d 字节", len(data))

	// 2. 按文件类型提取文本。提取是已下载字节的纯函数，可以安全重试。
	log.Infof("[Processor] 步骤2: 提取文本, fileType: %s", doc.FileType)
	extractor, err := p.extractors.ForType(extract.FileType(doc.FileType))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	var text string
	err = p.retry.Do(ctx, func() error {
		var exErr error
		text, exErr = extractor.Extract(ctx, data)
		return exErr
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	if text == "" {
		return fmt.Errorf("%w: 提取的文本内容为空", ErrExtraction)
	}
	log.Infof("[Processor] 步骤2: 提取成功, 内容长度: %d 字符", utf8.RuneCountInString(text))

	// 3. 文本分块
	log.Infof("[Processor] 步骤3: 文本分块, chunkSize: %d, chunkOverlap: %d", p.cfg.ChunkSize, p.cfg.ChunkOverlap)
	chunks := SplitText(text, p.cfg.ChunkSize, p.cfg.ChunkOverlap)
	if len(chunks) == 0 {
		return fmt.Errorf("%w: 未生成任何文本分块", ErrExtraction)
	}
	log.Infof("[Processor] 步骤3: 分块完成, 共 %d 个分块", len(chunks))

	// 4. 批量向量化
	log.Info("[Processor] 步骤4: 批量向量化")
	vectors, err := p.batcher.EmbedChunks(ctx, chunks)
	if err != nil {
		return err
	}

	// 5. 写入向量库。重新处理会先清理该文档既有的向量，避免残留旧分块（幂等）。
	namespace := model.VectorNamespace(doc.ProjectID)
	if err := p.vectors.DeleteByDocument(ctx, namespace, doc.ID); err != nil {
		log.Warnf("[Processor] 清理既有向量失败 (documentID=%s): %v", doc.ID, err)
	}
	log.Infof("[Processor] 步骤5: 写入向量库, namespace: %s", namespace)
	accepted, err := p.upserter.UpsertChunks(ctx, doc, chunks, vectors)
	if err != nil {
		return err
	}
	if accepted != len(chunks) {
		return fmt.Errorf("%w: 向量库接受 %d 条, 期望 %d 条", ErrVectorStore, accepted, len(chunks))
	}

	// 6. 写入成功终态。运行若已被取消，把最终状态写入留给调度器。
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := p.tracker.MarkCompleted(ctx, doc.ID, len(chunks), namespace); err != nil {
		return fmt.Errorf("写入完成状态失败: %w", err)
	}

	log.Infof("[Processor] 文档处理成功完成, documentID: %s, chunkCount: %d", doc.ID, len(chunks))
	return nil
}
