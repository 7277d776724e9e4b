package pipeline

import (
	"context"

	"vectorflow-go/internal/model"
)

// 管道仅依赖以下四个能力接口，不直接触碰任何具体厂商的客户端。
// pkg/storage、pkg/embedding、pkg/es 与 internal/repository 分别提供实现。

// BlobStore 定义了对象存储能力。
type BlobStore interface {
	Upload(ctx context.Context, data []byte, path, bucket, contentType string) error
	Download(ctx context.Context, path, bucket string) ([]byte, error)
	Exists(ctx context.Context, path, bucket string) (bool, error)
	Delete(ctx context.Context, path, bucket string) error
}

// Embedder 定义了向量化能力，Embed 对输入文本做单次批量调用。
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// VectorStore 定义了向量库能力。Upsert 返回实际被接受的向量数量。
type VectorStore interface {
	Upsert(ctx context.Context, namespace string, records []model.VectorRecord) (int, error)
	DeleteByDocument(ctx context.Context, namespace, documentID string) error
	Stats(ctx context.Context, namespace string) (int64, error)
}

// DocumentStore 定义了文档记录的持久化能力。
type DocumentStore interface {
	GetByID(ctx context.Context, id string) (*model.Document, error)
	Update(ctx context.Context, id string, fields map[string]interface{}) error
}
