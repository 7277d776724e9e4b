package model

import "time"

// VectorRecord 定义了写入向量库的文档结构。
// 同一文档的所有向量共享同一个 namespace，ID 由文档 ID 与分块序号拼接而成。
type VectorRecord struct {
	ID          string    `json:"vector_id"` // 形如 {document_id}_{chunk_index}
	Namespace   string    `json:"namespace"`
	Embedding   []float32 `json:"vector"`
	DocumentID  string    `json:"document_id"`
	ProjectID   string    `json:"project_id"`
	FileName    string    `json:"file_name"`
	ChunkIndex  int       `json:"chunk_index"`
	ChunkText   string    `json:"chunk_text"`
	ProcessedAt time.Time `json:"processed_at"`
}

// VectorNamespace 根据项目 ID 计算向量库中的命名空间，同一项目的向量彼此隔离。
func VectorNamespace(projectID string) string {
	return "proj_" + projectID
}
