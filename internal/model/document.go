// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// 文档处理状态。状态机为单向：processing -> completed 或 processing -> failed，
// 终态之间不会自动迁移，重新处理会以一次全新的运行覆盖既有状态。
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Document 定义了 documents 表的 ORM 模型。
// 它是管道的持久化工作单元，记录文件元数据与处理状态。
type Document struct {
	ID              string            `gorm:"type:varchar(36);primaryKey" json:"id"`
	ProjectID       string            `gorm:"type:varchar(36);not null;index" json:"projectId"`
	UserID          uint              `gorm:"not null;index" json:"userId"`
	Name            string            `gorm:"type:varchar(255);not null" json:"name"`
	StoragePath     string            `gorm:"type:varchar(512);not null" json:"storagePath"`
	StorageBucket   string            `gorm:"type:varchar(100);not null" json:"storageBucket"`
	FileType        string            `gorm:"type:varchar(10);not null" json:"fileType"`
	FileSize        int64             `gorm:"not null" json:"fileSize"`
	Status          string            `gorm:"type:varchar(20);not null;default:processing" json:"status"`
	ProcessingError string            `gorm:"type:varchar(1000)" json:"processingError,omitempty"`
	ChunkCount      int               `gorm:"not null;default:0" json:"chunkCount"`
	VectorNamespace string            `gorm:"type:varchar(100)" json:"vectorNamespace"`
	Metadata        map[string]string `gorm:"serializer:json;type:json" json:"metadata,omitempty"`
	CreatedAt       time.Time         `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time         `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Document) TableName() string {
	return "documents"
}
