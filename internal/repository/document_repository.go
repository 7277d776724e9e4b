// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"context"

	"gorm.io/gorm"

	"vectorflow-go/internal/model"
)

// DocumentRepository 接口定义了文档记录的持久化操作。
type DocumentRepository interface {
	Create(ctx context.Context, doc *model.Document) error
	GetByID(ctx context.Context, id string) (*model.Document, error)
	Update(ctx context.Context, id string, fields map[string]interface{}) error
	Delete(ctx context.Context, id string) error
	FindByProject(ctx context.Context, projectID string, offset, limit int) ([]model.Document, int64, error)
	CountByStatus(ctx context.Context, projectID string) (map[string]int64, error)
}

// documentRepository 是 DocumentRepository 接口的 GORM 实现。
type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建一个新的 DocumentRepository 实例。
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

// Create 在数据库中创建一个新的文档记录。
func (r *documentRepository) Create(ctx context.Context, doc *model.Document) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

// GetByID 根据文档 ID 查找一条文档记录。
func (r *documentRepository) GetByID(ctx context.Context, id string) (*model.Document, error) {
	var doc model.Document
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// Update 以字段映射的方式更新文档记录，多个字段在同一条 UPDATE 中写入。
func (r *documentRepository) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.Document{}).Where("id = ?", id).Updates(fields).Error
}

// Delete 删除一条文档记录。
func (r *documentRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Document{}).Error
}

// FindByProject 分页检索指定项目下的文档记录。
// 它返回文档列表、总记录数和可能发生的错误。
func (r *documentRepository) FindByProject(ctx context.Context, projectID string, offset, limit int) ([]model.Document, int64, error) {
	var docs []model.Document
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Document{}).Where("project_id = ?", projectID)

	// 首先计算总记录数
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// 然后根据偏移量和限制获取当前页的数据
	err := db.Order("created_at desc").Offset(offset).Limit(limit).Find(&docs).Error
	if err != nil {
		return nil, 0, err
	}

	return docs, total, nil
}

// CountByStatus 统计指定项目下各状态的文档数量。
func (r *documentRepository) CountByStatus(ctx context.Context, projectID string) (map[string]int64, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&model.Document{}).
		Select("status, count(*) as count").
		Where("project_id = ?", projectID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, rw := range rows {
		counts[rw.Status] = rw.Count
	}
	return counts, nil
}
