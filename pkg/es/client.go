// Package es 提供了与 Elasticsearch 交互的客户端功能。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"vectorflow-go/internal/config"
	"vectorflow-go/internal/model"
	"vectorflow-go/pkg/log"
)

var ESClient *elasticsearch.Client

// InitES 初始化 Elasticsearch 客户端并确保向量索引存在。
// dims 是索引映射中 dense_vector 的维度，来自 embedding 配置。
func InitES(esCfg config.ElasticsearchConfig, dims int) error {
	cfg := elasticsearch.Config{
		Addresses: []string{esCfg.Addresses},
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return err
	}
	ESClient = client
	return createIndexIfNotExists(esCfg.IndexName, dims)
}

// createIndexIfNotExists 检查索引是否存在，如果不存在则创建它
func createIndexIfNotExists(indexName string, dims int) error {
	res, err := ESClient.Indices.Exists([]string{indexName})
	if err != nil {
		log.Errorf("检查索引是否存在时出错: %v", err)
		return err
	}
	// 如果 res.StatusCode 是 200，说明索引已存在
	if !res.IsError() && res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", indexName)
		return nil
	}
	// 如果 res.StatusCode 是 404，说明索引不存在，需要创建
	if res.StatusCode != http.StatusNotFound {
		log.Errorf("检查索引 '%s' 是否存在时收到意外的状态码: %d", indexName, res.StatusCode)
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	// namespace 作为 keyword 字段实现项目间的向量隔离，
	// 向量维度由 embedding 配置给出，使用 cosine 相似度
	mapping := fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"vector_id": { "type": "keyword" },
				"namespace": { "type": "keyword" },
				"document_id": { "type": "keyword" },
				"project_id": { "type": "keyword" },
				"file_name": { "type": "keyword" },
				"chunk_index": { "type": "integer" },
				"chunk_text": { "type": "text" },
				"vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				},
				"processed_at": { "type": "date" }
			}
		}
	}`, dims)

	res, err = ESClient.Indices.Create(
		indexName,
		ESClient.Indices.Create.WithBody(strings.NewReader(mapping)),
	)

	if err != nil {
		log.Errorf("创建索引 '%s' 失败: %v", indexName, err)
		return err
	}
	if res.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", indexName, res.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}

	log.Infof("索引 '%s' 创建成功", indexName)
	return nil
}

// VectorIndex 以向量库能力的形式包装全局 ES 客户端，
// 所有操作都限定在单个索引内，用 namespace 字段做隔离。
type VectorIndex struct {
	indexName string
}

// NewVectorIndex 创建一个新的 VectorIndex，要求 InitES 已被调用。
func NewVectorIndex(indexName string) *VectorIndex {
	return &VectorIndex{indexName: indexName}
}

// bulkResponse 只解析批量写入响应中需要的部分。
type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		Status int `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

// Upsert 以单次 bulk 请求写入一批向量记录，返回被接受的数量。
// 文档 ID 使用 vector_id，重复写入同一分块会覆盖旧值。
func (v *VectorIndex) Upsert(ctx context.Context, namespace string, records []model.VectorRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	for _, rec := range records {
		meta := fmt.Sprintf(`{"index":{"_index":%q,"_id":%q}}`, v.indexName, rec.ID)
		buf.WriteString(meta)
		buf.WriteByte('\n')
		docBytes, err := json.Marshal(rec)
		if err != nil {
			return 0, fmt.Errorf("序列化向量记录失败: %w", err)
		}
		buf.Write(docBytes)
		buf.WriteByte('\n')
	}

	res, err := ESClient.Bulk(
		bytes.NewReader(buf.Bytes()),
		ESClient.Bulk.WithContext(ctx),
		ESClient.Bulk.WithRefresh("true"),
	)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("批量写入向量到 Elasticsearch 出错: %s", res.String())
		return 0, fmt.Errorf("批量写入向量失败: %s", res.Status())
	}

	var bulkRes bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&bulkRes); err != nil {
		return 0, fmt.Errorf("解析批量写入响应失败: %w", err)
	}

	accepted := 0
	for _, item := range bulkRes.Items {
		for _, result := range item {
			if result.Status >= 200 && result.Status < 300 {
				accepted++
			} else if result.Error != nil {
				log.Warnf("[VectorIndex] 向量写入被拒绝, type: %s, reason: %s", result.Error.Type, result.Error.Reason)
			}
		}
	}

	log.Infof("[VectorIndex] 批量写入完成, namespace: %s, 提交: %d, 接受: %d", namespace, len(records), accepted)
	return accepted, nil
}

// DeleteByDocument 删除指定命名空间下某文档的全部向量。
func (v *VectorIndex) DeleteByDocument(ctx context.Context, namespace, documentID string) error {
	query := fmt.Sprintf(`{
		"query": {
			"bool": {
				"filter": [
					{ "term": { "namespace": %q } },
					{ "term": { "document_id": %q } }
				]
			}
		}
	}`, namespace, documentID)

	res, err := ESClient.DeleteByQuery(
		[]string{v.indexName},
		strings.NewReader(query),
		ESClient.DeleteByQuery.WithContext(ctx),
		ESClient.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("按文档删除向量出错: %s", res.String())
		return fmt.Errorf("按文档删除向量失败: %s", res.Status())
	}
	return nil
}

// Stats 返回指定命名空间下的向量总数。
func (v *VectorIndex) Stats(ctx context.Context, namespace string) (int64, error) {
	query := fmt.Sprintf(`{ "query": { "term": { "namespace": %q } } }`, namespace)

	res, err := ESClient.Count(
		ESClient.Count.WithContext(ctx),
		ESClient.Count.WithIndex(v.indexName),
		ESClient.Count.WithBody(strings.NewReader(query)),
	)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, fmt.Errorf("统计命名空间向量数失败: %s", res.Status())
	}

	var countRes struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&countRes); err != nil {
		return 0, fmt.Errorf("解析统计响应失败: %w", err)
	}
	return countRes.Count, nil
}
