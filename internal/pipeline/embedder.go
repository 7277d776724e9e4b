package pipeline

import (
	"context"
	"fmt"

	"vectorflow-go/pkg/log"
)

// EmbeddingBatcher 将一个文档的全部分块以单次批量调用交给向量化提供方，
// 并对调用本身应用有界的指数退避重试。
type EmbeddingBatcher struct {
	provider Embedder
	retry    RetryPolicy
}

// NewEmbeddingBatcher 创建一个新的 EmbeddingBatcher。
func NewEmbeddingBatcher(provider Embedder, retry RetryPolicy) *EmbeddingBatcher {
	return &EmbeddingBatcher{provider: provider, retry: retry}
}

// EmbedChunks 对分块文本做批量向量化。
// 返回向量数量与分块数量不一致时返回 ErrCountMismatch，
// 该错误属于终态，不参与重试。
func (b *EmbeddingBatcher) EmbedChunks(ctx context.Context, chunks []Chunk) ([][]float32, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	var vectors [][]float32
	err := b.retry.Do(ctx, func() error {
		var callErr error
		vectors, callErr = b.provider.Embed(ctx, texts)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("向量化调用失败: %w", err)
	}

	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: 期望 %d, 实际 %d", ErrCountMismatch, len(chunks), len(vectors))
	}
	if dim := b.provider.Dimension(); dim > 0 {
		for i, v := range vectors {
			if len(v) != dim {
				return nil, fmt.Errorf("%w: 第 %d 个向量维度为 %d, 期望 %d", ErrCountMismatch, i, len(v), dim)
			}
		}
	}

	log.Infof("[EmbeddingBatcher] 批量向量化完成, 分块数: %d, 维度: %d", len(chunks), b.provider.Dimension())
	return vectors, nil
}
