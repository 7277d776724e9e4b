// Package pipeline 实现了文档向量化处理的核心流程。
package pipeline

import "errors"

// 管道的错误分类。所有管道内部错误都会包装其中一个哨兵，
// 以便上层通过 errors.Is 判断失败类别。
var (
	// ErrValidation 表示上传参数校验失败（扩展名或大小），在入队前同步返回。
	ErrValidation = errors.New("参数校验失败")
	// ErrStorage 表示对象存储读写或存在性检查失败。
	ErrStorage = errors.New("对象存储操作失败")
	// ErrExtraction 表示文本提取失败或文件类型不受支持。
	ErrExtraction = errors.New("文本提取失败")
	// ErrCountMismatch 表示向量数量与分块数量不一致。
	// 这是提供方或逻辑缺陷的信号，不参与重试。
	ErrCountMismatch = errors.New("向量数量与分块数量不一致")
	// ErrVectorStore 表示向量库写入在重试耗尽后仍然失败。
	ErrVectorStore = errors.New("向量库操作失败")
	// ErrTimeout 表示单次运行超出了配置的处理时限。
	ErrTimeout = errors.New("处理超时")
)

// maxErrorLen 是写入 processing_error 字段的错误信息长度上限。
const maxErrorLen = 1000

// truncateError 将错误信息截断到可持久化的长度。
func truncateError(msg string) string {
	runes := []rune(msg)
	if len(runes) <= maxErrorLen {
		return msg
	}
	return string(runes[:maxErrorLen])
}
