package pipeline

import "unicode"

// Chunk 是提取文本中一段带偏移的子串，管道内部的临时数据，不单独持久化。
// Start 与 End 是相对原文的 rune 偏移（左闭右开）。
type Chunk struct {
	Index int
	Start int
	End   int
	Text  string
}

// boundaryLookback 是分块边界向前回退寻找空白字符的最大距离（rune 数）。
const boundaryLookback = 64

// SplitText 将长文本切分为带重叠的有序分块序列。
// 窗口每次前进 size-overlap；当边界落在单词中间时，会在有限范围内
// 回退到最近的空白字符，找不到则保留硬切分。函数是纯函数：
// 相同输入总是产生相同的输出序列，且原文的每个字符至少被一个分块覆盖。
func SplitText(text string, size, overlap int) []Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if size <= 0 {
		return nil
	}
	if overlap >= size || overlap < 0 {
		// 非法的重叠配置退化为无重叠切分
		overlap = 0
	}

	var chunks []Chunk
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = adjustBoundary(runes, start, end)
		}

		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Start: start,
			End:   end,
			Text:  string(runes[start:end]),
		})

		if end == len(runes) {
			break
		}
		next := end - overlap
		if next <= start {
			// 保证窗口始终前进，避免在极端配置下死循环
			next = start + 1
		}
		start = next
	}
	return chunks
}

// adjustBoundary 在边界落在单词中间时，于有限回退范围内寻找空白字符。
// 返回调整后的边界（仍须大于 start），找不到空白则返回原边界。
func adjustBoundary(runes []rune, start, end int) int {
	// 边界两侧已有空白则无需调整
	if unicode.IsSpace(runes[end]) || unicode.IsSpace(runes[end-1]) {
		return end
	}

	lookback := boundaryLookback
	if end-start < lookback {
		lookback = end - start
	}
	for i := end - 1; i > end-lookback; i-- {
		if unicode.IsSpace(runes[i]) {
			if i+1 > start {
				return i + 1
			}
			break
		}
	}
	return end
}
