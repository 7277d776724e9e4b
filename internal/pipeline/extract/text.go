package extract

import (
	"context"
	"strings"
)

// plainTextExtractor 处理 txt 与 md：按 UTF-8 解码，非法字节用替换符代替。
type plainTextExtractor struct{}

func (plainTextExtractor) Extract(_ context.Context, data []byte) (string, error) {
	return strings.ToValidUTF8(string(data), "�"), nil
}
