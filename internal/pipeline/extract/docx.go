package extract

import (
	"context"
	"fmt"
	"strings"
)

// docxExtractor 通过 docconv 转换 DOCX，结果中包含非空段落与拍平后的表格行。
type docxExtractor struct{}

func (docxExtractor) Extract(_ context.Context, data []byte) (string, error) {
	const mimeType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	body := extractWithDocconv(data, mimeType)
	if strings.TrimSpace(body) == "" {
		return "", fmt.Errorf("DOCX 转换未产生任何文本")
	}

	// 去掉转换产生的空行，只保留有内容的段落
	lines := strings.Split(body, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n"), nil
}
