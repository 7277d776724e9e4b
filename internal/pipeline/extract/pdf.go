package extract

import (
	"bytes"
	"context"
	"strings"

	"code.sajari.com/docconv"
	"github.com/ledongthuc/pdf"

	"vectorflow-go/pkg/log"
)

// pdfPlaceholder 在主备两种提取方式都拿不到文本时返回，
// 让管道记录一个明确的"无可读文本"结果而不是崩溃。
const pdfPlaceholder = "[未能从该 PDF 提取到可读文本，文件可能为扫描件或受保护]"

// pdfExtractor 逐页提取 PDF 文本。单页失败只记录日志并跳过；
// 主提取器一个字都没拿到时，退回 docconv 做整体转换。
type pdfExtractor struct{}

func (pdfExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	text := extractByPage(ctx, data)
	if strings.TrimSpace(text) != "" {
		return text, nil
	}

	log.Warnf("[Extract] PDF 逐页提取无文本，尝试备用提取方式")
	if fallback := extractWithDocconv(data, "application/pdf"); strings.TrimSpace(fallback) != "" {
		return fallback, nil
	}
	return pdfPlaceholder, nil
}

// extractByPage 是主提取路径：逐页读取纯文本。
func extractByPage(ctx context.Context, data []byte) string {
	defer func() {
		// 部分损坏的 PDF 会让解析器 panic，这里吞掉并交给备用路径
		if r := recover(); r != nil {
			log.Warnf("[Extract] PDF 解析器异常退出: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		log.Warnf("[Extract] 打开 PDF 失败: %v", err)
		return ""
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		if ctx.Err() != nil {
			return sb.String()
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			log.Warnf("[Extract] 第 %d 页提取失败，跳过: %v", i, err)
			continue
		}
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		sb.WriteString(pageText)
		sb.WriteString("\n")
	}
	return sb.String()
}

// extractWithDocconv 是备用提取路径。
func extractWithDocconv(data []byte, mimeType string) string {
	res, err := docconv.Convert(bytes.NewReader(data), mimeType, true)
	if err != nil {
		log.Warnf("[Extract] 备用提取失败: %v", err)
		return ""
	}
	return res.Body
}
