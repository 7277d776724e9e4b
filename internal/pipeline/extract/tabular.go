package extract

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"

	"vectorflow-go/pkg/log"
)

// csvExtractor 尝试按表格解析 CSV，把每行拼接成制表符分隔的一行文本；
// 解析失败时退回原始解码。
type csvExtractor struct{}

func (csvExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1 // 允许行宽不一致

	records, err := reader.ReadAll()
	if err != nil {
		log.Warnf("[Extract] CSV 解析失败，退回原始解码: %v", err)
		return plainTextExtractor{}.Extract(ctx, data)
	}

	lines := make([]string, 0, len(records))
	for _, record := range records {
		lines = append(lines, strings.Join(record, "\t"))
	}
	return strings.Join(lines, "\n"), nil
}

// jsonExtractor 将合法 JSON 重新格式化输出，非法 JSON 退回原始解码。
type jsonExtractor struct{}

func (jsonExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		log.Warnf("[Extract] JSON 解析失败，退回原始解码: %v", err)
		return plainTextExtractor{}.Extract(ctx, data)
	}
	return buf.String(), nil
}
