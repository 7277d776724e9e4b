// Package extract 实现了按文件类型分派的文本提取器。
// 提取是对已下载字节的纯函数，因此可以安全地参与重试。
package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// FileType 是受支持文件类型的标签。
type FileType string

const (
	FileTypeTXT  FileType = "txt"
	FileTypeMD   FileType = "md"
	FileTypePDF  FileType = "pdf"
	FileTypeDOCX FileType = "docx"
	FileTypeCSV  FileType = "csv"
	FileTypeJSON FileType = "json"
)

// ErrUnsupportedType 表示文件类型不在支持列表中。
var ErrUnsupportedType = errors.New("不支持的文件类型")

// Extractor 定义了单一文件类型的文本提取行为。
type Extractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// ParseFileType 根据文件名的扩展名解析文件类型标签。
func ParseFileType(fileName string) (FileType, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	switch FileType(ext) {
	case FileTypeTXT, FileTypeMD, FileTypePDF, FileTypeDOCX, FileTypeCSV, FileTypeJSON:
		return FileType(ext), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
}

// Registry 持有各文件类型对应的提取器。
type Registry struct {
	handlers map[FileType]Extractor
}

// NewRegistry 创建一个注册了全部内置提取器的 Registry。
func NewRegistry() *Registry {
	return &Registry{
		handlers: map[FileType]Extractor{
			FileTypeTXT:  plainTextExtractor{},
			FileTypeMD:   plainTextExtractor{},
			FileTypePDF:  pdfExtractor{},
			FileTypeDOCX: docxExtractor{},
			FileTypeCSV:  csvExtractor{},
			FileTypeJSON: jsonExtractor{},
		},
	}
}

// ForType 返回指定类型的提取器，类型未注册时返回 ErrUnsupportedType。
func (r *Registry) ForType(ft FileType) (Extractor, error) {
	h, ok := r.handlers[ft]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, ft)
	}
	return h, nil
}
