// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"vectorflow-go/internal/model"
	"vectorflow-go/internal/pipeline"
	"vectorflow-go/internal/service"
	"vectorflow-go/pkg/log"
)

// UploadHandler 负责处理文档上传请求。
type UploadHandler struct {
	uploadService service.UploadService
}

// NewUploadHandler 创建一个新的 UploadHandler 实例。
func NewUploadHandler(uploadService service.UploadService) *UploadHandler {
	return &UploadHandler{uploadService: uploadService}
}

// Upload 处理文档上传请求。请求为 multipart 表单，包含 file 与 project_id 字段。
// 受理成功返回 202，文档进入后台处理。
func (h *UploadHandler) Upload(c *gin.Context) {
	projectID := c.PostForm("project_id")
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 file 字段"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		log.Errorf("Upload: 打开上传文件失败, error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取上传文件失败"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		log.Errorf("Upload: 读取上传文件失败, error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取上传文件失败"})
		return
	}

	userVal, _ := c.Get("user")
	user, ok := userVal.(*model.User)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户信息"})
		return
	}

	doc, err := h.uploadService.Upload(c.Request.Context(), fileHeader.Filename, data, projectID, user.ID)
	if err != nil {
		if errors.Is(err, pipeline.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Errorf("Upload: 上传受理失败, fileName: %s, error: %v", fileHeader.Filename, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "上传受理失败"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"code":    http.StatusAccepted,
		"message": "上传已受理，文档正在后台处理",
		"data": gin.H{
			"documentId": doc.ID,
			"status":     doc.Status,
		},
	})
}
