// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"vectorflow-go/internal/service"
	"vectorflow-go/pkg/log"
)

// DocumentHandler 负责处理所有与文档管理相关的 API 请求。
type DocumentHandler struct {
	docService service.DocumentService
}

// NewDocumentHandler 创建一个新的 DocumentHandler 实例。
func NewDocumentHandler(docService service.DocumentService) *DocumentHandler {
	return &DocumentHandler{docService: docService}
}

// List 处理获取项目文档列表的请求。
func (h *DocumentHandler) List(c *gin.Context) {
	projectID := c.Query("project_id")
	if projectID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 project_id"})
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))

	docs, total, err := h.docService.List(c.Request.Context(), projectID, page, size)
	if err != nil {
		log.Error("List: 获取文档列表失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取文档列表失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "获取文档列表成功",
		"data": gin.H{
			"documents": docs,
			"total":     total,
			"page":      page,
			"size":      size,
		},
	})
}

// Get 处理获取单个文档详情的请求。
func (h *DocumentHandler) Get(c *gin.Context) {
	id := c.Param("id")

	doc, err := h.docService.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "文档不存在"})
			return
		}
		log.Error("Get: 获取文档失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取文档失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    doc,
	})
}

// Download 处理获取文档下载地址的请求，返回限时预签名 URL。
func (h *DocumentHandler) Download(c *gin.Context) {
	id := c.Param("id")

	url, err := h.docService.DownloadURL(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "文档不存在"})
			return
		}
		log.Error("Download: 生成下载地址失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "生成下载地址失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    gin.H{"url": url},
	})
}

// Delete 处理删除文档的请求。
func (h *DocumentHandler) Delete(c *gin.Context) {
	id := c.Param("id")

	err := h.docService.Delete(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "文档不存在"})
			return
		}
		log.Error("Delete: 删除文档失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除文档失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "文档删除成功",
	})
}

// Reprocess 处理重新处理文档的请求，受理后返回 202。
func (h *DocumentHandler) Reprocess(c *gin.Context) {
	id := c.Param("id")

	doc, err := h.docService.Reprocess(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "文档不存在"})
			return
		}
		log.Error("Reprocess: 重新处理受理失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "重新处理受理失败"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"code":    http.StatusAccepted,
		"message": "重新处理已受理",
		"data": gin.H{
			"documentId": doc.ID,
			"status":     doc.Status,
		},
	})
}

// Stats 处理获取项目统计信息的请求。
func (h *DocumentHandler) Stats(c *gin.Context) {
	projectID := c.Param("projectId")

	stats, err := h.docService.Stats(c.Request.Context(), projectID)
	if err != nil {
		log.Error("Stats: 获取项目统计失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取项目统计失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    stats,
	})
}
