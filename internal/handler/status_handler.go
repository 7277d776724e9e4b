// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"

	"vectorflow-go/internal/service"
	"vectorflow-go/internal/status"
	"vectorflow-go/pkg/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// StatusHandler 通过 WebSocket 向客户端推送文档状态变更。
type StatusHandler struct {
	docService service.DocumentService
	hub        *status.Hub
}

// NewStatusHandler 创建一个新的 StatusHandler 实例。
func NewStatusHandler(docService service.DocumentService, hub *status.Hub) *StatusHandler {
	return &StatusHandler{docService: docService, hub: hub}
}

// Stream 处理一个传入的状态订阅 WebSocket 连接。
// 连接建立后先推送文档的当前状态，之后转发状态变更事件，
// 直到文档到达终态或客户端断开。
func (h *StatusHandler) Stream(c *gin.Context) {
	id := c.Param("id")

	doc, err := h.docService.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "文档不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取文档失败"})
		return
	}

	// 订阅要先于快照推送，两者之间的状态变更不会丢失
	events, cancel := h.hub.Subscribe(id)
	defer cancel()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infof("状态订阅连接已建立, documentID: %s", id)

	snapshot := status.Event{
		DocumentID: doc.ID,
		Status:     doc.Status,
		Error:      doc.ProcessingError,
		ChunkCount: doc.ChunkCount,
		At:         doc.UpdatedAt,
	}
	if err := conn.WriteJSON(snapshot); err != nil {
		log.Warnf("推送状态快照失败, documentID: %s, error: %v", id, err)
		return
	}

	// 读协程用于感知客户端断开
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			log.Infof("状态订阅客户端断开, documentID: %s", id)
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(evt); err != nil {
				log.Warnf("推送状态事件失败, documentID: %s, error: %v", id, err)
				return
			}
			if isTerminal(evt.Status) {
				// 终态推送完毕后给客户端留出读取时间再关闭
				deadline := time.Now().Add(time.Second)
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "文档已到达终态"), deadline)
				return
			}
		}
	}
}

// isTerminal 判断状态是否为终态。
func isTerminal(s string) bool {
	return s == "completed" || s == "failed"
}
