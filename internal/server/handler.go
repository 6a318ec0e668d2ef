package server

import (
	"errors"
	"net/http"

	"chatsync/internal/models"
	"chatsync/internal/service"
	"chatsync/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Handler 聚合检查接口的 handler，依赖注入 service 层。
type Handler struct {
	snaps   service.SnapshotSource
	roomSvc *service.RoomService
	msgSvc  *service.MessageService
}

func NewHandler(snaps service.SnapshotSource, roomSvc *service.RoomService, msgSvc *service.MessageService) *Handler {
	return &Handler{snaps: snaps, roomSvc: roomSvc, msgSvc: msgSvc}
}

// Snapshot 返回完整的会话快照。
func (h *Handler) Snapshot(c *gin.Context) {
	c.JSON(http.StatusOK, h.snaps.Snapshot())
}

// ListRooms 按展示顺序返回房间，支持 ?filter=mine|others。
func (h *Handler) ListRooms(c *gin.Context) {
	rooms, err := h.roomSvc.List(c.Query("filter"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid filter"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// ListMessages 返回房间内当前持有的消息。
func (h *Handler) ListMessages(c *gin.Context) {
	msgs, err := h.msgSvc.List(models.ID(c.Param("id")))
	if err != nil {
		h.fail(c, err, "list messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// ListAnnouncements 返回待展示的公告队列。
func (h *Handler) ListAnnouncements(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"announcements": h.snaps.Snapshot().Announcements})
}

// SelectRoom 切换当前房间。
func (h *Handler) SelectRoom(c *gin.Context) {
	if err := h.roomSvc.Select(models.ID(c.Param("id"))); err != nil {
		h.fail(c, err, "select room")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

// RequestHistory 为指定房间请求上一页历史。
func (h *Handler) RequestHistory(c *gin.Context) {
	if err := h.roomSvc.RequestHistory(models.ID(c.Param("id"))); err != nil {
		h.fail(c, err, "request history")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "requested"})
}

// RequestCurrentHistory 为当前房间请求上一页历史。
func (h *Handler) RequestCurrentHistory(c *gin.Context) {
	if err := h.roomSvc.RequestCurrentHistory(); err != nil {
		h.fail(c, err, "request history")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "requested"})
}

// SendMessage 发送消息，room_id 为空时发往当前房间。
func (h *Handler) SendMessage(c *gin.Context) {
	var req struct {
		RoomID  models.ID `json:"room_id"`
		Content string    `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	var err error
	if req.RoomID == "" {
		err = h.msgSvc.Send(req.Content)
	} else {
		err = h.msgSvc.SendTo(req.RoomID, req.Content)
	}
	if err != nil {
		h.fail(c, err, "send message")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "sent"})
}

// CreateRoom 请求创建房间，结果随后经 websocket 回推。
func (h *Handler) CreateRoom(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if len(req.Name) > 128 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room name"})
		return
	}
	if err := h.roomSvc.Create(req.Name); err != nil {
		h.fail(c, err, "create room")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "requested"})
}

// fail 把 service 与传输层错误映射到 HTTP 状态码。
func (h *Handler) fail(c *gin.Context, err error, op string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrEmptyContent),
		errors.Is(err, service.ErrEmptyRoomName),
		errors.Is(err, service.ErrNoRoomSelected):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrRoomNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrNoMoreHistory):
		status = http.StatusConflict
	case errors.Is(err, service.ErrNotReady),
		errors.Is(err, ws.ErrClosed),
		errors.Is(err, ws.ErrSendBufferFull):
		status = http.StatusServiceUnavailable
	case errors.Is(err, ws.ErrRateLimited):
		status = http.StatusTooManyRequests
	}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("op", op).Msg("inspect api")
	} else {
		log.Debug().Err(err).Str("op", op).Int("status", status).Msg("inspect api")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
