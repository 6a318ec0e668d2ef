package server

import (
	"net/http"

	"chatsync/internal/config"
	"chatsync/internal/metrics"
	"chatsync/internal/mw"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter 初始化 Gin 中间件、检查接口与 /metrics。rl 为 nil 时不限速。
func SetupRouter(cfg config.Config, h *Handler, rl *mw.RL) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metrics.GinMiddleware())
	if rl != nil {
		r.Use(rl.Middleware())
	}
	r.Use(mw.CORS(cfg.Env))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	api.GET("/snapshot", h.Snapshot)
	api.GET("/announcements", h.ListAnnouncements)

	api.GET("/rooms", h.ListRooms)
	api.POST("/rooms", h.CreateRoom)
	api.GET("/rooms/:id/messages", h.ListMessages)
	api.POST("/rooms/:id/select", h.SelectRoom)
	api.POST("/rooms/:id/history", h.RequestHistory)

	api.POST("/history", h.RequestCurrentHistory)
	api.POST("/messages", h.SendMessage)

	return r
}
