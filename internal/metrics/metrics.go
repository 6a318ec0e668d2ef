package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ActionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatsync_actions_total",
		Help: "Total number of actions applied by the reducer",
	}, []string{"action"})
	DroppedActionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatsync_dropped_actions_total",
		Help: "Actions the reducer could not apply (unknown room, duplicate creation, expired announcement)",
	}, []string{"action"})
	UnreadMessages = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chatsync_unread_messages",
		Help: "Current sum of unread counters across all rooms",
	})
	AnnouncementsQueued = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chatsync_announcements_queued",
		Help: "Current length of the announcement queue",
	})
	WsFramesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatsync_ws_frames_total",
		Help: "Websocket frames by direction",
	}, []string{"direction"})
	WsClosesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatsync_ws_closes_total",
		Help: "Websocket closes by classified reason",
	}, []string{"reason"})
	HttpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
	HttpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

func init() {
	prometheus.MustRegister(ActionsTotal, DroppedActionsTotal, UnreadMessages, AnnouncementsQueued,
		WsFramesTotal, WsClosesTotal, HttpRequestsTotal, HttpRequestDuration)
}

// GinMiddleware 统计基础请求指标，供 Prometheus 拉取。
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		labels := prometheus.Labels{"method": c.Request.Method, "path": path, "status": status}
		HttpRequestsTotal.With(labels).Inc()
		HttpRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}
