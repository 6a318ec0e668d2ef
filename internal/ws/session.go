package ws

import (
	"chatsync/internal/auth"
	"chatsync/internal/engine"
	"chatsync/internal/metrics"

	"github.com/rs/zerolog/log"
)

// RunSession 驱动 conn 直到关闭。任何关闭都整体丢弃会话状态；远端关闭时同时清除凭证，
// 外层通过 creds.HasAuth 判断是否需要重新登录。
func RunSession(conn *Conn, d Dispatcher, creds *auth.Credentials) Closed {
	closed := conn.Pump(d)
	metrics.WsClosesTotal.WithLabelValues(string(closed.Reason)).Inc()

	d.Dispatch(engine.ResetSession{Reason: string(closed.Reason)})
	if closed.Reason != CloseLocal && creds != nil {
		creds.Clear()
	}

	ev := log.Info()
	if closed.Reason == CloseAuth {
		ev = log.Warn()
	}
	ev.Int("code", closed.Code).Str("reason", string(closed.Reason)).AnErr("cause", closed.Err).Msg("ws session closed")
	return closed
}
