package ws

import "errors"

var (
	ErrClosed         = errors.New("connection closed")
	ErrSendBufferFull = errors.New("send buffer full")
	ErrRateLimited    = errors.New("outbound rate limit exceeded")
	ErrUnauthorized   = errors.New("authentication required")
	// ErrRoomNameTaken 经 Loop.Conflicts 旁路通知展示层，不进入会话状态。
	ErrRoomNameTaken = errors.New("room name already taken")
)
