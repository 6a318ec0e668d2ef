package service

import "errors"

// 输入校验与前置条件错误，handler 可根据错误类型映射到合适的 HTTP 状态码。
var (
	ErrEmptyContent   = errors.New("message content is empty")
	ErrEmptyRoomName  = errors.New("room name is empty")
	ErrNoRoomSelected = errors.New("no room selected")
	ErrRoomNotFound   = errors.New("room not found")
	ErrNoMoreHistory  = errors.New("no more history")
	ErrNotReady       = errors.New("session not initialized")
)
