package service

import (
	"chatsync/internal/engine"
)

// Sender 把一帧出站请求交给传输层，ws.Conn 实现了它。
type Sender interface {
	Send(frame []byte) error
}

// SnapshotSource 提供最新的会话快照。
type SnapshotSource interface {
	Snapshot() engine.Snapshot
}

// Dispatcher 把本地动作（例如切换房间）交给状态循环。
type Dispatcher interface {
	Dispatch(engine.Action)
}

// ready 返回已初始化的快照，握手完成前返回 ErrNotReady。
func ready(src SnapshotSource) (engine.Snapshot, error) {
	snap := src.Snapshot()
	if snap.Loading || snap.CurrentUser == nil {
		return snap, ErrNotReady
	}
	return snap, nil
}
