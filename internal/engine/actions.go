package engine

import "chatsync/internal/models"

// Action 是 reducer 能处理的全部输入。集合是封闭的：只有本包内的类型能实现它。
type Action interface {
	kind() string
}

// KindOf 返回动作名，用于日志和指标标签。
func KindOf(a Action) string {
	if a == nil {
		return "nil"
	}
	return a.kind()
}

// InitializeSession 对应 hello 事件，携带完整快照，重复到达时整体替换状态。
type InitializeSession struct {
	CurrentUser *models.User
	Rooms       []models.Room
}

// AppendMessages 对应实时推送的一批新消息。
type AppendMessages struct {
	RoomID   models.ID
	Messages []models.Message
}

// SelectRoom 是用户点击房间。
type SelectRoom struct {
	RoomID models.ID
}

// RoomCreated 对应成功的建房广播。CreatorUsername 可能为空。
type RoomCreated struct {
	RoomID          models.ID
	RoomName        string
	CreatorID       models.ID
	CreatorUsername string
}

// CreateRoomFailed 对应房间名冲突的建房回执，不改变状态。
type CreateRoomFailed struct{}

// HistoryPage 是一页按需拉取的历史消息。
type HistoryPage struct {
	RoomID         models.ID
	Messages       []models.Message
	HasMoreHistory bool
}

// DismissAnnouncement 由展示层在公告生命周期结束时发出。
type DismissAnnouncement struct {
	ID string
}

// ResetSession 在连接关闭或登出时整体丢弃状态。
type ResetSession struct {
	Reason string
}

func (InitializeSession) kind() string   { return "initialize_session" }
func (AppendMessages) kind() string      { return "append_messages" }
func (SelectRoom) kind() string          { return "select_room" }
func (RoomCreated) kind() string         { return "room_created" }
func (CreateRoomFailed) kind() string    { return "create_room_failed" }
func (HistoryPage) kind() string         { return "history_page" }
func (DismissAnnouncement) kind() string { return "dismiss_announcement" }
func (ResetSession) kind() string        { return "reset_session" }
