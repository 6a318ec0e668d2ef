package engine

import (
	"maps"
	"slices"

	"chatsync/internal/models"
)

// Snapshot 是渲染层消费的只读视图。消息切片与 State 共享底层数组，
// reducer 从不原地修改它们，调用方也不应修改。
type Snapshot struct {
	CurrentUser   *models.User              `json:"current_user"`
	Loading       bool                      `json:"loading"`
	OrderedRooms  []models.Room             `json:"rooms"`
	CurrentRoom   *models.Room              `json:"current_room"`
	Unread        map[models.ID]int         `json:"unread"`
	TotalUnread   int                       `json:"total_unread"`
	Announcements []models.Announcement     `json:"announcements"`
	Users         map[models.ID]models.User `json:"users"`
}

// Project 从 State 派生 Snapshot，不修改 s。
func Project(s State) Snapshot {
	snap := Snapshot{
		Loading:       s.Loading,
		OrderedRooms:  Order(s.Rooms),
		Unread:        maps.Clone(s.Unread),
		TotalUnread:   TotalUnread(s.Unread),
		Announcements: slices.Clone(s.Announcements),
		Users:         maps.Clone(s.Users),
	}
	if snap.Unread == nil {
		snap.Unread = map[models.ID]int{}
	}
	if snap.Users == nil {
		snap.Users = map[models.ID]models.User{}
	}
	if s.CurrentUser != nil {
		u := *s.CurrentUser
		snap.CurrentUser = &u
	}
	if s.CurrentRoomID != "" {
		if room, ok := s.Rooms[s.CurrentRoomID]; ok {
			snap.CurrentRoom = &room
		}
	}
	return snap
}

// Room 在快照中按 id 查找房间。
func (s Snapshot) Room(id models.ID) (models.Room, bool) {
	for _, r := range s.OrderedRooms {
		if r.ID == id {
			return r, true
		}
	}
	return models.Room{}, false
}

// MyRooms 返回当前用户创建的房间，保持排序。
func (s Snapshot) MyRooms() []models.Room {
	return s.filterRooms(func(r models.Room) bool { return s.CurrentUser != nil && r.CreatorID == s.CurrentUser.ID })
}

// OtherRooms 返回其他人创建的房间，保持排序。
func (s Snapshot) OtherRooms() []models.Room {
	return s.filterRooms(func(r models.Room) bool { return s.CurrentUser == nil || r.CreatorID != s.CurrentUser.ID })
}

func (s Snapshot) filterRooms(keep func(models.Room) bool) []models.Room {
	out := make([]models.Room, 0, len(s.OrderedRooms))
	for _, r := range s.OrderedRooms {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// HistoryCursor 返回向上翻页时应携带的最早消息 id。房间已无更多历史或没有消息时 ok 为 false。
func HistoryCursor(room models.Room) (firstMessageID models.ID, ok bool) {
	if !room.HasMoreHistory || len(room.Messages) == 0 {
		return "", false
	}
	return room.Messages[0].ID, true
}
