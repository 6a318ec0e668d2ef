package service

import (
	"fmt"
	"strings"

	"chatsync/internal/engine"
	"chatsync/internal/models"
	"chatsync/internal/protocol"
)

// RoomService 封装房间相关的操作：建房、切换、拉取历史。
type RoomService struct {
	sender   Sender
	snaps    SnapshotSource
	dispatch Dispatcher
	pageSize int
}

func NewRoomService(sender Sender, snaps SnapshotSource, dispatch Dispatcher, pageSize int) *RoomService {
	if pageSize <= 0 {
		pageSize = protocol.DefaultHistoryPageSize
	}
	return &RoomService{sender: sender, snaps: snaps, dispatch: dispatch, pageSize: pageSize}
}

// RoomDTO 是对外输出的房间摘要。
type RoomDTO struct {
	ID            models.ID `json:"id"`
	Name          string    `json:"name"`
	CreatorID     models.ID `json:"creator_id"`
	Mine          bool      `json:"mine"`
	Unread        int       `json:"unread"`
	LastTimestamp int64     `json:"last_timestamp"`
	Messages      int       `json:"messages"`
	HasMore       bool      `json:"hasMoreMessages"`
	Current       bool      `json:"current"`
}

// 房间列表过滤条件。
const (
	FilterAll    = ""
	FilterMine   = "mine"
	FilterOthers = "others"
)

// List 按展示顺序返回房间，filter 取 mine/others 时只返回自己创建或他人创建的房间。
func (s *RoomService) List(filter string) ([]RoomDTO, error) {
	snap := s.snaps.Snapshot()
	var rooms []models.Room
	switch filter {
	case FilterAll:
		rooms = snap.OrderedRooms
	case FilterMine:
		rooms = snap.MyRooms()
	case FilterOthers:
		rooms = snap.OtherRooms()
	default:
		return nil, fmt.Errorf("unknown room filter %q", filter)
	}

	var me models.ID
	if snap.CurrentUser != nil {
		me = snap.CurrentUser.ID
	}
	out := make([]RoomDTO, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, RoomDTO{
			ID:            r.ID,
			Name:          r.Name,
			CreatorID:     r.CreatorID,
			Mine:          me != "" && r.CreatorID == me,
			Unread:        snap.Unread[r.ID],
			LastTimestamp: r.LastTimestamp(),
			Messages:      len(r.Messages),
			HasMore:       r.HasMoreHistory,
			Current:       snap.CurrentRoom != nil && snap.CurrentRoom.ID == r.ID,
		})
	}
	return out, nil
}

// Create 请求服务端以当前用户身份创建房间。重名由服务端以失败的 serverCreateRoom 回告。
func (s *RoomService) Create(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyRoomName
	}
	snap, err := ready(s.snaps)
	if err != nil {
		return err
	}
	frame, err := protocol.EncodeCreateRoom(name, *snap.CurrentUser)
	if err != nil {
		return fmt.Errorf("encode create room: %w", err)
	}
	return s.sender.Send(frame)
}

// Select 切换当前房间并清零其未读数。房间尚未出现在列表中也允许选中。
func (s *RoomService) Select(roomID models.ID) error {
	if roomID == "" {
		return ErrRoomNotFound
	}
	if _, err := ready(s.snaps); err != nil {
		return err
	}
	s.dispatch.Dispatch(engine.SelectRoom{RoomID: roomID})
	return nil
}

// RequestHistory 以房间内最早的消息为游标请求上一页历史。
func (s *RoomService) RequestHistory(roomID models.ID) error {
	snap, err := ready(s.snaps)
	if err != nil {
		return err
	}
	room, ok := snap.Room(roomID)
	if !ok {
		return ErrRoomNotFound
	}
	first, ok := engine.HistoryCursor(room)
	if !ok {
		return ErrNoMoreHistory
	}
	frame, err := protocol.EncodeRequestHistory(roomID, first, s.pageSize)
	if err != nil {
		return fmt.Errorf("encode history request: %w", err)
	}
	return s.sender.Send(frame)
}

// RequestCurrentHistory 对当前房间调用 RequestHistory，对应用户滚动到顶部。
func (s *RoomService) RequestCurrentHistory() error {
	snap, err := ready(s.snaps)
	if err != nil {
		return err
	}
	if snap.CurrentRoom == nil {
		return ErrNoRoomSelected
	}
	return s.RequestHistory(snap.CurrentRoom.ID)
}
