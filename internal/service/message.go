package service

import (
	"fmt"
	"strings"

	"chatsync/internal/models"
	"chatsync/internal/protocol"
)

// MessageService 负责消息的发送与读取。发送只产生出站请求，
// 消息本身等服务端回推 serverMessages 后才进入状态。
type MessageService struct {
	sender Sender
	snaps  SnapshotSource
}

func NewMessageService(sender Sender, snaps SnapshotSource) *MessageService {
	return &MessageService{sender: sender, snaps: snaps}
}

// Send 向当前房间发送一条消息。
func (s *MessageService) Send(content string) error {
	snap, err := ready(s.snaps)
	if err != nil {
		return err
	}
	if snap.CurrentRoom == nil {
		return ErrNoRoomSelected
	}
	return s.SendTo(snap.CurrentRoom.ID, content)
}

// SendTo 向指定房间发送一条或多条消息，空白内容被拒绝。
func (s *MessageService) SendTo(roomID models.ID, contents ...string) error {
	snap, err := ready(s.snaps)
	if err != nil {
		return err
	}
	if _, ok := snap.Room(roomID); !ok {
		return ErrRoomNotFound
	}
	if len(contents) == 0 {
		return ErrEmptyContent
	}
	for _, c := range contents {
		if strings.TrimSpace(c) == "" {
			return ErrEmptyContent
		}
	}

	frame, err := protocol.EncodeSendMessage(roomID, contents...)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return s.sender.Send(frame)
}

// List 返回房间内当前持有的消息，按时间升序。
func (s *MessageService) List(roomID models.ID) ([]models.Message, error) {
	room, ok := s.snaps.Snapshot().Room(roomID)
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room.Messages, nil
}
