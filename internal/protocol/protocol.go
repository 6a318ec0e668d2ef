// Package protocol 负责 websocket 帧与类型化事件之间的编解码，不持有任何状态。
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"chatsync/internal/engine"
	"chatsync/internal/models"
)

// 事件类型。
const (
	TypeHello             = "hello"
	TypeServerMessages    = "serverMessages"
	TypeServerCreateRoom  = "serverCreateRoom"
	TypeServerRoomHistory = "serverRoomHistory"

	TypeClientMessages     = "clientMessages"
	TypeClientCreateRoom   = "clientCreateRoom"
	TypeRequestRoomHistory = "requestRoomHistory"
)

// DefaultHistoryPageSize 是每次向上翻页请求的消息条数。
const DefaultHistoryPageSize = 30

var (
	ErrMalformed    = errors.New("malformed frame")
	ErrUnknownEvent = errors.New("unknown event type")
)

// Envelope 是所有帧共用的外层结构。
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Event 是解码后的服务端事件。
type Event interface {
	Type() string
	// Action 把事件转换成 reducer 动作。
	Action() engine.Action
}

type wireRoom struct {
	ID              models.ID        `json:"id"`
	Name            string           `json:"name"`
	CreatorID       models.ID        `json:"creator_id"`
	Messages        []models.Message `json:"messages"`
	HasMoreMessages *bool            `json:"hasMoreMessages"`
}

type Hello struct {
	Me    models.User
	Rooms []models.Room
}

func (Hello) Type() string { return TypeHello }

func (e Hello) Action() engine.Action {
	me := e.Me
	return engine.InitializeSession{CurrentUser: &me, Rooms: e.Rooms}
}

type ServerMessages struct {
	RoomID   models.ID        `json:"roomId"`
	Messages []models.Message `json:"messages"`
}

func (ServerMessages) Type() string { return TypeServerMessages }

func (e ServerMessages) Action() engine.Action {
	return engine.AppendMessages{RoomID: e.RoomID, Messages: e.Messages}
}

// ServerCreateRoom 的 RoomID 为空表示房间名已被占用。
type ServerCreateRoom struct {
	RoomID          models.ID `json:"roomId"`
	RoomName        string    `json:"roomName"`
	CreatorID       models.ID `json:"creatorId"`
	CreatorUsername string    `json:"creatorUsername"`
}

func (ServerCreateRoom) Type() string { return TypeServerCreateRoom }

func (e ServerCreateRoom) Failed() bool { return e.RoomID == "" }

func (e ServerCreateRoom) Action() engine.Action {
	if e.Failed() {
		return engine.CreateRoomFailed{}
	}
	return engine.RoomCreated{
		RoomID:          e.RoomID,
		RoomName:        e.RoomName,
		CreatorID:       e.CreatorID,
		CreatorUsername: e.CreatorUsername,
	}
}

type ServerRoomHistory struct {
	RoomID          models.ID        `json:"roomId"`
	Messages        []models.Message `json:"messages"`
	HasMoreMessages bool             `json:"hasMoreMessages"`
}

func (ServerRoomHistory) Type() string { return TypeServerRoomHistory }

func (e ServerRoomHistory) Action() engine.Action {
	return engine.HistoryPage{RoomID: e.RoomID, Messages: e.Messages, HasMoreHistory: e.HasMoreMessages}
}

// Decode 解析一帧服务端消息。未知类型返回 ErrUnknownEvent，其余解析失败返回 ErrMalformed。
func Decode(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}

	switch env.Type {
	case TypeHello:
		var p struct {
			Me    models.User `json:"me"`
			Rooms []wireRoom  `json:"rooms"`
		}
		if err := unmarshalPayload(env, &p); err != nil {
			return nil, err
		}
		rooms := make([]models.Room, 0, len(p.Rooms))
		for _, r := range p.Rooms {
			// 缺省视为可能还有更早的历史。
			hasMore := true
			if r.HasMoreMessages != nil {
				hasMore = *r.HasMoreMessages
			}
			rooms = append(rooms, models.Room{
				ID:             r.ID,
				Name:           r.Name,
				CreatorID:      r.CreatorID,
				Messages:       r.Messages,
				HasMoreHistory: hasMore,
			})
		}
		return Hello{Me: p.Me, Rooms: rooms}, nil

	case TypeServerMessages:
		var e ServerMessages
		if err := unmarshalPayload(env, &e); err != nil {
			return nil, err
		}
		return e, nil

	case TypeServerCreateRoom:
		var e ServerCreateRoom
		if err := unmarshalPayload(env, &e); err != nil {
			return nil, err
		}
		return e, nil

	case TypeServerRoomHistory:
		var e ServerRoomHistory
		if err := unmarshalPayload(env, &e); err != nil {
			return nil, err
		}
		return e, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Type)
	}
}

func unmarshalPayload(env Envelope, v any) error {
	if len(env.Payload) == 0 {
		return fmt.Errorf("%w: %s without payload", ErrMalformed, env.Type)
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrMalformed, env.Type, err)
	}
	return nil
}

type clientMessage struct {
	Content string `json:"content"`
}

func encode(typ string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", typ, err)
	}
	return json.Marshal(Envelope{Type: typ, Payload: raw})
}

// EncodeSendMessage 构造发往指定房间的 clientMessages 帧。
func EncodeSendMessage(roomID models.ID, contents ...string) ([]byte, error) {
	msgs := make([]clientMessage, 0, len(contents))
	for _, c := range contents {
		msgs = append(msgs, clientMessage{Content: c})
	}
	return encode(TypeClientMessages, struct {
		RoomID   models.ID       `json:"roomId"`
		Messages []clientMessage `json:"messages"`
	}{roomID, msgs})
}

// EncodeCreateRoom 构造 clientCreateRoom 帧，服务端要求附带创建者信息。
func EncodeCreateRoom(roomName string, creator models.User) ([]byte, error) {
	return encode(TypeClientCreateRoom, struct {
		RoomName        string    `json:"roomName"`
		CreatorID       models.ID `json:"creatorId"`
		CreatorUsername string    `json:"creatorUsername"`
	}{roomName, creator.ID, creator.Username})
}

// EncodeRequestHistory 构造 requestRoomHistory 帧。firstMessageID 是客户端当前持有的最早一条消息。
func EncodeRequestHistory(roomID, firstMessageID models.ID, count int) ([]byte, error) {
	if count <= 0 {
		count = DefaultHistoryPageSize
	}
	return encode(TypeRequestRoomHistory, struct {
		RoomID         models.ID `json:"roomId"`
		FirstMessageID models.ID `json:"firstMessageId"`
		Count          int       `json:"count"`
	}{roomID, firstMessageID, count})
}
