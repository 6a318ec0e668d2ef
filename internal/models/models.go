package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// ID 是服务端下发的标识符。服务端对同一字段有时编码为数字、有时编码为字符串，
// 这里统一解码为字符串。
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: expected string or number, got %s", b)
	}
	*id = ID(n.String())
	return nil
}

type User struct {
	ID       ID     `json:"id"`
	Username string `json:"username"`
}

type Message struct {
	ID        ID     `json:"id"`
	User      User   `json:"user"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"` // 毫秒
}

type Room struct {
	ID             ID        `json:"id"`
	Name           string    `json:"name"`
	CreatorID      ID        `json:"creator_id"`
	Messages       []Message `json:"messages"`
	HasMoreHistory bool      `json:"hasMoreMessages"`
}

// LastTimestamp 返回房间最后一条消息的时间戳，空房间为 0。
func (r Room) LastTimestamp() int64 {
	if len(r.Messages) == 0 {
		return 0
	}
	return r.Messages[len(r.Messages)-1].Timestamp
}

type Announcement struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
