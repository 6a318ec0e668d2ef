// Package engine 是聊天客户端的状态同步核心：纯函数式的 reducer 把服务端事件和
// 用户动作逐个折叠进 State，Project 再从 State 派生只读快照。
//
// 本包不做任何 I/O，也不加锁；调用方负责保证同一时刻只有一个 transition 在执行。
package engine

import "chatsync/internal/models"

// State 是一次连接生命周期内的全部会话状态。CurrentRoomID 为空表示未选中任何房间。
//
// State 按值传递，reducer 对需要修改的 map 和 slice 做写时复制，旧 State 始终保持不变。
type State struct {
	CurrentUser   *models.User
	Rooms         map[models.ID]models.Room
	CurrentRoomID models.ID
	Unread        map[models.ID]int
	Announcements []models.Announcement
	Users         map[models.ID]models.User
	// Loading 在收到第一个 hello 之前为 true。
	Loading bool
}

// NewState 返回尚未收到 hello 的空会话。
func NewState() State {
	return State{
		Rooms:   make(map[models.ID]models.Room),
		Unread:  make(map[models.ID]int),
		Users:   make(map[models.ID]models.User),
		Loading: true,
	}
}

func withRoom(rooms map[models.ID]models.Room, room models.Room) map[models.ID]models.Room {
	next := make(map[models.ID]models.Room, len(rooms)+1)
	for k, v := range rooms {
		next[k] = v
	}
	next[room.ID] = room
	return next
}

// registerAuthors 把未见过的作者加入用户表；没有新用户时原样返回。
func registerAuthors(users map[models.ID]models.User, msgs []models.Message) map[models.ID]models.User {
	var next map[models.ID]models.User
	for _, m := range msgs {
		if _, ok := users[m.User.ID]; ok {
			continue
		}
		if next == nil {
			next = make(map[models.ID]models.User, len(users)+1)
			for k, v := range users {
				next[k] = v
			}
			users = next
		}
		next[m.User.ID] = m.User
	}
	return users
}
