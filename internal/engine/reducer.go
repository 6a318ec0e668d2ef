package engine

import (
	"fmt"
	"time"

	"chatsync/internal/models"

	"github.com/google/uuid"
)

// AnnouncementTimeLayout 是建房公告里的本地时间格式。
const AnnouncementTimeLayout = "2006-01-02 15:04:05"

// Reducer 持有 transition 需要的外部输入（时钟、公告 id），本身无状态，可并发复用。
type Reducer struct {
	now      func() time.Time
	newID    func() string
	maxQueue int
}

// Option 配置 Reducer。
type Option func(*Reducer)

// WithClock 替换时钟，测试里用来固定公告时间。
func WithClock(now func() time.Time) Option {
	return func(r *Reducer) { r.now = now }
}

// WithIDGenerator 替换公告 id 生成器。
func WithIDGenerator(newID func() string) Option {
	return func(r *Reducer) { r.newID = newID }
}

// WithAnnouncementLimit 修改公告队列上限，n <= 0 时保持默认值。
func WithAnnouncementLimit(n int) Option {
	return func(r *Reducer) {
		if n > 0 {
			r.maxQueue = n
		}
	}
}

func NewReducer(opts ...Option) *Reducer {
	r := &Reducer{
		now:      time.Now,
		newID:    uuid.NewString,
		maxQueue: MaxAnnouncements,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var defaultReducer = NewReducer()

// Reduce 使用默认时钟和 id 生成器执行一次 transition。
func Reduce(s State, a Action) State {
	return defaultReducer.Reduce(s, a)
}

// Reduce 返回 a 作用于 s 之后的状态。不适用的动作原样返回 s。
func (r *Reducer) Reduce(s State, a Action) State {
	next, _ := r.Step(s, a)
	return next
}

// Step 与 Reduce 相同，额外报告动作是否被应用；被丢弃的动作（未知房间、重复建房等）
// 返回 false，供调用方计数。
func (r *Reducer) Step(s State, a Action) (State, bool) {
	switch a := a.(type) {
	case InitializeSession:
		return r.initialize(a), true
	case AppendMessages:
		return r.appendMessages(s, a)
	case SelectRoom:
		return r.selectRoom(s, a), true
	case RoomCreated:
		return r.roomCreated(s, a)
	case CreateRoomFailed:
		return s, true
	case HistoryPage:
		return r.historyPage(s, a)
	case DismissAnnouncement:
		return r.dismiss(s, a)
	case ResetSession:
		return NewState(), true
	default:
		return s, false
	}
}

func (r *Reducer) initialize(a InitializeSession) State {
	next := NewState()
	next.Loading = false
	if a.CurrentUser != nil {
		u := *a.CurrentUser
		next.CurrentUser = &u
		next.Users[u.ID] = u
	}

	var (
		latestID models.ID
		latestTS int64
		found    bool
	)
	for _, room := range a.Rooms {
		room.Messages, _ = Merge(nil, room.Messages)
		if room.Messages == nil {
			room.Messages = []models.Message{}
		}
		next.Rooms[room.ID] = room
		next.Users = registerAuthors(next.Users, room.Messages)
		// 严格大于：同一时间取最先出现的房间。
		if ts := room.LastTimestamp(); !found || ts > latestTS {
			latestID, latestTS, found = room.ID, ts, true
		}
	}
	next.CurrentRoomID = latestID
	return next
}

func (r *Reducer) appendMessages(s State, a AppendMessages) (State, bool) {
	room, ok := s.Rooms[a.RoomID]
	if !ok {
		// 房间可能在尚未同步到的建房事件里，丢弃即可。
		return s, false
	}
	merged, added := Merge(room.Messages, a.Messages)
	if added == 0 {
		return s, true
	}
	room.Messages = merged

	next := s
	next.Rooms = withRoom(s.Rooms, room)
	if a.RoomID != s.CurrentRoomID {
		next.Unread = bumpUnread(s.Unread, a.RoomID, added)
	}
	next.Users = registerAuthors(s.Users, a.Messages)
	return next, true
}

func (r *Reducer) selectRoom(s State, a SelectRoom) State {
	next := s
	next.CurrentRoomID = a.RoomID
	if a.RoomID != "" {
		next.Unread = clearUnread(s.Unread, a.RoomID)
	}
	return next
}

func (r *Reducer) roomCreated(s State, a RoomCreated) (State, bool) {
	if a.RoomID == "" {
		return s, false
	}
	if _, exists := s.Rooms[a.RoomID]; exists {
		return s, false
	}

	creatorID := a.CreatorID
	if creatorID == "" && s.CurrentUser != nil {
		creatorID = s.CurrentUser.ID
	}

	now := r.now()
	next := s
	next.Rooms = withRoom(s.Rooms, models.Room{
		ID:             a.RoomID,
		Name:           a.RoomName,
		CreatorID:      creatorID,
		Messages:       []models.Message{},
		HasMoreHistory: false,
	})
	next.Announcements = pushAnnouncement(s.Announcements, models.Announcement{
		ID:        r.newID(),
		Text:      announcementText(s.Users, creatorID, a.CreatorUsername, a.RoomName, now),
		CreatedAt: now,
	}, r.maxQueue)
	return next, true
}

func announcementText(users map[models.ID]models.User, creatorID models.ID, fallbackName, roomName string, at time.Time) string {
	name := string(creatorID)
	if u, ok := users[creatorID]; ok && u.Username != "" {
		name = u.Username
	} else if fallbackName != "" {
		name = fallbackName
	}
	return fmt.Sprintf("%s created %s at %s, come and chat!", name, roomName, at.Local().Format(AnnouncementTimeLayout))
}

func (r *Reducer) historyPage(s State, a HistoryPage) (State, bool) {
	room, ok := s.Rooms[a.RoomID]
	if !ok {
		return s, false
	}
	room.Messages, _ = Merge(room.Messages, a.Messages)
	room.HasMoreHistory = a.HasMoreHistory

	next := s
	next.Rooms = withRoom(s.Rooms, room)
	next.Users = registerAuthors(s.Users, a.Messages)
	return next, true
}

func (r *Reducer) dismiss(s State, a DismissAnnouncement) (State, bool) {
	queue, removed := removeAnnouncement(s.Announcements, a.ID)
	if !removed {
		return s, false
	}
	next := s
	next.Announcements = queue
	return next, true
}
