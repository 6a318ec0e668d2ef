package engine

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"chatsync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local)

func newTestReducer(opts ...Option) *Reducer {
	n := 0
	base := []Option{
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("ann-%d", n)
		}),
	}
	return NewReducer(append(base, opts...)...)
}

var me = models.User{ID: "me", Username: "me"}

func authored(id string, ts int64, user models.User) models.Message {
	return models.Message{ID: models.ID(id), User: user, Content: id, Timestamp: ts}
}

// seeded 返回收到 hello 之后的状态：房间 a(ts 10) 与 b(ts 20)。
func seeded(t *testing.T, r *Reducer) State {
	t.Helper()
	return r.Reduce(NewState(), InitializeSession{
		CurrentUser: &me,
		Rooms: []models.Room{
			{ID: "a", Name: "A", HasMoreHistory: true, Messages: []models.Message{msg("a1", 10)}},
			{ID: "b", Name: "B", HasMoreHistory: true, Messages: []models.Message{msg("b1", 20)}},
		},
	})
}

func TestReduce_InitializeSelectsMostRecentRoom(t *testing.T) {
	s := seeded(t, newTestReducer())

	assert.Equal(t, models.ID("b"), s.CurrentRoomID)
	assert.False(t, s.Loading)
	require.NotNil(t, s.CurrentUser)
	assert.Equal(t, me, *s.CurrentUser)
	assert.Contains(t, s.Users, models.ID("me"))
	assert.Contains(t, s.Users, models.ID("u1"))
	assert.Empty(t, s.Unread)
	assert.Empty(t, s.Announcements)
}

func TestReduce_InitializeSortsMessagesAndBreaksTiesByFirstRoom(t *testing.T) {
	r := newTestReducer()
	s := r.Reduce(NewState(), InitializeSession{
		CurrentUser: &me,
		Rooms: []models.Room{
			{ID: "x", Messages: []models.Message{msg("x2", 50), msg("x1", 5)}},
			{ID: "y", Messages: []models.Message{msg("y1", 50)}},
			{ID: "z"},
		},
	})

	assert.Equal(t, models.ID("x"), s.CurrentRoomID)
	assert.Equal(t, []models.ID{"x1", "x2"}, ids(s.Rooms["x"].Messages))
	assert.NotNil(t, s.Rooms["z"].Messages)
}

func TestReduce_InitializeWithNoRooms(t *testing.T) {
	s := newTestReducer().Reduce(NewState(), InitializeSession{CurrentUser: &me})

	assert.Equal(t, models.ID(""), s.CurrentRoomID)
	assert.Empty(t, s.Rooms)
}

func TestReduce_InitializeReplacesState(t *testing.T) {
	r := newTestReducer()
	s := seeded(t, r)
	s = r.Reduce(s, AppendMessages{RoomID: "a", Messages: []models.Message{msg("a2", 30)}})
	s = r.Reduce(s, RoomCreated{RoomID: "c", RoomName: "C", CreatorID: "me"})
	require.NotEmpty(t, s.Unread)
	require.NotEmpty(t, s.Announcements)

	s = r.Reduce(s, InitializeSession{CurrentUser: &me, Rooms: []models.Room{{ID: "only"}}})

	assert.Len(t, s.Rooms, 1)
	assert.Empty(t, s.Unread)
	assert.Empty(t, s.Announcements)
	assert.Equal(t, models.ID("only"), s.CurrentRoomID)
}

func TestReduce_AppendToUnfocusedRoom(t *testing.T) {
	r := newTestReducer()
	s := seeded(t, r)

	s = r.Reduce(s, AppendMessages{RoomID: "a", Messages: []models.Message{msg("m1", 30)}})

	assert.Equal(t, 1, s.Unread["a"])
	assert.Equal(t, []models.ID{"a", "b"}, roomIDs(Order(s.Rooms)))
}

func TestReduce_AppendToFocusedRoomKeepsUnreadZero(t *testing.T) {
	r := newTestReducer()
	s := seeded(t, r)

	s = r.Reduce(s, AppendMessages{RoomID: "b", Messages: []models.Message{msg("b2", 30), msg("b3", 31)}})

	assert.Equal(t, 0, s.Unread["b"])
	assert.Equal(t, []models.ID{"b1", "b2", "b3"}, ids(s.Rooms["b"].Messages))
}

func TestReduce_AppendRegistersAuthors(t *testing.T) {
	r := newTestReducer()
	s := seeded(t, r)
	bob := models.User{ID: "42", Username: "bob"}

	s = r.Reduce(s, AppendMessages{RoomID: "a", Messages: []models.Message{authored("m1", 30, bob)}})

	assert.Equal(t, bob, s.Users["42"])
}

func TestReduce_AppendUnknownRoomIsDropped(t *testing.T) {
	r := newTestReducer()
	s := seeded(t, r)

	next, applied := r.Step(s, AppendMessages{RoomID: "ghost", Messages: []models.Message{msg("g1", 99)}})

	assert.False(t, applied)
	assert.Equal(t, s, next)
}

func TestReduce_AppendDuplicateBatchCountsOnce(t *testing.T) {
	r := newTestReducer()
	s := seeded(t, r)
	batch := AppendMessages{RoomID: "a", Messages: []models.Message{msg("m1", 30), msg("m2", 31)}}

	s = r.Reduce(s, batch)
	s = r.Reduce(s, batch)

	assert.Equal(t, 2, s.Unread["a"])
	assert.Len(t, s.Rooms["a"].Messages, 3)
}

func TestReduce_UnreadConservation(t *testing.T) {
	r := newTestReducer()
	s := seeded(t, r)
	s = r.Reduce(s, AppendMessages{RoomID: "b", Messages: []models.Message{msg("b9", 21)}})
	s = r.Reduce(s, SelectRoom{RoomID: "b"})

	total := 0
	for i := 0; i < 5; i++ {
		batch := make([]models.Message, 0, i+1)
		for j := 0; j <= i; j++ {
			batch = append(batch, msg(fmt.Sprintf("a-%d-%d", i, j), int64(100+i*10+j)))
		}
		total += len(batch)
		s = r.Reduce(s, AppendMessages{RoomID: "a", Messages: batch})
	}
	require.Equal(t, total, s.Unread["a"])

	s = r.Reduce(s, AppendMessages{RoomID: "c", Messages: []models.Message{msg("c1", 1)}})
	s.Unread = bumpUnread(s.Unread, "other", 3)

	s = r.Reduce(s, SelectRoom{RoomID: "a"})

	assert.Equal(t, 0, s.Unread["a"])
	assert.Equal(t, 3, s.Unread["other"])
	assert.Equal(t, 3, TotalUnread(s.Unread))
}

func TestReduce_SelectRoom(t *testing.T) {
	r := newTestReducer()
	s := seeded(t, r)
	s = r.Reduce(s, AppendMessages{RoomID: "a", Messages: []models.Message{msg("m1", 30)}})

	s = r.Reduce(s, SelectRoom{RoomID: "a"})

	assert.Equal(t, models.ID("a"), s.CurrentRoomID)
	assert.Equal(t, 0, s.Unread["a"])
}

func TestReduce_RoomCreated(t *testing.T) {
	r := newTestReducer()
	s := seeded(t, r)

	s = r.Reduce(s, RoomCreated{RoomID: "c", RoomName: "Lounge", CreatorID: "u1"})

	room, ok := s.Rooms["c"]
	require.True(t, ok)
	assert.False(t, room.HasMoreHistory)
	assert.Empty(t, room.Messages)
	assert.Equal(t, models.ID("u1"), room.CreatorID)
	require.Len(t, s.Announcements, 1)
	assert.Equal(t, "ann-1", s.Announcements[0].ID)
	assert.Equal(t, "alice created Lounge at 2024-03-09 14:05:07, come and chat!", s.Announcements[0].Text)
	assert.Equal(t, fixedNow, s.Announcements[0].CreatedAt)
}

func TestReduce_RoomCreatedCreatorNameFallbacks(t *testing.T) {
	tests := []struct {
		name     string
		action   RoomCreated
		wantName string
		wantBy   models.ID
	}{
		{"known user", RoomCreated{RoomID: "c", RoomName: "R", CreatorID: "u1", CreatorUsername: "ignored"}, "alice", "u1"},
		{"event username", RoomCreated{RoomID: "c", RoomName: "R", CreatorID: "77", CreatorUsername: "carol"}, "carol", "77"},
		{"creator id", RoomCreated{RoomID: "c", RoomName: "R", CreatorID: "77"}, "77", "77"},
		{"missing creator is current user", RoomCreated{RoomID: "c", RoomName: "R"}, "me", "me"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestReducer()
			s := r.Reduce(seeded(t, r), tt.action)
			require.Len(t, s.Announcements, 1)
			assert.Equal(t, tt.wantName+" created R at 2024-03-09 14:05:07, come and chat!", s.Announcements[0].Text)
			assert.Equal(t, tt.wantBy, s.Rooms["c"].CreatorID)
		})
	}
}

func TestReduce_RoomCreatedDuplicateIgnored(t *testing.T) {
	r := newTestReducer()
	s := r.Reduce(seeded(t, r), RoomCreated{RoomID: "c", RoomName: "C", CreatorID: "me"})

	next, applied := r.Step(s, RoomCreated{RoomID: "c", RoomName: "C again", CreatorID: "me"})

	assert.False(t, applied)
	assert.Equal(t, "C", next.Rooms["c"].Name)
	assert.Len(t, next.Announcements, 1)

	next, applied = r.Step(s, RoomCreated{RoomID: "a", RoomName: "clobber"})
	assert.False(t, applied)
	assert.Equal(t, "A", next.Rooms["a"].Name)
}

func TestReduce_FailedCreationChangesNothing(t *testing.T) {
	r := newTestReducer()
	s := seeded(t, r)

	afterFailure := r.Reduce(s, CreateRoomFailed{})
	afterEmptyID := r.Reduce(s, RoomCreated{RoomName: "Taken"})

	assert.Equal(t, s, afterFailure)
	assert.Equal(t, s, afterEmptyID)
	assert.Len(t, afterEmptyID.Rooms, 2)
	assert.Empty(t, afterEmptyID.Announcements)
}

func TestReduce_AnnouncementQueueIsBounded(t *testing.T) {
	r := newTestReducer(WithAnnouncementLimit(3))
	s := seeded(t, r)

	for i := 0; i < 5; i++ {
		s = r.Reduce(s, RoomCreated{RoomID: models.ID(fmt.Sprintf("r%d", i)), RoomName: "R", CreatorID: "me"})
	}

	require.Len(t, s.Announcements, 3)
	assert.Equal(t, "ann-3", s.Announcements[0].ID)
	assert.Equal(t, "ann-5", s.Announcements[2].ID)
}

func TestPushAnnouncement_DefaultLimit(t *testing.T) {
	var q []models.Announcement
	for i := 0; i < MaxAnnouncements+2; i++ {
		q = pushAnnouncement(q, models.Announcement{ID: fmt.Sprintf("ann-%d", i+1)}, MaxAnnouncements)
	}

	require.Len(t, q, MaxAnnouncements)
	assert.Equal(t, "ann-3", q[0].ID)
	assert.Equal(t, fmt.Sprintf("ann-%d", MaxAnnouncements+2), q[len(q)-1].ID)
}

func TestReduce_HistoryPage(t *testing.T) {
	r := newTestReducer()
	s := seeded(t, r)

	s = r.Reduce(s, HistoryPage{RoomID: "a", Messages: []models.Message{msg("a0", 5)}, HasMoreHistory: false})

	room := s.Rooms["a"]
	assert.Equal(t, []models.ID{"a0", "a1"}, ids(room.Messages))
	assert.False(t, room.HasMoreHistory)
	_, ok := HistoryCursor(room)
	assert.False(t, ok, "exhausted room must not page again")
}

func TestReduce_HistoryPageKeepsPaging(t *testing.T) {
	r := newTestReducer()
	s := seeded(t, r)

	s = r.Reduce(s, HistoryPage{RoomID: "a", Messages: []models.Message{msg("a-1", 3), msg("a0", 5), msg("a1", 10)}, HasMoreHistory: true})

	room := s.Rooms["a"]
	assert.Equal(t, []models.ID{"a-1", "a0", "a1"}, ids(room.Messages))
	cursor, ok := HistoryCursor(room)
	require.True(t, ok)
	assert.Equal(t, models.ID("a-1"), cursor)
	assert.Equal(t, 0, s.Unread["a"])
}

func TestReduce_HistoryPageUnknownRoomIsDropped(t *testing.T) {
	r := newTestReducer()
	s := seeded(t, r)

	next, applied := r.Step(s, HistoryPage{RoomID: "ghost", Messages: []models.Message{msg("g", 1)}})

	assert.False(t, applied)
	assert.Equal(t, s, next)
}

func TestReduce_DismissAnnouncement(t *testing.T) {
	r := newTestReducer()
	s := seeded(t, r)
	s = r.Reduce(s, RoomCreated{RoomID: "c", RoomName: "C", CreatorID: "me"})
	s = r.Reduce(s, RoomCreated{RoomID: "d", RoomName: "D", CreatorID: "me"})

	s = r.Reduce(s, DismissAnnouncement{ID: "ann-1"})
	require.Len(t, s.Announcements, 1)
	assert.Equal(t, "ann-2", s.Announcements[0].ID)

	next, applied := r.Step(s, DismissAnnouncement{ID: "ann-1"})
	assert.False(t, applied)
	assert.Equal(t, s, next)
}

func TestReduce_ResetSession(t *testing.T) {
	r := newTestReducer()
	s := r.Reduce(seeded(t, r), ResetSession{Reason: "closed"})

	assert.Equal(t, NewState(), s)
}

func TestReduce_UnknownActionIsNoop(t *testing.T) {
	r := newTestReducer()
	s := seeded(t, r)

	next, applied := r.Step(s, nil)

	assert.False(t, applied)
	assert.Equal(t, s, next)
}

func TestReduce_DoesNotMutatePreviousState(t *testing.T) {
	r := newTestReducer()
	before := seeded(t, r)
	beforeA := ids(before.Rooms["a"].Messages)

	_ = r.Reduce(before, AppendMessages{RoomID: "a", Messages: []models.Message{authored("n1", 40, models.User{ID: "new", Username: "new"})}})
	_ = r.Reduce(before, RoomCreated{RoomID: "c", RoomName: "C"})
	_ = r.Reduce(before, SelectRoom{RoomID: "a"})

	assert.Equal(t, beforeA, ids(before.Rooms["a"].Messages))
	assert.NotContains(t, before.Rooms, models.ID("c"))
	assert.NotContains(t, before.Users, models.ID("new"))
	assert.Empty(t, before.Announcements)
	assert.Equal(t, models.ID("b"), before.CurrentRoomID)
	assert.Empty(t, before.Unread)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, "append_messages", KindOf(AppendMessages{}))
	assert.Equal(t, "history_page", KindOf(HistoryPage{}))
	assert.Equal(t, "nil", KindOf(nil))
}

// TestReduce_InvariantsHoldUnderRandomActions 随机混合实时推送、历史分页、选房与建房，
// 每一步都检查排序、去重和未读不变量。
func TestReduce_InvariantsHoldUnderRandomActions(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	r := newTestReducer()
	s := seeded(t, r)
	targets := []models.ID{"a", "b", "c", "ghost"}
	next := 0

	randomBatch := func() []models.Message {
		n := rng.Intn(4)
		out := make([]models.Message, 0, n)
		for i := 0; i < n; i++ {
			// 偶尔重复已有 id。
			id := fmt.Sprintf("m%d", next)
			if next > 0 && rng.Intn(5) == 0 {
				id = fmt.Sprintf("m%d", rng.Intn(next))
			} else {
				next++
			}
			out = append(out, authored(id, int64(rng.Intn(1000)), models.User{ID: models.ID(fmt.Sprintf("u%d", rng.Intn(5))), Username: "x"}))
		}
		return out
	}

	for step := 0; step < 500; step++ {
		room := targets[rng.Intn(len(targets))]
		var a Action
		switch rng.Intn(5) {
		case 0, 1:
			a = AppendMessages{RoomID: room, Messages: randomBatch()}
		case 2:
			a = HistoryPage{RoomID: room, Messages: randomBatch(), HasMoreHistory: rng.Intn(2) == 0}
		case 3:
			a = SelectRoom{RoomID: room}
		case 4:
			a = RoomCreated{RoomID: room, RoomName: string(room), CreatorID: "me"}
		}
		s = r.Reduce(s, a)

		for id, room := range s.Rooms {
			seen := map[models.ID]bool{}
			for i, m := range room.Messages {
				require.False(t, seen[m.ID], "room %s has duplicate %s", id, m.ID)
				seen[m.ID] = true
				if i > 0 {
					require.LessOrEqual(t, room.Messages[i-1].Timestamp, m.Timestamp, "room %s out of order at step %d", id, step)
				}
				require.Contains(t, s.Users, m.User.ID)
			}
		}
		if s.CurrentRoomID != "" {
			require.Zero(t, s.Unread[s.CurrentRoomID])
		}
	}
}
