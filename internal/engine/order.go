package engine

import (
	"cmp"
	"slices"

	"chatsync/internal/models"
)

// Order 按最后一条消息的时间倒序排列房间，空房间视作时间 0 排在最后，
// 同时间按房间 id 升序。每次调用都从头计算，结果不缓存。
func Order(rooms map[models.ID]models.Room) []models.Room {
	out := make([]models.Room, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b models.Room) int {
		if c := cmp.Compare(b.LastTimestamp(), a.LastTimestamp()); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}
