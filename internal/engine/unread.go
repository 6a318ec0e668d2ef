package engine

import "chatsync/internal/models"

func bumpUnread(unread map[models.ID]int, roomID models.ID, n int) map[models.ID]int {
	if n <= 0 {
		return unread
	}
	next := make(map[models.ID]int, len(unread)+1)
	for k, v := range unread {
		next[k] = v
	}
	next[roomID] += n
	return next
}

func clearUnread(unread map[models.ID]int, roomID models.ID) map[models.ID]int {
	next := make(map[models.ID]int, len(unread)+1)
	for k, v := range unread {
		next[k] = v
	}
	next[roomID] = 0
	return next
}

// TotalUnread 是所有房间未读数之和，即全局角标。
func TotalUnread(unread map[models.ID]int) int {
	total := 0
	for _, n := range unread {
		total += n
	}
	return total
}
