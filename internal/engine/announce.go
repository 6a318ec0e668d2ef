package engine

import "chatsync/internal/models"

// MaxAnnouncements 是公告队列的上限，超出时从最旧的开始淘汰。
const MaxAnnouncements = 5000

func pushAnnouncement(queue []models.Announcement, a models.Announcement, limit int) []models.Announcement {
	next := make([]models.Announcement, 0, len(queue)+1)
	next = append(next, queue...)
	next = append(next, a)
	if limit > 0 && len(next) > limit {
		next = next[len(next)-limit:]
	}
	return next
}

func removeAnnouncement(queue []models.Announcement, id string) ([]models.Announcement, bool) {
	idx := -1
	for i, a := range queue {
		if a.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return queue, false
	}
	next := make([]models.Announcement, 0, len(queue)-1)
	next = append(next, queue[:idx]...)
	next = append(next, queue[idx+1:]...)
	return next, true
}
