// Package announce 驱动建房公告的展示周期：队首公告可见一段时间，进入退场动画，
// 随后派发 DismissAnnouncement 让状态循环把它移出队列。
package announce

import (
	"context"
	"time"

	"chatsync/internal/engine"
	"chatsync/internal/models"

	"github.com/rs/zerolog/log"
)

const (
	DefaultVisible = 5 * time.Second
	DefaultExit    = 500 * time.Millisecond
)

type Phase string

const (
	PhaseVisible Phase = "visible"
	PhaseExiting Phase = "exiting"
)

type Dispatcher interface {
	Dispatch(engine.Action)
}

type Scheduler struct {
	visible  time.Duration
	exit     time.Duration
	dispatch Dispatcher
	onPhase  func(models.Announcement, Phase)
}

type Option func(*Scheduler)

// WithDurations 覆盖可见时长与退场时长，非正值保留默认。
func WithDurations(visible, exit time.Duration) Option {
	return func(s *Scheduler) {
		if visible > 0 {
			s.visible = visible
		}
		if exit > 0 {
			s.exit = exit
		}
	}
}

// WithPhaseHook 在公告进入每个展示阶段时回调，回调在 Run 所在 goroutine 执行。
func WithPhaseHook(fn func(models.Announcement, Phase)) Option {
	return func(s *Scheduler) { s.onPhase = fn }
}

func NewScheduler(d Dispatcher, opts ...Option) *Scheduler {
	s := &Scheduler{visible: DefaultVisible, exit: DefaultExit, dispatch: d}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run 消费快照流直到 ctx 取消或 snaps 关闭。同一时刻只展示一条公告；
// 展示中的公告从队列消失（例如会话被重置）时立即放弃。
func (s *Scheduler) Run(ctx context.Context, snaps <-chan engine.Snapshot) {
	var (
		queue   []models.Announcement
		current *models.Announcement
		phase   Phase
		timer   *time.Timer
		timerC  <-chan time.Time
		// 已派发移除但尚未在快照中消失的公告
		dismissed = make(map[string]struct{})
	)
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
		}
		timer, timerC = nil, nil
	}
	startTimer := func(d time.Duration) {
		stopTimer()
		timer = time.NewTimer(d)
		timerC = timer.C
	}
	defer stopTimer()

	for {
		if current == nil {
			if next, ok := head(queue, dismissed); ok {
				current, phase = &next, PhaseVisible
				s.notify(next, phase)
				startTimer(s.visible)
			}
		}

		select {
		case <-ctx.Done():
			return

		case snap, ok := <-snaps:
			if !ok {
				return
			}
			queue = snap.Announcements
			for id := range dismissed {
				if !contains(queue, id) {
					delete(dismissed, id)
				}
			}
			if current != nil && !contains(queue, current.ID) {
				log.Debug().Str("announcement_id", current.ID).Msg("announcement withdrawn")
				current = nil
				stopTimer()
			}

		case <-timerC:
			if phase == PhaseVisible {
				phase = PhaseExiting
				s.notify(*current, phase)
				startTimer(s.exit)
				continue
			}
			id := current.ID
			dismissed[id] = struct{}{}
			current = nil
			stopTimer()
			s.dispatch.Dispatch(engine.DismissAnnouncement{ID: id})
		}
	}
}

func (s *Scheduler) notify(a models.Announcement, p Phase) {
	if s.onPhase != nil {
		s.onPhase(a, p)
	}
}

func head(queue []models.Announcement, skip map[string]struct{}) (models.Announcement, bool) {
	for _, a := range queue {
		if _, ok := skip[a.ID]; !ok {
			return a, true
		}
	}
	return models.Announcement{}, false
}

func contains(queue []models.Announcement, id string) bool {
	for _, a := range queue {
		if a.ID == id {
			return true
		}
	}
	return false
}
