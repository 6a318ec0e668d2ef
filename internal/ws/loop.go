package ws

import (
	"context"
	"sync"

	"chatsync/internal/engine"
	"chatsync/internal/metrics"

	"github.com/rs/zerolog/log"
)

const (
	actionBufferSize   = 256
	conflictBufferSize = 16
)

// Loop 是会话状态唯一的写者：所有动作经 Dispatch 入队，Run 按入队顺序逐个归约，
// 每次状态变化后重新投影快照并推送给订阅者。
type Loop struct {
	reducer   *engine.Reducer
	actions   chan engine.Action
	done      chan struct{}
	conflicts chan error

	mu      sync.RWMutex
	snap    engine.Snapshot
	subs    map[int]chan engine.Snapshot
	nextSub int
}

func NewLoop(r *engine.Reducer) *Loop {
	if r == nil {
		r = engine.NewReducer()
	}
	return &Loop{
		reducer:   r,
		actions:   make(chan engine.Action, actionBufferSize),
		done:      make(chan struct{}),
		conflicts: make(chan error, conflictBufferSize),
		snap:      engine.Project(engine.NewState()),
		subs:      make(map[int]chan engine.Snapshot),
	}
}

// Dispatch 把动作放入队列。Run 退出后调用直接返回，动作被丢弃。
func (l *Loop) Dispatch(a engine.Action) {
	select {
	case l.actions <- a:
	case <-l.done:
	}
}

// Run 阻塞直到 ctx 取消，只能调用一次。
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	state := engine.NewState()
	for {
		select {
		case <-ctx.Done():
			return
		case a := <-l.actions:
			state = l.apply(state, a)
		}
	}
}

// Done 在 Run 退出后关闭。
func (l *Loop) Done() <-chan struct{} { return l.done }

func (l *Loop) apply(state engine.State, a engine.Action) engine.State {
	kind := engine.KindOf(a)
	next, applied := l.reducer.Step(state, a)
	if !applied {
		metrics.DroppedActionsTotal.WithLabelValues(kind).Inc()
		log.Debug().Str("action", kind).Msg("action dropped")
		return state
	}
	metrics.ActionsTotal.WithLabelValues(kind).Inc()

	if _, ok := a.(engine.CreateRoomFailed); ok {
		select {
		case l.conflicts <- ErrRoomNameTaken:
		default:
			log.Warn().Msg("conflict notification dropped")
		}
	}

	snap := engine.Project(next)
	metrics.UnreadMessages.Set(float64(snap.TotalUnread))
	metrics.AnnouncementsQueued.Set(float64(len(snap.Announcements)))
	l.publish(snap)
	return next
}

func (l *Loop) publish(snap engine.Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snap = snap
	for _, ch := range l.subs {
		select {
		case ch <- snap:
		default:
			// 订阅者只关心最新快照，挤掉尚未消费的旧值
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// Snapshot 返回最近一次投影。
func (l *Loop) Snapshot() engine.Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snap
}

// Subscribe 返回一个只保留最新快照的通道，订阅时立即收到当前快照。
// 调用返回的 cancel 后通道关闭。
func (l *Loop) Subscribe() (<-chan engine.Snapshot, func()) {
	ch := make(chan engine.Snapshot, 1)
	l.mu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = ch
	ch <- l.snap
	l.mu.Unlock()

	cancel := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if sub, ok := l.subs[id]; ok {
			delete(l.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Conflicts 报告服务端拒绝的建房请求（房间名已被占用）。
func (l *Loop) Conflicts() <-chan error { return l.conflicts }
