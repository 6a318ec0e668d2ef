package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"chatsync/internal/engine"
	"chatsync/internal/metrics"
	"chatsync/internal/protocol"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	writeWait           = 10 * time.Second
	maxFrameSize        = 1 << 20 // 1MB
	sendBufferSize      = 256
	defaultPingInterval = 30 * time.Second
)

// Dispatcher 接收解码后的动作，Loop 实现了它。
type Dispatcher interface {
	Dispatch(engine.Action)
}

// CloseReason 是连接关闭的分类。
type CloseReason string

const (
	// CloseAuth 对应 1008 policy violation，服务端要求重新鉴权。
	CloseAuth CloseReason = "auth"
	// CloseTransient 是其余所有远端关闭或网络错误。
	CloseTransient CloseReason = "transient"
	// CloseLocal 是本端主动关闭。
	CloseLocal CloseReason = "local"
)

// Closed 描述一次连接结束。
type Closed struct {
	Code   int
	Reason CloseReason
	Err    error
}

type Options struct {
	Token        string
	PingInterval time.Duration
	// SendLimit/SendBurst 限制用户侧发帧速率，零值使用每秒 10 帧、突发 20。
	SendLimit rate.Limit
	SendBurst int
	Dialer    *websocket.Dialer
}

// Conn 是到聊天服务端的一条 websocket 连接，实现 service.Sender。
type Conn struct {
	ws           *websocket.Conn
	send         chan []byte
	limiter      *rate.Limiter
	pingInterval time.Duration
	done         chan struct{}
	closeOnce    sync.Once
	pumping      atomic.Bool
}

// Dial 携带 bearer token 完成握手。握手被 401/403 拒绝时返回 ErrUnauthorized。
func Dial(ctx context.Context, rawURL string, opts Options) (*Conn, error) {
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	header := http.Header{}
	if opts.Token != "" {
		header.Set("Authorization", "Bearer "+opts.Token)
	}
	wsConn, resp, err := dialer.DialContext(ctx, rawURL, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: handshake status %d", ErrUnauthorized, resp.StatusCode)
		}
		return nil, fmt.Errorf("ws dial: %w", err)
	}
	return newConn(wsConn, opts), nil
}

func newConn(wsConn *websocket.Conn, opts Options) *Conn {
	ping := opts.PingInterval
	if ping <= 0 {
		ping = defaultPingInterval
	}
	limit, burst := opts.SendLimit, opts.SendBurst
	if limit == 0 {
		limit = rate.Every(time.Second / 10)
	}
	if burst <= 0 {
		burst = 20
	}
	return &Conn{
		ws:           wsConn,
		send:         make(chan []byte, sendBufferSize),
		limiter:      rate.NewLimiter(limit, burst),
		pingInterval: ping,
		done:         make(chan struct{}),
	}
}

// Send 把一帧放入写队列，不阻塞。
func (c *Conn) Send(frame []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	if !c.limiter.Allow() {
		return ErrRateLimited
	}
	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		return ErrSendBufferFull
	}
}

// Close 主动关闭连接，可重复调用。
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if !c.pumping.Load() {
			_ = c.ws.Close()
		}
	})
}

// Pump 启动写协程并在当前 goroutine 读帧，直到连接关闭。每帧解码后转成动作交给 d，
// 无法解码的帧记录日志后跳过。
func (c *Conn) Pump(d Dispatcher) Closed {
	c.pumping.Store(true)
	go c.writePump()
	return c.readPump(d)
}

func (c *Conn) readPump(d Dispatcher) Closed {
	defer c.Close()
	readWait := 2 * c.pingInterval
	c.ws.SetReadLimit(maxFrameSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(readWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(readWait))
	})
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return c.classify(err)
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(readWait))
		metrics.WsFramesTotal.WithLabelValues("in").Inc()

		ev, err := protocol.Decode(data)
		if err != nil {
			log.Warn().Err(err).Int("size", len(data)).Msg("ws decode")
			continue
		}
		d.Dispatch(ev.Action())
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Warn().Err(err).Msg("ws write")
				return
			}
			metrics.WsFramesTotal.WithLabelValues("out").Inc()
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

func (c *Conn) classify(err error) Closed {
	select {
	case <-c.done:
		return Closed{Code: websocket.CloseNormalClosure, Reason: CloseLocal, Err: err}
	default:
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		if ce.Code == websocket.ClosePolicyViolation {
			return Closed{Code: ce.Code, Reason: CloseAuth, Err: err}
		}
		return Closed{Code: ce.Code, Reason: CloseTransient, Err: err}
	}
	return Closed{Code: websocket.CloseAbnormalClosure, Reason: CloseTransient, Err: err}
}
