package api

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"pump-desk/internal/mascot"
	"pump-desk/internal/model"
	"pump-desk/internal/render"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	maxMsgSize = 4096

	// 每个连接的发送缓冲
	sendBuffer = 64
)

var (
	errSessionClosed = errors.New("session closed")
	errSlowConsumer  = errors.New("send buffer full")
)

// WsRequest 客户端 -> 服务端
// {"op":"subscribe","args":["mDOG"]} / {"op":"pump","instId":"mDOG"}
type WsRequest struct {
	Op     string   `json:"op"`
	Args   []string `json:"args,omitempty"`
	InstId string   `json:"instId,omitempty"`
}

// WsEvent 服务端 -> 客户端
type WsEvent struct {
	Event  string      `json:"event"`
	InstId string      `json:"instId,omitempty"`
	Data   interface{} `json:"data,omitempty"`
	Msg    string      `json:"msg,omitempty"`
}

const (
	opSubscribe   = "subscribe"
	opUnsubscribe = "unsubscribe"

	eventInit    = "init"
	eventSetData = "setData"
	eventMascot  = "mascot"
	eventAction  = "action"
	eventRemoved = "removed"
	eventError   = "error"
)

// Session 一个浏览器 websocket 连接
// 每个订阅的币种对应一个 chartSurface，吉祥物状态机随连接启动和停止
// 所有写操作进入 out 队列，由 writeLoop 单独写出，慢客户端不会阻塞渲染
type Session struct {
	id     string
	conn   *websocket.Conn
	srv    *Server
	logger *zap.Logger
	mascot *mascot.StateMachine

	out  chan WsEvent
	done chan struct{}

	dropped atomic.Int64 // 因缓冲满而丢弃的 setData 帧

	mu       sync.Mutex
	closed   bool
	surfaces map[string]*chartSurface // instId -> surface
}

func newSession(conn *websocket.Conn, srv *Server) *Session {
	id := uuid.NewString()
	s := &Session{
		id:       id,
		conn:     conn,
		srv:      srv,
		logger:   srv.logger.With(zap.String("Session", id)),
		out:      make(chan WsEvent, sendBuffer),
		done:     make(chan struct{}),
		surfaces: make(map[string]*chartSurface),
	}
	s.mascot = mascot.NewStateMachine(srv.mascotCfg, s.onMascot, nil, s.logger)
	return s
}

// ID 返回会话标识
func (s *Session) ID() string { return s.id }

// run 阻塞直到连接断开
func (s *Session) run() {
	defer s.close()

	s.conn.SetReadLimit(maxMsgSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go s.writeLoop()

	s.mascot.Start()
	s.logger.Info("session opened", zap.String("Remote", s.conn.RemoteAddr().String()))

	s.readLoop()
}

// readLoop 持续读取客户端指令
func (s *Session) readLoop() {
	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("session read error", zap.Error(err))
			}
			return
		}

		var req WsRequest
		if err := json.Unmarshal(message, &req); err != nil {
			s.sendError("", "malformed request")
			continue
		}
		s.handle(req)
	}
}

func (s *Session) handle(req WsRequest) {
	switch req.Op {
	case opSubscribe:
		for _, instID := range req.Args {
			s.subscribe(instID)
		}
	case opUnsubscribe:
		for _, instID := range req.Args {
			s.srv.registry.Detach(instID, s.surfaceID(instID))
		}
	default:
		kind, err := model.ParseActionType(req.Op)
		if err != nil {
			s.sendError(req.InstId, err.Error())
			return
		}
		rec, err := s.srv.executor.Execute(s.srv.ctx(), model.Action{Instrument: req.InstId, Type: kind})
		if err != nil {
			s.sendError(req.InstId, err.Error())
			return
		}
		_ = s.send(WsEvent{Event: eventAction, InstId: req.InstId, Data: rec})
	}
}

func (s *Session) subscribe(instID string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if _, ok := s.surfaces[instID]; ok {
		s.mu.Unlock()
		return
	}
	cs := &chartSurface{session: s, instID: instID}
	s.surfaces[instID] = cs
	s.mu.Unlock()

	if err := s.srv.registry.Attach(instID, cs); err != nil {
		s.forget(instID)
		s.sendError(instID, err.Error())
	}
}

func (s *Session) forget(instID string) {
	s.mu.Lock()
	delete(s.surfaces, instID)
	s.mu.Unlock()
}

func (s *Session) surfaceID(instID string) string {
	return s.id + "/" + instID
}

func (s *Session) onMascot(st mascot.State) {
	_ = s.send(WsEvent{Event: eventMascot, Data: st})
}

func (s *Session) sendError(instID, msg string) {
	_ = s.send(WsEvent{Event: eventError, InstId: instID, Msg: msg})
}

// send 把事件放入发送队列，不阻塞
// setData 是整体替换，缓冲满时丢弃该帧即可，下一次 tick 会带上完整序列；其它事件缓冲满时返回错误
func (s *Session) send(ev WsEvent) error {
	select {
	case <-s.done:
		return errSessionClosed
	default:
	}

	select {
	case s.out <- ev:
		return nil
	default:
	}

	if ev.Event == eventSetData {
		if n := s.dropped.Add(1); n%100 == 1 {
			s.logger.Debug("send buffer full, dropping frame",
				zap.String("InstId", ev.InstId), zap.Int64("Dropped", n))
		}
		return nil
	}
	s.logger.Warn("send buffer full", zap.String("Event", ev.Event), zap.String("InstId", ev.InstId))
	return errSlowConsumer
}

// writeLoop 连接上唯一的写协程：依次写出队列中的事件，并定时发送 ping
func (s *Session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case ev := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(ev); err != nil {
				s.logger.Warn("session write error", zap.Error(err))
				// 让读循环退出并走 close 流程
				_ = s.conn.Close()
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = s.conn.Close()
				return
			}
		}
	}
}

// close 停止吉祥物定时器并解绑所有图表
func (s *Session) close() {
	s.mascot.Stop()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.done)
	instIDs := make([]string, 0, len(s.surfaces))
	for instID := range s.surfaces {
		instIDs = append(instIDs, instID)
	}
	s.mu.Unlock()

	for _, instID := range instIDs {
		s.srv.registry.Detach(instID, s.surfaceID(instID))
	}
	_ = s.conn.Close()
	s.logger.Info("session closed")
}

// chartSurface 会话中某个币种的 K 线图
type chartSurface struct {
	session *Session
	instID  string
	once    sync.Once
}

func (c *chartSurface) ID() string { return c.session.surfaceID(c.instID) }

func (c *chartSurface) Init(opts render.ChartOptions) error {
	return c.session.send(WsEvent{Event: eventInit, InstId: c.instID, Data: opts})
}

func (c *chartSurface) SetData(samples []model.Sample) error {
	return c.session.send(WsEvent{Event: eventSetData, InstId: c.instID, Data: samples})
}

// Close 由渲染器调用 (取消订阅、币种被移除或写失败)，不关闭底层连接
func (c *chartSurface) Close() error {
	c.once.Do(func() {
		c.session.forget(c.instID)
		_ = c.session.send(WsEvent{Event: eventRemoved, InstId: c.instID})
	})
	return nil
}
