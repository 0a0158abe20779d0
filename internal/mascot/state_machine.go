package mascot

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Phase 吉祥物气泡的阶段
type Phase string

const (
	// 挂载后、显示前
	PhasePending Phase = "PENDING"
	// 显示中
	PhaseShowing Phase = "SHOWING"
	// 已隐藏，之后不再变化
	PhaseDismissed Phase = "DISMISSED"
)

// Visible 只有 SHOWING 阶段可见
func (p Phase) Visible() bool { return p == PhaseShowing }

// State 推送给展示层的状态
type State struct {
	Visible bool   `json:"visible"`
	Message string `json:"message"`
	Image   string `json:"image,omitempty"`
	Phase   Phase  `json:"phase"`
}

// Timer 可取消的一次性定时器 (*time.Timer 满足该接口)
type Timer interface {
	Stop() bool
}

// AfterFunc 在 d 之后执行 f
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Config 两个延迟均从挂载时刻起算
type Config struct {
	ShowAfter time.Duration
	HideAfter time.Duration
	Message   string
	Image     string
}

// StateMachine 浮动吉祥物的可见性状态机：PENDING -> SHOWING -> DISMISSED
// 与价格生成器没有任何数据依赖
type StateMachine struct {
	mu        sync.Mutex
	cfg       Config
	phase     Phase
	afterFunc AfterFunc
	timers    []Timer
	onChange  func(State)
	logger    *zap.Logger
	started   bool
	stopped   bool
}

// NewStateMachine 初始化状态机；afterFunc 为 nil 时使用 time.AfterFunc
func NewStateMachine(cfg Config, onChange func(State), afterFunc AfterFunc, logger *zap.Logger) *StateMachine {
	if afterFunc == nil {
		afterFunc = realAfterFunc
	}
	if onChange == nil {
		onChange = func(State) {}
	}
	return &StateMachine{
		cfg:       cfg,
		phase:     PhasePending,
		afterFunc: afterFunc,
		onChange:  onChange,
		logger:    logger,
	}
}

// Start 挂载：同时启动显示和隐藏两个定时器，只生效一次
func (sm *StateMachine) Start() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.started || sm.stopped {
		return
	}
	sm.started = true
	sm.timers = append(sm.timers,
		sm.afterFunc(sm.cfg.ShowAfter, func() { sm.transition(PhaseShowing) }),
		sm.afterFunc(sm.cfg.HideAfter, func() { sm.transition(PhaseDismissed) }),
	)
}

// Stop 卸载：取消尚未触发的定时器，之后不再通知
func (sm *StateMachine) Stop() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.stopped {
		return
	}
	sm.stopped = true
	for _, t := range sm.timers {
		t.Stop()
	}
	sm.timers = nil
}

// State 返回当前状态
func (sm *StateMachine) State() State {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.stateLocked()
}

func (sm *StateMachine) stateLocked() State {
	return State{
		Visible: sm.phase.Visible(),
		Message: sm.cfg.Message,
		Image:   sm.cfg.Image,
		Phase:   sm.phase,
	}
}

func (sm *StateMachine) transition(to Phase) {
	sm.mu.Lock()
	if sm.stopped || sm.phase == PhaseDismissed {
		sm.mu.Unlock()
		return
	}
	// 显示只能从 PENDING 进入
	if to == PhaseShowing && sm.phase != PhasePending {
		sm.mu.Unlock()
		return
	}

	from := sm.phase
	sm.phase = to
	st := sm.stateLocked()
	sm.mu.Unlock()

	sm.logger.Debug("mascot transition",
		zap.String("From", string(from)),
		zap.String("To", string(to)))
	sm.onChange(st)
}
