package scheduler

import (
	"fmt"
	"sync"
	"time"

	"pump-desk/internal/service"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler 管理所有币种的重复定时任务，每个币种一个可取消的句柄
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger

	mu      sync.Mutex
	handles map[string]*Handle
}

// Handle 对应一个已注册的重复任务
type Handle struct {
	name     string
	id       cron.EntryID
	interval time.Duration
	s        *Scheduler
	fn       func()
	once     sync.Once

	runMu     sync.Mutex // 执行与取消互斥
	cancelled bool
}

// NewScheduler 创建调度器
// 同一任务上一次尚未执行完时，下一次执行会排队等待，任务之间不会并发
func NewScheduler(logger *zap.Logger) *Scheduler {
	cl := cronLogger{logger: logger.Sugar()}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.DelayIfStillRunning(cl)),
		),
		logger:  logger,
		handles: make(map[string]*Handle),
	}
}

// Every 以固定间隔重复执行 fn。间隔必须 >= 1s (cron 的最小粒度)
func (s *Scheduler) Every(name string, interval time.Duration, fn func()) (*Handle, error) {
	if interval < time.Second {
		return nil, fmt.Errorf("interval %s for %s is below the 1s minimum", interval, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.handles[name]; exists {
		return nil, fmt.Errorf("task %s already scheduled", name)
	}

	h := &Handle{name: name, interval: interval, s: s, fn: fn}
	h.id = s.cron.Schedule(cron.Every(interval), cron.FuncJob(h.run))
	s.handles[name] = h

	s.logger.Info("task scheduled",
		zap.String("Task", name),
		zap.String("Interval", service.FormatInterval(interval)))
	return h, nil
}

// run 已取消的句柄不再执行 fn
func (h *Handle) run() {
	h.runMu.Lock()
	defer h.runMu.Unlock()
	if h.cancelled {
		return
	}
	h.fn()
}

// Cancel 移除任务，可重复调用
// 返回时正在执行的那一次已经结束，之后 fn 不会再被调用；不能在 fn 内部调用
func (h *Handle) Cancel() {
	h.once.Do(func() {
		h.runMu.Lock()
		h.cancelled = true
		h.runMu.Unlock()

		h.s.cron.Remove(h.id)

		h.s.mu.Lock()
		delete(h.s.handles, h.name)
		h.s.mu.Unlock()

		h.s.logger.Info("task cancelled", zap.String("Task", h.name))
	})
}

// Name 返回任务名称
func (h *Handle) Name() string { return h.name }

// Active 判断任务是否仍在调度中
func (s *Scheduler) Active(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.handles[name]
	return ok
}

// Len 返回 cron 中的任务数量
func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

// Start 启动调度
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started")
}

// Stop 停止调度并等待正在执行的任务结束
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// cronLogger 将 cron 的日志接入 zap
type cronLogger struct {
	logger *zap.SugaredLogger
}

// Info cron 每次唤醒都会打印，降为 debug
func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
