package desk

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"pump-desk/internal/model"
	"pump-desk/internal/render"
	"pump-desk/internal/scheduler"
	"pump-desk/internal/service"

	"go.uber.org/zap"
)

var (
	ErrUnknownInstrument   = errors.New("unknown instrument")
	ErrDuplicateInstrument = errors.New("duplicate instrument")
)

// Options 控制币种的 tick 节奏和图表外观
type Options struct {
	Interval      time.Duration // 真实时间 tick 间隔
	SyntheticStep int64         // 每次 tick 的合成时间步长 (秒)
	Chart         render.ChartOptions
	Now           func() time.Time // 种子 K 线的时间，默认 time.Now
	Rand          model.RandFunc   // 默认 math/rand/v2
}

type entry struct {
	inst     *model.Instrument
	renderer *render.Renderer
	handle   *scheduler.Handle
	logger   *zap.Logger
}

// Desk 持有所有币种：价格生成器、渲染器和定时任务句柄
// Remove/Close 会确定性地释放定时器和显示面
type Desk struct {
	sched  *scheduler.Scheduler
	opts   Options
	logger *zap.Logger

	mu      sync.RWMutex
	order   []string
	entries map[string]*entry
}

// New 创建 Desk
func New(sched *scheduler.Scheduler, opts Options, logger *zap.Logger) *Desk {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SyntheticStep <= 0 {
		opts.SyntheticStep = model.DefaultSyntheticStep
	}
	return &Desk{
		sched:   sched,
		opts:    opts,
		logger:  logger,
		entries: make(map[string]*entry),
	}
}

// Add 创建币种、渲染器，并注册 tick 定时任务
func (d *Desk) Add(cfg service.InstrumentConfig) (*model.Instrument, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.entries[cfg.Name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateInstrument, cfg.Name)
	}

	logger := d.logger.With(zap.String("Instrument", cfg.Name))
	inst := model.NewInstrument(cfg.Name, cfg.Icon, cfg.InitialPrice, d.opts.SyntheticStep, d.opts.Now(), d.opts.Rand)
	e := &entry{
		inst:     inst,
		renderer: render.NewRenderer(cfg.Name, d.opts.Chart, logger),
		logger:   logger,
	}

	handle, err := d.sched.Every(cfg.Name, d.opts.Interval, func() { d.tick(e) })
	if err != nil {
		e.renderer.Close()
		return nil, fmt.Errorf("schedule %s: %w", cfg.Name, err)
	}
	e.handle = handle

	d.entries[cfg.Name] = e
	d.order = append(d.order, cfg.Name)

	logger.Info("instrument added", zap.Float64("Price", inst.Price()))
	return inst, nil
}

// tick 推进价格并整体重绘
func (d *Desk) tick(e *entry) model.Sample {
	s := e.inst.Tick()
	e.renderer.Render(e.inst.Series())
	e.logger.Debug("tick",
		zap.Int64("Time", s.Time),
		zap.Float64("Open", s.Open),
		zap.Float64("Close", s.Close))
	return s
}

// Remove 取消定时任务并释放所有显示面
func (d *Desk) Remove(name string) error {
	d.mu.Lock()
	e, ok := d.entries[name]
	if !ok {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownInstrument, name)
	}
	delete(d.entries, name)
	for i, n := range d.order {
		if n == name {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	d.mu.Unlock()

	// 先停定时器，再释放显示面，避免向已销毁的图表写数据
	e.handle.Cancel()
	e.renderer.Close()
	e.logger.Info("instrument removed")
	return nil
}

// Get 按名称查找币种
func (d *Desk) Get(name string) (*model.Instrument, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownInstrument, name)
	}
	return e.inst, nil
}

// List 按添加顺序返回所有币种
func (d *Desk) List() []*model.Instrument {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*model.Instrument, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, d.entries[name].inst)
	}
	return out
}

// Attach 把显示面绑定到币种，立即推送图表配置和当前序列
func (d *Desk) Attach(name string, s render.Surface) error {
	d.mu.RLock()
	e, ok := d.entries[name]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownInstrument, name)
	}
	return e.renderer.Bind(s, e.inst.Series())
}

// Detach 解绑显示面
func (d *Desk) Detach(name, surfaceID string) {
	d.mu.RLock()
	e, ok := d.entries[name]
	d.mu.RUnlock()
	if ok {
		e.renderer.Unbind(surfaceID)
	}
}

// Surfaces 返回币种已绑定的显示面数量
func (d *Desk) Surfaces(name string) int {
	d.mu.RLock()
	e, ok := d.entries[name]
	d.mu.RUnlock()
	if !ok {
		return 0
	}
	return e.renderer.Len()
}

// TickNow 立即执行一次 tick (不等待定时器)
func (d *Desk) TickNow(name string) (model.Sample, error) {
	d.mu.RLock()
	e, ok := d.entries[name]
	d.mu.RUnlock()
	if !ok {
		return model.Sample{}, fmt.Errorf("%w: %s", ErrUnknownInstrument, name)
	}
	return d.tick(e), nil
}

// Close 移除所有币种
func (d *Desk) Close() {
	d.mu.RLock()
	names := append([]string(nil), d.order...)
	d.mu.RUnlock()

	for _, name := range names {
		_ = d.Remove(name)
	}
}
