package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pump-desk/internal/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InstrumentLookup 按名称查找币种 (由 desk.Desk 实现)
type InstrumentLookup interface {
	Get(name string) (*model.Instrument, error)
}

// SimulatorConfig 模拟执行器配置
type SimulatorConfig struct {
	MaxHistory int // 保留的操作记录条数，<= 0 表示不限
}

// SimulatorExecutor 实现了 Executor 接口，直接作用于内存中的价格生成器
type SimulatorExecutor struct {
	cfg    *SimulatorConfig
	lookup InstrumentLookup
	logger *zap.SugaredLogger
	now    func() time.Time
	newID  func() string

	mu      sync.RWMutex // 保护 history
	history []*model.ActionRecord
}

// NewSimulatorExecutor 构造函数
func NewSimulatorExecutor(cfg *SimulatorConfig, lookup InstrumentLookup, logger *zap.SugaredLogger) *SimulatorExecutor {
	if cfg == nil {
		cfg = &SimulatorConfig{}
	}
	return &SimulatorExecutor{
		cfg:    cfg,
		lookup: lookup,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Execute 拉盘乘 1.05，砸盘乘 0.95，影响下一根 K 线
func (e *SimulatorExecutor) Execute(ctx context.Context, action model.Action) (*model.ActionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := model.ParseActionType(string(action.Type)); err != nil {
		return nil, err
	}

	inst, err := e.lookup.Get(action.Instrument)
	if err != nil {
		return nil, err
	}

	var before, after float64
	switch action.Type {
	case model.ActionPump:
		before, after = inst.Pump()
	case model.ActionDump:
		before, after = inst.Dump()
	default:
		return nil, fmt.Errorf("unsupported action %q", action.Type)
	}

	record := &model.ActionRecord{
		ID:          e.newID(),
		Instrument:  action.Instrument,
		Type:        action.Type,
		PriceBefore: before,
		PriceAfter:  after,
		At:          e.now(),
	}

	e.mu.Lock()
	e.history = append(e.history, record)
	if e.cfg.MaxHistory > 0 && len(e.history) > e.cfg.MaxHistory {
		e.history = e.history[len(e.history)-e.cfg.MaxHistory:]
	}
	e.mu.Unlock()

	e.logger.Infof("%s: %.8f -> %.8f", action, before, after)
	return record, nil
}

// History 返回记录的副本，防止外部修改
func (e *SimulatorExecutor) History() []*model.ActionRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()

	records := make([]*model.ActionRecord, len(e.history))
	copy(records, e.history)
	return records
}
