package model

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// DefaultSyntheticStep 每次 tick 推进的合成时间 (秒)
const DefaultSyntheticStep int64 = 60

// RandFunc 返回 [0, 1) 区间的伪随机数
type RandFunc func() float64

// Instrument 一个独立模拟的币种：拥有自己的价格和 K 线序列
type Instrument struct {
	mu sync.Mutex

	Name string
	Icon string

	price  float64
	series *Series
	step   int64
	rnd    RandFunc
}

// NewInstrument 创建币种并写入种子 K 线
// initialPrice <= 0 时在 [0.00005, 0.00015) 内随机取值；rnd 为 nil 时使用 math/rand/v2
func NewInstrument(name, icon string, initialPrice float64, step int64, now time.Time, rnd RandFunc) *Instrument {
	if rnd == nil {
		rnd = rand.Float64
	}
	if step <= 0 {
		step = DefaultSyntheticStep
	}
	price := initialPrice
	if price <= 0 {
		price = rnd()*0.0001 + 0.00005
	}

	seed := Sample{
		Time:  now.Unix(),
		Open:  price,
		High:  price,
		Low:   price,
		Close: price,
	}

	return &Instrument{
		Name:   name,
		Icon:   icon,
		price:  price,
		series: NewSeries(seed),
		step:   step,
		rnd:    rnd,
	}
}

// Tick 推进一次价格，生成新的 K 线并返回
// 新 K 线的开盘价取上一根 K 线的收盘价，而不是当前标量价格
func (in *Instrument) Tick() Sample {
	in.mu.Lock()
	defer in.mu.Unlock()

	delta := in.rnd()*2 - 1 // [-1, 1)
	newPrice := math.Max(0, in.price+delta)

	last := in.series.Last()
	next := Sample{
		Time:  last.Time + in.step,
		Open:  last.Close,
		High:  math.Max(last.Close, newPrice),
		Low:   math.Min(last.Close, newPrice),
		Close: newPrice,
	}
	in.series.Insert(next)
	in.price = newPrice

	return next
}

// Pump 当前价格乘以 1.05，不产生新 K 线，返回调整前后的价格
func (in *Instrument) Pump() (before, after float64) {
	return in.scale(PumpFactor)
}

// Dump 当前价格乘以 0.95，不产生新 K 线，返回调整前后的价格
func (in *Instrument) Dump() (before, after float64) {
	return in.scale(DumpFactor)
}

// scale 前后价格在同一临界区内读取，不会与 Tick 交错
func (in *Instrument) scale(factor float64) (before, after float64) {
	in.mu.Lock()
	defer in.mu.Unlock()
	before = in.price
	in.price *= factor
	return before, in.price
}

// Price 返回当前标量价格
func (in *Instrument) Price() float64 {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.price
}

// Series 返回当前 K 线序列的副本 (已按时间升序、无重复时间)
func (in *Instrument) Series() []Sample {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.series.Snapshot()
}

// Closes 返回收盘价序列，供指标计算
func (in *Instrument) Closes() []float64 {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.series.Closes()
}
