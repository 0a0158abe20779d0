package model

import (
	"fmt"
	"time"
)

const (
	// 手动拉盘 / 砸盘对当前价格的乘数
	PumpFactor = 1.05
	DumpFactor = 0.95
)

// ActionType 定义了手动操作类型
type ActionType string

const (
	ActionPump ActionType = "pump" // 拉盘
	ActionDump ActionType = "dump" // 砸盘
)

// ParseActionType 将字符串解析为 ActionType
func ParseActionType(s string) (ActionType, error) {
	switch ActionType(s) {
	case ActionPump, ActionDump:
		return ActionType(s), nil
	default:
		return "", fmt.Errorf("unsupported action %q", s)
	}
}

// Action 是展示层转发过来的一次按钮点击
type Action struct {
	Instrument string
	Type       ActionType
}

func (a Action) String() string {
	return fmt.Sprintf("ACTION [%s] %s", a.Type, a.Instrument)
}

// ActionRecord 记录一次已执行的手动操作
type ActionRecord struct {
	ID          string     `json:"id"`
	Instrument  string     `json:"instrument"`
	Type        ActionType `json:"type"`
	PriceBefore float64    `json:"priceBefore"`
	PriceAfter  float64    `json:"priceAfter"`
	At          time.Time  `json:"at"`
}
