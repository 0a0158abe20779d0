package executor

import (
	"context"

	"pump-desk/internal/model"
)

// Executor 是手动操作的通用接口，按钮点击、HTTP 请求和 websocket 指令都经由它落到价格生成器
type Executor interface {
	// 执行一次拉盘/砸盘，只修改价格，不产生新的 K 线
	Execute(ctx context.Context, action model.Action) (*model.ActionRecord, error)

	// 返回已执行的操作记录
	History() []*model.ActionRecord
}
