package render

import (
	"errors"
	"fmt"
	"sync"

	"pump-desk/internal/model"

	"go.uber.org/zap"
)

// ErrClosed 渲染器已释放
var ErrClosed = errors.New("renderer closed")

// Renderer 将一个币种的 K 线序列绑定到所有显示面
// 每次 Render 都是整体替换，不做增量追加
type Renderer struct {
	instrument string
	opts       ChartOptions
	logger     *zap.Logger

	// renderMu 串行化 Bind/Render/Unbind/Close：
	// Close 或 Unbind 返回后，被释放的显示面不会再收到 SetData
	renderMu sync.Mutex

	mu       sync.Mutex
	surfaces map[string]Surface
	closed   bool
}

// NewRenderer 创建渲染器
func NewRenderer(instrument string, opts ChartOptions, logger *zap.Logger) *Renderer {
	return &Renderer{
		instrument: instrument,
		opts:       opts,
		logger:     logger,
		surfaces:   make(map[string]Surface),
	}
}

// Bind 初始化显示面 (只发送一次尺寸和配色)，随后推送当前完整序列
func (r *Renderer) Bind(s Surface, current []model.Sample) error {
	r.renderMu.Lock()
	defer r.renderMu.Unlock()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	if _, exists := r.surfaces[s.ID()]; exists {
		r.mu.Unlock()
		return fmt.Errorf("surface %s already bound to %s", s.ID(), r.instrument)
	}
	r.surfaces[s.ID()] = s
	r.mu.Unlock()

	if err := s.Init(r.opts); err != nil {
		r.release(s.ID())
		return fmt.Errorf("init surface: %w", err)
	}
	if err := s.SetData(current); err != nil {
		r.release(s.ID())
		return fmt.Errorf("set data: %w", err)
	}

	r.logger.Debug("surface bound", zap.String("Surface", s.ID()))
	return nil
}

// Render 用完整序列替换所有显示面的数据。写入失败的显示面会被释放并解绑
// 显示面的 SetData 应当不阻塞 (例如写入缓冲队列)，否则会拖慢该币种的下一次 tick
func (r *Renderer) Render(samples []model.Sample) {
	r.renderMu.Lock()
	defer r.renderMu.Unlock()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	targets := make([]Surface, 0, len(r.surfaces))
	for _, s := range r.surfaces {
		targets = append(targets, s)
	}
	r.mu.Unlock()

	for _, s := range targets {
		if err := s.SetData(samples); err != nil {
			r.logger.Warn("surface write failed, releasing",
				zap.String("Surface", s.ID()), zap.Error(err))
			r.release(s.ID())
		}
	}
}

// Unbind 解绑并释放显示面，等待进行中的 Render 结束
func (r *Renderer) Unbind(id string) {
	r.renderMu.Lock()
	defer r.renderMu.Unlock()
	r.release(id)
}

// release 调用方需持有 renderMu
func (r *Renderer) release(id string) {
	r.mu.Lock()
	s, ok := r.surfaces[id]
	delete(r.surfaces, id)
	r.mu.Unlock()

	if !ok {
		return
	}
	if err := s.Close(); err != nil {
		r.logger.Debug("surface close", zap.String("Surface", id), zap.Error(err))
	}
}

// Len 返回已绑定的显示面数量
func (r *Renderer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.surfaces)
}

// Close 等待进行中的 Render 结束后释放所有显示面，之后的 Bind 返回 ErrClosed
func (r *Renderer) Close() {
	r.renderMu.Lock()
	defer r.renderMu.Unlock()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	surfaces := r.surfaces
	r.surfaces = make(map[string]Surface)
	r.mu.Unlock()

	for id, s := range surfaces {
		if err := s.Close(); err != nil {
			r.logger.Debug("surface close", zap.String("Surface", id), zap.Error(err))
		}
	}
	r.logger.Info("renderer closed", zap.Int("Surfaces", len(surfaces)))
}
