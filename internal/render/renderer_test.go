package render

import (
	"errors"
	"sync"
	"testing"
	"time"

	"pump-desk/internal/model"
	"pump-desk/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSurface struct {
	mu      sync.Mutex
	id      string
	calls   []string
	opts    *ChartOptions
	data    [][]model.Sample
	closed  int
	late    int // 释放后仍收到的 SetData 次数
	failSet bool
}

func (f *fakeSurface) ID() string { return f.id }

func (f *fakeSurface) Init(opts ChartOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "init")
	f.opts = &opts
	return nil
}

func (f *fakeSurface) SetData(samples []model.Sample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSet {
		return errors.New("broken pipe")
	}
	if f.closed > 0 {
		f.late++
	}
	f.calls = append(f.calls, "setData")
	f.data = append(f.data, samples)
	return nil
}

func (f *fakeSurface) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

// gatedSurface 在 gate 被设置后，SetData 会阻塞直到 gate 关闭
type gatedSurface struct {
	fakeSurface
	gate    chan struct{}
	entered chan struct{}
}

func (g *gatedSurface) arm() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gate = make(chan struct{})
	g.entered = make(chan struct{}, 1)
}

func (g *gatedSurface) SetData(samples []model.Sample) error {
	g.mu.Lock()
	gate, entered := g.gate, g.entered
	g.mu.Unlock()
	if gate != nil {
		entered <- struct{}{}
		<-gate
	}
	return g.fakeSurface.SetData(samples)
}

func testOptions() ChartOptions {
	return OptionsFromConfig(service.ChartConfig{
		Width: 250, Height: 200,
		BackgroundColor: "#ffffff", TextColor: "#000000",
		GridColor: "#e1e1e1", BorderColor: "#cccccc",
		UpColor: "#4caf50", DownColor: "#f44336",
	})
}

func TestRenderer_Bind(t *testing.T) {
	seed := []model.Sample{{Time: 100, Open: 1, High: 1, Low: 1, Close: 1}}

	t.Run("sends options once before the current series", func(t *testing.T) {
		r := NewRenderer("mDOG", testOptions(), zap.NewNop())
		s := &fakeSurface{id: "a"}

		require.NoError(t, r.Bind(s, seed))

		assert.Equal(t, []string{"init", "setData"}, s.calls)
		assert.Equal(t, 250, s.opts.Width)
		assert.Equal(t, "#4caf50", s.opts.Candles.WickUpColor)
		assert.Equal(t, "#f44336", s.opts.Candles.BorderDownColor)
		assert.Equal(t, seed, s.data[0])
		assert.Equal(t, 1, r.Len())
	})

	t.Run("rejects the same surface twice", func(t *testing.T) {
		r := NewRenderer("mDOG", testOptions(), zap.NewNop())
		s := &fakeSurface{id: "a"}
		require.NoError(t, r.Bind(s, seed))

		assert.Error(t, r.Bind(s, seed))
		assert.Equal(t, 1, r.Len())
	})

	t.Run("unbinds when the first write fails", func(t *testing.T) {
		r := NewRenderer("mDOG", testOptions(), zap.NewNop())
		s := &fakeSurface{id: "a", failSet: true}

		assert.Error(t, r.Bind(s, seed))
		assert.Equal(t, 0, r.Len())
		assert.Equal(t, 1, s.closed)
	})

	t.Run("fails after close", func(t *testing.T) {
		r := NewRenderer("mDOG", testOptions(), zap.NewNop())
		r.Close()

		assert.ErrorIs(t, r.Bind(&fakeSurface{id: "a"}, seed), ErrClosed)
	})
}

func TestRenderer_Render(t *testing.T) {
	t.Run("replaces the full dataset on every surface", func(t *testing.T) {
		r := NewRenderer("SCF", testOptions(), zap.NewNop())
		a, b := &fakeSurface{id: "a"}, &fakeSurface{id: "b"}
		require.NoError(t, r.Bind(a, nil))
		require.NoError(t, r.Bind(b, nil))

		full := []model.Sample{{Time: 100}, {Time: 160}, {Time: 220}}
		r.Render(full)

		assert.Equal(t, full, a.data[len(a.data)-1])
		assert.Equal(t, full, b.data[len(b.data)-1])
	})

	t.Run("drops surfaces whose write fails", func(t *testing.T) {
		r := NewRenderer("SCF", testOptions(), zap.NewNop())
		good, bad := &fakeSurface{id: "good"}, &fakeSurface{id: "bad"}
		require.NoError(t, r.Bind(good, nil))
		require.NoError(t, r.Bind(bad, nil))

		bad.mu.Lock()
		bad.failSet = true
		bad.mu.Unlock()
		r.Render([]model.Sample{{Time: 100}})

		assert.Equal(t, 1, r.Len())
		assert.Equal(t, 1, bad.closed)
		assert.Equal(t, 0, good.closed)
	})

	t.Run("is a no-op after close", func(t *testing.T) {
		r := NewRenderer("SCF", testOptions(), zap.NewNop())
		s := &fakeSurface{id: "a"}
		require.NoError(t, r.Bind(s, nil))
		r.Close()

		r.Render([]model.Sample{{Time: 100}})

		assert.Len(t, s.data, 1)
	})
}

func TestRenderer_CloseDuringRender(t *testing.T) {
	r := NewRenderer("MOTHER", testOptions(), zap.NewNop())
	blocked := &gatedSurface{fakeSurface: fakeSurface{id: "a"}}
	other := &fakeSurface{id: "b"}
	require.NoError(t, r.Bind(blocked, nil))
	require.NoError(t, r.Bind(other, nil))
	blocked.arm()

	rendered := make(chan struct{})
	go func() {
		r.Render([]model.Sample{{Time: 100}})
		close(rendered)
	}()
	<-blocked.entered

	closed := make(chan struct{})
	go func() {
		r.Close()
		close(closed)
	}()

	// Close 必须等待进行中的 Render
	select {
	case <-closed:
		t.Fatal("Close returned while a render was still writing")
	case <-time.After(50 * time.Millisecond):
	}

	close(blocked.gate)
	<-rendered
	<-closed

	other.mu.Lock()
	defer other.mu.Unlock()
	assert.Equal(t, 0, other.late)
	assert.Equal(t, 1, other.closed)
	blocked.mu.Lock()
	defer blocked.mu.Unlock()
	assert.Equal(t, 0, blocked.late)
	assert.Equal(t, 1, blocked.closed)
}

func TestRenderer_UnbindDuringRender(t *testing.T) {
	r := NewRenderer("MOTHER", testOptions(), zap.NewNop())
	blocked := &gatedSurface{fakeSurface: fakeSurface{id: "a"}}
	other := &fakeSurface{id: "b"}
	require.NoError(t, r.Bind(blocked, nil))
	require.NoError(t, r.Bind(other, nil))
	blocked.arm()

	go r.Render([]model.Sample{{Time: 100}})
	<-blocked.entered

	unbound := make(chan struct{})
	go func() {
		r.Unbind("b")
		close(unbound)
	}()
	close(blocked.gate)
	<-unbound

	r.Render([]model.Sample{{Time: 160}})

	other.mu.Lock()
	defer other.mu.Unlock()
	assert.Equal(t, 0, other.late)
	assert.Equal(t, 1, other.closed)
}

func TestRenderer_Close(t *testing.T) {
	r := NewRenderer("FWOG", testOptions(), zap.NewNop())
	a, b := &fakeSurface{id: "a"}, &fakeSurface{id: "b"}
	require.NoError(t, r.Bind(a, nil))
	require.NoError(t, r.Bind(b, nil))

	r.Close()
	r.Close()

	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 1, a.closed)
	assert.Equal(t, 1, b.closed)
}

func TestRenderer_Unbind(t *testing.T) {
	r := NewRenderer("FWOG", testOptions(), zap.NewNop())
	a := &fakeSurface{id: "a"}
	require.NoError(t, r.Bind(a, nil))

	r.Unbind("a")
	r.Unbind("a")

	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 1, a.closed)
}
