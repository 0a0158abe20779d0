package render

import (
	"pump-desk/internal/model"
	"pump-desk/internal/service"
)

// Surface 是一个图表显示面 (例如某个浏览器会话里某个币种的 K 线图)
type Surface interface {
	// ID 唯一标识
	ID() string
	// Init 创建图表，只在绑定时调用一次
	Init(opts ChartOptions) error
	// SetData 用完整序列替换图表数据
	SetData(samples []model.Sample) error
	// Close 释放显示面
	Close() error
}

type LayoutOptions struct {
	BackgroundColor string `json:"backgroundColor"`
	TextColor       string `json:"textColor"`
}

type LineOptions struct {
	Color string `json:"color"`
}

type GridOptions struct {
	VertLines LineOptions `json:"vertLines"`
	HorzLines LineOptions `json:"horzLines"`
}

type ScaleOptions struct {
	BorderColor string `json:"borderColor"`
}

type CandleOptions struct {
	UpColor         string `json:"upColor"`
	DownColor       string `json:"downColor"`
	BorderUpColor   string `json:"borderUpColor"`
	BorderDownColor string `json:"borderDownColor"`
	WickUpColor     string `json:"wickUpColor"`
	WickDownColor   string `json:"wickDownColor"`
}

// ChartOptions 图表创建时的配置：尺寸、配色、边框
// 尺寸只在创建时确定，之后不随容器变化
type ChartOptions struct {
	Width      int           `json:"width"`
	Height     int           `json:"height"`
	Layout     LayoutOptions `json:"layout"`
	Grid       GridOptions   `json:"grid"`
	PriceScale ScaleOptions  `json:"priceScale"`
	TimeScale  ScaleOptions  `json:"timeScale"`
	Candles    CandleOptions `json:"candles"`
}

// OptionsFromConfig 根据配置构造图表选项
func OptionsFromConfig(cfg service.ChartConfig) ChartOptions {
	return ChartOptions{
		Width:  cfg.Width,
		Height: cfg.Height,
		Layout: LayoutOptions{
			BackgroundColor: cfg.BackgroundColor,
			TextColor:       cfg.TextColor,
		},
		Grid: GridOptions{
			VertLines: LineOptions{Color: cfg.GridColor},
			HorzLines: LineOptions{Color: cfg.GridColor},
		},
		PriceScale: ScaleOptions{BorderColor: cfg.BorderColor},
		TimeScale:  ScaleOptions{BorderColor: cfg.BorderColor},
		Candles: CandleOptions{
			UpColor:         cfg.UpColor,
			DownColor:       cfg.DownColor,
			BorderUpColor:   cfg.UpColor,
			BorderDownColor: cfg.DownColor,
			WickUpColor:     cfg.UpColor,
			WickDownColor:   cfg.DownColor,
		},
	}
}
