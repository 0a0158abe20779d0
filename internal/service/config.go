// internal/service/config.go
package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// InstrumentConfig 单个模拟币种的展示与初始价格
type InstrumentConfig struct {
	Name         string  // 展示名称，同时作为唯一标识
	Icon         string  // 图标路径，为空时不显示
	InitialPrice float64 // 初始价格，0 表示随机
}

type Config struct {
	Server      ServerConfig       `mapstructure:"Server"`
	Log         LogConfig          `mapstructure:"Log"`
	Ticker      TickerConfig       `mapstructure:"Ticker"`
	Mascot      MascotConfig       `mapstructure:"Mascot"`
	Chart       ChartConfig        `mapstructure:"Chart"`
	Instruments []InstrumentConfig `mapstructure:"Instruments"`
}

type ServerConfig struct {
	Addr string
}

type LogConfig struct {
	Level string
}

// TickerConfig 定义了价格生成器的节奏
type TickerConfig struct {
	Interval      string // 真实时间间隔，例如 "1s"
	SyntheticStep int64  // 每次 tick 推进的合成时间 (秒)
}

// MascotConfig 定义了浮动吉祥物气泡的显示时间
type MascotConfig struct {
	ShowAfter string // 挂载后多久显示，例如 "500ms"
	HideAfter string // 挂载后多久隐藏，例如 "10s"
	Message   string
	Image     string // 为空时只显示气泡
}

// ChartConfig K 线图创建时的尺寸与配色
type ChartConfig struct {
	Width           int
	Height          int
	BackgroundColor string
	TextColor       string
	GridColor       string
	BorderColor     string
	UpColor         string
	DownColor       string
}

// TickInterval 返回解析后的 tick 间隔
func (c *Config) TickInterval() time.Duration {
	d, _ := ParseIntervalDuration(c.Ticker.Interval)
	return d
}

// MascotDelays 返回吉祥物的显示/隐藏延迟 (均从挂载时刻起算)
func (c *Config) MascotDelays() (show, hide time.Duration) {
	show, _ = ParseIntervalDuration(c.Mascot.ShowAfter)
	hide, _ = ParseIntervalDuration(c.Mascot.HideAfter)
	return show, hide
}

// Validate 检查配置是否可用
func (c *Config) Validate() error {
	tick, err := ParseIntervalDuration(c.Ticker.Interval)
	if err != nil {
		return fmt.Errorf("Ticker.Interval: %w", err)
	}
	if tick < time.Second {
		return fmt.Errorf("Ticker.Interval must be at least 1s, got %s", c.Ticker.Interval)
	}
	if c.Ticker.SyntheticStep <= 0 {
		return errors.New("Ticker.SyntheticStep must be positive")
	}

	show, err := ParseIntervalDuration(c.Mascot.ShowAfter)
	if err != nil {
		return fmt.Errorf("Mascot.ShowAfter: %w", err)
	}
	hide, err := ParseIntervalDuration(c.Mascot.HideAfter)
	if err != nil {
		return fmt.Errorf("Mascot.HideAfter: %w", err)
	}
	if hide <= show {
		return fmt.Errorf("Mascot.HideAfter (%s) must be later than Mascot.ShowAfter (%s)", c.Mascot.HideAfter, c.Mascot.ShowAfter)
	}

	if c.Chart.Width <= 0 || c.Chart.Height <= 0 {
		return errors.New("Chart.Width and Chart.Height must be positive")
	}

	if len(c.Instruments) == 0 {
		return errors.New("at least one instrument is required")
	}
	seen := make(map[string]struct{}, len(c.Instruments))
	for i, inst := range c.Instruments {
		if strings.TrimSpace(inst.Name) == "" {
			return fmt.Errorf("Instruments[%d]: name is required", i)
		}
		if inst.InitialPrice < 0 {
			return fmt.Errorf("Instruments[%d] %s: initial price must not be negative", i, inst.Name)
		}
		if _, dup := seen[inst.Name]; dup {
			return fmt.Errorf("Instruments[%d]: duplicate name %s", i, inst.Name)
		}
		seen[inst.Name] = struct{}{}
	}
	return nil
}

// DefaultInstruments 默认的六个币种
func DefaultInstruments() []InstrumentConfig {
	return []InstrumentConfig{
		{Name: "mDOG", Icon: "/static/dog.svg", InitialPrice: 0.00012},
		{Name: "MOODENG", Icon: "/static/moodeng.svg", InitialPrice: 0.00012},
		{Name: "michi", Icon: "/static/michi.svg", InitialPrice: 0.00012},
		{Name: "MOTHER", Icon: "/static/mother.svg", InitialPrice: 0.00012},
		{Name: "FWOG", Icon: "/static/fwog.svg", InitialPrice: 0.00012},
		{Name: "SCF", Icon: "/static/scf.svg", InitialPrice: 0.00012},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("Server.Addr", ":8080")
	v.SetDefault("Log.Level", "info")

	v.SetDefault("Ticker.Interval", "1s")
	v.SetDefault("Ticker.SyntheticStep", 60)

	v.SetDefault("Mascot.ShowAfter", "500ms")
	v.SetDefault("Mascot.HideAfter", "10s")
	v.SetDefault("Mascot.Message", "Wow! Another day of pump and dump. Shill me some coins to pump!")
	v.SetDefault("Mascot.Image", "/static/mascot.svg")

	v.SetDefault("Chart.Width", 250)
	v.SetDefault("Chart.Height", 200)
	v.SetDefault("Chart.BackgroundColor", "#ffffff")
	v.SetDefault("Chart.TextColor", "#000000")
	v.SetDefault("Chart.GridColor", "#e1e1e1")
	v.SetDefault("Chart.BorderColor", "#cccccc")
	v.SetDefault("Chart.UpColor", "#4caf50")
	v.SetDefault("Chart.DownColor", "#f44336")
}

// LoadConfig 读取并解析配置文件
// 配置目录中没有 config.yaml 时使用默认值；环境变量 PUMPDESK_SERVER_ADDR 等可覆盖文件内容
func LoadConfig(configPath string) (*Config, error) {
	// .env 文件可选
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config") // 文件名是 config
	v.SetConfigType("yaml")   // 文件类型是 yaml
	v.AddConfigPath(configPath)

	v.SetEnvPrefix("PUMPDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// 查找并读取配置文件
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if len(cfg.Instruments) == 0 {
		cfg.Instruments = DefaultInstruments()
	}

	return &cfg, nil
}
