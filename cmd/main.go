package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"pump-desk/internal/api"
	"pump-desk/internal/desk"
	"pump-desk/internal/executor"
	"pump-desk/internal/mascot"
	"pump-desk/internal/render"
	"pump-desk/internal/scheduler"
	"pump-desk/internal/service"

	"go.uber.org/zap"
)

func main() {
	configPath := "config"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	service.InitLogger("")
	cfg, err := service.LoadConfig(configPath)
	if err != nil {
		service.Logger.Fatal("Failed to load config", zap.Error(err))
	}
	// 按配置的日志级别重建
	service.InitLogger(cfg.Log.Level)
	defer service.Logger.Sync()

	if err := cfg.Validate(); err != nil {
		service.Logger.Fatal("Invalid config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. 调度器：每个币种一个定时任务
	sched := scheduler.NewScheduler(service.Logger)

	// 2. Desk：价格生成器 + 渲染器
	d := desk.New(sched, desk.Options{
		Interval:      cfg.TickInterval(),
		SyntheticStep: cfg.Ticker.SyntheticStep,
		Chart:         render.OptionsFromConfig(cfg.Chart),
	}, service.Logger)

	for _, instCfg := range cfg.Instruments {
		if _, err := d.Add(instCfg); err != nil {
			service.Logger.Fatal("Failed to add instrument", zap.String("Instrument", instCfg.Name), zap.Error(err))
		}
	}

	// 3. 手动拉盘/砸盘执行器
	exec := executor.NewSimulatorExecutor(&executor.SimulatorConfig{MaxHistory: 1000}, d, service.Logger.Sugar())

	// 4. HTTP + websocket
	show, hide := cfg.MascotDelays()
	srv := api.NewServer(cfg.Server.Addr, d, exec, mascot.Config{
		ShowAfter: show,
		HideAfter: hide,
		Message:   cfg.Mascot.Message,
		Image:     cfg.Mascot.Image,
	}, service.Logger)

	sched.Start()
	service.Logger.Info("Pump desk started",
		zap.Int("Instruments", len(cfg.Instruments)),
		zap.String("Tick", service.FormatInterval(cfg.TickInterval())))

	if err := srv.Run(ctx); err != nil {
		service.Logger.Error("HTTP server error", zap.Error(err))
	}

	// 先停定时任务，再释放所有图表
	sched.Stop()
	d.Close()
	service.Logger.Info("Pump desk stopped")
}
