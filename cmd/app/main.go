package main

import (
	"flag"
	"fmt"
	"os"

	"Ares/internal/di"
	"Ares/pkg/config"
	applogger "Ares/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	// bootstrap logger until the wired one exists
	boot, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: "stderr",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	boot = boot.Component("main")
	boot.Info("starting ares",
		applogger.String("env", cfg.Environment),
		applogger.Bool("kafka", cfg.Kafka.Enabled),
		applogger.Bool("redis", cfg.Redis.Enabled),
		applogger.String("benchmark", cfg.Quant.Benchmark),
	)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		boot.Error("app initialization failed", applogger.Error(err))
		os.Exit(1)
	}

	boot.Info("dependencies ready",
		applogger.String("clickhouse", cfg.ClickHouse.Host),
		applogger.String("bars_table", cfg.ClickHouse.Database+"."+cfg.ClickHouse.BarsTable),
		applogger.Int("port", cfg.Server.Port),
	)

	if err := app.Run(); err != nil {
		boot.Error("app error", applogger.Error(err))
		os.Exit(1)
	}
}
