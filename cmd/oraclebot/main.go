package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"oraclebot/internal/config"
)

const usageText = `oraclebot — ORACLES.run forecasting agent

Usage: oraclebot <command> [flags]

Commands:
  markets    List open markets
  forecast   Submit a single v1 forecast
  history    View past forecasts and scores
  auto       Autonomous loop: analyze and forecast open markets
  tasks      Fetch the current v2 round and its tasks
  predict    Submit a single v2 prediction
  batch      Submit v2 predictions from a JSON file
  status     Check existing v2 predictions
  register   Create a new agent identity
  report     Print the local scorecard

Environment: ORACLE_AGENT_ID, ORACLE_API_KEY (see https://oracles.run/agents/new)
`

func main() {
	// Optional .env bootstrap; absence is fine.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}
	command := os.Args[1]
	args := os.Args[2:]

	cfg := loadConfig()
	setupLogging(cfg.General.LogLevel)

	// Cancel long-running commands on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	var err error
	switch command {
	case "markets":
		err = cmdMarkets(ctx, cfg, args)
	case "forecast":
		err = cmdForecast(ctx, cfg, args)
	case "history":
		err = cmdHistory(ctx, cfg, args)
	case "auto":
		err = cmdAuto(ctx, cfg, args)
	case "tasks":
		err = cmdTasks(ctx, cfg, args)
	case "predict":
		err = cmdPredict(ctx, cfg, args)
	case "batch":
		err = cmdBatch(ctx, cfg, args)
	case "status":
		err = cmdStatus(ctx, cfg, args)
	case "register":
		err = cmdRegister(ctx, cfg, args)
	case "report":
		err = cmdReport(ctx, cfg, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", command)
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}

	if err != nil && err != context.Canceled {
		slog.Error("command failed", "command", command, "error", err)
		os.Exit(1)
	}
}

// loadConfig reads the TOML config when present and falls back to defaults
// otherwise, so the CLI works with nothing but environment credentials.
func loadConfig() *config.Config {
	configPath := "config.toml"
	if p := os.Getenv("ORACLEBOT_CONFIG_PATH"); p != "" {
		configPath = p
	}

	if _, statErr := os.Stat(configPath); os.IsNotExist(statErr) {
		return config.DefaultConfig()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "path", configPath, "error", err)
		os.Exit(1)
	}
	return cfg
}

func setupLogging(level string) {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: l,
	})))
}
