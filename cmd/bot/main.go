// ====================================
// File: cmd/bot/main.go
// ====================================
package main

import (
	"context"
	"flag"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Kai-0601/TelegramBot/internal/bot"
	"github.com/Kai-0601/TelegramBot/internal/config"
	"github.com/Kai-0601/TelegramBot/internal/logger"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	flag.Parse()

	// Local development keeps secrets in .env; absence is fine in production.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		zap.NewExample().Fatal("Failed to load configuration", zap.Error(err))
	}

	log, err := logger.New(&logger.Config{
		LogFile:     cfg.LogFile,
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      7,
		Compress:    true,
		Development: cfg.DebugLogging,
	})
	if err != nil {
		zap.NewExample().Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer log.Sync()

	log.Info("Starting whale monitoring bot")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner, err := bot.NewRunner(cfg, log.Logger)
	if err != nil {
		log.Fatal("Failed to initialize bot", zap.Error(err))
		os.Exit(1)
	}

	if err := runner.Run(ctx); err != nil {
		log.Fatal("Bot execution error", zap.Error(err))
		os.Exit(1)
	}

	runner.Shutdown()
}
