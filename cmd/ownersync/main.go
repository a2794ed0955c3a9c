package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"taskhub/internal/config"
	"taskhub/internal/pkg/logger"
	"taskhub/internal/service"
	"taskhub/internal/store"

	"github.com/joho/godotenv"
)

// main 为缺少 owner 成员记录的群组补齐创建者成员身份。
//
// 用法：ownersync [-dry-run] [-config path]
func main() {
	dryRun := flag.Bool("dry-run", false, "report groups without inserting memberships")
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "config file path")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	appLogger := logger.NewDefault(cfg.App.Env, cfg.App.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.Database)
	if err != nil {
		appLogger.Error("open database failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	job := service.NewOwnerSync(store.NewGroupStore(db), store.NewMemberStore(db), store.NewUserStore(db), appLogger)
	report, err := job.Run(ctx, *dryRun)
	if err != nil {
		appLogger.Error("owner sync failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	appLogger.Info("owner sync finished",
		slog.Bool("dry_run", *dryRun),
		slog.Int("scanned", report.Scanned),
		slog.Int("inserted", report.Inserted),
		slog.Int("skipped", report.Skipped),
		slog.Any("group_ids", report.GroupIDs))
}
