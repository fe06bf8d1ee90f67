package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/avoss/projectwarden/internal/app"
	"github.com/avoss/projectwarden/internal/cache"
	"github.com/avoss/projectwarden/internal/classifier"
	"github.com/avoss/projectwarden/internal/config"
	"github.com/avoss/projectwarden/internal/db"
	"github.com/avoss/projectwarden/internal/logger"
	"github.com/avoss/projectwarden/internal/scheduler"
	"github.com/avoss/projectwarden/internal/service/hider"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.L().Error("failed to load config", "err", err)
		return
	}

	// Init logger (global singleton)
	logger.InitFromConfig(*cfg)
	log := logger.L()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		return
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(context.Background()); err != nil {
		log.Error("failed to connect to redis", "err", err)
		return
	}

	appCtx := app.New(cfg, database, redisCache, log)

	if cfg.App.Env == "dev" {
		if err := db.SeedTestData(database); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	ai := classifier.New(cfg.AI, log)
	svc := hider.NewService(appCtx, ai)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New(svc, cfg.Sync, log)
	if err := sched.Start(ctx); err != nil {
		log.Error("failed to start scheduler", "err", err)
		return
	}
	log.Info("warden running", "env", cfg.App.Env)

	<-ctx.Done()
	log.Info("shutting down")
	sched.Stop()
}
