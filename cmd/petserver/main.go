package main

import (
	"context"
	"log"
	"os/signal"
	"strings"
	"syscall"

	"github.com/milk9111/petsprite/channel"
	"github.com/milk9111/petsprite/config"
	"github.com/milk9111/petsprite/mood"
	"github.com/milk9111/petsprite/server"
)

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		config.Exitf("petserver: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var evaluator mood.Evaluator = mood.DefaultRules()
	if path := strings.TrimSpace(cfg.MoodScript); path != "" {
		script, err := mood.LoadScript(path, mood.DefaultGoals)
		if err != nil {
			config.Exitf("petserver: %v", err)
		}
		evaluator = script
		log.Printf("petserver: mood script loaded path=%s", path)
	}

	var bus channel.Bus
	if addr := strings.TrimSpace(cfg.RedisAddr); addr != "" {
		redisBus := channel.NewRedisBus(addr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPrefix)
		if err := redisBus.Ping(ctx); err != nil {
			_ = redisBus.Close()
			config.Exitf("petserver: redis %s: %v", addr, err)
		}
		defer redisBus.Close()
		bus = redisBus
		log.Printf("petserver: sharing groups through redis addr=%s prefix=%s", addr, cfg.RedisPrefix)
	}

	hold := cfg.ActivityHold
	if hold == 0 {
		hold = -1
	}
	err = server.Run(ctx, server.Config{
		HTTPAddr:          cfg.HTTPAddr,
		Bus:               bus,
		DefaultGroup:      cfg.DefaultGroup,
		AssetsDir:         cfg.AssetsDir,
		Evaluator:         evaluator,
		ActivityHold:      hold,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ShutdownTimeout:   cfg.ShutdownTimeout,
	})
	if err != nil {
		log.Printf("petserver: %v", err)
	}
}
