package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/deusflow/newsqueue/internal/app"
	"github.com/deusflow/newsqueue/internal/config"
	"github.com/deusflow/newsqueue/internal/logger"
)

func main() {
	workspace := flag.String("workspace", "", "run a single workspace by name (default: all)")
	todayOnly := flag.Bool("today-only", false, "skip items not published today")
	serve := flag.Bool("serve", false, "keep running cycles on CYCLE_INTERVAL")
	check := flag.Bool("check", false, "verify the store and print per-workspace counts")
	flag.Parse()

	logger.Init()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if *todayOnly {
		cfg.TodayOnly = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if *check {
		statuses, err := a.Check(ctx)
		if err != nil {
			logger.Error("store check failed", "store", a.StoreLabel(), "error", err)
			a.Close()
			os.Exit(1)
		}
		logger.Info("store reachable", "store", a.StoreLabel(), "workspaces", len(statuses))
		for _, st := range statuses {
			logger.Info("workspace", "id", st.ID, "feeds", st.Feeds, "new", st.New, "archived", st.Archived)
		}
		return
	}

	if *serve {
		if err := a.Serve(ctx); err != nil {
			logger.Error("service stopped with error", "error", err)
			os.Exit(1)
		}
		return
	}

	reports, err := a.RunOnce(ctx, *workspace, cfg.TodayOnly)
	for _, rep := range reports {
		logger.Info("cycle report",
			"workspace", rep.Workspace,
			"inserted", rep.Inserted,
			"skipped", rep.Skipped,
			"feed_errors", rep.FeedErrors,
			"swept", rep.Swept,
			"images", rep.ImageSources,
			"notices", rep.Notices,
			"duration", rep.Duration)
	}
	if err != nil {
		logger.Error("run failed", "error", err)
		a.Close()
		os.Exit(1)
	}
}
