package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"golang.org/x/sync/errgroup"

	"github.com/imkonsowa/taste-finder/config"
	"github.com/imkonsowa/taste-finder/telemetry"
)

func main() {
	cfg := config.LoadConfig()

	_, closeLog, err := telemetry.InitLogger(cfg.Log)
	if err != nil {
		log.Fatal(err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	nc, err := NewNats(cfg.Nats)
	if err != nil {
		log.Fatal(err)
	}
	defer nc.Close()

	stats := NewStats()
	pool := NewWorkerPool(ctx, cfg.Watcher.Workers, cfg.Watcher.QueueSize, stats.Handle)
	slog.Info("starting watcher", "subject", cfg.Nats.Subject, "workers", cfg.Watcher.Workers, "queueSize", cfg.Watcher.QueueSize)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return nc.Subscribe(ctx, cfg.Nats.Subject, pool)
	})

	g.Go(func() error {
		report(ctx, stats, cfg.Watcher.ReportInterval, cfg.Watcher.TopN)
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("watcher stopped", "error", err)
	}

	pool.Stop()
	logSummary(stats.Summary(cfg.Watcher.TopN))
}

func report(ctx context.Context, stats *Stats, interval time.Duration, topN int) {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logSummary(stats.Summary(topN))
		}
	}
}

func logSummary(s Summary) {
	slog.Info("search activity",
		"total", s.Total,
		"failed", s.Failed,
		"empty", s.Empty,
		"by_source", s.BySource,
		"top_foods", s.TopFoods,
		"top_locations", s.TopLocations,
		"last_at", s.LastAt,
	)
}
