package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/speedwagon-io/envmon/internal/analytics"
	"github.com/speedwagon-io/envmon/internal/config"
	"github.com/speedwagon-io/envmon/internal/lib/logger/sl"
	"github.com/speedwagon-io/envmon/internal/store"
	"github.com/speedwagon-io/envmon/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	sourceName := flag.String("source", "store", "where to read samples from: store or feed")
	n := flag.Int("n", analytics.DefaultSamples, "number of most recent samples")
	plotPath := flag.String("plot", "", "write a chart of the samples to this png file")
	flag.Parse()

	cfg := config.MustLoad(*configPath)

	log := sl.SetupLogger(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var source analytics.Source
	switch *sourceName {
	case "store":
		st, err := store.Open(ctx, log, cfg.Store.Path, cfg.Store.Key)
		if err != nil {
			log.Error("failed to open store", sl.Err(err))
			os.Exit(1)
		}
		source = analytics.NewStoreSource(st)
	case "feed":
		source = analytics.NewFeedSource(telemetry.NewFeedClient(log, &cfg.Telemetry))
	default:
		log.Error("unknown source", slog.String("source", *sourceName))
		os.Exit(1)
	}

	points, err := source.Points(ctx, *n)
	if err != nil {
		log.Error("failed to load samples", slog.String("source", *sourceName), sl.Err(err))
		os.Exit(1)
	}
	if len(points) == 0 {
		log.Warn("no samples found", slog.String("source", *sourceName))
		os.Exit(1)
	}

	if err := analytics.Correlate(points).Write(os.Stdout); err != nil {
		log.Error("failed to write report", sl.Err(err))
		os.Exit(1)
	}

	if *plotPath != "" {
		if err := analytics.Plot(points, *plotPath); err != nil {
			log.Error("failed to plot samples", sl.Err(err))
			os.Exit(1)
		}
		log.Info("chart written", slog.String("path", *plotPath))
	}
}
