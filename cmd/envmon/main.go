package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/speedwagon-io/envmon/internal/acquire"
	"github.com/speedwagon-io/envmon/internal/alert"
	"github.com/speedwagon-io/envmon/internal/config"
	"github.com/speedwagon-io/envmon/internal/health"
	"github.com/speedwagon-io/envmon/internal/lib/logger/sl"
	"github.com/speedwagon-io/envmon/internal/metrics"
	"github.com/speedwagon-io/envmon/internal/monitor"
	"github.com/speedwagon-io/envmon/internal/sensor"
	"github.com/speedwagon-io/envmon/internal/store"
	"github.com/speedwagon-io/envmon/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	dryRun := flag.Bool("dry-run", false, "log alerts and telemetry instead of sending")
	simulate := flag.Bool("simulate", false, "use simulated sensors instead of hardware")
	flag.Parse()

	cfg := config.MustLoad(*configPath)
	if *simulate {
		cfg.Sensor.Simulate = true
	}

	log := sl.SetupLogger(cfg.Log.Level, cfg.Log.Format)

	if err := cfg.Validate(*dryRun); err != nil {
		log.Error("invalid config", sl.Err(err))
		os.Exit(1)
	}

	log.Info("starting environment monitor",
		slog.String("env", cfg.Env),
		slog.Bool("dry_run", *dryRun),
		slog.Bool("simulate", cfg.Sensor.Simulate),
		slog.Float64("threshold", cfg.Alert.Threshold),
	)

	var (
		climate   sensor.ClimateReader
		gas       sensor.GasReader
		indicator sensor.Indicator = sensor.NopIndicator{}
		spiPort   *sensor.SPIPort
	)
	if cfg.Sensor.Simulate {
		sim := sensor.NewSimulated(cfg.Sensor.FailureRate, 0)
		climate, gas = sim, sim
		log.Info("simulate mode: hardware will not be touched")
	} else {
		var err error
		spiPort, err = sensor.OpenSPI(cfg.Sensor.SPIPort, cfg.Sensor.SPISpeedHz)
		if err != nil {
			log.Error("failed to open adc", sl.Err(err))
			os.Exit(1)
		}

		gpio, err := sensor.OpenIndicator(cfg.Sensor.IndicatorPin)
		if err != nil {
			log.Error("failed to open alert indicator", sl.Err(err))
			spiPort.Close()
			os.Exit(1)
		}

		climate = sensor.NewDHT(cfg.Sensor.ClimateDevice)
		gas = sensor.NewMCP3008(spiPort)
		indicator = gpio
		log.Info("hardware ready",
			slog.String("spi_port", spiPort.String()),
			slog.String("indicator_pin", cfg.Sensor.IndicatorPin),
		)
	}

	var hardware []io.Closer
	if spiPort != nil {
		hardware = append(hardware, spiPort)
	}

	st, err := store.Open(context.Background(), log, cfg.Store.Path, cfg.Store.Key)
	if err != nil {
		log.Error("failed to open store", sl.Err(err))
		releaseHardware(log, indicator, hardware...)
		os.Exit(1)
	}
	log.Info("store ready", slog.String("path", cfg.Store.Path))

	// Use log sinks for dry-run mode, real gateways otherwise
	var (
		notifier  alert.Notifier
		forwarder telemetry.Forwarder
	)
	if *dryRun {
		notifier = alert.NewLogNotifier(log)
		forwarder = telemetry.NewLogForwarder(log)
		log.Info("dry-run mode: alerts and telemetry will be logged instead of sent")
	} else {
		if cfg.Alert.Enabled {
			notifier = alert.NewTwilioNotifier(&cfg.Alert.Twilio)
		} else {
			notifier = alert.NewLogNotifier(log)
		}

		switch cfg.Telemetry.Transport {
		case config.TransportMQTT:
			forwarder, err = telemetry.NewMQTTForwarder(log, &cfg.Telemetry)
			if err != nil {
				log.Error("failed to connect telemetry broker", sl.Err(err))
				releaseHardware(log, indicator, hardware...)
				os.Exit(1)
			}
		default:
			forwarder = telemetry.NewHTTPForwarder(log, &cfg.Telemetry)
		}
	}

	dispatcher := alert.NewDispatcher(log, notifier, cfg.Alert.Threshold, cfg.Alert.Cooldown)

	policy := acquire.RetryPolicy{
		MaxAttempts: cfg.Acquire.MaxAttempts,
		Delay:       cfg.Acquire.Delay,
		Multiplier:  cfg.Acquire.Multiplier,
	}
	controller := acquire.NewController(log, climate, gas, cfg.Sensor.GasChannel, policy)

	mtr := metrics.New()

	mon := monitor.New(log, controller, indicator, dispatcher, st, forwarder, mtr, cfg.Monitor.Interval,
		monitor.WithClosers(hardware...))

	var healthServer *health.Server
	if cfg.Health.Enabled {
		healthServer = health.NewServer(log, cfg.Health.Address)
		healthServer.SetMetricsHandler(mtr.Handler())
		healthServer.AddChecker(health.NewStoreHealthChecker(st.Count))
		healthServer.AddChecker(health.NewTelemetryHealthChecker(forwarder.Health))
		healthServer.AddChecker(health.NewLoopHealthChecker(mon.LastCycle, 4*cfg.Monitor.Interval))

		if err := healthServer.Start(); err != nil {
			log.Error("failed to start health server", sl.Err(err))
			mon.Close()
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received signal, shutting down", slog.String("signal", sig.String()))
		cancel()
	}()

	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("monitor loop crashed", slog.Any("panic", r))
				mon.Close()
				os.Exit(1)
			}
		}()
		mon.Run(ctx)
	}()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if healthServer != nil {
		if err := healthServer.Stop(shutdownCtx); err != nil {
			log.Error("failed to stop health server", sl.Err(err))
		}
	}

	if err := mon.Close(); err != nil {
		os.Exit(1)
	}

	log.Info("monitor stopped")
}

// releaseHardware drives the indicator low and closes the remaining handles.
// It is the exit path for startup failures after the hardware was opened.
func releaseHardware(log *slog.Logger, indicator sensor.Indicator, closers ...io.Closer) {
	if err := indicator.Close(); err != nil {
		log.Error("failed to release alert indicator", sl.Err(err))
	}
	for _, c := range closers {
		if err := c.Close(); err != nil {
			log.Error("failed to release hardware handle", sl.Err(err))
		}
	}
}
