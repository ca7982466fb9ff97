package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scalebridge/bf700/internal/ble"
	"github.com/scalebridge/bf700/internal/config"
	"github.com/scalebridge/bf700/internal/metrics"
	"github.com/scalebridge/bf700/internal/publish"
	"github.com/scalebridge/bf700/internal/scale"
	"github.com/scalebridge/bf700/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ~/.config/bf700d/config.yaml)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config validation: %v\n", err)
		os.Exit(1)
	}

	setupLogging(cfg.LogLevel)
	printBanner(cfg)

	if err := run(cfg); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Persistence: seed the last-known value from the previous run.
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	// Delivery targets.
	mtr := metrics.New()
	var publisher *publish.MQTTPublisher
	if cfg.MQTT.Enabled {
		publisher, err = publish.NewMQTTPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.Topic)
		if err != nil {
			return err
		}
		defer publisher.Close()
	}

	deliver := func(snap scale.Snapshot) {
		if err := st.Save(ctx, snap); err != nil {
			slog.Error("[store] save failed", "error", err)
		}
		if publisher != nil {
			if err := publisher.Publish(snap); err != nil {
				slog.Error("[mqtt] publish failed", "error", err)
			}
		}
	}

	// BLE transport.
	adapter := ble.NewBluezAdapter()
	if err := adapter.Enable(); err != nil {
		return fmt.Errorf("enable BLE adapter: %w", err)
	}
	watcher := ble.NewWatcher(adapter, cfg.Device.Address)
	go watcher.Run(ctx)

	poller := scale.NewPoller(adapter, watcher, scale.PollerConfig{
		Interval:              cfg.PollInterval(),
		ServiceCountThreshold: cfg.Readiness.ServiceCountThreshold,
		Session: scale.SessionConfig{
			Address:        cfg.Device.Address,
			ConnectTimeout: cfg.ConnectTimeout(),
			FrameTimeout:   cfg.FrameTimeout(),
			SendInit:       cfg.Device.SendInit,
		},
	}, deliver, mtr)

	if snap, err := st.Latest(ctx); err != nil {
		slog.Warn("[store] could not load previous snapshot", "error", err)
	} else if snap != nil {
		poller.Seed(*snap)
		mtr.SnapshotUpdated(*snap)
		slog.Info("[store] seeded last known measurement",
			"weight_kg", snap.Weight, "captured_at", snap.CapturedAt)
	}

	if cfg.Metrics.Enabled {
		go serveMetrics(ctx, cfg.Metrics.Listen, mtr)
	}

	slog.Info("polling for scale", "address", cfg.Device.Address, "interval", cfg.PollInterval())

	// Blocks until shutdown; an in-flight session finishes its cleanup
	// before Run returns, so the deferred closes below are safe.
	poller.Run(ctx)

	slog.Info("shutting down")
	return nil
}

func serveMetrics(ctx context.Context, listen string, mtr *metrics.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", mtr.Handler())
	srv := &http.Server{Addr: listen, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("[metrics] listening", "addr", listen)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("[metrics] server failed", "error", err)
	}
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
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		return cfg, nil
	}

	return config.Default(), nil
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config) {
	fmt.Println("=== bf700d ===")
	fmt.Printf("  Scale:    %s (init=%v)\n", cfg.Device.Address, cfg.Device.SendInit)
	fmt.Printf("  Timing:   poll %ds, connect %ds, frame %ds\n",
		cfg.Timing.PollIntervalSeconds, cfg.Timing.ConnectTimeoutSeconds, cfg.Timing.FrameTimeoutSeconds)
	fmt.Printf("  Ready at: >= %d advertised services\n", cfg.Readiness.ServiceCountThreshold)
	if cfg.MQTT.Enabled {
		fmt.Printf("  MQTT:     %s -> %s\n", cfg.MQTT.Broker, cfg.MQTT.Topic)
	}
	fmt.Printf("  Store:    %s\n", cfg.Store.Path)
	if cfg.Metrics.Enabled {
		fmt.Printf("  Metrics:  %s\n", cfg.Metrics.Listen)
	}
	fmt.Printf("  Log:      %s\n", cfg.LogLevel)
	fmt.Println("==============")
}
