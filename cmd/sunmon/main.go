package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"codeberg.org/halvor/sunmon/internal/cache"
	"codeberg.org/halvor/sunmon/internal/config"
	"codeberg.org/halvor/sunmon/internal/inverter"
	"codeberg.org/halvor/sunmon/internal/logger"
	"codeberg.org/halvor/sunmon/internal/pid"
	"codeberg.org/halvor/sunmon/internal/poll"
	"codeberg.org/halvor/sunmon/internal/publish"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())
	if !cfg.Debug && !cfg.Verbose {
		if err := logger.SetLogLevelFromString(cfg.LogLevel); err != nil {
			fmt.Fprintf(os.Stderr, "failed to set log level: %v\n", err)
			os.Exit(1)
		}
	}
	logger.Debug().Int("devices", len(cfg.Devices)).Msg("Config loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	// Dump mode: write each device's raw status page and exit. No cache or
	// tracker state is touched.
	if cfg.DumpDir != "" {
		os.Exit(dumpResponses(ctx, cfg))
	}

	if err := pid.Write(); err != nil {
		logger.Fatal().Err(err).Msg("failed to write PID file")
	}
	defer func() {
		if err := pid.Remove(); err != nil {
			logger.Error().Err(err).Msg("failed to remove PID file")
		}
	}()

	store, err := cache.NewRepository(cache.Config{DBPath: cfg.Database})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open energy store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close energy store")
		}
	}()

	publisher, err := buildPublisher(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up snapshot sinks")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close snapshot sinks")
		}
	}()

	if err := run(ctx, cfg, store, publisher); err != nil {
		logger.Error().Err(err).Msg("error in main loop")
	}

	logger.Info().Msg("Exiting...")
}

// run starts one coordinator per configured device. Each device owns an
// independent schedule, cache and tracker; one stalled device never delays
// another's ticks.
func run(ctx context.Context, cfg *config.Config, store cache.Repository, publisher publish.Publisher) error {
	var wg sync.WaitGroup

	for _, device := range cfg.Devices {
		client := inverter.NewClient(device.Host, device.Username, device.Password)

		coordinator, err := poll.New(poll.Config{
			DeviceID:       device.ID(),
			UpdateInterval: device.Interval(),
		}, client, store, publisher)
		if err != nil {
			return err
		}

		wg.Add(1)
		go func(host string) {
			defer wg.Done()
			if err := coordinator.Run(ctx); err != nil {
				logger.Error().Str("device", host).Err(err).Msg("polling loop failed")
			}
		}(device.Host)
	}

	wg.Wait()

	return nil
}

func buildPublisher(cfg *config.Config) (publish.Publisher, error) {
	sinks := []publish.Publisher{publish.NewLogPublisher()}

	if cfg.Influx.Enabled {
		influx, err := publish.NewInfluxPublisher(publish.InfluxConfig{
			URL:    cfg.Influx.URL,
			Token:  cfg.Influx.Token,
			Org:    cfg.Influx.Org,
			Bucket: cfg.Influx.Bucket,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, influx)
		logger.Info().Str("url", cfg.Influx.URL).Msg("InfluxDB sink enabled")
	}

	return publish.NewMulti(sinks...), nil
}

func dumpResponses(ctx context.Context, cfg *config.Config) int {
	if err := os.MkdirAll(cfg.DumpDir, 0o755); err != nil {
		logger.Error().Err(err).Msg("failed to create dump directory")
		return 1
	}

	exitCode := 0
	for _, device := range cfg.Devices {
		client := inverter.NewClient(device.Host, device.Username, device.Password)
		path := filepath.Join(cfg.DumpDir, device.Host+"-status.html")
		if err := client.DumpResponse(ctx, path); err != nil {
			logger.Error().Str("device", device.Host).Err(err).Msg("failed to dump device response")
			exitCode = 1
		}
	}

	return exitCode
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}
