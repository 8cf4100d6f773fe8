package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/roman-kulish/visual-servo/cmd/pilot/app"
)

func main() {
	var logLevel slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &logLevel}))

	var configPath, mode string
	var headless bool
	flag.StringVar(&configPath, "c", "", "Path to the configuration file, defaults are used when empty")
	flag.StringVar(&mode, "mode", "", "Observation mode, overrides the configuration. [blob, gesture]")
	flag.BoolVar(&headless, "headless", false, "Run without the video window, keys are read from stdin")
	flag.Parse()

	config := app.DefaultConfig()
	if configPath != "" {
		var err error
		if config, err = app.LoadConfig(configPath); err != nil {
			logger.Error(fmt.Sprintf("failed to load configuration file: %s", err.Error()), slog.String("path", configPath))
			os.Exit(1)
		}
	}

	if mode != "" {
		config.Mode = app.ObservationMode(mode)
	}
	if headless {
		config.Display.Enabled = false
	}
	if err := config.Validate(); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}

	if err := logLevel.UnmarshalText([]byte(config.Settings.LogLevel)); err != nil {
		logger.Warn(fmt.Sprintf("invalid log level '%s', using INFO", config.Settings.LogLevel))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx, config, logger); err != nil {
		logger.Error(err.Error())

		cancel()
		os.Exit(1)
	}
}
