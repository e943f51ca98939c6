package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/xregistry/bridge/internal/app"
	"github.com/xregistry/bridge/internal/config"
	"github.com/xregistry/bridge/internal/logger"
	"github.com/xregistry/bridge/internal/version"
)

func main() {
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	vlog := log.New(os.Stdout, "", 0)
	if *showVersion {
		version.PrintVersionInfo(true, vlog)
		return
	}
	version.PrintVersionInfo(false, vlog)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("configuration error: %v", err)
	}

	_, styled, cleanup, err := logger.NewWithTheme(&logger.Config{
		Level:      cfg.Logging.Level,
		LogDir:     cfg.Logging.LogDir,
		Theme:      cfg.Logging.Theme,
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     30,
		FileOutput: cfg.Logging.FileOutput,
	})
	if err != nil {
		logger.Fatalf("logger init error: %v", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application := app.New(cfg, styled)
	if err := application.Run(ctx); err != nil {
		logger.FatalWithLogger(styled.GetUnderlying(), "bridge exited with error", "error", err)
	}

	styled.Info("Goodbye!")
}
