package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/paularlott/cli"

	"cactusd/internal/config"
	"cactusd/internal/log"
	"cactusd/internal/registry"
	"cactusd/internal/scanner"
	"cactusd/internal/statuslog"
)

func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:        "serve",
		Usage:       "Run the periodic fleet scanner",
		Description: "Scan all registered boards on an interval, recording online/offline transitions and folding discovered metadata back into the registry.",
		Flags:       config.GetFlags(),
		Run: func(ctx context.Context, cmd *cli.Command) error {
			cfg := config.Load()
			log.Configure(cfg.LogLevel, cfg.LogFormat)
			log.Info("Configuration loaded", "data_dir", cfg.DataDir, "base_host", cfg.BaseHost)

			reg := registry.New(cfg.RegistryPath())

			store, err := statuslog.Open(cfg.StatusLogPath())
			if err != nil {
				log.Error("Failed to open status log", "error", err)
				return err
			}
			defer store.Close()
			log.Info("Status log opened", "path", cfg.StatusLogPath())

			sc := scanner.New(
				scanner.NewProber(cfg.ProbeTimeout),
				scanner.NewMetadataClient(cfg.ProbeTimeout+2*time.Second),
				cfg.BaseHost,
			)
			sc.Status = store
			sc.Registry = reg

			svc := scanner.NewService(sc, reg, cfg.ScanInterval)

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc.Run(ctx)
			return nil
		},
	}
}
