package main

import (
	"context"
	"fmt"

	"github.com/paularlott/cli"

	"cactusd/internal/config"
	"cactusd/internal/log"
	"cactusd/internal/registry"
	"cactusd/internal/scanner"
)

func DiscoverCommand() *cli.Command {
	return &cli.Command{
		Name:        "discover",
		Usage:       "Discover boards on the network",
		Description: "Sweep the OTA port range on the base host looking for boards, including ones not yet in the registry.",
		Flags: append(config.GetFlags(),
			&cli.IntFlag{
				Name:         "from",
				Usage:        "First OTA port to probe",
				DefaultValue: scanner.DefaultDiscoverFrom,
			},
			&cli.IntFlag{
				Name:         "to",
				Usage:        "Last OTA port to probe",
				DefaultValue: scanner.DefaultDiscoverTo,
			},
		),
		Run: func(ctx context.Context, cmd *cli.Command) error {
			cfg := config.Load()
			log.Configure(cfg.LogLevel, cfg.LogFormat)

			reg := registry.New(cfg.RegistryPath())
			knownIDs, err := reg.KnownIDs()
			if err != nil {
				return err
			}

			sc := scanner.New(scanner.NewProber(cfg.ProbeTimeout), nil, cfg.BaseHost)

			log.Info("Starting discovery sweep",
				"host", cfg.BaseHost, "from", cmd.GetInt("from"), "to", cmd.GetInt("to"))
			devices := sc.Discover(ctx, cmd.GetInt("from"), cmd.GetInt("to"), knownIDs)

			if len(devices) == 0 {
				fmt.Println("No boards found")
				return nil
			}

			fmt.Printf("%-4s %-10s %-10s %-10s %s\n", "ID", "OTA", "WEB", "API", "NEW")
			for _, d := range devices {
				isNew := ""
				if d.IsNew {
					isNew = "yes"
				}
				fmt.Printf("%-4d %-10d %-10d %-10d %s\n", d.ID, d.OTAPort, d.WebPort, d.APIPort, isNew)
			}
			return nil
		},
	}
}
