package main

import (
	"context"
	"fmt"
	"time"

	"github.com/paularlott/cli"

	"cactusd/internal/config"
	"cactusd/internal/log"
	"cactusd/internal/model"
	"cactusd/internal/registry"
	"cactusd/internal/scanner"
	"cactusd/internal/statuslog"
)

func ScanCommand() *cli.Command {
	return &cli.Command{
		Name:        "scan",
		Usage:       "Scan all registered boards once",
		Description: "Probe every board in the registry and print its reachability. Transitions are recorded in the status log.",
		Flags:       config.GetFlags(),
		Run: func(ctx context.Context, cmd *cli.Command) error {
			cfg := config.Load()
			log.Configure(cfg.LogLevel, cfg.LogFormat)

			reg := registry.New(cfg.RegistryPath())
			devices, err := reg.Load()
			if err != nil {
				return err
			}
			if len(devices) == 0 {
				fmt.Println("No boards registered")
				return nil
			}

			store, err := statuslog.Open(cfg.StatusLogPath())
			if err != nil {
				return err
			}
			defer store.Close()

			sc := scanner.New(
				scanner.NewProber(cfg.ProbeTimeout),
				scanner.NewMetadataClient(cfg.ProbeTimeout+2*time.Second),
				cfg.BaseHost,
			)
			sc.Status = store
			sc.Registry = reg

			start := time.Now()
			results := sc.ScanAll(ctx, devices)

			printResults(results)
			fmt.Printf("\n%d boards scanned in %v\n", len(results), time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}

func printResults(results []model.ScanResult) {
	fmt.Printf("%-20s %-4s %-8s %-6s %-6s %-6s %s\n", "NAME", "ID", "STATUS", "OTA", "WEB", "API", "HOSTNAME")
	for _, res := range results {
		status := "offline"
		if res.Online {
			status = "online"
		}
		if res.Err != "" {
			status = "error"
		}
		fmt.Printf("%-20s %-4d %-8s %-6s %-6s %-6s %s\n",
			res.Name, res.ID, status,
			okFail(res.OTAOnline), okFail(res.WebOnline), okFail(res.APIOnline),
			res.Hostname)
	}
}

func okFail(b bool) string {
	if b {
		return "ok"
	}
	return "fail"
}
