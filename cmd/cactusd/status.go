package main

import (
	"context"
	"fmt"

	"github.com/paularlott/cli"

	"cactusd/internal/config"
	"cactusd/internal/log"
	"cactusd/internal/statuslog"
)

func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:        "status",
		Usage:       "Show recent status transitions",
		Description: "Print the most recent board online/offline transitions, newest first.",
		Flags: append(config.GetFlags(),
			&cli.IntFlag{
				Name:         "limit",
				Usage:        "Maximum entries to show",
				DefaultValue: 50,
			},
			&cli.StringFlag{
				Name:  "board",
				Usage: "Only show entries for this board",
			},
		),
		Run: func(ctx context.Context, cmd *cli.Command) error {
			cfg := config.Load()
			log.Configure(cfg.LogLevel, cfg.LogFormat)

			store, err := statuslog.Open(cfg.StatusLogPath())
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.Query(cmd.GetInt("limit"), cmd.GetString("board"))
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No status transitions recorded")
				return nil
			}

			for _, e := range entries {
				fmt.Printf("%s  %-20s %-8s %s\n",
					e.Timestamp.Format("2006-01-02 15:04:05"), e.Name, e.Event, e.Details)
			}
			return nil
		},
	}
}
