package main

import (
	"context"
	"fmt"
	"os"

	"github.com/paularlott/cli"
)

func main() {
	root := &cli.Command{
		Name:        "cactusd",
		Usage:       "ESP32 board fleet liveness and OTA firmware delivery",
		Description: "Tracks a fleet of ESP32 boards, scans their liveness, discovers new boards on the network and delivers firmware over the air.",
		Commands: []*cli.Command{
			ServeCommand(),
			ScanCommand(),
			DiscoverCommand(),
			FlashCommand(),
			StatusCommand(),
		},
	}

	if err := root.Execute(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
