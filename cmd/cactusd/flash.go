package main

import (
	"context"
	"fmt"

	"github.com/paularlott/cli"

	"cactusd/internal/addr"
	"cactusd/internal/config"
	"cactusd/internal/log"
	"cactusd/internal/model"
	"cactusd/internal/ops"
	"cactusd/internal/ota"
	"cactusd/internal/registry"
)

func FlashCommand() *cli.Command {
	return &cli.Command{
		Name:        "flash",
		Usage:       "Flash firmware to a board",
		Description: "Upload a firmware image to a board's OTA port, falling back to its authenticated web server port if credentials are configured.",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "board", Required: true},
			&cli.StringArg{Name: "firmware", Required: true},
		},
		Flags: append(config.GetFlags(),
			&cli.BoolFlag{
				Name:  "chunked",
				Usage: "Stream the image in chunks instead of loading it into memory",
			},
		),
		Run: func(ctx context.Context, cmd *cli.Command) error {
			cfg := config.Load()
			log.Configure(cfg.LogLevel, cfg.LogFormat)

			boardName := cmd.GetStringArg("board")
			firmwarePath := cmd.GetStringArg("firmware")

			reg := registry.New(cfg.RegistryPath())
			dev, err := reg.Get(boardName)
			if err != nil {
				return err
			}

			a, err := addr.Resolve(boardName, dev.ID, dev.Host, dev.Hostname, cfg.BaseHost)
			if err != nil {
				return err
			}

			tracker := ops.NewTracker()
			op := tracker.Create(model.OpFlash, boardName)
			log.Info("Flash operation started",
				"operation", op.ID, "board", boardName, "host", a.Host, "port", a.Ports.OTA)

			onProgress := func(p ota.Progress) {
				fmt.Printf("[%3d%%] %s\n", p.Percent, p.Message)
			}

			var ok bool
			var message string
			if cmd.GetBool("chunked") {
				tracker.Update(op.ID, func(o *model.Operation) {
					o.SetStatus(model.OpRunning)
					o.FirmwarePath = firmwarePath
				})
				ok, message = ota.FlashChunked(ctx, firmwarePath, a.Host, a.Ports.OTA, ota.DefaultChunkSize, onProgress, cfg.FlashTimeout)
				tracker.Update(op.ID, func(o *model.Operation) {
					if ok {
						o.SetStatus(model.OpSuccess)
						o.SetProgress(100)
					} else {
						o.SetStatus(model.OpFailed)
					}
					o.Message = message
				})
			} else {
				opts := ota.Options{
					Timeout:    cfg.FlashTimeout,
					OnProgress: onProgress,
				}
				if dev.WebUsername != "" && dev.WebPassword != "" {
					opts.Fallback = &ota.Fallback{
						WebPort:  a.Ports.Web,
						Username: dev.WebUsername,
						Password: dev.WebPassword,
					}
				}
				ok, message = ops.RunFlash(ctx, tracker, op.ID, firmwarePath, a.Host, a.Ports.OTA, opts)
			}

			if !ok {
				return fmt.Errorf("%s", message)
			}
			fmt.Println(message)
			return nil
		},
	}
}
