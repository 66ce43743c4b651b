package config

import (
	"path/filepath"
	"time"

	"github.com/paularlott/cli"
)

type Config struct {
	DataDir      string
	BaseHost     string
	ScanInterval time.Duration
	ProbeTimeout time.Duration
	FlashTimeout time.Duration
	LogLevel     string
	LogFormat    string
}

var (
	dataDir      string
	baseHost     string
	scanInterval string
	probeTimeout string
	flashTimeout string
	logLevel     string
	logFormat    string
)

func GetFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:         "data-dir",
			Usage:        "Data directory path",
			EnvVars:      []string{"CACTUSD_DATA_DIR"},
			DefaultValue: filepath.Join(".", "data"),
			AssignTo:     &dataDir,
		},
		&cli.StringFlag{
			Name:         "base-host",
			Usage:        "Default DDNS host for boards without a host override",
			EnvVars:      []string{"CACTUSD_BASE_HOST"},
			DefaultValue: "esp32gb.ddns.net",
			AssignTo:     &baseHost,
		},
		&cli.StringFlag{
			Name:         "scan-interval",
			Usage:        "Interval between fleet scan cycles",
			EnvVars:      []string{"CACTUSD_SCAN_INTERVAL"},
			DefaultValue: "60s",
			AssignTo:     &scanInterval,
		},
		&cli.StringFlag{
			Name:         "probe-timeout",
			Usage:        "Timeout for a single liveness probe",
			EnvVars:      []string{"CACTUSD_PROBE_TIMEOUT"},
			DefaultValue: "3s",
			AssignTo:     &probeTimeout,
		},
		&cli.StringFlag{
			Name:         "flash-timeout",
			Usage:        "Timeout for a complete OTA upload",
			EnvVars:      []string{"CACTUSD_FLASH_TIMEOUT"},
			DefaultValue: "120s",
			AssignTo:     &flashTimeout,
		},
		&cli.StringFlag{
			Name:         "log-level",
			Usage:        "Log level (debug, info, warn, error)",
			EnvVars:      []string{"CACTUSD_LOG_LEVEL"},
			DefaultValue: "info",
			AssignTo:     &logLevel,
		},
		&cli.StringFlag{
			Name:         "log-format",
			Usage:        "Log format (console, json)",
			EnvVars:      []string{"CACTUSD_LOG_FORMAT"},
			DefaultValue: "console",
			AssignTo:     &logFormat,
		},
	}
}

func Load() *Config {
	return &Config{
		DataDir:      dataDir,
		BaseHost:     baseHost,
		ScanInterval: parseDuration(scanInterval, 60*time.Second),
		ProbeTimeout: parseDuration(probeTimeout, 3*time.Second),
		FlashTimeout: parseDuration(flashTimeout, 120*time.Second),
		LogLevel:     logLevel,
		LogFormat:    logFormat,
	}
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// RegistryPath is the device registry document inside the data directory.
func (c *Config) RegistryPath() string {
	return filepath.Join(c.DataDir, "devices.yaml")
}

// StatusLogPath is the SQLite status transition log inside the data directory.
func (c *Config) StatusLogPath() string {
	return filepath.Join(c.DataDir, "status.db")
}
